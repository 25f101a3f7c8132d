package resultsbackend

import (
	"compress/zlib"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/querylab/workspace-export/internal/resultset"

	"github.com/pkg/errors"
)

// payload mirrors the document the query runner stores: a zlib-compressed
// JSON object with column descriptors and row objects keyed by column name.
type payload struct {
	Columns []payloadColumn  `json:"columns"`
	Data    []map[string]any `json:"data"`
}

type payloadColumn struct {
	Name string `json:"name"`
}

// decodePayload inflates and decodes a stored result set, preserving the
// column order of the descriptor list.
func decodePayload(r io.Reader) (*resultset.Table, error) {
	zr, err := zlib.NewReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "decompression failed")
	}
	defer zr.Close()

	var p payload

	err = json.NewDecoder(zr).Decode(&p)
	if err != nil {
		return nil, errors.Wrap(err, "unmarshal failed")
	}

	table := &resultset.Table{
		Columns: make([]string, 0, len(p.Columns)),
		Rows:    make([][]string, 0, len(p.Data)),
	}
	for _, col := range p.Columns {
		table.Columns = append(table.Columns, col.Name)
	}

	for _, obj := range p.Data {
		row := make([]string, len(table.Columns))
		for i, name := range table.Columns {
			row[i] = renderCell(obj[name])
		}

		table.Rows = append(table.Rows, row)
	}

	return table, nil
}

// renderCell turns a decoded JSON value into its exported text form. Cells
// missing from a row object count as NULL.
func renderCell(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(value)
	default:
		return fmt.Sprintf("%v", value)
	}
}
