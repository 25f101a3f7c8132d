// Package sqlengine runs export queries through database/sql. Drivers are
// expected to be registered by the importing binary.
package sqlengine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/querylab/workspace-export/internal/engine"
	"github.com/querylab/workspace-export/internal/queryrecord"
	"github.com/querylab/workspace-export/internal/resultset"

	"github.com/pkg/errors"
)

// materializeChunk is the row batch size used when a whole result set is
// collected in memory.
const materializeChunk = 1000

type Opener struct{}

func NewOpener() *Opener {
	return &Opener{}
}

// Open dials the database and pins a single connection, so session state
// such as the selected schema applies to every statement of the export.
func (o *Opener) Open(ctx context.Context, db queryrecord.Database, catalog string, schema string) (engine.Handle, error) {
	pool, err := sql.Open(db.Driver, db.DSN)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database with driver %q", db.Driver)
	}

	conn, err := pool.Conn(ctx)
	if err != nil {
		_ = pool.Close()
		return nil, errors.Wrap(err, "failed to acquire a connection")
	}

	h := &handle{
		pool: pool,
		conn: conn,
	}

	err = h.selectSchema(ctx, db.Driver, catalog, schema)
	if err != nil {
		_ = h.Close()
		return nil, err
	}

	return h, nil
}

type handle struct {
	pool *sql.DB
	conn *sql.Conn
}

func (h *handle) selectSchema(ctx context.Context, driver string, catalog string, schema string) error {
	for _, stmt := range schemaStatements(driver, catalog, schema) {
		_, err := h.conn.ExecContext(ctx, stmt)
		if err != nil {
			return errors.Wrapf(err, "failed to select schema (%s)", stmt)
		}
	}

	return nil
}

// schemaStatements builds the session setup for the given dialect. SQLite
// has no notion of schema selection, Postgres scopes by search_path, the
// rest understand the common USE form.
func schemaStatements(driver string, catalog string, schema string) []string {
	switch driver {
	case "sqlite", "sqlite3":
		return nil

	case "postgres", "pgx":
		if schema == "" {
			return nil
		}

		return []string{fmt.Sprintf("SET search_path TO %s", schema)}

	default:
		scope := schema
		if catalog != "" && schema != "" {
			scope = catalog + "." + schema
		}
		if scope == "" {
			return nil
		}

		return []string{fmt.Sprintf("USE %s", scope)}
	}
}

func (h *handle) QueryTable(ctx context.Context, query string) (*resultset.Table, error) {
	cur, err := h.Stream(ctx, query)
	if err != nil {
		return nil, err
	}
	defer cur.Close()

	table := &resultset.Table{
		Columns: cur.Columns(),
	}

	for {
		batch, err := cur.Fetch(materializeChunk)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			return table, nil
		}

		table.Rows = append(table.Rows, batch...)
	}
}

func (h *handle) Stream(ctx context.Context, query string) (engine.Cursor, error) {
	rows, err := h.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "query failed")
	}

	columns, err := rows.Columns()
	if err != nil {
		_ = rows.Close()
		return nil, errors.Wrap(err, "failed to read columns")
	}

	return &cursor{
		rows:    rows,
		columns: columns,
	}, nil
}

func (h *handle) Count(ctx context.Context, query string) (int64, error) {
	wrapped := fmt.Sprintf("SELECT COUNT(*) FROM (%s) AS subquery", strings.TrimRight(strings.TrimSpace(query), "; \t\n"))

	var total int64

	err := h.conn.QueryRowContext(ctx, wrapped).Scan(&total)
	if err != nil {
		return 0, errors.Wrap(err, "count query failed")
	}

	return total, nil
}

func (h *handle) Close() error {
	err := h.conn.Close()

	cerr := h.pool.Close()
	if err == nil {
		err = cerr
	}

	return err
}

type cursor struct {
	rows    *sql.Rows
	columns []string
}

func (c *cursor) Columns() []string {
	return c.columns
}

func (c *cursor) Fetch(max int) ([][]string, error) {
	batch := make([][]string, 0, max)

	for len(batch) < max && c.rows.Next() {
		scanned := make([]any, len(c.columns))
		for i := range scanned {
			scanned[i] = new(any)
		}

		err := c.rows.Scan(scanned...)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan a row")
		}

		row := make([]string, len(c.columns))
		for i, cell := range scanned {
			row[i] = renderValue(*(cell.(*any)))
		}

		batch = append(batch, row)
	}

	err := c.rows.Err()
	if err != nil {
		return nil, errors.Wrap(err, "failed to iterate rows")
	}

	return batch, nil
}

func (c *cursor) Close() error {
	return c.rows.Close()
}
