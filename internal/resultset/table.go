// Package resultset holds the tabular result model shared by the results
// backend, the query engine and the exporters.
package resultset

// Table is a fully materialized query result: column names in engine order
// and rows of rendered cell values. Row cells follow the column order.
type Table struct {
	Columns []string
	Rows    [][]string
}
