// Package engine defines the narrow surface the exporters need from a SQL
// execution engine. Implementations live in subpackages and are selected by
// the driver name stored on the query record.
package engine

import (
	"context"

	"github.com/querylab/workspace-export/internal/queryrecord"
	"github.com/querylab/workspace-export/internal/resultset"
)

// Opener dials an engine and scopes the session to a catalog and schema.
type Opener interface {
	Open(ctx context.Context, db queryrecord.Database, catalog string, schema string) (Handle, error)
}

// Handle is a scoped engine session. It must be closed by the caller.
type Handle interface {
	// QueryTable runs the statement and materializes the whole result.
	QueryTable(ctx context.Context, sql string) (*resultset.Table, error)

	// Stream runs the statement and returns a cursor over its rows.
	Stream(ctx context.Context, sql string) (Cursor, error)

	// Count reports how many rows the statement would produce.
	Count(ctx context.Context, sql string) (int64, error)

	Close() error
}

// Cursor iterates over a result set in engine order.
type Cursor interface {
	// Columns returns the result header. It is valid as soon as the cursor
	// exists, even when the result set is empty.
	Columns() []string

	// Fetch returns up to max rows. An empty batch means the result set is
	// exhausted.
	Fetch(max int) ([][]string, error)

	Close() error
}
