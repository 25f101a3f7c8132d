package export

import (
	"context"

	"github.com/querylab/workspace-export/internal/queryrecord"
	"github.com/querylab/workspace-export/internal/resultset"
)

// RecordStore looks up query records by client id.
type RecordStore interface {
	Get(ctx context.Context, clientID string) (*queryrecord.Record, error)
}

// AccessChecker decides whether the caller may read the record's results.
// Denial is reported as an error.
type AccessChecker interface {
	Authorize(ctx context.Context, rec *queryrecord.Record) error
}

// AllowAllChecker authorizes everything. Standalone deployments, where the
// service sits behind an authenticating proxy, run with it.
type AllowAllChecker struct{}

func (AllowAllChecker) Authorize(context.Context, *queryrecord.Record) error {
	return nil
}

// ResultsBackend serves result sets cached by the query runner.
type ResultsBackend interface {
	FetchTable(ctx context.Context, key string) (*resultset.Table, error)
}

// Exporter materializes a record's result set into the destination file.
type Exporter interface {
	Export(ctx context.Context, rec *queryrecord.Record, dest string) (*Result, error)
}
