package export

import (
	"context"

	"github.com/querylab/workspace-export/internal/csvfile"
	"github.com/querylab/workspace-export/internal/engine"
	"github.com/querylab/workspace-export/internal/queryrecord"
	"github.com/querylab/workspace-export/internal/resultset"
	"github.com/querylab/workspace-export/internal/sqllimit"
	"github.com/querylab/workspace-export/pkg/resultsbackend"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// StandardExporter serves bounded result sets in one pass. It prefers the
// payload cached by the results backend; when the cache no longer has it,
// the recorded SQL is replayed and the result is capped at the resolved
// limit.
type StandardExporter struct {
	logger   zerolog.Logger
	backend  ResultsBackend
	opener   engine.Opener
	resolver *sqllimit.Resolver
	options  csvfile.Options
}

// NewStandardExporter builds the exporter. The backend may be nil, in which
// case every export replays the query.
func NewStandardExporter(logger zerolog.Logger, backend ResultsBackend, opener engine.Opener, resolver *sqllimit.Resolver, options csvfile.Options) *StandardExporter {
	return &StandardExporter{
		logger:   logger.With().Str("exporter", ModeStandard).Logger(),
		backend:  backend,
		opener:   opener,
		resolver: resolver,
		options:  options,
	}
}

func (e *StandardExporter) Export(ctx context.Context, rec *queryrecord.Record, dest string) (*Result, error) {
	table, err := e.loadTable(ctx, rec)
	if err != nil {
		return nil, err
	}

	w, err := csvfile.Create(dest, e.options)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create the export file")
	}
	defer w.Discard()

	err = w.Write(table.Columns)
	if err != nil {
		return nil, errors.Wrap(err, "failed to write the header")
	}

	for _, row := range table.Rows {
		err = w.Write(row)
		if err != nil {
			return nil, errors.Wrap(err, "failed to write a row")
		}
	}

	err = w.Commit()
	if err != nil {
		return nil, errors.Wrap(err, "failed to commit the export file")
	}

	rows := int64(len(table.Rows))

	e.logger.Info().
		Str("client_id", rec.ClientID).
		Int64("rows", rows).
		Str("path", dest).
		Msg("export finished")

	return successResult(dest, rows), nil
}

// loadTable fetches the cached result set or falls back to a replay. Only a
// cache miss falls through; any other backend failure aborts the export.
func (e *StandardExporter) loadTable(ctx context.Context, rec *queryrecord.Record) (*resultset.Table, error) {
	if e.backend == nil || rec.ResultsKey == "" {
		return e.replay(ctx, rec)
	}

	table, err := e.backend.FetchTable(ctx, rec.ResultsKey)
	switch {
	case err == nil:
		e.logger.Debug().
			Str("client_id", rec.ClientID).
			Str("results_key", rec.ResultsKey).
			Int("rows", len(table.Rows)).
			Msg("fetched results from the backend")

		return table, nil

	case errors.Is(err, resultsbackend.ErrNotFound):
		e.logger.Info().
			Str("client_id", rec.ClientID).
			Str("results_key", rec.ResultsKey).
			Msg("results are not cached anymore, replaying the query")

		return e.replay(ctx, rec)

	default:
		return nil, WrapError(KindBackendFailure, err, "failed to fetch results from the backend")
	}
}

func (e *StandardExporter) replay(ctx context.Context, rec *queryrecord.Record) (*resultset.Table, error) {
	query, limit, err := e.resolver.Resolve(rec)
	if err != nil {
		return nil, WrapError(KindEngineFailure, err, "failed to resolve the query")
	}

	h, err := e.opener.Open(ctx, rec.Database, rec.Catalog, rec.Schema)
	if err != nil {
		return nil, WrapError(KindEngineFailure, err, "failed to open the engine")
	}
	defer h.Close()

	table, err := h.QueryTable(ctx, query)
	if err != nil {
		return nil, WrapError(KindEngineFailure, err, "query replay failed")
	}

	// The executed query may carry an extra probe row, cut the result down
	// to the user-visible part.
	if limit != nil && int64(len(table.Rows)) > *limit {
		table.Rows = table.Rows[:*limit]
	}

	return table, nil
}
