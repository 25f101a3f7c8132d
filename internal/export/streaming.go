package export

import (
	"context"

	"github.com/querylab/workspace-export/internal/csvfile"
	"github.com/querylab/workspace-export/internal/engine"
	"github.com/querylab/workspace-export/internal/progress"
	"github.com/querylab/workspace-export/internal/queryrecord"
	"github.com/querylab/workspace-export/internal/sqllimit"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// StreamingExporter re-executes the recorded SQL with its trailing LIMIT
// stripped and writes the full result set in fixed-size batches, so peak
// memory stays bounded by one batch no matter how large the result is.
// Progress is published to the tracker after every batch.
type StreamingExporter struct {
	logger   zerolog.Logger
	opener   engine.Opener
	resolver *sqllimit.Resolver
	tracker  *progress.Tracker
	options  csvfile.Options

	batchSize int
}

func NewStreamingExporter(logger zerolog.Logger, opener engine.Opener, resolver *sqllimit.Resolver, tracker *progress.Tracker, options csvfile.Options) *StreamingExporter {
	return &StreamingExporter{
		logger:    logger.With().Str("exporter", ModeStreaming).Logger(),
		opener:    opener,
		resolver:  resolver,
		tracker:   tracker,
		options:   options,
		batchSize: StreamingBatchSize,
	}
}

func (e *StreamingExporter) Export(ctx context.Context, rec *queryrecord.Record, dest string) (res *Result, err error) {
	query, err := e.resolver.StreamingSQL(rec)
	if err != nil {
		return nil, WrapError(KindEngineFailure, err, "failed to resolve the query")
	}

	e.tracker.Start(rec.ClientID)
	defer func() {
		if err != nil {
			e.tracker.Fail(rec.ClientID)
		}
	}()

	h, err := e.opener.Open(ctx, rec.Database, rec.Catalog, rec.Schema)
	if err != nil {
		return nil, WrapError(KindEngineFailure, err, "failed to open the engine")
	}
	defer h.Close()

	e.countTotal(ctx, h, rec.ClientID, query)

	cur, err := h.Stream(ctx, query)
	if err != nil {
		return nil, WrapError(KindEngineFailure, err, "failed to run the streaming query")
	}
	defer cur.Close()

	w, err := csvfile.Create(dest, e.options)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create the export file")
	}
	defer w.Discard()

	var exported int64
	wroteHeader := false

	for {
		if ctx.Err() != nil {
			return nil, errors.Wrap(ctx.Err(), "export interrupted")
		}

		batch, err := cur.Fetch(e.batchSize)
		if err != nil {
			return nil, WrapError(KindEngineFailure, err, "failed to fetch a batch")
		}
		if len(batch) == 0 {
			break
		}

		if !wroteHeader {
			err = w.Write(cur.Columns())
			if err != nil {
				return nil, errors.Wrap(err, "failed to write the header")
			}

			wroteHeader = true
		}

		for _, row := range batch {
			err = w.Write(row)
			if err != nil {
				return nil, errors.Wrap(err, "failed to write a row")
			}
		}

		exported += int64(len(batch))
		e.tracker.SetProcessed(rec.ClientID, exported)
	}

	err = w.Commit()
	if err != nil {
		return nil, errors.Wrap(err, "failed to commit the export file")
	}

	e.tracker.Complete(rec.ClientID)

	e.logger.Info().
		Str("client_id", rec.ClientID).
		Int64("rows", exported).
		Str("path", dest).
		Msg("streaming export finished")

	return successResult(dest, exported), nil
}

// countTotal estimates the expected row count for progress reporting. A
// failed estimation only costs the denominator: the export proceeds with an
// unknown total.
func (e *StreamingExporter) countTotal(ctx context.Context, h engine.Handle, clientID string, query string) {
	total, err := h.Count(ctx, query)
	if err != nil {
		e.logger.Warn().Err(err).Str("client_id", clientID).Msg("row count estimation failed")
	} else {
		e.tracker.SetTotal(clientID, total)
	}

	e.tracker.MarkExporting(clientID)
}
