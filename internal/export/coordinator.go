package export

import (
	"context"
	"time"

	"github.com/querylab/workspace-export/internal/metrics"
	"github.com/querylab/workspace-export/internal/queryrecord"
	"github.com/querylab/workspace-export/internal/sanitize"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Coordinator routes export requests: it loads the query record, enforces
// access, resolves the workspace destination and dispatches to the right
// exporter. Exporter failures are logged here and wrapped uniformly, so
// transports only ever deal with classified errors.
type Coordinator struct {
	logger zerolog.Logger
	store  RecordStore
	access AccessChecker

	standard  Exporter
	streaming Exporter

	workspaceRoot string

	metr *metrics.ExportPipelineExporter
}

// NewCoordinator wires the export pipeline. A nil access checker authorizes
// everything.
func NewCoordinator(logger zerolog.Logger, store RecordStore, access AccessChecker, standard Exporter, streaming Exporter, workspaceRoot string, metr *metrics.ExportPipelineExporter) *Coordinator {
	if access == nil {
		access = AllowAllChecker{}
	}

	return &Coordinator{
		logger:        logger.With().Str("component", "export_coordinator").Logger(),
		store:         store,
		access:        access,
		standard:      standard,
		streaming:     streaming,
		workspaceRoot: workspaceRoot,
		metr:          metr,
	}
}

// Run performs one export end to end. There are no retries: the caller sees
// either a success result or a classified error.
func (c *Coordinator) Run(ctx context.Context, req Request) (res *Result, err error) {
	startedAt := time.Now()

	mode := ModeStandard
	if req.Streaming {
		mode = ModeStreaming
	}

	defer func() {
		var rows int64
		if res != nil {
			rows = res.RowCount
		}

		c.metr.ExportFinished(mode, err == nil, rows, startedAt)
	}()

	rec, err := c.store.Get(ctx, req.ClientID)
	if err != nil {
		if errors.Is(err, queryrecord.ErrNotFound) {
			return nil, NewError(KindQueryNotFound, "query results were not found, please re-run the original query")
		}

		return nil, WrapError(KindExportFailed, err, "failed to load the query record")
	}

	err = c.access.Authorize(ctx, rec)
	if err != nil {
		return nil, WrapError(KindAccessDenied, err, "not authorized to access the query results")
	}

	dest, err := sanitize.ResolveDestination(c.workspaceRoot, req.Subfolder, req.Filename)
	if err != nil {
		return nil, WrapError(KindExportFailed, err, "failed to resolve the destination")
	}

	exporter := c.standard
	if req.Streaming {
		exporter = c.streaming
	}

	res, err = exporter.Export(ctx, rec, dest)
	if err != nil {
		c.logger.Error().
			Err(err).
			Str("client_id", req.ClientID).
			Str("mode", mode).
			Msg("export failed")

		return nil, WrapError(KindExportFailed, err, "failed to export query results")
	}

	c.logger.Info().
		Str("client_id", req.ClientID).
		Str("mode", mode).
		Str("path", res.Path).
		Int64("rows", res.RowCount).
		Dur("elapsed", time.Since(startedAt)).
		Msg("export succeeded")

	return res, nil
}
