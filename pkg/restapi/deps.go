package restapi

import (
	"context"

	"github.com/querylab/workspace-export/internal/export"
	"github.com/querylab/workspace-export/internal/progress"
)

// ExportRunner performs one export end to end. Failures carry an export
// error kind the handler maps to a status code.
type ExportRunner interface {
	Run(ctx context.Context, req export.Request) (*export.Result, error)
}

// ProgressStore serves progress snapshots of streaming exports.
type ProgressStore interface {
	Get(clientID string) (progress.Entry, bool)
}
