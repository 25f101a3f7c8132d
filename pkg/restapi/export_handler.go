package restapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/querylab/workspace-export/internal/export"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	zlog "github.com/rs/zerolog/log"
)

type exportHandler struct {
	runner   ExportRunner
	progress ProgressStore
}

func newExportHandler(runner ExportRunner, progress ProgressStore) *exportHandler {
	return &exportHandler{
		runner:   runner,
		progress: progress,
	}
}

func (h *exportHandler) handle(r chi.Router) {
	r.Post("/exports", h.saveToWorkspace)
	r.Get("/exports/{clientID}/progress", h.getProgress)
}

type SaveExportInput struct {
	ClientID  string `json:"client_id"`
	Filename  string `json:"filename"`
	Subfolder string `json:"subfolder"`
	Streaming bool   `json:"streaming"`
}

type SaveExportOutput struct {
	Status      string `json:"status"`
	Path        string `json:"path"`
	RowCount    int64  `json:"row_count"`
	TimeElapsed string `json:"time_elapsed"`
}

func (h *exportHandler) saveToWorkspace(w http.ResponseWriter, r *http.Request) {
	var req SaveExportInput
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.ClientID == "" {
		writeError(w, "missed client_id", http.StatusBadRequest)
		return
	}
	if req.Filename == "" {
		writeError(w, "missed filename", http.StatusBadRequest)
		return
	}

	startedAt := time.Now()
	res, err := h.runner.Run(r.Context(), export.Request{
		ClientID:  req.ClientID,
		Filename:  req.Filename,
		Subfolder: req.Subfolder,
		Streaming: req.Streaming,
	})
	if err != nil {
		var exportErr *export.Error
		if errors.As(err, &exportErr) {
			writeError(w, exportErr.Message, exportErr.Kind.HTTPStatus())
			return
		}

		zlog.Error().Err(err).Interface("request", req).Msg("export failed")
		writeError(w, "internal error", http.StatusInternalServerError)

		return
	}

	timeElapsed := time.Since(startedAt)

	zlog.Info().Str("client_id", req.ClientID).Dur("elapsed", timeElapsed).Msg("saved query results to the workspace")

	writeResult(w, SaveExportOutput{
		Status:      res.Status,
		Path:        res.Path,
		RowCount:    res.RowCount,
		TimeElapsed: timeElapsed.Round(time.Millisecond).String(),
	})
}

type ProgressOutput struct {
	Processed int64  `json:"processed"`
	Total     int64  `json:"total"`
	Status    string `json:"status"`
}

func (h *exportHandler) getProgress(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "clientID")
	if clientID == "" {
		writeError(w, "missed client id", http.StatusBadRequest)
		return
	}

	entry, found := h.progress.Get(clientID)
	if !found {
		writeError(w, "progress not found", http.StatusNotFound)
		return
	}

	writeResult(w, ProgressOutput{
		Processed: entry.Processed,
		Total:     entry.Total,
		Status:    string(entry.Status),
	})
}
