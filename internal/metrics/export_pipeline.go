package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var defaultExportBuckets = []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300}

func NewExportPipelineExporter() *ExportPipelineExporter {
	return &ExportPipelineExporter{
		duration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "export",
				Name:      "pipeline_duration_seconds",
				Help:      "How long it took to save query results to the workspace, partitioned by export mode and status (success or failure).",
				Buckets:   defaultExportBuckets,
			},
			[]string{"mode", "status"},
		),
		rows: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "export",
				Name:      "rows_total",
				Help:      "How many rows were written to workspace files.",
			},
			[]string{"mode"},
		),
	}
}

type ExportPipelineExporter struct {
	duration *prometheus.HistogramVec
	rows     *prometheus.CounterVec
}

func (e *ExportPipelineExporter) ExportFinished(mode string, succeed bool, rows int64, startedAt time.Time) {
	status := "success"
	if !succeed {
		status = "failure"
	}

	e.duration.
		With(prometheus.Labels{
			"mode":   mode,
			"status": status,
		}).
		Observe(time.Since(startedAt).Seconds())

	if succeed {
		e.rows.With(prometheus.Labels{"mode": mode}).Add(float64(rows))
	}
}
