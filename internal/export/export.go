// Package export materializes the results of previously executed queries
// into workspace CSV files.
//
// There are two strategies. The standard exporter serves bounded result
// sets in one pass, preferring the cached payload over a replay. The
// streaming exporter re-runs the query without its LIMIT and writes the full
// result set in batches, publishing progress for pollers.
package export

// StreamingBatchSize is the number of rows fetched from the engine per
// round trip during a streaming export.
const StreamingBatchSize = 10000

const (
	ModeStandard  = "standard"
	ModeStreaming = "streaming"
)

// Request describes one save-to-workspace invocation.
type Request struct {
	ClientID  string
	Filename  string
	Subfolder string
	Streaming bool
}

// Result is the terminal outcome of a successful export.
type Result struct {
	Status   string `json:"status"`
	Path     string `json:"path"`
	RowCount int64  `json:"row_count"`
}

const StatusSuccess = "success"

func successResult(path string, rows int64) *Result {
	return &Result{
		Status:   StatusSuccess,
		Path:     path,
		RowCount: rows,
	}
}
