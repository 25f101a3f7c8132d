package export

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/querylab/workspace-export/internal/metrics"
	"github.com/querylab/workspace-export/internal/progress"
	"github.com/querylab/workspace-export/internal/queryrecord"

	"github.com/pkg/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// promauto registers on the default registry, so the exporter is created
// once per test binary.
var testMetrics = metrics.NewExportPipelineExporter()

type RecordStoreMock struct {
	records map[string]*queryrecord.Record
	err     error
}

func (s *RecordStoreMock) Get(_ context.Context, clientID string) (*queryrecord.Record, error) {
	if s.err != nil {
		return nil, s.err
	}

	rec, found := s.records[clientID]
	if !found {
		return nil, queryrecord.ErrNotFound
	}

	return rec, nil
}

type DenyAllChecker struct{}

func (DenyAllChecker) Authorize(context.Context, *queryrecord.Record) error {
	return errors.New("results belong to another user")
}

type ExporterMock struct {
	dest string
	err  error

	calls int
}

func (e *ExporterMock) Export(_ context.Context, _ *queryrecord.Record, dest string) (*Result, error) {
	e.calls++
	e.dest = dest

	if e.err != nil {
		return nil, e.err
	}

	return successResult(dest, 42), nil
}

func newTestStore(clientIDs ...string) *RecordStoreMock {
	store := &RecordStoreMock{records: make(map[string]*queryrecord.Record)}
	for _, id := range clientIDs {
		store.records[id] = &queryrecord.Record{
			ClientID:    id,
			ExecutedSQL: "SELECT 1",
		}
	}

	return store
}

func TestCoordinatorUnknownClientID(t *testing.T) {
	root := t.TempDir()
	coord := NewCoordinator(zlog.Logger, newTestStore(), nil, &ExporterMock{}, &ExporterMock{}, root, testMetrics)

	_, err := coord.Run(context.Background(), Request{ClientID: "ghost", Filename: "out.csv"})
	require.Error(t, err)

	var exportErr *Error
	require.ErrorAs(t, err, &exportErr)
	assert.Equal(t, KindQueryNotFound, exportErr.Kind)

	// The destination is resolved after validation, nothing may be created.
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCoordinatorAccessDenied(t *testing.T) {
	coord := NewCoordinator(zlog.Logger, newTestStore("client-1"), DenyAllChecker{}, &ExporterMock{}, &ExporterMock{}, t.TempDir(), testMetrics)

	_, err := coord.Run(context.Background(), Request{ClientID: "client-1", Filename: "out.csv"})
	require.Error(t, err)

	var exportErr *Error
	require.ErrorAs(t, err, &exportErr)
	assert.Equal(t, KindAccessDenied, exportErr.Kind)
}

func TestCoordinatorDispatchesByMode(t *testing.T) {
	testCases := []struct {
		name      string
		streaming bool
	}{
		{name: "standard", streaming: false},
		{name: "streaming", streaming: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			root := t.TempDir()
			standard := &ExporterMock{}
			streaming := &ExporterMock{}

			coord := NewCoordinator(zlog.Logger, newTestStore("client-1"), nil, standard, streaming, root, testMetrics)

			res, err := coord.Run(context.Background(), Request{
				ClientID:  "client-1",
				Filename:  "report",
				Subfolder: "monthly/reports",
				Streaming: tc.streaming,
			})
			require.NoError(t, err)

			chosen, other := standard, streaming
			if tc.streaming {
				chosen, other = streaming, standard
			}

			assert.Equal(t, 1, chosen.calls)
			assert.Zero(t, other.calls)

			// The destination is sanitized and rooted in the workspace.
			assert.Equal(t, filepath.Join(root, "monthly", "reports", "report.csv"), chosen.dest)
			assert.Equal(t, StatusSuccess, res.Status)
			assert.DirExists(t, filepath.Join(root, "monthly", "reports"))
		})
	}
}

func TestCoordinatorWrapsExporterFailures(t *testing.T) {
	standard := &ExporterMock{err: errors.New("disk full")}

	coord := NewCoordinator(zlog.Logger, newTestStore("client-1"), nil, standard, &ExporterMock{}, t.TempDir(), testMetrics)

	_, err := coord.Run(context.Background(), Request{ClientID: "client-1", Filename: "out.csv"})
	require.Error(t, err)

	var exportErr *Error
	require.ErrorAs(t, err, &exportErr)
	assert.Equal(t, KindExportFailed, exportErr.Kind)
	assert.Contains(t, err.Error(), "disk full")
}

func TestCoordinatorConcurrentStreamingExports(t *testing.T) {
	tracker := progress.NewTracker()

	newExporter := func(rows int) *StreamingExporter {
		batch := make([][]string, rows)
		for i := range batch {
			batch[i] = []string{"x"}
		}

		opener := &OpenerMock{
			handle: &HandleMock{
				cursor:     &CursorMock{columns: []string{"v"}, batches: [][][]string{batch}},
				countTotal: int64(rows),
			},
		}

		return newStreamingExporter(opener, tracker)
	}

	store := newTestStore("client-a", "client-b")

	coordA := NewCoordinator(zlog.Logger, store, nil, &ExporterMock{}, newExporter(7), t.TempDir(), testMetrics)
	coordB := NewCoordinator(zlog.Logger, store, nil, &ExporterMock{}, newExporter(11), t.TempDir(), testMetrics)

	var g errgroup.Group
	g.Go(func() error {
		_, err := coordA.Run(context.Background(), Request{ClientID: "client-a", Filename: "a.csv", Streaming: true})
		return err
	})
	g.Go(func() error {
		_, err := coordB.Run(context.Background(), Request{ClientID: "client-b", Filename: "b.csv", Streaming: true})
		return err
	})

	require.NoError(t, g.Wait())

	// Entries do not leak into each other.
	entryA, foundA := tracker.Get("client-a")
	require.True(t, foundA)
	assert.EqualValues(t, 7, entryA.Processed)
	assert.EqualValues(t, 7, entryA.Total)
	assert.Equal(t, progress.StatusCompleted, entryA.Status)

	entryB, foundB := tracker.Get("client-b")
	require.True(t, foundB)
	assert.EqualValues(t, 11, entryB.Processed)
	assert.EqualValues(t, 11, entryB.Total)
	assert.Equal(t, progress.StatusCompleted, entryB.Status)
}
