package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/querylab/workspace-export/internal/csvfile"
	"github.com/querylab/workspace-export/internal/engine"
	"github.com/querylab/workspace-export/internal/engine/sqlengine"
	"github.com/querylab/workspace-export/internal/progress"
	"github.com/querylab/workspace-export/internal/queryrecord"
	"github.com/querylab/workspace-export/internal/resultset"
	"github.com/querylab/workspace-export/internal/sqllimit"

	"github.com/pkg/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

type CursorMock struct {
	columns []string
	batches [][][]string
	err     error
	onFetch func()

	closed bool
}

func (c *CursorMock) Columns() []string {
	return c.columns
}

func (c *CursorMock) Fetch(_ int) ([][]string, error) {
	if c.onFetch != nil {
		c.onFetch()
	}

	if len(c.batches) == 0 {
		if c.err != nil {
			return nil, c.err
		}

		return nil, nil
	}

	batch := c.batches[0]
	c.batches = c.batches[1:]

	return batch, nil
}

func (c *CursorMock) Close() error {
	c.closed = true
	return nil
}

type HandleMock struct {
	cursor *CursorMock

	countTotal int64
	countErr   error

	closed bool
}

func (h *HandleMock) QueryTable(ctx context.Context, sql string) (*resultset.Table, error) {
	cur, err := h.Stream(ctx, sql)
	if err != nil {
		return nil, err
	}

	table := &resultset.Table{Columns: cur.Columns()}
	for {
		batch, err := cur.Fetch(1000)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			return table, nil
		}

		table.Rows = append(table.Rows, batch...)
	}
}

func (h *HandleMock) Stream(_ context.Context, _ string) (engine.Cursor, error) {
	return h.cursor, nil
}

func (h *HandleMock) Count(_ context.Context, _ string) (int64, error) {
	if h.countErr != nil {
		return 0, h.countErr
	}

	return h.countTotal, nil
}

func (h *HandleMock) Close() error {
	h.closed = true
	return nil
}

type OpenerMock struct {
	handle *HandleMock
	err    error
}

func (o *OpenerMock) Open(_ context.Context, _ queryrecord.Database, _ string, _ string) (engine.Handle, error) {
	if o.err != nil {
		return nil, o.err
	}

	return o.handle, nil
}

func newStreamingExporter(opener engine.Opener, tracker *progress.Tracker) *StreamingExporter {
	return NewStreamingExporter(zlog.Logger, opener, sqllimit.NewResolver(nil), tracker, csvfile.Options{})
}

func TestStreamingExportFullDataset(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping the 25k-row export in short mode")
	}

	const totalRows = 25000

	db := seedEvents(t, totalRows)
	tracker := progress.NewTracker()

	// The interactive run was capped at 100 rows, streaming must ignore it.
	rec := &queryrecord.Record{
		ClientID:       "client-1",
		ExecutedSQL:    "SELECT id, name FROM events ORDER BY id LIMIT 101",
		LimitingFactor: queryrecord.LimitQuery,
		Database:       db,
	}

	exporter := NewStreamingExporter(zlog.Logger, sqlengine.NewOpener(), sqllimit.NewResolver(nil), tracker, csvfile.Options{})

	// Poll concurrently the way another request goroutine would.
	var mu sync.Mutex
	var observed []int64
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			e, found := tracker.Get("client-1")
			if found {
				mu.Lock()
				observed = append(observed, e.Processed)
				mu.Unlock()

				if e.Status.Terminal() {
					return
				}
			}
		}
	}()

	dest := filepath.Join(t.TempDir(), "out.csv")
	res, err := exporter.Export(context.Background(), rec, dest)
	require.NoError(t, err)
	<-done

	assert.EqualValues(t, totalRows, res.RowCount)

	lines := readLines(t, dest)
	require.Len(t, lines, totalRows+1)
	assert.Equal(t, "id,name", lines[0])
	assert.Equal(t, fmt.Sprintf("%d,event-%d", totalRows, totalRows), lines[totalRows])

	entry, found := tracker.Get("client-1")
	require.True(t, found)
	assert.Equal(t, progress.StatusCompleted, entry.Status)
	assert.EqualValues(t, totalRows, entry.Processed)
	assert.EqualValues(t, totalRows, entry.Total)

	// Processed counts are only published on batch boundaries and never
	// decrease.
	var last int64
	for _, p := range observed {
		assert.GreaterOrEqual(t, p, last)
		assert.True(t, p%StreamingBatchSize == 0 || p == totalRows, "processed %d is not a batch boundary", p)
		last = p
	}
}

func TestStreamingExportToleratesCountFailure(t *testing.T) {
	tracker := progress.NewTracker()
	opener := &OpenerMock{
		handle: &HandleMock{
			cursor: &CursorMock{
				columns: []string{"id"},
				batches: [][][]string{{{"1"}, {"2"}, {"3"}}},
			},
			countErr: errors.New("subqueries are not supported"),
		},
	}

	rec := &queryrecord.Record{
		ClientID:    "client-1",
		ExecutedSQL: "SELECT id FROM events",
	}

	exporter := newStreamingExporter(opener, tracker)

	dest := filepath.Join(t.TempDir(), "out.csv")
	res, err := exporter.Export(context.Background(), rec, dest)
	require.NoError(t, err)

	assert.EqualValues(t, 3, res.RowCount)

	entry, _ := tracker.Get("client-1")
	assert.Equal(t, progress.StatusCompleted, entry.Status)
	assert.Equal(t, progress.TotalUnknown, entry.Total)

	assert.True(t, opener.handle.closed)
	assert.True(t, opener.handle.cursor.closed)
}

func TestStreamingExportEmptyResultSet(t *testing.T) {
	tracker := progress.NewTracker()
	opener := &OpenerMock{
		handle: &HandleMock{
			cursor: &CursorMock{columns: []string{"id"}},
		},
	}

	rec := &queryrecord.Record{
		ClientID:    "client-1",
		ExecutedSQL: "SELECT id FROM events WHERE 1 = 0",
	}

	exporter := newStreamingExporter(opener, tracker)

	dest := filepath.Join(t.TempDir(), "out.csv")
	res, err := exporter.Export(context.Background(), rec, dest)
	require.NoError(t, err)

	assert.EqualValues(t, 0, res.RowCount)

	// The file is committed even when there is nothing to write.
	require.FileExists(t, dest)
	assert.Empty(t, readLines(t, dest))
}

func TestStreamingExportFailureMarksProgress(t *testing.T) {
	tracker := progress.NewTracker()
	opener := &OpenerMock{
		handle: &HandleMock{
			cursor: &CursorMock{
				columns: []string{"id"},
				batches: [][][]string{{{"1"}, {"2"}}},
				err:     errors.New("connection reset"),
			},
		},
	}

	rec := &queryrecord.Record{
		ClientID:    "client-1",
		ExecutedSQL: "SELECT id FROM events",
	}

	exporter := newStreamingExporter(opener, tracker)

	dest := filepath.Join(t.TempDir(), "out.csv")
	_, err := exporter.Export(context.Background(), rec, dest)
	require.Error(t, err)

	var exportErr *Error
	require.ErrorAs(t, err, &exportErr)
	assert.Equal(t, KindEngineFailure, exportErr.Kind)

	entry, found := tracker.Get("client-1")
	require.True(t, found)
	assert.Equal(t, progress.StatusFailed, entry.Status)

	// Nothing may appear at the destination on failure.
	_, err = os.Stat(dest)
	assert.True(t, os.IsNotExist(err))
}

func TestStreamingExportCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	tracker := progress.NewTracker()

	// The first fetch cancels the context, the loop must stop before the
	// second one.
	cursor := &CursorMock{
		columns: []string{"id"},
		batches: [][][]string{{{"1"}}, {{"2"}}, {{"3"}}},
	}
	cursor.onFetch = cancel

	opener := &OpenerMock{handle: &HandleMock{cursor: cursor}}

	rec := &queryrecord.Record{
		ClientID:    "client-1",
		ExecutedSQL: "SELECT id FROM events",
	}

	exporter := newStreamingExporter(opener, tracker)

	dest := filepath.Join(t.TempDir(), "out.csv")
	_, err := exporter.Export(ctx, rec, dest)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	entry, _ := tracker.Get("client-1")
	assert.Equal(t, progress.StatusFailed, entry.Status)
}
