package sqlengine

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/querylab/workspace-export/internal/queryrecord"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func newTestDatabase(t *testing.T, rows int) queryrecord.Database {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "engine.db")

	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE events (id INTEGER PRIMARY KEY, name TEXT, score REAL, note TEXT)`)
	require.NoError(t, err)

	for i := 1; i <= rows; i++ {
		_, err = db.Exec(
			`INSERT INTO events (id, name, score, note) VALUES (?, ?, ?, NULL)`,
			i, fmt.Sprintf("event-%d", i), float64(i)/2,
		)
		require.NoError(t, err)
	}

	return queryrecord.Database{Driver: "sqlite", DSN: dsn}
}

func TestQueryTable(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase(t, 10)

	h, err := NewOpener().Open(ctx, db, "", "")
	require.NoError(t, err)
	defer h.Close()

	table, err := h.QueryTable(ctx, "SELECT id, name, score, note FROM events ORDER BY id")
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "name", "score", "note"}, table.Columns)
	require.Len(t, table.Rows, 10)

	// NULL cells are rendered as empty strings.
	assert.Equal(t, []string{"1", "event-1", "0.5", ""}, table.Rows[0])
	assert.Equal(t, []string{"10", "event-10", "5", ""}, table.Rows[9])
}

func TestStreamFetchesInBatches(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase(t, 25)

	h, err := NewOpener().Open(ctx, db, "", "")
	require.NoError(t, err)
	defer h.Close()

	cur, err := h.Stream(ctx, "SELECT id FROM events ORDER BY id")
	require.NoError(t, err)
	defer cur.Close()

	assert.Equal(t, []string{"id"}, cur.Columns())

	var batches [][]string
	fetched := 0
	for {
		batch, err := cur.Fetch(10)
		require.NoError(t, err)
		if len(batch) == 0 {
			break
		}

		require.LessOrEqual(t, len(batch), 10)
		fetched += len(batch)
		batches = append(batches, batch...)
	}

	assert.Equal(t, 25, fetched)
	assert.Equal(t, []string{"1"}, batches[0])
	assert.Equal(t, []string{"25"}, batches[24])
}

func TestStreamEmptyResult(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase(t, 5)

	h, err := NewOpener().Open(ctx, db, "", "")
	require.NoError(t, err)
	defer h.Close()

	cur, err := h.Stream(ctx, "SELECT id, name FROM events WHERE id > 100")
	require.NoError(t, err)
	defer cur.Close()

	// The header is known even when there are no rows.
	assert.Equal(t, []string{"id", "name"}, cur.Columns())

	batch, err := cur.Fetch(10)
	require.NoError(t, err)
	assert.Empty(t, batch)
}

func TestCount(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase(t, 12)

	h, err := NewOpener().Open(ctx, db, "", "")
	require.NoError(t, err)
	defer h.Close()

	// The trailing semicolon must not break the subquery wrapping.
	total, err := h.Count(ctx, "SELECT * FROM events WHERE id <= 7;")
	require.NoError(t, err)
	assert.EqualValues(t, 7, total)

	_, err = h.Count(ctx, "SELECT * FROM missing_table")
	assert.Error(t, err)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := NewOpener().Open(context.Background(), queryrecord.Database{Driver: "no-such-driver", DSN: "dsn"}, "", "")
	assert.Error(t, err)
}

func TestRenderValue(t *testing.T) {
	ts := time.Date(2026, 8, 23, 10, 30, 0, 0, time.UTC)

	cases := []struct {
		in   any
		want string
	}{
		{in: nil, want: ""},
		{in: "plain", want: "plain"},
		{in: []byte("bytes"), want: "bytes"},
		{in: int64(42), want: "42"},
		{in: float64(2.5), want: "2.5"},
		{in: float64(1e6), want: "1000000"},
		{in: true, want: "true"},
		{in: ts, want: "2026-08-23T10:30:00Z"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, renderValue(tc.in), "%v", tc.in)
	}
}
