package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestTrackerLifecycle(t *testing.T) {
	tracker := NewTracker()

	tracker.Start("client-1")

	e, found := tracker.Get("client-1")
	require.True(t, found)
	assert.Equal(t, StatusCounting, e.Status)
	assert.Equal(t, TotalUnknown, e.Total)
	assert.EqualValues(t, 0, e.Processed)

	tracker.SetTotal("client-1", 25000)
	tracker.MarkExporting("client-1")

	e, _ = tracker.Get("client-1")
	assert.Equal(t, StatusExporting, e.Status)
	assert.EqualValues(t, 25000, e.Total)

	tracker.SetProcessed("client-1", 10000)
	tracker.SetProcessed("client-1", 20000)

	e, _ = tracker.Get("client-1")
	assert.EqualValues(t, 20000, e.Processed)

	tracker.Complete("client-1")

	e, _ = tracker.Get("client-1")
	assert.Equal(t, StatusCompleted, e.Status)
	assert.True(t, e.Status.Terminal())
}

func TestTrackerStartOverwritesStaleEntry(t *testing.T) {
	tracker := NewTracker()

	tracker.Start("client-1")
	tracker.SetTotal("client-1", 100)
	tracker.MarkExporting("client-1")
	tracker.SetProcessed("client-1", 100)
	tracker.Fail("client-1")

	tracker.Start("client-1")

	e, found := tracker.Get("client-1")
	require.True(t, found)
	assert.Equal(t, StatusCounting, e.Status)
	assert.Equal(t, TotalUnknown, e.Total)
	assert.EqualValues(t, 0, e.Processed)
}

func TestTrackerIgnoresUnknownClients(t *testing.T) {
	tracker := NewTracker()

	tracker.SetProcessed("ghost", 42)
	tracker.Complete("ghost")

	_, found := tracker.Get("ghost")
	assert.False(t, found)
	assert.Zero(t, tracker.Len())
}

func TestTrackerEvictStale(t *testing.T) {
	tracker := NewTracker()

	tracker.Start("finished")
	tracker.Complete("finished")

	tracker.Start("failed")
	tracker.Fail("failed")

	tracker.Start("running")
	tracker.MarkExporting("running")

	// All entries were touched just now, nothing is older than an hour.
	assert.Zero(t, tracker.EvictStale(time.Hour))
	assert.Equal(t, 3, tracker.Len())

	evicted := tracker.EvictStale(0)
	assert.Equal(t, 2, evicted)

	_, found := tracker.Get("running")
	assert.True(t, found)
	assert.Equal(t, 1, tracker.Len())
}

func TestTrackerConcurrentReadersAndWriters(t *testing.T) {
	tracker := NewTracker()
	tracker.Start("client-1")
	tracker.MarkExporting("client-1")

	var g errgroup.Group

	g.Go(func() error {
		for i := int64(1); i <= 1000; i++ {
			tracker.SetProcessed("client-1", i)
		}
		tracker.Complete("client-1")

		return nil
	})

	for r := 0; r < 4; r++ {
		g.Go(func() error {
			var last int64
			for i := 0; i < 1000; i++ {
				e, found := tracker.Get("client-1")
				if !found {
					continue
				}

				// A single writer updates the entry, reads must be monotonic.
				assert.GreaterOrEqual(t, e.Processed, last)
				last = e.Processed
			}

			return nil
		})
	}

	require.NoError(t, g.Wait())

	e, _ := tracker.Get("client-1")
	assert.Equal(t, StatusCompleted, e.Status)
	assert.EqualValues(t, 1000, e.Processed)
}
