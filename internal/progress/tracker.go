// Package progress keeps per-client state of streaming exports so pollers
// can observe how far an export has advanced.
package progress

import (
	"sync"
	"time"
)

// Status of a streaming export as it is exposed to polling clients.
type Status string

const (
	StatusCounting  Status = "counting"
	StatusExporting Status = "exporting"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the export reached a final state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// TotalUnknown marks an entry whose total row count has not been determined.
const TotalUnknown int64 = -1

// Entry is a point-in-time snapshot of a streaming export.
type Entry struct {
	Processed int64
	Total     int64
	Status    Status
	UpdatedAt time.Time
}

// Tracker keeps export progress in memory, keyed by client id.
//
// It is safe for concurrent use: a single exporter goroutine updates an
// entry while any number of handlers read it.
type Tracker struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewTracker() *Tracker {
	return &Tracker{
		entries: make(map[string]Entry),
	}
}

// Start registers a fresh entry for the given client. A stale entry from a
// previous attempt is overwritten.
func (t *Tracker) Start(clientID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries[clientID] = Entry{
		Processed: 0,
		Total:     TotalUnknown,
		Status:    StatusCounting,
		UpdatedAt: time.Now(),
	}
}

// SetTotal records the expected number of rows.
func (t *Tracker) SetTotal(clientID string, total int64) {
	t.update(clientID, func(e *Entry) {
		e.Total = total
	})
}

// MarkExporting moves the entry from the counting phase to row streaming.
func (t *Tracker) MarkExporting(clientID string) {
	t.update(clientID, func(e *Entry) {
		e.Status = StatusExporting
	})
}

// SetProcessed records the cumulative number of exported rows.
func (t *Tracker) SetProcessed(clientID string, processed int64) {
	t.update(clientID, func(e *Entry) {
		e.Processed = processed
	})
}

// Complete marks the export as successfully finished.
func (t *Tracker) Complete(clientID string) {
	t.update(clientID, func(e *Entry) {
		e.Status = StatusCompleted
	})
}

// Fail marks the export as failed.
func (t *Tracker) Fail(clientID string) {
	t.update(clientID, func(e *Entry) {
		e.Status = StatusFailed
	})
}

// update applies fn to an existing entry. Updates for unknown clients are
// dropped so a finished and evicted export cannot be resurrected.
func (t *Tracker) update(clientID string, fn func(*Entry)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, found := t.entries[clientID]
	if !found {
		return
	}

	fn(&e)
	e.UpdatedAt = time.Now()

	t.entries[clientID] = e
}

// Get returns the current snapshot for the given client.
func (t *Tracker) Get(clientID string) (Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, found := t.entries[clientID]

	return e, found
}

// Len returns the number of tracked exports.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.entries)
}

// EvictStale drops terminal entries that have not been updated for the given
// retention period and returns the number of dropped entries. Entries of
// in-flight exports are never evicted.
func (t *Tracker) EvictStale(retention time.Duration) int {
	deadline := time.Now().Add(-retention)

	t.mu.Lock()
	defer t.mu.Unlock()

	evicted := 0
	for id, e := range t.entries {
		if e.Status.Terminal() && e.UpdatedAt.Before(deadline) {
			delete(t.entries, id)
			evicted++
		}
	}

	return evicted
}
