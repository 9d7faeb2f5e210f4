// Package watch contains the per-tick alerting pipeline: which reports are
// new, which changed status, and which of those become alerts.
package watch

import "sync"

// SeenTracker is a monotonically growing set of report ids. Once an id is
// recorded it stays recorded for the life of the process; the set resets
// only on restart. Each id transitions Unseen to Seen exactly once, even
// under overlapping poll deliveries.
type SeenTracker struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewSeenTracker creates an empty tracker.
func NewSeenTracker() *SeenTracker {
	return &SeenTracker{
		seen: make(map[string]struct{}),
	}
}

// Record atomically checks whether the id is new and marks it seen.
// Returns true exactly once per id.
func (t *SeenTracker) Record(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.seen[id]; exists {
		return false
	}

	t.seen[id] = struct{}{}
	return true
}

// Seen reports whether the id has been recorded.
func (t *SeenTracker) Seen(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, exists := t.seen[id]
	return exists
}

// Len returns the number of recorded ids.
func (t *SeenTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.seen)
}
