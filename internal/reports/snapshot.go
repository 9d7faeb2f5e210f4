package reports

import (
	"sync"
	"time"
)

// SnapshotStore holds the most recent report collection. The poller owns
// writes; all derived components read copies and never mutate reports in
// place.
type SnapshotStore struct {
	mu        sync.RWMutex
	reports   []Report
	updatedAt time.Time
}

// NewSnapshotStore creates an empty snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{}
}

// Set replaces the snapshot wholesale.
func (s *SnapshotStore) Set(rs []Report) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reports = make([]Report, len(rs))
	copy(s.reports, rs)
	s.updatedAt = time.Now()
}

// Reports returns a copy of the current snapshot.
func (s *SnapshotStore) Reports() []Report {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Report, len(s.reports))
	copy(out, s.reports)
	return out
}

// Get returns the report with the given id from the current snapshot.
func (s *SnapshotStore) Get(id string) (Report, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.reports {
		if r.ID == id {
			return r, true
		}
	}
	return Report{}, false
}

// UpdatedAt returns when the snapshot was last replaced. Zero until the
// first successful poll.
func (s *SnapshotStore) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}
