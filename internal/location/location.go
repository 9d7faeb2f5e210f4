// Package location tracks the user's current position as reported by the
// presentation layer.
package location

import (
	"sync"
	"time"

	"github.com/disasterwatch/disasterwatch/internal/geo"
)

// UserLocation is a single position fix. Each new fix supersedes the
// previous one wholesale; fixes are never merged.
type UserLocation struct {
	geo.Coordinates
	Accuracy  *float64 `json:"accuracy,omitempty"`
	Timestamp int64    `json:"timestamp"`
}

// Store holds the most recent position fix. Absence of a fix is a normal
// state, not an error: proximity alerting simply stays quiet until one
// arrives.
type Store struct {
	mu      sync.RWMutex
	current *UserLocation
}

// NewStore creates a store with no known location.
func NewStore() *Store {
	return &Store{}
}

// Set records a new position fix, stamping it with the capture instant if
// the caller left it unset.
func (s *Store) Set(loc UserLocation) {
	if loc.Timestamp == 0 {
		loc.Timestamp = time.Now().UnixMilli()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = &loc
}

// Current returns a copy of the latest fix, or nil if none has arrived.
func (s *Store) Current() *UserLocation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return nil
	}
	loc := *s.current
	return &loc
}

// Coordinates returns just the coordinates of the latest fix, or nil.
func (s *Store) Coordinates() *geo.Coordinates {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return nil
	}
	c := s.current.Coordinates
	return &c
}
