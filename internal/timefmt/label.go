package timefmt

import (
	"sync"
	"time"
)

// refreshInterval is how often a Label recomputes its relative string.
const refreshInterval = time.Minute

// Label is a self-refreshing relative-time string for a fixed timestamp.
// The rendered value recomputes once a minute and immediately whenever the
// timestamp changes. Close must be called to release the refresh loop.
type Label struct {
	mu        sync.Mutex
	timestamp string
	value     string

	now func() time.Time

	stopRefresh chan struct{}
	refreshDone chan struct{}
	closeOnce   sync.Once
}

// NewLabel creates a label for the given timestamp and starts its refresh loop.
func NewLabel(timestamp string) *Label {
	l := &Label{
		timestamp:   timestamp,
		now:         time.Now,
		stopRefresh: make(chan struct{}),
		refreshDone: make(chan struct{}),
	}
	l.value = Format(timestamp, l.now())

	go l.refreshLoop()

	return l
}

// Value returns the current rendered string.
func (l *Label) Value() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.value
}

// SetTimestamp replaces the underlying timestamp and recomputes immediately.
func (l *Label) SetTimestamp(timestamp string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.timestamp = timestamp
	l.value = Format(timestamp, l.now())
}

// refreshLoop recomputes the rendered value once per minute until closed.
func (l *Label) refreshLoop() {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()
	defer close(l.refreshDone)

	for {
		select {
		case <-ticker.C:
			l.refresh()
		case <-l.stopRefresh:
			return
		}
	}
}

// refresh recomputes the rendered value from the current clock.
func (l *Label) refresh() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.value = Format(l.timestamp, l.now())
}

// Close stops the refresh loop and waits for it to finish. Safe to call twice.
func (l *Label) Close() {
	l.closeOnce.Do(func() {
		close(l.stopRefresh)
		<-l.refreshDone
	})
}
