package watch

import (
	"sync"
	"time"

	"github.com/apex/log"

	"github.com/disasterwatch/disasterwatch/internal/reports"
)

// StatusUpdate records one observed status transition on a report.
type StatusUpdate struct {
	ReportID       string         `json:"reportId"`
	PreviousStatus reports.Status `json:"previousStatus"`
	NewStatus      reports.Status `json:"newStatus"`
	Timestamp      string         `json:"timestamp"`

	// observedAt is the wall-clock instant the transition was detected,
	// used for retention pruning.
	observedAt time.Time
}

// StatusChangeDetector diffs consecutive poll snapshots to detect status
// transitions per report id. Reports absent from the previous snapshot never
// produce an update; first sightings are the seen tracker's job. Detected
// updates are kept in a rolling history bounded by a retention window.
type StatusChangeDetector struct {
	mu       sync.Mutex
	snapshot map[string]reports.Status
	updates  []StatusUpdate

	retention     time.Duration
	pruneInterval time.Duration
	logger        log.Interface
	now           func() time.Time

	stopPrune chan struct{}
	pruneDone chan struct{}
	running   bool
}

// NewStatusChangeDetector creates a detector whose update history is pruned
// of records older than retention, checked every pruneInterval.
func NewStatusChangeDetector(retention, pruneInterval time.Duration, logger log.Interface) *StatusChangeDetector {
	return &StatusChangeDetector{
		snapshot:      make(map[string]reports.Status),
		retention:     retention,
		pruneInterval: pruneInterval,
		logger:        logger,
		now:           time.Now,
	}
}

// Start begins the periodic pruning of the update history.
func (d *StatusChangeDetector) Start() {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return
	}
	d.running = true
	d.stopPrune = make(chan struct{})
	d.pruneDone = make(chan struct{})
	d.mu.Unlock()

	go d.pruneLoop()
}

// Stop halts pruning and waits for the loop to exit.
func (d *StatusChangeDetector) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	stop := d.stopPrune
	done := d.pruneDone
	d.mu.Unlock()

	close(stop)
	<-done
}

// Diff compares the given snapshot against the previous one and returns the
// transitions found. The stored snapshot is swapped wholesale only after
// diffing completes, so each tick's diff always compares against the
// immediately prior tick.
func (d *StatusChangeDetector) Diff(rs []reports.Report) []StatusUpdate {
	d.mu.Lock()
	defer d.mu.Unlock()

	current := make(map[string]reports.Status, len(rs))
	var found []StatusUpdate

	for _, r := range rs {
		current[r.ID] = r.Status

		previous, known := d.snapshot[r.ID]
		if !known {
			// First sighting: new-report alerting is not this detector's job
			continue
		}

		if previous != r.Status {
			found = append(found, StatusUpdate{
				ReportID:       r.ID,
				PreviousStatus: previous,
				NewStatus:      r.Status,
				Timestamp:      r.Timestamp,
				observedAt:     d.now(),
			})
		}
	}

	d.snapshot = current
	d.updates = append(d.updates, found...)

	if len(found) > 0 {
		d.logger.WithField("count", len(found)).Debug("Detected status transitions")
	}

	return found
}

// Updates returns a copy of the rolling update history.
func (d *StatusChangeDetector) Updates() []StatusUpdate {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]StatusUpdate, len(d.updates))
	copy(out, d.updates)
	return out
}

// pruneLoop periodically drops updates past the retention window.
func (d *StatusChangeDetector) pruneLoop() {
	ticker := time.NewTicker(d.pruneInterval)
	defer ticker.Stop()
	defer close(d.pruneDone)

	for {
		select {
		case <-ticker.C:
			d.prune()
		case <-d.stopPrune:
			return
		}
	}
}

// prune removes updates observed longer ago than the retention window.
func (d *StatusChangeDetector) prune() {
	d.mu.Lock()
	defer d.mu.Unlock()

	cutoff := d.now().Add(-d.retention)
	kept := d.updates[:0]
	expired := 0

	for _, u := range d.updates {
		if u.observedAt.After(cutoff) {
			kept = append(kept, u)
		} else {
			expired++
		}
	}
	d.updates = kept

	if expired > 0 {
		d.logger.WithFields(log.Fields{
			"expired":   expired,
			"remaining": len(d.updates),
		}).Debug("Pruned expired status updates")
	}
}
