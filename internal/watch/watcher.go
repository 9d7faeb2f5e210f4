package watch

import (
	"github.com/apex/log"

	"github.com/disasterwatch/disasterwatch/internal/alerts"
	"github.com/disasterwatch/disasterwatch/internal/geo"
	"github.com/disasterwatch/disasterwatch/internal/reports"
)

// AlertSink accepts alerts produced by the watcher.
type AlertSink interface {
	Enqueue(alerts.Alert) string
}

// LocationSource provides the user's current coordinates, or nil when no
// position fix exists.
type LocationSource interface {
	Coordinates() *geo.Coordinates
}

// Watcher runs the per-snapshot alerting pipeline. Within one synchronous
// pass, seen marking happens before any enqueue, and the detector's snapshot
// swap happens inside Diff after the comparison, so ordering between ticks
// is never mixed.
type Watcher struct {
	locations  LocationSource
	sink       AlertSink
	seen       *SeenTracker
	updateSeen *SeenTracker
	detector   *StatusChangeDetector
	radiusKm   float64
	logger     log.Interface
}

// NewWatcher wires the pipeline. The two trackers are independent: one
// gates new-report alerts, the other gates status-update alerts.
func NewWatcher(locations LocationSource, sink AlertSink, detector *StatusChangeDetector, radiusKm float64, logger log.Interface) *Watcher {
	return &Watcher{
		locations:  locations,
		sink:       sink,
		seen:       NewSeenTracker(),
		updateSeen: NewSeenTracker(),
		detector:   detector,
		radiusKm:   radiusKm,
		logger:     logger,
	}
}

// HandleSnapshot processes one delivered poll snapshot.
func (w *Watcher) HandleSnapshot(rs []reports.Report) {
	loc := w.locations.Coordinates()

	w.alertNewReports(loc, rs)
	w.alertStatusChanges(loc, rs)
}

// alertNewReports marks every nearby report seen and raises a new-report
// alert for the last newly seen one. When a burst of reports becomes nearby
// in a single tick (typically after a connectivity gap), only one alert is
// raised; the rest are still marked seen so they never alert later.
func (w *Watcher) alertNewReports(loc *geo.Coordinates, rs []reports.Report) {
	nearby := reports.Nearby(loc, rs, w.radiusKm)
	if len(nearby) == 0 {
		return
	}

	var latest *reports.NearbyReport
	skipped := 0

	for i := range nearby {
		nr := &nearby[i]
		if nr.ID == "" {
			continue
		}

		if w.seen.Record(nr.ID) {
			if latest != nil {
				skipped++
			}
			latest = nr
		}
	}

	if latest == nil {
		return
	}

	if skipped > 0 {
		w.logger.WithField("skipped", skipped).Debug("Suppressed alerts for burst of new nearby reports")
	}

	w.sink.Enqueue(alerts.NewReportAlert(latest.Report, latest.Distance))

	w.logger.WithFields(log.Fields{
		"reportId": latest.ID,
		"distance": latest.Distance,
	}).Info("New nearby report alert raised")
}

// alertStatusChanges diffs the snapshot and converts transitions into alerts.
// A transition alerts only if the report is within the alert radius and its
// id has not produced a status alert before; only the first status change
// per report id ever alerts in a session.
func (w *Watcher) alertStatusChanges(loc *geo.Coordinates, rs []reports.Report) {
	// Diff runs every tick regardless of location so the snapshot always
	// advances.
	updates := w.detector.Diff(rs)
	if len(updates) == 0 || loc == nil {
		return
	}

	byID := make(map[string]reports.Report, len(rs))
	for _, r := range rs {
		byID[r.ID] = r
	}

	for _, u := range updates {
		r, ok := byID[u.ReportID]
		if !ok || !r.Location.Valid() {
			continue
		}

		if geo.DistanceKm(*loc, r.Location) > w.radiusKm {
			continue
		}

		if !w.updateSeen.Record(u.ReportID) {
			continue
		}

		w.sink.Enqueue(alerts.StatusUpdateAlert(r, u.PreviousStatus))

		w.logger.WithFields(log.Fields{
			"reportId":       u.ReportID,
			"previousStatus": string(u.PreviousStatus),
			"newStatus":      string(u.NewStatus),
		}).Info("Status update alert raised")
	}
}
