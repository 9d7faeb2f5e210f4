// Package alerts holds the user-facing notification model and the queue that
// bounds how many of them are visible at a time.
package alerts

import (
	"time"

	"github.com/disasterwatch/disasterwatch/internal/reports"
)

// Kind classifies an alert. Report-linked kinds carry a report snapshot;
// the free-form kinds are pushed by unrelated flows (form submissions,
// poll failures) through the same queue.
type Kind string

const (
	KindNewReport    Kind = "new_report"
	KindStatusUpdate Kind = "status_update"
	KindSuccess      Kind = "success"
	KindError        Kind = "error"
	KindInfo         Kind = "info"
)

// Valid reports whether the kind is known.
func (k Kind) Valid() bool {
	switch k {
	case KindNewReport, KindStatusUpdate, KindSuccess, KindError, KindInfo:
		return true
	}
	return false
}

// Alert is a single pending or dismissed notification. The report field is a
// snapshot taken at alert time; display styling is derived from the report's
// current status at render time, but PreviousStatus is pinned here so the
// transition message survives later changes.
type Alert struct {
	ID             string          `json:"id"`
	Kind           Kind            `json:"kind"`
	Report         *reports.Report `json:"report,omitempty"`
	Distance       *float64        `json:"distance,omitempty"`
	PreviousStatus reports.Status  `json:"previousStatus,omitempty"`
	Title          string          `json:"title,omitempty"`
	Message        string          `json:"message,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	Dismissed      bool            `json:"dismissed"`
}

// NewReportAlert builds a proximity alert for a newly sighted nearby report.
func NewReportAlert(r reports.Report, distanceKm float64) Alert {
	snapshot := r
	d := distanceKm
	return Alert{
		Kind:     KindNewReport,
		Report:   &snapshot,
		Distance: &d,
	}
}

// StatusUpdateAlert builds an alert for a report whose status changed
// between two poll snapshots.
func StatusUpdateAlert(r reports.Report, previous reports.Status) Alert {
	snapshot := r
	return Alert{
		Kind:           KindStatusUpdate,
		Report:         &snapshot,
		PreviousStatus: previous,
	}
}

// Notice builds a free-form alert for the showAlert injection point.
func Notice(kind Kind, title, message string) Alert {
	return Alert{
		Kind:    kind,
		Title:   title,
		Message: message,
	}
}
