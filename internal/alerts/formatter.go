package alerts

import (
	"fmt"
	"time"

	"github.com/disasterwatch/disasterwatch/internal/geo"
	"github.com/disasterwatch/disasterwatch/internal/reports"
	"github.com/disasterwatch/disasterwatch/internal/timefmt"
)

// Status severity colors
const (
	ColorActive        = "#DC2626" // Red
	ColorInvestigating = "#D97706" // Amber
	ColorResolved      = "#16A34A" // Green
	ColorSuccess       = "#16A34A"
	ColorError         = "#DC2626"
	ColorInfo          = "#2563EB" // Blue
	ColorUnknown       = "#6B7280" // Gray
)

// TypeEmoji returns the emoji for a disaster type.
func TypeEmoji(t reports.DisasterType) string {
	switch t {
	case reports.TypeFlood:
		return "🌊"
	case reports.TypeFire:
		return "🔥"
	case reports.TypeAccident:
		return "🚑"
	case reports.TypeCollapse:
		return "🏚️"
	default:
		return "⚠️"
	}
}

// TypeDisplayName returns the human-readable name for a disaster type.
func TypeDisplayName(t reports.DisasterType) string {
	switch t {
	case reports.TypeFlood:
		return "Flood"
	case reports.TypeFire:
		return "Fire"
	case reports.TypeAccident:
		return "Accident"
	case reports.TypeCollapse:
		return "Building Collapse"
	default:
		return "Incident"
	}
}

// StatusColor returns the severity color for a report status.
func StatusColor(s reports.Status) string {
	switch s {
	case reports.StatusActive:
		return ColorActive
	case reports.StatusInvestigating:
		return ColorInvestigating
	case reports.StatusResolved:
		return ColorResolved
	default:
		return ColorUnknown
	}
}

// Rendered is the display form of an alert: the alert itself plus derived
// presentation strings computed at render time.
type Rendered struct {
	Alert
	Emoji         string `json:"emoji,omitempty"`
	Color         string `json:"color"`
	DistanceLabel string `json:"distanceLabel,omitempty"`
	TimeLabel     string `json:"timeLabel,omitempty"`
}

// Render derives the display form of an alert. For report-linked alerts,
// styling follows the report's CURRENT status (the current argument, falling
// back to the snapshot captured at enqueue time), while PreviousStatus stays
// pinned to what was observed when the alert was raised. Titles and messages
// left empty at enqueue time are filled in here.
func Render(a Alert, current *reports.Report, now time.Time) Rendered {
	r := Rendered{Alert: a}

	switch a.Kind {
	case KindSuccess:
		r.Color = ColorSuccess
		return r
	case KindError:
		r.Color = ColorError
		return r
	case KindInfo:
		r.Color = ColorInfo
		return r
	}

	report := a.Report
	if report == nil {
		r.Color = ColorUnknown
		return r
	}

	status := report.Status
	if current != nil {
		status = current.Status
	}

	r.Emoji = TypeEmoji(report.Type)
	r.Color = StatusColor(status)
	r.TimeLabel = timefmt.Format(report.Timestamp, now)

	if a.Distance != nil {
		r.DistanceLabel = fmt.Sprintf("%s away", geo.FormatDistance(a.Distance))
	}

	switch a.Kind {
	case KindNewReport:
		if r.Title == "" {
			r.Title = fmt.Sprintf("%s Alert", TypeDisplayName(report.Type))
		}
		if r.Message == "" {
			r.Message = report.Description
		}
	case KindStatusUpdate:
		if r.Title == "" {
			r.Title = fmt.Sprintf("%s Status Updated", TypeDisplayName(report.Type))
		}
		if r.Message == "" {
			r.Message = fmt.Sprintf("Status changed from %s to %s", a.PreviousStatus, status)
		}
	}

	return r
}
