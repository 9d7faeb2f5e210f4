package reports

import (
	"encoding/json"

	"github.com/disasterwatch/disasterwatch/internal/geo"
)

// DisasterType identifies the category of a reported incident.
type DisasterType string

const (
	TypeFlood    DisasterType = "flood"
	TypeFire     DisasterType = "fire"
	TypeAccident DisasterType = "accident"
	TypeCollapse DisasterType = "collapse"
)

// Valid reports whether the type is one of the known categories.
func (t DisasterType) Valid() bool {
	switch t {
	case TypeFlood, TypeFire, TypeAccident, TypeCollapse:
		return true
	}
	return false
}

// Status is the lifecycle state of a report. Reports are created active and
// move between states through explicit status updates; no transition graph is
// enforced upstream.
type Status string

const (
	StatusActive        Status = "active"
	StatusInvestigating Status = "investigating"
	StatusResolved      Status = "resolved"
)

// Valid reports whether the status is one of the known states.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusInvestigating, StatusResolved:
		return true
	}
	return false
}

// Report is a single disaster report from the upstream API.
// The timestamp is kept verbatim as received; parsing and normalization
// happen at display time so malformed values degrade instead of failing
// the whole snapshot.
type Report struct {
	ID          string          `json:"id"`
	Type        DisasterType    `json:"type"`
	Description string          `json:"description"`
	Location    geo.Coordinates `json:"location"`
	Timestamp   string          `json:"timestamp"`
	Status      Status          `json:"status"`
	ImageURL    string          `json:"imageUrl,omitempty"`
	ReporterID  string          `json:"reporterId,omitempty"`
}

// ReportsResponse is the full report collection returned by one poll.
type ReportsResponse struct {
	Reports []Report `json:"reports"`
	Total   int      `json:"total"`
}

// UnmarshalJSON accepts both the documented {reports, total} shape and the
// upstream's paginated {results, count} shape.
func (r *ReportsResponse) UnmarshalJSON(data []byte) error {
	var wire struct {
		Reports []Report `json:"reports"`
		Total   int      `json:"total"`
		Results []Report `json:"results"`
		Count   int      `json:"count"`
	}

	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	if wire.Results != nil {
		r.Reports = wire.Results
		r.Total = wire.Count
		return nil
	}

	r.Reports = wire.Reports
	r.Total = wire.Total
	return nil
}

// AISummary is the AI-generated situation summary from the upstream API.
type AISummary struct {
	Summary     string `json:"summary"`
	Last24Hours struct {
		Floods    int `json:"floods"`
		Fires     int `json:"fires"`
		Accidents int `json:"accidents"`
		Collapses int `json:"collapses"`
	} `json:"last24Hours"`
	Location    string `json:"location"`
	GeneratedAt string `json:"generatedAt"`
}

// ReporterSession identifies the current reporter session. A report is
// editable only by its creator, matched by reporter id equality.
type ReporterSession struct {
	ReporterID    string `json:"reporter_id"`
	SessionActive bool   `json:"session_active"`
	Timestamp     string `json:"timestamp"`
}

// StatusUpdateResult is the upstream response to a status change request.
type StatusUpdateResult struct {
	Success bool    `json:"success"`
	Report  *Report `json:"report,omitempty"`
	Error   string  `json:"error,omitempty"`
}
