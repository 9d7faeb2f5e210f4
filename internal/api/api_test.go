package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/apex/log"
	"github.com/apex/log/handlers/discard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/disasterwatch/disasterwatch/internal/alerts"
	"github.com/disasterwatch/disasterwatch/internal/geo"
	"github.com/disasterwatch/disasterwatch/internal/location"
	"github.com/disasterwatch/disasterwatch/internal/reports"
	"github.com/disasterwatch/disasterwatch/internal/timefmt"
)

func testLogger() log.Interface {
	return &log.Logger{Handler: discard.New(), Level: log.DebugLevel}
}

// fakeUpstream implements Upstream for handler tests.
type fakeUpstream struct {
	updateErr  error
	lastStatus reports.Status
	summary    *reports.AISummary
	summaryErr error
}

func (f *fakeUpstream) UpdateStatus(_ context.Context, _ string, status reports.Status, _ string) (*reports.StatusUpdateResult, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	f.lastStatus = status
	return &reports.StatusUpdateResult{Success: true}, nil
}

func (f *fakeUpstream) FetchAISummary(_ context.Context) (*reports.AISummary, error) {
	if f.summaryErr != nil {
		return nil, f.summaryErr
	}
	return f.summary, nil
}

// fakeRefresher counts refresh requests.
type fakeRefresher struct {
	refreshes int
}

func (f *fakeRefresher) Refresh() { f.refreshes++ }

type fixture struct {
	handler   *Handler
	snapshots *reports.SnapshotStore
	locations *location.Store
	queue     *alerts.Queue
	upstream  *fakeUpstream
	refresher *fakeRefresher
	server    *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		snapshots: reports.NewSnapshotStore(),
		locations: location.NewStore(),
		queue:     alerts.NewQueue(time.Hour, testLogger()),
		upstream:  &fakeUpstream{},
		refresher: &fakeRefresher{},
	}
	freshness := timefmt.NewLabel(time.Now().UTC().Format(time.RFC3339))
	f.handler = NewHandler(f.snapshots, f.locations, f.queue, f.upstream, f.refresher, freshness, 5, testLogger())
	f.server = httptest.NewServer(f.handler.Router())

	t.Cleanup(func() {
		f.server.Close()
		f.queue.Close()
		freshness.Close()
	})

	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()

	var req *http.Request
	var err error
	if body == "" {
		req, err = http.NewRequest(method, f.server.URL+path, nil)
	} else {
		req, err = http.NewRequest(method, f.server.URL+path, strings.NewReader(body))
	}
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
}

func setLagos(f *fixture) {
	f.locations.Set(location.UserLocation{Coordinates: geo.Coordinates{Lat: 6.5244, Lng: 3.3792}})
}

func TestLocationEndpoint(t *testing.T) {
	t.Run("valid location is accepted", func(t *testing.T) {
		f := newFixture(t)

		resp := f.do(t, http.MethodPut, "/api/v1/location", `{"lat":6.5244,"lng":3.3792,"accuracy":12.5}`)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		resp.Body.Close()

		loc := f.locations.Current()
		require.NotNil(t, loc)
		assert.Equal(t, 6.5244, loc.Lat)
		require.NotNil(t, loc.Accuracy)
		assert.Equal(t, 12.5, *loc.Accuracy)
	})

	t.Run("out-of-range coordinates are rejected", func(t *testing.T) {
		f := newFixture(t)

		resp := f.do(t, http.MethodPut, "/api/v1/location", `{"lat":91,"lng":0}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		resp.Body.Close()

		assert.Nil(t, f.locations.Current())
	})

	t.Run("malformed body is rejected", func(t *testing.T) {
		f := newFixture(t)

		resp := f.do(t, http.MethodPut, "/api/v1/location", `{`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		resp.Body.Close()
	})
}

func TestNearbyEndpoint(t *testing.T) {
	reportSet := []reports.Report{
		{ID: "close", Type: reports.TypeFlood, Location: geo.Coordinates{Lat: 6.5334, Lng: 3.3792}, Status: reports.StatusActive},
		{ID: "far", Type: reports.TypeFire, Location: geo.Coordinates{Lat: 6.7044, Lng: 3.3792}, Status: reports.StatusActive},
	}

	t.Run("without a location the list is empty", func(t *testing.T) {
		f := newFixture(t)
		f.snapshots.Set(reportSet)

		resp := f.do(t, http.MethodGet, "/api/v1/reports/nearby", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			Reports []reports.NearbyReport `json:"reports"`
		}
		decodeBody(t, resp, &body)
		assert.Empty(t, body.Reports)
	})

	t.Run("default radius filters distant reports", func(t *testing.T) {
		f := newFixture(t)
		f.snapshots.Set(reportSet)
		setLagos(f)

		resp := f.do(t, http.MethodGet, "/api/v1/reports/nearby", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			Reports []reports.NearbyReport `json:"reports"`
		}
		decodeBody(t, resp, &body)
		require.Len(t, body.Reports, 1)
		assert.Equal(t, "close", body.Reports[0].ID)
	})

	t.Run("radius override widens the filter", func(t *testing.T) {
		f := newFixture(t)
		f.snapshots.Set(reportSet)
		setLagos(f)

		resp := f.do(t, http.MethodGet, "/api/v1/reports/nearby?radius=25", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			Reports []reports.NearbyReport `json:"reports"`
		}
		decodeBody(t, resp, &body)
		assert.Len(t, body.Reports, 2)
	})

	t.Run("bad radius is rejected", func(t *testing.T) {
		f := newFixture(t)

		resp := f.do(t, http.MethodGet, "/api/v1/reports/nearby?radius=-1", "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		resp.Body.Close()
	})
}

func TestReportsEndpoint(t *testing.T) {
	t.Run("reports carry distance and time labels", func(t *testing.T) {
		f := newFixture(t)
		f.snapshots.Set([]reports.Report{{
			ID:        "r1",
			Type:      reports.TypeFlood,
			Location:  geo.Coordinates{Lat: 6.5334, Lng: 3.3792},
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Status:    reports.StatusActive,
		}})
		setLagos(f)

		resp := f.do(t, http.MethodGet, "/api/v1/reports", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			Reports []struct {
				ID            string   `json:"id"`
				Distance      *float64 `json:"distance"`
				DistanceLabel string   `json:"distanceLabel"`
				TimeLabel     string   `json:"timeLabel"`
				TypeName      string   `json:"typeName"`
				Editable      bool     `json:"editable"`
			} `json:"reports"`
			Total          int    `json:"total"`
			UpdatedAtLabel string `json:"updatedAtLabel"`
		}
		decodeBody(t, resp, &body)

		require.Len(t, body.Reports, 1)
		assert.Equal(t, 1, body.Total)
		assert.Equal(t, "Just now", body.UpdatedAtLabel)
		require.NotNil(t, body.Reports[0].Distance)
		assert.Equal(t, "1.0km", body.Reports[0].DistanceLabel)
		assert.Equal(t, "Just now", body.Reports[0].TimeLabel)
		assert.Equal(t, "Flood", body.Reports[0].TypeName)
		assert.False(t, body.Reports[0].Editable)
	})

	t.Run("unknown location renders unknown distances", func(t *testing.T) {
		f := newFixture(t)
		f.snapshots.Set([]reports.Report{{ID: "r1", Type: reports.TypeFire, Status: reports.StatusActive}})

		resp := f.do(t, http.MethodGet, "/api/v1/reports", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			Reports []struct {
				DistanceLabel string `json:"distanceLabel"`
			} `json:"reports"`
		}
		decodeBody(t, resp, &body)
		require.Len(t, body.Reports, 1)
		assert.Equal(t, "Unknown", body.Reports[0].DistanceLabel)
	})

	t.Run("reports by the session reporter are editable", func(t *testing.T) {
		f := newFixture(t)
		f.handler.SetReporterID("me")
		f.snapshots.Set([]reports.Report{
			{ID: "mine", ReporterID: "me", Status: reports.StatusActive},
			{ID: "theirs", ReporterID: "them", Status: reports.StatusActive},
		})

		resp := f.do(t, http.MethodGet, "/api/v1/reports", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			Reports []struct {
				ID       string `json:"id"`
				Editable bool   `json:"editable"`
			} `json:"reports"`
		}
		decodeBody(t, resp, &body)
		require.Len(t, body.Reports, 2)
		assert.True(t, body.Reports[0].Editable)
		assert.False(t, body.Reports[1].Editable)
	})
}

func TestAlertEndpoints(t *testing.T) {
	t.Run("no pending alert yields no content", func(t *testing.T) {
		f := newFixture(t)

		resp := f.do(t, http.MethodGet, "/api/v1/alerts/current", "")
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("injected alert becomes the visible alert", func(t *testing.T) {
		f := newFixture(t)

		resp := f.do(t, http.MethodPost, "/api/v1/alerts", `{"kind":"success","title":"Report Submitted","message":"Your report was created"}`)
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		var created struct {
			ID string `json:"id"`
		}
		decodeBody(t, resp, &created)
		require.NotEmpty(t, created.ID)

		resp = f.do(t, http.MethodGet, "/api/v1/alerts/current", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var rendered alerts.Rendered
		decodeBody(t, resp, &rendered)
		assert.Equal(t, created.ID, rendered.ID)
		assert.Equal(t, alerts.KindSuccess, rendered.Kind)
		assert.Equal(t, alerts.ColorSuccess, rendered.Color)
	})

	t.Run("report-linked kinds cannot be injected", func(t *testing.T) {
		f := newFixture(t)

		resp := f.do(t, http.MethodPost, "/api/v1/alerts", `{"kind":"new_report","message":"spoofed"}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("alert styling follows the current report status", func(t *testing.T) {
		f := newFixture(t)

		report := reports.Report{ID: "r1", Type: reports.TypeFlood, Status: reports.StatusActive}
		f.queue.Enqueue(alerts.NewReportAlert(report, 1.0))

		// The report has since been resolved in a newer snapshot
		resolved := report
		resolved.Status = reports.StatusResolved
		f.snapshots.Set([]reports.Report{resolved})

		resp := f.do(t, http.MethodGet, "/api/v1/alerts/current", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var rendered alerts.Rendered
		decodeBody(t, resp, &rendered)
		assert.Equal(t, alerts.ColorResolved, rendered.Color)
	})

	t.Run("dismiss is idempotent", func(t *testing.T) {
		f := newFixture(t)
		id := f.queue.Enqueue(alerts.Notice(alerts.KindInfo, "x", "y"))

		resp := f.do(t, http.MethodDelete, "/api/v1/alerts/"+id, "")
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		resp.Body.Close()

		resp = f.do(t, http.MethodDelete, "/api/v1/alerts/"+id, "")
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		resp.Body.Close()

		assert.Nil(t, f.queue.Visible())
	})
}

func TestStatusUpdateEndpoint(t *testing.T) {
	t.Run("successful update triggers a refresh", func(t *testing.T) {
		f := newFixture(t)

		resp := f.do(t, http.MethodPatch, "/api/v1/reports/r1/status", `{"status":"resolved","reporterId":"me"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()

		assert.Equal(t, reports.StatusResolved, f.upstream.lastStatus)
		assert.Equal(t, 1, f.refresher.refreshes)
	})

	t.Run("upstream failure surfaces an error alert", func(t *testing.T) {
		f := newFixture(t)
		f.upstream.updateErr = errors.New("upstream down")

		resp := f.do(t, http.MethodPatch, "/api/v1/reports/r1/status", `{"status":"resolved","reporterId":"me"}`)
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
		resp.Body.Close()

		visible := f.queue.Visible()
		require.NotNil(t, visible)
		assert.Equal(t, alerts.KindError, visible.Kind)
		assert.Zero(t, f.refresher.refreshes)
	})

	t.Run("unknown status is rejected before it reaches upstream", func(t *testing.T) {
		f := newFixture(t)

		resp := f.do(t, http.MethodPatch, "/api/v1/reports/r1/status", `{"status":"closed","reporterId":"me"}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		resp.Body.Close()
	})
}

func TestSummaryEndpoint(t *testing.T) {
	t.Run("passes the summary through", func(t *testing.T) {
		f := newFixture(t)
		f.upstream.summary = &reports.AISummary{Summary: "quiet day", Location: "Lagos"}

		resp := f.do(t, http.MethodGet, "/api/v1/summary", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var summary reports.AISummary
		decodeBody(t, resp, &summary)
		assert.Equal(t, "quiet day", summary.Summary)
	})

	t.Run("upstream failure maps to bad gateway", func(t *testing.T) {
		f := newFixture(t)
		f.upstream.summaryErr = errors.New("model offline")

		resp := f.do(t, http.MethodGet, "/api/v1/summary", "")
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
		resp.Body.Close()
	})
}

func TestHealthEndpoint(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodGet, "/api/v1/health", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	decodeBody(t, resp, &body)
	assert.Equal(t, "ok", body["status"])
}
