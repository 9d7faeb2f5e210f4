// Package api exposes the service's derived state to the presentation layer
// over HTTP: the report list with distances, the nearby subset, the single
// visible alert, and the imperative dismiss/show actions.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/apex/log"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/disasterwatch/disasterwatch/internal/alerts"
	"github.com/disasterwatch/disasterwatch/internal/geo"
	"github.com/disasterwatch/disasterwatch/internal/location"
	"github.com/disasterwatch/disasterwatch/internal/reports"
	"github.com/disasterwatch/disasterwatch/internal/timefmt"
)

// Upstream is the slice of the reports client the API layer needs for
// passthrough operations.
type Upstream interface {
	UpdateStatus(ctx context.Context, reportID string, status reports.Status, reporterID string) (*reports.StatusUpdateResult, error)
	FetchAISummary(ctx context.Context) (*reports.AISummary, error)
}

// Refresher triggers an immediate report poll, used after a successful
// mutation so the change shows up without waiting for the next interval.
type Refresher interface {
	Refresh()
}

// Handler serves the HTTP API.
type Handler struct {
	snapshots  *reports.SnapshotStore
	locations  *location.Store
	queue      *alerts.Queue
	upstream   Upstream
	refresher  Refresher
	freshness  *timefmt.Label
	radiusKm   float64
	reporterID string
	validate   *validator.Validate
	logger     log.Interface
}

// NewHandler creates the API handler over the given components.
func NewHandler(
	snapshots *reports.SnapshotStore,
	locations *location.Store,
	queue *alerts.Queue,
	upstream Upstream,
	refresher Refresher,
	freshness *timefmt.Label,
	radiusKm float64,
	logger log.Interface,
) *Handler {
	return &Handler{
		snapshots: snapshots,
		locations: locations,
		queue:     queue,
		upstream:  upstream,
		refresher: refresher,
		freshness: freshness,
		radiusKm:  radiusKm,
		validate:  validator.New(),
		logger:    logger,
	}
}

// SetReporterID records the session reporter identity used to mark reports
// editable by their creator.
func (h *Handler) SetReporterID(id string) {
	h.reporterID = id
}

// Router builds the mux router for the API.
func (h *Handler) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(h.requestLogging)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/reports", h.handleGetReports).Methods(http.MethodGet)
	api.HandleFunc("/reports/nearby", h.handleGetNearby).Methods(http.MethodGet)
	api.HandleFunc("/reports/{id}/status", h.handleUpdateStatus).Methods(http.MethodPatch)
	api.HandleFunc("/alerts/current", h.handleCurrentAlert).Methods(http.MethodGet)
	api.HandleFunc("/alerts", h.handleShowAlert).Methods(http.MethodPost)
	api.HandleFunc("/alerts/{id}", h.handleDismissAlert).Methods(http.MethodDelete)
	api.HandleFunc("/location", h.handlePutLocation).Methods(http.MethodPut)
	api.HandleFunc("/summary", h.handleGetSummary).Methods(http.MethodGet)
	api.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)

	return router
}

// requestLogging logs each request with its duration.
func (h *Handler) requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		h.logger.WithFields(log.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start).String(),
		}).Debug("Request handled")
	})
}

// reportView is a report annotated for display.
type reportView struct {
	reports.Report
	Distance      *float64 `json:"distance"`
	DistanceLabel string   `json:"distanceLabel"`
	TimeLabel     string   `json:"timeLabel"`
	TimeDetail    string   `json:"timeDetail"`
	TypeName      string   `json:"typeName"`
	Emoji         string   `json:"emoji"`
	Editable      bool     `json:"editable"`
}

func (h *Handler) reportViews(rs []reports.Report, loc *geo.Coordinates) []reportView {
	now := time.Now()
	distances := reports.WithDistances(loc, rs)

	views := make([]reportView, len(rs))
	for i, r := range rs {
		views[i] = reportView{
			Report:        r,
			Distance:      distances[i],
			DistanceLabel: geo.FormatDistance(distances[i]),
			TimeLabel:     timefmt.Format(r.Timestamp, now),
			TimeDetail:    timefmt.FormatDetailed(r.Timestamp),
			TypeName:      alerts.TypeDisplayName(r.Type),
			Emoji:         alerts.TypeEmoji(r.Type),
			Editable:      h.reporterID != "" && r.ReporterID == h.reporterID,
		}
	}
	return views
}

func (h *Handler) handleGetReports(w http.ResponseWriter, r *http.Request) {
	rs := h.snapshots.Reports()
	views := h.reportViews(rs, h.locations.Coordinates())

	respondJSON(w, http.StatusOK, map[string]any{
		"reports":        views,
		"total":          len(views),
		"updatedAt":      h.snapshots.UpdatedAt(),
		"updatedAtLabel": h.freshness.Value(),
	})
}

func (h *Handler) handleGetNearby(w http.ResponseWriter, r *http.Request) {
	radius := h.radiusKm
	if raw := r.URL.Query().Get("radius"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed <= 0 {
			respondError(w, http.StatusBadRequest, "radius must be a positive number")
			return
		}
		radius = parsed
	}

	loc := h.locations.Coordinates()
	nearby := reports.Nearby(loc, h.snapshots.Reports(), radius)
	if nearby == nil {
		nearby = []reports.NearbyReport{}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"reports":  nearby,
		"radiusKm": radius,
	})
}

// statusUpdateRequest mirrors the upstream status change payload.
type statusUpdateRequest struct {
	Status     string `json:"status" validate:"required,oneof=active investigating resolved"`
	ReporterID string `json:"reporterId" validate:"required"`
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	reportID := mux.Vars(r)["id"]

	var req statusUpdateRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.upstream.UpdateStatus(r.Context(), reportID, reports.Status(req.Status), req.ReporterID)
	if err != nil {
		h.logger.WithError(err).WithField("reportId", reportID).Error("Status update failed")
		h.queue.Enqueue(alerts.Notice(alerts.KindError, "Update Failed", "Could not update the report status"))
		respondError(w, http.StatusBadGateway, "status update failed")
		return
	}

	// Pick up the change without waiting for the next poll interval
	h.refresher.Refresh()

	respondJSON(w, http.StatusOK, result)
}

func (h *Handler) handleCurrentAlert(w http.ResponseWriter, r *http.Request) {
	visible := h.queue.Visible()
	if visible == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	var current *reports.Report
	if visible.Report != nil {
		if latest, ok := h.snapshots.Get(visible.Report.ID); ok {
			current = &latest
		}
	}

	respondJSON(w, http.StatusOK, alerts.Render(*visible, current, time.Now()))
}

// showAlertRequest is the injection point payload for free-form alerts.
type showAlertRequest struct {
	Kind    string `json:"kind" validate:"required,oneof=success error info"`
	Title   string `json:"title" validate:"max=200"`
	Message string `json:"message" validate:"required,max=500"`
}

func (h *Handler) handleShowAlert(w http.ResponseWriter, r *http.Request) {
	var req showAlertRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	id := h.queue.Enqueue(alerts.Notice(alerts.Kind(req.Kind), req.Title, req.Message))

	respondJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (h *Handler) handleDismissAlert(w http.ResponseWriter, r *http.Request) {
	h.queue.Dismiss(mux.Vars(r)["id"])
	w.WriteHeader(http.StatusNoContent)
}

// locationRequest is a position fix from the presentation layer. Coordinate
// ranges are enforced here, at the ingestion boundary, and trusted downstream.
type locationRequest struct {
	Lat      float64  `json:"lat" validate:"gte=-90,lte=90"`
	Lng      float64  `json:"lng" validate:"gte=-180,lte=180"`
	Accuracy *float64 `json:"accuracy" validate:"omitempty,gte=0"`
}

func (h *Handler) handlePutLocation(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	h.locations.Set(location.UserLocation{
		Coordinates: geo.Coordinates{Lat: req.Lat, Lng: req.Lng},
		Accuracy:    req.Accuracy,
	})

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.upstream.FetchAISummary(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Summary fetch failed")
		respondError(w, http.StatusBadGateway, "summary unavailable")
		return
	}

	respondJSON(w, http.StatusOK, summary)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "disasterwatch",
	})
}

// decodeAndValidate decodes the request body into dst and runs validation,
// writing a 400 response on failure.
func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}

	if err := h.validate.Struct(dst); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return false
	}

	return true
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
