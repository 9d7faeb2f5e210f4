// Package app wires the service together and owns its lifecycle.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/apex/log"
	"github.com/pkg/errors"

	"github.com/disasterwatch/disasterwatch/internal/alerts"
	"github.com/disasterwatch/disasterwatch/internal/api"
	"github.com/disasterwatch/disasterwatch/internal/config"
	"github.com/disasterwatch/disasterwatch/internal/location"
	"github.com/disasterwatch/disasterwatch/internal/reports"
	"github.com/disasterwatch/disasterwatch/internal/timefmt"
	"github.com/disasterwatch/disasterwatch/internal/watch"
)

// App owns every long-lived component and tears them down deterministically.
type App struct {
	cfg    *config.Config
	logger log.Interface

	locations *location.Store
	snapshots *reports.SnapshotStore
	queue     *alerts.Queue
	detector  *watch.StatusChangeDetector
	watcher   *watch.Watcher
	client    *reports.Client
	poller    *reports.Poller
	freshness *timefmt.Label
	handler   *api.Handler
	server    *http.Server
}

// New builds the application from configuration. Nothing starts running
// until Start is called.
func New(cfg *config.Config, logger log.Interface) *App {
	a := &App{
		cfg:    cfg,
		logger: logger,
	}

	a.locations = location.NewStore()
	a.snapshots = reports.NewSnapshotStore()
	a.queue = alerts.NewQueue(cfg.AlertDismissAfter, logger)
	a.detector = watch.NewStatusChangeDetector(cfg.UpdateRetention, cfg.PruneInterval, logger)
	a.watcher = watch.NewWatcher(a.locations, a.queue, a.detector, cfg.AlertRadiusKm, logger)
	a.client = reports.NewClient(cfg.ReportsAPIURL, cfg.HTTPTimeout, logger)
	a.poller = reports.NewPoller(a.client, cfg.PollInterval, a.handleSnapshot, a.handlePollError, logger)
	a.freshness = timefmt.NewLabel("")

	a.handler = api.NewHandler(a.snapshots, a.locations, a.queue, a.client, a.poller, a.freshness, cfg.AlertRadiusKm, logger)
	a.server = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           a.handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a
}

// handleSnapshot stores each delivered snapshot, then runs the alerting
// pipeline over it.
func (a *App) handleSnapshot(rs []reports.Report) {
	a.snapshots.Set(rs)
	a.freshness.SetTimestamp(time.Now().UTC().Format(time.RFC3339))
	a.watcher.HandleSnapshot(rs)
}

// handlePollError surfaces a failed poll through the same alert queue used
// for domain alerts. Derived state is untouched; the tick is simply skipped.
func (a *App) handlePollError(err error) {
	a.logger.WithError(err).Error("Report poll failed")
	a.queue.Enqueue(alerts.Notice(alerts.KindError,
		"Connection Problem",
		"Unable to refresh disaster reports"))
}

// Start brings up the pruner, the poller, and the HTTP API.
func (a *App) Start() error {
	a.detector.Start()

	// Best effort: resolve the session reporter identity for edit ownership.
	// The service runs fine without it; reports just render as not editable.
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTPTimeout)
	defer cancel()
	if session, err := a.client.FetchReporterID(ctx); err != nil {
		a.logger.WithError(err).Warn("Could not resolve reporter session")
	} else if session.SessionActive {
		a.handler.SetReporterID(session.ReporterID)
	}

	if err := a.poller.Start(); err != nil {
		a.detector.Stop()
		return errors.Wrap(err, "failed to start poller")
	}

	go func() {
		a.logger.WithField("addr", a.cfg.ListenAddr).Info("HTTP API listening")
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.WithError(err).Error("HTTP server stopped unexpectedly")
		}
	}()

	return nil
}

// Stop shuts everything down in reverse dependency order and waits for
// every background loop to finish.
func (a *App) Stop(ctx context.Context) error {
	var firstErr error

	if err := a.server.Shutdown(ctx); err != nil {
		firstErr = errors.Wrap(err, "failed to shut down HTTP server")
	}

	a.poller.Stop()
	a.detector.Stop()
	a.queue.Close()
	a.freshness.Close()

	a.logger.Info("Shutdown complete")
	return firstErr
}
