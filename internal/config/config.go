// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config captures the service's external configuration. Values come from
// DISASTERWATCH_-prefixed environment variables with the defaults below.
type Config struct {
	// ListenAddr is the address the HTTP API binds to.
	ListenAddr string `envconfig:"LISTEN_ADDR" default:":8085"`

	// ReportsAPIURL is the base URL of the external disaster-reports API.
	ReportsAPIURL string `envconfig:"REPORTS_API_URL" default:"http://localhost:8000/api"`

	// PollInterval is how often the report collection is fetched.
	PollInterval time.Duration `envconfig:"POLL_INTERVAL" default:"10s"`

	// AlertRadiusKm is the proximity radius for nearby reports and alerts.
	AlertRadiusKm float64 `envconfig:"ALERT_RADIUS_KM" default:"5"`

	// AlertDismissAfter is how long an alert stays pending before it
	// auto-dismisses.
	AlertDismissAfter time.Duration `envconfig:"ALERT_DISMISS_AFTER" default:"5s"`

	// UpdateRetention bounds the status-update history.
	UpdateRetention time.Duration `envconfig:"UPDATE_RETENTION" default:"5m"`

	// PruneInterval is how often the update history is checked for expiry.
	PruneInterval time.Duration `envconfig:"PRUNE_INTERVAL" default:"1m"`

	// HTTPTimeout applies to individual upstream requests.
	HTTPTimeout time.Duration `envconfig:"HTTP_TIMEOUT" default:"30s"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	var c Config
	if err := envconfig.Process("disasterwatch", &c); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}

	if err := c.validate(); err != nil {
		return nil, err
	}

	return &c, nil
}

func (c *Config) validate() error {
	if c.ReportsAPIURL == "" {
		return fmt.Errorf("reports API URL must not be empty")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.PollInterval)
	}
	if c.AlertRadiusKm <= 0 {
		return fmt.Errorf("alert radius must be positive, got %f", c.AlertRadiusKm)
	}
	if c.AlertDismissAfter <= 0 {
		return fmt.Errorf("alert dismiss delay must be positive, got %s", c.AlertDismissAfter)
	}
	if c.UpdateRetention <= 0 || c.PruneInterval <= 0 {
		return fmt.Errorf("update retention and prune interval must be positive")
	}
	return nil
}
