package app

import (
	"errors"
	"fmt"

	"github.com/vk/ensembleeval/internal/client"
)

// DefaultAggregatorAddr listens on a free loopback port.
const DefaultAggregatorAddr = "127.0.0.1:0"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	ManifestPath string // hcl file describing the ensemble
	// Realizations overrides the active mask of the manifest, e.g. "0-4, 7".
	Realizations string
	Iter         int

	LogFormat       string
	LogLevel        string
	HealthcheckPort int

	// AggregatorAddr is where the local aggregator listens.
	AggregatorAddr string
	// ReportURL sends reports to an external aggregator instead of starting
	// a local one.
	ReportURL         string
	DisableMonitoring bool
	// MaxRunning overrides the queue setting of the manifest when positive.
	MaxRunning int

	// Client configures the reporters. Its URL is set by the app.
	Client client.Config
}

// NewConfig validates cfg and fills in defaults.
func NewConfig(cfg Config) (*Config, error) {
	var errs []error
	if cfg.ManifestPath == "" {
		errs = append(errs, errors.New("ManifestPath is a required configuration field and cannot be empty"))
	}
	if cfg.Iter < 0 {
		errs = append(errs, fmt.Errorf("iteration must not be negative, got %d", cfg.Iter))
	}
	switch cfg.LogFormat {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("invalid log format %q: must be 'text' or 'json'", cfg.LogFormat))
	}
	switch cfg.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("invalid log level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.LogLevel))
	}
	if cfg.HealthcheckPort < 0 || cfg.HealthcheckPort > 65535 {
		errs = append(errs, fmt.Errorf("healthcheck port %d out of range", cfg.HealthcheckPort))
	}
	if cfg.MaxRunning < 0 {
		errs = append(errs, fmt.Errorf("max running must not be negative, got %d", cfg.MaxRunning))
	}
	if cfg.AggregatorAddr == "" {
		cfg.AggregatorAddr = DefaultAggregatorAddr
	}
	if cfg.Client == (client.Config{}) {
		cfg.Client = client.DefaultConfig("")
	}

	if !cfg.DisableMonitoring {
		if cfg.ReportURL != "" {
			cfg.Client.URL = cfg.ReportURL
		} else {
			if cfg.Client.Transport == client.TransportSocketIO {
				errs = append(errs, errors.New("the local aggregator only accepts websocket reports, set a report url to use socket.io"))
			}
			cfg.Client.URL = "ws://" + cfg.AggregatorAddr
		}
		if err := cfg.Client.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("client: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &cfg, nil
}
