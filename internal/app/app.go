package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/vk/ensembleeval/internal/client"
	"github.com/vk/ensembleeval/internal/ctxlog"
	"github.com/vk/ensembleeval/internal/dispatch"
	"github.com/vk/ensembleeval/internal/entity"
	"github.com/vk/ensembleeval/internal/manifest"
)

// Option customizes an App.
type Option func(*App)

// WithRunner replaces the job runner. The default runs executables with
// os/exec.
func WithRunner(r dispatch.JobRunner) Option {
	return func(a *App) { a.runner = r }
}

// WithClientOptions passes options to every reporter client.
func WithClientOptions(opts ...client.Option) Option {
	return func(a *App) { a.clientOpts = append(a.clientOpts, opts...) }
}

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW       io.Writer
	logger     *slog.Logger
	config     *Config
	runner     dispatch.JobRunner
	clientOpts []client.Option

	ctx        context.Context
	httpServer *http.Server
}

// NewApp is the constructor for the main application. It returns an App
// with its own isolated logger.
func NewApp(outW io.Writer, cfg *Config, opts ...Option) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	logger.Debug("Logger configured successfully.")

	a := &App{
		outW:   outW,
		logger: logger,
		config: cfg,
		runner: dispatch.ExecRunner{},
		ctx:    ctxlog.WithLogger(context.Background(), logger),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Logger returns the application's logger.
func (a *App) Logger() *slog.Logger {
	return a.logger
}

// loadEnsemble reads the manifest, applies the realization override and
// builds the ensemble.
func (a *App) loadEnsemble(ctx context.Context) (*entity.Ensemble, entity.Dependencies, error) {
	m, err := manifest.Load(ctx, a.config.ManifestPath)
	if err != nil {
		return nil, entity.Dependencies{}, err
	}
	if a.config.Realizations != "" {
		if err := m.SetActive(a.config.Realizations); err != nil {
			return nil, entity.Dependencies{}, err
		}
	}
	ens, err := m.Build()
	if err != nil {
		return nil, entity.Dependencies{}, fmt.Errorf("failed to build ensemble: %w", err)
	}
	deps, _ := ens.Dependencies()
	a.logger.Debug("Ensemble built.", "size", ens.Size(), "active", len(ens.ActiveRealizations()))
	return ens, deps, nil
}
