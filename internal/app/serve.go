package app

import (
	"context"

	"github.com/vk/ensembleeval/internal/aggregator"
	"github.com/vk/ensembleeval/internal/ctxlog"
)

// Serve runs a standalone aggregator for the manifest's ensemble until ctx
// ends. Workers started elsewhere report to it.
func (a *App) Serve(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.ctx = ctx

	ens, _, err := a.loadEnsemble(ctx)
	if err != nil {
		return err
	}
	srv := aggregator.NewServer(aggregator.NewRegistry(ens))
	if _, err := srv.Registry().Store(ctx, a.config.Iter); err != nil {
		return err
	}

	a.healthCheckServer(&progress{})
	defer a.closeHealthCheckServer()

	return srv.ListenAndServe(ctx, a.config.AggregatorAddr)
}
