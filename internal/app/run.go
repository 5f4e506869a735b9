package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/vk/ensembleeval/internal/aggregator"
	"github.com/vk/ensembleeval/internal/client"
	"github.com/vk/ensembleeval/internal/ctxlog"
	"github.com/vk/ensembleeval/internal/dispatch"
	"github.com/vk/ensembleeval/internal/entity"
	"github.com/vk/ensembleeval/internal/rangestr"
	"github.com/vk/ensembleeval/internal/snapshot"
)

var (
	// ErrNoActiveRealizations is returned when the mask selects nothing.
	ErrNoActiveRealizations = errors.New("no active realizations")
	// ErrTooFewRealizations is returned when fewer realizations succeeded
	// than the analysis requires.
	ErrTooFewRealizations = errors.New("too few realizations succeeded")
)

// Result summarizes one evaluation.
type Result struct {
	Iter      int
	Succeeded []int
	Failed    []int
	// Outcomes holds the exit outcome of every dispatched realization.
	Outcomes map[int]dispatch.Outcome
	// Snapshot is the final state seen by the local aggregator. It is nil
	// when monitoring is disabled or reports go to an external aggregator.
	Snapshot *snapshot.Snapshot
	Stats    aggregator.Stats
}

// Run evaluates the ensemble: every active realization is dispatched and its
// progress is reported to the aggregator until all of them have exited.
func (a *App) Run(ctx context.Context) (*Result, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.ctx = ctx
	a.logger.Debug("App.Run method started.")

	ens, deps, err := a.loadEnsemble(ctx)
	if err != nil {
		return nil, err
	}
	active := ens.ActiveRealizations()
	if len(active) == 0 {
		return nil, ErrNoActiveRealizations
	}

	p := &progress{submitted: len(active)}
	a.healthCheckServer(p)
	defer a.closeHealthCheckServer()

	g, gctx := errgroup.WithContext(ctx)
	serveCtx, stopServer := context.WithCancel(gctx)
	defer stopServer()

	reporters := dispatch.ReporterFactory(dispatch.NopReporters)
	var srv *aggregator.Server
	if !a.config.DisableMonitoring {
		reportURL := a.config.ReportURL
		if reportURL == "" {
			srv = aggregator.NewServer(aggregator.NewRegistry(ens))
			if _, err := srv.Registry().Store(ctx, a.config.Iter); err != nil {
				return nil, err
			}
			ln, err := net.Listen("tcp", a.config.AggregatorAddr)
			if err != nil {
				return nil, fmt.Errorf("starting aggregator: %w", err)
			}
			reportURL = "ws://" + ln.Addr().String()
			g.Go(func() error { return srv.Serve(serveCtx, ln) })
		}
		reporters = a.reporterFactory(reportURL)
	} else {
		a.logger.Warn("Monitoring disabled, progress will not be reported.")
	}

	maxRunning := a.config.MaxRunning
	if maxRunning <= 0 {
		maxRunning = deps.Queue.MaxRunning
	}
	driver := dispatch.NewLocalDriver(a.runner,
		dispatch.WithMaxRunning(maxRunning),
		dispatch.WithReporters(reporters),
	)
	for _, r := range active {
		if err := driver.Submit(ctx, r, deps); err != nil {
			stopServer()
			_ = g.Wait()
			return nil, fmt.Errorf("submitting realization %d: %w", r.Iens(), err)
		}
	}
	driver.CloseSubmissions()

	a.logger.Info("🚀 Starting evaluation...",
		"iter", a.config.Iter,
		"realizations", rangestr.Format(activeMask(ens)),
		"maxRunning", maxRunning,
	)

	result := &Result{Iter: a.config.Iter, Outcomes: make(map[int]dispatch.Outcome, len(active))}
	g.Go(func() error { return driver.Run(gctx) })
	g.Go(func() error {
		defer stopServer()
		for o := range driver.Outcomes() {
			a.record(ctx, result, p, o)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return result, fmt.Errorf("evaluation failed: %w", err)
	}
	sort.Ints(result.Succeeded)
	sort.Ints(result.Failed)

	if srv != nil {
		if store, ok := srv.Registry().Lookup(a.config.Iter); ok {
			result.Snapshot = store.Snapshot(ctx)
		}
		result.Stats = srv.Stats()
	}

	a.logger.Info("🏁 Evaluation finished.", "succeeded", len(result.Succeeded), "failed", len(result.Failed))
	if err := checkMinRealizations(deps.Analysis, len(active), len(result.Succeeded)); err != nil {
		return result, err
	}
	a.logger.Debug("App.Run method finished.")
	return result, nil
}

// record handles one outcome. Only Exit outcomes are final.
func (a *App) record(ctx context.Context, result *Result, p *progress, o dispatch.Outcome) {
	logger := ctxlog.FromContext(ctx).With("iens", o.Iens, "attempts", o.Attempts)
	if o.Kind != dispatch.Exit {
		logger.Debug("Realization done.")
		return
	}
	result.Outcomes[o.Iens] = o
	p.record(o.Succeeded())
	if o.Succeeded() {
		result.Succeeded = append(result.Succeeded, o.Iens)
		logger.Info("✅ Realization finished.")
		return
	}
	result.Failed = append(result.Failed, o.Iens)
	logger.Error("❌ Realization failed.", "error", o.Err, "callbackArgs", o.CallbackArgs)
}

// reporterFactory opens one reporting client per realization attempt.
func (a *App) reporterFactory(url string) dispatch.ReporterFactory {
	cfg := a.config.Client
	cfg.URL = url
	return func(ctx context.Context, iens int) (dispatch.Reporter, error) {
		c, err := client.New(cfg, a.clientOpts...)
		if err != nil {
			return nil, err
		}
		if err := c.Open(ctx); err != nil {
			c.Close()
			return nil, err
		}
		return client.NewEventReporter(c, a.config.Iter), nil
	}
}

// checkMinRealizations applies the analysis threshold. Without one every
// active realization must succeed.
func checkMinRealizations(analysis entity.AnalysisConfig, active, succeeded int) error {
	required := analysis.MinRealizations
	if required <= 0 || required > active {
		required = active
	}
	if succeeded < required {
		return fmt.Errorf("%w: %d of %d succeeded, %d required", ErrTooFewRealizations, succeeded, active, required)
	}
	return nil
}

func activeMask(ens *entity.Ensemble) []bool {
	mask := make([]bool, ens.Size())
	for _, r := range ens.ActiveRealizations() {
		if r.Iens() < len(mask) {
			mask[r.Iens()] = true
		}
	}
	return mask
}
