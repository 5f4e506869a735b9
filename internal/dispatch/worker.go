package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vk/ensembleeval/internal/ctxlog"
	"github.com/vk/ensembleeval/internal/entity"
	"github.com/vk/ensembleeval/internal/nodeid"
	"github.com/vk/ensembleeval/internal/snapshot"
	"github.com/vk/ensembleeval/internal/state"
)

// worker is the processing loop of a single concurrent worker.
func (d *LocalDriver) worker(ctx context.Context, workerID int) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Worker started.", "workerID", workerID)

	for {
		s, ok := d.next(ctx)
		if !ok {
			break
		}
		s.attempts++
		workerLogger := logger.With("workerID", workerID, "iens", s.real.Iens(), "attempt", s.attempts)
		workerLogger.Debug("Worker picked up realization.")

		err := d.runRealization(ctxlog.WithLogger(ctx, workerLogger), s)
		if err != nil {
			workerLogger.Error("Realization failed.", "error", err)
		} else {
			workerLogger.Debug("Realization finished.")
		}

		if d.done(ctx, s, err) {
			workerLogger.Info("Resubmitting realization.", "maxSubmit", s.maxSubmit)
			continue
		}
		d.finish(s, err)
	}
	logger.Debug("Worker finished.", "workerID", workerID)
}

// progress reports the transitions of one realization attempt.
type progress struct {
	iens     int
	reporter Reporter
	now      func() time.Time
}

func (p *progress) report(ctx context.Context, addr nodeid.Address, status state.Status, errMsg string) error {
	now := p.now()
	var start, end *time.Time
	switch {
	case status == state.Running:
		start = &now
	case status.Terminal():
		end = &now
	}
	if err := p.reporter.Report(ctx, p.iens, diffAt(addr, status, start, end, errMsg)); err != nil {
		return fmt.Errorf("reporting %s at %s: %w", status, addr, err)
	}
	return nil
}

// runRealization runs every job of s in order, stage by stage and step by
// step, reporting each transition. The first failing job fails its step,
// stage and realization.
func (d *LocalDriver) runRealization(ctx context.Context, s *submission) (err error) {
	r := s.real
	reporter, err := d.reporters(ctx, r.Iens())
	if err != nil {
		return fmt.Errorf("opening reporter: %w", err)
	}
	defer func() {
		if cerr := reporter.Close(ctx); cerr != nil && err == nil {
			err = fmt.Errorf("closing reporter: %w", cerr)
		}
	}()
	p := &progress{iens: r.Iens(), reporter: reporter, now: d.now}

	runCtx := ctx
	if s.stopLongRunning && r.MaxRuntime() > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.MaxRuntime())
		defer cancel()
	}

	runPath := r.RunPath()
	if runPath != "" {
		if err := WriteJobsJSON(runPath, r); err != nil {
			return err
		}
	}

	if s.attempts > 1 {
		// Clear what the previous attempt reported.
		if err := reporter.ReportFull(ctx, r.Iens(), snapshot.FromRealization(r)); err != nil {
			return fmt.Errorf("resetting state: %w", err)
		}
	}

	realAddr := nodeid.Real(r.Iens())
	if err := p.report(ctx, realAddr, state.Running, ""); err != nil {
		return err
	}

	runErr := d.runStages(ctx, runCtx, p, r, runPath)
	if runErr != nil && s.stopLongRunning && errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		runErr = fmt.Errorf("%w: %s: %v", ErrStoppedLongRunning, r.MaxRuntime(), runErr)
	}

	final := state.Finished
	msg := ""
	if runErr != nil {
		final = state.Failed
		msg = runErr.Error()
	}
	// Reports use ctx rather than runCtx, so a realization stopped for
	// running too long still reports how it ended. Once ctx is done they
	// fail fast instead of retrying.
	if err := p.report(ctx, realAddr, final, msg); err != nil && runErr == nil {
		return err
	}
	return runErr
}

// runStages reports on ctx and runs jobs on runCtx.
func (d *LocalDriver) runStages(ctx, runCtx context.Context, p *progress, r *entity.Realization, runPath string) error {
	for _, stage := range r.Stages() {
		stageAddr := nodeid.Real(r.Iens()).WithStage(stage.ID())
		if err := p.report(ctx, stageAddr, state.Running, ""); err != nil {
			return err
		}
		path := runPath
		if stage.RunPath() != "" {
			path = stage.RunPath()
		}
		if err := d.runSteps(ctx, runCtx, p, stageAddr, stage, path); err != nil {
			_ = p.report(ctx, stageAddr, state.Failed, err.Error())
			return err
		}
		if err := p.report(ctx, stageAddr, state.Finished, ""); err != nil {
			return err
		}
	}
	return nil
}

func (d *LocalDriver) runSteps(ctx, runCtx context.Context, p *progress, stageAddr nodeid.Address, stage *entity.Stage, runPath string) error {
	for _, step := range stage.Steps() {
		stepAddr := stageAddr.WithStep(step.ID())
		if err := p.report(ctx, stepAddr, state.Running, ""); err != nil {
			return err
		}
		for _, job := range step.Jobs() {
			jobAddr := stepAddr.WithJob(job.ID())
			if err := p.report(ctx, jobAddr, state.Running, ""); err != nil {
				return err
			}
			if err := d.runner.Run(runCtx, job, runPath); err != nil {
				_ = p.report(ctx, jobAddr, state.Failed, err.Error())
				_ = p.report(ctx, stepAddr, state.Failed, err.Error())
				return err
			}
			if err := p.report(ctx, jobAddr, state.Finished, ""); err != nil {
				return err
			}
		}
		if err := p.report(ctx, stepAddr, state.Finished, ""); err != nil {
			return err
		}
	}
	return nil
}

// diffAt builds a diff setting status, times and error of the node at addr.
func diffAt(addr nodeid.Address, status state.Status, start, end *time.Time, errMsg string) *snapshot.RealizationDiff {
	st := snapshot.Ptr(status)
	var msg *string
	if errMsg != "" {
		msg = &errMsg
	}

	switch addr.Level() {
	case nodeid.LevelRealization:
		return &snapshot.RealizationDiff{Status: st, StartTime: start, EndTime: end}
	case nodeid.LevelStage:
		return &snapshot.RealizationDiff{Stages: map[string]*snapshot.StageDiff{
			addr.Stage: {Status: st, StartTime: start, EndTime: end},
		}}
	case nodeid.LevelStep:
		return &snapshot.RealizationDiff{Stages: map[string]*snapshot.StageDiff{
			addr.Stage: {Steps: map[string]*snapshot.StepDiff{
				addr.Step: {Status: st, StartTime: start, EndTime: end},
			}},
		}}
	default:
		return &snapshot.RealizationDiff{Stages: map[string]*snapshot.StageDiff{
			addr.Stage: {Steps: map[string]*snapshot.StepDiff{
				addr.Step: {Jobs: map[string]*snapshot.JobDiff{
					addr.Job: {Status: st, StartTime: start, EndTime: end, Error: msg},
				}},
			}},
		}}
	}
}

func isStopped(err error) bool {
	return errors.Is(err, ErrStoppedLongRunning)
}
