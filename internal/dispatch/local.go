package dispatch

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/gammazero/deque"

	"github.com/vk/ensembleeval/internal/ctxlog"
	"github.com/vk/ensembleeval/internal/entity"
)

// submission is one accepted realization. It lives until its Exit outcome
// is emitted, across resubmissions.
type submission struct {
	real            *entity.Realization
	maxSubmit       int
	stopLongRunning bool
	attempts        int
	finished        sync.Once
}

// LocalOption configures a LocalDriver.
type LocalOption func(*LocalDriver)

// WithMaxRunning bounds how many realizations run at the same time. Zero or
// less uses the number of CPUs.
func WithMaxRunning(n int) LocalOption {
	return func(d *LocalDriver) { d.maxRunning = n }
}

// WithReporters sets how progress is reported. The default discards it.
func WithReporters(f ReporterFactory) LocalOption {
	return func(d *LocalDriver) { d.reporters = f }
}

// WithClock replaces time.Now for reported timestamps.
func WithClock(now func() time.Time) LocalOption {
	return func(d *LocalDriver) { d.now = now }
}

// LocalDriver runs realizations in-process with a bounded worker pool.
type LocalDriver struct {
	runner     JobRunner
	reporters  ReporterFactory
	maxRunning int
	now        func() time.Time

	mu        sync.Mutex
	queue     deque.Deque[*submission]
	submitted map[int]bool
	running   int
	closed    bool
	changed   chan struct{}

	omu      sync.Mutex
	ocond    *sync.Cond
	pending  deque.Deque[Outcome]
	finished bool
	outcomes chan Outcome
}

var _ Dispatcher = (*LocalDriver)(nil)

// NewLocalDriver creates a driver running jobs with runner.
func NewLocalDriver(runner JobRunner, opts ...LocalOption) *LocalDriver {
	d := &LocalDriver{
		runner:    runner,
		reporters: NopReporters,
		now:       time.Now,
		submitted: make(map[int]bool),
		changed:   make(chan struct{}),
		outcomes:  make(chan Outcome),
	}
	d.ocond = sync.NewCond(&d.omu)
	for _, opt := range opts {
		opt(d)
	}
	if d.maxRunning <= 0 {
		d.maxRunning = runtime.NumCPU()
	}
	return d
}

// Submit queues r. Realizations are started in submission order.
func (d *LocalDriver) Submit(ctx context.Context, r *entity.Realization, deps entity.Dependencies) error {
	if !r.Active() {
		return ErrInactive
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	if d.submitted[r.Iens()] {
		return ErrDuplicateSubmit
	}
	d.submitted[r.Iens()] = true

	maxSubmit := deps.Queue.MaxSubmit
	if maxSubmit < 1 {
		maxSubmit = 1
	}
	d.queue.PushBack(&submission{
		real:            r,
		maxSubmit:       maxSubmit,
		stopLongRunning: deps.Analysis.StopLongRunning,
	})
	d.broadcast()

	ctxlog.FromContext(ctx).Debug("Realization submitted", "iens", r.Iens(), "maxSubmit", maxSubmit)
	return nil
}

// CloseSubmissions tells the driver no more realizations will come. Run
// returns once every submitted realization has exited.
func (d *LocalDriver) CloseSubmissions() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.broadcast()
}

// Outcomes implements Dispatcher.
func (d *LocalDriver) Outcomes() <-chan Outcome {
	return d.outcomes
}

// Run starts the workers and blocks until submissions are closed and every
// realization has exited, or until ctx ends. Realizations still queued when
// ctx ends exit with the context error. Run closes the outcome channel once
// every outcome was delivered.
func (d *LocalDriver) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Local driver starting", "maxRunning", d.maxRunning)

	go d.pump()

	var wg sync.WaitGroup
	for i := 0; i < d.maxRunning; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			d.worker(ctx, workerID)
		}(i)
	}
	wg.Wait()

	d.mu.Lock()
	d.closed = true
	var leftover []*submission
	for d.queue.Len() > 0 {
		leftover = append(leftover, d.queue.PopFront())
	}
	d.mu.Unlock()
	for _, s := range leftover {
		d.finish(s, ctx.Err())
	}

	d.omu.Lock()
	d.finished = true
	d.ocond.Broadcast()
	d.omu.Unlock()

	logger.Debug("Local driver stopped")
	return ctx.Err()
}

// next blocks until a submission is available. It returns false when the
// worker should stop.
func (d *LocalDriver) next(ctx context.Context) (*submission, bool) {
	for {
		d.mu.Lock()
		if ctx.Err() != nil {
			d.mu.Unlock()
			return nil, false
		}
		if d.queue.Len() > 0 {
			s := d.queue.PopFront()
			d.running++
			d.mu.Unlock()
			return s, true
		}
		if d.closed && d.running == 0 {
			d.mu.Unlock()
			return nil, false
		}
		changed := d.changed
		d.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, false
		case <-changed:
		}
	}
}

// done records the end of one attempt and requeues s if it may be retried.
// Returns true when s was requeued.
func (d *LocalDriver) done(ctx context.Context, s *submission, err error) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.running--
	defer d.broadcast()

	if err == nil || ctx.Err() != nil || s.attempts >= s.maxSubmit {
		return false
	}
	if s.stopLongRunning && isStopped(err) {
		return false
	}
	d.queue.PushBack(s)
	return true
}

// broadcast wakes every waiting worker. d.mu must be held.
func (d *LocalDriver) broadcast() {
	close(d.changed)
	d.changed = make(chan struct{})
}

// finish emits the outcomes of s exactly once.
func (d *LocalDriver) finish(s *submission, err error) {
	s.finished.Do(func() {
		base := Outcome{Iens: s.real.Iens(), Attempts: s.attempts, CallbackArgs: s.real.CallbackArgs()}

		d.omu.Lock()
		defer d.omu.Unlock()
		if err == nil {
			o := base
			o.Kind = Done
			d.pending.PushBack(o)
		}
		o := base
		o.Kind = Exit
		o.Err = err
		d.pending.PushBack(o)
		d.ocond.Broadcast()
	})
}

// pump moves queued outcomes to the outcome channel so workers never block
// on a slow consumer.
func (d *LocalDriver) pump() {
	for {
		d.omu.Lock()
		for d.pending.Len() == 0 && !d.finished {
			d.ocond.Wait()
		}
		if d.pending.Len() == 0 {
			d.omu.Unlock()
			close(d.outcomes)
			return
		}
		o := d.pending.PopFront()
		d.omu.Unlock()
		d.outcomes <- o
	}
}
