package dispatch

import (
	"context"
	"errors"

	"github.com/vk/ensembleeval/internal/entity"
	"github.com/vk/ensembleeval/internal/snapshot"
)

var (
	// ErrInactive is returned when submitting an inactive realization.
	ErrInactive = errors.New("realization is not active")
	// ErrDuplicateSubmit is returned when a realization is submitted twice.
	ErrDuplicateSubmit = errors.New("realization already submitted")
	// ErrClosed is returned when submitting after submissions were closed.
	ErrClosed = errors.New("dispatcher no longer accepts submissions")
	// ErrStoppedLongRunning marks a realization that exceeded its runtime.
	ErrStoppedLongRunning = errors.New("realization exceeded its max runtime")
)

// Kind tells Done and Exit outcomes apart.
type Kind int

const (
	// Done is emitted once when a realization finished successfully.
	Done Kind = iota
	// Exit is emitted once for every submitted realization, last.
	Exit
)

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	switch k {
	case Done:
		return "done"
	case Exit:
		return "exit"
	default:
		return "unknown"
	}
}

// Outcome reports the completion of a realization.
type Outcome struct {
	Iens int
	Kind Kind
	// Err is nil for Done outcomes and for Exit outcomes of realizations that
	// succeeded.
	Err error
	// Attempts is the number of times the realization was started.
	Attempts     int
	CallbackArgs []any
}

// Succeeded reports whether the outcome belongs to a successful realization.
func (o Outcome) Succeeded() bool {
	return o.Err == nil
}

// Dispatcher hands realizations to an execution backend.
type Dispatcher interface {
	// Submit queues r for execution. deps carries the queue and analysis
	// settings and is passed explicitly on every call.
	Submit(ctx context.Context, r *entity.Realization, deps entity.Dependencies) error
	// Outcomes streams completion events. It is closed once the dispatcher
	// has stopped and every outcome was delivered.
	Outcomes() <-chan Outcome
}

// Reporter publishes state changes of one realization. Both methods must
// return promptly once ctx is done.
type Reporter interface {
	Report(ctx context.Context, iens int, diff *snapshot.RealizationDiff) error
	// ReportFull replaces the whole state of realization iens.
	ReportFull(ctx context.Context, iens int, full *snapshot.Realization) error
	Close(ctx context.Context) error
}

// ReporterFactory opens a Reporter for realization iens. It is called once
// per attempt.
type ReporterFactory func(ctx context.Context, iens int) (Reporter, error)

// NopReporter discards every report. It is used when monitoring is
// disabled.
type NopReporter struct{}

func (NopReporter) Report(context.Context, int, *snapshot.RealizationDiff) error { return nil }
func (NopReporter) ReportFull(context.Context, int, *snapshot.Realization) error { return nil }
func (NopReporter) Close(context.Context) error                                  { return nil }

// NopReporters is a ReporterFactory returning NopReporter.
func NopReporters(context.Context, int) (Reporter, error) {
	return NopReporter{}, nil
}
