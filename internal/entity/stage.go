package entity

import (
	"fmt"
	"time"

	"github.com/vk/ensembleeval/internal/state"
)

// Stage is a named unit of work within a realization, such as one
// simulation plus its post-processing.
type Stage struct {
	id         int
	name       string
	status     state.Status
	jobScript  string
	runPath    string
	maxRuntime time.Duration
	steps      []*Step
}

// ID returns the stage id, unique within its realization.
func (s *Stage) ID() int { return s.id }

// Name returns the stage name.
func (s *Stage) Name() string { return s.name }

// Status returns the status the stage was built with.
func (s *Stage) Status() state.Status { return s.status }

// JobScript returns the script the queue driver starts on the compute node.
func (s *Stage) JobScript() string { return s.jobScript }

// RunPath returns the stage specific run path, if any.
func (s *Stage) RunPath() string { return s.runPath }

// MaxRuntime returns the stage specific runtime limit, zero if unlimited.
func (s *Stage) MaxRuntime() time.Duration { return s.maxRuntime }

// Steps returns the steps of the stage in insertion order.
func (s *Stage) Steps() []*Step { return append([]*Step(nil), s.steps...) }

// StageBuilder assembles a Stage.
type StageBuilder struct {
	builderState
	id         *int
	name       string
	status     state.Status
	jobScript  string
	runPath    string
	maxRuntime time.Duration
	steps      []*StepBuilder
	stage      *Stage
}

// NewStageBuilder returns a stage builder whose status defaults to Unknown.
func NewStageBuilder() *StageBuilder {
	return &StageBuilder{builderState: builderState{kind: "stage"}, status: state.Unknown}
}

// SetID sets the stage id.
func (b *StageBuilder) SetID(id int) *StageBuilder {
	if b.mutable("id") {
		b.id = &id
	}
	return b
}

// SetName sets the stage name.
func (b *StageBuilder) SetName(name string) *StageBuilder {
	if b.mutable("name") {
		b.name = name
	}
	return b
}

// SetStatus sets the initial status.
func (b *StageBuilder) SetStatus(status state.Status) *StageBuilder {
	if b.mutable("status") {
		b.status = status
	}
	return b
}

// SetJobScript sets the script the queue driver runs for the stage.
func (b *StageBuilder) SetJobScript(script string) *StageBuilder {
	if b.mutable("job_script") {
		b.jobScript = script
	}
	return b
}

// SetRunPath sets a stage specific run path.
func (b *StageBuilder) SetRunPath(path string) *StageBuilder {
	if b.mutable("run_path") {
		b.runPath = path
	}
	return b
}

// SetMaxRuntime sets a stage specific runtime limit.
func (b *StageBuilder) SetMaxRuntime(d time.Duration) *StageBuilder {
	if b.mutable("max_runtime") {
		b.maxRuntime = d
	}
	return b
}

// AddStep appends a step builder.
func (b *StageBuilder) AddStep(step *StepBuilder) *StageBuilder {
	if b.mutable("steps") {
		b.steps = append(b.steps, step)
	}
	return b
}

func (b *StageBuilder) validate(path string) error {
	if err := b.err(); err != nil {
		return err
	}
	if b.id == nil {
		return required(path, "id")
	}
	if b.name == "" {
		return required(path, "name")
	}
	if !b.status.Valid() {
		return &ValidationError{Entity: path, Field: "status", Reason: fmt.Sprintf("%q is not a known status", b.status)}
	}
	if b.maxRuntime < 0 {
		return &ValidationError{Entity: path, Field: "max_runtime", Reason: "must not be negative"}
	}
	if len(b.steps) == 0 {
		return &ValidationError{Entity: path, Field: "steps", Reason: "must contain at least one step"}
	}
	ids := make([]int, 0, len(b.steps))
	for i, step := range b.steps {
		if err := step.validate(childPath(path, "steps", i)); err != nil {
			return err
		}
		ids = append(ids, *step.id)
	}
	return checkUniqueIDs(path, "steps", ids)
}

func (b *StageBuilder) build() *Stage {
	if b.stage == nil {
		steps := make([]*Step, 0, len(b.steps))
		for _, step := range b.steps {
			steps = append(steps, step.build())
		}
		b.stage = &Stage{
			id:         *b.id,
			name:       b.name,
			status:     b.status,
			jobScript:  b.jobScript,
			runPath:    b.runPath,
			maxRuntime: b.maxRuntime,
			steps:      steps,
		}
		b.built = true
	}
	return b.stage
}

// Build validates the builder and its descendants and returns the frozen Stage.
func (b *StageBuilder) Build() (*Stage, error) {
	if err := b.validate("stage"); err != nil {
		return nil, err
	}
	return b.build(), nil
}
