package entity

import "time"

// Realization is one independent simulation instance, identified by iens.
type Realization struct {
	iens         int
	active       bool
	runPath      string
	maxRuntime   time.Duration
	callbackArgs []any
	stages       []*Stage
}

// Iens returns the realization index.
func (r *Realization) Iens() int { return r.iens }

// Active reports whether the realization takes part in dispatch. Inactive
// realizations stay addressable in snapshots.
func (r *Realization) Active() bool { return r.active }

// RunPath returns the filesystem location the realization runs in. If none
// was set on the realization, the first stage's run path is used.
func (r *Realization) RunPath() string {
	if r.runPath != "" {
		return r.runPath
	}
	for _, stage := range r.stages {
		if stage.runPath != "" {
			return stage.runPath
		}
	}
	return ""
}

// MaxRuntime returns the runtime limit, zero if unlimited. Falls back to the
// first stage limit like RunPath.
func (r *Realization) MaxRuntime() time.Duration {
	if r.maxRuntime > 0 {
		return r.maxRuntime
	}
	for _, stage := range r.stages {
		if stage.maxRuntime > 0 {
			return stage.maxRuntime
		}
	}
	return 0
}

// CallbackArgs returns the opaque arguments handed back with dispatch outcomes.
func (r *Realization) CallbackArgs() []any { return append([]any(nil), r.callbackArgs...) }

// Stages returns the stages of the realization in insertion order.
func (r *Realization) Stages() []*Stage { return append([]*Stage(nil), r.stages...) }

// RealizationBuilder assembles a Realization.
type RealizationBuilder struct {
	builderState
	iens         *int
	active       bool
	runPath      string
	maxRuntime   time.Duration
	callbackArgs []any
	stages       []*StageBuilder
	real         *Realization
}

// NewRealizationBuilder returns a builder for an active realization.
func NewRealizationBuilder() *RealizationBuilder {
	return &RealizationBuilder{builderState: builderState{kind: "realization"}, active: true}
}

// SetIens sets the realization index.
func (b *RealizationBuilder) SetIens(iens int) *RealizationBuilder {
	if b.mutable("iens") {
		b.iens = &iens
	}
	return b
}

// SetActive sets whether the realization is dispatched.
func (b *RealizationBuilder) SetActive(active bool) *RealizationBuilder {
	if b.mutable("active") {
		b.active = active
	}
	return b
}

// SetRunPath sets the run path.
func (b *RealizationBuilder) SetRunPath(path string) *RealizationBuilder {
	if b.mutable("run_path") {
		b.runPath = path
	}
	return b
}

// SetMaxRuntime sets the runtime limit.
func (b *RealizationBuilder) SetMaxRuntime(d time.Duration) *RealizationBuilder {
	if b.mutable("max_runtime") {
		b.maxRuntime = d
	}
	return b
}

// SetCallbackArguments sets the arguments delivered with the realization's
// dispatch outcomes.
func (b *RealizationBuilder) SetCallbackArguments(args ...any) *RealizationBuilder {
	if b.mutable("callback_arguments") {
		b.callbackArgs = append([]any(nil), args...)
	}
	return b
}

// AddStage appends a stage builder.
func (b *RealizationBuilder) AddStage(stage *StageBuilder) *RealizationBuilder {
	if b.mutable("stages") {
		b.stages = append(b.stages, stage)
	}
	return b
}

func (b *RealizationBuilder) validate(path string) error {
	if err := b.err(); err != nil {
		return err
	}
	if b.iens == nil {
		return required(path, "iens")
	}
	if *b.iens < 0 {
		return &ValidationError{Entity: path, Field: "iens", Reason: "must be non-negative"}
	}
	if b.maxRuntime < 0 {
		return &ValidationError{Entity: path, Field: "max_runtime", Reason: "must not be negative"}
	}
	if len(b.stages) == 0 {
		return &ValidationError{Entity: path, Field: "stages", Reason: "must contain at least one stage"}
	}
	ids := make([]int, 0, len(b.stages))
	for i, stage := range b.stages {
		if err := stage.validate(childPath(path, "stages", i)); err != nil {
			return err
		}
		ids = append(ids, *stage.id)
	}
	return checkUniqueIDs(path, "stages", ids)
}

func (b *RealizationBuilder) build() *Realization {
	if b.real == nil {
		stages := make([]*Stage, 0, len(b.stages))
		for _, stage := range b.stages {
			stages = append(stages, stage.build())
		}
		b.real = &Realization{
			iens:         *b.iens,
			active:       b.active,
			runPath:      b.runPath,
			maxRuntime:   b.maxRuntime,
			callbackArgs: append([]any(nil), b.callbackArgs...),
			stages:       stages,
		}
		b.built = true
	}
	return b.real
}

// Build validates the builder and its descendants and returns the frozen
// Realization.
func (b *RealizationBuilder) Build() (*Realization, error) {
	if err := b.validate("realization"); err != nil {
		return nil, err
	}
	return b.build(), nil
}
