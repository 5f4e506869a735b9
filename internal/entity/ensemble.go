package entity

import (
	"maps"
	"sort"
)

// Ensemble is the set of realizations evaluated together.
type Ensemble struct {
	reals  []*Realization
	byIens map[int]*Realization
	deps   *Dependencies
}

// Realizations returns all realizations ordered by iens.
func (e *Ensemble) Realizations() []*Realization { return append([]*Realization(nil), e.reals...) }

// ActiveRealizations returns the realizations that take part in dispatch.
func (e *Ensemble) ActiveRealizations() []*Realization {
	var out []*Realization
	for _, r := range e.reals {
		if r.active {
			out = append(out, r)
		}
	}
	return out
}

// Realization looks up a realization by index.
func (e *Ensemble) Realization(iens int) (*Realization, bool) {
	r, ok := e.byIens[iens]
	return r, ok
}

// Size returns the number of realizations, active or not.
func (e *Ensemble) Size() int { return len(e.reals) }

// Dependencies returns the injected queue and analysis configuration, and
// false if none was set.
func (e *Ensemble) Dependencies() (Dependencies, bool) {
	if e.deps == nil {
		return Dependencies{}, false
	}
	d := *e.deps
	d.Queue.Options = maps.Clone(e.deps.Queue.Options)
	return d, true
}

// EnsembleBuilder assembles an Ensemble.
type EnsembleBuilder struct {
	builderState
	reals       []*RealizationBuilder
	deps        *Dependencies
	requireDeps bool
	ensemble    *Ensemble
}

// NewEnsembleBuilder returns an empty ensemble builder.
func NewEnsembleBuilder() *EnsembleBuilder {
	return &EnsembleBuilder{builderState: builderState{kind: "ensemble"}}
}

// AddRealization appends a realization builder.
func (b *EnsembleBuilder) AddRealization(real *RealizationBuilder) *EnsembleBuilder {
	if b.mutable("realizations") {
		b.reals = append(b.reals, real)
	}
	return b
}

// SetDependencies injects the queue and analysis configuration used by the
// dispatcher.
func (b *EnsembleBuilder) SetDependencies(queue QueueConfig, analysis AnalysisConfig) *EnsembleBuilder {
	if b.mutable("dependencies") {
		queue.Options = maps.Clone(queue.Options)
		b.deps = &Dependencies{Queue: queue, Analysis: analysis}
	}
	return b
}

// RequireDependencies makes SetDependencies mandatory for Build. Full
// evaluation runs call it; standalone builds do not need to.
func (b *EnsembleBuilder) RequireDependencies() *EnsembleBuilder {
	if b.mutable("require_dependencies") {
		b.requireDeps = true
	}
	return b
}

func (b *EnsembleBuilder) validate(path string) error {
	if err := b.err(); err != nil {
		return err
	}
	if len(b.reals) == 0 {
		return &ValidationError{Entity: path, Field: "realizations", Reason: "must contain at least one realization"}
	}
	if b.requireDeps && b.deps == nil {
		return required(path, "dependencies")
	}
	ids := make([]int, 0, len(b.reals))
	for i, real := range b.reals {
		if err := real.validate(childPath(path, "reals", i)); err != nil {
			return err
		}
		ids = append(ids, *real.iens)
	}
	return checkUniqueIDs(path, "iens", ids)
}

// Build validates the whole tree, then builds and freezes every descendant.
// Nothing is frozen when validation fails.
func (b *EnsembleBuilder) Build() (*Ensemble, error) {
	if err := b.validate("ensemble"); err != nil {
		return nil, err
	}
	if b.ensemble != nil {
		return b.ensemble, nil
	}

	reals := make([]*Realization, 0, len(b.reals))
	byIens := make(map[int]*Realization, len(b.reals))
	for _, rb := range b.reals {
		r := rb.build()
		reals = append(reals, r)
		byIens[r.iens] = r
	}
	sort.Slice(reals, func(i, j int) bool { return reals[i].iens < reals[j].iens })

	var deps *Dependencies
	if b.deps != nil {
		d := *b.deps
		d.Queue.Options = maps.Clone(b.deps.Queue.Options)
		deps = &d
	}

	b.ensemble = &Ensemble{reals: reals, byIens: byIens, deps: deps}
	b.built = true
	return b.ensemble, nil
}
