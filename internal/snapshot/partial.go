package snapshot

import (
	"sort"
	"time"

	"github.com/vk/ensembleeval/internal/nodeid"
	"github.com/vk/ensembleeval/internal/state"
)

// JobDiff carries new values for a job. Nil fields are left unchanged; Data
// is merged key by key.
type JobDiff struct {
	Status    *state.Status  `json:"status,omitempty"`
	StartTime *time.Time     `json:"start_time,omitempty"`
	EndTime   *time.Time     `json:"end_time,omitempty"`
	Stdout    *string        `json:"stdout,omitempty"`
	Stderr    *string        `json:"stderr,omitempty"`
	Error     *string        `json:"error,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// StepDiff carries new values for a step and its jobs.
type StepDiff struct {
	Status    *state.Status       `json:"status,omitempty"`
	StartTime *time.Time          `json:"start_time,omitempty"`
	EndTime   *time.Time          `json:"end_time,omitempty"`
	Jobs      map[string]*JobDiff `json:"jobs,omitempty"`
}

// StageDiff carries new values for a stage and its steps.
type StageDiff struct {
	Status    *state.Status        `json:"status,omitempty"`
	StartTime *time.Time           `json:"start_time,omitempty"`
	EndTime   *time.Time           `json:"end_time,omitempty"`
	Steps     map[string]*StepDiff `json:"steps,omitempty"`
}

// RealizationDiff carries new values for a realization and its stages.
type RealizationDiff struct {
	Status    *state.Status         `json:"status,omitempty"`
	Active    *bool                 `json:"active,omitempty"`
	StartTime *time.Time            `json:"start_time,omitempty"`
	EndTime   *time.Time            `json:"end_time,omitempty"`
	Stages    map[string]*StageDiff `json:"stages,omitempty"`
}

// PartialSnapshot is a sparse diff keyed like Snapshot.
type PartialSnapshot struct {
	Reals map[string]*RealizationDiff `json:"reals"`
}

// NewPartial returns an empty diff.
func NewPartial() *PartialSnapshot {
	return &PartialSnapshot{Reals: make(map[string]*RealizationDiff)}
}

// Ptr returns a pointer to v. It keeps diff literals short.
func Ptr[T any](v T) *T {
	return &v
}

// IsEmpty reports whether the diff touches no realization.
func (p *PartialSnapshot) IsEmpty() bool {
	return p == nil || len(p.Reals) == 0
}

func (p *PartialSnapshot) real(key string) *RealizationDiff {
	if p.Reals == nil {
		p.Reals = make(map[string]*RealizationDiff)
	}
	r, ok := p.Reals[key]
	if !ok {
		r = &RealizationDiff{}
		p.Reals[key] = r
	}
	return r
}

func (r *RealizationDiff) stage(key string) *StageDiff {
	if r.Stages == nil {
		r.Stages = make(map[string]*StageDiff)
	}
	st, ok := r.Stages[key]
	if !ok {
		st = &StageDiff{}
		r.Stages[key] = st
	}
	return st
}

func (st *StageDiff) step(key string) *StepDiff {
	if st.Steps == nil {
		st.Steps = make(map[string]*StepDiff)
	}
	sp, ok := st.Steps[key]
	if !ok {
		sp = &StepDiff{}
		st.Steps[key] = sp
	}
	return sp
}

func (sp *StepDiff) job(key string) *JobDiff {
	if sp.Jobs == nil {
		sp.Jobs = make(map[string]*JobDiff)
	}
	j, ok := sp.Jobs[key]
	if !ok {
		j = &JobDiff{}
		sp.Jobs[key] = j
	}
	return j
}

// UpdateRealization merges diff into the entry for realization key iens.
func (p *PartialSnapshot) UpdateRealization(iens string, diff RealizationDiff) *PartialSnapshot {
	mergeRealizationDiff(p.real(iens), &diff)
	return p
}

// UpdateJob merges diff into the entry for the job at addr. addr must be
// a job address.
func (p *PartialSnapshot) UpdateJob(addr nodeid.Address, diff JobDiff) *PartialSnapshot {
	j := p.real(addr.Real).stage(addr.Stage).step(addr.Step).job(addr.Job)
	mergeJobDiff(j, &diff)
	return p
}

// SetStatus records a new status for the node at addr, whatever its level.
func (p *PartialSnapshot) SetStatus(addr nodeid.Address, status state.Status) *PartialSnapshot {
	s := Ptr(status)
	switch addr.Level() {
	case nodeid.LevelRealization:
		p.real(addr.Real).Status = s
	case nodeid.LevelStage:
		p.real(addr.Real).stage(addr.Stage).Status = s
	case nodeid.LevelStep:
		p.real(addr.Real).stage(addr.Stage).step(addr.Step).Status = s
	case nodeid.LevelJob:
		p.real(addr.Real).stage(addr.Stage).step(addr.Step).job(addr.Job).Status = s
	}
	return p
}

// Merge folds other into p; values in other win.
func (p *PartialSnapshot) Merge(other *PartialSnapshot) *PartialSnapshot {
	if other == nil {
		return p
	}
	for k, r := range other.Reals {
		mergeRealizationDiff(p.real(k), r)
	}
	return p
}

// Addresses lists every node the diff touches, sorted by canonical form.
func (p *PartialSnapshot) Addresses() []nodeid.Address {
	if p == nil {
		return nil
	}
	var out []nodeid.Address
	for rk, r := range p.Reals {
		out = append(out, r.addresses(rk)...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func (r *RealizationDiff) addresses(iens string) []nodeid.Address {
	base := nodeid.Address{Real: iens}
	out := []nodeid.Address{base}
	if r == nil {
		return out
	}
	for sk, st := range r.Stages {
		stageAddr := base
		stageAddr.Stage = sk
		out = append(out, stageAddr)
		if st == nil {
			continue
		}
		for pk, sp := range st.Steps {
			stepAddr := stageAddr
			stepAddr.Step = pk
			out = append(out, stepAddr)
			if sp == nil {
				continue
			}
			for jk := range sp.Jobs {
				jobAddr := stepAddr
				jobAddr.Job = jk
				out = append(out, jobAddr)
			}
		}
	}
	return out
}

func mergeRealizationDiff(dst, src *RealizationDiff) {
	if src == nil {
		return
	}
	setIf(&dst.Status, src.Status)
	setIf(&dst.Active, src.Active)
	setIf(&dst.StartTime, src.StartTime)
	setIf(&dst.EndTime, src.EndTime)
	for k, st := range src.Stages {
		d := dst.stage(k)
		if st == nil {
			continue
		}
		setIf(&d.Status, st.Status)
		setIf(&d.StartTime, st.StartTime)
		setIf(&d.EndTime, st.EndTime)
		for pk, sp := range st.Steps {
			dp := d.step(pk)
			if sp == nil {
				continue
			}
			setIf(&dp.Status, sp.Status)
			setIf(&dp.StartTime, sp.StartTime)
			setIf(&dp.EndTime, sp.EndTime)
			for jk, j := range sp.Jobs {
				mergeJobDiff(dp.job(jk), j)
			}
		}
	}
}

func mergeJobDiff(dst, src *JobDiff) {
	if src == nil {
		return
	}
	setIf(&dst.Status, src.Status)
	setIf(&dst.StartTime, src.StartTime)
	setIf(&dst.EndTime, src.EndTime)
	setIf(&dst.Stdout, src.Stdout)
	setIf(&dst.Stderr, src.Stderr)
	setIf(&dst.Error, src.Error)
	if len(src.Data) > 0 {
		if dst.Data == nil {
			dst.Data = make(map[string]any, len(src.Data))
		}
		for k, v := range src.Data {
			dst.Data[k] = cloneValue(v)
		}
	}
}

func setIf[T any](dst **T, src *T) {
	if src != nil {
		v := *src
		*dst = &v
	}
}
