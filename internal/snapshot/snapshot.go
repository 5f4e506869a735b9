package snapshot

import (
	"sort"
	"strconv"
	"time"

	"github.com/vk/ensembleeval/internal/entity"
	"github.com/vk/ensembleeval/internal/state"
)

// Job is the live state of a single job.
type Job struct {
	Status    state.Status   `json:"status"`
	Name      string         `json:"name,omitempty"`
	StartTime *time.Time     `json:"start_time,omitempty"`
	EndTime   *time.Time     `json:"end_time,omitempty"`
	Stdout    string         `json:"stdout,omitempty"`
	Stderr    string         `json:"stderr,omitempty"`
	Error     string         `json:"error,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// Step is the live state of a step and its jobs.
type Step struct {
	Status    state.Status    `json:"status"`
	StartTime *time.Time      `json:"start_time,omitempty"`
	EndTime   *time.Time      `json:"end_time,omitempty"`
	Jobs      map[string]*Job `json:"jobs"`
}

// Stage is the live state of a stage and its steps.
type Stage struct {
	Status    state.Status     `json:"status"`
	Name      string           `json:"name,omitempty"`
	StartTime *time.Time       `json:"start_time,omitempty"`
	EndTime   *time.Time       `json:"end_time,omitempty"`
	Steps     map[string]*Step `json:"steps"`
}

// Realization is the live state of one realization.
type Realization struct {
	Status    state.Status      `json:"status"`
	Active    bool              `json:"active"`
	StartTime *time.Time        `json:"start_time,omitempty"`
	EndTime   *time.Time        `json:"end_time,omitempty"`
	Stages    map[string]*Stage `json:"stages"`
}

// Snapshot is the complete state of an ensemble evaluation.
type Snapshot struct {
	Reals map[string]*Realization `json:"reals"`
}

// New returns an empty snapshot.
func New() *Snapshot {
	return &Snapshot{Reals: make(map[string]*Realization)}
}

// FromEnsemble synthesizes the default snapshot of a freshly built
// ensemble: every node is present and every status is the default one.
func FromEnsemble(ens *entity.Ensemble) *Snapshot {
	s := New()
	for _, r := range ens.Realizations() {
		s.Reals[strconv.Itoa(r.Iens())] = FromRealization(r)
	}
	return s
}

// FromRealization synthesizes the default state of one realization.
func FromRealization(r *entity.Realization) *Realization {
	out := &Realization{
		Status: state.Unknown,
		Active: r.Active(),
		Stages: make(map[string]*Stage),
	}
	for _, stage := range r.Stages() {
		st := &Stage{Status: stage.Status(), Name: stage.Name(), Steps: make(map[string]*Step)}
		for _, step := range stage.Steps() {
			sp := &Step{Status: state.Unknown, Jobs: make(map[string]*Job)}
			for _, job := range step.Jobs() {
				ext := job.ExtJob()
				sp.Jobs[strconv.Itoa(job.ID())] = &Job{
					Status: state.Unknown,
					Name:   job.Name(),
					Stdout: ext.Stdout,
					Stderr: ext.Stderr,
				}
			}
			st.Steps[strconv.Itoa(step.ID())] = sp
		}
		out.Stages[strconv.Itoa(stage.ID())] = st
	}
	return out
}

// Clone returns a deep copy of the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	out := New()
	for k, r := range s.Reals {
		out.Reals[k] = r.Clone()
	}
	return out
}

// RealizationKeys returns the realization keys in numeric order.
func (s *Snapshot) RealizationKeys() []string {
	keys := make([]string, 0, len(s.Reals))
	for k := range s.Reals {
		keys = append(keys, k)
	}
	sortNumeric(keys)
	return keys
}

// Summary counts realizations per status.
func (s *Snapshot) Summary() map[state.Status]int {
	out := make(map[state.Status]int)
	for _, r := range s.Reals {
		out[r.Status]++
	}
	return out
}

// Clone returns a deep copy of the realization.
func (r *Realization) Clone() *Realization {
	if r == nil {
		return nil
	}
	out := *r
	out.StartTime = cloneTime(r.StartTime)
	out.EndTime = cloneTime(r.EndTime)
	out.Stages = make(map[string]*Stage, len(r.Stages))
	for k, st := range r.Stages {
		out.Stages[k] = st.Clone()
	}
	return &out
}

// Clone returns a deep copy of the stage.
func (st *Stage) Clone() *Stage {
	if st == nil {
		return nil
	}
	out := *st
	out.StartTime = cloneTime(st.StartTime)
	out.EndTime = cloneTime(st.EndTime)
	out.Steps = make(map[string]*Step, len(st.Steps))
	for k, sp := range st.Steps {
		out.Steps[k] = sp.Clone()
	}
	return &out
}

// Clone returns a deep copy of the step.
func (sp *Step) Clone() *Step {
	if sp == nil {
		return nil
	}
	out := *sp
	out.StartTime = cloneTime(sp.StartTime)
	out.EndTime = cloneTime(sp.EndTime)
	out.Jobs = make(map[string]*Job, len(sp.Jobs))
	for k, j := range sp.Jobs {
		out.Jobs[k] = j.Clone()
	}
	return &out
}

// Clone returns a deep copy of the job.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	out := *j
	out.StartTime = cloneTime(j.StartTime)
	out.EndTime = cloneTime(j.EndTime)
	out.Data = cloneData(j.Data)
	return &out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// cloneData deep copies the JSON-like values carried in job data.
func cloneData(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneData(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// sortNumeric sorts keys numerically when they are integers and
// lexically otherwise.
func sortNumeric(keys []string) {
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		if errA == nil && errB == nil {
			return a < b
		}
		return keys[i] < keys[j]
	})
}
