package entity

import "sort"

// Step groups jobs that share I/O dependencies.
type Step struct {
	id   int
	io   IO
	jobs []*Job
}

// ID returns the step id, unique within its stage.
func (s *Step) ID() int { return s.id }

// IO returns a copy of the step's I/O descriptor.
func (s *Step) IO() IO { return s.io.clone() }

// Jobs returns the jobs of the step ordered by id.
func (s *Step) Jobs() []*Job { return append([]*Job(nil), s.jobs...) }

// StepBuilder assembles a Step.
type StepBuilder struct {
	builderState
	id   *int
	io   *IO
	jobs []*JobBuilder
	step *Step
}

// NewStepBuilder returns an empty step builder.
func NewStepBuilder() *StepBuilder {
	return &StepBuilder{builderState: builderState{kind: "step"}}
}

// SetID sets the step id.
func (b *StepBuilder) SetID(id int) *StepBuilder {
	if b.mutable("id") {
		b.id = &id
	}
	return b
}

// SetIO sets the I/O descriptor.
func (b *StepBuilder) SetIO(io IO) *StepBuilder {
	if b.mutable("io") {
		c := io.clone()
		b.io = &c
	}
	return b
}

// SetDummyIO marks the step as exchanging no files with other steps.
func (b *StepBuilder) SetDummyIO() *StepBuilder {
	return b.SetIO(DummyIO())
}

// AddJob appends a job builder.
func (b *StepBuilder) AddJob(job *JobBuilder) *StepBuilder {
	if b.mutable("jobs") {
		b.jobs = append(b.jobs, job)
	}
	return b
}

func (b *StepBuilder) validate(path string) error {
	if err := b.err(); err != nil {
		return err
	}
	if b.id == nil {
		return required(path, "id")
	}
	if b.io == nil {
		return required(path, "io")
	}
	if len(b.jobs) == 0 {
		return &ValidationError{Entity: path, Field: "jobs", Reason: "must contain at least one job"}
	}
	ids := make([]int, 0, len(b.jobs))
	for i, job := range b.jobs {
		if err := job.validate(childPath(path, "jobs", i)); err != nil {
			return err
		}
		ids = append(ids, *job.id)
	}
	return checkUniqueIDs(path, "jobs", ids)
}

func (b *StepBuilder) build() *Step {
	if b.step == nil {
		jobs := make([]*Job, 0, len(b.jobs))
		for _, job := range b.jobs {
			jobs = append(jobs, job.build())
		}
		sort.SliceStable(jobs, func(i, j int) bool { return jobs[i].id < jobs[j].id })
		b.step = &Step{id: *b.id, io: b.io.clone(), jobs: jobs}
		b.built = true
	}
	return b.step
}

// Build validates the builder and its jobs and returns the frozen Step.
func (b *StepBuilder) Build() (*Step, error) {
	if err := b.validate("step"); err != nil {
		return nil, err
	}
	return b.build(), nil
}
