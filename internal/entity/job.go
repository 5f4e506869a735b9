package entity

// Job is the leaf unit of work. It never changes after construction.
type Job struct {
	id     int
	name   string
	extJob ExtJob
}

// ID returns the job id, unique within its step and used as ordering key.
func (j *Job) ID() int { return j.id }

// Name returns the display name of the job.
func (j *Job) Name() string { return j.name }

// ExtJob returns a copy of the executable specification.
func (j *Job) ExtJob() ExtJob { return j.extJob.Clone() }

// JobBuilder assembles a Job.
type JobBuilder struct {
	builderState
	id     *int
	name   string
	extJob *ExtJob
	job    *Job
}

// NewJobBuilder returns an empty job builder.
func NewJobBuilder() *JobBuilder {
	return &JobBuilder{builderState: builderState{kind: "job"}}
}

// SetID sets the job id.
func (b *JobBuilder) SetID(id int) *JobBuilder {
	if b.mutable("id") {
		b.id = &id
	}
	return b
}

// SetName sets the display name. It defaults to the executable spec's name.
func (b *JobBuilder) SetName(name string) *JobBuilder {
	if b.mutable("name") {
		b.name = name
	}
	return b
}

// SetExtJob sets the executable specification. The builder keeps a copy.
func (b *JobBuilder) SetExtJob(ext ExtJob) *JobBuilder {
	if b.mutable("ext_job") {
		c := ext.Clone()
		b.extJob = &c
	}
	return b
}

func (b *JobBuilder) validate(path string) error {
	if err := b.err(); err != nil {
		return err
	}
	if b.id == nil {
		return required(path, "id")
	}
	if *b.id < 0 {
		return &ValidationError{Entity: path, Field: "id", Reason: "must be non-negative"}
	}
	if b.extJob == nil {
		return required(path, "executable spec")
	}
	if b.extJob.Executable == "" {
		return required(path, "executable")
	}
	return nil
}

func (b *JobBuilder) build() *Job {
	if b.job == nil {
		name := b.name
		if name == "" {
			name = b.extJob.Name
		}
		b.job = &Job{id: *b.id, name: name, extJob: b.extJob.Clone()}
		b.built = true
	}
	return b.job
}

// Build validates the builder and returns the frozen Job.
func (b *JobBuilder) Build() (*Job, error) {
	if err := b.validate("job"); err != nil {
		return nil, err
	}
	return b.build(), nil
}
