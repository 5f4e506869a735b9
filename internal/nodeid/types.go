// internal/nodeid/types.go
package nodeid

import "strconv"

// Level identifies how deep in the job graph an address points.
type Level int

const (
	// LevelNone is the level of the zero Address.
	LevelNone Level = iota
	LevelRealization
	LevelStage
	LevelStep
	LevelJob
)

// String returns the plural segment name used in the canonical form.
func (l Level) String() string {
	switch l {
	case LevelRealization:
		return "reals"
	case LevelStage:
		return "stages"
	case LevelStep:
		return "steps"
	case LevelJob:
		return "jobs"
	default:
		return "none"
	}
}

// Address is the structured representation of a node address. Keys are
// kept as strings because that is how the wire form and the snapshot maps
// key them. An empty key terminates the address.
type Address struct {
	Real  string
	Stage string
	Step  string
	Job   string
}

// Real returns the address of realization iens.
func Real(iens int) Address {
	return Address{Real: strconv.Itoa(iens)}
}

// Job returns the address of a single job.
func Job(iens, stage, step, job int) Address {
	return Real(iens).WithStage(stage).WithStep(step).WithJob(job)
}

// WithStage returns a copy of a addressing stage id below its realization.
func (a Address) WithStage(id int) Address {
	a.Stage, a.Step, a.Job = strconv.Itoa(id), "", ""
	return a
}

// WithStep returns a copy of a addressing step id below its stage.
func (a Address) WithStep(id int) Address {
	a.Step, a.Job = strconv.Itoa(id), ""
	return a
}

// WithJob returns a copy of a addressing job id below its step.
func (a Address) WithJob(id int) Address {
	a.Job = strconv.Itoa(id)
	return a
}

// Level reports how deep the address points.
func (a Address) Level() Level {
	switch {
	case a.Real == "":
		return LevelNone
	case a.Stage == "":
		return LevelRealization
	case a.Step == "":
		return LevelStage
	case a.Job == "":
		return LevelStep
	default:
		return LevelJob
	}
}

// Parent returns the address one level up. The parent of a realization
// address is the zero Address.
func (a Address) Parent() Address {
	switch a.Level() {
	case LevelJob:
		a.Job = ""
	case LevelStep:
		a.Step = ""
	case LevelStage:
		a.Stage = ""
	default:
		return Address{}
	}
	return a
}

// Iens returns the realization index as an integer.
func (a Address) Iens() (int, error) {
	return strconv.Atoi(a.Real)
}
