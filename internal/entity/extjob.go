package entity

import "maps"

// ExtJob is the executable specification of a Job as produced by the
// configuration layer. The JSON field names are those of the jobs.json
// file read by the job runner on the compute node; every field must
// round-trip unchanged from configuration to dispatch.
type ExtJob struct {
	Name              string            `json:"name"`
	Executable        string            `json:"executable"`
	TargetFile        string            `json:"target_file"`
	ErrorFile         string            `json:"error_file"`
	StartFile         string            `json:"start_file"`
	Stdout            string            `json:"stdout"`
	Stderr            string            `json:"stderr"`
	Stdin             string            `json:"stdin"`
	LicensePath       string            `json:"license_path"`
	Environment       map[string]string `json:"environment"`
	ExecEnv           map[string]string `json:"exec_env"`
	MaxRunning        int               `json:"max_running"`
	MaxRunningMinutes int               `json:"max_running_minutes"`
	MinArg            int               `json:"min_arg"`
	MaxArg            int               `json:"max_arg"`
	ArgTypes          []string          `json:"arg_types"`
	ArgList           []string          `json:"argList"`
}

// Clone returns a deep copy of the descriptor.
func (e ExtJob) Clone() ExtJob {
	out := e
	out.Environment = maps.Clone(e.Environment)
	out.ExecEnv = maps.Clone(e.ExecEnv)
	if e.ArgTypes != nil {
		out.ArgTypes = append([]string(nil), e.ArgTypes...)
	}
	if e.ArgList != nil {
		out.ArgList = append([]string(nil), e.ArgList...)
	}
	return out
}
