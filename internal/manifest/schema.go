package manifest

import "github.com/hashicorp/hcl/v2"

// fileRoot decodes the top level of a manifest file.
type fileRoot struct {
	Ensembles []*ensembleBlock `hcl:"ensemble,block"`
	Remain    hcl.Body         `hcl:",remain"`
}

type ensembleBlock struct {
	Size       int            `hcl:"size"`
	Active     *string        `hcl:"active,optional"`
	RunPath    hcl.Expression `hcl:"run_path,optional"`
	MaxRuntime *string        `hcl:"max_runtime,optional"`
	Queue      *queueBlock    `hcl:"queue,block"`
	Analysis   *analysisBlock `hcl:"analysis,block"`
	Stages     []*stageBlock  `hcl:"stage,block"`
}

type queueBlock struct {
	System     *string           `hcl:"system,optional"`
	JobScript  *string           `hcl:"job_script,optional"`
	MaxSubmit  *int              `hcl:"max_submit,optional"`
	MaxRunning *int              `hcl:"max_running,optional"`
	NumCPU     *int              `hcl:"num_cpu,optional"`
	Options    map[string]string `hcl:"options,optional"`
}

type analysisBlock struct {
	StopLongRunning *bool `hcl:"stop_long_running,optional"`
	MinRealizations *int  `hcl:"min_realizations,optional"`
}

type stageBlock struct {
	Name       string         `hcl:"name,label"`
	RunPath    hcl.Expression `hcl:"run_path,optional"`
	MaxRuntime *string        `hcl:"max_runtime,optional"`
	JobScript  *string        `hcl:"job_script,optional"`
	Steps      []*stepBlock   `hcl:"step,block"`
}

type stepBlock struct {
	Inputs  []string    `hcl:"inputs,optional"`
	Outputs []string    `hcl:"outputs,optional"`
	Jobs    []*jobBlock `hcl:"job,block"`
}

type jobBlock struct {
	Name              string            `hcl:"name,label"`
	Executable        string            `hcl:"executable"`
	Args              hcl.Expression    `hcl:"args,optional"`
	Stdin             hcl.Expression    `hcl:"stdin,optional"`
	Stdout            *string           `hcl:"stdout,optional"`
	Stderr            *string           `hcl:"stderr,optional"`
	TargetFile        *string           `hcl:"target_file,optional"`
	ErrorFile         *string           `hcl:"error_file,optional"`
	StartFile         *string           `hcl:"start_file,optional"`
	LicensePath       *string           `hcl:"license_path,optional"`
	Environment       map[string]string `hcl:"environment,optional"`
	ExecEnv           map[string]string `hcl:"exec_env,optional"`
	MaxRunning        *int              `hcl:"max_running,optional"`
	MaxRunningMinutes *int              `hcl:"max_running_minutes,optional"`
	MinArg            *int              `hcl:"min_arg,optional"`
	MaxArg            *int              `hcl:"max_arg,optional"`
	ArgTypes          []string          `hcl:"arg_types,optional"`
}
