package entity

// QueueConfig carries the queue driver settings of an evaluation. The core
// only forwards it to the dispatcher.
type QueueConfig struct {
	QueueSystem string            `json:"queue_system" yaml:"queue_system"`
	JobScript   string            `json:"job_script" yaml:"job_script"`
	MaxSubmit   int               `json:"max_submit" yaml:"max_submit"`
	MaxRunning  int               `json:"max_running" yaml:"max_running"`
	NumCPU      int               `json:"num_cpu" yaml:"num_cpu"`
	Options     map[string]string `json:"options,omitempty" yaml:"options,omitempty"`
}

// AnalysisConfig carries the analysis settings the dispatcher consults.
type AnalysisConfig struct {
	StopLongRunning bool `json:"stop_long_running" yaml:"stop_long_running"`
	MinRealizations int  `json:"min_realizations" yaml:"min_realizations"`
}

// Dependencies is the explicit configuration value threaded from the
// ensemble into every dispatch call.
type Dependencies struct {
	Queue    QueueConfig
	Analysis AnalysisConfig
}
