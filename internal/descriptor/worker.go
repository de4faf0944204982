package descriptor

// Worker describes a long-running worker deployment.
type Worker struct {
	Overwritable        bool       `yaml:"overwritable,omitempty" json:"overwritable,omitempty"`
	Template            bool       `yaml:"template,omitempty" json:"template,omitempty"`
	Server              string     `yaml:"server,omitempty" json:"server,omitempty"`
	Namespace           string     `yaml:"namespace,omitempty" json:"namespace,omitempty"`
	DeployOnServerStart bool       `yaml:"deploy_on_server_start,omitempty" json:"deploy_on_server_start,omitempty"`
	Description         string     `yaml:"description,omitempty" json:"description,omitempty"`
	Worker              WorkerSpec `yaml:"worker" json:"worker" jsonschema:"required"`
}

type WorkerSpec struct {
	Overwritable bool     `yaml:"overwritable,omitempty" json:"overwritable,omitempty"`
	Type         string   `yaml:"type" json:"type" jsonschema:"required"`
	TaskQueue    string   `yaml:"task_queue" json:"task_queue" jsonschema:"required"`
	Activities   []string `yaml:"activities,omitempty" json:"activities,omitempty"`
	Workflows    []string `yaml:"workflows,omitempty" json:"workflows,omitempty"`
	MaxWorkers   int      `yaml:"max_workers,omitempty" json:"max_workers,omitempty"`
}
