package descriptor

// Task describes an immediate or scheduled workflow deployment.
type Task struct {
	Name                string    `yaml:"name" json:"name" jsonschema:"required"`
	Runner              string    `yaml:"runner" json:"runner" jsonschema:"required"`
	Overwritable        bool      `yaml:"overwritable,omitempty" json:"overwritable,omitempty"`
	Template            bool      `yaml:"template,omitempty" json:"template,omitempty"`
	Server              string    `yaml:"server,omitempty" json:"server,omitempty"`
	Namespace           string    `yaml:"namespace,omitempty" json:"namespace,omitempty"`
	DeployOnServerStart bool      `yaml:"deploy_on_server_start,omitempty" json:"deploy_on_server_start,omitempty"`
	Description         string    `yaml:"description,omitempty" json:"description,omitempty"`
	Workflow            Execution `yaml:"workflow" json:"workflow" jsonschema:"required"`
	Schedule            *Schedule `yaml:"schedule,omitempty" json:"schedule,omitempty"`
}

// Execution is the workflow fragment of a task descriptor.
type Execution struct {
	Overwritable      bool              `yaml:"overwritable,omitempty" json:"overwritable,omitempty"`
	Workflow          string            `yaml:"workflow" json:"workflow" jsonschema:"required"`
	WorkflowID        string            `yaml:"workflow_id,omitempty" json:"workflow_id,omitempty"`
	TaskQueue         string            `yaml:"task_queue,omitempty" json:"task_queue,omitempty"`
	WorkflowKwargs    map[string]any    `yaml:"workflow_kwargs,omitempty" json:"workflow_kwargs,omitempty"`
	ExecutionTimeout  *Duration         `yaml:"execution_timeout,omitempty" json:"execution_timeout,omitempty"`
	RunTimeout        *Duration         `yaml:"run_timeout,omitempty" json:"run_timeout,omitempty"`
	TaskTimeout       *Duration         `yaml:"task_timeout,omitempty" json:"task_timeout,omitempty"`
	StartDelay        *Duration         `yaml:"start_delay,omitempty" json:"start_delay,omitempty"`
	RPCTimeout        *Duration         `yaml:"rpc_timeout,omitempty" json:"rpc_timeout,omitempty"`
	IDReusePolicy     string            `yaml:"id_reuse_policy,omitempty" json:"id_reuse_policy,omitempty"`
	RetryPolicy       *RetryPolicy      `yaml:"retry_policy,omitempty" json:"retry_policy,omitempty"`
	CronSchedule      string            `yaml:"cron_schedule,omitempty" json:"cron_schedule,omitempty"`
	Memo              map[string]any    `yaml:"memo,omitempty" json:"memo,omitempty"`
	StartSignal       string            `yaml:"start_signal,omitempty" json:"start_signal,omitempty"`
	StartSignalArgs   []any             `yaml:"start_signal_args,omitempty" json:"start_signal_args,omitempty"`
	RPCMetadata       map[string]string `yaml:"rpc_metadata,omitempty" json:"rpc_metadata,omitempty"`
	RequestEagerStart bool              `yaml:"request_eager_start,omitempty" json:"request_eager_start,omitempty"`
	Wait              bool              `yaml:"wait,omitempty" json:"wait,omitempty"`
}

// Schedule is the recurring fragment of a task descriptor.
type Schedule struct {
	Overwritable       bool       `yaml:"overwritable,omitempty" json:"overwritable,omitempty"`
	SchedulerID        string     `yaml:"scheduler_id,omitempty" json:"scheduler_id,omitempty"`
	Intervals          []Interval `yaml:"intervals,omitempty" json:"intervals,omitempty"`
	Calendars          []Calendar `yaml:"calendars,omitempty" json:"calendars,omitempty"`
	Crons              []string   `yaml:"crons,omitempty" json:"crons,omitempty"`
	Skip               []Calendar `yaml:"skip,omitempty" json:"skip,omitempty"`
	StartAt            *Time      `yaml:"start_at,omitempty" json:"start_at,omitempty"`
	EndAt              *Time      `yaml:"end_at,omitempty" json:"end_at,omitempty"`
	Jitter             *Duration  `yaml:"jitter,omitempty" json:"jitter,omitempty"`
	TZ                 string     `yaml:"tz,omitempty" json:"tz,omitempty"`
	TriggerImmediately bool       `yaml:"trigger_immediately,omitempty" json:"trigger_immediately,omitempty"`
	Policy             Policy     `yaml:"policy,omitempty" json:"policy,omitempty"`
	State              State      `yaml:"state,omitempty" json:"state,omitempty"`
}

type Interval struct {
	Every  Duration  `yaml:"every" json:"every" jsonschema:"required"`
	Offset *Duration `yaml:"offset,omitempty" json:"offset,omitempty"`
}

// Calendar fields list the matching values; an empty field matches the
// engine default for that field.
type Calendar struct {
	Second     []int  `yaml:"second,omitempty" json:"second,omitempty"`
	Minute     []int  `yaml:"minute,omitempty" json:"minute,omitempty"`
	Hour       []int  `yaml:"hour,omitempty" json:"hour,omitempty"`
	DayOfMonth []int  `yaml:"day_of_month,omitempty" json:"day_of_month,omitempty"`
	Month      []int  `yaml:"month,omitempty" json:"month,omitempty"`
	Year       []int  `yaml:"year,omitempty" json:"year,omitempty"`
	DayOfWeek  []int  `yaml:"day_of_week,omitempty" json:"day_of_week,omitempty"`
	Comment    string `yaml:"comment,omitempty" json:"comment,omitempty"`
}

type Policy struct {
	Overlap        string    `yaml:"overlap,omitempty" json:"overlap,omitempty"`
	CatchupWindow  *Duration `yaml:"catchup_window,omitempty" json:"catchup_window,omitempty"`
	PauseOnFailure bool      `yaml:"pause_on_failure,omitempty" json:"pause_on_failure,omitempty"`
}

type State struct {
	Paused           bool   `yaml:"paused,omitempty" json:"paused,omitempty"`
	Note             string `yaml:"note,omitempty" json:"note,omitempty"`
	LimitedActions   bool   `yaml:"limited_actions,omitempty" json:"limited_actions,omitempty"`
	RemainingActions int    `yaml:"remaining_actions,omitempty" json:"remaining_actions,omitempty"`
}
