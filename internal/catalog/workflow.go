package catalog

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// DefaultActivityTimeout bounds activities started without explicit timeouts.
const DefaultActivityTimeout = time.Minute

// WorkflowContext is the deterministic API interpreted workflows run against.
type WorkflowContext interface {
	ExecuteActivity(name string, input map[string]any) (any, error)
	ExecuteActivityWithOptions(name string, options ActivityOptions, input map[string]any) (any, error)
	Sleep(d time.Duration) error
	Now() time.Time
	Info() WorkflowInfo
	Log(message string, keyvals ...any)
}

type ActivityOptions struct {
	StartToCloseTimeout    time.Duration
	ScheduleToCloseTimeout time.Duration
	ScheduleToStartTimeout time.Duration
	HeartbeatTimeout       time.Duration
	RetryPolicy            *temporal.RetryPolicy
	WaitForCancellation    bool
}

type WorkflowInfo struct {
	WorkflowID string
	RunID      string
	TaskQueue  string
	Namespace  string
	Attempt    int32
}

// WorkflowDefinition is the function registered with Temporal workers.
type WorkflowDefinition func(ctx workflow.Context, input map[string]any) (any, error)

// Definition adapts a workflow object into a function Temporal can register.
func (o Object) Definition() (WorkflowDefinition, error) {
	fn, err := o.WorkflowFunc()
	if err != nil {
		return nil, err
	}
	return Adapt(fn), nil
}

func Adapt(fn WorkflowFunc) WorkflowDefinition {
	return func(ctx workflow.Context, input map[string]any) (any, error) {
		if input == nil {
			input = map[string]any{}
		}
		return fn(&workflowContext{ctx: ctx}, input)
	}
}

type workflowContext struct {
	ctx workflow.Context
}

func (c *workflowContext) ExecuteActivity(name string, input map[string]any) (any, error) {
	return c.ExecuteActivityWithOptions(name, ActivityOptions{}, input)
}

func (c *workflowContext) ExecuteActivityWithOptions(name string, options ActivityOptions, input map[string]any) (any, error) {
	if name == "" {
		return nil, fmt.Errorf("activity name is required")
	}
	activityOptions := workflow.ActivityOptions{
		StartToCloseTimeout:    options.StartToCloseTimeout,
		ScheduleToCloseTimeout: options.ScheduleToCloseTimeout,
		ScheduleToStartTimeout: options.ScheduleToStartTimeout,
		HeartbeatTimeout:       options.HeartbeatTimeout,
		RetryPolicy:            options.RetryPolicy,
		WaitForCancellation:    options.WaitForCancellation,
	}
	if activityOptions.StartToCloseTimeout == 0 && activityOptions.ScheduleToCloseTimeout == 0 {
		activityOptions.StartToCloseTimeout = DefaultActivityTimeout
	}
	activityCtx := workflow.WithActivityOptions(c.ctx, activityOptions)
	var result any
	if err := workflow.ExecuteActivity(activityCtx, name, input).Get(activityCtx, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *workflowContext) Sleep(d time.Duration) error {
	return workflow.Sleep(c.ctx, d)
}

func (c *workflowContext) Now() time.Time {
	return workflow.Now(c.ctx)
}

func (c *workflowContext) Info() WorkflowInfo {
	info := workflow.GetInfo(c.ctx)
	return WorkflowInfo{
		WorkflowID: info.WorkflowExecution.ID,
		RunID:      info.WorkflowExecution.RunID,
		TaskQueue:  info.TaskQueueName,
		Namespace:  info.Namespace,
		Attempt:    info.Attempt,
	}
}

func (c *workflowContext) Log(message string, keyvals ...any) {
	workflow.GetLogger(c.ctx).Info(message, keyvals...)
}
