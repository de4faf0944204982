package catalog

import (
	"fmt"
	"strings"

	"launchpad/internal/descriptor"
)

// TaskWorkflowName is the built-in workflow that runs a single activity.
const TaskWorkflowName = "Task"

// Builtins returns the workflow objects compiled into the binary.
func Builtins() Objects {
	task := Workflow(TaskWorkflowName, TaskWorkflow)
	task.Module = "builtin"
	return Objects{TaskWorkflowName: task}
}

// TaskWorkflow runs the activity named by input["activity"]. Keys ending in
// "_timeout" and "retry_policy" become activity options; every other key,
// including "args", is passed to the activity as its input.
func TaskWorkflow(ctx WorkflowContext, input map[string]any) (any, error) {
	name, _ := input["activity"].(string)
	if name == "" {
		return nil, fmt.Errorf("task input must name an activity")
	}
	options, err := taskActivityOptions(input)
	if err != nil {
		return nil, err
	}
	activityInput := make(map[string]any, len(input))
	for key, value := range input {
		if key == "activity" || key == "retry_policy" || key == "cancellation_type" || strings.HasSuffix(key, "_timeout") {
			continue
		}
		activityInput[key] = value
	}
	if _, ok := activityInput["args"]; !ok {
		activityInput["args"] = []any{}
	}
	ctx.Log("starting task activity", "activity", name)
	return ctx.ExecuteActivityWithOptions(name, options, activityInput)
}

func taskActivityOptions(input map[string]any) (ActivityOptions, error) {
	var options ActivityOptions
	for key, value := range input {
		if !strings.HasSuffix(key, "_timeout") {
			continue
		}
		parsed, err := descriptor.ParseDuration(value)
		if err != nil {
			return ActivityOptions{}, err
		}
		switch key {
		case "start_to_close_timeout":
			options.StartToCloseTimeout = parsed
		case "schedule_to_close_timeout":
			options.ScheduleToCloseTimeout = parsed
		case "schedule_to_start_timeout":
			options.ScheduleToStartTimeout = parsed
		case "heartbeat_timeout":
			options.HeartbeatTimeout = parsed
		default:
			return ActivityOptions{}, fmt.Errorf("unknown activity timeout %q", key)
		}
	}
	policy, err := descriptor.ParseRetryPolicy(input["retry_policy"])
	if err != nil {
		return ActivityOptions{}, err
	}
	options.RetryPolicy = policy
	cancellation, _ := input["cancellation_type"].(string)
	options.WaitForCancellation = cancellation == "WAIT_CANCELLATION_COMPLETED"
	return options, nil
}
