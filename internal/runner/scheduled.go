package runner

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"

	"launchpad/internal/catalog"
	"launchpad/internal/descriptor"
	"launchpad/internal/errdefs"
	"launchpad/internal/logging"
)

const (
	DefaultTimeZone      = "UTC"
	DefaultCatchupWindow = time.Minute
)

var overlapPolicies = map[string]enumspb.ScheduleOverlapPolicy{
	"SKIP":            enumspb.SCHEDULE_OVERLAP_POLICY_SKIP,
	"BUFFER_ONE":      enumspb.SCHEDULE_OVERLAP_POLICY_BUFFER_ONE,
	"BUFFER_ALL":      enumspb.SCHEDULE_OVERLAP_POLICY_BUFFER_ALL,
	"CANCEL_OTHER":    enumspb.SCHEDULE_OVERLAP_POLICY_CANCEL_OTHER,
	"TERMINATE_OTHER": enumspb.SCHEDULE_OVERLAP_POLICY_TERMINATE_OTHER,
	"ALLOW_ALL":       enumspb.SCHEDULE_OVERLAP_POLICY_ALLOW_ALL,
}

// Scheduled creates a schedule whose action starts the target workflow.
type Scheduled struct {
	Logger *logging.Logger
}

func (r *Scheduled) Execute(ctx context.Context, c client.Client, target catalog.Object, payload map[string]any) error {
	task, err := descriptor.DecodeTask(payload)
	if err != nil {
		return err
	}
	options, err := ScheduleOptions(task, target.Name)
	if err != nil {
		return err
	}
	rpcCtx, cancel := rpcContext(ctx, task.Workflow)
	defer cancel()
	handle, err := c.ScheduleClient().Create(rpcCtx, options)
	if err != nil {
		return errdefs.Cluster(err, "create schedule %s", options.ID)
	}
	runnerLogger(r.Logger).Info("schedule created", map[string]string{
		"task":        task.Name,
		"workflow":    target.Name,
		"schedule_id": handle.GetID(),
	})
	return nil
}

// ScheduleOptions translates a task descriptor with a schedule fragment.
// The schedule id defaults to the task name so redeploys address the same
// schedule.
func ScheduleOptions(task descriptor.Task, workflowName string) (client.ScheduleOptions, error) {
	schedule := task.Schedule
	if schedule == nil {
		return client.ScheduleOptions{}, errdefs.Settings("task %q has no `schedule` field", task.Name)
	}
	spec, err := scheduleSpec(*schedule)
	if err != nil {
		return client.ScheduleOptions{}, err
	}
	overlap, err := overlapPolicy(schedule.Policy.Overlap)
	if err != nil {
		return client.ScheduleOptions{}, err
	}
	remaining, err := remainingActions(task.Name, schedule.State)
	if err != nil {
		return client.ScheduleOptions{}, err
	}

	catchup := DefaultCatchupWindow
	if schedule.Policy.CatchupWindow != nil {
		catchup = schedule.Policy.CatchupWindow.Std()
	}
	id := schedule.SchedulerID
	if id == "" {
		id = task.Name
	}
	execution := task.Workflow
	workflowID := execution.WorkflowID
	if workflowID == "" {
		workflowID = uuid.NewString()
	}
	taskQueue := execution.TaskQueue
	if taskQueue == "" {
		taskQueue = DefaultTaskQueue
	}
	return client.ScheduleOptions{
		ID:   id,
		Spec: spec,
		Action: &client.ScheduleWorkflowAction{
			ID:                       workflowID,
			Workflow:                 workflowName,
			Args:                     []interface{}{workflowInput(execution)},
			TaskQueue:                taskQueue,
			WorkflowExecutionTimeout: std(execution.ExecutionTimeout),
			WorkflowRunTimeout:       std(execution.RunTimeout),
			WorkflowTaskTimeout:      std(execution.TaskTimeout),
			RetryPolicy:              execution.RetryPolicy.Temporal(),
			Memo:                     execution.Memo,
		},
		Overlap:            overlap,
		CatchupWindow:      catchup,
		PauseOnFailure:     schedule.Policy.PauseOnFailure,
		Note:               schedule.State.Note,
		Paused:             schedule.State.Paused,
		RemainingActions:   remaining,
		TriggerImmediately: schedule.TriggerImmediately,
	}, nil
}

func scheduleSpec(schedule descriptor.Schedule) (client.ScheduleSpec, error) {
	timeZone := schedule.TZ
	if timeZone == "" {
		timeZone = DefaultTimeZone
	}
	if _, err := time.LoadLocation(timeZone); err != nil {
		return client.ScheduleSpec{}, errdefs.Config("schedule time zone %q: %v", timeZone, err)
	}
	for _, expression := range schedule.Crons {
		if err := validateCron(expression); err != nil {
			return client.ScheduleSpec{}, err
		}
	}

	spec := client.ScheduleSpec{
		CronExpressions: schedule.Crons,
		TimeZoneName:    timeZone,
	}
	for _, interval := range schedule.Intervals {
		if interval.Every.Std() <= 0 {
			return client.ScheduleSpec{}, errdefs.Config("schedule interval must be positive")
		}
		spec.Intervals = append(spec.Intervals, client.ScheduleIntervalSpec{
			Every:  interval.Every.Std(),
			Offset: std(interval.Offset),
		})
	}
	for _, calendar := range schedule.Calendars {
		spec.Calendars = append(spec.Calendars, calendarSpec(calendar))
	}
	for _, calendar := range schedule.Skip {
		spec.Skip = append(spec.Skip, calendarSpec(calendar))
	}
	if schedule.StartAt != nil {
		spec.StartAt = schedule.StartAt.Time
	}
	if schedule.EndAt != nil {
		spec.EndAt = schedule.EndAt.Time
	}
	spec.Jitter = std(schedule.Jitter)
	return spec, nil
}

func calendarSpec(calendar descriptor.Calendar) client.ScheduleCalendarSpec {
	return client.ScheduleCalendarSpec{
		Second:     ranges(calendar.Second),
		Minute:     ranges(calendar.Minute),
		Hour:       ranges(calendar.Hour),
		DayOfMonth: ranges(calendar.DayOfMonth),
		Month:      ranges(calendar.Month),
		Year:       ranges(calendar.Year),
		DayOfWeek:  ranges(calendar.DayOfWeek),
		Comment:    calendar.Comment,
	}
}

func ranges(values []int) []client.ScheduleRange {
	if len(values) == 0 {
		return nil
	}
	converted := make([]client.ScheduleRange, 0, len(values))
	for _, value := range values {
		converted = append(converted, client.ScheduleRange{Start: value})
	}
	return converted
}

func overlapPolicy(name string) (enumspb.ScheduleOverlapPolicy, error) {
	if name == "" {
		return enumspb.SCHEDULE_OVERLAP_POLICY_SKIP, nil
	}
	key := strings.TrimPrefix(strings.ToUpper(name), "SCHEDULE_OVERLAP_POLICY_")
	policy, ok := overlapPolicies[key]
	if !ok {
		return 0, errdefs.Config("unknown schedule overlap policy %q", name)
	}
	return policy, nil
}

// remainingActions maps the state fragment onto the SDK, where zero means
// unlimited.
func remainingActions(taskName string, state descriptor.State) (int, error) {
	if state.LimitedActions && state.RemainingActions <= 0 {
		return 0, errdefs.Settings("task %q limits actions but sets no remaining_actions", taskName)
	}
	if state.RemainingActions < 0 {
		return 0, errdefs.Settings("task %q has negative remaining_actions", taskName)
	}
	return state.RemainingActions, nil
}
