package cluster

import (
	"context"
	"errors"
	"sort"
	"sync"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/temporal"
	"golang.org/x/sync/errgroup"

	"launchpad/internal/catalog"
	"launchpad/internal/descriptor"
	"launchpad/internal/errdefs"
	"launchpad/internal/logging"
	"launchpad/internal/runner"
	temporalworker "launchpad/internal/temporal/worker"
)

const (
	operationStart   = "start"
	operationRestart = "restart"
	operationStop    = "stop"
)

// onStartConcurrency bounds the deployments issued at boot.
const onStartConcurrency = 4

// DeployTask resolves a task descriptor and hands it to its runner.
func (f *Fleet) DeployTask(ctx context.Context, name string, overwrite, templateArgs map[string]any) error {
	payload, err := f.TaskSettings(name, overwrite, templateArgs)
	if err != nil {
		return err
	}
	task, err := descriptor.DecodeTask(payload)
	if err != nil {
		return err
	}
	objects := f.Snapshot().Objects
	taskRunner, workflow, err := resolveTask(task, objects)
	if err != nil {
		return err
	}

	frame, err := f.ResolveFrame(ctx, task.Server, task.Namespace)
	if err == nil {
		err = taskRunner.Execute(runner.WithCatalog(ctx, objects), frame.Client, workflow, payload)
	}
	f.metrics.deployment(ctx, frame, err)
	if err != nil {
		return err
	}
	f.logger.Info("task deployed", map[string]string{
		"task":       name,
		"runner":     task.Runner,
		"connection": frame.Connection.Name(),
		"namespace":  frame.Namespace.Name(),
	})
	return nil
}

// resolveTask picks the runner and the workflow a task names.
func resolveTask(task descriptor.Task, objects catalog.Catalog) (runner.Runner, catalog.Object, error) {
	if task.Runner == "" {
		return nil, catalog.Object{}, errdefs.Settings("task %q descriptor missing `runner` field", task.Name)
	}
	taskRunner, ok := runner.Of(objects.Runners[task.Runner])
	if !ok {
		return nil, catalog.Object{}, errdefs.MissingImport("runner %q", task.Runner)
	}
	if task.Workflow.Workflow == "" {
		return nil, catalog.Object{}, errdefs.Settings("task %q descriptor missing `workflow.workflow` field", task.Name)
	}
	workflow, ok := objects.Workflows[task.Workflow.Workflow]
	if !ok || !workflow.IsWorkflow() {
		return nil, catalog.Object{}, errdefs.MissingImport("workflow %q", task.Workflow.Workflow)
	}
	if err := resolveTaskActivity(task, objects); err != nil {
		return nil, catalog.Object{}, err
	}
	return taskRunner, workflow, nil
}

// resolveTaskActivity checks the activity named by workflow_kwargs.activity,
// the one the built-in Task workflow executes.
func resolveTaskActivity(task descriptor.Task, objects catalog.Catalog) error {
	raw, ok := task.Workflow.WorkflowKwargs["activity"]
	if !ok || raw == nil {
		return nil
	}
	name, ok := raw.(string)
	if !ok || name == "" {
		return errdefs.Settings("task %q `workflow.workflow_kwargs.activity` must be an activity name", task.Name)
	}
	activity, ok := objects.Activities[name]
	if !ok || !activity.IsActivity() {
		return errdefs.MissingImport("activity %q", name)
	}
	return nil
}

// DeployWorker starts the worker a descriptor declares. Objects are resolved
// before any cluster call.
func (f *Fleet) DeployWorker(ctx context.Context, taskQueue string, overwrite, templateArgs map[string]any) (temporalworker.HandleInfo, error) {
	payload, err := f.WorkerSettings(taskQueue, overwrite, templateArgs)
	if err != nil {
		return temporalworker.HandleInfo{}, err
	}
	settings, err := descriptor.DecodeWorker(payload)
	if err != nil {
		return temporalworker.HandleInfo{}, err
	}
	objects := f.Snapshot().Objects
	class, spec, err := ResolveWorker(settings.Worker, objects)
	if err != nil {
		return temporalworker.HandleInfo{}, err
	}

	frame, err := f.ResolveFrame(ctx, settings.Server, settings.Namespace)
	var info temporalworker.HandleInfo
	if err == nil {
		info, err = frame.Namespace.start(ctx, frame.Client, class, spec)
	}
	f.metrics.workerOperation(ctx, operationStart, frame, err)
	if err != nil {
		return temporalworker.HandleInfo{}, err
	}
	f.logger.Info("worker deployed", map[string]string{
		"task_queue": spec.TaskQueue,
		"class":      settings.Worker.Type,
		"connection": frame.Connection.Name(),
		"namespace":  frame.Namespace.Name(),
	})
	return info, nil
}

// RestartWorker restarts the single running worker on taskQueue with freshly
// resolved settings, in the namespace it already runs in. The overwrite may
// not change the task queue.
func (f *Fleet) RestartWorker(ctx context.Context, taskQueue, connectionName, namespaceName string, overwrite, templateArgs map[string]any) (temporalworker.HandleInfo, error) {
	match, err := f.findWorker(taskQueue, connectionName, namespaceName)
	if err != nil {
		return temporalworker.HandleInfo{}, err
	}
	payload, err := f.WorkerSettings(taskQueue, overwrite, templateArgs)
	if err != nil {
		return temporalworker.HandleInfo{}, err
	}
	settings, err := descriptor.DecodeWorker(payload)
	if err != nil {
		return temporalworker.HandleInfo{}, err
	}
	if settings.Worker.TaskQueue != taskQueue {
		return temporalworker.HandleInfo{}, errdefs.Settings("restart cannot move worker %q to task queue %q", taskQueue, settings.Worker.TaskQueue)
	}

	frame := Frame{Connection: match.Connection, Namespace: match.Namespace}
	frame.Client, err = match.Connection.Client(ctx, match.Namespace.Name())
	var info temporalworker.HandleInfo
	if err == nil {
		info, err = match.Namespace.RestartWorkers(ctx, frame.Client, settings.Worker, f.Snapshot().Objects)
	}
	f.metrics.workerOperation(ctx, operationRestart, frame, err)
	if err != nil {
		return temporalworker.HandleInfo{}, err
	}
	f.logger.Info("worker restarted", map[string]string{
		"task_queue": taskQueue,
		"connection": match.Connection.Name(),
		"namespace":  match.Namespace.Name(),
	})
	return info, nil
}

// StopWorker stops the single running worker on taskQueue.
func (f *Fleet) StopWorker(ctx context.Context, taskQueue, connectionName, namespaceName string) error {
	match, err := f.findWorker(taskQueue, connectionName, namespaceName)
	if err != nil {
		return err
	}
	err = match.Namespace.StopWorkers(ctx, taskQueue)
	f.metrics.workerOperation(ctx, operationStop, Frame{Connection: match.Connection, Namespace: match.Namespace}, err)
	return err
}

// DeployTasksOnStart deploys every task flagged deploy_on_server_start.
// Already started workflows and schedules only warn.
func (f *Fleet) DeployTasksOnStart(ctx context.Context) error {
	return f.deployOnStart(ctx, "task", f.Snapshot().Settings.Tasks, func(ctx context.Context, name string) error {
		return f.DeployTask(ctx, name, nil, nil)
	})
}

// DeployWorkersOnStart starts every worker flagged deploy_on_server_start.
// Workers already running only warn.
func (f *Fleet) DeployWorkersOnStart(ctx context.Context) error {
	return f.deployOnStart(ctx, "worker", f.Snapshot().Settings.Workers, func(ctx context.Context, taskQueue string) error {
		_, err := f.DeployWorker(ctx, taskQueue, nil, nil)
		return err
	})
}

func (f *Fleet) deployOnStart(ctx context.Context, kind string, settings map[string]map[string]any, deploy func(context.Context, string) error) error {
	names := make([]string, 0, len(settings))
	for name, payload := range settings {
		if !descriptor.Bool(payload, "deploy_on_server_start") {
			continue
		}
		if descriptor.Bool(payload, "template") {
			f.logger.Warn("template descriptor cannot be deployed on start", map[string]string{kind: name})
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var (
		mu   sync.Mutex
		errs []error
	)
	var group errgroup.Group
	group.SetLimit(onStartConcurrency)
	for _, name := range names {
		name := name
		group.Go(func() error {
			err := deploy(ctx, name)
			switch {
			case err == nil:
			case alreadyStarted(err):
				f.logger.Warn(kind+" already running", map[string]string{kind: name})
			default:
				f.logger.Error(kind+" deploy on start failed", logging.WithError(map[string]string{kind: name}, err))
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = group.Wait()
	return errors.Join(errs...)
}

func alreadyStarted(err error) bool {
	var started *serviceerror.WorkflowExecutionAlreadyStarted
	return errors.As(err, &started) ||
		errors.Is(err, temporal.ErrScheduleAlreadyRunning) ||
		errors.Is(err, errdefs.ErrAlreadyRunning)
}
