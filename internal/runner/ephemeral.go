package runner

import (
	"context"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"launchpad/internal/catalog"
	"launchpad/internal/descriptor"
	"launchpad/internal/errdefs"
	"launchpad/internal/logging"
	temporalworker "launchpad/internal/temporal/worker"
)

// WorkerFactory builds the short-lived worker of an EphemeralWorker run.
type WorkerFactory func(c client.Client, spec temporalworker.Spec) (worker.Worker, error)

// EphemeralWorker serves the target workflow and its activity on a worker
// that lives only for the duration of one execution.
type EphemeralWorker struct {
	Logger    *logging.Logger
	NewWorker WorkerFactory
}

func (r *EphemeralWorker) Execute(ctx context.Context, c client.Client, target catalog.Object, payload map[string]any) error {
	task, err := descriptor.DecodeTask(payload)
	if err != nil {
		return err
	}
	activity, err := ephemeralActivity(ctx, task)
	if err != nil {
		return err
	}
	logger := runnerLogger(r.Logger)
	options, err := StartOptions(task.Workflow, logger)
	if err != nil {
		return err
	}

	newWorker := r.NewWorker
	if newWorker == nil {
		newWorker = temporalworker.NewSDKWorker
	}
	sdkWorker, err := newWorker(c, temporalworker.Spec{
		TaskQueue:  options.TaskQueue,
		Activities: []catalog.Object{activity},
		Workflows:  []catalog.Object{target},
	})
	if err != nil {
		return err
	}
	if err := sdkWorker.Start(); err != nil {
		return errdefs.Cluster(err, "start worker on %s", options.TaskQueue)
	}
	defer sdkWorker.Stop()

	run, err := start(ctx, c, target.Name, task.Workflow, options)
	if err != nil {
		return err
	}
	logger.Info("workflow started on temporary worker", map[string]string{
		"task":        task.Name,
		"workflow":    target.Name,
		"activity":    activity.Name,
		"workflow_id": run.GetID(),
		"task_queue":  options.TaskQueue,
	})
	if err := run.Get(ctx, nil); err != nil {
		return errdefs.Cluster(err, "workflow %s", run.GetID())
	}
	return nil
}

func ephemeralActivity(ctx context.Context, task descriptor.Task) (catalog.Object, error) {
	name, _ := task.Workflow.WorkflowKwargs["activity"].(string)
	if name == "" {
		return catalog.Object{}, errdefs.Settings("task %q has no `workflow.workflow_kwargs.activity` field", task.Name)
	}
	objects, _ := CatalogFrom(ctx)
	activity, ok := objects.Activities[name]
	if !ok || !activity.IsActivity() {
		return catalog.Object{}, errdefs.MissingImport("activity %q", name)
	}
	return activity, nil
}
