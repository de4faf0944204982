package temporalworker

import (
	"fmt"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
)

// Registrar is the registration surface shared by SDK workers and the test
// workflow environment.
type Registrar interface {
	RegisterWorkflowWithOptions(w interface{}, options workflow.RegisterOptions)
	RegisterActivityWithOptions(a interface{}, options activity.RegisterOptions)
}

// Register binds every spec object under its catalog name.
func Register(registrar Registrar, spec Spec) error {
	for _, object := range spec.Activities {
		fn, err := object.ActivityFunc()
		if err != nil {
			return fmt.Errorf("register activity: %w", err)
		}
		registrar.RegisterActivityWithOptions(fn, activity.RegisterOptions{Name: object.Name})
	}
	for _, object := range spec.Workflows {
		definition, err := object.Definition()
		if err != nil {
			return fmt.Errorf("register workflow: %w", err)
		}
		registrar.RegisterWorkflowWithOptions(definition, workflow.RegisterOptions{Name: object.Name})
	}
	return nil
}

func workerOptions(spec Spec) worker.Options {
	maxWorkers := spec.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = defaultMaxWorkers
	}
	return worker.Options{
		MaxConcurrentActivityExecutionSize:     maxWorkers,
		MaxConcurrentWorkflowTaskExecutionSize: defaultMaxConcurrentWorkflowTasks,
		MaxConcurrentActivityTaskPollers:       defaultMaxConcurrentTaskPollers,
		MaxConcurrentWorkflowTaskPollers:       defaultMaxConcurrentTaskPollers,
		WorkerStopTimeout:                      defaultWorkerStopTimeout,
		DeadlockDetectionTimeout:               defaultDeadlockDetectionTimeout,
	}
}

// NewSDKWorker builds an SDK worker with every spec object registered.
func NewSDKWorker(c client.Client, spec Spec) (worker.Worker, error) {
	if c == nil {
		return nil, fmt.Errorf("temporal client is required")
	}
	if spec.TaskQueue == "" {
		return nil, fmt.Errorf("task queue is required")
	}
	sdkWorker := worker.New(c, spec.TaskQueue, workerOptions(spec))
	if err := Register(sdkWorker, spec); err != nil {
		return nil, err
	}
	return sdkWorker, nil
}
