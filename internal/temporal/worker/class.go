// Package temporalworker runs task-queue workers for catalog objects, either
// inside the control plane or as supervised child processes.
package temporalworker

import (
	"context"
	"time"

	"go.temporal.io/sdk/client"

	"launchpad/internal/catalog"
	"launchpad/internal/temporal"
)

const (
	AsyncWorkerName   = "AsyncWorker"
	ProcessWorkerName = "ProcessWorker"
)

const (
	defaultMaxWorkers                 = 100
	defaultMaxConcurrentWorkflowTasks = 10
	defaultWorkerStopTimeout          = 5 * time.Second
	defaultDeadlockDetectionTimeout   = 10 * time.Second
	defaultMaxConcurrentTaskPollers   = 2
)

// Spec is everything a worker class needs to serve one task queue.
type Spec struct {
	TaskQueue  string
	Namespace  string
	Activities []catalog.Object
	Workflows  []catalog.Object
	MaxWorkers int
	Endpoint   temporal.Endpoint
}

func (s Spec) activityNames() []string { return objectNames(s.Activities) }

func (s Spec) workflowNames() []string { return objectNames(s.Workflows) }

func objectNames(objects []catalog.Object) []string {
	names := make([]string, 0, len(objects))
	for _, object := range objects {
		names = append(names, object.Name)
	}
	return names
}

// Class starts workers. Implementations are seeded as worker-class objects.
type Class interface {
	Start(ctx context.Context, c client.Client, spec Spec) (Handle, error)
}

// Handle controls one running worker.
type Handle interface {
	ID() string
	TaskQueue() string
	// Stop shuts the worker down cooperatively.
	Stop(ctx context.Context) error
	// Kill forces the worker down.
	Kill() error
	Done() <-chan struct{}
	Info() HandleInfo
}

type HandleInfo struct {
	ID         string    `json:"id"`
	Class      string    `json:"class"`
	TaskQueue  string    `json:"task_queue"`
	Namespace  string    `json:"namespace"`
	PID        int       `json:"pid,omitempty"`
	Started    time.Time `json:"started"`
	Activities []string  `json:"activities"`
	Workflows  []string  `json:"workflows"`
}

// ClassOf returns the worker class stored in a catalog object.
func ClassOf(object catalog.Object) (Class, bool) {
	if !object.IsWorkerClass() {
		return nil, false
	}
	class, ok := object.Value.(Class)
	return class, ok
}

// Builtins returns the compiled worker classes as catalog objects.
func Builtins(async *AsyncWorker, process *ProcessWorker) catalog.Objects {
	objects := catalog.Objects{}
	if async != nil {
		objects[AsyncWorkerName] = catalog.WorkerClass(AsyncWorkerName, async)
	}
	if process != nil {
		objects[ProcessWorkerName] = catalog.WorkerClass(ProcessWorkerName, process)
	}
	for name, object := range objects {
		object.Module = "builtin"
		objects[name] = object
	}
	return objects
}
