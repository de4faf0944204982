// Package runner turns resolved task descriptors into workflow executions
// and schedules on a cluster.
package runner

import (
	"context"
	"time"

	"go.temporal.io/sdk/client"

	"launchpad/internal/catalog"
	"launchpad/internal/descriptor"
	"launchpad/internal/logging"
)

const (
	ImmediateName       = "ImmediateRunner"
	ScheduledName       = "ScheduledRunner"
	EphemeralWorkerName = "EphemeralWorkerRunner"

	WorkflowRunnerAlias               = "WorkflowRunner"
	ScheduledWorkflowRunnerAlias      = "ScheduledWorkflowRunner"
	WorkflowRunnerWithTempWorkerAlias = "WorkflowRunnerWithTempWorker"
)

// DefaultTaskQueue is used when a task descriptor names no task queue.
const DefaultTaskQueue = "default"

// Runner executes one task. target is the workflow object named by the
// descriptor and payload the fully resolved task descriptor.
type Runner interface {
	Execute(ctx context.Context, c client.Client, target catalog.Object, payload map[string]any) error
}

// Of returns the runner stored in a catalog object.
func Of(object catalog.Object) (Runner, bool) {
	if !object.IsRunner() {
		return nil, false
	}
	runner, ok := object.Value.(Runner)
	return runner, ok
}

type catalogKey struct{}

// WithCatalog attaches the catalog a runner may need beyond its target.
func WithCatalog(ctx context.Context, objects catalog.Catalog) context.Context {
	return context.WithValue(ctx, catalogKey{}, objects)
}

func CatalogFrom(ctx context.Context) (catalog.Catalog, bool) {
	objects, ok := ctx.Value(catalogKey{}).(catalog.Catalog)
	return objects, ok
}

// Builtins returns the compiled runners under their names and aliases.
func Builtins(logger *logging.Logger) catalog.Objects {
	immediate := &Immediate{Logger: logger}
	scheduled := &Scheduled{Logger: logger}
	ephemeral := &EphemeralWorker{Logger: logger}
	objects := catalog.Objects{
		ImmediateName:                     catalog.Runner(ImmediateName, immediate),
		WorkflowRunnerAlias:               catalog.Runner(WorkflowRunnerAlias, immediate),
		ScheduledName:                     catalog.Runner(ScheduledName, scheduled),
		ScheduledWorkflowRunnerAlias:      catalog.Runner(ScheduledWorkflowRunnerAlias, scheduled),
		EphemeralWorkerName:               catalog.Runner(EphemeralWorkerName, ephemeral),
		WorkflowRunnerWithTempWorkerAlias: catalog.Runner(WorkflowRunnerWithTempWorkerAlias, ephemeral),
	}
	for name, object := range objects {
		object.Module = "builtin"
		objects[name] = object
	}
	return objects
}

func runnerLogger(l *logging.Logger) *logging.Logger {
	if l == nil {
		l = logging.Discard()
	}
	return l.Named("runner")
}

func std(d *descriptor.Duration) time.Duration {
	if d == nil {
		return 0
	}
	return d.Std()
}
