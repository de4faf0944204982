package cluster

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.temporal.io/sdk/client"

	"launchpad/internal/catalog"
	"launchpad/internal/descriptor"
	"launchpad/internal/errdefs"
	"launchpad/internal/logging"
	"launchpad/internal/temporal"
	temporalworker "launchpad/internal/temporal/worker"
)

// Namespace tracks the workers running in one cluster namespace, at most
// one per task queue.
type Namespace struct {
	name       string
	retention  time.Duration
	connection string
	endpoint   temporal.Endpoint
	logger     *logging.Logger

	mu sync.Mutex
	// A nil handle reserves a task queue while its worker starts.
	workers map[string]temporalworker.Handle
}

type NamespaceInfo struct {
	Name      string   `json:"name"`
	Retention int64    `json:"retention"`
	Workers   []string `json:"workers"`
}

func newNamespace(connection, name string, retention time.Duration, endpoint temporal.Endpoint, logger *logging.Logger) *Namespace {
	return &Namespace{
		name:       name,
		retention:  retention,
		connection: connection,
		endpoint:   endpoint,
		logger:     logger,
		workers:    make(map[string]temporalworker.Handle),
	}
}

func (n *Namespace) Name() string { return n.name }

func (n *Namespace) Retention() time.Duration { return n.retention }

// ResolveWorker picks the worker class and catalog objects a worker
// descriptor names.
func ResolveWorker(settings descriptor.WorkerSpec, objects catalog.Catalog) (temporalworker.Class, temporalworker.Spec, error) {
	if settings.Type == "" {
		return nil, temporalworker.Spec{}, errdefs.Settings("worker %q descriptor missing `type` field", settings.TaskQueue)
	}
	class, ok := temporalworker.ClassOf(objects.WorkerClasses[settings.Type])
	if !ok {
		return nil, temporalworker.Spec{}, errdefs.MissingImport("worker class %q", settings.Type)
	}
	activities, missingActivities := objects.Activities.Resolve(settings.Activities)
	workflows, missingWorkflows := objects.Workflows.Resolve(settings.Workflows)
	if missing := append(missingActivities, missingWorkflows...); len(missing) > 0 {
		return nil, temporalworker.Spec{}, errdefs.MissingImport("worker %q objects %v", settings.TaskQueue, missing)
	}
	return class, temporalworker.Spec{
		TaskQueue:  settings.TaskQueue,
		Activities: activities,
		Workflows:  workflows,
		MaxWorkers: settings.MaxWorkers,
	}, nil
}

// StartWorkers starts the worker a descriptor names and records its handle.
func (n *Namespace) StartWorkers(ctx context.Context, c client.Client, settings descriptor.WorkerSpec, objects catalog.Catalog) (temporalworker.HandleInfo, error) {
	class, spec, err := ResolveWorker(settings, objects)
	if err != nil {
		return temporalworker.HandleInfo{}, err
	}
	return n.start(ctx, c, class, spec)
}

func (n *Namespace) start(ctx context.Context, c client.Client, class temporalworker.Class, spec temporalworker.Spec) (temporalworker.HandleInfo, error) {
	spec.Namespace = n.name
	spec.Endpoint = n.endpoint

	n.mu.Lock()
	if _, busy := n.workers[spec.TaskQueue]; busy {
		n.mu.Unlock()
		return temporalworker.HandleInfo{}, errdefs.AlreadyRunning("worker on task queue %q in namespace %q", spec.TaskQueue, n.name)
	}
	n.workers[spec.TaskQueue] = nil
	n.mu.Unlock()

	handle, err := class.Start(ctx, c, spec)
	n.mu.Lock()
	if err != nil {
		delete(n.workers, spec.TaskQueue)
		n.mu.Unlock()
		return temporalworker.HandleInfo{}, err
	}
	n.workers[spec.TaskQueue] = handle
	n.mu.Unlock()

	go n.forget(handle)
	return handle.Info(), nil
}

// forget drops a handle once its worker exits on its own.
func (n *Namespace) forget(handle temporalworker.Handle) {
	<-handle.Done()
	n.mu.Lock()
	defer n.mu.Unlock()
	if current, ok := n.workers[handle.TaskQueue()]; ok && current == handle {
		delete(n.workers, handle.TaskQueue())
	}
}

// StopWorkers stops the worker of a task queue. Stopping an absent worker is
// a no-op.
func (n *Namespace) StopWorkers(ctx context.Context, taskQueue string) error {
	n.mu.Lock()
	handle := n.workers[taskQueue]
	n.mu.Unlock()
	if handle == nil {
		return nil
	}
	if err := handle.Stop(ctx); err != nil {
		return err
	}
	n.mu.Lock()
	if n.workers[taskQueue] == handle {
		delete(n.workers, taskQueue)
	}
	n.mu.Unlock()
	n.logger.Info("worker stopped", map[string]string{
		"connection": n.connection,
		"namespace":  n.name,
		"task_queue": taskQueue,
	})
	return nil
}

// RestartWorkers resolves the descriptor first so a broken descriptor leaves
// the running worker untouched, then stops and starts.
func (n *Namespace) RestartWorkers(ctx context.Context, c client.Client, settings descriptor.WorkerSpec, objects catalog.Catalog) (temporalworker.HandleInfo, error) {
	class, spec, err := ResolveWorker(settings, objects)
	if err != nil {
		return temporalworker.HandleInfo{}, err
	}
	if err := n.StopWorkers(ctx, spec.TaskQueue); err != nil {
		return temporalworker.HandleInfo{}, err
	}
	return n.start(ctx, c, class, spec)
}

// Running reports whether a worker serves the task queue.
func (n *Namespace) Running(taskQueue string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.workers[taskQueue] != nil
}

// Workers lists the running workers by task queue.
func (n *Namespace) Workers() []temporalworker.HandleInfo {
	n.mu.Lock()
	defer n.mu.Unlock()
	infos := make([]temporalworker.HandleInfo, 0, len(n.workers))
	for _, handle := range n.workers {
		if handle != nil {
			infos = append(infos, handle.Info())
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].TaskQueue < infos[j].TaskQueue })
	return infos
}

// Kill forces every worker down and forgets them.
func (n *Namespace) Kill() error {
	n.mu.Lock()
	handles := n.workers
	n.workers = make(map[string]temporalworker.Handle)
	n.mu.Unlock()

	var errs []error
	for taskQueue, handle := range handles {
		if handle == nil {
			continue
		}
		if err := handle.Kill(); err != nil {
			errs = append(errs, err)
			continue
		}
		n.logger.Warn("worker killed", map[string]string{
			"connection": n.connection,
			"namespace":  n.name,
			"task_queue": taskQueue,
		})
	}
	return errors.Join(errs...)
}

func (n *Namespace) Info() NamespaceInfo {
	workers := n.Workers()
	queues := make([]string, 0, len(workers))
	for _, worker := range workers {
		queues = append(queues, worker.TaskQueue)
	}
	return NamespaceInfo{
		Name:      n.name,
		Retention: int64(n.retention / time.Second),
		Workers:   queues,
	}
}
