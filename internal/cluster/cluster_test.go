package cluster

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/mocks"

	"launchpad/internal/catalog"
	"launchpad/internal/logging"
	"launchpad/internal/runner"
	"launchpad/internal/temporal"
	temporalworker "launchpad/internal/temporal/worker"
)

const fakeClassName = "FakeWorker"

type fakeAdmin struct {
	mu         sync.Mutex
	registered map[string]time.Duration
	deleted    []string
}

func (a *fakeAdmin) RegisterNamespace(ctx context.Context, name string, retention time.Duration) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.registered == nil {
		a.registered = map[string]time.Duration{}
	}
	a.registered[name] = retention
	return nil
}

func (a *fakeAdmin) DeleteNamespace(ctx context.Context, name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.deleted = append(a.deleted, name)
	return nil
}

type fakeHandle struct {
	info    temporalworker.HandleInfo
	done    chan struct{}
	once    sync.Once
	stopped atomic.Bool
	killed  atomic.Bool
}

func (h *fakeHandle) ID() string                      { return h.info.ID }
func (h *fakeHandle) TaskQueue() string               { return h.info.TaskQueue }
func (h *fakeHandle) Done() <-chan struct{}           { return h.done }
func (h *fakeHandle) Info() temporalworker.HandleInfo { return h.info }

func (h *fakeHandle) Stop(context.Context) error {
	h.stopped.Store(true)
	h.once.Do(func() { close(h.done) })
	return nil
}

func (h *fakeHandle) Kill() error {
	h.killed.Store(true)
	h.once.Do(func() { close(h.done) })
	return nil
}

type fakeClass struct {
	mu      sync.Mutex
	handles []*fakeHandle
}

func (c *fakeClass) Start(ctx context.Context, _ client.Client, spec temporalworker.Spec) (temporalworker.Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	handle := &fakeHandle{
		info: temporalworker.HandleInfo{
			ID:        spec.TaskQueue + "-" + spec.Namespace,
			Class:     fakeClassName,
			TaskQueue: spec.TaskQueue,
			Namespace: spec.Namespace,
		},
		done: make(chan struct{}),
	}
	c.handles = append(c.handles, handle)
	return handle, nil
}

func (c *fakeClass) started() []*fakeHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*fakeHandle(nil), c.handles...)
}

type harness struct {
	client *mocks.Client
	admin  *fakeAdmin
	class  *fakeClass
	logger *logging.Logger
	dials  atomic.Int32
}

func newHarness() *harness {
	c := &mocks.Client{}
	c.On("Close").Return().Maybe()
	return &harness{
		client: c,
		admin:  &fakeAdmin{},
		class:  &fakeClass{},
		logger: logging.Discard(),
	}
}

func (h *harness) options() Options {
	return Options{
		Dial: func(ctx context.Context, options temporal.DialOptions) (client.Client, error) {
			h.dials.Add(1)
			return h.client, nil
		},
		Admin:  func(client.Client) temporal.NamespaceAdmin { return h.admin },
		Logger: h.logger,
	}
}

func helloWorkflow() catalog.Object {
	return catalog.Workflow("hello", func(ctx catalog.WorkflowContext, input map[string]any) (any, error) {
		return "hi", nil
	})
}

func pingActivity() catalog.Object {
	return catalog.Activity("ping", func(ctx context.Context, input map[string]any) (any, error) {
		return "pong", nil
	})
}

func (h *harness) objects(extra ...catalog.Object) catalog.Catalog {
	objects := catalog.Merge(runner.Builtins(h.logger), catalog.Objects{
		"hello":       helloWorkflow(),
		fakeClassName: catalog.WorkerClass(fakeClassName, h.class),
	})
	for _, object := range extra {
		objects[object.Name] = object
	}
	return catalog.NewCatalog(objects)
}

func taskSettings(name string, workflow map[string]any, extra map[string]any) map[string]any {
	fragment := map[string]any{"workflow": "hello", "task_queue": "default"}
	for key, value := range workflow {
		fragment[key] = value
	}
	payload := map[string]any{
		"name":     name,
		"runner":   runner.ImmediateName,
		"workflow": fragment,
	}
	for key, value := range extra {
		payload[key] = value
	}
	return payload
}

func workerSettings(taskQueue string) map[string]any {
	return map[string]any{
		"overwritable": true,
		"worker": map[string]any{
			"type":       fakeClassName,
			"task_queue": taskQueue,
			"activities": []any{"ping"},
		},
	}
}

func (h *harness) snapshot() catalog.Snapshot {
	return catalog.Snapshot{
		Settings: catalog.Settings{
			Tasks: map[string]map[string]any{
				"t1": taskSettings("t1", map[string]any{"workflow_id": "wf-1"}, nil),
			},
			Workers: map[string]map[string]any{"q1": workerSettings("q1")},
		},
		Objects: h.objects(pingActivity()),
	}
}

func (h *harness) fleet(t *testing.T, specs []Spec, defaultName string, snapshot catalog.Snapshot) *Fleet {
	t.Helper()
	f, err := NewFleet(context.Background(), specs, defaultName, snapshot, h.options())
	if err != nil {
		t.Fatalf("new fleet: %v", err)
	}
	t.Cleanup(func() { _ = f.Close() })
	return f
}
