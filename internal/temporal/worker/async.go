package temporalworker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"launchpad/internal/logging"
)

// AsyncWorker runs the SDK worker inside the control plane.
type AsyncWorker struct {
	Logger *logging.Logger
}

func (a *AsyncWorker) Start(ctx context.Context, c client.Client, spec Spec) (Handle, error) {
	sdkWorker, err := NewSDKWorker(c, spec)
	if err != nil {
		return nil, err
	}
	if err := sdkWorker.Start(); err != nil {
		return nil, err
	}
	handle := &asyncHandle{
		worker: sdkWorker,
		done:   make(chan struct{}),
		info: HandleInfo{
			ID:         uuid.NewString(),
			Class:      AsyncWorkerName,
			TaskQueue:  spec.TaskQueue,
			Namespace:  spec.Namespace,
			Started:    time.Now().UTC(),
			Activities: spec.activityNames(),
			Workflows:  spec.workflowNames(),
		},
	}
	logger(a.Logger).Info("worker started", map[string]string{
		"class":      AsyncWorkerName,
		"task_queue": spec.TaskQueue,
		"namespace":  spec.Namespace,
	})
	return handle, nil
}

type asyncHandle struct {
	worker worker.Worker
	done   chan struct{}
	once   sync.Once
	info   HandleInfo
}

func (h *asyncHandle) ID() string            { return h.info.ID }
func (h *asyncHandle) TaskQueue() string     { return h.info.TaskQueue }
func (h *asyncHandle) Done() <-chan struct{} { return h.done }
func (h *asyncHandle) Info() HandleInfo      { return h.info }

// Stop waits for in-flight tasks up to the worker stop timeout. It returns
// early with ctx's error while the shutdown continues in the background.
func (h *asyncHandle) Stop(ctx context.Context) error {
	go h.shutdown()
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Kill is Stop without waiting; an in-process worker cannot be preempted.
func (h *asyncHandle) Kill() error {
	go h.shutdown()
	return nil
}

func (h *asyncHandle) shutdown() {
	h.once.Do(func() {
		h.worker.Stop()
		close(h.done)
	})
}

func logger(l *logging.Logger) *logging.Logger {
	if l == nil {
		l = logging.Discard()
	}
	return l.Named("worker")
}
