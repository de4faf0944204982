package temporalworker

import (
	"context"
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/client"

	"launchpad/internal/logging"
	"launchpad/internal/process"
)

// APIKeyEnv carries the cluster API key to worker subprocesses so it never
// shows up in the process list.
const APIKeyEnv = "LAUNCHPAD_TEMPORAL_API_KEY"

// ProcessWorker runs each worker as a `launchpad worker` child process in its
// own process group. The child loads the code modules from Root itself.
type ProcessWorker struct {
	// Executable defaults to the running binary.
	Executable string
	// BaseArgs precede the worker subcommand.
	BaseArgs   []string
	Root       string
	ConfigPath string
	Processes  *process.Registry
	Logger     *logging.Logger
}

func (p *ProcessWorker) Start(ctx context.Context, _ client.Client, spec Spec) (Handle, error) {
	if spec.TaskQueue == "" {
		return nil, errors.New("task queue is required")
	}
	executable := p.Executable
	if executable == "" {
		current, err := os.Executable()
		if err != nil {
			return nil, err
		}
		executable = current
	}
	var env []string
	if spec.Endpoint.APIKey != "" {
		env = append(env, APIKeyEnv+"="+spec.Endpoint.APIKey)
	}
	child, err := process.Spawn(process.Command{
		Name:   "worker " + spec.TaskQueue,
		Path:   executable,
		Args:   append(append([]string{}, p.BaseArgs...), p.Args(spec)...),
		Env:    env,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	})
	if err != nil {
		return nil, err
	}
	p.Processes.Track(child)

	log := logger(p.Logger)
	fields := map[string]string{
		"class":      ProcessWorkerName,
		"task_queue": spec.TaskQueue,
		"namespace":  spec.Namespace,
		"pid":        strconv.Itoa(child.PID),
	}
	log.Info("worker started", fields)
	go func() {
		<-child.Done()
		if err := child.Err(); err != nil {
			log.Warn("worker exited", logging.WithError(fields, err))
			return
		}
		log.Info("worker exited", fields)
	}()

	return &processHandle{
		child: child,
		info: HandleInfo{
			ID:         uuid.NewString(),
			Class:      ProcessWorkerName,
			TaskQueue:  spec.TaskQueue,
			Namespace:  spec.Namespace,
			PID:        child.PID,
			Started:    time.Now().UTC(),
			Activities: spec.activityNames(),
			Workflows:  spec.workflowNames(),
		},
	}, nil
}

// Args builds the worker subcommand arguments for spec.
func (p *ProcessWorker) Args(spec Spec) []string {
	args := []string{"worker",
		"--address", spec.Endpoint.HostPort,
		"--namespace", spec.Namespace,
		"--task-queue", spec.TaskQueue,
	}
	if spec.MaxWorkers > 0 {
		args = append(args, "--max-workers", strconv.Itoa(spec.MaxWorkers))
	}
	if spec.Endpoint.Proxy != "" {
		args = append(args, "--proxy", spec.Endpoint.Proxy)
	}
	if p.Root != "" {
		args = append(args, "--root", p.Root)
	}
	if p.ConfigPath != "" {
		args = append(args, "--config", p.ConfigPath)
	}
	for _, name := range spec.activityNames() {
		args = append(args, "--activity", name)
	}
	for _, name := range spec.workflowNames() {
		args = append(args, "--workflow", name)
	}
	return args
}

type processHandle struct {
	child *process.Child
	info  HandleInfo
}

func (h *processHandle) ID() string            { return h.info.ID }
func (h *processHandle) TaskQueue() string     { return h.info.TaskQueue }
func (h *processHandle) Done() <-chan struct{} { return h.child.Done() }
func (h *processHandle) Info() HandleInfo      { return h.info }

// Stop sends SIGTERM to the group and escalates to SIGKILL when ctx expires.
func (h *processHandle) Stop(ctx context.Context) error {
	return h.child.Stop(ctx)
}

func (h *processHandle) Kill() error {
	return h.child.Kill()
}
