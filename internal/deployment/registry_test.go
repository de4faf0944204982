package deployment

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"launchpad/internal/catalog"
	"launchpad/internal/errdefs"
	"launchpad/internal/logging"
	"launchpad/internal/watcher"
)

const pingSource = `package activities

import (
	"context"

	"launchpad/catalog"
)

func init() {
	catalog.Activity("ping", func(ctx context.Context, input map[string]any) (any, error) {
		return "pong", nil
	})
}
`

const echoSource = `package activities

import (
	"context"

	"launchpad/catalog"
)

func init() {
	catalog.Activity("echo", func(ctx context.Context, input map[string]any) (any, error) {
		return input["text"], nil
	})
}
`

const taskDescriptor = `name: t1
runner: Immediate
workflow:
  workflow: hello
  workflow_id: wf-1
  task_queue: default
`

const workerDescriptor = `worker:
  type: AsyncWorker
  task_queue: q1
  activities: [ping]
`

type recordingTarget struct {
	mu        sync.Mutex
	snapshots []catalog.Snapshot
}

func (target *recordingTarget) Refresh(snapshot catalog.Snapshot) {
	target.mu.Lock()
	defer target.mu.Unlock()
	target.snapshots = append(target.snapshots, snapshot)
}

func (target *recordingTarget) count() int {
	target.mu.Lock()
	defer target.mu.Unlock()
	return len(target.snapshots)
}

func (target *recordingTarget) last() catalog.Snapshot {
	target.mu.Lock()
	defer target.mu.Unlock()
	return target.snapshots[len(target.snapshots)-1]
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func newTestRegistry(t *testing.T, options Options) (*Registry, string) {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, GroupActivities, "net.go"), pingSource)
	writeFile(t, filepath.Join(root, GroupDeployments, "t1.yaml"), taskDescriptor)
	writeFile(t, filepath.Join(root, GroupWorkersSettings, "q1.yaml"), workerDescriptor)
	return newRegistryAt(t, root, options), root
}

func newRegistryAt(t *testing.T, root string, options Options) *Registry {
	t.Helper()
	options.Root = root
	if options.Logger == nil {
		options.Logger = logging.Discard()
	}
	r, err := New(options)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	return r
}

// refreshInto adapts Refresh to the Poll callback.
func refreshInto(r *Registry, target Target) func(context.Context) error {
	return func(ctx context.Context) error {
		return r.Refresh(ctx, target)
	}
}

func TestNewLoadsGroupsAndBuiltins(t *testing.T) {
	runner := catalog.Runner("Immediate", struct{}{})
	r, _ := newTestRegistry(t, Options{
		Builtins: map[string]catalog.Objects{GroupRunners: {"Immediate": runner}},
	})

	if diff := cmp.Diff([]string{"ping"}, r.Activities().Names()); diff != "" {
		t.Fatalf("activities (-want +got):\n%s", diff)
	}
	if _, ok := r.Workflows()[catalog.TaskWorkflowName]; !ok {
		t.Fatal("expected built-in Task workflow")
	}
	if diff := cmp.Diff([]string{"Immediate"}, r.Runners().Names()); diff != "" {
		t.Fatalf("runners (-want +got):\n%s", diff)
	}
	if _, ok := r.TasksSettings()["t1"]; !ok {
		t.Fatalf("expected t1 in tasks, got %v", r.TasksSettings())
	}
	if _, ok := r.WorkersSettings()["q1"]; !ok {
		t.Fatalf("expected q1 in workers, got %v", r.WorkersSettings())
	}
	if len(r.Modules().GroupNames()) != len(Groups) {
		t.Fatalf("expected %d groups, got %v", len(Groups), r.Modules().GroupNames())
	}
}

func TestSettingsSkipDescriptorsWithoutKey(t *testing.T) {
	logger := logging.Discard()
	r, root := newTestRegistry(t, Options{Logger: logger})
	writeFile(t, filepath.Join(root, GroupDeployments, "nameless.yaml"), "runner: Immediate\nworkflow:\n  workflow: hello\n")
	writeFile(t, filepath.Join(root, GroupWorkersSettings, "queueless.yaml"), "worker:\n  type: AsyncWorker\n")
	if _, err := r.Visit(); err != nil {
		t.Fatalf("visit: %v", err)
	}

	tasks := r.TasksSettings()
	if len(tasks) != 1 {
		t.Fatalf("expected only t1, got %v", tasks)
	}
	workers := r.WorkersSettings()
	if len(workers) != 1 {
		t.Fatalf("expected only q1, got %v", workers)
	}
	if len(logger.Buffer().Find("descriptor skipped, missing key field")) != 2 {
		t.Fatal("expected a warning per skipped descriptor")
	}
}

func TestServersFromConfigs(t *testing.T) {
	r, root := newTestRegistry(t, Options{})
	writeFile(t, filepath.Join(root, GroupConfigs, "servers.yaml"), `servers:
  - name: local
    host: localhost
    port: 7233
  - not-a-mapping
`)
	if _, err := r.Visit(); err != nil {
		t.Fatalf("visit: %v", err)
	}
	servers, err := r.Servers()
	if err != nil {
		t.Fatalf("servers: %v", err)
	}
	if len(servers) != 1 || servers[0]["name"] != "local" {
		t.Fatalf("unexpected servers %v", servers)
	}
}

func TestRefreshPushesSnapshot(t *testing.T) {
	r, root := newTestRegistry(t, Options{})
	writeFile(t, filepath.Join(root, GroupActivities, "echo.go"), echoSource)
	if _, err := r.Visit(); err != nil {
		t.Fatalf("visit: %v", err)
	}

	target := &recordingTarget{}
	if err := r.Refresh(context.Background(), target); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if target.count() != 1 {
		t.Fatalf("expected one snapshot, got %d", target.count())
	}
	snapshot := target.last()
	if diff := cmp.Diff([]string{"echo", "ping"}, snapshot.Objects.Activities.Names()); diff != "" {
		t.Fatalf("activities (-want +got):\n%s", diff)
	}
	if _, ok := snapshot.Settings.Tasks["t1"]; !ok {
		t.Fatal("expected t1 in snapshot settings")
	}
	if _, ok := snapshot.Objects.Workflows[catalog.TaskWorkflowName]; !ok {
		t.Fatal("expected Task workflow in snapshot")
	}
	changed, err := r.Modules().Changed(GroupActivities)
	if err != nil {
		t.Fatalf("changed: %v", err)
	}
	if len(changed[GroupActivities]) != 0 {
		t.Fatalf("reloaded modules must be clean, got %v", changed)
	}
}

func TestRefreshFailureLeavesTargetUntouched(t *testing.T) {
	r, root := newTestRegistry(t, Options{})
	broken := writeFile(t, filepath.Join(root, GroupActivities, "broken.go"), "package activities\n\nfunc init() {\n")
	if _, err := r.Visit(); err != nil {
		t.Fatalf("visit: %v", err)
	}

	target := &recordingTarget{}
	if err := r.Refresh(context.Background(), target); err == nil {
		t.Fatal("expected refresh error")
	}
	if target.count() != 0 {
		t.Fatal("target must not receive a snapshot on failure")
	}
	changed, _ := r.Modules().Changed(GroupActivities)
	if diff := cmp.Diff([]string{broken}, changed[GroupActivities]); diff != "" {
		t.Fatalf("broken module must stay dirty (-want +got):\n%s", diff)
	}
}

func TestPollRefreshesOnTrigger(t *testing.T) {
	r, root := newTestRegistry(t, Options{
		PollingInterval: time.Hour,
		TriggerInterval: time.Millisecond,
	})
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	refreshed := make(chan struct{}, 4)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- r.Poll(ctx, func(context.Context) error {
			refreshed <- struct{}{}
			return nil
		})
	}()

	writeFile(t, filepath.Join(root, GroupActivities, "echo.go"), echoSource)
	r.Trigger()
	select {
	case <-refreshed:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for refresh")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("poll returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("poll did not stop")
	}
}

func TestPollRearmsOnIntervalChange(t *testing.T) {
	r, root := newTestRegistry(t, Options{PollingInterval: time.Hour})
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	refreshed := make(chan struct{}, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- r.Poll(ctx, func(context.Context) error {
			refreshed <- struct{}{}
			return nil
		})
	}()

	writeFile(t, filepath.Join(root, GroupDeployments, "t2.yaml"), "name: t2\nrunner: Immediate\nworkflow:\n  workflow: hello\n")
	r.SetPollingInterval(10 * time.Millisecond)
	select {
	case <-refreshed:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for re-armed poll")
	}
	if r.PollingInterval() != 10*time.Millisecond {
		t.Fatalf("unexpected interval %s", r.PollingInterval())
	}
	cancel()
	<-done
}

func TestPollWithoutAutomaticRefresh(t *testing.T) {
	r, root := newTestRegistry(t, Options{DisableAutomaticRefresh: true})
	calls := 0
	writeFile(t, filepath.Join(root, GroupActivities, "echo.go"), echoSource)
	r.pollOnce(context.Background(), func(context.Context) error {
		calls++
		return nil
	})
	if calls != 0 {
		t.Fatal("refresh must not run when automatic refresh is disabled")
	}

	r.SetAutomaticRefresh(true)
	writeFile(t, filepath.Join(root, GroupActivities, "more.go"), "package activities\n")
	r.pollOnce(context.Background(), func(context.Context) error {
		calls++
		return errors.New("boom")
	})
	if calls != 1 {
		t.Fatalf("expected one refresh call, got %d", calls)
	}
}

func TestConcurrentRefreshesShareResult(t *testing.T) {
	r, _ := newTestRegistry(t, Options{})
	target := &recordingTarget{}
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.Refresh(context.Background(), target); err != nil {
				t.Errorf("refresh: %v", err)
			}
		}()
	}
	wg.Wait()
	if target.count() < 1 || target.count() > 4 {
		t.Fatalf("unexpected snapshot count %d", target.count())
	}
}

func TestWatchTriggersPoll(t *testing.T) {
	r, root := newTestRegistry(t, Options{
		PollingInterval: time.Hour,
		TriggerInterval: time.Millisecond,
	})
	fileWatcher, err := r.Watch(watcher.Options{Debounce: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	defer fileWatcher.Close()

	refreshed := make(chan struct{}, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = r.Poll(ctx, func(context.Context) error {
			refreshed <- struct{}{}
			return nil
		})
	}()

	writeFile(t, filepath.Join(root, GroupActivities, "echo.go"), echoSource)
	select {
	case <-refreshed:
	case <-time.After(5 * time.Second):
		t.Fatal("a file change must trigger a refresh")
	}
	if fileWatcher.Metrics().EventsDelivered == 0 {
		t.Fatal("expected delivered watcher events")
	}
}

const gateEnv = "LAUNCHPAD_TEST_GATE_OPEN"

const gatedSource = `package activities

import (
	"context"
	"os"

	"launchpad/catalog"
)

func init() {
	if os.Getenv("LAUNCHPAD_TEST_GATE_OPEN") == "" {
		panic("gate closed")
	}
	catalog.Activity("gated", func(ctx context.Context, input map[string]any) (any, error) {
		return "open", nil
	})
}
`

func TestPollRetriesModuleThatFailedAtStartup(t *testing.T) {
	t.Setenv(gateEnv, "")
	root := t.TempDir()
	writeFile(t, filepath.Join(root, GroupActivities, "gated.go"), gatedSource)
	r := newRegistryAt(t, root, Options{})
	if _, ok := r.Activities()["gated"]; ok {
		t.Fatal("gated activity must not load while the gate is closed")
	}

	t.Setenv(gateEnv, "1")
	target := &recordingTarget{}
	r.pollOnce(context.Background(), refreshInto(r, target))
	if target.count() != 1 {
		t.Fatalf("expected the pending module to trigger a refresh, got %d snapshots", target.count())
	}
	if _, ok := target.last().Objects.Activities["gated"]; !ok {
		t.Fatalf("expected gated activity, got %v", target.last().Objects.Activities.Names())
	}
}

func TestPollRetriesFailedRefreshOnNextTick(t *testing.T) {
	t.Setenv(gateEnv, "")
	r, root := newTestRegistry(t, Options{})
	writeFile(t, filepath.Join(root, GroupActivities, "gated.go"), gatedSource)
	target := &recordingTarget{}
	calls := 0
	refresh := func(ctx context.Context) error {
		calls++
		return r.Refresh(ctx, target)
	}

	r.pollOnce(context.Background(), refresh)
	if calls != 1 || target.count() != 0 {
		t.Fatalf("first tick must attempt and fail, calls=%d snapshots=%d", calls, target.count())
	}

	t.Setenv(gateEnv, "1")
	r.pollOnce(context.Background(), refresh)
	if calls != 2 {
		t.Fatalf("second tick must retry without a file change, calls=%d", calls)
	}
	if target.count() != 1 {
		t.Fatalf("expected a snapshot after the retry, got %d", target.count())
	}
	if diff := cmp.Diff([]string{"gated", "ping"}, target.last().Objects.Activities.Names()); diff != "" {
		t.Fatalf("activities (-want +got):\n%s", diff)
	}

	r.pollOnce(context.Background(), refresh)
	if calls != 2 {
		t.Fatalf("a clean registry must not refresh again, calls=%d", calls)
	}
}

func TestPollLoadsFileAddedToEmptyGroup(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, GroupDeployments, "t1.yaml"), taskDescriptor)
	r := newRegistryAt(t, root, Options{})
	if len(r.Activities()) != 0 {
		t.Fatalf("expected no activities, got %v", r.Activities().Names())
	}

	writeFile(t, filepath.Join(root, GroupActivities, "net.go"), pingSource)
	target := &recordingTarget{}
	r.pollOnce(context.Background(), refreshInto(r, target))
	if target.count() != 1 {
		t.Fatalf("expected one snapshot, got %d", target.count())
	}
	if diff := cmp.Diff([]string{"ping"}, target.last().Objects.Activities.Names()); diff != "" {
		t.Fatalf("activities (-want +got):\n%s", diff)
	}
}

func TestRefreshAbortsOnUnparsableDescriptor(t *testing.T) {
	r, root := newTestRegistry(t, Options{})
	writeFile(t, filepath.Join(root, GroupDeployments, "t1.yaml"),
		"name: t1\nrunner: Immediate\nworkflow:\n  workflow: ${LAUNCHPAD_TEST_UNSET_WORKFLOW}\n  workflow_id: wf-1\n  task_queue: default\n")
	target := &recordingTarget{}
	var refreshErr error
	r.pollOnce(context.Background(), func(ctx context.Context) error {
		refreshErr = r.Refresh(ctx, target)
		return refreshErr
	})
	if !errors.Is(refreshErr, errdefs.ErrConfig) {
		t.Fatalf("expected config error, got %v", refreshErr)
	}
	if target.count() != 0 {
		t.Fatal("a descriptor error must not push a snapshot")
	}

	t.Setenv("LAUNCHPAD_TEST_UNSET_WORKFLOW", "hello")
	r.pollOnce(context.Background(), refreshInto(r, target))
	if target.count() != 1 {
		t.Fatalf("expected the descriptor retried once its variable is set, got %d", target.count())
	}
	if _, ok := target.last().Settings.Tasks["t1"]; !ok {
		t.Fatal("expected t1 in the pushed snapshot")
	}
}
