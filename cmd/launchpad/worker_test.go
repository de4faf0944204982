package main

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"launchpad/internal/catalog"
	"launchpad/internal/config"
	"launchpad/internal/deployment"
	"launchpad/internal/errdefs"
	"launchpad/internal/logging"
	"launchpad/internal/process"
	"launchpad/internal/temporal"
	temporalworker "launchpad/internal/temporal/worker"
)

func ping(context.Context, map[string]any) (any, error) { return "pong", nil }

func TestWorkerFlagsAcceptProcessWorkerArgs(t *testing.T) {
	parent := &temporalworker.ProcessWorker{Root: "/srv/project", ConfigPath: "/etc/launchpad.toml"}
	args := parent.Args(temporalworker.Spec{
		TaskQueue:  "q1",
		Namespace:  "jobs",
		MaxWorkers: 8,
		Activities: []catalog.Object{catalog.Activity("ping", ping)},
		Workflows:  []catalog.Object{catalog.Workflow(catalog.TaskWorkflowName, catalog.TaskWorkflow)},
		Endpoint:   temporal.Endpoint{HostPort: "cluster:7233", Proxy: "http://proxy:3128"},
	})
	if args[0] != "worker" {
		t.Fatalf("expected worker subcommand, got %v", args)
	}

	root := newRootCommand()
	cmd, rest, err := root.Find(args)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if cmd.Name() != "worker" {
		t.Fatalf("expected worker command, got %s", cmd.Name())
	}
	if err := cmd.ParseFlags(rest); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	flags := cmd.Flags()
	get := func(name string) string {
		value, err := flags.GetString(name)
		if err != nil {
			t.Fatalf("flag %s: %v", name, err)
		}
		return value
	}
	if get("address") != "cluster:7233" || get("namespace") != "jobs" || get("task-queue") != "q1" {
		t.Fatalf("unexpected connection flags")
	}
	if get("proxy") != "http://proxy:3128" || get("root") != "/srv/project" || get("config") != "/etc/launchpad.toml" {
		t.Fatalf("unexpected path flags")
	}
	maxWorkers, _ := flags.GetInt("max-workers")
	if maxWorkers != 8 {
		t.Fatalf("expected 8 max workers, got %d", maxWorkers)
	}
	activities, _ := flags.GetStringArray("activity")
	workflows, _ := flags.GetStringArray("workflow")
	if diff := cmp.Diff([]string{"ping"}, activities); diff != "" {
		t.Fatalf("activities (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{catalog.TaskWorkflowName}, workflows); diff != "" {
		t.Fatalf("workflows (-want +got):\n%s", diff)
	}
}

func newDeploymentRegistryForTest(cfg config.Config) (*deployment.Registry, error) {
	return deployment.New(registryOptions(cfg, "", process.NewRegistry(), logging.Discard()))
}

func TestWorkerSpecResolvesCatalog(t *testing.T) {
	t.Setenv(temporalworker.APIKeyEnv, "secret")
	objects := catalog.NewCatalog(catalog.Merge(
		catalog.Objects{"ping": catalog.Activity("ping", ping)},
		catalog.Builtins(),
	))

	spec, err := workerSpec(workerOptions{
		address:    "cluster:7233",
		namespace:  "jobs",
		taskQueue:  "q1",
		activities: []string{"ping"},
		workflows:  []string{catalog.TaskWorkflowName},
	}, objects)
	if err != nil {
		t.Fatalf("worker spec: %v", err)
	}
	if spec.Endpoint.APIKey != "secret" || spec.Endpoint.HostPort != "cluster:7233" {
		t.Fatalf("unexpected endpoint %+v", spec.Endpoint)
	}
	if len(spec.Activities) != 1 || len(spec.Workflows) != 1 {
		t.Fatalf("unexpected objects %+v", spec)
	}

	_, err = workerSpec(workerOptions{taskQueue: "q1", activities: []string{"missing"}}, objects)
	if !errors.Is(err, errdefs.ErrMissingImport) {
		t.Fatalf("expected missing import, got %v", err)
	}
}

func TestVisitReport(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "activities", "net.go"), `package activities

import (
	"context"

	"launchpad/catalog"
)

func init() {
	catalog.Activity("ping", func(ctx context.Context, input map[string]any) (any, error) {
		return "pong", nil
	})
}
`)
	writeFile(t, filepath.Join(root, "deployments", "t1.yaml"), "name: t1\nrunner: ImmediateRunner\nworkflow:\n  workflow: Task\n")
	cfg, err := config.Defaults()
	if err != nil {
		t.Fatalf("defaults: %v", err)
	}
	cfg.Root = root

	r, err := newDeploymentRegistryForTest(cfg)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	report, err := buildVisitReport(r)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if diff := cmp.Diff([]string{"ping"}, report.Activities); diff != "" {
		t.Fatalf("activities (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"t1"}, report.Tasks); diff != "" {
		t.Fatalf("tasks (-want +got):\n%s", diff)
	}
	for _, name := range []string{"ImmediateRunner", "ScheduledRunner", "WorkflowRunner"} {
		found := false
		for _, runner := range report.Runners {
			found = found || runner == name
		}
		if !found {
			t.Fatalf("expected runner %s in %v", name, report.Runners)
		}
	}
	if diff := cmp.Diff([]string{temporalworker.AsyncWorkerName, temporalworker.ProcessWorkerName}, report.Workers); diff != "" {
		t.Fatalf("worker classes (-want +got):\n%s", diff)
	}
}

func TestClusterSpecsFallBackToLocal(t *testing.T) {
	cfg, err := config.Defaults()
	if err != nil {
		t.Fatalf("defaults: %v", err)
	}
	cfg.Root = t.TempDir()
	r, err := newDeploymentRegistryForTest(cfg)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	specs, err := clusterSpecs(cfg, r)
	if err != nil {
		t.Fatalf("specs: %v", err)
	}
	if len(specs) != 1 || specs[0].Name != localClusterName || specs[0].Address() != "localhost:7233" {
		t.Fatalf("unexpected specs %+v", specs)
	}

	writeFile(t, filepath.Join(cfg.Root, "configs", "servers.yaml"), "servers:\n  - name: extra\n    port: 7300\n")
	if _, err := r.Visit(); err != nil {
		t.Fatalf("visit: %v", err)
	}
	cfg.Temporal.Servers = []map[string]any{{"name": "main"}}
	specs, err = clusterSpecs(cfg, r)
	if err != nil {
		t.Fatalf("specs: %v", err)
	}
	if len(specs) != 2 || specs[0].Name != "main" || specs[1].Name != "extra" {
		t.Fatalf("expected config servers first, got %+v", specs)
	}
}
