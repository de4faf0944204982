package catalog

import (
	"context"
	"testing"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"
	"go.temporal.io/sdk/workflow"
)

func TestTaskWorkflowRunsNamedActivity(t *testing.T) {
	workflowTestSuite := &testsuite.WorkflowTestSuite{}
	workflowEnvironment := workflowTestSuite.NewTestWorkflowEnvironment()

	definition, err := Builtins()[TaskWorkflowName].Definition()
	if err != nil {
		t.Fatalf("definition: %v", err)
	}
	workflowEnvironment.RegisterWorkflowWithOptions(definition, workflow.RegisterOptions{Name: TaskWorkflowName})

	var captured map[string]any
	workflowEnvironment.RegisterActivityWithOptions(
		func(ctx context.Context, input map[string]any) (any, error) {
			captured = input
			return "pong", nil
		},
		activity.RegisterOptions{Name: "ping"},
	)

	workflowEnvironment.ExecuteWorkflow(TaskWorkflowName, map[string]any{
		"activity":               "ping",
		"args":                   []any{"a"},
		"start_to_close_timeout": map[string]any{"seconds": 30},
		"note":                   "hello",
	})
	if !workflowEnvironment.IsWorkflowCompleted() {
		t.Fatal("workflow did not complete")
	}
	if err := workflowEnvironment.GetWorkflowError(); err != nil {
		t.Fatalf("workflow error: %v", err)
	}
	var result string
	if err := workflowEnvironment.GetWorkflowResult(&result); err != nil {
		t.Fatalf("workflow result: %v", err)
	}
	if result != "pong" {
		t.Fatalf("unexpected result %q", result)
	}
	if captured["note"] != "hello" {
		t.Fatalf("expected passthrough input, got %v", captured)
	}
	if _, ok := captured["start_to_close_timeout"]; ok {
		t.Fatal("timeouts must not reach the activity")
	}
	if args, ok := captured["args"].([]any); !ok || len(args) != 1 {
		t.Fatalf("unexpected args %v", captured["args"])
	}
}

func TestTaskWorkflowRequiresActivity(t *testing.T) {
	workflowTestSuite := &testsuite.WorkflowTestSuite{}
	workflowEnvironment := workflowTestSuite.NewTestWorkflowEnvironment()
	workflowEnvironment.RegisterWorkflowWithOptions(Adapt(TaskWorkflow), workflow.RegisterOptions{Name: TaskWorkflowName})

	workflowEnvironment.ExecuteWorkflow(TaskWorkflowName, map[string]any{})
	if workflowEnvironment.GetWorkflowError() == nil {
		t.Fatal("expected workflow error")
	}
}
