package descriptor

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func storedTask() map[string]any {
	return map[string]any{
		"name":   "t1",
		"runner": "ImmediateRunner",
		"workflow": map[string]any{
			"workflow":        "Task",
			"workflow_id":     "wf-1",
			"task_queue":      "default",
			"workflow_kwargs": map[string]any{"activity": "ping"},
		},
	}
}

func TestOverwriteIgnoredWhenNotOverwritable(t *testing.T) {
	stored := storedTask()
	updated, ignored := Overwrite(stored, map[string]any{"workflow.task_queue": "alt"})
	if diff := cmp.Diff(storedTask(), updated); diff != "" {
		t.Fatalf("settings changed (-want +got):\n%s", diff)
	}
	if len(ignored) != 1 || ignored[0] != "workflow.task_queue" {
		t.Fatalf("expected ignored path, got %v", ignored)
	}
}

func TestOverwriteAppliesUnderOverwritableObject(t *testing.T) {
	stored := storedTask()
	stored["workflow"].(map[string]any)["overwritable"] = true

	updated, ignored := Overwrite(stored, map[string]any{
		"workflow.task_queue":               "alt",
		"workflow.workflow_kwargs.activity": "pong",
		"runner":                            "ScheduledRunner",
	})
	workflow := updated["workflow"].(map[string]any)
	if workflow["task_queue"] != "alt" {
		t.Fatalf("expected task queue overwrite, got %v", workflow["task_queue"])
	}
	if workflow["workflow_kwargs"].(map[string]any)["activity"] != "pong" {
		t.Fatalf("expected nested overwrite, got %v", workflow["workflow_kwargs"])
	}
	if updated["runner"] != "ImmediateRunner" {
		t.Fatalf("top-level runner must stay, got %v", updated["runner"])
	}
	if len(ignored) != 1 || ignored[0] != "runner" {
		t.Fatalf("unexpected ignored paths %v", ignored)
	}
	if stored["workflow"].(map[string]any)["task_queue"] != "default" {
		t.Fatal("stored descriptor mutated")
	}
}

func TestOverwriteTopLevelFlag(t *testing.T) {
	stored := storedTask()
	stored["overwritable"] = true

	updated, ignored := Overwrite(stored, map[string]any{
		"workflow.task_queue": "alt",
		"schedule.tz":         "Europe/Paris",
		"overwritable":        false,
	})
	if updated["workflow"].(map[string]any)["task_queue"] != "alt" {
		t.Fatal("expected task queue overwrite")
	}
	if updated["schedule"].(map[string]any)["tz"] != "Europe/Paris" {
		t.Fatal("expected missing object to be created")
	}
	if updated["overwritable"] != true {
		t.Fatal("overwritable flag must not be overwritten")
	}
	if len(ignored) != 1 {
		t.Fatalf("unexpected ignored paths %v", ignored)
	}
}
