package descriptor

import (
	"errors"
	"testing"

	"launchpad/internal/errdefs"
)

func TestRenderWithSprig(t *testing.T) {
	payload := map[string]any{
		"template": true,
		"worker": map[string]any{
			"type":        "AsyncWorker",
			"task_queue":  "{{ .queue | upper }}",
			"max_workers": "{{ .count }}",
			"activities":  []any{"{{ .activity }}", "static"},
		},
	}
	rendered, err := Render(payload, map[string]any{"queue": "reports", "count": 4, "activity": "ping"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	worker := rendered["worker"].(map[string]any)
	if worker["task_queue"] != "REPORTS" {
		t.Fatalf("unexpected task queue %v", worker["task_queue"])
	}
	if worker["max_workers"] != 4 {
		t.Fatalf("expected integer max workers, got %#v", worker["max_workers"])
	}
	if worker["activities"].([]any)[0] != "ping" {
		t.Fatalf("unexpected activities %v", worker["activities"])
	}
	if payload["worker"].(map[string]any)["task_queue"] != "{{ .queue | upper }}" {
		t.Fatal("source payload mutated")
	}
}

func TestRenderMissingKey(t *testing.T) {
	_, err := Render(map[string]any{"name": "{{ .missing }}"}, map[string]any{"other": 1})
	if !errors.Is(err, errdefs.ErrConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestResolveHonorsFlags(t *testing.T) {
	payload := map[string]any{"name": "{{ .name }}", "runner": "ImmediateRunner"}
	resolved, _, err := Resolve(payload, nil, map[string]any{"name": "x"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved["name"] != "{{ .name }}" {
		t.Fatal("non-template descriptor must not render")
	}

	payload["template"] = true
	resolved, _, err = Resolve(payload, nil, map[string]any{"name": "x"})
	if err != nil {
		t.Fatalf("resolve template: %v", err)
	}
	if resolved["name"] != "x" {
		t.Fatalf("expected rendered name, got %v", resolved["name"])
	}
}
