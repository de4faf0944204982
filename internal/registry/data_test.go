package registry

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"launchpad/internal/errdefs"
)

func TestParsePayloadSubstitutesEnvironment(t *testing.T) {
	env := map[string]string{"HOST": "temporal.local", "QUEUE": "reports"}
	lookup := func(name string) (string, bool) {
		value, ok := env[name]
		return value, ok
	}
	payload, err := ParsePayload([]byte(`
server: ${HOST}
worker:
  task_queue: ${QUEUE}
  activities:
    - ping
    - "${QUEUE}-export"
  max_workers: 4
`), lookup)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := map[string]any{
		"server": "temporal.local",
		"worker": map[string]any{
			"task_queue":  "reports",
			"activities":  []any{"ping", "reports-export"},
			"max_workers": 4,
		},
	}
	if diff := cmp.Diff(want, payload); diff != "" {
		t.Fatalf("payload (-want +got):\n%s", diff)
	}
}

func TestParsePayloadUnsetVariable(t *testing.T) {
	lookup := func(string) (string, bool) { return "", false }
	_, err := ParsePayload([]byte("nested:\n  list:\n    - ${MISSING}\n"), lookup)
	if !errors.Is(err, errdefs.ErrConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestParsePayloadInvalidYAML(t *testing.T) {
	lookup := func(string) (string, bool) { return "", false }
	if _, err := ParsePayload([]byte("- a\n- b\n"), lookup); !errors.Is(err, errdefs.ErrConfig) {
		t.Fatalf("expected config error for a list document, got %v", err)
	}
}

func TestDataModuleLoadClearsDirty(t *testing.T) {
	t.Setenv("LAUNCHPAD_TEST_QUEUE", "alt")
	path := writeFile(t, filepath.Join(t.TempDir(), "worker.yaml"), "queue: ${LAUNCHPAD_TEST_QUEUE}\n")
	module, err := NewDataModule(path, true)
	if err != nil {
		t.Fatalf("new data module: %v", err)
	}
	payload, err := module.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if payload["queue"] != "alt" {
		t.Fatalf("unexpected payload %v", payload)
	}
	if module.Dirty() {
		t.Fatal("expected dirty cleared by load")
	}
}

func TestDataModuleLoadFailureKeepsDirty(t *testing.T) {
	path := writeFile(t, filepath.Join(t.TempDir(), "task.yaml"), "queue: ${LAUNCHPAD_TEST_MISSING_QUEUE}\n")
	module, err := NewDataModule(path, false)
	if err != nil {
		t.Fatalf("new data module: %v", err)
	}
	if _, err := module.Load(); !errors.Is(err, errdefs.ErrConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
	if !module.Dirty() {
		t.Fatal("failed load must leave the module dirty")
	}

	t.Setenv("LAUNCHPAD_TEST_MISSING_QUEUE", "alt")
	if _, err := module.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	if module.Dirty() {
		t.Fatal("expected dirty cleared once the payload loads")
	}
}
