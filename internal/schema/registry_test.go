package schema

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/invopop/jsonschema"

	"launchpad/internal/errdefs"
)

// isolate swaps in an empty registry for the duration of a test.
func isolate(t *testing.T) {
	t.Helper()
	mu.Lock()
	saved := entries
	entries = map[string]*entry{}
	mu.Unlock()
	t.Cleanup(func() {
		mu.Lock()
		entries = saved
		mu.Unlock()
	})
}

func TestResolveBuildsOnce(t *testing.T) {
	isolate(t)
	builds := 0
	if err := Register(" Task ", func() *jsonschema.Schema {
		builds++
		return &jsonschema.Schema{Title: "task"}
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	first, err := Resolve("task")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	second, err := Resolve("TASK")
	if err != nil {
		t.Fatalf("resolve again: %v", err)
	}
	if first != second || builds != 1 {
		t.Fatalf("expected one shared build, got %d builds", builds)
	}

	Reset()
	if _, err := Resolve("task"); err != nil {
		t.Fatalf("resolve after reset: %v", err)
	}
	if builds != 2 {
		t.Fatalf("reset must force a rebuild, got %d builds", builds)
	}
}

func TestRegisterReplacesProvider(t *testing.T) {
	isolate(t)
	_ = Register("worker", func() *jsonschema.Schema { return &jsonschema.Schema{Title: "old"} })
	if _, err := Resolve("worker"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	_ = Register("worker", func() *jsonschema.Schema { return &jsonschema.Schema{Title: "new"} })
	s, err := Resolve("worker")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if s.Title != "new" {
		t.Fatalf("expected the replacement schema, got %q", s.Title)
	}
}

func TestRegisterRejectsIncompleteEntries(t *testing.T) {
	isolate(t)
	if err := Register("  ", func() *jsonschema.Schema { return nil }); !errors.Is(err, errdefs.ErrConfig) {
		t.Fatalf("expected config error for blank name, got %v", err)
	}
	if err := Register("task", nil); !errors.Is(err, errdefs.ErrConfig) {
		t.Fatalf("expected config error for nil provider, got %v", err)
	}
}

func TestResolveUnknownListsKnownNames(t *testing.T) {
	isolate(t)
	for _, name := range []string{"worker", "Task"} {
		_ = Register(name, func() *jsonschema.Schema { return &jsonschema.Schema{} })
	}
	if diff := cmp.Diff([]string{"task", "worker"}, Names()); diff != "" {
		t.Fatalf("names (-want +got):\n%s", diff)
	}
	_, err := Resolve("route")
	if !errors.Is(err, errdefs.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if !strings.Contains(err.Error(), "task, worker") {
		t.Fatalf("expected known names in %q", err.Error())
	}
}
