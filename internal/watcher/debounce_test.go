package watcher

import (
	"testing"
	"time"
)

func TestDebouncerKeepsLatestEventPerPath(t *testing.T) {
	d := newDebouncer(30 * time.Millisecond)
	defer d.stop()

	fired := make(chan string, 4)
	fire := func(path string) { fired <- path }

	if d.schedule(Event{Path: "a.go", Timestamp: time.Unix(1, 0)}, fire) {
		t.Fatal("first event must not be reported as coalesced")
	}
	if !d.schedule(Event{Path: "a.go", Timestamp: time.Unix(2, 0)}, fire) {
		t.Fatal("second event for the same path must be coalesced")
	}
	if d.schedule(Event{Path: "b.yaml"}, fire) {
		t.Fatal("a different path gets its own slot")
	}
	if d.size() != 2 {
		t.Fatalf("expected 2 pending paths, got %d", d.size())
	}

	seen := map[string]int{}
	deadline := time.After(500 * time.Millisecond)
	for len(seen) < 2 {
		select {
		case path := <-fired:
			seen[path]++
		case <-deadline:
			t.Fatalf("timed out, fired %v", seen)
		}
	}
	if seen["a.go"] != 1 {
		t.Fatalf("a.go must fire once, got %d", seen["a.go"])
	}

	event, ok := d.take("a.go")
	if !ok || !event.Timestamp.Equal(time.Unix(2, 0)) {
		t.Fatalf("expected the latest a.go event, got %+v (ok=%v)", event, ok)
	}
	if _, ok := d.take("a.go"); ok {
		t.Fatal("take must drain the slot")
	}
}

func TestDebouncerStopCancelsTimers(t *testing.T) {
	d := newDebouncer(20 * time.Millisecond)
	fired := make(chan string, 1)
	d.schedule(Event{Path: "x"}, func(path string) { fired <- path })
	d.stop()

	if d.schedule(Event{Path: "y"}, func(string) {}) {
		t.Fatal("schedule after stop must be a no-op")
	}
	select {
	case path := <-fired:
		t.Fatalf("stopped debouncer fired for %s", path)
	case <-time.After(80 * time.Millisecond):
	}
}
