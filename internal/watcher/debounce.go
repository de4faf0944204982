package watcher

import (
	"os"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// pendingEvent is the latest event seen for one path while its quiet
// period is running.
type pendingEvent struct {
	latest    Event
	coalesced int
	timer     *time.Timer
}

// debouncer holds at most one pending event per path. It is guarded by the
// watcher mutex.
type debouncer struct {
	quiet   time.Duration
	pending map[string]*pendingEvent
}

func newDebouncer(quiet time.Duration) *debouncer {
	return &debouncer{quiet: quiet, pending: map[string]*pendingEvent{}}
}

// schedule replaces the pending event for event.Path and pushes its deadline
// back. It returns true when an older event was folded into this one.
func (d *debouncer) schedule(event Event, fire func(string)) bool {
	if d == nil || d.pending == nil {
		return false
	}
	if current, ok := d.pending[event.Path]; ok {
		current.latest = event
		current.coalesced++
		current.timer.Reset(d.quiet)
		return true
	}
	path := event.Path
	d.pending[path] = &pendingEvent{
		latest: event,
		timer:  time.AfterFunc(d.quiet, func() { fire(path) }),
	}
	return false
}

func (d *debouncer) take(path string) (Event, bool) {
	if d == nil || d.pending == nil {
		return Event{}, false
	}
	current, ok := d.pending[path]
	if !ok {
		return Event{}, false
	}
	delete(d.pending, path)
	return current.latest, true
}

func (d *debouncer) size() int {
	if d == nil {
		return 0
	}
	return len(d.pending)
}

// stop cancels every pending timer. Later calls to schedule are no-ops.
func (d *debouncer) stop() {
	if d == nil {
		return
	}
	for _, current := range d.pending {
		current.timer.Stop()
	}
	d.pending = nil
}

// handleEvent keeps the recursive watch set in step with the tree and
// queues relevant events for delivery.
func (watcher *Watcher) handleEvent(raw fsnotify.Event) {
	switch {
	case raw.Has(fsnotify.Create):
		if info, err := os.Stat(raw.Name); err == nil && info.IsDir() {
			if err := watcher.addRecursiveWatches(raw.Name); err != nil {
				watcher.logWarn("watch new directory failed", map[string]string{"path": raw.Name, "error": err.Error()})
			}
		}
	case raw.Has(fsnotify.Remove), raw.Has(fsnotify.Rename):
		watcher.forgetWatches(raw.Name)
	}
	if !watcher.filter(raw.Name) && !watcher.isWatchedDir(raw.Name) {
		return
	}

	event := Event{Path: raw.Name, Op: raw.Op, Timestamp: time.Now().UTC()}
	watcher.mutex.Lock()
	defer watcher.mutex.Unlock()
	if watcher.closed {
		return
	}
	if watcher.debouncer.schedule(event, watcher.deliver) {
		atomic.AddUint64(&watcher.eventsDropped, 1)
	}
}

// deliver runs on the debounce timer and hands the settled event to the
// callback outside the lock.
func (watcher *Watcher) deliver(path string) {
	watcher.mutex.Lock()
	event, ok := watcher.debouncer.take(path)
	closed := watcher.closed
	watcher.mutex.Unlock()
	if !ok || closed {
		return
	}
	watcher.onChange(event)
	atomic.AddUint64(&watcher.eventsDelivered, 1)
}
