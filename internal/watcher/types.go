package watcher

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"launchpad/internal/logging"
)

// Event is one debounced filesystem change.
type Event struct {
	Path      string
	Op        fsnotify.Op
	Timestamp time.Time
}

type Options struct {
	Logger     *logging.Logger
	Debounce   time.Duration
	MaxWatches int
	// Filter reports whether a file event is relevant. Directory events are
	// always handled so new subdirectories get watched.
	Filter       func(path string) bool
	ErrorHandler func(error)
}

// Metrics reports watcher counters.
type Metrics struct {
	ActiveWatches   int    `json:"active_watches"`
	EventsDelivered uint64 `json:"events_delivered"`
	EventsDropped   uint64 `json:"events_dropped"`
	Errors          uint64 `json:"errors"`
	RestartAttempts int    `json:"restart_attempts"`
}

// Watcher recursively watches directories and calls onChange once per path
// after the debounce window.
type Watcher struct {
	watcher      *fsnotify.Watcher
	mutex        sync.Mutex
	roots        map[string]struct{}
	watches      map[string]struct{}
	debouncer    *debouncer
	onChange     func(Event)
	filter       func(string) bool
	events       chan fsnotify.Event
	errors       chan error
	done         chan struct{}
	closed       bool
	logger       *logging.Logger
	maxWatches   int
	errorHandler func(error)

	restartAttempts atomic.Int32

	eventsDelivered uint64
	eventsDropped   uint64
	errorCount      uint64
}
