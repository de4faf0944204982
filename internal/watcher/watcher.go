package watcher

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"launchpad/internal/logging"
)

const (
	defaultDebounce    = 100 * time.Millisecond
	defaultMaxWatches  = 1024
	maxRestartAttempts = 3
	restartBaseDelay   = 200 * time.Millisecond
)

var ErrMaxWatchesExceeded = errors.New("max watches exceeded")

// New creates a Watcher that reports changes to onChange.
func New(onChange func(Event), options Options) (*Watcher, error) {
	if onChange == nil {
		return nil, errors.New("change callback is required")
	}
	source, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	logger := options.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	debounce := options.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	maxWatches := options.MaxWatches
	if maxWatches <= 0 {
		maxWatches = defaultMaxWatches
	}
	filter := options.Filter
	if filter == nil {
		filter = func(string) bool { return true }
	}

	instance := &Watcher{
		watcher:      source,
		roots:        make(map[string]struct{}),
		watches:      make(map[string]struct{}),
		debouncer:    newDebouncer(debounce),
		onChange:     onChange,
		filter:       filter,
		events:       make(chan fsnotify.Event, 64),
		errors:       make(chan error, 4),
		done:         make(chan struct{}),
		logger:       logger.Named("watcher"),
		maxWatches:   maxWatches,
		errorHandler: options.ErrorHandler,
	}

	instance.startForwarder(source)
	go instance.run()
	return instance, nil
}

// Add watches each path. Directories are watched recursively; a file is
// watched through its parent directory. Missing paths are skipped.
func (watcher *Watcher) Add(paths ...string) error {
	var errs []error
	for _, path := range paths {
		absolute, err := filepath.Abs(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		info, err := os.Stat(absolute)
		if err != nil {
			watcher.logDebug("watch root missing", absolute, watcher.activeWatches())
			continue
		}
		dir := absolute
		if !info.IsDir() {
			dir = filepath.Dir(absolute)
		}
		watcher.mutex.Lock()
		watcher.roots[absolute] = struct{}{}
		watcher.mutex.Unlock()
		if err := watcher.addRecursiveWatches(dir); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close stops event processing and releases the fsnotify watcher.
func (watcher *Watcher) Close() error {
	if watcher == nil {
		return nil
	}

	watcher.mutex.Lock()
	if watcher.closed {
		watcher.mutex.Unlock()
		return nil
	}
	watcher.closed = true
	if watcher.debouncer != nil {
		watcher.debouncer.stop()
		watcher.debouncer = nil
	}
	source := watcher.watcher
	watcher.mutex.Unlock()

	close(watcher.done)
	if source == nil {
		return nil
	}
	return source.Close()
}

func (watcher *Watcher) startForwarder(source *fsnotify.Watcher) {
	if source == nil {
		return
	}

	go func() {
		for {
			select {
			case event, ok := <-source.Events:
				if !ok {
					return
				}
				select {
				case watcher.events <- event:
				case <-watcher.done:
					return
				}
			case err, ok := <-source.Errors:
				if !ok {
					return
				}
				select {
				case watcher.errors <- err:
				case <-watcher.done:
					return
				}
			case <-watcher.done:
				return
			}
		}
	}()
}

func (watcher *Watcher) activeWatches() int {
	watcher.mutex.Lock()
	defer watcher.mutex.Unlock()
	return len(watcher.watches)
}

func (watcher *Watcher) logWarn(message string, fields map[string]string) {
	if watcher == nil || watcher.logger == nil {
		return
	}
	watcher.logger.Warn(message, fields)
}

func (watcher *Watcher) logDebug(message, path string, activeCount int) {
	if watcher == nil || watcher.logger == nil {
		return
	}
	watcher.logger.Debug(message, map[string]string{
		"path":           path,
		"active_watches": strconv.Itoa(activeCount),
	})
}

// Metrics reports current watcher stats.
func (watcher *Watcher) Metrics() Metrics {
	if watcher == nil {
		return Metrics{}
	}
	return Metrics{
		ActiveWatches:   watcher.activeWatches(),
		EventsDelivered: atomic.LoadUint64(&watcher.eventsDelivered),
		EventsDropped:   atomic.LoadUint64(&watcher.eventsDropped),
		Errors:          atomic.LoadUint64(&watcher.errorCount),
		RestartAttempts: int(watcher.restartAttempts.Load()),
	}
}
