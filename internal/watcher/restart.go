package watcher

import (
	"strconv"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// restartDelay doubles from restartBaseDelay with every failed attempt.
func restartDelay(attempt int) time.Duration {
	return restartBaseDelay << attempt
}

// run owns the restart backoff: only this goroutine arms or reads it.
func (watcher *Watcher) run() {
	var retry <-chan time.Time
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case event := <-watcher.events:
			watcher.handleEvent(event)
		case err := <-watcher.errors:
			atomic.AddUint64(&watcher.errorCount, 1)
			watcher.logWarn("watcher error", map[string]string{"error": err.Error()})
			if retry == nil {
				retry, timer = watcher.backoff(err)
			}
		case <-retry:
			retry = nil
			if err := watcher.restart(); err != nil {
				watcher.logWarn("watcher restart failed", map[string]string{"error": err.Error()})
				retry, timer = watcher.backoff(err)
				continue
			}
			watcher.restartAttempts.Store(0)
			watcher.logger.Info("watcher restarted", map[string]string{
				"active_watches": strconv.Itoa(watcher.activeWatches()),
			})
		case <-watcher.done:
			return
		}
	}
}

// backoff arms the next restart, or gives up and reports err once the
// attempts are exhausted. Polling keeps the registry fresh after that.
func (watcher *Watcher) backoff(err error) (<-chan time.Time, *time.Timer) {
	attempt := int(watcher.restartAttempts.Load())
	if attempt >= maxRestartAttempts {
		if watcher.errorHandler != nil {
			watcher.errorHandler(err)
		}
		return nil, nil
	}
	watcher.restartAttempts.Add(1)
	timer := time.NewTimer(restartDelay(attempt))
	return timer.C, timer
}

// restart swaps in a fresh fsnotify watcher and re-adds every root.
func (watcher *Watcher) restart() error {
	replacement, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	watcher.mutex.Lock()
	if watcher.closed {
		watcher.mutex.Unlock()
		return replacement.Close()
	}
	previous := watcher.watcher
	roots := make([]string, 0, len(watcher.roots))
	for root := range watcher.roots {
		roots = append(roots, root)
	}
	watcher.watcher = replacement
	watcher.watches = make(map[string]struct{})
	watcher.mutex.Unlock()

	watcher.startForwarder(replacement)
	if previous != nil {
		_ = previous.Close()
	}
	return watcher.Add(roots...)
}
