package watcher

import (
	"io/fs"
	"path/filepath"
	"strings"
)

func (watcher *Watcher) addRecursiveWatches(root string) error {
	for _, path := range collectRecursiveDirs(root) {
		if err := watcher.addWatch(path); err != nil {
			return err
		}
	}
	return nil
}

// collectRecursiveDirs lists root and its subdirectories. Hidden
// directories below root (.git, .cache) never hold modules and are pruned.
func collectRecursiveDirs(root string) []string {
	var dirs []string
	_ = filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil || !entry.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(entry.Name(), ".") {
			return filepath.SkipDir
		}
		dirs = append(dirs, path)
		return nil
	})
	return dirs
}

func (watcher *Watcher) addWatch(path string) error {
	watcher.mutex.Lock()
	if watcher.closed {
		watcher.mutex.Unlock()
		return nil
	}
	if _, ok := watcher.watches[path]; ok {
		watcher.mutex.Unlock()
		return nil
	}
	if len(watcher.watches) >= watcher.maxWatches {
		watcher.mutex.Unlock()
		return ErrMaxWatchesExceeded
	}
	watcher.watches[path] = struct{}{}
	activeCount := len(watcher.watches)
	source := watcher.watcher
	watcher.mutex.Unlock()

	if err := source.Add(path); err != nil {
		watcher.mutex.Lock()
		delete(watcher.watches, path)
		watcher.mutex.Unlock()
		watcher.logWarn("watch add failed", map[string]string{
			"path":  path,
			"error": err.Error(),
		})
		return err
	}
	watcher.logDebug("watch added", path, activeCount)
	return nil
}

// forgetWatches drops bookkeeping for a removed directory tree; fsnotify
// removes the kernel watches itself.
func (watcher *Watcher) forgetWatches(path string) {
	prefix := path + string(filepath.Separator)
	watcher.mutex.Lock()
	defer watcher.mutex.Unlock()
	for watched := range watcher.watches {
		if watched == path || strings.HasPrefix(watched, prefix) {
			delete(watcher.watches, watched)
		}
	}
}

func (watcher *Watcher) isWatchedDir(path string) bool {
	watcher.mutex.Lock()
	defer watcher.mutex.Unlock()
	_, ok := watcher.watches[path]
	return ok
}
