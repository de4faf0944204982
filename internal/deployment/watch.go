package deployment

import (
	"path/filepath"

	"launchpad/internal/watcher"
)

var trackedExtensions = map[string]struct{}{
	".go":   {},
	".yaml": {},
	".yml":  {},
}

// Watch starts a filesystem watcher over every group base path. Any relevant
// change triggers a visit of a running Poll loop. When the watcher cannot
// recover from errors, the poll interval alone keeps the registry current.
// Callers close the watcher.
func (r *Registry) Watch(options watcher.Options) (*watcher.Watcher, error) {
	if options.Logger == nil {
		options.Logger = r.logger
	}
	if options.Filter == nil {
		options.Filter = func(path string) bool {
			_, ok := trackedExtensions[filepath.Ext(path)]
			return ok
		}
	}
	if options.ErrorHandler == nil {
		options.ErrorHandler = func(err error) {
			r.logger.Warn("file watcher gave up, polling only", map[string]string{
				"error":            err.Error(),
				"polling_interval": r.PollingInterval().String(),
			})
		}
	}
	fileWatcher, err := watcher.New(func(watcher.Event) { r.Trigger() }, options)
	if err != nil {
		return nil, err
	}
	if err := fileWatcher.Add(r.modules.BasePaths()...); err != nil {
		r.logger.Warn("watch paths failed", map[string]string{"error": err.Error()})
	}
	return fileWatcher, nil
}
