package deployment

import (
	"context"
	"strconv"

	"launchpad/internal/catalog"
)

// Refresh reloads changed code modules, re-extracts and injects the catalog
// and pushes the new snapshot into target. Settings are captured before the
// reload; a descriptor that fails to parse aborts the cycle. On error target
// is left untouched. Concurrent calls share one cycle.
func (r *Registry) Refresh(ctx context.Context, target Target) error {
	_, err, _ := r.refreshes.Do("refresh", func() (any, error) {
		snapshot, err := r.refresh(ctx)
		if err != nil {
			return nil, err
		}
		if target != nil {
			target.Refresh(snapshot)
		}
		return nil, nil
	})
	return err
}

// Snapshot builds a snapshot from the current state without reloading. When
// descriptors fail to parse the snapshot still carries everything else,
// alongside the error.
func (r *Registry) Snapshot() (catalog.Snapshot, error) {
	objects, err := r.Catalog()
	if err != nil {
		return catalog.Snapshot{}, err
	}
	settings, err := r.Settings()
	return catalog.Snapshot{Settings: settings, Objects: objects}, err
}

func (r *Registry) refresh(ctx context.Context) (snapshot catalog.Snapshot, err error) {
	reloadedCount := 0
	defer func() { r.metrics.refresh(ctx, reloadedCount, err) }()

	settings, err := r.Settings()
	if err != nil {
		return catalog.Snapshot{}, err
	}
	reloaded, err := r.modules.Reload(CodeGroups...)
	for group, paths := range reloaded {
		reloadedCount += len(paths)
		r.logger.Debug("modules reloaded", map[string]string{
			"group": group,
			"count": strconv.Itoa(len(paths)),
		})
	}
	if err != nil {
		return catalog.Snapshot{}, err
	}
	objects, err := r.modules.ExtractObjects(CodeGroups...)
	if err != nil {
		return catalog.Snapshot{}, err
	}
	if err := r.modules.Inject(objects, injectGroups...); err != nil {
		return catalog.Snapshot{}, err
	}
	snapshot = catalog.Snapshot{Settings: settings, Objects: catalog.NewCatalog(objects)}
	r.logger.Info("registry refreshed", map[string]string{
		"reloaded":   strconv.Itoa(reloadedCount),
		"tasks":      strconv.Itoa(len(settings.Tasks)),
		"workers":    strconv.Itoa(len(settings.Workers)),
		"activities": strconv.Itoa(len(snapshot.Objects.Activities)),
		"workflows":  strconv.Itoa(len(snapshot.Objects.Workflows)),
	})
	return snapshot, nil
}
