package deployment

import (
	"context"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"launchpad/internal/registry"
)

// Trigger requests an immediate visit from a running Poll loop. Requests
// made while one is pending are coalesced.
func (r *Registry) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// Poll visits every group each polling interval or when triggered. When
// something changed and automatic refresh is enabled it calls refresh.
// Errors are logged and the loop continues until ctx is done.
func (r *Registry) Poll(ctx context.Context, refresh func(context.Context) error) error {
	timer := time.NewTimer(r.PollingInterval())
	defer timer.Stop()
	r.logger.Info("registry polling started", map[string]string{
		"interval": r.PollingInterval().String(),
	})
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("registry polling stopped", nil)
			return nil
		case <-r.rearm:
			timer.Reset(r.PollingInterval())
			continue
		case <-r.trigger:
			if err := r.limiter.Wait(ctx); err != nil {
				continue
			}
		case <-timer.C:
		}
		r.pollOnce(ctx, refresh)
		timer.Reset(r.PollingInterval())
	}
}

func (r *Registry) pollOnce(ctx context.Context, refresh func(context.Context) error) {
	changes, err := r.Visit()
	if err != nil {
		r.logger.Error("registry visit failed", map[string]string{"error": err.Error()})
		return
	}
	changed := hasChanges(changes)
	r.metrics.visit(ctx, changed)
	if changed {
		r.logChanges(changes)
	}
	retry := r.pendingMembers()
	if retry > 0 {
		r.logger.Info("modules awaiting reload", map[string]string{"count": strconv.Itoa(retry)})
	}
	if !changed && retry == 0 {
		return
	}
	if !r.AutomaticRefresh() || refresh == nil {
		return
	}
	if err := refresh(ctx); err != nil {
		r.logger.Error("registry refresh failed", map[string]string{"error": err.Error()})
	}
}

// Visit diffs every group against the filesystem.
func (r *Registry) Visit() (map[string]registry.Changes, error) {
	return r.modules.Visit()
}

// pendingMembers counts code modules whose last reload failed or never ran,
// plus descriptors whose last parse failed. A failed refresh leaves them
// pending so the next tick retries.
func (r *Registry) pendingMembers() int {
	changed, err := r.modules.Changed(refreshGroups...)
	if err != nil {
		r.logger.Warn("pending module lookup failed", map[string]string{"error": err.Error()})
		return 0
	}
	count := 0
	for group, paths := range changed {
		if slices.Contains(CodeGroups, group) {
			count += len(paths)
			continue
		}
		// Code files under descriptor groups are never evaluated.
		for _, path := range paths {
			if filepath.Ext(path) != ".go" {
				count++
			}
		}
	}
	return count
}

func hasChanges(changes map[string]registry.Changes) bool {
	for _, change := range changes {
		if !change.Empty() {
			return true
		}
	}
	return false
}

func (r *Registry) logChanges(changes map[string]registry.Changes) {
	names := make([]string, 0, len(changes))
	for name, change := range changes {
		if !change.Empty() {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		change := changes[name]
		r.logger.Info("registry changes detected", map[string]string{
			"group":    name,
			"added":    strconv.Itoa(len(change.Added)),
			"modified": strconv.Itoa(len(change.Modified)),
			"removed":  strconv.Itoa(len(change.Removed)),
			"paths":    strings.Join(changedPaths(change), ","),
		})
	}
}

func changedPaths(change registry.Changes) []string {
	paths := make([]string, 0, len(change.Added)+len(change.Modified)+len(change.Removed))
	paths = append(paths, change.Added...)
	paths = append(paths, change.Modified...)
	return append(paths, change.Removed...)
}
