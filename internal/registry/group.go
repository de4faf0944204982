package registry

import (
	"errors"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"launchpad/internal/catalog"
	"launchpad/internal/logging"
)

// Changes is the result of one Group visit. Paths are sorted.
type Changes struct {
	Added    []string `json:"added"`
	Modified []string `json:"modified"`
	Removed  []string `json:"removed"`
}

func (c Changes) Empty() bool {
	return len(c.Added) == 0 && len(c.Modified) == 0 && len(c.Removed) == 0
}

// Group tracks the code and data files reachable from its base paths.
// A Group is not safe for concurrent use; the Registry serializes access.
type Group struct {
	name      string
	root      string
	basePaths map[string]struct{}
	skipPaths map[string]struct{}
	members   map[string]Module
	builtins  catalog.Objects
	logger    *logging.Logger
}

// GroupInfo is the JSON view of a Group.
type GroupInfo struct {
	Name      string     `json:"name"`
	BasePaths []string   `json:"base_paths"`
	SkipPaths []string   `json:"skip_paths"`
	Builtins  []string   `json:"builtins,omitempty"`
	Members   []FileInfo `json:"members"`
}

func NewGroup(name, root string, basePaths, skipPaths []string, logger *logging.Logger) *Group {
	if logger == nil {
		logger = logging.Discard()
	}
	g := &Group{
		name:      name,
		root:      root,
		basePaths: map[string]struct{}{},
		skipPaths: map[string]struct{}{},
		members:   map[string]Module{},
		builtins:  catalog.Objects{},
		logger:    logger.With(map[string]string{"group": name}),
	}
	for _, path := range basePaths {
		g.basePaths[cleanPath(path)] = struct{}{}
	}
	for _, path := range skipPaths {
		g.skipPaths[cleanPath(path)] = struct{}{}
	}
	return g
}

func (g *Group) Name() string { return g.name }

func (g *Group) BasePaths() []string { return sortedSet(g.basePaths) }
func (g *Group) SkipPaths() []string { return sortedSet(g.skipPaths) }

// Paths lists member paths in sorted order.
func (g *Group) Paths() []string {
	paths := make([]string, 0, len(g.members))
	for path := range g.members {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

func (g *Group) Member(path string) (Module, bool) {
	member, ok := g.members[cleanPath(path)]
	return member, ok
}

// AddBuiltins seeds compiled objects returned ahead of member objects.
func (g *Group) AddBuiltins(objects catalog.Objects) {
	for name, object := range objects {
		g.builtins[name] = object
	}
}

// Visit synchronizes members with the filesystem: removals first, then a
// watch of the remaining members, then additions. A member that can no
// longer be read is reported as removed.
func (g *Group) Visit() Changes {
	discovered := g.discover()
	hadMembers := len(g.members) > 0
	var changes Changes

	for _, path := range g.Paths() {
		if _, ok := discovered[path]; !ok {
			delete(g.members, path)
			changes.Removed = append(changes.Removed, path)
		}
	}
	for _, path := range g.Paths() {
		changed, err := g.members[path].Watch()
		if err != nil {
			g.logger.Warn("tracked file unreadable, dropping it", map[string]string{"path": path, "error": err.Error()})
			delete(g.members, path)
			changes.Removed = append(changes.Removed, path)
			continue
		}
		if changed {
			changes.Modified = append(changes.Modified, path)
		}
	}
	for _, path := range sortedSet(discovered) {
		if _, ok := g.members[path]; ok {
			continue
		}
		member, err := g.newModule(path, hadMembers)
		if err != nil {
			g.logger.Warn("cannot track file", map[string]string{"path": path, "error": err.Error()})
			continue
		}
		g.members[path] = member
		changes.Added = append(changes.Added, path)
	}
	sort.Strings(changes.Removed)
	return changes
}

func (g *Group) newModule(path string, isNew bool) (Module, error) {
	if filepath.Ext(path) == ".go" {
		return NewCodeModule(path, g.root, isNew)
	}
	return NewDataModule(path, isNew)
}

func (g *Group) discover() map[string]struct{} {
	found := map[string]struct{}{}
	for base := range g.basePaths {
		if g.skipped(base) {
			continue
		}
		err := filepath.WalkDir(base, func(path string, entry fs.DirEntry, err error) error {
			if err != nil {
				if path == base && errors.Is(err, fs.ErrNotExist) {
					return nil
				}
				g.logger.Debug("walk error", map[string]string{"path": path, "error": err.Error()})
				if entry != nil && entry.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if g.skipped(path) {
				if entry.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if entry.IsDir() || !tracked(entry.Name()) {
				return nil
			}
			found[path] = struct{}{}
			return nil
		})
		if err != nil {
			g.logger.Warn("discovery failed", map[string]string{"path": base, "error": err.Error()})
		}
	}
	return found
}

func (g *Group) skipped(path string) bool {
	for skip := range g.skipPaths {
		if path == skip || strings.HasPrefix(path, skip+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func tracked(name string) bool {
	if strings.HasPrefix(name, "_") || strings.HasSuffix(name, "_test.go") {
		return false
	}
	switch filepath.Ext(name) {
	case ".go", ".yaml", ".yml":
		return true
	}
	return false
}

// AddPaths adds base paths, un-skipping any of them, and re-visits.
func (g *Group) AddPaths(paths ...string) Changes {
	for _, path := range paths {
		path = cleanPath(path)
		g.basePaths[path] = struct{}{}
		delete(g.skipPaths, path)
	}
	return g.Visit()
}

// RemovePaths drops base paths and skips them so another base path does not
// rediscover them, then re-visits.
func (g *Group) RemovePaths(paths ...string) Changes {
	for _, path := range paths {
		path = cleanPath(path)
		delete(g.basePaths, path)
		g.skipPaths[path] = struct{}{}
	}
	return g.Visit()
}

func (g *Group) codeModules(onlyPending bool) []*CodeModule {
	var modules []*CodeModule
	for _, path := range g.Paths() {
		code, ok := g.members[path].(*CodeModule)
		if !ok || (onlyPending && !pending(code)) {
			continue
		}
		modules = append(modules, code)
	}
	return modules
}

// pending reports whether a member still needs a reload: it changed since
// the last successful one, or a code member never evaluated successfully.
func pending(member Module) bool {
	if member.Dirty() {
		return true
	}
	code, ok := member.(*CodeModule)
	return ok && !code.Loaded()
}

// Load reloads every code member.
func (g *Group) Load() ([]string, error) {
	return g.reload(g.codeModules(false))
}

// Reload reloads the pending code members.
func (g *Group) Reload() ([]string, error) {
	return g.reload(g.codeModules(true))
}

func (g *Group) reload(modules []*CodeModule) ([]string, error) {
	var reloaded []string
	var errs []error
	for _, module := range modules {
		if _, err := module.Reload(); err != nil {
			errs = append(errs, err)
			continue
		}
		reloaded = append(reloaded, module.Path())
	}
	return reloaded, errors.Join(errs...)
}

// Inject pushes objects into every code member's symbol table.
func (g *Group) Inject(objects catalog.Objects) {
	for _, module := range g.codeModules(false) {
		module.Inject(objects)
	}
}

// ExtractObjects merges built-ins then member objects in path order. Later
// entries win on a name collision.
func (g *Group) ExtractObjects() catalog.Objects {
	merged := g.builtins.Clone()
	for _, module := range g.codeModules(false) {
		for name, object := range module.ExtractObjects() {
			if previous, ok := merged[name]; ok {
				g.logger.Debug("object name collision, keeping the latest", map[string]string{
					"name":     name,
					"previous": previous.Module,
					"latest":   object.Module,
				})
			}
			merged[name] = object
		}
	}
	return merged
}

// Payloads returns data payloads keyed by path. Files that fail to parse are
// left out and reported in the joined error.
func (g *Group) Payloads() (map[string]map[string]any, error) {
	payloads := map[string]map[string]any{}
	var errs []error
	for _, path := range g.Paths() {
		data, ok := g.members[path].(*DataModule)
		if !ok {
			continue
		}
		payload, err := data.Load()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		payloads[path] = payload
	}
	return payloads, errors.Join(errs...)
}

// Changed lists member paths awaiting a reload, including code members that
// never loaded.
func (g *Group) Changed() []string {
	return g.filterPending(true)
}

func (g *Group) Unchanged() []string {
	return g.filterPending(false)
}

func (g *Group) filterPending(want bool) []string {
	var paths []string
	for _, path := range g.Paths() {
		if pending(g.members[path]) == want {
			paths = append(paths, path)
		}
	}
	return paths
}

func (g *Group) Info() GroupInfo {
	info := GroupInfo{
		Name:      g.name,
		BasePaths: g.BasePaths(),
		SkipPaths: g.SkipPaths(),
		Builtins:  g.builtins.Names(),
		Members:   make([]FileInfo, 0, len(g.members)),
	}
	for _, path := range g.Paths() {
		info.Members = append(info.Members, g.members[path].Info())
	}
	return info
}

func cleanPath(path string) string {
	if absolute, err := filepath.Abs(path); err == nil {
		return absolute
	}
	return filepath.Clean(path)
}

func sortedSet(set map[string]struct{}) []string {
	values := make([]string, 0, len(set))
	for value := range set {
		values = append(values, value)
	}
	sort.Strings(values)
	return values
}
