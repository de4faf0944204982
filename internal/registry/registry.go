package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"launchpad/internal/catalog"
	"launchpad/internal/errdefs"
	"launchpad/internal/logging"
)

// Registry owns named groups. Group iteration is sorted by name and every
// method is serialized by one mutex.
type Registry struct {
	mu     sync.Mutex
	root   string
	groups map[string]*Group
	logger *logging.Logger
}

func New(root string, logger *logging.Logger) *Registry {
	if logger == nil {
		logger = logging.Discard()
	}
	if root != "" {
		root = cleanPath(root)
	}
	return &Registry{
		root:   root,
		groups: map[string]*Group{},
		logger: logger,
	}
}

func (r *Registry) Root() string { return r.root }

func (r *Registry) AddGroup(name string, basePaths, skipPaths []string) (*Group, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.groups[name]; ok {
		return nil, errdefs.AlreadyExists("group %q already exists", name)
	}
	group := NewGroup(name, r.root, basePaths, skipPaths, r.logger)
	r.groups[name] = group
	return group, nil
}

func (r *Registry) RemoveGroup(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.groups[name]; !ok {
		return errdefs.NotFound("group %q", name)
	}
	delete(r.groups, name)
	return nil
}

func (r *Registry) Group(name string) (*Group, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	group, ok := r.groups[name]
	if !ok {
		return nil, errdefs.NotFound("group %q", name)
	}
	return group, nil
}

func (r *Registry) GroupNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sortedNames()
}

// BasePaths lists the base paths of every group.
func (r *Registry) BasePaths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var paths []string
	for _, name := range r.sortedNames() {
		paths = append(paths, r.groups[name].BasePaths()...)
	}
	return paths
}

func (r *Registry) sortedNames() []string {
	names := make([]string, 0, len(r.groups))
	for name := range r.groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// selectGroups returns every group when names is empty, otherwise the named
// groups in the given order. Callers hold r.mu.
func (r *Registry) selectGroups(names []string) ([]*Group, error) {
	if len(names) == 0 {
		names = r.sortedNames()
	}
	groups := make([]*Group, 0, len(names))
	for _, name := range names {
		group, ok := r.groups[name]
		if !ok {
			return nil, errdefs.NotFound("group %q", name)
		}
		groups = append(groups, group)
	}
	return groups, nil
}

func (r *Registry) AddBuiltins(name string, objects catalog.Objects) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	group, ok := r.groups[name]
	if !ok {
		return errdefs.NotFound("group %q", name)
	}
	group.AddBuiltins(objects)
	return nil
}

func (r *Registry) AddPaths(name string, paths ...string) (Changes, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	group, ok := r.groups[name]
	if !ok {
		return Changes{}, errdefs.NotFound("group %q", name)
	}
	return group.AddPaths(paths...), nil
}

func (r *Registry) RemovePaths(name string, paths ...string) (Changes, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	group, ok := r.groups[name]
	if !ok {
		return Changes{}, errdefs.NotFound("group %q", name)
	}
	return group.RemovePaths(paths...), nil
}

// Visit returns the per-group diff of the selected groups.
func (r *Registry) Visit(names ...string) (map[string]Changes, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	groups, err := r.selectGroups(names)
	if err != nil {
		return nil, err
	}
	changes := make(map[string]Changes, len(groups))
	for _, group := range groups {
		changes[group.Name()] = group.Visit()
	}
	return changes, nil
}

// Reload reloads the pending code members of the selected groups and returns
// the reloaded paths per group.
func (r *Registry) Reload(names ...string) (map[string][]string, error) {
	return r.reload(names, (*Group).Reload)
}

// Load reloads every code member of the selected groups.
func (r *Registry) Load(names ...string) (map[string][]string, error) {
	return r.reload(names, (*Group).Load)
}

func (r *Registry) reload(names []string, fn func(*Group) ([]string, error)) (map[string][]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	groups, err := r.selectGroups(names)
	if err != nil {
		return nil, err
	}
	reloaded := make(map[string][]string, len(groups))
	var errs []error
	for _, group := range groups {
		paths, err := fn(group)
		if len(paths) > 0 {
			reloaded[group.Name()] = paths
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("group %s: %w", group.Name(), err))
		}
	}
	return reloaded, errors.Join(errs...)
}

func (r *Registry) Inject(objects catalog.Objects, names ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	groups, err := r.selectGroups(names)
	if err != nil {
		return err
	}
	for _, group := range groups {
		group.Inject(objects)
	}
	return nil
}

// ExtractObjects merges the objects of the selected groups in selection order.
func (r *Registry) ExtractObjects(names ...string) (catalog.Objects, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	groups, err := r.selectGroups(names)
	if err != nil {
		return nil, err
	}
	merged := catalog.Objects{}
	for _, group := range groups {
		for name, object := range group.ExtractObjects() {
			merged[name] = object
		}
	}
	return merged, nil
}

// Payloads merges the path-keyed payloads of the selected groups. Parse
// failures are returned alongside the payloads that did parse.
func (r *Registry) Payloads(names ...string) (map[string]map[string]any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	groups, err := r.selectGroups(names)
	if err != nil {
		return nil, err
	}
	merged := map[string]map[string]any{}
	var parseErr error
	for _, group := range groups {
		payloads, err := group.Payloads()
		for path, payload := range payloads {
			merged[path] = payload
		}
		if err != nil && parseErr == nil {
			parseErr = err
		}
	}
	return merged, parseErr
}

// Module returns the first member matching path across groups in name
// order, or fallback when no group tracks it.
func (r *Registry) Module(path string, fallback Module) Module {
	r.mu.Lock()
	defer r.mu.Unlock()
	if module, ok := r.lookup(path); ok {
		return module
	}
	return fallback
}

func (r *Registry) lookup(path string) (Module, bool) {
	for _, name := range r.sortedNames() {
		if module, ok := r.groups[name].Member(path); ok {
			return module, true
		}
	}
	return nil, false
}

func (r *Registry) codeModule(path string) (*CodeModule, error) {
	module, ok := r.lookup(path)
	if !ok {
		return nil, errdefs.NotFound("module %s", path)
	}
	code, ok := module.(*CodeModule)
	if !ok {
		return nil, errdefs.Config("module %s is not a code module", path)
	}
	return code, nil
}

func (r *Registry) ReloadModule(path string) (catalog.Objects, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	code, err := r.codeModule(path)
	if err != nil {
		return nil, err
	}
	return code.Reload()
}

func (r *Registry) InjectModule(path string, objects catalog.Objects) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	code, err := r.codeModule(path)
	if err != nil {
		return err
	}
	code.Inject(objects)
	return nil
}

// Changed lists member paths awaiting a reload per selected group.
func (r *Registry) Changed(names ...string) (map[string][]string, error) {
	return r.byDirty(names, (*Group).Changed)
}

func (r *Registry) Unchanged(names ...string) (map[string][]string, error) {
	return r.byDirty(names, (*Group).Unchanged)
}

func (r *Registry) byDirty(names []string, fn func(*Group) []string) (map[string][]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	groups, err := r.selectGroups(names)
	if err != nil {
		return nil, err
	}
	result := make(map[string][]string, len(groups))
	for _, group := range groups {
		result[group.Name()] = fn(group)
	}
	return result, nil
}

func (r *Registry) Info(names ...string) ([]GroupInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	groups, err := r.selectGroups(names)
	if err != nil {
		return nil, err
	}
	infos := make([]GroupInfo, 0, len(groups))
	for _, group := range groups {
		infos = append(infos, group.Info())
	}
	return infos, nil
}
