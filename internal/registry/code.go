package registry

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"launchpad/internal/catalog"
)

// CodeModule is a Go source file evaluated by a fresh yaegi interpreter on
// every reload.
type CodeModule struct {
	*File
	root    string
	symbols *catalog.SymbolTable

	mu      sync.RWMutex
	objects catalog.Objects
	loaded  bool
}

func NewCodeModule(path, root string, isNew bool) (*CodeModule, error) {
	f, err := NewFile(path, KindCode, isNew)
	if err != nil {
		return nil, err
	}
	return &CodeModule{
		File:    f,
		root:    root,
		symbols: catalog.NewSymbolTable(),
		objects: catalog.Objects{},
	}, nil
}

// CanonicalName is the dotted module name of the file relative to the
// project root, or the path itself when the file lives outside the root.
func (m *CodeModule) CanonicalName() string {
	if m.root == "" {
		return m.path
	}
	relative, err := filepath.Rel(m.root, m.path)
	if err != nil || relative == ".." || strings.HasPrefix(relative, ".."+string(filepath.Separator)) {
		return m.path
	}
	relative = strings.TrimSuffix(relative, filepath.Ext(relative))
	return strings.ReplaceAll(filepath.ToSlash(relative), "/", ".")
}

// Reload evaluates the file and replaces the extracted objects. Dirty is
// cleared only when evaluation succeeds.
func (m *CodeModule) Reload() (objects catalog.Objects, err error) {
	collector := catalog.NewCollector(m.CanonicalName())
	defer func() {
		if recovered := recover(); recovered != nil {
			objects = nil
			err = fmt.Errorf("reload %s: panic: %v", m.path, recovered)
		}
	}()

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("reload %s: %w", m.path, err)
	}
	if err := i.Use(catalog.Exports(collector, m.symbols)); err != nil {
		return nil, fmt.Errorf("reload %s: %w", m.path, err)
	}
	if _, err := i.EvalPath(m.path); err != nil {
		return nil, fmt.Errorf("reload %s: %w", m.path, err)
	}

	objects = collector.Objects()
	m.mu.Lock()
	m.objects = objects
	m.loaded = true
	m.mu.Unlock()
	m.ResolveChanges()
	return objects.Clone(), nil
}

// ExtractObjects returns the objects registered by the last reload.
func (m *CodeModule) ExtractObjects() catalog.Objects {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.objects.Clone()
}

func (m *CodeModule) Loaded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loaded
}

// Inject makes objects visible to the module through catalog.Lookup.
func (m *CodeModule) Inject(objects catalog.Objects) {
	m.symbols.Inject(objects)
}

func (m *CodeModule) Symbols() *catalog.SymbolTable {
	return m.symbols
}

func (m *CodeModule) Info() FileInfo {
	info := m.File.Info()
	info.Name = m.CanonicalName()
	info.Objects = m.ExtractObjects().Names()
	return info
}
