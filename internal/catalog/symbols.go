package catalog

import "sync"

// SymbolTable is the binding table of one code module. Objects injected here
// are visible to the module's interpreted code through Lookup, including
// objects reloaded after the module itself was evaluated.
type SymbolTable struct {
	mu      sync.RWMutex
	objects Objects
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{objects: make(Objects)}
}

func (table *SymbolTable) Inject(objects Objects) {
	if table == nil {
		return
	}
	table.mu.Lock()
	for name, object := range objects {
		table.objects[name] = object
	}
	table.mu.Unlock()
}

func (table *SymbolTable) Lookup(name string) (Object, bool) {
	if table == nil {
		return Object{}, false
	}
	table.mu.RLock()
	defer table.mu.RUnlock()
	object, ok := table.objects[name]
	return object, ok
}

func (table *SymbolTable) Snapshot() Objects {
	if table == nil {
		return Objects{}
	}
	table.mu.RLock()
	defer table.mu.RUnlock()
	return table.objects.Clone()
}

// Collector records the objects a module registers while it is evaluated.
type Collector struct {
	mu      sync.Mutex
	module  string
	order   []string
	objects Objects
}

func NewCollector(module string) *Collector {
	return &Collector{module: module, objects: make(Objects)}
}

func (collector *Collector) Activity(name string, fn ActivityFunc) Object {
	return collector.add(Activity(name, fn))
}

func (collector *Collector) Workflow(name string, fn WorkflowFunc) Object {
	return collector.add(Workflow(name, fn))
}

func (collector *Collector) add(object Object) Object {
	object.Module = collector.module
	collector.mu.Lock()
	if _, exists := collector.objects[object.Name]; !exists {
		collector.order = append(collector.order, object.Name)
	}
	collector.objects[object.Name] = object
	collector.mu.Unlock()
	return object
}

func (collector *Collector) Objects() Objects {
	collector.mu.Lock()
	defer collector.mu.Unlock()
	return collector.objects.Clone()
}

// Names lists registered names in registration order.
func (collector *Collector) Names() []string {
	collector.mu.Lock()
	defer collector.mu.Unlock()
	names := make([]string, len(collector.order))
	copy(names, collector.order)
	return names
}
