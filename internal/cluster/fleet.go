package cluster

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"go.temporal.io/sdk/client"

	"launchpad/internal/catalog"
	"launchpad/internal/descriptor"
	"launchpad/internal/errdefs"
	"launchpad/internal/logging"
)

// Fleet owns every cluster connection and the catalog snapshot deploy
// requests resolve against.
type Fleet struct {
	options Options
	logger  *logging.Logger
	metrics *fleetMetrics

	mu          sync.RWMutex
	connections map[string]*Connection
	defaultName string

	snapshotMu sync.Mutex
	snapshot   atomic.Pointer[catalog.Snapshot]
}

// Frame is the connection, namespace and client a request runs against.
type Frame struct {
	Connection *Connection
	Namespace  *Namespace
	Client     client.Client
}

// NewFleet connects every spec. The default connection is defaultName when
// set, or the sole connection.
func NewFleet(ctx context.Context, specs []Spec, defaultName string, snapshot catalog.Snapshot, options Options) (*Fleet, error) {
	options = options.withDefaults()
	metrics, err := newFleetMetrics(options.Meter)
	if err != nil {
		return nil, err
	}
	f := &Fleet{
		options:     options,
		logger:      options.Logger.Named("fleet"),
		metrics:     metrics,
		connections: make(map[string]*Connection),
	}
	f.snapshot.Store(&snapshot)

	switch {
	case defaultName != "":
		found := false
		for _, spec := range specs {
			found = found || spec.Name == defaultName
		}
		if !found {
			return nil, errdefs.NotFound("default connection %q", defaultName)
		}
	case len(specs) == 1:
		defaultName = specs[0].Name
	default:
		return nil, errdefs.Config("%d connections declared, a default connection must be set", len(specs))
	}

	for _, spec := range specs {
		if err := f.AddConnection(ctx, spec); err != nil {
			return nil, errors.Join(err, f.Close())
		}
	}
	f.defaultName = defaultName
	return f, nil
}

// AddConnection connects a spec. The default connection is unchanged.
func (f *Fleet) AddConnection(ctx context.Context, spec Spec) error {
	f.mu.RLock()
	_, exists := f.connections[spec.Name]
	f.mu.RUnlock()
	if exists {
		return errdefs.AlreadyExists("connection %q", spec.Name)
	}
	connection, err := NewConnection(ctx, spec, f.options)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.connections[spec.Name]; exists {
		connection.closeClients()
		return errdefs.AlreadyExists("connection %q", spec.Name)
	}
	f.connections[spec.Name] = connection
	f.logger.Info("connection added", map[string]string{
		"connection": spec.Name,
		"address":    connection.Address(),
	})
	return nil
}

// RemoveConnection kills the connection's workers and drops it. The default
// connection cannot be removed.
func (f *Fleet) RemoveConnection(name string) error {
	f.mu.Lock()
	connection, ok := f.connections[name]
	if !ok {
		f.mu.Unlock()
		return errdefs.NotFound("connection %q", name)
	}
	if name == f.defaultName {
		f.mu.Unlock()
		return errdefs.Config("connection %q is the default connection", name)
	}
	delete(f.connections, name)
	f.mu.Unlock()

	f.logger.Info("connection removed", map[string]string{"connection": name})
	return connection.Close()
}

// Connection returns a connection; an empty name is the default.
func (f *Fleet) Connection(name string) (*Connection, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if name == "" {
		name = f.defaultName
	}
	connection, ok := f.connections[name]
	if !ok {
		return nil, errdefs.NotFound("connection %q", name)
	}
	return connection, nil
}

func (f *Fleet) DefaultConnection() *Connection {
	connection, _ := f.Connection("")
	return connection
}

// Connections returns every connection sorted by name.
func (f *Fleet) Connections() []*Connection {
	f.mu.RLock()
	defer f.mu.RUnlock()
	connections := make([]*Connection, 0, len(f.connections))
	for _, connection := range f.connections {
		connections = append(connections, connection)
	}
	sort.Slice(connections, func(i, j int) bool { return connections[i].name < connections[j].name })
	return connections
}

// ResolveFrame picks the connection and namespace (defaults when empty) and
// dials their client.
func (f *Fleet) ResolveFrame(ctx context.Context, connectionName, namespaceName string) (Frame, error) {
	connection, err := f.Connection(connectionName)
	if err != nil {
		return Frame{}, err
	}
	namespace, err := connection.Namespace(namespaceName)
	if err != nil {
		return Frame{}, err
	}
	c, err := connection.Client(ctx, namespace.Name())
	if err != nil {
		return Frame{Connection: connection, Namespace: namespace}, err
	}
	return Frame{Connection: connection, Namespace: namespace, Client: c}, nil
}

// Refresh replaces the snapshot whole.
func (f *Fleet) Refresh(snapshot catalog.Snapshot) {
	f.snapshotMu.Lock()
	defer f.snapshotMu.Unlock()
	f.snapshot.Store(&snapshot)
	f.logger.Debug("snapshot refreshed", map[string]string{
		"tasks":   strconv.Itoa(len(snapshot.Settings.Tasks)),
		"workers": strconv.Itoa(len(snapshot.Settings.Workers)),
	})
}

// RefreshSettings swaps the descriptors and keeps the objects.
func (f *Fleet) RefreshSettings(settings catalog.Settings) {
	f.snapshotMu.Lock()
	defer f.snapshotMu.Unlock()
	next := *f.snapshot.Load()
	next.Settings = settings
	f.snapshot.Store(&next)
}

// RefreshObjects swaps the objects and keeps the descriptors.
func (f *Fleet) RefreshObjects(objects catalog.Catalog) {
	f.snapshotMu.Lock()
	defer f.snapshotMu.Unlock()
	next := *f.snapshot.Load()
	next.Objects = objects
	f.snapshot.Store(&next)
}

func (f *Fleet) Snapshot() catalog.Snapshot {
	return *f.snapshot.Load()
}

// TaskSettings returns a resolved copy of a stored task descriptor.
func (f *Fleet) TaskSettings(name string, overwrite, templateArgs map[string]any) (map[string]any, error) {
	stored, ok := f.Snapshot().Settings.Tasks[name]
	if !ok {
		return nil, errdefs.Settings("task %q not found", name)
	}
	return f.resolve("task", name, stored, overwrite, templateArgs)
}

// WorkerSettings returns a resolved copy of a stored worker descriptor.
func (f *Fleet) WorkerSettings(taskQueue string, overwrite, templateArgs map[string]any) (map[string]any, error) {
	stored, ok := f.Snapshot().Settings.Workers[taskQueue]
	if !ok {
		return nil, errdefs.Settings("worker %q not found", taskQueue)
	}
	return f.resolve("worker", taskQueue, stored, overwrite, templateArgs)
}

func (f *Fleet) resolve(kind, name string, stored, overwrite, templateArgs map[string]any) (map[string]any, error) {
	resolved, ignored, err := descriptor.Resolve(stored, overwrite, templateArgs)
	if err != nil {
		return nil, err
	}
	if len(ignored) > 0 {
		f.logger.Warn("overwrite ignored, field not overwritable", map[string]string{
			kind:     name,
			"fields": strings.Join(ignored, ","),
		})
	}
	return resolved, nil
}

// WorkerMatch locates one running worker.
type WorkerMatch struct {
	Connection *Connection
	Namespace  *Namespace
}

// FindWorkers returns the running workers on taskQueue, optionally narrowed
// to one connection and namespace.
func (f *Fleet) FindWorkers(taskQueue, connectionName, namespaceName string) []WorkerMatch {
	var matches []WorkerMatch
	for _, connection := range f.Connections() {
		if connectionName != "" && connection.Name() != connectionName {
			continue
		}
		for _, namespace := range connection.Namespaces() {
			if namespaceName != "" && namespace.Name() != namespaceName {
				continue
			}
			if namespace.Running(taskQueue) {
				matches = append(matches, WorkerMatch{Connection: connection, Namespace: namespace})
			}
		}
	}
	return matches
}

func (f *Fleet) findWorker(taskQueue, connectionName, namespaceName string) (WorkerMatch, error) {
	matches := f.FindWorkers(taskQueue, connectionName, namespaceName)
	switch len(matches) {
	case 0:
		return WorkerMatch{}, errdefs.NotRunning("no worker on task queue %q", taskQueue)
	case 1:
		return matches[0], nil
	default:
		return WorkerMatch{}, errdefs.AmbiguousTarget("%d workers on task queue %q, set a connection and a namespace", len(matches), taskQueue)
	}
}

type FleetInfo struct {
	Default     string                    `json:"default"`
	Connections map[string]ConnectionInfo `json:"connections"`
}

func (f *Fleet) Info() FleetInfo {
	connections := f.Connections()
	info := FleetInfo{Connections: make(map[string]ConnectionInfo, len(connections))}
	for _, connection := range connections {
		info.Connections[connection.Name()] = connection.Info()
	}
	f.mu.RLock()
	info.Default = f.defaultName
	f.mu.RUnlock()
	return info
}

// Close kills every worker of every connection.
func (f *Fleet) Close() error {
	f.mu.Lock()
	connections := f.connections
	f.connections = make(map[string]*Connection)
	f.mu.Unlock()

	var errs []error
	for _, connection := range connections {
		if err := connection.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
