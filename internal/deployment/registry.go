package deployment

import (
	"errors"
	"path/filepath"
	"sort"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"launchpad/internal/catalog"
	"launchpad/internal/descriptor"
	"launchpad/internal/logging"
	internalotel "launchpad/internal/otel"
	"launchpad/internal/registry"
)

const (
	GroupActivities      = "activities"
	GroupWorkflows       = "workflows"
	GroupRunners         = "runners"
	GroupWorkers         = "workers"
	GroupRoutes          = "routes"
	GroupDeployments     = "deployments"
	GroupWorkersSettings = "workers_settings"
	GroupConfigs         = "configs"
)

const (
	DefaultPollingInterval = 600 * time.Second
	DefaultTriggerInterval = time.Second
)

// Groups lists every group a deployment registry owns.
var Groups = []string{
	GroupActivities,
	GroupWorkflows,
	GroupRunners,
	GroupWorkers,
	GroupRoutes,
	GroupDeployments,
	GroupWorkersSettings,
	GroupConfigs,
}

// CodeGroups are the groups whose code members are reloaded and extracted.
var CodeGroups = []string{
	GroupActivities,
	GroupWorkflows,
	GroupRunners,
	GroupWorkers,
	GroupRoutes,
}

// refreshGroups are the groups a refresh consumes.
var refreshGroups = append(append([]string{}, CodeGroups...), GroupDeployments, GroupWorkersSettings)

// injectGroups receive the merged catalog after every reload.
var injectGroups = []string{
	GroupWorkflows,
	GroupRunners,
	GroupWorkers,
	GroupRoutes,
}

// GroupPaths are the caller supplied base and skip paths of one group.
type GroupPaths struct {
	BasePaths []string `json:"base_paths" toml:"base_paths"`
	Skips     []string `json:"skips" toml:"skips"`
}

type Options struct {
	// Root is the project root. Built-in group paths are Root/<group>.
	Root   string
	Groups map[string]GroupPaths
	// Builtins are compiled objects seeded per group, on top of the
	// built-in Task workflow.
	Builtins                map[string]catalog.Objects
	PollingInterval         time.Duration
	DisableAutomaticRefresh bool
	// TriggerInterval is the minimum spacing of triggered visits.
	TriggerInterval time.Duration
	Meter           metric.Meter
	Logger          *logging.Logger
}

// Target receives refreshed snapshots.
type Target interface {
	Refresh(snapshot catalog.Snapshot)
}

// Registry is the module registry with the fixed deployment groups, a poll
// loop and the refresh cycle that feeds the fleet.
type Registry struct {
	modules          *registry.Registry
	logger           *logging.Logger
	metrics          *registryMetrics
	pollingInterval  atomic.Int64
	automaticRefresh atomic.Bool
	trigger          chan struct{}
	rearm            chan struct{}
	limiter          *rate.Limiter
	refreshes        singleflight.Group
}

// New builds the registry, visits every group and loads all code modules.
// Modules that fail to load stay dirty and are retried on the next refresh.
func New(options Options) (*Registry, error) {
	logger := options.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	logger = logger.Named("deployment")

	meter := options.Meter
	if meter == nil {
		meter = internalotel.Meter("launchpad/deployment")
	}
	metrics, err := newRegistryMetrics(meter)
	if err != nil {
		return nil, err
	}

	root := options.Root
	if root == "" {
		root = "."
	}
	if absolute, err := filepath.Abs(root); err == nil {
		root = absolute
	}

	triggerInterval := options.TriggerInterval
	if triggerInterval <= 0 {
		triggerInterval = DefaultTriggerInterval
	}
	r := &Registry{
		modules: registry.New(root, logger),
		logger:  logger,
		metrics: metrics,
		trigger: make(chan struct{}, 1),
		rearm:   make(chan struct{}, 1),
		limiter: rate.NewLimiter(rate.Every(triggerInterval), 1),
	}
	pollingInterval := options.PollingInterval
	if pollingInterval <= 0 {
		pollingInterval = DefaultPollingInterval
	}
	r.pollingInterval.Store(int64(pollingInterval))
	r.automaticRefresh.Store(!options.DisableAutomaticRefresh)

	for name, paths := range mergeGroupPaths(root, options.Groups) {
		if _, err := r.modules.AddGroup(name, paths.BasePaths, paths.Skips); err != nil {
			return nil, err
		}
	}

	builtins := map[string]catalog.Objects{GroupWorkflows: catalog.Builtins()}
	for name, objects := range options.Builtins {
		builtins[name] = catalog.Merge(builtins[name], objects)
	}
	for name, objects := range builtins {
		if err := r.modules.AddBuiltins(name, objects); err != nil {
			return nil, err
		}
	}

	if _, err := r.modules.Visit(); err != nil {
		return nil, err
	}
	if _, err := r.modules.Load(CodeGroups...); err != nil {
		r.logger.Error("initial module load failed", map[string]string{"error": err.Error()})
	}
	objects, err := r.modules.ExtractObjects(CodeGroups...)
	if err != nil {
		return nil, err
	}
	if err := r.modules.Inject(objects, injectGroups...); err != nil {
		return nil, err
	}
	return r, nil
}

// mergeGroupPaths adds Root/<group> to every built-in group and appends the
// caller's paths. Groups outside the built-in set are created as given.
func mergeGroupPaths(root string, extra map[string]GroupPaths) map[string]GroupPaths {
	merged := make(map[string]GroupPaths, len(Groups)+len(extra))
	for _, name := range Groups {
		merged[name] = GroupPaths{BasePaths: []string{filepath.Join(root, name)}}
	}
	for name, paths := range extra {
		current := merged[name]
		current.BasePaths = append(current.BasePaths, absolutePaths(root, paths.BasePaths)...)
		current.Skips = append(current.Skips, absolutePaths(root, paths.Skips)...)
		merged[name] = current
	}
	return merged
}

func absolutePaths(root string, paths []string) []string {
	resolved := make([]string, 0, len(paths))
	for _, path := range paths {
		if !filepath.IsAbs(path) {
			path = filepath.Join(root, path)
		}
		resolved = append(resolved, path)
	}
	return resolved
}

// Modules exposes the underlying module registry.
func (r *Registry) Modules() *registry.Registry { return r.modules }

func (r *Registry) Root() string { return r.modules.Root() }

func (r *Registry) objects(kind catalog.Kind) catalog.Objects {
	objects, err := r.modules.ExtractObjects(CodeGroups...)
	if err != nil {
		r.logger.Warn("extract objects failed", map[string]string{"error": err.Error()})
		return catalog.Objects{}
	}
	return objects.Filter(kind)
}

func (r *Registry) Activities() catalog.Objects { return r.objects(catalog.KindActivity) }

func (r *Registry) Workflows() catalog.Objects { return r.objects(catalog.KindWorkflow) }

func (r *Registry) Runners() catalog.Objects { return r.objects(catalog.KindRunner) }

func (r *Registry) WorkerClasses() catalog.Objects { return r.objects(catalog.KindWorkerClass) }

// Catalog returns every extracted object split by capability.
func (r *Registry) Catalog() (catalog.Catalog, error) {
	objects, err := r.modules.ExtractObjects(CodeGroups...)
	if err != nil {
		return catalog.Catalog{}, err
	}
	return catalog.NewCatalog(objects), nil
}

// TasksSettings returns task descriptors keyed by name. Files that fail to
// parse are logged and left out.
func (r *Registry) TasksSettings() map[string]map[string]any {
	settings, _ := r.tasksSettings()
	return settings
}

// WorkersSettings returns worker descriptors keyed by worker.task_queue.
func (r *Registry) WorkersSettings() map[string]map[string]any {
	settings, _ := r.workersSettings()
	return settings
}

func (r *Registry) tasksSettings() (map[string]map[string]any, error) {
	return r.keyedSettings(GroupDeployments, descriptor.SchemaTask, func(payload map[string]any) string {
		return descriptor.String(payload, "name")
	}, "name")
}

func (r *Registry) workersSettings() (map[string]map[string]any, error) {
	return r.keyedSettings(GroupWorkersSettings, descriptor.SchemaWorker, func(payload map[string]any) string {
		worker, _ := descriptor.Map(payload, "worker")
		return descriptor.String(worker, "task_queue")
	}, "worker.task_queue")
}

// keyedSettings keys the group's payloads by field. Descriptors without the
// key or failing their schema are skipped with a warning; parse failures
// are returned so a refresh can abort.
func (r *Registry) keyedSettings(group, schemaName string, key func(map[string]any) string, field string) (map[string]map[string]any, error) {
	payloads, parseErr := r.modules.Payloads(group)
	if parseErr != nil {
		r.logger.Warn("descriptor parse failed", map[string]string{
			"group": group,
			"error": parseErr.Error(),
		})
	}
	settings := map[string]map[string]any{}
	paths := make([]string, 0, len(payloads))
	for path := range payloads {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	for _, path := range paths {
		payload := payloads[path]
		name := key(payload)
		if name == "" {
			r.logger.Warn("descriptor skipped, missing key field", map[string]string{
				"path":  path,
				"field": field,
			})
			continue
		}
		if err := descriptor.Validate(schemaName, payload); err != nil {
			r.logger.Warn("descriptor skipped, invalid", map[string]string{
				"path":  path,
				"error": err.Error(),
			})
			continue
		}
		if _, ok := settings[name]; ok {
			r.logger.Warn("duplicate descriptor, keeping the latest", map[string]string{
				"path": path,
				"key":  name,
			})
		}
		settings[name] = payload
	}
	return settings, parseErr
}

// Settings captures tasks and workers together. The error joins descriptor
// parse failures; the returned settings hold what did parse.
func (r *Registry) Settings() (catalog.Settings, error) {
	tasks, tasksErr := r.tasksSettings()
	workers, workersErr := r.workersSettings()
	return catalog.Settings{Tasks: tasks, Workers: workers}, errors.Join(tasksErr, workersErr)
}

// Configs returns the payloads of the configs group keyed by path.
func (r *Registry) Configs() (map[string]map[string]any, error) {
	return r.modules.Payloads(GroupConfigs)
}

// Servers collects the `servers` lists declared in the configs group, in
// path order.
func (r *Registry) Servers() ([]map[string]any, error) {
	configs, err := r.Configs()
	paths := make([]string, 0, len(configs))
	for path := range configs {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	var servers []map[string]any
	for _, path := range paths {
		entries, _ := configs[path]["servers"].([]any)
		for _, entry := range entries {
			server, ok := entry.(map[string]any)
			if !ok {
				r.logger.Warn("server entry skipped, not a mapping", map[string]string{"path": path})
				continue
			}
			servers = append(servers, server)
		}
	}
	return servers, err
}

// Info returns the per-group view used by the visit report.
func (r *Registry) Info() ([]registry.GroupInfo, error) {
	return r.modules.Info()
}

func (r *Registry) PollingInterval() time.Duration {
	return time.Duration(r.pollingInterval.Load())
}

// SetPollingInterval changes the poll period. A running Poll loop re-arms its
// timer without restarting.
func (r *Registry) SetPollingInterval(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultPollingInterval
	}
	r.pollingInterval.Store(int64(interval))
	select {
	case r.rearm <- struct{}{}:
	default:
	}
}

func (r *Registry) AutomaticRefresh() bool { return r.automaticRefresh.Load() }

func (r *Registry) SetAutomaticRefresh(enabled bool) { r.automaticRefresh.Store(enabled) }
