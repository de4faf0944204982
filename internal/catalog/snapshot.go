package catalog

// Settings holds the resolved task and worker descriptors. Tasks are keyed by
// task name, workers by task queue.
type Settings struct {
	Tasks   map[string]map[string]any
	Workers map[string]map[string]any
}

// Catalog groups the extracted objects by capability.
type Catalog struct {
	Activities    Objects
	Workflows     Objects
	Runners       Objects
	WorkerClasses Objects
}

// NewCatalog splits a merged object set by capability.
func NewCatalog(objects Objects) Catalog {
	return Catalog{
		Activities:    objects.Filter(KindActivity),
		Workflows:     objects.Filter(KindWorkflow),
		Runners:       objects.Filter(KindRunner),
		WorkerClasses: objects.Filter(KindWorkerClass),
	}
}

// All merges every capability back into one set.
func (c Catalog) All() Objects {
	return Merge(c.Activities, c.Workflows, c.Runners, c.WorkerClasses)
}

// Snapshot is the unit the deployment registry hands to the fleet. It is
// replaced whole, never mutated.
type Snapshot struct {
	Settings Settings
	Objects  Catalog
}

// Empty reports whether the snapshot carries neither settings nor objects.
func (s Snapshot) Empty() bool {
	return len(s.Settings.Tasks) == 0 && len(s.Settings.Workers) == 0 &&
		len(s.Objects.All()) == 0
}
