package catalog

import (
	"context"
	"fmt"
	"sort"
)

type Kind string

const (
	KindActivity    Kind = "activity"
	KindWorkflow    Kind = "workflow"
	KindRunner      Kind = "runner"
	KindWorkerClass Kind = "worker_class"
)

// ActivityFunc is the signature of activities declared by code modules.
type ActivityFunc func(ctx context.Context, input map[string]any) (any, error)

// WorkflowFunc is the signature of workflows declared by code modules.
type WorkflowFunc func(ctx WorkflowContext, input map[string]any) (any, error)

// Object is a named value tagged with a single capability.
type Object struct {
	Name   string
	Kind   Kind
	Value  any
	Module string
}

func Activity(name string, fn ActivityFunc) Object {
	return Object{Name: name, Kind: KindActivity, Value: fn}
}

func Workflow(name string, fn WorkflowFunc) Object {
	return Object{Name: name, Kind: KindWorkflow, Value: fn}
}

func Runner(name string, runner any) Object {
	return Object{Name: name, Kind: KindRunner, Value: runner}
}

func WorkerClass(name string, class any) Object {
	return Object{Name: name, Kind: KindWorkerClass, Value: class}
}

func (o Object) IsActivity() bool    { return o.Kind == KindActivity && o.Value != nil }
func (o Object) IsWorkflow() bool    { return o.Kind == KindWorkflow && o.Value != nil }
func (o Object) IsRunner() bool      { return o.Kind == KindRunner && o.Value != nil }
func (o Object) IsWorkerClass() bool { return o.Kind == KindWorkerClass && o.Value != nil }

func (o Object) Is(kind Kind) bool {
	return o.Kind == kind && o.Value != nil
}

// ActivityFunc returns the activity body or an error when the object is not an activity.
func (o Object) ActivityFunc() (ActivityFunc, error) {
	if !o.IsActivity() {
		return nil, fmt.Errorf("%s is a %s, not an activity", o.Name, o.Kind)
	}
	fn, ok := o.Value.(ActivityFunc)
	if !ok {
		return nil, fmt.Errorf("activity %s has unexpected type %T", o.Name, o.Value)
	}
	return fn, nil
}

// WorkflowFunc returns the workflow body or an error when the object is not a workflow.
func (o Object) WorkflowFunc() (WorkflowFunc, error) {
	if !o.IsWorkflow() {
		return nil, fmt.Errorf("%s is a %s, not a workflow", o.Name, o.Kind)
	}
	fn, ok := o.Value.(WorkflowFunc)
	if !ok {
		return nil, fmt.Errorf("workflow %s has unexpected type %T", o.Name, o.Value)
	}
	return fn, nil
}

// Call runs an activity object directly, outside of any worker.
func (o Object) Call(ctx context.Context, input map[string]any) (any, error) {
	fn, err := o.ActivityFunc()
	if err != nil {
		return nil, err
	}
	return fn(ctx, input)
}

// Objects is a name-keyed set of capability objects.
type Objects map[string]Object

// Filter keeps the objects tagged with kind.
func (objects Objects) Filter(kind Kind) Objects {
	filtered := make(Objects)
	for name, object := range objects {
		if object.Is(kind) {
			filtered[name] = object
		}
	}
	return filtered
}

// Merge returns a new set; entries from later sets replace earlier ones.
func Merge(sets ...Objects) Objects {
	merged := make(Objects)
	for _, set := range sets {
		for name, object := range set {
			merged[name] = object
		}
	}
	return merged
}

func (objects Objects) Clone() Objects {
	return Merge(objects)
}

func (objects Objects) Names() []string {
	names := make([]string, 0, len(objects))
	for name := range objects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve looks up every name and reports the ones that are missing.
func (objects Objects) Resolve(names []string) ([]Object, []string) {
	resolved := make([]Object, 0, len(names))
	var missing []string
	for _, name := range names {
		object, ok := objects[name]
		if !ok || object.Value == nil {
			missing = append(missing, name)
			continue
		}
		resolved = append(resolved, object)
	}
	return resolved, missing
}
