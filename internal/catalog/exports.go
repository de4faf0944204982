package catalog

import (
	"reflect"

	"github.com/traefik/yaegi/interp"
)

// ImportPath is the path interpreted modules import the catalog API from.
const ImportPath = "launchpad/catalog"

// Exports builds the interpreter symbols for one module evaluation. The
// registration functions write into collector and Lookup reads from symbols.
func Exports(collector *Collector, symbols *SymbolTable) interp.Exports {
	return interp.Exports{
		ImportPath + "/catalog": {
			"Activity": reflect.ValueOf(collector.Activity),
			"Workflow": reflect.ValueOf(collector.Workflow),
			"Lookup":   reflect.ValueOf(symbols.Lookup),

			"KindActivity":    reflect.ValueOf(KindActivity),
			"KindWorkflow":    reflect.ValueOf(KindWorkflow),
			"KindRunner":      reflect.ValueOf(KindRunner),
			"KindWorkerClass": reflect.ValueOf(KindWorkerClass),

			"ActivityFunc":    reflect.ValueOf((*ActivityFunc)(nil)),
			"ActivityOptions": reflect.ValueOf((*ActivityOptions)(nil)),
			"Kind":            reflect.ValueOf((*Kind)(nil)),
			"Object":          reflect.ValueOf((*Object)(nil)),
			"WorkflowContext": reflect.ValueOf((*WorkflowContext)(nil)),
			"WorkflowFunc":    reflect.ValueOf((*WorkflowFunc)(nil)),
			"WorkflowInfo":    reflect.ValueOf((*WorkflowInfo)(nil)),
		},
	}
}
