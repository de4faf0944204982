package descriptor

import (
	"github.com/invopop/jsonschema"

	internalschema "launchpad/internal/schema"
)

const (
	SchemaTask   = "task"
	SchemaWorker = "worker"
)

func init() {
	_ = internalschema.Register(SchemaTask, func() *jsonschema.Schema { return generateSchema(Task{}) })
	_ = internalschema.Register(SchemaWorker, func() *jsonschema.Schema { return generateSchema(Worker{}) })
}

func generateSchema(value any) *jsonschema.Schema {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		ExpandedStruct:            true,
	}
	s := reflector.Reflect(value)
	if s.Version == "" {
		s.Version = jsonschema.Version
	}
	return s
}

// Validate checks a raw descriptor payload against the named schema.
// Templated descriptors are checked only once rendered.
func Validate(name string, payload map[string]any) error {
	if Bool(payload, "template") {
		return nil
	}
	s, err := internalschema.Resolve(name)
	if err != nil {
		return err
	}
	return internalschema.ValidateObject(s, payload)
}
