package catalog

import (
	"context"
	"testing"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

const interpretedModule = `package samples

import (
	"context"
	"strings"

	"launchpad/catalog"
)

func init() {
	catalog.Activity("shout", func(ctx context.Context, input map[string]any) (any, error) {
		text, _ := input["text"].(string)
		return strings.ToUpper(text), nil
	})
	catalog.Activity("relay", func(ctx context.Context, input map[string]any) (any, error) {
		target, ok := catalog.Lookup("shout")
		if !ok {
			return nil, nil
		}
		return target.Call(ctx, input)
	})
}
`

func TestExportsRegisterInterpretedActivities(t *testing.T) {
	collector := NewCollector("samples")
	table := NewSymbolTable()

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		t.Fatalf("use stdlib: %v", err)
	}
	if err := i.Use(Exports(collector, table)); err != nil {
		t.Fatalf("use catalog: %v", err)
	}
	if _, err := i.Eval(interpretedModule); err != nil {
		t.Fatalf("eval: %v", err)
	}

	objects := collector.Objects()
	if len(objects.Filter(KindActivity)) != 2 {
		t.Fatalf("expected two activities, got %v", objects.Names())
	}
	result, err := objects["shout"].Call(context.Background(), map[string]any{"text": "hi"})
	if err != nil || result != "HI" {
		t.Fatalf("unexpected shout result %v, %v", result, err)
	}

	table.Inject(objects)
	relayed, err := objects["relay"].Call(context.Background(), map[string]any{"text": "ok"})
	if err != nil || relayed != "OK" {
		t.Fatalf("unexpected relay result %v, %v", relayed, err)
	}
}
