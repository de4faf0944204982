// Package schema keeps the JSON schemas descriptors are checked against and
// a small validator for decoded YAML payloads.
package schema

import (
	"sort"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"

	"launchpad/internal/errdefs"
)

// Provider builds the schema registered under a name.
type Provider func() *jsonschema.Schema

type entry struct {
	provider Provider
	built    *jsonschema.Schema
}

var (
	mu      sync.Mutex
	entries = map[string]*entry{}
)

// Register installs provider under name, replacing any earlier provider and
// its built schema. Names are case insensitive.
func Register(name string, provider Provider) error {
	key := canonical(name)
	if key == "" {
		return errdefs.Config("schema name is required")
	}
	if provider == nil {
		return errdefs.Config("schema %q needs a provider", key)
	}
	mu.Lock()
	entries[key] = &entry{provider: provider}
	mu.Unlock()
	return nil
}

// Resolve returns the schema registered under name. The provider runs once;
// later calls share the built schema.
func Resolve(name string) (*jsonschema.Schema, error) {
	key := canonical(name)
	mu.Lock()
	defer mu.Unlock()
	registered, ok := entries[key]
	if !ok {
		return nil, errdefs.NotFound("unknown schema %q, known schemas: %s", name, strings.Join(namesLocked(), ", "))
	}
	if registered.built == nil {
		registered.built = registered.provider()
	}
	return registered.built, nil
}

// Names lists the registered schema names, sorted.
func Names() []string {
	mu.Lock()
	defer mu.Unlock()
	return namesLocked()
}

// Reset drops every built schema so the next Resolve rebuilds it.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	for _, registered := range entries {
		registered.built = nil
	}
}

func namesLocked() []string {
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func canonical(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
