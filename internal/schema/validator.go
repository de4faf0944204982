package schema

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/invopop/jsonschema"

	"launchpad/internal/errdefs"
)

// Problem is one payload value a schema rejected.
type Problem struct {
	Path    string
	Message string
}

func (p Problem) String() string {
	if p.Path == "" {
		return p.Message
	}
	return p.Path + ": " + p.Message
}

// ValidationError lists every problem found in a payload, in path order.
// It matches errdefs.ErrConfig.
type ValidationError struct {
	Problems []Problem
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Problems))
	for i, problem := range e.Problems {
		parts[i] = problem.String()
	}
	return "invalid descriptor: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return errdefs.ErrConfig }

// ValidateObject checks a decoded mapping against s.
func ValidateObject(s *jsonschema.Schema, object map[string]any) error {
	return ValidateValue(s, object)
}

// ValidateValue checks any decoded value against s. A nil schema accepts
// everything.
func ValidateValue(s *jsonschema.Schema, value any) error {
	if s == nil {
		return nil
	}
	var c checker
	c.check(s, value, "")
	if len(c.problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: c.problems}
}

type checker struct {
	problems []Problem
}

func (c *checker) report(path, format string, args ...any) {
	c.problems = append(c.problems, Problem{Path: path, Message: fmt.Sprintf(format, args...)})
}

// matches runs s in a scratch checker so alternatives do not leak problems.
func matches(s *jsonschema.Schema, value any) bool {
	var scratch checker
	scratch.check(s, value, "")
	return len(scratch.problems) == 0
}

func (c *checker) check(s *jsonschema.Schema, value any, path string) {
	if s == nil {
		return
	}
	if value == nil {
		if !nullable(s) {
			c.report(path, "expected %s, got null", describe(s))
		}
		return
	}
	if len(s.AnyOf) > 0 {
		for _, option := range s.AnyOf {
			if matches(option, value) {
				return
			}
		}
		c.report(path, "expected %s, got %s", describe(s), render(value))
		return
	}
	if len(s.OneOf) > 0 {
		count := 0
		for _, option := range s.OneOf {
			if matches(option, value) {
				count++
			}
		}
		if count != 1 {
			c.report(path, "expected exactly one of %s, got %s", describe(s), render(value))
		}
		return
	}

	kind := typeOf(s)
	if kind != "" && !hasKind(value, kind) {
		c.report(path, "expected %s, got %s", kind, render(value))
		return
	}
	switch kind {
	case "object":
		object, _ := toMap(value)
		c.checkObject(s, object, path)
	case "array":
		items, _ := toSlice(value)
		for i, item := range items {
			c.check(s.Items, item, fmt.Sprintf("%s[%d]", path, i))
		}
	}
	if len(s.Enum) > 0 && !inEnum(s.Enum, value) {
		c.report(path, "%s is not one of %s", render(value), render(s.Enum))
	}
}

func (c *checker) checkObject(s *jsonschema.Schema, object map[string]any, path string) {
	for _, name := range s.Required {
		if _, ok := object[name]; !ok {
			c.report(fieldPath(path, name), "missing required field")
		}
	}
	keys := make([]string, 0, len(object))
	for key := range object {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		value := object[key]
		if s.Properties != nil {
			if property, ok := s.Properties.Get(key); ok {
				c.check(property, value, fieldPath(path, key))
				continue
			}
		}
		switch {
		case s.AdditionalProperties == nil:
		case s.AdditionalProperties == jsonschema.FalseSchema || isFalse(s.AdditionalProperties):
			c.report(fieldPath(path, key), "unknown field")
		default:
			c.check(s.AdditionalProperties, value, fieldPath(path, key))
		}
	}
}

func typeOf(s *jsonschema.Schema) string {
	switch {
	case s == nil:
		return ""
	case s.Type != "":
		return s.Type
	case s.Properties != nil:
		return "object"
	case s.Items != nil:
		return "array"
	}
	return ""
}

func nullable(s *jsonschema.Schema) bool {
	if s.Type == "null" {
		return true
	}
	for _, option := range alternatives(s) {
		if typeOf(option) == "null" {
			return true
		}
	}
	return false
}

func alternatives(s *jsonschema.Schema) []*jsonschema.Schema {
	return append(append([]*jsonschema.Schema(nil), s.AnyOf...), s.OneOf...)
}

func describe(s *jsonschema.Schema) string {
	if kind := typeOf(s); kind != "" {
		return kind
	}
	var kinds []string
	for _, option := range alternatives(s) {
		if kind := typeOf(option); kind != "" {
			kinds = append(kinds, kind)
		}
	}
	if len(kinds) == 0 {
		return "any value"
	}
	return strings.Join(kinds, " or ")
}

func hasKind(value any, kind string) bool {
	switch kind {
	case "object":
		_, ok := toMap(value)
		return ok
	case "array":
		_, ok := toSlice(value)
		return ok
	case "string":
		_, ok := value.(string)
		return ok
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "integer":
		return integral(value)
	case "number":
		return numeric(value)
	case "null":
		return false
	}
	return true
}

func inEnum(enum []any, value any) bool {
	for _, candidate := range enum {
		if reflect.DeepEqual(candidate, value) {
			return true
		}
	}
	return false
}

func toMap(value any) (map[string]any, bool) {
	if typed, ok := value.(map[string]any); ok {
		return typed, true
	}
	reflected := reflect.ValueOf(value)
	if reflected.Kind() != reflect.Map || reflected.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	converted := make(map[string]any, reflected.Len())
	for iter := reflected.MapRange(); iter.Next(); {
		converted[iter.Key().String()] = iter.Value().Interface()
	}
	return converted, true
}

func toSlice(value any) ([]any, bool) {
	if typed, ok := value.([]any); ok {
		return typed, true
	}
	reflected := reflect.ValueOf(value)
	if kind := reflected.Kind(); kind != reflect.Slice && kind != reflect.Array {
		return nil, false
	}
	converted := make([]any, reflected.Len())
	for i := range converted {
		converted[i] = reflected.Index(i).Interface()
	}
	return converted, true
}

func integral(value any) bool {
	switch typed := value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case float64:
		return typed == float64(int64(typed))
	case float32:
		return typed == float32(int64(typed))
	case json.Number:
		_, err := typed.Int64()
		return err == nil
	}
	return false
}

func numeric(value any) bool {
	switch value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64, json.Number:
		return true
	}
	return false
}

func fieldPath(base, field string) string {
	if base == "" {
		return field
	}
	return base + "." + field
}

// isFalse recognizes a `false` schema decoded from JSON.
func isFalse(s *jsonschema.Schema) bool {
	encoded, err := json.Marshal(s)
	return err == nil && string(encoded) == "false"
}

// render prints value as compact JSON, truncated for log lines.
func render(value any) string {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}
	const limit = 120
	if len(encoded) > limit {
		return string(encoded[:limit-3]) + "..."
	}
	return string(encoded)
}
