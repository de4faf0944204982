package descriptor

import (
	"bytes"
	"sort"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"gopkg.in/yaml.v3"

	"launchpad/internal/errdefs"
)

// Render executes every string value of payload as a text/template with the
// sprig function set and args as data. A value that was a single template
// action is re-read as a YAML scalar so `max_workers: "{{ .count }}"` renders
// to an integer.
func Render(payload map[string]any, args map[string]any) (map[string]any, error) {
	rendered, err := renderValue(Clone(payload), args, "")
	if err != nil {
		return nil, err
	}
	result, _ := rendered.(map[string]any)
	return result, nil
}

func renderValue(value any, args map[string]any, path string) (any, error) {
	switch typed := value.(type) {
	case map[string]any:
		for _, key := range sortedKeys(typed) {
			entry, err := renderValue(typed[key], args, joinPath(path, key))
			if err != nil {
				return nil, err
			}
			typed[key] = entry
		}
		return typed, nil
	case []any:
		for index, entry := range typed {
			rendered, err := renderValue(entry, args, path)
			if err != nil {
				return nil, err
			}
			typed[index] = rendered
		}
		return typed, nil
	case string:
		return renderString(typed, args, path)
	default:
		return value, nil
	}
}

func renderString(text string, args map[string]any, path string) (any, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}
	tmpl, err := template.New(path).Funcs(sprig.TxtFuncMap()).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, errdefs.Config("template %s: %v", path, err)
	}
	var out bytes.Buffer
	if err := tmpl.Execute(&out, args); err != nil {
		return nil, errdefs.Config("template %s: %v", path, err)
	}
	rendered := out.String()
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "{{") && strings.HasSuffix(trimmed, "}}") && strings.Count(trimmed, "{{") == 1 {
		var scalar any
		if err := yaml.Unmarshal([]byte(rendered), &scalar); err == nil {
			switch scalar.(type) {
			case map[string]any, []any, nil:
			default:
				return scalar, nil
			}
		}
	}
	return rendered, nil
}

// Resolve applies request-time templating then overwrites, each gated by the
// descriptor's own `template` and `overwritable` flags.
func Resolve(payload map[string]any, overwrite map[string]any, args map[string]any) (map[string]any, []string, error) {
	resolved := Clone(payload)
	if Bool(resolved, "template") && len(args) > 0 {
		rendered, err := Render(resolved, args)
		if err != nil {
			return nil, nil, err
		}
		resolved = rendered
	}
	if len(overwrite) == 0 {
		return resolved, nil, nil
	}
	updated, ignored := Overwrite(resolved, overwrite)
	return updated, ignored, nil
}

func sortedKeys[V any](values map[string]V) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func joinPath(base, field string) string {
	if base == "" {
		return field
	}
	return base + "." + field
}
