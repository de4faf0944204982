// Package tomlkeys decodes TOML documents into tables whose keys are
// lowercased and dash separated, and flattens them into dotted settings.
package tomlkeys

import (
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// Values are flattened settings keyed by normalized dotted path, for example
// "watcher.polling-interval".
type Values map[string]any

// Decode parses data and normalizes every table key.
func Decode(data []byte) (map[string]any, error) {
	table := map[string]any{}
	if _, err := toml.Decode(string(data), &table); err != nil {
		return nil, err
	}
	return Normalize(table), nil
}

// Normalize rewrites table keys recursively with NormalizeKey. Tables inside
// arrays (such as [[temporal.servers]]) keep their keys as written.
func Normalize(table map[string]any) map[string]any {
	normalized := make(map[string]any, len(table))
	for _, key := range sortedKeys(table) {
		value := table[key]
		if nested, ok := value.(map[string]any); ok {
			value = Normalize(nested)
		}
		name := NormalizeKey(key)
		if _, taken := normalized[name]; !taken {
			normalized[name] = value
		}
	}
	return normalized
}

// Flatten joins nested table keys with dots. When two spellings collide the
// one sorting first wins.
func Flatten(table map[string]any) Values {
	values := Values{}
	flatten("", table, values)
	return values
}

func flatten(prefix string, table map[string]any, into Values) {
	for _, key := range sortedKeys(table) {
		path := NormalizeKey(key)
		if prefix != "" {
			path = prefix + "." + path
		}
		if nested, ok := table[key].(map[string]any); ok {
			flatten(path, nested, into)
			continue
		}
		if _, taken := into[path]; !taken {
			into[path] = table[key]
		}
	}
}

// NormalizeKey lowercases every segment and maps "_" to "-", so
// polling_interval and Polling-Interval address the same setting.
func NormalizeKey(key string) string {
	parts := strings.Split(strings.TrimSpace(key), ".")
	for i, part := range parts {
		parts[i] = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(part)), "_", "-")
	}
	return strings.Join(parts, ".")
}

// String returns the trimmed string at key, or fallback when the key is
// missing or not a string.
func (v Values) String(key, fallback string) string {
	if text, ok := v[NormalizeKey(key)].(string); ok {
		return strings.TrimSpace(text)
	}
	return fallback
}

// Bool also accepts the strings true/false, yes/no and 1/0, which is what
// --set and environment overrides produce.
func (v Values) Bool(key string, fallback bool) bool {
	switch typed := v[NormalizeKey(key)].(type) {
	case bool:
		return typed
	case string:
		switch strings.ToLower(strings.TrimSpace(typed)) {
		case "true", "yes", "1":
			return true
		case "false", "no", "0":
			return false
		}
	}
	return fallback
}

func (v Values) Int(key string, fallback int64) int64 {
	switch typed := v[NormalizeKey(key)].(type) {
	case int64:
		return typed
	case int:
		return int64(typed)
	case int32:
		return int64(typed)
	case uint64:
		return int64(typed)
	case float64:
		return int64(typed)
	}
	return fallback
}

// Strings accepts a single string or an array. Empty and non-string entries
// are dropped.
func (v Values) Strings(key string) []string {
	switch typed := v[NormalizeKey(key)].(type) {
	case string:
		if typed == "" {
			return nil
		}
		return []string{typed}
	case []string:
		return typed
	case []any:
		out := make([]string, 0, len(typed))
		for _, entry := range typed {
			if text, ok := entry.(string); ok && text != "" {
				out = append(out, text)
			}
		}
		return out
	}
	return nil
}

func sortedKeys(table map[string]any) []string {
	keys := make([]string, 0, len(table))
	for key := range table {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
