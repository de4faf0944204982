package config

import (
	"strconv"
	"strings"

	"launchpad/internal/config/tomlkeys"
	"launchpad/internal/errdefs"
)

// ParseOverrides turns `key=value` entries into normalized flat keys.
// Booleans and integers are typed, everything else stays a string.
func ParseOverrides(entries []string) (map[string]any, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	overrides := make(map[string]any)
	for _, entry := range entries {
		trimmed := strings.TrimSpace(entry)
		if trimmed == "" {
			return nil, errdefs.Config("config override cannot be empty")
		}
		parts := strings.SplitN(trimmed, "=", 2)
		if len(parts) != 2 {
			return nil, errdefs.Config("config override must be key=value: %q", entry)
		}
		normalizedKey := tomlkeys.NormalizeKey(parts[0])
		if normalizedKey == "" {
			return nil, errdefs.Config("config override key cannot be empty")
		}
		overrides[normalizedKey] = parseOverrideValue(strings.TrimSpace(parts[1]))
	}
	return overrides, nil
}

// ParseOverridesEnv parses a comma separated override list.
func ParseOverridesEnv(raw string) (map[string]any, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}
	parts := strings.Split(trimmed, ",")
	entries := make([]string, 0, len(parts))
	for _, part := range parts {
		entry := strings.TrimSpace(part)
		if entry == "" {
			return nil, errdefs.Config("config override entry cannot be empty")
		}
		entries = append(entries, entry)
	}
	return ParseOverrides(entries)
}

func parseOverrideValue(value string) any {
	if strings.EqualFold(value, "true") {
		return true
	}
	if strings.EqualFold(value, "false") {
		return false
	}
	if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
		return parsed
	}
	return value
}
