package descriptor

import "strings"

const overwritableKey = "overwritable"

// Overwrite applies dotted-path replacements to a copy of payload. A path is
// applied only when the descriptor itself or one of the objects enclosing the
// target field sets `overwritable: true`; the other paths are returned as
// ignored and leave the copy untouched.
func Overwrite(payload map[string]any, overwrite map[string]any) (map[string]any, []string) {
	updated := Clone(payload)
	if updated == nil {
		updated = map[string]any{}
	}
	var ignored []string
	for _, path := range sortedKeys(overwrite) {
		if !setPath(updated, strings.Split(path, "."), cloneValue(overwrite[path])) {
			ignored = append(ignored, path)
		}
	}
	return updated, ignored
}

func setPath(root map[string]any, segments []string, value any) bool {
	if len(segments) == 0 || segments[0] == "" {
		return false
	}
	allowed := Bool(root, overwritableKey)
	current := root
	for _, segment := range segments[:len(segments)-1] {
		if segment == "" {
			return false
		}
		next, ok := current[segment].(map[string]any)
		if !ok {
			if !allowed {
				return false
			}
			if _, exists := current[segment]; exists {
				return false
			}
			next = map[string]any{}
			current[segment] = next
		}
		if Bool(next, overwritableKey) {
			allowed = true
		}
		current = next
	}
	if !allowed {
		return false
	}
	leaf := segments[len(segments)-1]
	if leaf == "" || leaf == overwritableKey {
		return false
	}
	current[leaf] = value
	return true
}
