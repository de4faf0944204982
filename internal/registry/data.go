package registry

import (
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"launchpad/internal/errdefs"
)

var placeholderPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// DataModule is a YAML descriptor file.
type DataModule struct {
	*File
}

func NewDataModule(path string, isNew bool) (*DataModule, error) {
	f, err := NewFile(path, KindData, isNew)
	if err != nil {
		return nil, err
	}
	return &DataModule{File: f}, nil
}

// Payload parses the file and substitutes ${NAME} placeholders from the
// environment at any depth.
func (m *DataModule) Payload() (map[string]any, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errdefs.NotFound("file %s does not exist", m.path)
		}
		return nil, err
	}
	return ParsePayload(data, os.LookupEnv)
}

// Load returns the payload. Success clears the dirty flag, failure sets it
// so the file is picked up again.
func (m *DataModule) Load() (map[string]any, error) {
	payload, err := m.Payload()
	if err != nil {
		m.markDirty()
		return nil, err
	}
	m.ResolveChanges()
	return payload, nil
}

// ParsePayload decodes a YAML mapping and expands placeholders with lookup.
func ParsePayload(data []byte, lookup func(string) (string, bool)) (map[string]any, error) {
	var payload map[string]any
	if err := yaml.Unmarshal(data, &payload); err != nil {
		return nil, errdefs.Config("invalid YAML payload: %v", err)
	}
	if payload == nil {
		payload = map[string]any{}
	}
	expanded, err := expandValue(payload, lookup)
	if err != nil {
		return nil, err
	}
	return expanded.(map[string]any), nil
}

// ExpandEnv substitutes ${NAME} placeholders in every string of value, in
// place for maps and slices.
func ExpandEnv(value any, lookup func(string) (string, bool)) (any, error) {
	return expandValue(value, lookup)
}

func expandValue(value any, lookup func(string) (string, bool)) (any, error) {
	switch typed := value.(type) {
	case []map[string]any:
		for _, entry := range typed {
			if _, err := expandValue(entry, lookup); err != nil {
				return nil, err
			}
		}
		return typed, nil
	case map[string]any:
		for key, entry := range typed {
			expanded, err := expandValue(entry, lookup)
			if err != nil {
				return nil, err
			}
			typed[key] = expanded
		}
		return typed, nil
	case []any:
		for index, entry := range typed {
			expanded, err := expandValue(entry, lookup)
			if err != nil {
				return nil, err
			}
			typed[index] = expanded
		}
		return typed, nil
	case string:
		return expandString(typed, lookup)
	default:
		return value, nil
	}
}

func expandString(text string, lookup func(string) (string, bool)) (string, error) {
	var missing string
	expanded := placeholderPattern.ReplaceAllStringFunc(text, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		value, ok := lookup(name)
		if !ok && missing == "" {
			missing = name
		}
		return value
	})
	if missing != "" {
		return "", errdefs.Config("environment variable %s is not set", missing)
	}
	return expanded, nil
}
