package descriptor

import (
	"gopkg.in/yaml.v3"

	"launchpad/internal/errdefs"
)

// Decode converts a raw payload into a typed value through its YAML form.
func Decode(raw any, out any) error {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return errdefs.Config("encode descriptor: %v", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return errdefs.Config("decode descriptor: %v", err)
	}
	return nil
}

func DecodeTask(payload map[string]any) (Task, error) {
	var task Task
	if err := Decode(payload, &task); err != nil {
		return Task{}, err
	}
	if task.Name == "" {
		return Task{}, errdefs.Settings("task descriptor missing `name` field")
	}
	return task, nil
}

func DecodeWorker(payload map[string]any) (Worker, error) {
	var worker Worker
	if err := Decode(payload, &worker); err != nil {
		return Worker{}, err
	}
	if worker.Worker.TaskQueue == "" {
		return Worker{}, errdefs.Settings("worker descriptor missing `worker.task_queue` field")
	}
	return worker, nil
}

// Clone deep-copies a payload so callers can mutate the result freely.
func Clone(payload map[string]any) map[string]any {
	if payload == nil {
		return nil
	}
	cloned, _ := cloneValue(payload).(map[string]any)
	return cloned
}

func cloneValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		cloned := make(map[string]any, len(typed))
		for key, entry := range typed {
			cloned[key] = cloneValue(entry)
		}
		return cloned
	case []any:
		cloned := make([]any, len(typed))
		for index, entry := range typed {
			cloned[index] = cloneValue(entry)
		}
		return cloned
	default:
		return value
	}
}

// Bool reads a boolean flag from a payload; non-boolean values are false.
func Bool(payload map[string]any, key string) bool {
	value, _ := payload[key].(bool)
	return value
}

// String reads a string field from a payload.
func String(payload map[string]any, key string) string {
	value, _ := payload[key].(string)
	return value
}

// Map reads a nested object from a payload.
func Map(payload map[string]any, key string) (map[string]any, bool) {
	value, ok := payload[key].(map[string]any)
	return value, ok
}
