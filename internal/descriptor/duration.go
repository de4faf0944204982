package descriptor

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"

	"launchpad/internal/errdefs"
)

// Duration accepts Go duration strings ("90s"), plain seconds and
// timedelta-style maps ({minutes: 5, seconds: 30}).
type Duration time.Duration

var timedeltaUnits = map[string]time.Duration{
	"weeks":        7 * 24 * time.Hour,
	"days":         24 * time.Hour,
	"hours":        time.Hour,
	"minutes":      time.Minute,
	"seconds":      time.Second,
	"milliseconds": time.Millisecond,
	"microseconds": time.Microsecond,
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := ParseDuration(raw)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (Duration) JSONSchema() *jsonschema.Schema {
	units := jsonschema.NewProperties()
	for _, unit := range []string{"weeks", "days", "hours", "minutes", "seconds", "milliseconds", "microseconds"} {
		units.Set(unit, &jsonschema.Schema{Type: "number"})
	}
	return &jsonschema.Schema{
		AnyOf: []*jsonschema.Schema{
			{Type: "string"},
			{Type: "number"},
			{Type: "object", Properties: units},
		},
		Description: "Go duration string, seconds, or a map of timedelta units",
	}
}

// ParseDuration converts any supported duration form. A nil value is zero.
func ParseDuration(value any) (time.Duration, error) {
	switch typed := value.(type) {
	case nil:
		return 0, nil
	case time.Duration:
		return typed, nil
	case Duration:
		return typed.Std(), nil
	case string:
		text := strings.TrimSpace(typed)
		if text == "" {
			return 0, nil
		}
		if seconds, err := strconv.ParseFloat(text, 64); err == nil {
			return secondsToDuration(seconds), nil
		}
		parsed, err := time.ParseDuration(text)
		if err != nil {
			return 0, errdefs.Config("invalid duration %q", typed)
		}
		return parsed, nil
	case map[string]any:
		var total time.Duration
		for key, amount := range typed {
			unit, ok := timedeltaUnits[key]
			if !ok {
				return 0, errdefs.Config("unknown duration unit %q", key)
			}
			number, ok := toFloat(amount)
			if !ok {
				return 0, errdefs.Config("duration unit %q must be numeric, got %T", key, amount)
			}
			total += time.Duration(number * float64(unit))
		}
		return total, nil
	}
	if number, ok := toFloat(value); ok {
		return secondsToDuration(number), nil
	}
	return 0, errdefs.Config("unsupported duration value %v (%T)", value, value)
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

func toFloat(value any) (float64, bool) {
	switch typed := value.(type) {
	case int:
		return float64(typed), true
	case int32:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case uint:
		return float64(typed), true
	case uint64:
		return float64(typed), true
	case float32:
		return float64(typed), true
	case float64:
		return typed, true
	}
	return 0, false
}

// Time accepts RFC 3339 strings, "2006-01-02 15:04:05" strings and
// datetime-style maps ({year: 2025, month: 1, day: 2, hour: 3}).
type Time struct {
	time.Time
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func (t *Time) UnmarshalYAML(node *yaml.Node) error {
	var raw any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := ParseTime(raw)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

func (t Time) MarshalYAML() (any, error) {
	return t.Time.Format(time.RFC3339Nano), nil
}

func (Time) JSONSchema() *jsonschema.Schema {
	fields := jsonschema.NewProperties()
	for _, field := range []string{"year", "month", "day", "hour", "minute", "second", "microsecond"} {
		fields.Set(field, &jsonschema.Schema{Type: "integer"})
	}
	fields.Set("tzinfo", &jsonschema.Schema{Type: "string"})
	return &jsonschema.Schema{
		AnyOf: []*jsonschema.Schema{
			{Type: "string"},
			{Type: "object", Properties: fields},
		},
	}
}

func ParseTime(value any) (time.Time, error) {
	switch typed := value.(type) {
	case time.Time:
		return typed, nil
	case string:
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, typed); err == nil {
				return parsed, nil
			}
		}
		return time.Time{}, errdefs.Config("invalid datetime %q", typed)
	case map[string]any:
		return timeFromFields(typed)
	}
	return time.Time{}, errdefs.Config("unsupported datetime value %v (%T)", value, value)
}

func timeFromFields(fields map[string]any) (time.Time, error) {
	field := func(names ...string) (int, error) {
		for _, name := range names {
			raw, ok := fields[name]
			if !ok {
				continue
			}
			number, ok := toFloat(raw)
			if !ok {
				return 0, errdefs.Config("datetime field %q must be numeric", name)
			}
			return int(number), nil
		}
		return 0, nil
	}
	values := make([]int, 0, 7)
	for _, names := range [][]string{{"year"}, {"month"}, {"day"}, {"hour", "hours"}, {"minute", "minutes"}, {"second", "seconds"}, {"microsecond"}} {
		value, err := field(names...)
		if err != nil {
			return time.Time{}, err
		}
		values = append(values, value)
	}
	if values[0] == 0 || values[1] == 0 || values[2] == 0 {
		return time.Time{}, errdefs.Config("datetime requires year, month and day")
	}
	location := time.UTC
	if tz, ok := fields["tzinfo"].(string); ok && tz != "" {
		loaded, err := time.LoadLocation(tz)
		if err != nil {
			return time.Time{}, errdefs.Config("unknown time zone %q", tz)
		}
		location = loaded
	}
	return time.Date(values[0], time.Month(values[1]), values[2], values[3], values[4], values[5], values[6]*1000, location), nil
}

func (d Duration) String() string {
	return fmt.Sprint(time.Duration(d))
}
