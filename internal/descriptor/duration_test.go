package descriptor

import (
	"errors"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"launchpad/internal/errdefs"
)

func TestParseDurationForms(t *testing.T) {
	cases := []struct {
		name  string
		value any
		want  time.Duration
	}{
		{name: "nil", value: nil, want: 0},
		{name: "go string", value: "1m30s", want: 90 * time.Second},
		{name: "numeric string", value: "2.5", want: 2500 * time.Millisecond},
		{name: "seconds", value: 15, want: 15 * time.Second},
		{name: "timedelta", value: map[string]any{"minutes": 1, "seconds": 5}, want: 65 * time.Second},
		{name: "weeks", value: map[string]any{"weeks": 1}, want: 7 * 24 * time.Hour},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseDuration(tc.value)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestParseDurationRejectsUnknownUnit(t *testing.T) {
	_, err := ParseDuration(map[string]any{"fortnights": 1})
	if !errors.Is(err, errdefs.ErrConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
	if _, err := ParseDuration("soon"); !errors.Is(err, errdefs.ErrConfig) {
		t.Fatalf("expected config error for bad string, got %v", err)
	}
}

func TestDurationUnmarshalYAML(t *testing.T) {
	var out struct {
		Timeout Duration `yaml:"timeout"`
	}
	if err := yaml.Unmarshal([]byte("timeout:\n  hours: 1\n  minutes: 30\n"), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Timeout.Std() != 90*time.Minute {
		t.Fatalf("unexpected timeout %s", out.Timeout)
	}
}

func TestParseTimeForms(t *testing.T) {
	want := time.Date(2025, time.March, 4, 5, 6, 7, 0, time.UTC)
	fromString, err := ParseTime("2025-03-04T05:06:07Z")
	if err != nil {
		t.Fatalf("parse string: %v", err)
	}
	if !fromString.Equal(want) {
		t.Fatalf("expected %s, got %s", want, fromString)
	}
	fromMap, err := ParseTime(map[string]any{"year": 2025, "month": 3, "day": 4, "hour": 5, "minute": 6, "second": 7})
	if err != nil {
		t.Fatalf("parse map: %v", err)
	}
	if !fromMap.Equal(want) {
		t.Fatalf("expected %s, got %s", want, fromMap)
	}
	if _, err := ParseTime(map[string]any{"year": 2025}); !errors.Is(err, errdefs.ErrConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
}
