package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"launchpad/internal/deployment"
	"launchpad/internal/errdefs"
	"launchpad/internal/logging"
)

const sampleConfig = `root = "/srv/project"

[watcher]
polling_interval = "30s"

[watcher.groups.workers_settings]
base-paths = ["extra/workers"]
skips = ["extra/workers/old"]

[temporal]
default-server = "local"
identity = "launchpad@${HOST_NAME}"

[[temporal.servers]]
name = "local"
host = "localhost"
port = 7233

[[temporal.servers]]
name = "cloud"
host = "cloud.example.com"
api_key = "${CLOUD_KEY}"

[logging]
level = "warning"

[env.staging.watcher]
polling-interval = "5s"
enabled = false

[env.staging.logging]
level = "debug"

[env.broken]
watcher = "off"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "launchpad.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func lookupFrom(values map[string]string) func(string) (string, bool) {
	return func(name string) (string, bool) {
		value, ok := values[name]
		return value, ok
	}
}

var sampleEnv = lookupFrom(map[string]string{"HOST_NAME": "ci", "CLOUD_KEY": "secret"})

func TestDefaults(t *testing.T) {
	cfg, err := Defaults()
	if err != nil {
		t.Fatalf("defaults: %v", err)
	}
	if cfg.Watcher.PollingInterval != deployment.DefaultPollingInterval {
		t.Fatalf("expected default polling interval, got %s", cfg.Watcher.PollingInterval)
	}
	if cfg.Watcher.TriggerInterval != deployment.DefaultTriggerInterval {
		t.Fatalf("expected default trigger interval, got %s", cfg.Watcher.TriggerInterval)
	}
	if !cfg.Watcher.Enabled || !cfg.Watcher.AutomaticRefresh || !cfg.Temporal.Tracing {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.Logging.Level != logging.LevelInfo || cfg.Logging.BufferSize != logging.DefaultBufferSize {
		t.Fatalf("unexpected logging defaults %+v", cfg.Logging)
	}
	if cfg.Telemetry.Enabled || cfg.Telemetry.ServiceName != "launchpad" {
		t.Fatalf("unexpected telemetry defaults %+v", cfg.Telemetry)
	}
}

func TestLoadFileLayersOverDefaults(t *testing.T) {
	path := writeConfig(t, sampleConfig)
	cfg, err := Load(LoadOptions{Path: path, Lookup: sampleEnv})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Root != "/srv/project" {
		t.Fatalf("unexpected root %q", cfg.Root)
	}
	if cfg.Watcher.PollingInterval != 30*time.Second {
		t.Fatalf("expected 30s polling, got %s", cfg.Watcher.PollingInterval)
	}
	if cfg.Watcher.Debounce != 250*time.Millisecond {
		t.Fatalf("expected default debounce, got %s", cfg.Watcher.Debounce)
	}
	if cfg.Temporal.Identity != "launchpad@ci" {
		t.Fatalf("expected expanded identity, got %q", cfg.Temporal.Identity)
	}
	if len(cfg.Temporal.Servers) != 2 || cfg.Temporal.Servers[1]["api_key"] != "secret" {
		t.Fatalf("unexpected servers %v", cfg.Temporal.Servers)
	}
	if cfg.Logging.Level != logging.LevelWarning {
		t.Fatalf("expected warning level, got %s", cfg.Logging.Level)
	}
	want := map[string]deployment.GroupPaths{
		"workers_settings": {
			BasePaths: []string{"extra/workers"},
			Skips:     []string{"extra/workers/old"},
		},
	}
	if diff := cmp.Diff(want, cfg.Watcher.Groups); diff != "" {
		t.Fatalf("groups (-want +got):\n%s", diff)
	}
}

func TestLoadEnvOverlay(t *testing.T) {
	path := writeConfig(t, sampleConfig)
	cfg, err := Load(LoadOptions{Path: path, Env: "staging", Lookup: sampleEnv})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Watcher.PollingInterval != 5*time.Second || cfg.Watcher.Enabled {
		t.Fatalf("expected staging watcher, got %+v", cfg.Watcher)
	}
	if cfg.Logging.Level != logging.LevelDebug {
		t.Fatalf("expected staging logging level, got %s", cfg.Logging.Level)
	}
	if cfg.Temporal.DefaultServer != "local" {
		t.Fatalf("expected base keys to survive the overlay, got %q", cfg.Temporal.DefaultServer)
	}
}

func TestLoadOverridesWin(t *testing.T) {
	path := writeConfig(t, sampleConfig)
	overrides, err := ParseOverrides([]string{"watcher.polling_interval=2m", "logging.buffer-size=50"})
	if err != nil {
		t.Fatalf("parse overrides: %v", err)
	}
	cfg, err := Load(LoadOptions{Path: path, Env: "staging", Overrides: overrides, Lookup: sampleEnv})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Watcher.PollingInterval != 2*time.Minute {
		t.Fatalf("expected override to win, got %s", cfg.Watcher.PollingInterval)
	}
	if cfg.Logging.BufferSize != 50 {
		t.Fatalf("expected buffer size 50, got %d", cfg.Logging.BufferSize)
	}
}

func TestLoadErrors(t *testing.T) {
	path := writeConfig(t, sampleConfig)
	cases := []struct {
		name    string
		options LoadOptions
	}{
		{name: "missing explicit file", options: LoadOptions{Path: filepath.Join(t.TempDir(), "absent.toml")}},
		{name: "unknown env", options: LoadOptions{Path: path, Env: "prod", Lookup: sampleEnv}},
		{name: "env type mismatch", options: LoadOptions{Path: path, Env: "broken", Lookup: sampleEnv}},
		{name: "unset variable", options: LoadOptions{Path: path}},
		{name: "bad level", options: LoadOptions{Path: path, Lookup: sampleEnv, Overrides: map[string]any{"logging.level": "loud"}}},
		{name: "bad duration", options: LoadOptions{Path: path, Lookup: sampleEnv, Overrides: map[string]any{"watcher.debounce": "soon"}}},
		{name: "zero polling", options: LoadOptions{Path: path, Lookup: sampleEnv, Overrides: map[string]any{"watcher.polling-interval": int64(0)}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.name == "unset variable" {
				tc.options.Lookup = lookupFrom(nil)
			}
			if _, err := Load(tc.options); !errors.Is(err, errdefs.ErrConfig) {
				t.Fatalf("expected config error, got %v", err)
			}
		})
	}
}

func TestLoadInvalidToml(t *testing.T) {
	path := writeConfig(t, "[watcher\n")
	if _, err := Load(LoadOptions{Path: path}); !errors.Is(err, errdefs.ErrConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
}
