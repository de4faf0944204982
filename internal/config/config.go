// Package config loads the control plane settings from launchpad.toml.
//
// Values are layered: embedded defaults, the config file, the [env.<name>]
// overlay of that file, then key=value overrides. String values may carry
// ${VAR} placeholders resolved from the environment.
package config

import (
	_ "embed"
	"errors"
	"os"
	"sort"
	"strings"
	"time"

	"launchpad/internal/config/tomlkeys"
	"launchpad/internal/deployment"
	"launchpad/internal/descriptor"
	"launchpad/internal/errdefs"
	"launchpad/internal/logging"
	"launchpad/internal/registry"
)

const (
	DefaultPath = "launchpad.toml"

	EnvConfigPath = "LAUNCHPAD_CONFIG"
	EnvName       = "LAUNCHPAD_ENV"
	EnvOverrides  = "LAUNCHPAD_CONFIG_OVERRIDES"
)

const (
	envTable     = "env"
	groupsPrefix = "watcher.groups."
)

//go:embed defaults.toml
var defaultsPayload []byte

type Config struct {
	Root      string
	Watcher   WatcherConfig
	Temporal  TemporalConfig
	Worker    WorkerConfig
	Logging   LoggingConfig
	Telemetry TelemetryConfig
}

type WatcherConfig struct {
	Enabled          bool
	PollingInterval  time.Duration
	TriggerInterval  time.Duration
	Debounce         time.Duration
	AutomaticRefresh bool
	// Groups adds base and skip paths to registry groups, keyed by group name.
	Groups map[string]deployment.GroupPaths
}

type TemporalConfig struct {
	DefaultServer string
	Identity      string
	RPCTimeout    time.Duration
	Tracing       bool
	// Servers are raw cluster specs, decoded by the cluster package.
	Servers []map[string]any
}

type WorkerConfig struct {
	// Executable runs process workers. Empty means the running binary.
	Executable string
}

type LoggingConfig struct {
	Level      logging.Level
	BufferSize int
}

type TelemetryConfig struct {
	Enabled            bool
	Endpoint           string
	Insecure           bool
	ServiceName        string
	ResourceAttributes string
}

type LoadOptions struct {
	// Path is the config file. When empty, DefaultPath is read if present.
	Path string
	// Env selects an [env.<name>] overlay.
	Env       string
	Overrides map[string]any
	// Lookup resolves ${VAR} placeholders. Defaults to os.LookupEnv.
	Lookup func(string) (string, bool)
}

// Defaults returns the embedded configuration.
func Defaults() (Config, error) {
	defaults, err := tomlkeys.Decode(defaultsPayload)
	if err != nil {
		return Config{}, err
	}
	return build(tomlkeys.Flatten(defaults))
}

// Load reads and layers the configuration. An explicit Path that does not
// exist is an error; the default path is optional.
func Load(options LoadOptions) (Config, error) {
	defaults, err := tomlkeys.Decode(defaultsPayload)
	if err != nil {
		return Config{}, err
	}
	values := tomlkeys.Flatten(defaults)

	raw, err := readFile(options.Path)
	if err != nil {
		return Config{}, err
	}
	raw, err = applyEnv(raw, strings.TrimSpace(options.Env))
	if err != nil {
		return Config{}, err
	}
	for key, value := range tomlkeys.Flatten(raw) {
		values[key] = value
	}

	for key, value := range options.Overrides {
		normalized := tomlkeys.NormalizeKey(key)
		if normalized == "" {
			continue
		}
		values[normalized] = value
	}

	lookup := options.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	for key, value := range values {
		expanded, err := registry.ExpandEnv(value, lookup)
		if err != nil {
			return Config{}, errdefs.Config("config %s: %v", key, err)
		}
		values[key] = expanded
	}
	return build(values)
}

func readFile(path string) (map[string]any, error) {
	explicit := strings.TrimSpace(path) != ""
	if !explicit {
		path = DefaultPath
	}
	payload, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return map[string]any{}, nil
		}
		return nil, errdefs.Config("read config %s: %v", path, err)
	}
	raw, err := tomlkeys.Decode(payload)
	if err != nil {
		return nil, errdefs.Config("parse config %s: %v", path, err)
	}
	return raw, nil
}

// applyEnv removes the env table and merges the selected overlay into the
// remaining document.
func applyEnv(raw map[string]any, name string) (map[string]any, error) {
	envs, _ := raw[envTable].(map[string]any)
	delete(raw, envTable)
	if name == "" {
		return raw, nil
	}
	overlay, ok := envs[tomlkeys.NormalizeKey(name)].(map[string]any)
	if !ok {
		return nil, errdefs.Config("unknown config environment %q", name)
	}
	if err := deepMerge(raw, overlay, ""); err != nil {
		return nil, err
	}
	return raw, nil
}

func deepMerge(base, overlay map[string]any, prefix string) error {
	for key, value := range overlay {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		current, exists := base[key]
		currentTable, currentIsTable := current.(map[string]any)
		valueTable, valueIsTable := value.(map[string]any)
		switch {
		case !exists:
			base[key] = value
		case currentIsTable && valueIsTable:
			if err := deepMerge(currentTable, valueTable, path); err != nil {
				return err
			}
		case currentIsTable != valueIsTable:
			return errdefs.Config("config environment overrides %s with a different type", path)
		default:
			base[key] = value
		}
	}
	return nil
}

func build(values tomlkeys.Values) (Config, error) {
	cfg := Config{
		Root: values.String("root", "."),
		Watcher: WatcherConfig{
			Enabled:          values.Bool("watcher.enabled", true),
			AutomaticRefresh: values.Bool("watcher.automatic-refresh", true),
			Groups:           groupSettings(values),
		},
		Temporal: TemporalConfig{
			DefaultServer: values.String("temporal.default-server", ""),
			Identity:      values.String("temporal.identity", ""),
			Tracing:       values.Bool("temporal.tracing", true),
		},
		Worker: WorkerConfig{
			Executable: values.String("worker.executable", ""),
		},
		Telemetry: TelemetryConfig{
			Enabled:            values.Bool("telemetry.enabled", false),
			Endpoint:           values.String("telemetry.endpoint", ""),
			Insecure:           values.Bool("telemetry.insecure", true),
			ServiceName:        values.String("telemetry.service-name", ""),
			ResourceAttributes: values.String("telemetry.resource-attributes", ""),
		},
	}

	durations := []struct {
		key    string
		target *time.Duration
	}{
		{"watcher.polling-interval", &cfg.Watcher.PollingInterval},
		{"watcher.trigger-interval", &cfg.Watcher.TriggerInterval},
		{"watcher.debounce", &cfg.Watcher.Debounce},
		{"temporal.rpc-timeout", &cfg.Temporal.RPCTimeout},
	}
	for _, entry := range durations {
		parsed, err := descriptor.ParseDuration(values[entry.key])
		if err != nil {
			return Config{}, errdefs.Config("%s: %v", entry.key, err)
		}
		if parsed < 0 {
			return Config{}, errdefs.Config("%s must not be negative", entry.key)
		}
		*entry.target = parsed
	}
	if cfg.Watcher.PollingInterval == 0 {
		return Config{}, errdefs.Config("watcher.polling-interval must be positive")
	}

	level, ok := logging.ParseLevel(values.String("logging.level", string(logging.LevelInfo)))
	if !ok {
		return Config{}, errdefs.Config("unknown logging level %q", values["logging.level"])
	}
	cfg.Logging.Level = level
	cfg.Logging.BufferSize = int(values.Int("logging.buffer-size", logging.DefaultBufferSize))
	if cfg.Logging.BufferSize <= 0 {
		cfg.Logging.BufferSize = logging.DefaultBufferSize
	}

	servers, err := serverSettings(values["temporal.servers"])
	if err != nil {
		return Config{}, err
	}
	cfg.Temporal.Servers = servers
	return cfg, nil
}

func serverSettings(value any) ([]map[string]any, error) {
	switch typed := value.(type) {
	case nil:
		return nil, nil
	case []map[string]any:
		return typed, nil
	case []any:
		servers := make([]map[string]any, 0, len(typed))
		for index, entry := range typed {
			server, ok := entry.(map[string]any)
			if !ok {
				return nil, errdefs.Config("temporal.servers[%d] must be a table", index)
			}
			servers = append(servers, server)
		}
		return servers, nil
	}
	return nil, errdefs.Config("temporal.servers must be an array of tables, got %T", value)
}

// groupSettings collects watcher.groups.<group>.base-paths and .skips. Keys
// are normalized with dashes, group names use underscores.
func groupSettings(values tomlkeys.Values) map[string]deployment.GroupPaths {
	groups := map[string]deployment.GroupPaths{}
	keys := make([]string, 0)
	for key := range values {
		if strings.HasPrefix(key, groupsPrefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	for _, key := range keys {
		rest := strings.TrimPrefix(key, groupsPrefix)
		dot := strings.LastIndex(rest, ".")
		if dot <= 0 {
			continue
		}
		name := strings.ReplaceAll(rest[:dot], "-", "_")
		paths := groups[name]
		switch rest[dot+1:] {
		case "base-paths":
			paths.BasePaths = append(paths.BasePaths, values.Strings(key)...)
		case "skips":
			paths.Skips = append(paths.Skips, values.Strings(key)...)
		default:
			continue
		}
		groups[name] = paths
	}
	if len(groups) == 0 {
		return nil
	}
	return groups
}
