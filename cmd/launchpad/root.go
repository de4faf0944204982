package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"launchpad/internal/config"
	"launchpad/internal/logging"
)

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
	env        string
	overrides  []string
	getenv     func(string) string
}

func newRootCommand() *cobra.Command {
	options := &globalOptions{getenv: os.Getenv}
	root := &cobra.Command{
		Use:   "launchpad",
		Short: "Hot-reloading deployment control plane for Temporal clusters",
		Long: `launchpad watches a project tree of activities, workflows, runners and
deployment descriptors, reloads what changed and keeps one or more Temporal
clusters in sync with it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&options.configPath, "config", "c", "", "Config file (default $"+config.EnvConfigPath+" or "+config.DefaultPath+")")
	root.PersistentFlags().StringVar(&options.env, "env", "", "Config environment overlay (default $"+config.EnvName+")")
	root.PersistentFlags().StringArrayVar(&options.overrides, "set", nil, "Override a config key, key=value (repeatable)")

	root.AddCommand(newServeCommand(options))
	root.AddCommand(newWorkerCommand(options))
	root.AddCommand(newVisitCommand(options))
	root.AddCommand(newSchemaCommand())
	root.AddCommand(newVersionCommand())
	return root
}

// resolvedConfigPath returns the flag, then the environment, as an absolute
// path. Empty means the optional default file.
func (o *globalOptions) resolvedConfigPath() string {
	path := strings.TrimSpace(o.configPath)
	if path == "" {
		path = strings.TrimSpace(o.getenv(config.EnvConfigPath))
	}
	if path == "" {
		return ""
	}
	if absolute, err := filepath.Abs(path); err == nil {
		return absolute
	}
	return path
}

func (o *globalOptions) load() (config.Config, error) {
	envOverrides, err := config.ParseOverridesEnv(o.getenv(config.EnvOverrides))
	if err != nil {
		return config.Config{}, err
	}
	flagOverrides, err := config.ParseOverrides(o.overrides)
	if err != nil {
		return config.Config{}, err
	}
	overrides := map[string]any{}
	for key, value := range envOverrides {
		overrides[key] = value
	}
	for key, value := range flagOverrides {
		overrides[key] = value
	}

	env := strings.TrimSpace(o.env)
	if env == "" {
		env = strings.TrimSpace(o.getenv(config.EnvName))
	}
	return config.Load(config.LoadOptions{
		Path:      o.resolvedConfigPath(),
		Env:       env,
		Overrides: overrides,
	})
}

func newLogger(cfg config.Config) *logging.Logger {
	return logging.NewLoggerWithOutput(logging.NewLogBuffer(cfg.Logging.BufferSize), cfg.Logging.Level, os.Stderr)
}
