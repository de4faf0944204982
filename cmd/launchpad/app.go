package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"launchpad/internal/catalog"
	"launchpad/internal/config"
	"launchpad/internal/deployment"
	"launchpad/internal/logging"
	"launchpad/internal/process"
	"launchpad/internal/runner"
	temporalworker "launchpad/internal/temporal/worker"
)

// registryOptions builds the deployment registry options of cfg. Built-in
// runners and worker classes are seeded so descriptors can name them.
func registryOptions(cfg config.Config, configPath string, processes *process.Registry, logger *logging.Logger) deployment.Options {
	root := cfg.Root
	if absolute, err := filepath.Abs(root); err == nil {
		root = absolute
	}
	workers := temporalworker.Builtins(
		&temporalworker.AsyncWorker{Logger: logger},
		&temporalworker.ProcessWorker{
			Executable: cfg.Worker.Executable,
			Root:       root,
			ConfigPath: configPath,
			Processes:  processes,
			Logger:     logger,
		},
	)
	return deployment.Options{
		Root:   root,
		Groups: cfg.Watcher.Groups,
		Builtins: map[string]catalog.Objects{
			deployment.GroupRunners: runner.Builtins(logger),
			deployment.GroupWorkers: workers,
		},
		PollingInterval:         cfg.Watcher.PollingInterval,
		TriggerInterval:         cfg.Watcher.TriggerInterval,
		DisableAutomaticRefresh: !cfg.Watcher.AutomaticRefresh,
		Logger:                  logger,
	}
}

// signalContext is cancelled by SIGINT or SIGTERM. The returned function
// releases the signal handler.
func signalContext(parent context.Context, logger *logging.Logger) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	signalCh := make(chan os.Signal, 2)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	stopWatching := watchShutdownSignals(logger, cancel, signalCh)
	return ctx, func() {
		signal.Stop(signalCh)
		stopWatching()
		cancel()
	}
}
