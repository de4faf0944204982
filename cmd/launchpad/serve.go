package main

import (
	"context"
	"errors"
	"strconv"

	"github.com/spf13/cobra"

	"launchpad/internal/cluster"
	"launchpad/internal/config"
	"launchpad/internal/deployment"
	"launchpad/internal/logging"
	internalotel "launchpad/internal/otel"
	"launchpad/internal/process"
	"launchpad/internal/version"
	"launchpad/internal/watcher"
)

func newServeCommand(options *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the control plane",
		Long: `Connect to every configured cluster, deploy the descriptors flagged for
server start, then poll the project tree and push every reload to the
clusters until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := options.load()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, options.resolvedConfigPath(), newLogger(cfg))
		},
	}
}

func serve(parent context.Context, cfg config.Config, configPath string, logger *logging.Logger) (err error) {
	ctx, release := signalContext(parent, logger)
	defer release()

	info := version.Get()
	logger.Info("launchpad starting", map[string]string{
		"version": info.Version,
		"root":    cfg.Root,
	})

	coordinator := newShutdownCoordinator(logger)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(parent), shutdownTimeout)
		defer cancel()
		err = errors.Join(err, coordinator.Run(shutdownCtx))
	}()

	shutdownTelemetry, err := internalotel.SetupSDK(ctx, internalotel.SDKOptions{
		Enabled:            cfg.Telemetry.Enabled,
		Endpoint:           cfg.Telemetry.Endpoint,
		Insecure:           cfg.Telemetry.Insecure,
		ServiceName:        cfg.Telemetry.ServiceName,
		ServiceVersion:     info.Version,
		ResourceAttributes: cfg.Telemetry.ResourceAttributes,
	})
	if err != nil {
		return err
	}

	processes := process.NewRegistry()
	registry, err := deployment.New(registryOptions(cfg, configPath, processes, logger))
	if err != nil {
		return err
	}

	specs, err := clusterSpecs(cfg, registry)
	if err != nil {
		return err
	}
	snapshot, err := registry.Snapshot()
	if err != nil {
		logger.Warn("initial snapshot incomplete, broken descriptors left out", logging.WithError(nil, err))
	}
	fleet, err := cluster.NewFleet(ctx, specs, cfg.Temporal.DefaultServer, snapshot, cluster.Options{
		Identity:       cfg.Temporal.Identity,
		RPCTimeout:     cfg.Temporal.RPCTimeout,
		DisableTracing: !cfg.Temporal.Tracing,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	var fileWatcher *watcher.Watcher
	if cfg.Watcher.Enabled {
		fileWatcher, err = registry.Watch(watcher.Options{Logger: logger, Debounce: cfg.Watcher.Debounce})
		if err != nil {
			logger.Warn("file watcher unavailable, polling only", logging.WithError(nil, err))
		}
	}
	if fileWatcher != nil {
		coordinator.Add("watcher", func(context.Context) error { return fileWatcher.Close() })
	}
	coordinator.Add("fleet", func(context.Context) error { return fleet.Close() })
	coordinator.Add("processes", processes.StopAll)
	coordinator.Add("telemetry", shutdownTelemetry)

	if err := fleet.DeployWorkersOnStart(ctx); err != nil {
		logger.Error("workers on start failed", logging.WithError(nil, err))
	}
	if err := fleet.DeployTasksOnStart(ctx); err != nil {
		logger.Error("tasks on start failed", logging.WithError(nil, err))
	}

	logger.Info("launchpad ready", map[string]string{
		"connections":      strconv.Itoa(len(fleet.Connections())),
		"polling_interval": registry.PollingInterval().String(),
	})
	return registry.Poll(ctx, func(ctx context.Context) error {
		return registry.Refresh(ctx, fleet)
	})
}

// localClusterName names the implicit localhost cluster used when no server
// is declared anywhere.
const localClusterName = "local"

// clusterSpecs merges the servers of the config file with those declared in
// the configs group. Config file entries come first.
func clusterSpecs(cfg config.Config, registry *deployment.Registry) ([]cluster.Spec, error) {
	declared, err := registry.Servers()
	if err != nil {
		return nil, err
	}
	raw := append(append([]map[string]any{}, cfg.Temporal.Servers...), declared...)
	if len(raw) == 0 {
		raw = []map[string]any{{"name": localClusterName}}
	}
	return cluster.SpecsFromMaps(raw)
}
