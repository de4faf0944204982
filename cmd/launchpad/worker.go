package main

import (
	"context"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"launchpad/internal/catalog"
	"launchpad/internal/config"
	"launchpad/internal/deployment"
	"launchpad/internal/errdefs"
	"launchpad/internal/logging"
	"launchpad/internal/temporal"
	temporalworker "launchpad/internal/temporal/worker"
)

type workerOptions struct {
	address    string
	namespace  string
	taskQueue  string
	maxWorkers int
	proxy      string
	root       string
	activities []string
	workflows  []string
}

// newWorkerCommand is the child side of the ProcessWorker class. It loads the
// project modules itself and serves one task queue until signalled.
func newWorkerCommand(options *globalOptions) *cobra.Command {
	flags := &workerOptions{}
	cmd := &cobra.Command{
		Use:    "worker",
		Short:  "Serve one task queue (started by the ProcessWorker class)",
		Args:   cobra.NoArgs,
		Hidden: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := options.load()
			if err != nil {
				return err
			}
			if flags.root != "" {
				cfg.Root = flags.root
			}
			return runWorker(cmd.Context(), cfg, *flags, newLogger(cfg))
		},
	}
	cmd.Flags().StringVar(&flags.address, "address", "", "Cluster frontend host:port")
	cmd.Flags().StringVar(&flags.namespace, "namespace", "", "Namespace to poll")
	cmd.Flags().StringVar(&flags.taskQueue, "task-queue", "", "Task queue to serve")
	cmd.Flags().IntVar(&flags.maxWorkers, "max-workers", 0, "Maximum concurrent activity executions")
	cmd.Flags().StringVar(&flags.proxy, "proxy", "", "HTTP CONNECT proxy URL")
	cmd.Flags().StringVar(&flags.root, "root", "", "Project root (overrides the config file)")
	cmd.Flags().StringArrayVar(&flags.activities, "activity", nil, "Activity to register (repeatable)")
	cmd.Flags().StringArrayVar(&flags.workflows, "workflow", nil, "Workflow to register (repeatable)")
	_ = cmd.MarkFlagRequired("address")
	_ = cmd.MarkFlagRequired("task-queue")
	return cmd
}

func runWorker(parent context.Context, cfg config.Config, flags workerOptions, logger *logging.Logger) error {
	ctx, release := signalContext(parent, logger)
	defer release()

	registry, err := deployment.New(deployment.Options{
		Root:   cfg.Root,
		Groups: cfg.Watcher.Groups,
		Logger: logger,
	})
	if err != nil {
		return err
	}
	objects, err := registry.Catalog()
	if err != nil {
		return err
	}
	spec, err := workerSpec(flags, objects)
	if err != nil {
		return err
	}

	c, err := temporal.Dial(ctx, temporal.DialOptions{
		Endpoint:       spec.Endpoint,
		Namespace:      spec.Namespace,
		Identity:       cfg.Temporal.Identity,
		Logger:         logger,
		DisableTracing: !cfg.Temporal.Tracing,
	})
	if err != nil {
		return err
	}
	defer c.Close()

	logger.Info("worker serving", map[string]string{
		"task_queue": spec.TaskQueue,
		"namespace":  spec.Namespace,
		"activities": strings.Join(flags.activities, ","),
		"workflows":  strings.Join(flags.workflows, ","),
	})
	return temporalworker.Run(ctx, c, spec)
}

// workerSpec resolves the requested names against the loaded catalog. The
// API key comes from the environment set by the parent process.
func workerSpec(flags workerOptions, objects catalog.Catalog) (temporalworker.Spec, error) {
	activities, missing := objects.Activities.Resolve(flags.activities)
	if len(missing) > 0 {
		return temporalworker.Spec{}, errdefs.MissingImport("activities %s", strings.Join(missing, ", "))
	}
	workflows, missing := objects.Workflows.Resolve(flags.workflows)
	if len(missing) > 0 {
		return temporalworker.Spec{}, errdefs.MissingImport("workflows %s", strings.Join(missing, ", "))
	}
	return temporalworker.Spec{
		TaskQueue:  flags.taskQueue,
		Namespace:  flags.namespace,
		Activities: activities,
		Workflows:  workflows,
		MaxWorkers: flags.maxWorkers,
		Endpoint: temporal.Endpoint{
			HostPort: flags.address,
			Proxy:    flags.proxy,
			APIKey:   os.Getenv(temporalworker.APIKeyEnv),
		},
	}, nil
}
