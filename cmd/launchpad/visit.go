package main

import (
	"encoding/json"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"launchpad/internal/deployment"
	"launchpad/internal/process"
	"launchpad/internal/registry"
)

// visitReport is the one-shot view printed by `launchpad visit`.
type visitReport struct {
	Root       string               `json:"root"`
	Groups     []registry.GroupInfo `json:"groups"`
	Activities []string             `json:"activities"`
	Workflows  []string             `json:"workflows"`
	Runners    []string             `json:"runners"`
	Workers    []string             `json:"worker_classes"`
	Tasks      []string             `json:"tasks"`
	Queues     []string             `json:"task_queues"`
	Problems   []string             `json:"problems,omitempty"`
}

func newVisitCommand(options *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "visit",
		Short: "Load the project tree once and print what the registry sees, as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := options.load()
			if err != nil {
				return err
			}
			logger := newLogger(cfg)
			r, err := deployment.New(registryOptions(cfg, options.resolvedConfigPath(), process.NewRegistry(), logger))
			if err != nil {
				return err
			}
			report, err := buildVisitReport(r)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), report)
		},
	}
}

func buildVisitReport(r *deployment.Registry) (visitReport, error) {
	groups, err := r.Info()
	if err != nil {
		return visitReport{}, err
	}
	objects, err := r.Catalog()
	if err != nil {
		return visitReport{}, err
	}
	settings, settingsErr := r.Settings()
	report := visitReport{
		Root:       r.Root(),
		Groups:     groups,
		Activities: objects.Activities.Names(),
		Workflows:  objects.Workflows.Names(),
		Runners:    objects.Runners.Names(),
		Workers:    objects.WorkerClasses.Names(),
		Tasks:      sortedKeys(settings.Tasks),
		Queues:     sortedKeys(settings.Workers),
	}
	if settingsErr != nil {
		report.Problems = strings.Split(settingsErr.Error(), "\n")
	}
	return report, nil
}

func sortedKeys(values map[string]map[string]any) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func writeJSON(out io.Writer, value any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
