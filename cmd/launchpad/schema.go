package main

import (
	"github.com/spf13/cobra"

	"launchpad/internal/descriptor"
	internalschema "launchpad/internal/schema"
)

func newSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "schema {" + descriptor.SchemaTask + "|" + descriptor.SchemaWorker + "}",
		Short:     "Print the JSON schema of a descriptor kind",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{descriptor.SchemaTask, descriptor.SchemaWorker},
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := internalschema.Resolve(args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), s)
		},
	}
}
