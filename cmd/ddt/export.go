package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

func newExportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export <case-id>",
		Short: "Print a stored case as JSON",
		Long:  `Prints the {caseId, meta, state, trace} export of a case from the configured export store.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, closeStore, err := a.exportStore()
			if err != nil {
				return err
			}
			defer closeStore()

			export, err := loadCase(cmd.Context(), store, args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(export)
		},
	}
}
