package main

import (
	"fmt"

	"github.com/ddt-tool/ddt/internal/presentation/graph"
	"github.com/spf13/cobra"
)

func newGraphCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph <pack-id>",
		Short: "Print a pack as a Mermaid flowchart",
		Long:  `Outputs a Mermaid diagram (graph TD) of the pack. With --case, the nodes the case visited are highlighted.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			packID := args[0]
			p, err := a.loader(ctx, a.source()).Load(ctx, packID)
			if err != nil {
				return err
			}

			var overlay *graph.GraphOverlay
			if caseID, _ := cmd.Flags().GetString("case"); caseID != "" {
				store, _, closeStore, err := a.exportStore()
				if err != nil {
					return err
				}
				defer closeStore()
				export, err := loadCase(ctx, store, caseID)
				if err != nil {
					return err
				}
				current := ""
				if export.Meta.PackID == packID {
					current = export.Meta.NodeID
				}
				overlay = graph.OverlayFromTrace(packID, export.Trace, current)
			}

			fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(p, overlay))
			return nil
		},
	}
	cmd.Flags().String("case", "", "Highlight the path of this case from the export store")
	return cmd
}
