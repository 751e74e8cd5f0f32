package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [pack-id...]",
		Short: "Check packs for structural problems",
		Long: `Loads the named packs, or every pack the source can list, and reports
missing entry nodes, dangling targets, malformed choices and unknown handoff targets.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			loader := a.loader(ctx, a.source())
			out := cmd.OutOrStdout()

			failures := make(map[string]error)
			ids := args
			if len(ids) == 0 {
				all, err := loader.ValidateAll(ctx)
				if err != nil {
					return err
				}
				failures = all
			} else {
				for _, id := range ids {
					if _, err := loader.Load(ctx, id); err != nil {
						failures[id] = err
					}
				}
			}

			failed := make([]string, 0, len(failures))
			for id := range failures {
				failed = append(failed, id)
			}
			sort.Strings(failed)
			for _, id := range failed {
				fmt.Fprintf(out, "✗ %s: %v\n", id, failures[id])
			}
			if len(failed) > 0 {
				return fmt.Errorf("%d pack(s) failed validation", len(failed))
			}
			fmt.Fprintln(out, "All packs are valid ✓")
			return nil
		},
	}
}
