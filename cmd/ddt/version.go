package main

import (
	"fmt"

	"github.com/ddt-tool/ddt"
	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of ddt",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ddt version %s\n", ddt.Version)
		},
	}
}
