package main

import (
	"fmt"

	"github.com/aretw0/lifecycle"
	"github.com/ddt-tool/ddt/pkg/adapters/mcp"
	"github.com/ddt-tool/ddt/pkg/ports"
	"github.com/spf13/cobra"
)

func newMCPCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Run the Model Context Protocol (MCP) server",
		Long: `Exposes packs and cases as MCP tools so agents can drive a case.

Supported transports:
- stdio (default): standard input/output, for local process integration.
- sse: Server-Sent Events over HTTP, for remote agents.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			transport, _ := cmd.Flags().GetString("transport")
			addr, _ := cmd.Flags().GetString("addr")

			ctx := lifecycle.NewSignalContext(cmd.Context())
			defer ctx.Cancel()
			defer ctx.Stop()

			store, backend, closeStore, err := a.exportStore()
			if err != nil {
				return err
			}
			defer closeStore()

			src := a.source()
			loader := a.loader(ctx, src)
			a.watch(ctx, loader)

			opts := []mcp.Option{mcp.WithLogger(a.logger)}
			if lister, ok := src.(ports.Lister); ok {
				opts = append(opts, mcp.WithLister(lister))
			}
			srv := mcp.NewServer(a.sessions(loader, store, backend, nil), loader, opts...)

			switch transport {
			case "stdio":
				a.logger.Info("starting mcp server (stdio)")
				return srv.ServeStdio()
			case "sse":
				return srv.ServeSSE(ctx, addr)
			default:
				return fmt.Errorf("unknown transport %q, supported: stdio, sse", transport)
			}
		},
	}
	cmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	cmd.Flags().String("addr", "localhost:8081", "Listen address (only for SSE)")
	return cmd
}
