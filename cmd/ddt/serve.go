package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/aretw0/lifecycle"
	ddthttp "github.com/ddt-tool/ddt/pkg/adapters/http"
	"github.com/ddt-tool/ddt/pkg/observability"
	"github.com/ddt-tool/ddt/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve cases and packs over a JSON HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				a.cfg.Server.Addr, _ = cmd.Flags().GetString("addr")
			}

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

			var (
				reg     *prometheus.Registry
				regArg  prometheus.Registerer
				srvOpts = []ddthttp.Option{ddthttp.WithLogger(a.logger)}
			)
			if a.cfg.Server.Metrics {
				reg = prometheus.NewRegistry()
				reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
				regArg = reg
				srvOpts = append(srvOpts, ddthttp.WithMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
			}
			if lister, ok := src.(ports.Lister); ok {
				srvOpts = append(srvOpts, ddthttp.WithLister(lister))
			}

			a.cases = observability.NewCaseWatcher()
			srvOpts = append(srvOpts,
				ddthttp.WithCaseWatcher(a.cases),
				ddthttp.WithRequestValidation(true),
			)
			lifecycle.Go(ctx, func(watchCtx context.Context) error {
				// ctx is the signal context, itself a watchable component.
				for snap := range observability.NewAggregator(a.cases, ctx).Watch(watchCtx) {
					a.logger.Debug("state_change", "component", snap.ComponentType, "id", snap.ComponentID)
				}
				return nil
			})

			mgr := a.sessions(loader, store, backend, regArg)
			srv := &http.Server{
				Addr:              a.cfg.Server.Addr,
				Handler:           ddthttp.NewServer(mgr, loader, srvOpts...).Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			serverErrors := make(chan error, 1)
			lifecycle.Go(ctx, func(context.Context) error {
				a.logger.Info("ddt server listening", "addr", srv.Addr, "store", a.cfg.Store.Kind)
				serverErrors <- srv.ListenAndServe()
				return nil
			})

			select {
			case err := <-serverErrors:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
				a.logger.Info("shutting down server", "signal", ctx.Signal())
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					a.logger.Warn("graceful shutdown did not complete", "err", err)
					return srv.Close()
				}
				a.logger.Info("server stopped gracefully")
				return nil
			}
		},
	}
	cmd.Flags().String("addr", "", "Listen address (default from config, localhost:8080)")
	return cmd
}
