package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ddt-tool/ddt"
	"github.com/ddt-tool/ddt/internal/config"
	"github.com/ddt-tool/ddt/pkg/adapters/file"
	ddthttp "github.com/ddt-tool/ddt/pkg/adapters/http"
	"github.com/ddt-tool/ddt/pkg/adapters/memory"
	"github.com/ddt-tool/ddt/pkg/adapters/redis"
	"github.com/ddt-tool/ddt/pkg/casestore"
	"github.com/ddt-tool/ddt/pkg/domain"
	"github.com/ddt-tool/ddt/pkg/observability"
	"github.com/ddt-tool/ddt/pkg/pack"
	"github.com/ddt-tool/ddt/pkg/persistence/middleware"
	"github.com/ddt-tool/ddt/pkg/ports"
	"github.com/ddt-tool/ddt/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
)

// app holds the resolved configuration shared by every command.
type app struct {
	cfg    config.Config
	logger *slog.Logger
	cases  *observability.CaseWatcher
}

// source builds the pack source selected by the configuration.
func (a *app) source() ports.PackSource {
	if a.cfg.Packs.BaseURL != "" {
		timeout := a.cfg.Packs.Timeout
		if timeout == 0 {
			timeout = ddthttp.DefaultTimeout
		}
		return ddthttp.NewSource(a.cfg.Packs.BaseURL, ddthttp.WithTimeout(timeout))
	}
	return file.NewSource(a.cfg.Packs.Dir, file.WithLogger(a.logger))
}

// loader builds a caching pack loader. When the source can list its packs,
// handoff targets are checked against the catalog.
func (a *app) loader(ctx context.Context, src ports.PackSource) *pack.Loader {
	normOpts := []pack.Option{pack.WithLogger(a.logger)}
	if lister, ok := src.(ports.Lister); ok {
		if ids, err := lister.List(ctx); err == nil && len(ids) > 0 {
			normOpts = append(normOpts, pack.WithKnownPacks(ids...))
		} else if err != nil {
			a.logger.Warn("failed to list packs", "err", err)
		}
	}
	return pack.NewLoader(src,
		pack.WithLoaderLogger(a.logger),
		pack.WithNormalizer(pack.NewNormalizer(normOpts...)),
		pack.WithCache(),
	)
}

// exportStore builds the configured export store wrapped in the masking and
// encryption middlewares. The returned close func releases backend connections.
func (a *app) exportStore() (ports.ExportStore, *redis.ExportStore, func() error, error) {
	var (
		base    ports.ExportStore
		backend *redis.ExportStore
		closer  = func() error { return nil }
	)
	switch a.cfg.Store.Kind {
	case "", "memory":
		base = memory.NewExportStore()
	case "file":
		base = file.NewExportStore(a.cfg.Store.Dir)
	case "redis":
		backend = redis.New(a.cfg.Store.RedisAddr, "", 0, redis.WithTTL(a.cfg.Store.TTL))
		base = backend
		closer = backend.Close
	default:
		return nil, nil, nil, fmt.Errorf("unknown store kind %q", a.cfg.Store.Kind)
	}

	var mws []middleware.Middleware
	if len(a.cfg.Store.MaskKeys) > 0 {
		mw, err := middleware.NewPIIMiddleware(a.cfg.Store.MaskKeys)
		if err != nil {
			return nil, nil, nil, errors.Join(err, closer())
		}
		mws = append(mws, mw)
	}
	if a.cfg.Store.EncryptionKey != "" {
		key, err := middleware.DecodeKey(a.cfg.Store.EncryptionKey)
		if err != nil {
			return nil, nil, nil, errors.Join(err, closer())
		}
		mw, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key})
		if err != nil {
			return nil, nil, nil, errors.Join(err, closer())
		}
		mws = append(mws, mw)
	}
	return middleware.Chain(base, mws...), backend, closer, nil
}

// engineOptions are shared by every engine the process creates.
func (a *app) engineOptions(loader ports.PackLoader, metrics *observability.Metrics) []ddt.Option {
	hooks := observability.LoggingHooks(a.logger)
	if metrics != nil {
		hooks = hooks.Merge(metrics.Hooks())
	}
	if a.cases != nil {
		hooks = hooks.Merge(a.cases.Hooks())
	}
	opts := []ddt.Option{
		ddt.WithLoader(loader),
		ddt.WithLogger(a.logger),
		ddt.WithLifecycleHooks(hooks),
	}
	if a.cfg.Session.Template {
		opts = append(opts, ddt.WithCaseTemplate(casestore.DefaultCase))
	}
	return opts
}

// newEngine creates a single engine, resuming caseID from store when given.
func (a *app) newEngine(ctx context.Context, loader ports.PackLoader, store ports.ExportStore, caseID string) (*ddt.Engine, error) {
	eng, err := ddt.New("", a.engineOptions(loader, nil)...)
	if err != nil || caseID == "" {
		return eng, err
	}
	export, err := loadCase(ctx, store, caseID)
	if err != nil {
		return nil, err
	}
	if _, err := eng.Resume(ctx, export); err != nil {
		return nil, err
	}
	return eng, nil
}

// sessions builds a session manager over the export store, with Redis
// locks when distributed locking is enabled.
func (a *app) sessions(loader ports.PackLoader, store ports.ExportStore, backend *redis.ExportStore, reg prometheus.Registerer) *session.Manager {
	var metrics *observability.Metrics
	if reg != nil {
		metrics = observability.NewMetrics(reg)
	}
	opts := a.engineOptions(loader, metrics)
	factory := func() (*ddt.Engine, error) {
		return ddt.New("", opts...)
	}

	mgrOpts := []session.Option{session.WithLogger(a.logger)}
	if a.cfg.Session.DistributedLocks && backend != nil {
		mgrOpts = append(mgrOpts,
			session.WithLocker(redis.NewLocker(backend.Client(), redis.DefaultPrefix, redis.WithRetryInterval(50*time.Millisecond))),
			session.WithLockTTL(a.cfg.Session.LockTTL),
		)
	}
	return session.NewManager(factory, store, mgrOpts...)
}

// watch invalidates cached packs on source changes until ctx is done.
func (a *app) watch(ctx context.Context, loader *pack.Loader) {
	if !a.cfg.Packs.Watch {
		return
	}
	if err := loader.Watch(ctx); err != nil {
		a.logger.Warn("pack watching unavailable", "err", err)
		return
	}
	a.logger.Info("watching packs for changes")
}

func loadCase(ctx context.Context, store ports.ExportStore, caseID string) (*domain.CaseExport, error) {
	export, err := store.Load(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to load case %s: %w", caseID, err)
	}
	return export, nil
}
