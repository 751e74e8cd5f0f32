package ddt

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/ddt-tool/ddt/internal/runtime"
	"github.com/ddt-tool/ddt/pkg/adapters/file"
	"github.com/ddt-tool/ddt/pkg/casestore"
	"github.com/ddt-tool/ddt/pkg/domain"
	"github.com/ddt-tool/ddt/pkg/effects"
	"github.com/ddt-tool/ddt/pkg/pack"
	"github.com/ddt-tool/ddt/pkg/ports"
)

// Phase is the lifecycle position of an Engine.
type Phase = runtime.Phase

const (
	PhaseIdle      = runtime.PhaseIdle
	PhaseReady     = runtime.PhaseReady
	PhaseActive    = runtime.PhaseActive
	PhaseCompleted = runtime.PhaseCompleted
	PhaseLoading   = runtime.PhaseLoading
)

// Engine is the high-level entry point of the library. It drives one case
// through decision packs and wraps the internal runtime with pack acquisition
// and a case store.
type Engine struct {
	runtime  *runtime.Engine
	loader   ports.PackLoader
	store    ports.CaseStore
	template casestore.TemplateFunc
	hooks    domain.LifecycleHooks
	renderer ports.Renderer
	notes    ports.NotesObserver
	logger   *slog.Logger
	Name     string
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = e.hooks.Merge(hooks)
	}
}

// WithLoader injects a custom PackLoader, bypassing the default directory source.
func WithLoader(l ports.PackLoader) Option {
	return func(e *Engine) {
		e.loader = l
	}
}

// WithSource loads packs from a custom source through the standard normalizer.
func WithSource(src ports.PackSource) Option {
	return func(e *Engine) {
		e.loader = pack.NewLoader(src, pack.WithLoaderLogger(e.logger))
	}
}

// WithStore binds an existing case store instead of a fresh one.
func WithStore(store ports.CaseStore) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithCaseTemplate seeds new cases from tmpl, e.g. casestore.DefaultCase.
func WithCaseTemplate(tmpl casestore.TemplateFunc) Option {
	return func(e *Engine) {
		e.template = tmpl
	}
}

// WithRenderer sets the collaborator notified after every transition.
func WithRenderer(r ports.Renderer) Option {
	return func(e *Engine) {
		e.renderer = r
	}
}

// WithNotesObserver sets the collaborator told about every shown node.
func WithNotesObserver(n ports.NotesObserver) Option {
	return func(e *Engine) {
		e.notes = n
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// New initializes an Engine.
// By default packs are read from packsDir. If WithLoader or WithSource is given,
// packsDir may be empty and is only used as a label.
func New(packsDir string, opts ...Option) (*Engine, error) {
	eng := &Engine{logger: slog.New(slog.NewJSONHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.loader == nil {
		if packsDir == "" {
			return nil, fmt.Errorf("packsDir is required when no custom loader is provided")
		}
		absPath, err := filepath.Abs(packsDir)
		if err != nil {
			return nil, fmt.Errorf("invalid path: %w", err)
		}
		eng.loader = pack.NewLoader(file.NewSource(absPath, file.WithLogger(eng.logger)), pack.WithLoaderLogger(eng.logger))
	}
	if packsDir != "" {
		eng.Name = filepath.Base(packsDir)
		eng.logger = eng.logger.With("packs", eng.Name)
	}

	if eng.store == nil {
		var storeOpts []casestore.Option
		if eng.template != nil {
			storeOpts = append(storeOpts, casestore.WithTemplate(eng.template))
		}
		eng.store = casestore.New(storeOpts...)
	}

	runtimeOpts := []runtime.Option{
		runtime.WithLogger(eng.logger),
		runtime.WithLifecycleHooks(eng.hooks),
		runtime.WithPackLoader(eng.loader),
		runtime.WithApplicator(effects.New(effects.WithLogger(eng.logger))),
	}
	if eng.renderer != nil {
		runtimeOpts = append(runtimeOpts, runtime.WithRenderer(eng.renderer))
	}
	if eng.notes != nil {
		runtimeOpts = append(runtimeOpts, runtime.WithNotesObserver(eng.notes))
	}
	eng.runtime = runtime.NewEngine(runtimeOpts...)

	return eng, nil
}

// Open acquires packID, binds it and starts the case at its entry node.
// On failure the engine is left as it was.
func (e *Engine) Open(ctx context.Context, packID string) (domain.View, error) {
	p, err := e.loader.Load(ctx, packID)
	if err != nil {
		return domain.View{}, err
	}
	return e.OpenPack(ctx, p)
}

// OpenPack binds an already normalized pack and starts it.
func (e *Engine) OpenPack(ctx context.Context, p *domain.Pack) (domain.View, error) {
	if err := e.runtime.LoadPack(p, e.store); err != nil {
		return domain.View{}, err
	}
	return e.runtime.Start(ctx)
}

// Resume continues a case from an export, e.g. one read from an ExportStore.
// The pack is acquired again; undo history does not survive an export.
func (e *Engine) Resume(ctx context.Context, export *domain.CaseExport) (domain.View, error) {
	if export == nil {
		return domain.View{}, fmt.Errorf("%w: nil export", domain.ErrCaseNotFound)
	}
	p, err := e.loader.Load(ctx, export.Meta.PackID)
	if err != nil {
		return domain.View{}, err
	}
	var storeOpts []casestore.Option
	if e.template != nil {
		storeOpts = append(storeOpts, casestore.WithTemplate(e.template))
	}
	store := casestore.FromExport(export, storeOpts...)
	if err := e.runtime.Resume(p, store); err != nil {
		return domain.View{}, err
	}
	e.store = store
	return e.runtime.Refresh(ctx)
}

// LoadPack binds p without rendering. Call Start to enter it.
func (e *Engine) LoadPack(p *domain.Pack) error {
	return e.runtime.LoadPack(p, e.store)
}

// Start enters the entry node of the bound pack.
func (e *Engine) Start(ctx context.Context) (domain.View, error) {
	return e.runtime.Start(ctx)
}

// Answer selects a choice of the current decision node.
func (e *Engine) Answer(ctx context.Context, key string) (domain.View, error) {
	return e.runtime.Answer(ctx, key)
}

// Continue advances an info or connector node.
func (e *Engine) Continue(ctx context.Context) (domain.View, error) {
	return e.runtime.Continue(ctx)
}

// Handoff follows the current handoff node into its target pack.
func (e *Engine) Handoff(ctx context.Context) (domain.View, error) {
	return e.runtime.Handoff(ctx)
}

// Back undoes the last forward transition.
func (e *Engine) Back(ctx context.Context) (domain.View, error) {
	return e.runtime.Back(ctx)
}

// Refresh re-renders the current node without changing anything.
func (e *Engine) Refresh(ctx context.Context) (domain.View, error) {
	return e.runtime.Refresh(ctx)
}

// Restart resets the case and starts the bound pack again.
func (e *Engine) Restart(ctx context.Context) (domain.View, error) {
	return e.runtime.Restart(ctx)
}

// Do performs a view action.
func (e *Engine) Do(ctx context.Context, action domain.Action) (domain.View, error) {
	switch action.Kind {
	case domain.ActionAnswer:
		return e.Answer(ctx, action.Key)
	case domain.ActionContinue:
		return e.Continue(ctx)
	case domain.ActionHandoff:
		return e.Handoff(ctx)
	case domain.ActionRestart:
		return e.Restart(ctx)
	}
	return domain.View{}, fmt.Errorf("%w: %q", domain.ErrInvalidAction, action.Kind)
}

// View returns the current view without notifying collaborators.
func (e *Engine) View() (domain.View, error) {
	return e.runtime.View()
}

// Phase returns the lifecycle phase.
func (e *Engine) Phase() Phase {
	return e.runtime.Phase()
}

// Pack returns the bound pack, or nil.
func (e *Engine) Pack() *domain.Pack {
	return e.runtime.Pack()
}

// Store returns the case store.
func (e *Engine) Store() ports.CaseStore {
	return e.store
}

// Export returns the {meta, state, trace} snapshot of the case.
func (e *Engine) Export() *domain.CaseExport {
	return e.store.Export()
}

// Loader returns the pack loader used by the engine.
func (e *Engine) Loader() ports.PackLoader {
	return e.loader
}

// Watch invalidates cached packs when the underlying source changes.
// Returns an error if the loader does not support watching.
func (e *Engine) Watch(ctx context.Context) error {
	if l, ok := e.loader.(*pack.Loader); ok {
		return l.Watch(ctx)
	}
	return fmt.Errorf("current loader does not support watching")
}
