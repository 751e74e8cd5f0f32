package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ddt-tool/ddt/internal/logging"
	"github.com/ddt-tool/ddt/pkg/domain"
	"github.com/ddt-tool/ddt/pkg/effects"
	"github.com/ddt-tool/ddt/pkg/ports"
)

// Phase is the lifecycle position of an engine.
type Phase string

const (
	// PhaseIdle means no pack is bound.
	PhaseIdle Phase = "idle"
	// PhaseReady means a pack and a store are bound but the session has not started.
	PhaseReady Phase = "ready"
	// PhaseActive means a node is being shown and accepts transitions.
	PhaseActive Phase = "active"
	// PhaseCompleted means the session reached a terminal node or a terminal choice.
	PhaseCompleted Phase = "completed"
	// PhaseLoading means a pack acquisition is in flight.
	PhaseLoading Phase = "loading"
)

// Engine walks a decision pack as a state machine.
//
// An Engine serves one session. It accepts one request at a time: a request that
// arrives while another one (including a pack load) is in flight fails with
// domain.ErrBusy. Case data is only touched through the bound ports.CaseStore.
type Engine struct {
	mu    sync.Mutex
	busy  bool
	phase Phase
	pack  *domain.Pack
	store ports.CaseStore

	// packs caches every pack bound during the session so Back can cross handoffs.
	packs map[string]*domain.Pack

	loader     ports.PackLoader
	applicator *effects.Applicator
	renderer   ports.Renderer
	notes      ports.NotesObserver
	hooks      domain.LifecycleHooks
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures the Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithLifecycleHooks registers observability callbacks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = e.hooks.Merge(hooks)
	}
}

// WithRenderer sets the collaborator notified with every rendered view.
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

// WithPackLoader sets the loader used by handoffs and by Back across packs.
func WithPackLoader(l ports.PackLoader) Option {
	return func(e *Engine) {
		e.loader = l
	}
}

// WithApplicator replaces the default effect applicator.
func WithApplicator(a *effects.Applicator) Option {
	return func(e *Engine) {
		e.applicator = a
	}
}

// WithClock overrides the clock used for event timestamps and durations.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates an idle engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		phase:  PhaseIdle,
		packs:  make(map[string]*domain.Pack),
		logger: logging.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.applicator == nil {
		e.applicator = effects.New(effects.WithLogger(e.logger))
	}
	return e
}

// LoadPack validates p and binds it together with store. It does not render.
func (e *Engine) LoadPack(p *domain.Pack, store ports.CaseStore) error {
	release, err := e.begin()
	if err != nil {
		return err
	}
	defer release()

	if p == nil {
		return domain.ErrNoPack
	}
	if store == nil {
		return errors.New("case store is required")
	}
	if err := p.Validate(nil); err != nil {
		return err
	}

	e.mu.Lock()
	e.pack = p
	e.store = store
	e.packs[p.ID] = p
	e.phase = PhaseReady
	e.mu.Unlock()

	e.logger.Debug("pack bound", "pack_id", p.ID, "case_id", store.ID(), "nodes", len(p.Nodes))
	return nil
}

// Resume binds p and a store rehydrated from an export, positioned at the
// store's current node. Nothing is rendered and no trace entry is added.
func (e *Engine) Resume(p *domain.Pack, store ports.CaseStore) error {
	release, err := e.begin()
	if err != nil {
		return err
	}
	defer release()

	if p == nil {
		return domain.ErrNoPack
	}
	if store == nil {
		return errors.New("case store is required")
	}
	meta := store.Meta()
	if meta.PackID != p.ID {
		return fmt.Errorf("resume case %s of pack %q with pack %q: %w", store.ID(), meta.PackID, p.ID, domain.ErrInvalidAction)
	}
	n, ok := p.Node(meta.NodeID)
	if !ok {
		return &domain.TransitionError{Op: "resume", PackID: p.ID, NodeID: meta.NodeID, Err: domain.ErrNodeNotFound}
	}

	phase := phaseFor(n)
	if last, ok := lastTransition(store.Trace()); ok && last.Kind == domain.TraceAnswer && last.To == "" {
		phase = PhaseCompleted
	}

	e.mu.Lock()
	e.pack = p
	e.store = store
	e.packs[p.ID] = p
	e.phase = phase
	e.mu.Unlock()

	e.logger.Debug("case resumed", "pack_id", p.ID, "case_id", store.ID(), "node_id", meta.NodeID)
	return nil
}

// lastTransition returns the latest entry that moved the case. Rejected
// requests leave error entries behind and do not count.
func lastTransition(trace []domain.TraceEntry) (domain.TraceEntry, bool) {
	for i := len(trace) - 1; i >= 0; i-- {
		if trace[i].Kind != domain.TraceError {
			return trace[i], true
		}
	}
	return domain.TraceEntry{}, false
}

// Start enters the entry node of the bound pack.
func (e *Engine) Start(ctx context.Context) (domain.View, error) {
	release, err := e.begin()
	if err != nil {
		return domain.View{}, err
	}
	defer release()

	switch e.phase {
	case PhaseIdle:
		return domain.View{}, domain.ErrNoPack
	case PhaseReady:
	default:
		return domain.View{}, fmt.Errorf("start in phase %s: %w", e.phase, domain.ErrInvalidAction)
	}
	return e.enter(ctx, e.pack, e.pack.EntryNodeID, true)
}

// Restart resets the case store and starts the bound pack again.
func (e *Engine) Restart(ctx context.Context) (domain.View, error) {
	release, err := e.begin()
	if err != nil {
		return domain.View{}, err
	}
	defer release()

	if e.phase == PhaseIdle {
		return domain.View{}, domain.ErrNoPack
	}
	if !e.pack.Has(e.pack.EntryNodeID) {
		return domain.View{}, fmt.Errorf("entry %q: %w", e.pack.EntryNodeID, domain.ErrNodeNotFound)
	}

	e.store.Reset()
	e.setPhase(PhaseReady)
	e.logger.Info("case restarted", "case_id", e.store.ID(), "pack_id", e.pack.ID)
	return e.enter(ctx, e.pack, e.pack.EntryNodeID, true)
}

// Refresh re-renders the current node. It changes nothing.
func (e *Engine) Refresh(ctx context.Context) (domain.View, error) {
	release, err := e.begin()
	if err != nil {
		return domain.View{}, err
	}
	defer release()

	if err := e.requireStarted(); err != nil {
		return domain.View{}, err
	}
	return e.render(ctx)
}

// View returns the current view without notifying any collaborator.
func (e *Engine) View() (domain.View, error) {
	release, err := e.begin()
	if err != nil {
		return domain.View{}, err
	}
	defer release()

	if err := e.requireStarted(); err != nil {
		return domain.View{}, err
	}
	return e.buildView()
}

// Phase returns the current lifecycle phase.
func (e *Engine) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

// Pack returns the bound pack.
func (e *Engine) Pack() *domain.Pack {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pack
}

// Store returns the bound case store.
func (e *Engine) Store() ports.CaseStore {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store
}

// begin claims the engine for one request.
func (e *Engine) begin() (func(), error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.busy {
		return nil, domain.ErrBusy
	}
	e.busy = true
	return func() {
		e.mu.Lock()
		e.busy = false
		e.mu.Unlock()
	}, nil
}

func (e *Engine) setPhase(p Phase) {
	e.mu.Lock()
	e.phase = p
	e.mu.Unlock()
}

func (e *Engine) bind(p *domain.Pack) {
	e.mu.Lock()
	e.pack = p
	e.packs[p.ID] = p
	e.mu.Unlock()
}

func (e *Engine) requireStarted() error {
	switch e.phase {
	case PhaseIdle:
		return domain.ErrNoPack
	case PhaseReady:
		return domain.ErrNotStarted
	}
	return nil
}
