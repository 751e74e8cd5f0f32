package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ddt-tool/ddt"
	"github.com/ddt-tool/ddt/internal/logging"
	"github.com/ddt-tool/ddt/pkg/adapters/memory"
	"github.com/ddt-tool/ddt/pkg/domain"
	"github.com/ddt-tool/ddt/pkg/ports"
)

// DefaultLockTTL bounds how long a distributed session lock is held.
const DefaultLockTTL = 30 * time.Second

// EngineFactory builds a fresh, idle engine for a new or resumed case.
type EngineFactory func() (*ddt.Engine, error)

// Operation is one request against a case engine.
type Operation func(ctx context.Context, eng *ddt.Engine) (domain.View, error)

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates case access, ensuring safe concurrent operations.
// It uses reference counting to garbage collect unused locks.
type Manager struct {
	factory EngineFactory
	store   ports.ExportStore

	mu      sync.Mutex            // guards locks and engines
	locks   map[string]*lockEntry // active locks
	engines map[string]*ddt.Engine

	locker  ports.DistributedLocker
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the distributed lock TTL.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a Manager. If store is nil, exports are kept in memory.
func NewManager(factory EngineFactory, store ports.ExportStore, opts ...Option) *Manager {
	if store == nil {
		store = memory.NewExportStore()
	}
	m := &Manager{
		factory: factory,
		store:   store,
		locks:   make(map[string]*lockEntry),
		engines: make(map[string]*ddt.Engine),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(caseID) after unlocking.
func (m *Manager) acquire(caseID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[caseID]
	if !exists {
		entry = &lockEntry{}
		m.locks[caseID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(caseID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[caseID]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, caseID)
	}
}

// activeLocks reports the number of live lock entries.
func (m *Manager) activeLocks() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}

// WithLock executes fn while holding the lock for the case.
func (m *Manager) WithLock(ctx context.Context, caseID string, fn func(context.Context) error) error {
	entry := m.acquire(caseID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(caseID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, caseID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("failed to release distributed lock (will expire via TTL)",
					"case_id", caseID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

// Create opens packID in a new case and returns its id and first view.
func (m *Manager) Create(ctx context.Context, packID string) (string, domain.View, error) {
	eng, err := m.factory()
	if err != nil {
		return "", domain.View{}, fmt.Errorf("failed to create engine: %w", err)
	}
	caseID := eng.Store().ID()

	var view domain.View
	err = m.WithLock(ctx, caseID, func(ctx context.Context) error {
		var err error
		if view, err = eng.Open(ctx, packID); err != nil {
			return err
		}
		m.mu.Lock()
		m.engines[caseID] = eng
		m.mu.Unlock()
		return m.save(ctx, eng)
	})
	if err != nil {
		return "", domain.View{}, err
	}
	m.logger.Info("case created", "case_id", caseID, "pack_id", packID)
	return caseID, view, nil
}

// Do runs op against the case under its lock and exports the case afterwards.
// The export also runs when op fails, so error trace entries are persisted.
func (m *Manager) Do(ctx context.Context, caseID string, op Operation) (domain.View, error) {
	var view domain.View
	err := m.WithLock(ctx, caseID, func(ctx context.Context) error {
		eng, err := m.engine(ctx, caseID)
		if err != nil {
			return err
		}
		view, err = op(ctx, eng)
		if saveErr := m.save(ctx, eng); saveErr != nil {
			if err != nil {
				m.logger.Warn("failed to export case after rejected operation", "case_id", caseID, "err", saveErr)
				return err
			}
			return saveErr
		}
		return err
	})
	return view, err
}

// Answer selects a choice on the case's current decision node.
func (m *Manager) Answer(ctx context.Context, caseID, key string) (domain.View, error) {
	return m.Do(ctx, caseID, func(ctx context.Context, eng *ddt.Engine) (domain.View, error) {
		return eng.Answer(ctx, key)
	})
}

// Continue advances an info or connector node.
func (m *Manager) Continue(ctx context.Context, caseID string) (domain.View, error) {
	return m.Do(ctx, caseID, func(ctx context.Context, eng *ddt.Engine) (domain.View, error) {
		return eng.Continue(ctx)
	})
}

// Handoff follows the current handoff node.
func (m *Manager) Handoff(ctx context.Context, caseID string) (domain.View, error) {
	return m.Do(ctx, caseID, func(ctx context.Context, eng *ddt.Engine) (domain.View, error) {
		return eng.Handoff(ctx)
	})
}

// Back undoes the last forward transition.
func (m *Manager) Back(ctx context.Context, caseID string) (domain.View, error) {
	return m.Do(ctx, caseID, func(ctx context.Context, eng *ddt.Engine) (domain.View, error) {
		return eng.Back(ctx)
	})
}

// Restart resets the case and re-enters its current pack.
func (m *Manager) Restart(ctx context.Context, caseID string) (domain.View, error) {
	return m.Do(ctx, caseID, func(ctx context.Context, eng *ddt.Engine) (domain.View, error) {
		return eng.Restart(ctx)
	})
}

// View returns the current view of the case.
func (m *Manager) View(ctx context.Context, caseID string) (domain.View, error) {
	return m.Do(ctx, caseID, func(_ context.Context, eng *ddt.Engine) (domain.View, error) {
		return eng.View()
	})
}

// Export returns the latest export of the case.
func (m *Manager) Export(ctx context.Context, caseID string) (*domain.CaseExport, error) {
	m.mu.Lock()
	eng, ok := m.engines[caseID]
	m.mu.Unlock()
	if ok {
		var export *domain.CaseExport
		err := m.WithLock(ctx, caseID, func(context.Context) error {
			export = eng.Export()
			return nil
		})
		return export, err
	}
	return m.store.Load(ctx, caseID)
}

// Engine returns the engine of the case, resuming it from its export if needed.
// Callers must not drive the engine outside Do.
func (m *Manager) Engine(ctx context.Context, caseID string) (*ddt.Engine, error) {
	var eng *ddt.Engine
	err := m.WithLock(ctx, caseID, func(ctx context.Context) error {
		var err error
		eng, err = m.engine(ctx, caseID)
		return err
	})
	return eng, err
}

// Delete forgets the case and removes its export.
// Returns domain.ErrCaseNotFound if the case is unknown.
func (m *Manager) Delete(ctx context.Context, caseID string) error {
	return m.WithLock(ctx, caseID, func(ctx context.Context) error {
		m.mu.Lock()
		_, inMemory := m.engines[caseID]
		delete(m.engines, caseID)
		m.mu.Unlock()

		if !inMemory {
			if _, err := m.store.Load(ctx, caseID); err != nil {
				return err
			}
		}
		if err := m.store.Delete(ctx, caseID); err != nil && !errors.Is(err, domain.ErrCaseNotFound) {
			return err
		}
		m.logger.Info("case deleted", "case_id", caseID)
		return nil
	})
}

// List returns the ids of all known cases, sorted.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	stored, err := m.store.List(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(stored))
	ids := make([]string, 0, len(stored))
	for _, id := range stored {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	m.mu.Lock()
	for id := range m.engines {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	m.mu.Unlock()
	sort.Strings(ids)
	return ids, nil
}

// Store returns the underlying export store.
func (m *Manager) Store() ports.ExportStore {
	return m.store
}

// engine must be called with the case lock held.
func (m *Manager) engine(ctx context.Context, caseID string) (*ddt.Engine, error) {
	m.mu.Lock()
	eng, ok := m.engines[caseID]
	m.mu.Unlock()
	if ok {
		return eng, nil
	}

	export, err := m.store.Load(ctx, caseID)
	if err != nil {
		return nil, err
	}
	eng, err = m.factory()
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	if _, err := eng.Resume(ctx, export); err != nil {
		return nil, fmt.Errorf("failed to resume case %s: %w", caseID, err)
	}

	m.mu.Lock()
	m.engines[caseID] = eng
	m.mu.Unlock()
	m.logger.Debug("case resumed", "case_id", caseID, "pack_id", export.Meta.PackID)
	return eng, nil
}

func (m *Manager) save(ctx context.Context, eng *ddt.Engine) error {
	if eng.Phase() == ddt.PhaseIdle {
		return nil
	}
	export := eng.Export()
	if err := m.store.Save(ctx, export); err != nil {
		return fmt.Errorf("failed to export case %s: %w", export.CaseID, err)
	}
	return nil
}
