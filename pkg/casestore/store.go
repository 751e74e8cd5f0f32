// Package casestore owns the per-session case bookkeeping: position, case state,
// audit trail and undo history.
package casestore

import (
	"sync"
	"time"

	"github.com/ddt-tool/ddt/pkg/domain"
	"github.com/google/uuid"
)

// TemplateFunc builds the initial case state for a case id.
type TemplateFunc func(caseID string, now time.Time) map[string]any

// Store implements ports.CaseStore in memory.
// The state map never leaves the store: reads and writes go through deep copies.
// Safe for concurrent use.
type Store struct {
	mu sync.RWMutex

	id       string
	meta     domain.CaseMeta
	state    map[string]any
	trace    []domain.TraceEntry
	history  []domain.HistoryFrame
	template TemplateFunc

	now       func() time.Time
	lastStamp time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used to stamp trace entries.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithTemplate seeds the case state on creation and on every Reset.
func WithTemplate(tmpl TemplateFunc) Option {
	return func(s *Store) {
		s.template = tmpl
	}
}

// WithID sets the case id instead of generating one.
func WithID(id string) Option {
	return func(s *Store) {
		s.id = id
	}
}

// New creates an empty case.
func New(opts ...Option) *Store {
	s := &Store{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if s.id == "" {
		s.id = uuid.NewString()
	}
	s.reset()
	return s
}

// FromExport rehydrates a case from an export. History is not part of an export,
// so the restored case cannot go back past this point.
func FromExport(export *domain.CaseExport, opts ...Option) *Store {
	s := New(append([]Option{WithID(export.CaseID)}, opts...)...)
	s.state = domain.CloneState(export.State)
	s.trace = append([]domain.TraceEntry(nil), export.Trace...)
	s.meta = export.Meta
	s.meta.StepCount = len(s.trace)
	if n := len(s.trace); n > 0 {
		s.lastStamp = s.trace[n-1].Timestamp
	}
	return s
}

// ID returns the case id. It is stable across Reset.
func (s *Store) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

func (s *Store) Meta() domain.CaseMeta {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meta
}

// SetMeta sets the position. StepCount always mirrors the trace length.
func (s *Store) SetMeta(meta domain.CaseMeta) {
	s.mu.Lock()
	defer s.mu.Unlock()
	meta.StepCount = len(s.trace)
	s.meta = meta
}

// State returns a deep copy of the case state.
func (s *Store) State() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.CloneState(s.state)
}

// ReplaceState replaces the whole case state. There is no merge.
func (s *Store) ReplaceState(state map[string]any) {
	cp := domain.CloneState(state)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = cp
}

// AppendTrace stamps entry and appends it. Timestamps never go backwards.
func (s *Store) AppendTrace(entry domain.TraceEntry) domain.TraceEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := s.now().UTC()
	if ts.Before(s.lastStamp) {
		ts = s.lastStamp
	}
	s.lastStamp = ts
	entry.Timestamp = ts
	s.trace = append(s.trace, entry)
	s.meta.StepCount = len(s.trace)
	return entry
}

// Trace returns a copy of the audit trail.
func (s *Store) Trace() []domain.TraceEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.TraceEntry(nil), s.trace...)
}

func (s *Store) PushHistory(packID, nodeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, domain.HistoryFrame{
		PackID:        packID,
		NodeID:        nodeID,
		StateSnapshot: domain.CloneState(s.state),
		TraceLength:   len(s.trace),
	})
}

// PeekHistory returns a copy of the top frame without removing it.
func (s *Store) PeekHistory() (domain.HistoryFrame, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.history) == 0 {
		return domain.HistoryFrame{}, false
	}
	f := s.history[len(s.history)-1]
	f.StateSnapshot = domain.CloneState(f.StateSnapshot)
	return f, true
}

// PopHistory removes and returns the top frame. It returns false when empty.
func (s *Store) PopHistory() (domain.HistoryFrame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.history)
	if n == 0 {
		return domain.HistoryFrame{}, false
	}
	f := s.history[n-1]
	s.history[n-1] = domain.HistoryFrame{}
	s.history = s.history[:n-1]
	return f, true
}

func (s *Store) CanGoBack() bool {
	return s.HistoryDepth() > 0
}

func (s *Store) HistoryDepth() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}

// Reset clears meta, trace and history and reseeds the state from the template.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}

func (s *Store) reset() {
	s.meta = domain.CaseMeta{}
	s.trace = nil
	s.history = nil
	s.lastStamp = time.Time{}
	if s.template != nil {
		s.state = domain.CloneState(s.template(s.id, s.now().UTC()))
	} else {
		s.state = make(map[string]any)
	}
}

// Export returns a read-only snapshot of meta, state and trace.
func (s *Store) Export() *domain.CaseExport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &domain.CaseExport{
		CaseID:     s.id,
		Meta:       s.meta,
		State:      domain.CloneState(s.state),
		Trace:      append([]domain.TraceEntry(nil), s.trace...),
		ExportedAt: s.now().UTC(),
	}
}
