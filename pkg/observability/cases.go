package observability

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/introspection"
	"github.com/ddt-tool/ddt/pkg/domain"
)

// CaseComponentType identifies case state changes in aggregated snapshots.
const CaseComponentType = "ddt.case"

// CaseStatus is the last observed position of one case.
type CaseStatus struct {
	CaseID    string           `json:"case_id"`
	PackID    string           `json:"pack_id"`
	NodeID    string           `json:"node_id"`
	NodeType  domain.NodeType  `json:"node_type"`
	Steps     int              `json:"steps"`
	Errors    int              `json:"errors"`
	LastKind  domain.TraceKind `json:"last_kind,omitempty"`
	LastError string           `json:"last_error,omitempty"`
	Completed bool             `json:"completed"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// CaseWatcher tracks every case it sees through lifecycle hooks and
// implements introspection.TypedWatcher[CaseStatus].
type CaseWatcher struct {
	mu     sync.RWMutex
	cases  map[string]CaseStatus
	latest string

	watchersMu sync.RWMutex
	watchers   []chan introspection.StateChange[CaseStatus]
}

var (
	_ introspection.TypedWatcher[CaseStatus] = (*CaseWatcher)(nil)
	_ introspection.Component                = (*CaseWatcher)(nil)
)

// NewCaseWatcher creates an empty watcher.
func NewCaseWatcher() *CaseWatcher {
	return &CaseWatcher{cases: make(map[string]CaseStatus)}
}

// ComponentType implements introspection.Component.
func (w *CaseWatcher) ComponentType() string {
	return CaseComponentType
}

// State returns the status of the most recently updated case.
func (w *CaseWatcher) State() CaseStatus {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cases[w.latest]
}

// Case returns the status of one case.
func (w *CaseWatcher) Case(caseID string) (CaseStatus, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	s, ok := w.cases[caseID]
	return s, ok
}

// Cases returns all tracked cases ordered by id.
func (w *CaseWatcher) Cases() []CaseStatus {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]CaseStatus, 0, len(w.cases))
	for _, s := range w.cases {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CaseID < out[j].CaseID })
	return out
}

// Forget drops a case, e.g. after it is deleted.
func (w *CaseWatcher) Forget(caseID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.cases, caseID)
	if w.latest == caseID {
		w.latest = ""
	}
}

// Watch streams case state changes until ctx is done.
// Slow consumers miss changes instead of blocking the engine.
func (w *CaseWatcher) Watch(ctx context.Context) <-chan introspection.StateChange[CaseStatus] {
	ch := make(chan introspection.StateChange[CaseStatus], 16)

	w.watchersMu.Lock()
	w.watchers = append(w.watchers, ch)
	w.watchersMu.Unlock()

	go func() {
		<-ctx.Done()
		w.watchersMu.Lock()
		defer w.watchersMu.Unlock()
		for i, c := range w.watchers {
			if c == ch {
				w.watchers = append(w.watchers[:i], w.watchers[i+1:]...)
				break
			}
		}
		close(ch)
	}()
	return ch
}

// Hooks returns lifecycle hooks feeding the watcher.
func (w *CaseWatcher) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(_ context.Context, e *domain.NodeEvent) {
			w.update(e.CaseID, e.Timestamp, func(s *CaseStatus) {
				s.PackID = e.PackID
				s.NodeID = e.NodeID
				s.NodeType = e.NodeType
				s.Completed = e.NodeType == domain.NodeTypeOutcome
			})
		},
		OnTransition: func(_ context.Context, e *domain.TransitionEvent) {
			w.update(e.CaseID, e.Timestamp, func(s *CaseStatus) {
				s.Steps++
				s.LastKind = e.Kind
				s.LastError = ""
				if e.Kind == domain.TraceAnswer && e.ToNode == "" {
					s.Completed = true
				}
			})
		},
		OnError: func(_ context.Context, e *domain.TransitionEvent) {
			w.update(e.CaseID, e.Timestamp, func(s *CaseStatus) {
				s.Errors++
				s.LastKind = e.Kind
				if e.Err != nil {
					s.LastError = e.Err.Error()
				}
			})
		},
	}
}

func (w *CaseWatcher) update(caseID string, at time.Time, fn func(*CaseStatus)) {
	if caseID == "" {
		return
	}
	if at.IsZero() {
		at = time.Now()
	}

	w.mu.Lock()
	old := w.cases[caseID]
	next := old
	next.CaseID = caseID
	fn(&next)
	next.UpdatedAt = at
	w.cases[caseID] = next
	w.latest = caseID
	w.mu.Unlock()

	w.emit(introspection.StateChange[CaseStatus]{
		ComponentID:   caseID,
		ComponentType: CaseComponentType,
		OldState:      old,
		NewState:      next,
		Timestamp:     at,
	})
}

func (w *CaseWatcher) emit(change introspection.StateChange[CaseStatus]) {
	w.watchersMu.RLock()
	defer w.watchersMu.RUnlock()
	for _, ch := range w.watchers {
		select {
		case ch <- change:
		default:
		}
	}
}

// Aggregator merges the state streams of several watchers, such as a
// CaseWatcher and a lifecycle signal context, into one snapshot stream.
type Aggregator struct {
	watchers []any
}

// NewAggregator creates an aggregator over watchers. Each must implement
// introspection.Component and a Watch(ctx) method.
func NewAggregator(watchers ...any) *Aggregator {
	return &Aggregator{watchers: watchers}
}

// Add registers another watcher.
func (a *Aggregator) Add(w any) {
	a.watchers = append(a.watchers, w)
}

// Watch returns the merged snapshots; the channel closes when ctx is done.
func (a *Aggregator) Watch(ctx context.Context) <-chan introspection.StateSnapshot {
	return introspection.AggregateWatchers(ctx, a.watchers...)
}
