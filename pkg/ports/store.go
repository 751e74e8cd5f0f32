package ports

import (
	"context"

	"github.com/ddt-tool/ddt/pkg/domain"
)

// CaseStore is the per-session bookkeeping the engine drives: position, case state,
// audit trail and undo history.
type CaseStore interface {
	ID() string

	Meta() domain.CaseMeta
	SetMeta(meta domain.CaseMeta)

	// State returns a deep copy of the case state.
	State() map[string]any
	// ReplaceState replaces the whole case state with a deep copy of state.
	ReplaceState(state map[string]any)

	// AppendTrace stamps and appends an entry. StepCount follows the trace length.
	AppendTrace(entry domain.TraceEntry) domain.TraceEntry
	Trace() []domain.TraceEntry

	// PushHistory records an undo point at packID/nodeID with a private copy of
	// the current state and the current trace length.
	PushHistory(packID, nodeID string)
	PeekHistory() (domain.HistoryFrame, bool)
	PopHistory() (domain.HistoryFrame, bool)
	CanGoBack() bool
	HistoryDepth() int

	// Reset empties trace and history and reinitializes meta and state.
	Reset()
	Export() *domain.CaseExport
}

// ExportStore persists case exports outside the process.
type ExportStore interface {
	Save(ctx context.Context, export *domain.CaseExport) error

	// Load returns domain.ErrCaseNotFound if the case does not exist.
	Load(ctx context.Context, caseID string) (*domain.CaseExport, error)

	Delete(ctx context.Context, caseID string) error

	// List returns the ids of all stored cases.
	List(ctx context.Context) ([]string, error)
}
