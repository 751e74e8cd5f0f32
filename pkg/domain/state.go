package domain

import (
	"time"

	"github.com/mohae/deepcopy"
)

// CaseMeta is the denormalized "where we are" of a session.
type CaseMeta struct {
	PackID    string `json:"packId"`
	NodeID    string `json:"nodeId"`
	StepCount int    `json:"stepCount"`
}

// HistoryFrame captures the position and a private copy of the case state
// immediately before a forward transition.
type HistoryFrame struct {
	PackID        string         `json:"packId"`
	NodeID        string         `json:"nodeId"`
	StateSnapshot map[string]any `json:"stateSnapshot"`
	TraceLength   int            `json:"traceLength"`
}

// CaseExport is the read-only snapshot handed to persistence and export collaborators.
type CaseExport struct {
	CaseID     string         `json:"caseId"`
	Meta       CaseMeta       `json:"meta"`
	State      map[string]any `json:"state"`
	Trace      []TraceEntry   `json:"trace"`
	ExportedAt time.Time      `json:"exportedAt"`
}

// CloneState returns a structurally independent copy of a case state.
// A nil state clones to an empty map.
func CloneState(state map[string]any) map[string]any {
	if state == nil {
		return make(map[string]any)
	}
	out, ok := deepcopy.Copy(state).(map[string]any)
	if !ok || out == nil {
		return make(map[string]any)
	}
	return out
}

// CloneValue deep-copies an arbitrary value taken from a case state or an effect descriptor.
func CloneValue(v any) any {
	if v == nil {
		return nil
	}
	return deepcopy.Copy(v)
}

// Clone returns a copy of the export that shares nothing with the original.
func (e *CaseExport) Clone() *CaseExport {
	if e == nil {
		return nil
	}
	out := *e
	out.State = CloneState(e.State)
	out.Trace = append([]TraceEntry(nil), e.Trace...)
	return &out
}
