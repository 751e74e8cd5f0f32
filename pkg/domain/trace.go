package domain

import "time"

// TraceKind categorizes an audit trail entry.
type TraceKind string

const (
	TraceEnter   TraceKind = "enter"
	TraceAnswer  TraceKind = "answer"
	TraceAck     TraceKind = "ack"
	TraceBack    TraceKind = "back"
	TraceHandoff TraceKind = "handoff"
	TraceError   TraceKind = "error"
)

// TraceEntry is one immutable line of the audit trail. Fields beyond Kind and
// NodeID are populated depending on the kind.
type TraceEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Kind      TraceKind `json:"kind"`
	PackID    string    `json:"packId,omitempty"`
	NodeID    string    `json:"nodeId,omitempty"`
	NodeType  NodeType  `json:"nodeType,omitempty"`
	Title     string    `json:"title,omitempty"`

	// Answer is the selected choice key (answer).
	Answer string `json:"answer,omitempty"`
	// To is the node entered by the transition (answer, ack, back).
	To string `json:"to,omitempty"`
	// ToPack is the destination pack (handoff, back across packs).
	ToPack string `json:"toPack,omitempty"`
	Reason string `json:"reason,omitempty"`

	// Message describes the failure (error).
	Message string `json:"message,omitempty"`
}
