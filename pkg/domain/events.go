package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventNodeEnter  EventType = "node_enter"
	EventNodeLeave  EventType = "node_leave"
	EventTransition EventType = "transition"
	EventError      EventType = "error"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	CaseID    string    `json:"case_id"`
}

// NodeEvent represents entry into or exit from a node.
type NodeEvent struct {
	EventBase
	PackID   string   `json:"pack_id"`
	NodeID   string   `json:"node_id"`
	NodeType NodeType `json:"node_type"`
}

// TransitionEvent describes a completed or failed transition.
type TransitionEvent struct {
	EventBase
	Kind     TraceKind     `json:"kind"`
	PackID   string        `json:"pack_id"`
	FromNode string        `json:"from_node"`
	ToPack   string        `json:"to_pack,omitempty"`
	ToNode   string        `json:"to_node,omitempty"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// LifecycleHooks defines callbacks for engine observability.
// Hooks run synchronously on the transition path; nil hooks are skipped.
type LifecycleHooks struct {
	OnNodeEnter  func(context.Context, *NodeEvent)
	OnNodeLeave  func(context.Context, *NodeEvent)
	OnTransition func(context.Context, *TransitionEvent)
	OnError      func(context.Context, *TransitionEvent)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnNodeEnter:  chain(h.OnNodeEnter, other.OnNodeEnter),
		OnNodeLeave:  chain(h.OnNodeLeave, other.OnNodeLeave),
		OnTransition: chain(h.OnTransition, other.OnTransition),
		OnError:      chain(h.OnError, other.OnError),
	}
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
