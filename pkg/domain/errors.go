package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoPack is returned when an operation requires a bound pack.
	ErrNoPack = errors.New("no pack loaded")
	// ErrNotStarted is returned when a transition is requested before Start.
	ErrNotStarted = errors.New("session not started")
	// ErrBusy is returned when a request arrives while another one is in flight.
	ErrBusy = errors.New("engine busy")
	// ErrNodeNotFound is returned when a node id does not resolve in the bound pack.
	ErrNodeNotFound = errors.New("node not found")
	// ErrUnknownChoice is returned when an answer key matches no choice.
	ErrUnknownChoice = errors.New("unknown choice")
	// ErrTerminalNode is returned when a forward transition is requested from a terminal node.
	ErrTerminalNode = errors.New("node is terminal")
	// ErrInvalidAction is returned when the action does not apply to the current node type.
	ErrInvalidAction = errors.New("action not valid for node")
	// ErrMissingHandoffTarget is returned when a handoff node has no target pack.
	ErrMissingHandoffTarget = errors.New("handoff target pack missing")
	// ErrPackNotFound is returned by pack sources for unknown ids.
	ErrPackNotFound = errors.New("pack not found")
	// ErrCaseNotFound is returned when a case id cannot be found.
	ErrCaseNotFound = errors.New("case not found")
)

// ValidationError reports a structural defect in a pack document.
type ValidationError struct {
	PackID string
	NodeID string
	Choice string
	Reason string
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString("invalid pack")
	if e.PackID != "" {
		fmt.Fprintf(&b, " %q", e.PackID)
	}
	if e.NodeID != "" {
		fmt.Fprintf(&b, ": node %q", e.NodeID)
	}
	if e.Choice != "" {
		fmt.Fprintf(&b, " choice %q", e.Choice)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	return b.String()
}

// TransitionError reports a rejected transition. The session is left unchanged
// apart from an error trace entry.
type TransitionError struct {
	Op     string
	PackID string
	NodeID string
	Err    error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s at %s/%s: %v", e.Op, e.PackID, e.NodeID, e.Err)
}

func (e *TransitionError) Unwrap() error { return e.Err }

// AcquisitionError reports a pack that could not be fetched or parsed.
type AcquisitionError struct {
	PackID   string
	Resource string
	Hint     string
	Err      error
}

func (e *AcquisitionError) Error() string {
	msg := fmt.Sprintf("failed to load pack %q from %s: %v", e.PackID, e.Resource, e.Err)
	if e.Hint != "" {
		msg += " (" + e.Hint + ")"
	}
	return msg
}

func (e *AcquisitionError) Unwrap() error { return e.Err }
