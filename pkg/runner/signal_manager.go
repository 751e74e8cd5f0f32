package runner

import (
	"context"
	"os"

	"github.com/aretw0/lifecycle"
	"github.com/aretw0/lifecycle/pkg/core/signal"
)

// SignalManager turns SIGINT and SIGTERM into context cancellation for a run.
type SignalManager struct {
	sc *signal.Context
}

// NewSignalManager starts listening for signals on top of parent.
func NewSignalManager(parent context.Context) *SignalManager {
	return &SignalManager{sc: lifecycle.NewSignalContext(parent)}
}

// Context is cancelled on the first signal, on Stop, or when parent is done.
func (sm *SignalManager) Context() context.Context {
	return sm.sc
}

// Signal returns the signal that cancelled the run, or nil.
func (sm *SignalManager) Signal() os.Signal {
	return sm.sc.Signal()
}

// Stop releases the signal listener and cancels the run context.
func (sm *SignalManager) Stop() {
	sm.sc.Stop()
	sm.sc.Cancel()
}
