package runner

import (
	"context"

	"github.com/ddt-tool/ddt/pkg/domain"
)

// IOHandler defines the strategy for interacting with the user.
// This allows switching between Text (CLI/TUI) and JSON (Structured) modes.
type IOHandler interface {
	// Output presents the view of the current node.
	Output(ctx context.Context, view domain.View) error

	// Input reads one command from the user.
	Input(ctx context.Context) (string, error)

	// SystemOutput presents a meta-message (errors, status) distinct from node content.
	SystemOutput(ctx context.Context, msg string) error
}

// ContentRenderer transforms markdown before it is written, e.g. into ANSI.
type ContentRenderer func(string) (string, error)
