package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/ddt-tool/ddt"
	"github.com/ddt-tool/ddt/pkg/domain"
	"github.com/ddt-tool/ddt/pkg/ports"
)

// Runner handles the execution loop of a ddt engine using the provided IO.
type Runner struct {
	// Handler is the strategy for IO. Defaults to a TextHandler on stdin/stdout.
	Handler IOHandler

	// Logger is used for internal debug logging. Defaults to a no-op logger.
	Logger *slog.Logger

	// Store receives the case export after every successful step. Optional.
	Store ports.ExportStore

	// Headless stops the loop when a terminal node is reached.
	Headless bool
}

// NewRunner creates a new Runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.Handler == nil {
		r.Handler = NewTextHandler(os.Stdin, os.Stdout)
	}
	return r
}

// Run drives eng until the user quits, input ends or ctx is cancelled.
// An idle engine is opened on packID; otherwise the current case is resumed.
// Transition errors are reported through the handler and the loop continues.
func (r *Runner) Run(ctx context.Context, eng *ddt.Engine, packID string) error {
	signals := NewSignalManager(ctx)
	defer signals.Stop()
	ctx = signals.Context()

	var (
		view domain.View
		err  error
	)
	if eng.Phase() == ddt.PhaseIdle {
		view, err = eng.Open(ctx, packID)
	} else {
		view, err = eng.Refresh(ctx)
	}
	if err != nil {
		return err
	}
	if err := r.save(ctx, eng); err != nil {
		return err
	}

	render := true
	for {
		if render {
			if err := r.Handler.Output(ctx, view); err != nil {
				return fmt.Errorf("output error: %w", err)
			}
			if view.Terminal && r.Headless {
				return nil
			}
		}

		next, quit, err := r.step(ctx, eng, view)
		if quit {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				r.Logger.Debug("runner interrupted", "signal", signals.Signal(), "err", ctx.Err())
				return nil
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			var fatal *fatalError
			if errors.As(err, &fatal) {
				return fatal.err
			}
			r.Logger.Debug("step rejected", "node_id", view.NodeID, "err", err)
			if err := r.Handler.SystemOutput(ctx, err.Error()); err != nil {
				return err
			}
			render = false
			continue
		}
		view, render = next, true
	}
}

type fatalError struct{ err error }

func (e *fatalError) Error() string { return e.err.Error() }

// step reads one command and performs it.
func (r *Runner) step(ctx context.Context, eng *ddt.Engine, view domain.View) (domain.View, bool, error) {
	input, err := r.Handler.Input(ctx)
	if err != nil {
		if errors.Is(err, io.EOF) || ctx.Err() != nil {
			return view, false, err
		}
		return view, false, &fatalError{fmt.Errorf("input error: %w", err)}
	}

	cmd, err := ParseCommand(input, view)
	if err != nil {
		return view, false, err
	}

	var next domain.View
	switch cmd.Kind {
	case CommandQuit:
		return view, true, nil
	case CommandHelp:
		return view, false, errors.New("enter an option number or key, b to go back, r to restart, v to refresh, q to quit")
	case CommandBack:
		next, err = eng.Back(ctx)
	case CommandRestart:
		next, err = eng.Restart(ctx)
	case CommandRefresh:
		next, err = eng.Refresh(ctx)
	default:
		next, err = eng.Do(ctx, cmd.Action)
	}
	if err != nil {
		return view, false, err
	}
	if err := r.save(ctx, eng); err != nil {
		return next, false, &fatalError{err}
	}
	return next, false, nil
}

func (r *Runner) save(ctx context.Context, eng *ddt.Engine) error {
	if r.Store == nil {
		return nil
	}
	export := eng.Export()
	if err := r.Store.Save(ctx, export); err != nil {
		return fmt.Errorf("failed to export case %s: %w", export.CaseID, err)
	}
	r.Logger.Debug("case exported", "case_id", export.CaseID, "node_id", export.Meta.NodeID)
	return nil
}
