/*
Package runner implements the interactive terminal loop for the ddt engine.

It is the bridge between a ddt.Engine and a person at a terminal (or a process
speaking JSON lines). The runner renders the current view, reads a command,
performs it and optionally exports the case after every successful step.

# Key Components

  - Runner: the loop. Stops on quit, end of input or interrupt.
  - IOHandler: decouples presentation from the loop.
  - TextHandler: numbered choices, markdown rendering and sanitized input.
  - JSONHandler: one JSON view per line out, one command per line in.
  - ParseCommand: maps input onto an action, back, restart, refresh or quit.

# Usage

	r := runner.NewRunner(
		runner.WithInputHandler(runner.NewTextHandler(os.Stdin, os.Stdout,
			runner.WithTextHandlerRenderer(tui.NewRenderer()))),
		runner.WithStore(exports),
	)

	if err := r.Run(ctx, eng, "figure1"); err != nil {
		log.Fatal(err)
	}
*/
package runner
