package runner

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ddt-tool/ddt/pkg/domain"
)

// CommandKind identifies a runner command.
type CommandKind string

const (
	CommandAction  CommandKind = "action"
	CommandBack    CommandKind = "back"
	CommandRestart CommandKind = "restart"
	CommandRefresh CommandKind = "refresh"
	CommandHelp    CommandKind = "help"
	CommandQuit    CommandKind = "quit"
)

// Command is parsed user input.
type Command struct {
	Kind   CommandKind
	Action domain.Action
}

// ErrUnknownCommand is returned when input matches neither an action nor a command.
var ErrUnknownCommand = errors.New("unknown command")

var keywords = map[string]CommandKind{
	"b": CommandBack, "back": CommandBack,
	"r": CommandRestart, "restart": CommandRestart,
	"v": CommandRefresh, "refresh": CommandRefresh,
	"h": CommandHelp, "help": CommandHelp, "?": CommandHelp,
	"q": CommandQuit, "quit": CommandQuit, "exit": CommandQuit,
}

// ParseCommand maps input onto a command for view.
// Resolution order: empty input (single non-answer action), 1-based action number,
// action key or label, y/n shortcuts, then keywords.
func ParseCommand(input string, view domain.View) (Command, error) {
	in := strings.ToLower(strings.TrimSpace(input))

	if in == "" {
		if len(view.Actions) == 1 && view.Actions[0].Kind != domain.ActionAnswer {
			return Command{Kind: CommandAction, Action: view.Actions[0]}, nil
		}
		return Command{}, fmt.Errorf("%w: choose an option", ErrUnknownCommand)
	}

	if n, err := strconv.Atoi(in); err == nil {
		if n < 1 || n > len(view.Actions) {
			return Command{}, fmt.Errorf("%w: option %d out of range 1-%d", ErrUnknownCommand, n, len(view.Actions))
		}
		return Command{Kind: CommandAction, Action: view.Actions[n-1]}, nil
	}

	for _, a := range view.Actions {
		if (a.Key != "" && strings.ToLower(a.Key) == in) || strings.ToLower(a.Label) == in {
			return Command{Kind: CommandAction, Action: a}, nil
		}
	}

	if short, ok := map[string]string{"y": "yes", "n": "no"}[in]; ok {
		for _, a := range view.Actions {
			if a.Kind == domain.ActionAnswer && a.Key == short {
				return Command{Kind: CommandAction, Action: a}, nil
			}
		}
	}

	if kind, ok := keywords[in]; ok {
		return Command{Kind: kind}, nil
	}
	return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, input)
}
