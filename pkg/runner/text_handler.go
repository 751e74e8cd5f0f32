package runner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/aretw0/lifecycle"
	"github.com/ddt-tool/ddt/pkg/domain"
)

// TextHandler implements the standard text-based interface.
type TextHandler struct {
	Reader   *bufio.Reader
	Writer   io.Writer
	Renderer ContentRenderer

	inputChan chan inputResult
	startOnce sync.Once
}

type inputResult struct {
	text string
	err  error
}

// TextHandlerOption defines configuration for TextHandler.
type TextHandlerOption func(*TextHandler)

// WithTextHandlerRenderer configures the content renderer.
func WithTextHandlerRenderer(renderer ContentRenderer) TextHandlerOption {
	return func(h *TextHandler) {
		h.Renderer = renderer
	}
}

// NewTextHandler creates a handler for standard text IO.
func NewTextHandler(r io.Reader, w io.Writer, opts ...TextHandlerOption) *TextHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	h := &TextHandler{
		Reader: bufio.NewReader(resolveInputReader(r)),
		Writer: w,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// resolveInputReader swaps an interactive stdin for the platform terminal
// reader. Pipes, files and in-memory readers are returned unchanged.
func resolveInputReader(r io.Reader) io.Reader {
	if upgraded, err := lifecycle.UpgradeTerminal(r); err == nil {
		return upgraded
	}
	return r
}

// initPump starts the goroutine reading lines, so Input can honor ctx.
func (h *TextHandler) initPump() {
	h.startOnce.Do(func() {
		h.inputChan = make(chan inputResult)
		go h.pump()
	})
}

func (h *TextHandler) pump() {
	for {
		text, err := h.Reader.ReadString('\n')
		if text != "" {
			h.inputChan <- inputResult{text: text}
		}
		if err != nil {
			if err != io.EOF {
				h.inputChan <- inputResult{err: err}
			}
			close(h.inputChan)
			return
		}
	}
}

// Output writes the node as markdown followed by the numbered actions.
func (h *TextHandler) Output(ctx context.Context, view domain.View) error {
	content := FormatMarkdown(view)
	if h.Renderer != nil {
		if rendered, err := h.Renderer(content); err == nil {
			content = rendered
		}
	}
	fmt.Fprintln(h.Writer, strings.TrimSpace(content))
	fmt.Fprintln(h.Writer)

	for i, a := range view.Actions {
		fmt.Fprintf(h.Writer, "  %d) %s\n", i+1, a.Label)
	}

	controls := []string{}
	if view.CanGoBack {
		controls = append(controls, "[b] back")
	}
	controls = append(controls, "[r] restart", "[q] quit")
	fmt.Fprintf(h.Writer, "  %s\n", strings.Join(controls, "  "))
	return nil
}

func (h *TextHandler) Input(ctx context.Context) (string, error) {
	h.initPump()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
			fmt.Fprint(h.Writer, "> ")
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case res, ok := <-h.inputChan:
			if !ok {
				return "", io.EOF
			}
			if res.err != nil {
				return "", res.err
			}
			clean, err := SanitizeInput(strings.TrimSpace(res.text))
			if err != nil {
				fmt.Fprintf(h.Writer, "Error: %v. Please try again.\n", err)
				continue
			}
			return clean, nil
		}
	}
}

func (h *TextHandler) SystemOutput(ctx context.Context, msg string) error {
	fmt.Fprintf(h.Writer, "\n[System] %s\n", msg)
	return nil
}

// FormatMarkdown renders the node of a view as markdown.
func FormatMarkdown(view domain.View) string {
	n := view.Node
	var sb strings.Builder

	heading := n.Title
	if heading == "" {
		heading = n.ID
	}
	if view.PackTitle != "" {
		fmt.Fprintf(&sb, "*%s*\n\n", view.PackTitle)
	}
	fmt.Fprintf(&sb, "## %s\n\n", heading)
	if n.Text != "" {
		fmt.Fprintf(&sb, "%s\n\n", n.Text)
	}
	if n.Body != "" {
		fmt.Fprintf(&sb, "%s\n\n", n.Body)
	}
	if n.Handoff != nil && n.Handoff.TargetPackID != "" {
		fmt.Fprintf(&sb, "Continues in **%s**", n.Handoff.TargetPackID)
		if n.Handoff.Reason != "" {
			fmt.Fprintf(&sb, ": %s", n.Handoff.Reason)
		}
		sb.WriteString("\n\n")
	}

	for _, d := range n.Notes.Directives {
		fmt.Fprintf(&sb, "- %s\n", d)
	}
	for _, note := range n.Notes.Notes {
		if note.Title != "" {
			fmt.Fprintf(&sb, "- **%s**: %s\n", note.Title, note.Body)
		} else {
			fmt.Fprintf(&sb, "- %s\n", note.Body)
		}
	}
	for _, hint := range n.Notes.Hints {
		fmt.Fprintf(&sb, "> %s\n", hint)
	}

	if view.Terminal && n.Type == domain.NodeTypeOutcome {
		sb.WriteString("\n_Outcome reached._\n")
	}
	return sb.String()
}
