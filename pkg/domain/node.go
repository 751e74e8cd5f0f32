package domain

// NodeType defines how the engine treats a node on entry and which actions it exposes.
type NodeType string

const (
	// NodeTypeInfo displays content and continues to Next.
	NodeTypeInfo NodeType = "info"
	// NodeTypeDecision asks a question and branches on the selected choice.
	NodeTypeDecision NodeType = "decision"
	// NodeTypeOutcome is a terminal result. It only exposes a restart action.
	NodeTypeOutcome NodeType = "outcome"
	// NodeTypeHandoff transfers the session to another pack.
	NodeTypeHandoff NodeType = "handoff"
	// NodeTypeConnector is a pass-through step that behaves like info.
	NodeTypeConnector NodeType = "connector"
)

// Valid reports whether t is one of the canonical node types.
func (t NodeType) Valid() bool {
	switch t {
	case NodeTypeInfo, NodeTypeDecision, NodeTypeOutcome, NodeTypeHandoff, NodeTypeConnector:
		return true
	}
	return false
}

// Node is one step of a pack graph, in canonical form.
type Node struct {
	ID    string   `json:"id" yaml:"id"`
	Type  NodeType `json:"type" yaml:"type"`
	Title string   `json:"title,omitempty" yaml:"title,omitempty"`
	Body  string   `json:"body,omitempty" yaml:"body,omitempty"`

	// Text is the question (decision) or prompt text.
	Text string `json:"text,omitempty" yaml:"text,omitempty"`

	// Choices is only populated on decision nodes. Order follows the source document.
	Choices []Choice `json:"choices,omitempty" yaml:"choices,omitempty"`

	// Next is the follow-up node for info and connector nodes. Empty means terminal.
	Next string `json:"next,omitempty" yaml:"next,omitempty"`

	Handoff *Handoff `json:"handoff,omitempty" yaml:"handoff,omitempty"`

	// Effects are applied to the case state every time the node is entered by a transition.
	Effects []Effect `json:"effects,omitempty" yaml:"effects,omitempty"`

	Notes NodeNotes `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// Choice is one answer of a decision node.
type Choice struct {
	Key   string `json:"key" yaml:"key"`
	Label string `json:"label" yaml:"label"`
	// Target is the node entered when the choice is selected. Empty marks an explicit terminal,
	// so the field is always serialized.
	Target string `json:"target" yaml:"target"`
}

// Handoff describes a transfer to another pack.
type Handoff struct {
	TargetPackID string `json:"targetPackId,omitempty" yaml:"targetPackId,omitempty"`
	Reason       string `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// NodeNotes carries the reference material shown next to a node.
type NodeNotes struct {
	Directives []string `json:"directives,omitempty" yaml:"directives,omitempty"`
	Notes      []Note   `json:"notes,omitempty" yaml:"notes,omitempty"`
	Hints      []string `json:"hints,omitempty" yaml:"hints,omitempty"`
}

// Note is a titled annotation.
type Note struct {
	Title string `json:"title,omitempty" yaml:"title,omitempty"`
	Body  string `json:"body,omitempty" yaml:"body,omitempty"`
}

// IsZero reports whether no notes are attached.
func (n NodeNotes) IsZero() bool {
	return len(n.Directives) == 0 && len(n.Notes) == 0 && len(n.Hints) == 0
}

// Choice returns the choice with the given key.
func (n Node) Choice(key string) (Choice, bool) {
	for _, c := range n.Choices {
		if c.Key == key {
			return c, true
		}
	}
	return Choice{}, false
}

// IsTerminal reports whether the node has no forward transition of its own.
// Handoff nodes are not terminal: they continue in another pack.
func (n Node) IsTerminal() bool {
	switch n.Type {
	case NodeTypeOutcome:
		return true
	case NodeTypeInfo, NodeTypeConnector:
		return n.Next == ""
	}
	return false
}

// Clone returns a copy of the node that shares no slices with the original.
func (n Node) Clone() Node {
	out := n
	if n.Choices != nil {
		out.Choices = append([]Choice(nil), n.Choices...)
	}
	if n.Handoff != nil {
		h := *n.Handoff
		out.Handoff = &h
	}
	if n.Effects != nil {
		out.Effects = make([]Effect, len(n.Effects))
		for i, eff := range n.Effects {
			out.Effects[i] = Effect{Type: eff.Type, Path: eff.Path, Value: CloneValue(eff.Value)}
		}
	}
	out.Notes = NodeNotes{
		Directives: cloneStrings(n.Notes.Directives),
		Notes:      append([]Note(nil), n.Notes.Notes...),
		Hints:      cloneStrings(n.Notes.Hints),
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}
