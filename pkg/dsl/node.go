package dsl

import "github.com/ddt-tool/ddt/pkg/domain"

// NodeBuilder provides a fluent API for configuring a node.
// Nodes start as info nodes.
type NodeBuilder struct {
	node domain.Node
}

// Title sets the node title.
func (n *NodeBuilder) Title(title string) *NodeBuilder {
	n.node.Title = title
	return n
}

// Body sets the node body.
func (n *NodeBuilder) Body(body string) *NodeBuilder {
	n.node.Body = body
	return n
}

// Info marks the node as an info step with the given body.
func (n *NodeBuilder) Info(body string) *NodeBuilder {
	n.node.Type = domain.NodeTypeInfo
	n.node.Body = body
	return n
}

// Connector marks the node as a connector.
func (n *NodeBuilder) Connector() *NodeBuilder {
	n.node.Type = domain.NodeTypeConnector
	return n
}

// Decision marks the node as a decision asking text.
func (n *NodeBuilder) Decision(text string) *NodeBuilder {
	n.node.Type = domain.NodeTypeDecision
	n.node.Text = text
	return n
}

// Choice adds an answer to a decision node. An empty target makes the choice terminal.
func (n *NodeBuilder) Choice(key, label, target string) *NodeBuilder {
	n.node.Choices = append(n.node.Choices, domain.Choice{Key: key, Label: label, Target: target})
	return n
}

// Yes and No add the conventional yes/no choices.
func (n *NodeBuilder) Yes(target string) *NodeBuilder { return n.Choice("yes", "Yes", target) }

func (n *NodeBuilder) No(target string) *NodeBuilder { return n.Choice("no", "No", target) }

// Outcome marks the node as a terminal outcome.
func (n *NodeBuilder) Outcome(title string) *NodeBuilder {
	n.node.Type = domain.NodeTypeOutcome
	if title != "" {
		n.node.Title = title
	}
	return n
}

// Handoff marks the node as a transfer to targetPackID.
func (n *NodeBuilder) Handoff(targetPackID, reason string) *NodeBuilder {
	n.node.Type = domain.NodeTypeHandoff
	n.node.Handoff = &domain.Handoff{TargetPackID: targetPackID, Reason: reason}
	return n
}

// Go sets the follow-up node of an info or connector node.
func (n *NodeBuilder) Go(target string) *NodeBuilder {
	n.node.Next = target
	return n
}

// Effect appends a state effect applied when the node is entered.
func (n *NodeBuilder) Effect(effectType, path string, value any) *NodeBuilder {
	n.node.Effects = append(n.node.Effects, domain.Effect{Type: effectType, Path: path, Value: value})
	return n
}

// Set is shorthand for a SET effect.
func (n *NodeBuilder) Set(path string, value any) *NodeBuilder {
	return n.Effect(domain.EffectSet, path, value)
}

// Directive attaches a directive to the node notes.
func (n *NodeBuilder) Directive(text string) *NodeBuilder {
	n.node.Notes.Directives = append(n.node.Notes.Directives, text)
	return n
}

// Hint attaches a hint to the node notes.
func (n *NodeBuilder) Hint(text string) *NodeBuilder {
	n.node.Notes.Hints = append(n.node.Notes.Hints, text)
	return n
}

// Note attaches a titled note.
func (n *NodeBuilder) Note(title, body string) *NodeBuilder {
	n.node.Notes.Notes = append(n.node.Notes.Notes, domain.Note{Title: title, Body: body})
	return n
}
