package domain

import "fmt"

// Validate checks the structural invariants of a pack and returns the first violation.
// knownPacks, when non-nil, restricts handoff targets to the listed pack ids.
func (p *Pack) Validate(knownPacks map[string]bool) error {
	if p == nil {
		return &ValidationError{Reason: "pack is nil"}
	}
	if p.ID == "" {
		return &ValidationError{Reason: "missing pack id"}
	}
	if len(p.Nodes) == 0 {
		return &ValidationError{PackID: p.ID, Reason: "pack has no nodes"}
	}
	if p.EntryNodeID == "" {
		return &ValidationError{PackID: p.ID, Reason: "missing entry node"}
	}
	if !p.Has(p.EntryNodeID) {
		return &ValidationError{PackID: p.ID, NodeID: p.EntryNodeID, Reason: "entry node does not exist"}
	}

	for _, id := range p.NodeIDs() {
		if err := p.validateNode(id, p.Nodes[id], knownPacks); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pack) validateNode(id string, n Node, knownPacks map[string]bool) error {
	fail := func(choice, format string, args ...any) error {
		return &ValidationError{PackID: p.ID, NodeID: id, Choice: choice, Reason: fmt.Sprintf(format, args...)}
	}

	if n.ID != id {
		return fail("", "node id mismatch %q", n.ID)
	}
	if !n.Type.Valid() {
		return fail("", "unknown node type %q", n.Type)
	}

	switch n.Type {
	case NodeTypeDecision:
		if len(n.Choices) < 2 {
			return fail("", "decision node requires at least 2 choices, has %d", len(n.Choices))
		}
		seen := make(map[string]bool, len(n.Choices))
		for _, c := range n.Choices {
			if c.Key == "" {
				return fail("", "choice without key")
			}
			if seen[c.Key] {
				return fail(c.Key, "duplicate choice key")
			}
			seen[c.Key] = true
			if c.Label == "" {
				return fail(c.Key, "choice label is empty")
			}
			if c.Target != "" && !p.Has(c.Target) {
				return fail(c.Key, "target %q does not exist", c.Target)
			}
		}
	case NodeTypeInfo, NodeTypeConnector:
		if n.Next != "" && !p.Has(n.Next) {
			return fail("", "next %q does not exist", n.Next)
		}
	case NodeTypeHandoff:
		if n.Handoff != nil && n.Handoff.TargetPackID != "" && knownPacks != nil && !knownPacks[n.Handoff.TargetPackID] {
			return fail("", "handoff target pack %q is unknown", n.Handoff.TargetPackID)
		}
	}
	return nil
}
