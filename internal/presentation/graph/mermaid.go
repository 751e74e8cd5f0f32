package graph

import (
	"fmt"
	"strings"

	"github.com/ddt-tool/ddt/pkg/domain"
)

// GraphOverlay contains case data to visualize on the graph.
type GraphOverlay struct {
	VisitedNodes []string
	CurrentNode  string
}

// OverlayFromTrace collects the nodes of packID visited in trace.
func OverlayFromTrace(packID string, trace []domain.TraceEntry, current string) *GraphOverlay {
	o := &GraphOverlay{CurrentNode: current}
	for _, e := range trace {
		if e.PackID == packID && e.NodeID != "" {
			o.VisitedNodes = append(o.VisitedNodes, e.NodeID)
		}
	}
	return o
}

// GenerateMermaid produces a Mermaid flowchart for a pack.
// Shapes follow the node type:
// - Entry: ((Circle))
// - Decision: {Rhombus}
// - Outcome: ([Stadium])
// - Handoff: [[Subroutine]], with a dotted edge to the target pack
// - Connector: >Flag]
// - Info: [Rectangle]
// Overlay styles (visited/current) are applied if provided.
func GenerateMermaid(p *domain.Pack, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	if p == nil {
		return sb.String()
	}

	packRefs := make(map[string]bool)
	for _, node := range p.OrderedNodes() {
		safeID := sanitizeMermaidID(node.ID)

		opener, closer := "[", "]"
		switch {
		case node.ID == p.EntryNodeID:
			opener, closer = "((", "))"
		case node.Type == domain.NodeTypeDecision:
			opener, closer = "{", "}"
		case node.Type == domain.NodeTypeOutcome:
			opener, closer = "([", "])"
		case node.Type == domain.NodeTypeHandoff:
			opener, closer = "[[", "]]"
		case node.Type == domain.NodeTypeConnector:
			opener, closer = ">", "]"
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", safeID, opener, escape(label(node)), closer))

		for _, c := range domain.OrderedChoices(node.Choices) {
			if c.Target == "" {
				continue
			}
			sb.WriteString(fmt.Sprintf("    %s -- \"%s\" --> %s\n", safeID, escape(domain.ChoiceLabel(c)), sanitizeMermaidID(c.Target)))
		}
		if node.Next != "" {
			sb.WriteString(fmt.Sprintf("    %s --> %s\n", safeID, sanitizeMermaidID(node.Next)))
		}
		if node.Handoff != nil && node.Handoff.TargetPackID != "" {
			ref := "pack_" + sanitizeMermaidID(node.Handoff.TargetPackID)
			if !packRefs[ref] {
				packRefs[ref] = true
				sb.WriteString(fmt.Sprintf("    %s[/\"%s\"/]\n", ref, escape(node.Handoff.TargetPackID)))
			}
			sb.WriteString(fmt.Sprintf("    %s -.-> %s\n", safeID, ref))
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Black text keeps contrast on light fills regardless of theme.
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		visitedSet := make(map[string]bool)
		for _, id := range overlay.VisitedNodes {
			if !p.Has(id) {
				continue
			}
			safeID := sanitizeMermaidID(id)
			if !visitedSet[safeID] {
				visitedSet[safeID] = true
				sb.WriteString(fmt.Sprintf("    class %s visited;\n", safeID))
			}
		}

		if overlay.CurrentNode != "" && p.Has(overlay.CurrentNode) {
			sb.WriteString(fmt.Sprintf("    class %s current;\n", sanitizeMermaidID(overlay.CurrentNode)))
		}
	}

	return sb.String()
}

func label(n domain.Node) string {
	if n.Title != "" {
		return n.Title
	}
	return n.ID
}

func escape(s string) string {
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.ReplaceAll(s, "\n", " ")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
