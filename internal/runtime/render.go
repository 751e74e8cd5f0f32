package runtime

import (
	"context"
	"fmt"

	"github.com/ddt-tool/ddt/pkg/domain"
)

// render builds the view of the current node and notifies the collaborators.
func (e *Engine) render(ctx context.Context) (domain.View, error) {
	view, err := e.buildView()
	if err != nil {
		return domain.View{}, err
	}
	if e.renderer != nil {
		e.renderer.OnNodeRendered(ctx, view)
	}
	if e.notes != nil && !view.Node.Notes.IsZero() {
		e.notes.OnNotes(ctx, view.NodeID, view.Node.Clone(), view.Meta)
	}
	return view, nil
}

// buildView is a pure read of the current position.
func (e *Engine) buildView() (domain.View, error) {
	meta := e.store.Meta()
	node, ok := e.pack.Node(meta.NodeID)
	if !ok {
		return domain.View{}, fmt.Errorf("render %s/%s: %w", meta.PackID, meta.NodeID, domain.ErrNodeNotFound)
	}

	completed := e.phase == PhaseCompleted
	actions := domain.ActionsFor(node)
	if completed && node.Type == domain.NodeTypeDecision {
		actions = []domain.Action{{Kind: domain.ActionRestart, Label: "Restart"}}
	}

	return domain.View{
		PackID:    e.pack.ID,
		PackTitle: e.pack.Title,
		NodeID:    node.ID,
		Node:      node,
		Actions:   actions,
		CanGoBack: e.store.CanGoBack(),
		Terminal:  completed,
		Meta:      meta,
	}, nil
}
