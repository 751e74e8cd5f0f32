package ports

import (
	"context"

	"github.com/ddt-tool/ddt/pkg/domain"
)

// Renderer receives the view of the current node after every transition and refresh.
type Renderer interface {
	OnNodeRendered(ctx context.Context, view domain.View)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(ctx context.Context, view domain.View)

func (f RendererFunc) OnNodeRendered(ctx context.Context, view domain.View) { f(ctx, view) }

// NotesObserver is told about the node being shown so it can display reference notes.
type NotesObserver interface {
	OnNotes(ctx context.Context, nodeID string, node domain.Node, meta domain.CaseMeta)
}
