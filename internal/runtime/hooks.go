package runtime

import (
	"context"
	"time"

	"github.com/ddt-tool/ddt/pkg/domain"
)

func (e *Engine) eventBase(t domain.EventType) domain.EventBase {
	return domain.EventBase{
		Timestamp: e.now(),
		Type:      t,
		CaseID:    e.store.ID(),
	}
}

func (e *Engine) emitNodeEnter(ctx context.Context, packID string, node domain.Node) {
	if e.hooks.OnNodeEnter == nil {
		return
	}
	e.hooks.OnNodeEnter(ctx, &domain.NodeEvent{
		EventBase: e.eventBase(domain.EventNodeEnter),
		PackID:    packID,
		NodeID:    node.ID,
		NodeType:  node.Type,
	})
}

func (e *Engine) emitNodeLeave(ctx context.Context, packID string, node domain.Node) {
	if e.hooks.OnNodeLeave == nil {
		return
	}
	e.hooks.OnNodeLeave(ctx, &domain.NodeEvent{
		EventBase: e.eventBase(domain.EventNodeLeave),
		PackID:    packID,
		NodeID:    node.ID,
		NodeType:  node.Type,
	})
}

func (e *Engine) emitTransition(ctx context.Context, kind domain.TraceKind, from, toPack, toNode string, start time.Time) {
	if e.hooks.OnTransition == nil {
		return
	}
	e.hooks.OnTransition(ctx, &domain.TransitionEvent{
		EventBase: e.eventBase(domain.EventTransition),
		Kind:      kind,
		PackID:    e.pack.ID,
		FromNode:  from,
		ToPack:    toPack,
		ToNode:    toNode,
		Duration:  e.now().Sub(start),
	})
}

func (e *Engine) emitError(ctx context.Context, kind domain.TraceKind, from, toPack string, err error) {
	if e.hooks.OnError == nil {
		return
	}
	e.hooks.OnError(ctx, &domain.TransitionEvent{
		EventBase: e.eventBase(domain.EventError),
		Kind:      kind,
		PackID:    e.pack.ID,
		FromNode:  from,
		ToPack:    toPack,
		Err:       err,
	})
}
