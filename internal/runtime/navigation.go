package runtime

import (
	"context"
	"fmt"

	"github.com/ddt-tool/ddt/pkg/domain"
)

// Answer selects a choice of the current decision node.
func (e *Engine) Answer(ctx context.Context, key string) (domain.View, error) {
	release, err := e.begin()
	if err != nil {
		return domain.View{}, err
	}
	defer release()

	node, err := e.currentNode()
	if err != nil {
		return domain.View{}, err
	}
	const op = "answer"

	if e.phase == PhaseCompleted {
		return domain.View{}, e.fail(ctx, op, node, domain.ErrTerminalNode)
	}
	if node.Type != domain.NodeTypeDecision {
		return domain.View{}, e.fail(ctx, op, node, fmt.Errorf("%w: %s node", domain.ErrInvalidAction, node.Type))
	}
	choice, ok := node.Choice(key)
	if !ok {
		return domain.View{}, e.fail(ctx, op, node, fmt.Errorf("%w: %q", domain.ErrUnknownChoice, key))
	}
	if choice.Target != "" && !e.pack.Has(choice.Target) {
		return domain.View{}, e.fail(ctx, op, node, fmt.Errorf("choice %q target %q: %w", key, choice.Target, domain.ErrNodeNotFound))
	}

	start := e.now()
	meta := e.store.Meta()
	e.emitNodeLeave(ctx, e.pack.ID, node)
	e.store.PushHistory(meta.PackID, meta.NodeID)
	e.store.AppendTrace(domain.TraceEntry{
		Kind:     domain.TraceAnswer,
		PackID:   e.pack.ID,
		NodeID:   node.ID,
		NodeType: node.Type,
		Title:    node.Title,
		Answer:   choice.Key,
		To:       choice.Target,
	})

	if choice.Target == "" {
		e.setPhase(PhaseCompleted)
		e.logger.Info("case completed by terminal choice", "case_id", e.store.ID(), "node_id", node.ID, "answer", key)
		e.emitTransition(ctx, domain.TraceAnswer, node.ID, "", "", start)
		return e.render(ctx)
	}

	view, err := e.enter(ctx, e.pack, choice.Target, false)
	if err != nil {
		return view, err
	}
	e.emitTransition(ctx, domain.TraceAnswer, node.ID, "", choice.Target, start)
	return view, nil
}

// Continue advances an info or connector node to its next node.
func (e *Engine) Continue(ctx context.Context) (domain.View, error) {
	release, err := e.begin()
	if err != nil {
		return domain.View{}, err
	}
	defer release()

	node, err := e.currentNode()
	if err != nil {
		return domain.View{}, err
	}
	const op = "continue"

	if e.phase == PhaseCompleted {
		return domain.View{}, e.fail(ctx, op, node, domain.ErrTerminalNode)
	}
	if node.Type != domain.NodeTypeInfo && node.Type != domain.NodeTypeConnector {
		return domain.View{}, e.fail(ctx, op, node, fmt.Errorf("%w: %s node", domain.ErrInvalidAction, node.Type))
	}
	if node.Next == "" {
		return domain.View{}, e.fail(ctx, op, node, domain.ErrTerminalNode)
	}
	if !e.pack.Has(node.Next) {
		return domain.View{}, e.fail(ctx, op, node, fmt.Errorf("next %q: %w", node.Next, domain.ErrNodeNotFound))
	}

	start := e.now()
	meta := e.store.Meta()
	e.emitNodeLeave(ctx, e.pack.ID, node)
	e.store.PushHistory(meta.PackID, meta.NodeID)
	e.store.AppendTrace(domain.TraceEntry{
		Kind:     domain.TraceAck,
		PackID:   e.pack.ID,
		NodeID:   node.ID,
		NodeType: node.Type,
		Title:    node.Title,
		To:       node.Next,
	})

	view, err := e.enter(ctx, e.pack, node.Next, false)
	if err != nil {
		return view, err
	}
	e.emitTransition(ctx, domain.TraceAck, node.ID, "", node.Next, start)
	return view, nil
}

// Handoff transfers the session from the current handoff node to its target pack.
// The target is acquired through the pack loader; on failure the session stays
// where it was and the failure is recorded in the trace.
func (e *Engine) Handoff(ctx context.Context) (domain.View, error) {
	release, err := e.begin()
	if err != nil {
		return domain.View{}, err
	}
	defer release()

	node, err := e.currentNode()
	if err != nil {
		return domain.View{}, err
	}
	const op = "handoff"

	if e.phase == PhaseCompleted {
		return domain.View{}, e.fail(ctx, op, node, domain.ErrTerminalNode)
	}
	if node.Type != domain.NodeTypeHandoff {
		return domain.View{}, e.fail(ctx, op, node, fmt.Errorf("%w: %s node", domain.ErrInvalidAction, node.Type))
	}
	var target, reason string
	if node.Handoff != nil {
		target, reason = node.Handoff.TargetPackID, node.Handoff.Reason
	}
	if target == "" {
		return domain.View{}, e.fail(ctx, op, node, domain.ErrMissingHandoffTarget)
	}

	start := e.now()
	from := e.pack
	e.store.AppendTrace(domain.TraceEntry{
		Kind:     domain.TraceHandoff,
		PackID:   from.ID,
		NodeID:   node.ID,
		NodeType: node.Type,
		Title:    node.Title,
		ToPack:   target,
		Reason:   reason,
	})

	next, err := e.acquire(ctx, target)
	if err == nil && !next.Has(next.EntryNodeID) {
		err = fmt.Errorf("pack %q entry %q: %w", next.ID, next.EntryNodeID, domain.ErrNodeNotFound)
	}
	if err != nil {
		e.store.AppendTrace(domain.TraceEntry{
			Kind:     domain.TraceError,
			PackID:   from.ID,
			NodeID:   node.ID,
			NodeType: node.Type,
			ToPack:   target,
			Message:  err.Error(),
		})
		e.emitError(ctx, domain.TraceHandoff, node.ID, target, err)
		e.logger.Warn("handoff failed", "case_id", e.store.ID(), "pack_id", from.ID, "to_pack", target, "err", err)
		return domain.View{}, err
	}

	meta := e.store.Meta()
	e.emitNodeLeave(ctx, from.ID, node)
	e.store.PushHistory(meta.PackID, meta.NodeID)
	e.bind(next)
	e.logger.Info("handoff", "case_id", e.store.ID(), "from_pack", from.ID, "to_pack", next.ID, "reason", reason)

	view, err := e.enter(ctx, next, next.EntryNodeID, true)
	if err != nil {
		return view, err
	}
	e.emitTransition(ctx, domain.TraceHandoff, node.ID, next.ID, next.EntryNodeID, start)
	return view, nil
}

// Back undoes the last forward transition, including a handoff. It is a no-op
// when there is nothing to undo. The trace is never truncated: a back entry is appended.
func (e *Engine) Back(ctx context.Context) (domain.View, error) {
	release, err := e.begin()
	if err != nil {
		return domain.View{}, err
	}
	defer release()

	if err := e.requireStarted(); err != nil {
		return domain.View{}, err
	}
	frame, ok := e.store.PeekHistory()
	if !ok {
		return e.buildView()
	}

	current, err := e.currentNode()
	if err != nil {
		return domain.View{}, err
	}

	start := e.now()
	target := e.pack
	if frame.PackID != target.ID {
		cached, ok := e.packs[frame.PackID]
		if ok {
			target = cached
		} else {
			target, err = e.acquire(ctx, frame.PackID)
		}
		if err != nil {
			e.store.AppendTrace(domain.TraceEntry{
				Kind:     domain.TraceError,
				PackID:   e.pack.ID,
				NodeID:   current.ID,
				NodeType: current.Type,
				ToPack:   frame.PackID,
				Message:  err.Error(),
			})
			e.emitError(ctx, domain.TraceBack, current.ID, frame.PackID, err)
			return domain.View{}, err
		}
	}
	if !target.Has(frame.NodeID) {
		return domain.View{}, fmt.Errorf("back to %s/%s: %w", frame.PackID, frame.NodeID, domain.ErrNodeNotFound)
	}

	from := e.pack
	e.emitNodeLeave(ctx, from.ID, current)
	frame, _ = e.store.PopHistory()
	e.store.ReplaceState(frame.StateSnapshot)
	e.bind(target)
	e.store.SetMeta(domain.CaseMeta{PackID: frame.PackID, NodeID: frame.NodeID})

	entry := domain.TraceEntry{
		Kind:     domain.TraceBack,
		PackID:   from.ID,
		NodeID:   current.ID,
		NodeType: current.Type,
		Title:    current.Title,
		To:       frame.NodeID,
	}
	if frame.PackID != from.ID {
		entry.ToPack = frame.PackID
	}
	e.store.AppendTrace(entry)

	node, _ := target.Node(frame.NodeID)
	e.setPhase(phaseFor(node))
	e.emitNodeEnter(ctx, target.ID, node)
	e.emitTransition(ctx, domain.TraceBack, current.ID, entry.ToPack, frame.NodeID, start)
	e.logger.Debug("back", "case_id", e.store.ID(), "pack_id", target.ID, "node_id", frame.NodeID)
	return e.render(ctx)
}

// enter moves to nodeID of p: position, entry effects, render. record appends an
// enter trace entry; forward transitions already carry the target in their own entry.
func (e *Engine) enter(ctx context.Context, p *domain.Pack, nodeID string, record bool) (domain.View, error) {
	node, ok := p.Node(nodeID)
	if !ok {
		return domain.View{}, fmt.Errorf("enter %s/%s: %w", p.ID, nodeID, domain.ErrNodeNotFound)
	}

	e.store.SetMeta(domain.CaseMeta{PackID: p.ID, NodeID: node.ID})
	if record {
		e.store.AppendTrace(domain.TraceEntry{
			Kind:     domain.TraceEnter,
			PackID:   p.ID,
			NodeID:   node.ID,
			NodeType: node.Type,
			Title:    node.Title,
		})
	}

	if len(node.Effects) > 0 {
		state := e.store.State()
		n := e.applicator.Apply(state, node.Effects)
		e.store.ReplaceState(state)
		e.logger.Debug("effects applied", "pack_id", p.ID, "node_id", node.ID, "recognized", n, "total", len(node.Effects))
	}

	e.setPhase(phaseFor(node))
	e.emitNodeEnter(ctx, p.ID, node)
	return e.render(ctx)
}

// acquire fetches a pack through the loader. Failures are returned as is;
// packs bound earlier in the session are only reused by Back.
func (e *Engine) acquire(ctx context.Context, packID string) (*domain.Pack, error) {
	if e.loader == nil {
		return nil, &domain.AcquisitionError{
			PackID:   packID,
			Resource: packID,
			Hint:     "configure a pack loader to follow handoffs",
			Err:      domain.ErrPackNotFound,
		}
	}
	prev := e.phase
	e.setPhase(PhaseLoading)
	defer e.setPhase(prev)
	return e.loader.Load(ctx, packID)
}

// currentNode resolves the node under the case position. A position that does
// not resolve is fatal: nothing is mutated.
func (e *Engine) currentNode() (domain.Node, error) {
	if err := e.requireStarted(); err != nil {
		return domain.Node{}, err
	}
	meta := e.store.Meta()
	node, ok := e.pack.Node(meta.NodeID)
	if !ok {
		return domain.Node{}, fmt.Errorf("current node %s/%s: %w", meta.PackID, meta.NodeID, domain.ErrNodeNotFound)
	}
	return node, nil
}

// fail records a rejected transition and returns it as a TransitionError.
func (e *Engine) fail(ctx context.Context, op string, node domain.Node, err error) error {
	e.store.AppendTrace(domain.TraceEntry{
		Kind:     domain.TraceError,
		PackID:   e.pack.ID,
		NodeID:   node.ID,
		NodeType: node.Type,
		Message:  fmt.Sprintf("%s: %v", op, err),
	})
	e.emitError(ctx, domain.TraceKind(op), node.ID, "", err)
	e.logger.Debug("transition rejected", "op", op, "pack_id", e.pack.ID, "node_id", node.ID, "err", err)
	return &domain.TransitionError{Op: op, PackID: e.pack.ID, NodeID: node.ID, Err: err}
}

func phaseFor(n domain.Node) Phase {
	if n.IsTerminal() {
		return PhaseCompleted
	}
	return PhaseActive
}
