package runtime_test

import (
	"context"
	"sync"

	"github.com/ddt-tool/ddt/pkg/domain"
)

func decision(id string, choices ...domain.Choice) domain.Node {
	return domain.Node{ID: id, Type: domain.NodeTypeDecision, Text: id + "?", Choices: choices}
}

func choice(key, target string) domain.Choice {
	return domain.Choice{Key: key, Label: domain.ChoiceLabel(domain.Choice{Key: key}), Target: target}
}

func newPack(id, entry string, nodes ...domain.Node) *domain.Pack {
	m := make(map[string]domain.Node, len(nodes))
	order := make([]string, 0, len(nodes))
	for _, n := range nodes {
		m[n.ID] = n
		order = append(order, n.ID)
	}
	return domain.NewPack(id, id, "1.0.0", entry, m, order)
}

// yesNoPack is {entry: start, start: decision{yes->n2, no->n3}, n2/n3: outcome}.
func yesNoPack() *domain.Pack {
	return newPack("figure1", "start",
		decision("start", choice("yes", "n2"), choice("no", "n3")),
		domain.Node{ID: "n2", Type: domain.NodeTypeOutcome},
		domain.Node{ID: "n3", Type: domain.NodeTypeOutcome},
	)
}

type mapLoader struct {
	mu    sync.Mutex
	packs map[string]*domain.Pack
	calls int
	gate  chan struct{}
	hit   chan struct{}
}

func (l *mapLoader) Load(ctx context.Context, id string) (*domain.Pack, error) {
	l.mu.Lock()
	l.calls++
	gate, hit := l.gate, l.hit
	l.mu.Unlock()
	if hit != nil {
		hit <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	p, ok := l.packs[id]
	if !ok {
		return nil, &domain.AcquisitionError{PackID: id, Resource: "test://" + id, Hint: "check test setup", Err: domain.ErrPackNotFound}
	}
	return p, nil
}

type recordingRenderer struct {
	views []domain.View
}

func (r *recordingRenderer) OnNodeRendered(_ context.Context, v domain.View) {
	r.views = append(r.views, v)
}

type recordingNotes struct {
	nodes []string
}

func (r *recordingNotes) OnNotes(_ context.Context, nodeID string, _ domain.Node, _ domain.CaseMeta) {
	r.nodes = append(r.nodes, nodeID)
}

func kinds(trace []domain.TraceEntry) []domain.TraceKind {
	out := make([]domain.TraceKind, len(trace))
	for i, e := range trace {
		out[i] = e.Kind
	}
	return out
}
