package dsl

import (
	"fmt"

	"github.com/ddt-tool/ddt/pkg/adapters/memory"
	"github.com/ddt-tool/ddt/pkg/domain"
)

// Builder manages the pack construction.
type Builder struct {
	id      string
	title   string
	version string
	entry   string
	known   []string
	nodes   map[string]*NodeBuilder
	order   []string
}

// New creates a new pack builder.
func New(packID string) *Builder {
	return &Builder{
		id:    packID,
		nodes: make(map[string]*NodeBuilder),
	}
}

// Title sets the pack title.
func (b *Builder) Title(title string) *Builder {
	b.title = title
	return b
}

// Version sets the pack version.
func (b *Builder) Version(version string) *Builder {
	b.version = version
	return b
}

// Start sets the entry node. It defaults to the first node added.
func (b *Builder) Start(nodeID string) *Builder {
	b.entry = nodeID
	return b
}

// Known declares pack ids that handoff targets may reference.
// Without it, handoff targets are not checked.
func (b *Builder) Known(packIDs ...string) *Builder {
	b.known = append(b.known, packIDs...)
	return b
}

// Add creates a new node in the pack.
// If the node already exists, it returns the existing builder.
func (b *Builder) Add(id string) *NodeBuilder {
	if nb, ok := b.nodes[id]; ok {
		return nb
	}
	nb := &NodeBuilder{
		node: domain.Node{
			ID:   id,
			Type: domain.NodeTypeInfo,
		},
	}
	b.nodes[id] = nb
	b.order = append(b.order, id)
	return nb
}

// Build assembles and validates the pack.
func (b *Builder) Build() (*domain.Pack, error) {
	nodes := make(map[string]domain.Node, len(b.nodes))
	for id, nb := range b.nodes {
		nodes[id] = nb.node.Clone()
	}

	entry := b.entry
	if entry == "" && len(b.order) > 0 {
		entry = b.order[0]
	}

	p := domain.NewPack(b.id, b.title, b.version, entry, nodes, b.order)

	var known map[string]bool
	if len(b.known) > 0 {
		known = map[string]bool{b.id: true}
		for _, id := range b.known {
			known[id] = true
		}
	}
	if err := p.Validate(known); err != nil {
		return nil, err
	}
	return p, nil
}

// Source builds every pack into an in-memory pack source.
func Source(builders ...*Builder) (*memory.Source, error) {
	packs := make([]*domain.Pack, 0, len(builders))
	for _, b := range builders {
		p, err := b.Build()
		if err != nil {
			return nil, err
		}
		packs = append(packs, p)
	}
	src, err := memory.NewFromPacks(packs...)
	if err != nil {
		return nil, fmt.Errorf("failed to build memory source: %w", err)
	}
	return src, nil
}

// MustSource is like Source over already built packs and panics on error.
func MustSource(packs ...*domain.Pack) *memory.Source {
	src, err := memory.NewFromPacks(packs...)
	if err != nil {
		panic(err)
	}
	return src
}
