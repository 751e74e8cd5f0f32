package domain

import "sort"

// Pack is a validated decision graph. It is immutable once normalized:
// callers read nodes through Node, which hands out copies.
type Pack struct {
	ID          string          `json:"packId" yaml:"packId"`
	Title       string          `json:"title" yaml:"title"`
	Version     string          `json:"version" yaml:"version"`
	EntryNodeID string          `json:"entryNodeId" yaml:"entryNodeId"`
	Source      string          `json:"source,omitempty" yaml:"source,omitempty"`
	Nodes       map[string]Node `json:"nodes" yaml:"nodes"`

	// order keeps the node ids in document order for deterministic iteration.
	order []string
}

// NewPack assembles a pack. order lists node ids in document order; ids missing
// from it are appended in lexical order.
func NewPack(id, title, version, entry string, nodes map[string]Node, order []string) *Pack {
	p := &Pack{
		ID:          id,
		Title:       title,
		Version:     version,
		EntryNodeID: entry,
		Nodes:       nodes,
	}
	seen := make(map[string]bool, len(nodes))
	for _, nid := range order {
		if _, ok := nodes[nid]; ok && !seen[nid] {
			seen[nid] = true
			p.order = append(p.order, nid)
		}
	}
	var rest []string
	for nid := range nodes {
		if !seen[nid] {
			rest = append(rest, nid)
		}
	}
	sort.Strings(rest)
	p.order = append(p.order, rest...)
	return p
}

// Node returns a copy of the node with the given id.
func (p *Pack) Node(id string) (Node, bool) {
	if p == nil {
		return Node{}, false
	}
	n, ok := p.Nodes[id]
	if !ok {
		return Node{}, false
	}
	return n.Clone(), true
}

// Has reports whether id resolves to a node.
func (p *Pack) Has(id string) bool {
	if p == nil {
		return false
	}
	_, ok := p.Nodes[id]
	return ok
}

// NodeIDs returns node ids in document order.
func (p *Pack) NodeIDs() []string {
	if p == nil {
		return nil
	}
	if len(p.order) != len(p.Nodes) {
		return NewPack(p.ID, p.Title, p.Version, p.EntryNodeID, p.Nodes, p.order).order
	}
	return append([]string(nil), p.order...)
}

// OrderedNodes returns copies of all nodes in document order.
func (p *Pack) OrderedNodes() []Node {
	ids := p.NodeIDs()
	nodes := make([]Node, 0, len(ids))
	for _, id := range ids {
		n, _ := p.Node(id)
		nodes = append(nodes, n)
	}
	return nodes
}
