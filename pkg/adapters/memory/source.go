package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/ddt-tool/ddt/pkg/domain"
	"github.com/ddt-tool/ddt/pkg/ports"
)

// Source implements ports.PackSource using an in-memory map of raw documents.
// Safe for concurrent use.
type Source struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// NewSource creates a Source with the provided raw documents (JSON or YAML).
func NewSource(docs map[string]string) *Source {
	s := &Source{docs: make(map[string][]byte, len(docs))}
	for id, doc := range docs {
		s.docs[id] = []byte(doc)
	}
	return s
}

// NewFromPacks creates a Source from canonical packs.
// This handles serialization automatically, improving DX for tests.
func NewFromPacks(packs ...*domain.Pack) (*Source, error) {
	s := &Source{docs: make(map[string][]byte, len(packs))}
	for _, p := range packs {
		if p == nil || p.ID == "" {
			return nil, fmt.Errorf("pack missing ID")
		}
		data, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal pack %s: %w", p.ID, err)
		}
		s.docs[p.ID] = data
	}
	return s, nil
}

// Put adds or replaces a document.
func (s *Source) Put(packID string, doc []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[packID] = append([]byte(nil), doc...)
}

// Fetch returns the raw document for packID.
func (s *Source) Fetch(_ context.Context, packID string) (ports.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.docs[packID]
	if !ok {
		return ports.Document{}, fmt.Errorf("%w: %s", domain.ErrPackNotFound, packID)
	}
	return ports.Document{
		PackID:   packID,
		Resource: s.Resource(packID),
		Data:     append([]byte(nil), data...),
	}, nil
}

// Resource names the in-memory location of a pack.
func (s *Source) Resource(packID string) string {
	return "memory://" + packID
}

// List returns all pack ids in lexical order.
func (s *Source) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.docs))
	for id := range s.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
