package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/ddt-tool/ddt/pkg/domain"
)

// ExportStore implements ports.ExportStore in memory.
// Safe for concurrent use.
type ExportStore struct {
	data map[string]*domain.CaseExport
	mu   sync.RWMutex
}

// NewExportStore creates a new in-memory export store.
func NewExportStore() *ExportStore {
	return &ExportStore{
		data: make(map[string]*domain.CaseExport),
	}
}

// Save stores a private copy of the export.
func (s *ExportStore) Save(_ context.Context, export *domain.CaseExport) error {
	cp := export.Clone()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[export.CaseID] = cp
	return nil
}

// Load returns a copy so callers cannot mutate stored exports.
func (s *ExportStore) Load(_ context.Context, caseID string) (*domain.CaseExport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[caseID]
	if !ok {
		return nil, domain.ErrCaseNotFound
	}
	return e.Clone(), nil
}

// Delete removes an export.
func (s *ExportStore) Delete(_ context.Context, caseID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, caseID)
	return nil
}

// List returns the stored case ids in lexical order.
func (s *ExportStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
