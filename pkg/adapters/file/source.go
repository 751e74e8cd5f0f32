package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/aretw0/loam"
	"github.com/aretw0/loam/pkg/core"
	"github.com/ddt-tool/ddt/pkg/domain"
	"github.com/ddt-tool/ddt/pkg/ports"
)

// Extensions tried, in order, when resolving a pack id to a file.
var packExtensions = []string{".json", ".yaml", ".yml"}

// formatKey is the metadata key rawSerializer uses to tag pack documents.
const formatKey = "ddt_format"

// Source implements ports.PackSource over a directory of pack documents,
// read through a read-only loam repository.
// A pack id maps to <dir>/<id>.json, .yaml or .yml.
type Source struct {
	Dir string

	logger *slog.Logger

	mu   sync.Mutex
	repo core.Repository
}

// SourceOption configures a Source.
type SourceOption func(*Source)

// WithLogger sets the logger handed to the loam repository.
func WithLogger(logger *slog.Logger) SourceOption {
	return func(s *Source) {
		s.logger = logger
	}
}

// NewSource creates a Source. If dir is empty, it defaults to "decision-trees".
func NewSource(dir string, opts ...SourceOption) *Source {
	if dir == "" {
		dir = "decision-trees"
	}
	s := &Source{Dir: dir}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// repository opens the loam repository on first use. A missing directory is
// reported as fs.ErrNotExist and retried on the next call.
func (s *Source) repository() (core.Repository, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.repo != nil {
		return s.repo, nil
	}
	if _, err := os.Stat(s.Dir); err != nil {
		return nil, err
	}

	opts := []loam.Option{
		loam.WithReadOnly(true),
		loam.WithVersioning(false),
	}
	for _, ext := range packExtensions {
		opts = append(opts, loam.WithSerializer(ext, rawSerializer{format: ext}))
	}
	if s.logger != nil {
		opts = append(opts, loam.WithLogger(s.logger))
	}

	repo, err := loam.Init(s.Dir, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open pack directory: %w", err)
	}
	s.repo = repo
	return repo, nil
}

// Fetch reads the document for packID.
func (s *Source) Fetch(ctx context.Context, packID string) (ports.Document, error) {
	if err := validID(packID); err != nil {
		return ports.Document{Resource: s.Resource(packID)}, err
	}
	notFound := fmt.Errorf("%w: %s", domain.ErrPackNotFound, packID)

	repo, err := s.repository()
	if errors.Is(err, fs.ErrNotExist) {
		return ports.Document{Resource: s.Resource(packID)}, notFound
	}
	if err != nil {
		return ports.Document{Resource: s.Resource(packID)}, err
	}

	for _, ext := range packExtensions {
		path := filepath.Join(s.Dir, packID+ext)
		doc, err := repo.Get(ctx, packID+ext)
		if err == nil {
			return ports.Document{PackID: packID, Resource: path, Data: []byte(doc.Content)}, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return ports.Document{Resource: path}, fmt.Errorf("failed to read pack file: %w", err)
		}
	}
	return ports.Document{Resource: s.Resource(packID)}, notFound
}

// Resource returns the canonical path of a pack id.
func (s *Source) Resource(packID string) string {
	return filepath.Join(s.Dir, packID+packExtensions[0])
}

// List returns the ids of all pack documents at the top of the directory.
func (s *Source) List(ctx context.Context) ([]string, error) {
	repo, err := s.repository()
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}

	docs, err := repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list packs: %w", err)
	}

	seen := make(map[string]bool)
	ids := []string{}
	for _, doc := range docs {
		if _, ok := doc.Metadata[formatKey]; !ok {
			continue
		}
		if !validPackName(doc.ID) || seen[doc.ID] {
			continue
		}
		seen[doc.ID] = true
		ids = append(ids, doc.ID)
	}
	sort.Strings(ids)
	return ids, nil
}

// rawSerializer keeps a pack document byte for byte in Content. Metadata only
// tags the format, so key order survives for the normalizer.
type rawSerializer struct {
	format string
}

func (r rawSerializer) Parse(in io.Reader, _ string) (*core.Document, error) {
	data, err := io.ReadAll(in)
	if err != nil {
		return nil, err
	}
	return &core.Document{
		Content:  string(data),
		Metadata: core.Metadata{formatKey: r.format},
	}, nil
}

func (r rawSerializer) Serialize(doc core.Document, _ string) ([]byte, error) {
	return []byte(doc.Content), nil
}

func validPackName(id string) bool {
	return id != "" && !strings.HasPrefix(id, ".") && !strings.ContainsAny(id, `/\`)
}

func validID(id string) error {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return fmt.Errorf("invalid pack id %q: %w", id, domain.ErrPackNotFound)
	}
	return nil
}
