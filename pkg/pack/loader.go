package pack

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/ddt-tool/ddt/pkg/domain"
	"github.com/ddt-tool/ddt/pkg/ports"
)

// Loader acquires packs from a source and normalizes them.
// It implements ports.PackLoader.
type Loader struct {
	source     ports.PackSource
	normalizer *Normalizer
	logger     *slog.Logger

	cacheEnabled bool
	mu           sync.RWMutex
	cache        map[string]*domain.Pack
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithNormalizer replaces the default normalizer.
func WithNormalizer(n *Normalizer) LoaderOption {
	return func(l *Loader) {
		l.normalizer = n
	}
}

// WithCache keeps normalized packs in memory until invalidated.
func WithCache() LoaderOption {
	return func(l *Loader) {
		l.cacheEnabled = true
	}
}

// WithLoaderLogger sets the loader logger.
func WithLoaderLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) {
		l.logger = logger
	}
}

// NewLoader creates a Loader over source.
func NewLoader(source ports.PackSource, opts ...LoaderOption) *Loader {
	l := &Loader{
		source: source,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		cache:  make(map[string]*domain.Pack),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.normalizer == nil {
		l.normalizer = NewNormalizer(WithLogger(l.logger))
	}
	return l
}

// Load fetches and normalizes packID.
// Fetch and parse failures are returned as *domain.AcquisitionError, structural
// defects wrap *domain.ValidationError.
func (l *Loader) Load(ctx context.Context, packID string) (*domain.Pack, error) {
	id := strings.TrimSpace(packID)
	if id == "" {
		return nil, &domain.AcquisitionError{
			Resource: "(none)",
			Hint:     "a pack id is required, e.g. 'figure1'",
			Err:      errors.New("empty pack id"),
		}
	}

	if l.cacheEnabled {
		l.mu.RLock()
		p, ok := l.cache[id]
		l.mu.RUnlock()
		if ok {
			return p, nil
		}
	}

	doc, err := l.source.Fetch(ctx, id)
	if err != nil {
		resource := doc.Resource
		if resource == "" {
			resource = l.resource(id)
		}
		hint := "check that the pack exists and the source is reachable"
		if errors.Is(err, domain.ErrPackNotFound) {
			hint = "check the pack id and the configured packs location"
		}
		l.logger.Warn("pack fetch failed", "pack_id", id, "resource", resource, "err", err)
		return nil, &domain.AcquisitionError{PackID: id, Resource: resource, Hint: hint, Err: err}
	}

	p, err := l.normalizer.Normalize(doc.Data, id)
	if err != nil {
		if errors.Is(err, ErrMalformed) {
			return nil, &domain.AcquisitionError{
				PackID:   id,
				Resource: doc.Resource,
				Hint:     "the document must be valid JSON or YAML",
				Err:      err,
			}
		}
		return nil, fmt.Errorf("invalid decision pack format %s: %w", doc.Resource, err)
	}

	l.logger.Debug("pack loaded", "pack_id", p.ID, "resource", doc.Resource, "nodes", len(p.Nodes))

	if l.cacheEnabled {
		l.mu.Lock()
		l.cache[id] = p
		l.mu.Unlock()
	}
	return p, nil
}

// Invalidate drops a cached pack.
func (l *Loader) Invalidate(packID string) {
	l.mu.Lock()
	delete(l.cache, packID)
	l.mu.Unlock()
}

// InvalidateAll drops every cached pack.
func (l *Loader) InvalidateAll() {
	l.mu.Lock()
	l.cache = make(map[string]*domain.Pack)
	l.mu.Unlock()
}

// Watch invalidates cached packs whenever the source reports a change.
// It returns once the watch is established; invalidation stops when ctx is done.
func (l *Loader) Watch(ctx context.Context) error {
	w, ok := l.source.(ports.Watchable)
	if !ok {
		return fmt.Errorf("pack source %T does not support watching", l.source)
	}
	changes, err := w.Watch(ctx)
	if err != nil {
		return err
	}
	go func() {
		for id := range changes {
			l.logger.Info("pack changed, invalidating", "pack_id", id)
			l.Invalidate(id)
		}
	}()
	return nil
}

// ValidateAll loads every pack a listing source knows about and returns the
// failures keyed by pack id.
func (l *Loader) ValidateAll(ctx context.Context) (map[string]error, error) {
	lister, ok := l.source.(ports.Lister)
	if !ok {
		return nil, fmt.Errorf("pack source %T cannot list packs", l.source)
	}
	ids, err := lister.List(ctx)
	if err != nil {
		return nil, err
	}
	failures := make(map[string]error)
	for _, id := range ids {
		if _, err := l.Load(ctx, id); err != nil {
			failures[id] = err
		}
	}
	return failures, nil
}

func (l *Loader) resource(id string) string {
	if namer, ok := l.source.(ports.ResourceNamer); ok {
		return namer.Resource(id)
	}
	return id
}
