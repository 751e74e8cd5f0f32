package ports

import (
	"context"

	"github.com/ddt-tool/ddt/pkg/domain"
)

// Document is a raw pack document as fetched from a source.
type Document struct {
	PackID string
	// Resource names where the document came from (path or URL). It is used in error messages.
	Resource string
	Data     []byte
}

// PackSource retrieves raw pack documents by id.
// This allows the storage layer (file system, HTTP, memory) to be decoupled from normalization.
type PackSource interface {
	// Fetch returns the raw document for packID.
	// It returns an error wrapping domain.ErrPackNotFound when the id is unknown.
	Fetch(ctx context.Context, packID string) (Document, error)
}

// Lister is implemented by sources that can enumerate their packs.
// This is used by catalog validation and the 'ddt validate' command.
type Lister interface {
	List(ctx context.Context) ([]string, error)
}

// Watchable defines an interface for sources that can notify about backend changes.
type Watchable interface {
	// Watch returns a channel that receives the id of each pack whose document changed.
	// The channel is closed when ctx is done.
	Watch(ctx context.Context) (<-chan string, error)
}

// PackLoader acquires a normalized, validated pack by id.
type PackLoader interface {
	Load(ctx context.Context, packID string) (*domain.Pack, error)
}

// ResourceNamer is implemented by sources that can name the resource a pack id maps to
// (a path or URL), so failures can point at it even when nothing was fetched.
type ResourceNamer interface {
	Resource(packID string) string
}
