package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ddt-tool/ddt/pkg/domain"
	"github.com/ddt-tool/ddt/pkg/ports"
)

// DefaultTimeout bounds a single pack fetch.
const DefaultTimeout = 10 * time.Second

// maxDocumentSize caps the body read from a pack server.
const maxDocumentSize = 4 << 20

// Source implements ports.PackSource over HTTP. A pack id maps to <base>/<id>.json.
// Each Fetch is a single GET without retries.
type Source struct {
	BaseURL string
	Client  *http.Client
}

// SourceOption configures a Source.
type SourceOption func(*Source)

// WithHTTPClient replaces the client used for fetches.
func WithHTTPClient(c *http.Client) SourceOption {
	return func(s *Source) {
		s.Client = c
	}
}

// WithTimeout sets the per-request timeout of the default client.
func WithTimeout(d time.Duration) SourceOption {
	return func(s *Source) {
		s.Client = &http.Client{Timeout: d}
	}
}

// NewSource creates a Source rooted at baseURL.
func NewSource(baseURL string, opts ...SourceOption) *Source {
	s := &Source{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Resource returns the URL a pack id maps to.
func (s *Source) Resource(packID string) string {
	return s.BaseURL + "/" + packID + ".json"
}

// Fetch downloads the document for packID.
func (s *Source) Fetch(ctx context.Context, packID string) (ports.Document, error) {
	url := s.Resource(packID)
	doc := ports.Document{PackID: packID, Resource: url}
	if packID == "" || strings.ContainsAny(packID, "/\\?#") {
		return doc, fmt.Errorf("%w: invalid pack id %q", domain.ErrPackNotFound, packID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return doc, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return doc, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return doc, fmt.Errorf("%w: %s", domain.ErrPackNotFound, packID)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return doc, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize+1))
	if err != nil {
		return doc, fmt.Errorf("failed to read response: %w", err)
	}
	if len(data) > maxDocumentSize {
		return doc, fmt.Errorf("document exceeds %d bytes", maxDocumentSize)
	}
	doc.Data = data
	return doc, nil
}
