package middleware

import (
	"context"
	"fmt"
	"regexp"

	"github.com/ddt-tool/ddt/pkg/domain"
	"github.com/ddt-tool/ddt/pkg/ports"
)

// Mask replaces masked values.
const Mask = "***"

type piiMiddleware struct {
	next     ports.ExportStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks state values whose key matches
// one of the patterns, at any depth. The in-memory case is never modified.
func NewPIIMiddleware(patternStrings []string) (Middleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid mask pattern %q: %w", p, err)
		}
		patterns[i] = re
	}
	return func(next ports.ExportStore) ports.ExportStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}, nil
}

func (m *piiMiddleware) Save(ctx context.Context, export *domain.CaseExport) error {
	masked := export.Clone()
	maskValue(masked.State, m.patterns)
	return m.next.Save(ctx, masked)
}

func (m *piiMiddleware) Load(ctx context.Context, caseID string) (*domain.CaseExport, error) {
	return m.next.Load(ctx, caseID)
}

func (m *piiMiddleware) Delete(ctx context.Context, caseID string) error {
	return m.next.Delete(ctx, caseID)
}

func (m *piiMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func maskValue(v any, patterns []*regexp.Regexp) {
	switch val := v.(type) {
	case map[string]any:
		for k, sub := range val {
			if matchAny(k, patterns) {
				val[k] = Mask
				continue
			}
			maskValue(sub, patterns)
		}
	case []any:
		for _, item := range val {
			maskValue(item, patterns)
		}
	}
}

func matchAny(key string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}
