// Package effects applies declarative node effects to a case state.
//
// Application never fails: unknown or malformed descriptors are skipped so that
// packs written for newer interpreters still run.
package effects

import (
	"io"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/ddt-tool/ddt/pkg/domain"
)

// Applicator mutates a case state according to effect descriptors.
type Applicator struct {
	logger *slog.Logger
	now    func() time.Time
}

// Option configures an Applicator.
type Option func(*Applicator)

// WithLogger sets the logger used to report skipped descriptors.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Applicator) {
		a.logger = logger
	}
}

// WithClock overrides the clock used for the last-modified stamp.
func WithClock(now func() time.Time) Option {
	return func(a *Applicator) {
		a.now = now
	}
}

// New creates an Applicator.
func New(opts ...Option) *Applicator {
	a := &Applicator{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Apply runs effects against state in list order and returns how many were recognized.
// Whenever effects is non-empty and state has a timestamps map, its
// last_modified_utc entry is refreshed, even if every effect was skipped.
func (a *Applicator) Apply(state map[string]any, effects []domain.Effect) int {
	if state == nil {
		return 0
	}
	recognized := 0
	for _, eff := range effects {
		if a.apply(state, eff) {
			recognized++
		} else {
			a.logger.Debug("effect skipped", "type", eff.Type, "path", eff.Path)
		}
	}
	if len(effects) > 0 {
		a.touch(state)
	}
	return recognized
}

func (a *Applicator) apply(state map[string]any, eff domain.Effect) bool {
	switch strings.ToUpper(eff.Type) {
	case domain.EffectSet, domain.EffectSetResult:
		if eff.Path == "" {
			return false
		}
		setPath(state, eff.Path, domain.CloneValue(eff.Value))
	case domain.EffectAppendTags:
		appendUnique(state, pathOr(eff.Path, domain.PathTags), eff.Value, true)
	case domain.EffectUnlock:
		flags, ok := eff.Value.(map[string]any)
		if !ok {
			return false
		}
		unlocked := ensureMap(state, pathOr(eff.Path, domain.PathUnlocked))
		if unlocked == nil {
			return false
		}
		for k, v := range flags {
			unlocked[k] = truthy(v)
		}
	case domain.EffectAddRequiredSection:
		appendUnique(state, pathOr(eff.Path, domain.PathRequiredSections), eff.Value, false)
	case domain.EffectSetAnalysisStage:
		setPath(state, domain.PathAnalysisStage, domain.CloneValue(eff.Value))
	case domain.EffectMarkPackComplete, domain.EffectRouteToPack, domain.EffectAction:
		// Handled by the host.
	default:
		return false
	}
	return true
}

func (a *Applicator) touch(state map[string]any) {
	if ts, ok := state["timestamps"].(map[string]any); ok {
		ts["last_modified_utc"] = a.now().UTC().Format(time.RFC3339Nano)
	}
}

func pathOr(path, def string) string {
	if path == "" {
		return def
	}
	return path
}

// setPath assigns value at a dotted path, replacing non-map intermediates with maps.
func setPath(state map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	cur := state
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cur[p] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = value
}

// ensureMap returns the map at path, creating missing levels. It returns nil when
// an existing value on the path is not a map.
func ensureMap(state map[string]any, path string) map[string]any {
	cur := state
	for _, p := range strings.Split(path, ".") {
		v, exists := cur[p]
		if !exists || v == nil {
			next := make(map[string]any)
			cur[p] = next
			cur = next
			continue
		}
		next, ok := v.(map[string]any)
		if !ok {
			return nil
		}
		cur = next
	}
	return cur
}

// appendUnique appends value to the list at path unless already present. With
// spread, each element of a list value is appended on its own.
// A missing list is created; an existing non-list value is left alone.
func appendUnique(state map[string]any, path string, value any, spread bool) {
	if value == nil {
		return
	}
	parts := strings.Split(path, ".")
	parent := state
	if len(parts) > 1 {
		parent = ensureMap(state, strings.Join(parts[:len(parts)-1], "."))
		if parent == nil {
			return
		}
	}
	leaf := parts[len(parts)-1]

	var list []any
	switch cur := parent[leaf].(type) {
	case nil:
	case []any:
		list = cur
	case []string:
		for _, s := range cur {
			list = append(list, s)
		}
	default:
		return
	}

	items := []any{value}
	if spread {
		items = listOf(value)
	}
	for _, item := range items {
		if !contains(list, item) {
			list = append(list, domain.CloneValue(item))
		}
	}
	if list == nil {
		list = []any{}
	}
	parent[leaf] = list
}

func listOf(value any) []any {
	switch v := value.(type) {
	case []any:
		return v
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out
	}
	return []any{value}
}

func contains(list []any, item any) bool {
	for _, v := range list {
		if reflect.DeepEqual(v, item) {
			return true
		}
	}
	return false
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case int:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	}
	return true
}
