package domain

import (
	"reflect"
	"sort"
)

// StateDiff lists the top-level case keys that changed between two states.
// It is returned to HTTP clients so they can patch a local copy.
type StateDiff struct {
	Added   map[string]any `json:"added,omitempty"`
	Changed map[string]any `json:"changed,omitempty"`
	Removed []string       `json:"removed,omitempty"`
}

// DiffState compares two case states. A nil old state reports every key of
// newState as added. The result is nil when nothing changed.
func DiffState(oldState, newState map[string]any) *StateDiff {
	d := &StateDiff{}
	for k, nv := range newState {
		ov, exists := oldState[k]
		switch {
		case !exists:
			if d.Added == nil {
				d.Added = make(map[string]any)
			}
			d.Added[k] = nv
		case !reflect.DeepEqual(ov, nv):
			if d.Changed == nil {
				d.Changed = make(map[string]any)
			}
			d.Changed[k] = nv
		}
	}
	for k := range oldState {
		if _, exists := newState[k]; !exists {
			d.Removed = append(d.Removed, k)
		}
	}
	sort.Strings(d.Removed)

	if d.IsEmpty() {
		return nil
	}
	return d
}

// IsEmpty checks if the diff contains any changes.
func (d *StateDiff) IsEmpty() bool {
	return d == nil || (len(d.Added) == 0 && len(d.Changed) == 0 && len(d.Removed) == 0)
}
