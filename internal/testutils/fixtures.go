// Package testutils holds pack fixtures shared by tests across packages.
package testutils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ddt-tool/ddt/pkg/adapters/memory"
	"github.com/stretchr/testify/require"
)

// Figure1 asks whether a failure occurred and hands off to figure2 on yes.
const Figure1 = `{
  "packId": "figure1",
  "title": "Figure 1",
  "start": "start",
  "nodes": {
    "start": {"type": "decision", "title": "Failure", "text": "Failure?", "choices": [
      {"label": "Yes", "value": "yes", "next": "to2"},
      {"label": "No", "value": "no", "next": "done"}
    ]},
    "to2": {"type": "handoff", "handoff": {"targetPackId": "figure2", "reason": "classify"}},
    "done": {"type": "outcome", "title": "No deficiency"}
  }
}`

// Figure2 sets results.failure_type on entry and ends after one step.
// It is YAML to exercise the YAML path of the normalizer.
const Figure2 = `packId: figure2
title: Figure 2
start: intro
nodes:
  intro:
    type: info
    next: end
    effects:
      - type: SET
        path: results.failure_type
        value: HARDWARE
  end:
    type: outcome
`

// Broken has a dangling next target.
const Broken = `{"packId": "broken", "start": "a", "nodes": {"a": {"type": "info", "next": "nowhere"}}}`

// Source returns an in-memory source with figure1 and figure2 plus extra documents.
func Source(extra map[string]string) *memory.Source {
	docs := map[string]string{"figure1": Figure1, "figure2": Figure2}
	for id, doc := range extra {
		docs[id] = doc
	}
	return memory.NewSource(docs)
}

// PacksDir writes figure1.json, figure2.yaml and the extra files into a temp directory.
func PacksDir(t *testing.T, extra map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{"figure1.json": Figure1, "figure2.yaml": Figure2}
	for name, doc := range extra {
		files[name] = doc
	}
	for name, doc := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(doc), 0o644))
	}
	return dir
}
