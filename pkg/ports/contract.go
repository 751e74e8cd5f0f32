package ports

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ddt-tool/ddt/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contractExport(caseID string) *domain.CaseExport {
	return &domain.CaseExport{
		CaseID: caseID,
		Meta:   domain.CaseMeta{PackID: "pack", NodeID: "start", StepCount: 1},
		State: map[string]any{
			"results": map[string]any{"category": "A"},
			"tags":    []any{"x"},
		},
		Trace: []domain.TraceEntry{
			{Timestamp: time.Now().UTC(), Kind: domain.TraceEnter, PackID: "pack", NodeID: "start"},
		},
		ExportedAt: time.Now().UTC(),
	}
}

// RunExportStoreContract runs a suite of tests to verify that an ExportStore implementation
// adheres to the defined interface contract.
func RunExportStoreContract(t *testing.T, store ExportStore) {
	ctx := context.Background()
	caseID := "contract-case-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		export := contractExport(caseID)
		require.NoError(t, store.Save(ctx, export), "Save should not return error")

		loaded, err := store.Load(ctx, caseID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, export.CaseID, loaded.CaseID)
		assert.Equal(t, export.Meta, loaded.Meta)
		require.Len(t, loaded.Trace, 1)
		assert.Equal(t, domain.TraceEnter, loaded.Trace[0].Kind)
		results, ok := loaded.State["results"].(map[string]any)
		require.True(t, ok, "nested state should survive the round trip")
		assert.Equal(t, "A", results["category"])
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+caseID)
		assert.ErrorIs(t, err, domain.ErrCaseNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, contractExport(caseID)))
		require.NoError(t, store.Delete(ctx, caseID), "Delete should not return error")

		_, err := store.Load(ctx, caseID)
		assert.ErrorIs(t, err, domain.ErrCaseNotFound, "Load after Delete should return ErrCaseNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := caseID + "-1"
		id2 := caseID + "-2"
		_ = store.Save(ctx, contractExport(id1))
		_ = store.Save(ctx, contractExport(id2))
		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, id1)
		assert.Contains(t, ids, id2)
	})
}

// RunPackSourceContract verifies that a PackSource serves the given documents
// and reports unknown ids with domain.ErrPackNotFound.
func RunPackSourceContract(t *testing.T, source PackSource, docs map[string][]byte) {
	t.Helper()
	ctx := context.Background()

	t.Run("Fetch", func(t *testing.T) {
		for id, want := range docs {
			doc, err := source.Fetch(ctx, id)
			require.NoError(t, err, "fetching %s", id)
			assert.Equal(t, id, doc.PackID)
			assert.NotEmpty(t, doc.Resource)
			assert.Equal(t, string(want), string(doc.Data))
		}
	})

	t.Run("Fetch Not Found", func(t *testing.T) {
		_, err := source.Fetch(ctx, "non-existent-pack")
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrPackNotFound), "expected ErrPackNotFound, got %v", err)
	})

	if lister, ok := source.(Lister); ok {
		t.Run("List", func(t *testing.T) {
			ids, err := lister.List(ctx)
			require.NoError(t, err)
			for id := range docs {
				assert.Contains(t, ids, id)
			}
		})
	}
}
