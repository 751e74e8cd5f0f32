package middleware_test

import (
	"context"
	"testing"

	"github.com/ddt-tool/ddt/pkg/adapters/memory"
	"github.com/ddt-tool/ddt/pkg/persistence/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPIIMiddleware_Masking(t *testing.T) {
	ctx := context.Background()
	underlying := memory.NewExportStore()
	mw, err := middleware.NewPIIMiddleware([]string{"^statement$", "^evidence"})
	require.NoError(t, err)
	store := mw(underlying)

	export := sampleExport("case-1")
	export.State["attachments"] = []any{map[string]any{"evidence_ref": "photo.jpg", "name": "photo"}}
	require.NoError(t, store.Save(ctx, export))

	// The caller's export is untouched.
	assert.Equal(t, "pump seized", export.State["deficiency_observation"].(map[string]any)["statement"])

	saved, err := underlying.Load(ctx, "case-1")
	require.NoError(t, err)
	obs := saved.State["deficiency_observation"].(map[string]any)
	assert.Equal(t, middleware.Mask, obs["statement"])
	assert.Equal(t, "Pump", obs["title"])
	att := saved.State["attachments"].([]any)[0].(map[string]any)
	assert.Equal(t, middleware.Mask, att["evidence_ref"])
	assert.Equal(t, "photo", att["name"])
}

func TestPIIMiddleware_InvalidPattern(t *testing.T) {
	_, err := middleware.NewPIIMiddleware([]string{"("})
	assert.Error(t, err)
}

func TestChain_MasksBeforeEncrypting(t *testing.T) {
	ctx := context.Background()
	underlying := memory.NewExportStore()
	pii, err := middleware.NewPIIMiddleware([]string{"statement"})
	require.NoError(t, err)
	enc, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	require.NoError(t, err)

	store := middleware.Chain(underlying, pii, enc)
	require.NoError(t, store.Save(ctx, sampleExport("case-1")))

	loaded, err := store.Load(ctx, "case-1")
	require.NoError(t, err)
	assert.Equal(t, middleware.Mask, loaded.State["deficiency_observation"].(map[string]any)["statement"])
}
