package effects_test

import (
	"testing"
	"time"

	"github.com/ddt-tool/ddt/pkg/domain"
	"github.com/ddt-tool/ddt/pkg/effects"
	"github.com/stretchr/testify/assert"
)

var fixedNow = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func newApplicator() *effects.Applicator {
	return effects.New(effects.WithClock(func() time.Time { return fixedNow }))
}

func TestApply_SetCreatesIntermediateMaps(t *testing.T) {
	state := map[string]any{}
	n := newApplicator().Apply(state, []domain.Effect{
		{Type: domain.EffectSet, Path: "results.classification", Value: "RECOMMENDATION"},
	})

	assert.Equal(t, 1, n)
	assert.Equal(t, "RECOMMENDATION", state["results"].(map[string]any)["classification"])
}

func TestApply_SetReplacesScalarIntermediate(t *testing.T) {
	state := map[string]any{"results": "legacy"}
	newApplicator().Apply(state, []domain.Effect{
		{Type: domain.EffectSetResult, Path: "results.failure_type", Value: "TYPE_1"},
	})
	assert.Equal(t, map[string]any{"failure_type": "TYPE_1"}, state["results"])
}

func TestApply_AppendTagsIsIdempotent(t *testing.T) {
	state := map[string]any{"tags": []any{"a"}}
	eff := []domain.Effect{{Type: domain.EffectAppendTags, Value: []any{"a", "b"}}}

	a := newApplicator()
	a.Apply(state, eff)
	a.Apply(state, eff)
	a.Apply(state, []domain.Effect{{Type: domain.EffectAppendTags, Value: "c"}})

	assert.Equal(t, []any{"a", "b", "c"}, state["tags"])
}

func TestApply_AppendTagsIgnoresNonList(t *testing.T) {
	state := map[string]any{"tags": "not-a-list"}
	newApplicator().Apply(state, []domain.Effect{{Type: domain.EffectAppendTags, Value: "x"}})
	assert.Equal(t, "not-a-list", state["tags"])
}

func TestApply_Unlock(t *testing.T) {
	state := map[string]any{
		"analysis_state": map[string]any{"unlocked": map[string]any{"figure1": true, "figure2": false}},
	}
	newApplicator().Apply(state, []domain.Effect{
		{Type: domain.EffectUnlock, Value: map[string]any{"figure2": 1.0, "figure3": "", "rollup": true}},
	})

	assert.Equal(t, map[string]any{"figure1": true, "figure2": true, "figure3": false, "rollup": true},
		state["analysis_state"].(map[string]any)["unlocked"])
}

func TestApply_AddRequiredSection(t *testing.T) {
	state := map[string]any{
		"reporting": map[string]any{"required_sections": []any{"DEFICIENCY_DESCRIPTION"}},
	}
	newApplicator().Apply(state, []domain.Effect{
		{Type: domain.EffectAddRequiredSection, Value: "BLUE_SHEET"},
		{Type: domain.EffectAddRequiredSection, Value: "DEFICIENCY_DESCRIPTION"},
		{Type: domain.EffectAddRequiredSection, Value: []any{"A", "B"}},
	})
	assert.Equal(t, []any{"DEFICIENCY_DESCRIPTION", "BLUE_SHEET", []any{"A", "B"}},
		state["reporting"].(map[string]any)["required_sections"])
}

func TestApply_UnknownAndMalformedAreIgnored(t *testing.T) {
	state := map[string]any{"timestamps": map[string]any{"last_modified_utc": "before"}}
	n := newApplicator().Apply(state, []domain.Effect{
		{Type: "FUTURE_EFFECT", Path: "x", Value: 1},
		{Type: domain.EffectSet},
		{Type: domain.EffectUnlock, Value: "figure2"},
	})

	assert.Zero(t, n)
	assert.Equal(t, map[string]any{"timestamps": map[string]any{"last_modified_utc": fixedNow.Format(time.RFC3339Nano)}}, state)
}

func TestApply_NoEffectsLeavesTimestamps(t *testing.T) {
	state := map[string]any{"timestamps": map[string]any{"last_modified_utc": "before"}}
	assert.Zero(t, newApplicator().Apply(state, nil))
	assert.Equal(t, "before", state["timestamps"].(map[string]any)["last_modified_utc"])
}

func TestApply_TouchesTimestamps(t *testing.T) {
	state := map[string]any{"timestamps": map[string]any{}}
	newApplicator().Apply(state, []domain.Effect{
		{Type: domain.EffectSetAnalysisStage, Value: "FIGURE2_CLASSIFICATION"},
		{Type: domain.EffectMarkPackComplete},
	})

	assert.Equal(t, "FIGURE2_CLASSIFICATION", state["analysis_state"].(map[string]any)["stage"])
	assert.Equal(t, fixedNow.Format(time.RFC3339Nano), state["timestamps"].(map[string]any)["last_modified_utc"])
}

func TestApply_ValueIsCopied(t *testing.T) {
	value := map[string]any{"k": "v"}
	state := map[string]any{}
	newApplicator().Apply(state, []domain.Effect{{Type: domain.EffectSet, Path: "obj", Value: value}})

	value["k"] = "mutated"
	assert.Equal(t, "v", state["obj"].(map[string]any)["k"])
}
