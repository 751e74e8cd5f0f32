package dsl_test

import (
	"context"
	"testing"

	"github.com/ddt-tool/ddt"
	"github.com/ddt-tool/ddt/pkg/domain"
	"github.com/ddt-tool/ddt/pkg/dsl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func figure1() *dsl.Builder {
	b := dsl.New("figure1").Title("Figure 1").Version("1.0").Known("figure2")
	b.Add("start").
		Title("Failure").
		Decision("Did the failure occur during the test?").
		Yes("to2").
		No("done").
		Hint("Consider intermittent failures too.")
	b.Add("to2").Handoff("figure2", "classify the failure")
	b.Add("done").Outcome("No deficiency")
	return b
}

func figure2() *dsl.Builder {
	b := dsl.New("figure2")
	b.Add("intro").Info("Classify the failure.").Set("results.failure_type", "HARDWARE").Go("end")
	b.Add("end").Outcome("")
	return b
}

func TestBuilder_Build(t *testing.T) {
	p, err := figure1().Build()
	require.NoError(t, err)

	assert.Equal(t, "figure1", p.ID)
	assert.Equal(t, "Figure 1", p.Title)
	assert.Equal(t, "start", p.EntryNodeID, "entry defaults to the first node")
	assert.Equal(t, []string{"start", "to2", "done"}, p.NodeIDs())

	start, ok := p.Node("start")
	require.True(t, ok)
	assert.Equal(t, domain.NodeTypeDecision, start.Type)
	require.Len(t, start.Choices, 2)
	assert.Equal(t, domain.Choice{Key: "yes", Label: "Yes", Target: "to2"}, start.Choices[0])
	assert.Equal(t, []string{"Consider intermittent failures too."}, start.Notes.Hints)

	to2, _ := p.Node("to2")
	require.NotNil(t, to2.Handoff)
	assert.Equal(t, "figure2", to2.Handoff.TargetPackID)
}

func TestBuilder_ValidationErrors(t *testing.T) {
	tests := []struct {
		name  string
		build func() *dsl.Builder
	}{
		{"no nodes", func() *dsl.Builder { return dsl.New("empty") }},
		{"one choice", func() *dsl.Builder {
			b := dsl.New("p")
			b.Add("q").Decision("?").Yes("end")
			b.Add("end").Outcome("")
			return b
		}},
		{"dangling next", func() *dsl.Builder {
			b := dsl.New("p")
			b.Add("a").Info("x").Go("missing")
			return b
		}},
		{"unknown handoff target", func() *dsl.Builder {
			b := dsl.New("p").Known("other")
			b.Add("h").Handoff("nowhere", "")
			return b
		}},
		{"missing start", func() *dsl.Builder {
			b := dsl.New("p").Start("nope")
			b.Add("end").Outcome("")
			return b
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.build().Build()
			var verr *domain.ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
}

func TestSource_DrivesEngine(t *testing.T) {
	src, err := dsl.Source(figure1(), figure2())
	require.NoError(t, err)

	eng, err := ddt.New("", ddt.WithSource(src))
	require.NoError(t, err)
	ctx := context.Background()

	view, err := eng.Open(ctx, "figure1")
	require.NoError(t, err)
	assert.Equal(t, "start", view.NodeID)

	_, err = eng.Answer(ctx, "yes")
	require.NoError(t, err)
	view, err = eng.Handoff(ctx)
	require.NoError(t, err)
	assert.Equal(t, "figure2", view.PackID)

	results, ok := eng.Store().State()["results"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "HARDWARE", results["failure_type"])

	view, err = eng.Continue(ctx)
	require.NoError(t, err)
	assert.True(t, view.Terminal)
}
