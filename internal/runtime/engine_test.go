package runtime_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ddt-tool/ddt/internal/runtime"
	"github.com/ddt-tool/ddt/pkg/casestore"
	"github.com/ddt-tool/ddt/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startEngine(t *testing.T, p *domain.Pack, opts ...runtime.Option) (*runtime.Engine, *casestore.Store) {
	t.Helper()
	store := casestore.New()
	e := runtime.NewEngine(opts...)
	require.NoError(t, e.LoadPack(p, store))
	assert.Equal(t, runtime.PhaseReady, e.Phase())
	_, err := e.Start(context.Background())
	require.NoError(t, err)
	return e, store
}

func TestEngine_AnswerThenBackRestoresState(t *testing.T) {
	ctx := context.Background()
	renderer := &recordingRenderer{}
	e, store := startEngine(t, yesNoPack(), runtime.WithRenderer(renderer))

	require.Len(t, renderer.views, 1)
	assert.Equal(t, "start", renderer.views[0].NodeID)
	assert.Equal(t, runtime.PhaseActive, e.Phase())
	before := store.State()

	view, err := e.Answer(ctx, "yes")
	require.NoError(t, err)
	assert.Equal(t, "n2", view.NodeID)
	assert.True(t, view.Terminal)
	assert.Equal(t, []domain.Action{{Kind: domain.ActionRestart, Label: "Restart"}}, view.Actions)

	trace := store.Trace()
	require.Len(t, trace, 2)
	assert.Equal(t, domain.TraceEnter, trace[0].Kind)
	assert.Equal(t, "start", trace[0].NodeID)
	assert.Equal(t, domain.TraceAnswer, trace[1].Kind)
	assert.Equal(t, "yes", trace[1].Answer)
	assert.Equal(t, "n2", trace[1].To)
	assert.Equal(t, 2, store.Meta().StepCount)

	view, err = e.Back(ctx)
	require.NoError(t, err)
	assert.Equal(t, "start", view.NodeID)
	assert.Equal(t, "start", store.Meta().NodeID)
	assert.Equal(t, before, store.State())
	assert.Equal(t, runtime.PhaseActive, e.Phase())
	assert.Equal(t, []domain.TraceKind{domain.TraceEnter, domain.TraceAnswer, domain.TraceBack}, kinds(store.Trace()))
}

func TestEngine_HandoffWithoutTargetKeepsPack(t *testing.T) {
	ctx := context.Background()
	p := newPack("figure1", "h", domain.Node{ID: "h", Type: domain.NodeTypeHandoff, Handoff: &domain.Handoff{}})
	e, store := startEngine(t, p)
	before := len(store.Trace())

	_, err := e.Handoff(ctx)
	var terr *domain.TransitionError
	require.ErrorAs(t, err, &terr)
	assert.ErrorIs(t, err, domain.ErrMissingHandoffTarget)

	trace := store.Trace()
	require.Len(t, trace, before+1)
	assert.Equal(t, domain.TraceError, trace[len(trace)-1].Kind)
	assert.Equal(t, "figure1", store.Meta().PackID)
	assert.Equal(t, "figure1", e.Pack().ID)
}

func TestEngine_EntryEffectsApplyBeforeRender(t *testing.T) {
	ctx := context.Background()
	p := newPack("figure1", "start",
		decision("start", choice("yes", "rec"), choice("no", "rec")),
		domain.Node{ID: "rec", Type: domain.NodeTypeOutcome, Effects: []domain.Effect{
			{Type: domain.EffectSet, Path: "results.classification", Value: "RECOMMENDATION"},
		}},
	)

	var seen any
	store := casestore.New()
	e := runtime.NewEngine(runtime.WithRenderer(rendererFunc(func(v domain.View) {
		if v.NodeID == "rec" {
			seen = store.State()["results"].(map[string]any)["classification"]
		}
	})))
	require.NoError(t, e.LoadPack(p, store))
	_, err := e.Start(ctx)
	require.NoError(t, err)

	_, err = e.Answer(ctx, "no")
	require.NoError(t, err)
	assert.Equal(t, "RECOMMENDATION", seen)
	assert.Equal(t, "RECOMMENDATION", store.State()["results"].(map[string]any)["classification"])
}

func TestEngine_RefreshIsIdempotent(t *testing.T) {
	ctx := context.Background()
	renderer := &recordingRenderer{}
	e, store := startEngine(t, yesNoPack(), runtime.WithRenderer(renderer))

	trace, state, depth := store.Trace(), store.State(), store.HistoryDepth()
	v1, err := e.Refresh(ctx)
	require.NoError(t, err)
	v2, err := e.Refresh(ctx)
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Equal(t, trace, store.Trace())
	assert.Equal(t, state, store.State())
	assert.Equal(t, depth, store.HistoryDepth())
	assert.Len(t, renderer.views, 3)
}

func TestEngine_TraceGrowsByOnePerTransition(t *testing.T) {
	ctx := context.Background()
	p := newPack("p", "a",
		domain.Node{ID: "a", Type: domain.NodeTypeInfo, Next: "b"},
		domain.Node{ID: "b", Type: domain.NodeTypeConnector, Next: "c"},
		decision("c", choice("yes", "d"), choice("no", "a")),
		domain.Node{ID: "d", Type: domain.NodeTypeOutcome},
	)
	e, store := startEngine(t, p)
	base := len(store.Trace())

	step := func(f func(context.Context) (domain.View, error)) {
		_, err := f(ctx)
		require.NoError(t, err)
	}
	step(e.Continue)
	step(e.Continue)
	_, err := e.Answer(ctx, "no")
	require.NoError(t, err)
	step(e.Continue)
	forward := 4

	backs := 3
	for i := 0; i < backs; i++ {
		step(e.Back)
	}
	assert.Len(t, store.Trace(), base+forward+backs)
	assert.Equal(t, 1, store.HistoryDepth())
	assert.Equal(t, "b", store.Meta().NodeID)

	store.Reset()
	assert.Empty(t, store.Trace())
}

func TestEngine_BackRestoresStateAfterEveryTransition(t *testing.T) {
	ctx := context.Background()
	p := newPack("p", "a",
		domain.Node{ID: "a", Type: domain.NodeTypeInfo, Next: "b", Effects: []domain.Effect{
			{Type: domain.EffectAppendTags, Value: "a"},
		}},
		decision("b", choice("yes", "c"), choice("no", "c")),
		domain.Node{ID: "c", Type: domain.NodeTypeOutcome, Effects: []domain.Effect{
			{Type: domain.EffectAppendTags, Value: []any{"c"}},
			{Type: domain.EffectSet, Path: "results.x", Value: map[string]any{"deep": true}},
		}},
	)
	e, store := startEngine(t, p)

	beforeA, nodeA := store.State(), store.Meta().NodeID
	_, err := e.Continue(ctx)
	require.NoError(t, err)
	beforeB, nodeB := store.State(), store.Meta().NodeID
	_, err = e.Answer(ctx, "yes")
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "c"}, store.State()["tags"])

	_, err = e.Back(ctx)
	require.NoError(t, err)
	assert.Equal(t, beforeB, store.State())
	assert.Equal(t, nodeB, store.Meta().NodeID)

	_, err = e.Back(ctx)
	require.NoError(t, err)
	assert.Equal(t, beforeA, store.State())
	assert.Equal(t, nodeA, store.Meta().NodeID)

	// Nothing left to undo.
	n := len(store.Trace())
	view, err := e.Back(ctx)
	require.NoError(t, err)
	assert.Equal(t, nodeA, view.NodeID)
	assert.Len(t, store.Trace(), n)
}

func TestEngine_RejectedTransitions(t *testing.T) {
	ctx := context.Background()
	p := newPack("p", "start",
		decision("start", choice("yes", "info"), choice("no", "info")),
		domain.Node{ID: "info", Type: domain.NodeTypeInfo},
	)
	e, store := startEngine(t, p)
	meta, state := store.Meta(), store.State()

	tests := []struct {
		name string
		call func() error
		want error
	}{
		{"unknown choice", func() error { _, err := e.Answer(ctx, "maybe"); return err }, domain.ErrUnknownChoice},
		{"continue on decision", func() error { _, err := e.Continue(ctx); return err }, domain.ErrInvalidAction},
		{"handoff on decision", func() error { _, err := e.Handoff(ctx); return err }, domain.ErrInvalidAction},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := len(store.Trace())
			err := tt.call()
			var terr *domain.TransitionError
			require.ErrorAs(t, err, &terr)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, "start", terr.NodeID)

			trace := store.Trace()
			require.Len(t, trace, n+1)
			assert.Equal(t, domain.TraceError, trace[n].Kind)
			assert.Equal(t, meta.NodeID, store.Meta().NodeID)
			assert.Equal(t, state, store.State())
			assert.Zero(t, store.HistoryDepth())
		})
	}

	_, err := e.Answer(ctx, "yes")
	require.NoError(t, err)
	assert.Equal(t, runtime.PhaseCompleted, e.Phase())

	_, err = e.Continue(ctx)
	assert.ErrorIs(t, err, domain.ErrTerminalNode)
}

func TestEngine_TerminalChoice(t *testing.T) {
	ctx := context.Background()
	p := newPack("p", "start", decision("start", choice("yes", ""), choice("no", "end")),
		domain.Node{ID: "end", Type: domain.NodeTypeOutcome})
	e, store := startEngine(t, p)

	view, err := e.Answer(ctx, "yes")
	require.NoError(t, err)
	assert.Equal(t, "start", view.NodeID)
	assert.True(t, view.Terminal)
	assert.Equal(t, domain.ActionRestart, view.Actions[0].Kind)
	assert.Equal(t, runtime.PhaseCompleted, e.Phase())
	assert.Equal(t, 1, store.HistoryDepth())

	_, err = e.Answer(ctx, "no")
	assert.ErrorIs(t, err, domain.ErrTerminalNode)

	_, err = e.Back(ctx)
	require.NoError(t, err)
	assert.Equal(t, runtime.PhaseActive, e.Phase())
}

func TestEngine_PhaseGuards(t *testing.T) {
	ctx := context.Background()
	e := runtime.NewEngine()

	_, err := e.Start(ctx)
	assert.ErrorIs(t, err, domain.ErrNoPack)
	_, err = e.Refresh(ctx)
	assert.ErrorIs(t, err, domain.ErrNoPack)

	require.NoError(t, e.LoadPack(yesNoPack(), casestore.New()))
	_, err = e.Answer(ctx, "yes")
	assert.ErrorIs(t, err, domain.ErrNotStarted)
	_, err = e.Back(ctx)
	assert.ErrorIs(t, err, domain.ErrNotStarted)

	_, err = e.Start(ctx)
	require.NoError(t, err)
	_, err = e.Start(ctx)
	assert.ErrorIs(t, err, domain.ErrInvalidAction)

	invalid := newPack("bad", "ghost", domain.Node{ID: "a", Type: domain.NodeTypeOutcome})
	var verr *domain.ValidationError
	assert.True(t, errors.As(e.LoadPack(invalid, casestore.New()), &verr))
	assert.Equal(t, "figure1", e.Pack().ID, "a rejected pack leaves the engine unchanged")
}

func TestEngine_Restart(t *testing.T) {
	ctx := context.Background()
	e, store := startEngine(t, yesNoPack())
	_, err := e.Answer(ctx, "no")
	require.NoError(t, err)

	view, err := e.Restart(ctx)
	require.NoError(t, err)
	assert.Equal(t, "start", view.NodeID)
	assert.Equal(t, []domain.TraceKind{domain.TraceEnter}, kinds(store.Trace()))
	assert.False(t, store.CanGoBack())
	assert.Equal(t, runtime.PhaseActive, e.Phase())
}

func TestEngine_NotesObserver(t *testing.T) {
	ctx := context.Background()
	notes := &recordingNotes{}
	p := newPack("p", "a",
		domain.Node{ID: "a", Type: domain.NodeTypeInfo, Next: "b", Notes: domain.NodeNotes{Hints: []string{"h"}}},
		domain.Node{ID: "b", Type: domain.NodeTypeOutcome},
	)
	e, _ := startEngine(t, p, runtime.WithNotesObserver(notes))
	_, err := e.Continue(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"a"}, notes.nodes)
}

type rendererFunc func(domain.View)

func (f rendererFunc) OnNodeRendered(_ context.Context, v domain.View) { f(v) }
