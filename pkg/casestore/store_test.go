package casestore_test

import (
	"sync"
	"testing"
	"time"

	"github.com/ddt-tool/ddt/pkg/casestore"
	"github.com/ddt-tool/ddt/pkg/domain"
	"github.com/ddt-tool/ddt/pkg/ports"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.CaseStore = (*casestore.Store)(nil)

func TestStore_StateIsCopied(t *testing.T) {
	s := casestore.New()
	in := map[string]any{"results": map[string]any{"c": "A"}}
	s.ReplaceState(in)

	in["results"].(map[string]any)["c"] = "mutated"
	out := s.State()
	assert.Equal(t, "A", out["results"].(map[string]any)["c"])

	out["results"].(map[string]any)["c"] = "mutated again"
	assert.Equal(t, "A", s.State()["results"].(map[string]any)["c"])
}

func TestStore_ReplaceDoesNotMerge(t *testing.T) {
	s := casestore.New()
	s.ReplaceState(map[string]any{"a": 1, "b": 2})
	s.ReplaceState(map[string]any{"c": 3})
	assert.Equal(t, map[string]any{"c": 3}, s.State())
}

func TestStore_HistoryRestoresDeepEqualState(t *testing.T) {
	s := casestore.New()
	s.ReplaceState(map[string]any{"tags": []any{"a"}, "nested": map[string]any{"x": 1}})
	before := s.State()

	s.PushHistory("p", "start")

	// Mutate after the push through a read-modify-write cycle.
	st := s.State()
	st["tags"] = append(st["tags"].([]any), "b")
	st["nested"].(map[string]any)["x"] = 2
	s.ReplaceState(st)

	s.PushHistory("p", "n2")
	assert.Equal(t, 2, s.HistoryDepth())

	top, ok := s.PopHistory()
	require.True(t, ok)
	assert.Equal(t, "n2", top.NodeID)

	frame, ok := s.PopHistory()
	require.True(t, ok)
	assert.Equal(t, "p", frame.PackID)
	assert.Equal(t, "start", frame.NodeID)
	s.ReplaceState(frame.StateSnapshot)

	assert.Equal(t, before, s.State())
	assert.False(t, s.CanGoBack())

	_, ok = s.PopHistory()
	assert.False(t, ok)
}

func TestStore_PeekDoesNotAlias(t *testing.T) {
	s := casestore.New()
	s.ReplaceState(map[string]any{"k": map[string]any{"v": 1}})
	s.PushHistory("p", "n")

	peek, ok := s.PeekHistory()
	require.True(t, ok)
	peek.StateSnapshot["k"].(map[string]any)["v"] = 99

	frame, _ := s.PopHistory()
	assert.Equal(t, 1, frame.StateSnapshot["k"].(map[string]any)["v"])
}

func TestStore_TraceStampsAreMonotonic(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := []time.Time{base, base.Add(-time.Minute), base.Add(time.Second)}
	i := 0
	s := casestore.New(casestore.WithClock(func() time.Time {
		ts := clock[i%len(clock)]
		i++
		return ts
	}))

	e1 := s.AppendTrace(domain.TraceEntry{Kind: domain.TraceEnter, NodeID: "a"})
	e2 := s.AppendTrace(domain.TraceEntry{Kind: domain.TraceAnswer, NodeID: "a"})
	e3 := s.AppendTrace(domain.TraceEntry{Kind: domain.TraceBack, NodeID: "a"})

	assert.Equal(t, base, e1.Timestamp)
	assert.Equal(t, base, e2.Timestamp, "clock going backwards is clamped")
	assert.Equal(t, base.Add(time.Second), e3.Timestamp)
	assert.Equal(t, 3, s.Meta().StepCount)
	assert.Len(t, s.Trace(), 3)
}

func TestStore_SetMetaKeepsStepCount(t *testing.T) {
	s := casestore.New()
	s.AppendTrace(domain.TraceEntry{Kind: domain.TraceEnter})
	s.SetMeta(domain.CaseMeta{PackID: "p", NodeID: "n", StepCount: 42})
	assert.Equal(t, domain.CaseMeta{PackID: "p", NodeID: "n", StepCount: 1}, s.Meta())
}

func TestStore_Reset(t *testing.T) {
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	s := casestore.New(
		casestore.WithTemplate(casestore.DefaultCase),
		casestore.WithClock(func() time.Time { return now }),
	)
	id := s.ID()
	_, err := uuid.Parse(id)
	require.NoError(t, err)

	s.SetMeta(domain.CaseMeta{PackID: "p", NodeID: "n"})
	s.AppendTrace(domain.TraceEntry{Kind: domain.TraceEnter})
	s.PushHistory("p", "n")
	s.ReplaceState(map[string]any{"scratch": true})

	s.Reset()

	assert.Empty(t, s.Trace())
	assert.Zero(t, s.HistoryDepth())
	assert.Equal(t, domain.CaseMeta{}, s.Meta())
	assert.Equal(t, id, s.ID())

	st := s.State()
	assert.Equal(t, id, st["case_id"])
	assert.Equal(t, "IN_PROGRESS", st["case_status"])
	assert.Equal(t, []any{"DEFICIENCY_DESCRIPTION", "RESULTS_PARAGRAPH"},
		st["reporting"].(map[string]any)["required_sections"])
	assert.NotContains(t, st, "scratch")
}

func TestStore_ExportAndRehydrate(t *testing.T) {
	s := casestore.New(casestore.WithID("case-1"))
	s.ReplaceState(map[string]any{"a": "b"})
	s.AppendTrace(domain.TraceEntry{Kind: domain.TraceEnter, PackID: "p", NodeID: "start"})
	s.SetMeta(domain.CaseMeta{PackID: "p", NodeID: "start"})

	export := s.Export()
	assert.Equal(t, "case-1", export.CaseID)
	assert.Equal(t, domain.CaseMeta{PackID: "p", NodeID: "start", StepCount: 1}, export.Meta)

	export.State["a"] = "mutated"
	assert.Equal(t, "b", s.State()["a"])

	restored := casestore.FromExport(s.Export())
	assert.Equal(t, "case-1", restored.ID())
	assert.Equal(t, s.Meta(), restored.Meta())
	assert.Equal(t, s.Trace(), restored.Trace())
	assert.False(t, restored.CanGoBack())
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := casestore.New()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			st := s.State()
			st["k"] = i
			s.ReplaceState(st)
			s.AppendTrace(domain.TraceEntry{Kind: domain.TraceAck})
			_ = s.Export()
		}(i)
	}
	wg.Wait()
	assert.Len(t, s.Trace(), 20)
	assert.Equal(t, 20, s.Meta().StepCount)
}
