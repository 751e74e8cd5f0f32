package pack_test

import (
	"errors"
	"testing"

	"github.com/ddt-tool/ddt/pkg/domain"
	"github.com/ddt-tool/ddt/pkg/pack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const canonicalDoc = `{
  "packId": "figure1",
  "title": "Figure 1",
  "entryNodeId": "start",
  "nodes": {
    "start": {
      "type": "decision",
      "text": "Is the deficiency observable?",
      "choices": [
        {"label": "Yes", "value": "yes", "next": "n2"},
        {"label": "No", "value": "no", "next": "end"}
      ]
    },
    "n2": {"type": "info", "text": "Document it.", "next": "end",
           "effects": [{"type": "set_result", "path": "results.category", "value": "X"}, {"path": "no.type"}]},
    "end": {"type": "outcome", "title": "Done"}
  }
}`

func TestNormalize_Canonical(t *testing.T) {
	p, err := pack.NewNormalizer().Normalize([]byte(canonicalDoc), "fallback")
	require.NoError(t, err)

	assert.Equal(t, "figure1", p.ID)
	assert.Equal(t, "Figure 1", p.Title)
	assert.Equal(t, domain.DefaultPackVersion, p.Version)
	assert.Equal(t, "start", p.EntryNodeID)
	assert.Equal(t, []string{"start", "n2", "end"}, p.NodeIDs())

	start, ok := p.Node("start")
	require.True(t, ok)
	assert.Equal(t, domain.NodeTypeDecision, start.Type)
	require.Len(t, start.Choices, 2)
	assert.Equal(t, domain.Choice{Key: "yes", Label: "Yes", Target: "n2"}, start.Choices[0])

	n2, _ := p.Node("n2")
	require.Len(t, n2.Effects, 1, "descriptors without a type are dropped")
	assert.Equal(t, domain.Effect{Type: "SET_RESULT", Path: "results.category", Value: "X"}, n2.Effects[0])
}

func TestNormalize_Aliases(t *testing.T) {
	doc := `{
	  "id": "legacy",
	  "name": "Legacy Pack",
	  "startNode": "q1",
	  "steps": [
	    {"key": "q1", "kind": "question", "prompt": "Pick",
	     "options": [{"text": "Needs Review", "to": "r"}, {"name": "Skip", "key": "skip", "goto": "h"}]},
	    {"key": "r", "kind": "result", "description": "Reviewed"},
	    {"key": "h", "type": "handoff", "toPack": "figure2", "reason": "escalate"},
	    {"type": "action", "question": "unnamed"}
	  ]
	}`
	p, err := pack.NewNormalizer().Normalize([]byte(doc), "")
	require.NoError(t, err)

	assert.Equal(t, "legacy", p.ID)
	assert.Equal(t, "Legacy Pack", p.Title)
	assert.Equal(t, "q1", p.EntryNodeID)
	assert.Equal(t, []string{"q1", "r", "h", "node_4"}, p.NodeIDs())

	q1, _ := p.Node("q1")
	assert.Equal(t, domain.NodeTypeDecision, q1.Type)
	assert.Equal(t, "Pick", q1.Text)
	assert.Equal(t, []domain.Choice{
		{Key: "needs review", Label: "Needs Review", Target: "r"},
		{Key: "skip", Label: "Skip", Target: "h"},
	}, q1.Choices)

	r, _ := p.Node("r")
	assert.Equal(t, domain.NodeTypeOutcome, r.Type)
	assert.Equal(t, "Reviewed", r.Body)

	h, _ := p.Node("h")
	require.NotNil(t, h.Handoff)
	assert.Equal(t, domain.Handoff{TargetPackID: "figure2", Reason: "escalate"}, *h.Handoff)

	n4, _ := p.Node("node_4")
	assert.Equal(t, domain.NodeTypeInfo, n4.Type)
	assert.Equal(t, "unnamed", n4.Text)
}

func TestNormalize_ChoiceMapAndInferredType(t *testing.T) {
	doc := `{
	  "start": "q",
	  "nodes": {
	    "q": {"text": "Q", "choices": {"yes": "a", "needs_info": {"label": "More", "next": "a"}, "stop": null}},
	    "a": {"text": "A"}
	  }
	}`
	p, err := pack.NewNormalizer().Normalize([]byte(doc), "inferred")
	require.NoError(t, err)
	assert.Equal(t, "inferred", p.ID)

	q, _ := p.Node("q")
	assert.Equal(t, domain.NodeTypeDecision, q.Type)
	assert.Equal(t, []domain.Choice{
		{Key: "yes", Label: "YES", Target: "a"},
		{Key: "needs_info", Label: "More", Target: "a"},
		{Key: "stop", Label: "STOP", Target: ""},
	}, q.Choices)

	a, _ := p.Node("a")
	assert.Equal(t, domain.NodeTypeInfo, a.Type)
	assert.True(t, a.IsTerminal())
}

func TestNormalize_ExplicitNullTargetIsTerminal(t *testing.T) {
	doc := `{"start":"q","nodes":{"q":{"choices":[{"label":"Stop","next":null},{"label":"Go","to":"a"}]},"a":{"type":"end"}}}`
	p, err := pack.NewNormalizer().Normalize([]byte(doc), "p")
	require.NoError(t, err)

	q, _ := p.Node("q")
	assert.Equal(t, []domain.Choice{
		{Key: "stop", Label: "Stop", Target: ""},
		{Key: "go", Label: "Go", Target: "a"},
	}, q.Choices)
}

func TestNormalize_YAML(t *testing.T) {
	doc := `
packId: yaml-pack
entry: first
nodes:
  first:
    type: question
    text: Ready?
    choices:
      - {label: Yes, value: "yes", next: done}
      - {label: No, value: "no", next: done}
  done:
    type: end
    notes:
      directives: [Record the time]
      notes:
        - {title: Deficiency, body: A shortfall}
`
	p, err := pack.NewNormalizer().Normalize([]byte(doc), "")
	require.NoError(t, err)
	assert.Equal(t, "yaml-pack", p.ID)
	assert.Equal(t, []string{"first", "done"}, p.NodeIDs())

	done, _ := p.Node("done")
	assert.Equal(t, []string{"Record the time"}, done.Notes.Directives)
	assert.Equal(t, []domain.Note{{Title: "Deficiency", Body: "A shortfall"}}, done.Notes.Notes)
}

func TestNormalize_Errors(t *testing.T) {
	tests := []struct {
		name   string
		doc    string
		nodeID string
	}{
		{
			name:   "decision with fewer than two choices",
			doc:    `{"start":"q","nodes":{"q":{"type":"decision","choices":[{"label":"Only","next":"q"}]}}}`,
			nodeID: "q",
		},
		{
			name:   "choice without target",
			doc:    `{"start":"a","nodes":{"a":{"choices":[{"label":"Yes","next":"b"},{"label":"No"}]},"b":{"type":"end"}}}`,
			nodeID: "a",
		},
		{
			name:   "choice with misspelled target",
			doc:    `{"start":"a","nodes":{"a":{"choices":{"yes":{"label":"Yes","nxt":"b"},"no":"b"}},"b":{"type":"end"}}}`,
			nodeID: "a",
		},
		{
			name:   "missing entry node",
			doc:    `{"start":"ghost","nodes":{"a":{"type":"end"}}}`,
			nodeID: "ghost",
		},
		{
			name:   "dangling next",
			doc:    `{"start":"a","nodes":{"a":{"type":"info","next":"zzz"}}}`,
			nodeID: "a",
		},
		{
			name:   "unknown type",
			doc:    `{"start":"a","nodes":{"a":{"type":"teleport"}}}`,
			nodeID: "a",
		},
		{
			name: "missing nodes",
			doc:  `{"start":"a"}`,
		},
		{
			name: "not an object",
			doc:  `[1,2,3]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := pack.NewNormalizer().Normalize([]byte(tt.doc), "p")
			require.Error(t, err)
			assert.Nil(t, p)

			var verr *domain.ValidationError
			require.True(t, errors.As(err, &verr), "expected ValidationError, got %T: %v", err, err)
			assert.Equal(t, tt.nodeID, verr.NodeID)
			if tt.nodeID != "" {
				assert.Contains(t, err.Error(), tt.nodeID)
			}
		})
	}
}

func TestNormalize_Malformed(t *testing.T) {
	_, err := pack.NewNormalizer().Normalize([]byte("{\"nodes\": [unclosed"), "p")
	assert.ErrorIs(t, err, pack.ErrMalformed)
}

func TestNormalize_KnownPacks(t *testing.T) {
	doc := `{"start":"h","nodes":{"h":{"type":"handoff","handoff":{"targetPackId":"other"}}}}`

	_, err := pack.NewNormalizer(pack.WithKnownPacks("p")).Normalize([]byte(doc), "p")
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "h", verr.NodeID)

	_, err = pack.NewNormalizer(pack.WithKnownPacks("p", "other")).Normalize([]byte(doc), "p")
	assert.NoError(t, err)
}

func TestNormalize_Deterministic(t *testing.T) {
	n := pack.NewNormalizer()
	a, err := n.Normalize([]byte(canonicalDoc), "")
	require.NoError(t, err)
	b, err := n.Normalize([]byte(canonicalDoc), "")
	require.NoError(t, err)
	assert.Equal(t, a.OrderedNodes(), b.OrderedNodes())
}
