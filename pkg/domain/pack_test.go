package domain_test

import (
	"errors"
	"testing"

	"github.com/ddt-tool/ddt/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePack() *domain.Pack {
	nodes := map[string]domain.Node{
		"start": {ID: "start", Type: domain.NodeTypeDecision, Text: "Q?", Choices: []domain.Choice{
			{Key: "maybe", Label: "Maybe", Target: "info"},
			{Key: "no", Label: "No", Target: "end"},
			{Key: "yes", Label: "Yes", Target: "end"},
		}},
		"info": {ID: "info", Type: domain.NodeTypeInfo, Next: "end"},
		"end":  {ID: "end", Type: domain.NodeTypeOutcome, Effects: []domain.Effect{{Type: domain.EffectSet, Path: "a.b", Value: []any{"x"}}}},
	}
	return domain.NewPack("p", "Pack", "1.0.0", "start", nodes, []string{"start", "info", "end"})
}

func TestPack_Validate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		require.NoError(t, samplePack().Validate(nil))
	})

	tests := []struct {
		name   string
		mutate func(p *domain.Pack)
		node   string
		choice string
	}{
		{
			name:   "missing entry",
			mutate: func(p *domain.Pack) { p.EntryNodeID = "ghost" },
			node:   "ghost",
		},
		{
			name: "decision with one choice",
			mutate: func(p *domain.Pack) {
				n := p.Nodes["start"]
				n.Choices = n.Choices[:1]
				p.Nodes["start"] = n
			},
			node: "start",
		},
		{
			name: "dangling choice target",
			mutate: func(p *domain.Pack) {
				n := p.Nodes["start"]
				n.Choices[0].Target = "nowhere"
				p.Nodes["start"] = n
			},
			node:   "start",
			choice: "maybe",
		},
		{
			name: "empty label",
			mutate: func(p *domain.Pack) {
				n := p.Nodes["start"]
				n.Choices[1].Label = ""
				p.Nodes["start"] = n
			},
			node:   "start",
			choice: "no",
		},
		{
			name: "dangling next",
			mutate: func(p *domain.Pack) {
				n := p.Nodes["info"]
				n.Next = "nowhere"
				p.Nodes["info"] = n
			},
			node: "info",
		},
		{
			name: "unknown type",
			mutate: func(p *domain.Pack) {
				n := p.Nodes["info"]
				n.Type = "banana"
				p.Nodes["info"] = n
			},
			node: "info",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := samplePack()
			tt.mutate(p)
			err := p.Validate(nil)
			var verr *domain.ValidationError
			require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
			assert.Equal(t, tt.node, verr.NodeID)
			assert.Equal(t, tt.choice, verr.Choice)
			assert.Contains(t, err.Error(), tt.node)
		})
	}
}

func TestPack_ValidateKnownPacks(t *testing.T) {
	nodes := map[string]domain.Node{
		"h": {ID: "h", Type: domain.NodeTypeHandoff, Handoff: &domain.Handoff{TargetPackID: "other"}},
	}
	p := domain.NewPack("p", "P", "1.0.0", "h", nodes, nil)

	assert.NoError(t, p.Validate(nil))
	assert.NoError(t, p.Validate(map[string]bool{"other": true}))
	assert.Error(t, p.Validate(map[string]bool{"p": true}))
}

func TestPack_NodeReturnsCopy(t *testing.T) {
	p := samplePack()
	n, ok := p.Node("start")
	require.True(t, ok)
	n.Choices[0].Label = "changed"

	again, _ := p.Node("start")
	assert.Equal(t, "Maybe", again.Choices[0].Label)

	end, _ := p.Node("end")
	end.Effects[0].Value.([]any)[0] = "mutated"
	endAgain, _ := p.Node("end")
	assert.Equal(t, []any{"x"}, endAgain.Effects[0].Value)
}

func TestPack_NodeIDsDocumentOrder(t *testing.T) {
	assert.Equal(t, []string{"start", "info", "end"}, samplePack().NodeIDs())

	p := domain.NewPack("p", "P", "", "b", map[string]domain.Node{
		"b": {ID: "b", Type: domain.NodeTypeOutcome},
		"a": {ID: "a", Type: domain.NodeTypeOutcome},
		"c": {ID: "c", Type: domain.NodeTypeOutcome},
	}, []string{"c"})
	assert.Equal(t, []string{"c", "a", "b"}, p.NodeIDs())
}

func TestActionsFor(t *testing.T) {
	start, _ := samplePack().Node("start")
	actions := domain.ActionsFor(start)
	require.Len(t, actions, 3)
	assert.Equal(t, "yes", actions[0].Key)
	assert.Equal(t, "no", actions[1].Key)
	assert.Equal(t, "maybe", actions[2].Key)

	assert.Equal(t, []domain.Action{{Kind: domain.ActionRestart, Label: "Restart"}},
		domain.ActionsFor(domain.Node{Type: domain.NodeTypeOutcome}))
	assert.Equal(t, domain.ActionContinue,
		domain.ActionsFor(domain.Node{Type: domain.NodeTypeInfo, Next: "x"})[0].Kind)
	assert.Equal(t, domain.ActionHandoff,
		domain.ActionsFor(domain.Node{Type: domain.NodeTypeHandoff})[0].Kind)
}

func TestChoiceLabel(t *testing.T) {
	assert.Equal(t, "NEEDS REVIEW", domain.ChoiceLabel(domain.Choice{Key: "needs_review"}))
	assert.Equal(t, "Custom", domain.ChoiceLabel(domain.Choice{Key: "k", Label: "Custom"}))
}

func TestCloneState_NoAliasing(t *testing.T) {
	orig := map[string]any{"a": map[string]any{"b": []any{"x"}}}
	cp := domain.CloneState(orig)
	cp["a"].(map[string]any)["b"].([]any)[0] = "y"
	assert.Equal(t, "x", orig["a"].(map[string]any)["b"].([]any)[0])

	assert.NotNil(t, domain.CloneState(nil))
}

func TestErrors(t *testing.T) {
	terr := &domain.TransitionError{Op: "answer", PackID: "p", NodeID: "n", Err: domain.ErrUnknownChoice}
	assert.ErrorIs(t, terr, domain.ErrUnknownChoice)

	aerr := &domain.AcquisitionError{PackID: "p", Resource: "packs/p.json", Hint: "check the packs directory", Err: domain.ErrPackNotFound}
	assert.ErrorIs(t, aerr, domain.ErrPackNotFound)
	assert.Contains(t, aerr.Error(), "packs/p.json")
	assert.Contains(t, aerr.Error(), "check the packs directory")
}
