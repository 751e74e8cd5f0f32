package domain

import (
	"sort"
	"strings"
)

// ActionKind identifies what an exposed action does when invoked.
type ActionKind string

const (
	ActionAnswer   ActionKind = "answer"
	ActionContinue ActionKind = "continue"
	ActionHandoff  ActionKind = "handoff"
	ActionRestart  ActionKind = "restart"
)

// Action is one control the host should offer for the current node.
type Action struct {
	Kind  ActionKind `json:"kind"`
	Key   string     `json:"key,omitempty"`
	Label string     `json:"label"`
}

// View is the render payload handed to the host after every transition.
type View struct {
	PackID    string   `json:"packId"`
	PackTitle string   `json:"packTitle"`
	NodeID    string   `json:"nodeId"`
	Node      Node     `json:"node"`
	Actions   []Action `json:"actions"`
	CanGoBack bool     `json:"canGoBack"`
	Terminal  bool     `json:"terminal"`
	Meta      CaseMeta `json:"meta"`
}

// ActionsFor derives the actions exposed by a node.
//
// Decision choices are ordered yes, no, then the remaining keys in document order.
// A choice without a label falls back to its key in upper case with underscores as spaces.
func ActionsFor(n Node) []Action {
	switch n.Type {
	case NodeTypeDecision:
		choices := OrderedChoices(n.Choices)
		actions := make([]Action, 0, len(choices))
		for _, c := range choices {
			actions = append(actions, Action{Kind: ActionAnswer, Key: c.Key, Label: ChoiceLabel(c)})
		}
		return actions
	case NodeTypeInfo, NodeTypeConnector:
		if n.Next == "" {
			return []Action{{Kind: ActionRestart, Label: "Restart"}}
		}
		return []Action{{Kind: ActionContinue, Label: "Continue"}}
	case NodeTypeHandoff:
		return []Action{{Kind: ActionHandoff, Label: "Continue"}}
	case NodeTypeOutcome:
		return []Action{{Kind: ActionRestart, Label: "Restart"}}
	}
	return nil
}

// OrderedChoices returns a copy of choices with yes and no first.
func OrderedChoices(choices []Choice) []Choice {
	out := append([]Choice(nil), choices...)
	sort.SliceStable(out, func(i, j int) bool {
		return choiceRank(out[i].Key) < choiceRank(out[j].Key)
	})
	return out
}

func choiceRank(key string) int {
	switch key {
	case "yes":
		return 0
	case "no":
		return 1
	}
	return 2
}

// ChoiceLabel returns the display label of a choice.
func ChoiceLabel(c Choice) string {
	if c.Label != "" {
		return c.Label
	}
	return strings.ReplaceAll(strings.ToUpper(c.Key), "_", " ")
}
