/*
Package ddt is a decision pack interpreter: it guides a user through a branching
questionnaire that classifies a reported deficiency, and keeps an auditable record
of every answer and every derived fact.

Packs are JSON or YAML documents. They are normalized into one canonical graph of
info, decision, outcome, handoff and connector nodes, validated, and then walked
as a state machine. Every transition is appended to an immutable trace, every
forward step pushes an undo snapshot, and nodes can declare effects that update
the case state when entered.

# Usage

	eng, err := ddt.New("./decision-trees", ddt.WithCaseTemplate(casestore.DefaultCase))
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	view, err := eng.Open(ctx, "figure1")
	if err != nil {
		log.Fatal(err)
	}

	for !view.Terminal {
		// Present view.Node and view.Actions, then perform the chosen one.
		view, err = eng.Do(ctx, view.Actions[0])
		if err != nil {
			log.Fatal(err)
		}
	}

	export := eng.Export() // {meta, state, trace}

# Architecture

  - pkg/domain: canonical pack, node, trace and error types.
  - pkg/pack: alias-table normalizer and loader.
  - pkg/effects: declarative effect applicator.
  - pkg/casestore: meta, state, trace and undo history of one case.
  - internal/runtime: the traversal engine wrapped by this package.
  - pkg/session, pkg/adapters/*: multi-case hosting over HTTP, MCP, Redis and files.
*/
package ddt
