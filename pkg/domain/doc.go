/*
Package domain contains the core models of the decision pack interpreter.

It defines the canonical pack graph, the case bookkeeping (meta, trace, history)
and the error vocabulary shared by every other package. It performs no I/O.

# Key Entities

  - Pack: a validated graph of Nodes with an entry node.
  - Node: one step, tagged info, decision, outcome, handoff or connector.
  - Effect: a declarative mutation applied to the case state on node entry.
  - TraceEntry: one line of the append-only audit trail.
  - HistoryFrame: an undo point carrying a private copy of the case state.
  - View: what the host renders for the current node.
*/
package domain
