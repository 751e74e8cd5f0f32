/*
Package ports defines the driven ports (interfaces) of the decision pack interpreter.

These interfaces decouple the engine from pack storage, case persistence and
presentation, so the same engine runs behind a terminal, an HTTP API or an MCP server.

# Key Interfaces

  - PackSource / PackLoader: acquire raw documents and normalized packs.
  - CaseStore: per-session meta, state, trace and history.
  - Renderer / NotesObserver: presentation collaborators notified on every render.
  - ExportStore: durable storage of case exports.
  - DistributedLocker: cross-replica locking of sessions.
*/
package ports
