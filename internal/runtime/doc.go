/*
Package runtime implements the decision traversal engine.

The engine binds a validated pack and a case store, enters nodes, applies their
entry effects, records every transition in the append-only trace and keeps an
undo stack of state snapshots. Handoffs switch packs through a ports.PackLoader;
Back can cross them because every history frame records its own pack id.
*/
package runtime
