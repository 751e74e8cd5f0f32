/*
Package session hosts many concurrent cases.

Each case is a ddt.Engine bound to its own case store. The Manager serializes
operations per case with a reference-counted local lock, optionally backed by a
distributed lock for multi-replica deployments, and exports {meta, state, trace}
to a ports.ExportStore after every operation. A case missing from memory is
resumed from its last export.
*/
package session
