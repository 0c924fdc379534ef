// Package graph builds and validates the dependency graph derived from a
// workflow's `needs` declarations.
//
// Build rejects documents with duplicate job ids, references to jobs that do
// not exist, and dependency cycles, reporting enough detail (the offending
// ids, the full cycle path) for the author to fix the document. On success it
// returns an immutable Graph plus a deterministic topological order that the
// scheduler uses only as a dispatch tie-break.
//
// The Graph is read-only after Build returns and is shared by all workers
// without synchronization. Mutable per-job execution state lives in the
// scheduler, never here.
package graph
