// Package scheduler drives every job of a validated graph from Pending to a
// terminal state.
//
// # How it works
//
// Readiness is event-driven, never polled. Each job carries an atomic counter
// of unmet dependencies; when a dependency reaches a terminal state the
// coordinator decrements the counters of its dependents, and the job whose
// counter hits zero is pushed onto the ready channel exactly once. A pool of
// workers consumes the channel, evaluates the job's run condition against its
// dependencies' terminal states, and either executes it or skips it. A skip
// is itself a terminal state and unblocks dependents the same way success and
// failure do, so an `always` job still runs after skipped dependencies.
//
// # Failure policy
//
// A failing job never aborts the run. It only influences its dependents
// through their declared conditions; unrelated jobs keep running. There is no
// whole-run fail-fast and no mid-run cancellation primitive; context
// cancellation is honored only for jobs that have not been dispatched yet.
//
// # Shared state
//
// The graph is read-only and shared without synchronization. The per-job
// state table is owned by the coordinator; every transition goes through one
// serialized mutation point per job, and a terminal state is published before
// any dependent is dispatched.
package scheduler
