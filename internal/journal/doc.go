// Package journal records lesson completion events in SQLite.
//
// The journal is a host-side lesson.Sink: every finished instance appends
// one row keyed by its run id. Writes are idempotent (a repeated run id is
// ignored), so a sink retried by the host cannot double-count a run.
//
// Rows are read back in insertion order (seq ASC). Tuples are stored as
// canonical JSON, the same bytes that key the recipe cache.
package journal
