// Package store provides the SQLite-backed journal of print runs.
//
// The journal records:
//   - Runs: one row per merge or simulation, with its final status
//   - Captures: the field values and visibility flags a simulation run
//     captured per row, keyed by a content-addressed id
//
// # Ordering
//
// Runs are ordered by seq (insertion order) and captures by their position
// in the selection, then id. No query depends on wall-clock time, so two
// journals written from the same inputs read back identically.
//
// # Idempotency
//
// Writes use ON CONFLICT DO NOTHING. Rewriting a run id or a capture id is
// a silent no-op.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Capture ids and the stored JSON come from internal/canon.
package store
