// Package store provides SQLite-backed storage for lifecycle traces.
//
// Three tables:
//   - runs: one header per object lifetime (class, constructor, hashes, outcome)
//   - events: the append-only trace, keyed by (run_id, seq)
//   - specs: declaration sets, keyed by content hash
//
// Ordering uses seq, the engine's logical clock, never wall time. Reads are
// ORDER BY seq so a stored trace reads back exactly as it was emitted.
// Event writes are idempotent on (run_id, seq).
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON
//
// Schema upgrades are tracked with PRAGMA user_version.
package store
