// Package store provides the SQLite-backed decision log for a plant run.
//
// The log is append-only. Every autonomous decision the engines make during a
// run lands here with the tick that produced it:
//
//   - Batch events: state transitions and completed blending steps
//   - Anomalies: sustained sensor threshold violations
//   - Work orders: one row per lifecycle stage (pending ... completed)
//   - Purchase orders: one row per procurement stage
//   - Drift detections: sustained quality-parameter drift
//   - Recommendations: bounded parameter adjustments proposed by the yield engine
//   - Approvals: sign-offs that applied a recommendation, with the role that signed
//
// Ordering uses the tick counter (seq), never wall time, so a trace read back
// from the log is identical across runs of the same seed. All queries order by
// seq ASC, id ASC COLLATE BINARY for deterministic results.
//
// Writes are idempotent: every table carries a natural key over domain IDs and
// inserts use ON CONFLICT DO NOTHING, so re-recording a tick is harmless.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: approvals must reference a recorded recommendation
package store
