// Package store provides SQLite-backed storage for calibration runs.
//
// A run is opened with BeginRun, receives every posterior evaluation through
// RunLog.RecordEvaluation (RunLog satisfies fit.EvaluationSink), and is
// closed with Finish or Abort. Tables:
//   - runs: one row per calibrate command, keyed by a UUIDv7
//   - evaluations: every scored parameter vector, keyed by (run_id, seq)
//   - fitted_parameters: the catalog with fitted values after Finish
//
// # Ordering
//
// Evaluations are ordered by seq, the calibrator's evaluation counter, and
// never by wall time. Runs are listed newest first.
//
// # Catalog fingerprints
//
// Each run carries the fingerprint of its parameter catalog: SHA-256 over a
// domain prefix, a NUL separator and the catalog's canonical JSON. Runs
// with the same fingerprint calibrated the same parameters under the same
// priors and starting values.
//
// # Connection settings
//
// Set through the go-sqlite3 connection string so every pooled connection
// carries them:
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
