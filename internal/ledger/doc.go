// Package ledger records runs, their stage transitions, and the artifacts
// they produced in a SQLite database.
//
// The database lives at <log_dir>/runs.db. Writes retry briefly on
// SQLITE_BUSY so concurrent CLI invocations (a running scene and a
// `runs list`) do not trip over each other.
package ledger
