// Package store persists the request ledger using SQLite.
//
// # Ledger
//
// Every request the operator handles leaves at least two rows in
// ledger_events: the inbound prompt and one outbound outcome (the agent's
// response, an error, a stop notice, or an empty-response notice). Rows are
// immutable and grouped by request id, so a single turn can be reconstructed
// even when several conversations interleave.
//
// The ledger is an audit trail, not a source of truth: resumable sessions
// live in the state file, and losing the database never affects a running
// conversation.
//
// # SQLite Configuration
//
// The store uses modernc.org/sqlite (pure Go, no cgo) with WAL mode:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA busy_timeout=5000;
//
// Database file locations:
//
//   - Default: $XDG_DATA_HOME/coven-operator/ledger.db
//   - Testing: a file under t.TempDir()
//
// # Retention
//
// PruneBefore deletes rows older than a cutoff. The serve command runs it on
// a cron schedule when ledger.retention is set.
//
// # Reading
//
// ListRecentEvents backs the !history chat command and the default history
// CLI view. ListEventsByConversation returns a transcript from the first
// row, used by history --all.
package store
