// Package sqlstore persists credential records and sessions through
// database/sql, on PostgreSQL (pgx) or SQLite (modernc).
//
// The schema ships as embedded goose migrations applied by [Open].
// Timestamps are stored as Unix milliseconds so both databases share one
// schema. Token columns hold digests only.
//
// Password reset consumption and account deletion remove the owner's
// sessions in the same transaction.
package sqlstore
