// Package store persists build history in SQLite.
//
// One database holds two tables: builds, one row per executed plan, and
// steps, one row per plan step including its trailing log output. Writes are
// idempotent on build ID, so recording the same build twice never duplicates
// history. The database opens in WAL mode with a single connection, which
// serialises writers while other processes read concurrently.
package store
