// Package postgres provides a PostgreSQL storage engine for the queue. It
// supports basic queueing only: no channels, no deadletter store and no
// claim reclamation, so callers exercise the capability fallbacks of the
// queue package when it is configured. Claims rely on row locks taken with
// FOR UPDATE SKIP LOCKED instead of file renames.
//
// The schema is embedded and applied with goose through Migrate.
package postgres
