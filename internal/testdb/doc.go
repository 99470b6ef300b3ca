// Package testdb provides utilities for database integration tests.
//
// Tests gate themselves on ShouldSkipDatabaseTest, which reports whether a
// PostgreSQL connection string is available in DATABASE_URL,
// FILEQUEUE_TEST_DB_URL or FILEQUEUE_DATABASE_URL. GetTestDBWithT opens a
// connection, applies the embedded migrations and registers cleanup;
// WithTx runs a test body inside a transaction that is always rolled back,
// so tests sharing the queue table do not see each other's jobs.
package testdb
