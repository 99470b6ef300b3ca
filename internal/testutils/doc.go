// Package testutils holds helpers shared by tests across packages. The main
// entry point is TestSlogHandler, an in-memory slog.Handler that records
// every entry so tests can assert on warnings and errors emitted by the
// queue, router and worker.
package testutils
