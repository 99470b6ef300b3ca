// Package logger provides structured logging functionality for the application.
//
// It utilizes Go's standard library log/slog package to implement structured JSON logging
// with configurable log levels, and carries loggers through a context.Context so
// command handlers can pick up the process logger without a global lookup.
package logger
