package domain

import "errors"

// Common domain errors used across the queue.
var (
	// ErrInvalidInput is returned when a channel or job identifier is unsafe
	// to use as a storage path. It is always raised before any I/O happens.
	ErrInvalidInput = errors.New("invalid input")

	// ErrCorruptRecord is returned when a stored record cannot be decoded
	// into a valid envelope. Storage engines quarantine such records rather
	// than surface this error to workers.
	ErrCorruptRecord = errors.New("corrupt record")

	// ErrUnknownJobType is returned when a job type identifier does not
	// resolve to a registered handler.
	ErrUnknownJobType = errors.New("unknown job type")

	// ErrInvalidHandler is returned when a handler registration is malformed
	// (empty type identifier, nil factory) or a factory yields no handler.
	ErrInvalidHandler = errors.New("invalid job handler")
)
