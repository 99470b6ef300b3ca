package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all storage engines.
var (
	// ErrStorageIO is returned when the underlying storage fails: disk full,
	// permission denied, a lost connection. Check the wrapped error for the
	// concrete cause.
	ErrStorageIO = errors.New("storage I/O failure")

	// ErrCapabilityUnsupported is returned when an operation needs a
	// capability the active driver does not declare.
	ErrCapabilityUnsupported = errors.New("capability not supported by driver")
)

// IsStorageError checks if the error is a storage I/O failure.
func IsStorageError(err error) bool {
	return errors.Is(err, ErrStorageIO)
}

// StoreError is a custom error type for storage failures with additional context.
type StoreError struct {
	Driver    string // The driver name (e.g., "file", "postgres")
	Operation string // The operation that failed (e.g., "enqueue", "dequeue")
	Message   string // Error message
	Err       error  // Original error
}

// Error implements the error interface for StoreError.
func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s operation on %s driver failed: %s: %v", e.Operation, e.Driver, e.Message, e.Err)
	}
	return fmt.Sprintf("%s operation on %s driver failed: %s", e.Operation, e.Driver, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is reports every StoreError as a storage I/O failure.
func (e *StoreError) Is(target error) bool {
	return target == ErrStorageIO
}

// NewStoreError creates a new StoreError with the given driver, operation, message, and wrapped error.
func NewStoreError(driver, operation, message string, err error) *StoreError {
	return &StoreError{
		Driver:    driver,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
