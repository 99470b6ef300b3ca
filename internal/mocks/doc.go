// Package mocks provides centralized mock implementations for testing.
//
// This package contains mock implementations of interfaces used throughout the application,
// facilitating consistent and DRY testing across the codebase. Instead of defining
// inline mocks in individual test files, these standardized mock implementations
// can be reused.
//
// Usage:
//
//	import "github.com/phrazzld/filequeue/internal/mocks"
//
//	func TestSomething(t *testing.T) {
//	    driver := mocks.NewMockDriver(store.CapQueue | store.CapDeadletter)
//	    driver.DequeueFn = func(ctx context.Context) (*domain.Envelope, error) {
//	        return nil, errors.New("disk on fire")
//	    }
//
//	    // Use the mock in your test...
//	}
//
// When adding a new mock to this package:
//  1. Create a new file named after the interface being mocked
//  2. Implement the mock struct with function fields for each interface method
//  3. Document any helper methods or special functionality
package mocks
