package credential

import (
	"errors"
	"fmt"
)

// ErrNoCredentials is returned by the rotation manager when the pool holds
// no usable credential. Callers translate it into a service-unavailable
// response rather than a client error.
var ErrNoCredentials = errors.New("credential pool is empty")

// ErrUnknownCredential is returned when a manual selection names an id that
// is not in the usable pool.
var ErrUnknownCredential = errors.New("no usable credential with that id")

// StoreError represents a failure in the credential store's file operations.
type StoreError struct {
	// Op is the store operation that failed ("load", "save", "delete").
	Op string

	// Path is the file or directory involved.
	Path string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return fmt.Sprintf("credential store %s %q: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As chains.
func (e *StoreError) Unwrap() error {
	return e.Err
}
