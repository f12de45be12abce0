package runtime

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	ErrNotFound      = errors.New("container not found")
	ErrAlreadyExists = errors.New("container already exists")
	ErrPortAllocated = errors.New("port is already allocated")
	ErrUnavailable   = errors.New("runtime unavailable")
)

// RuntimeError wraps runtime failures with the operation and resource.
type RuntimeError struct {
	Op   string
	Name string
	Err  error
}

func (e *RuntimeError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Name, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

func newError(op, name string, err error) *RuntimeError {
	return &RuntimeError{Op: op, Name: name, Err: err}
}
