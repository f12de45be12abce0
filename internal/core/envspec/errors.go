// Package envspec contains pure functions for parsing environment
// specifications. This is part of the Functional Core - all functions are
// pure with no I/O.
package envspec

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// Input validation errors
	ErrEmptyInput  = errors.New("environment spec is empty")
	ErrInvalidYAML = errors.New("invalid YAML syntax")

	// Structure errors
	ErrNoProject  = errors.New("environment spec must name a project")
	ErrNoServices = errors.New("environment spec must define at least one service or mock")

	// Field validation errors
	ErrInvalidProject   = errors.New("project must be lowercase letters, digits, and hyphens")
	ErrServiceNoName    = errors.New("service must have a name")
	ErrServiceNoImage   = errors.New("service must have an image")
	ErrDuplicateService = errors.New("duplicate service or mock name")
	ErrInvalidPort      = errors.New("invalid port configuration")

	// Compose translation errors
	ErrCircularDependency = errors.New("circular dependency detected")
	ErrUnsupportedFeature = errors.New("unsupported compose feature")
)

// ParseError wraps errors with context about where parsing failed.
type ParseError struct {
	Field   string // e.g., "services.web.ports[0]"
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError creates a new ParseError.
func NewParseError(field, message string, err error) *ParseError {
	return &ParseError{
		Field:   field,
		Message: message,
		Err:     err,
	}
}
