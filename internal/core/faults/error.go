package faults

import (
	"encoding/json"
	"errors"
	"time"
)

// =============================================================================
// Error Type
// =============================================================================

// Error is a classified failure. It carries everything a caller or a UI
// needs to react: the code, its classification, a human message, optional
// structured details, and remediation steps.
type Error struct {
	Code             Code
	Category         Category
	Severity         Severity
	Message          string
	Details          map[string]any
	SuggestedActions []string
	Timestamp        time.Time

	cause error
}

// Option customizes an Error at construction time.
type Option func(*Error)

// WithDetails merges the given key/value pairs into the error details.
func WithDetails(details map[string]any) Option {
	return func(e *Error) {
		for k, v := range details {
			e.setDetail(k, v)
		}
	}
}

// WithDetail adds a single detail entry.
func WithDetail(key string, value any) Option {
	return func(e *Error) {
		e.setDetail(key, value)
	}
}

// WithSeverity overrides the code's default severity.
func WithSeverity(severity Severity) Option {
	return func(e *Error) {
		e.Severity = severity
	}
}

// WithCause records the underlying error for errors.Is / errors.As chains.
// The cause is not serialized.
func WithCause(err error) Option {
	return func(e *Error) {
		e.cause = err
	}
}

// New builds an Error for code. Category, severity, and suggested actions
// come from the registry; an empty message falls back to the registry
// summary. The actions slice is copied so instances can never mutate the
// registry.
func New(code Code, message string, opts ...Option) *Error {
	meta := classify(code)
	if message == "" {
		message = meta.summary
	}
	actions := make([]string, len(meta.actions))
	copy(actions, meta.actions)
	e := &Error{
		Code:             code,
		Category:         meta.category,
		Severity:         meta.severity,
		Message:          message,
		SuggestedActions: actions,
		Timestamp:        time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Error) setDetail(key string, value any) {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// =============================================================================
// Wire Format
// =============================================================================

type errorJSON struct {
	Code             Code           `json:"code"`
	Category         Category       `json:"category"`
	Severity         Severity       `json:"severity"`
	Message          string         `json:"message"`
	Details          map[string]any `json:"details,omitempty"`
	SuggestedActions []string       `json:"suggestedActions"`
	Timestamp        time.Time      `json:"timestamp"`
}

// MarshalJSON emits the wire form consumed by reporters and front ends.
func (e *Error) MarshalJSON() ([]byte, error) {
	actions := e.SuggestedActions
	if actions == nil {
		actions = []string{}
	}
	return json.Marshal(errorJSON{
		Code:             e.Code,
		Category:         e.Category,
		Severity:         e.Severity,
		Message:          e.Message,
		Details:          e.Details,
		SuggestedActions: actions,
		Timestamp:        e.Timestamp,
	})
}

// UnmarshalJSON restores an Error from its wire form. Fields are taken
// as serialized; the registry is not consulted, so a round trip is exact.
func (e *Error) UnmarshalJSON(data []byte) error {
	var w errorJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	e.Code = w.Code
	e.Category = w.Category
	e.Severity = w.Severity
	e.Message = w.Message
	e.Details = w.Details
	e.SuggestedActions = w.SuggestedActions
	e.Timestamp = w.Timestamp
	return nil
}

// =============================================================================
// Inspection
// =============================================================================

// CodeOf extracts the taxonomy code from err, walking wrap chains.
func CodeOf(err error) (Code, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code, true
	}
	return "", false
}

// IsCode reports whether err carries the given code anywhere in its chain.
func IsCode(err error, code Code) bool {
	got, ok := CodeOf(err)
	return ok && got == code
}
