package services

import (
	"errors"
	"strings"
)

// ValidationError reports every violated constraint from a single validation
// pass. It unwraps to ErrValidation so status mapping and errors.Is checks
// treat it like any other validation failure.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Violations) == 0 {
		return ErrValidation.Error()
	}
	return ErrValidation.Error() + ": " + strings.Join(e.Violations, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Violations collects constraint violations and produces a ValidationError
// only when at least one was recorded.
type Violations struct {
	entries []string
}

// Add records a violation. Empty messages are ignored.
func (v *Violations) Add(message string) {
	if message = strings.TrimSpace(message); message != "" {
		v.entries = append(v.entries, message)
	}
}

// Err returns nil when no violations were recorded.
func (v *Violations) Err() error {
	if len(v.entries) == 0 {
		return nil
	}
	return &ValidationError{Violations: append([]string(nil), v.entries...)}
}

// ValidationViolations extracts the violation list from an error chain.
func ValidationViolations(err error) []string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Violations
	}
	return nil
}
