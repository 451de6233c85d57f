package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks malformed or insufficient caller input. Always
	// recoverable by the caller.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks a referenced entity that does not exist or does not
	// belong to the requesting owner. Owner mismatch is deliberately
	// indistinguishable from absence.
	ErrNotFound = errors.New("not found")
	// ErrExternalService marks a collaborator failure: transcription or
	// extraction timed out, errored, or returned an unparseable payload.
	ErrExternalService = errors.New("external service error")
	// ErrConflict marks a concurrent-creation race. Matching resolves it
	// internally by re-fetching; it rarely reaches callers.
	ErrConflict = errors.New("conflict")
	// ErrConfiguration marks missing or invalid configuration.
	ErrConfiguration = errors.New("configuration error")
	// ErrTimeout marks a bounded operation that ran out of time.
	ErrTimeout = errors.New("timeout")
	// ErrTransient marks retryable failures with no better classification.
	ErrTransient = errors.New("transient failure")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later status classification. The marker should
// be one of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
