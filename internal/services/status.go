package services

import (
	"errors"

	"calldesk/internal/store"
)

// FailureStatus maps a stage error to the call status it should land in.
// Validation, configuration, and not-found failures need a human decision,
// so they park in review instead of failed.
func FailureStatus(err error) store.CallStatus {
	switch {
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrConfiguration),
		errors.Is(err, ErrNotFound):
		return store.CallStatusReview
	default:
		return store.CallStatusFailed
	}
}
