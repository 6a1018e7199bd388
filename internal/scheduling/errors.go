package scheduling

import (
	"errors"
	"fmt"
)

// Domain errors for booking scheduling.
var (
	// ErrNotFound indicates the requested booking was not found.
	ErrNotFound = errors.New("booking not found")

	// Validation errors.
	ErrValidation        = errors.New("validation failed")
	ErrInvalidDuration   = errors.New("duration must be a positive multiple of 30 minutes")
	ErrInvalidWindow     = errors.New("invalid scheduling window")
	ErrMissingResource   = errors.New("resource id is required")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrInvalidPriority   = errors.New("invalid priority")
	ErrInvalidAmount     = errors.New("debt amount must be greater than zero")
	ErrBlockerNotAllowed = errors.New("blocker is not in the authorized set")

	// Block state errors.
	ErrAlreadyBlocked = errors.New("booking is already blocked")
	ErrNotBlocked     = errors.New("booking is not blocked")
	ErrBlockedFrozen  = errors.New("booking is blocked and cannot be scheduled")
)

// ConflictError reports a schedule overlap with an existing booking.
type ConflictError struct {
	BookingID  int64
	ResourceID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("slot on %q conflicts with booking %d", e.ResourceID, e.BookingID)
}

// ErrConflict is the sentinel matched by errors.Is for any ConflictError.
var ErrConflict = errors.New("schedule conflict")

func (e *ConflictError) Unwrap() error { return ErrConflict }

// AsConflict extracts a ConflictError from an error chain.
func AsConflict(err error) (*ConflictError, bool) {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
