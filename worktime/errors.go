/*
errors.go - Centralized error types for the work-time engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers match sentinels with errors.Is and read context with errors.As.

ERROR CATEGORIES:
  1. Shift errors - The user has no usable shift configuration
  2. Punch errors - Punch-in/punch-out preconditions violated
  3. Edit errors - Administrative edit targets something that doesn't exist
  4. Store errors - Persistence failures and write conflicts

PROPAGATION:
  Every error here is terminal for the request that triggered it. The only
  exception is ErrConcurrentModification, which IsRetryable reports so the
  service layer can re-run its read-modify-write cycle.

SEE ALSO:
  - punch.go: Returns punch precondition errors
  - shift.go: Returns MissingShiftError
  - api/handlers.go: Maps these errors to HTTP status codes
*/
package worktime

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrMissingShift is returned when a user has no configured shift.
	ErrMissingShift = errors.New("no shift defined")

	// ErrDuplicateOpenPunch is returned on punch-in while the day's last punch is open.
	ErrDuplicateOpenPunch = errors.New("already punched in, please punch out first")

	// ErrNoOpenPunch is returned on punch-out when there is nothing to close.
	ErrNoOpenPunch = errors.New("no open punch to close")

	// ErrMissingEvidence is returned when a punch action has no photo reference.
	ErrMissingEvidence = errors.New("photo is required")

	// ErrRecordNotFound is returned when an attendance record doesn't exist.
	ErrRecordNotFound = errors.New("attendance record not found")

	// ErrInvalidPunchIndex is returned when a punch position is out of range.
	ErrInvalidPunchIndex = errors.New("invalid punch index")

	// ErrInvalidTime is returned when a boundary string is not HH:mm, YYYY-MM-DD or YYYY-MM.
	ErrInvalidTime = errors.New("invalid time value")

	// ErrUserNotFound is returned when a referenced user doesn't exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrDuplicateUser is returned when an email or phone number is already taken.
	ErrDuplicateUser = errors.New("email or phone already used")

	// ErrInvalidPolicy is returned when an AggregationPolicy is contradictory.
	ErrInvalidPolicy = errors.New("invalid aggregation policy")

	// ErrConcurrentModification is returned when optimistic locking detects a conflict.
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// MissingShiftError reports which user has no shift.
type MissingShiftError struct {
	UserID string
}

func (e *MissingShiftError) Error() string {
	if e.UserID == "" {
		return ErrMissingShift.Error()
	}
	return fmt.Sprintf("no shift defined for user %s", e.UserID)
}

func (e *MissingShiftError) Unwrap() error { return ErrMissingShift }

// DuplicateOpenPunchError identifies the punch that is still open.
type DuplicateOpenPunchError struct {
	UserID    string
	Date      Date
	OpenSince TimeOfDay
}

func (e *DuplicateOpenPunchError) Error() string {
	return fmt.Sprintf("already punched in on %s at %s, please punch out first", e.Date, e.OpenSince)
}

func (e *DuplicateOpenPunchError) Unwrap() error { return ErrDuplicateOpenPunch }

// NoOpenPunchError distinguishes "no record for the day" from "last punch closed".
type NoOpenPunchError struct {
	UserID   string
	Date     Date
	NoRecord bool
}

func (e *NoOpenPunchError) Error() string {
	if e.NoRecord {
		return fmt.Sprintf("no punch in found for %s", e.Date)
	}
	return fmt.Sprintf("no open punch to close on %s", e.Date)
}

func (e *NoOpenPunchError) Unwrap() error { return ErrNoOpenPunch }

// MissingEvidenceError names the action that lacked a photo.
type MissingEvidenceError struct {
	Action string // "punch-in" or "punch-out"
}

func (e *MissingEvidenceError) Error() string {
	return fmt.Sprintf("photo is required for %s", e.Action)
}

func (e *MissingEvidenceError) Unwrap() error { return ErrMissingEvidence }

// RecordNotFoundError carries the ID that was looked up.
type RecordNotFoundError struct {
	ID string
}

func (e *RecordNotFoundError) Error() string {
	return fmt.Sprintf("attendance record %s not found", e.ID)
}

func (e *RecordNotFoundError) Unwrap() error { return ErrRecordNotFound }

// InvalidPunchIndexError reports the requested index and how many punches exist.
type InvalidPunchIndexError struct {
	Index int
	Count int
}

func (e *InvalidPunchIndexError) Error() string {
	return fmt.Sprintf("invalid punch index %d (day has %d punches)", e.Index, e.Count)
}

func (e *InvalidPunchIndexError) Unwrap() error { return ErrInvalidPunchIndex }

// InvalidTimeError reports a malformed boundary string.
type InvalidTimeError struct {
	Value  string
	Layout string
}

func (e *InvalidTimeError) Error() string {
	return fmt.Sprintf("invalid time value %q (expected %s)", e.Value, e.Layout)
}

func (e *InvalidTimeError) Unwrap() error { return ErrInvalidTime }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrMissingShift) ||
		errors.Is(err, ErrDuplicateOpenPunch) ||
		errors.Is(err, ErrNoOpenPunch) ||
		errors.Is(err, ErrMissingEvidence) ||
		errors.Is(err, ErrInvalidPunchIndex) ||
		errors.Is(err, ErrInvalidTime) ||
		errors.Is(err, ErrInvalidPolicy)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRecordNotFound) ||
		errors.Is(err, ErrUserNotFound)
}

// IsConflict returns true if the error indicates a uniqueness or write conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateUser) ||
		errors.Is(err, ErrConcurrentModification)
}
