/*
errors.go - Centralized error types for the duty engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages wrap these errors with additional context.

ERROR CATEGORIES:
  1. Missing input - never an error; calculators return nil values instead
  2. Validation errors - Business rule violations (bad transition, bad input)
  3. Concurrency - Optimistic-lock conflicts, retry with a fresh read
  4. Store errors - Database-level failures

  Data anomalies (e.g. a 30-hour shift) are logged, not returned.
  Event emission failures are logged, never returned to the writer.

USAGE:
  if generic.IsRetryable(err) {
      // reload the record and apply the edit again
  }

SEE ALSO:
  - validation/service.go: Returns ErrConcurrentModification
  - api/handlers.go: Maps these errors to HTTP status codes
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrConcurrentModification is returned when optimistic locking detects a conflict.
	// The caller should re-read the record and retry the edit.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrRecordNotFound is returned when a referenced record doesn't exist.
	ErrRecordNotFound = errors.New("record not found")

	// ErrTemplateNotFound is returned when a referenced shift template doesn't exist.
	ErrTemplateNotFound = errors.New("shift template not found")

	// ErrTemplateInUse is returned when changing a shift template that
	// attendance or a duty schedule already references. Create a new
	// template instead.
	ErrTemplateInUse = errors.New("shift template is referenced and cannot change")

	// ErrRateCardNotFound is returned when a referenced rate card doesn't exist.
	ErrRateCardNotFound = errors.New("rate card not found")

	// ErrInvalidTransition is returned when a review action is not allowed
	// from the record's current status.
	ErrInvalidTransition = errors.New("invalid validation status transition")

	// ErrReasonRequired is returned when rejecting without a reason.
	ErrReasonRequired = errors.New("rejection reason is required")

	// ErrActorRequired is returned when an edit or review has no actor.
	ErrActorRequired = errors.New("actor is required")

	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")

	// ErrInvalidTimeOfDay is returned when a time-of-day string cannot be parsed.
	ErrInvalidTimeOfDay = errors.New("invalid time of day")

	// ErrNegativeCount is returned when a patient count is below zero.
	ErrNegativeCount = errors.New("patient count must not be negative")

	// ErrAlreadyCheckedOut is returned when checking out a record twice.
	ErrAlreadyCheckedOut = errors.New("attendance already checked out")

	// ErrDuplicateRecord is returned when a unique record already exists
	// (same staff, date and shift sequence; same staff, date and clinic unit).
	ErrDuplicateRecord = errors.New("record already exists")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ConflictError describes an optimistic-lock failure.
type ConflictError struct {
	RecordType      RecordType
	RecordID        RecordID
	ExpectedVersion int
	ExpectedStatus  ValidationStatus
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %s changed concurrently (expected version %d, status %s)",
		e.RecordType, e.RecordID, e.ExpectedVersion, e.ExpectedStatus)
}

func (e *ConflictError) Unwrap() error {
	return ErrConcurrentModification
}

// TransitionError names the rejected transition.
type TransitionError struct {
	From   ValidationStatus
	To     ValidationStatus
	Action string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s: status %s -> %s not allowed", e.Action, e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrReasonRequired) ||
		errors.Is(err, ErrActorRequired) ||
		errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrInvalidTimeOfDay) ||
		errors.Is(err, ErrNegativeCount) ||
		errors.Is(err, ErrAlreadyCheckedOut) ||
		errors.Is(err, ErrDuplicateRecord) ||
		errors.Is(err, ErrTemplateInUse)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRecordNotFound) ||
		errors.Is(err, ErrTemplateNotFound) ||
		errors.Is(err, ErrRateCardNotFound)
}
