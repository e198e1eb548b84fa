/*
errors.go - Centralized error types for the enrollment engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Business-rule violations are typed failures returned to the caller,
  never silently swallowed; the calling layer owns user-facing messaging.

ERROR CATEGORIES:
  1. Business-rule violations - prerequisite, duplicate, capacity
  2. Reference errors         - missing enrollment/course/batch/user
  3. Infrastructure errors    - store transaction, receipt upload

RETRY CONTRACT:
  A failed activation never leaves partial state (the store transaction
  rolls back), so retrying after ErrTransactionFailed is always safe.

USAGE:
  if errors.Is(err, engine.ErrCapacityExceeded) {
      // batch is full, surface to user
  }

SEE ALSO:
  - service.go: Produces these errors
  - api/handlers.go: Maps them to HTTP statuses
*/
package engine

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrPrerequisiteNotMet is returned when the candidate has not
	// completed every course in the target course's prerequisite list.
	ErrPrerequisiteNotMet = errors.New("prerequisite not met")

	// ErrDuplicateActiveEnrollment is returned when the user already
	// holds an active enrollment in the target batch.
	ErrDuplicateActiveEnrollment = errors.New("duplicate active enrollment")

	// ErrCapacityExceeded is returned when activation would push a
	// batch past its maximum headcount.
	ErrCapacityExceeded = errors.New("batch capacity exceeded")

	// ErrNotFound is returned when an operation references an
	// enrollment, course, batch, or user that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition is returned when an operation is not legal
	// for the enrollment's current status.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrTransactionFailed is returned when the atomic store write could
	// not commit. Transient; no partial state is persisted, so the
	// caller may retry.
	ErrTransactionFailed = errors.New("store transaction failed")

	// ErrUploadFailed is returned when the proof-of-payment artifact
	// could not be stored. Creation aborts before any enrollment record
	// is written.
	ErrUploadFailed = errors.New("receipt upload failed")

	// ErrUnknownPaymentMethod is returned for payment method tags
	// outside the closed enum.
	ErrUnknownPaymentMethod = errors.New("unknown payment method")

	// ErrReceiptRequired is returned when the payment path demands a
	// proof-of-payment artifact and none was supplied.
	ErrReceiptRequired = errors.New("receipt required")

	// ErrInvalidInput is returned for request parameters that fail
	// basic validation before any state is touched.
	ErrInvalidInput = errors.New("invalid input")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// PrerequisiteError lists which prerequisite courses are still missing.
type PrerequisiteError struct {
	CourseID CourseID
	Missing  []CourseID
}

func (e *PrerequisiteError) Error() string {
	names := make([]string, len(e.Missing))
	for i, id := range e.Missing {
		names[i] = string(id)
	}
	return fmt.Sprintf("prerequisite not met for course %s: missing %s",
		e.CourseID, strings.Join(names, ", "))
}

func (e *PrerequisiteError) Unwrap() error { return ErrPrerequisiteNotMet }

// CapacityError identifies the full batch.
type CapacityError struct {
	BatchID BatchID
	Max     int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("batch %s is full (max %d)", e.BatchID, e.Max)
}

func (e *CapacityError) Unwrap() error { return ErrCapacityExceeded }

// NotFoundError names the missing reference.
type NotFoundError struct {
	Kind string // "enrollment", "course", "batch", "user"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// UnknownPaymentMethodError carries the unrecognized tag.
type UnknownPaymentMethodError struct {
	Method string
}

func (e *UnknownPaymentMethodError) Error() string {
	return fmt.Sprintf("unknown payment method %q", e.Method)
}

func (e *UnknownPaymentMethodError) Unwrap() error { return ErrUnknownPaymentMethod }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is a business-rule violation
// caused by the request, not by the system.
func IsClientError(err error) bool {
	return errors.Is(err, ErrPrerequisiteNotMet) ||
		errors.Is(err, ErrDuplicateActiveEnrollment) ||
		errors.Is(err, ErrCapacityExceeded) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrUnknownPaymentMethod) ||
		errors.Is(err, ErrReceiptRequired) ||
		errors.Is(err, ErrInvalidInput)
}

// IsNotFound returns true if the error indicates a missing reference.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRetryable returns true if the operation might succeed on retry.
// Failed store transactions leave no partial state.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransactionFailed)
}
