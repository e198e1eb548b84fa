/*
Package engine provides the enrollment and entitlement core.

PURPOSE:
  This package contains the types and algorithms that decide whether a
  learner's access to a course batch is currently valid, for how long,
  and through which lifecycle transitions an enrollment request reaches
  that validity. It is a library: the HTTP layer (api/) calls into it,
  and it talks to the outside world only through the Store and Storage
  interfaces.

KEY CONCEPTS IN THIS FILE (types.go):
  - Course:     Catalog entry. Read-only to the engine.
  - Batch:      Capacity-bounded cohort of a course.
  - User:       Identity profile with additive enrollment sets.
  - Enrollment: The central entity, carrying lifecycle status, payment
                details, entitlement deadline, and lesson progress.
  - PaymentMethod: Closed enum mapped to an initial lifecycle state by
                the activation policy.

DESIGN PRINCIPLES:
  1. Denormalization: Enrollments carry copies of user/course/batch
     display fields. This is a document-store read optimization; the
     copies are write-once at creation.
  2. Precision: Payment amounts use decimal.Decimal, never float.
  3. Type Safety: Distinct ID types prevent mixing user/course/batch IDs.
  4. No deletion: Rejection and expiry are status transitions. Enrollment
     records are never removed in normal operation.

SEE ALSO:
  - clock.go:     Entitlement deadline computation
  - policy.go:    Payment method to initial state mapping
  - service.go:   The enrollment lifecycle operations
  - store.go:     Persistence interfaces
*/
package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID string
type CourseID string
type BatchID string
type EnrollmentID string
type LessonID string

// =============================================================================
// CATALOG - Courses and batches (owned by course management, read-only here)
// =============================================================================

// Course is a catalog entry. A course may define either, both, or neither
// expiry source; when both are defined the earlier resulting instant governs.
type Course struct {
	ID    CourseID
	Title string

	// EndDate is the course-wide calendar end. Access is never granted
	// beyond it. Nil means the course has no scheduled end.
	EndDate *time.Time

	// AccessMonths is the rolling per-grant access window, counted from
	// the activation instant. Nil means no rolling window.
	AccessMonths *int

	// Prerequisites lists courses that must be completed before a
	// learner may enroll.
	Prerequisites []CourseID

	// LessonCount is the total number of lessons, used to derive
	// progress percentages.
	LessonCount int

	CreatedAt time.Time
}

// Batch is a scheduled cohort of a course with an optional headcount cap.
type Batch struct {
	ID       BatchID
	CourseID CourseID
	Name     string

	// MaxCapacity caps Enrolled when set. Nil means unbounded.
	MaxCapacity *int

	// Enrolled is a monotonic counter, incremented only by successful
	// activation. The engine never decrements it.
	Enrolled int

	CreatedAt time.Time
}

// HasCapacity reports whether the batch can take one more activation.
// This is a read-side convenience only: the authoritative check is the
// atomic Store.TryIncrementEnrolled.
func (b *Batch) HasCapacity() bool {
	return b.MaxCapacity == nil || b.Enrolled < *b.MaxCapacity
}

// =============================================================================
// USER - Identity/profile collaborator view
// =============================================================================

// User mirrors the identity collaborator's profile document. The engine
// only ever adds to the enrollment sets, never removes.
type User struct {
	ID    UserID
	Email string
	Name  string

	EnrolledBatches []BatchID
	EnrolledCourses []CourseID

	CreatedAt time.Time
}

// =============================================================================
// ENROLLMENT - Lifecycle states
// =============================================================================

type Status string

const (
	// StatusPending awaits manual review (bank transfer).
	StatusPending Status = "pending"
	// StatusPendingPayment awaits an asynchronous gateway confirmation.
	StatusPendingPayment Status = "pending_payment"
	// StatusActive means the entitlement is currently valid.
	StatusActive Status = "active"
	// StatusCompleted means progress reached 100% or the course's own
	// end-date has passed.
	StatusCompleted Status = "completed"
	// StatusExpired means a rolling deadline passed without completion.
	StatusExpired Status = "expired"
	// StatusRejected means an administrator declined a pending request.
	// Terminal.
	StatusRejected Status = "rejected"
)

// IsPending reports whether the status is one of the two pre-activation
// states that an approval can act on.
func (s Status) IsPending() bool {
	return s == StatusPending || s == StatusPendingPayment
}

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusExpired || s == StatusRejected
}

// =============================================================================
// PAYMENT METHOD - Closed enum
// =============================================================================

// PaymentMethod selects how an enrollment is paid for, which in turn
// decides its initial lifecycle state. The set is closed: the activation
// policy matches exhaustively and rejects anything else.
type PaymentMethod string

const (
	PaymentCard         PaymentMethod = "card"          // instant activation
	PaymentAdminGrant   PaymentMethod = "admin_grant"   // instant activation
	PaymentBankTransfer PaymentMethod = "bank_transfer" // manual review
	PaymentGateway      PaymentMethod = "gateway"       // async confirmation
)

// ParsePaymentMethod converts an external string tag into the closed enum.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch m := PaymentMethod(s); m {
	case PaymentCard, PaymentAdminGrant, PaymentBankTransfer, PaymentGateway:
		return m, nil
	default:
		return "", &UnknownPaymentMethodError{Method: s}
	}
}

// =============================================================================
// ENROLLMENT - The central entity
// =============================================================================

// Enrollment is the durable record of one enrollment attempt and its
// current lifecycle state, keyed by (user, course, batch).
type Enrollment struct {
	ID EnrollmentID

	// Owner, with denormalized display fields for reporting.
	UserID    UserID
	UserEmail string
	UserName  string

	// Target, with denormalized titles.
	CourseID    CourseID
	CourseTitle string
	BatchID     BatchID
	BatchName   string

	Status Status

	PaymentMethod PaymentMethod
	Amount        decimal.Decimal

	// ReceiptURL is an opaque reference to an uploaded proof-of-payment
	// artifact. Empty when the payment path needs none.
	ReceiptURL string

	// AccessDeadline is the instant entitlement ends. Nil means no expiry.
	// Set at activation by the entitlement clock.
	AccessDeadline *time.Time

	// CompletedLessons is the set of lessons the learner has finished.
	CompletedLessons []LessonID

	// Progress is the derived completion percentage, 0..100.
	Progress int

	CreatedAt      time.Time
	UpdatedAt      time.Time
	LastAccessedAt *time.Time
}

// HasLesson reports whether a lesson is already in the completed set.
func (e *Enrollment) HasLesson(id LessonID) bool {
	for _, l := range e.CompletedLessons {
		if l == id {
			return true
		}
	}
	return false
}

// Clone returns a deep copy. Stores hand out clones so callers cannot
// alias internal state.
func (e *Enrollment) Clone() *Enrollment {
	c := *e
	if e.AccessDeadline != nil {
		t := *e.AccessDeadline
		c.AccessDeadline = &t
	}
	if e.LastAccessedAt != nil {
		t := *e.LastAccessedAt
		c.LastAccessedAt = &t
	}
	c.CompletedLessons = append([]LessonID(nil), e.CompletedLessons...)
	return &c
}
