/*
store.go - Persistence interfaces for the enrollment engine

PURPOSE:
  Defines the interface between the engine and the backing document
  store. Implementations exist for SQLite (store/sqlite) and memory
  (engine/store). The engine treats the store as an external
  transactional collaborator: single-document atomic writes plus
  all-or-nothing multi-document batches.

COLLECTIONS:
  enrollments  Every enrollment attempt and its lifecycle state
  courses      Catalog (read-mostly from the engine's point of view)
  batches      Cohorts with the atomic enrolled counter
  users        Identity profiles with additive enrollment sets

ATOMIC ACTIVATION:
  Activation touches three documents (enrollment, batch counter, user
  profile) and must be all-or-nothing. TxStore.WithTx provides the
  transaction boundary; TryIncrementEnrolled provides the atomic
  check-and-increment inside it.

ORDERING CONTRACT:
  ListEnrollmentsByUser returns newest first (by CreatedAt descending).

SEE ALSO:
  - engine/store/memory.go: In-memory implementation
  - store/sqlite/sqlite.go: SQLite implementation
*/
package engine

import "context"

// =============================================================================
// STORE - Document persistence
// =============================================================================

// Store is the engine's view of the backing document store. All methods
// return *NotFoundError (wrapping ErrNotFound) for missing references,
// except FindActiveEnrollment which reports absence as (nil, nil).
type Store interface {
	// --- enrollments ---

	// GetEnrollment returns one enrollment by ID.
	GetEnrollment(ctx context.Context, id EnrollmentID) (*Enrollment, error)

	// PutEnrollment inserts or replaces an enrollment document.
	PutEnrollment(ctx context.Context, e *Enrollment) error

	// ListEnrollmentsByUser returns the user's enrollments, newest first.
	ListEnrollmentsByUser(ctx context.Context, userID UserID) ([]*Enrollment, error)

	// FindActiveEnrollment returns the user's active enrollment in the
	// batch, or (nil, nil) when there is none. At most one can exist.
	FindActiveEnrollment(ctx context.Context, userID UserID, batchID BatchID) (*Enrollment, error)

	// --- catalog ---

	GetCourse(ctx context.Context, id CourseID) (*Course, error)
	PutCourse(ctx context.Context, c *Course) error
	ListCourses(ctx context.Context) ([]*Course, error)

	GetBatch(ctx context.Context, id BatchID) (*Batch, error)
	PutBatch(ctx context.Context, b *Batch) error
	ListBatchesByCourse(ctx context.Context, courseID CourseID) ([]*Batch, error)

	// TryIncrementEnrolled atomically increments the batch's enrolled
	// counter unless that would exceed MaxCapacity. Returns false when
	// the batch is full. The check and the increment are a single
	// operation: concurrent activations for the last slot cannot both
	// succeed.
	TryIncrementEnrolled(ctx context.Context, id BatchID) (bool, error)

	// --- users ---

	GetUser(ctx context.Context, id UserID) (*User, error)
	PutUser(ctx context.Context, u *User) error

	// AddUserEnrollment adds the batch and course to the user's
	// enrollment sets. Additive union: already-present members are a
	// no-op, nothing is ever removed.
	AddUserEnrollment(ctx context.Context, userID UserID, batchID BatchID, courseID CourseID) error
}

// =============================================================================
// TRANSACTIONAL STORE - All-or-nothing multi-document writes
// =============================================================================

// TxStore wraps Store with a transaction boundary. Activation uses it so
// the enrollment write, the counter increment, and the user profile
// update commit together or not at all.
type TxStore interface {
	Store

	// WithTx executes fn against a transactional view of the store.
	// If fn returns an error the transaction is rolled back and that
	// error is returned unchanged.
	WithTx(ctx context.Context, fn func(Store) error) error
}
