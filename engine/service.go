/*
service.go - Enrollment lifecycle operations

PURPOSE:
  Orchestrates the enrollment state machine on top of the Store. This is
  the engine's public surface: everything the application server calls
  lives here.

STATE MACHINE:
  create -> active            card / admin grant (atomic side effects)
  create -> pending           bank transfer (receipt stored, no effects)
  create -> pending_payment   gateway (no effects)
  pending* -> active          approval (same atomic side effects; no-op
                              when already active)
  pending* -> rejected        decline (terminal, no side effects)
  active -> completed         progress reaches 100, or course end-date
                              passed (lazy, on read)
  active -> expired           rolling deadline passed (lazy, on read)

ATOMIC ACTIVATION:
  Activation is one multi-document transaction: duplicate-active guard,
  capacity slot, enrollment status + deadline, user profile union. A
  failure partway through rolls everything back; retrying is safe.

ERROR HANDLING:
  Business-rule violations come back as typed failures (errors.go) and
  are never swallowed. Store commit failures surface as
  ErrTransactionFailed. Reconciliation persist failures are logged and
  retried on the next read, never surfaced to the read caller.

SEE ALSO:
  - policy.go:    Payment method to initial state mapping
  - capacity.go:  Slot reservation
  - prereq.go:    Creation-time gate
  - reconcile.go: Lazy expiry on read
*/
package engine

import (
	"bytes"
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/esystemlk/lms-smartlabs-sub000/storage"
)

// =============================================================================
// SERVICE
// =============================================================================

// Service is the enrollment and entitlement engine. All fields are
// required except Receipts, which may be nil when no payment path needs
// proof-of-payment uploads.
type Service struct {
	Store    TxStore
	Receipts storage.Storage
	Clock    Clock
	Log      zerolog.Logger
}

func NewService(store TxStore, receipts storage.Storage, clock Clock, log zerolog.Logger) *Service {
	return &Service{Store: store, Receipts: receipts, Clock: clock, Log: log}
}

// CreateEnrollmentInput carries one enrollment request.
type CreateEnrollmentInput struct {
	UserID   UserID
	CourseID CourseID
	BatchID  BatchID
	Method   PaymentMethod
	Amount   decimal.Decimal

	// Receipt is the raw proof-of-payment artifact, uploaded to the
	// object store before any enrollment record is written. Optional.
	Receipt []byte
}

// =============================================================================
// CREATE
// =============================================================================

// CreateEnrollment runs the full creation path: activation policy,
// prerequisite gate, duplicate-active guard, receipt upload, then either
// an atomic activation or a plain pending write.
func (s *Service) CreateEnrollment(ctx context.Context, in CreateEnrollmentInput) (*Enrollment, error) {
	decision, err := DecideActivation(in.Method)
	if err != nil {
		return nil, err
	}
	if decision.RequiresReceipt && len(in.Receipt) == 0 {
		return nil, fmt.Errorf("%w for %s payment", ErrReceiptRequired, in.Method)
	}

	user, err := s.Store.GetUser(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	course, err := s.Store.GetCourse(ctx, in.CourseID)
	if err != nil {
		return nil, err
	}
	batch, err := s.Store.GetBatch(ctx, in.BatchID)
	if err != nil {
		return nil, err
	}
	if batch.CourseID != course.ID {
		return nil, &NotFoundError{Kind: "batch", ID: string(in.BatchID)}
	}

	// Prerequisite gate runs at creation only.
	gate := &PrerequisiteGate{Store: s.Store}
	ok, missing, err := gate.IsSatisfied(ctx, in.UserID, course)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &PrerequisiteError{CourseID: course.ID, Missing: missing}
	}

	// Fast-path duplicate guard. The authoritative check re-runs inside
	// the activation transaction.
	existing, err := s.Store.FindActiveEnrollment(ctx, in.UserID, in.BatchID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrDuplicateActiveEnrollment
	}

	now := s.Clock.Now()
	e := &Enrollment{
		ID:            EnrollmentID(uuid.NewString()),
		UserID:        user.ID,
		UserEmail:     user.Email,
		UserName:      user.Name,
		CourseID:      course.ID,
		CourseTitle:   course.Title,
		BatchID:       batch.ID,
		BatchName:     batch.Name,
		Status:        decision.InitialStatus,
		PaymentMethod: in.Method,
		Amount:        in.Amount,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	// Receipt goes to the object store first: if the upload fails no
	// enrollment record exists, so nothing is orphaned.
	if len(in.Receipt) > 0 {
		url, err := s.uploadReceipt(ctx, e.ID, in.Receipt)
		if err != nil {
			return nil, err
		}
		e.ReceiptURL = url
	}

	if !decision.Immediate {
		if err := s.Store.PutEnrollment(ctx, e); err != nil {
			return nil, s.txError(err)
		}
		s.Log.Info().
			Str("enrollment", string(e.ID)).
			Str("user", string(e.UserID)).
			Str("status", string(e.Status)).
			Msg("enrollment created awaiting confirmation")
		return e, nil
	}

	err = s.Store.WithTx(ctx, func(tx Store) error {
		return s.activate(ctx, tx, e, course)
	})
	if err != nil {
		return nil, s.txError(err)
	}

	s.Log.Info().
		Str("enrollment", string(e.ID)).
		Str("user", string(e.UserID)).
		Str("batch", string(e.BatchID)).
		Msg("enrollment activated")
	return e, nil
}

// =============================================================================
// APPROVE / REJECT
// =============================================================================

// ApproveEnrollment activates a pending enrollment with the same atomic
// side effects immediate activation would have performed. Approving an
// already-active enrollment is a no-op returning success; the engine is
// agnostic to whether an administrator or a gateway callback called it.
func (s *Service) ApproveEnrollment(ctx context.Context, id EnrollmentID) error {
	e, err := s.Store.GetEnrollment(ctx, id)
	if err != nil {
		return err
	}
	if e.Status == StatusActive {
		return nil
	}
	if !e.Status.IsPending() {
		return fmt.Errorf("%w: cannot approve %s enrollment", ErrInvalidTransition, e.Status)
	}

	course, err := s.Store.GetCourse(ctx, e.CourseID)
	if err != nil {
		return err
	}

	err = s.Store.WithTx(ctx, func(tx Store) error {
		// Re-read inside the transaction: a concurrent approval may
		// have won already.
		cur, err := tx.GetEnrollment(ctx, id)
		if err != nil {
			return err
		}
		if cur.Status == StatusActive {
			return nil
		}
		if !cur.Status.IsPending() {
			return fmt.Errorf("%w: cannot approve %s enrollment", ErrInvalidTransition, cur.Status)
		}
		return s.activate(ctx, tx, cur, course)
	})
	if err != nil {
		return s.txError(err)
	}

	s.Log.Info().Str("enrollment", string(id)).Msg("enrollment approved")
	return nil
}

// RejectEnrollment declines a pending enrollment. Terminal, no side
// effects; the record stays for audit, it is never deleted. Rejecting an
// already-rejected enrollment is a no-op.
func (s *Service) RejectEnrollment(ctx context.Context, id EnrollmentID) error {
	e, err := s.Store.GetEnrollment(ctx, id)
	if err != nil {
		return err
	}
	if e.Status == StatusRejected {
		return nil
	}
	if !e.Status.IsPending() {
		return fmt.Errorf("%w: cannot reject %s enrollment", ErrInvalidTransition, e.Status)
	}

	err = s.Store.WithTx(ctx, func(tx Store) error {
		// Re-read inside the transaction: a concurrent approval may
		// have activated the enrollment already, and active must never
		// be overwritten to rejected.
		cur, err := tx.GetEnrollment(ctx, id)
		if err != nil {
			return err
		}
		if cur.Status == StatusRejected {
			return nil
		}
		if !cur.Status.IsPending() {
			return fmt.Errorf("%w: cannot reject %s enrollment", ErrInvalidTransition, cur.Status)
		}
		cur.Status = StatusRejected
		cur.UpdatedAt = s.Clock.Now()
		return tx.PutEnrollment(ctx, cur)
	})
	if err != nil {
		return s.txError(err)
	}

	s.Log.Info().Str("enrollment", string(id)).Msg("enrollment rejected")
	return nil
}

// =============================================================================
// PROGRESS
// =============================================================================

// MarkLessonComplete records one finished lesson and returns the new
// progress percentage. Repeating a lesson is a no-op returning the
// current progress. Reaching 100% flips the enrollment to completed in
// the same write.
func (s *Service) MarkLessonComplete(ctx context.Context, id EnrollmentID, lessonID LessonID, totalLessons int) (int, error) {
	if totalLessons <= 0 {
		return 0, fmt.Errorf("%w: total lessons must be positive, got %d", ErrInvalidInput, totalLessons)
	}

	// Read-modify-write inside one transaction: two concurrent
	// completions of different lessons must both land in the set, and
	// the progress-100 flip must see every recorded lesson.
	var progress int
	err := s.Store.WithTx(ctx, func(tx Store) error {
		e, err := tx.GetEnrollment(ctx, id)
		if err != nil {
			return err
		}
		if e.HasLesson(lessonID) {
			progress = e.Progress
			return nil
		}
		if e.Status != StatusActive {
			return fmt.Errorf("%w: cannot record lessons on %s enrollment", ErrInvalidTransition, e.Status)
		}

		e.CompletedLessons = append(e.CompletedLessons, lessonID)
		progress = len(e.CompletedLessons) * 100 / totalLessons
		if progress > 100 {
			progress = 100
		}
		e.Progress = progress
		if progress == 100 {
			e.Status = StatusCompleted
		}
		e.UpdatedAt = s.Clock.Now()
		return tx.PutEnrollment(ctx, e)
	})
	if err != nil {
		return 0, s.txError(err)
	}
	return progress, nil
}

// =============================================================================
// READ
// =============================================================================

// ListUserEnrollments returns the user's enrollments, newest first,
// after reconciling lapsed entitlements. Demotions and last-accessed
// stamps are persisted as one transactional batch; if that write fails
// the corrected in-memory view is still returned and the failure is
// logged (reconciliation is idempotent, the next read retries).
func (s *Service) ListUserEnrollments(ctx context.Context, userID UserID) ([]*Enrollment, error) {
	enrollments, err := s.Store.ListEnrollmentsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	reconciler := &Reconciler{Store: s.Store, Clock: s.Clock, Log: s.Log}
	dirty := reconciler.Apply(ctx, enrollments)

	now := s.Clock.Now()
	for _, e := range enrollments {
		if e.Status == StatusActive {
			t := now
			e.LastAccessedAt = &t
			dirty = append(dirty, e)
		}
	}

	if len(dirty) > 0 {
		err := s.Store.WithTx(ctx, func(tx Store) error {
			for _, e := range dirty {
				if err := tx.PutEnrollment(ctx, e); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			s.Log.Warn().Err(err).
				Str("user", string(userID)).
				Int("writes", len(dirty)).
				Msg("reconciliation persist failed, returning corrected view")
		}
	}

	return enrollments, nil
}

// GetEnrollment returns one enrollment by ID.
func (s *Service) GetEnrollment(ctx context.Context, id EnrollmentID) (*Enrollment, error) {
	return s.Store.GetEnrollment(ctx, id)
}

// =============================================================================
// INTERNALS
// =============================================================================

// activate performs the activation side effects against a transactional
// store view: duplicate guard, capacity slot, status + deadline, user
// profile union. Must run inside WithTx.
func (s *Service) activate(ctx context.Context, tx Store, e *Enrollment, course *Course) error {
	existing, err := tx.FindActiveEnrollment(ctx, e.UserID, e.BatchID)
	if err != nil {
		return err
	}
	if existing != nil && existing.ID != e.ID {
		return ErrDuplicateActiveEnrollment
	}

	ledger := &CapacityLedger{Store: tx}
	if err := ledger.Reserve(ctx, e.BatchID); err != nil {
		return err
	}

	now := s.Clock.Now()
	e.Status = StatusActive
	e.AccessDeadline = EffectiveDeadline(course, now)
	e.UpdatedAt = now

	if err := tx.PutEnrollment(ctx, e); err != nil {
		return err
	}
	return tx.AddUserEnrollment(ctx, e.UserID, e.BatchID, e.CourseID)
}

// uploadReceipt stores the proof-of-payment artifact and returns its URL.
func (s *Service) uploadReceipt(ctx context.Context, id EnrollmentID, data []byte) (string, error) {
	if s.Receipts == nil {
		return "", fmt.Errorf("%w: no object store configured", ErrUploadFailed)
	}
	key := fmt.Sprintf("receipts/%s", id)
	url, err := s.Receipts.Upload(ctx, key, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	return url, nil
}

// txError classifies an error out of a store transaction: business-rule
// violations pass through untouched, anything else is a commit failure.
func (s *Service) txError(err error) error {
	if err == nil || IsClientError(err) || IsNotFound(err) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrTransactionFailed, err)
}
