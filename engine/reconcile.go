/*
reconcile.go - Entitlement reconciler

PURPOSE:
  Lazily re-evaluates active grants on read. There is no background
  scheduler: correctness depends only on "no active enrollment is
  reported as active past its true deadline", not on a precise expiry
  timestamp, so the read path corrects stale state itself.

DEMOTION RULES:
  - Course fixed end-date has passed    -> completed
    (the course itself is over; the learner did not fail anything)
  - Rolling access deadline has passed  -> expired
    (the grant's own window ran out before the course ended)

MONOTONICITY:
  Demotion only ever moves active -> completed/expired. Re-running the
  reconciler over already-demoted state is a no-op, so a failed persist
  is harmless: the next read recomputes the same corrections.

PERSISTENCE:
  Demotions within one read are persisted as a single transactional
  batch so a partially reconciled result set is never written. The write
  is fire-and-forget relative to the read: on failure the read still
  returns the corrected in-memory view and the failure is logged.

SEE ALSO:
  - clock.go:   Deadline computation at activation time
  - service.go: Runs the reconciler in ListUserEnrollments
*/
package engine

import (
	"context"

	"github.com/rs/zerolog"
)

// =============================================================================
// RECONCILER
// =============================================================================

// Reconciler demotes active enrollments whose entitlement has lapsed.
type Reconciler struct {
	Store Store
	Clock Clock
	Log   zerolog.Logger
}

// Apply demotes lapsed active enrollments in place and returns the ones
// it changed. It only reads from the store (course end-dates); persisting
// the changes is the caller's job. A course lookup failure skips that
// enrollment and is logged: the next read retries.
func (r *Reconciler) Apply(ctx context.Context, enrollments []*Enrollment) []*Enrollment {
	now := r.Clock.Now()
	courses := make(map[CourseID]*Course)

	var demoted []*Enrollment
	for _, e := range enrollments {
		if e.Status != StatusActive {
			continue
		}

		course, ok := courses[e.CourseID]
		if !ok {
			var err error
			course, err = r.Store.GetCourse(ctx, e.CourseID)
			if err != nil {
				r.Log.Warn().Err(err).
					Str("enrollment", string(e.ID)).
					Str("course", string(e.CourseID)).
					Msg("reconcile: course lookup failed, skipping")
				continue
			}
			courses[e.CourseID] = course
		}

		switch {
		case course.EndDate != nil && course.EndDate.Before(now):
			e.Status = StatusCompleted
		case e.AccessDeadline != nil && e.AccessDeadline.Before(now):
			e.Status = StatusExpired
		default:
			continue
		}

		e.UpdatedAt = now
		demoted = append(demoted, e)
	}
	return demoted
}
