/*
prereq.go - Prerequisite gate

PURPOSE:
  Checks a candidate's completed-course history against a course's
  declared prerequisite list before an enrollment request is accepted.

COMPLETION RULE:
  A course counts as completed when the learner holds an enrollment for
  it with status "completed", or with progress at 100. There is no
  separate completion record; it is derived from enrollments.

TIMING:
  The gate runs at initial creation only, not again at approval time.
  This assumes prerequisites cannot newly become unmet between request
  and approval.

SEE ALSO:
  - service.go: Invokes the gate in CreateEnrollment
*/
package engine

import "context"

// =============================================================================
// PREREQUISITE GATE
// =============================================================================

// PrerequisiteGate decides whether a learner may enroll in a course.
type PrerequisiteGate struct {
	Store Store
}

// IsSatisfied reports whether the user has completed every prerequisite
// of the course. The second return value lists the prerequisites still
// missing. An empty prerequisite list always satisfies.
func (g *PrerequisiteGate) IsSatisfied(ctx context.Context, userID UserID, course *Course) (bool, []CourseID, error) {
	if len(course.Prerequisites) == 0 {
		return true, nil, nil
	}

	completed, err := g.completedCourses(ctx, userID)
	if err != nil {
		return false, nil, err
	}

	var missing []CourseID
	for _, req := range course.Prerequisites {
		if !completed[req] {
			missing = append(missing, req)
		}
	}
	return len(missing) == 0, missing, nil
}

// completedCourses collects the set of course IDs the user has finished.
func (g *PrerequisiteGate) completedCourses(ctx context.Context, userID UserID) (map[CourseID]bool, error) {
	enrollments, err := g.Store.ListEnrollmentsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	done := make(map[CourseID]bool)
	for _, e := range enrollments {
		if e.Status == StatusCompleted || e.Progress == 100 {
			done[e.CourseID] = true
		}
	}
	return done, nil
}
