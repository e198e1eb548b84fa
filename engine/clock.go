/*
clock.go - Entitlement clock

PURPOSE:
  Computes the validity deadline for a grant and abstracts "now" so that
  deadline computation and reconciliation are deterministic under test.

DEADLINE RULE:
  A course may define a rolling access window (months from activation),
  a fixed calendar end-date, both, or neither. The effective deadline is
  the EARLIER of the defined ones. The system must never grant access
  beyond the course's own scheduled end, no matter how generous the
  rolling window is.

  rolling only:        deadline = activatedAt + AccessMonths
  fixed only:          deadline = EndDate
  both:                deadline = min(rolling, fixed)
  neither:             deadline = nil (entitlement never expires)

CLOCK INJECTION:
  Every operation that needs the current instant takes it from a Clock
  rather than calling time.Now directly. Tests pin the clock; production
  uses SystemClock.

SEE ALSO:
  - service.go:   Invokes EffectiveDeadline at activation
  - reconcile.go: Compares deadlines against the clock on read
*/
package engine

import "time"

// =============================================================================
// CLOCK - Injected time authority
// =============================================================================

// Clock supplies the current instant. Inject a fixed implementation in
// tests to make deadline computation deterministic.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// =============================================================================
// EFFECTIVE DEADLINE - Pure computation
// =============================================================================

// EffectiveDeadline computes the instant a grant activated at activatedAt
// stops being valid. Returns nil when the course defines no expiry source.
func EffectiveDeadline(course *Course, activatedAt time.Time) *time.Time {
	var rolling, fixed *time.Time

	if course.AccessMonths != nil {
		t := activatedAt.AddDate(0, *course.AccessMonths, 0)
		rolling = &t
	}
	if course.EndDate != nil {
		t := *course.EndDate
		fixed = &t
	}

	switch {
	case rolling == nil:
		return fixed
	case fixed == nil:
		return rolling
	case fixed.Before(*rolling):
		return fixed
	default:
		return rolling
	}
}
