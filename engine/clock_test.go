package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esystemlk/lms-smartlabs-sub000/engine"
)

// =============================================================================
// EFFECTIVE DEADLINE - earlier-defined-source-wins rule
// =============================================================================

func TestEffectiveDeadline_RollingOnly(t *testing.T) {
	// GIVEN: Course with a 3-month rolling window and no end-date
	// WHEN: Activating on day 0
	// THEN: Deadline is exactly day 0 + 3 months

	months := 3
	course := &engine.Course{ID: "c-1", AccessMonths: &months}
	activated := time.Date(2025, time.March, 1, 10, 0, 0, 0, time.UTC)

	deadline := engine.EffectiveDeadline(course, activated)

	require.NotNil(t, deadline)
	assert.Equal(t, time.Date(2025, time.June, 1, 10, 0, 0, 0, time.UTC), *deadline)
}

func TestEffectiveDeadline_FixedOnly(t *testing.T) {
	// GIVEN: Course with only a calendar end-date
	// THEN: Deadline is the end-date regardless of activation instant

	end := time.Date(2025, time.December, 31, 0, 0, 0, 0, time.UTC)
	course := &engine.Course{ID: "c-1", EndDate: &end}

	deadline := engine.EffectiveDeadline(course, time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC))

	require.NotNil(t, deadline)
	assert.Equal(t, end, *deadline)
}

func TestEffectiveDeadline_BothDefined_EarlierWins(t *testing.T) {
	// GIVEN: End-date 2025-01-01 and a 6-month rolling window
	// WHEN: Activating on 2024-11-01 (rolling deadline would be 2025-05-01)
	// THEN: The fixed end-date governs - access never outlives the course

	end := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	months := 6
	course := &engine.Course{ID: "c-1", EndDate: &end, AccessMonths: &months}

	deadline := engine.EffectiveDeadline(course, time.Date(2024, time.November, 1, 0, 0, 0, 0, time.UTC))

	require.NotNil(t, deadline)
	assert.Equal(t, end, *deadline)
}

func TestEffectiveDeadline_BothDefined_RollingEarlier(t *testing.T) {
	// GIVEN: A far-future end-date and a 1-month rolling window
	// THEN: The rolling deadline governs

	end := time.Date(2030, time.January, 1, 0, 0, 0, 0, time.UTC)
	months := 1
	course := &engine.Course{ID: "c-1", EndDate: &end, AccessMonths: &months}
	activated := time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC)

	deadline := engine.EffectiveDeadline(course, activated)

	require.NotNil(t, deadline)
	assert.Equal(t, time.Date(2025, time.April, 15, 0, 0, 0, 0, time.UTC), *deadline)
}

func TestEffectiveDeadline_NeitherDefined_NoExpiry(t *testing.T) {
	// GIVEN: Course with neither expiry source
	// THEN: Deadline is nil - the entitlement never expires

	course := &engine.Course{ID: "c-1"}

	assert.Nil(t, engine.EffectiveDeadline(course, time.Now()))
}
