package schedule_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/lesson-engine/schedule"
)

// =============================================================================
// OCCURRENCE EXPANSION
// =============================================================================

func TestOccurrences_AdHocInRange(t *testing.T) {
	ev := adhocEvent("ev", "alice", day(2025, time.March, 5), at(14, 0))

	got := schedule.Occurrences(ev, day(2025, time.March, 1), day(2025, time.March, 31))
	require.Len(t, got, 1)
	assert.True(t, got[0].Equal(day(2025, time.March, 5)))

	assert.Empty(t, schedule.Occurrences(ev, day(2025, time.April, 1), day(2025, time.April, 30)))
}

func TestOccurrences_WeeklyExpansion(t *testing.T) {
	// GIVEN: A Wednesday template starting in the week of 2025-03-03
	tpl := recurringEvent("tpl", "alice", time.Wednesday, at(14, 0), day(2025, time.March, 3))

	// WHEN: Expanding over March 2025
	got := schedule.Occurrences(tpl, day(2025, time.March, 1), day(2025, time.March, 31))

	// THEN: Every Wednesday from the start week onward
	want := []schedule.Day{
		day(2025, time.March, 5),
		day(2025, time.March, 12),
		day(2025, time.March, 19),
		day(2025, time.March, 26),
	}
	require.Len(t, got, len(want))
	for i := range want {
		assert.True(t, got[i].Equal(want[i]), "occurrence %d: got %s want %s", i, got[i], want[i])
	}
}

func TestOccurrences_StartWeekBoundsExpansion(t *testing.T) {
	// Template starts mid-March; earlier Wednesdays must not appear.
	tpl := recurringEvent("tpl", "alice", time.Wednesday, at(14, 0), day(2025, time.March, 17))

	got := schedule.Occurrences(tpl, day(2025, time.March, 1), day(2025, time.March, 31))

	require.Len(t, got, 2)
	assert.True(t, got[0].Equal(day(2025, time.March, 19)))
	assert.True(t, got[1].Equal(day(2025, time.March, 26)))
}

func TestOccurrences_InvertedRange(t *testing.T) {
	tpl := recurringEvent("tpl", "alice", time.Wednesday, at(14, 0), day(2025, time.March, 3))
	assert.Empty(t, schedule.Occurrences(tpl, day(2025, time.March, 31), day(2025, time.March, 1)))
}

// =============================================================================
// RANGE RESOLUTION
// =============================================================================

func TestRangeEvents_AppliesPrecedencePerSlot(t *testing.T) {
	// GIVEN: A weekly Wednesday template, an ad-hoc edit on one Wednesday,
	// and a cancellation on another
	tpl := recurringEvent("tpl", "alice", time.Wednesday, at(14, 0), day(2025, time.March, 3))
	edit := adhocEvent("edit", "bob", day(2025, time.March, 12), at(14, 0))
	cancel := schedule.CancellationOverride{
		Date:      day(2025, time.March, 19),
		Time:      at(14, 0),
		StudentID: "alice",
	}

	got := schedule.RangeEvents(day(2025, time.March, 1), day(2025, time.March, 31),
		schedule.TrackMaster,
		[]schedule.ScheduleEvent{tpl, edit},
		[]schedule.CancellationOverride{cancel})

	// THEN: 03-05 template, 03-12 ad-hoc edit, 03-19 cancelled, 03-26 template
	require.Len(t, got, 3)
	assert.Equal(t, "tpl", got[0].ID)
	assert.True(t, got[0].Date.Equal(day(2025, time.March, 5)))
	assert.Equal(t, "edit", got[1].ID)
	assert.Equal(t, "tpl", got[2].ID)
	assert.True(t, got[2].Date.Equal(day(2025, time.March, 26)))
}
