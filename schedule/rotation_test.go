package schedule_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/lesson-engine/schedule"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// fourWeekStudent has one master session per week, so a full cycle is
// four counted sessions.
func fourWeekStudent() schedule.Student {
	return schedule.Student{
		ID:         "stu-1",
		Name:       "Mina",
		Active:     true,
		AnchorDate: day(2025, time.January, 6), // a Monday
		Curriculum: []schedule.WeekPlan{
			{Week: 1, MasterCount: 1},
			{Week: 2, MasterCount: 1},
			{Week: 3, MasterCount: 1},
			{Week: 4, MasterCount: 1},
		},
	}
}

func countedEvent(id string, studentID string, track schedule.Track, d schedule.Day) schedule.ScheduleEvent {
	return schedule.ScheduleEvent{
		ID:        id,
		Track:     track,
		Date:      d,
		Time:      at(14, 0),
		StudentID: studentID,
		Category:  schedule.CategoryRegular,
		Status:    schedule.StatusCompleted,
	}
}

// weeklyHistory generates n counted master sessions, one per week starting
// at the student's anchor.
func weeklyHistory(s schedule.Student, n int) []schedule.ScheduleEvent {
	events := make([]schedule.ScheduleEvent, n)
	for i := range events {
		events[i] = countedEvent(
			"ev-"+string(rune('a'+i)),
			s.ID,
			schedule.TrackMaster,
			s.AnchorDate.AddDays(7*i),
		)
	}
	return events
}

// =============================================================================
// ROTATION WEEK
// =============================================================================

func TestRotationWeek_BeforeAnchorIsWeekOne(t *testing.T) {
	anchor := day(2025, time.January, 6)
	assert.Equal(t, 1, schedule.RotationWeek(anchor, day(2024, time.December, 30)))
	assert.Equal(t, 1, schedule.RotationWeek(anchor, day(2025, time.January, 5)))
}

func TestRotationWeek_FourWeekCycle(t *testing.T) {
	// GIVEN: Anchor on Monday 2025-01-06
	anchor := day(2025, time.January, 6)

	// THEN: Weeks advance 1..4 and wrap back to 1 on 2025-02-03
	assert.Equal(t, 1, schedule.RotationWeek(anchor, day(2025, time.January, 6)))
	assert.Equal(t, 1, schedule.RotationWeek(anchor, day(2025, time.January, 12)))
	assert.Equal(t, 2, schedule.RotationWeek(anchor, day(2025, time.January, 13)))
	assert.Equal(t, 3, schedule.RotationWeek(anchor, day(2025, time.January, 20)))
	assert.Equal(t, 4, schedule.RotationWeek(anchor, day(2025, time.January, 27)))
	assert.Equal(t, 1, schedule.RotationWeek(anchor, day(2025, time.February, 3)))
}

// =============================================================================
// CYCLE START DATES
// =============================================================================

func TestCycleStartDates_ZeroRequiredYieldsNothing(t *testing.T) {
	// GIVEN: A student whose curriculum requires no sessions at all
	s := fourWeekStudent()
	s.Curriculum = nil

	history := weeklyHistory(fourWeekStudent(), 10)

	// THEN: No boundary is ever derived, regardless of history
	assert.Empty(t, schedule.CycleStartDates(s, history, schedule.Day{}))
}

func TestCycleStartDates_BoundaryAtEveryFourthSession(t *testing.T) {
	// GIVEN: 9 weekly counted sessions from the anchor (4 per cycle)
	s := fourWeekStudent()
	history := weeklyHistory(s, 9)

	// WHEN: Nothing has been billed yet
	dates := schedule.CycleStartDates(s, history, schedule.Day{})

	// THEN: The 5th and 9th sessions start cycles 2 and 3
	require.Len(t, dates, 2)
	assert.True(t, dates[0].Equal(s.AnchorDate.AddDays(28)))
	assert.True(t, dates[1].Equal(s.AnchorDate.AddDays(56)))
}

func TestCycleStartDates_BilledBoundariesNeverPromptAgain(t *testing.T) {
	s := fourWeekStudent()
	history := weeklyHistory(s, 9)

	// WHEN: The first boundary is already covered by a charge
	latestCharge := s.AnchorDate.AddDays(28)
	dates := schedule.CycleStartDates(s, history, latestCharge)

	// THEN: Only the later boundary remains
	require.Len(t, dates, 1)
	assert.True(t, dates[0].Equal(s.AnchorDate.AddDays(56)))

	// AND: LastBilledDate has the same suppressing effect
	s.LastBilledDate = s.AnchorDate.AddDays(28)
	dates = schedule.CycleStartDates(s, history, schedule.Day{})
	require.Len(t, dates, 1)
	assert.True(t, dates[0].Equal(s.AnchorDate.AddDays(56)))
}

func TestCycleStartDates_BothTracksCollapseToEarliest(t *testing.T) {
	// GIVEN: A student on both tracks with different cycle lengths
	s := fourWeekStudent()
	s.Curriculum = []schedule.WeekPlan{
		{Week: 1, MasterCount: 1, VocalCount: 1},
		{Week: 2, MasterCount: 1},
		{Week: 3, MasterCount: 1},
		{Week: 4, MasterCount: 1},
	}

	var history []schedule.ScheduleEvent
	history = append(history, weeklyHistory(s, 9)...)
	// Vocal requires 1 per cycle, so every vocal session past the first
	// starts a new vocal cycle.
	for i := 0; i < 3; i++ {
		history = append(history, countedEvent(
			"voc-"+string(rune('a'+i)), s.ID, schedule.TrackVocal,
			s.AnchorDate.AddDays(3+7*i),
		))
	}

	// WHEN: Both tracks have unbilled boundaries
	dates := schedule.CycleStartDates(s, history, schedule.Day{})

	// THEN: One renewal prompt, at the earliest boundary overall
	require.Len(t, dates, 1)
	assert.True(t, dates[0].Equal(s.AnchorDate.AddDays(10)), "got %s", dates[0])
}

func TestCycleStartDates_UncountedStatusesDoNotAdvance(t *testing.T) {
	s := fourWeekStudent()
	history := weeklyHistory(s, 5)
	// Turn the 4th session into a reschedule: only 4 counted remain,
	// so the lone boundary moves to what is now the 5th counted slot.
	history[3].Status = schedule.StatusReschedule

	dates := schedule.CycleStartDates(s, history, schedule.Day{})
	assert.Empty(t, dates, "4 counted sessions complete cycle 1 but no 5th starts cycle 2")
}

// =============================================================================
// CYCLE INDEX OF AN EVENT
// =============================================================================

func TestCycleIndexOf(t *testing.T) {
	s := fourWeekStudent()
	history := weeklyHistory(s, 9)

	pos, ok := schedule.CycleIndexOf(s, history, history[0].ID)
	require.True(t, ok)
	assert.Equal(t, 0, pos.Index)
	assert.Equal(t, "cycle 1", pos.Label)

	pos, ok = schedule.CycleIndexOf(s, history, history[4].ID)
	require.True(t, ok)
	assert.Equal(t, 1, pos.Index)
	assert.Equal(t, "cycle 2", pos.Label)

	_, ok = schedule.CycleIndexOf(s, history, "no-such-event")
	assert.False(t, ok)
}

// =============================================================================
// COUNTED HISTORY
// =============================================================================

func TestCountedHistory_FiltersAndSorts(t *testing.T) {
	s := fourWeekStudent()

	preAnchor := countedEvent("pre", s.ID, schedule.TrackMaster, s.AnchorDate.AddDays(-7))
	ghost := countedEvent("ghost", s.ID, schedule.TrackMaster, s.AnchorDate)
	ghost.Ghost = true
	template := schedule.ScheduleEvent{
		ID: "tpl", Track: schedule.TrackMaster, StudentID: s.ID,
		Recurring: true, DayOfWeek: time.Monday,
		RecurringStartDate: s.AnchorDate, Status: schedule.StatusCompleted,
	}
	otherTrack := countedEvent("vocal", s.ID, schedule.TrackVocal, s.AnchorDate)
	later := countedEvent("later", s.ID, schedule.TrackMaster, s.AnchorDate.AddDays(7))
	earlier := countedEvent("earlier", s.ID, schedule.TrackMaster, s.AnchorDate)

	counted := schedule.CountedHistory(s,
		[]schedule.ScheduleEvent{preAnchor, ghost, template, otherTrack, later, earlier},
		schedule.TrackMaster)

	require.Len(t, counted, 2)
	assert.Equal(t, "earlier", counted[0].ID)
	assert.Equal(t, "later", counted[1].ID)
}
