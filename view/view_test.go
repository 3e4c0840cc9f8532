package view_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/lesson-engine/schedule"
	"github.com/warp/lesson-engine/store/memory"
	"github.com/warp/lesson-engine/view"
)

func day(y int, m time.Month, d int) schedule.Day {
	return schedule.NewDay(y, m, d)
}

// =============================================================================
// SNAPSHOT QUERIES
// =============================================================================

func TestSnapshot_WeekMergesGhosts(t *testing.T) {
	// GIVEN: A student with history but no booking for the coming week
	s := schedule.Student{
		ID: "stu-1", Name: "Mina", Active: true,
		AnchorDate: day(2025, time.January, 6),
		Curriculum: []schedule.WeekPlan{{Week: 1, MasterCount: 1}, {Week: 2, MasterCount: 1},
			{Week: 3, MasterCount: 1}, {Week: 4, MasterCount: 1}},
	}
	hist := schedule.ScheduleEvent{
		ID: "hist", Track: schedule.TrackMaster,
		Date: day(2025, time.February, 26), Time: schedule.NewClockTime(14, 0),
		StudentID: "stu-1", Category: schedule.CategoryRegular,
		Status: schedule.StatusCompleted,
	}
	snap := view.Snapshot{
		Events:   []schedule.ScheduleEvent{hist},
		Students: []schedule.Student{s},
	}

	weekStart := day(2025, time.March, 3)

	// WHEN: Viewed before the week starts
	got := snap.Week(weekStart, weekStart, schedule.TrackMaster)

	// THEN: The ghost shows alongside resolved events
	require.Len(t, got, 1)
	assert.True(t, got[0].Ghost)

	// WHEN: Viewed after the Monday passed
	got = snap.Week(weekStart.AddDays(2), weekStart, schedule.TrackMaster)
	assert.Empty(t, got)
}

// =============================================================================
// PIPELINE
// =============================================================================

func TestPipeline_ReloadCapturesStoreState(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.SaveStudent(ctx, schedule.Student{ID: "stu-1", Name: "Mina", Active: true}))

	p := view.NewPipeline(store)
	require.NoError(t, p.Reload(ctx))

	snap := p.Current()
	require.Len(t, snap.Students, 1)
	assert.False(t, snap.TakenAt.IsZero())
}

func TestPipeline_RunFollowsChangeFeed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := memory.New()
	p := view.NewPipeline(store)

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, store) }()

	// Wait for the initial (empty) snapshot
	require.Eventually(t, func() bool {
		return !p.Current().TakenAt.IsZero()
	}, time.Second, 5*time.Millisecond)

	// WHEN: An event is written after the pipeline started
	ev := schedule.ScheduleEvent{
		ID: "ev-1", Track: schedule.TrackMaster,
		Date: day(2025, time.March, 5), Time: schedule.NewClockTime(14, 0),
		StudentID: "stu-1", Category: schedule.CategoryRegular,
	}
	require.NoError(t, store.SaveEvent(ctx, ev))

	// THEN: The snapshot catches up without an explicit reload
	require.Eventually(t, func() bool {
		return len(p.Current().Events) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
