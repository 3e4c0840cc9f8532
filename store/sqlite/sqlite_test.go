package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/lesson-engine/billing"
	"github.com/warp/lesson-engine/schedule"
	"github.com/warp/lesson-engine/store/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func day(y int, m time.Month, d int) schedule.Day {
	return schedule.NewDay(y, m, d)
}

// =============================================================================
// EVENTS
// =============================================================================

func TestEvents_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	adhoc := schedule.ScheduleEvent{
		ID:          "ev-1",
		Track:       schedule.TrackMaster,
		Date:        day(2025, time.March, 5),
		Time:        schedule.NewClockTime(14, 0),
		StudentID:   "stu-1",
		StudentName: "Mina",
		Category:    schedule.CategoryRegular,
		Status:      schedule.StatusCompleted,
	}
	tpl := schedule.ScheduleEvent{
		ID:                 "tpl-1",
		Track:              schedule.TrackVocal,
		DayOfWeek:          time.Friday,
		Time:               schedule.NewClockTime(16, 30),
		StudentID:          "stu-2",
		StudentName:        "Jun",
		Category:           schedule.CategoryRegular,
		Recurring:          true,
		RecurringStartDate: day(2025, time.January, 6),
	}
	require.NoError(t, store.SaveEvent(ctx, adhoc))
	require.NoError(t, store.SaveEvent(ctx, tpl))

	got, err := store.GetEvent(ctx, "tpl-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Recurring)
	assert.Equal(t, time.Friday, got.DayOfWeek)
	assert.True(t, got.RecurringStartDate.Equal(day(2025, time.January, 6)))
	assert.True(t, got.Date.IsZero())

	// Filters: concrete vs template
	concrete, err := store.ListEvents(ctx, schedule.EventFilter{ConcreteOnly: true})
	require.NoError(t, err)
	require.Len(t, concrete, 1)
	assert.Equal(t, "ev-1", concrete[0].ID)

	templates, err := store.ListEvents(ctx, schedule.EventFilter{TemplateOnly: true})
	require.NoError(t, err)
	require.Len(t, templates, 1)
	assert.Equal(t, "tpl-1", templates[0].ID)
}

func TestEvents_UpsertAndDelete(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	ev := schedule.ScheduleEvent{
		ID:       "ev-1",
		Track:    schedule.TrackMaster,
		Date:     day(2025, time.March, 5),
		Time:     schedule.NewClockTime(14, 0),
		Category: schedule.CategoryRegular,
	}
	require.NoError(t, store.SaveEvent(ctx, ev))

	// Saving the same id moves the event
	ev.Date = day(2025, time.March, 6)
	ev.Status = schedule.StatusLate
	require.NoError(t, store.SaveEvent(ctx, ev))

	got, err := store.GetEvent(ctx, "ev-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Date.Equal(day(2025, time.March, 6)))
	assert.Equal(t, schedule.StatusLate, got.Status)

	require.NoError(t, store.DeleteEvent(ctx, "ev-1"))
	got, err = store.GetEvent(ctx, "ev-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	err = store.DeleteEvent(ctx, "ev-1")
	assert.ErrorIs(t, err, schedule.ErrNotFound)
}

// =============================================================================
// CANCELLATIONS
// =============================================================================

func TestCancellations_InsertOnlyAndDeduplicated(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	c := schedule.CancellationOverride{
		Date:      day(2025, time.March, 5),
		Time:      schedule.NewClockTime(14, 0),
		StudentID: "stu-1",
	}
	require.NoError(t, store.AddCancellation(ctx, c))
	require.NoError(t, store.AddCancellation(ctx, c), "re-skipping the same instance is a no-op")

	got, err := store.ListCancellations(ctx, schedule.Day{}, schedule.Day{})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	// Range filtering
	got, err = store.ListCancellations(ctx, day(2025, time.April, 1), schedule.Day{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

// =============================================================================
// STUDENTS
// =============================================================================

func TestStudents_RoundTripWithCurriculumAndRates(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	st := schedule.Student{
		ID:         "stu-1",
		Name:       "Mina",
		Active:     true,
		Monthly:    true,
		AnchorDate: day(2025, time.January, 6),
		Curriculum: []schedule.WeekPlan{
			{Week: 1, MasterCount: 2, VocalCount: 1},
			{Week: 2, Vocal30Count: 1},
		},
		Rates: schedule.Rates{
			Master: decimal.RequireFromString("70000"),
			Vocal:  decimal.RequireFromString("55000"),
		},
	}
	require.NoError(t, store.SaveStudent(ctx, st))

	got, err := store.GetStudent(ctx, "stu-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 2, got.PlanFor(1).MasterCount)
	assert.Equal(t, 1, got.PlanFor(2).Vocal30Count)
	assert.True(t, got.Rates.Master.Equal(decimal.RequireFromString("70000")))
	assert.True(t, got.AnchorDate.Equal(day(2025, time.January, 6)))

	inactive := schedule.Student{ID: "stu-2", Name: "Jun", Active: false}
	require.NoError(t, store.SaveStudent(ctx, inactive))

	active, err := store.ListStudents(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "stu-1", active[0].ID)
}

// =============================================================================
// LEDGERS
// =============================================================================

func TestLedger_SaveReplacesAtomically(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	var ledger billing.Ledger
	_, err := ledger.AddCharge(day(2025, time.April, 1), decimal.RequireFromString("120"), "april")
	require.NoError(t, err)
	_, err = ledger.RequestCycleBilling(day(2025, time.May, 10), decimal.RequireFromString("480"), "cycle")
	require.NoError(t, err)
	require.NoError(t, store.SaveLedger(ctx, "stu-1", ledger))

	got, err := store.LoadLedger(ctx, "stu-1")
	require.NoError(t, err)
	require.Len(t, got.Charges, 2)
	assert.Equal(t, "april", got.Charges[0].Memo, "load preserves target-date order")
	assert.Equal(t, billing.KindCycle, got.Charges[1].Kind)
	assert.Equal(t, "2025-05", got.Charges[1].YearMonth)
	assert.True(t, got.Charges[1].TargetDate.Equal(day(2025, time.May, 1)))

	// Saving a pruned ledger drops the removed rows
	got.PruneOnScheduleWrite(day(2025, time.April, 15))
	require.NoError(t, store.SaveLedger(ctx, "stu-1", got))

	got, err = store.LoadLedger(ctx, "stu-1")
	require.NoError(t, err)
	require.Len(t, got.Charges, 1)
	assert.Equal(t, billing.KindCycle, got.Charges[0].Kind)

	// Ledgers are per student
	other, err := store.LoadLedger(ctx, "stu-2")
	require.NoError(t, err)
	assert.True(t, other.Settled())
}
