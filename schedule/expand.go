/*
expand.go - Recurrence expansion over arbitrary date ranges

PURPOSE:
  WeekEvents (resolver.go) handles a single week by weekday projection.
  Multi-week views (month view, history backfill) need recurring templates
  expanded into concrete occurrences across a range. The expansion is done
  with rrule (WEEKLY rules anchored at the template's start week), then
  every candidate slot is resolved through the normal precedence rules so
  ad-hoc overrides and cancellations behave identically at any range size.

SAFETY:
  Expansion is capped per template so a malformed range can never produce
  an unbounded occurrence list.
*/
package schedule

import (
	"sort"
	"time"

	"github.com/teambition/rrule-go"
)

const maxOccurrencesPerTemplate = 1000

// weekdayRule maps time.Weekday (Sunday-indexed) onto rrule weekdays.
var weekdayRule = [7]rrule.Weekday{
	rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA,
}

// Occurrences returns the concrete dates a recurring template lands on
// within [from, to], inclusive. Non-recurring events yield their own date
// when it falls inside the range.
func Occurrences(ev ScheduleEvent, from, to Day) []Day {
	if to.Before(from) {
		return nil
	}
	if !ev.Recurring {
		if ev.Date.AfterOrEqual(from) && ev.Date.BeforeOrEqual(to) {
			return []Day{ev.Date}
		}
		return nil
	}

	// The template applies from its start week, not its start date: an
	// occurrence earlier in that same week is still valid.
	start := from
	if !ev.RecurringStartDate.IsZero() && WeekStart(ev.RecurringStartDate).After(WeekStart(from)) {
		start = WeekStart(ev.RecurringStartDate)
	}
	first := ProjectWeekday(start, ev.DayOfWeek)
	if first.Before(start) {
		first = first.AddDays(7)
	}

	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Dtstart:   time.Date(first.Year(), first.Month(), first.Time.Day(), ev.Time.Hour, ev.Time.Minute, 0, 0, time.UTC),
		Byweekday: []rrule.Weekday{weekdayRule[int(ev.DayOfWeek)]},
		Count:     maxOccurrencesPerTemplate,
	})
	if err != nil {
		return nil
	}

	var days []Day
	for _, t := range rule.Between(from.Time.Add(-time.Second), to.AddDays(1).Time, false) {
		days = append(days, DayOf(t))
	}
	return days
}

// RangeEvents resolves every slot in [from, to] for one track, applying
// the full precedence rules to each candidate slot. Result is sorted by
// date then time.
func RangeEvents(from, to Day, track Track, events []ScheduleEvent, cancellations []CancellationOverride) []ScheduleEvent {
	slots := make(map[SlotRef]bool)
	for _, ev := range events {
		if ev.Ghost || ev.Track != track {
			continue
		}
		for _, d := range Occurrences(ev, from, to) {
			slots[SlotRef{Date: d, Time: ev.Time, Track: track}] = true
		}
	}

	var resolved []ScheduleEvent
	for slot := range slots {
		resolved = append(resolved, EffectiveEvents(slot, events, cancellations)...)
	}

	sort.SliceStable(resolved, func(i, j int) bool {
		if !resolved[i].Date.Equal(resolved[j].Date) {
			return resolved[i].Date.Before(resolved[j].Date)
		}
		if !resolved[i].Time.Equal(resolved[j].Time) {
			return resolved[i].Time.Before(resolved[j].Time)
		}
		return resolved[i].ID < resolved[j].ID
	})
	return resolved
}
