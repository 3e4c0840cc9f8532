/*
resolver.go - Effective-schedule merge

PURPOSE:
  Given a target slot (date, time, track) and the full set of ad-hoc
  events, recurring templates, and cancellation overrides, produce the
  events actually in effect.

PRECEDENCE (the invariant every other component relies on):
  1. Ad-hoc events at the exact slot always survive.
  2. Recurring templates survive only when their start week has begun and
     no cancellation suppresses them for that exact week.
  3. Any ad-hoc event at the slot suppresses every recurring template at
     the slot, regardless of student - an ad-hoc entry is an explicit edit
     superseding the template for that single week.
  4. Nothing suppresses an ad-hoc event.

  The result never contains both an ad-hoc and a recurring entry for the
  identical slot, independent of iteration order.

SEE ALSO:
  - expand.go: week-level expansion of recurring templates
  - predict.go: layer of speculative events on top of resolved ones
*/
package schedule

import "sort"

// =============================================================================
// SLOT RESOLUTION
// =============================================================================

// EffectiveEvents resolves one slot. The returned slice is the ad-hoc
// entries plus surviving non-overridden recurring entries, de-duplicated
// by event id.
func EffectiveEvents(slot SlotRef, events []ScheduleEvent, cancellations []CancellationOverride) []ScheduleEvent {
	var adhoc, recurring []ScheduleEvent
	seen := make(map[string]bool)

	for _, ev := range events {
		if ev.Ghost || ev.Track != slot.Track || !ev.Time.Equal(slot.Time) {
			continue
		}
		if !ev.OccursOn(slot.Date) {
			continue
		}
		if ev.ID != "" && seen[ev.ID] {
			continue
		}
		seen[ev.ID] = true

		if ev.Recurring {
			if cancelled(ev, slot.Date, cancellations) {
				continue
			}
			recurring = append(recurring, materialize(ev, slot.Date))
		} else {
			adhoc = append(adhoc, ev)
		}
	}

	// Ad-hoc claims the slot outright; templates yield for that week only.
	if len(adhoc) > 0 {
		return adhoc
	}
	return recurring
}

func cancelled(ev ScheduleEvent, date Day, cancellations []CancellationOverride) bool {
	for _, c := range cancellations {
		if c.Matches(ev, date) {
			return true
		}
	}
	return false
}

// materialize pins a recurring template to the concrete date it resolved
// on, so downstream consumers see a dated occurrence.
func materialize(ev ScheduleEvent, date Day) ScheduleEvent {
	ev.Date = date
	return ev
}

// =============================================================================
// WEEK RESOLUTION
// =============================================================================

// WeekEvents resolves every slot of the week starting at weekStart for one
// track, sorted by date then time. Candidate slots are taken from the
// event set itself: ad-hoc dates inside the week plus weekday projections
// of recurring templates.
func WeekEvents(weekStart Day, track Track, events []ScheduleEvent, cancellations []CancellationOverride) []ScheduleEvent {
	start := WeekStart(weekStart)
	end := start.AddDays(6)

	slots := make(map[SlotRef]bool)
	for _, ev := range events {
		if ev.Ghost || ev.Track != track {
			continue
		}
		var date Day
		if ev.Recurring {
			date = ProjectWeekday(start, ev.DayOfWeek)
		} else {
			date = ev.Date
		}
		if date.Before(start) || date.After(end) {
			continue
		}
		slots[SlotRef{Date: date, Time: ev.Time, Track: track}] = true
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

// =============================================================================
// ROSTER DERIVATION
// =============================================================================

// BookedNames returns the display names considered booked for the week on
// a track. Special (make-up/extra) bookings are excluded so they never
// block a student's regular slot from being offered again.
func BookedNames(weekStart Day, track Track, events []ScheduleEvent, cancellations []CancellationOverride) map[string]bool {
	booked := make(map[string]bool)
	for _, ev := range WeekEvents(weekStart, track, events, cancellations) {
		if ev.StudentName == "" || !ev.Category.BlocksRoster() {
			continue
		}
		booked[ev.StudentName] = true
	}
	return booked
}

// AvailableStudents returns the active students not yet booked for the
// week on a track - the candidate list offered when creating a new event.
func AvailableStudents(weekStart Day, track Track, students []Student, events []ScheduleEvent, cancellations []CancellationOverride) []Student {
	booked := BookedNames(weekStart, track, events, cancellations)
	var avail []Student
	for _, s := range students {
		if !s.Active || booked[s.Name] {
			continue
		}
		avail = append(avail, s)
	}
	return avail
}
