/*
rotation.go - Curriculum rotation and billing-cycle position math

PURPOSE:
  Maps calendar time to a student's position in the repeating 4-week
  curriculum, and maps completed-session history to repeating billing-cycle
  boundaries, independently per track.

KEY FUNCTIONS:
  RotationWeek:    which of the four curriculum weeks a date falls into
  CycleStartDates: dates at which the student crossed into a new billing
                   cycle and should be prompted to re-register
  CycleIndexOf:    which repeating cycle a historical event belongs to

FAILURE SEMANTICS:
  Pure functions, never an error return. Missing or zero configuration
  yields neutral defaults: week 1, nil slice, not-found.

SEE ALSO:
  - types.go: Student, WeekPlan, RequiredPerCycle
  - billing/reconcile.go: turns cycle boundaries into charges
*/
package schedule

import (
	"fmt"
	"sort"
)

// maxCycleLookup caps how many cycle boundaries are ever derived from one
// student's history.
const maxCycleLookup = 100

// =============================================================================
// ROTATION WEEK
// =============================================================================

// RotationWeek returns the 1..4 curriculum week the target date falls
// into, measured from the anchor date. Dates before the anchor map to
// week 1: the rotation has simply not started yet.
func RotationWeek(anchor, target Day) int {
	if target.Before(anchor) {
		return 1
	}
	return (DaysBetween(anchor, target)/7)%4 + 1
}

// =============================================================================
// CYCLE BOUNDARIES
// =============================================================================

// CycleStartDates returns the billing-cycle boundary dates derivable from
// the student's completed-session history. latestCharge is the target date
// of the latest charge already on the student's ledger (zero if none);
// boundaries are exposed only when strictly later than the maximum of
// anchor date, last-billed date, and that charge date, so a boundary that
// is already billed never prompts again.
//
// Each track is walked independently: every RequiredPerCycle(track)-th
// counted session starts a new cycle. When both tracks survive the filter,
// only the earliest date overall is exposed - the two tracks can have
// different cycle lengths, and one renewal prompt must cover both.
func CycleStartDates(s Student, history []ScheduleEvent, latestCharge Day) []Day {
	cutoff := MaxDay(s.AnchorDate, s.LastBilledDate, latestCharge)

	var perTrack [][]Day
	for _, track := range Tracks() {
		required := s.RequiredPerCycle(track)
		if required == 0 {
			continue
		}
		counted := CountedHistory(s, history, track)
		var dates []Day
		for i := 1; i <= maxCycleLookup; i++ {
			pos := i * required
			if pos >= len(counted) {
				break
			}
			d := counted[pos].Date
			if d.After(cutoff) {
				dates = append(dates, d)
			}
		}
		if len(dates) > 0 {
			perTrack = append(perTrack, dates)
		}
	}

	if len(perTrack) == 0 {
		return nil
	}
	if len(perTrack) == 1 {
		return perTrack[0]
	}

	// Both tracks due: collapse to the single earliest boundary.
	earliest := perTrack[0][0]
	for _, dates := range perTrack[1:] {
		if dates[0].Before(earliest) {
			earliest = dates[0]
		}
	}
	return []Day{earliest}
}

// =============================================================================
// CYCLE POSITION OF AN EVENT
// =============================================================================

// CyclePosition reports which repeating cycle an event belongs to,
// purely for display and grouping.
type CyclePosition struct {
	Index int // 0-based cycle index
	Label string
}

// CycleIndexOf locates eventID among the student's counted sessions on the
// event's own track and reports which cycle it falls in. The second return
// is false when the track requires zero sessions or the event is absent
// from the counted history.
func CycleIndexOf(s Student, history []ScheduleEvent, eventID string) (CyclePosition, bool) {
	for _, track := range Tracks() {
		required := s.RequiredPerCycle(track)
		if required == 0 {
			continue
		}
		counted := CountedHistory(s, history, track)
		for pos, ev := range counted {
			if ev.ID != eventID {
				continue
			}
			index := pos / required
			return CyclePosition{
				Index: index,
				Label: fmt.Sprintf("cycle %d", index+1),
			}, true
		}
	}
	return CyclePosition{}, false
}

// =============================================================================
// COUNTED HISTORY
// =============================================================================

// CountedHistory returns the student's counted (completed/late/absent)
// concrete events on a track since the anchor date, sorted
// chronologically. Recurring templates carry no date and never count.
func CountedHistory(s Student, history []ScheduleEvent, track Track) []ScheduleEvent {
	var counted []ScheduleEvent
	for _, ev := range history {
		if ev.Recurring || ev.Ghost {
			continue
		}
		if ev.StudentID != s.ID || ev.Track != track {
			continue
		}
		if !ev.Status.Counted() {
			continue
		}
		if ev.Date.Before(s.AnchorDate) {
			continue
		}
		counted = append(counted, ev)
	}
	sort.SliceStable(counted, func(i, j int) bool {
		if !counted[i].Date.Equal(counted[j].Date) {
			return counted[i].Date.Before(counted[j].Date)
		}
		return counted[i].Time.Before(counted[j].Time)
	})
	return counted
}
