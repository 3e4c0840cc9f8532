/*
Package schedule provides the scheduling core for the lesson studio.

PURPOSE:
  This package contains the pure domain types and algorithms for the weekly
  lesson timetable: merging ad-hoc events, recurring templates, and
  per-week cancellations into one effective schedule, predicting
  not-yet-booked slots for the upcoming week, and mapping calendar time to
  a student's position in the repeating 4-week curriculum.

KEY CONCEPTS IN THIS FILE (types.go):
  - Track: one of the two independently scheduled lesson tracks
  - ScheduleEvent: a single booked (or recurring template) slot
  - CancellationOverride: one-week suppression of a recurring template
  - Student: configuration driving rotation and billing math
  - WeekPlan: sessions required per rotation week, per track

DESIGN PRINCIPLES:
  1. Purity: every function here is deterministic over its inputs
  2. Closed variants: statuses, categories, and tracks are typed constants,
     switched exhaustively, so an unknown value is a compile-time smell
  3. Precision: rates and amounts use decimal.Decimal, never float64

SEE ALSO:
  - rotation.go: curriculum and billing-cycle position math
  - resolver.go: effective-schedule merge precedence
  - predict.go: speculative events for the unstarted week
*/
package schedule

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// TRACK - The two independent lesson tracks
// =============================================================================

type Track string

const (
	TrackMaster Track = "master"
	TrackVocal  Track = "vocal"
)

// Tracks lists every track, in a stable order.
func Tracks() []Track { return []Track{TrackMaster, TrackVocal} }

func (t Track) Valid() bool {
	switch t {
	case TrackMaster, TrackVocal:
		return true
	}
	return false
}

// =============================================================================
// EVENT STATUS / CATEGORY - Closed variant sets
// =============================================================================

// EventStatus is the attendance outcome recorded on an event.
type EventStatus string

const (
	StatusUnset              EventStatus = ""
	StatusCompleted          EventStatus = "completed"
	StatusLate               EventStatus = "late"
	StatusAbsent             EventStatus = "absent"
	StatusReschedule         EventStatus = "reschedule"
	StatusRescheduleAssigned EventStatus = "reschedule_assigned"
)

// Counted reports whether the status counts as a consumed session for
// rotation and cycle math. Absences still consume the slot.
func (s EventStatus) Counted() bool {
	switch s {
	case StatusCompleted, StatusLate, StatusAbsent:
		return true
	case StatusUnset, StatusReschedule, StatusRescheduleAssigned:
		return false
	}
	return false
}

// EventCategory classifies how a slot was booked.
type EventCategory string

const (
	CategoryRegular    EventCategory = "regular"
	CategorySpecial    EventCategory = "special"    // make-up or extra slot
	CategoryCounseling EventCategory = "counseling" // consult, counts as history
	CategoryTrial      EventCategory = "trial"
)

// BlocksRoster reports whether an event of this category marks the student
// as booked for the week. Special bookings never block the regular slot.
func (c EventCategory) BlocksRoster() bool {
	switch c {
	case CategorySpecial:
		return false
	case CategoryRegular, CategoryCounseling, CategoryTrial:
		return true
	}
	return true
}

// =============================================================================
// SCHEDULE EVENT
// =============================================================================

// ScheduleEvent is one timetable entry. An ad-hoc event carries a concrete
// Date; a recurring template carries DayOfWeek plus RecurringStartDate and
// represents every future week until cancelled per-instance. One document
// is never duplicated per week.
type ScheduleEvent struct {
	ID          string
	Track       Track
	Date        Day          // set iff !Recurring
	DayOfWeek   time.Weekday // set iff Recurring
	Time        ClockTime
	StudentID   string
	StudentName string
	Category    EventCategory
	Status      EventStatus

	Recurring          bool
	RecurringStartDate Day // first calendar week the template applies

	// RelatedEventID links a reschedule/absence to its make-up event.
	RelatedEventID string

	// Ghost marks a synthesized prediction. Ghost events are advisory
	// only and are never persisted.
	Ghost bool
}

// OccursOn reports whether the event lands on the given date: exact match
// for ad-hoc events, weekday match (subject to the template start week)
// for recurring ones. Cancellations are the resolver's concern.
func (e ScheduleEvent) OccursOn(date Day) bool {
	if !e.Recurring {
		return e.Date.Equal(date)
	}
	if e.DayOfWeek != date.Weekday() {
		return false
	}
	return e.RecurringStartDate.IsZero() || e.RecurringStartDate.BeforeOrEqual(WeekEnd(date))
}

// =============================================================================
// CANCELLATION OVERRIDE
// =============================================================================

// CancellationOverride suppresses one instance of a recurring template for
// exactly one calendar week. Overrides are created, never updated.
type CancellationOverride struct {
	Date      Day
	Time      ClockTime
	StudentID string
}

// Matches reports whether the override suppresses the given recurring
// event on the given date.
func (c CancellationOverride) Matches(e ScheduleEvent, date Day) bool {
	return c.Date.Equal(date) && c.Time.Equal(e.Time) && c.StudentID == e.StudentID
}

// =============================================================================
// SLOT REFERENCE
// =============================================================================

// SlotRef names a single resolvable slot: one date, one time, one track.
type SlotRef struct {
	Date  Day
	Time  ClockTime
	Track Track
}

// =============================================================================
// STUDENT
// =============================================================================

// WeekPlan is the session requirement for one of the four rotation weeks.
type WeekPlan struct {
	Week         int // 1..4
	MasterCount  int
	VocalCount   int
	Vocal30Count int
}

// TrackCount returns the sessions required on a track for this week.
// The 30-minute vocal variant counts toward the vocal track.
func (w WeekPlan) TrackCount(t Track) int {
	switch t {
	case TrackMaster:
		return w.MasterCount
	case TrackVocal:
		return w.VocalCount + w.Vocal30Count
	}
	return 0
}

// Rates holds the per-unit lesson rates for billing.
type Rates struct {
	Master  decimal.Decimal
	Vocal   decimal.Decimal
	Vocal30 decimal.Decimal
}

// Student is the aggregate all rotation and billing math hangs off.
// AnchorDate is the first lesson date and is immutable once set.
type Student struct {
	ID      string
	Name    string
	Active  bool
	Monthly bool
	Artist  bool

	AnchorDate     Day
	LastBilledDate Day

	Curriculum []WeekPlan // one entry per rotation week, weeks 1..4
	Rates      Rates

	// SessionCount is the artist-track completed-session tally.
	SessionCount int
}

// PlanFor returns the curriculum plan for a rotation week (1..4).
// A missing week yields the zero plan.
func (s Student) PlanFor(week int) WeekPlan {
	for _, p := range s.Curriculum {
		if p.Week == week {
			return p
		}
	}
	return WeekPlan{Week: week}
}

// RequiredPerCycle returns the total sessions a track requires across the
// whole 4-week curriculum. Zero means the track is not taken.
func (s Student) RequiredPerCycle(t Track) int {
	total := 0
	for _, p := range s.Curriculum {
		total += p.TrackCount(t)
	}
	return total
}
