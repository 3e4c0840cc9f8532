package schedule

import (
	"fmt"
	"time"
)

// =============================================================================
// DAY - Date-only point in time (all schedule math is day-granular)
// =============================================================================

// Day is a calendar date with no time component. All comparisons and
// arithmetic normalize to midnight UTC so two Days built from different
// wall-clock times still compare equal when they name the same date.
type Day struct {
	Time time.Time
}

// Constructors
func NewDay(year int, month time.Month, day int) Day {
	return Day{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func DayOf(t time.Time) Day {
	return NewDay(t.Year(), t.Month(), t.Day())
}

func Today() Day {
	return DayOf(time.Now())
}

// ParseDay parses an ISO date (2006-01-02).
func ParseDay(s string) (Day, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Day{}, err
	}
	return DayOf(t), nil
}

// Comparison
func (d Day) Before(other Day) bool        { return d.normalize().Before(other.normalize()) }
func (d Day) Equal(other Day) bool         { return d.normalize().Equal(other.normalize()) }
func (d Day) After(other Day) bool         { return d.normalize().After(other.normalize()) }
func (d Day) BeforeOrEqual(other Day) bool { return d.Before(other) || d.Equal(other) }
func (d Day) AfterOrEqual(other Day) bool  { return d.After(other) || d.Equal(other) }
func (d Day) IsZero() bool                 { return d.Time.IsZero() }

// Arithmetic and properties
func (d Day) AddDays(n int) Day     { return Day{Time: d.normalize().AddDate(0, 0, n)} }
func (d Day) Weekday() time.Weekday { return d.normalize().Weekday() }
func (d Day) Year() int             { return d.Time.Year() }
func (d Day) Month() time.Month     { return d.Time.Month() }
func (d Day) String() string        { return d.normalize().Format("2006-01-02") }
func (d Day) YearMonth() string     { return d.normalize().Format("2006-01") }

func (d Day) normalize() time.Time {
	return time.Date(d.Time.Year(), d.Time.Month(), d.Time.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the signed number of whole days from a to b.
func DaysBetween(a, b Day) int {
	return int(b.normalize().Sub(a.normalize()).Hours() / 24)
}

// MaxDay returns the latest of the given days, ignoring zero values.
func MaxDay(days ...Day) Day {
	var max Day
	for _, d := range days {
		if d.IsZero() {
			continue
		}
		if max.IsZero() || d.After(max) {
			max = d
		}
	}
	return max
}

// =============================================================================
// WEEK HELPERS - Weeks start on Monday
// =============================================================================

// WeekStart returns the Monday of the week containing d.
func WeekStart(d Day) Day {
	offset := int(d.Weekday()) - int(time.Monday)
	if offset < 0 {
		offset += 7 // Sunday belongs to the preceding Monday's week
	}
	return d.AddDays(-offset)
}

// WeekEnd returns the Sunday of the week containing d.
func WeekEnd(d Day) Day {
	return WeekStart(d).AddDays(6)
}

// SameWeek reports whether a and b fall into the same Monday-anchored week.
func SameWeek(a, b Day) bool {
	return WeekStart(a).Equal(WeekStart(b))
}

// ProjectWeekday returns the date within the week starting at weekStart
// that falls on the given weekday.
func ProjectWeekday(weekStart Day, wd time.Weekday) Day {
	offset := int(wd) - int(time.Monday)
	if offset < 0 {
		offset += 7
	}
	return WeekStart(weekStart).AddDays(offset)
}

// =============================================================================
// CLOCK TIME - Hour:minute slot within a day
// =============================================================================

// ClockTime is an hour:minute pair identifying a lesson slot within a day.
type ClockTime struct {
	Hour   int
	Minute int
}

func NewClockTime(hour, minute int) ClockTime {
	return ClockTime{Hour: hour, Minute: minute}
}

// ParseClockTime parses "15:04".
func ParseClockTime(s string) (ClockTime, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return ClockTime{}, err
	}
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (c ClockTime) Equal(other ClockTime) bool {
	return c.Hour == other.Hour && c.Minute == other.Minute
}

func (c ClockTime) Before(other ClockTime) bool {
	if c.Hour != other.Hour {
		return c.Hour < other.Hour
	}
	return c.Minute < other.Minute
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}
