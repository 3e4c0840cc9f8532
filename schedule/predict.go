/*
predict.go - Speculative events for the unstarted week

PURPOSE:
  Before the current week has started, active students who owe sessions
  this rotation week but have nothing booked yet should still show up on
  the timetable as "expected" slots. This engine synthesizes those ghost
  events from each student's most recent history on the track.

RULES:
  - Disabled entirely once the week's Monday has passed local midnight.
    After that, silence from a student is exceptional and is handled
    manually, never auto-filled.
  - A student with no historical event on the track yields no prediction;
    cold starts are not guessed.
  - Ghosts are advisory only: never persisted, and dropped the instant a
    real event resolves for the student or the slot.
*/
package schedule

// Predict synthesizes ghost events for the week starting at weekStart,
// as seen from now. The week start is normalized to its Monday.
func Predict(now, weekStart Day, students []Student, events []ScheduleEvent, cancellations []CancellationOverride, history []ScheduleEvent) []ScheduleEvent {
	start := WeekStart(weekStart)
	if now.After(start) {
		return nil
	}

	var ghosts []ScheduleEvent
	for _, s := range students {
		if !s.Active {
			continue
		}
		rotWeek := RotationWeek(s.AnchorDate, start)
		plan := s.PlanFor(rotWeek)

		for _, track := range Tracks() {
			if plan.TrackCount(track) < 1 {
				continue
			}
			if hasResolvedEvent(s.ID, start, track, events, cancellations) {
				continue
			}
			last, ok := lastHistorical(s.ID, track, history)
			if !ok {
				continue
			}

			date := ProjectWeekday(start, last.Date.Weekday())
			slot := SlotRef{Date: date, Time: last.Time, Track: track}
			if len(EffectiveEvents(slot, events, cancellations)) > 0 {
				// A real event claims the slot; the ghost yields.
				continue
			}

			ghosts = append(ghosts, ScheduleEvent{
				Track:       track,
				Date:        date,
				Time:        last.Time,
				StudentID:   s.ID,
				StudentName: s.Name,
				Category:    last.Category,
				Status:      StatusUnset,
				Ghost:       true,
			})
		}
	}
	return ghosts
}

func hasResolvedEvent(studentID string, weekStart Day, track Track, events []ScheduleEvent, cancellations []CancellationOverride) bool {
	for _, ev := range WeekEvents(weekStart, track, events, cancellations) {
		if ev.StudentID == studentID {
			return true
		}
	}
	return false
}

// lastHistorical returns the student's most recent concrete completed (or
// counseling) event on the track.
func lastHistorical(studentID string, track Track, history []ScheduleEvent) (ScheduleEvent, bool) {
	var best ScheduleEvent
	found := false
	for _, ev := range history {
		if ev.Recurring || ev.Ghost || ev.StudentID != studentID || ev.Track != track {
			continue
		}
		if ev.Status != StatusCompleted && ev.Category != CategoryCounseling {
			continue
		}
		if !found || ev.Date.After(best.Date) {
			best = ev
			found = true
		}
	}
	return best, found
}
