/*
Package view maintains the derived timetable over the store's change feeds.

PURPOSE:
  The store pushes coarse change notifications (events, cancellations,
  students moved). Each notification produces a fresh immutable snapshot
  of all three feeds, and every derived view - effective schedule, week
  view with ghosts, available roster - is recomputed from scratch over
  that snapshot by the same pure pipeline. No incremental updates, so no
  incremental-update bugs: a new notification fully supersedes the
  previous computed view, last value wins.

CONCURRENCY:
  One goroutine consumes the feed. Readers get the current snapshot under
  a read lock; every query is pure over the snapshot it captured, so a
  query racing a reload simply answers from the superseded view.
*/
package view

import (
	"context"
	"sync"
	"time"

	"github.com/warp/lesson-engine/schedule"
)

// =============================================================================
// SNAPSHOT - Immutable state of all three feeds
// =============================================================================

// Snapshot is one immutable reading of the store. Queries never mutate it.
type Snapshot struct {
	Events        []schedule.ScheduleEvent
	Cancellations []schedule.CancellationOverride
	Students      []schedule.Student
	TakenAt       time.Time
}

// Week returns the resolved events for the week starting at weekStart on
// one track, with ghost predictions merged in when the week has not
// started as of now.
func (s Snapshot) Week(now, weekStart schedule.Day, track schedule.Track) []schedule.ScheduleEvent {
	resolved := schedule.WeekEvents(weekStart, track, s.Events, s.Cancellations)
	ghosts := schedule.Predict(now, weekStart, s.Students, s.Events, s.Cancellations, s.Events)
	for _, g := range ghosts {
		if g.Track == track {
			resolved = append(resolved, g)
		}
	}
	return resolved
}

// Effective resolves a single slot.
func (s Snapshot) Effective(slot schedule.SlotRef) []schedule.ScheduleEvent {
	return schedule.EffectiveEvents(slot, s.Events, s.Cancellations)
}

// Available returns the active students not booked for the week on the
// track.
func (s Snapshot) Available(weekStart schedule.Day, track schedule.Track) []schedule.Student {
	return schedule.AvailableStudents(weekStart, track, s.Students, s.Events, s.Cancellations)
}

// =============================================================================
// PIPELINE - Feed consumer
// =============================================================================

// Pipeline subscribes to the store's change feed and keeps the latest
// snapshot.
type Pipeline struct {
	store schedule.Store

	mu      sync.RWMutex
	current Snapshot
}

func NewPipeline(store schedule.Store) *Pipeline {
	return &Pipeline{store: store}
}

// Current returns the latest snapshot.
func (p *Pipeline) Current() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

func (p *Pipeline) replace(s Snapshot) {
	p.mu.Lock()
	p.current = s
	p.mu.Unlock()
}

// Reload reads all three feeds and swaps in a fresh snapshot.
func (p *Pipeline) Reload(ctx context.Context) error {
	events, err := p.store.ListEvents(ctx, schedule.EventFilter{})
	if err != nil {
		return err
	}
	cancellations, err := p.store.ListCancellations(ctx, schedule.Day{}, schedule.Day{})
	if err != nil {
		return err
	}
	students, err := p.store.ListStudents(ctx, false)
	if err != nil {
		return err
	}
	p.replace(Snapshot{
		Events:        events,
		Cancellations: cancellations,
		Students:      students,
		TakenAt:       time.Now(),
	})
	return nil
}

// Run consumes the change feed until ctx is done. Every notification
// triggers a full reload; a failed reload keeps the previous snapshot and
// waits for the next notification.
func (p *Pipeline) Run(ctx context.Context, w schedule.Watcher) error {
	changes, err := w.Watch(ctx)
	if err != nil {
		return err
	}
	if err := p.Reload(ctx); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-changes:
			if !ok {
				return nil
			}
			if err := p.Reload(ctx); err != nil && ctx.Err() != nil {
				return ctx.Err()
			}
		}
	}
}
