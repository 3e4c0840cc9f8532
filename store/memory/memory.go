// Package memory provides an in-memory store for tests and dev.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/warp/lesson-engine/billing"
	"github.com/warp/lesson-engine/schedule"
)

// =============================================================================
// MEMORY STORE - Implements schedule.Store, billing.LedgerStore, Watcher
// =============================================================================

type Store struct {
	mu            sync.RWMutex
	events        map[string]schedule.ScheduleEvent
	cancellations []schedule.CancellationOverride
	students      map[string]schedule.Student
	ledgers       map[string]billing.Ledger

	subMu   sync.Mutex
	subs    map[int]chan schedule.Change
	nextSub int
}

func New() *Store {
	return &Store{
		events:   make(map[string]schedule.ScheduleEvent),
		students: make(map[string]schedule.Student),
		ledgers:  make(map[string]billing.Ledger),
		subs:     make(map[int]chan schedule.Change),
	}
}

// =============================================================================
// EVENTS
// =============================================================================

func (s *Store) ListEvents(_ context.Context, f schedule.EventFilter) ([]schedule.ScheduleEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []schedule.ScheduleEvent
	for _, ev := range s.events {
		if f.Matches(ev) {
			result = append(result, ev)
		}
	}
	return result, nil
}

func (s *Store) GetEvent(_ context.Context, id string) (*schedule.ScheduleEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ev, ok := s.events[id]
	if !ok {
		return nil, nil
	}
	return &ev, nil
}

func (s *Store) SaveEvent(_ context.Context, ev schedule.ScheduleEvent) error {
	s.mu.Lock()
	s.events[ev.ID] = ev
	s.mu.Unlock()
	s.notify(schedule.ChangeEvents)
	return nil
}

func (s *Store) DeleteEvent(_ context.Context, id string) error {
	s.mu.Lock()
	_, ok := s.events[id]
	delete(s.events, id)
	s.mu.Unlock()
	if !ok {
		return &schedule.NotFoundError{Kind: "event", ID: id}
	}
	s.notify(schedule.ChangeEvents)
	return nil
}

// =============================================================================
// CANCELLATIONS
// =============================================================================

func (s *Store) ListCancellations(_ context.Context, from, to schedule.Day) ([]schedule.CancellationOverride, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []schedule.CancellationOverride
	for _, c := range s.cancellations {
		if !from.IsZero() && c.Date.Before(from) {
			continue
		}
		if !to.IsZero() && c.Date.After(to) {
			continue
		}
		result = append(result, c)
	}
	return result, nil
}

func (s *Store) AddCancellation(_ context.Context, c schedule.CancellationOverride) error {
	s.mu.Lock()
	s.cancellations = append(s.cancellations, c)
	s.mu.Unlock()
	s.notify(schedule.ChangeCancellations)
	return nil
}

// =============================================================================
// STUDENTS
// =============================================================================

func (s *Store) ListStudents(_ context.Context, activeOnly bool) ([]schedule.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []schedule.Student
	for _, st := range s.students {
		if activeOnly && !st.Active {
			continue
		}
		result = append(result, st)
	}
	return result, nil
}

func (s *Store) GetStudent(_ context.Context, id string) (*schedule.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.students[id]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func (s *Store) SaveStudent(_ context.Context, st schedule.Student) error {
	s.mu.Lock()
	s.students[st.ID] = st
	s.mu.Unlock()
	s.notify(schedule.ChangeStudents)
	return nil
}

// =============================================================================
// LEDGERS
// =============================================================================

func (s *Store) LoadLedger(_ context.Context, studentID string) (billing.Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l := s.ledgers[studentID]
	charges := make([]billing.ChargeItem, len(l.Charges))
	copy(charges, l.Charges)
	return billing.Ledger{Charges: charges}, nil
}

func (s *Store) SaveLedger(_ context.Context, studentID string, l billing.Ledger) error {
	charges := make([]billing.ChargeItem, len(l.Charges))
	copy(charges, l.Charges)

	s.mu.Lock()
	s.ledgers[studentID] = billing.Ledger{Charges: charges}
	s.mu.Unlock()
	s.notify(schedule.ChangeLedger)
	return nil
}

// =============================================================================
// CHANGE FEED
// =============================================================================

// Watch streams change notifications until ctx is done. The channel is
// buffered; a slow subscriber drops notifications rather than blocking
// writers, which is safe because subscribers reload from scratch anyway.
func (s *Store) Watch(ctx context.Context) (<-chan schedule.Change, error) {
	ch := make(chan schedule.Change, 16)

	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subMu.Unlock()

	go func() {
		<-ctx.Done()
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
		close(ch)
	}()

	return ch, nil
}

func (s *Store) notify(kind schedule.ChangeKind) {
	change := schedule.Change{Kind: kind, At: time.Now()}
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- change:
		default:
		}
	}
}
