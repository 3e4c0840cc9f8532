/*
store.go - Persistence interfaces for the scheduling core

PURPOSE:
  Defines the boundary between the pure core and whatever actually holds
  the documents. The core consumes three read feeds - events,
  cancellations, students - and issues writes for events, cancellations,
  and student records. Persistence schema is the adapter's business.

CHANGE FEED:
  Stores expose a Watch channel of coarse change notifications. Derived
  views are recomputed from scratch per notification; a notification fully
  supersedes the previous computed view (last value wins), so there is no
  payload on the change beyond which feed moved.

IMPLEMENTATIONS:
  - store/memory: in-memory, for tests and dev
  - store/sqlite: production SQLite

SEE ALSO:
  - view/view.go: reactive snapshot pipeline over these feeds
*/
package schedule

import (
	"context"
	"time"
)

// =============================================================================
// READ FILTERS
// =============================================================================

// EventFilter narrows an event query. Zero fields mean "no constraint".
// Recurring templates carry no date and are always included unless
// ConcreteOnly is set; the date range applies to concrete events.
type EventFilter struct {
	From         Day
	To           Day
	Track        Track
	StudentID    string
	ConcreteOnly bool
	TemplateOnly bool
}

// Matches reports whether an event satisfies the filter.
func (f EventFilter) Matches(ev ScheduleEvent) bool {
	if f.Track != "" && ev.Track != f.Track {
		return false
	}
	if f.StudentID != "" && ev.StudentID != f.StudentID {
		return false
	}
	if f.ConcreteOnly && ev.Recurring {
		return false
	}
	if f.TemplateOnly && !ev.Recurring {
		return false
	}
	if !ev.Recurring {
		if !f.From.IsZero() && ev.Date.Before(f.From) {
			return false
		}
		if !f.To.IsZero() && ev.Date.After(f.To) {
			return false
		}
	}
	return true
}

// =============================================================================
// STORES
// =============================================================================

// EventStore persists schedule events. SaveEvent upserts; a recurring
// template remains one document no matter how many weeks it spans.
type EventStore interface {
	ListEvents(ctx context.Context, f EventFilter) ([]ScheduleEvent, error)
	GetEvent(ctx context.Context, id string) (*ScheduleEvent, error)
	SaveEvent(ctx context.Context, ev ScheduleEvent) error
	DeleteEvent(ctx context.Context, id string) error
}

// CancellationStore persists per-week suppressions of recurring
// templates. Cancellations are only ever created and queried.
type CancellationStore interface {
	ListCancellations(ctx context.Context, from, to Day) ([]CancellationOverride, error)
	AddCancellation(ctx context.Context, c CancellationOverride) error
}

// StudentStore persists student records.
type StudentStore interface {
	ListStudents(ctx context.Context, activeOnly bool) ([]Student, error)
	GetStudent(ctx context.Context, id string) (*Student, error)
	SaveStudent(ctx context.Context, s Student) error
}

// Store is the full persistence surface the core consumes.
type Store interface {
	EventStore
	CancellationStore
	StudentStore
}

// =============================================================================
// CHANGE FEED
// =============================================================================

type ChangeKind string

const (
	ChangeEvents        ChangeKind = "events"
	ChangeCancellations ChangeKind = "cancellations"
	ChangeStudents      ChangeKind = "students"
	ChangeLedger        ChangeKind = "ledger"
)

// Change is one notification on the feed. It carries no payload: the
// subscriber re-reads the feed that moved.
type Change struct {
	Kind ChangeKind
	At   time.Time
}

// Watcher streams change notifications until ctx is done. A late-arriving
// notification for a torn-down view is simply ignored by the subscriber.
type Watcher interface {
	Watch(ctx context.Context) (<-chan Change, error)
}
