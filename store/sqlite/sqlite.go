/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements schedule.Store, billing.LedgerStore, and schedule.Watcher on
  SQLite. The same patterns apply to PostgreSQL - only minor SQL dialect
  differences.

KEY TABLES:
  events:        ad-hoc events and recurring templates (one row per
                 template no matter how many weeks it covers)
  cancellations: per-week suppressions, insert-only
  students:      student records with curriculum/rates as JSON
  charges:       one row per outstanding charge; SaveLedger replaces the
                 student's rows atomically (last writer wins)

CHANGE FEED:
  The process is the only writer, so the change feed is an in-process
  fan-out: every committed write notifies subscribers with the feed that
  moved. Subscribers reload from scratch, so notifications carry no
  payload and a dropped notification is recovered by the next one.

WAL MODE:
  SQLite is opened with WAL so readers don't block the writer.

USAGE:
  store, err := sqlite.New("./data/studio.db")
  if err != nil { ... }
  defer store.Close()

SEE ALSO:
  - schedule/store.go: interface definitions
  - store/memory: in-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/lesson-engine/billing"
	"github.com/warp/lesson-engine/schedule"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex

	subMu   sync.Mutex
	subs    map[int]chan schedule.Change
	nextSub int
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db, subs: make(map[int]chan schedule.Change)}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schemaSQL := `
	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		track TEXT NOT NULL,
		date TEXT,
		day_of_week INTEGER,
		time TEXT NOT NULL,
		student_id TEXT,
		student_name TEXT,
		category TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT '',
		recurring BOOLEAN NOT NULL DEFAULT FALSE,
		recurring_start_date TEXT,
		related_event_id TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_date ON events(date);
	CREATE INDEX IF NOT EXISTS idx_events_student ON events(student_id);
	CREATE INDEX IF NOT EXISTS idx_events_track_date ON events(track, date);

	-- One suppression per (date, time, student); re-skipping is a no-op.
	CREATE TABLE IF NOT EXISTS cancellations (
		date TEXT NOT NULL,
		time TEXT NOT NULL,
		student_id TEXT NOT NULL,
		created_at TEXT NOT NULL,
		UNIQUE(date, time, student_id)
	);

	CREATE INDEX IF NOT EXISTS idx_cancellations_date ON cancellations(date);

	CREATE TABLE IF NOT EXISTS students (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		monthly BOOLEAN NOT NULL DEFAULT FALSE,
		artist BOOLEAN NOT NULL DEFAULT FALSE,
		anchor_date TEXT,
		last_billed_date TEXT,
		curriculum_json TEXT NOT NULL DEFAULT '[]',
		rates_json TEXT NOT NULL DEFAULT '{}',
		session_count INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS charges (
		id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		target_date TEXT NOT NULL,
		amount TEXT NOT NULL,
		memo TEXT,
		year_month TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_charges_student ON charges(student_id, target_date);
	`
	_, err := s.db.Exec(schemaSQL)
	return err
}

// =============================================================================
// SERIALIZATION HELPERS
// =============================================================================

func dayOrNull(d schedule.Day) sql.NullString {
	if d.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func dayFromNull(ns sql.NullString) schedule.Day {
	if !ns.Valid || ns.String == "" {
		return schedule.Day{}
	}
	d, err := schedule.ParseDay(ns.String)
	if err != nil {
		return schedule.Day{}
	}
	return d
}

type ratesJSON struct {
	Master  string `json:"master"`
	Vocal   string `json:"vocal"`
	Vocal30 string `json:"vocal30"`
}

func encodeRates(r schedule.Rates) string {
	b, _ := json.Marshal(ratesJSON{
		Master:  r.Master.String(),
		Vocal:   r.Vocal.String(),
		Vocal30: r.Vocal30.String(),
	})
	return string(b)
}

func decodeRates(s string) schedule.Rates {
	var rj ratesJSON
	if err := json.Unmarshal([]byte(s), &rj); err != nil {
		return schedule.Rates{}
	}
	parse := func(v string) decimal.Decimal {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero
		}
		return d
	}
	return schedule.Rates{
		Master:  parse(rj.Master),
		Vocal:   parse(rj.Vocal),
		Vocal30: parse(rj.Vocal30),
	}
}

// =============================================================================
// EVENTS
// =============================================================================

func (s *Store) ListEvents(ctx context.Context, f schedule.EventFilter) ([]schedule.ScheduleEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, track, date, day_of_week, time, student_id, student_name,
		       category, status, recurring, recurring_start_date, related_event_id
		FROM events`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []schedule.ScheduleEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		if f.Matches(ev) {
			result = append(result, ev)
		}
	}
	return result, rows.Err()
}

func (s *Store) GetEvent(ctx context.Context, id string) (*schedule.ScheduleEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, track, date, day_of_week, time, student_id, student_name,
		       category, status, recurring, recurring_start_date, related_event_id
		FROM events WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	ev, err := scanEvent(rows)
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

func scanEvent(rows *sql.Rows) (schedule.ScheduleEvent, error) {
	var (
		ev                               schedule.ScheduleEvent
		track, timeStr, category, status string
		date, startDate                  sql.NullString
		dayOfWeek                        sql.NullInt64
		studentID, studentName, related  sql.NullString
	)
	err := rows.Scan(&ev.ID, &track, &date, &dayOfWeek, &timeStr, &studentID,
		&studentName, &category, &status, &ev.Recurring, &startDate, &related)
	if err != nil {
		return ev, err
	}
	ev.Track = schedule.Track(track)
	ev.Date = dayFromNull(date)
	if dayOfWeek.Valid {
		ev.DayOfWeek = time.Weekday(dayOfWeek.Int64)
	}
	ev.Time, err = schedule.ParseClockTime(timeStr)
	if err != nil {
		return ev, err
	}
	ev.StudentID = studentID.String
	ev.StudentName = studentName.String
	ev.Category = schedule.EventCategory(category)
	ev.Status = schedule.EventStatus(status)
	ev.RecurringStartDate = dayFromNull(startDate)
	ev.RelatedEventID = related.String
	return ev, nil
}

func (s *Store) SaveEvent(ctx context.Context, ev schedule.ScheduleEvent) error {
	s.mu.Lock()
	now := time.Now().UTC().Format(time.RFC3339)
	var dayOfWeek sql.NullInt64
	if ev.Recurring {
		dayOfWeek = sql.NullInt64{Int64: int64(ev.DayOfWeek), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (id, track, date, day_of_week, time, student_id, student_name,
			category, status, recurring, recurring_start_date, related_event_id,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			track = excluded.track,
			date = excluded.date,
			day_of_week = excluded.day_of_week,
			time = excluded.time,
			student_id = excluded.student_id,
			student_name = excluded.student_name,
			category = excluded.category,
			status = excluded.status,
			recurring = excluded.recurring,
			recurring_start_date = excluded.recurring_start_date,
			related_event_id = excluded.related_event_id,
			updated_at = excluded.updated_at`,
		ev.ID, string(ev.Track), dayOrNull(ev.Date), dayOfWeek, ev.Time.String(),
		ev.StudentID, ev.StudentName, string(ev.Category), string(ev.Status),
		ev.Recurring, dayOrNull(ev.RecurringStartDate), ev.RelatedEventID, now, now)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.notify(schedule.ChangeEvents)
	return nil
}

func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	s.mu.Lock()
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &schedule.NotFoundError{Kind: "event", ID: id}
	}
	s.notify(schedule.ChangeEvents)
	return nil
}

// =============================================================================
// CANCELLATIONS
// =============================================================================

func (s *Store) ListCancellations(ctx context.Context, from, to schedule.Day) ([]schedule.CancellationOverride, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT date, time, student_id FROM cancellations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []schedule.CancellationOverride
	for rows.Next() {
		var dateStr, timeStr, studentID string
		if err := rows.Scan(&dateStr, &timeStr, &studentID); err != nil {
			return nil, err
		}
		date, err := schedule.ParseDay(dateStr)
		if err != nil {
			continue
		}
		clock, err := schedule.ParseClockTime(timeStr)
		if err != nil {
			continue
		}
		if !from.IsZero() && date.Before(from) {
			continue
		}
		if !to.IsZero() && date.After(to) {
			continue
		}
		result = append(result, schedule.CancellationOverride{Date: date, Time: clock, StudentID: studentID})
	}
	return result, rows.Err()
}

func (s *Store) AddCancellation(ctx context.Context, c schedule.CancellationOverride) error {
	s.mu.Lock()
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO cancellations (date, time, student_id, created_at)
		VALUES (?, ?, ?, ?)`,
		c.Date.String(), c.Time.String(), c.StudentID, time.Now().UTC().Format(time.RFC3339))
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.notify(schedule.ChangeCancellations)
	return nil
}

// =============================================================================
// STUDENTS
// =============================================================================

func (s *Store) ListStudents(ctx context.Context, activeOnly bool) ([]schedule.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, name, active, monthly, artist, anchor_date, last_billed_date,
		curriculum_json, rates_json, session_count FROM students`
	if activeOnly {
		query += ` WHERE active`
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []schedule.Student
	for rows.Next() {
		st, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, st)
	}
	return result, rows.Err()
}

func (s *Store) GetStudent(ctx context.Context, id string) (*schedule.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, active, monthly, artist, anchor_date, last_billed_date,
		       curriculum_json, rates_json, session_count
		FROM students WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	st, err := scanStudent(rows)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func scanStudent(rows *sql.Rows) (schedule.Student, error) {
	var (
		st                       schedule.Student
		anchor, lastBilled       sql.NullString
		curriculumJSON, ratesStr string
	)
	err := rows.Scan(&st.ID, &st.Name, &st.Active, &st.Monthly, &st.Artist,
		&anchor, &lastBilled, &curriculumJSON, &ratesStr, &st.SessionCount)
	if err != nil {
		return st, err
	}
	st.AnchorDate = dayFromNull(anchor)
	st.LastBilledDate = dayFromNull(lastBilled)
	if err := json.Unmarshal([]byte(curriculumJSON), &st.Curriculum); err != nil {
		st.Curriculum = nil
	}
	st.Rates = decodeRates(ratesStr)
	return st, nil
}

func (s *Store) SaveStudent(ctx context.Context, st schedule.Student) error {
	curriculumJSON, err := json.Marshal(st.Curriculum)
	if err != nil {
		return err
	}

	s.mu.Lock()
	now := time.Now().UTC().Format(time.RFC3339)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO students (id, name, active, monthly, artist, anchor_date,
			last_billed_date, curriculum_json, rates_json, session_count,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			active = excluded.active,
			monthly = excluded.monthly,
			artist = excluded.artist,
			anchor_date = excluded.anchor_date,
			last_billed_date = excluded.last_billed_date,
			curriculum_json = excluded.curriculum_json,
			rates_json = excluded.rates_json,
			session_count = excluded.session_count,
			updated_at = excluded.updated_at`,
		st.ID, st.Name, st.Active, st.Monthly, st.Artist,
		dayOrNull(st.AnchorDate), dayOrNull(st.LastBilledDate),
		string(curriculumJSON), encodeRates(st.Rates), st.SessionCount, now, now)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.notify(schedule.ChangeStudents)
	return nil
}

// =============================================================================
// LEDGERS
// =============================================================================

func (s *Store) LoadLedger(ctx context.Context, studentID string) (billing.Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, target_date, amount, memo, year_month
		FROM charges WHERE student_id = ? ORDER BY target_date ASC`, studentID)
	if err != nil {
		return billing.Ledger{}, err
	}
	defer rows.Close()

	var ledger billing.Ledger
	for rows.Next() {
		var (
			c               billing.ChargeItem
			kind, dateStr   string
			amountStr       string
			memo, yearMonth sql.NullString
		)
		if err := rows.Scan(&c.ID, &kind, &dateStr, &amountStr, &memo, &yearMonth); err != nil {
			return billing.Ledger{}, err
		}
		c.Kind = billing.ChargeKind(kind)
		c.TargetDate, err = schedule.ParseDay(dateStr)
		if err != nil {
			return billing.Ledger{}, err
		}
		c.Amount, err = decimal.NewFromString(amountStr)
		if err != nil {
			return billing.Ledger{}, err
		}
		c.Memo = memo.String
		c.YearMonth = yearMonth.String
		ledger.Charges = append(ledger.Charges, c)
	}
	return ledger, rows.Err()
}

// SaveLedger replaces the student's charges atomically.
func (s *Store) SaveLedger(ctx context.Context, studentID string, l billing.Ledger) error {
	s.mu.Lock()
	err := s.saveLedgerLocked(ctx, studentID, l)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.notify(schedule.ChangeLedger)
	return nil
}

func (s *Store) saveLedgerLocked(ctx context.Context, studentID string, l billing.Ledger) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM charges WHERE student_id = ?`, studentID); err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339)
	for _, c := range l.Charges {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO charges (id, student_id, kind, target_date, amount, memo, year_month, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, studentID, string(c.Kind), c.TargetDate.String(),
			c.Amount.String(), c.Memo, c.YearMonth, now)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// =============================================================================
// CHANGE FEED
// =============================================================================

// Watch streams change notifications until ctx is done. This process is
// the only writer, so an in-process fan-out is equivalent to a store-side
// change feed.
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
