/*
handlers.go - HTTP API handlers for the lesson studio engine

PURPOSE:
  Exposes the scheduling core and billing operations over REST. Handles
  HTTP request/response, JSON serialization, input validation, and
  delegates everything else to the domain packages.

ENDPOINTS:
  Schedule:
    GET    /api/schedule/week       Resolved week view with ghosts
    GET    /api/schedule/range      Resolved events over a date range
    GET    /api/schedule/slot       Resolve a single slot
    GET    /api/schedule/available  Students free to book this week

  Events:
    POST   /api/events              Create or move an event (saga)
    DELETE /api/events/{id}         Delete an event (saga)
    POST   /api/cancellations       Skip one recurring instance

  Students:
    GET    /api/students            List students
    POST   /api/students            Enroll from a JSON definition
    GET    /api/students/{id}       Student details
    GET    /api/students/{id}/rotation    Rotation week for a date
    GET    /api/students/{id}/cycle-dates Due cycle boundaries

  Billing:
    GET    /api/students/{id}/ledger               Outstanding charges
    POST   /api/students/{id}/charges              Manual charge
    DELETE /api/students/{id}/charges/{chargeID}   Settle a charge
    POST   /api/students/{id}/cycle-billing        Run cycle billing now

  Scenarios (see scenarios.go):
    GET    /api/scenarios           List demo scenarios
    GET    /api/scenarios/current   Currently loaded scenario
    POST   /api/scenarios/load      Seed a demo scenario

ERROR HANDLING:
  Errors map to JSON with a status derived from the domain taxonomy:
  - 400: validation failures
  - 404: missing student/event/charge
  - 502: store write failures
  - 500: everything else
  A saga that half-completed additionally carries a warning string.

SEE ALSO:
  - dto.go: request/response structures
  - server.go: router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/lesson-engine/billing"
	"github.com/warp/lesson-engine/factory"
	"github.com/warp/lesson-engine/schedule"
	"github.com/warp/lesson-engine/view"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      schedule.Store
	Ledgers    billing.LedgerStore
	Reconciler *billing.Reconciler
	Pipeline   *view.Pipeline
	Students   *factory.StudentFactory

	validate *validator.Validate

	// now is swappable for tests; defaults to schedule.Today.
	now func() schedule.Day

	currentScenario string
}

// NewHandler wires a handler over a store that provides both the
// schedule feeds and the ledgers.
func NewHandler(store schedule.Store, ledgers billing.LedgerStore, pipeline *view.Pipeline) *Handler {
	return &Handler{
		Store:      store,
		Ledgers:    ledgers,
		Reconciler: billing.NewReconciler(store, ledgers),
		Pipeline:   pipeline,
		Students:   factory.NewStudentFactory(),
		validate:   validator.New(),
		now:        schedule.Today,
	}
}

// =============================================================================
// SCHEDULE HANDLERS
// =============================================================================

// WeekView returns the resolved week with ghost predictions merged in.
func (h *Handler) WeekView(w http.ResponseWriter, r *http.Request) {
	start, ok := h.queryDay(w, r, "start")
	if !ok {
		return
	}
	track, ok := h.queryTrack(w, r)
	if !ok {
		return
	}

	snap := h.Pipeline.Current()
	writeJSON(w, http.StatusOK, eventDTOs(snap.Week(h.now(), start, track)))
}

// RangeView returns resolved events over an arbitrary date range.
func (h *Handler) RangeView(w http.ResponseWriter, r *http.Request) {
	from, ok := h.queryDay(w, r, "from")
	if !ok {
		return
	}
	to, ok := h.queryDay(w, r, "to")
	if !ok {
		return
	}
	track, ok := h.queryTrack(w, r)
	if !ok {
		return
	}

	snap := h.Pipeline.Current()
	events := schedule.RangeEvents(from, to, track, snap.Events, snap.Cancellations)
	writeJSON(w, http.StatusOK, eventDTOs(events))
}

// SlotView resolves a single (date, time, track) slot.
func (h *Handler) SlotView(w http.ResponseWriter, r *http.Request) {
	date, ok := h.queryDay(w, r, "date")
	if !ok {
		return
	}
	clock, err := schedule.ParseClockTime(r.URL.Query().Get("time"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid time", err)
		return
	}
	track, ok := h.queryTrack(w, r)
	if !ok {
		return
	}

	snap := h.Pipeline.Current()
	events := snap.Effective(schedule.SlotRef{Date: date, Time: clock, Track: track})
	writeJSON(w, http.StatusOK, eventDTOs(events))
}

// AvailableStudents returns the roster candidates for a week/track.
func (h *Handler) AvailableStudents(w http.ResponseWriter, r *http.Request) {
	start, ok := h.queryDay(w, r, "start")
	if !ok {
		return
	}
	track, ok := h.queryTrack(w, r)
	if !ok {
		return
	}

	snap := h.Pipeline.Current()
	students := snap.Available(start, track)
	dtos := make([]StudentDTO, len(students))
	for i, s := range students {
		dtos[i] = studentDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// EVENT HANDLERS
// =============================================================================

// SaveEvent creates or moves an event through the write saga.
func (h *Handler) SaveEvent(w http.ResponseWriter, r *http.Request) {
	var req SaveEventRequest
	if !h.decode(w, r, &req) {
		return
	}

	ev, err := h.buildEvent(req)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	result, err := h.Reconciler.SaveEvent(r.Context(), ev)
	resp := SaveEventResponse{Pruned: chargeDTOs(result.Pruned)}
	if result.Warning != nil {
		resp.Warning = result.Warning.String()
	}
	if err != nil {
		writeDomainErrorWith(w, err, resp)
		return
	}
	dto := eventDTO(*result.Event)
	resp.Event = &dto
	writeJSON(w, http.StatusOK, resp)
}

// DeleteEvent deletes an event through the delete saga.
func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	result, err := h.Reconciler.DeleteEvent(r.Context(), id)
	resp := SaveEventResponse{Pruned: chargeDTOs(result.Pruned)}
	if result.Warning != nil {
		resp.Warning = result.Warning.String()
	}
	if err != nil {
		writeDomainErrorWith(w, err, resp)
		return
	}
	if result.Event != nil {
		dto := eventDTO(*result.Event)
		resp.Event = &dto
	}
	writeJSON(w, http.StatusOK, resp)
}

// AddCancellation records a one-week skip of a recurring template.
func (h *Handler) AddCancellation(w http.ResponseWriter, r *http.Request) {
	var req CancellationRequest
	if !h.decode(w, r, &req) {
		return
	}

	date, err := schedule.ParseDay(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date", err)
		return
	}
	clock, err := schedule.ParseClockTime(req.Time)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid time", err)
		return
	}

	c := schedule.CancellationOverride{Date: date, Time: clock, StudentID: req.StudentID}
	if err := h.Store.AddCancellation(r.Context(), c); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "created"})
}

func (h *Handler) buildEvent(req SaveEventRequest) (schedule.ScheduleEvent, error) {
	ev := schedule.ScheduleEvent{
		ID:             req.ID,
		Track:          schedule.Track(req.Track),
		StudentID:      req.StudentID,
		StudentName:    req.StudentName,
		Category:       schedule.EventCategory(req.Category),
		Status:         schedule.EventStatus(req.Status),
		Recurring:      req.Recurring,
		RelatedEventID: req.RelatedEventID,
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}

	clock, err := schedule.ParseClockTime(req.Time)
	if err != nil {
		return ev, &schedule.ValidationError{Field: "time", Reason: "malformed"}
	}
	ev.Time = clock

	if req.Recurring {
		ev.DayOfWeek = time.Weekday(req.DayOfWeek)
		if req.RecurringStartDate == "" {
			return ev, &schedule.ValidationError{Field: "recurring_start_date", Reason: "required"}
		}
		d, err := schedule.ParseDay(req.RecurringStartDate)
		if err != nil {
			return ev, &schedule.ValidationError{Field: "recurring_start_date", Reason: "malformed date"}
		}
		ev.RecurringStartDate = d
	} else {
		if req.Date == "" {
			return ev, &schedule.ValidationError{Field: "date", Reason: "required"}
		}
		d, err := schedule.ParseDay(req.Date)
		if err != nil {
			return ev, &schedule.ValidationError{Field: "date", Reason: "malformed date"}
		}
		ev.Date = d
	}
	return ev, nil
}

// =============================================================================
// STUDENT HANDLERS
// =============================================================================

// ListStudents returns all students, or only active ones with ?active=1.
func (h *Handler) ListStudents(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "1"
	students, err := h.Store.ListStudents(r.Context(), activeOnly)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list students", err)
		return
	}
	dtos := make([]StudentDTO, len(students))
	for i, s := range students {
		dtos[i] = studentDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateStudent enrolls a student from a JSON definition.
func (h *Handler) CreateStudent(w http.ResponseWriter, r *http.Request) {
	var sj factory.StudentJSON
	if err := json.NewDecoder(r.Body).Decode(&sj); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON", err)
		return
	}

	st, err := h.Students.Build(sj)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := h.Store.SaveStudent(r.Context(), *st); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, studentDTO(*st))
}

// GetStudent returns a single student.
func (h *Handler) GetStudent(w http.ResponseWriter, r *http.Request) {
	st, ok := h.loadStudent(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, studentDTO(*st))
}

// Rotation reports the student's curriculum week for a date.
func (h *Handler) Rotation(w http.ResponseWriter, r *http.Request) {
	st, ok := h.loadStudent(w, r)
	if !ok {
		return
	}
	date := h.now()
	if q := r.URL.Query().Get("date"); q != "" {
		var err error
		if date, err = schedule.ParseDay(q); err != nil {
			writeError(w, http.StatusBadRequest, "invalid date", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, RotationDTO{
		StudentID: st.ID,
		Date:      date.String(),
		Week:      schedule.RotationWeek(st.AnchorDate, date),
	})
}

// CycleDates returns the not-yet-billed cycle boundaries.
func (h *Handler) CycleDates(w http.ResponseWriter, r *http.Request) {
	st, ok := h.loadStudent(w, r)
	if !ok {
		return
	}
	due, err := h.Reconciler.DueCycleDates(r.Context(), *st)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dates := make([]string, len(due))
	for i, d := range due {
		dates[i] = d.String()
	}
	writeJSON(w, http.StatusOK, map[string]any{"student_id": st.ID, "dates": dates})
}

// =============================================================================
// BILLING HANDLERS
// =============================================================================

// GetLedger returns the student's outstanding charges.
func (h *Handler) GetLedger(w http.ResponseWriter, r *http.Request) {
	st, ok := h.loadStudent(w, r)
	if !ok {
		return
	}
	ledger, err := h.Ledgers.LoadLedger(r.Context(), st.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, LedgerDTO{
		StudentID: st.ID,
		Charges:   chargeDTOs(ledger.Charges),
		Settled:   ledger.Settled(),
	})
}

// AddCharge creates a manual charge.
func (h *Handler) AddCharge(w http.ResponseWriter, r *http.Request) {
	st, ok := h.loadStudent(w, r)
	if !ok {
		return
	}
	var req AddChargeRequest
	if !h.decode(w, r, &req) {
		return
	}

	target, err := schedule.ParseDay(req.TargetDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid target_date", err)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount", err)
		return
	}

	ledger, err := h.Ledgers.LoadLedger(r.Context(), st.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	item, err := ledger.AddCharge(target, amount, req.Memo)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := h.Ledgers.SaveLedger(r.Context(), st.ID, ledger); err != nil {
		writeDomainError(w, &schedule.WriteFailure{Op: "ledger.save", Err: err})
		return
	}
	writeJSON(w, http.StatusCreated, chargeDTO(item))
}

// RemoveCharge settles a charge by id.
func (h *Handler) RemoveCharge(w http.ResponseWriter, r *http.Request) {
	st, ok := h.loadStudent(w, r)
	if !ok {
		return
	}
	chargeID := chi.URLParam(r, "chargeID")

	ledger, err := h.Ledgers.LoadLedger(r.Context(), st.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := ledger.RemoveCharge(chargeID); err != nil {
		writeDomainError(w, err)
		return
	}
	if err := h.Ledgers.SaveLedger(r.Context(), st.ID, ledger); err != nil {
		writeDomainError(w, &schedule.WriteFailure{Op: "ledger.save", Err: err})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"settled": ledger.Settled()})
}

// RunCycleBilling runs cycle billing for one student now.
func (h *Handler) RunCycleBilling(w http.ResponseWriter, r *http.Request) {
	st, ok := h.loadStudent(w, r)
	if !ok {
		return
	}
	result, err := h.Reconciler.RunCycleBilling(r.Context(), *st)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cycleBillingDTO(result))
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) loadStudent(w http.ResponseWriter, r *http.Request) (*schedule.Student, bool) {
	id := chi.URLParam(r, "id")
	st, err := h.Store.GetStudent(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load student", err)
		return nil, false
	}
	if st == nil {
		writeDomainError(w, &schedule.NotFoundError{Kind: "student", ID: id})
		return nil, false
	}
	return st, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "validation failed", err)
		return false
	}
	return true
}

func (h *Handler) queryDay(w http.ResponseWriter, r *http.Request, name string) (schedule.Day, bool) {
	d, err := schedule.ParseDay(r.URL.Query().Get(name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+name, err)
		return schedule.Day{}, false
	}
	return d, true
}

func (h *Handler) queryTrack(w http.ResponseWriter, r *http.Request) (schedule.Track, bool) {
	track := schedule.Track(r.URL.Query().Get("track"))
	if !track.Valid() {
		writeError(w, http.StatusBadRequest, "invalid track", nil)
		return "", false
	}
	return track, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error   string `json:"error"`
	Detail  string `json:"detail,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string, err error) {
	resp := errorResponse{Error: msg}
	if err != nil {
		resp.Detail = err.Error()
	}
	writeJSON(w, status, resp)
}

func statusFor(err error) int {
	switch {
	case schedule.IsClientError(err):
		return http.StatusBadRequest
	case schedule.IsNotFound(err):
		return http.StatusNotFound
	case isWriteFailure(err):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func isWriteFailure(err error) bool {
	return err != nil && errors.Is(err, schedule.ErrWriteFailed)
}

// writeDomainError maps a domain error onto a status code.
func writeDomainError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error(), nil)
}

// writeDomainErrorWith attaches a partial saga result to the error body
// so the caller can see what did commit.
func writeDomainErrorWith(w http.ResponseWriter, err error, payload any) {
	writeJSON(w, statusFor(err), errorResponse{Error: err.Error(), Payload: payload})
}
