/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON structures for API communication, decoupling the internal domain
  model from the external contract.

NAMING CONVENTION:
  - *DTO: response types returned to clients
  - *Request: request body types from clients

VALIDATION:
  Request types carry validator tags and are checked in the handlers
  before any domain call; date and time strings are parsed afterwards so
  a malformed value surfaces as a 400, never as a zero-value write.

SEE ALSO:
  - handlers.go: uses these types
  - factory/curriculum.go: StudentJSON, reused as the enrollment request
*/
package api

import (
	"time"

	"github.com/warp/lesson-engine/billing"
	"github.com/warp/lesson-engine/schedule"
)

// =============================================================================
// EVENTS
// =============================================================================

// EventDTO represents a resolved or ghost event in responses.
type EventDTO struct {
	ID          string `json:"id,omitempty"`
	Track       string `json:"track"`
	Date        string `json:"date,omitempty"`
	DayOfWeek   string `json:"day_of_week,omitempty"`
	Time        string `json:"time"`
	StudentID   string `json:"student_id,omitempty"`
	StudentName string `json:"student_name,omitempty"`
	Category    string `json:"category"`
	Status      string `json:"status,omitempty"`
	Recurring   bool   `json:"recurring,omitempty"`
	Ghost       bool   `json:"ghost,omitempty"`
}

func eventDTO(ev schedule.ScheduleEvent) EventDTO {
	dto := EventDTO{
		ID:          ev.ID,
		Track:       string(ev.Track),
		Time:        ev.Time.String(),
		StudentID:   ev.StudentID,
		StudentName: ev.StudentName,
		Category:    string(ev.Category),
		Status:      string(ev.Status),
		Recurring:   ev.Recurring,
		Ghost:       ev.Ghost,
	}
	if !ev.Date.IsZero() {
		dto.Date = ev.Date.String()
	}
	if ev.Recurring {
		dto.DayOfWeek = ev.DayOfWeek.String()
	}
	return dto
}

func eventDTOs(evs []schedule.ScheduleEvent) []EventDTO {
	dtos := make([]EventDTO, len(evs))
	for i, ev := range evs {
		dtos[i] = eventDTO(ev)
	}
	return dtos
}

// SaveEventRequest creates or moves an event.
type SaveEventRequest struct {
	ID                 string `json:"id,omitempty"`
	Track              string `json:"track" validate:"required,oneof=master vocal"`
	Date               string `json:"date,omitempty"`
	DayOfWeek          int    `json:"day_of_week,omitempty" validate:"min=0,max=6"`
	Time               string `json:"time" validate:"required"`
	StudentID          string `json:"student_id,omitempty"`
	StudentName        string `json:"student_name,omitempty"`
	Category           string `json:"category" validate:"required,oneof=regular special counseling trial"`
	Status             string `json:"status,omitempty" validate:"omitempty,oneof=completed late absent reschedule reschedule_assigned"`
	Recurring          bool   `json:"recurring,omitempty"`
	RecurringStartDate string `json:"recurring_start_date,omitempty"`
	RelatedEventID     string `json:"related_event_id,omitempty"`
}

// SaveEventResponse exposes both saga steps of an event write.
type SaveEventResponse struct {
	Event   *EventDTO   `json:"event,omitempty"`
	Pruned  []ChargeDTO `json:"pruned_charges,omitempty"`
	Warning string      `json:"warning,omitempty"`
}

// CancellationRequest suppresses one recurring instance for one week.
type CancellationRequest struct {
	Date      string `json:"date" validate:"required"`
	Time      string `json:"time" validate:"required"`
	StudentID string `json:"student_id" validate:"required"`
}

// =============================================================================
// STUDENTS
// =============================================================================

// StudentDTO represents a student in responses.
type StudentDTO struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Active         bool   `json:"active"`
	Monthly        bool   `json:"monthly"`
	Artist         bool   `json:"artist"`
	AnchorDate     string `json:"anchor_date,omitempty"`
	LastBilledDate string `json:"last_billed_date,omitempty"`
	SessionCount   int    `json:"session_count"`
}

func studentDTO(s schedule.Student) StudentDTO {
	dto := StudentDTO{
		ID:           s.ID,
		Name:         s.Name,
		Active:       s.Active,
		Monthly:      s.Monthly,
		Artist:       s.Artist,
		SessionCount: s.SessionCount,
	}
	if !s.AnchorDate.IsZero() {
		dto.AnchorDate = s.AnchorDate.String()
	}
	if !s.LastBilledDate.IsZero() {
		dto.LastBilledDate = s.LastBilledDate.String()
	}
	return dto
}

// RotationDTO reports a student's curriculum position for a date.
type RotationDTO struct {
	StudentID string `json:"student_id"`
	Date      string `json:"date"`
	Week      int    `json:"week"`
}

// =============================================================================
// BILLING
// =============================================================================

// ChargeDTO represents one outstanding charge.
type ChargeDTO struct {
	ID         string `json:"id"`
	Kind       string `json:"kind"`
	TargetDate string `json:"target_date"`
	Amount     string `json:"amount"`
	Memo       string `json:"memo,omitempty"`
	YearMonth  string `json:"year_month,omitempty"`
}

func chargeDTO(c billing.ChargeItem) ChargeDTO {
	return ChargeDTO{
		ID:         c.ID,
		Kind:       string(c.Kind),
		TargetDate: c.TargetDate.String(),
		Amount:     c.Amount.String(),
		Memo:       c.Memo,
		YearMonth:  c.YearMonth,
	}
}

func chargeDTOs(cs []billing.ChargeItem) []ChargeDTO {
	dtos := make([]ChargeDTO, len(cs))
	for i, c := range cs {
		dtos[i] = chargeDTO(c)
	}
	return dtos
}

// LedgerDTO is a student's full ledger.
type LedgerDTO struct {
	StudentID string      `json:"student_id"`
	Charges   []ChargeDTO `json:"charges"`
	Settled   bool        `json:"settled"`
}

// AddChargeRequest creates a manual charge.
type AddChargeRequest struct {
	TargetDate string `json:"target_date" validate:"required"`
	Amount     string `json:"amount" validate:"required"`
	Memo       string `json:"memo,omitempty"`
}

// ScenarioDTO describes a loadable demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// CycleBillingDTO reports what a cycle-billing run did.
type CycleBillingDTO struct {
	StudentID string      `json:"student_id"`
	Created   []ChargeDTO `json:"created"`
	Skipped   int         `json:"skipped"`
	RanAt     string      `json:"ran_at"`
}

func cycleBillingDTO(r billing.CycleBillingResult) CycleBillingDTO {
	return CycleBillingDTO{
		StudentID: r.StudentID,
		Created:   chargeDTOs(r.Created),
		Skipped:   r.Skipped,
		RanAt:     time.Now().UTC().Format(time.RFC3339),
	}
}
