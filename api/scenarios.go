/*
scenarios.go - Demo scenario loader for development and demonstrations

PURPOSE:
  Populates the store with a realistic studio week so the calendar,
  rotation, and billing endpoints have something to show. Seeding is
  idempotent: every entity carries a fixed id and writes are upserts, so
  loading twice leaves one copy of everything.

AVAILABLE SCENARIOS:
  studio-demo: two students, weekly templates, completed history, one
               cancellation, and one outstanding manual charge

USAGE VIA API:
  POST /api/scenarios/load
  {"scenario_id": "studio-demo"}

NOTE:
  Seeded dates are computed relative to the current week so the demo
  stays current. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: shared helpers and Handler context
  - factory/curriculum.go: student JSON definitions
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/warp/lesson-engine/schedule"
)

var demoChargeAmount = decimal.NewFromInt(45)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "studio-demo",
		Name:        "Studio Demo",
		Description: "Two students with weekly templates, lesson history, and an open charge",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	if h.currentScenario == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: h.currentScenario, Name: h.currentScenario})
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	var err error
	switch req.ScenarioID {
	case "studio-demo":
		err = h.loadStudioDemoScenario(r.Context())
	default:
		writeError(w, http.StatusBadRequest, "unknown scenario", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load scenario: %v", err), err)
		return
	}

	h.currentScenario = req.ScenarioID
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADER
// =============================================================================

// loadStudioDemoScenario seeds two students eight weeks into their
// curriculum, with enough completed history for rotation and cycle math
// to produce non-trivial answers.
func (h *Handler) loadStudioDemoScenario(ctx context.Context) error {
	monday := schedule.WeekStart(h.now())
	anchor := monday.AddDays(-7 * 8)

	mia, err := h.Students.Parse(fmt.Sprintf(`{
		"id": "stu-mia",
		"name": "Mia Torres",
		"active": true,
		"anchor_date": %q,
		"curriculum": [
			{"week": 1, "master": 1, "vocal": 1},
			{"week": 2, "master": 1},
			{"week": 3, "master": 1, "vocal": 1},
			{"week": 4, "master": 1}
		],
		"rates": {"master": "120", "vocal": "90"}
	}`, anchor))
	if err != nil {
		return err
	}
	ken, err := h.Students.Parse(fmt.Sprintf(`{
		"id": "stu-ken",
		"name": "Ken Abara",
		"active": true,
		"anchor_date": %q,
		"curriculum": [
			{"week": 1, "vocal30": 1},
			{"week": 2, "vocal30": 1},
			{"week": 3, "vocal30": 1},
			{"week": 4, "vocal30": 1}
		],
		"rates": {"vocal30": "60"}
	}`, anchor))
	if err != nil {
		return err
	}
	for _, st := range []*schedule.Student{mia, ken} {
		if err := h.Store.SaveStudent(ctx, *st); err != nil {
			return err
		}
	}

	// Weekly templates: Mia on Wednesday master, Ken on Friday vocal.
	templates := []schedule.ScheduleEvent{
		{
			ID: "demo-tpl-mia", Track: schedule.TrackMaster,
			DayOfWeek: anchor.AddDays(2).Weekday(), Time: schedule.NewClockTime(14, 0),
			StudentID: mia.ID, StudentName: mia.Name,
			Category:  schedule.CategoryRegular,
			Recurring: true, RecurringStartDate: anchor,
		},
		{
			ID: "demo-tpl-ken", Track: schedule.TrackVocal,
			DayOfWeek: anchor.AddDays(4).Weekday(), Time: schedule.NewClockTime(16, 30),
			StudentID: ken.ID, StudentName: ken.Name,
			Category:  schedule.CategoryRegular,
			Recurring: true, RecurringStartDate: anchor,
		},
	}
	for _, tpl := range templates {
		if err := h.Store.SaveEvent(ctx, tpl); err != nil {
			return err
		}
	}

	// Completed history for the past eight weeks, one lesson per student
	// per week. Ad-hoc entries with fixed ids so reloads overwrite.
	for week := 0; week < 8; week++ {
		lessons := []schedule.ScheduleEvent{
			{
				ID: fmt.Sprintf("demo-mia-%d", week), Track: schedule.TrackMaster,
				Date: anchor.AddDays(week*7 + 2), Time: schedule.NewClockTime(14, 0),
				StudentID: mia.ID, StudentName: mia.Name,
				Category: schedule.CategoryRegular, Status: schedule.StatusCompleted,
			},
			{
				ID: fmt.Sprintf("demo-ken-%d", week), Track: schedule.TrackVocal,
				Date: anchor.AddDays(week*7 + 4), Time: schedule.NewClockTime(16, 30),
				StudentID: ken.ID, StudentName: ken.Name,
				Category: schedule.CategoryRegular, Status: schedule.StatusCompleted,
			},
		}
		for _, ev := range lessons {
			if err := h.Store.SaveEvent(ctx, ev); err != nil {
				return err
			}
		}
	}

	// Mia skips her slot next week.
	skip := schedule.CancellationOverride{
		Date:      monday.AddDays(7 + 2),
		Time:      schedule.NewClockTime(14, 0),
		StudentID: mia.ID,
	}
	if err := h.Store.AddCancellation(ctx, skip); err != nil {
		return err
	}

	// One outstanding manual charge on Ken, due next Monday.
	ledger, err := h.Ledgers.LoadLedger(ctx, ken.ID)
	if err != nil {
		return err
	}
	if !ledger.Settled() {
		return nil // already seeded
	}
	if _, err := ledger.AddCharge(monday.AddDays(7), demoChargeAmount, "sheet music order"); err != nil {
		return err
	}
	return h.Ledgers.SaveLedger(ctx, ken.ID, ledger)
}
