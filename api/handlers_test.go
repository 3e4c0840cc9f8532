package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/lesson-engine/api"
	"github.com/warp/lesson-engine/schedule"
	"github.com/warp/lesson-engine/store/memory"
	"github.com/warp/lesson-engine/view"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type testEnv struct {
	store  *memory.Store
	router http.Handler
	pipe   *view.Pipeline
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.New()
	pipe := view.NewPipeline(store)
	h := api.NewHandler(store, store, pipe)
	return &testEnv{
		store:  store,
		router: api.NewRouter(h, nil),
		pipe:   pipe,
	}
}

func (e *testEnv) reload(t *testing.T) {
	t.Helper()
	require.NoError(t, e.pipe.Reload(context.Background()))
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body: %s", rec.Body.String())
	return v
}

func seedStudent(t *testing.T, e *testEnv) {
	t.Helper()
	body := map[string]any{
		"id": "stu-1", "name": "Mina", "active": true,
		"anchor_date": "2025-01-06",
		"curriculum": []map[string]any{
			{"week": 1, "master": 1}, {"week": 2, "master": 1},
			{"week": 3, "master": 1}, {"week": 4, "master": 1},
		},
		"rates": map[string]string{"master": "120"},
	}
	rec := e.do(t, http.MethodPost, "/api/students", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

// =============================================================================
// HEALTH
// =============================================================================

func TestHealthEndpoint(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// =============================================================================
// STUDENTS
// =============================================================================

func TestCreateAndGetStudent(t *testing.T) {
	e := newTestEnv(t)
	seedStudent(t, e)

	rec := e.do(t, http.MethodGet, "/api/students/stu-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "Mina", got["name"])

	rec = e.do(t, http.MethodGet, "/api/students/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateStudent_RejectsInvalidDefinition(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, http.MethodPost, "/api/students", map[string]any{"name": "no id"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRotationEndpoint(t *testing.T) {
	e := newTestEnv(t)
	seedStudent(t, e)

	rec := e.do(t, http.MethodGet, "/api/students/stu-1/rotation?date=2025-02-03", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[map[string]any](t, rec)
	assert.EqualValues(t, 1, got["week"], "28 days after the anchor wraps to week 1")
}

// =============================================================================
// EVENTS
// =============================================================================

func TestSaveEventAndWeekView(t *testing.T) {
	e := newTestEnv(t)
	seedStudent(t, e)

	rec := e.do(t, http.MethodPost, "/api/events", map[string]any{
		"track": "master", "date": "2025-03-05", "time": "14:00",
		"student_id": "stu-1", "student_name": "Mina", "category": "regular",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	e.reload(t)
	rec = e.do(t, http.MethodGet, "/api/schedule/week?start=2025-03-03&track=master", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	events := decodeBody[[]map[string]any](t, rec)
	require.Len(t, events, 1)
	assert.Equal(t, "2025-03-05", events[0]["date"])
}

func TestSaveEvent_ValidationMapsTo400(t *testing.T) {
	e := newTestEnv(t)

	// Unknown track fails request validation
	rec := e.do(t, http.MethodPost, "/api/events", map[string]any{
		"track": "drums", "date": "2025-03-05", "time": "14:00", "category": "regular",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Missing date on a non-recurring event fails domain validation
	rec = e.do(t, http.MethodPost, "/api/events", map[string]any{
		"track": "master", "time": "14:00", "category": "regular",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteEvent_Missing404(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, http.MethodDelete, "/api/events/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancellationSuppressesTemplateForOneWeek(t *testing.T) {
	e := newTestEnv(t)
	seedStudent(t, e)

	rec := e.do(t, http.MethodPost, "/api/events", map[string]any{
		"track": "master", "time": "14:00", "category": "regular",
		"student_id": "stu-1", "student_name": "Mina",
		"recurring": true, "day_of_week": 3, "recurring_start_date": "2025-01-06",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = e.do(t, http.MethodPost, "/api/cancellations", map[string]any{
		"date": "2025-03-05", "time": "14:00", "student_id": "stu-1",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	e.reload(t)
	rec = e.do(t, http.MethodGet, "/api/schedule/week?start=2025-03-03&track=master", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[[]map[string]any](t, rec))

	rec = e.do(t, http.MethodGet, "/api/schedule/week?start=2025-03-10&track=master", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]map[string]any](t, rec), 1)
}

// =============================================================================
// BILLING
// =============================================================================

func TestChargeLifecycleOverHTTP(t *testing.T) {
	e := newTestEnv(t)
	seedStudent(t, e)

	// Add a manual charge
	rec := e.do(t, http.MethodPost, "/api/students/stu-1/charges", map[string]any{
		"target_date": "2025-04-01", "amount": "120.00", "memo": "April",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	charge := decodeBody[map[string]any](t, rec)
	chargeID, _ := charge["id"].(string)
	require.NotEmpty(t, chargeID)

	// It shows on the ledger
	rec = e.do(t, http.MethodGet, "/api/students/stu-1/ledger", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ledger := decodeBody[map[string]any](t, rec)
	assert.Equal(t, false, ledger["settled"])

	// Settle it
	rec = e.do(t, http.MethodDelete, "/api/students/stu-1/charges/"+chargeID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	settled := decodeBody[map[string]any](t, rec)
	assert.Equal(t, true, settled["settled"])

	// A non-positive amount is rejected
	rec = e.do(t, http.MethodPost, "/api/students/stu-1/charges", map[string]any{
		"target_date": "2025-04-01", "amount": "0", "memo": "bad",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSaveEventPrunesOutstandingCharges(t *testing.T) {
	e := newTestEnv(t)
	seedStudent(t, e)

	rec := e.do(t, http.MethodPost, "/api/students/stu-1/charges", map[string]any{
		"target_date": "2025-05-01", "amount": "120", "memo": "May",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	// Booking a lesson on or after the charge's target date prunes it
	rec = e.do(t, http.MethodPost, "/api/events", map[string]any{
		"track": "master", "date": "2025-05-10", "time": "14:00",
		"student_id": "stu-1", "student_name": "Mina", "category": "regular",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[map[string]any](t, rec)
	pruned, _ := resp["pruned_charges"].([]any)
	assert.Len(t, pruned, 1)
}

func TestCycleBillingEndpoint(t *testing.T) {
	e := newTestEnv(t)
	seedStudent(t, e)

	// Seed 5 completed weekly lessons directly in the store
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		ev := schedule.ScheduleEvent{
			ID:        "hist-" + string(rune('a'+i)),
			Track:     schedule.TrackMaster,
			Date:      schedule.NewDay(2025, time.January, 6).AddDays(7 * i),
			Time:      schedule.NewClockTime(14, 0),
			StudentID: "stu-1",
			Category:  schedule.CategoryRegular,
			Status:    schedule.StatusCompleted,
		}
		require.NoError(t, e.store.SaveEvent(ctx, ev))
	}

	// The boundary is visible before billing
	rec := e.do(t, http.MethodGet, "/api/students/stu-1/cycle-dates", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	dates := decodeBody[map[string]any](t, rec)
	require.Len(t, dates["dates"], 1)

	// Billing creates the cycle charge
	rec = e.do(t, http.MethodPost, "/api/students/stu-1/cycle-billing", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decodeBody[map[string]any](t, rec)
	created, _ := result["created"].([]any)
	assert.Len(t, created, 1)

	// Re-running bills nothing new
	rec = e.do(t, http.MethodPost, "/api/students/stu-1/cycle-billing", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	result = decodeBody[map[string]any](t, rec)
	created, _ = result["created"].([]any)
	assert.Empty(t, created)
}

// =============================================================================
// SCENARIOS
// =============================================================================

func TestLoadStudioDemoScenario(t *testing.T) {
	// GIVEN an empty store
	e := newTestEnv(t)

	// WHEN the demo scenario is loaded twice
	for i := 0; i < 2; i++ {
		rec := e.do(t, http.MethodPost, "/api/scenarios/load", map[string]string{"scenario_id": "studio-demo"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	e.reload(t)

	// THEN exactly two students exist, each with lesson history
	rec := e.do(t, http.MethodGet, "/api/students", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	students := decodeBody[[]map[string]any](t, rec)
	require.Len(t, students, 2)

	// AND the loaded scenario is reported
	rec = e.do(t, http.MethodGet, "/api/scenarios/current", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	current := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "studio-demo", current["id"])

	// AND the seeded charge is outstanding exactly once
	rec = e.do(t, http.MethodGet, "/api/students/stu-ken/ledger", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ledger := decodeBody[map[string]any](t, rec)
	charges, _ := ledger["charges"].([]any)
	assert.Len(t, charges, 1)
}

func TestLoadScenario_UnknownID(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, http.MethodPost, "/api/scenarios/load", map[string]string{"scenario_id": "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
