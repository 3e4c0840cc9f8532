/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/schedule/*       Resolved calendar views
  /api/events/*         Event writes (saga)
  /api/cancellations    Recurring-instance skips
  /api/students/*       Students, rotation, billing
  /api/scenarios/*      Demo data loaders (development only)
  /api/health           Liveness probe

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
// corsOrigins is the allow-list for browser clients; empty means
// localhost development defaults.
func NewRouter(h *Handler, corsOrigins []string) *chi.Mux {
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Calendar views
		r.Route("/schedule", func(r chi.Router) {
			r.Get("/week", h.WeekView)
			r.Get("/range", h.RangeView)
			r.Get("/slot", h.SlotView)
			r.Get("/available", h.AvailableStudents)
		})

		// Event writes
		r.Route("/events", func(r chi.Router) {
			r.Post("/", h.SaveEvent)
			r.Delete("/{id}", h.DeleteEvent)
		})

		r.Post("/cancellations", h.AddCancellation)

		// Student routes
		r.Route("/students", func(r chi.Router) {
			r.Get("/", h.ListStudents)
			r.Post("/", h.CreateStudent)
			r.Get("/{id}", h.GetStudent)
			r.Get("/{id}/rotation", h.Rotation)
			r.Get("/{id}/cycle-dates", h.CycleDates)
			r.Get("/{id}/ledger", h.GetLedger)
			r.Post("/{id}/charges", h.AddCharge)
			r.Delete("/{id}/charges/{chargeID}", h.RemoveCharge)
			r.Post("/{id}/cycle-billing", h.RunCycleBilling)
		})

		// Demo scenarios (development only)
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})

		// Health check
		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
	})

	return r
}
