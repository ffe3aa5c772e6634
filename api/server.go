/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the staff portal
  5. Actor:      Current actor from JWT (or dev headers), /api only

ROUTE GROUPS:
  /api/shifts, /api/schedules, /api/rate-cards    Catalog
  /api/attendance/*                               Attendance records
  /api/patient-counts/*                           Daily patient counts
  /api/fees/*                                     Fee calculators
  /api/reports/*                                  Monthly summaries, archive
  /api/admin/*                                    Recompute
  /api/reset, /api/scenarios/*                    Reset and demo data (dev only)
  /health                                         Liveness

SEE ALSO:
  - handlers.go: Handler implementations
  - auth.go: ActorMiddleware
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	AllowedOrigins []string
	JWTSecret      string // empty: actor from X-Actor-* headers
	EnableReset    bool
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Actor-ID", "X-Actor-Name", "X-Actor-Role"},
		AllowCredentials: true,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(ActorMiddleware(opts.JWTSecret))

		// Catalog routes
		r.Route("/shifts", func(r chi.Router) {
			r.Get("/", h.ListShifts)
			r.Post("/", h.SaveShift)
		})
		r.Post("/schedules", h.CreateSchedule)
		r.Route("/rate-cards", func(r chi.Router) {
			r.Get("/", h.ListRateCards)
			r.Post("/", h.SaveRateCard)
		})

		// Attendance routes
		r.Route("/attendance", func(r chi.Router) {
			r.Get("/", h.ListAttendance)
			r.Post("/check-in", h.CheckIn)
			r.Get("/{id}", h.GetAttendance)
			r.Put("/{id}", h.CorrectAttendance)
			r.Delete("/{id}", h.DeleteAttendance)
			r.Post("/{id}/check-out", h.CheckOut)
			r.Post("/{id}/approve", h.ApproveAttendance)
			r.Post("/{id}/reject", h.RejectAttendance)
			r.Post("/{id}/status", h.SetAttendanceStatus)
			r.Get("/{id}/events", h.AttendanceEvents)
		})

		// Patient count routes
		r.Route("/patient-counts", func(r chi.Router) {
			r.Get("/", h.ListPatientCounts)
			r.Post("/", h.CreatePatientCount)
			r.Get("/{id}", h.GetPatientCount)
			r.Put("/{id}", h.EditPatientCount)
			r.Post("/{id}/approve", h.ApprovePatientCount)
			r.Post("/{id}/reject", h.RejectPatientCount)
			r.Post("/{id}/status", h.SetPatientCountStatus)
			r.Get("/{id}/fee", h.PatientCountFee)
			r.Get("/{id}/events", h.PatientCountEvents)
		})

		// Fee routes
		r.Route("/fees", func(r chi.Router) {
			r.Get("/shared", h.SharedFeeForDay)
			r.Post("/shared", h.SharedFee)
		})

		// Report routes
		r.Route("/reports", func(r chi.Router) {
			r.Get("/users/{id}/monthly", h.MonthlyReport)
			r.Get("/archive", h.ArchiveCount)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/recompute", h.TriggerRecompute)
			r.Get("/recompute/runs", h.ListRecomputeRuns)
		})

		if opts.EnableReset {
			r.Post("/reset", h.ResetDatabase)

			// Scenario routes
			r.Route("/scenarios", func(r chi.Router) {
				r.Get("/", h.ListScenarios)
				r.Get("/current", h.GetCurrentScenario)
				r.Post("/load", h.LoadScenario)
			})
		}
	})

	return r
}
