/*
handlers.go - HTTP API handlers for the duty attendance and jaspel engine

PURPOSE:
  Exposes the engines via REST API. Handles HTTP request/response, JSON
  serialization, and delegates to domain logic. Every write to an
  attendance record or patient count goes through validation.Service so
  approvals are invalidated atomically with the edit.

ENDPOINTS:
  Catalog:
    GET    /api/shifts                        List shift templates
    POST   /api/shifts                        Create/replace template (factory JSON)
    POST   /api/schedules                     Create duty schedule
    GET    /api/rate-cards                    List rate cards
    POST   /api/rate-cards                    Create/replace rate card (factory JSON)

  Attendance:
    GET    /api/attendance?user=&month=       List a user's month
    POST   /api/attendance/check-in           Create record
    GET    /api/attendance/{id}               Get record
    POST   /api/attendance/{id}/check-out     Record check-out
    PUT    /api/attendance/{id}               Correction
    DELETE /api/attendance/{id}               Soft delete
    POST   /api/attendance/{id}/approve|reject|status
    GET    /api/attendance/{id}/events        Validation history

  Patient counts:
    GET    /api/patient-counts?user=&month=
    POST   /api/patient-counts
    GET    /api/patient-counts/{id}
    PUT    /api/patient-counts/{id}
    POST   /api/patient-counts/{id}/approve|reject|status
    GET    /api/patient-counts/{id}/fee       Single-staff breakdown
    GET    /api/patient-counts/{id}/events

  Fees:
    POST   /api/fees/shared                   Shared-total calculator
    GET    /api/fees/shared?date=&unit=       Shared-total over stored counts

  Reports:
    GET    /api/reports/users/{id}/monthly?month=&approved_only=
    GET    /api/reports/archive?report=&month=

  Admin:
    POST   /api/admin/recompute               Recompute a month now
    GET    /api/admin/recompute/runs          Recent runs

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, missing actor
  - 404: Record, template or rate card not found
  - 409: Concurrent modification, duplicate, invalid transition
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - auth.go: Current actor
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/warp/jaspel-engine/attendance"
	"github.com/warp/jaspel-engine/factory"
	"github.com/warp/jaspel-engine/generic"
	"github.com/warp/jaspel-engine/recompute"
	"github.com/warp/jaspel-engine/reporting"
	"github.com/warp/jaspel-engine/store/sqlite"
	"github.com/warp/jaspel-engine/validation"
)

const (
	dateLayout  = "2006-01-02"
	monthLayout = "2006-01"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store       *sqlite.Store
	Validation  *validation.Service
	Reporter    *reporting.Reporter
	Invalidator *reporting.Invalidator
	Scheduler   *recompute.Scheduler
	Factory     *factory.Factory
	Calc        *attendance.Calculator
	Clock       generic.Clock
	Logger      *log.Logger

	validate *validator.Validate

	mu              sync.Mutex
	currentScenario string
}

// NewHandler wires the default in-process dependencies: events go to the
// store's event log and reports are cached in memory. cmd/server replaces
// the sink and cache when Redis is configured.
func NewHandler(store *sqlite.Store, clock generic.Clock) *Handler {
	logger := log.Default()
	cache := reporting.NewMemoryCache()
	calc := attendance.NewCalculator(logger)
	invalidator := reporting.NewInvalidator(cache, logger)

	rc := recompute.NewRecomputer(store, calc, 4, logger)
	rc.OnUpdated = func(ctx context.Context, r attendance.Record) {
		invalidator.Invalidate(ctx, r.UserID, r.Date)
	}
	scheduler := recompute.NewScheduler(rc, clock, "")
	scheduler.Runs = store

	return &Handler{
		Store:       store,
		Validation:  validation.NewService(store, store, clock, logger),
		Reporter:    reporting.NewReporter(store, cache, 15*time.Minute, logger),
		Invalidator: invalidator,
		Scheduler:   scheduler,
		Factory:     factory.NewFactory(),
		Calc:        calc,
		Clock:       clock,
		Logger:      logger,
		validate:    validator.New(),
	}
}

// SeedPresets stores the built-in templates and rate cards that are missing.
func (h *Handler) SeedPresets(ctx context.Context) error {
	for _, tpl := range factory.PresetShiftTemplates() {
		if _, err := h.Store.GetShiftTemplate(ctx, tpl.ID); errors.Is(err, generic.ErrTemplateNotFound) {
			if err := h.Store.SaveShiftTemplate(ctx, tpl); err != nil {
				return err
			}
		}
	}
	for _, card := range factory.PresetRateCards() {
		if _, err := h.Store.GetRateCard(ctx, card.ID); errors.Is(err, generic.ErrRateCardNotFound) {
			if err := h.Store.SaveRateCard(ctx, card); err != nil {
				return err
			}
		}
	}
	return nil
}

// =============================================================================
// CATALOG HANDLERS
// =============================================================================

// ListShifts handles GET /api/shifts
func (h *Handler) ListShifts(w http.ResponseWriter, r *http.Request) {
	templates, err := h.Store.ListShiftTemplates(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list shift templates", err)
		return
	}
	out := make([]factory.ShiftTemplateJSON, 0, len(templates))
	for _, t := range templates {
		out = append(out, h.Factory.ShiftTemplateToJSON(t))
	}
	writeJSON(w, http.StatusOK, out)
}

// SaveShift handles POST /api/shifts
func (h *Handler) SaveShift(w http.ResponseWriter, r *http.Request) {
	var req factory.ShiftTemplateJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	tpl, err := h.Factory.ShiftTemplateFromJSON(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid shift template", err)
		return
	}
	if err := h.Store.SaveShiftTemplate(r.Context(), tpl); err != nil {
		writeDomainError(w, "Failed to save shift template", err)
		return
	}
	h.Invalidator.InvalidateAll(r.Context())
	writeJSON(w, http.StatusCreated, h.Factory.ShiftTemplateToJSON(tpl))
}

// CreateSchedule handles POST /api/schedules
func (h *Handler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req DutyScheduleRequest
	if !h.decode(w, r, &req) {
		return
	}
	date, _ := time.ParseInLocation(dateLayout, req.Date, h.loc())
	sched := attendance.DutySchedule{
		ID:              req.ID,
		UserID:          generic.UserID(req.UserID),
		Date:            date,
		ShiftTemplateID: req.ShiftTemplateID,
	}
	if sched.ID == "" {
		sched.ID = uuid.NewString()
	}
	if err := h.Store.SaveDutySchedule(r.Context(), sched); err != nil {
		writeDomainError(w, "Failed to save duty schedule", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"id":                sched.ID,
		"user_id":           req.UserID,
		"date":              req.Date,
		"shift_template_id": sched.ShiftTemplateID,
	})
}

// ListRateCards handles GET /api/rate-cards
func (h *Handler) ListRateCards(w http.ResponseWriter, r *http.Request) {
	cards, err := h.Store.ListRateCards(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list rate cards", err)
		return
	}
	out := make([]factory.RateCardJSON, 0, len(cards))
	for _, c := range cards {
		out = append(out, h.Factory.RateCardToJSON(c))
	}
	writeJSON(w, http.StatusOK, out)
}

// SaveRateCard handles POST /api/rate-cards
func (h *Handler) SaveRateCard(w http.ResponseWriter, r *http.Request) {
	var req factory.RateCardJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	card, err := h.Factory.RateCardFromJSON(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid rate card", err)
		return
	}
	if err := h.Store.SaveRateCard(r.Context(), card); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save rate card", err)
		return
	}
	h.Invalidator.InvalidateAll(r.Context())
	writeJSON(w, http.StatusCreated, h.Factory.RateCardToJSON(card))
}

// =============================================================================
// REPORTS
// =============================================================================

// MonthlyReport handles GET /api/reports/users/{id}/monthly
func (h *Handler) MonthlyReport(w http.ResponseWriter, r *http.Request) {
	user := generic.UserID(chi.URLParam(r, "id"))
	p, err := h.monthParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month", err)
		return
	}
	approvedOnly, _ := strconv.ParseBool(r.URL.Query().Get("approved_only"))

	s, err := h.Reporter.Summary(r.Context(), user, p, reporting.Options{ApprovedOnly: approvedOnly})
	if err != nil {
		writeDomainError(w, "Failed to build report", err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// ArchiveCount handles GET /api/reports/archive?report=attendance&month=2025-03
func (h *Handler) ArchiveCount(w http.ResponseWriter, r *http.Request) {
	p, err := h.monthParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month", err)
		return
	}
	var report reporting.Report
	switch r.URL.Query().Get("report") {
	case "", "attendance":
		report = reporting.AttendanceReport
	case "patient_counts":
		report = reporting.PatientCountReport
	case "validation":
		report = reporting.ValidationReport
	default:
		writeError(w, http.StatusBadRequest, "Unknown report", nil)
		return
	}

	n, err := report.Count(r.Context(), h.Store, p)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count archive", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"report": report.Name, "period": p.Key(), "count": n})
}

// =============================================================================
// ADMIN
// =============================================================================

// TriggerRecompute handles POST /api/admin/recompute
func (h *Handler) TriggerRecompute(w http.ResponseWriter, r *http.Request) {
	var req RecomputeRequest
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}
	p := h.currentMonth()
	if req.Month != "" {
		m, _ := time.ParseInLocation(monthLayout, req.Month, h.loc())
		p = generic.MonthPeriod(m.Year(), m.Month(), h.loc())
	}

	runs := h.Scheduler.RunPeriods(r.Context(), recompute.TriggerManual, p)
	writeJSON(w, http.StatusOK, runs)
}

// ListRecomputeRuns handles GET /api/admin/recompute/runs
func (h *Handler) ListRecomputeRuns(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := h.Store.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list runs", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"runs":     runs,
		"last_run": h.Scheduler.LastRun(),
		"next_run": h.Scheduler.NextRun(),
	})
}

// ResetDatabase handles POST /api/reset (development only)
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	if err := h.SeedPresets(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to seed presets", err)
		return
	}
	h.Invalidator.InvalidateAll(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps engine errors to HTTP status codes.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case generic.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, generic.ErrConcurrentModification),
		errors.Is(err, generic.ErrDuplicateRecord),
		errors.Is(err, generic.ErrTemplateInUse),
		errors.Is(err, generic.ErrInvalidTransition),
		errors.Is(err, generic.ErrAlreadyCheckedOut):
		writeError(w, http.StatusConflict, message, err)
	case generic.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

// decode reads and validates a JSON body. It writes the 400 itself.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", validationDetails(err))
		return false
	}
	return true
}

func validationDetails(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %s", fe.Field(), fe.Tag()))
	}
	return errors.New(strings.Join(msgs, "; "))
}

// checkVersion rejects a write whose client-side version is stale.
func checkVersion(expected *int, rec generic.Reviewable) error {
	if expected == nil || *expected == rec.ReviewState().Version {
		return nil
	}
	return &generic.ConflictError{
		RecordType:      rec.RecordType(),
		RecordID:        rec.RecordID(),
		ExpectedVersion: *expected,
		ExpectedStatus:  rec.ReviewState().Status,
	}
}

func (h *Handler) loc() *time.Location {
	return h.Clock.Location()
}

func (h *Handler) currentMonth() generic.Period {
	now := h.Clock.Now()
	return generic.MonthPeriod(now.Year(), now.Month(), h.loc())
}

// monthParam reads ?month=YYYY-MM, defaulting to the current month.
func (h *Handler) monthParam(r *http.Request) (generic.Period, error) {
	v := r.URL.Query().Get("month")
	if v == "" {
		return h.currentMonth(), nil
	}
	m, err := time.ParseInLocation(monthLayout, v, h.loc())
	if err != nil {
		return generic.Period{}, err
	}
	return generic.MonthPeriod(m.Year(), m.Month(), h.loc()), nil
}

func (h *Handler) parseDate(v string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, v, h.loc())
}

// parseInstant accepts RFC3339, or a time of day placed on date.
// An empty value is now.
func (h *Handler) parseInstant(v string, date time.Time) (time.Time, error) {
	if v == "" {
		return h.Clock.Now(), nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.In(h.loc()), nil
	}
	tod, err := generic.ParseTimeOfDay(v)
	if err != nil {
		return time.Time{}, err
	}
	return tod.On(generic.DateOf(date.In(h.loc()))), nil
}

func (h *Handler) invalidate(r *http.Request, user generic.UserID, dates ...time.Time) {
	for _, d := range dates {
		h.Invalidator.Invalidate(r.Context(), user, d)
	}
}
