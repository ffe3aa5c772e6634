/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	clinic data. Each scenario creates duty schedules, attendance records
	and patient counts dated in the current month so the monthly report
	shows them immediately.

AVAILABLE SCENARIOS:

	morning-week:   Five Pagi shifts, some late, some approved
	night-shift:    Overnight Malam shifts crossing midnight with a break
	shared-day:     Three staff serving the IGD unit on the same day
	invalidation:   An approved record edited afterwards (back to pending)

HOW SCENARIOS WORK:
 1. Reset database (clear all data) and seed presets
 2. Create duty schedules
 3. Check staff in and out through the same recompute path as the API
 4. Approve some records through validation.Service

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "shared-day"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: SeedPresets
  - factory/presets.go: Shift templates and rate cards
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/warp/jaspel-engine/attendance"
	"github.com/warp/jaspel-engine/generic"
	"github.com/warp/jaspel-engine/jaspel"
)

// ScenarioDTO describes a loadable demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// ScenarioRequest selects a scenario to load.
type ScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// scenarioSupervisor approves records in demo data.
var scenarioSupervisor = generic.Actor{ID: "supervisor-demo", Name: "Demo Supervisor", Role: "supervisor"}

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "morning-week",
		Name:        "Morning Week",
		Description: "Five Pagi shifts with late arrivals; the first three approved",
		Category:    "attendance",
	},
	{
		ID:          "night-shift",
		Name:        "Night Shift",
		Description: "Malam shifts crossing midnight with a one hour break",
		Category:    "attendance",
	},
	{
		ID:          "shared-day",
		Name:        "Shared Day",
		Description: "Three staff serving IGD on one day; shared-total jaspel",
		Category:    "jaspel",
	},
	{
		ID:          "invalidation",
		Name:        "Approval Invalidation",
		Description: "An approved patient count edited afterwards returns to pending",
		Category:    "validation",
	},
}

var scenarioLoaders = map[string]func(h *Handler, ctx context.Context) error{
	"morning-week": (*Handler).loadMorningWeekScenario,
	"night-shift":  (*Handler).loadNightShiftScenario,
	"shared-day":   (*Handler).loadSharedDayScenario,
	"invalidation": (*Handler).loadInvalidationScenario,
}

// ListScenarios handles GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario handles GET /api/scenarios/current
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	current := h.CurrentScenario()
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario handles POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req ScenarioRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.loadScenario(r.Context(), req.ScenarioID); err != nil {
		if errors.Is(err, errUnknownScenario) {
			writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

var errUnknownScenario = errors.New("unknown scenario")

// CurrentScenario returns the last loaded scenario ID, empty if none.
func (h *Handler) CurrentScenario() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.currentScenario
}

func (h *Handler) loadScenario(ctx context.Context, id string) error {
	load, ok := scenarioLoaders[id]
	if !ok {
		return errUnknownScenario
	}

	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()

	if err := h.Store.Reset(ctx); err != nil {
		return err
	}
	if err := h.SeedPresets(ctx); err != nil {
		return err
	}
	if err := load(h, ctx); err != nil {
		return err
	}
	h.Invalidator.InvalidateAll(ctx)

	h.mu.Lock()
	h.currentScenario = id
	h.mu.Unlock()
	h.Logger.Printf("[Scenarios] Loaded %s", id)
	return nil
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadMorningWeekScenario(ctx context.Context) error {
	user := generic.UserID("nurse-ani")
	arrivals := []string{"07:00", "07:02", "07:20", "06:55", "08:00"}
	for i, in := range arrivals {
		date := h.scenarioDay(i)
		if err := h.scheduleDay(ctx, user, date, "pagi"); err != nil {
			return err
		}
		rec, err := h.attendDay(ctx, user, "Ani", date, in, "14:00", false)
		if err != nil {
			return err
		}
		if i < 3 {
			if _, err := h.Validation.Approve(ctx, &rec, scenarioSupervisor, ""); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *Handler) loadNightShiftScenario(ctx context.Context) error {
	user := generic.UserID("nurse-budi")
	for i := 0; i < 3; i++ {
		date := h.scenarioDay(i)
		if err := h.scheduleDay(ctx, user, date, "malam"); err != nil {
			return err
		}
		if _, err := h.attendDay(ctx, user, "Budi", date, "21:00", "07:00", true); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadSharedDayScenario(ctx context.Context) error {
	date := h.scenarioDay(0)
	staff := []struct {
		user      generic.UserID
		name      string
		general   int
		insurance int
	}{
		{"dr-citra", "Citra", 6, 4},
		{"dr-dewi", "Dewi", 3, 2},
		{"nurse-ani", "Ani", 2, 1},
	}
	for _, s := range staff {
		if err := h.scheduleDay(ctx, s.user, date, "pagi"); err != nil {
			return err
		}
		if _, err := h.countDay(ctx, s.user, s.name, date, "IGD", s.general, s.insurance); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadInvalidationScenario(ctx context.Context) error {
	user := generic.UserID("dr-citra")
	date := h.scenarioDay(0)
	if err := h.scheduleDay(ctx, user, date, "pagi"); err != nil {
		return err
	}
	c, err := h.countDay(ctx, user, "Citra", date, "Poli Umum", 20, 10)
	if err != nil {
		return err
	}
	if _, err := h.Validation.Approve(ctx, &c, scenarioSupervisor, "checked against register"); err != nil {
		return err
	}

	after := c
	if err := after.SetCounts(25, 10); err != nil {
		return err
	}
	after.UpdatedAt = h.Clock.Now()
	_, err = h.Validation.Save(ctx, &c, &after, generic.Actor{ID: string(user), Name: "Citra", Role: "doctor"})
	return err
}

// =============================================================================
// HELPERS
// =============================================================================

// scenarioDay is the i-th day of the current month.
func (h *Handler) scenarioDay(i int) time.Time {
	p := h.currentMonth()
	return p.Start.AddDate(0, 0, i)
}

func (h *Handler) scheduleDay(ctx context.Context, user generic.UserID, date time.Time, templateID string) error {
	return h.Store.SaveDutySchedule(ctx, attendance.DutySchedule{
		ID:              fmt.Sprintf("%s-%s", user, date.Format(dateLayout)),
		UserID:          user,
		Date:            date,
		ShiftTemplateID: templateID,
	})
}

// attendDay checks user in and out on date. With overnight the check-out
// falls on the next day.
func (h *Handler) attendDay(ctx context.Context, user generic.UserID, name string, date time.Time, in, out string, overnight bool) (attendance.Record, error) {
	checkIn := generic.MustParseTimeOfDay(in).On(date)
	outDay := date
	if overnight {
		outDay = date.AddDate(0, 0, 1)
	}
	checkOut := generic.MustParseTimeOfDay(out).On(outDay)

	sched, err := h.Store.ScheduleFor(ctx, user, date)
	if err != nil {
		return attendance.Record{}, err
	}
	id := generic.RecordID(fmt.Sprintf("att-%s-%s", user, date.Format(dateLayout)))
	rec := attendance.NewCheckIn(id, user, name, date, checkIn, 1)
	rec.WithinGeofence = true
	if sched != nil {
		rec.DutyScheduleID = &sched.ID
	}
	if err := rec.CheckOutAt(checkOut); err != nil {
		return attendance.Record{}, err
	}
	if rec, err = h.recompute(ctx, rec); err != nil {
		return attendance.Record{}, err
	}
	rec.CreatedAt, rec.UpdatedAt = checkIn, checkOut
	if err := h.Store.CreateAttendance(ctx, rec); err != nil {
		return attendance.Record{}, err
	}
	return rec, nil
}

func (h *Handler) countDay(ctx context.Context, user generic.UserID, name string, date time.Time, unit string, general, insurance int) (jaspel.DailyPatientCount, error) {
	id := generic.RecordID(fmt.Sprintf("cnt-%s-%s", user, date.Format(dateLayout)))
	c, err := jaspel.NewDailyPatientCount(id, user, name, date, unit, general, insurance)
	if err != nil {
		return c, err
	}
	sched, err := h.Store.ScheduleFor(ctx, user, date)
	if err != nil {
		return c, err
	}
	if sched != nil {
		c.DutyScheduleID = &sched.ID
	}
	now := h.Clock.Now()
	c.CreatedAt, c.UpdatedAt = now, now
	if err := h.Store.CreatePatientCount(ctx, c); err != nil {
		return c, err
	}
	return c, nil
}
