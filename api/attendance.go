package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/warp/jaspel-engine/attendance"
	"github.com/warp/jaspel-engine/generic"
	"github.com/warp/jaspel-engine/validation"
)

// =============================================================================
// ATTENDANCE HANDLERS
// =============================================================================

// ListAttendance handles GET /api/attendance?user=u1&month=2025-03
func (h *Handler) ListAttendance(w http.ResponseWriter, r *http.Request) {
	user := r.URL.Query().Get("user")
	if user == "" {
		writeError(w, http.StatusBadRequest, "user is required", nil)
		return
	}
	p, err := h.monthParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month", err)
		return
	}

	records, err := h.Store.AttendanceFor(r.Context(), generic.UserID(user), p)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list attendance", err)
		return
	}
	out := make([]AttendanceDTO, 0, len(records))
	for _, rec := range records {
		out = append(out, toAttendanceDTO(rec))
	}
	writeJSON(w, http.StatusOK, out)
}

// GetAttendance handles GET /api/attendance/{id}
func (h *Handler) GetAttendance(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Store.GetAttendance(r.Context(), generic.RecordID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Attendance not found", err)
		return
	}
	writeJSON(w, http.StatusOK, toAttendanceDTO(rec))
}

// CheckIn handles POST /api/attendance/check-in
//
// Creates a pending record dated on the check-in's local date. Without an
// explicit template or schedule, the staff member's duty schedule for that
// date is linked. A second check-in while a record is still open is rejected.
func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	var req CheckInRequest
	if !h.decode(w, r, &req) {
		return
	}
	ctx := r.Context()
	user := generic.UserID(req.UserID)

	at, err := h.parseInstant(req.At, h.Clock.Now())
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid check-in time", err)
		return
	}
	date := generic.DateOf(at)

	open, err := h.Store.OpenAttendance(ctx, user, date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load attendance", err)
		return
	}
	if open != nil {
		writeError(w, http.StatusConflict, "Already checked in", generic.ErrDuplicateRecord)
		return
	}
	seq, err := h.Store.NextShiftSequence(ctx, user, date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load attendance", err)
		return
	}

	rec := attendance.NewCheckIn(generic.RecordID(uuid.NewString()), user, req.StaffName, date, at, seq)
	rec.WithinGeofence = req.WithinGeofence
	rec.ShiftTemplateID = req.ShiftTemplateID
	rec.DutyScheduleID = req.DutyScheduleID
	if rec.ShiftTemplateID == nil && rec.DutyScheduleID == nil {
		sched, err := h.Store.ScheduleFor(ctx, user, date)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to load duty schedule", err)
			return
		}
		if sched != nil {
			rec.DutyScheduleID = &sched.ID
		}
	}
	if rec, err = h.recompute(ctx, rec); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load shift templates", err)
		return
	}

	if err := h.Store.CreateAttendance(ctx, rec); err != nil {
		writeDomainError(w, "Failed to check in", err)
		return
	}
	h.invalidate(r, rec.UserID, rec.Date)
	writeJSON(w, http.StatusCreated, toAttendanceDTO(rec))
}

// CheckOut handles POST /api/attendance/{id}/check-out
func (h *Handler) CheckOut(w http.ResponseWriter, r *http.Request) {
	var req CheckOutRequest
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}
	h.editAttendance(w, r, req.Version, func(rec *attendance.Record) error {
		at, err := h.parseInstant(req.At, rec.Date)
		if err != nil {
			return err
		}
		return rec.CheckOutAt(at)
	})
}

// CorrectAttendance handles PUT /api/attendance/{id}
func (h *Handler) CorrectAttendance(w http.ResponseWriter, r *http.Request) {
	var req CorrectionRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.editAttendance(w, r, req.Version, func(rec *attendance.Record) error {
		if req.Date != nil {
			d, err := h.parseDate(*req.Date)
			if err != nil {
				return err
			}
			rec.Date = d
		}
		if req.CheckIn != nil {
			t, err := h.parseInstant(*req.CheckIn, rec.Date)
			if err != nil {
				return err
			}
			rec.CheckIn = &t
		}
		if req.ClearCheckOut {
			rec.CheckOut = nil
		} else if req.CheckOut != nil {
			t, err := h.parseInstant(*req.CheckOut, rec.Date)
			if err != nil {
				return err
			}
			rec.CheckOut = &t
		}
		if req.ShiftTemplateID != nil {
			rec.ShiftTemplateID = emptyToNil(*req.ShiftTemplateID)
		}
		if req.DutyScheduleID != nil {
			rec.DutyScheduleID = emptyToNil(*req.DutyScheduleID)
		}
		if req.ClearOverride {
			rec.LogicalWorkMinutes = nil
		} else if req.LogicalWorkMinutes != nil {
			m := *req.LogicalWorkMinutes
			rec.LogicalWorkMinutes = &m
		}
		if req.StaffName != nil {
			rec.StaffName = *req.StaffName
		}
		if req.WithinGeofence != nil {
			rec.WithinGeofence = *req.WithinGeofence
		}
		return nil
	})
}

// DeleteAttendance handles DELETE /api/attendance/{id}
func (h *Handler) DeleteAttendance(w http.ResponseWriter, r *http.Request) {
	h.editAttendance(w, r, nil, func(rec *attendance.Record) error {
		if rec.IsDeleted() {
			return generic.ErrRecordNotFound
		}
		rec.SoftDelete(h.Clock.Now())
		return nil
	})
}

// editAttendance loads a record, applies edit to a copy, recomputes the
// derived fields and saves through the validation write path.
func (h *Handler) editAttendance(w http.ResponseWriter, r *http.Request, version *int, edit func(*attendance.Record) error) {
	ctx := r.Context()
	before, err := h.Store.GetAttendance(ctx, generic.RecordID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Attendance not found", err)
		return
	}
	if before.IsDeleted() {
		writeDomainError(w, "Attendance not found", generic.ErrRecordNotFound)
		return
	}
	if err := checkVersion(version, &before); err != nil {
		writeDomainError(w, "Attendance was modified", err)
		return
	}

	after := before
	if err := edit(&after); err != nil {
		writeDomainError(w, "Invalid attendance edit", err)
		return
	}
	after.UpdatedAt = h.Clock.Now()
	if after, err = h.recompute(ctx, after); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load shift templates", err)
		return
	}

	t, err := h.Validation.Save(ctx, &before, &after, ActorFrom(ctx))
	if err != nil {
		writeDomainError(w, "Failed to save attendance", err)
		return
	}
	h.invalidate(r, after.UserID, before.Date, after.Date)
	if before.UserID != after.UserID {
		h.invalidate(r, before.UserID, before.Date)
	}
	writeJSON(w, http.StatusOK, WriteResponse{Record: toAttendanceDTO(after), Transition: toTransitionDTO(t)})
}

// recompute fills the derived fields against the current catalog.
func (h *Handler) recompute(ctx context.Context, rec attendance.Record) (attendance.Record, error) {
	catalog, err := h.Store.Catalog(ctx)
	if err != nil {
		return rec, err
	}
	next, _ := attendance.Recompute(h.Calc, rec, attendance.TemplateFor(rec, catalog))
	return next, nil
}

// =============================================================================
// REVIEW HANDLERS (shared by both record types)
// =============================================================================

type reviewAction func(ctx context.Context, rec generic.Reviewable, actor generic.Actor) (validation.Transition, error)

// ApproveAttendance handles POST /api/attendance/{id}/approve
func (h *Handler) ApproveAttendance(w http.ResponseWriter, r *http.Request) {
	var req ReviewRequest
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}
	h.reviewAttendance(w, r, req.Version, func(ctx context.Context, rec generic.Reviewable, actor generic.Actor) (validation.Transition, error) {
		return h.Validation.Approve(ctx, rec, actor, req.Note)
	})
}

// RejectAttendance handles POST /api/attendance/{id}/reject
func (h *Handler) RejectAttendance(w http.ResponseWriter, r *http.Request) {
	var req ReviewRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.reviewAttendance(w, r, req.Version, func(ctx context.Context, rec generic.Reviewable, actor generic.Actor) (validation.Transition, error) {
		return h.Validation.Reject(ctx, rec, actor, req.Note)
	})
}

// SetAttendanceStatus handles POST /api/attendance/{id}/status
func (h *Handler) SetAttendanceStatus(w http.ResponseWriter, r *http.Request) {
	var req SetStatusRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.reviewAttendance(w, r, req.Version, func(ctx context.Context, rec generic.Reviewable, actor generic.Actor) (validation.Transition, error) {
		return h.Validation.SetStatus(ctx, rec, generic.ValidationStatus(req.Status), actor, req.Note)
	})
}

func (h *Handler) reviewAttendance(w http.ResponseWriter, r *http.Request, version *int, action reviewAction) {
	ctx := r.Context()
	rec, err := h.Store.GetAttendance(ctx, generic.RecordID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Attendance not found", err)
		return
	}
	if rec.IsDeleted() {
		writeDomainError(w, "Attendance not found", generic.ErrRecordNotFound)
		return
	}
	if err := checkVersion(version, &rec); err != nil {
		writeDomainError(w, "Attendance was modified", err)
		return
	}

	t, err := action(ctx, &rec, ActorFrom(ctx))
	if err != nil {
		writeDomainError(w, "Review failed", err)
		return
	}
	h.invalidate(r, rec.UserID, rec.Date)
	writeJSON(w, http.StatusOK, WriteResponse{Record: toAttendanceDTO(rec), Transition: toTransitionDTO(t)})
}

// AttendanceEvents handles GET /api/attendance/{id}/events
func (h *Handler) AttendanceEvents(w http.ResponseWriter, r *http.Request) {
	h.recordEvents(w, r, generic.RecordAttendance)
}

func (h *Handler) recordEvents(w http.ResponseWriter, r *http.Request, recordType generic.RecordType) {
	id := generic.RecordID(chi.URLParam(r, "id"))
	events, err := h.Store.Query(r.Context(), generic.EventFilter{RecordType: &recordType, RecordID: &id})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load events", err)
		return
	}
	if events == nil {
		events = []generic.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

func emptyToNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
