package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/warp/jaspel-engine/generic"
	"github.com/warp/jaspel-engine/jaspel"
	"github.com/warp/jaspel-engine/validation"
)

// =============================================================================
// PATIENT COUNT HANDLERS
// =============================================================================

// ListPatientCounts handles GET /api/patient-counts?user=u1&month=2025-03
func (h *Handler) ListPatientCounts(w http.ResponseWriter, r *http.Request) {
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

	counts, err := h.Store.PatientCountsFor(r.Context(), generic.UserID(user), p)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list patient counts", err)
		return
	}
	out := make([]PatientCountDTO, 0, len(counts))
	for _, c := range counts {
		out = append(out, toPatientCountDTO(c))
	}
	writeJSON(w, http.StatusOK, out)
}

// GetPatientCount handles GET /api/patient-counts/{id}
func (h *Handler) GetPatientCount(w http.ResponseWriter, r *http.Request) {
	c, err := h.Store.GetPatientCount(r.Context(), generic.RecordID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Patient count not found", err)
		return
	}
	writeJSON(w, http.StatusOK, toPatientCountDTO(c))
}

// CreatePatientCount handles POST /api/patient-counts
func (h *Handler) CreatePatientCount(w http.ResponseWriter, r *http.Request) {
	var req PatientCountRequest
	if !h.decode(w, r, &req) {
		return
	}
	ctx := r.Context()
	date, err := h.parseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}

	c, err := jaspel.NewDailyPatientCount(generic.RecordID(uuid.NewString()), generic.UserID(req.UserID),
		req.StaffName, date, req.ClinicUnit, req.GeneralCount, req.InsuranceCount)
	if err != nil {
		writeDomainError(w, "Invalid patient count", err)
		return
	}
	c.RateCardID = req.RateCardID
	c.DutyScheduleID = req.DutyScheduleID
	c.ShiftLabel = req.ShiftLabel
	if c.DutyScheduleID == nil {
		sched, err := h.Store.ScheduleFor(ctx, c.UserID, date)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to load duty schedule", err)
			return
		}
		if sched != nil {
			c.DutyScheduleID = &sched.ID
		}
	}
	now := h.Clock.Now()
	c.CreatedAt, c.UpdatedAt = now, now

	if err := h.Store.CreatePatientCount(ctx, c); err != nil {
		writeDomainError(w, "Failed to create patient count", err)
		return
	}
	h.invalidate(r, c.UserID, c.Date)
	writeJSON(w, http.StatusCreated, toPatientCountDTO(c))
}

// EditPatientCount handles PUT /api/patient-counts/{id}
func (h *Handler) EditPatientCount(w http.ResponseWriter, r *http.Request) {
	var req PatientCountEditRequest
	if !h.decode(w, r, &req) {
		return
	}
	ctx := r.Context()
	before, err := h.Store.GetPatientCount(ctx, generic.RecordID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Patient count not found", err)
		return
	}
	if before.DeletedAt != nil {
		writeDomainError(w, "Patient count not found", generic.ErrRecordNotFound)
		return
	}
	if err := checkVersion(req.Version, &before); err != nil {
		writeDomainError(w, "Patient count was modified", err)
		return
	}

	after := before
	if req.Date != nil {
		d, err := h.parseDate(*req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date", err)
			return
		}
		after.Date = d
	}
	general, insurance := after.GeneralCount, after.InsuranceCount
	if req.GeneralCount != nil {
		general = *req.GeneralCount
	}
	if req.InsuranceCount != nil {
		insurance = *req.InsuranceCount
	}
	if err := after.SetCounts(general, insurance); err != nil {
		writeDomainError(w, "Invalid patient count", err)
		return
	}
	if req.ClinicUnit != nil {
		after.ClinicUnit = *req.ClinicUnit
	}
	if req.RateCardID != nil {
		after.RateCardID = emptyToNil(*req.RateCardID)
	}
	if req.DutyScheduleID != nil {
		after.DutyScheduleID = emptyToNil(*req.DutyScheduleID)
	}
	if req.ShiftLabel != nil {
		after.ShiftLabel = *req.ShiftLabel
	}
	after.UpdatedAt = h.Clock.Now()

	t, err := h.Validation.Save(ctx, &before, &after, ActorFrom(ctx))
	if err != nil {
		writeDomainError(w, "Failed to save patient count", err)
		return
	}
	h.invalidate(r, after.UserID, before.Date, after.Date)
	writeJSON(w, http.StatusOK, WriteResponse{Record: toPatientCountDTO(after), Transition: toTransitionDTO(t)})
}

// ApprovePatientCount handles POST /api/patient-counts/{id}/approve
func (h *Handler) ApprovePatientCount(w http.ResponseWriter, r *http.Request) {
	var req ReviewRequest
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}
	h.reviewPatientCount(w, r, req.Version, func(ctx context.Context, rec generic.Reviewable, actor generic.Actor) (validation.Transition, error) {
		return h.Validation.Approve(ctx, rec, actor, req.Note)
	})
}

// RejectPatientCount handles POST /api/patient-counts/{id}/reject
func (h *Handler) RejectPatientCount(w http.ResponseWriter, r *http.Request) {
	var req ReviewRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.reviewPatientCount(w, r, req.Version, func(ctx context.Context, rec generic.Reviewable, actor generic.Actor) (validation.Transition, error) {
		return h.Validation.Reject(ctx, rec, actor, req.Note)
	})
}

// SetPatientCountStatus handles POST /api/patient-counts/{id}/status
func (h *Handler) SetPatientCountStatus(w http.ResponseWriter, r *http.Request) {
	var req SetStatusRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.reviewPatientCount(w, r, req.Version, func(ctx context.Context, rec generic.Reviewable, actor generic.Actor) (validation.Transition, error) {
		return h.Validation.SetStatus(ctx, rec, generic.ValidationStatus(req.Status), actor, req.Note)
	})
}

func (h *Handler) reviewPatientCount(w http.ResponseWriter, r *http.Request, version *int, action reviewAction) {
	ctx := r.Context()
	c, err := h.Store.GetPatientCount(ctx, generic.RecordID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Patient count not found", err)
		return
	}
	if c.DeletedAt != nil {
		writeDomainError(w, "Patient count not found", generic.ErrRecordNotFound)
		return
	}
	if err := checkVersion(version, &c); err != nil {
		writeDomainError(w, "Patient count was modified", err)
		return
	}

	t, err := action(ctx, &c, ActorFrom(ctx))
	if err != nil {
		writeDomainError(w, "Review failed", err)
		return
	}
	h.invalidate(r, c.UserID, c.Date)
	writeJSON(w, http.StatusOK, WriteResponse{Record: toPatientCountDTO(c), Transition: toTransitionDTO(t)})
}

// PatientCountEvents handles GET /api/patient-counts/{id}/events
func (h *Handler) PatientCountEvents(w http.ResponseWriter, r *http.Request) {
	h.recordEvents(w, r, generic.RecordPatientCount)
}

// =============================================================================
// FEES
// =============================================================================

// PatientCountFee handles GET /api/patient-counts/{id}/fee
func (h *Handler) PatientCountFee(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c, err := h.Store.GetPatientCount(ctx, generic.RecordID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Patient count not found", err)
		return
	}
	cards, err := h.Store.ListRateCards(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load rate cards", err)
		return
	}
	shiftName, err := h.Store.ScheduleShiftName(ctx, c.DutyScheduleID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load duty schedule", err)
		return
	}

	fee, card, how := c.Fee(cards, shiftName)
	dto := FeeDTO{
		CountID:         string(c.ID),
		Resolution:      string(how),
		Total:           fee.Total,
		SittingFee:      fee.SittingFee,
		GeneralFee:      fee.GeneralFee,
		InsuranceFee:    fee.InsuranceFee,
		GeneralExcess:   fee.GeneralExcess,
		InsuranceExcess: fee.InsuranceExcess,
		ExcessCount:     fee.ExcessCount,
	}
	if card != nil {
		dto.RateCardID = card.ID
	}
	writeJSON(w, http.StatusOK, dto)
}

// SharedFee handles POST /api/fees/shared
func (h *Handler) SharedFee(w http.ResponseWriter, r *http.Request) {
	var req SharedFeeRequest
	if !h.decode(w, r, &req) {
		return
	}
	card, err := h.Store.GetRateCard(r.Context(), req.RateCardID)
	if err != nil {
		writeDomainError(w, "Rate card not found", err)
		return
	}

	contributions := make(map[generic.UserID]int, len(req.Contributions))
	for user, n := range req.Contributions {
		contributions[generic.UserID(user)] = n
	}
	shares, total := jaspel.SplitDay(&card, contributions)
	writeJSON(w, http.StatusOK, toSharedFeeDTO(card.ID, shares, total))
}

// SharedFeeForDay handles GET /api/fees/shared?date=2025-03-10&unit=IGD[&rate_card_id=]
//
// Each staff member's contribution is their stored total count for the
// day and unit. Without rate_card_id the card is resolved from the first
// count of the day.
func (h *Handler) SharedFeeForDay(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	date, err := h.parseDate(q.Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}

	counts, err := h.Store.PatientCountsOn(ctx, date, q.Get("unit"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load patient counts", err)
		return
	}

	var card *jaspel.FeeRateCard
	if id := q.Get("rate_card_id"); id != "" {
		c, err := h.Store.GetRateCard(ctx, id)
		if err != nil {
			writeDomainError(w, "Rate card not found", err)
			return
		}
		card = &c
	} else if len(counts) > 0 {
		cards, err := h.Store.ListRateCards(ctx)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to load rate cards", err)
			return
		}
		shiftName, err := h.Store.ScheduleShiftName(ctx, counts[0].DutyScheduleID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to load duty schedule", err)
			return
		}
		card, _ = jaspel.ResolveRateCard(cards, counts[0].Ref(shiftName))
	}

	contributions := make(map[generic.UserID]int, len(counts))
	for _, c := range counts {
		contributions[c.UserID] += c.Total()
	}
	shares, total := jaspel.SplitDay(card, contributions)

	cardID := ""
	if card != nil {
		cardID = card.ID
	}
	writeJSON(w, http.StatusOK, toSharedFeeDTO(cardID, shares, total))
}
