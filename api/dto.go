/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TIMES:
  Instants accept RFC3339 ("2025-03-10T07:02:00+07:00") or a time of day
  ("07:02"), which is placed on the record's date in the configured zone.
  Dates are "2006-01-02", months "2006-01".

VALIDATION:
  Request types carry go-playground/validator tags; handlers call
  h.decode which rejects malformed bodies and failed tags with 400.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/factory.go: ShiftTemplateJSON and RateCardJSON
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/jaspel-engine/attendance"
	"github.com/warp/jaspel-engine/generic"
	"github.com/warp/jaspel-engine/jaspel"
	"github.com/warp/jaspel-engine/validation"
)

// =============================================================================
// ATTENDANCE
// =============================================================================

type CheckInRequest struct {
	UserID          string  `json:"user_id" validate:"required"`
	StaffName       string  `json:"staff_name"`
	At              string  `json:"at"` // RFC3339; default now
	ShiftTemplateID *string `json:"shift_template_id"`
	DutyScheduleID  *string `json:"duty_schedule_id"`
	WithinGeofence  bool    `json:"within_geofence"`
}

type CheckOutRequest struct {
	At      string `json:"at"` // RFC3339 or HH:MM; default now
	Version *int   `json:"version"`
}

// CorrectionRequest patches an attendance record. Absent fields are kept.
type CorrectionRequest struct {
	Version            *int    `json:"version"`
	Date               *string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	CheckIn            *string `json:"check_in"`
	CheckOut           *string `json:"check_out"`
	ShiftTemplateID    *string `json:"shift_template_id"`
	DutyScheduleID     *string `json:"duty_schedule_id"`
	LogicalWorkMinutes *int    `json:"logical_work_minutes" validate:"omitempty,gte=0"`
	ClearCheckOut      bool    `json:"clear_check_out"`
	ClearOverride      bool    `json:"clear_logical_work_minutes"`
	StaffName          *string `json:"staff_name"`
	WithinGeofence     *bool   `json:"within_geofence"`
}

type AttendanceDTO struct {
	ID                   string          `json:"id"`
	UserID               string          `json:"user_id"`
	StaffName            string          `json:"staff_name"`
	Date                 string          `json:"date"`
	ShiftSequence        int             `json:"shift_sequence"`
	CheckIn              *time.Time      `json:"check_in,omitempty"`
	CheckOut             *time.Time      `json:"check_out,omitempty"`
	ShiftTemplateID      *string         `json:"shift_template_id,omitempty"`
	DutyScheduleID       *string         `json:"duty_schedule_id,omitempty"`
	WithinGeofence       bool            `json:"within_geofence"`
	LogicalWorkMinutes   *int            `json:"logical_work_minutes,omitempty"`
	WorkDurationMinutes  *int            `json:"work_duration_minutes"`
	TargetMinutes        int             `json:"target_minutes"`
	ShortfallMinutes     int             `json:"shortfall_minutes"`
	AttendancePercentage decimal.Decimal `json:"attendance_percentage"`
	ReviewDTO
}

func toAttendanceDTO(r attendance.Record) AttendanceDTO {
	return AttendanceDTO{
		ID:                   string(r.ID),
		UserID:               string(r.UserID),
		StaffName:            r.StaffName,
		Date:                 r.Date.Format(dateLayout),
		ShiftSequence:        r.ShiftSequence,
		CheckIn:              r.CheckIn,
		CheckOut:             r.CheckOut,
		ShiftTemplateID:      r.ShiftTemplateID,
		DutyScheduleID:       r.DutyScheduleID,
		WithinGeofence:       r.WithinGeofence,
		LogicalWorkMinutes:   r.LogicalWorkMinutes,
		WorkDurationMinutes:  r.WorkDurationMinutes,
		TargetMinutes:        r.TargetMinutes,
		ShortfallMinutes:     r.ShortfallMinutes,
		AttendancePercentage: r.AttendancePercentage,
		ReviewDTO:            toReviewDTO(r.Review),
	}
}

// =============================================================================
// PATIENT COUNTS
// =============================================================================

type PatientCountRequest struct {
	UserID         string  `json:"user_id" validate:"required"`
	StaffName      string  `json:"staff_name"`
	Date           string  `json:"date" validate:"required,datetime=2006-01-02"`
	ClinicUnit     string  `json:"clinic_unit"`
	GeneralCount   int     `json:"general_count" validate:"gte=0"`
	InsuranceCount int     `json:"insurance_count" validate:"gte=0"`
	RateCardID     *string `json:"rate_card_id"`
	DutyScheduleID *string `json:"duty_schedule_id"`
	ShiftLabel     string  `json:"shift_label"`
}

// PatientCountEditRequest patches a count. Absent fields are kept.
type PatientCountEditRequest struct {
	Version        *int    `json:"version"`
	Date           *string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	ClinicUnit     *string `json:"clinic_unit"`
	GeneralCount   *int    `json:"general_count" validate:"omitempty,gte=0"`
	InsuranceCount *int    `json:"insurance_count" validate:"omitempty,gte=0"`
	RateCardID     *string `json:"rate_card_id"`
	DutyScheduleID *string `json:"duty_schedule_id"`
	ShiftLabel     *string `json:"shift_label"`
}

type PatientCountDTO struct {
	ID             string  `json:"id"`
	UserID         string  `json:"user_id"`
	StaffName      string  `json:"staff_name"`
	Date           string  `json:"date"`
	ClinicUnit     string  `json:"clinic_unit"`
	GeneralCount   int     `json:"general_count"`
	InsuranceCount int     `json:"insurance_count"`
	TotalCount     int     `json:"total_count"`
	RateCardID     *string `json:"rate_card_id,omitempty"`
	DutyScheduleID *string `json:"duty_schedule_id,omitempty"`
	ShiftLabel     string  `json:"shift_label,omitempty"`
	ReviewDTO
}

func toPatientCountDTO(c jaspel.DailyPatientCount) PatientCountDTO {
	return PatientCountDTO{
		ID:             string(c.ID),
		UserID:         string(c.UserID),
		StaffName:      c.StaffName,
		Date:           c.Date.Format(dateLayout),
		ClinicUnit:     c.ClinicUnit,
		GeneralCount:   c.GeneralCount,
		InsuranceCount: c.InsuranceCount,
		TotalCount:     c.Total(),
		RateCardID:     c.RateCardID,
		DutyScheduleID: c.DutyScheduleID,
		ShiftLabel:     c.ShiftLabel,
		ReviewDTO:      toReviewDTO(c.Review),
	}
}

// FeeDTO is the single-staff breakdown of one count.
type FeeDTO struct {
	CountID         string          `json:"count_id"`
	RateCardID      string          `json:"rate_card_id,omitempty"`
	Resolution      string          `json:"resolution"`
	Total           decimal.Decimal `json:"total"`
	SittingFee      decimal.Decimal `json:"sitting_fee"`
	GeneralFee      decimal.Decimal `json:"general_fee"`
	InsuranceFee    decimal.Decimal `json:"insurance_fee"`
	GeneralExcess   int             `json:"general_excess"`
	InsuranceExcess int             `json:"insurance_excess"`
	ExcessCount     int             `json:"excess_count"`
}

// SharedFeeRequest runs shared-total mode over explicit contributions.
type SharedFeeRequest struct {
	RateCardID    string         `json:"rate_card_id" validate:"required"`
	Contributions map[string]int `json:"contributions" validate:"required,min=1,dive,gte=0"`
}

type StaffShareDTO struct {
	UserID          string          `json:"user_id"`
	Contribution    int             `json:"contribution"`
	Total           decimal.Decimal `json:"total"`
	SittingFee      decimal.Decimal `json:"sitting_fee"`
	Fee             decimal.Decimal `json:"fee"`
	ExcessCount     int             `json:"excess_count"`
	AggregateExcess int             `json:"aggregate_excess"`
}

type SharedFeeDTO struct {
	RateCardID string          `json:"rate_card_id,omitempty"`
	Aggregate  int             `json:"aggregate"`
	Shares     []StaffShareDTO `json:"shares"`
	Total      decimal.Decimal `json:"total"`
}

func toSharedFeeDTO(cardID string, shares []jaspel.StaffShare, total decimal.Decimal) SharedFeeDTO {
	dto := SharedFeeDTO{RateCardID: cardID, Total: total, Shares: make([]StaffShareDTO, 0, len(shares))}
	for _, s := range shares {
		dto.Aggregate += max(s.Contribution, 0)
		dto.Shares = append(dto.Shares, StaffShareDTO{
			UserID:          string(s.UserID),
			Contribution:    s.Contribution,
			Total:           s.Fee.Total,
			SittingFee:      s.Fee.SittingFee,
			Fee:             s.Fee.Fee,
			ExcessCount:     s.Fee.ExcessCount,
			AggregateExcess: s.Fee.AggregateExcess,
		})
	}
	return dto
}

// =============================================================================
// REVIEW
// =============================================================================

type ReviewDTO struct {
	ValidationStatus string     `json:"validation_status"`
	WorkflowStatus   string     `json:"workflow_status"`
	ValidatedBy      *string    `json:"validated_by,omitempty"`
	ValidatedAt      *time.Time `json:"validated_at,omitempty"`
	Notes            string     `json:"notes,omitempty"`
	Version          int        `json:"version"`
}

func toReviewDTO(r generic.Review) ReviewDTO {
	return ReviewDTO{
		ValidationStatus: string(r.Status),
		WorkflowStatus:   string(r.WorkflowStatus),
		ValidatedBy:      r.ValidatedBy,
		ValidatedAt:      r.ValidatedAt,
		Notes:            r.Notes,
		Version:          r.Version,
	}
}

type ReviewRequest struct {
	Note    string `json:"note"`
	Version *int   `json:"version"`
}

type SetStatusRequest struct {
	Status  string `json:"status" validate:"required,oneof=pending approved rejected"`
	Note    string `json:"note"`
	Version *int   `json:"version"`
}

// TransitionDTO reports what a write did to the review state.
type TransitionDTO struct {
	From        string   `json:"from"`
	To          string   `json:"to"`
	Invalidated bool     `json:"invalidated"`
	Changed     []string `json:"changed_fields,omitempty"`
}

func toTransitionDTO(t validation.Transition) TransitionDTO {
	return TransitionDTO{
		From:        string(t.From),
		To:          string(t.To),
		Invalidated: t.Invalidated(),
		Changed:     t.Changed,
	}
}

// WriteResponse wraps a written record with its transition.
type WriteResponse struct {
	Record     any           `json:"record"`
	Transition TransitionDTO `json:"transition"`
}

// =============================================================================
// CATALOG, ADMIN, ERRORS
// =============================================================================

type DutyScheduleRequest struct {
	ID              string `json:"id"`
	UserID          string `json:"user_id" validate:"required"`
	Date            string `json:"date" validate:"required,datetime=2006-01-02"`
	ShiftTemplateID string `json:"shift_template_id" validate:"required"`
}

type RecomputeRequest struct {
	Month string `json:"month" validate:"omitempty,datetime=2006-01"`
}

// ErrorResponse is the standard error format.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
