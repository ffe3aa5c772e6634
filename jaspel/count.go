package jaspel

import (
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/jaspel-engine/generic"
)

// =============================================================================
// DAILY PATIENT COUNT
// =============================================================================

// DailyPatientCount is one row per staff / date / clinic unit.
// GeneralCount and InsuranceCount are never negative.
type DailyPatientCount struct {
	ID         generic.RecordID
	UserID     generic.UserID
	StaffName  string
	Date       time.Time
	ClinicUnit string

	GeneralCount   int
	InsuranceCount int

	// Rate card resolution inputs.
	RateCardID     *string
	DutyScheduleID *string
	ShiftLabel     string

	generic.Review

	DeletedAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewDailyPatientCount creates a pending count. Negative counts are rejected.
func NewDailyPatientCount(id generic.RecordID, userID generic.UserID, staffName string, date time.Time, unit string, general, insurance int) (DailyPatientCount, error) {
	if general < 0 || insurance < 0 {
		return DailyPatientCount{}, generic.ErrNegativeCount
	}
	return DailyPatientCount{
		ID:             id,
		UserID:         userID,
		StaffName:      staffName,
		Date:           generic.DateOf(date),
		ClinicUnit:     unit,
		GeneralCount:   general,
		InsuranceCount: insurance,
		Review:         generic.NewReview(),
	}, nil
}

// Total is GeneralCount + InsuranceCount.
func (c DailyPatientCount) Total() int {
	return max(c.GeneralCount, 0) + max(c.InsuranceCount, 0)
}

// SetCounts replaces both counts.
func (c *DailyPatientCount) SetCounts(general, insurance int) error {
	if general < 0 || insurance < 0 {
		return generic.ErrNegativeCount
	}
	c.GeneralCount = general
	c.InsuranceCount = insurance
	return nil
}

// Ref builds the resolution input. scheduleShiftName is the template name of
// the linked duty schedule, empty when there is none.
func (c DailyPatientCount) Ref(scheduleShiftName string) RateCardRef {
	ref := RateCardRef{
		ScheduleShiftName: scheduleShiftName,
		StoredShiftLabel:  c.ShiftLabel,
	}
	if c.RateCardID != nil {
		ref.LinkedCardID = *c.RateCardID
	}
	return ref
}

// Fee resolves the card and runs single-staff mode.
func (c DailyPatientCount) Fee(cards []FeeRateCard, scheduleShiftName string) (SingleFee, *FeeRateCard, Resolution) {
	card, how := ResolveRateCard(cards, c.Ref(scheduleShiftName))
	return ComputeSingle(card, c.GeneralCount, c.InsuranceCount), card, how
}

// =============================================================================
// REVIEWABLE
// =============================================================================

// Critical fields of a patient count.
const (
	FieldUserID         = "userId"
	FieldDate           = "date"
	FieldClinicUnit     = "clinicUnit"
	FieldGeneralCount   = "generalCount"
	FieldInsuranceCount = "insuranceCount"
	FieldRateCardID     = "rateCardId"
	FieldDutyScheduleID = "dutyScheduleId"
	FieldShiftLabel     = "shiftLabel"
)

func (c *DailyPatientCount) RecordType() generic.RecordType { return generic.RecordPatientCount }
func (c *DailyPatientCount) RecordID() generic.RecordID { return c.ID }
func (c *DailyPatientCount) ReviewState() *generic.Review { return &c.Review }

func (c *DailyPatientCount) CriticalValues() map[string]string {
	return map[string]string{
		FieldUserID:         string(c.UserID),
		FieldDate:           c.Date.Format("2006-01-02"),
		FieldClinicUnit:     c.ClinicUnit,
		FieldGeneralCount:   strconv.Itoa(c.GeneralCount),
		FieldInsuranceCount: strconv.Itoa(c.InsuranceCount),
		FieldRateCardID:     optional(c.RateCardID),
		FieldDutyScheduleID: optional(c.DutyScheduleID),
		FieldShiftLabel:     c.ShiftLabel,
	}
}

func (c *DailyPatientCount) EventContext() map[string]any {
	return map[string]any{
		"date":            c.Date.Format("2006-01-02"),
		"staff_id":        string(c.UserID),
		"staff_name":      c.StaffName,
		"clinic_unit":     c.ClinicUnit,
		"general_count":   c.GeneralCount,
		"insurance_count": c.InsuranceCount,
		"total_count":     c.Total(),
	}
}

var _ generic.Reviewable = (*DailyPatientCount)(nil)

func optional(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// =============================================================================
// DAY SPLIT - Shared-total mode across a day's counts
// =============================================================================

// StaffShare is one staff member's row in a shared-total day.
type StaffShare struct {
	UserID       generic.UserID
	Contribution int
	Fee          SharedFee
}

// SplitDay runs shared-total mode for every contribution of one day.
// Individual excess counts are rounded independently and may sum to the
// aggregate excess plus or minus one per staff; no reconciliation is applied.
func SplitDay(card *FeeRateCard, contributions map[generic.UserID]int) ([]StaffShare, decimal.Decimal) {
	aggregate := 0
	for _, n := range contributions {
		aggregate += max(n, 0)
	}

	shares := make([]StaffShare, 0, len(contributions))
	total := decimal.Zero
	for user, n := range contributions {
		fee := ComputeShared(card, aggregate, n)
		shares = append(shares, StaffShare{UserID: user, Contribution: n, Fee: fee})
		total = total.Add(fee.Total)
	}
	sort.Slice(shares, func(i, j int) bool { return shares[i].UserID < shares[j].UserID })
	return shares, total
}
