/*
Package jaspel computes performance-based service fees ("jaspel") from
daily patient counts.

PURPOSE:
  A rate card per shift type defines a patient threshold, a flat sitting
  fee, and a unit fee per patient category (general / insurance). Up to the
  threshold a staff member earns only the sitting fee; every patient above
  it earns the category's unit fee.

CALCULATION MODES:
  Single-staff:
    total = general + insurance
    total <= threshold  -> sitting fee
    otherwise           -> excess split across categories by share of total,
                           each share rounded half-up, times its unit fee,
                           plus the sitting fee

  Shared-total:
    Several staff jointly serve one aggregate count. Each staff member's
    excess is the aggregate excess pro-rated by their contribution.

ROUNDING:
  Rounding happens on patient COUNTS, never on money. Amounts are
  decimal.Decimal and are only ever count x unit fee + sitting fee, so the
  totals of all staff on a day stay reconcilable.

EXAMPLE:
  card := FeeRateCard{PatientThreshold: 10, GeneralUnitFee: 5000,
                      InsuranceUnitFee: 3000, FlatSittingFee: 50000}
  ComputeSingle(&card, 30, 20)
  // excess 40 -> general 24, insurance 16
  // 24*5000 + 16*3000 + 50000 = 218000

SEE ALSO:
  - count.go: DailyPatientCount record
  - fee.go: The two calculation modes
*/
package jaspel

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RATE CARD
// =============================================================================

// FeeRateCard is the rate table for one shift type ("Pagi", "Sore", "Holiday").
type FeeRateCard struct {
	ID               string
	ShiftType        string
	PatientThreshold int
	GeneralUnitFee   decimal.Decimal
	InsuranceUnitFee decimal.Decimal
	FlatSittingFee   decimal.Decimal
	IsActive         bool
}

// =============================================================================
// RATE CARD RESOLUTION
// =============================================================================

// Resolution names the rule that selected a rate card.
type Resolution string

const (
	ResolvedByLink      Resolution = "linked"
	ResolvedBySchedule  Resolution = "schedule_shift"
	ResolvedByLabel     Resolution = "stored_label"
	ResolvedByAnyActive Resolution = "any_active"
	ResolvedNone        Resolution = "none"
)

// RateCardRef is what a count record knows about its applicable card.
type RateCardRef struct {
	LinkedCardID      string // explicit link on the count record
	ScheduleShiftName string // shift template name of the linked duty schedule
	StoredShiftLabel  string // shift label stored on the count record itself
}

// ResolveRateCard picks the applicable card, first match wins:
//  1. the explicitly linked card
//  2. an active card whose shift type matches the schedule's shift name
//  3. a card matching the record's stored shift label, active or not;
//     an active match is preferred
//  4. any active card
//
// Ties are broken by lowest ID so the result never depends on input order.
// Returns nil and ResolvedNone when nothing applies.
func ResolveRateCard(cards []FeeRateCard, ref RateCardRef) (*FeeRateCard, Resolution) {
	sorted := make([]FeeRateCard, len(cards))
	copy(sorted, cards)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	if ref.LinkedCardID != "" {
		for i := range sorted {
			if sorted[i].ID == ref.LinkedCardID {
				return &sorted[i], ResolvedByLink
			}
		}
	}
	if card := firstActive(sorted, ref.ScheduleShiftName); card != nil {
		return card, ResolvedBySchedule
	}
	if card := firstActive(sorted, ref.StoredShiftLabel); card != nil {
		return card, ResolvedByLabel
	}
	if card := firstMatching(sorted, ref.StoredShiftLabel); card != nil {
		return card, ResolvedByLabel
	}
	for i := range sorted {
		if sorted[i].IsActive {
			return &sorted[i], ResolvedByAnyActive
		}
	}
	return nil, ResolvedNone
}

func firstActive(cards []FeeRateCard, shiftType string) *FeeRateCard {
	shiftType = strings.TrimSpace(shiftType)
	if shiftType == "" {
		return nil
	}
	for i := range cards {
		if cards[i].IsActive && strings.EqualFold(cards[i].ShiftType, shiftType) {
			return &cards[i]
		}
	}
	return nil
}

func firstMatching(cards []FeeRateCard, shiftType string) *FeeRateCard {
	shiftType = strings.TrimSpace(shiftType)
	if shiftType == "" {
		return nil
	}
	for i := range cards {
		if strings.EqualFold(cards[i].ShiftType, shiftType) {
			return &cards[i]
		}
	}
	return nil
}
