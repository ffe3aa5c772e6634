package jaspel

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// SINGLE-STAFF MODE
// =============================================================================

// SingleFee is the breakdown of a single-staff calculation.
type SingleFee struct {
	Total           decimal.Decimal
	SittingFee      decimal.Decimal
	GeneralFee      decimal.Decimal
	InsuranceFee    decimal.Decimal
	GeneralExcess   int
	InsuranceExcess int
	ExcessCount     int // total - threshold, before the split
}

// ZeroSingleFee is the result when no rate card applies.
func ZeroSingleFee() SingleFee {
	return SingleFee{
		Total:        decimal.Zero,
		SittingFee:   decimal.Zero,
		GeneralFee:   decimal.Zero,
		InsuranceFee: decimal.Zero,
	}
}

// ComputeSingle computes one staff member's fee from their own counts.
// A nil card yields the all-zero result. Negative counts are treated as 0.
func ComputeSingle(card *FeeRateCard, generalCount, insuranceCount int) SingleFee {
	if card == nil {
		return ZeroSingleFee()
	}
	generalCount = max(generalCount, 0)
	insuranceCount = max(insuranceCount, 0)
	threshold := max(card.PatientThreshold, 0)

	result := ZeroSingleFee()
	result.SittingFee = card.FlatSittingFee
	result.Total = card.FlatSittingFee

	total := generalCount + insuranceCount
	if total <= threshold {
		return result
	}

	excess := total - threshold
	result.ExcessCount = excess
	result.GeneralExcess = proportionalCount(excess, generalCount, total)
	result.InsuranceExcess = proportionalCount(excess, insuranceCount, total)

	result.GeneralFee = card.GeneralUnitFee.Mul(decimal.NewFromInt(int64(result.GeneralExcess)))
	result.InsuranceFee = card.InsuranceUnitFee.Mul(decimal.NewFromInt(int64(result.InsuranceExcess)))
	result.Total = result.SittingFee.Add(result.GeneralFee).Add(result.InsuranceFee)
	return result
}

// =============================================================================
// SHARED-TOTAL MODE
// =============================================================================

// SharedFee is one staff member's share of a jointly served day.
type SharedFee struct {
	Total           decimal.Decimal
	SittingFee      decimal.Decimal
	Fee             decimal.Decimal // excess part only
	ExcessCount     int             // this staff member's rounded share
	AggregateExcess int
}

// ZeroSharedFee is the result when no rate card applies.
func ZeroSharedFee() SharedFee {
	return SharedFee{Total: decimal.Zero, SittingFee: decimal.Zero, Fee: decimal.Zero}
}

// ComputeShared pro-rates the aggregate excess by the individual contribution
// and pays it at the general unit fee. The sitting fee is paid once per staff.
func ComputeShared(card *FeeRateCard, aggregateTotal, individualContribution int) SharedFee {
	if card == nil {
		return ZeroSharedFee()
	}
	aggregateTotal = max(aggregateTotal, 0)
	individualContribution = min(max(individualContribution, 0), aggregateTotal)
	threshold := max(card.PatientThreshold, 0)

	result := ZeroSharedFee()
	result.SittingFee = card.FlatSittingFee
	result.Total = card.FlatSittingFee

	if aggregateTotal <= threshold {
		return result
	}

	result.AggregateExcess = aggregateTotal - threshold
	result.ExcessCount = proportionalCount(result.AggregateExcess, individualContribution, aggregateTotal)
	result.Fee = card.GeneralUnitFee.Mul(decimal.NewFromInt(int64(result.ExcessCount)))
	result.Total = result.SittingFee.Add(result.Fee)
	return result
}

// proportionalCount returns round_half_up(excess * part / total).
func proportionalCount(excess, part, total int) int {
	if total <= 0 || part <= 0 {
		return 0
	}
	share := decimal.NewFromInt(int64(excess)).
		Mul(decimal.NewFromInt(int64(part))).
		Div(decimal.NewFromInt(int64(total)))
	return int(share.Round(0).IntPart())
}
