package jaspel_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/jaspel-engine/generic"
	"github.com/warp/jaspel-engine/jaspel"
)

func pagiCard() jaspel.FeeRateCard {
	return jaspel.FeeRateCard{
		ID:               "card-pagi",
		ShiftType:        "Pagi",
		PatientThreshold: 10,
		GeneralUnitFee:   decimal.NewFromInt(5000),
		InsuranceUnitFee: decimal.NewFromInt(3000),
		FlatSittingFee:   decimal.NewFromInt(50000),
		IsActive:         true,
	}
}

func assertAmount(t *testing.T, expected int64, actual decimal.Decimal, msg string) {
	t.Helper()
	assert.True(t, decimal.NewFromInt(expected).Equal(actual), "%s: expected %d, got %s", msg, expected, actual)
}

// =============================================================================
// SINGLE-STAFF MODE
// =============================================================================

func TestComputeSingle_ExcessSplitByCategoryShare(t *testing.T) {
	// GIVEN: threshold 10, general 30, insurance 20
	card := pagiCard()

	// WHEN
	fee := jaspel.ComputeSingle(&card, 30, 20)

	// THEN: excess 40 -> 24 general, 16 insurance
	assert.Equal(t, 40, fee.ExcessCount)
	assert.Equal(t, 24, fee.GeneralExcess)
	assert.Equal(t, 16, fee.InsuranceExcess)
	assertAmount(t, 120000, fee.GeneralFee, "general fee")
	assertAmount(t, 48000, fee.InsuranceFee, "insurance fee")
	assertAmount(t, 50000, fee.SittingFee, "sitting fee")
	assertAmount(t, 218000, fee.Total, "total")
}

func TestComputeSingle_AtOrBelowThreshold_SittingFeeOnly(t *testing.T) {
	card := pagiCard()

	tests := []struct {
		name      string
		general   int
		insurance int
	}{
		{"exactly at threshold", 6, 4},
		{"below threshold", 3, 2},
		{"no patients", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fee := jaspel.ComputeSingle(&card, tt.general, tt.insurance)
			assertAmount(t, 50000, fee.Total, "total")
			assert.Zero(t, fee.GeneralExcess)
			assert.Zero(t, fee.InsuranceExcess)
			assert.True(t, fee.GeneralFee.IsZero())
			assert.True(t, fee.InsuranceFee.IsZero())
		})
	}
}

func TestComputeSingle_OneOverThreshold(t *testing.T) {
	card := pagiCard()

	// 11 general, 0 insurance: one excess general patient
	fee := jaspel.ComputeSingle(&card, 11, 0)

	assert.Equal(t, 1, fee.GeneralExcess)
	assert.Equal(t, 0, fee.InsuranceExcess)
	assertAmount(t, 55000, fee.Total, "total")
}

func TestComputeSingle_RoundsCountsHalfUp(t *testing.T) {
	// GIVEN: threshold 1, general 1, insurance 1 -> excess 1 split 0.5 / 0.5
	card := pagiCard()
	card.PatientThreshold = 1

	fee := jaspel.ComputeSingle(&card, 1, 1)

	// THEN: each share rounds up; the money is count x unit fee, never rounded itself
	assert.Equal(t, 1, fee.GeneralExcess)
	assert.Equal(t, 1, fee.InsuranceExcess)
	assertAmount(t, 58000, fee.Total, "total")
}

func TestComputeSingle_FractionalUnitFeesAreNotRounded(t *testing.T) {
	card := pagiCard()
	card.GeneralUnitFee = decimal.RequireFromString("1250.50")
	card.PatientThreshold = 0
	card.FlatSittingFee = decimal.Zero

	fee := jaspel.ComputeSingle(&card, 3, 0)

	assert.Equal(t, "3751.5", fee.Total.String())
}

func TestComputeSingle_NilCard_AllZero(t *testing.T) {
	fee := jaspel.ComputeSingle(nil, 30, 20)

	assert.True(t, fee.Total.IsZero())
	assert.True(t, fee.SittingFee.IsZero())
	assert.Zero(t, fee.GeneralExcess)
}

func TestComputeSingle_NegativeCountsTreatedAsZero(t *testing.T) {
	card := pagiCard()

	fee := jaspel.ComputeSingle(&card, -5, 15)

	assert.Equal(t, 5, fee.InsuranceExcess)
	assert.Equal(t, 0, fee.GeneralExcess)
	assertAmount(t, 65000, fee.Total, "total")
}

// =============================================================================
// SHARED-TOTAL MODE
// =============================================================================

func TestComputeShared_ProRatesAggregateExcess(t *testing.T) {
	// GIVEN: aggregate 30, threshold 10 -> excess 20; contributions 20 and 10
	card := pagiCard()

	a := jaspel.ComputeShared(&card, 30, 20)
	b := jaspel.ComputeShared(&card, 30, 10)

	// THEN: 13.33 -> 13, 6.67 -> 7
	assert.Equal(t, 13, a.ExcessCount)
	assert.Equal(t, 7, b.ExcessCount)
	assertAmount(t, 65000, a.Fee, "fee a")
	assertAmount(t, 115000, a.Total, "total a")
	assertAmount(t, 85000, b.Total, "total b")
	assert.Equal(t, 20, a.AggregateExcess)
}

func TestComputeShared_AtOrBelowThreshold(t *testing.T) {
	card := pagiCard()

	fee := jaspel.ComputeShared(&card, 10, 4)

	assert.Zero(t, fee.ExcessCount)
	assertAmount(t, 50000, fee.Total, "total")
}

func TestComputeShared_SumOfExcessWithinOneOfAggregate(t *testing.T) {
	card := pagiCard()

	for aggregate := 11; aggregate <= 60; aggregate++ {
		for a := 0; a <= aggregate; a++ {
			b := aggregate - a
			fa := jaspel.ComputeShared(&card, aggregate, a)
			fb := jaspel.ComputeShared(&card, aggregate, b)

			sum := fa.ExcessCount + fb.ExcessCount
			diff := sum - (aggregate - card.PatientThreshold)
			require.LessOrEqual(t, diff, 1, "aggregate=%d a=%d", aggregate, a)
			require.GreaterOrEqual(t, diff, -1, "aggregate=%d a=%d", aggregate, a)
		}
	}
}

func TestComputeShared_ContributionCappedAtAggregate(t *testing.T) {
	card := pagiCard()

	fee := jaspel.ComputeShared(&card, 20, 50)

	assert.Equal(t, 10, fee.ExcessCount)
}

func TestComputeShared_NilCard(t *testing.T) {
	fee := jaspel.ComputeShared(nil, 30, 10)
	assert.True(t, fee.Total.IsZero())
}

func TestSplitDay_OneSittingFeePerStaff(t *testing.T) {
	card := pagiCard()

	shares, total := jaspel.SplitDay(&card, map[generic.UserID]int{"u2": 10, "u1": 20})

	require.Len(t, shares, 2)
	assert.Equal(t, generic.UserID("u1"), shares[0].UserID)
	assert.Equal(t, generic.UserID("u2"), shares[1].UserID)
	// 2 x 50000 sitting + (13 + 7) x 5000
	assertAmount(t, 200000, total, "day total")
}

// =============================================================================
// RATE CARD RESOLUTION
// =============================================================================

func cards() []jaspel.FeeRateCard {
	pagi := pagiCard()
	sore := pagiCard()
	sore.ID, sore.ShiftType = "card-sore", "Sore"
	holiday := pagiCard()
	holiday.ID, holiday.ShiftType = "card-holiday", "Holiday"
	old := pagiCard()
	old.ID, old.ShiftType, old.IsActive = "card-old", "Malam", false
	return []jaspel.FeeRateCard{sore, old, pagi, holiday}
}

func TestResolveRateCard_Order(t *testing.T) {
	tests := []struct {
		name     string
		ref      jaspel.RateCardRef
		expected string
		how      jaspel.Resolution
	}{
		{
			name:     "explicit link wins even when inactive",
			ref:      jaspel.RateCardRef{LinkedCardID: "card-old", ScheduleShiftName: "Pagi", StoredShiftLabel: "Sore"},
			expected: "card-old",
			how:      jaspel.ResolvedByLink,
		},
		{
			name:     "schedule shift before stored label",
			ref:      jaspel.RateCardRef{ScheduleShiftName: "Sore", StoredShiftLabel: "Pagi"},
			expected: "card-sore",
			how:      jaspel.ResolvedBySchedule,
		},
		{
			name:     "stored label when no schedule",
			ref:      jaspel.RateCardRef{StoredShiftLabel: "holiday"},
			expected: "card-holiday",
			how:      jaspel.ResolvedByLabel,
		},
		{
			name:     "stored label matches an inactive card",
			ref:      jaspel.RateCardRef{StoredShiftLabel: "Malam"},
			expected: "card-old",
			how:      jaspel.ResolvedByLabel,
		},
		{
			name:     "inactive card never matched by schedule shift",
			ref:      jaspel.RateCardRef{ScheduleShiftName: "Malam"},
			expected: "card-holiday",
			how:      jaspel.ResolvedByAnyActive,
		},
		{
			name:     "unknown link falls through",
			ref:      jaspel.RateCardRef{LinkedCardID: "missing", ScheduleShiftName: "Pagi"},
			expected: "card-pagi",
			how:      jaspel.ResolvedBySchedule,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			card, how := jaspel.ResolveRateCard(cards(), tt.ref)
			require.NotNil(t, card)
			assert.Equal(t, tt.expected, card.ID)
			assert.Equal(t, tt.how, how)
		})
	}
}

func TestResolveRateCard_AnyActiveIsDeterministic(t *testing.T) {
	c := cards()
	reversed := []jaspel.FeeRateCard{c[3], c[2], c[1], c[0]}

	a, _ := jaspel.ResolveRateCard(c, jaspel.RateCardRef{})
	b, _ := jaspel.ResolveRateCard(reversed, jaspel.RateCardRef{})

	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, "card-holiday", a.ID)
}

func TestResolveRateCard_NoneApplies(t *testing.T) {
	old := pagiCard()
	old.IsActive = false

	card, how := jaspel.ResolveRateCard([]jaspel.FeeRateCard{old}, jaspel.RateCardRef{ScheduleShiftName: "Pagi", StoredShiftLabel: "Sore"})

	assert.Nil(t, card)
	assert.Equal(t, jaspel.ResolvedNone, how)
	assert.True(t, jaspel.ComputeSingle(card, 30, 20).Total.IsZero())
}

func TestResolveRateCard_StoredLabelPrefersActive(t *testing.T) {
	// GIVEN: a retired and a current card for the same shift type
	retired := pagiCard()
	retired.ID, retired.IsActive = "card-a-retired", false
	current := pagiCard()
	current.ID = "card-b-current"

	// WHEN
	card, how := jaspel.ResolveRateCard([]jaspel.FeeRateCard{retired, current}, jaspel.RateCardRef{StoredShiftLabel: "pagi"})

	// THEN: the active one wins despite the higher ID
	require.NotNil(t, card)
	assert.Equal(t, "card-b-current", card.ID)
	assert.Equal(t, jaspel.ResolvedByLabel, how)
}

// =============================================================================
// PATIENT COUNT RECORD
// =============================================================================

func TestDailyPatientCount_RejectsNegativeCounts(t *testing.T) {
	date := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	_, err := jaspel.NewDailyPatientCount("pc-1", "u1", "Dr. A", date, "Poli Umum", -1, 5)
	assert.ErrorIs(t, err, generic.ErrNegativeCount)

	c, err := jaspel.NewDailyPatientCount("pc-1", "u1", "Dr. A", date, "Poli Umum", 30, 20)
	require.NoError(t, err)
	assert.ErrorIs(t, c.SetCounts(3, -2), generic.ErrNegativeCount)
	assert.Equal(t, 50, c.Total())
	assert.Equal(t, generic.StatusPending, c.Status)
}

func TestDailyPatientCount_FeeUsesRecordLinks(t *testing.T) {
	date := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	c, err := jaspel.NewDailyPatientCount("pc-1", "u1", "Dr. A", date, "Poli Umum", 30, 20)
	require.NoError(t, err)
	c.ShiftLabel = "Sore"

	fee, card, how := c.Fee(cards(), "")

	require.NotNil(t, card)
	assert.Equal(t, "card-sore", card.ID)
	assert.Equal(t, jaspel.ResolvedByLabel, how)
	assertAmount(t, 218000, fee.Total, "total")
}

func TestDailyPatientCount_CriticalValues(t *testing.T) {
	date := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	c, err := jaspel.NewDailyPatientCount("pc-1", "u1", "Dr. A", date, "Poli Umum", 30, 20)
	require.NoError(t, err)

	values := c.CriticalValues()

	assert.Equal(t, "30", values[jaspel.FieldGeneralCount])
	assert.Equal(t, "20", values[jaspel.FieldInsuranceCount])
	assert.Equal(t, "2025-03-10", values[jaspel.FieldDate])
	assert.Equal(t, "Dr. A", c.EventContext()["staff_name"])
}
