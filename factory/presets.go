package factory

import (
	"github.com/shopspring/decimal"
	"github.com/warp/jaspel-engine/attendance"
	"github.com/warp/jaspel-engine/generic"
	"github.com/warp/jaspel-engine/jaspel"
)

// =============================================================================
// PRESETS - Seeded on first start
// =============================================================================

// PresetShiftTemplates are the clinic's standard shifts.
func PresetShiftTemplates() []attendance.ShiftTemplate {
	return []attendance.ShiftTemplate{
		{
			ID:        "pagi",
			Name:      "Pagi",
			StartTime: generic.NewTimeOfDay(7, 0),
			EndTime:   generic.NewTimeOfDay(14, 0),
		},
		{
			ID:        "sore",
			Name:      "Sore",
			StartTime: generic.NewTimeOfDay(14, 0),
			EndTime:   generic.NewTimeOfDay(21, 0),
		},
		{
			ID:        "malam",
			Name:      "Malam",
			StartTime: generic.NewTimeOfDay(21, 0),
			EndTime:   generic.NewTimeOfDay(7, 0),
			Break:     &attendance.BreakWindow{OffsetMinutes: 240, LengthMinutes: 60},
		},
		{
			ID:        "holiday",
			Name:      "Holiday",
			StartTime: generic.NewTimeOfDay(8, 0),
			EndTime:   generic.NewTimeOfDay(14, 0),
		},
	}
}

// PresetRateCards are the default jaspel rate cards, one per shift type.
func PresetRateCards() []jaspel.FeeRateCard {
	card := func(id, shiftType string, threshold int, general, insurance, sitting int64) jaspel.FeeRateCard {
		return jaspel.FeeRateCard{
			ID:               id,
			ShiftType:        shiftType,
			PatientThreshold: threshold,
			GeneralUnitFee:   decimal.NewFromInt(general),
			InsuranceUnitFee: decimal.NewFromInt(insurance),
			FlatSittingFee:   decimal.NewFromInt(sitting),
			IsActive:         true,
		}
	}
	return []jaspel.FeeRateCard{
		card("pagi", "Pagi", 10, 5000, 3000, 50000),
		card("sore", "Sore", 8, 6000, 3500, 60000),
		card("malam", "Malam", 5, 7500, 4000, 75000),
		card("holiday", "Holiday", 5, 10000, 5000, 100000),
	}
}
