package factory_test

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/jaspel-engine/factory"
	"github.com/warp/jaspel-engine/generic"
	"github.com/warp/jaspel-engine/jaspel"
)

func TestParseShiftTemplate_Overnight(t *testing.T) {
	f := factory.NewFactory()

	tpl, err := f.ParseShiftTemplate(`{
		"id": "malam", "name": "Malam",
		"start_time": "22:00", "end_time": "06:00",
		"break": {"offset_minutes": 240, "length_minutes": 30}
	}`)

	require.NoError(t, err)
	assert.True(t, tpl.IsOvernight())
	assert.Equal(t, 480, tpl.NominalMinutes())
	assert.Equal(t, 450, tpl.NetMinutes())
	require.NotNil(t, tpl.Break)
	assert.Equal(t, 240, tpl.Break.OffsetMinutes)
}

func TestParseShiftTemplate_Invalid(t *testing.T) {
	f := factory.NewFactory()

	tests := []struct {
		name string
		json string
	}{
		{"malformed", `{"id": `},
		{"missing name", `{"id": "x", "start_time": "07:00", "end_time": "14:00"}`},
		{"bad time", `{"id": "x", "name": "X", "start_time": "25:99", "end_time": "14:00"}`},
		{"negative break", `{"id": "x", "name": "X", "start_time": "07:00", "end_time": "14:00", "break": {"offset_minutes": -5, "length_minutes": 30}}`},
		{"break after shift", `{"id": "x", "name": "X", "start_time": "07:00", "end_time": "08:00", "break": {"offset_minutes": 45, "length_minutes": 30}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ParseShiftTemplate(tt.json)
			assert.Error(t, err)
		})
	}
}

func TestParseShiftTemplate_BadTimeIsClientError(t *testing.T) {
	_, err := factory.NewFactory().ParseShiftTemplate(`{"id": "x", "name": "X", "start_time": "7am", "end_time": "14:00"}`)

	assert.ErrorIs(t, err, generic.ErrInvalidTimeOfDay)
	assert.True(t, generic.IsClientError(err))
}

func TestParseRateCard_StringAndNumberFees(t *testing.T) {
	f := factory.NewFactory()

	card, err := f.ParseRateCard(`{
		"id": "pagi", "shift_type": "Pagi", "patient_threshold": 10,
		"general_unit_fee": "5000.50", "insurance_unit_fee": 3000,
		"flat_sitting_fee": "50000", "is_active": true
	}`)

	require.NoError(t, err)
	assert.Equal(t, "5000.5", card.GeneralUnitFee.String())
	assert.True(t, decimal.NewFromInt(3000).Equal(card.InsuranceUnitFee))
	assert.True(t, card.IsActive)
}

func TestParseRateCard_Invalid(t *testing.T) {
	f := factory.NewFactory()

	_, err := f.ParseRateCard(`{"id": "x", "shift_type": "Pagi", "patient_threshold": -1}`)
	assert.Error(t, err)

	_, err = f.ParseRateCard(`{"id": "x", "shift_type": "Pagi", "general_unit_fee": "-1"}`)
	assert.ErrorContains(t, err, "general_unit_fee must not be negative")
}

func TestRoundTrip_ToJSON(t *testing.T) {
	f := factory.NewFactory()
	for _, tpl := range factory.PresetShiftTemplates() {
		raw, err := json.Marshal(f.ShiftTemplateToJSON(tpl))
		require.NoError(t, err)

		parsed, err := f.ParseShiftTemplate(string(raw))
		require.NoError(t, err)
		assert.Equal(t, tpl, parsed)
	}
	for _, card := range factory.PresetRateCards() {
		raw, err := json.Marshal(f.RateCardToJSON(card))
		require.NoError(t, err)

		parsed, err := f.ParseRateCard(string(raw))
		require.NoError(t, err)
		assert.Equal(t, card.ID, parsed.ID)
		assert.True(t, card.FlatSittingFee.Equal(parsed.FlatSittingFee))
	}
}

func TestPresets_EveryShiftHasAnActiveCard(t *testing.T) {
	cards := factory.PresetRateCards()

	for _, tpl := range factory.PresetShiftTemplates() {
		card, how := jaspel.ResolveRateCard(cards, jaspel.RateCardRef{ScheduleShiftName: tpl.Name})
		require.NotNil(t, card, tpl.Name)
		assert.Equal(t, jaspel.ResolvedBySchedule, how, tpl.Name)
	}
}
