/*
Package factory converts JSON definitions into shift templates and rate cards.

PURPOSE:
  Shift templates and jaspel rate cards are configured by clinic admins,
  not developers. They are stored as JSON (database column, seed file,
  admin UI payload) and turned into the engine types here.

JSON SCHEMA:
  Shift template:
  {
    "id": "malam",
    "name": "Malam",
    "start_time": "22:00",
    "end_time": "06:00",
    "break": {"offset_minutes": 240, "length_minutes": 30}
  }

  Rate card:
  {
    "id": "pagi",
    "shift_type": "Pagi",
    "patient_threshold": 10,
    "general_unit_fee": "5000",
    "insurance_unit_fee": "3000",
    "flat_sitting_fee": "50000",
    "is_active": true
  }

  Fees accept JSON numbers or strings; strings avoid float rounding.

USAGE:
  f := NewFactory()
  tpl, err := f.ParseShiftTemplate(jsonString)
  card, err := f.ParseRateCard(jsonString)

SEE ALSO:
  - presets.go: Built-in templates and cards seeded on startup
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/warp/jaspel-engine/attendance"
	"github.com/warp/jaspel-engine/generic"
	"github.com/warp/jaspel-engine/jaspel"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

type ShiftTemplateJSON struct {
	ID        string     `json:"id" validate:"required"`
	Name      string     `json:"name" validate:"required"`
	StartTime string     `json:"start_time" validate:"required"`
	EndTime   string     `json:"end_time" validate:"required"`
	Break     *BreakJSON `json:"break,omitempty"`
}

type BreakJSON struct {
	OffsetMinutes int `json:"offset_minutes" validate:"gte=0"`
	LengthMinutes int `json:"length_minutes" validate:"gte=0"`
}

type RateCardJSON struct {
	ID               string          `json:"id" validate:"required"`
	ShiftType        string          `json:"shift_type" validate:"required"`
	PatientThreshold int             `json:"patient_threshold" validate:"gte=0"`
	GeneralUnitFee   decimal.Decimal `json:"general_unit_fee"`
	InsuranceUnitFee decimal.Decimal `json:"insurance_unit_fee"`
	FlatSittingFee   decimal.Decimal `json:"flat_sitting_fee"`
	IsActive         bool            `json:"is_active"`
}

// =============================================================================
// FACTORY
// =============================================================================

type Factory struct {
	validate *validator.Validate
}

func NewFactory() *Factory {
	return &Factory{validate: validator.New()}
}

// ParseShiftTemplate parses and validates a shift template definition.
func (f *Factory) ParseShiftTemplate(jsonStr string) (attendance.ShiftTemplate, error) {
	var tj ShiftTemplateJSON
	if err := json.Unmarshal([]byte(jsonStr), &tj); err != nil {
		return attendance.ShiftTemplate{}, fmt.Errorf("failed to parse shift template JSON: %w", err)
	}
	return f.ShiftTemplateFromJSON(tj)
}

func (f *Factory) ShiftTemplateFromJSON(tj ShiftTemplateJSON) (attendance.ShiftTemplate, error) {
	if err := f.validate.Struct(tj); err != nil {
		return attendance.ShiftTemplate{}, fmt.Errorf("invalid shift template %q: %w", tj.ID, err)
	}
	start, err := generic.ParseTimeOfDay(tj.StartTime)
	if err != nil {
		return attendance.ShiftTemplate{}, err
	}
	end, err := generic.ParseTimeOfDay(tj.EndTime)
	if err != nil {
		return attendance.ShiftTemplate{}, err
	}

	tpl := attendance.ShiftTemplate{ID: tj.ID, Name: tj.Name, StartTime: start, EndTime: end}
	if tj.Break != nil && (tj.Break.OffsetMinutes < 0 || tj.Break.LengthMinutes < 0) {
		return attendance.ShiftTemplate{}, fmt.Errorf("invalid break of %q: negative minutes", tj.ID)
	}
	if tj.Break != nil && tj.Break.LengthMinutes > 0 {
		if tj.Break.OffsetMinutes+tj.Break.LengthMinutes > tpl.NominalMinutes() {
			return attendance.ShiftTemplate{}, fmt.Errorf("break of %q ends after the shift", tj.ID)
		}
		tpl.Break = &attendance.BreakWindow{OffsetMinutes: tj.Break.OffsetMinutes, LengthMinutes: tj.Break.LengthMinutes}
	}
	return tpl, nil
}

func (f *Factory) ShiftTemplateToJSON(tpl attendance.ShiftTemplate) ShiftTemplateJSON {
	tj := ShiftTemplateJSON{
		ID:        tpl.ID,
		Name:      tpl.Name,
		StartTime: tpl.StartTime.String(),
		EndTime:   tpl.EndTime.String(),
	}
	if tpl.Break != nil {
		tj.Break = &BreakJSON{OffsetMinutes: tpl.Break.OffsetMinutes, LengthMinutes: tpl.Break.LengthMinutes}
	}
	return tj
}

// ParseRateCard parses and validates a rate card definition.
func (f *Factory) ParseRateCard(jsonStr string) (jaspel.FeeRateCard, error) {
	var rj RateCardJSON
	if err := json.Unmarshal([]byte(jsonStr), &rj); err != nil {
		return jaspel.FeeRateCard{}, fmt.Errorf("failed to parse rate card JSON: %w", err)
	}
	return f.RateCardFromJSON(rj)
}

func (f *Factory) RateCardFromJSON(rj RateCardJSON) (jaspel.FeeRateCard, error) {
	if err := f.validate.Struct(rj); err != nil {
		return jaspel.FeeRateCard{}, fmt.Errorf("invalid rate card %q: %w", rj.ID, err)
	}
	for name, fee := range map[string]decimal.Decimal{
		"general_unit_fee":   rj.GeneralUnitFee,
		"insurance_unit_fee": rj.InsuranceUnitFee,
		"flat_sitting_fee":   rj.FlatSittingFee,
	} {
		if fee.IsNegative() {
			return jaspel.FeeRateCard{}, fmt.Errorf("invalid rate card %q: %s must not be negative", rj.ID, name)
		}
	}
	return jaspel.FeeRateCard{
		ID:               rj.ID,
		ShiftType:        rj.ShiftType,
		PatientThreshold: rj.PatientThreshold,
		GeneralUnitFee:   rj.GeneralUnitFee,
		InsuranceUnitFee: rj.InsuranceUnitFee,
		FlatSittingFee:   rj.FlatSittingFee,
		IsActive:         rj.IsActive,
	}, nil
}

func (f *Factory) RateCardToJSON(c jaspel.FeeRateCard) RateCardJSON {
	return RateCardJSON{
		ID:               c.ID,
		ShiftType:        c.ShiftType,
		PatientThreshold: c.PatientThreshold,
		GeneralUnitFee:   c.GeneralUnitFee,
		InsuranceUnitFee: c.InsuranceUnitFee,
		FlatSittingFee:   c.FlatSittingFee,
		IsActive:         c.IsActive,
	}
}
