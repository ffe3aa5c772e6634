package attendance

import (
	"log"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/jaspel-engine/generic"
)

// =============================================================================
// WORK DURATION CALCULATOR
// =============================================================================

// Method records which branch of the fallback chain produced a duration.
type Method string

const (
	MethodOverride Method = "override" // logicalWorkMinutes set by hand
	MethodShift    Method = "shift"    // clipped to shift boundaries
	MethodSimple   Method = "simple"   // no shift: check-out minus check-in
	MethodNone     Method = "none"     // cannot compute
)

// WorkInput is everything the calculator needs. Every field is optional.
type WorkInput struct {
	Boundaries      *ShiftBoundaries
	CheckIn         *time.Time
	CheckOut        *time.Time
	Break           *BreakWindow
	OverrideMinutes *int
}

// WorkDuration is the calculator's result. Minutes is nil when the duration
// cannot be computed (missing check-in or check-out).
type WorkDuration struct {
	Minutes              *int
	EffectiveStart       *time.Time
	EffectiveEnd         *time.Time
	BreakDeductedMinutes int
	Method               Method
	Anomaly              bool
}

// Value returns Minutes or 0.
func (d WorkDuration) Value() int {
	if d.Minutes == nil {
		return 0
	}
	return *d.Minutes
}

// Calculator computes worked time. It has no state besides its logger and
// is safe for concurrent use.
type Calculator struct {
	Logger *log.Logger
}

func NewCalculator(logger *log.Logger) *Calculator {
	return &Calculator{Logger: logger}
}

// Compute applies the fallback chain: override, shift-clipped, simple.
func (c *Calculator) Compute(in WorkInput) WorkDuration {
	if in.OverrideMinutes != nil {
		m := max(*in.OverrideMinutes, 0)
		return WorkDuration{Minutes: &m, Method: MethodOverride}
	}
	if in.CheckIn == nil || in.CheckOut == nil {
		return WorkDuration{Method: MethodNone}
	}
	if in.Boundaries == nil {
		return c.simple(*in.CheckIn, *in.CheckOut)
	}
	return c.clipped(*in.Boundaries, *in.CheckIn, *in.CheckOut, in.Break)
}

func (c *Calculator) clipped(b ShiftBoundaries, checkIn, checkOut time.Time, brk *BreakWindow) WorkDuration {
	effStart := generic.MaxTime(checkIn, b.Start)
	effEnd := generic.MinTime(checkOut, b.End)

	if effEnd.Before(effStart) && b.Overnight {
		// Check-out recorded on the shift's start date; it belongs to the next day.
		effEnd = generic.MinTime(checkOut.AddDate(0, 0, 1), b.End)
	}

	result := WorkDuration{Method: MethodShift}
	if effEnd.Before(effStart) {
		// Left before the shift started: no credit.
		zero := 0
		result.Minutes = &zero
		return result
	}
	result.EffectiveStart = &effStart
	result.EffectiveEnd = &effEnd

	raw := generic.MinutesBetween(effStart, effEnd)
	if raw <= 0 {
		zero := 0
		result.Minutes = &zero
		return result
	}

	result.BreakDeductedMinutes = BreakDeduction(brk, b.Start, effStart, effEnd)
	minutes := max(raw-result.BreakDeductedMinutes, 0)
	result.Minutes = &minutes
	result.Anomaly = c.checkSanity(minutes, b)
	return result
}

func (c *Calculator) simple(checkIn, checkOut time.Time) WorkDuration {
	if checkOut.Before(checkIn) {
		checkOut = checkOut.AddDate(0, 0, 1)
	}
	minutes := max(generic.MinutesBetween(checkIn, checkOut), 0)
	return WorkDuration{
		Minutes:        &minutes,
		EffectiveStart: &checkIn,
		EffectiveEnd:   &checkOut,
		Method:         MethodSimple,
		Anomaly:        c.checkSanity(minutes, ShiftBoundaries{}),
	}
}

// checkSanity flags durations that indicate bad upstream data. It only
// logs; the value is still returned for human review.
func (c *Calculator) checkSanity(minutes int, b ShiftBoundaries) bool {
	if minutes > 24*60 {
		c.logger().Printf("[Attendance] WARN duration %d min exceeds 24h", minutes)
		return true
	}
	if b.Overnight {
		nominal := b.Minutes()
		if nominal > 0 && minutes*2 > nominal*3 {
			c.logger().Printf("[Attendance] WARN overnight duration %d min exceeds 1.5x nominal %d min", minutes, nominal)
			return true
		}
	}
	return false
}

func (c *Calculator) logger() *log.Logger {
	if c == nil || c.Logger == nil {
		return log.Default()
	}
	return c.Logger
}

// =============================================================================
// DERIVED METRICS
// =============================================================================

// Metrics are the derived, never hand-edited attendance fields.
type Metrics struct {
	WorkMinutes          *int
	TargetMinutes        int
	ShortfallMinutes     int
	AttendancePercentage decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// Derive computes target, shortfall and percentage. The target is the
// template's net length (nominal minus break), or DefaultTargetMinutes
// without a template. An absent duration counts as zero worked minutes.
func Derive(d WorkDuration, tpl *ShiftTemplate) Metrics {
	target := DefaultTargetMinutes
	if tpl != nil {
		target = tpl.NetMinutes()
	}

	actual := d.Value()
	m := Metrics{
		WorkMinutes:      d.Minutes,
		TargetMinutes:    target,
		ShortfallMinutes: max(target-actual, 0),
	}

	if target > 0 {
		pct := decimal.NewFromInt(int64(actual)).Mul(hundred).Div(decimal.NewFromInt(int64(target)))
		if pct.GreaterThan(hundred) {
			pct = hundred
		}
		if pct.IsNegative() {
			pct = decimal.Zero
		}
		m.AttendancePercentage = pct.Round(2)
	} else {
		m.AttendancePercentage = decimal.Zero
	}
	return m
}
