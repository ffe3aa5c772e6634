/*
Package attendance reconciles staff check-in/check-out against shift templates.

PURPOSE:
  Turns raw attendance (a date, a check-in, a check-out) and a shift template
  into worked minutes: the portion of presence that falls inside the shift,
  minus the configured break. Everything here is a pure function over
  immutable inputs and is safe to call concurrently.

PIPELINE:
  ShiftTemplate + date ──▶ Resolve ──▶ ShiftBoundaries
  ShiftBoundaries + check-in/out ──▶ Calculator.Compute ──▶ WorkDuration
  WorkDuration + ShiftTemplate ──▶ Derive ──▶ Metrics (target, shortfall, %)

OVERNIGHT SHIFTS:
  A template whose end time is earlier than its start time crosses midnight.
  Night shift 22:00-06:00 on March 10 resolves to
  [March 10 22:00, March 11 06:00].

SEE ALSO:
  - duration.go: Effective interval and duration
  - breaks.go: Break overlap deduction
  - record.go: AttendanceRecord and its derived fields
*/
package attendance

import (
	"time"

	"github.com/warp/jaspel-engine/generic"
)

// DefaultTargetMinutes is used when no shift template is resolvable.
const DefaultTargetMinutes = 480

// =============================================================================
// SHIFT TEMPLATE
// =============================================================================

// ShiftTemplate is a named duty shift: nominal start/end and an optional break.
// Templates are immutable once attendance references them.
type ShiftTemplate struct {
	ID        string
	Name      string // e.g. "Pagi", "Sore", "Malam"
	StartTime generic.TimeOfDay
	EndTime   generic.TimeOfDay
	Break     *BreakWindow
}

// IsOvernight reports whether the shift crosses midnight.
func (t ShiftTemplate) IsOvernight() bool {
	return t.EndTime.Before(t.StartTime)
}

// NominalMinutes is the shift length including the break.
func (t ShiftTemplate) NominalMinutes() int {
	m := t.EndTime.Minutes - t.StartTime.Minutes
	if m < 0 {
		m += 24 * 60
	}
	return m
}

// NetMinutes is the nominal length minus the configured break, floored at 0.
func (t ShiftTemplate) NetMinutes() int {
	net := t.NominalMinutes() - t.Break.Length()
	if net < 0 {
		return 0
	}
	return net
}

// =============================================================================
// SHIFT BOUNDARY RESOLVER
// =============================================================================

// ShiftBoundaries are the concrete instants of a shift on a given date.
type ShiftBoundaries struct {
	Start     time.Time
	End       time.Time
	Overnight bool // End was advanced to the next day
}

// Minutes is the length of the resolved shift.
func (b ShiftBoundaries) Minutes() int {
	return generic.MinutesBetween(b.Start, b.End)
}

// Resolve places tpl on date. If the end time is earlier than the start time
// the end is advanced by one day. Always succeeds.
func Resolve(tpl ShiftTemplate, date time.Time) ShiftBoundaries {
	day := generic.DateOf(date)
	b := ShiftBoundaries{
		Start: tpl.StartTime.On(day),
		End:   tpl.EndTime.On(day),
	}
	if tpl.IsOvernight() {
		b.End = b.End.AddDate(0, 0, 1)
		b.Overnight = true
	}
	return b
}
