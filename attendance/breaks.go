package attendance

import (
	"time"

	"github.com/warp/jaspel-engine/generic"
)

// BreakWindow is a break placed OffsetMinutes after shift start.
type BreakWindow struct {
	OffsetMinutes int
	LengthMinutes int
}

// Length is the configured break length; 0 for a nil window.
func (b *BreakWindow) Length() int {
	if b == nil || b.LengthMinutes < 0 {
		return 0
	}
	return b.LengthMinutes
}

// Window returns the concrete break interval for a shift starting at shiftStart.
func (b *BreakWindow) Window(shiftStart time.Time) (time.Time, time.Time) {
	start := shiftStart.Add(time.Duration(b.OffsetMinutes) * time.Minute)
	return start, start.Add(time.Duration(b.Length()) * time.Minute)
}

// BreakDeduction returns the minutes of the break that overlap the effective
// work interval [effStart, effEnd]. It is 0 without a break and never more
// than the break length.
func BreakDeduction(b *BreakWindow, shiftStart, effStart, effEnd time.Time) int {
	if b.Length() == 0 || !effEnd.After(effStart) {
		return 0
	}

	breakStart, breakEnd := b.Window(shiftStart)
	overlapStart := generic.MaxTime(breakStart, effStart)
	overlapEnd := generic.MinTime(breakEnd, effEnd)

	minutes := generic.MinutesBetween(overlapStart, overlapEnd)
	if minutes <= 0 {
		return 0
	}
	if minutes > b.Length() {
		return b.Length()
	}
	return minutes
}
