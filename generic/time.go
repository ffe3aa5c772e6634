package generic

import (
	"fmt"
	"time"
)

// =============================================================================
// TIME OF DAY - Wall-clock time without a date (shift template boundaries)
// =============================================================================

// TimeOfDay is minutes since midnight, in [0, 1440).
type TimeOfDay struct {
	Minutes int
}

func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay{Minutes: ((hour*60+minute)%1440 + 1440) % 1440}
}

// ParseTimeOfDay accepts "HH:MM" or "HH:MM:SS".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return NewTimeOfDay(t.Hour(), t.Minute()), nil
		}
	}
	return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, s)
}

func MustParseTimeOfDay(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

func (t TimeOfDay) Hour() int   { return t.Minutes / 60 }
func (t TimeOfDay) Minute() int { return t.Minutes % 60 }

func (t TimeOfDay) Before(o TimeOfDay) bool { return t.Minutes < o.Minutes }
func (t TimeOfDay) After(o TimeOfDay) bool  { return t.Minutes > o.Minutes }

// On places the time of day on the calendar date of d, in d's location.
func (t TimeOfDay) On(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), t.Hour(), t.Minute(), 0, 0, d.Location())
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

func (t TimeOfDay) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	parsed, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// =============================================================================
// CLOCK - Single configured local timezone
// =============================================================================

// Clock provides "now" and "today" in the configured local zone.
type Clock interface {
	Now() time.Time
	Location() *time.Location
}

// LocalClock is the production clock bound to one location.
type LocalClock struct {
	Loc *time.Location
}

func NewLocalClock(zone string) (*LocalClock, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", zone, err)
	}
	return &LocalClock{Loc: loc}, nil
}

func (c *LocalClock) Now() time.Time            { return time.Now().In(c.location()) }
func (c *LocalClock) Location() *time.Location { return c.location() }

func (c *LocalClock) location() *time.Location {
	if c == nil || c.Loc == nil {
		return time.UTC
	}
	return c.Loc
}

// FixedClock always returns the same instant. Used in tests and replays.
type FixedClock struct {
	At time.Time
}

func (c FixedClock) Now() time.Time            { return c.At }
func (c FixedClock) Location() *time.Location { return c.At.Location() }

// Today returns midnight of the clock's current date.
func Today(c Clock) time.Time {
	return DateOf(c.Now())
}

// =============================================================================
// TIME UTILITIES
// =============================================================================

// DateOf truncates t to midnight in its own location.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// MinutesBetween returns whole minutes from a to b (negative if b < a).
func MinutesBetween(a, b time.Time) int {
	return int(b.Sub(a) / time.Minute)
}

func MaxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func MinTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
