package generic

import (
	"fmt"
	"time"
)

// =============================================================================
// PERIOD - Reporting window (usually a calendar month)
// =============================================================================

// Period is an inclusive date range [Start, End]. Both ends are midnights.
type Period struct {
	Start time.Time
	End   time.Time
}

// MonthPeriod returns the calendar month containing year/month in loc.
func MonthPeriod(year int, month time.Month, loc *time.Location) Period {
	if loc == nil {
		loc = time.UTC
	}
	start := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	return Period{Start: start, End: start.AddDate(0, 1, -1)}
}

// Contains returns true if the calendar date of t is within [Start, End].
func (p Period) Contains(t time.Time) bool {
	d := DateOf(t.In(p.Start.Location()))
	return !d.Before(p.Start) && !d.After(p.End)
}

// Days returns every date in the period.
func (p Period) Days() []time.Time {
	var days []time.Time
	for d := p.Start; !d.After(p.End); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// Validate rejects periods whose end precedes their start.
func (p Period) Validate() error {
	if p.End.Before(p.Start) {
		return ErrInvalidPeriod
	}
	return nil
}

// PreviousMonth returns the month before the one starting at p.Start.
func (p Period) PreviousMonth() Period {
	prev := p.Start.AddDate(0, -1, 0)
	return MonthPeriod(prev.Year(), prev.Month(), p.Start.Location())
}

// Key is a compact identifier, e.g. "2025-03" for a full month.
func (p Period) Key() string {
	if p.Start.Day() == 1 && p.End.Equal(p.Start.AddDate(0, 1, -1)) {
		return p.Start.Format("2006-01")
	}
	return fmt.Sprintf("%s..%s", p.Start.Format("2006-01-02"), p.End.Format("2006-01-02"))
}

func (p Period) String() string {
	return "[" + p.Start.Format("2006-01-02") + ", " + p.End.Format("2006-01-02") + "]"
}

// =============================================================================
// DATE COLUMN - Strategy for archive filtering per report type
// =============================================================================

// DateColumn names the column a report type filters its archive on.
// Injected per report type instead of probing for an override at runtime.
type DateColumn interface {
	DateColumnName() string
}

// StaticDateColumn is a DateColumn with a fixed name.
type StaticDateColumn string

func (c StaticDateColumn) DateColumnName() string { return string(c) }
