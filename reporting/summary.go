/*
Package reporting aggregates engine outputs into per-user, per-period
summaries.

PURPOSE:
  Reports read the derived fields written by the attendance and jaspel
  engines. They never recompute durations or fees, and a value the engine
  could not produce (nil work minutes, no rate card) renders as zero.

KEY CONCEPTS:
  - Summary: Days present, worked vs. target minutes, compliance, daily
    trend and fee total for one user and one period
  - Report: A report type with its archive table and injected DateColumn
  - Cache: Read-through cache keyed by a typed Key{UserID, Period}. The
    engines are cache-agnostic; edits call Invalidator.

SEE ALSO:
  - cache.go: Cache interface, memory cache, invalidator
  - rediscache/: Redis-backed Cache
*/
package reporting

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/jaspel-engine/attendance"
	"github.com/warp/jaspel-engine/generic"
)

// =============================================================================
// SUMMARY
// =============================================================================

type TrendPoint struct {
	Date          time.Time       `json:"date"`
	WorkedMinutes int             `json:"worked_minutes"`
	TargetMinutes int             `json:"target_minutes"`
	Percentage    decimal.Decimal `json:"percentage"`
}

type Summary struct {
	UserID           generic.UserID  `json:"user_id"`
	Period           string          `json:"period"`
	DaysPresent      int             `json:"days_present"`
	Shifts           int             `json:"shifts"`
	WorkedMinutes    int             `json:"worked_minutes"`
	TargetMinutes    int             `json:"target_minutes"`
	ShortfallMinutes int             `json:"shortfall_minutes"`
	ComplianceRate   decimal.Decimal `json:"compliance_rate"`
	Trend            []TrendPoint    `json:"trend"`
	FeeTotal         decimal.Decimal `json:"fee_total"`
	PendingRecords   int             `json:"pending_records"`
}

// DayFee is the payable amount of one patient-count row.
type DayFee struct {
	Date   time.Time
	Amount decimal.Decimal
	Status generic.ValidationStatus
}

type Options struct {
	// ApprovedOnly restricts the summary to approved rows.
	ApprovedOnly bool
}

var hundred = decimal.NewFromInt(100)

// Summarize aggregates one user's rows over a period. Rows outside the
// period, of other users, soft-deleted or rejected are ignored.
func Summarize(user generic.UserID, period generic.Period, records []attendance.Record, fees []DayFee, opts Options) Summary {
	s := Summary{
		UserID:         user,
		Period:         period.Key(),
		ComplianceRate: decimal.Zero,
		FeeTotal:       decimal.Zero,
	}

	byDay := make(map[time.Time]*TrendPoint)
	present := make(map[time.Time]bool)
	for _, r := range records {
		if r.UserID != user || r.IsDeleted() || !period.Contains(r.Date) || !counted(r.Status, opts) {
			continue
		}
		day := generic.DateOf(r.Date.In(period.Start.Location()))
		p, ok := byDay[day]
		if !ok {
			p = &TrendPoint{Date: day}
			byDay[day] = p
		}

		worked := 0
		if r.WorkDurationMinutes != nil {
			worked = *r.WorkDurationMinutes
		}
		p.WorkedMinutes += worked
		p.TargetMinutes += r.TargetMinutes

		s.Shifts++
		s.WorkedMinutes += worked
		s.TargetMinutes += r.TargetMinutes
		s.ShortfallMinutes += r.ShortfallMinutes
		if r.Status == generic.StatusPending {
			s.PendingRecords++
		}
		if r.CheckIn != nil {
			present[day] = true
		}
	}

	for _, f := range fees {
		if period.Contains(f.Date) && counted(f.Status, opts) {
			s.FeeTotal = s.FeeTotal.Add(f.Amount)
		}
	}

	s.DaysPresent = len(present)
	s.Trend = make([]TrendPoint, 0, len(byDay))
	for _, p := range byDay {
		p.Percentage = Percentage(p.WorkedMinutes, p.TargetMinutes)
		s.Trend = append(s.Trend, *p)
	}
	sort.Slice(s.Trend, func(i, j int) bool { return s.Trend[i].Date.Before(s.Trend[j].Date) })

	s.ComplianceRate = Percentage(s.WorkedMinutes, s.TargetMinutes)
	return s
}

func counted(status generic.ValidationStatus, opts Options) bool {
	if opts.ApprovedOnly {
		return status == generic.StatusApproved
	}
	return status != generic.StatusRejected
}

// Percentage returns worked/target*100 clamped to [0, 100], 2 decimals.
// A zero target yields 0.
func Percentage(worked, target int) decimal.Decimal {
	if target <= 0 {
		return decimal.Zero
	}
	pct := decimal.NewFromInt(int64(max(worked, 0))).Mul(hundred).Div(decimal.NewFromInt(int64(target)))
	if pct.GreaterThan(hundred) {
		pct = hundred
	}
	return pct.Round(2)
}
