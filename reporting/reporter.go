package reporting

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/warp/jaspel-engine/attendance"
	"github.com/warp/jaspel-engine/generic"
)

// =============================================================================
// REPORT TYPES
// =============================================================================

// Report describes one archive-backed report type. Column is injected per
// report type; the archive query filters on it.
type Report struct {
	Name   string
	Table  string
	Column generic.DateColumn
}

var (
	AttendanceReport   = Report{Name: "attendance", Table: "attendance_records", Column: generic.StaticDateColumn("date")}
	PatientCountReport = Report{Name: "patient_counts", Table: "patient_counts", Column: generic.StaticDateColumn("date")}
	ValidationReport   = Report{Name: "validation_events", Table: "validation_events", Column: generic.StaticDateColumn("occurred_at")}
)

// Archive counts rows of a report's table in a period.
type Archive interface {
	CountInPeriod(ctx context.Context, table string, column generic.DateColumn, p generic.Period) (int, error)
}

// Count returns how many archived rows the report has in p.
func (r Report) Count(ctx context.Context, a Archive, p generic.Period) (int, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	n, err := a.CountInPeriod(ctx, r.Table, r.Column, p)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", r.Name, err)
	}
	return n, nil
}

// =============================================================================
// REPORTER - Read-through cached summaries
// =============================================================================

// Source loads the rows a summary is built from.
type Source interface {
	AttendanceFor(ctx context.Context, user generic.UserID, p generic.Period) ([]attendance.Record, error)
	FeesFor(ctx context.Context, user generic.UserID, p generic.Period) ([]DayFee, error)
}

type Reporter struct {
	Source Source
	Cache  Cache
	TTL    time.Duration
	Logger *log.Logger
}

func NewReporter(src Source, cache Cache, ttl time.Duration, logger *log.Logger) *Reporter {
	if logger == nil {
		logger = log.Default()
	}
	return &Reporter{Source: src, Cache: cache, TTL: ttl, Logger: logger}
}

// Summary returns the cached summary or builds and caches it. A failing
// cache degrades to an uncached read.
func (r *Reporter) Summary(ctx context.Context, user generic.UserID, p generic.Period, opts Options) (Summary, error) {
	if err := p.Validate(); err != nil {
		return Summary{}, err
	}
	key := KeyFor(user, p)
	cacheable := r.Cache != nil && !opts.ApprovedOnly

	if cacheable {
		s, ok, err := r.Cache.Get(ctx, key)
		if err != nil {
			r.Logger.Printf("[Reporting] cache get %s: %v", key, err)
		} else if ok {
			return s, nil
		}
	}

	records, err := r.Source.AttendanceFor(ctx, user, p)
	if err != nil {
		return Summary{}, err
	}
	fees, err := r.Source.FeesFor(ctx, user, p)
	if err != nil {
		return Summary{}, err
	}
	s := Summarize(user, p, records, fees, opts)

	if cacheable {
		if err := r.Cache.Set(ctx, key, s, r.TTL); err != nil {
			r.Logger.Printf("[Reporting] cache set %s: %v", key, err)
		}
	}
	return s, nil
}
