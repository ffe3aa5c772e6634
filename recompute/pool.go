/*
Package recompute refreshes the derived attendance fields in bulk.

PURPOSE:
  Derived fields (work minutes, target, shortfall, percentage) are written
  when a record changes. When a shift template is edited, or after a bulk
  import, every affected record of the period has to be recalculated.
  Recomputer runs the attendance calculator over thousands of records on a
  bounded worker pool; Scheduler triggers it nightly.

DESIGN:
  - The calculator is pure, so records are processed independently
  - Only derived columns are written; a recompute is never an edit and
    never touches the validation status
  - A failing record is counted and logged; the run continues
  - A record edited after it was read is skipped; the edit already wrote
    fresh derived fields
  - Cancelling the context stops the run

SEE ALSO:
  - attendance/record.go: Recompute for one record
  - scheduler.go: Cron trigger
*/
package recompute

import (
	"context"
	"errors"
	"log"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/warp/jaspel-engine/attendance"
	"github.com/warp/jaspel-engine/generic"
)

// Store is what a recompute run reads and writes.
type Store interface {
	ListAttendance(ctx context.Context, p generic.Period) ([]attendance.Record, error)
	UpdateDerived(ctx context.Context, r attendance.Record) error
	Catalog(ctx context.Context) (attendance.TemplateSource, error)
}

// Result summarizes a run.
type Result struct {
	Scanned   int `json:"scanned"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Anomalies int `json:"anomalies"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// Recomputer recalculates derived fields over a period.
type Recomputer struct {
	Store     Store
	Calc      *attendance.Calculator
	Workers   int
	Logger    *log.Logger
	OnUpdated func(ctx context.Context, r attendance.Record)
}

func NewRecomputer(store Store, calc *attendance.Calculator, workers int, logger *log.Logger) *Recomputer {
	if workers <= 0 {
		workers = 4
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Recomputer{Store: store, Calc: calc, Workers: workers, Logger: logger}
}

// Run recomputes every non-deleted record of p.
func (rc *Recomputer) Run(ctx context.Context, p generic.Period) (Result, error) {
	if err := p.Validate(); err != nil {
		return Result{}, err
	}
	records, err := rc.Store.ListAttendance(ctx, p)
	if err != nil {
		return Result{}, err
	}
	catalog, err := rc.Store.Catalog(ctx)
	if err != nil {
		return Result{}, err
	}

	var updated, unchanged, anomalies, skipped, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(rc.Workers, 1))

	scanned := 0
	for _, rec := range records {
		if rec.IsDeleted() {
			continue
		}
		if gctx.Err() != nil {
			break
		}
		scanned++
		rec := rec
		g.Go(func() error {
			next, d := attendance.Recompute(rc.Calc, rec, attendance.TemplateFor(rec, catalog))
			if d.Anomaly {
				anomalies.Add(1)
			}
			if sameDerived(rec, next) {
				unchanged.Add(1)
				return nil
			}
			err := rc.Store.UpdateDerived(gctx, next)
			if errors.Is(err, generic.ErrConcurrentModification) {
				skipped.Add(1)
				rc.Logger.Printf("[Recompute] %s: edited during run, skipped", rec.ID)
				return nil
			}
			if err != nil {
				failed.Add(1)
				rc.Logger.Printf("[Recompute] %s: %v", rec.ID, err)
				return nil
			}
			updated.Add(1)
			if rc.OnUpdated != nil {
				rc.OnUpdated(gctx, next)
			}
			return nil
		})
	}
	_ = g.Wait()

	res := Result{
		Scanned:   scanned,
		Updated:   int(updated.Load()),
		Unchanged: int(unchanged.Load()),
		Anomalies: int(anomalies.Load()),
		Skipped:   int(skipped.Load()),
		Failed:    int(failed.Load()),
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}
	rc.Logger.Printf("[Recompute] %s: scanned=%d updated=%d unchanged=%d anomalies=%d skipped=%d failed=%d",
		p.Key(), res.Scanned, res.Updated, res.Unchanged, res.Anomalies, res.Skipped, res.Failed)
	return res, nil
}

func sameDerived(a, b attendance.Record) bool {
	return equalInt(a.WorkDurationMinutes, b.WorkDurationMinutes) &&
		a.TargetMinutes == b.TargetMinutes &&
		a.ShortfallMinutes == b.ShortfallMinutes &&
		a.AttendancePercentage.Equal(b.AttendancePercentage)
}

func equalInt(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
