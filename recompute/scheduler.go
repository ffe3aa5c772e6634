package recompute

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/warp/jaspel-engine/generic"
)

// DefaultSpec runs at 01:15 every night.
const DefaultSpec = "15 1 * * *"

// Scheduler runs the recomputer on a cron schedule. Each run covers the
// current month; during the first days of a month the previous month is
// recomputed too, since late corrections still land there.
type Scheduler struct {
	Recomputer *Recomputer
	Clock      generic.Clock
	Spec       string
	Enabled    bool
	Timeout    time.Duration

	// Runs records every run for audit. Optional.
	Runs RunLog

	// PreviousMonthDays is how many days into a month the previous month
	// is still recomputed.
	PreviousMonthDays int

	cron *cron.Cron
	mu   sync.Mutex
	last time.Time
}

func NewScheduler(rc *Recomputer, clock generic.Clock, spec string) *Scheduler {
	if spec == "" {
		spec = DefaultSpec
	}
	return &Scheduler{
		Recomputer:        rc,
		Clock:             clock,
		Spec:              spec,
		Enabled:           true,
		Timeout:           30 * time.Minute,
		PreviousMonthDays: 5,
	}
}

// Start registers the job and starts the cron runner.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return nil
	}
	if s.cron != nil {
		return nil
	}

	c := cron.New(
		cron.WithLocation(s.Clock.Location()),
		cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
	)
	if _, err := c.AddFunc(s.Spec, s.RunNow); err != nil {
		return fmt.Errorf("invalid recompute schedule %q: %w", s.Spec, err)
	}
	c.Start()
	s.cron = c

	log.Printf("[Scheduler] Started recompute schedule=%q tz=%s", s.Spec, s.Clock.Location())
	return nil
}

// Stop stops the runner and waits for a running job.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
		log.Println("[Scheduler] Stopped")
	}
}

// RunNow is the cron job body.
func (s *Scheduler) RunNow() {
	ctx, cancel := context.WithTimeout(context.Background(), s.Timeout)
	defer cancel()
	s.RunPeriods(ctx, TriggerScheduled, s.Periods(s.Clock.Now())...)
}

// RunPeriods recomputes each period in turn and records one Run per period.
// A failing period does not stop the others.
func (s *Scheduler) RunPeriods(ctx context.Context, trigger string, periods ...generic.Period) []Run {
	runs := make([]Run, 0, len(periods))
	for _, p := range periods {
		run := Run{
			ID:        uuid.NewString(),
			Period:    p.Key(),
			Trigger:   trigger,
			Status:    RunRunning,
			StartedAt: s.Clock.Now(),
		}
		s.saveRun(ctx, run)

		res, err := s.Recomputer.Run(ctx, p)
		done := s.Clock.Now()
		run.Result = res
		run.CompletedAt = &done
		run.Status = RunCompleted
		if err != nil {
			run.Status = RunFailed
			run.Error = err.Error()
			log.Printf("[Scheduler] Recompute %s failed: %v", p.Key(), err)
		}
		s.saveRun(context.WithoutCancel(ctx), run)
		runs = append(runs, run)
	}

	s.mu.Lock()
	s.last = s.Clock.Now()
	s.mu.Unlock()
	return runs
}

func (s *Scheduler) saveRun(ctx context.Context, run Run) {
	if s.Runs == nil {
		return
	}
	if err := s.Runs.SaveRun(ctx, run); err != nil {
		log.Printf("[Scheduler] Error saving run %s: %v", run.ID, err)
	}
}

// Periods returns the months a run at now covers.
func (s *Scheduler) Periods(now time.Time) []generic.Period {
	current := generic.MonthPeriod(now.Year(), now.Month(), now.Location())
	if now.Day() <= s.PreviousMonthDays {
		return []generic.Period{current.PreviousMonth(), current}
	}
	return []generic.Period{current}
}

// LastRun returns when RunNow last completed, zero if never.
func (s *Scheduler) LastRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// NextRun returns the next scheduled run, zero when not started.
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron == nil {
		return time.Time{}
	}
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}
