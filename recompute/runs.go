package recompute

import (
	"context"
	"time"
)

// Run triggers.
const (
	TriggerScheduled = "scheduled"
	TriggerManual    = "manual"
)

// Run statuses.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// Run is the audit row of one recompute over one period.
type Run struct {
	ID          string     `json:"id"`
	Period      string     `json:"period"`
	Trigger     string     `json:"trigger"`
	Status      string     `json:"status"`
	Result      Result     `json:"result"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// RunLog persists runs. SaveRun upserts by ID.
type RunLog interface {
	SaveRun(ctx context.Context, run Run) error
	ListRuns(ctx context.Context, limit int) ([]Run, error)
}
