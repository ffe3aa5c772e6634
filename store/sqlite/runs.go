package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/warp/jaspel-engine/recompute"
)

// =============================================================================
// RECOMPUTE RUNS (recompute.RunLog interface)
// =============================================================================

// SaveRun upserts a run by ID.
func (s *Store) SaveRun(ctx context.Context, r recompute.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO recompute_runs (id, period, run_trigger, status, scanned, updated,
			unchanged, anomalies, skipped, failed, error, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			scanned = excluded.scanned,
			updated = excluded.updated,
			unchanged = excluded.unchanged,
			anomalies = excluded.anomalies,
			skipped = excluded.skipped,
			failed = excluded.failed,
			error = excluded.error,
			completed_at = excluded.completed_at
	`

	var errText any
	if r.Error != "" {
		errText = r.Error
	}
	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.Period, r.Trigger, r.Status,
		r.Result.Scanned, r.Result.Updated, r.Result.Unchanged, r.Result.Anomalies,
		r.Result.Skipped, r.Result.Failed,
		errText, r.StartedAt.UTC().Format(time.RFC3339), formatInstant(r.CompletedAt),
	)
	return err
}

// ListRuns returns the most recent runs first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]recompute.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, period, run_trigger, status, scanned, updated, unchanged, anomalies, skipped,
			failed, error, started_at, completed_at
		FROM recompute_runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []recompute.Run
	for rows.Next() {
		var r recompute.Run
		var errText, completedAt sql.NullString
		var startedAt string
		if err := rows.Scan(
			&r.ID, &r.Period, &r.Trigger, &r.Status,
			&r.Result.Scanned, &r.Result.Updated, &r.Result.Unchanged, &r.Result.Anomalies,
			&r.Result.Skipped, &r.Result.Failed,
			&errText, &startedAt, &completedAt,
		); err != nil {
			return nil, err
		}
		r.Error = errText.String
		if t, err := time.Parse(time.RFC3339, startedAt); err == nil {
			r.StartedAt = t.In(s.loc)
		}
		r.CompletedAt = s.parseInstant(completedAt)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

var _ recompute.RunLog = (*Store)(nil)
