package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/warp/jaspel-engine/generic"
)

// =============================================================================
// EVENT LOG (generic.EventLog interface)
// =============================================================================

// Emit appends an event. Re-emitting the same event ID is a no-op.
func (s *Store) Emit(ctx context.Context, e generic.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed, err := json.Marshal(e.ChangedFields)
	if err != nil {
		return fmt.Errorf("marshal changed fields: %w", err)
	}
	evCtx, err := json.Marshal(e.Context)
	if err != nil {
		return fmt.Errorf("marshal event context: %w", err)
	}

	occurred := e.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO validation_events (id, name, record_type, record_id, old_status, new_status,
			changed_fields_json, actor_id, actor_name, note, context_json, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		e.ID, e.Name, string(e.RecordType), string(e.RecordID),
		string(e.OldStatus), string(e.NewStatus), string(changed),
		e.ActorID, e.ActorName, e.Note, string(evCtx),
		occurred.UTC().Format(time.RFC3339),
	)
	return err
}

// Query returns matching events, oldest first.
func (s *Store) Query(ctx context.Context, filter generic.EventFilter) ([]generic.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var where []string
	var args []any
	if filter.RecordType != nil {
		where = append(where, "record_type = ?")
		args = append(args, string(*filter.RecordType))
	}
	if filter.RecordID != nil {
		where = append(where, "record_id = ?")
		args = append(args, string(*filter.RecordID))
	}
	if len(filter.Names) > 0 {
		where = append(where, "name IN (?"+strings.Repeat(", ?", len(filter.Names)-1)+")")
		for _, n := range filter.Names {
			args = append(args, n)
		}
	}

	query := `SELECT id, name, record_type, record_id, old_status, new_status,
		changed_fields_json, actor_id, actor_name, note, context_json, occurred_at
		FROM validation_events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY occurred_at, rowid"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []generic.Event
	for rows.Next() {
		var e generic.Event
		var recordType, recordID, oldStatus, newStatus, occurred string
		var changed, note, evCtx sql.NullString
		err := rows.Scan(&e.ID, &e.Name, &recordType, &recordID, &oldStatus, &newStatus,
			&changed, &e.ActorID, &e.ActorName, &note, &evCtx, &occurred)
		if err != nil {
			return nil, err
		}
		e.RecordType = generic.RecordType(recordType)
		e.RecordID = generic.RecordID(recordID)
		e.OldStatus = generic.ValidationStatus(oldStatus)
		e.NewStatus = generic.ValidationStatus(newStatus)
		e.Note = note.String
		if changed.Valid && changed.String != "" {
			_ = json.Unmarshal([]byte(changed.String), &e.ChangedFields)
		}
		if evCtx.Valid && evCtx.String != "" {
			_ = json.Unmarshal([]byte(evCtx.String), &e.Context)
		}
		if t, err := time.Parse(time.RFC3339, occurred); err == nil {
			e.OccurredAt = t.In(s.loc)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

var _ generic.EventLog = (*Store)(nil)
