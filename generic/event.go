package generic

import (
	"context"
	"time"
)

// =============================================================================
// DOMAIN EVENTS
// =============================================================================

const (
	// EventValidationInvalidated is emitted when an edit reverts an approved
	// (or rejected) record to pending.
	EventValidationInvalidated = "validation.invalidated"

	// EventValidationStatusChanged is emitted on explicit reviewer actions.
	EventValidationStatusChanged = "validation.status_changed"
)

// Event is a fire-and-forget notification about a record.
type Event struct {
	ID            string           `json:"id"`
	Name          string           `json:"name"`
	RecordType    RecordType       `json:"record_type"`
	RecordID      RecordID         `json:"record_id"`
	OldStatus     ValidationStatus `json:"old_status"`
	NewStatus     ValidationStatus `json:"new_status"`
	ChangedFields []string         `json:"changed_fields,omitempty"`
	ActorID       string           `json:"actor_id"`
	ActorName     string           `json:"actor_name"`
	Note          string           `json:"note,omitempty"`
	Context       map[string]any   `json:"context,omitempty"`
	OccurredAt    time.Time        `json:"occurred_at"`
}

// EventSink delivers events with at-most-best-effort semantics.
// Callers on a write path must never block on, retry, or propagate its errors.
type EventSink interface {
	Emit(ctx context.Context, event Event) error
}

// NopSink discards events.
type NopSink struct{}

func (NopSink) Emit(context.Context, Event) error { return nil }
