/*
store.go - Persistence interfaces for reviewable records

PURPOSE:
  Defines the boundary between the engines and the database. The engines
  are pure; only the validation write path and the reporting layer talk
  to a store. Different implementations can use SQLite, PostgreSQL, or
  in-memory storage.

KEY INTERFACES:
  ReviewStore: Compare-and-swap write of a reviewable record
  EventLog:    Append-only history of emitted domain events

OPTIMISTIC CONCURRENCY:
  Every reviewable record carries a Version. SaveReviewed only succeeds
  when the stored row still has the version AND the validation status the
  caller read. Otherwise it returns a *ConflictError (ErrConcurrentModification)
  and nothing is written. Two editors that both saw "approved" can therefore
  never both believe they performed the approved -> pending transition.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite
  - generic/store/memory.go: In-memory for testing

SEE ALSO:
  - validation/service.go: The write path using ReviewStore
*/
package generic

import "context"

// =============================================================================
// REVIEW STORE - Compare-and-swap persistence
// =============================================================================

// ReviewStore persists reviewable records under optimistic locking.
type ReviewStore interface {
	// SaveReviewed writes rec if the stored copy still has expectedVersion and
	// expectedStatus. On success the record's Version is incremented.
	SaveReviewed(ctx context.Context, rec Reviewable, expectedVersion int, expectedStatus ValidationStatus) error
}

// =============================================================================
// EVENT LOG - Separate from records, tracks what was emitted
// =============================================================================

// EventLog stores emitted events. Append-only.
type EventLog interface {
	EventSink
	Query(ctx context.Context, filter EventFilter) ([]Event, error)
}

type EventFilter struct {
	RecordType *RecordType
	RecordID   *RecordID
	Names      []string
	Limit      int
}
