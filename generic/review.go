package generic

import (
	"strings"
	"time"
)

// =============================================================================
// VALIDATION STATUS - Shared by attendance-adjacent and fee-adjacent records
// =============================================================================

type ValidationStatus string

const (
	StatusPending  ValidationStatus = "pending"
	StatusApproved ValidationStatus = "approved"
	StatusRejected ValidationStatus = "rejected"
)

func (s ValidationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// WorkflowStatus is the denormalized status shown to schedulers.
// It mirrors ValidationStatus and must stay in sync with it.
type WorkflowStatus string

const (
	WorkflowPending   WorkflowStatus = "pending"
	WorkflowCompleted WorkflowStatus = "completed"
	WorkflowCancelled WorkflowStatus = "cancelled"
)

// WorkflowFor maps a validation status to its workflow status.
func WorkflowFor(s ValidationStatus) WorkflowStatus {
	switch s {
	case StatusApproved:
		return WorkflowCompleted
	case StatusRejected:
		return WorkflowCancelled
	default:
		return WorkflowPending
	}
}

// =============================================================================
// REVIEW - Review state embedded in every reviewable record
// =============================================================================

type Review struct {
	Status         ValidationStatus
	WorkflowStatus WorkflowStatus
	ValidatedBy    *string
	ValidatedAt    *time.Time
	Notes          string

	// Version is bumped on every successful write (optimistic locking).
	Version int
}

// NewReview returns the initial state of a freshly created record.
func NewReview() Review {
	return Review{Status: StatusPending, WorkflowStatus: WorkflowPending}
}

// AppendNote adds a line to Notes.
func (r *Review) AppendNote(note string) {
	note = strings.TrimSpace(note)
	if note == "" {
		return
	}
	if r.Notes == "" {
		r.Notes = note
		return
	}
	r.Notes += "\n" + note
}

// Reviewable is a record whose edits are governed by the validation state machine.
type Reviewable interface {
	RecordType() RecordType
	RecordID() RecordID

	// ReviewState returns a pointer to the record's embedded review state.
	ReviewState() *Review

	// CriticalValues returns the canonical string form of every critical
	// field. A change in any of them invalidates an approval.
	CriticalValues() map[string]string

	// EventContext is the business context a notifier needs to render a
	// message (date, staff name, amounts).
	EventContext() map[string]any
}
