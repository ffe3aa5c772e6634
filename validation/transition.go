/*
Package validation implements the validation invalidation state machine.

PURPOSE:
  Attendance records and patient counts are reviewed by a validator. Once
  approved, the derived figures (work minutes, fees) are trusted by payroll.
  Any later edit to a field those figures depend on must drop the record
  back to pending, atomically with the edit.

STATES:
  pending --approve--> approved
  pending --reject---> rejected
  approved/rejected --critical edit--> pending   (validator cleared, note, event)
  any --SetStatus--> any                         (manual reviewer override)

  A pending record stays pending on edit; no note, no event.

CRITICAL FIELDS:
  Each record type enumerates its critical fields through
  generic.Reviewable.CriticalValues. ChangedCriticalFields diffs two
  snapshots of a record; non-critical edits never invalidate.

PURE / IMPURE SPLIT:
  transition.go and review.go are pure: they compute a Transition from a
  Review value. service.go applies it, persists it with compare-and-swap,
  and emits the event.

SEE ALSO:
  - generic/review.go: Review state and Reviewable
  - generic/store.go: ReviewStore compare-and-swap contract
*/
package validation

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/warp/jaspel-engine/generic"
)

// =============================================================================
// TRANSITION
// =============================================================================

// Transition is the outcome of an edit or review action. Apply writes it
// into a Review; EventFor turns it into a domain event.
type Transition struct {
	From    generic.ValidationStatus
	To      generic.ValidationStatus
	Changed []string
	Note    string

	// EventName is empty when nothing must be emitted.
	EventName string

	Actor generic.Actor
	At    time.Time

	// Validator fields written by Apply. Nil clears them.
	ValidatedBy *string
	ValidatedAt *time.Time

	noop bool
}

// Noop reports whether applying the transition changes nothing.
func (t Transition) Noop() bool { return t.noop }

// Invalidated reports whether an edit reverted a reviewed record to pending.
func (t Transition) Invalidated() bool {
	return t.EventName == generic.EventValidationInvalidated
}

// Apply writes the transition into r.
func (t Transition) Apply(r *generic.Review) {
	if t.noop {
		return
	}
	r.Status = t.To
	r.WorkflowStatus = generic.WorkflowFor(t.To)
	r.ValidatedBy = t.ValidatedBy
	r.ValidatedAt = t.ValidatedAt
	r.AppendNote(t.Note)
}

// EventFor builds the event for rec. Call it after Apply so the context
// reflects the edited values.
func (t Transition) EventFor(rec generic.Reviewable) generic.Event {
	changed := make([]string, len(t.Changed))
	copy(changed, t.Changed)
	return generic.Event{
		ID:            uuid.NewString(),
		Name:          t.EventName,
		RecordType:    rec.RecordType(),
		RecordID:      rec.RecordID(),
		OldStatus:     t.From,
		NewStatus:     t.To,
		ChangedFields: changed,
		ActorID:       string(t.Actor.ID),
		ActorName:     t.Actor.Name,
		Note:          t.Note,
		Context:       rec.EventContext(),
		OccurredAt:    t.At,
	}
}

func noop(state generic.Review, changed []string, actor generic.Actor, now time.Time) Transition {
	return Transition{
		From:        state.Status,
		To:          state.Status,
		Changed:     changed,
		Actor:       actor,
		At:          now,
		ValidatedBy: state.ValidatedBy,
		ValidatedAt: state.ValidatedAt,
		noop:        true,
	}
}

// =============================================================================
// EDIT TRANSITION
// =============================================================================

// OnFieldsChanged computes the transition for an edit that modified the given
// critical fields. Approved and rejected records revert to pending with the
// validator cleared, a note naming exactly the changed fields, and an
// invalidation event. Pending records, and edits with no critical change,
// produce a no-op.
func OnFieldsChanged(state generic.Review, changed []string, actor generic.Actor, now time.Time) Transition {
	if len(changed) == 0 || state.Status == generic.StatusPending {
		return noop(state, changed, actor, now)
	}
	return Transition{
		From:      state.Status,
		To:        generic.StatusPending,
		Changed:   changed,
		Note:      invalidationNote(state.Status, changed, actor, now),
		EventName: generic.EventValidationInvalidated,
		Actor:     actor,
		At:        now,
	}
}

func invalidationNote(from generic.ValidationStatus, changed []string, actor generic.Actor, now time.Time) string {
	return fmt.Sprintf("[%s] %s -> pending after edit by %s; changed: %s",
		now.Format("2006-01-02 15:04"), from, actor, strings.Join(changed, ", "))
}

// ChangedCriticalFields returns the sorted names of critical fields whose
// values differ between before and after.
func ChangedCriticalFields(before, after generic.Reviewable) []string {
	if before == nil || after == nil {
		return nil
	}
	a := before.CriticalValues()
	b := after.CriticalValues()

	var changed []string
	for field, old := range a {
		if b[field] != old {
			changed = append(changed, field)
		}
	}
	for field := range b {
		if _, ok := a[field]; !ok && b[field] != "" {
			changed = append(changed, field)
		}
	}
	sort.Strings(changed)
	return changed
}
