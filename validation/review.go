package validation

import (
	"fmt"
	"strings"
	"time"

	"github.com/warp/jaspel-engine/generic"
)

// =============================================================================
// REVIEWER ACTIONS
// =============================================================================

// Approve moves a pending record to approved and records the validator.
func Approve(state generic.Review, actor generic.Actor, note string, now time.Time) (Transition, error) {
	if actor.IsZero() {
		return Transition{}, generic.ErrActorRequired
	}
	if state.Status != generic.StatusPending {
		return Transition{}, &generic.TransitionError{From: state.Status, To: generic.StatusApproved, Action: "approve"}
	}
	return reviewed(state, generic.StatusApproved, actor, reviewNote("approved", actor, note, now), now), nil
}

// Reject moves a pending record to rejected. A reason is mandatory.
func Reject(state generic.Review, actor generic.Actor, reason string, now time.Time) (Transition, error) {
	if actor.IsZero() {
		return Transition{}, generic.ErrActorRequired
	}
	if strings.TrimSpace(reason) == "" {
		return Transition{}, generic.ErrReasonRequired
	}
	if state.Status != generic.StatusPending {
		return Transition{}, &generic.TransitionError{From: state.Status, To: generic.StatusRejected, Action: "reject"}
	}
	return reviewed(state, generic.StatusRejected, actor, reviewNote("rejected", actor, reason, now), now), nil
}

// SetStatus is the manual reviewer override: any status to any status.
// Setting the current status again is a no-op.
func SetStatus(state generic.Review, to generic.ValidationStatus, actor generic.Actor, note string, now time.Time) (Transition, error) {
	if actor.IsZero() {
		return Transition{}, generic.ErrActorRequired
	}
	if !to.Valid() {
		return Transition{}, &generic.TransitionError{From: state.Status, To: to, Action: "set status"}
	}
	if to == state.Status {
		return noop(state, nil, actor, now), nil
	}
	if to == generic.StatusRejected && strings.TrimSpace(note) == "" {
		return Transition{}, generic.ErrReasonRequired
	}
	return reviewed(state, to, actor, reviewNote("set to "+string(to), actor, note, now), now), nil
}

func reviewed(state generic.Review, to generic.ValidationStatus, actor generic.Actor, note string, now time.Time) Transition {
	t := Transition{
		From:      state.Status,
		To:        to,
		Note:      note,
		EventName: generic.EventValidationStatusChanged,
		Actor:     actor,
		At:        now,
	}
	if to != generic.StatusPending {
		by := actor.ID
		at := now
		t.ValidatedBy = &by
		t.ValidatedAt = &at
	}
	return t
}

func reviewNote(action string, actor generic.Actor, text string, now time.Time) string {
	note := fmt.Sprintf("[%s] %s by %s", now.Format("2006-01-02 15:04"), action, actor)
	if text = strings.TrimSpace(text); text != "" {
		note += ": " + text
	}
	return note
}
