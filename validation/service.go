package validation

import (
	"context"
	"log"
	"time"

	"github.com/warp/jaspel-engine/generic"
)

// =============================================================================
// SERVICE - The write path
// =============================================================================

// Service applies transitions to records, persists them with
// compare-and-swap and emits the resulting events.
//
// Write order for every operation:
//  1. compute the transition from the state the caller read
//  2. apply it to the record
//  3. SaveReviewed(expected version, expected status); conflict aborts
//  4. emit the event; failure is logged, never returned
type Service struct {
	Store  generic.ReviewStore
	Sink   generic.EventSink
	Clock  generic.Clock
	Logger *log.Logger
}

func NewService(store generic.ReviewStore, sink generic.EventSink, clock generic.Clock, logger *log.Logger) *Service {
	if sink == nil {
		sink = generic.NopSink{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Service{Store: store, Sink: sink, Clock: clock, Logger: logger}
}

// Save persists an edit. before is the record as the caller read it, after
// the edited copy. The review state of after is always derived from
// before: callers cannot change the status through an edit.
//
// Returns generic.ErrConcurrentModification (as *generic.ConflictError) when
// the stored record moved on since before was read.
func (s *Service) Save(ctx context.Context, before, after generic.Reviewable, actor generic.Actor) (Transition, error) {
	if actor.IsZero() {
		return Transition{}, generic.ErrActorRequired
	}
	prev := *before.ReviewState()
	changed := ChangedCriticalFields(before, after)
	t := OnFieldsChanged(prev, changed, actor, s.now())

	*after.ReviewState() = prev
	if err := s.commit(ctx, after, prev, t); err != nil {
		return Transition{}, err
	}
	if t.Invalidated() {
		s.Logger.Printf("[Validation] %s %s reverted %s -> pending by %s (changed: %v)",
			after.RecordType(), after.RecordID(), t.From, actor, changed)
	}
	return t, nil
}

// Approve approves a pending record.
func (s *Service) Approve(ctx context.Context, rec generic.Reviewable, actor generic.Actor, note string) (Transition, error) {
	prev := *rec.ReviewState()
	t, err := Approve(prev, actor, note, s.now())
	if err != nil {
		return Transition{}, err
	}
	return t, s.commit(ctx, rec, prev, t)
}

// Reject rejects a pending record with a reason.
func (s *Service) Reject(ctx context.Context, rec generic.Reviewable, actor generic.Actor, reason string) (Transition, error) {
	prev := *rec.ReviewState()
	t, err := Reject(prev, actor, reason, s.now())
	if err != nil {
		return Transition{}, err
	}
	return t, s.commit(ctx, rec, prev, t)
}

// SetStatus applies a manual reviewer status change.
func (s *Service) SetStatus(ctx context.Context, rec generic.Reviewable, to generic.ValidationStatus, actor generic.Actor, note string) (Transition, error) {
	prev := *rec.ReviewState()
	t, err := SetStatus(prev, to, actor, note, s.now())
	if err != nil {
		return Transition{}, err
	}
	return t, s.commit(ctx, rec, prev, t)
}

func (s *Service) commit(ctx context.Context, rec generic.Reviewable, prev generic.Review, t Transition) error {
	t.Apply(rec.ReviewState())
	if err := s.Store.SaveReviewed(ctx, rec, prev.Version, prev.Status); err != nil {
		*rec.ReviewState() = prev
		return err
	}
	if t.EventName != "" {
		s.emit(ctx, t.EventFor(rec))
	}
	return nil
}

// emit never fails the caller. The edit is already committed.
func (s *Service) emit(ctx context.Context, event generic.Event) {
	if err := s.Sink.Emit(ctx, event); err != nil {
		s.Logger.Printf("[Validation] failed to emit %s for %s %s: %v",
			event.Name, event.RecordType, event.RecordID, err)
	}
}

func (s *Service) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock.Now()
}
