package validation_test

import (
	"bytes"
	"context"
	"errors"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/jaspel-engine/attendance"
	"github.com/warp/jaspel-engine/generic"
	"github.com/warp/jaspel-engine/generic/store"
	"github.com/warp/jaspel-engine/jaspel"
	"github.com/warp/jaspel-engine/validation"
)

var (
	now       = time.Date(2025, 3, 11, 9, 30, 0, 0, time.UTC)
	validator = generic.Actor{ID: "v1", Name: "Kepala Ruangan", Role: "validator"}
	editor    = generic.Actor{ID: "e1", Name: "Admin Klinik", Role: "admin"}
)

// recordingSink captures emitted events and can be told to fail.
type recordingSink struct {
	mu     sync.Mutex
	events []generic.Event
	err    error
}

func (s *recordingSink) Emit(_ context.Context, e generic.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, e)
	return nil
}

func newService(sink generic.EventSink) (*validation.Service, *store.Memory, *bytes.Buffer) {
	var buf bytes.Buffer
	mem := store.NewMemory()
	svc := validation.NewService(mem, sink, generic.FixedClock{At: now}, log.New(&buf, "", 0))
	return svc, mem, &buf
}

func approvedCount(t *testing.T) jaspel.DailyPatientCount {
	t.Helper()
	c, err := jaspel.NewDailyPatientCount("pc-1", "u1", "Dr. Sari", time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), "Poli Umum", 30, 20)
	require.NoError(t, err)
	by := validator.ID
	at := now.Add(-time.Hour)
	c.Status = generic.StatusApproved
	c.WorkflowStatus = generic.WorkflowCompleted
	c.ValidatedBy = &by
	c.ValidatedAt = &at
	return c
}

// =============================================================================
// PURE TRANSITIONS
// =============================================================================

func TestOnFieldsChanged_ApprovedRevertsToPending(t *testing.T) {
	state := generic.Review{Status: generic.StatusApproved, WorkflowStatus: generic.WorkflowCompleted}

	tr := validation.OnFieldsChanged(state, []string{"generalCount"}, editor, now)

	assert.False(t, tr.Noop())
	assert.True(t, tr.Invalidated())
	assert.Equal(t, generic.StatusPending, tr.To)
	assert.Equal(t, generic.EventValidationInvalidated, tr.EventName)
	assert.Contains(t, tr.Note, "generalCount")
	assert.Nil(t, tr.ValidatedBy)
	assert.Nil(t, tr.ValidatedAt)
}

func TestOnFieldsChanged_RejectedRevertsToPending(t *testing.T) {
	state := generic.Review{Status: generic.StatusRejected}

	tr := validation.OnFieldsChanged(state, []string{"checkOut"}, editor, now)

	assert.Equal(t, generic.StatusPending, tr.To)
	assert.True(t, tr.Invalidated())
}

func TestOnFieldsChanged_PendingOrNoChangeIsNoop(t *testing.T) {
	pending := generic.NewReview()
	approved := generic.Review{Status: generic.StatusApproved}

	assert.True(t, validation.OnFieldsChanged(pending, []string{"generalCount"}, editor, now).Noop())
	assert.True(t, validation.OnFieldsChanged(approved, nil, editor, now).Noop())

	// Applying a no-op leaves the state untouched
	before := approved
	validation.OnFieldsChanged(approved, nil, editor, now).Apply(&approved)
	assert.Equal(t, before, approved)
}

func TestChangedCriticalFields_PatientCount(t *testing.T) {
	before := approvedCount(t)
	after := before
	after.GeneralCount = 35
	after.StaffName = "Dr. Sari W." // not critical

	changed := validation.ChangedCriticalFields(&before, &after)

	assert.Equal(t, []string{jaspel.FieldGeneralCount}, changed)
}

func TestChangedCriticalFields_Attendance(t *testing.T) {
	date := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	before := attendance.NewCheckIn("a-1", "u1", "Ners Budi", date, date.Add(7*time.Hour), 1)
	after := before
	out := date.Add(15 * time.Hour)
	after.CheckOut = &out
	tplID := "pagi"
	after.ShiftTemplateID = &tplID
	after.WithinGeofence = true // not critical

	changed := validation.ChangedCriticalFields(&before, &after)

	assert.Equal(t, []string{attendance.FieldCheckOut, attendance.FieldShiftTemplateID}, changed)
}

func TestApprove_RequiresPending(t *testing.T) {
	approved := generic.Review{Status: generic.StatusApproved}

	_, err := validation.Approve(approved, validator, "", now)

	assert.ErrorIs(t, err, generic.ErrInvalidTransition)
	var te *generic.TransitionError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "approve", te.Action)
}

func TestApprove_SetsValidator(t *testing.T) {
	state := generic.NewReview()

	tr, err := validation.Approve(state, validator, "ok", now)
	require.NoError(t, err)
	tr.Apply(&state)

	assert.Equal(t, generic.StatusApproved, state.Status)
	assert.Equal(t, generic.WorkflowCompleted, state.WorkflowStatus)
	require.NotNil(t, state.ValidatedBy)
	assert.Equal(t, "v1", *state.ValidatedBy)
	assert.Equal(t, now, *state.ValidatedAt)
	assert.Contains(t, state.Notes, "approved by Kepala Ruangan: ok")
}

func TestReject_RequiresReasonAndActor(t *testing.T) {
	state := generic.NewReview()

	_, err := validation.Reject(state, validator, "  ", now)
	assert.ErrorIs(t, err, generic.ErrReasonRequired)

	_, err = validation.Reject(state, generic.Actor{}, "wrong shift", now)
	assert.ErrorIs(t, err, generic.ErrActorRequired)

	tr, err := validation.Reject(state, validator, "wrong shift", now)
	require.NoError(t, err)
	tr.Apply(&state)
	assert.Equal(t, generic.WorkflowCancelled, state.WorkflowStatus)
}

func TestSetStatus_KeepsWorkflowInSync(t *testing.T) {
	tests := []struct {
		to       generic.ValidationStatus
		workflow generic.WorkflowStatus
	}{
		{generic.StatusApproved, generic.WorkflowCompleted},
		{generic.StatusRejected, generic.WorkflowCancelled},
	}

	for _, tt := range tests {
		t.Run(string(tt.to), func(t *testing.T) {
			state := generic.NewReview()
			tr, err := validation.SetStatus(state, tt.to, validator, "manual", now)
			require.NoError(t, err)
			tr.Apply(&state)

			assert.Equal(t, tt.to, state.Status)
			assert.Equal(t, tt.workflow, state.WorkflowStatus)
			assert.Equal(t, generic.EventValidationStatusChanged, tr.EventName)
		})
	}
}

func TestSetStatus_BackToPendingClearsValidator(t *testing.T) {
	by := "v1"
	state := generic.Review{Status: generic.StatusApproved, WorkflowStatus: generic.WorkflowCompleted, ValidatedBy: &by, ValidatedAt: &now}

	tr, err := validation.SetStatus(state, generic.StatusPending, validator, "", now)
	require.NoError(t, err)
	tr.Apply(&state)

	assert.Equal(t, generic.WorkflowPending, state.WorkflowStatus)
	assert.Nil(t, state.ValidatedBy)
	assert.Nil(t, state.ValidatedAt)
}

func TestSetStatus_InvalidStatus(t *testing.T) {
	_, err := validation.SetStatus(generic.NewReview(), "archived", validator, "", now)
	assert.ErrorIs(t, err, generic.ErrInvalidTransition)
}

// =============================================================================
// SERVICE
// =============================================================================

func TestService_EditOfApprovedCountInvalidates(t *testing.T) {
	// GIVEN: an approved count with generalCount 30
	sink := &recordingSink{}
	svc, mem, _ := newService(sink)
	stored := approvedCount(t)
	mem.Put(&stored)

	// WHEN: generalCount is edited to 35
	before := stored
	after := before
	after.GeneralCount = 35
	tr, err := svc.Save(context.Background(), &before, &after, editor)

	// THEN: pending, validator cleared, note lists the field, event names it
	require.NoError(t, err)
	assert.True(t, tr.Invalidated())
	assert.Equal(t, generic.StatusPending, after.Status)
	assert.Equal(t, generic.WorkflowPending, after.WorkflowStatus)
	assert.Nil(t, after.ValidatedBy)
	assert.Nil(t, after.ValidatedAt)
	assert.Contains(t, after.Notes, "generalCount")
	assert.Equal(t, 1, after.Version)

	require.Len(t, sink.events, 1)
	ev := sink.events[0]
	assert.Equal(t, generic.EventValidationInvalidated, ev.Name)
	assert.Equal(t, generic.RecordPatientCount, ev.RecordType)
	assert.Equal(t, generic.RecordID("pc-1"), ev.RecordID)
	assert.Equal(t, generic.StatusApproved, ev.OldStatus)
	assert.Equal(t, generic.StatusPending, ev.NewStatus)
	assert.Equal(t, []string{"generalCount"}, ev.ChangedFields)
	assert.Equal(t, "e1", ev.ActorID)
	assert.Equal(t, "Dr. Sari", ev.Context["staff_name"])
	assert.Equal(t, 35, ev.Context["general_count"])
	assert.NotEmpty(t, ev.ID)
}

func TestService_EditOfPendingIsIdempotent(t *testing.T) {
	sink := &recordingSink{}
	svc, mem, _ := newService(sink)
	stored, err := jaspel.NewDailyPatientCount("pc-2", "u1", "Dr. Sari", now, "Poli Umum", 10, 5)
	require.NoError(t, err)
	mem.Put(&stored)

	before := stored
	after := before
	after.GeneralCount = 12
	tr, err := svc.Save(context.Background(), &before, &after, editor)

	require.NoError(t, err)
	assert.True(t, tr.Noop())
	assert.Equal(t, generic.StatusPending, after.Status)
	assert.Empty(t, after.Notes)
	assert.Empty(t, sink.events)
	assert.Equal(t, 1, after.Version, "the edit itself is still written")
}

func TestService_CannotChangeStatusThroughEdit(t *testing.T) {
	svc, mem, _ := newService(&recordingSink{})
	stored, err := jaspel.NewDailyPatientCount("pc-3", "u1", "Dr. Sari", now, "Poli Umum", 10, 5)
	require.NoError(t, err)
	mem.Put(&stored)

	before := stored
	after := before
	after.Status = generic.StatusApproved

	_, err = svc.Save(context.Background(), &before, &after, editor)

	require.NoError(t, err)
	assert.Equal(t, generic.StatusPending, after.Status)
}

func TestService_ConcurrentEditorsConflict(t *testing.T) {
	// GIVEN: two editors both read the approved record
	sink := &recordingSink{}
	svc, mem, _ := newService(sink)
	stored := approvedCount(t)
	mem.Put(&stored)

	readA, readB := stored, stored
	editA, editB := readA, readB
	editA.GeneralCount = 35
	editB.InsuranceCount = 25

	// WHEN: both save
	_, errA := svc.Save(context.Background(), &readA, &editA, editor)
	_, errB := svc.Save(context.Background(), &readB, &editB, editor)

	// THEN: exactly one invalidation, the other is a retryable conflict
	require.NoError(t, errA)
	require.Error(t, errB)
	assert.ErrorIs(t, errB, generic.ErrConcurrentModification)
	assert.True(t, generic.IsRetryable(errB))
	assert.False(t, generic.IsClientError(errB))
	assert.Equal(t, generic.StatusApproved, editB.Status, "state restored after conflict")
	assert.Len(t, sink.events, 1)
}

func TestService_SinkFailureDoesNotFailEdit(t *testing.T) {
	sink := &recordingSink{err: errors.New("notifier unreachable")}
	svc, mem, logs := newService(sink)
	stored := approvedCount(t)
	mem.Put(&stored)

	before := stored
	after := before
	after.InsuranceCount = 0
	tr, err := svc.Save(context.Background(), &before, &after, editor)

	require.NoError(t, err)
	assert.True(t, tr.Invalidated())
	assert.Contains(t, logs.String(), "failed to emit validation.invalidated")

	got, err := mem.Get(generic.RecordPatientCount, "pc-1")
	require.NoError(t, err)
	assert.Equal(t, generic.StatusPending, got.ReviewState().Status)
}

func TestService_ApproveThenReapproveFails(t *testing.T) {
	sink := &recordingSink{}
	svc, mem, _ := newService(sink)
	stored, err := jaspel.NewDailyPatientCount("pc-4", "u1", "Dr. Sari", now, "Poli Umum", 10, 5)
	require.NoError(t, err)
	mem.Put(&stored)

	rec := stored
	tr, err := svc.Approve(context.Background(), &rec, validator, "")
	require.NoError(t, err)
	assert.Equal(t, generic.StatusApproved, tr.To)
	assert.Equal(t, 1, rec.Version)

	_, err = svc.Approve(context.Background(), &rec, validator, "")
	assert.ErrorIs(t, err, generic.ErrInvalidTransition)
	require.Len(t, sink.events, 1)
	assert.Equal(t, generic.EventValidationStatusChanged, sink.events[0].Name)
}

func TestService_RejectAttendance(t *testing.T) {
	sink := &recordingSink{}
	svc, mem, _ := newService(sink)
	date := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	stored := attendance.NewCheckIn("a-1", "u1", "Ners Budi", date, date.Add(7*time.Hour), 1)
	mem.Put(&stored)

	rec := stored
	_, err := svc.Reject(context.Background(), &rec, validator, "check-in outside geofence")

	require.NoError(t, err)
	assert.Equal(t, generic.StatusRejected, rec.Status)
	assert.Equal(t, generic.WorkflowCancelled, rec.WorkflowStatus)
	require.Len(t, sink.events, 1)
	assert.Equal(t, generic.RecordAttendance, sink.events[0].RecordType)
}

func TestService_StaleApproveConflicts(t *testing.T) {
	svc, mem, _ := newService(nil)
	stored, err := jaspel.NewDailyPatientCount("pc-5", "u1", "Dr. Sari", now, "Poli Umum", 10, 5)
	require.NoError(t, err)
	mem.Put(&stored)

	fresh := stored
	stale := stored
	_, err = svc.Approve(context.Background(), &fresh, validator, "")
	require.NoError(t, err)

	_, err = svc.Reject(context.Background(), &stale, validator, "late")
	var conflict *generic.ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, 0, conflict.ExpectedVersion)
}
