/*
handlers_test.go - HTTP tests for API handlers

Tests drive the chi router end to end against an in-memory SQLite store
and a fixed clock (2025-03-10 15:00 WIB):
- Check-in / check-out and derived minutes
- Approval invalidation on edit, stale versions, missing actor
- Fee endpoints (single-staff and shared-total)
- Monthly report cache invalidation
- JWT actor resolution
- Demo scenarios and manual recompute
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/jaspel-engine/factory"
	"github.com/warp/jaspel-engine/generic"
	"github.com/warp/jaspel-engine/jaspel"
	"github.com/warp/jaspel-engine/recompute"
	"github.com/warp/jaspel-engine/reporting"
	"github.com/warp/jaspel-engine/store/sqlite"
)

var wib = time.FixedZone("WIB", 7*3600)

type testServer struct {
	h      *Handler
	router http.Handler
}

func setupTestServer(t *testing.T, opts RouterOptions) *testServer {
	t.Helper()
	store, err := sqlite.New(":memory:", sqlite.WithLocation(wib))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	clock := generic.FixedClock{At: time.Date(2025, 3, 10, 15, 0, 0, 0, wib)}
	h := NewHandler(store, clock)
	require.NoError(t, h.SeedPresets(context.Background()))

	opts.EnableReset = true
	return &testServer{h: h, router: NewRouter(h, opts)}
}

// do sends a JSON request. actor sets X-Actor-ID when not empty.
func (s *testServer) do(t *testing.T, method, path string, body any, actor string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if actor != "" {
		req.Header.Set("X-Actor-ID", actor)
		req.Header.Set("X-Actor-Name", actor)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v), w.Body.String())
	return v
}

type attendanceWrite struct {
	Record     AttendanceDTO `json:"record"`
	Transition TransitionDTO `json:"transition"`
}

type countWrite struct {
	Record     PatientCountDTO `json:"record"`
	Transition TransitionDTO   `json:"transition"`
}

func (s *testServer) schedule(t *testing.T, user, date, template string) {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/schedules", DutyScheduleRequest{UserID: user, Date: date, ShiftTemplateID: template}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func (s *testServer) checkIn(t *testing.T, user, at string) AttendanceDTO {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/attendance/check-in", CheckInRequest{UserID: user, StaffName: user, At: at}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decodeBody[AttendanceDTO](t, w)
}

func (s *testServer) createCount(t *testing.T, user, date, unit string, general, insurance int) PatientCountDTO {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/patient-counts", PatientCountRequest{
		UserID: user, Date: date, ClinicUnit: unit, GeneralCount: general, InsuranceCount: insurance,
	}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decodeBody[PatientCountDTO](t, w)
}

// =============================================================================
// CATALOG
// =============================================================================

func TestSaveShift_ReferencedTemplateConflicts(t *testing.T) {
	// GIVEN: u1 is scheduled on pagi
	s := setupTestServer(t, RouterOptions{})
	s.schedule(t, "u1", "2025-03-10", "pagi")

	// WHEN: pagi is stretched to 20:00
	w := s.do(t, http.MethodPost, "/api/shifts", factory.ShiftTemplateJSON{
		ID: "pagi", Name: "Pagi", StartTime: "07:00", EndTime: "20:00",
	}, "")

	// THEN: refused, a new template id is accepted
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	w = s.do(t, http.MethodPost, "/api/shifts", factory.ShiftTemplateJSON{
		ID: "pagi-panjang", Name: "Pagi Panjang", StartTime: "07:00", EndTime: "20:00",
	}, "")
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/api/shifts", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	for _, tpl := range decodeBody[[]factory.ShiftTemplateJSON](t, w) {
		if tpl.ID == "pagi" {
			assert.Equal(t, "14:00", tpl.EndTime)
		}
	}
}

func TestSaveRateCard_InvalidatesReports(t *testing.T) {
	// GIVEN: a cached report with one Pagi count of 20/10
	s := setupTestServer(t, RouterOptions{})
	s.schedule(t, "u1", "2025-03-10", "pagi")
	s.createCount(t, "u1", "2025-03-10", "Poli Umum", 20, 10)

	w := s.do(t, http.MethodGet, "/api/reports/users/u1/monthly?month=2025-03", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	before := decodeBody[reporting.Summary](t, w)
	assert.True(t, before.FeeTotal.Equal(decimal.NewFromInt(136000)), before.FeeTotal.String())

	// WHEN: the Pagi general fee goes from 5000 to 6000
	w = s.do(t, http.MethodPost, "/api/rate-cards", factory.RateCardJSON{
		ID: "pagi", ShiftType: "Pagi", PatientThreshold: 10,
		GeneralUnitFee:   decimal.NewFromInt(6000),
		InsuranceUnitFee: decimal.NewFromInt(3000),
		FlatSittingFee:   decimal.NewFromInt(50000),
		IsActive:         true,
	}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// THEN: 13 general excess patients now earn 1000 more each
	w = s.do(t, http.MethodGet, "/api/reports/users/u1/monthly?month=2025-03", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	after := decodeBody[reporting.Summary](t, w)
	assert.True(t, after.FeeTotal.Equal(decimal.NewFromInt(149000)), after.FeeTotal.String())
}

// =============================================================================
// ATTENDANCE
// =============================================================================

func TestCheckInCheckOut_DerivesMinutes(t *testing.T) {
	// GIVEN: u1 is scheduled on the Pagi shift (07:00-14:00)
	s := setupTestServer(t, RouterOptions{})
	s.schedule(t, "u1", "2025-03-10", "pagi")

	// WHEN: u1 checks in at 07:02
	rec := s.checkIn(t, "u1", "2025-03-10T07:02:00+07:00")

	// THEN: the record is pending, linked to the schedule, targeting 420 minutes
	assert.Equal(t, "2025-03-10", rec.Date)
	assert.Equal(t, 1, rec.ShiftSequence)
	assert.Equal(t, "pending", rec.ValidationStatus)
	require.NotNil(t, rec.DutyScheduleID)
	assert.Equal(t, 420, rec.TargetMinutes)

	// WHEN: u1 checks out at 13:30
	v := rec.Version
	w := s.do(t, http.MethodPost, "/api/attendance/"+rec.ID+"/check-out", CheckOutRequest{At: "13:30", Version: &v}, "u1")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	out := decodeBody[attendanceWrite](t, w)

	// THEN: 388 minutes worked, 32 short, still pending
	require.NotNil(t, out.Record.WorkDurationMinutes)
	assert.Equal(t, 388, *out.Record.WorkDurationMinutes)
	assert.Equal(t, 32, out.Record.ShortfallMinutes)
	assert.Equal(t, "pending", out.Record.ValidationStatus)
	assert.False(t, out.Transition.Invalidated)
	assert.Equal(t, rec.Version+1, out.Record.Version)
}

func TestCheckIn_SecondOpenRecordConflicts(t *testing.T) {
	// GIVEN: u1 is checked in
	s := setupTestServer(t, RouterOptions{})
	s.checkIn(t, "u1", "2025-03-10T07:00:00+07:00")

	// WHEN: u1 checks in again before checking out
	w := s.do(t, http.MethodPost, "/api/attendance/check-in", CheckInRequest{UserID: "u1", At: "2025-03-10T08:00:00+07:00"}, "")

	// THEN: 409
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCheckOut_RequiresActor(t *testing.T) {
	// GIVEN: an open record
	s := setupTestServer(t, RouterOptions{})
	rec := s.checkIn(t, "u1", "2025-03-10T07:00:00+07:00")

	// WHEN: checking out without an actor
	w := s.do(t, http.MethodPost, "/api/attendance/"+rec.ID+"/check-out", CheckOutRequest{At: "14:00"}, "")

	// THEN: 400 and the record stays open
	assert.Equal(t, http.StatusBadRequest, w.Code)
	got := s.do(t, http.MethodGet, "/api/attendance/"+rec.ID, nil, "")
	assert.Nil(t, decodeBody[AttendanceDTO](t, got).CheckOut)
}

func TestGetAttendance_NotFound(t *testing.T) {
	s := setupTestServer(t, RouterOptions{})

	w := s.do(t, http.MethodGet, "/api/attendance/missing", nil, "")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Attendance not found", decodeBody[ErrorResponse](t, w).Error)
}

func TestApproveThenCorrect_InvalidatesAttendance(t *testing.T) {
	// GIVEN: an approved, checked-out record
	s := setupTestServer(t, RouterOptions{})
	s.schedule(t, "u1", "2025-03-10", "pagi")
	rec := s.checkIn(t, "u1", "2025-03-10T07:00:00+07:00")
	w := s.do(t, http.MethodPost, "/api/attendance/"+rec.ID+"/check-out", CheckOutRequest{At: "14:00"}, "u1")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/attendance/"+rec.ID+"/approve", ReviewRequest{Note: "ok"}, "spv")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	approved := decodeBody[attendanceWrite](t, w)
	assert.Equal(t, "approved", approved.Record.ValidationStatus)
	require.NotNil(t, approved.Record.ValidatedBy)
	assert.Equal(t, "spv", *approved.Record.ValidatedBy)

	// WHEN: the check-out time is corrected
	checkOut := "13:00"
	v := approved.Record.Version
	w = s.do(t, http.MethodPut, "/api/attendance/"+rec.ID, CorrectionRequest{CheckOut: &checkOut, Version: &v}, "u1")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	edited := decodeBody[attendanceWrite](t, w)

	// THEN: the approval is invalidated and minutes recomputed
	assert.True(t, edited.Transition.Invalidated)
	assert.Equal(t, "approved", edited.Transition.From)
	assert.Equal(t, "pending", edited.Transition.To)
	assert.Contains(t, edited.Transition.Changed, "checkOut")
	assert.Equal(t, "pending", edited.Record.ValidationStatus)
	require.NotNil(t, edited.Record.WorkDurationMinutes)
	assert.Equal(t, 360, *edited.Record.WorkDurationMinutes)

	// THEN: both transitions are in the history
	w = s.do(t, http.MethodGet, "/api/attendance/"+rec.ID+"/events", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody[[]generic.Event](t, w), 2)
}

func TestApprove_StaleVersionConflicts(t *testing.T) {
	// GIVEN: a record at version 0
	s := setupTestServer(t, RouterOptions{})
	rec := s.checkIn(t, "u1", "2025-03-10T07:00:00+07:00")

	// WHEN: approving with a stale version
	stale := rec.Version + 5
	w := s.do(t, http.MethodPost, "/api/attendance/"+rec.ID+"/approve", ReviewRequest{Version: &stale}, "spv")

	// THEN: 409 and nothing changed
	assert.Equal(t, http.StatusConflict, w.Code)
	got := decodeBody[AttendanceDTO](t, s.do(t, http.MethodGet, "/api/attendance/"+rec.ID, nil, ""))
	assert.Equal(t, "pending", got.ValidationStatus)
}

func TestDeleteAttendance_HidesFromList(t *testing.T) {
	// GIVEN: a record
	s := setupTestServer(t, RouterOptions{})
	rec := s.checkIn(t, "u1", "2025-03-10T07:00:00+07:00")

	// WHEN: it is soft deleted
	w := s.do(t, http.MethodDelete, "/api/attendance/"+rec.ID, nil, "u1")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// THEN: it no longer appears in the month
	w = s.do(t, http.MethodGet, "/api/attendance?user=u1&month=2025-03", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decodeBody[[]AttendanceDTO](t, w))
}

// =============================================================================
// PATIENT COUNTS AND FEES
// =============================================================================

func TestCreatePatientCount_NegativeRejected(t *testing.T) {
	s := setupTestServer(t, RouterOptions{})

	w := s.do(t, http.MethodPost, "/api/patient-counts", PatientCountRequest{
		UserID: "u1", Date: "2025-03-10", GeneralCount: -1,
	}, "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Validation failed", decodeBody[ErrorResponse](t, w).Error)
}

func TestEditApprovedCount_ReturnsToPending(t *testing.T) {
	// GIVEN: an approved count of 20 general / 10 insurance
	s := setupTestServer(t, RouterOptions{})
	c := s.createCount(t, "u1", "2025-03-10", "Poli Umum", 20, 10)
	w := s.do(t, http.MethodPost, "/api/patient-counts/"+c.ID+"/approve", nil, "spv")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// WHEN: the general count is edited
	general := 25
	w = s.do(t, http.MethodPut, "/api/patient-counts/"+c.ID, PatientCountEditRequest{GeneralCount: &general}, "u1")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	edited := decodeBody[countWrite](t, w)

	// THEN: pending again, total recomputed
	assert.True(t, edited.Transition.Invalidated)
	assert.Equal(t, "pending", edited.Record.ValidationStatus)
	assert.Equal(t, 35, edited.Record.TotalCount)
	assert.Equal(t, 2, edited.Record.Version)
}

func TestEditPendingCount_NonCriticalStaysPending(t *testing.T) {
	// GIVEN: a pending count
	s := setupTestServer(t, RouterOptions{})
	c := s.createCount(t, "u1", "2025-03-10", "Poli Umum", 5, 5)

	// WHEN: the shift label changes
	label := "Pagi"
	w := s.do(t, http.MethodPut, "/api/patient-counts/"+c.ID, PatientCountEditRequest{ShiftLabel: &label}, "u1")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	edited := decodeBody[countWrite](t, w)

	// THEN: no transition, but the edit is stored
	assert.False(t, edited.Transition.Invalidated)
	assert.Equal(t, "pending", edited.Transition.To)
	assert.Equal(t, "Pagi", edited.Record.ShiftLabel)
	assert.Equal(t, 1, edited.Record.Version)
}

func TestRejectCount_RequiresPending(t *testing.T) {
	// GIVEN: a rejected count
	s := setupTestServer(t, RouterOptions{})
	c := s.createCount(t, "u1", "2025-03-10", "IGD", 5, 5)
	w := s.do(t, http.MethodPost, "/api/patient-counts/"+c.ID+"/reject", ReviewRequest{Note: "wrong unit"}, "spv")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// WHEN: approving it directly
	w = s.do(t, http.MethodPost, "/api/patient-counts/"+c.ID+"/approve", nil, "spv")

	// THEN: the transition is refused
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestPatientCountFee_UsesScheduleShift(t *testing.T) {
	// GIVEN: u1 on Pagi (threshold 10, 5000 / 3000 per patient, 50000 sitting)
	s := setupTestServer(t, RouterOptions{})
	s.schedule(t, "u1", "2025-03-10", "pagi")
	c := s.createCount(t, "u1", "2025-03-10", "Poli Umum", 20, 10)

	// WHEN: fetching the fee
	w := s.do(t, http.MethodGet, "/api/patient-counts/"+c.ID+"/fee", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	fee := decodeBody[FeeDTO](t, w)

	// THEN: excess 20 split 13 general / 7 insurance
	assert.Equal(t, "pagi", fee.RateCardID)
	assert.Equal(t, "schedule_shift", fee.Resolution)
	assert.Equal(t, 20, fee.ExcessCount)
	assert.Equal(t, 13, fee.GeneralExcess)
	assert.Equal(t, 7, fee.InsuranceExcess)
	assert.True(t, fee.Total.Equal(decimal.NewFromInt(136000)), fee.Total.String())
}

func TestSharedFee_ProRatesExcess(t *testing.T) {
	// GIVEN: two staff contributing 12 and 8 on the Pagi card
	s := setupTestServer(t, RouterOptions{})
	req := SharedFeeRequest{RateCardID: "pagi", Contributions: map[string]int{"a": 12, "b": 8}}

	// WHEN: running the shared calculator
	w := s.do(t, http.MethodPost, "/api/fees/shared", req, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	out := decodeBody[SharedFeeDTO](t, w)

	// THEN: aggregate excess 10 splits 6 / 4
	assert.Equal(t, 20, out.Aggregate)
	require.Len(t, out.Shares, 2)
	assert.Equal(t, "a", out.Shares[0].UserID)
	assert.Equal(t, 6, out.Shares[0].ExcessCount)
	assert.Equal(t, 4, out.Shares[1].ExcessCount)
	// 2 x 50000 sitting + 10 x 5000
	assert.True(t, out.Total.Equal(decimal.NewFromInt(150000)), out.Total.String())
}

func TestSharedFee_UnknownRateCard(t *testing.T) {
	s := setupTestServer(t, RouterOptions{})

	w := s.do(t, http.MethodPost, "/api/fees/shared", SharedFeeRequest{RateCardID: "nope", Contributions: map[string]int{"a": 1}}, "")

	assert.Equal(t, http.StatusNotFound, w.Code)
}

// =============================================================================
// REPORTS
// =============================================================================

func TestMonthlyReport_InvalidatedOnCheckOut(t *testing.T) {
	// GIVEN: an open record and a cached report
	s := setupTestServer(t, RouterOptions{})
	s.schedule(t, "u1", "2025-03-10", "pagi")
	rec := s.checkIn(t, "u1", "2025-03-10T07:00:00+07:00")

	w := s.do(t, http.MethodGet, "/api/reports/users/u1/monthly?month=2025-03", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 0, decodeBody[reporting.Summary](t, w).WorkedMinutes)

	// WHEN: u1 checks out at 14:00
	w = s.do(t, http.MethodPost, "/api/attendance/"+rec.ID+"/check-out", CheckOutRequest{At: "14:00"}, "u1")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// THEN: the report reflects the full shift
	w = s.do(t, http.MethodGet, "/api/reports/users/u1/monthly?month=2025-03", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	summary := decodeBody[reporting.Summary](t, w)
	assert.Equal(t, 420, summary.WorkedMinutes)
	assert.Equal(t, 1, summary.DaysPresent)
}

func TestArchiveCount_UnknownReport(t *testing.T) {
	s := setupTestServer(t, RouterOptions{})

	w := s.do(t, http.MethodGet, "/api/reports/archive?report=payroll", nil, "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// =============================================================================
// AUTH
// =============================================================================

func TestJWTActor(t *testing.T) {
	// GIVEN: a router requiring tokens and a pending record
	s := setupTestServer(t, RouterOptions{JWTSecret: "test-secret"})
	c, err := s.h.countForTest(context.Background(), "u1")
	require.NoError(t, err)

	// WHEN: approving without a token
	w := s.do(t, http.MethodPost, "/api/patient-counts/"+string(c.ID)+"/approve", nil, "spv")

	// THEN: 401
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// WHEN: approving with a valid token
	token, err := IssueActorToken("test-secret", generic.Actor{ID: "spv-7", Name: "Sari", Role: "supervisor"}, time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/patient-counts/"+string(c.ID)+"/approve", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	// THEN: the token's user is the validator
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decodeBody[countWrite](t, rec)
	require.NotNil(t, out.Record.ValidatedBy)
	assert.Equal(t, "spv-7", *out.Record.ValidatedBy)
}

func TestParseActorToken_WrongSecret(t *testing.T) {
	token, err := IssueActorToken("a", generic.Actor{ID: "u1"}, time.Hour)
	require.NoError(t, err)

	_, err = ParseActorToken("b", token)

	assert.Error(t, err)
}

// =============================================================================
// SCENARIOS AND ADMIN
// =============================================================================

func TestScenario_SharedDay(t *testing.T) {
	// GIVEN: the shared-day scenario loaded
	s := setupTestServer(t, RouterOptions{})
	w := s.do(t, http.MethodPost, "/api/scenarios/load", ScenarioRequest{ScenarioID: "shared-day"}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// WHEN: computing the shared fee for IGD on March 1
	w = s.do(t, http.MethodGet, "/api/fees/shared?date=2025-03-01&unit=IGD", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	out := decodeBody[SharedFeeDTO](t, w)

	// THEN: three staff, 18 patients, Pagi card via the schedules
	assert.Equal(t, "pagi", out.RateCardID)
	assert.Equal(t, 18, out.Aggregate)
	assert.Len(t, out.Shares, 3)
	assert.Equal(t, "shared-day", s.h.CurrentScenario())
}

func TestScenario_MorningWeekReport(t *testing.T) {
	// GIVEN: the morning-week scenario loaded
	s := setupTestServer(t, RouterOptions{})
	w := s.do(t, http.MethodPost, "/api/scenarios/load", ScenarioRequest{ScenarioID: "morning-week"}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// WHEN: reading the approved-only report
	w = s.do(t, http.MethodGet, "/api/reports/users/nurse-ani/monthly?month=2025-03&approved_only=true", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	summary := decodeBody[reporting.Summary](t, w)

	// THEN: only the three approved days count (420 + 418 + 400)
	assert.Equal(t, 3, summary.DaysPresent)
	assert.Equal(t, 1238, summary.WorkedMinutes)
}

func TestScenario_Unknown(t *testing.T) {
	s := setupTestServer(t, RouterOptions{})

	w := s.do(t, http.MethodPost, "/api/scenarios/load", ScenarioRequest{ScenarioID: "nope"}, "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTriggerRecompute_RecordsRun(t *testing.T) {
	// GIVEN: one checked-out record
	s := setupTestServer(t, RouterOptions{})
	rec := s.checkIn(t, "u1", "2025-03-10T07:00:00+07:00")
	w := s.do(t, http.MethodPost, "/api/attendance/"+rec.ID+"/check-out", CheckOutRequest{At: "12:00"}, "u1")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// WHEN: recomputing March
	w = s.do(t, http.MethodPost, "/api/admin/recompute", RecomputeRequest{Month: "2025-03"}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	runs := decodeBody[[]recompute.Run](t, w)

	// THEN: one completed manual run that scanned the record
	require.Len(t, runs, 1)
	assert.Equal(t, recompute.RunCompleted, runs[0].Status)
	assert.Equal(t, recompute.TriggerManual, runs[0].Trigger)
	assert.Equal(t, 1, runs[0].Result.Scanned)

	w = s.do(t, http.MethodGet, "/api/admin/recompute/runs", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	listed := decodeBody[struct {
		Runs []recompute.Run `json:"runs"`
	}](t, w)
	assert.Len(t, listed.Runs, 1)
}

func TestHealth(t *testing.T) {
	s := setupTestServer(t, RouterOptions{JWTSecret: "x"})

	w := s.do(t, http.MethodGet, "/health", nil, "")

	assert.Equal(t, http.StatusOK, w.Code)
}

// countForTest stores a pending count directly, bypassing the router.
func (h *Handler) countForTest(ctx context.Context, user generic.UserID) (jaspel.DailyPatientCount, error) {
	return h.countDay(ctx, user, string(user), time.Date(2025, 3, 10, 0, 0, 0, 0, wib), "IGD", 3, 2)
}
