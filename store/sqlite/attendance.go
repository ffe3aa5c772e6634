package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/warp/jaspel-engine/attendance"
	"github.com/warp/jaspel-engine/generic"
	"github.com/warp/jaspel-engine/jaspel"
)

// =============================================================================
// ATTENDANCE RECORDS
// =============================================================================

const attendanceColumns = `
	id, user_id, staff_name, date, shift_sequence, check_in, check_out,
	shift_template_id, duty_schedule_id, within_geofence, logical_work_minutes,
	work_duration_minutes, target_minutes, shortfall_minutes, attendance_percentage,
	validation_status, workflow_status, validated_by, validated_at, notes, version,
	deleted_at, created_at, updated_at`

// CreateAttendance inserts a new record. A live record with the same staff,
// date and shift sequence yields generic.ErrDuplicateRecord.
func (s *Store) CreateAttendance(ctx context.Context, r attendance.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `INSERT INTO attendance_records (` + attendanceColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	created := r.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := s.db.ExecContext(ctx, query,
		string(r.ID), string(r.UserID), r.StaffName, s.formatDate(r.Date), r.ShiftSequence,
		formatInstant(r.CheckIn), formatInstant(r.CheckOut),
		nullString(r.ShiftTemplateID), nullString(r.DutyScheduleID), r.WithinGeofence,
		nullInt(r.LogicalWorkMinutes), nullInt(r.WorkDurationMinutes),
		r.TargetMinutes, r.ShortfallMinutes, r.AttendancePercentage.String(),
		string(r.Status), string(r.WorkflowStatus), nullString(r.ValidatedBy),
		formatInstant(r.ValidatedAt), r.Notes, r.Version,
		formatInstant(r.DeletedAt), created.UTC().Format(time.RFC3339), nowString(),
	)
	if isUniqueConstraintError(err) {
		return fmt.Errorf("%w: attendance %s on %s, shift %d",
			generic.ErrDuplicateRecord, r.UserID, s.formatDate(r.Date), r.ShiftSequence)
	}
	return err
}

// GetAttendance returns generic.ErrRecordNotFound for unknown IDs.
// Soft-deleted records are returned; callers check IsDeleted.
func (s *Store) GetAttendance(ctx context.Context, id generic.RecordID) (attendance.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+attendanceColumns+" FROM attendance_records WHERE id = ?", string(id))
	r, err := s.scanAttendance(row)
	if notFound(err) {
		return attendance.Record{}, generic.ErrRecordNotFound
	}
	return r, err
}

// ListAttendance returns every live record dated within p
// (recompute.Store interface).
func (s *Store) ListAttendance(ctx context.Context, p generic.Period) ([]attendance.Record, error) {
	return s.queryAttendance(ctx, `
		SELECT `+attendanceColumns+` FROM attendance_records
		WHERE deleted_at IS NULL AND date >= ? AND date <= ?
		ORDER BY date, user_id, shift_sequence`,
		s.formatDate(p.Start), s.formatDate(p.End))
}

// AttendanceFor returns one user's live records dated within p
// (reporting.Source interface).
func (s *Store) AttendanceFor(ctx context.Context, user generic.UserID, p generic.Period) ([]attendance.Record, error) {
	return s.queryAttendance(ctx, `
		SELECT `+attendanceColumns+` FROM attendance_records
		WHERE deleted_at IS NULL AND user_id = ? AND date >= ? AND date <= ?
		ORDER BY date, shift_sequence`,
		string(user), s.formatDate(p.Start), s.formatDate(p.End))
}

// ListAttendanceByStatus returns live records with the given status, oldest first.
func (s *Store) ListAttendanceByStatus(ctx context.Context, status generic.ValidationStatus, limit int) ([]attendance.Record, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.queryAttendance(ctx, `
		SELECT `+attendanceColumns+` FROM attendance_records
		WHERE deleted_at IS NULL AND validation_status = ?
		ORDER BY date, user_id, shift_sequence LIMIT ?`,
		string(status), limit)
}

// OpenAttendance returns the user's latest record on date that has no
// check-out yet, nil if there is none.
func (s *Store) OpenAttendance(ctx context.Context, user generic.UserID, date time.Time) (*attendance.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT `+attendanceColumns+` FROM attendance_records
		WHERE deleted_at IS NULL AND user_id = ? AND date = ? AND check_out IS NULL
		ORDER BY shift_sequence DESC LIMIT 1`,
		string(user), s.formatDate(date))
	r, err := s.scanAttendance(row)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// NextShiftSequence returns 1 + the highest live shift sequence of the user on date.
func (s *Store) NextShiftSequence(ctx context.Context, user generic.UserID, date time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var seq sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(shift_sequence) FROM attendance_records
		WHERE deleted_at IS NULL AND user_id = ? AND date = ?`,
		string(user), s.formatDate(date),
	).Scan(&seq)
	if err != nil {
		return 0, err
	}
	return int(seq.Int64) + 1, nil
}

// UpdateDerived writes only the derived columns of r if the stored row is
// still at r.Version. Review state and version are untouched, so a row
// edited since r was read yields a *generic.ConflictError
// (recompute.Store interface).
func (s *Store) UpdateDerived(ctx context.Context, r attendance.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE attendance_records SET
			work_duration_minutes = ?,
			target_minutes = ?,
			shortfall_minutes = ?,
			attendance_percentage = ?,
			updated_at = ?
		WHERE id = ? AND version = ?`,
		nullInt(r.WorkDurationMinutes), r.TargetMinutes, r.ShortfallMinutes,
		r.AttendancePercentage.String(), nowString(), string(r.ID), r.Version,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	var exists int
	err = s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM attendance_records WHERE id = ?", string(r.ID),
	).Scan(&exists)
	if err != nil {
		return err
	}
	if exists == 0 {
		return generic.ErrRecordNotFound
	}
	return &generic.ConflictError{
		RecordType:      r.RecordType(),
		RecordID:        r.ID,
		ExpectedVersion: r.Version,
		ExpectedStatus:  r.Status,
	}
}

func (s *Store) queryAttendance(ctx context.Context, query string, args ...any) ([]attendance.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []attendance.Record
	for rows.Next() {
		r, err := s.scanAttendance(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *Store) scanAttendance(row scanner) (attendance.Record, error) {
	var r attendance.Record
	var id, user, date, pct, status, workflow, createdAt, updatedAt string
	var checkIn, checkOut, tplID, schedID, validatedBy, validatedAt, deletedAt sql.NullString
	var logical, worked sql.NullInt64

	err := row.Scan(
		&id, &user, &r.StaffName, &date, &r.ShiftSequence, &checkIn, &checkOut,
		&tplID, &schedID, &r.WithinGeofence, &logical,
		&worked, &r.TargetMinutes, &r.ShortfallMinutes, &pct,
		&status, &workflow, &validatedBy, &validatedAt, &r.Notes, &r.Version,
		&deletedAt, &createdAt, &updatedAt,
	)
	if err != nil {
		return attendance.Record{}, err
	}

	r.ID = generic.RecordID(id)
	r.UserID = generic.UserID(user)
	r.Date = s.parseDate(date)
	r.CheckIn = s.parseInstant(checkIn)
	r.CheckOut = s.parseInstant(checkOut)
	r.ShiftTemplateID = stringPtr(tplID)
	r.DutyScheduleID = stringPtr(schedID)
	r.LogicalWorkMinutes = intPtr(logical)
	r.WorkDurationMinutes = intPtr(worked)
	r.AttendancePercentage = parseDecimal(pct)
	r.Status = generic.ValidationStatus(status)
	r.WorkflowStatus = generic.WorkflowStatus(workflow)
	r.ValidatedBy = stringPtr(validatedBy)
	r.ValidatedAt = s.parseInstant(validatedAt)
	r.DeletedAt = s.parseInstant(deletedAt)
	r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	r.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return r, nil
}

// =============================================================================
// COMPARE-AND-SWAP (generic.ReviewStore interface)
// =============================================================================

// SaveReviewed writes rec only if the stored row still has expectedVersion
// and expectedStatus. On success rec's Version is incremented.
func (s *Store) SaveReviewed(ctx context.Context, rec generic.Reviewable, expectedVersion int, expectedStatus generic.ValidationStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		table string
		res   sql.Result
		err   error
	)
	switch r := rec.(type) {
	case *attendance.Record:
		table = "attendance_records"
		res, err = s.updateAttendance(ctx, r, expectedVersion, expectedStatus)
	case *jaspel.DailyPatientCount:
		table = "patient_counts"
		res, err = s.updatePatientCount(ctx, r, expectedVersion, expectedStatus)
	default:
		return fmt.Errorf("unsupported record type %T", rec)
	}
	if isUniqueConstraintError(err) {
		return fmt.Errorf("%w: %s %s", generic.ErrDuplicateRecord, rec.RecordType(), rec.RecordID())
	}
	if isCheckConstraintError(err) {
		return generic.ErrNegativeCount
	}
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists int
		err := s.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM "+table+" WHERE id = ?", string(rec.RecordID()),
		).Scan(&exists)
		if err != nil {
			return err
		}
		if exists == 0 {
			return generic.ErrRecordNotFound
		}
		return &generic.ConflictError{
			RecordType:      rec.RecordType(),
			RecordID:        rec.RecordID(),
			ExpectedVersion: expectedVersion,
			ExpectedStatus:  expectedStatus,
		}
	}

	rec.ReviewState().Version = expectedVersion + 1
	return nil
}

func (s *Store) updateAttendance(ctx context.Context, r *attendance.Record, version int, status generic.ValidationStatus) (sql.Result, error) {
	return s.db.ExecContext(ctx, `
		UPDATE attendance_records SET
			user_id = ?, staff_name = ?, date = ?, shift_sequence = ?,
			check_in = ?, check_out = ?, shift_template_id = ?, duty_schedule_id = ?,
			within_geofence = ?, logical_work_minutes = ?,
			work_duration_minutes = ?, target_minutes = ?, shortfall_minutes = ?, attendance_percentage = ?,
			validation_status = ?, workflow_status = ?, validated_by = ?, validated_at = ?, notes = ?,
			deleted_at = ?, updated_at = ?,
			version = version + 1
		WHERE id = ? AND version = ? AND validation_status = ?`,
		string(r.UserID), r.StaffName, s.formatDate(r.Date), r.ShiftSequence,
		formatInstant(r.CheckIn), formatInstant(r.CheckOut), nullString(r.ShiftTemplateID), nullString(r.DutyScheduleID),
		r.WithinGeofence, nullInt(r.LogicalWorkMinutes),
		nullInt(r.WorkDurationMinutes), r.TargetMinutes, r.ShortfallMinutes, r.AttendancePercentage.String(),
		string(r.Status), string(r.WorkflowStatus), nullString(r.ValidatedBy), formatInstant(r.ValidatedAt), r.Notes,
		formatInstant(r.DeletedAt), nowString(),
		string(r.ID), version, string(status),
	)
}

var _ generic.ReviewStore = (*Store)(nil)
