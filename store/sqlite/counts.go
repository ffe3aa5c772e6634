package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/warp/jaspel-engine/generic"
	"github.com/warp/jaspel-engine/jaspel"
	"github.com/warp/jaspel-engine/reporting"
)

// =============================================================================
// PATIENT COUNTS
// =============================================================================

const patientCountColumns = `
	id, user_id, staff_name, date, clinic_unit, general_count, insurance_count,
	rate_card_id, duty_schedule_id, shift_label,
	validation_status, workflow_status, validated_by, validated_at, notes, version,
	deleted_at, created_at, updated_at`

// CreatePatientCount inserts a new count. A live count with the same staff,
// date and clinic unit yields generic.ErrDuplicateRecord.
func (s *Store) CreatePatientCount(ctx context.Context, c jaspel.DailyPatientCount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `INSERT INTO patient_counts (` + patientCountColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	created := c.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := s.db.ExecContext(ctx, query,
		string(c.ID), string(c.UserID), c.StaffName, s.formatDate(c.Date), c.ClinicUnit,
		c.GeneralCount, c.InsuranceCount,
		nullString(c.RateCardID), nullString(c.DutyScheduleID), c.ShiftLabel,
		string(c.Status), string(c.WorkflowStatus), nullString(c.ValidatedBy),
		formatInstant(c.ValidatedAt), c.Notes, c.Version,
		formatInstant(c.DeletedAt), created.UTC().Format(time.RFC3339), nowString(),
	)
	if isUniqueConstraintError(err) {
		return fmt.Errorf("%w: patient count %s on %s, unit %q",
			generic.ErrDuplicateRecord, c.UserID, s.formatDate(c.Date), c.ClinicUnit)
	}
	if isCheckConstraintError(err) {
		return generic.ErrNegativeCount
	}
	return err
}

// GetPatientCount returns generic.ErrRecordNotFound for unknown IDs.
func (s *Store) GetPatientCount(ctx context.Context, id generic.RecordID) (jaspel.DailyPatientCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+patientCountColumns+" FROM patient_counts WHERE id = ?", string(id))
	c, err := s.scanPatientCount(row)
	if notFound(err) {
		return jaspel.DailyPatientCount{}, generic.ErrRecordNotFound
	}
	return c, err
}

// PatientCountsFor returns one user's live counts dated within p.
func (s *Store) PatientCountsFor(ctx context.Context, user generic.UserID, p generic.Period) ([]jaspel.DailyPatientCount, error) {
	return s.queryPatientCounts(ctx, `
		SELECT `+patientCountColumns+` FROM patient_counts
		WHERE deleted_at IS NULL AND user_id = ? AND date >= ? AND date <= ?
		ORDER BY date, clinic_unit`,
		string(user), s.formatDate(p.Start), s.formatDate(p.End))
}

// PatientCountsOn returns the live, non-rejected counts of one clinic unit
// on date: the contributions of a shared-total day.
func (s *Store) PatientCountsOn(ctx context.Context, date time.Time, unit string) ([]jaspel.DailyPatientCount, error) {
	return s.queryPatientCounts(ctx, `
		SELECT `+patientCountColumns+` FROM patient_counts
		WHERE deleted_at IS NULL AND date = ? AND clinic_unit = ? AND validation_status != ?
		ORDER BY user_id`,
		s.formatDate(date), unit, string(generic.StatusRejected))
}

// FeesFor computes the single-staff fee of every count of user within p
// (reporting.Source interface). Rejected counts are skipped.
func (s *Store) FeesFor(ctx context.Context, user generic.UserID, p generic.Period) ([]reporting.DayFee, error) {
	counts, err := s.PatientCountsFor(ctx, user, p)
	if err != nil {
		return nil, err
	}
	if len(counts) == 0 {
		return nil, nil
	}
	cards, err := s.ListRateCards(ctx)
	if err != nil {
		return nil, err
	}

	fees := make([]reporting.DayFee, 0, len(counts))
	for _, c := range counts {
		if c.Status == generic.StatusRejected {
			continue
		}
		shiftName, err := s.ScheduleShiftName(ctx, c.DutyScheduleID)
		if err != nil {
			return nil, err
		}
		fee, _, _ := c.Fee(cards, shiftName)
		fees = append(fees, reporting.DayFee{Date: c.Date, Amount: fee.Total, Status: c.Status})
	}
	return fees, nil
}

func (s *Store) queryPatientCounts(ctx context.Context, query string, args ...any) ([]jaspel.DailyPatientCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []jaspel.DailyPatientCount
	for rows.Next() {
		c, err := s.scanPatientCount(rows)
		if err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

func (s *Store) scanPatientCount(row scanner) (jaspel.DailyPatientCount, error) {
	var c jaspel.DailyPatientCount
	var id, user, date, status, workflow, createdAt, updatedAt string
	var cardID, schedID, validatedBy, validatedAt, deletedAt sql.NullString

	err := row.Scan(
		&id, &user, &c.StaffName, &date, &c.ClinicUnit, &c.GeneralCount, &c.InsuranceCount,
		&cardID, &schedID, &c.ShiftLabel,
		&status, &workflow, &validatedBy, &validatedAt, &c.Notes, &c.Version,
		&deletedAt, &createdAt, &updatedAt,
	)
	if err != nil {
		return jaspel.DailyPatientCount{}, err
	}

	c.ID = generic.RecordID(id)
	c.UserID = generic.UserID(user)
	c.Date = s.parseDate(date)
	c.RateCardID = stringPtr(cardID)
	c.DutyScheduleID = stringPtr(schedID)
	c.Status = generic.ValidationStatus(status)
	c.WorkflowStatus = generic.WorkflowStatus(workflow)
	c.ValidatedBy = stringPtr(validatedBy)
	c.ValidatedAt = s.parseInstant(validatedAt)
	c.DeletedAt = s.parseInstant(deletedAt)
	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	c.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return c, nil
}

func (s *Store) updatePatientCount(ctx context.Context, c *jaspel.DailyPatientCount, version int, status generic.ValidationStatus) (sql.Result, error) {
	return s.db.ExecContext(ctx, `
		UPDATE patient_counts SET
			user_id = ?, staff_name = ?, date = ?, clinic_unit = ?,
			general_count = ?, insurance_count = ?,
			rate_card_id = ?, duty_schedule_id = ?, shift_label = ?,
			validation_status = ?, workflow_status = ?, validated_by = ?, validated_at = ?, notes = ?,
			deleted_at = ?, updated_at = ?,
			version = version + 1
		WHERE id = ? AND version = ? AND validation_status = ?`,
		string(c.UserID), c.StaffName, s.formatDate(c.Date), c.ClinicUnit,
		c.GeneralCount, c.InsuranceCount,
		nullString(c.RateCardID), nullString(c.DutyScheduleID), c.ShiftLabel,
		string(c.Status), string(c.WorkflowStatus), nullString(c.ValidatedBy), formatInstant(c.ValidatedAt), c.Notes,
		formatInstant(c.DeletedAt), nowString(),
		string(c.ID), version, string(status),
	)
}
