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
// SHIFT TEMPLATES
// =============================================================================

// SaveShiftTemplate upserts a template. Once attendance or a duty schedule
// references the template, any change returns generic.ErrTemplateInUse;
// saving identical values is a no-op.
func (s *Store) SaveShiftTemplate(ctx context.Context, t attendance.ShiftTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, start_time, end_time, break_offset_minutes, break_length_minutes
		FROM shift_templates WHERE id = ?`, t.ID)
	current, err := scanShiftTemplate(row)
	switch {
	case notFound(err):
	case err != nil:
		return err
	case sameShiftTemplate(current, t):
		return nil
	default:
		inUse, err := s.templateReferenced(ctx, t.ID)
		if err != nil {
			return err
		}
		if inUse {
			return fmt.Errorf("%w: %s", generic.ErrTemplateInUse, t.ID)
		}
	}

	query := `
		INSERT INTO shift_templates (id, name, start_time, end_time, break_offset_minutes, break_length_minutes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			break_offset_minutes = excluded.break_offset_minutes,
			break_length_minutes = excluded.break_length_minutes,
			updated_at = excluded.updated_at
	`

	var offset, length any
	if t.Break != nil {
		offset, length = t.Break.OffsetMinutes, t.Break.LengthMinutes
	}
	now := nowString()
	_, err = s.db.ExecContext(ctx, query,
		t.ID, t.Name, t.StartTime.String(), t.EndTime.String(), offset, length, now, now,
	)
	return err
}

func (s *Store) templateReferenced(ctx context.Context, id string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM attendance_records WHERE shift_template_id = ?)
		     + (SELECT COUNT(*) FROM duty_schedules WHERE shift_template_id = ?)`,
		id, id,
	).Scan(&n)
	return n > 0, err
}

func sameShiftTemplate(a, b attendance.ShiftTemplate) bool {
	if a.Name != b.Name || a.StartTime != b.StartTime || a.EndTime != b.EndTime {
		return false
	}
	if a.Break == nil || b.Break == nil {
		return a.Break == nil && b.Break == nil
	}
	return *a.Break == *b.Break
}

// GetShiftTemplate returns generic.ErrTemplateNotFound for unknown IDs.
func (s *Store) GetShiftTemplate(ctx context.Context, id string) (attendance.ShiftTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, start_time, end_time, break_offset_minutes, break_length_minutes
		FROM shift_templates WHERE id = ?`, id)
	t, err := scanShiftTemplate(row)
	if notFound(err) {
		return attendance.ShiftTemplate{}, generic.ErrTemplateNotFound
	}
	return t, err
}

func (s *Store) ListShiftTemplates(ctx context.Context) ([]attendance.ShiftTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listShiftTemplates(ctx)
}

func (s *Store) listShiftTemplates(ctx context.Context) ([]attendance.ShiftTemplate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, start_time, end_time, break_offset_minutes, break_length_minutes
		FROM shift_templates ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []attendance.ShiftTemplate
	for rows.Next() {
		t, err := scanShiftTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanShiftTemplate(row scanner) (attendance.ShiftTemplate, error) {
	var t attendance.ShiftTemplate
	var start, end string
	var offset, length sql.NullInt64

	if err := row.Scan(&t.ID, &t.Name, &start, &end, &offset, &length); err != nil {
		return attendance.ShiftTemplate{}, err
	}

	var err error
	if t.StartTime, err = generic.ParseTimeOfDay(start); err != nil {
		return attendance.ShiftTemplate{}, fmt.Errorf("template %s: %w", t.ID, err)
	}
	if t.EndTime, err = generic.ParseTimeOfDay(end); err != nil {
		return attendance.ShiftTemplate{}, fmt.Errorf("template %s: %w", t.ID, err)
	}
	if length.Valid {
		t.Break = &attendance.BreakWindow{OffsetMinutes: int(offset.Int64), LengthMinutes: int(length.Int64)}
	}
	return t, nil
}

// =============================================================================
// DUTY SCHEDULES
// =============================================================================

// SaveDutySchedule upserts a schedule. The template must exist.
func (s *Store) SaveDutySchedule(ctx context.Context, d attendance.DutySchedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO duty_schedules (id, user_id, date, shift_template_id, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			date = excluded.date,
			shift_template_id = excluded.shift_template_id
	`
	_, err := s.db.ExecContext(ctx, query,
		d.ID, string(d.UserID), s.formatDate(d.Date), d.ShiftTemplateID, nowString(),
	)
	if err != nil && isForeignKeyError(err) {
		return generic.ErrTemplateNotFound
	}
	return err
}

// GetDutySchedule returns generic.ErrRecordNotFound for unknown IDs.
func (s *Store) GetDutySchedule(ctx context.Context, id string) (attendance.DutySchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var d attendance.DutySchedule
	var user, date string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, user_id, date, shift_template_id FROM duty_schedules WHERE id = ?", id,
	).Scan(&d.ID, &user, &date, &d.ShiftTemplateID)
	if notFound(err) {
		return attendance.DutySchedule{}, generic.ErrRecordNotFound
	}
	if err != nil {
		return attendance.DutySchedule{}, err
	}
	d.UserID = generic.UserID(user)
	d.Date = s.parseDate(date)
	return d, nil
}

// ScheduleFor returns the user's first schedule on date, nil if none.
func (s *Store) ScheduleFor(ctx context.Context, user generic.UserID, date time.Time) (*attendance.DutySchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var d attendance.DutySchedule
	var u, day string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, date, shift_template_id FROM duty_schedules
		WHERE user_id = ? AND date = ? ORDER BY id LIMIT 1`,
		string(user), s.formatDate(date),
	).Scan(&d.ID, &u, &day, &d.ShiftTemplateID)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	d.UserID = generic.UserID(u)
	d.Date = s.parseDate(day)
	return &d, nil
}

func (s *Store) listDutySchedules(ctx context.Context) ([]attendance.DutySchedule, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, user_id, date, shift_template_id FROM duty_schedules ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var schedules []attendance.DutySchedule
	for rows.Next() {
		var d attendance.DutySchedule
		var user, date string
		if err := rows.Scan(&d.ID, &user, &date, &d.ShiftTemplateID); err != nil {
			return nil, err
		}
		d.UserID = generic.UserID(user)
		d.Date = s.parseDate(date)
		schedules = append(schedules, d)
	}
	return schedules, rows.Err()
}

// Catalog loads every template and schedule into an attendance.Catalog
// (recompute.Store interface).
func (s *Store) Catalog(ctx context.Context) (attendance.TemplateSource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	templates, err := s.listShiftTemplates(ctx)
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}
	schedules, err := s.listDutySchedules(ctx)
	if err != nil {
		return nil, fmt.Errorf("load schedules: %w", err)
	}
	return attendance.NewCatalog(templates, schedules), nil
}

// ScheduleShiftName returns the template name behind a duty schedule, empty
// when the schedule or its template is missing.
func (s *Store) ScheduleShiftName(ctx context.Context, scheduleID *string) (string, error) {
	if scheduleID == nil {
		return "", nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var name string
	err := s.db.QueryRowContext(ctx, `
		SELECT t.name FROM duty_schedules d
		JOIN shift_templates t ON t.id = d.shift_template_id
		WHERE d.id = ?`, *scheduleID,
	).Scan(&name)
	if notFound(err) {
		return "", nil
	}
	return name, err
}

// =============================================================================
// RATE CARDS
// =============================================================================

// SaveRateCard upserts a rate card. Fees are stored as decimal strings.
func (s *Store) SaveRateCard(ctx context.Context, c jaspel.FeeRateCard) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO rate_cards (id, shift_type, patient_threshold, general_unit_fee, insurance_unit_fee, flat_sitting_fee, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			shift_type = excluded.shift_type,
			patient_threshold = excluded.patient_threshold,
			general_unit_fee = excluded.general_unit_fee,
			insurance_unit_fee = excluded.insurance_unit_fee,
			flat_sitting_fee = excluded.flat_sitting_fee,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at
	`
	now := nowString()
	_, err := s.db.ExecContext(ctx, query,
		c.ID, c.ShiftType, c.PatientThreshold,
		c.GeneralUnitFee.String(), c.InsuranceUnitFee.String(), c.FlatSittingFee.String(),
		c.IsActive, now, now,
	)
	return err
}

// GetRateCard returns generic.ErrRateCardNotFound for unknown IDs.
func (s *Store) GetRateCard(ctx context.Context, id string) (jaspel.FeeRateCard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, shift_type, patient_threshold, general_unit_fee, insurance_unit_fee, flat_sitting_fee, is_active
		FROM rate_cards WHERE id = ?`, id)
	c, err := scanRateCard(row)
	if notFound(err) {
		return jaspel.FeeRateCard{}, generic.ErrRateCardNotFound
	}
	return c, err
}

// ListRateCards returns every card, active or not, ordered by ID.
func (s *Store) ListRateCards(ctx context.Context) ([]jaspel.FeeRateCard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, shift_type, patient_threshold, general_unit_fee, insurance_unit_fee, flat_sitting_fee, is_active
		FROM rate_cards ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cards []jaspel.FeeRateCard
	for rows.Next() {
		c, err := scanRateCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

func scanRateCard(row scanner) (jaspel.FeeRateCard, error) {
	var c jaspel.FeeRateCard
	var general, insurance, sitting string
	err := row.Scan(&c.ID, &c.ShiftType, &c.PatientThreshold, &general, &insurance, &sitting, &c.IsActive)
	if err != nil {
		return jaspel.FeeRateCard{}, err
	}
	c.GeneralUnitFee = parseDecimal(general)
	c.InsuranceUnitFee = parseDecimal(insurance)
	c.FlatSittingFee = parseDecimal(sitting)
	return c, nil
}
