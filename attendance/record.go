package attendance

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/jaspel-engine/generic"
)

// =============================================================================
// DUTY SCHEDULE - Which template a staff member works on a date
// =============================================================================

type DutySchedule struct {
	ID              string
	UserID          generic.UserID
	Date            time.Time
	ShiftTemplateID string
}

// =============================================================================
// ATTENDANCE RECORD
// =============================================================================

// Record is one attendance row: one staff member, one date, one shift.
// Several records per staff per day are allowed, ordered by ShiftSequence.
//
// Lifecycle: created on check-in (CheckOut nil), mutated on check-out,
// corrected afterwards only through the validation write path.
type Record struct {
	ID            generic.RecordID
	UserID        generic.UserID
	StaffName     string
	Date          time.Time
	ShiftSequence int

	CheckIn  *time.Time
	CheckOut *time.Time

	// Template link: direct, or via the duty schedule.
	ShiftTemplateID *string
	DutyScheduleID  *string

	// Pre-computed by the mobile client; not evaluated here.
	WithinGeofence bool

	// Manual/penalty override; always wins over computed durations.
	LogicalWorkMinutes *int

	// Derived. Never hand-edited.
	WorkDurationMinutes  *int
	TargetMinutes        int
	ShortfallMinutes     int
	AttendancePercentage decimal.Decimal

	generic.Review

	DeletedAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewCheckIn creates the record written when a staff member checks in.
func NewCheckIn(id generic.RecordID, userID generic.UserID, staffName string, date, at time.Time, sequence int) Record {
	return Record{
		ID:            id,
		UserID:        userID,
		StaffName:     staffName,
		Date:          generic.DateOf(date),
		ShiftSequence: sequence,
		CheckIn:       &at,
		TargetMinutes: DefaultTargetMinutes,
		Review:        generic.NewReview(),
		CreatedAt:     at,
		UpdatedAt:     at,
	}
}

// CheckOutAt records the check-out.
func (r *Record) CheckOutAt(at time.Time) error {
	if r.CheckOut != nil {
		return generic.ErrAlreadyCheckedOut
	}
	r.CheckOut = &at
	r.UpdatedAt = at
	return nil
}

// SoftDelete marks the record deleted.
func (r *Record) SoftDelete(at time.Time) {
	r.DeletedAt = &at
	r.UpdatedAt = at
}

func (r *Record) IsDeleted() bool { return r.DeletedAt != nil }

// =============================================================================
// TEMPLATE RESOLUTION
// =============================================================================

// TemplateSource looks up templates and schedules by ID.
type TemplateSource interface {
	Template(id string) (ShiftTemplate, bool)
	Schedule(id string) (DutySchedule, bool)
}

// TemplateFor resolves the record's template in a fixed order:
// direct link, then the duty schedule's template. Nil if neither resolves.
func TemplateFor(r Record, src TemplateSource) *ShiftTemplate {
	if src == nil {
		return nil
	}
	if r.ShiftTemplateID != nil {
		if tpl, ok := src.Template(*r.ShiftTemplateID); ok {
			return &tpl
		}
	}
	if r.DutyScheduleID != nil {
		if sched, ok := src.Schedule(*r.DutyScheduleID); ok {
			if tpl, ok := src.Template(sched.ShiftTemplateID); ok {
				return &tpl
			}
		}
	}
	return nil
}

// Catalog is an in-memory TemplateSource.
type Catalog struct {
	Templates map[string]ShiftTemplate
	Schedules map[string]DutySchedule
}

func NewCatalog(templates []ShiftTemplate, schedules []DutySchedule) *Catalog {
	c := &Catalog{
		Templates: make(map[string]ShiftTemplate, len(templates)),
		Schedules: make(map[string]DutySchedule, len(schedules)),
	}
	for _, t := range templates {
		c.Templates[t.ID] = t
	}
	for _, s := range schedules {
		c.Schedules[s.ID] = s
	}
	return c
}

func (c *Catalog) Template(id string) (ShiftTemplate, bool) {
	t, ok := c.Templates[id]
	return t, ok
}

func (c *Catalog) Schedule(id string) (DutySchedule, bool) {
	s, ok := c.Schedules[id]
	return s, ok
}

// =============================================================================
// RECOMPUTE - Fill derived fields
// =============================================================================

// Recompute returns a copy of r with its derived fields recalculated
// against tpl (nil for the no-template fallback).
func Recompute(calc *Calculator, r Record, tpl *ShiftTemplate) (Record, WorkDuration) {
	in := WorkInput{
		CheckIn:         r.CheckIn,
		CheckOut:        r.CheckOut,
		OverrideMinutes: r.LogicalWorkMinutes,
	}
	if tpl != nil {
		b := Resolve(*tpl, r.Date)
		in.Boundaries = &b
		in.Break = tpl.Break
	}

	d := calc.Compute(in)
	m := Derive(d, tpl)

	r.WorkDurationMinutes = m.WorkMinutes
	r.TargetMinutes = m.TargetMinutes
	r.ShortfallMinutes = m.ShortfallMinutes
	r.AttendancePercentage = m.AttendancePercentage
	return r, d
}

// =============================================================================
// REVIEWABLE
// =============================================================================

// Critical fields of an attendance record.
const (
	FieldUserID             = "userId"
	FieldDate               = "date"
	FieldCheckIn            = "checkIn"
	FieldCheckOut           = "checkOut"
	FieldShiftTemplateID    = "shiftTemplateId"
	FieldDutyScheduleID     = "dutyScheduleId"
	FieldLogicalWorkMinutes = "logicalWorkMinutes"
)

func (r *Record) RecordType() generic.RecordType { return generic.RecordAttendance }
func (r *Record) RecordID() generic.RecordID { return r.ID }
func (r *Record) ReviewState() *generic.Review { return &r.Review }

func (r *Record) CriticalValues() map[string]string {
	return map[string]string{
		FieldUserID:             string(r.UserID),
		FieldDate:               r.Date.Format("2006-01-02"),
		FieldCheckIn:            formatTime(r.CheckIn),
		FieldCheckOut:           formatTime(r.CheckOut),
		FieldShiftTemplateID:    formatString(r.ShiftTemplateID),
		FieldDutyScheduleID:     formatString(r.DutyScheduleID),
		FieldLogicalWorkMinutes: formatInt(r.LogicalWorkMinutes),
	}
}

func (r *Record) EventContext() map[string]any {
	ctx := map[string]any{
		"date":       r.Date.Format("2006-01-02"),
		"staff_id":   string(r.UserID),
		"staff_name": r.StaffName,
		"check_in":   formatTime(r.CheckIn),
		"check_out":  formatTime(r.CheckOut),
	}
	if r.WorkDurationMinutes != nil {
		ctx["work_minutes"] = *r.WorkDurationMinutes
	}
	return ctx
}

var _ generic.Reviewable = (*Record)(nil)

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

func formatString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatInt(i *int) string {
	if i == nil {
		return ""
	}
	return strconv.Itoa(*i)
}
