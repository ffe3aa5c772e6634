/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Persists shift templates, duty schedules, rate cards, attendance records,
  patient counts, emitted validation events and recompute runs. In
  production the same patterns apply to PostgreSQL with minor SQL dialect
  differences.

INTERFACES IMPLEMENTED:
  generic.ReviewStore: Compare-and-swap write of attendance records and
                       patient counts
  generic.EventLog:    Validation event history
  recompute.Store:     Bulk read + derived-field update
  reporting.Archive:   Row counts per report table and date column

OPTIMISTIC CONCURRENCY:
  Reviewable rows carry a version column. SaveReviewed updates with
    WHERE id = ? AND version = ? AND validation_status = ?
  and reports a *generic.ConflictError when no row matched but the record
  exists. Derived-field updates (UpdateDerived) do not bump the version:
  they are a pure function of the row's inputs. They still check it, so a
  recompute that read a row before an edit cannot overwrite the edit.

KEY TABLES:
  shift_templates:    Start/end time-of-day and optional break window
  duty_schedules:     Staff x date -> shift template
  rate_cards:         Jaspel fee tables per shift type
  attendance_records: One row per staff, date and shift sequence
  patient_counts:     One row per staff, date and clinic unit
  validation_events:  Append-only event log
  recompute_runs:     Audit of scheduled and manual recompute runs

DATES AND TIMES:
  Calendar dates are stored as "2006-01-02" and read back in the store's
  location (the configured local zone). Instants are RFC3339 with offset.
  Money and percentages are stored as decimal strings.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time

USAGE:
  store, err := sqlite.New("./data/jaspel.db", sqlite.WithLocation(loc))
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - generic/store.go: Interface definitions
  - generic/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/jaspel-engine/generic"
)

const dateLayout = "2006-01-02"

// Store implements all storage interfaces using SQLite.
type Store struct {
	db  *sql.DB
	mu  sync.RWMutex
	loc *time.Location
}

type Option func(*Store)

// WithLocation sets the zone calendar dates are read back in (default UTC).
func WithLocation(loc *time.Location) Option {
	return func(s *Store) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection would get its own empty database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db, loc: time.UTC}
	for _, opt := range opts {
		opt(store)
	}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Location returns the zone dates are interpreted in.
func (s *Store) Location() *time.Location { return s.loc }

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS shift_templates (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		break_offset_minutes INTEGER,
		break_length_minutes INTEGER,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS duty_schedules (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		date TEXT NOT NULL,
		shift_template_id TEXT NOT NULL REFERENCES shift_templates(id),
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_duty_schedules_user_date
		ON duty_schedules(user_id, date);

	CREATE TABLE IF NOT EXISTS rate_cards (
		id TEXT PRIMARY KEY,
		shift_type TEXT NOT NULL,
		patient_threshold INTEGER NOT NULL CHECK (patient_threshold >= 0),
		general_unit_fee TEXT NOT NULL,
		insurance_unit_fee TEXT NOT NULL,
		flat_sitting_fee TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_rate_cards_shift_type
		ON rate_cards(shift_type, is_active);

	CREATE TABLE IF NOT EXISTS attendance_records (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		staff_name TEXT NOT NULL DEFAULT '',
		date TEXT NOT NULL,
		shift_sequence INTEGER NOT NULL DEFAULT 1,
		check_in TEXT,
		check_out TEXT,
		shift_template_id TEXT,
		duty_schedule_id TEXT,
		within_geofence BOOLEAN NOT NULL DEFAULT FALSE,
		logical_work_minutes INTEGER,
		work_duration_minutes INTEGER,
		target_minutes INTEGER NOT NULL DEFAULT 0,
		shortfall_minutes INTEGER NOT NULL DEFAULT 0,
		attendance_percentage TEXT NOT NULL DEFAULT '0',
		validation_status TEXT NOT NULL DEFAULT 'pending',
		workflow_status TEXT NOT NULL DEFAULT 'pending',
		validated_by TEXT,
		validated_at TEXT,
		notes TEXT NOT NULL DEFAULT '',
		version INTEGER NOT NULL DEFAULT 0,
		deleted_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- One shift sequence per staff and day among live rows
	CREATE UNIQUE INDEX IF NOT EXISTS idx_attendance_unique_shift
		ON attendance_records(user_id, date, shift_sequence)
		WHERE deleted_at IS NULL;

	-- Monthly reports and recompute runs (hot path)
	CREATE INDEX IF NOT EXISTS idx_attendance_user_date
		ON attendance_records(user_id, date);
	CREATE INDEX IF NOT EXISTS idx_attendance_date
		ON attendance_records(date);
	CREATE INDEX IF NOT EXISTS idx_attendance_status
		ON attendance_records(validation_status);

	CREATE TABLE IF NOT EXISTS patient_counts (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		staff_name TEXT NOT NULL DEFAULT '',
		date TEXT NOT NULL,
		clinic_unit TEXT NOT NULL DEFAULT '',
		general_count INTEGER NOT NULL CHECK (general_count >= 0),
		insurance_count INTEGER NOT NULL CHECK (insurance_count >= 0),
		rate_card_id TEXT,
		duty_schedule_id TEXT,
		shift_label TEXT NOT NULL DEFAULT '',
		validation_status TEXT NOT NULL DEFAULT 'pending',
		workflow_status TEXT NOT NULL DEFAULT 'pending',
		validated_by TEXT,
		validated_at TEXT,
		notes TEXT NOT NULL DEFAULT '',
		version INTEGER NOT NULL DEFAULT 0,
		deleted_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_patient_counts_unique
		ON patient_counts(user_id, date, clinic_unit)
		WHERE deleted_at IS NULL;
	CREATE INDEX IF NOT EXISTS idx_patient_counts_date_unit
		ON patient_counts(date, clinic_unit);

	-- Validation events (append-only)
	CREATE TABLE IF NOT EXISTS validation_events (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		record_type TEXT NOT NULL,
		record_id TEXT NOT NULL,
		old_status TEXT NOT NULL,
		new_status TEXT NOT NULL,
		changed_fields_json TEXT,
		actor_id TEXT NOT NULL,
		actor_name TEXT NOT NULL DEFAULT '',
		note TEXT,
		context_json TEXT,
		occurred_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_validation_events_record
		ON validation_events(record_type, record_id, occurred_at);

	-- Recompute runs (scheduled and manual)
	CREATE TABLE IF NOT EXISTS recompute_runs (
		id TEXT PRIMARY KEY,
		period TEXT NOT NULL,
		run_trigger TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'running',
		scanned INTEGER DEFAULT 0,
		updated INTEGER DEFAULT 0,
		unchanged INTEGER DEFAULT 0,
		anomalies INTEGER DEFAULT 0,
		skipped INTEGER DEFAULT 0,
		failed INTEGER DEFAULT 0,
		error TEXT,
		started_at TEXT NOT NULL,
		completed_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_recompute_runs_started
		ON recompute_runs(started_at);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	// Columns added after the first release.
	return s.addColumnIfMissing("recompute_runs", "skipped", "INTEGER DEFAULT 0")
}

func (s *Store) addColumnIfMissing(table, column, decl string) error {
	var n int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?", table, column,
	).Scan(&n)
	if err != nil || n > 0 {
		return err
	}
	_, err = s.db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, decl))
	return err
}

// Reset deletes all data (demo and test helper).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{
		"validation_events", "recompute_runs", "patient_counts",
		"attendance_records", "duty_schedules", "rate_cards", "shift_templates",
	} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}

// =============================================================================
// ARCHIVE (reporting.Archive interface)
// =============================================================================

// archiveColumns lists the date columns each table may be filtered on.
var archiveColumns = map[string]map[string]bool{
	"attendance_records": {"date": true, "created_at": true, "validated_at": true},
	"patient_counts":     {"date": true, "created_at": true, "validated_at": true},
	"validation_events":  {"occurred_at": true},
	"recompute_runs":     {"started_at": true},
}

// CountInPeriod counts the rows of table whose date column falls in p.
// Table and column are checked against an allowlist before use.
func (s *Store) CountInPeriod(ctx context.Context, table string, column generic.DateColumn, p generic.Period) (int, error) {
	col := column.DateColumnName()
	if !archiveColumns[table][col] {
		return 0, fmt.Errorf("unknown archive column %s.%s", table, col)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE substr(%s, 1, 10) >= ? AND substr(%s, 1, 10) <= ?`, table, col, col)
	var n int
	err := s.db.QueryRowContext(ctx, query, p.Start.Format(dateLayout), p.End.Format(dateLayout)).Scan(&n)
	return n, err
}

// =============================================================================
// HELPERS
// =============================================================================

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) formatDate(t time.Time) string {
	return t.In(s.loc).Format(dateLayout)
}

func (s *Store) parseDate(v string) time.Time {
	t, _ := time.ParseInLocation(dateLayout, v, s.loc)
	return t
}

func (s *Store) parseInstant(v sql.NullString) *time.Time {
	if !v.Valid || v.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, v.String)
	if err != nil {
		return nil
	}
	t = t.In(s.loc)
	return &t
}

func formatInstant(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}

func nowString() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullInt(i *int) any {
	if i == nil {
		return nil
	}
	return *i
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func parseDecimal(v string) decimal.Decimal {
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}

func isForeignKeyError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

func isCheckConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "CHECK constraint failed")
}

func notFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
