/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements worktime.Store and worktime.UserStore using SQLite. The same
  schema ports to PostgreSQL with only minor dialect differences.

INTERFACES IMPLEMENTED:
  worktime.Store:     Attendance day persistence
  worktime.UserStore: Users, shifts and credentials

KEY TABLES:
  attendance_days: One row per (user, date); punches stored as JSON
  users:           Identity, role, salary and shift timings

INDEXES:
  - idx_attendance_user_date: UNIQUE (user_id, date). At most one record
    per user per day, enforced by the database.
  - idx_attendance_date: Date reports across all users
  - idx_users_email / idx_users_phone: Duplicate account detection

ATOMIC UPDATES:
  UpdateDay and UpdateDayByID hold the store's write lock and run the
  read-modify-write cycle inside one SQL transaction. Each row carries a
  version column; the UPDATE is conditional on the version that was read,
  and a mismatch surfaces as worktime.ErrConcurrentModification.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. With a server database, row-level
  locking or the version check alone handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time

USAGE:
  store, err := sqlite.New("./data/attendance.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - worktime/store.go: Interface definitions
  - worktime/store/memory.go: In-memory implementation for testing
  - store/mongo/mongo.go: Document store implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/worktime-engine/worktime"
)

// Store implements the worktime storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var (
	_ worktime.Store     = (*Store)(nil)
	_ worktime.UserStore = (*Store)(nil)
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Every connection to ":memory:" is its own database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
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

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Users (employees and admins)
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		full_name TEXT NOT NULL,
		email TEXT NOT NULL,
		phone_number TEXT,
		address TEXT,
		salary TEXT NOT NULL DEFAULT '0',
		role TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		shifts_json TEXT NOT NULL DEFAULT '[]',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email
		ON users(email COLLATE NOCASE);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_users_phone
		ON users(phone_number) WHERE phone_number IS NOT NULL AND phone_number != '';
	CREATE INDEX IF NOT EXISTS idx_users_role
		ON users(role);

	-- Attendance days (one per user per date)
	CREATE TABLE IF NOT EXISTS attendance_days (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		date TEXT NOT NULL,
		punches_json TEXT NOT NULL DEFAULT '[]',
		version INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- CRITICAL: at most one record per user per day
	CREATE UNIQUE INDEX IF NOT EXISTS idx_attendance_user_date
		ON attendance_days(user_id, date);

	-- For date reports across all users
	CREATE INDEX IF NOT EXISTS idx_attendance_date
		ON attendance_days(date);
	`

	_, err := s.db.Exec(schema)
	return err
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// ATTENDANCE STORE (worktime.Store interface)
// =============================================================================

const dayColumns = `id, user_id, date, punches_json, version, created_at, updated_at`

// FindByUserAndDate returns the day for (userID, date), or nil.
func (s *Store) FindByUserAndDate(ctx context.Context, userID string, date worktime.Date) (*worktime.AttendanceDay, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return findDay(ctx, s.db, "user_id = ? AND date = ?", userID, date.String())
}

// FindByID returns the day with the given ID.
func (s *Store) FindByID(ctx context.Context, id string) (*worktime.AttendanceDay, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	day, err := findDay(ctx, s.db, "id = ?", id)
	if err != nil {
		return nil, err
	}
	if day == nil {
		return nil, &worktime.RecordNotFoundError{ID: id}
	}
	return day, nil
}

// FindByUser returns all of a user's days, ascending by date.
func (s *Store) FindByUser(ctx context.Context, userID string) ([]worktime.AttendanceDay, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryDays(ctx, "WHERE user_id = ? ORDER BY date", userID)
}

// FindByDate returns every user's record for date.
func (s *Store) FindByDate(ctx context.Context, date worktime.Date) ([]worktime.AttendanceDay, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryDays(ctx, "WHERE date = ? ORDER BY user_id", date.String())
}

// FindByUserAndMonth matches date keys by their "YYYY-MM" prefix.
func (s *Store) FindByUserAndMonth(ctx context.Context, userID string, month worktime.Month) ([]worktime.AttendanceDay, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryDays(ctx, "WHERE user_id = ? AND date LIKE ? ORDER BY date", userID, month.Prefix()+"-%")
}

func (s *Store) queryDays(ctx context.Context, where string, args ...any) ([]worktime.AttendanceDay, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+dayColumns+" FROM attendance_days "+where, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query attendance: %w", err)
	}
	defer rows.Close()

	var days []worktime.AttendanceDay
	for rows.Next() {
		d, err := scanDay(rows)
		if err != nil {
			return nil, err
		}
		days = append(days, d)
	}
	return days, rows.Err()
}

func findDay(ctx context.Context, q queryer, where string, args ...any) (*worktime.AttendanceDay, error) {
	row := q.QueryRowContext(ctx, "SELECT "+dayColumns+" FROM attendance_days WHERE "+where, args...)
	d, err := scanDay(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDay(row scanner) (worktime.AttendanceDay, error) {
	var (
		d                    worktime.AttendanceDay
		date, punches        string
		createdAt, updatedAt string
	)
	if err := row.Scan(&d.ID, &d.UserID, &date, &punches, &d.Version, &createdAt, &updatedAt); err != nil {
		return worktime.AttendanceDay{}, err
	}
	parsed, err := worktime.ParseDate(date)
	if err != nil {
		return worktime.AttendanceDay{}, fmt.Errorf("corrupt date on %s: %w", d.ID, err)
	}
	d.Date = parsed
	if err := json.Unmarshal([]byte(punches), &d.Punches); err != nil {
		return worktime.AttendanceDay{}, fmt.Errorf("corrupt punches on %s: %w", d.ID, err)
	}
	if d.Punches == nil {
		d.Punches = []worktime.Punch{}
	}
	d.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	d.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return d, nil
}

// Save inserts or replaces a day without a version check.
func (s *Store) Save(ctx context.Context, day worktime.AttendanceDay) (worktime.AttendanceDay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return worktime.AttendanceDay{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	existing, err := findDay(ctx, sqlTx, "user_id = ? AND date = ?", day.UserID, day.Date.String())
	if err != nil {
		return worktime.AttendanceDay{}, err
	}
	if existing != nil {
		day.ID, day.Version, day.CreatedAt = existing.ID, existing.Version, existing.CreatedAt
	}
	saved, err := writeDay(ctx, sqlTx, day, existing != nil)
	if err != nil {
		return worktime.AttendanceDay{}, err
	}
	return saved, sqlTx.Commit()
}

// UpdateDay loads the (user, date) day or a fresh one, applies fn and
// writes the result in one transaction.
func (s *Store) UpdateDay(ctx context.Context, userID string, date worktime.Date, fn worktime.DayMutator) (worktime.AttendanceDay, error) {
	return s.update(ctx, fn, func(q queryer) (*worktime.AttendanceDay, error) {
		d, err := findDay(ctx, q, "user_id = ? AND date = ?", userID, date.String())
		if err != nil || d != nil {
			return d, err
		}
		fresh := worktime.NewAttendanceDay(userID, date)
		return &fresh, nil
	})
}

// UpdateDayByID is UpdateDay for an existing record.
func (s *Store) UpdateDayByID(ctx context.Context, id string, fn worktime.DayMutator) (worktime.AttendanceDay, error) {
	return s.update(ctx, fn, func(q queryer) (*worktime.AttendanceDay, error) {
		d, err := findDay(ctx, q, "id = ?", id)
		if err != nil {
			return nil, err
		}
		if d == nil {
			return nil, &worktime.RecordNotFoundError{ID: id}
		}
		return d, nil
	})
}

func (s *Store) update(ctx context.Context, fn worktime.DayMutator, load func(queryer) (*worktime.AttendanceDay, error)) (worktime.AttendanceDay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return worktime.AttendanceDay{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	day, err := load(sqlTx)
	if err != nil {
		return worktime.AttendanceDay{}, err
	}
	exists := day.ID != ""
	if err := fn(day); err != nil {
		return worktime.AttendanceDay{}, err
	}
	saved, err := writeDay(ctx, sqlTx, *day, exists)
	if err != nil {
		return worktime.AttendanceDay{}, err
	}
	return saved, sqlTx.Commit()
}

// writeDay inserts a new row or updates the row at day.Version.
func writeDay(ctx context.Context, q queryer, day worktime.AttendanceDay, exists bool) (worktime.AttendanceDay, error) {
	punches, err := json.Marshal(day.Punches)
	if err != nil {
		return worktime.AttendanceDay{}, fmt.Errorf("failed to encode punches: %w", err)
	}
	now := time.Now().UTC().Truncate(time.Second)

	if !exists {
		if day.ID == "" {
			day.ID = uuid.NewString()
		}
		day.Version, day.CreatedAt, day.UpdatedAt = 1, now, now
		_, err := q.ExecContext(ctx, `
			INSERT INTO attendance_days (id, user_id, date, punches_json, version, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, day.ID, day.UserID, day.Date.String(), string(punches), day.Version,
			now.Format(time.RFC3339), now.Format(time.RFC3339))
		if isUniqueConstraintError(err) {
			return worktime.AttendanceDay{}, fmt.Errorf("%w: attendance for %s on %s", worktime.ErrConcurrentModification, day.UserID, day.Date)
		}
		if err != nil {
			return worktime.AttendanceDay{}, fmt.Errorf("failed to insert attendance: %w", err)
		}
		return day, nil
	}

	res, err := q.ExecContext(ctx, `
		UPDATE attendance_days SET punches_json = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`, string(punches), now.Format(time.RFC3339), day.ID, day.Version)
	if err != nil {
		return worktime.AttendanceDay{}, fmt.Errorf("failed to update attendance: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return worktime.AttendanceDay{}, fmt.Errorf("%w: attendance %s", worktime.ErrConcurrentModification, day.ID)
	}
	day.Version++
	day.UpdatedAt = now
	return day, nil
}

// Reset deletes all data. Demo scenarios only.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"attendance_days", "users"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// USER STORE (worktime.UserStore interface)
// =============================================================================

const userColumns = `id, full_name, email, phone_number, address, salary, role, password_hash, shifts_json, created_at, updated_at`

// GetUser retrieves a user by ID.
func (s *Store) GetUser(ctx context.Context, id string) (*worktime.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.getUser(ctx, "id = ?", id)
}

// GetUserByEmail retrieves a user by email, case-insensitively.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*worktime.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.getUser(ctx, "email = ? COLLATE NOCASE", email)
}

func (s *Store) getUser(ctx context.Context, where string, args ...any) (*worktime.User, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE "+where, args...)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, worktime.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ListUsers returns users with the given role, or everyone for "".
func (s *Store) ListUsers(ctx context.Context, role worktime.Role) ([]worktime.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + userColumns + " FROM users"
	var args []any
	if role != "" {
		query += " WHERE role = ?"
		args = append(args, string(role))
	}
	query += " ORDER BY full_name"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []worktime.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func scanUser(row scanner) (worktime.User, error) {
	var (
		u                    worktime.User
		phone, address       sql.NullString
		salary, role, shifts string
		createdAt, updatedAt string
	)
	err := row.Scan(&u.ID, &u.FullName, &u.Email, &phone, &address, &salary, &role,
		&u.PasswordHash, &shifts, &createdAt, &updatedAt)
	if err != nil {
		return worktime.User{}, err
	}
	u.PhoneNumber, u.Address = phone.String, address.String
	u.Role = worktime.Role(role)
	u.Salary = parseSalary(salary)
	if err := json.Unmarshal([]byte(shifts), &u.Shifts); err != nil {
		return worktime.User{}, fmt.Errorf("corrupt shifts on user %s: %w", u.ID, err)
	}
	u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	u.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return u, nil
}

// CreateUser inserts a user, assigning an ID when empty.
func (s *Store) CreateUser(ctx context.Context, u worktime.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	shifts, err := json.Marshal(shiftsOrEmpty(u.Shifts))
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, u.ID, u.FullName, u.Email, nullString(u.PhoneNumber), nullString(u.Address),
		u.Salary.String(), string(u.Role), u.PasswordHash, string(shifts), now, now)
	if isUniqueConstraintError(err) {
		return worktime.ErrDuplicateUser
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// UpdateUser replaces an existing user's mutable fields.
func (s *Store) UpdateUser(ctx context.Context, u worktime.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	shifts, err := json.Marshal(shiftsOrEmpty(u.Shifts))
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET full_name = ?, email = ?, phone_number = ?, address = ?,
			salary = ?, role = ?, password_hash = ?, shifts_json = ?, updated_at = ?
		WHERE id = ?
	`, u.FullName, u.Email, nullString(u.PhoneNumber), nullString(u.Address),
		u.Salary.String(), string(u.Role), u.PasswordHash, string(shifts),
		time.Now().UTC().Format(time.RFC3339), u.ID)
	if isUniqueConstraintError(err) {
		return worktime.ErrDuplicateUser
	}
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return worktime.ErrUserNotFound
	}
	return nil
}

// DeleteUserByEmail removes the user with email, if any.
func (s *Store) DeleteUserByEmail(ctx context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM users WHERE email = ? COLLATE NOCASE", email)
	return err
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func parseSalary(value string) decimal.Decimal {
	d, _ := decimal.NewFromString(value)
	return d
}

func shiftsOrEmpty(shifts []worktime.ShiftDefinition) []worktime.ShiftDefinition {
	if shifts == nil {
		return []worktime.ShiftDefinition{}
	}
	return shifts
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
