/*
store.go - Persistence interfaces for attendance records and users

PURPOSE:
  Defines the boundary between the engine and the database. The engine
  never talks to a driver directly; the service layer receives a Store and
  a UserStore and the concrete implementation is picked at startup.

KEY INTERFACES:
  Store:     Attendance days (find by user/date/month, save, atomic update)
  UserStore: User lookup (shifts + identity), employee management

ATOMIC UPDATES:
  Punch-in must observe "no open punch" and append in one step. UpdateDay
  and UpdateDayByID run a read-modify-write cycle that no other mutation of
  the same (user, date) record can interleave with. Implementations that
  detect a conflict instead of blocking return ErrConcurrentModification.

IMPLEMENTATIONS:
  - worktime/store/memory.go: In-memory for tests and demos
  - store/sqlite/sqlite.go: SQLite
  - store/mongo/mongo.go: MongoDB

SEE ALSO:
  - attendance/service.go: Uses these interfaces
*/
package worktime

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// USERS
// =============================================================================

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleEmployee Role = "employee"
)

// User is what the engine needs to know about a person: their shifts.
// The remaining fields serve employee management and login.
type User struct {
	ID           string
	FullName     string
	Email        string
	PhoneNumber  string
	Address      string
	Salary       decimal.Decimal
	Role         Role
	PasswordHash string
	Shifts       []ShiftDefinition
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserLookup is the read side the attendance service depends on.
type UserLookup interface {
	// GetUser returns ErrUserNotFound when id is unknown.
	GetUser(ctx context.Context, id string) (*User, error)
}

// UserStore adds employee management on top of UserLookup.
type UserStore interface {
	UserLookup

	// GetUserByEmail returns ErrUserNotFound when no user has the email.
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// ListUsers returns users with the given role, or all users for "".
	ListUsers(ctx context.Context, role Role) ([]User, error)

	// CreateUser fails with ErrDuplicateUser when email or phone is taken.
	CreateUser(ctx context.Context, u User) error

	// UpdateUser replaces an existing user; ErrUserNotFound if absent.
	UpdateUser(ctx context.Context, u User) error

	// DeleteUserByEmail removes a user if present. Used by admin bootstrap.
	DeleteUserByEmail(ctx context.Context, email string) error
}

// =============================================================================
// ATTENDANCE RECORDS
// =============================================================================

// DayMutator changes a day in place. Returning an error aborts the write.
type DayMutator func(day *AttendanceDay) error

// Store persists attendance days.
type Store interface {
	// FindByUserAndDate returns nil (no error) when there is no record.
	FindByUserAndDate(ctx context.Context, userID string, date Date) (*AttendanceDay, error)

	// FindByID returns ErrRecordNotFound when id is unknown.
	FindByID(ctx context.Context, id string) (*AttendanceDay, error)

	// FindByUser returns all of a user's days, ascending by date.
	FindByUser(ctx context.Context, userID string) ([]AttendanceDay, error)

	// FindByDate returns every user's record for a date.
	FindByDate(ctx context.Context, date Date) ([]AttendanceDay, error)

	// FindByUserAndMonth returns the user's days whose date key starts with
	// the month prefix, ascending by date.
	FindByUserAndMonth(ctx context.Context, userID string, month Month) ([]AttendanceDay, error)

	// Save inserts or replaces a day. New days get an ID assigned.
	Save(ctx context.Context, day AttendanceDay) (AttendanceDay, error)

	// UpdateDay atomically loads the (user, date) day, or a fresh empty one,
	// applies fn and saves the result.
	UpdateDay(ctx context.Context, userID string, date Date, fn DayMutator) (AttendanceDay, error)

	// UpdateDayByID is UpdateDay for an existing record; ErrRecordNotFound
	// when id is unknown.
	UpdateDayByID(ctx context.Context, id string, fn DayMutator) (AttendanceDay, error)

	// Reset deletes everything. Demo scenarios only.
	Reset(ctx context.Context) error
}
