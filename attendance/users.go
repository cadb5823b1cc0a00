package attendance

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/warp/worktime-engine/worktime"
)

var (
	// ErrInvalidCredentials is returned by Login for an unknown email and for
	// a wrong password alike.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrNotEmployee is returned when an employee operation targets an admin.
	ErrNotEmployee = fmt.Errorf("%w: not an employee", worktime.ErrUserNotFound)
)

// DefaultAdminEmail is the account created by SeedAdmin.
const DefaultAdminEmail = "admin@example.com"

// =============================================================================
// INPUT TYPES
// =============================================================================

// NewEmployee is what an admin supplies to create an employee account.
type NewEmployee struct {
	FullName    string
	Email       string
	Password    string
	PhoneNumber string
	Address     string
	Salary      decimal.Decimal
	Shifts      []worktime.ShiftDefinition
}

// EmployeePatch is a partial update; nil fields are left unchanged.
type EmployeePatch struct {
	FullName    *string
	Email       *string
	PhoneNumber *string
	Address     *string
	Salary      *decimal.Decimal
	Shifts      []worktime.ShiftDefinition
}

// =============================================================================
// AUTHENTICATION
// =============================================================================

// Login checks email and password and returns the user.
func (s *Service) Login(ctx context.Context, email, password string) (*worktime.User, error) {
	user, err := s.Users.GetUserByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, worktime.ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// User returns a user by ID.
func (s *Service) User(ctx context.Context, id string) (*worktime.User, error) {
	return s.Users.GetUser(ctx, id)
}

// =============================================================================
// EMPLOYEE MANAGEMENT
// =============================================================================

// CreateEmployee hashes the password and stores a new employee.
func (s *Service) CreateEmployee(ctx context.Context, in NewEmployee) (*worktime.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := worktime.User{
		FullName:     in.FullName,
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		PhoneNumber:  in.PhoneNumber,
		Address:      in.Address,
		Salary:       in.Salary,
		Role:         worktime.RoleEmployee,
		PasswordHash: string(hash),
		Shifts:       in.Shifts,
	}
	if err := s.Users.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	created, err := s.Users.GetUserByEmail(ctx, u.Email)
	if err != nil {
		return nil, err
	}
	log.Printf("[Attendance] Employee created: id=%s email=%s", created.ID, created.Email)
	return created, nil
}

// ListEmployees returns all users with the employee role.
func (s *Service) ListEmployees(ctx context.Context) ([]worktime.User, error) {
	return s.Users.ListUsers(ctx, worktime.RoleEmployee)
}

// Employee returns the user only if they have the employee role.
func (s *Service) Employee(ctx context.Context, id string) (*worktime.User, error) {
	u, err := s.Users.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.Role != worktime.RoleEmployee {
		return nil, ErrNotEmployee
	}
	return u, nil
}

// UpdateEmployee applies patch to an employee.
func (s *Service) UpdateEmployee(ctx context.Context, id string, patch EmployeePatch) (*worktime.User, error) {
	u, err := s.Employee(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.FullName != nil {
		u.FullName = *patch.FullName
	}
	if patch.Email != nil {
		u.Email = strings.ToLower(strings.TrimSpace(*patch.Email))
	}
	if patch.PhoneNumber != nil {
		u.PhoneNumber = *patch.PhoneNumber
	}
	if patch.Address != nil {
		u.Address = *patch.Address
	}
	if patch.Salary != nil {
		u.Salary = *patch.Salary
	}
	if patch.Shifts != nil {
		u.Shifts = patch.Shifts
	}
	if err := s.Users.UpdateUser(ctx, *u); err != nil {
		return nil, err
	}
	log.Printf("[Attendance] Employee updated: id=%s", u.ID)
	return s.Users.GetUser(ctx, id)
}

// SeedAdmin replaces any existing account at email with a fresh admin.
func (s *Service) SeedAdmin(ctx context.Context, email, password string) (*worktime.User, error) {
	if email == "" {
		email = DefaultAdminEmail
	}
	if err := s.Users.DeleteUserByEmail(ctx, email); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	admin := worktime.User{
		FullName:     "Administrator",
		Email:        email,
		Role:         worktime.RoleAdmin,
		PasswordHash: string(hash),
	}
	if err := s.Users.CreateUser(ctx, admin); err != nil {
		return nil, err
	}
	log.Printf("[Attendance] Admin account seeded: %s", email)
	return s.Users.GetUserByEmail(ctx, email)
}
