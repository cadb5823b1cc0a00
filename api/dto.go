/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the engine's model from the external contract: minutes are always
  integers, hours are two-decimal strings, dates are YYYY-MM-DD and times
  of day are HH:mm.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Response wrappers

VALIDATION:
  Request types carry go-playground/validator tags. Handlers call
  decodeJSON, which decodes and validates in one step and answers 400 on
  failure.

SEE ALSO:
  - handlers.go: Uses these types
  - worktime/aggregate.go: DaySummary and MonthSummary
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/worktime-engine/attendance"
	"github.com/warp/worktime-engine/worktime"
)

// =============================================================================
// AUTH & USERS
// =============================================================================

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the issued token and the caller.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      UserDTO   `json:"user"`
}

// ShiftDTO is one shift window.
type ShiftDTO struct {
	Start string `json:"start" validate:"required,datetime=15:04"`
	End   string `json:"end" validate:"required,datetime=15:04"`
}

// UserDTO is a user without credentials.
type UserDTO struct {
	ID           string          `json:"id"`
	FullName     string          `json:"fullName"`
	Email        string          `json:"email"`
	PhoneNumber  string          `json:"phoneNumber,omitempty"`
	Address      string          `json:"address,omitempty"`
	Salary       decimal.Decimal `json:"salary"`
	Role         worktime.Role   `json:"role"`
	ShiftTimings []ShiftDTO      `json:"shiftTimings"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// UserRefDTO is the short user reference embedded in attendance rows.
type UserRefDTO struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

// CreateEmployeeRequest is the body of POST /api/auth/employees.
type CreateEmployeeRequest struct {
	FullName     string           `json:"fullName" validate:"required,min=2,max=100"`
	Email        string           `json:"email" validate:"required,email"`
	Password     string           `json:"password" validate:"required,min=6"`
	PhoneNumber  string           `json:"phoneNumber" validate:"omitempty,numeric,min=7,max=15"`
	Address      string           `json:"address" validate:"max=250"`
	Salary       *decimal.Decimal `json:"salary"`
	ShiftTimings []ShiftDTO       `json:"shiftTimings" validate:"dive"`
}

// UpdateEmployeeRequest is a partial update; omitted fields are kept.
type UpdateEmployeeRequest struct {
	FullName     *string          `json:"fullName" validate:"omitempty,min=2,max=100"`
	Email        *string          `json:"email" validate:"omitempty,email"`
	PhoneNumber  *string          `json:"phoneNumber" validate:"omitempty,numeric,min=7,max=15"`
	Address      *string          `json:"address" validate:"omitempty,max=250"`
	Salary       *decimal.Decimal `json:"salary"`
	ShiftTimings []ShiftDTO       `json:"shiftTimings" validate:"omitempty,dive"`
}

// =============================================================================
// ATTENDANCE
// =============================================================================

// RecordDTO is a stored attendance day as-is.
type RecordDTO struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user"`
	Date      worktime.Date    `json:"date"`
	Punches   []worktime.Punch `json:"punches"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// AttendanceDTO is a stored day with its recomputed totals. Error is set,
// and the totals are zero, when the day could not be evaluated.
type AttendanceDTO struct {
	RecordDTO
	User                 *UserRefDTO `json:"userInfo,omitempty"`
	TotalMinutes         int         `json:"totalMinutes"`
	TotalHours           string      `json:"totalHours"`
	TotalLateMinutes     int         `json:"totalLateMinutes"`
	TotalOvertimeMinutes int         `json:"totalOvertimeMinutes"`
	LateMark             bool        `json:"lateMark"`
	Error                string      `json:"error,omitempty"`
}

// PunchResponse answers punch-in and punch-out.
type PunchResponse struct {
	Message    string    `json:"message"`
	Attendance RecordDTO `json:"attendance"`
}

// EditPunchRequest is the body of PUT /api/admin/attendance/{id}/edit.
// An empty time keeps the current value.
type EditPunchRequest struct {
	PunchIndex *int   `json:"punchIndex" validate:"required,min=0"`
	InTime     string `json:"inTime" validate:"omitempty,datetime=15:04"`
	OutTime    string `json:"outTime" validate:"omitempty,datetime=15:04"`
}

// DateReportResponse answers GET /api/admin/attendance.
type DateReportResponse struct {
	Date       worktime.Date   `json:"date"`
	Attendance []AttendanceDTO `json:"attendance"`
}

// HistoryResponse answers GET /api/admin/attendance/{userId}/history.
type HistoryResponse struct {
	UserID  string      `json:"userId"`
	History []RecordDTO `json:"history"`
}

// MonthDayDTO is one day of a month report, after half-day tracking.
type MonthDayDTO struct {
	RecordDTO
	DayMinutes        int    `json:"dayMinutes"`
	DayHours          string `json:"dayHours"`
	LateMinutes       int    `json:"lateMinutes"`
	OvertimeMinutes   int    `json:"overtimeMinutes"`
	LateMark          bool   `json:"lateMark"`
	IsHalfDayDeducted bool   `json:"isHalfDayDeducted"`
	DeductedMinutes   int    `json:"deductedMinutes"`
}

// MonthSummaryDTO holds the month totals.
type MonthSummaryDTO struct {
	TotalMinutes         int    `json:"totalMinutes"`
	TotalHours           string `json:"totalHours"`
	TotalLateMinutes     int    `json:"totalLateMinutes"`
	TotalOvertimeMinutes int    `json:"totalOvertimeMinutes"`
	LateMarkCount        int    `json:"lateMarkCount"`
	HalfDayDeductions    int    `json:"halfDayDeductions"`
}

// MonthResponse answers GET /api/admin/attendance/{userId}/month.
type MonthResponse struct {
	User         UserDTO         `json:"user"`
	Month        string          `json:"month"`
	Shift        ShiftDTO        `json:"shift"`
	Records      []MonthDayDTO   `json:"records"`
	TotalMinutes int             `json:"totalMinutes"`
	Summary      MonthSummaryDTO `json:"summary"`
}

// =============================================================================
// SCENARIOS & MISC
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// LoadScenarioRequest is the request to load a scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// CredentialDTO is a demo login created by a scenario.
type CredentialDTO struct {
	Email    string        `json:"email"`
	Password string        `json:"password"`
	Role     worktime.Role `json:"role"`
}

// LoadScenarioResponse lists what a scenario created.
type LoadScenarioResponse struct {
	Message  string          `json:"message"`
	Scenario ScenarioDTO     `json:"scenario"`
	Logins   []CredentialDTO `json:"logins"`
}

// HealthResponse answers GET /api/health.
type HealthResponse struct {
	Status string    `json:"status"`
	Time   time.Time `json:"time"`
}

// MessageResponse is a plain acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toShiftDTOs(shifts []worktime.ShiftDefinition) []ShiftDTO {
	out := make([]ShiftDTO, len(shifts))
	for i, s := range shifts {
		out[i] = ShiftDTO{Start: s.Start.String(), End: s.End.String()}
	}
	return out
}

func fromShiftDTOs(dtos []ShiftDTO) ([]worktime.ShiftDefinition, error) {
	out := make([]worktime.ShiftDefinition, 0, len(dtos))
	for _, d := range dtos {
		s, err := worktime.ParseShift(d.Start, d.End)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func toUserDTO(u worktime.User) UserDTO {
	return UserDTO{
		ID:           u.ID,
		FullName:     u.FullName,
		Email:        u.Email,
		PhoneNumber:  u.PhoneNumber,
		Address:      u.Address,
		Salary:       u.Salary,
		Role:         u.Role,
		ShiftTimings: toShiftDTOs(u.Shifts),
		CreatedAt:    u.CreatedAt,
	}
}

func toRecordDTO(d worktime.AttendanceDay) RecordDTO {
	punches := d.Punches
	if punches == nil {
		punches = []worktime.Punch{}
	}
	return RecordDTO{
		ID:        d.ID,
		UserID:    d.UserID,
		Date:      d.Date,
		Punches:   punches,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

func toAttendanceDTO(r attendance.DayReport) AttendanceDTO {
	dto := AttendanceDTO{RecordDTO: toRecordDTO(r.Day), TotalHours: worktime.Hours(0)}
	if r.User != nil {
		dto.User = &UserRefDTO{ID: r.User.ID, FullName: r.User.FullName, Email: r.User.Email}
	}
	if r.Summary == nil {
		dto.Error = worktime.ErrMissingShift.Error()
		return dto
	}
	dto.TotalMinutes = r.Summary.TotalMinutes
	dto.TotalHours = worktime.Hours(r.Summary.TotalMinutes)
	dto.TotalLateMinutes = r.Summary.TotalLateMinutes
	dto.TotalOvertimeMinutes = r.Summary.TotalOvertimeMinutes
	dto.LateMark = r.Summary.LateMark
	return dto
}

func toAttendanceDTOs(reports []attendance.DayReport) []AttendanceDTO {
	out := make([]AttendanceDTO, len(reports))
	for i, r := range reports {
		out[i] = toAttendanceDTO(r)
	}
	return out
}

func toMonthResponse(m attendance.MonthReport) MonthResponse {
	byID := make(map[string]worktime.AttendanceDay, len(m.Days))
	for _, d := range m.Days {
		byID[d.ID] = d
	}

	records := make([]MonthDayDTO, len(m.Summary.Days))
	for i, s := range m.Summary.Days {
		records[i] = MonthDayDTO{
			RecordDTO:         toRecordDTO(byID[s.AttendanceID]),
			DayMinutes:        s.TotalMinutes,
			DayHours:          worktime.Hours(s.TotalMinutes),
			LateMinutes:       s.TotalLateMinutes,
			OvertimeMinutes:   s.TotalOvertimeMinutes,
			LateMark:          s.LateMark,
			IsHalfDayDeducted: s.IsHalfDayDeducted,
			DeductedMinutes:   s.DeductedMinutes,
		}
	}

	return MonthResponse{
		User:         toUserDTO(m.User),
		Month:        m.Month.String(),
		Shift:        ShiftDTO{Start: m.Shift.Start.String(), End: m.Shift.End.String()},
		Records:      records,
		TotalMinutes: m.Summary.TotalMinutes,
		Summary: MonthSummaryDTO{
			TotalMinutes:         m.Summary.TotalMinutes,
			TotalHours:           worktime.Hours(m.Summary.TotalMinutes),
			TotalLateMinutes:     m.Summary.TotalLateMinutes,
			TotalOvertimeMinutes: m.Summary.TotalOvertimeMinutes,
			LateMarkCount:        m.Summary.LateMarkCount,
			HalfDayDeductions:    m.Summary.HalfDayDeductions,
		},
	}
}
