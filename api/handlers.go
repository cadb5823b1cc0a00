/*
handlers.go - HTTP API handlers for the attendance service

PURPOSE:
  Exposes punch recording, employee management and attendance reports via
  REST. Handles HTTP request/response, JSON and multipart decoding, and
  delegates to the attendance service.

ENDPOINTS:
  Auth:
    POST   /api/auth/login                         Issue token (+ cookie)
    POST   /api/auth/logout                        Clear cookie
    GET    /api/auth/me                            Current user
    POST   /api/auth/employees                     Create employee (admin)

  Attendance:
    POST   /api/attendance/punch-in                Multipart "photo" (employee)
    POST   /api/attendance/punch-out               Multipart "photo" (employee)
    GET    /api/attendance/my-attendance           Own days with totals (employee)
    GET    /api/attendance/{userId}                A user's days (admin)

  Admin:
    GET    /api/admin/employees                    List employees
    PUT    /api/admin/employees/{userId}           Partial update
    GET    /api/admin/attendance?date=YYYY-MM-DD   All users for a date
    GET    /api/admin/attendance/{userId}/history  Raw history
    GET    /api/admin/attendance/{userId}/month?month=YYYY-MM
    PUT    /api/admin/attendance/{attendanceId}/edit

  Employee:
    GET    /api/employees/me                       Own profile

ARCHITECTURE:
  Handler holds the attendance service, the store (scenarios reset it),
  the photo store and the token authority. Handlers never compute totals
  themselves; every number comes from the service's fresh aggregation.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, punch precondition violations, missing shift
  - 401: Missing/invalid token, wrong credentials
  - 403: Role mismatch
  - 404: User or attendance record not found
  - 409: Duplicate email/phone, write conflict after retries
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - auth.go: Token handling and role guards
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/warp/worktime-engine/attendance"
	"github.com/warp/worktime-engine/evidence"
	"github.com/warp/worktime-engine/worktime"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// PhotoStore persists an uploaded punch photo and returns its reference.
type PhotoStore interface {
	Save(userID string, header *multipart.FileHeader) (string, error)
}

// Pinger is implemented by stores that can report connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *attendance.Service
	Store   worktime.Store
	Photos  PhotoStore
	Auth    *Auth

	validate *validator.Validate

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler.
func NewHandler(svc *attendance.Service, photos PhotoStore, auth *Auth) *Handler {
	return &Handler{
		Service:  svc,
		Store:    svc.Store,
		Photos:   photos,
		Auth:     auth,
		validate: validator.New(),
	}
}

// =============================================================================
// AUTH HANDLERS
// =============================================================================

// Login checks credentials and issues a token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	user, err := h.Service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, "Login failed", err)
		return
	}

	token, expires, err := h.Auth.IssueToken(*user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to issue token", err)
		return
	}
	h.Auth.SetCookie(w, token, expires)
	log.Printf("[Auth] Login: user=%s role=%s", user.ID, user.Role)

	writeJSON(w, http.StatusOK, LoginResponse{Token: token, ExpiresAt: expires, User: toUserDTO(*user)})
}

// Logout clears the session cookie.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.Auth.ClearCookie(w)
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Logged out successfully"})
}

// Me returns the caller.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	user, err := h.Service.User(r.Context(), p.UserID)
	if err != nil {
		writeServiceError(w, "Failed to get user", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]UserDTO{"user": toUserDTO(*user)})
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// CreateEmployee creates an employee account.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	shifts, err := fromShiftDTOs(req.ShiftTimings)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid shift timings", err)
		return
	}
	salary := decimal.Zero
	if req.Salary != nil {
		if req.Salary.IsNegative() {
			writeError(w, http.StatusBadRequest, "Salary must not be negative", nil)
			return
		}
		salary = *req.Salary
	}

	user, err := h.Service.CreateEmployee(r.Context(), attendance.NewEmployee{
		FullName:    req.FullName,
		Email:       req.Email,
		Password:    req.Password,
		PhoneNumber: req.PhoneNumber,
		Address:     req.Address,
		Salary:      salary,
		Shifts:      shifts,
	})
	if err != nil {
		writeServiceError(w, "Failed to create employee", err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserDTO(*user))
}

// ListEmployees returns all employees.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	users, err := h.Service.ListEmployees(r.Context())
	if err != nil {
		writeServiceError(w, "Failed to list employees", err)
		return
	}
	dtos := make([]UserDTO, len(users))
	for i, u := range users {
		dtos[i] = toUserDTO(u)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// UpdateEmployee applies a partial update.
func (h *Handler) UpdateEmployee(w http.ResponseWriter, r *http.Request) {
	var req UpdateEmployeeRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if req.Salary != nil && req.Salary.IsNegative() {
		writeError(w, http.StatusBadRequest, "Salary must not be negative", nil)
		return
	}
	var shifts []worktime.ShiftDefinition
	if req.ShiftTimings != nil {
		var err error
		if shifts, err = fromShiftDTOs(req.ShiftTimings); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid shift timings", err)
			return
		}
	}

	user, err := h.Service.UpdateEmployee(r.Context(), chi.URLParam(r, "userId"), attendance.EmployeePatch{
		FullName:    req.FullName,
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
		Address:     req.Address,
		Salary:      req.Salary,
		Shifts:      shifts,
	})
	if err != nil {
		writeServiceError(w, "Failed to update employee", err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(*user))
}

// MyProfile returns the calling employee's profile.
func (h *Handler) MyProfile(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	user, err := h.Service.Employee(r.Context(), p.UserID)
	if err != nil {
		writeServiceError(w, "Failed to get profile", err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(*user))
}

// =============================================================================
// PUNCH HANDLERS
// =============================================================================

// PunchIn opens a punch for the caller.
func (h *Handler) PunchIn(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	photo, ok := h.savePhoto(w, r, p.UserID)
	if !ok {
		return
	}
	day, err := h.Service.PunchIn(r.Context(), p.UserID, photo)
	if err != nil {
		writeServiceError(w, "Punch in failed", err)
		return
	}
	writeJSON(w, http.StatusOK, PunchResponse{Message: "Punched in", Attendance: toRecordDTO(day)})
}

// PunchOut closes the caller's open punch.
func (h *Handler) PunchOut(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	photo, ok := h.savePhoto(w, r, p.UserID)
	if !ok {
		return
	}
	day, err := h.Service.PunchOut(r.Context(), p.UserID, photo)
	if err != nil {
		writeServiceError(w, "Punch out failed", err)
		return
	}
	writeJSON(w, http.StatusOK, PunchResponse{Message: "Punched out", Attendance: toRecordDTO(day)})
}

// savePhoto stores the multipart "photo" file. A request without one yields
// an empty reference so the service reports the missing evidence.
func (h *Handler) savePhoto(w http.ResponseWriter, r *http.Request, userID string) (string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, evidence.MaxPhotoBytes+1<<20)
	if err := r.ParseMultipartForm(evidence.MaxPhotoBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		writeError(w, http.StatusBadRequest, "Invalid upload", err)
		return "", false
	}
	if r.MultipartForm == nil {
		return "", true
	}
	files := r.MultipartForm.File["photo"]
	if len(files) == 0 {
		return "", true
	}
	ref, err := h.Photos.Save(userID, files[0])
	if err != nil {
		writeServiceError(w, "Failed to store photo", err)
		return "", false
	}
	return ref, true
}

// =============================================================================
// ATTENDANCE HANDLERS
// =============================================================================

// MyAttendance returns the caller's days with totals.
func (h *Handler) MyAttendance(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	h.writeUserDays(w, r, p.UserID)
}

// UserAttendance returns any user's days with totals.
func (h *Handler) UserAttendance(w http.ResponseWriter, r *http.Request) {
	h.writeUserDays(w, r, chi.URLParam(r, "userId"))
}

func (h *Handler) writeUserDays(w http.ResponseWriter, r *http.Request, userID string) {
	reports, err := h.Service.UserDays(r.Context(), userID)
	if err != nil {
		writeServiceError(w, "Failed to get attendance", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]AttendanceDTO{"attendance": toAttendanceDTOs(reports)})
}

// AttendanceByDate returns all users' records for ?date, default today.
func (h *Handler) AttendanceByDate(w http.ResponseWriter, r *http.Request) {
	var date *worktime.Date
	if s := r.URL.Query().Get("date"); s != "" {
		d, err := worktime.ParseDate(s)
		if err != nil {
			writeServiceError(w, "Invalid date", err)
			return
		}
		date = &d
	}

	reports, err := h.Service.DateReport(r.Context(), date)
	if err != nil {
		writeServiceError(w, "Failed to get attendance", err)
		return
	}
	resolved := worktime.Today(h.Service.Clock)
	if date != nil {
		resolved = *date
	}
	writeJSON(w, http.StatusOK, DateReportResponse{Date: resolved, Attendance: toAttendanceDTOs(reports)})
}

// History returns a user's raw records.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	days, err := h.Service.History(r.Context(), userID)
	if err != nil {
		writeServiceError(w, "Failed to get history", err)
		return
	}
	history := make([]RecordDTO, len(days))
	for i, d := range days {
		history[i] = toRecordDTO(d)
	}
	writeJSON(w, http.StatusOK, HistoryResponse{UserID: userID, History: history})
}

// MonthAttendance returns the month report for ?month=YYYY-MM.
func (h *Handler) MonthAttendance(w http.ResponseWriter, r *http.Request) {
	s := r.URL.Query().Get("month")
	if s == "" {
		writeError(w, http.StatusBadRequest, "month query parameter is required (YYYY-MM)", nil)
		return
	}
	month, err := worktime.ParseMonth(s)
	if err != nil {
		writeServiceError(w, "Invalid month", err)
		return
	}

	report, err := h.Service.MonthReport(r.Context(), chi.URLParam(r, "userId"), month)
	if err != nil {
		writeServiceError(w, "Failed to get monthly attendance", err)
		return
	}
	writeJSON(w, http.StatusOK, toMonthResponse(report))
}

// EditPunch lets an admin correct one punch.
func (h *Handler) EditPunch(w http.ResponseWriter, r *http.Request) {
	var req EditPunchRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	day, err := h.Service.EditPunch(r.Context(), chi.URLParam(r, "attendanceId"), *req.PunchIndex, req.InTime, req.OutTime)
	if err != nil {
		writeServiceError(w, "Failed to edit punch", err)
		return
	}
	writeJSON(w, http.StatusOK, PunchResponse{Message: "Punch updated", Attendance: toRecordDTO(day)})
}

// Health reports liveness with the configured clock.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if p, ok := h.Store.(Pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "Store unavailable", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Time: h.Service.Clock.Now()})
}

// =============================================================================
// HELPERS
// =============================================================================

// decodeJSON decodes the body into dst and validates it. It writes the 400
// itself and returns false on failure.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", validationDetails(err))
		return false
	}
	return true
}

func validationDetails(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, len(verrs))
	for i, fe := range verrs {
		msgs[i] = fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag())
	}
	return errors.New(strings.Join(msgs, "; "))
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeServiceError maps engine and service errors to a status and code.
func writeServiceError(w http.ResponseWriter, message string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("[Server] %s: %v", message, err)
	}
	writeJSON(w, status, ErrorResponse{Error: message, Code: errorCode(err), Details: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, attendance.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case worktime.IsNotFound(err):
		return http.StatusNotFound
	case worktime.IsConflict(err):
		return http.StatusConflict
	case worktime.IsClientError(err),
		errors.Is(err, evidence.ErrUnsupportedFormat),
		errors.Is(err, evidence.ErrTooLarge):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

var errorCodes = []struct {
	err  error
	code string
}{
	{attendance.ErrInvalidCredentials, "invalid_credentials"},
	{worktime.ErrMissingShift, "missing_shift"},
	{worktime.ErrDuplicateOpenPunch, "duplicate_open_punch"},
	{worktime.ErrNoOpenPunch, "no_open_punch"},
	{worktime.ErrMissingEvidence, "missing_evidence"},
	{worktime.ErrRecordNotFound, "record_not_found"},
	{worktime.ErrInvalidPunchIndex, "invalid_punch_index"},
	{worktime.ErrInvalidTime, "invalid_time"},
	{worktime.ErrUserNotFound, "user_not_found"},
	{worktime.ErrDuplicateUser, "duplicate_user"},
	{worktime.ErrConcurrentModification, "concurrent_modification"},
	{evidence.ErrUnsupportedFormat, "unsupported_photo"},
	{evidence.ErrTooLarge, "photo_too_large"},
}

func errorCode(err error) string {
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return ""
}
