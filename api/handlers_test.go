/*
handlers_test.go - HTTP tests for the API

Tests for:
- Login, token cookie and role guards
- Employee creation validation and uniqueness
- Multipart punch flow end to end
- Admin edit and month report
- Error status mapping
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/worktime-engine/attendance"
	"github.com/warp/worktime-engine/evidence"
	"github.com/warp/worktime-engine/store/sqlite"
	"github.com/warp/worktime-engine/worktime"
)

var ist = time.FixedZone("IST", 5*3600+30*60)

type testServer struct {
	t       *testing.T
	router  http.Handler
	handler *Handler
	svc     *attendance.Service
}

func newTestServer(t *testing.T, scenarios bool) *testServer {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	agg, err := worktime.NewAggregator(worktime.CanonicalPolicy())
	require.NoError(t, err)
	clock := worktime.FixedClock(time.Date(2025, 3, 3, 9, 0, 0, 0, ist), ist)
	svc := attendance.NewService(store, store, clock, agg)

	photoDir := t.TempDir()
	photos, err := evidence.NewDiskStore(photoDir, "/uploads")
	require.NoError(t, err)

	h := NewHandler(svc, photos, NewAuth("test-secret", time.Hour))
	router := NewRouter(h, RouterConfig{
		AllowedOrigins:  []string{"*"},
		PhotoDir:        photoDir,
		EnableScenarios: scenarios,
	})
	return &testServer{t: t, router: router, handler: h, svc: svc}
}

// at pins the service clock to an IST wall-clock instant.
func (s *testServer) at(month time.Month, day, hh, mm int) {
	s.svc.Clock = worktime.FixedClock(time.Date(2025, month, day, hh, mm, 0, 0, ist), ist)
}

func (s *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) punch(path, token string, withPhoto bool) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if withPhoto {
		part, err := mw.CreateFormFile("photo", "selfie.jpg")
		require.NoError(s.t, err)
		_, err = part.Write([]byte("jpeg"))
		require.NoError(s.t, err)
	} else {
		require.NoError(s.t, mw.WriteField("note", "no photo"))
	}
	require.NoError(s.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) login(email, password string) string {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/auth/login", "", LoginRequest{Email: email, Password: password})
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())
	var resp LoginResponse
	decode(s.t, rec, &resp)
	return resp.Token
}

// adminAndEmployee seeds both accounts and returns their tokens and the
// employee's ID.
func (s *testServer) adminAndEmployee() (adminToken, empToken, empID string) {
	s.t.Helper()
	_, err := s.svc.SeedAdmin(context.Background(), attendance.DefaultAdminEmail, "admin123")
	require.NoError(s.t, err)
	adminToken = s.login(attendance.DefaultAdminEmail, "admin123")

	rec := s.do(http.MethodPost, "/api/auth/employees", adminToken, CreateEmployeeRequest{
		FullName:     "Asha Rao",
		Email:        "asha@example.com",
		Password:     "secret1",
		PhoneNumber:  "9000000001",
		ShiftTimings: []ShiftDTO{{Start: "09:00", End: "18:00"}},
	})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	var emp UserDTO
	decode(s.t, rec, &emp)

	return adminToken, s.login("asha@example.com", "secret1"), emp.ID
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
}

func errorCodeOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	var resp ErrorResponse
	decode(t, rec, &resp)
	return resp.Code
}

// =============================================================================
// AUTH
// =============================================================================

func TestLogin_SetsCookieAcceptedByMe(t *testing.T) {
	s := newTestServer(t, false)
	_, err := s.svc.SeedAdmin(context.Background(), attendance.DefaultAdminEmail, "admin123")
	require.NoError(t, err)

	// WHEN: Logging in with mixed-case email
	rec := s.do(http.MethodPost, "/api/auth/login", "", LoginRequest{Email: "ADMIN@example.com", Password: "admin123"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == TokenCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	// THEN: The cookie alone authenticates
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(cookie)
	me := httptest.NewRecorder()
	s.router.ServeHTTP(me, req)
	require.Equal(t, http.StatusOK, me.Code, me.Body.String())

	var body map[string]UserDTO
	decode(t, me, &body)
	assert.Equal(t, worktime.RoleAdmin, body["user"].Role)
}

func TestLogin_WrongPasswordIs401(t *testing.T) {
	s := newTestServer(t, false)
	_, err := s.svc.SeedAdmin(context.Background(), attendance.DefaultAdminEmail, "admin123")
	require.NoError(t, err)

	rec := s.do(http.MethodPost, "/api/auth/login", "", LoginRequest{Email: attendance.DefaultAdminEmail, Password: "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid_credentials", errorCodeOf(t, rec))

	rec = s.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "not-an-email", "password": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRoleGuards(t *testing.T) {
	s := newTestServer(t, false)
	adminToken, empToken, _ := s.adminAndEmployee()

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/admin/employees", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/admin/employees", "garbage", nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/api/admin/employees", empToken, nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/admin/employees", adminToken, nil).Code)

	// Punching is for employees only
	assert.Equal(t, http.StatusForbidden, s.punch("/api/attendance/punch-in", adminToken, true).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/employees/me", empToken, nil).Code)
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func TestCreateEmployee_ValidationAndDuplicates(t *testing.T) {
	s := newTestServer(t, false)
	adminToken, _, _ := s.adminAndEmployee()

	tests := []struct {
		name   string
		body   CreateEmployeeRequest
		status int
	}{
		{"short password", CreateEmployeeRequest{FullName: "Ravi", Email: "ravi@example.com", Password: "123"}, http.StatusBadRequest},
		{"bad email", CreateEmployeeRequest{FullName: "Ravi", Email: "ravi", Password: "secret1"}, http.StatusBadRequest},
		{"bad shift", CreateEmployeeRequest{FullName: "Ravi", Email: "ravi@example.com", Password: "secret1",
			ShiftTimings: []ShiftDTO{{Start: "9am", End: "18:00"}}}, http.StatusBadRequest},
		{"duplicate email", CreateEmployeeRequest{FullName: "Asha Two", Email: "ASHA@example.com", Password: "secret1"}, http.StatusConflict},
		{"duplicate phone", CreateEmployeeRequest{FullName: "Ravi", Email: "ravi@example.com", Password: "secret1", PhoneNumber: "9000000001"}, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(http.MethodPost, "/api/auth/employees", adminToken, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestUpdateEmployee_PartialUpdate(t *testing.T) {
	s := newTestServer(t, false)
	adminToken, _, empID := s.adminAndEmployee()

	address := "12 MG Road"
	rec := s.do(http.MethodPut, "/api/admin/employees/"+empID, adminToken, UpdateEmployeeRequest{
		Address:      &address,
		ShiftTimings: []ShiftDTO{{Start: "22:00", End: "06:00"}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var user UserDTO
	decode(t, rec, &user)
	assert.Equal(t, "Asha Rao", user.FullName)
	assert.Equal(t, address, user.Address)
	assert.Equal(t, []ShiftDTO{{Start: "22:00", End: "06:00"}}, user.ShiftTimings)

	rec = s.do(http.MethodPut, "/api/admin/employees/unknown", adminToken, UpdateEmployeeRequest{Address: &address})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// PUNCHES & REPORTS
// =============================================================================

func TestPunchFlow_EndToEnd(t *testing.T) {
	s := newTestServer(t, false)
	adminToken, empToken, empID := s.adminAndEmployee()

	// GIVEN: Punch in 20 minutes late with a photo
	s.at(time.March, 3, 9, 20)
	rec := s.punch("/api/attendance/punch-in", empToken, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var in PunchResponse
	decode(t, rec, &in)
	assert.Equal(t, "Punched in", in.Message)
	require.Len(t, in.Attendance.Punches, 1)
	assert.Contains(t, in.Attendance.Punches[0].InPhotoURL, "/uploads/")

	// The stored photo is served to authenticated callers
	photo := s.do(http.MethodGet, in.Attendance.Punches[0].InPhotoURL, empToken, nil)
	assert.Equal(t, http.StatusOK, photo.Code)
	assert.Equal(t, "jpeg", photo.Body.String())

	// WHEN: Punching out 45 minutes after shift end
	s.at(time.March, 3, 18, 45)
	rec = s.punch("/api/attendance/punch-out", empToken, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// THEN: Own records show recomputed totals
	rec = s.do(http.MethodGet, "/api/attendance/my-attendance", empToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var mine map[string][]AttendanceDTO
	decode(t, rec, &mine)
	require.Len(t, mine["attendance"], 1)
	day := mine["attendance"][0]
	assert.Equal(t, 520, day.TotalMinutes)
	assert.Equal(t, "8.67", day.TotalHours)
	assert.Equal(t, 45, day.TotalOvertimeMinutes)
	assert.Equal(t, 20, day.TotalLateMinutes)
	assert.True(t, day.LateMark)

	// And the admin sees the same numbers per user and per date
	rec = s.do(http.MethodGet, "/api/attendance/"+empID, adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/api/admin/attendance?date=2025-03-03", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var byDate DateReportResponse
	decode(t, rec, &byDate)
	assert.Equal(t, "2025-03-03", byDate.Date.String())
	require.Len(t, byDate.Attendance, 1)
	assert.Equal(t, 520, byDate.Attendance[0].TotalMinutes)
	require.NotNil(t, byDate.Attendance[0].User)
	assert.Equal(t, "Asha Rao", byDate.Attendance[0].User.FullName)
}

func TestPunch_ErrorStatuses(t *testing.T) {
	s := newTestServer(t, false)
	_, empToken, _ := s.adminAndEmployee()
	s.at(time.March, 3, 9, 0)

	// Missing photo
	rec := s.punch("/api/attendance/punch-in", empToken, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing_evidence", errorCodeOf(t, rec))

	// Punch-out with nothing open
	rec = s.punch("/api/attendance/punch-out", empToken, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "no_open_punch", errorCodeOf(t, rec))

	// Duplicate open punch
	require.Equal(t, http.StatusOK, s.punch("/api/attendance/punch-in", empToken, true).Code)
	rec = s.punch("/api/attendance/punch-in", empToken, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "duplicate_open_punch", errorCodeOf(t, rec))
}

func TestPunch_MissingShiftIs400(t *testing.T) {
	s := newTestServer(t, false)
	adminToken, _, _ := s.adminAndEmployee()

	rec := s.do(http.MethodPost, "/api/auth/employees", adminToken, CreateEmployeeRequest{
		FullName: "No Shift", Email: "noshift@example.com", Password: "secret1",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	token := s.login("noshift@example.com", "secret1")

	rec = s.punch("/api/attendance/punch-in", token, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing_shift", errorCodeOf(t, rec))
}

func TestEditPunch_ThenMonthReport(t *testing.T) {
	s := newTestServer(t, false)
	adminToken, empToken, empID := s.adminAndEmployee()

	s.at(time.March, 3, 9, 20)
	rec := s.punch("/api/attendance/punch-in", empToken, true)
	require.Equal(t, http.StatusOK, rec.Code)
	var in PunchResponse
	decode(t, rec, &in)
	s.at(time.March, 3, 18, 45)
	require.Equal(t, http.StatusOK, s.punch("/api/attendance/punch-out", empToken, true).Code)

	// WHEN: The admin moves the punch-in to shift start
	index := 0
	rec = s.do(http.MethodPut, "/api/admin/attendance/"+in.Attendance.ID+"/edit", adminToken,
		EditPunchRequest{PunchIndex: &index, InTime: "09:00"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var edited PunchResponse
	decode(t, rec, &edited)
	assert.False(t, edited.Attendance.Punches[0].LateMark)
	assert.Equal(t, 585, *edited.Attendance.Punches[0].DurationInMinutes)

	// THEN: The month report reflects the edit
	rec = s.do(http.MethodGet, "/api/admin/attendance/"+empID+"/month?month=2025-03", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var month MonthResponse
	decode(t, rec, &month)
	assert.Equal(t, "2025-03", month.Month)
	assert.Equal(t, 540, month.TotalMinutes)
	assert.Equal(t, "9.00", month.Summary.TotalHours)
	assert.Equal(t, 0, month.Summary.LateMarkCount)
	require.Len(t, month.Records, 1)
	assert.Equal(t, 540, month.Records[0].DayMinutes)
	assert.Equal(t, in.Attendance.ID, month.Records[0].ID)

	// Edit errors
	bad := 4
	rec = s.do(http.MethodPut, "/api/admin/attendance/"+in.Attendance.ID+"/edit", adminToken, EditPunchRequest{PunchIndex: &bad})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_punch_index", errorCodeOf(t, rec))

	rec = s.do(http.MethodPut, "/api/admin/attendance/missing/edit", adminToken, EditPunchRequest{PunchIndex: &index})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodPut, "/api/admin/attendance/"+in.Attendance.ID+"/edit", adminToken, map[string]string{"inTime": "09:00"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMonthReport_QueryErrors(t *testing.T) {
	s := newTestServer(t, false)
	adminToken, _, empID := s.adminAndEmployee()
	base := "/api/admin/attendance/" + empID + "/month"

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, base, adminToken, nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, base+"?month=2025-3", adminToken, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, base+"?month=2025-02", adminToken, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/admin/attendance/ghost/month?month=2025-02", adminToken, nil).Code)
}

func TestHistory_UnknownUserIs404(t *testing.T) {
	s := newTestServer(t, false)
	adminToken, _, empID := s.adminAndEmployee()

	rec := s.do(http.MethodGet, "/api/admin/attendance/"+empID+"/history", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var hist HistoryResponse
	decode(t, rec, &hist)
	assert.Equal(t, empID, hist.UserID)
	assert.Empty(t, hist.History)

	rec = s.do(http.MethodGet, "/api/admin/attendance/ghost/history", adminToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, false)
	rec := s.do(http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	decode(t, rec, &resp)
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Time.Equal(time.Date(2025, 3, 3, 9, 0, 0, 0, ist)), fmt.Sprint(resp.Time))
}
