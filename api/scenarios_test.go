package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/worktime-engine/worktime"
)

func TestScenarios_DisabledByDefault(t *testing.T) {
	s := newTestServer(t, false)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/scenarios", "", nil).Code)
}

func TestLoadScenario_DayShift(t *testing.T) {
	// GIVEN: Today is 2025-03-03, so the scenario fills February 2025
	s := newTestServer(t, true)

	// WHEN: Loading the day-shift scenario
	rec := s.do(http.MethodPost, "/api/scenarios/load", "", LoadScenarioRequest{ScenarioID: "day-shift"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp LoadScenarioResponse
	decode(t, rec, &resp)
	require.Len(t, resp.Logins, 2)

	// THEN: Both demo logins work
	adminToken := s.login(resp.Logins[0].Email, resp.Logins[0].Password)
	s.login(resp.Logins[1].Email, resp.Logins[1].Password)

	employees, err := s.svc.ListEmployees(context.Background())
	require.NoError(t, err)
	require.Len(t, employees, 1)

	// Twenty weekdays, eight late marks, two half-day deductions
	rec = s.do(http.MethodGet, "/api/admin/attendance/"+employees[0].ID+"/month?month=2025-02", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var month MonthResponse
	decode(t, rec, &month)
	assert.Len(t, month.Records, 20)
	assert.Equal(t, 8, month.Summary.LateMarkCount)
	assert.Equal(t, 2, month.Summary.HalfDayDeductions)

	// Split days carry two closed punches
	assert.Len(t, month.Records[2].Punches, 2)
	for _, p := range month.Records[2].Punches {
		assert.False(t, p.IsOpen())
	}

	rec = s.do(http.MethodGet, "/api/scenarios/current", "", nil)
	var current ScenarioDTO
	decode(t, rec, &current)
	assert.Equal(t, "day-shift", current.ID)
}

func TestLoadScenario_NightShiftPunchesOutAfterMidnight(t *testing.T) {
	s := newTestServer(t, true)

	rec := s.do(http.MethodPost, "/api/scenarios/load", "", LoadScenarioRequest{ScenarioID: "night-shift"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	employees, err := s.svc.ListEmployees(context.Background())
	require.NoError(t, err)
	require.Len(t, employees, 1)

	report, err := s.svc.MonthReport(context.Background(), employees[0].ID,
		worktime.Month{Year: 2025, Month: time.February})
	require.NoError(t, err)
	require.Len(t, report.Days, 20)

	// Every night is stored on the date it started
	for _, d := range report.Days {
		require.Len(t, d.Punches, 1)
		assert.False(t, d.Punches[0].IsOpen(), d.Date.String())
	}

	// First night: 22:10 to 06:50
	first := report.Summary.Days[0]
	assert.Equal(t, "2025-02-03", first.Date.String())
	assert.Equal(t, 470, first.TotalMinutes)
	assert.Equal(t, 50, first.TotalOvertimeMinutes)
}

func TestLoadScenario_ReloadResets(t *testing.T) {
	s := newTestServer(t, true)

	for _, id := range []string{"day-shift", "night-shift"} {
		rec := s.do(http.MethodPost, "/api/scenarios/load", "", LoadScenarioRequest{ScenarioID: id})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	employees, err := s.svc.ListEmployees(context.Background())
	require.NoError(t, err)
	require.Len(t, employees, 1)
	assert.Equal(t, "ravi@example.com", employees[0].Email)

	rec := s.do(http.MethodPost, "/api/scenarios/load", "", LoadScenarioRequest{ScenarioID: "holiday-rush"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
