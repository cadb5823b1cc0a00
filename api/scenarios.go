/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with a realistic
	month of attendance. Every punch goes through the attendance service
	with the clock pinned to the punch instant, so the stored records are
	exactly what live punching would have produced.

AVAILABLE SCENARIOS:

	day-shift:    09:00-18:00 employee, late-heavy month with split days
	night-shift:  22:00-06:00 employee, punches out after midnight

HOW SCENARIOS WORK:
 1. Reset the store (clear all data)
 2. Seed the default admin account
 3. Create the employee with their shift
 4. Replay the previous calendar month's weekday punches

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "night-shift"}

NOTE:

	Scenarios reset the store. The routes are only mounted when demo
	scenarios are enabled in the configuration.

SEE ALSO:
  - handlers.go: Handler
  - attendance/service.go: PunchIn, PunchOut
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/worktime-engine/attendance"
	"github.com/warp/worktime-engine/worktime"
)

// Demo credentials created by every scenario.
const (
	DemoAdminPassword    = "admin123"
	DemoEmployeePassword = "password123"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "day-shift",
		Name:        "Day Shift",
		Description: "09:00-18:00 shift with frequent late arrivals, overtime and split days",
		Category:    "day",
	},
	{
		ID:          "night-shift",
		Name:        "Night Shift",
		Description: "22:00-06:00 shift with punch-outs after midnight",
		Category:    "overnight",
	},
}

type demoEmployee struct {
	name, email, phone string
	salary             string
	shift              [2]string
}

// demoPunch is one in/out pair as wall-clock instants.
type demoPunch struct {
	in, out time.Time
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the store and loads a scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	var scenario *ScenarioDTO
	for i := range scenarios {
		if scenarios[i].ID == req.ScenarioID {
			scenario = &scenarios[i]
		}
	}
	if scenario == nil {
		writeError(w, http.StatusNotFound, "Unknown scenario", fmt.Errorf("scenario %q", req.ScenarioID))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	logins, err := h.loadScenario(r.Context(), scenario.ID)
	if err != nil {
		writeServiceError(w, "Failed to load scenario", err)
		return
	}
	h.currentScenario = scenario.ID

	writeJSON(w, http.StatusOK, LoadScenarioResponse{
		Message:  fmt.Sprintf("Loaded scenario %s", scenario.ID),
		Scenario: *scenario,
		Logins:   logins,
	})
}

// =============================================================================
// LOADERS
// =============================================================================

func (h *Handler) loadScenario(ctx context.Context, id string) ([]CredentialDTO, error) {
	if err := h.Store.Reset(ctx); err != nil {
		return nil, fmt.Errorf("reset store: %w", err)
	}
	if _, err := h.Service.SeedAdmin(ctx, attendance.DefaultAdminEmail, DemoAdminPassword); err != nil {
		return nil, err
	}

	loc := h.Service.Clock.Now().Location()
	month := worktime.Today(h.Service.Clock).Month().Start().AddDays(-1).Month()

	var (
		emp     demoEmployee
		punches []demoPunch
	)
	switch id {
	case "day-shift":
		emp = demoEmployee{
			name: "Asha Rao", email: "asha@example.com", phone: "9000000001",
			salary: "42000.00", shift: [2]string{"09:00", "18:00"},
		}
		punches = dayShiftPunches(month, loc)
	case "night-shift":
		emp = demoEmployee{
			name: "Ravi Kumar", email: "ravi@example.com", phone: "9000000002",
			salary: "38500.50", shift: [2]string{"22:00", "06:00"},
		}
		punches = nightShiftPunches(month, loc)
	default:
		return nil, fmt.Errorf("unknown scenario %q", id)
	}

	shift, err := worktime.ParseShift(emp.shift[0], emp.shift[1])
	if err != nil {
		return nil, err
	}
	user, err := h.Service.CreateEmployee(ctx, attendance.NewEmployee{
		FullName:    emp.name,
		Email:       emp.email,
		Password:    DemoEmployeePassword,
		PhoneNumber: emp.phone,
		Salary:      decimal.RequireFromString(emp.salary),
		Shifts:      []worktime.ShiftDefinition{shift},
	})
	if err != nil {
		return nil, err
	}
	if err := h.replay(ctx, user.ID, punches, loc); err != nil {
		return nil, err
	}

	return []CredentialDTO{
		{Email: attendance.DefaultAdminEmail, Password: DemoAdminPassword, Role: worktime.RoleAdmin},
		{Email: user.Email, Password: DemoEmployeePassword, Role: worktime.RoleEmployee},
	}, nil
}

// replay punches through a copy of the service whose clock is pinned to
// each punch instant.
func (h *Handler) replay(ctx context.Context, userID string, punches []demoPunch, loc *time.Location) error {
	svc := *h.Service
	for _, p := range punches {
		svc.Clock = worktime.FixedClock(p.in, loc)
		if _, err := svc.PunchIn(ctx, userID, "demo/punch-in.jpg"); err != nil {
			return fmt.Errorf("punch in at %s: %w", p.in, err)
		}
		svc.Clock = worktime.FixedClock(p.out, loc)
		if _, err := svc.PunchOut(ctx, userID, "demo/punch-out.jpg"); err != nil {
			return fmt.Errorf("punch out at %s: %w", p.out, err)
		}
	}
	return nil
}

// weekdays returns the Monday to Friday dates of month.
func weekdays(month worktime.Month) []worktime.Date {
	var out []worktime.Date
	for d := month.Start(); month.Contains(d); d = d.AddDays(1) {
		if wd := d.Time.Weekday(); wd != time.Saturday && wd != time.Sunday {
			out = append(out, d)
		}
	}
	return out
}

func wallClock(d worktime.Date, hh, mm int, loc *time.Location) time.Time {
	return time.Date(d.Time.Year(), d.Time.Month(), d.Time.Day(), hh, mm, 0, 0, loc)
}

// Minutes late and minutes stayed past shift end, cycling per workday.
var (
	dayLate = []int{0, 20, 5, 16, 0, 25, 10, 0, 18, 0}
	dayStay = []int{0, 45, 10, 0, 35, 0, 60, 5, 0, 40}

	nightLate = []int{10, 0, 15, 30, 0, 5, 20}
	nightStay = []int{50, 0, 20, 0, 35, 0, 0}
)

func dayShiftPunches(month worktime.Month, loc *time.Location) []demoPunch {
	var out []demoPunch
	for i, d := range weekdays(month) {
		in := wallClock(d, 9, dayLate[i%len(dayLate)], loc)
		out18 := wallClock(d, 18, 0, loc).Add(time.Duration(dayStay[i%len(dayStay)]) * time.Minute)
		if i%5 == 2 {
			// Lunch break split into two punches
			out = append(out,
				demoPunch{in: in, out: wallClock(d, 13, 0, loc)},
				demoPunch{in: wallClock(d, 13, 45, loc), out: out18})
			continue
		}
		out = append(out, demoPunch{in: in, out: out18})
	}
	return out
}

func nightShiftPunches(month worktime.Month, loc *time.Location) []demoPunch {
	var out []demoPunch
	for i, d := range weekdays(month) {
		in := wallClock(d, 22, nightLate[i%len(nightLate)], loc)
		next := d.AddDays(1)
		end := wallClock(next, 6, 0, loc).Add(time.Duration(nightStay[i%len(nightStay)]) * time.Minute)
		out = append(out, demoPunch{in: in, out: end})
	}
	return out
}
