package attendance_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/worktime-engine/attendance"
	"github.com/warp/worktime-engine/worktime"
	"github.com/warp/worktime-engine/worktime/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var kolkata = time.FixedZone("IST", 5*3600+1800)

type fixture struct {
	svc   *attendance.Service
	mem   *store.Memory
	empID string
}

func newFixture(t *testing.T, start, end string) *fixture {
	t.Helper()
	mem := store.NewMemory()
	agg, err := worktime.NewAggregator(worktime.CanonicalPolicy())
	require.NoError(t, err)
	svc := attendance.NewService(mem, mem, worktime.FixedClock(time.Now(), kolkata), agg)

	shift, err := worktime.ParseShift(start, end)
	require.NoError(t, err)
	emp, err := svc.CreateEmployee(context.Background(), attendance.NewEmployee{
		FullName:    "Asha Rao",
		Email:       "Asha@Example.com",
		Password:    "secret1",
		PhoneNumber: "9000000001",
		Salary:      decimal.RequireFromString("42000.50"),
		Shifts:      []worktime.ShiftDefinition{shift},
	})
	require.NoError(t, err)
	return &fixture{svc: svc, mem: mem, empID: emp.ID}
}

// at pins the service clock to a wall-clock time in the configured zone.
func (f *fixture) at(y int, m time.Month, d, hh, mm int) {
	f.svc.Clock = worktime.FixedClock(time.Date(y, m, d, hh, mm, 0, 0, kolkata), kolkata)
}

// =============================================================================
// PUNCHES
// =============================================================================

func TestPunchIn_UsesConfiguredZone(t *testing.T) {
	// GIVEN: The server clock is 03:50 UTC, which is 09:20 in Kolkata
	f := newFixture(t, "09:00", "18:00")
	f.svc.Clock = worktime.FixedClock(time.Date(2025, 3, 3, 3, 50, 0, 0, time.UTC), kolkata)

	// WHEN: Punching in
	day, err := f.svc.PunchIn(context.Background(), f.empID, "in.jpg")
	require.NoError(t, err)

	// THEN: The punch is recorded at local time with lateness cached
	assert.Equal(t, "2025-03-03", day.Date.String())
	require.Len(t, day.Punches, 1)
	assert.Equal(t, "09:20", day.Punches[0].InTime.String())
	assert.Equal(t, 20, day.Punches[0].LateMinutes)
	assert.True(t, day.Punches[0].LateMark)
	assert.Nil(t, day.Punches[0].DurationInMinutes)
}

func TestPunchInOut_FullCycle(t *testing.T) {
	f := newFixture(t, "09:00", "18:00")
	ctx := context.Background()

	f.at(2025, 3, 3, 9, 20)
	_, err := f.svc.PunchIn(ctx, f.empID, "in.jpg")
	require.NoError(t, err)

	f.at(2025, 3, 3, 18, 45)
	day, err := f.svc.PunchOut(ctx, f.empID, "out.jpg")
	require.NoError(t, err)

	p := day.Punches[0]
	require.NotNil(t, p.DurationInMinutes)
	assert.Equal(t, 565, *p.DurationInMinutes)
	assert.Equal(t, 45, p.OvertimeMinutes)
	assert.True(t, p.OvertimeMark)
	assert.Equal(t, "out.jpg", p.OutPhotoURL)
}

func TestPunchIn_RejectsSecondOpenPunch(t *testing.T) {
	f := newFixture(t, "09:00", "18:00")
	ctx := context.Background()
	f.at(2025, 3, 3, 9, 0)

	_, err := f.svc.PunchIn(ctx, f.empID, "in.jpg")
	require.NoError(t, err)
	_, err = f.svc.PunchIn(ctx, f.empID, "in2.jpg")
	assert.ErrorIs(t, err, worktime.ErrDuplicateOpenPunch)

	stored, err := f.mem.FindByUserAndDate(ctx, f.empID, worktime.NewDate(2025, 3, 3))
	require.NoError(t, err)
	assert.Len(t, stored.Punches, 1)
}

func TestPunchIn_ConcurrentRequestsOpenOnlyOnePunch(t *testing.T) {
	// GIVEN: Many simultaneous punch-ins for the same user and day
	f := newFixture(t, "09:00", "18:00")
	ctx := context.Background()
	f.at(2025, 3, 3, 9, 0)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.PunchIn(ctx, f.empID, "in.jpg")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	// THEN: Exactly one succeeds
	ok := 0
	for err := range errs {
		if err == nil {
			ok++
		} else {
			assert.ErrorIs(t, err, worktime.ErrDuplicateOpenPunch)
		}
	}
	assert.Equal(t, 1, ok)
}

func TestPunchOut_WithoutRecord(t *testing.T) {
	f := newFixture(t, "09:00", "18:00")
	f.at(2025, 3, 3, 18, 0)

	_, err := f.svc.PunchOut(context.Background(), f.empID, "out.jpg")
	var none *worktime.NoOpenPunchError
	require.ErrorAs(t, err, &none)
	assert.True(t, none.NoRecord)
}

func TestPunch_MissingEvidence(t *testing.T) {
	f := newFixture(t, "09:00", "18:00")
	f.at(2025, 3, 3, 9, 0)

	_, err := f.svc.PunchIn(context.Background(), f.empID, "")
	assert.ErrorIs(t, err, worktime.ErrMissingEvidence)
	_, err = f.svc.PunchOut(context.Background(), f.empID, "")
	assert.ErrorIs(t, err, worktime.ErrMissingEvidence)
}

func TestPunchIn_UserWithoutShift(t *testing.T) {
	f := newFixture(t, "09:00", "18:00")
	ctx := context.Background()
	emp, err := f.svc.CreateEmployee(ctx, attendance.NewEmployee{
		FullName: "No Shift", Email: "noshift@example.com", Password: "secret1",
	})
	require.NoError(t, err)

	_, err = f.svc.PunchIn(ctx, emp.ID, "in.jpg")
	assert.ErrorIs(t, err, worktime.ErrMissingShift)
}

func TestPunchOut_OvernightClosesPreviousDay(t *testing.T) {
	// GIVEN: Night shift 22:00-06:00, punched in on March 3 at 22:05
	f := newFixture(t, "22:00", "06:00")
	ctx := context.Background()

	f.at(2025, 3, 3, 22, 5)
	_, err := f.svc.PunchIn(ctx, f.empID, "in.jpg")
	require.NoError(t, err)

	// WHEN: Punching out on March 4 at 06:40
	f.at(2025, 3, 4, 6, 40)
	day, err := f.svc.PunchOut(ctx, f.empID, "out.jpg")
	require.NoError(t, err)

	// THEN: The March 3 punch is closed with overnight duration and overtime
	assert.Equal(t, "2025-03-03", day.Date.String())
	assert.Equal(t, 515, *day.Punches[0].DurationInMinutes)
	assert.Equal(t, 40, day.Punches[0].OvertimeMinutes)

	next, err := f.mem.FindByUserAndDate(ctx, f.empID, worktime.NewDate(2025, 3, 4))
	require.NoError(t, err)
	assert.Nil(t, next)
}

// =============================================================================
// ADMINISTRATIVE EDIT
// =============================================================================

func TestEditPunch_RederivesLikeLivePunch(t *testing.T) {
	f := newFixture(t, "09:00", "18:00")
	ctx := context.Background()

	f.at(2025, 3, 3, 9, 0)
	_, err := f.svc.PunchIn(ctx, f.empID, "in.jpg")
	require.NoError(t, err)
	f.at(2025, 3, 3, 17, 0)
	day, err := f.svc.PunchOut(ctx, f.empID, "out.jpg")
	require.NoError(t, err)

	// WHEN: Admin corrects the punch to 09:20 -> 18:45
	edited, err := f.svc.EditPunch(ctx, day.ID, 0, "09:20", "18:45")
	require.NoError(t, err)

	p := edited.Punches[0]
	assert.Equal(t, 565, *p.DurationInMinutes)
	assert.Equal(t, 20, p.LateMinutes)
	assert.True(t, p.LateMark)
	assert.Equal(t, 45, p.OvertimeMinutes)
	assert.True(t, p.OvertimeMark)
}

func TestEditPunch_EmptyValueKeepsTime(t *testing.T) {
	f := newFixture(t, "09:00", "18:00")
	ctx := context.Background()

	f.at(2025, 3, 3, 9, 0)
	_, err := f.svc.PunchIn(ctx, f.empID, "in.jpg")
	require.NoError(t, err)
	f.at(2025, 3, 3, 18, 0)
	day, err := f.svc.PunchOut(ctx, f.empID, "out.jpg")
	require.NoError(t, err)

	edited, err := f.svc.EditPunch(ctx, day.ID, 0, "", "19:00")
	require.NoError(t, err)
	assert.Equal(t, "09:00", edited.Punches[0].InTime.String())
	assert.Equal(t, "19:00", edited.Punches[0].OutTime.String())
}

func TestEditPunch_Errors(t *testing.T) {
	f := newFixture(t, "09:00", "18:00")
	ctx := context.Background()

	_, err := f.svc.EditPunch(ctx, "missing", 0, "09:00", "")
	assert.ErrorIs(t, err, worktime.ErrRecordNotFound)

	f.at(2025, 3, 3, 9, 0)
	day, err := f.svc.PunchIn(ctx, f.empID, "in.jpg")
	require.NoError(t, err)

	_, err = f.svc.EditPunch(ctx, day.ID, 5, "09:00", "")
	assert.ErrorIs(t, err, worktime.ErrInvalidPunchIndex)

	_, err = f.svc.EditPunch(ctx, day.ID, 0, "9am", "")
	assert.ErrorIs(t, err, worktime.ErrInvalidTime)
}

// =============================================================================
// REPORTS
// =============================================================================

func seedMonth(t *testing.T, f *fixture) {
	t.Helper()
	ctx := context.Background()
	// Late on days 3, 4, 5 and 6; punctual on 7.
	for _, d := range []struct {
		day int
		inH int
		inM int
	}{{3, 9, 20}, {4, 9, 30}, {5, 9, 16}, {6, 9, 45}, {7, 9, 0}} {
		f.at(2025, 3, d.day, d.inH, d.inM)
		_, err := f.svc.PunchIn(ctx, f.empID, "in.jpg")
		require.NoError(t, err)
		f.at(2025, 3, d.day, 18, 0)
		_, err = f.svc.PunchOut(ctx, f.empID, "out.jpg")
		require.NoError(t, err)
	}
}

func TestMonthReport_AppliesHalfDayDeduction(t *testing.T) {
	f := newFixture(t, "09:00", "18:00")
	seedMonth(t, f)

	report, err := f.svc.MonthReport(context.Background(), f.empID, worktime.Month{Year: 2025, Month: time.March})
	require.NoError(t, err)

	s := report.Summary
	assert.Equal(t, 4, s.LateMarkCount)
	assert.Equal(t, 1, s.HalfDayDeductions)
	require.Len(t, s.Days, 5)
	assert.True(t, s.Days[2].IsHalfDayDeducted, "third late mark falls on March 5")
	assert.Equal(t, 524-270, s.Days[2].TotalMinutes)
	assert.Equal(t, 20+30+16+45, s.TotalLateMinutes)
}

func TestMonthReport_EmptyMonthIsNotFound(t *testing.T) {
	f := newFixture(t, "09:00", "18:00")
	seedMonth(t, f)

	_, err := f.svc.MonthReport(context.Background(), f.empID, worktime.Month{Year: 2025, Month: time.April})
	assert.True(t, worktime.IsNotFound(err))
}

func TestUserDays_RecomputesFromRawTimes(t *testing.T) {
	f := newFixture(t, "09:00", "18:00")
	seedMonth(t, f)
	ctx := context.Background()

	// GIVEN: A stale cached duration written behind the service's back
	day, err := f.mem.FindByUserAndDate(ctx, f.empID, worktime.NewDate(2025, 3, 7))
	require.NoError(t, err)
	stale := 1
	day.Punches[0].DurationInMinutes = &stale
	_, err = f.mem.Save(ctx, *day)
	require.NoError(t, err)

	reports, err := f.svc.UserDays(ctx, f.empID)
	require.NoError(t, err)
	require.Len(t, reports, 5)

	last := reports[4]
	require.NotNil(t, last.Summary)
	assert.Equal(t, 540, last.Summary.TotalMinutes)
}

func TestDateReport_DefaultsToToday(t *testing.T) {
	f := newFixture(t, "09:00", "18:00")
	seedMonth(t, f)

	f.at(2025, 3, 5, 20, 0)
	reports, err := f.svc.DateReport(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "2025-03-05", reports[0].Day.Date.String())
	assert.Equal(t, "Asha Rao", reports[0].User.FullName)

	other := worktime.NewDate(2025, 3, 20)
	reports, err = f.svc.DateReport(context.Background(), &other)
	require.NoError(t, err)
	assert.Empty(t, reports)
}

func TestHistory_UnknownUser(t *testing.T) {
	f := newFixture(t, "09:00", "18:00")
	_, err := f.svc.History(context.Background(), "nobody")
	assert.ErrorIs(t, err, worktime.ErrUserNotFound)
}
