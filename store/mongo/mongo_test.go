package mongo

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/worktime-engine/worktime"
)

// newTestStore connects to MONGO_TEST_URI on a throwaway database.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s, err := Connect(ctx, uri, "worktime_test_"+uuid.NewString()[:8])
	require.NoError(t, err)
	t.Cleanup(func() {
		s.days.Database().Drop(context.Background())
		s.Close()
	})
	return s
}

func TestDocumentMapping_PunchRoundTrip(t *testing.T) {
	out := worktime.MustTimeOfDay("06:40")
	dur := 515
	day := worktime.AttendanceDay{
		ID:     "att-1",
		UserID: "emp-1",
		Date:   worktime.NewDate(2025, time.March, 3),
		Punches: []worktime.Punch{
			{InTime: worktime.MustTimeOfDay("22:05"), OutTime: &out, InPhotoURL: "a.jpg", OutPhotoURL: "b.jpg", DurationInMinutes: &dur, OvertimeMinutes: 40, OvertimeMark: true},
			{InTime: worktime.MustTimeOfDay("07:00"), InPhotoURL: "c.jpg"},
		},
		Version: 3,
	}

	doc := toDayDoc(day)
	assert.Equal(t, "2025-03-03", doc.Date)
	assert.Equal(t, "22:05", doc.Punches[0].InTime)
	assert.Equal(t, "06:40", *doc.Punches[0].OutTime)
	assert.Nil(t, doc.Punches[1].OutTime)

	back, err := doc.toDay()
	require.NoError(t, err)
	assert.Equal(t, day.Punches, back.Punches)
	assert.True(t, day.Date.Equal(back.Date))
}

func TestDocumentMapping_UserSalaryAndShifts(t *testing.T) {
	shift, err := worktime.ParseShift("09:00", "18:00")
	require.NoError(t, err)
	u := worktime.User{
		ID:     "u-1",
		Email:  "a@example.com",
		Salary: decimal.RequireFromString("45000.25"),
		Role:   worktime.RoleEmployee,
		Shifts: []worktime.ShiftDefinition{shift},
	}

	doc, err := toUserDoc(u)
	require.NoError(t, err)
	assert.Equal(t, []shiftDoc{{Start: "09:00", End: "18:00"}}, doc.ShiftTimings)

	back, err := doc.toUser()
	require.NoError(t, err)
	assert.True(t, back.Salary.Equal(u.Salary))
	assert.Equal(t, u.Shifts, back.Shifts)
}

func TestUpdateDay_OptimisticVersion(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	date := worktime.NewDate(2025, time.March, 3)

	day, err := s.UpdateDay(ctx, "emp-1", date, func(d *worktime.AttendanceDay) error {
		return d.PunchIn(worktime.MustTimeOfDay("09:00"), "in.jpg")
	})
	require.NoError(t, err)
	assert.Equal(t, 1, day.Version)

	// A concurrent writer got there first
	_, err = s.Save(ctx, day)
	require.NoError(t, err)

	_, err = s.write(ctx, day, true)
	assert.True(t, worktime.IsRetryable(err))

	// A second insert of the same (user, date) is also a conflict
	_, err = s.write(ctx, worktime.NewAttendanceDay("emp-1", date), false)
	assert.True(t, worktime.IsRetryable(err))
}

func TestFindByUserAndMonth_RegexPrefix(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, d := range []worktime.Date{
		worktime.NewDate(2025, time.March, 10),
		worktime.NewDate(2025, time.March, 1),
		worktime.NewDate(2025, time.April, 1),
	} {
		_, err := s.Save(ctx, worktime.NewAttendanceDay("emp-1", d))
		require.NoError(t, err)
	}

	days, err := s.FindByUserAndMonth(ctx, "emp-1", worktime.Month{Year: 2025, Month: time.March})
	require.NoError(t, err)
	require.Len(t, days, 2)
	assert.Equal(t, "2025-03-01", days[0].Date.String())
}

func TestUsers_CaseInsensitiveEmail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateUser(ctx, worktime.User{FullName: "A", Email: "a@example.com", Role: worktime.RoleEmployee}))
	_, err := s.GetUserByEmail(ctx, "A@EXAMPLE.com")
	require.NoError(t, err)

	err = s.CreateUser(ctx, worktime.User{FullName: "B", Email: "A@example.com", Role: worktime.RoleEmployee})
	assert.ErrorIs(t, err, worktime.ErrDuplicateUser)
}
