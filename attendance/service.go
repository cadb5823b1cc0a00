/*
Package attendance is the service layer between HTTP and the work-time engine.

PURPOSE:
  Wraps the pure engine with everything it refuses to do itself: reading the
  clock, looking up the user's shift, loading and saving attendance days,
  and serializing concurrent mutations of the same (user, date) record.

PUNCH FLOW:
  1. Read "now" from the configured Clock (one civil time zone)
  2. Look up the user and select their shift
  3. Store.UpdateDay: load day, PunchIn/PunchOut, Refresh derived fields
  4. Retry the whole cycle on ErrConcurrentModification

OVERNIGHT PUNCH-OUT:
  A night shift started on D is closed after midnight on D+1. When today's
  record has nothing open, PunchOut falls back to yesterday's record if its
  last punch is still open, so the punch stays on the day it started.

READ FLOW:
  Reports always recompute summaries from raw in/out times through the
  Aggregator; cached punch fields are display data only.

SEE ALSO:
  - users.go: Login and employee management
  - worktime/aggregate.go: Summaries
  - api/handlers.go: HTTP surface
*/
package attendance

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/warp/worktime-engine/worktime"
)

// DefaultMaxRetries bounds the read-modify-write retries on write conflicts.
const DefaultMaxRetries = 3

// Service exposes the attendance operations.
type Service struct {
	Store      worktime.Store
	Users      worktime.UserStore
	Clock      worktime.Clock
	Shifts     worktime.ShiftSelector
	Aggregator *worktime.Aggregator
	MaxRetries int
}

// NewService wires a service with the single-shift selector.
func NewService(store worktime.Store, users worktime.UserStore, clock worktime.Clock, agg *worktime.Aggregator) *Service {
	return &Service{
		Store:      store,
		Users:      users,
		Clock:      clock,
		Shifts:     worktime.SingleShiftPolicy{},
		Aggregator: agg,
		MaxRetries: DefaultMaxRetries,
	}
}

// =============================================================================
// PUNCH OPERATIONS
// =============================================================================

// PunchIn opens a punch for the user at the current time.
func (s *Service) PunchIn(ctx context.Context, userID, photoRef string) (worktime.AttendanceDay, error) {
	user, shift, err := s.userShift(ctx, userID)
	if err != nil {
		return worktime.AttendanceDay{}, err
	}
	now := s.Clock.Now()
	date, at := worktime.DateOf(now), worktime.TimeOfDayOf(now)

	day, err := s.retry(func() (worktime.AttendanceDay, error) {
		return s.Store.UpdateDay(ctx, user.ID, date, func(d *worktime.AttendanceDay) error {
			if err := d.PunchIn(at, photoRef); err != nil {
				return err
			}
			return s.Aggregator.Refresh(d, shift)
		})
	})
	if err != nil {
		return worktime.AttendanceDay{}, err
	}
	log.Printf("[Attendance] Punch in: user=%s date=%s at=%s punch=%d", user.ID, date, at, len(day.Punches)-1)
	return day, nil
}

// PunchOut closes the open punch for the user at the current time.
func (s *Service) PunchOut(ctx context.Context, userID, photoRef string) (worktime.AttendanceDay, error) {
	if photoRef == "" {
		return worktime.AttendanceDay{}, &worktime.MissingEvidenceError{Action: "punch-out"}
	}
	user, shift, err := s.userShift(ctx, userID)
	if err != nil {
		return worktime.AttendanceDay{}, err
	}
	now := s.Clock.Now()
	date, at := worktime.DateOf(now), worktime.TimeOfDayOf(now)

	target, err := s.punchOutDate(ctx, user.ID, date)
	if err != nil {
		return worktime.AttendanceDay{}, err
	}

	day, err := s.retry(func() (worktime.AttendanceDay, error) {
		return s.Store.UpdateDay(ctx, user.ID, target, func(d *worktime.AttendanceDay) error {
			if err := d.PunchOut(at, photoRef); err != nil {
				return err
			}
			return s.Aggregator.Refresh(d, shift)
		})
	})
	if err != nil {
		return worktime.AttendanceDay{}, err
	}
	log.Printf("[Attendance] Punch out: user=%s date=%s at=%s punch=%d", user.ID, target, at, len(day.Punches)-1)
	return day, nil
}

// punchOutDate is today, unless today has nothing open and yesterday does.
func (s *Service) punchOutDate(ctx context.Context, userID string, today worktime.Date) (worktime.Date, error) {
	current, err := s.Store.FindByUserAndDate(ctx, userID, today)
	if err != nil {
		return worktime.Date{}, fmt.Errorf("load attendance: %w", err)
	}
	if current != nil && current.HasOpenPunch() {
		return today, nil
	}
	yesterday := today.AddDays(-1)
	prev, err := s.Store.FindByUserAndDate(ctx, userID, yesterday)
	if err != nil {
		return worktime.Date{}, fmt.Errorf("load attendance: %w", err)
	}
	if prev != nil && prev.HasOpenPunch() {
		return yesterday, nil
	}
	return today, nil
}

// EditPunch replaces the in and/or out time of one punch. Empty strings keep
// the current value. All derived fields are recomputed afterwards, exactly
// as a live punch would have produced them.
func (s *Service) EditPunch(ctx context.Context, attendanceID string, index int, inTime, outTime string) (worktime.AttendanceDay, error) {
	in, err := optionalTime(inTime)
	if err != nil {
		return worktime.AttendanceDay{}, err
	}
	out, err := optionalTime(outTime)
	if err != nil {
		return worktime.AttendanceDay{}, err
	}

	existing, err := s.Store.FindByID(ctx, attendanceID)
	if err != nil {
		return worktime.AttendanceDay{}, err
	}
	_, shift, err := s.userShift(ctx, existing.UserID)
	if err != nil {
		return worktime.AttendanceDay{}, err
	}

	day, err := s.retry(func() (worktime.AttendanceDay, error) {
		return s.Store.UpdateDayByID(ctx, attendanceID, func(d *worktime.AttendanceDay) error {
			if err := d.EditPunch(index, in, out); err != nil {
				return err
			}
			return s.Aggregator.Refresh(d, shift)
		})
	})
	if err != nil {
		return worktime.AttendanceDay{}, err
	}
	log.Printf("[Attendance] Punch edited: attendance=%s user=%s date=%s punch=%d in=%q out=%q",
		day.ID, day.UserID, day.Date, index, inTime, outTime)
	return day, nil
}

func optionalTime(s string) (*worktime.TimeOfDay, error) {
	if s == "" {
		return nil, nil
	}
	t, err := worktime.ParseTimeOfDay(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Service) userShift(ctx context.Context, userID string) (*worktime.User, *worktime.ShiftDefinition, error) {
	user, err := s.Users.GetUser(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	shift, err := s.Shifts.Select(user.ID, user.Shifts, worktime.Today(s.Clock))
	if err != nil {
		return nil, nil, err
	}
	return user, shift, nil
}

// retry re-runs op while it reports a write conflict.
func (s *Service) retry(op func() (worktime.AttendanceDay, error)) (worktime.AttendanceDay, error) {
	attempts := s.MaxRetries
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		var day worktime.AttendanceDay
		day, err = op()
		if err == nil {
			return day, nil
		}
		if !worktime.IsRetryable(err) {
			return worktime.AttendanceDay{}, err
		}
		log.Printf("[Attendance] Write conflict, retrying (%d/%d)", i+1, attempts)
	}
	return worktime.AttendanceDay{}, err
}

// isNotFound reports missing users or records.
func isNotFound(err error) bool {
	return errors.Is(err, worktime.ErrUserNotFound) || errors.Is(err, worktime.ErrRecordNotFound)
}
