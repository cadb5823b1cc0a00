package attendance

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/warp/worktime-engine/worktime"
)

// =============================================================================
// REPORT TYPES
// =============================================================================

// DayReport pairs a stored day with its freshly computed summary. Summary is
// nil when the user has no shift to evaluate against.
type DayReport struct {
	Day     worktime.AttendanceDay
	User    *worktime.User
	Summary *worktime.DaySummary
}

// MonthReport is a user's month with half-day tracking applied.
type MonthReport struct {
	User    worktime.User
	Month   worktime.Month
	Shift   worktime.ShiftDefinition
	Summary worktime.MonthSummary
	Days    []worktime.AttendanceDay
}

// =============================================================================
// REPORTS
// =============================================================================

// UserDays returns every day the user has, each with its day summary.
func (s *Service) UserDays(ctx context.Context, userID string) ([]DayReport, error) {
	user, err := s.Users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	days, err := s.Store.FindByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("load attendance: %w", err)
	}
	return s.summarize(user, days)
}

// DateReport returns every user's record for date, today when date is nil.
func (s *Service) DateReport(ctx context.Context, date *worktime.Date) ([]DayReport, error) {
	d := worktime.Today(s.Clock)
	if date != nil {
		d = *date
	}
	days, err := s.Store.FindByDate(ctx, d)
	if err != nil {
		return nil, fmt.Errorf("load attendance: %w", err)
	}

	out := make([]DayReport, 0, len(days))
	for _, day := range days {
		user, err := s.Users.GetUser(ctx, day.UserID)
		if isNotFound(err) {
			log.Printf("[Attendance] Skipping record %s: user %s no longer exists", day.ID, day.UserID)
			continue
		}
		if err != nil {
			return nil, err
		}
		reports, err := s.summarize(user, []worktime.AttendanceDay{day})
		if err != nil {
			return nil, err
		}
		out = append(out, reports...)
	}
	return out, nil
}

// History returns the user's raw days, ascending by date.
func (s *Service) History(ctx context.Context, userID string) ([]worktime.AttendanceDay, error) {
	user, err := s.Users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.Store.FindByUser(ctx, user.ID)
}

// MonthReport aggregates one calendar month for the user. A month with no
// records is reported as not found.
func (s *Service) MonthReport(ctx context.Context, userID string, month worktime.Month) (MonthReport, error) {
	user, err := s.Users.GetUser(ctx, userID)
	if err != nil {
		return MonthReport{}, err
	}
	shift, err := s.Shifts.Select(user.ID, user.Shifts, month.Start())
	if err != nil {
		return MonthReport{}, err
	}
	days, err := s.Store.FindByUserAndMonth(ctx, user.ID, month)
	if err != nil {
		return MonthReport{}, fmt.Errorf("load attendance: %w", err)
	}
	if len(days) == 0 {
		return MonthReport{}, fmt.Errorf("%w: no attendance for user %s in %s", worktime.ErrRecordNotFound, user.ID, month)
	}

	summary, err := s.Aggregator.AggregateMonth(days, shift)
	if err != nil {
		return MonthReport{}, err
	}
	return MonthReport{User: *user, Month: month, Shift: *shift, Summary: summary, Days: days}, nil
}

func (s *Service) summarize(user *worktime.User, days []worktime.AttendanceDay) ([]DayReport, error) {
	out := make([]DayReport, 0, len(days))
	for _, day := range days {
		r := DayReport{Day: day, User: user}
		shift, err := s.Shifts.Select(user.ID, user.Shifts, day.Date)
		switch {
		case errors.Is(err, worktime.ErrMissingShift):
		case err != nil:
			return nil, err
		default:
			summary, err := s.Aggregator.AggregateDay(day, shift)
			if err != nil {
				return nil, err
			}
			r.Summary = &summary
		}
		out = append(out, r)
	}
	return out, nil
}
