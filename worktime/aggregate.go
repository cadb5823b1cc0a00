/*
aggregate.go - Period Aggregator: punches -> day and month totals

PURPOSE:
  Folds per-punch metrics into day summaries and day summaries into month
  summaries under one AggregationPolicy. Summaries are projections: they are
  rebuilt from raw in/out times on every call and never stored.

PER PUNCH (canonical policy):
  raw      = out - in, rolling past midnight
  overtime = out - shift end, counted only past the overtime threshold
  worked   = max(0, raw - counted overtime)
  late     = first punch only, counted only past the late threshold

VARIANTS:
  IncludeOvertimeInWorked: worked = raw
  CapWorkedAtShiftLength:  worked = overlap of the punch with the shift
                           window, day total capped at the shift length

IDEMPOTENCE:
  Inputs are never mutated (Refresh excepted, which writes the cache fields
  of the day it is given). Aggregating the same days twice yields identical
  summaries.

SEE ALSO:
  - evaluate.go: Per-punch duration, lateness and overtime
  - deduction.go: Half-day deduction tracking on top of month summaries
*/
package worktime

// =============================================================================
// SUMMARY TYPES
// =============================================================================

// PunchMetrics is the fresh evaluation of one punch.
type PunchMetrics struct {
	Index int
	Open  bool

	RawMinutes    int
	WorkedMinutes int

	LateMinutes        int
	LateMark           bool
	CountedLateMinutes int

	OvertimeMinutes        int
	OvertimeMark           bool
	CountedOvertimeMinutes int
}

// DaySummary is the PeriodSummary of one AttendanceDay.
type DaySummary struct {
	AttendanceID string
	UserID       string
	Date         Date
	Punches      []PunchMetrics

	TotalMinutes         int
	TotalLateMinutes     int
	TotalOvertimeMinutes int

	// LateMark is the first punch's late mark; it drives half-day tracking.
	LateMark bool

	// Set by the half-day deduction tracker.
	IsHalfDayDeducted bool
	DeductedMinutes   int
}

// MonthSummary is the PeriodSummary of a run of days, usually one month.
type MonthSummary struct {
	Days []DaySummary

	TotalMinutes         int
	TotalLateMinutes     int
	TotalOvertimeMinutes int
	LateMarkCount        int
	HalfDayDeductions    int
}

// =============================================================================
// AGGREGATOR
// =============================================================================

// Aggregator applies one AggregationPolicy uniformly.
type Aggregator struct {
	Policy AggregationPolicy
}

// NewAggregator validates policy and returns an aggregator for it.
func NewAggregator(policy AggregationPolicy) (*Aggregator, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &Aggregator{Policy: policy}, nil
}

// EvaluatePunch computes fresh metrics for the punch at index on date.
func (a *Aggregator) EvaluatePunch(date Date, shift *ShiftDefinition, index int, p Punch) (PunchMetrics, error) {
	b, err := ResolveBoundaries(date, shift)
	if err != nil {
		return PunchMetrics{}, err
	}
	m := PunchMetrics{Index: index, Open: p.IsOpen()}

	if raw, ok := Duration(date, &p.InTime, p.OutTime); ok {
		m.RawMinutes = raw
	} else if p.DurationInMinutes != nil && *p.DurationInMinutes > 0 {
		m.RawMinutes = *p.DurationInMinutes
	}

	if index == 0 {
		late, err := EvaluateLateness(date, shift, p.InTime, a.Policy)
		if err != nil {
			return PunchMetrics{}, err
		}
		m.LateMinutes, m.LateMark = late.Minutes, late.Mark
		if a.Policy.CountsLate(late.Minutes) {
			m.CountedLateMinutes = late.Minutes
		}
	}

	if p.OutTime != nil {
		over, err := EvaluatePunchOvertime(date, shift, p.InTime, *p.OutTime, a.Policy)
		if err != nil {
			return PunchMetrics{}, err
		}
		m.OvertimeMinutes, m.OvertimeMark = over.Minutes, over.Mark
		if a.Policy.CountsOvertime(over.Minutes) {
			m.CountedOvertimeMinutes = over.Minutes
		}
	}

	switch {
	case a.Policy.CapWorkedAtShiftLength:
		if p.OutTime != nil {
			m.WorkedMinutes = clippedMinutes(date, b, p.InTime, *p.OutTime)
		} else {
			m.WorkedMinutes = min(m.RawMinutes, shift.LengthMinutes())
		}
	case a.Policy.IncludeOvertimeInWorked:
		m.WorkedMinutes = m.RawMinutes
	default:
		m.WorkedMinutes = max(0, m.RawMinutes-m.CountedOvertimeMinutes)
	}
	return m, nil
}

// AggregateDay summarizes one day.
func (a *Aggregator) AggregateDay(day AttendanceDay, shift *ShiftDefinition) (DaySummary, error) {
	if shift == nil {
		return DaySummary{}, &MissingShiftError{UserID: day.UserID}
	}
	s := DaySummary{
		AttendanceID: day.ID,
		UserID:       day.UserID,
		Date:         day.Date,
		Punches:      make([]PunchMetrics, 0, len(day.Punches)),
	}
	for i, p := range day.Punches {
		m, err := a.EvaluatePunch(day.Date, shift, i, p)
		if err != nil {
			return DaySummary{}, err
		}
		s.Punches = append(s.Punches, m)
		s.TotalMinutes += m.WorkedMinutes
		s.TotalLateMinutes += m.CountedLateMinutes
		s.TotalOvertimeMinutes += m.CountedOvertimeMinutes
		if i == 0 {
			s.LateMark = m.LateMark
		}
	}
	if a.Policy.CapWorkedAtShiftLength {
		s.TotalMinutes = min(s.TotalMinutes, shift.LengthMinutes())
	}
	return s, nil
}

// AggregateMonth summarizes days, applies half-day deduction tracking and
// sums the adjusted day totals. Days are processed in ascending date order
// regardless of the order given.
func (a *Aggregator) AggregateMonth(days []AttendanceDay, shift *ShiftDefinition) (MonthSummary, error) {
	if shift == nil {
		return MonthSummary{}, &MissingShiftError{}
	}
	summaries := make([]DaySummary, 0, len(days))
	for _, d := range days {
		s, err := a.AggregateDay(d, shift)
		if err != nil {
			return MonthSummary{}, err
		}
		summaries = append(summaries, s)
	}

	tracked := TrackHalfDays(summaries, *shift)
	out := MonthSummary{
		Days:              tracked.Days,
		LateMarkCount:     tracked.LateMarkCount,
		HalfDayDeductions: tracked.HalfDayDeductions,
	}
	for _, s := range tracked.Days {
		out.TotalMinutes += s.TotalMinutes
		out.TotalLateMinutes += s.TotalLateMinutes
		out.TotalOvertimeMinutes += s.TotalOvertimeMinutes
	}
	return out, nil
}

// Refresh recomputes and stores the derived fields of every punch in day.
// Punch-in, punch-out and administrative edits all go through here, so a
// punch edited after the fact carries the same values as one recorded live.
func (a *Aggregator) Refresh(day *AttendanceDay, shift *ShiftDefinition) error {
	for i := range day.Punches {
		p := &day.Punches[i]
		m, err := a.EvaluatePunch(day.Date, shift, i, *p)
		if err != nil {
			return err
		}
		if p.OutTime != nil {
			raw := m.RawMinutes
			p.DurationInMinutes = &raw
		} else {
			p.DurationInMinutes = nil
		}
		p.LateMinutes, p.LateMark = m.LateMinutes, m.LateMark
		p.OvertimeMinutes, p.OvertimeMark = m.OvertimeMinutes, m.OvertimeMark
	}
	return nil
}
