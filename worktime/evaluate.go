package worktime

import "time"

// =============================================================================
// PUNCH DURATION CALCULATOR
// =============================================================================

// punchInterval anchors in/out to date. An out time earlier than the in time
// belongs to the next day.
func punchInterval(date Date, in, out TimeOfDay) (time.Time, time.Time) {
	start := date.At(in)
	end := date.At(out)
	if end.Before(start) {
		end = end.Add(24 * time.Hour)
	}
	return start, end
}

// minutesBetween is whole minutes from a to b, floored at zero.
func minutesBetween(a, b time.Time) int {
	d := b.Sub(a)
	if d <= 0 {
		return 0
	}
	return int(d / time.Minute)
}

// Duration returns the minutes between in and out on date. ok is false when
// either time is missing.
func Duration(date Date, in, out *TimeOfDay) (minutes int, ok bool) {
	if in == nil || out == nil {
		return 0, false
	}
	start, end := punchInterval(date, *in, *out)
	return minutesBetween(start, end), true
}

// =============================================================================
// LATENESS EVALUATOR
// =============================================================================

// Lateness is how far a punch-in trails the shift start.
type Lateness struct {
	Minutes int
	Mark    bool
}

// EvaluateLateness compares in against the resolved shift start. Callers apply
// it to the first punch of a day only.
func EvaluateLateness(date Date, shift *ShiftDefinition, in TimeOfDay, policy AggregationPolicy) (Lateness, error) {
	b, err := ResolveBoundaries(date, shift)
	if err != nil {
		return Lateness{}, err
	}
	late := minutesBetween(b.Start, date.At(in))
	return Lateness{Minutes: late, Mark: policy.LateMark(late)}, nil
}

// =============================================================================
// OVERTIME EVALUATOR
// =============================================================================

// Overtime is how far a punch-out runs past the shift end.
type Overtime struct {
	Minutes int
	Mark    bool
}

// EvaluateOvertime compares out, taken on date itself, against the resolved
// shift end.
func EvaluateOvertime(date Date, shift *ShiftDefinition, out TimeOfDay, policy AggregationPolicy) (Overtime, error) {
	b, err := ResolveBoundaries(date, shift)
	if err != nil {
		return Overtime{}, err
	}
	over := minutesBetween(b.End, date.At(out))
	return Overtime{Minutes: over, Mark: policy.OvertimeMark(over)}, nil
}

// EvaluatePunchOvertime is EvaluateOvertime for a punch whose in time is
// known: an out time before the in time is read as the next day, so a punch
// closing after midnight is measured against an overnight shift end correctly.
func EvaluatePunchOvertime(date Date, shift *ShiftDefinition, in, out TimeOfDay, policy AggregationPolicy) (Overtime, error) {
	b, err := ResolveBoundaries(date, shift)
	if err != nil {
		return Overtime{}, err
	}
	_, end := punchInterval(date, in, out)
	over := minutesBetween(b.End, end)
	return Overtime{Minutes: over, Mark: policy.OvertimeMark(over)}, nil
}

// clippedMinutes is the part of the punch that overlaps the shift window.
func clippedMinutes(date Date, b Boundaries, in, out TimeOfDay) int {
	start, end := punchInterval(date, in, out)
	if start.Before(b.Start) {
		start = b.Start
	}
	if end.After(b.End) {
		end = b.End
	}
	return minutesBetween(start, end)
}
