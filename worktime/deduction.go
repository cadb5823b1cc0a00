package worktime

import "sort"

// =============================================================================
// HALF-DAY DEDUCTION TRACKER
// =============================================================================

// LateMarksPerDeduction is how many late marks within a month cost half a day.
const LateMarksPerDeduction = 3

// HalfDayResult is the outcome of tracking one month of day summaries.
type HalfDayResult struct {
	Days              []DaySummary
	LateMarkCount     int
	HalfDayDeductions int
}

// TrackHalfDays walks the days in ascending date order, counting late marks.
// Every third late mark flags that day as half-day deducted and removes half
// the scheduled shift length from its worked minutes, floored at zero.
//
// The counter starts at zero on every call and only sees the days passed in:
// which day triggers a deduction depends on the set of days and their order.
func TrackHalfDays(days []DaySummary, shift ShiftDefinition) HalfDayResult {
	sorted := make([]DaySummary, len(days))
	copy(sorted, days)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	half := shift.LengthMinutes() / 2
	res := HalfDayResult{Days: sorted}
	for i := range sorted {
		d := &sorted[i]
		if !d.LateMark {
			continue
		}
		res.LateMarkCount++
		if res.LateMarkCount%LateMarksPerDeduction != 0 {
			continue
		}
		res.HalfDayDeductions++
		d.IsHalfDayDeducted = true
		d.DeductedMinutes = min(half, d.TotalMinutes)
		d.TotalMinutes -= d.DeductedMinutes
	}
	return res
}

// TrackMonth aggregates the days and applies half-day tracking in one call.
func (a *Aggregator) TrackMonth(days []AttendanceDay, shift *ShiftDefinition) (MonthSummary, error) {
	return a.AggregateMonth(days, shift)
}
