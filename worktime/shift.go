package worktime

import (
	"fmt"
	"time"
)

// =============================================================================
// SHIFT DEFINITION
// =============================================================================

// ShiftDefinition is a user's scheduled start and end time of day.
// End earlier than Start means the shift ends on the following day.
type ShiftDefinition struct {
	Start TimeOfDay `json:"start"`
	End   TimeOfDay `json:"end"`
}

// ParseShift builds a shift from two "HH:mm" strings.
func ParseShift(start, end string) (ShiftDefinition, error) {
	s, err := ParseTimeOfDay(start)
	if err != nil {
		return ShiftDefinition{}, fmt.Errorf("shift start: %w", err)
	}
	e, err := ParseTimeOfDay(end)
	if err != nil {
		return ShiftDefinition{}, fmt.Errorf("shift end: %w", err)
	}
	return ShiftDefinition{Start: s, End: e}, nil
}

// IsOvernight reports whether the shift spans midnight.
func (s ShiftDefinition) IsOvernight() bool { return s.End < s.Start }

// LengthMinutes is the scheduled length of the shift.
func (s ShiftDefinition) LengthMinutes() int {
	n := int(s.End - s.Start)
	if n < 0 {
		n += MinutesPerDay
	}
	return n
}

func (s ShiftDefinition) String() string { return s.Start.String() + "-" + s.End.String() }

// =============================================================================
// SHIFT CALENDAR RESOLVER
// =============================================================================

// Boundaries are the concrete instants of a shift on a specific date.
type Boundaries struct {
	Start time.Time
	End   time.Time
}

// ResolveBoundaries anchors shift to date. An overnight shift ends on date+1.
func ResolveBoundaries(date Date, shift *ShiftDefinition) (Boundaries, error) {
	if shift == nil {
		return Boundaries{}, &MissingShiftError{}
	}
	start := date.At(shift.Start)
	end := date.At(shift.End)
	if end.Before(start) {
		end = end.Add(24 * time.Hour)
	}
	return Boundaries{Start: start, End: end}, nil
}

// =============================================================================
// SHIFT SELECTION
// =============================================================================

// ShiftSelector picks the shift that governs a user's day.
type ShiftSelector interface {
	Select(userID string, shifts []ShiftDefinition, date Date) (*ShiftDefinition, error)
}

// SingleShiftPolicy always uses the first configured shift. Additional
// entries are kept but have no effect.
type SingleShiftPolicy struct{}

func (SingleShiftPolicy) Select(userID string, shifts []ShiftDefinition, _ Date) (*ShiftDefinition, error) {
	if len(shifts) == 0 {
		return nil, &MissingShiftError{UserID: userID}
	}
	s := shifts[0]
	return &s, nil
}

var _ ShiftSelector = SingleShiftPolicy{}
