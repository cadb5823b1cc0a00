/*
Package worktime provides the attendance time-accounting engine.

PURPOSE:
  Given a shift definition and a day's clock-in/clock-out punches, derive
  worked minutes, lateness, overtime and the monthly half-day deductions
  triggered by repeated late marks. Every computation in this package is
  pure: no I/O, no hidden clock, no state shared between calls.

KEY CONCEPTS IN THIS FILE (time.go):
  - Date: A civil calendar date ("YYYY-MM-DD")
  - TimeOfDay: A wall-clock time without a date ("HH:mm")
  - Month: A calendar month selector ("YYYY-MM")
  - Clock: The "now" source, pinned to a configured civil time zone

CIVIL TIME:
  Punch times are recorded as wall-clock strings in the configured zone.
  Arithmetic combines a Date and a TimeOfDay on a UTC-based civil frame,
  so a day always has 24 hours and DST transitions never skew durations.

SEE ALSO:
  - shift.go: Shift boundaries built from Date + TimeOfDay
  - evaluate.go: Duration, lateness and overtime
  - aggregate.go: Day and month summaries
*/
package worktime

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	DateLayout      = "2006-01-02"
	TimeOfDayLayout = "15:04"
	MonthLayout     = "2006-01"

	MinutesPerDay = 24 * 60
)

// =============================================================================
// DATE - Civil calendar date
// =============================================================================

// Date is a calendar date normalized to midnight on the civil frame.
type Date struct {
	Time time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the civil date of t as observed in t's own location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses a "YYYY-MM-DD" string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil || len(s) != len(DateLayout) {
		return Date{}, &InvalidTimeError{Value: s, Layout: "YYYY-MM-DD"}
	}
	return Date{Time: t}, nil
}

func (d Date) Before(other Date) bool { return d.Time.Before(other.Time) }
func (d Date) After(other Date) bool  { return d.Time.After(other.Time) }
func (d Date) Equal(other Date) bool  { return d.Time.Equal(other.Time) }
func (d Date) IsZero() bool           { return d.Time.IsZero() }
func (d Date) AddDays(n int) Date     { return Date{Time: d.Time.AddDate(0, 0, n)} }
func (d Date) Month() Month           { return Month{Year: d.Time.Year(), Month: d.Time.Month()} }
func (d Date) String() string         { return d.Time.Format(DateLayout) }

// At combines the date with a time of day into an instant on the civil frame.
func (d Date) At(t TimeOfDay) time.Time {
	return d.Time.Add(time.Duration(t) * time.Minute)
}

func (d Date) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// =============================================================================
// TIME OF DAY - Wall-clock time without a date
// =============================================================================

// TimeOfDay is minutes since midnight, 0..1439.
type TimeOfDay int

// ParseTimeOfDay parses a zero-padded 24-hour "HH:mm" string.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse(TimeOfDayLayout, s)
	if err != nil || len(s) != len(TimeOfDayLayout) {
		return 0, &InvalidTimeError{Value: s, Layout: "HH:mm"}
	}
	return TimeOfDay(t.Hour()*60 + t.Minute()), nil
}

// MustTimeOfDay is ParseTimeOfDay for literals known to be valid.
func MustTimeOfDay(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

// TimeOfDayOf truncates t to the minute and drops the date.
func TimeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay(t.Hour()*60 + t.Minute())
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

func (t TimeOfDay) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	parsed, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// =============================================================================
// MONTH - Calendar month selector
// =============================================================================

type Month struct {
	Year  int
	Month time.Month
}

// ParseMonth parses a "YYYY-MM" string.
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse(MonthLayout, s)
	if err != nil || len(s) != len(MonthLayout) {
		return Month{}, &InvalidTimeError{Value: s, Layout: "YYYY-MM"}
	}
	return Month{Year: t.Year(), Month: t.Month()}, nil
}

// Prefix is the "YYYY-MM" string that every date key in the month starts with.
func (m Month) Prefix() string { return m.String() }

func (m Month) String() string { return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month)) }

func (m Month) Start() Date { return NewDate(m.Year, m.Month, 1) }
func (m Month) End() Date   { return Date{Time: m.Start().Time.AddDate(0, 1, -1)} }

// Contains reports whether d falls inside the month.
func (m Month) Contains(d Date) bool {
	return d.Time.Year() == m.Year && d.Time.Month() == m.Month
}

// =============================================================================
// CLOCK - "now" in the configured civil time zone
// =============================================================================

// Clock supplies the current instant. Implementations decide the zone; the
// engine reads "today" and "now" only through a Clock.
type Clock interface {
	Now() time.Time
}

// ZonedClock reports the wall clock in a fixed location.
type ZonedClock struct {
	Location *time.Location
	source   func() time.Time
}

// NewClock returns a system clock observed in loc.
func NewClock(loc *time.Location) *ZonedClock {
	return &ZonedClock{Location: loc, source: time.Now}
}

// FixedClock always reports t, observed in loc. Used by tests and scenarios.
func FixedClock(t time.Time, loc *time.Location) *ZonedClock {
	return &ZonedClock{Location: loc, source: func() time.Time { return t }}
}

func (c *ZonedClock) Now() time.Time {
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	return c.source().In(loc)
}

// Today returns the civil date of c.Now().
func Today(c Clock) Date { return DateOf(c.Now()) }

// NowTimeOfDay returns the wall-clock minute of c.Now().
func NowTimeOfDay(c Clock) TimeOfDay { return TimeOfDayOf(c.Now()) }

// =============================================================================
// HOUR PROJECTIONS
// =============================================================================

var sixty = decimal.NewFromInt(60)

// Hours renders minutes/60 with two decimals, e.g. 135 -> "2.25".
func Hours(minutes int) string {
	return decimal.NewFromInt(int64(minutes)).Div(sixty).StringFixed(2)
}
