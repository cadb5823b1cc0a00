/*
policy.go - Aggregation policy: the rules that turn punches into totals

PURPOSE:
  Makes every judgment call of the aggregator an explicit, named setting.
  One AggregationPolicy is chosen at startup and applied to every day and
  month summary, so two endpoints can never disagree about the same data.

KEY SETTINGS:
  IncludeOvertimeInWorked: overtime minutes stay inside worked minutes
  CapWorkedAtShiftLength:  worked time is clipped to the shift window and
                           each day is capped at the scheduled length
  LateMarkOp / LateSumOp:  ">=" or ">" against LateThresholdMinutes, for the
                           boolean late mark and for summing into totals
  OvertimeMarkOp / OvertimeSumOp: same, against OvertimeThresholdMinutes

PRESETS:
  CanonicalPolicy:   overtime carved out of worked time, no cap,
                     late mark >= 15, late sum > 15, overtime > 30
  CappedShiftPolicy: worked time limited to the scheduled window
  GrossWorkedPolicy: raw duration counts fully, overtime included

SEE ALSO:
  - aggregate.go: Applies the policy
  - factory/policy.go: Builds a policy from JSON
*/
package worktime

import "fmt"

const (
	DefaultLateThresholdMinutes     = 15
	DefaultOvertimeThresholdMinutes = 30
)

// Comparison is the operator used to test a value against a threshold.
type Comparison string

const (
	AtLeast     Comparison = ">="
	GreaterThan Comparison = ">"
)

// Exceeds reports whether value passes threshold under the operator.
func (c Comparison) Exceeds(value, threshold int) bool {
	if c == AtLeast {
		return value >= threshold
	}
	return value > threshold
}

func (c Comparison) valid() bool { return c == AtLeast || c == GreaterThan }

// AggregationPolicy configures the Period Aggregator and the lateness and
// overtime marks. The zero value is not usable; start from a preset.
type AggregationPolicy struct {
	Name string `json:"name"`

	IncludeOvertimeInWorked bool `json:"include_overtime_in_worked"`
	CapWorkedAtShiftLength  bool `json:"cap_worked_at_shift_length"`

	LateMarkOp     Comparison `json:"late_mark_op"`
	LateSumOp      Comparison `json:"late_sum_op"`
	OvertimeMarkOp Comparison `json:"overtime_mark_op"`
	OvertimeSumOp  Comparison `json:"overtime_sum_op"`

	LateThresholdMinutes     int `json:"late_threshold_minutes"`
	OvertimeThresholdMinutes int `json:"overtime_threshold_minutes"`
}

// CanonicalPolicy is the default, matching the latest revision of the rules.
func CanonicalPolicy() AggregationPolicy {
	return AggregationPolicy{
		Name:                     "canonical",
		LateMarkOp:               AtLeast,
		LateSumOp:                GreaterThan,
		OvertimeMarkOp:           GreaterThan,
		OvertimeSumOp:            GreaterThan,
		LateThresholdMinutes:     DefaultLateThresholdMinutes,
		OvertimeThresholdMinutes: DefaultOvertimeThresholdMinutes,
	}
}

// CappedShiftPolicy ignores early arrival and late departure entirely.
func CappedShiftPolicy() AggregationPolicy {
	p := CanonicalPolicy()
	p.Name = "capped-shift"
	p.CapWorkedAtShiftLength = true
	return p
}

// GrossWorkedPolicy counts the full punch duration as worked time.
func GrossWorkedPolicy() AggregationPolicy {
	p := CanonicalPolicy()
	p.Name = "gross-worked"
	p.IncludeOvertimeInWorked = true
	return p
}

// Presets maps preset names to constructors.
var Presets = map[string]func() AggregationPolicy{
	"canonical":    CanonicalPolicy,
	"capped-shift": CappedShiftPolicy,
	"gross-worked": GrossWorkedPolicy,
}

// Validate rejects unknown operators, negative thresholds and contradictory
// worked-time settings.
func (p AggregationPolicy) Validate() error {
	for name, op := range map[string]Comparison{
		"late_mark_op":     p.LateMarkOp,
		"late_sum_op":      p.LateSumOp,
		"overtime_mark_op": p.OvertimeMarkOp,
		"overtime_sum_op":  p.OvertimeSumOp,
	} {
		if !op.valid() {
			return fmt.Errorf("%w: %s must be \">=\" or \">\", got %q", ErrInvalidPolicy, name, op)
		}
	}
	if p.LateThresholdMinutes < 0 || p.OvertimeThresholdMinutes < 0 {
		return fmt.Errorf("%w: thresholds must be non-negative", ErrInvalidPolicy)
	}
	// A capped day never contains the time past shift end, so there is no
	// overtime left to include.
	if p.CapWorkedAtShiftLength && p.IncludeOvertimeInWorked {
		return fmt.Errorf("%w: cap_worked_at_shift_length and include_overtime_in_worked are mutually exclusive", ErrInvalidPolicy)
	}
	return nil
}

// LateMark applies the boolean late rule.
func (p AggregationPolicy) LateMark(lateMinutes int) bool {
	return p.LateMarkOp.Exceeds(lateMinutes, p.LateThresholdMinutes)
}

// CountsLate decides whether late minutes enter period totals.
func (p AggregationPolicy) CountsLate(lateMinutes int) bool {
	return p.LateSumOp.Exceeds(lateMinutes, p.LateThresholdMinutes)
}

// OvertimeMark applies the boolean overtime rule.
func (p AggregationPolicy) OvertimeMark(overtimeMinutes int) bool {
	return p.OvertimeMarkOp.Exceeds(overtimeMinutes, p.OvertimeThresholdMinutes)
}

// CountsOvertime decides whether overtime minutes enter period totals.
func (p AggregationPolicy) CountsOvertime(overtimeMinutes int) bool {
	return p.OvertimeSumOp.Exceeds(overtimeMinutes, p.OvertimeThresholdMinutes)
}
