/*
Package factory provides JSON to Go aggregation policy conversion.

PURPOSE:
  Converts a JSON policy definition into a worktime.AggregationPolicy so an
  installation can switch between the historical rule sets, or tune the
  thresholds, without a code change. The server reads the file named by
  POLICY_FILE at startup; without it the canonical preset applies.

JSON SCHEMA:
  {
    "name": "night-ops",
    "preset": "canonical",
    "include_overtime_in_worked": false,
    "cap_worked_at_shift_length": false,
    "late_mark_op": ">=",
    "late_sum_op": ">",
    "overtime_mark_op": ">",
    "overtime_sum_op": ">",
    "late_threshold_minutes": 15,
    "overtime_threshold_minutes": 30
  }

  Every field except "preset" is optional. Omitted fields keep the value
  of the preset, which itself defaults to "canonical".

USAGE:
  factory := NewPolicyFactory()
  policy, err := factory.ParsePolicy(jsonString)
  policy, err := factory.LoadFile("policy.json")

SEE ALSO:
  - worktime/policy.go: AggregationPolicy and presets
  - cmd/server/main.go: Loads POLICY_FILE
*/
package factory

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/warp/worktime-engine/worktime"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// PolicyJSON is the JSON representation of an aggregation policy.
type PolicyJSON struct {
	Name   string `json:"name,omitempty"`
	Preset string `json:"preset,omitempty" validate:"omitempty,oneof=canonical capped-shift gross-worked"`

	IncludeOvertimeInWorked *bool `json:"include_overtime_in_worked,omitempty"`
	CapWorkedAtShiftLength  *bool `json:"cap_worked_at_shift_length,omitempty"`

	LateMarkOp     *string `json:"late_mark_op,omitempty" validate:"omitempty,oneof=>= >"`
	LateSumOp      *string `json:"late_sum_op,omitempty" validate:"omitempty,oneof=>= >"`
	OvertimeMarkOp *string `json:"overtime_mark_op,omitempty" validate:"omitempty,oneof=>= >"`
	OvertimeSumOp  *string `json:"overtime_sum_op,omitempty" validate:"omitempty,oneof=>= >"`

	LateThresholdMinutes     *int `json:"late_threshold_minutes,omitempty" validate:"omitempty,min=0,max=1440"`
	OvertimeThresholdMinutes *int `json:"overtime_threshold_minutes,omitempty" validate:"omitempty,min=0,max=1440"`
}

// =============================================================================
// POLICY FACTORY
// =============================================================================

// PolicyFactory converts JSON policies to worktime policies.
type PolicyFactory struct {
	validate *validator.Validate
}

// NewPolicyFactory creates a new policy factory.
func NewPolicyFactory() *PolicyFactory {
	return &PolicyFactory{validate: validator.New()}
}

// ParsePolicy parses a JSON string into an AggregationPolicy.
func (f *PolicyFactory) ParsePolicy(jsonStr string) (worktime.AggregationPolicy, error) {
	var pj PolicyJSON
	if err := json.Unmarshal([]byte(jsonStr), &pj); err != nil {
		return worktime.AggregationPolicy{}, fmt.Errorf("%w: failed to parse policy JSON: %v", worktime.ErrInvalidPolicy, err)
	}
	return f.FromJSON(pj)
}

// LoadFile reads and parses a policy file.
func (f *PolicyFactory) LoadFile(path string) (worktime.AggregationPolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return worktime.AggregationPolicy{}, fmt.Errorf("read policy file: %w", err)
	}
	return f.ParsePolicy(string(data))
}

// FromJSON applies the overrides in pj on top of its preset and validates
// the result.
func (f *PolicyFactory) FromJSON(pj PolicyJSON) (worktime.AggregationPolicy, error) {
	if err := f.validate.Struct(pj); err != nil {
		return worktime.AggregationPolicy{}, fmt.Errorf("%w: %v", worktime.ErrInvalidPolicy, err)
	}

	preset := pj.Preset
	if preset == "" {
		preset = "canonical"
	}
	p := worktime.Presets[preset]()

	if pj.Name != "" {
		p.Name = pj.Name
	}
	if pj.IncludeOvertimeInWorked != nil {
		p.IncludeOvertimeInWorked = *pj.IncludeOvertimeInWorked
	}
	if pj.CapWorkedAtShiftLength != nil {
		p.CapWorkedAtShiftLength = *pj.CapWorkedAtShiftLength
	}
	setOp(&p.LateMarkOp, pj.LateMarkOp)
	setOp(&p.LateSumOp, pj.LateSumOp)
	setOp(&p.OvertimeMarkOp, pj.OvertimeMarkOp)
	setOp(&p.OvertimeSumOp, pj.OvertimeSumOp)
	if pj.LateThresholdMinutes != nil {
		p.LateThresholdMinutes = *pj.LateThresholdMinutes
	}
	if pj.OvertimeThresholdMinutes != nil {
		p.OvertimeThresholdMinutes = *pj.OvertimeThresholdMinutes
	}

	if err := p.Validate(); err != nil {
		return worktime.AggregationPolicy{}, err
	}
	return p, nil
}

// ToJSON converts a policy to a fully specified PolicyJSON.
func (f *PolicyFactory) ToJSON(p worktime.AggregationPolicy) PolicyJSON {
	ops := func(c worktime.Comparison) *string { s := string(c); return &s }
	return PolicyJSON{
		Name:                     p.Name,
		IncludeOvertimeInWorked:  &p.IncludeOvertimeInWorked,
		CapWorkedAtShiftLength:   &p.CapWorkedAtShiftLength,
		LateMarkOp:               ops(p.LateMarkOp),
		LateSumOp:                ops(p.LateSumOp),
		OvertimeMarkOp:           ops(p.OvertimeMarkOp),
		OvertimeSumOp:            ops(p.OvertimeSumOp),
		LateThresholdMinutes:     &p.LateThresholdMinutes,
		OvertimeThresholdMinutes: &p.OvertimeThresholdMinutes,
	}
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func setOp(dst *worktime.Comparison, src *string) {
	if src != nil {
		*dst = worktime.Comparison(*src)
	}
}
