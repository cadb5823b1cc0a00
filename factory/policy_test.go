package factory

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/worktime-engine/worktime"
)

func TestParsePolicy_EmptyObjectIsCanonical(t *testing.T) {
	p, err := NewPolicyFactory().ParsePolicy(`{}`)
	require.NoError(t, err)
	assert.Equal(t, worktime.CanonicalPolicy(), p)
}

func TestParsePolicy_PresetWithOverrides(t *testing.T) {
	// GIVEN: The capped preset with a stricter late rule
	jsonStr := `{
		"name": "strict-capped",
		"preset": "capped-shift",
		"late_sum_op": ">=",
		"late_threshold_minutes": 10
	}`

	// WHEN: Parsing
	p, err := NewPolicyFactory().ParsePolicy(jsonStr)

	// THEN: Overrides apply on top of the preset
	require.NoError(t, err)
	assert.Equal(t, "strict-capped", p.Name)
	assert.True(t, p.CapWorkedAtShiftLength)
	assert.Equal(t, worktime.AtLeast, p.LateSumOp)
	assert.Equal(t, 10, p.LateThresholdMinutes)
	assert.Equal(t, worktime.DefaultOvertimeThresholdMinutes, p.OvertimeThresholdMinutes)
}

func TestParsePolicy_Rejects(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"malformed", `{"preset":`},
		{"unknown preset", `{"preset": "lenient"}`},
		{"unknown operator", `{"late_mark_op": "=>"}`},
		{"negative threshold", `{"overtime_threshold_minutes": -5}`},
		{"contradictory", `{"preset": "capped-shift", "include_overtime_in_worked": true}`},
	}

	f := NewPolicyFactory()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ParsePolicy(tt.json)
			assert.ErrorIs(t, err, worktime.ErrInvalidPolicy)
		})
	}
}

func TestToJSON_ReparsesToSamePolicy(t *testing.T) {
	f := NewPolicyFactory()
	original := worktime.GrossWorkedPolicy()

	data, err := json.Marshal(f.ToJSON(original))
	require.NoError(t, err)

	parsed, err := f.ParsePolicy(string(data))
	require.NoError(t, err)
	assert.Equal(t, original, parsed)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"preset":"gross-worked"}`), 0o644))

	p, err := NewPolicyFactory().LoadFile(path)
	require.NoError(t, err)
	assert.True(t, p.IncludeOvertimeInWorked)

	_, err = NewPolicyFactory().LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
