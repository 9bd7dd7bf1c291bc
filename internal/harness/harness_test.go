package harness

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/calibtic/internal/calib"
)

func loadTestScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", name))
	require.NoError(t, err)
	return s
}

func TestRun_Scenarios(t *testing.T) {
	for _, name := range []string{"reference_cell.yaml", "reverse_reference.yaml", "adc_defaults.yaml"} {
		t.Run(name, func(t *testing.T) {
			s := loadTestScenario(t, name)
			result, err := Run(context.Background(), s, calib.Env{})
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Len(t, result.Trace, len(s.Steps))
		})
	}
}

func TestRunWithGolden(t *testing.T) {
	s := loadTestScenario(t, "reference_cell.yaml")
	result, err := RunWithGolden(t, s)
	require.NoError(t, err)
	assert.True(t, result.Pass)
}

func TestRun_ReportsMismatches(t *testing.T) {
	s := loadTestScenario(t, "failing.yaml")
	result, err := Run(context.Background(), s, calib.Env{})
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "I_gl = 189, want 190")
	assert.Contains(t, result.Errors[1], `no output "missing"`)

	require.Len(t, result.Trace, 2)
	assert.Equal(t, "leaky", result.Trace[1].Label)
	assert.Len(t, result.Trace[1].Codes, 23)
}

func TestRun_UnknownCell(t *testing.T) {
	s := loadTestScenario(t, "reference_cell.yaml")
	s.Steps[0].ToHW.Cell = "absent"
	_, err := Run(context.Background(), s, calib.Env{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown cell "absent"`)
}

func TestRun_UnknownRegister(t *testing.T) {
	s := &Scenario{
		Name:        "bad",
		Description: "bad register",
		Steps:       []Step{{ToBio: &ToBioStep{Cm: 0.2, DAC: map[string]int{"I_foo": 1}}}},
	}
	_, err := Run(context.Background(), s, calib.Env{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "I_foo")
}

func TestRun_Deterministic(t *testing.T) {
	s := loadTestScenario(t, "reverse_reference.yaml")
	a, err := Run(context.Background(), s, calib.Env{})
	require.NoError(t, err)
	b, err := Run(context.Background(), s, calib.Env{})
	require.NoError(t, err)

	sa, err := Snapshot(s.Name, a.Trace)
	require.NoError(t, err)
	sb, err := Snapshot(s.Name, b.Trace)
	require.NoError(t, err)
	assert.Equal(t, string(sa), string(sb))
}

func TestCheckExpect(t *testing.T) {
	out := StepOutput{Step: 3, Kind: KindADC, Codes: map[string]int{"c": 2}, Values: map[string]float64{"v": 1.5}}

	assert.Empty(t, CheckExpect(out, map[string]float64{"c": 2, "v": 1.5}, 0))
	assert.Empty(t, CheckExpect(out, map[string]float64{"v": 1.4}, 0.2))
	assert.Equal(t, []string{"steps[3] adc: v = 1.5, want 1.4 (tolerance 0.01)"},
		CheckExpect(out, map[string]float64{"v": 1.4}, 0.01))
}

func TestLoadScenario_Validation(t *testing.T) {
	cases := map[string]string{
		"missing name":       "description: d\nsteps: [{adc: {calibration: default, raw: [1]}}]\n",
		"missing steps":      "name: n\ndescription: d\n",
		"two kinds":          "name: n\ndescription: d\nsteps: [{adc: {calibration: default, raw: [1]}, to_hw: {cell: a}}]\n",
		"no kind":            "name: n\ndescription: d\nsteps: [{expect: {a: 1}}]\n",
		"bad calibration":    "name: n\ndescription: d\nsteps: [{adc: {calibration: hw, raw: [1]}}]\n",
		"to_hw no cells":     "name: n\ndescription: d\nsteps: [{to_hw: {cell: a}}]\n",
		"to_bio no cm":       "name: n\ndescription: d\nsteps: [{to_bio: {dac: {I_gl: 1}}}]\n",
		"unknown field":      "name: n\ndescription: d\nstep: []\n",
		"missing cells":      "name: n\ndescription: d\ncells: nope.cue\nsteps: [{to_hw: {cell: a}}]\n",
		"negative tolerance": "name: n\ndescription: d\nsteps: [{adc: {calibration: ess, raw: [1]}, tolerance: -1}]\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "s.yaml")
			require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
			_, err := LoadScenario(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadScenario_ResolvesCells(t *testing.T) {
	s := loadTestScenario(t, "reference_cell.yaml")
	assert.Equal(t, filepath.Join("testdata", "scenarios", "cells.cue"), s.Cells)
	assert.Equal(t, KindToHW, s.Steps[0].Kind())
}
