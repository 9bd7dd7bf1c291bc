package harness

import (
	"context"
	"fmt"
	"strconv"

	"github.com/roach88/calibtic/internal/adc"
	"github.com/roach88/calibtic/internal/calib"
	"github.com/roach88/calibtic/internal/cellspec"
	"github.com/roach88/calibtic/internal/hmf"
	"github.com/roach88/calibtic/internal/testutil"
)

// DefaultSpeedup is used when a scenario does not set one.
const DefaultSpeedup = 1e4

// Harness executes scenario steps against the default calibrations.
type Harness struct {
	env     calib.Env
	neuron  *hmf.NeuronCalibration
	params  hmf.NeuronCalibrationParameters
	cells   map[string]hmf.Cell
	speedup float64
}

// Run executes a scenario and returns the result. Expectation mismatches
// mark the result as failed; errors are returned for scenarios that cannot
// run at all (unreadable cells, unknown cell names).
//
// logger output is discarded unless env carries a logger; the clock is
// always deterministic.
func Run(ctx context.Context, scenario *Scenario, env calib.Env) (*Result, error) {
	env.Clock = testutil.NewDeterministicClock()

	h := &Harness{
		env:     env,
		neuron:  hmf.DefaultNeuronCalibration(env),
		params:  hmf.DefaultNeuronCalibrationParameters(),
		cells:   map[string]hmf.Cell{},
		speedup: scenario.Speedup,
	}
	if h.speedup == 0 {
		h.speedup = DefaultSpeedup
	}
	if scenario.Cells != "" {
		cells, err := cellspec.Load(scenario.Cells)
		if err != nil {
			return nil, fmt.Errorf("load cells: %w", err)
		}
		for _, c := range cells {
			h.cells[c.Name] = c.Cell
		}
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, err := h.execute(i, step)
		if err != nil {
			return nil, fmt.Errorf("steps[%d] %s: %w", i, step.Kind(), err)
		}
		result.Trace = append(result.Trace, out)
		for _, msg := range CheckExpect(out, step.Expect, step.Tolerance) {
			result.AddError(msg)
		}
	}
	env.Log().Debug("scenario finished", "scenario", scenario.Name, "steps", len(scenario.Steps), "pass", result.Pass)
	return result, nil
}

func (h *Harness) execute(i int, step Step) (StepOutput, error) {
	out := StepOutput{Step: i, Kind: step.Kind()}
	switch {
	case step.ToHW != nil:
		cell, ok := h.cells[step.ToHW.Cell]
		if !ok {
			return out, fmt.Errorf("unknown cell %q", step.ToHW.Cell)
		}
		hw, err := h.neuron.ApplyNeuronCalibration(cell, h.speedup, h.params)
		if err != nil {
			return out, err
		}
		out.Label = step.ToHW.Cell
		out.Codes = make(map[string]int, hmf.NeuronParameterCount)
		for p := range hmf.NeuronParameterCount {
			out.Codes[hmf.NeuronParameter(p).String()] = hw.Get(hmf.NeuronParameter(p))
		}

	case step.ToBio != nil:
		var hw hmf.HWNeuronParameter
		for name, code := range step.ToBio.DAC {
			p, err := hmf.ParseNeuronParameter(name)
			if err != nil {
				return out, err
			}
			hw.Set(p, code)
		}
		bio, err := h.neuron.ApplyNeuronReverse(hw, h.speedup, step.ToBio.Cm, h.params)
		if err != nil {
			return out, err
		}
		out.Values = cellspec.Values(bio)

	case step.ADC != nil:
		conv := adc.DefaultCalibration()
		if step.ADC.Calibration == "ess" {
			conv = adc.ESSCalibration()
		}
		volts, err := conv.Apply(adc.Channel(step.ADC.Channel), step.ADC.Raw)
		if err != nil {
			return out, err
		}
		out.Label = step.ADC.Calibration
		out.Values = make(map[string]float64, len(volts))
		for j, v := range volts {
			out.Values[strconv.Itoa(j)] = float64(v)
		}
	}
	return out, nil
}
