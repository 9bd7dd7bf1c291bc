package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/calibtic/internal/calib"
	"github.com/roach88/calibtic/internal/schema"
)

// Snapshot renders a trace as canonical JSON.
func Snapshot(scenarioName string, trace []StepOutput) ([]byte, error) {
	steps := make(schema.List, len(trace))
	for i, out := range trace {
		obj := schema.Object{
			"step": schema.Int(out.Step),
			"kind": schema.String(out.Kind),
		}
		if out.Label != "" {
			obj["label"] = schema.String(out.Label)
		}
		if len(out.Codes) > 0 {
			codes := make(schema.Object, len(out.Codes))
			for k, v := range out.Codes {
				codes[k] = schema.Int(v)
			}
			obj["codes"] = codes
		}
		if len(out.Values) > 0 {
			values := make(schema.Object, len(out.Values))
			for k, v := range out.Values {
				values[k] = schema.Float(v)
			}
			obj["values"] = values
		}
		steps[i] = obj
	}
	return schema.MarshalCanonical(schema.Object{
		"scenario_name": schema.String(scenarioName),
		"trace":         steps,
	})
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario, calib.Env{})
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot, err := Snapshot(scenarioName, result.Trace)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, snapshot)
	return nil
}
