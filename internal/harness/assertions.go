package harness

import (
	"fmt"
	"maps"
	"math"
	"slices"
)

// CheckExpect compares an output against the expected values and returns
// one message per mismatch, ordered by name.
func CheckExpect(out StepOutput, expect map[string]float64, tolerance float64) []string {
	var errs []string
	for _, name := range slices.Sorted(maps.Keys(expect)) {
		want := expect[name]
		got, ok := out.value(name)
		if !ok {
			errs = append(errs, fmt.Sprintf("steps[%d] %s: no output %q", out.Step, out.Kind, name))
			continue
		}
		if !withinTolerance(got, want, tolerance) {
			errs = append(errs, fmt.Sprintf("steps[%d] %s: %s = %g, want %g (tolerance %g)",
				out.Step, out.Kind, name, got, want, tolerance))
		}
	}
	return errs
}

func withinTolerance(got, want, tolerance float64) bool {
	if tolerance == 0 {
		return got == want
	}
	return math.Abs(got-want) <= tolerance
}
