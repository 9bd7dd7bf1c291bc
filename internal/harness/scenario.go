package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario is one regression scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Cells is the cell parameter file used by to_hw steps.
	// Relative paths are resolved against the scenario file.
	Cells string `yaml:"cells,omitempty"`

	// Speedup is the hardware acceleration factor; 0 means 1e4.
	Speedup float64 `yaml:"speedup,omitempty"`

	Steps []Step `yaml:"steps"`
}

// Step is one calibration call. Exactly one of ToHW, ToBio and ADC is set.
type Step struct {
	ToHW  *ToHWStep  `yaml:"to_hw,omitempty"`
	ToBio *ToBioStep `yaml:"to_bio,omitempty"`
	ADC   *ADCStep   `yaml:"adc,omitempty"`

	// Expect holds expected output values. Subset match.
	Expect map[string]float64 `yaml:"expect,omitempty"`

	// Tolerance is the allowed absolute deviation; 0 requires equality.
	Tolerance float64 `yaml:"tolerance,omitempty"`
}

// ToHWStep runs the forward neuron calibration on a named cell.
type ToHWStep struct {
	Cell string `yaml:"cell"`
}

// ToBioStep runs the reverse neuron calibration. Registers not listed in
// DAC are zero.
type ToBioStep struct {
	Cm  float64        `yaml:"cm"`
	DAC map[string]int `yaml:"dac"`
}

// ADCStep converts raw samples of one channel.
type ADCStep struct {
	// Calibration is "default" or "ess".
	Calibration string   `yaml:"calibration"`
	Channel     int      `yaml:"channel"`
	Raw         []uint16 `yaml:"raw"`
}

// Step kinds as they appear in the trace.
const (
	KindToHW  = "to_hw"
	KindToBio = "to_bio"
	KindADC   = "adc"
)

// Kind names the populated step variant.
func (s Step) Kind() string {
	switch {
	case s.ToHW != nil:
		return KindToHW
	case s.ToBio != nil:
		return KindToBio
	case s.ADC != nil:
		return KindADC
	default:
		return ""
	}
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "step:" vs "steps:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Cells != "" && !filepath.IsAbs(scenario.Cells) {
		scenario.Cells = filepath.Join(filepath.Dir(path), scenario.Cells)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if s.Speedup < 0 {
		return fmt.Errorf("speedup must be positive, got %g", s.Speedup)
	}

	for i, step := range s.Steps {
		set := 0
		for _, p := range []bool{step.ToHW != nil, step.ToBio != nil, step.ADC != nil} {
			if p {
				set++
			}
		}
		if set != 1 {
			return fmt.Errorf("steps[%d]: exactly one of to_hw, to_bio, adc is required", i)
		}
		if step.Tolerance < 0 {
			return fmt.Errorf("steps[%d]: tolerance must not be negative", i)
		}
		switch {
		case step.ToHW != nil:
			if step.ToHW.Cell == "" {
				return fmt.Errorf("steps[%d]: to_hw.cell is required", i)
			}
			if s.Cells == "" {
				return fmt.Errorf("steps[%d]: to_hw needs a cells file", i)
			}
		case step.ToBio != nil:
			if step.ToBio.Cm <= 0 {
				return fmt.Errorf("steps[%d]: to_bio.cm must be positive", i)
			}
			if len(step.ToBio.DAC) == 0 {
				return fmt.Errorf("steps[%d]: to_bio.dac is required", i)
			}
		case step.ADC != nil:
			if step.ADC.Calibration != "default" && step.ADC.Calibration != "ess" {
				return fmt.Errorf("steps[%d]: adc.calibration must be default or ess, got %q", i, step.ADC.Calibration)
			}
			if len(step.ADC.Raw) == 0 {
				return fmt.Errorf("steps[%d]: adc.raw is required", i)
			}
		}
	}

	if s.Cells != "" {
		if _, err := os.Stat(s.Cells); os.IsNotExist(err) {
			return fmt.Errorf("cells file not found: %s", s.Cells)
		}
	}
	return nil
}
