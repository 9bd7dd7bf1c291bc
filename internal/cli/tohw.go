package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/calibtic/internal/cellspec"
	"github.com/roach88/calibtic/internal/hmf"
)

// ToHWOptions holds flags for the to-hw command.
type ToHWOptions struct {
	*RootOptions
	neuronSource
}

// CellCodes is the floating-gate configuration of one cell.
type CellCodes struct {
	Name  string         `json:"name"`
	Model string         `json:"model"`
	Codes map[string]int `json:"codes"`
}

// NewToHWCommand creates the to-hw command.
func NewToHWCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ToHWOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "to-hw <cells-file>",
		Short: "Translate biological cells to floating-gate codes",
		Long: `Translate the cells of a CUE or YAML parameter file to the floating-gate
codes of one HICANN neuron.

Without --dataset the built-in default calibration is used at --speedup.
With --dataset the calibration of --neuron is loaded from the backend and
the speedup stored with the chip applies.

Examples:
  calibtic to-hw cells.cue
  calibtic to-hw cells.yaml --speedup 1000 --format json
  calibtic to-hw cells.cue --backend sqlite --backend-opt file=cal.db --dataset w0-h84 --neuron 3`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToHW(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Dataset, "dataset", "", "stored HICANNCollection to calibrate with")
	cmd.Flags().IntVar(&opts.Neuron, "neuron", 0, "neuron of the stored collection")
	cmd.Flags().Float64Var(&opts.Speedup, "speedup", 1e4, "hardware speedup for the default calibration")

	return cmd
}

func runToHW(cmd *cobra.Command, opts *ToHWOptions, path string) error {
	if _, err := os.Stat(path); err != nil {
		return WrapExitError(ExitCommandError, "cells file", err)
	}
	cells, err := cellspec.Load(path)
	if err != nil {
		return classify("load cells", err)
	}
	nc, speedup, err := opts.resolve(cmd.Context(), opts.RootOptions)
	if err != nil {
		return err
	}

	params := hmf.DefaultNeuronCalibrationParameters()
	out := make([]CellCodes, 0, len(cells))
	for _, c := range cells {
		hw, err := nc.ApplyNeuronCalibration(c.Cell, speedup, params)
		if err != nil {
			return classify(fmt.Sprintf("calibrate %s", c.Name), err)
		}
		codes := make(map[string]int, hmf.NeuronParameterCount)
		for p := range hmf.NeuronParameterCount {
			codes[hmf.NeuronParameter(p).String()] = hw.Get(hmf.NeuronParameter(p))
		}
		out = append(out, CellCodes{Name: c.Name, Model: c.Cell.Model(), Codes: codes})
	}

	var text strings.Builder
	for _, c := range out {
		fmt.Fprintf(&text, "%s (%s)\n", c.Name, c.Model)
		for p := range hmf.NeuronParameterCount {
			name := hmf.NeuronParameter(p).String()
			fmt.Fprintf(&text, "  %-10s %4d\n", name, c.Codes[name])
		}
	}
	return opts.Formatter(cmd).Success(text.String(), out)
}
