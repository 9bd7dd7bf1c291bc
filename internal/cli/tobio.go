package cli

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/calibtic/internal/cellspec"
	"github.com/roach88/calibtic/internal/hmf"
)

// ToBioOptions holds flags for the to-bio command.
type ToBioOptions struct {
	*RootOptions
	neuronSource
	DAC []string // name=code
	Cm  float64
}

// NewToBioCommand creates the to-bio command.
func NewToBioCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ToBioOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "to-bio",
		Short: "Translate floating-gate codes back to biological parameters",
		Long: `Translate floating-gate codes of one neuron back to an AdEx parameter set.

Registers not given with --dac keep the codes the default AdEx cell maps to,
so a single register can be examined in isolation.

Examples:
  calibtic to-bio --dac I_gl=511 --dac E_l=300
  calibtic to-bio --cm 0.216456 --dac I_gl=1023 --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToBio(cmd, opts)
		},
	}

	cmd.Flags().StringArrayVar(&opts.DAC, "dac", nil, "floating-gate code name=value (repeatable)")
	cmd.Flags().Float64Var(&opts.Cm, "cm", hmf.DefaultEIFCondExpIsfaIsta().Cm, "biological membrane capacitance in nF")
	cmd.Flags().StringVar(&opts.Dataset, "dataset", "", "stored HICANNCollection to calibrate with")
	cmd.Flags().IntVar(&opts.Neuron, "neuron", 0, "neuron of the stored collection")
	cmd.Flags().Float64Var(&opts.Speedup, "speedup", 1e4, "hardware speedup for the default calibration")

	return cmd
}

func parseDACs(kvs []string, hw *hmf.HWNeuronParameter) error {
	for _, kv := range kvs {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			return NewExitError(ExitCommandError, fmt.Sprintf("invalid --dac %q: expected name=value", kv))
		}
		p, err := hmf.ParseNeuronParameter(name)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --dac", err)
		}
		code, err := strconv.Atoi(value)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("invalid --dac %s", name), err)
		}
		hw.Set(p, code)
	}
	return nil
}

func runToBio(cmd *cobra.Command, opts *ToBioOptions) error {
	if !(opts.Cm > 0) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid --cm %g: must be positive", opts.Cm))
	}
	nc, speedup, err := opts.resolve(cmd.Context(), opts.RootOptions)
	if err != nil {
		return err
	}

	params := hmf.DefaultNeuronCalibrationParameters()
	hw, err := nc.ApplyNeuronCalibration(hmf.DefaultEIFCondExpIsfaIsta(), speedup, params)
	if err != nil {
		return classify("calibrate default cell", err)
	}
	if err := parseDACs(opts.DAC, &hw); err != nil {
		return err
	}

	bio, err := nc.ApplyNeuronReverse(hw, speedup, opts.Cm, params)
	if err != nil {
		return classify("reverse calibration", err)
	}

	values := cellspec.Values(bio)
	names := make([]string, 0, len(values))
	for k := range values {
		names = append(names, k)
	}
	slices.Sort(names)

	var text strings.Builder
	fmt.Fprintf(&text, "%s\n", bio.Model())
	for _, k := range names {
		fmt.Fprintf(&text, "  %-10s %g\n", k, values[k])
	}
	return opts.Formatter(cmd).Success(text.String(), values)
}
