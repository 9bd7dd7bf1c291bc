package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/calibtic/internal/adc"
	"github.com/roach88/calibtic/internal/calib"
)

// ADCFitOptions holds flags for the adc fit command.
type ADCFitOptions struct {
	*RootOptions
	Order     int
	Store     bool
	Quadratic bool
	Author    string
}

// ChannelFit is the fitted polynomial of one channel.
type ChannelFit struct {
	Channel      int       `json:"channel"`
	Points       int       `json:"points"`
	Coefficients []float64 `json:"coefficients"`
	MeanLow      float64   `json:"mean_low"`
	MeanHigh     float64   `json:"mean_high"`
}

// ADCFitResult is the JSON payload of the adc fit command.
type ADCFitResult struct {
	Serial   string       `json:"serial"`
	Order    int          `json:"order"`
	Complete bool         `json:"complete"`
	Channels []ChannelFit `json:"channels"`
	Stored   string       `json:"stored,omitempty"`
}

// NewADCCommand creates the adc command group.
func NewADCCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "adc",
		Short: "ADC readout calibration",
	}
	cmd.AddCommand(newADCFitCommand(rootOpts))
	return cmd
}

func newADCFitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ADCFitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "fit <measurements.yaml>",
		Short: "Fit an ADC calibration from reference measurements",
		Long: `Fit one polynomial per channel to reference voltage measurements,
weighting every point with 1/std².

With --store the calibration is stored as adc2-<serial>; every channel must
then be measured. --quadratic stores the flattened quadratic form.

Examples:
  calibtic adc fit measurements.yaml
  calibtic adc fit measurements.yaml --order 1 --format json
  calibtic adc fit measurements.yaml --store --quadratic --backend sqlite --backend-opt file=cal.db`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runADCFit(cmd, opts, args[0])
		},
	}

	cmd.Flags().IntVar(&opts.Order, "order", adc.DefaultFitOrder, "polynomial order")
	cmd.Flags().BoolVar(&opts.Store, "store", false, "store the calibration in the backend")
	cmd.Flags().BoolVar(&opts.Quadratic, "quadratic", false, "store as QuadraticADCCalibration")
	cmd.Flags().StringVar(&opts.Author, "author", "calibtic", "metadata author")

	return cmd
}

func runADCFit(cmd *cobra.Command, opts *ADCFitOptions, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "measurements file", err)
	}
	defer f.Close()

	mf, err := adc.ReadMeasurements(f)
	if err != nil {
		return classify("read measurements", err)
	}

	cal := adc.NewADCCalibration()
	result := ADCFitResult{Serial: mf.Serial, Order: opts.Order}
	for _, m := range mf.Measurements {
		if err := cal.MakePolynomialTrafo(m.Channel, m, opts.Order); err != nil {
			return classify("fit", err)
		}
		coeffs, err := m.Fit(opts.Order)
		if err != nil {
			return classify("fit", err)
		}
		lo, hi := m.MeanRange()
		result.Channels = append(result.Channels, ChannelFit{
			Channel:      int(m.Channel),
			Points:       m.Len(),
			Coefficients: coeffs,
			MeanLow:      lo,
			MeanHigh:     hi,
		})
	}
	result.Complete = cal.IsComplete()

	if opts.Store {
		if mf.Serial == "" {
			return NewExitError(ExitCommandError, "measurements file has no serial")
		}
		var conv adc.Converter = cal
		if opts.Quadratic {
			q, err := adc.ConvertToQuadraticADCCalibration(cal)
			if err != nil {
				return classify("convert", err)
			}
			conv = q
		}
		if err := storeADC(cmd, opts, mf.Serial, conv); err != nil {
			return err
		}
		result.Stored = adc.StorageID(mf.Serial)
	}

	var text strings.Builder
	fmt.Fprintf(&text, "Serial: %s (order %d)\n", result.Serial, result.Order)
	for _, c := range result.Channels {
		fmt.Fprintf(&text, "  %s  %d points  mean %g..%g  coefficients %v\n",
			adc.Channel(c.Channel), c.Points, c.MeanLow, c.MeanHigh, c.Coefficients)
	}
	if !result.Complete {
		fmt.Fprintf(&text, "Incomplete: %d of %d channels measured\n", len(result.Channels), adc.ChannelCount)
	}
	if result.Stored != "" {
		fmt.Fprintf(&text, "Stored %s\n", result.Stored)
	}
	return opts.Formatter(cmd).Success(text.String(), result)
}

func storeADC(cmd *cobra.Command, opts *ADCFitOptions, serial string, conv adc.Converter) error {
	ctx := cmd.Context()
	env := opts.Env()
	b, err := opts.OpenBackend(ctx)
	if err != nil {
		return err
	}
	defer b.Close()

	meta, err := calib.NewMetaData(env, opts.Author, fmt.Sprintf("fitted with order %d", opts.Order))
	if err != nil {
		return WrapExitError(ExitFailure, "metadata", err)
	}
	if err := adc.StoreADCCalibration(ctx, b, meta, serial, conv); err != nil {
		return classify("store", err)
	}
	env.Log().Info("stored ADC calibration", "backend", b.Name(), "dataset", adc.StorageID(serial))
	return nil
}
