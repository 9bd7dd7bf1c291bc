package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/calibtic/internal/backend"
	"github.com/roach88/calibtic/internal/calerr"
	"github.com/roach88/calibtic/internal/calib"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose     bool
	Format      string // "json" | "text"
	Backend     string
	BackendOpts []string // key=value

	logOut io.Writer
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the calibtic CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "calibtic",
		Short: "calibtic - neuromorphic hardware calibration",
		Long: `Translate biological neuron parameters to floating-gate codes of the
HICANN chip and back, and manage stored calibration datasets.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			opts.logOut = cmd.ErrOrStderr()
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Backend, "backend", "text",
		fmt.Sprintf("storage backend (%s)", strings.Join(backend.Names(), "|")))
	cmd.PersistentFlags().StringArrayVar(&opts.BackendOpts, "backend-opt", nil, "backend option key=value (repeatable)")

	cmd.AddCommand(NewToHWCommand(opts))
	cmd.AddCommand(NewToBioCommand(opts))
	cmd.AddCommand(NewDefaultsCommand(opts))
	cmd.AddCommand(NewConvertCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewADCCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// Env builds the library environment: a text logger on stderr at info
// level, debug with --verbose.
func (o *RootOptions) Env() calib.Env {
	w := o.logOut
	if w == nil {
		w = io.Discard
	}
	level := slog.LevelInfo
	if o.Verbose {
		level = slog.LevelDebug
	}
	return calib.NewEnv(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// Formatter returns the output formatter for cmd.
func (o *RootOptions) Formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{Format: o.Format, Writer: cmd.OutOrStdout()}
}

// OpenBackend opens the backend selected by --backend with the
// --backend-opt options.
func (o *RootOptions) OpenBackend(ctx context.Context) (backend.Backend, error) {
	return openBackend(ctx, o.Env(), o.Backend, o.BackendOpts)
}

func openBackend(ctx context.Context, env calib.Env, name string, kvs []string) (backend.Backend, error) {
	opts, err := parseBackendOpts(kvs)
	if err != nil {
		return nil, err
	}
	b, err := backend.OpenConfigured(ctx, name, env, opts)
	if err != nil {
		return nil, classify("open backend", err)
	}
	return b, nil
}

func parseBackendOpts(kvs []string) (map[string]string, error) {
	opts := make(map[string]string, len(kvs))
	for _, kv := range kvs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, WrapExitError(ExitCommandError, "invalid --backend-opt",
				calerr.Configuration(kv, "expected key=value, got %q", kv))
		}
		opts[k] = v
	}
	return opts, nil
}
