package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/calibtic/internal/backend"
	"github.com/roach88/calibtic/internal/calib"
	"github.com/roach88/calibtic/internal/hmf"
)

// DefaultsOptions holds flags for the defaults command.
type DefaultsOptions struct {
	*RootOptions
	Wafer   int
	HICANN  int
	Author  string
	Comment string
}

// NewDefaultsCommand creates the defaults command.
func NewDefaultsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DefaultsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "defaults",
		Short: "Store a default HICANNCollection",
		Long: `Store a HICANNCollection filled with the built-in defaults under the
dataset name w<wafer>-h<hicann>. An existing dataset is overwritten.

Examples:
  calibtic defaults --backend-opt path=./cal --wafer 0 --hicann 84
  calibtic defaults --backend sqlite --backend-opt file=cal.db --wafer 1 --hicann 2`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDefaults(cmd, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Wafer, "wafer", 0, "wafer id")
	cmd.Flags().IntVar(&opts.HICANN, "hicann", 0, "HICANN id on the wafer")
	cmd.Flags().StringVar(&opts.Author, "author", "calibtic", "metadata author")
	cmd.Flags().StringVar(&opts.Comment, "comment", "default calibration", "metadata comment")

	return cmd
}

func runDefaults(cmd *cobra.Command, opts *DefaultsOptions) error {
	if opts.Wafer < 0 || opts.HICANN < 0 {
		return NewExitError(ExitCommandError, "--wafer and --hicann must not be negative")
	}
	ctx := cmd.Context()
	env := opts.Env()

	b, err := opts.OpenBackend(ctx)
	if err != nil {
		return err
	}
	defer b.Close()

	h := hmf.NewHICANNCollection(env)
	h.SetDefaults()
	meta, err := calib.NewMetaData(env, opts.Author, opts.Comment)
	if err != nil {
		return WrapExitError(ExitFailure, "metadata", err)
	}
	name := backend.DatasetName(opts.Wafer, opts.HICANN)
	if err := b.Store(ctx, name, meta, h); err != nil {
		return classify("store defaults", err)
	}
	env.Log().Info("stored default calibration", "backend", b.Name(), "dataset", name)

	return opts.Formatter(cmd).Success(
		fmt.Sprintf("Stored %s in %s backend\n", name, b.Name()),
		map[string]any{"dataset": name, "backend": b.Name(), "revision": meta.Revision.String()})
}

// ConvertOptions holds flags for the convert command.
type ConvertOptions struct {
	*RootOptions
	From string
	To   string
	Name string
	Kind string
}

// NewConvertCommand creates the convert command.
func NewConvertCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ConvertOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "convert <source> <destination>",
		Short: "Copy a dataset between storage formats",
		Long: `Copy one dataset with its metadata from one storage format to another.

Formats follow the file extension: .xml (xml), .dat (binary), .txt (text),
.db or .sqlite (sqlite). For file formats the dataset name is the file name
without extension; sqlite endpoints take it from --name or the other side.

Examples:
  calibtic convert cal/w0-h84.xml cal/w0-h84.txt
  calibtic convert cal/w0-h84.dat cal.db
  calibtic convert cal.db out/w0-h84.xml --name w0-h84 --kind HICANNCollection`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd, opts, args[0], args[1])
		},
	}

	cmd.Flags().StringVar(&opts.From, "from", "", "source format (default: from extension)")
	cmd.Flags().StringVar(&opts.To, "to", "", "destination format (default: from extension)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "dataset name")
	cmd.Flags().StringVar(&opts.Kind, "kind", hmf.KindHICANNCollection,
		fmt.Sprintf("dataset kind (%s)", strings.Join(kindNames(), "|")))

	return cmd
}

var extensionFormats = map[string]string{
	".xml":    "xml",
	".dat":    "binary",
	".txt":    "text",
	".db":     "sqlite",
	".sqlite": "sqlite",
}

// endpoint is one side of a conversion.
type endpoint struct {
	format string
	opts   map[string]string
	name   string
}

func parseEndpoint(path, format string) (endpoint, error) {
	ext := filepath.Ext(path)
	if format == "" {
		format = extensionFormats[ext]
		if format == "" {
			return endpoint{}, NewExitError(ExitCommandError,
				fmt.Sprintf("cannot infer format of %s: use --from or --to", path))
		}
	}
	if format == "sqlite" {
		return endpoint{format: format, opts: map[string]string{"file": path}}, nil
	}
	return endpoint{
		format: format,
		opts:   map[string]string{"path": filepath.Dir(path)},
		name:   strings.TrimSuffix(filepath.Base(path), ext),
	}, nil
}

func (e endpoint) open(ctx context.Context, env calib.Env) (backend.Backend, error) {
	b, err := backend.OpenConfigured(ctx, e.format, env, e.opts)
	if err != nil {
		return nil, classify(fmt.Sprintf("open %s backend", e.format), err)
	}
	return b, nil
}

func runConvert(cmd *cobra.Command, opts *ConvertOptions, src, dst string) error {
	from, err := parseEndpoint(src, opts.From)
	if err != nil {
		return err
	}
	to, err := parseEndpoint(dst, opts.To)
	if err != nil {
		return err
	}
	name := opts.Name
	if name == "" {
		name = from.name
	}
	if name == "" {
		name = to.name
	}
	if name == "" {
		return NewExitError(ExitCommandError, "dataset name unknown: use --name")
	}
	if from.name == "" {
		from.name = name
	}
	if to.name == "" {
		to.name = name
	}

	ctx := cmd.Context()
	env := opts.Env()
	e, err := newEntity(opts.Kind, env)
	if err != nil {
		return err
	}

	in, err := from.open(ctx, env)
	if err != nil {
		return err
	}
	defer in.Close()
	meta := calib.EmptyMetaData()
	if err := in.Load(ctx, from.name, meta, e); err != nil {
		return classify("load", err)
	}

	out, err := to.open(ctx, env)
	if err != nil {
		return err
	}
	defer out.Close()
	if err := out.Store(ctx, to.name, meta, e); err != nil {
		return classify("store", err)
	}
	env.Log().Debug("converted dataset",
		"from", from.format, "to", to.format, "source", from.name, "destination", to.name)

	return opts.Formatter(cmd).Success(
		fmt.Sprintf("Converted %s (%s) to %s (%s)\n", from.name, from.format, to.name, to.format),
		map[string]any{"kind": e.Kind(), "from": from.format, "to": to.format, "source": from.name, "destination": to.name})
}

// ShowOptions holds flags for the show command.
type ShowOptions struct {
	*RootOptions
	Kind string
}

// DatasetInfo is the JSON payload of the show command.
type DatasetInfo struct {
	Name       string         `json:"name"`
	Kind       string         `json:"kind"`
	ID         int            `json:"id"`
	Author     string         `json:"author"`
	Comment    string         `json:"comment,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	ModifiedAt time.Time      `json:"modified_at"`
	Revision   string         `json:"revision"`
	Summary    string         `json:"summary,omitempty"`
	History    []RevisionInfo `json:"history,omitempty"`
}

// RevisionInfo is one stored revision of a dataset.
type RevisionInfo struct {
	Revision string    `json:"revision"`
	Hash     string    `json:"hash"`
	StoredAt time.Time `json:"stored_at"`
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show [name]",
		Short: "Show a stored dataset",
		Long: `Print the metadata and a summary of a stored dataset. Backends that keep
revisions (sqlite) also list the store history.

Without a name the stored dataset names are listed.

Examples:
  calibtic show --backend-opt path=./cal
  calibtic show w0-h84 --backend-opt path=./cal
  calibtic show adc2-B201290 --kind ADCCalibration --backend sqlite --backend-opt file=cal.db`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return runList(cmd, opts)
			}
			return runShow(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Kind, "kind", hmf.KindHICANNCollection,
		fmt.Sprintf("dataset kind (%s)", strings.Join(kindNames(), "|")))

	return cmd
}

func runList(cmd *cobra.Command, opts *ShowOptions) error {
	ctx := cmd.Context()
	b, err := opts.OpenBackend(ctx)
	if err != nil {
		return err
	}
	defer b.Close()

	names, err := b.List(ctx)
	if err != nil {
		return classify("list", err)
	}
	var text strings.Builder
	if len(names) == 0 {
		text.WriteString("No datasets found.\n")
	}
	for _, n := range names {
		fmt.Fprintln(&text, n)
	}
	if names == nil {
		names = []string{}
	}
	return opts.Formatter(cmd).Success(text.String(), names)
}

func runShow(cmd *cobra.Command, opts *ShowOptions, name string) error {
	ctx := cmd.Context()
	env := opts.Env()
	e, err := newEntity(opts.Kind, env)
	if err != nil {
		return err
	}

	b, err := opts.OpenBackend(ctx)
	if err != nil {
		return err
	}
	defer b.Close()

	meta := calib.EmptyMetaData()
	if err := b.Load(ctx, name, meta, e); err != nil {
		return classify("load", err)
	}

	info := DatasetInfo{
		Name:       name,
		Kind:       e.Kind(),
		ID:         meta.ID,
		Author:     meta.Author,
		Comment:    meta.Comment,
		CreatedAt:  meta.CreatedAt,
		ModifiedAt: meta.ModifiedAt,
		Revision:   meta.Revision.String(),
	}
	if s, ok := e.(fmt.Stringer); ok {
		info.Summary = s.String()
	}
	if h, ok := b.(backend.Historian); ok {
		revs, err := h.History(ctx, name)
		if err != nil {
			return classify("history", err)
		}
		for _, r := range revs {
			info.History = append(info.History, RevisionInfo{
				Revision: r.ID.String(),
				Hash:     r.Hash,
				StoredAt: r.StoredAt,
			})
		}
	}

	var text strings.Builder
	fmt.Fprintf(&text, "Dataset:   %s\n", info.Name)
	fmt.Fprintf(&text, "Kind:      %s\n", info.Kind)
	fmt.Fprintf(&text, "Author:    %s\n", info.Author)
	if info.Comment != "" {
		fmt.Fprintf(&text, "Comment:   %s\n", info.Comment)
	}
	fmt.Fprintf(&text, "Created:   %s\n", info.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(&text, "Modified:  %s\n", info.ModifiedAt.Format(time.RFC3339))
	fmt.Fprintf(&text, "Revision:  %s\n", info.Revision)
	if info.Summary != "" {
		fmt.Fprintf(&text, "\n%s\n", strings.TrimRight(info.Summary, "\n"))
	}
	if len(info.History) > 0 {
		fmt.Fprintf(&text, "\nHistory (%d):\n", len(info.History))
		for _, r := range info.History {
			fmt.Fprintf(&text, "  %s  %s  %s\n", r.StoredAt.Format(time.RFC3339), r.Revision, r.Hash)
		}
	}
	return opts.Formatter(cmd).Success(text.String(), info)
}
