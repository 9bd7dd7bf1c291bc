// Package cellspec reads biological cell parameter files.
//
// A file declares named cells under "cells". It is written in CUE or YAML
// and validated against the embedded #File schema, which supplies the
// model defaults:
//
//	cells: pyramidal: {
//		model: "EIF_cond_exp_isfa_ista"
//		tau_m: 12
//	}
package cellspec

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cueyaml "cuelang.org/go/encoding/yaml"

	"github.com/roach88/calibtic/internal/calerr"
	"github.com/roach88/calibtic/internal/hmf"
)

//go:embed cell.cue
var schemaCUE string

// NamedCell is one cell of a parameter file.
type NamedCell struct {
	Name string
	Cell hmf.Cell
}

// Load reads and validates a parameter file. Files ending in .yaml or .yml
// are read as YAML, everything else as CUE.
func Load(path string) ([]NamedCell, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, calerr.InvalidArgument("read cells: %v", err)
	}
	return Parse(path, src)
}

// Parse validates src, named filename for error positions and format
// detection, and converts its cells in declaration order.
func Parse(filename string, src []byte) ([]NamedCell, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("cell.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("cell schema: %w", err)
	}

	var data cue.Value
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		f, err := cueyaml.Extract(filename, src)
		if err != nil {
			return nil, invalid(err)
		}
		data = ctx.BuildFile(f)
	default:
		data = ctx.CompileBytes(src, cue.Filename(filename))
	}
	if err := data.Err(); err != nil {
		return nil, invalid(err)
	}

	file := schema.LookupPath(cue.ParsePath("#File")).Unify(data)
	if err := file.Validate(cue.Concrete(true)); err != nil {
		return nil, invalid(err)
	}

	iter, err := file.LookupPath(cue.ParsePath("cells")).Fields()
	if err != nil {
		return nil, invalid(err)
	}
	var cells []NamedCell
	for iter.Next() {
		c, err := decodeCell(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("cell %s: %w", iter.Label(), err)
		}
		cells = append(cells, NamedCell{Name: iter.Label(), Cell: c})
	}
	if len(cells) == 0 {
		return nil, calerr.InvalidArgument("%s: no cells declared", filename)
	}
	return cells, nil
}

func invalid(err error) error {
	return calerr.InvalidArgument("%s", strings.TrimSpace(cueerrors.Details(err, nil)))
}

type eifFields struct {
	Cm        float64 `json:"cm"`
	TauRefrac float64 `json:"tau_refrac"`
	VSpike    float64 `json:"v_spike"`
	VReset    float64 `json:"v_reset"`
	VRest     float64 `json:"v_rest"`
	TauM      float64 `json:"tau_m"`
	IOffset   float64 `json:"i_offset"`
	A         float64 `json:"a"`
	B         float64 `json:"b"`
	DeltaT    float64 `json:"delta_t"`
	TauW      float64 `json:"tau_w"`
	VThresh   float64 `json:"v_thresh"`
	ERevE     float64 `json:"e_rev_E"`
	TauSynE   float64 `json:"tau_syn_E"`
	ERevI     float64 `json:"e_rev_I"`
	TauSynI   float64 `json:"tau_syn_I"`
}

type ifFields struct {
	Cm        float64 `json:"cm"`
	TauM      float64 `json:"tau_m"`
	VRest     float64 `json:"v_rest"`
	VThresh   float64 `json:"v_thresh"`
	TauRefrac float64 `json:"tau_refrac"`
	VReset    float64 `json:"v_reset"`
	TauSynE   float64 `json:"tau_syn_E"`
	TauSynI   float64 `json:"tau_syn_I"`
	ERevE     float64 `json:"e_rev_E"`
	ERevI     float64 `json:"e_rev_I"`
	IOffset   float64 `json:"i_offset"`
}

func decodeCell(v cue.Value) (hmf.Cell, error) {
	model, err := v.LookupPath(cue.ParsePath("model")).String()
	if err != nil {
		return nil, invalid(err)
	}
	switch model {
	case hmf.ModelEIFCondExpIsfaIsta:
		var f eifFields
		if err := v.Decode(&f); err != nil {
			return nil, invalid(err)
		}
		return hmf.EIFCondExpIsfaIsta(f), nil
	case hmf.ModelIFCondExp:
		var f ifFields
		if err := v.Decode(&f); err != nil {
			return nil, invalid(err)
		}
		return hmf.IFCondExp(f), nil
	default:
		return nil, calerr.InvalidArgument("unsupported model %q", model)
	}
}

// Values returns the parameters of c keyed by their file names.
func Values(c hmf.Cell) map[string]float64 {
	switch c := c.(type) {
	case hmf.EIFCondExpIsfaIsta:
		return map[string]float64{
			"cm": c.Cm, "tau_refrac": c.TauRefrac, "v_spike": c.VSpike,
			"v_reset": c.VReset, "v_rest": c.VRest, "tau_m": c.TauM,
			"i_offset": c.IOffset, "a": c.A, "b": c.B, "delta_t": c.DeltaT,
			"tau_w": c.TauW, "v_thresh": c.VThresh, "e_rev_E": c.ERevE,
			"tau_syn_E": c.TauSynE, "e_rev_I": c.ERevI, "tau_syn_I": c.TauSynI,
		}
	case hmf.IFCondExp:
		return map[string]float64{
			"cm": c.Cm, "tau_m": c.TauM, "v_rest": c.VRest, "v_thresh": c.VThresh,
			"tau_refrac": c.TauRefrac, "v_reset": c.VReset, "tau_syn_E": c.TauSynE,
			"tau_syn_I": c.TauSynI, "e_rev_E": c.ERevE, "e_rev_I": c.ERevI,
			"i_offset": c.IOffset,
		}
	default:
		return nil
	}
}
