package cellspec

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/calibtic/internal/calerr"
	"github.com/roach88/calibtic/internal/calib"
	"github.com/roach88/calibtic/internal/hmf"
)

func expectedCells() []NamedCell {
	pyr := hmf.DefaultEIFCondExpIsfaIsta()
	pyr.TauM = 12
	pyr.VThresh = -52.5
	pyr.TauSynE = 2
	basket := hmf.DefaultIFCondExp()
	basket.Cm = 0.2
	return []NamedCell{{Name: "pyramidal", Cell: pyr}, {Name: "basket", Cell: basket}}
}

func TestLoad_Formats(t *testing.T) {
	for _, file := range []string{"cells.cue", "cells.yaml"} {
		t.Run(file, func(t *testing.T) {
			cells, err := Load(filepath.Join("testdata", file))
			require.NoError(t, err)
			assert.Equal(t, expectedCells(), cells)
		})
	}
}

func TestParse_Defaults(t *testing.T) {
	cells, err := Parse("d.cue", []byte(`cells: a: model: "EIF_cond_exp_isfa_ista"`))
	require.NoError(t, err)
	require.Len(t, cells, 1)
	assert.Equal(t, hmf.DefaultEIFCondExpIsfaIsta(), cells[0].Cell)

	cells, err = Parse("d.yml", []byte("cells:\n  a:\n    model: IF_cond_exp\n"))
	require.NoError(t, err)
	assert.Equal(t, hmf.DefaultIFCondExp(), cells[0].Cell)
}

func TestParse_Rejects(t *testing.T) {
	cases := map[string]struct {
		file, src string
	}{
		"unknown model":    {"c.cue", `cells: a: model: "HH_cond_exp"`},
		"missing model":    {"c.cue", `cells: a: tau_m: 10`},
		"unknown field":    {"c.cue", `cells: a: {model: "IF_cond_exp", tau_x: 1}`},
		"field of other":   {"c.cue", `cells: a: {model: "IF_cond_exp", tau_w: 1}`},
		"negative tau":     {"c.cue", `cells: a: {model: "IF_cond_exp", tau_m: -1}`},
		"zero capacitance": {"c.yaml", "cells:\n  a: {model: EIF_cond_exp_isfa_ista, cm: 0}\n"},
		"wrong type":       {"c.yaml", "cells:\n  a: {model: IF_cond_exp, cm: big}\n"},
		"syntax":           {"c.cue", `cells: {`},
		"yaml syntax":      {"c.yaml", "cells: [\n"},
		"no cells":         {"c.cue", `cells: {}`},
		"top level field":  {"c.cue", `neurons: {}`},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(tc.file, []byte(tc.src))
			require.Error(t, err)
			assert.Equal(t, calerr.CodeInvalidArgument, calerr.CodeOf(err), "got %v", err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.cue"))
	require.Error(t, err)
	assert.Equal(t, calerr.CodeInvalidArgument, calerr.CodeOf(err))
}

func TestParse_FeedsForwardCalibration(t *testing.T) {
	cells, err := Load(filepath.Join("testdata", "cells.cue"))
	require.NoError(t, err)

	nc := hmf.DefaultNeuronCalibration(calib.Env{})
	for _, c := range cells {
		_, err := nc.ApplyNeuronCalibration(c.Cell, 1e4, hmf.DefaultNeuronCalibrationParameters())
		require.NoError(t, err, c.Name)
	}
}

func TestValues(t *testing.T) {
	v := Values(hmf.DefaultEIFCondExpIsfaIsta())
	assert.Len(t, v, 16)
	assert.Equal(t, 144.0, v["tau_w"])
	assert.Equal(t, -80.0, v["e_rev_I"])

	v = Values(hmf.DefaultIFCondExp())
	assert.Len(t, v, 11)
	assert.Equal(t, 20.0, v["tau_m"])
	assert.NotContains(t, v, "tau_w")
}
