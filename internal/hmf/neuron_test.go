package hmf

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/calibtic/internal/calerr"
	"github.com/roach88/calibtic/internal/calib"
	"github.com/roach88/calibtic/internal/schema"
	"github.com/roach88/calibtic/internal/trafo"
)

// referenceCell is a parameter set inside the usual biological regime with
// hand-computed DAC codes.
func referenceCell() EIFCondExpIsfaIsta {
	return EIFCondExpIsfaIsta{
		TauRefrac: 1.0,
		A:         2.5,
		TauM:      10.0,
		ERevE:     0.0,
		Cm:        0.24,
		DeltaT:    1.2,
		ERevI:     -80.0,
		VThresh:   -40.0,
		B:         0.05,
		TauSynE:   2,
		VSpike:    0.0,
		TauSynI:   2,
		TauW:      30.0,
		VRest:     -60.0,
	}
}

func TestParameterNamesRoundTrip(t *testing.T) {
	for p := range NeuronParameterCount {
		got, err := ParseNeuronParameter(NeuronParameter(p).String())
		require.NoError(t, err)
		assert.Equal(t, NeuronParameter(p), got)
	}
	for p := range SharedParameterCount {
		got, err := ParseSharedParameter(SharedParameter(p).String())
		require.NoError(t, err)
		assert.Equal(t, SharedParameter(p), got)
	}
	for c := range CalibrationParameterCount {
		got, err := ParseCalibrationParameter(CalibrationParameter(c).String())
		require.NoError(t, err)
		assert.Equal(t, CalibrationParameter(c), got)
	}
}

func TestParameterNames(t *testing.T) {
	assert.Equal(t, "int_op_bias", Int_op_bias.String())
	assert.Equal(t, "I_gl_slow0_fast0_bigcap1", DefaultNeuronCalibrationParameters().IGl().String())
	assert.Equal(t, "NeuronParameter(99)", NeuronParameter(99).String())

	_, err := ParseNeuronParameter("I_nonexistent")
	require.Error(t, err)
	assert.True(t, calerr.IsNotFound(err))

	_, err = ParseSharedParameter("")
	assert.True(t, calerr.IsNotFound(err))
}

func TestNeuronCalibrationParameters_VariantSlots(t *testing.T) {
	p := DefaultNeuronCalibrationParameters()
	assert.False(t, p.Modified())
	assert.Equal(t, BigCap, p.Cap())
	assert.Equal(t, CalI_gl_slow0_fast0_bigcap1, p.IGl())

	p.Bigcap = false
	p.IGlSlow = true
	p.IRadaptFast = true
	assert.True(t, p.Modified())
	assert.Equal(t, SmallCap, p.Cap())
	assert.Equal(t, CalI_gl_slow1_fast0_bigcap0, p.IGl())
	assert.Equal(t, CalI_gladapt_slow0_fast0_bigcap0, p.IGladapt())
	assert.Equal(t, CalI_radapt_slow0_fast1_bigcap0, p.IRadapt())
}

func TestApplyNeuronCalibration_Reference(t *testing.T) {
	nc := DefaultNeuronCalibration(calib.Env{})

	h, err := nc.ApplyNeuronCalibration(referenceCell(), 1e4, DefaultNeuronCalibrationParameters())
	require.NoError(t, err)

	want := map[NeuronParameter]int{
		I_pl:      102,
		I_gladapt: 25,
		I_gl:      189,
		E_syni:    227,
		E_synx:    721,
		I_rexp:    832,
		I_fire:    736,
		V_syntcx:  481,
		V_syntci:  481,
		V_t:       682,
		I_radapt:  819,
		E_l:       341,
		V_exp:     455,
	}
	for p, v := range want {
		assert.Equal(t, v, h.Get(p), p.String())
	}
}

func TestApplyNeuronCalibration_Golden(t *testing.T) {
	nc := DefaultNeuronCalibration(calib.Env{})

	h, err := nc.ApplyNeuronCalibration(referenceCell(), 1e4, DefaultNeuronCalibrationParameters())
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "reference_cell_dac", []byte(h.String()))
}

func TestApplyNeuronCalibration_DisabledBlocks(t *testing.T) {
	nc := DefaultNeuronCalibration(calib.Env{})
	cell := referenceCell()
	cell.A = 0
	cell.B = 0
	cell.DeltaT = 0

	h, err := nc.ApplyNeuronCalibration(cell, 1e4, DefaultNeuronCalibrationParameters())
	require.NoError(t, err)

	assert.Equal(t, 0, h[I_gladapt])
	assert.Equal(t, 0, h[I_fire])
	assert.Equal(t, MaxFGValue, h[V_exp])
	assert.Equal(t, MaxFGValue, h[I_rexp])
	assert.Equal(t, MaxFGValue, h[I_bexp])

	h[I_radapt] = MaxFGValue
	bio, err := nc.ApplyNeuronReverse(h, 1e4, cell.Cm, DefaultNeuronCalibrationParameters())
	require.NoError(t, err)
	assert.Zero(t, bio.A)
	assert.Zero(t, bio.B)
	assert.Zero(t, bio.DeltaT)
	assert.Zero(t, bio.TauW)
}

func TestApplyNeuronCalibration_IFCondExp(t *testing.T) {
	nc := DefaultNeuronCalibration(calib.Env{})
	params := DefaultNeuronCalibrationParameters()
	cell := DefaultIFCondExp()

	h, err := nc.ApplyNeuronCalibration(cell, 1e4, params)
	require.NoError(t, err)

	assert.Equal(t, 0, h[I_fire])
	assert.Equal(t, 0, h[I_gladapt])
	assert.Equal(t, MaxFGValue, h[I_radapt])
	assert.Equal(t, MaxFGValue, h[V_exp])
	assert.Equal(t, IdealVoltToDAC(ScaleVoltage(cell.VThresh, params.ShiftV, params.AlphaV)), h[V_t])
	assert.Equal(t, IdealVoltToDAC(ScaleVoltage(cell.VRest, params.ShiftV, params.AlphaV)), h[E_l])
}

func TestApplyNeuronReverse_Reference(t *testing.T) {
	nc := DefaultNeuronCalibration(calib.Env{})

	var h HWNeuronParameter
	for _, p := range []NeuronParameter{E_l, I_gl, I_gladapt, I_radapt, I_rexp, I_fire, E_synx, E_syni, V_exp, I_pl, V_t} {
		h.Set(p, 511)
	}
	h.Set(V_syntcx, 487)
	h.Set(V_syntci, 487)

	bio, err := nc.ApplyNeuronReverse(h, 1e4, 100*BigCap, DefaultNeuronCalibrationParameters())
	require.NoError(t, err)

	const eps = 0.001
	assert.InDelta(t, -30.088, bio.VRest, eps)
	assert.InDelta(t, 6.49585, bio.TauM, 2*eps)
	assert.InDelta(t, 30.4612, bio.A, eps)
	assert.InDelta(t, 38.6019, bio.TauW, 0.01)
	assert.InDelta(t, 0.89882, bio.DeltaT, eps)
	assert.InDelta(t, 0.02918, bio.B, eps)
	assert.InDelta(t, -34.1693, bio.ERevE, eps)
	assert.InDelta(t, -30.0879, bio.ERevI, eps)
	assert.InDelta(t, 1.96297, bio.TauSynE, 2*eps)
	assert.InDelta(t, 1.96297, bio.TauSynI, 2*eps)
	assert.InDelta(t, -30.088, bio.VThresh, eps)
	assert.InDelta(t, 0.28240, bio.TauRefrac, eps)
	assert.InDelta(t, -30.088, bio.VSpike, eps)
	assert.Equal(t, 100*BigCap, bio.Cm)
}

func TestIdealVoltToDAC_RoundTrip(t *testing.T) {
	for dac := MinFGValue; dac <= MaxFGValue; dac++ {
		assert.Equal(t, dac, IdealVoltToDAC(IdealDACToVolt(dac)))
	}
	assert.Equal(t, MaxFGValue, IdealVoltToDAC(5))
	assert.Equal(t, MinFGValue, IdealVoltToDAC(-1))
}

func TestNeuronCalibration_ToDACClips(t *testing.T) {
	var buf bytes.Buffer
	env := calib.NewEnv(slog.New(slog.NewTextHandler(&buf, nil)))
	nc := DefaultNeuronCalibration(env)

	require.NoError(t, nc.Reset(CalI_convi, trafo.NewConstant(2000)))
	require.NoError(t, nc.Reset(CalI_convx, trafo.NewConstant(-5)))

	dac, err := nc.ToDAC(0, CalI_convi)
	require.NoError(t, err)
	assert.Equal(t, MaxFGValue, dac)

	dac, err = nc.ToDAC(0, CalI_convx)
	require.NoError(t, err)
	assert.Equal(t, MinFGValue, dac)

	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "digital FG value clipped")
}

func TestNeuronCalibration_FallsBackToDefaults(t *testing.T) {
	var buf bytes.Buffer
	env := calib.NewEnv(slog.New(slog.NewTextHandler(&buf, nil)))
	nc := NewNeuronCalibration(env)

	dac, err := nc.ToDAC(1.2, CalE_l)
	require.NoError(t, err)
	assert.Equal(t, 682, dac)

	v, err := nc.FromDAC(682, CalV_t)
	require.NoError(t, err)
	assert.InDelta(t, 1.2, v, 1e-3)

	assert.Contains(t, buf.String(), "level=INFO")
	assert.Contains(t, buf.String(), "default transformation")
}

func TestNeuronCalibration_EmptyCalibrationStillCalibrates(t *testing.T) {
	nc := NewNeuronCalibration(calib.Env{})
	def := DefaultNeuronCalibration(calib.Env{})

	got, err := nc.ApplyNeuronCalibration(referenceCell(), 1e4, DefaultNeuronCalibrationParameters())
	require.NoError(t, err)
	want, err := def.ApplyNeuronCalibration(referenceCell(), 1e4, DefaultNeuronCalibrationParameters())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestNeuronCalibration_Check(t *testing.T) {
	nc := DefaultNeuronCalibration(calib.Env{})
	require.NoError(t, nc.Check())

	nc.Calibration().Resize(10)
	err := nc.Check()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wrong data set size in NeuronCalibration")

	_, err = nc.ApplyNeuronCalibration(referenceCell(), 1e4, DefaultNeuronCalibrationParameters())
	require.Error(t, err)
	assert.Error(t, nc.SetDefaults())
}

func TestNeuronCalibration_EncodeDecode(t *testing.T) {
	nc := DefaultNeuronCalibration(calib.Env{})
	require.NoError(t, nc.SetHICANNv4Defaults())

	enc, err := schema.EncodeNested(nc)
	require.NoError(t, err)

	got := NewNeuronCalibration(calib.Env{})
	require.NoError(t, schema.DecodeNested(enc, got))
	assert.True(t, nc.Equal(got))
	assert.Equal(t, CalibrationParameterCount, got.Calibration().Size())
}

func TestNeuronCalibration_DecodeRejectsWrongSlotCount(t *testing.T) {
	body, err := calib.NewCalibration(3).EncodeValue()
	require.NoError(t, err)

	err = NewNeuronCalibration(calib.Env{}).DecodeValue(schema.VersionNeuronCalibration, body)
	require.Error(t, err)
	assert.True(t, calerr.IsIncompatible(err))
}

func TestScaleParameters(t *testing.T) {
	c := referenceCell()
	s := ScaleParameters(c, 1.2, 10, 1e4, BigCap)

	assert.InDelta(t, 0.6, s.VRest, 1e-12)
	assert.InDelta(t, 1e-6, s.TauM, 1e-18)
	assert.InDelta(t, 0.012, s.DeltaT, 1e-12)
	assert.Equal(t, BigCap, s.Cm)
	assert.InDelta(t, c.VRest, ReverseScaleVoltage(s.VRest, 1.2, 10), 1e-9)
	assert.InDelta(t, c.A, ReverseScaleConductance(s.A, 1e4, c.Cm, BigCap), 1e-9)
	assert.InDelta(t, c.B, ReverseScaleCurrent(s.B, 1e4, c.Cm, 10, BigCap), 1e-9)
}
