package hmf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/calibtic/internal/calib"
	"github.com/roach88/calibtic/internal/schema"
	"github.com/roach88/calibtic/internal/trafo"
)

func defaultShared(t *testing.T) *SharedCalibration {
	t.Helper()
	sc := NewSharedCalibration(calib.Env{})
	sc.SetDefaults()
	require.Equal(t, SharedParameterCount, sc.Calibration().Size())
	return sc
}

func TestSharedCalibration_VReset(t *testing.T) {
	sc := defaultShared(t)

	for vReset, want := range map[float64]int{0: 0, 0.5: 284, 1.0: 568, 1.5: 852} {
		h, err := sc.ApplySharedCalibration(vReset)
		require.NoError(t, err)
		assert.Equal(t, want, h.Get(V_reset), "v_reset %v", vReset)

		m, err := sc.ApplySharedReverse(h)
		require.NoError(t, err)
		assert.InDelta(t, vReset, m.VReset, MaxTechnVoltage/1000)
	}
}

func TestSharedCalibration_Biases(t *testing.T) {
	sc := defaultShared(t)

	h, err := sc.ApplySharedCalibration(0.5)
	require.NoError(t, err)

	assert.Equal(t, MaxFGValue, h[I_breset])
	assert.Equal(t, MaxFGValue, h[I_bstim])
	assert.Equal(t, MaxFGValue, h[Int_op_bias])
	assert.Equal(t, MaxFGValue, h[V_bout])
	assert.Equal(t, MaxFGValue, h[V_bexp])
	assert.Equal(t, 400, h[V_dllres])
	assert.Equal(t, 800, h[V_ccas])
	for _, p := range []SharedParameter{V_gmax0, V_gmax1, V_gmax2, V_gmax3} {
		assert.Equal(t, 50, h[p], p.String())
	}
	for _, p := range stdpParameters {
		assert.Zero(t, h[p], p.String())
	}
}

func TestSharedCalibration_BiasFallbacks(t *testing.T) {
	sc := NewSharedCalibration(calib.Env{})
	require.NoError(t, sc.Reset(V_reset, trafo.MustPolynomial([]float64{0, MaxFGValue / MaxTechnVoltage}, 0, MaxTechnVoltage)))

	h, err := sc.ApplySharedCalibration(0.5)
	require.NoError(t, err)
	assert.Equal(t, 306, h[V_bout])
	assert.Equal(t, 600, h[V_ccas])
	assert.Equal(t, MaxFGValue, h[V_dllres])
}

func TestSharedCalibration_MissingVReset(t *testing.T) {
	_, err := NewSharedCalibration(calib.Env{}).ApplySharedCalibration(0.5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "V_reset")
}

func TestSharedCalibration_ShortTermPlasticity(t *testing.T) {
	sc := defaultShared(t)

	depression := ModelSharedParameter{VReset: 0.5, TauRec: 10, Lambda: 1, NDep: 0, NFac: 1}
	facilitation := ModelSharedParameter{VReset: 0.5, TauRec: 5, Lambda: 1, NDep: 0, NFac: (1 - 2*0.15) / (1 - 0.15)}

	for _, in := range []ModelSharedParameter{depression, facilitation} {
		h, err := sc.ApplyModelSharedParameter(in)
		require.NoError(t, err)
		out, err := sc.ApplySharedReverse(h)
		require.NoError(t, err)

		assert.InDelta(t, in.TauRec, out.TauRec, 0.5)
		assert.InDelta(t, in.Lambda, out.Lambda, 0.05)
		assert.InDelta(t, in.NDep, out.NDep, 0.05)
		assert.InDelta(t, in.NFac, out.NFac, 0.05)
	}

	h, err := sc.ApplyModelSharedParameter(depression)
	require.NoError(t, err)
	assert.Equal(t, 62, h[V_dtc])

	_, err = sc.ApplyModelSharedParameter(ModelSharedParameter{VReset: 0.5})
	assert.Error(t, err)
}

func TestVoltToDAC(t *testing.T) {
	assert.Equal(t, MaxFGValue, VoltToDAC(MaxTechnVoltage))
	assert.Equal(t, 0, VoltToDAC(0))
	assert.InDelta(t, 0.9, DACToVolt(VoltToDAC(0.9)), MaxTechnVoltage/MaxFGValue)
}

func TestSharedCalibration_EncodeDecode(t *testing.T) {
	sc := defaultShared(t)

	enc, err := schema.EncodeNested(sc)
	require.NoError(t, err)

	got := NewSharedCalibration(calib.Env{})
	require.NoError(t, schema.DecodeNested(enc, got))
	assert.True(t, sc.Equal(got))
}
