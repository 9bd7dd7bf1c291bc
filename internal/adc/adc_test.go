package adc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/calibtic/internal/calerr"
	"github.com/roach88/calibtic/internal/schema"
	"github.com/roach88/calibtic/internal/trafo"
)

func linearMeasurement(n int) VoltageMeasurement {
	var m VoltageMeasurement
	for i := range n {
		m.Add(0.2+0.01*float64(i), float64(i), 1)
	}
	return m
}

func TestDefaultCalibration(t *testing.T) {
	a := DefaultCalibration()
	require.True(t, a.IsComplete())

	v, err := a.Apply(3, []uint16{0, 4095})
	require.NoError(t, err)
	assert.InDelta(t, 1.8, v[0], 1e-6)
	assert.InDelta(t, 0, v[1], 1e-6)

	ess := ESSCalibration()
	v, err = ess.Apply(0, []uint16{65535})
	require.NoError(t, err)
	assert.InDelta(t, 1.8, v[0], 1e-6)
}

func TestApply_Incomplete(t *testing.T) {
	a := NewADCCalibration()
	require.NoError(t, a.Reset(0, trafo.MustPolynomial([]float64{0, 1}, 0, trafo.DomainMax)))

	_, err := a.Apply(0, []uint16{1})
	require.Error(t, err)
	assert.True(t, calerr.IsUncalibrated(err))
}

func TestReset_InvalidChannel(t *testing.T) {
	err := NewADCCalibration().Reset(ChannelCount, trafo.NewConstant(1))
	require.Error(t, err)
	assert.Equal(t, calerr.CodeInvalidArgument, calerr.CodeOf(err))
}

func TestMakePolynomialTrafo(t *testing.T) {
	a := NewADCCalibration()
	m := linearMeasurement(10)
	for ch := range Channel(ChannelCount) {
		require.NoError(t, a.MakePolynomialTrafo(ch, m, DefaultFitOrder))
	}
	require.True(t, a.IsComplete())

	tr, err := a.At(2)
	require.NoError(t, err)
	p, ok := tr.(*trafo.Polynomial)
	require.True(t, ok)
	c := p.Coefficients()
	require.Len(t, c, 3)
	assert.InDelta(t, 0.2, c[0], 1e-9)
	assert.InDelta(t, 0.01, c[1], 1e-9)
	assert.InDelta(t, 0, c[2], 1e-9)

	v, err := a.Apply(2, []uint16{5})
	require.NoError(t, err)
	assert.InDelta(t, 0.25, v[0], 1e-6)
}

func TestFit_WeightsByStd(t *testing.T) {
	m := linearMeasurement(10)
	m.Add(10, 5.5, 1e6)

	c, err := m.Fit(1)
	require.NoError(t, err)
	assert.InDelta(t, 0.2, c[0], 1e-4)
	assert.InDelta(t, 0.01, c[1], 1e-4)
}

func TestFit_TooFewPoints(t *testing.T) {
	_, err := linearMeasurement(2).Fit(2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Order of polynomial has to be < #data points")

	var zeroStd VoltageMeasurement
	zeroStd.Add(0, 0, 0)
	zeroStd.Add(1, 1, 0)
	_, err = zeroStd.Fit(1)
	assert.Error(t, err)
}

func TestConvertToQuadraticADCCalibration(t *testing.T) {
	a := DefaultCalibration()
	q, err := ConvertToQuadraticADCCalibration(a)
	require.NoError(t, err)

	raw := []uint16{0, 17, 1000, 4095}
	for ch := range Channel(ChannelCount) {
		want, err := a.Apply(ch, raw)
		require.NoError(t, err)
		got, err := q.Apply(ch, raw)
		require.NoError(t, err)
		assert.InDeltaSlice(t, want, got, 1e-6)
	}
}

func TestConvertToQuadraticADCCalibration_Rejects(t *testing.T) {
	_, err := ConvertToQuadraticADCCalibration(NewADCCalibration())
	require.Error(t, err)
	assert.True(t, calerr.IsUncalibrated(err))

	a := DefaultCalibration()
	require.NoError(t, a.Reset(4, trafo.MustPolynomial([]float64{0, 0, 0, 1}, 0, trafo.DomainMax)))
	_, err = ConvertToQuadraticADCCalibration(a)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Channel(4)")

	require.NoError(t, a.Reset(4, trafo.NewConstant(1)))
	_, err = ConvertToQuadraticADCCalibration(a)
	assert.Error(t, err)
}

func TestEncodeDecode(t *testing.T) {
	a := DefaultCalibration()
	enc, err := schema.EncodeNested(a)
	require.NoError(t, err)
	gotA := NewADCCalibration()
	require.NoError(t, schema.DecodeNested(enc, gotA))
	assert.True(t, a.Equal(gotA))

	q, err := ConvertToQuadraticADCCalibration(a)
	require.NoError(t, err)
	enc, err = schema.EncodeNested(q)
	require.NoError(t, err)
	gotQ := &QuadraticADCCalibration{}
	require.NoError(t, schema.DecodeNested(enc, gotQ))
	assert.True(t, q.Equal(gotQ))
}

func TestReadMeasurements(t *testing.T) {
	const doc = `
serial: B201290
measurements:
  - channel: 1
    points:
      - {ref: 0.2, mean: 0, std: 1}
      - {ref: 0.21, mean: 1, std: 1}
      - {ref: 0.22, mean: 2, std: 1}
`
	f, err := ReadMeasurements(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, "B201290", f.Serial)
	require.Len(t, f.Measurements, 1)
	assert.Equal(t, Channel(1), f.Measurements[0].Channel)
	assert.Equal(t, 3, f.Measurements[0].Len())

	lo, hi := f.Measurements[0].MeanRange()
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 2.0, hi)

	_, err = ReadMeasurements(strings.NewReader("measurements:\n  - channel: 9\n    points: [{ref: 1, mean: 1, std: 1}]\n"))
	assert.Error(t, err)
	_, err = ReadMeasurements(strings.NewReader("bogus: 1\n"))
	assert.Error(t, err)
}
