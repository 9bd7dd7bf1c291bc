package adc

import (
	"fmt"
	"io"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"

	"github.com/roach88/calibtic/internal/calerr"
)

// DefaultFitOrder is the polynomial order used when none is given.
const DefaultFitOrder = 2

// DataPoint is one reference measurement: the applied voltage, the mean
// raw code read back and its standard deviation.
type DataPoint struct {
	Ref  float64 `yaml:"ref"`
	Mean float64 `yaml:"mean"`
	Std  float64 `yaml:"std"`
}

// VoltageMeasurement is the series of data points of one channel.
type VoltageMeasurement struct {
	Channel Channel     `yaml:"channel"`
	Points  []DataPoint `yaml:"points"`
}

// MeasurementFile is the YAML layout read by ReadMeasurements.
type MeasurementFile struct {
	Serial       string               `yaml:"serial"`
	Measurements []VoltageMeasurement `yaml:"measurements"`
}

// ReadMeasurements decodes and checks a measurement file.
func ReadMeasurements(r io.Reader) (*MeasurementFile, error) {
	var f MeasurementFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, calerr.InvalidArgument("parse measurements: %v", err)
	}
	for _, m := range f.Measurements {
		if !m.Channel.Valid() {
			return nil, calerr.InvalidArgument("invalid ADC channel %d", int(m.Channel))
		}
		if err := m.Check(); err != nil {
			return nil, fmt.Errorf("%s: %w", m.Channel, err)
		}
	}
	return &f, nil
}

// Add appends a data point.
func (m *VoltageMeasurement) Add(ref, mean, std float64) {
	m.Points = append(m.Points, DataPoint{Ref: ref, Mean: mean, Std: std})
}

// Len is the number of data points.
func (m VoltageMeasurement) Len() int { return len(m.Points) }

// Check rejects points that cannot be weighted.
func (m VoltageMeasurement) Check() error {
	if len(m.Points) == 0 {
		return calerr.InvalidArgument("no data points")
	}
	stds := m.column(func(p DataPoint) float64 { return p.Std })
	if lo := floats.Min(stds); !(lo > 0) || math.IsInf(floats.Max(stds), 0) {
		return calerr.InvalidArgument("standard deviations must be positive and finite")
	}
	return nil
}

// MeanRange returns the smallest and largest measured mean.
func (m VoltageMeasurement) MeanRange() (lo, hi float64) {
	means := m.column(func(p DataPoint) float64 { return p.Mean })
	return floats.Min(means), floats.Max(means)
}

func (m VoltageMeasurement) column(f func(DataPoint) float64) []float64 {
	out := make([]float64, len(m.Points))
	for i, p := range m.Points {
		out[i] = f(p)
	}
	return out
}

// Fit returns the coefficients of the polynomial ref(mean) of the given
// order, weighting each point with 1/std².
func (m VoltageMeasurement) Fit(order int) ([]float64, error) {
	if order < 0 {
		return nil, calerr.InvalidArgument("negative polynomial order %d", order)
	}
	n, k := len(m.Points), order+1
	if n < k {
		return nil, calerr.InvalidArgument("Order of polynomial has to be < #data points: %d points for order %d", n, order)
	}
	if err := m.Check(); err != nil {
		return nil, err
	}

	// Scaling every row by sqrt(w) turns the weighted problem into an
	// ordinary least-squares problem.
	x := mat.NewDense(n, k, nil)
	y := mat.NewVecDense(n, nil)
	for i, p := range m.Points {
		sw := 1 / p.Std
		pow := 1.0
		for j := range k {
			x.Set(i, j, pow*sw)
			pow *= p.Mean
		}
		y.SetVec(i, p.Ref*sw)
	}

	var c mat.VecDense
	if err := c.SolveVec(x, y); err != nil {
		return nil, calerr.InvalidArgument("fit failed: %v", err)
	}
	coeffs := make([]float64, k)
	for j := range k {
		coeffs[j] = c.AtVec(j)
	}
	return coeffs, nil
}
