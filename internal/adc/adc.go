// Package adc converts raw ADC codes of the membrane readout into voltages.
//
// ADCCalibration holds one polynomial per channel and can be fitted from
// reference measurements. QuadraticADCCalibration is the flattened form
// used for bulk conversion of traces.
package adc

import (
	"fmt"
	"strings"

	"github.com/roach88/calibtic/internal/calerr"
	"github.com/roach88/calibtic/internal/calib"
	"github.com/roach88/calibtic/internal/schema"
	"github.com/roach88/calibtic/internal/trafo"
)

// Kinds of the stored ADC calibrations.
const (
	KindADCCalibration          = "ADCCalibration"
	KindQuadraticADCCalibration = "QuadraticADCCalibration"
)

// ChannelCount is the number of ADC input channels.
const ChannelCount = 8

// Channel is an ADC input channel 0..ChannelCount-1.
type Channel int

func (c Channel) String() string { return fmt.Sprintf("Channel(%d)", int(c)) }

// Valid reports whether c names an existing channel.
func (c Channel) Valid() bool { return c >= 0 && c < ChannelCount }

// Converter turns raw codes of one channel into voltages.
type Converter interface {
	schema.Entity
	Apply(ch Channel, raw []uint16) ([]float32, error)
	IsComplete() bool
}

// ADCCalibration maps raw codes to volts with one transformation per
// channel.
type ADCCalibration struct {
	cal *calib.Calibration
}

// NewADCCalibration creates a calibration without channel data.
func NewADCCalibration() *ADCCalibration {
	return &ADCCalibration{cal: calib.NewCalibration(ChannelCount)}
}

// linear returns a calibration using a0 + a1·raw on every channel.
func linear(a0, a1 float64) *ADCCalibration {
	a := NewADCCalibration()
	for ch := range Channel(ChannelCount) {
		if err := a.Reset(ch, trafo.MustPolynomial([]float64{a0, a1}, 0, trafo.DomainMax)); err != nil {
			panic(err)
		}
	}
	return a
}

// DefaultCalibration maps the 12 bit range linearly onto 1.8 V to 0 V.
func DefaultCalibration() *ADCCalibration {
	return linear(1.8, -1.8/4095)
}

// ESSCalibration maps the 16 bit range of the simulated ADC onto 0 V to
// 1.8 V.
func ESSCalibration() *ADCCalibration {
	return linear(0, 1.8/65535)
}

// Reset replaces the transformation of ch.
func (a *ADCCalibration) Reset(ch Channel, t trafo.Transformation) error {
	if !ch.Valid() {
		return calerr.InvalidArgument("invalid ADC channel %d", int(ch))
	}
	return a.cal.Reset(int(ch), t)
}

// At returns the transformation of ch.
func (a *ADCCalibration) At(ch Channel) (trafo.Transformation, error) {
	return a.cal.At(int(ch))
}

// IsComplete reports whether every channel is calibrated.
func (a *ADCCalibration) IsComplete() bool {
	if a.cal.Capacity() != ChannelCount {
		return false
	}
	for ch := range ChannelCount {
		if !a.cal.Exists(ch) {
			return false
		}
	}
	return true
}

// Apply converts raw codes of ch to volts.
func (a *ADCCalibration) Apply(ch Channel, raw []uint16) ([]float32, error) {
	if !a.IsComplete() {
		return nil, calerr.Uncalibrated("invalid ADC Calibration")
	}
	t, err := a.At(ch)
	if err != nil {
		return nil, err
	}
	out := make([]float32, len(raw))
	for i, r := range raw {
		v, err := t.Apply(float64(r), trafo.Ignore)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", ch, i, err)
		}
		out[i] = float32(v)
	}
	return out, nil
}

// MakePolynomialTrafo fits a polynomial of the given order to m and stores
// it for ch.
func (a *ADCCalibration) MakePolynomialTrafo(ch Channel, m VoltageMeasurement, order int) error {
	coeffs, err := m.Fit(order)
	if err != nil {
		return fmt.Errorf("%s: %w", ch, err)
	}
	p, err := trafo.NewPolynomial(coeffs, 0, trafo.DomainMax)
	if err != nil {
		return fmt.Errorf("%s: %w", ch, err)
	}
	return a.Reset(ch, p)
}

func (a *ADCCalibration) Equal(o *ADCCalibration) bool {
	return o != nil && a.cal.Equal(o.cal)
}

func (a *ADCCalibration) String() string {
	var b strings.Builder
	b.WriteString("ADCCalibration:\n")
	for ch := range Channel(ChannelCount) {
		t, err := a.At(ch)
		if err != nil {
			fmt.Fprintf(&b, "%s\t-\n", ch)
			continue
		}
		fmt.Fprintf(&b, "%s\t%s\n", ch, t)
	}
	return b.String()
}

func (a *ADCCalibration) Kind() string       { return KindADCCalibration }
func (a *ADCCalibration) SchemaVersion() int { return schema.VersionADCCalibration }

func (a *ADCCalibration) EncodeValue() (schema.Object, error) {
	return a.cal.EncodeValue()
}

func (a *ADCCalibration) DecodeValue(version int, body schema.Object) error {
	return a.cal.DecodeValue(version, body)
}

// QuadraticCoefficients are the coefficients of a·x² + b·x + c.
type QuadraticCoefficients struct {
	A float64 `yaml:"a" json:"a"`
	B float64 `yaml:"b" json:"b"`
	C float64 `yaml:"c" json:"c"`
}

func (q QuadraticCoefficients) apply(x float64) float64 {
	return (q.A*x+q.B)*x + q.C
}

// QuadraticADCCalibration evaluates a fixed quadratic per channel without
// domain handling.
type QuadraticADCCalibration struct {
	Coefficients [ChannelCount]QuadraticCoefficients
}

// ConvertToQuadraticADCCalibration flattens a complete calibration whose
// channels are polynomials of degree two or less.
func ConvertToQuadraticADCCalibration(a *ADCCalibration) (*QuadraticADCCalibration, error) {
	if !a.IsComplete() {
		return nil, calerr.Uncalibrated("Cannot convert incomplete ADCCalibration.")
	}
	q := &QuadraticADCCalibration{}
	for ch := range Channel(ChannelCount) {
		t, err := a.At(ch)
		if err != nil {
			return nil, err
		}
		p, ok := t.(*trafo.Polynomial)
		if !ok || p.Degree() > 2 {
			return nil, calerr.InvalidArgument(
				"Cannot convert ADCCalibration: %s is %s, need a polynomial of degree two or less", ch, t)
		}
		c := p.Coefficients()
		q.Coefficients[ch].C = c[0]
		if len(c) > 1 {
			q.Coefficients[ch].B = c[1]
		}
		if len(c) > 2 {
			q.Coefficients[ch].A = c[2]
		}
	}
	return q, nil
}

// IsComplete is always true: every channel has coefficients.
func (q *QuadraticADCCalibration) IsComplete() bool { return true }

// Apply converts raw codes of ch to volts.
func (q *QuadraticADCCalibration) Apply(ch Channel, raw []uint16) ([]float32, error) {
	if !ch.Valid() {
		return nil, calerr.InvalidArgument("invalid ADC channel %d", int(ch))
	}
	coeffs := q.Coefficients[ch]
	out := make([]float32, len(raw))
	for i, r := range raw {
		out[i] = float32(coeffs.apply(float64(r)))
	}
	return out, nil
}

func (q *QuadraticADCCalibration) Equal(o *QuadraticADCCalibration) bool {
	return o != nil && q.Coefficients == o.Coefficients
}

func (q *QuadraticADCCalibration) String() string {
	var b strings.Builder
	b.WriteString("QuadraticADCCalibration:\n")
	for ch, c := range q.Coefficients {
		fmt.Fprintf(&b, "%s\ta=%g b=%g c=%g\n", Channel(ch), c.A, c.B, c.C)
	}
	return b.String()
}

func (q *QuadraticADCCalibration) Kind() string       { return KindQuadraticADCCalibration }
func (q *QuadraticADCCalibration) SchemaVersion() int { return schema.VersionQuadraticADC }

func (q *QuadraticADCCalibration) EncodeValue() (schema.Object, error) {
	channels := make(schema.List, 0, ChannelCount)
	for _, c := range q.Coefficients {
		channels = append(channels, schema.Floats([]float64{c.A, c.B, c.C}))
	}
	return schema.Object{"channels": channels}, nil
}

func (q *QuadraticADCCalibration) DecodeValue(_ int, body schema.Object) error {
	channels, err := body.List("channels")
	if err != nil {
		return err
	}
	if len(channels) != ChannelCount {
		return calerr.Incompatible("channels", "stored %d channels, want %d", len(channels), ChannelCount)
	}
	var out QuadraticADCCalibration
	for ch, v := range channels {
		l, ok := v.(schema.List)
		if !ok {
			return calerr.Incompatible("channels", "channel %d: expected list, got %T", ch, v)
		}
		c, err := l.Floats()
		if err != nil {
			return err
		}
		if len(c) != 3 {
			return calerr.Incompatible("channels", "channel %d: %d coefficients, want 3", ch, len(c))
		}
		out.Coefficients[ch] = QuadraticCoefficients{A: c[0], B: c[1], C: c[2]}
	}
	*q = out
	return nil
}
