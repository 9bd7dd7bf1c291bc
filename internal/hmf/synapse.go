package hmf

import (
	"cmp"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/roach88/calibtic/internal/calerr"
	"github.com/roach88/calibtic/internal/calib"
	"github.com/roach88/calibtic/internal/schema"
	"github.com/roach88/calibtic/internal/trafo"
)

// Kinds of the stored synapse calibrations.
const (
	KindSynapseCalibration        = "SynapseCalibration"
	KindSTPUtilizationCalibration = "STPUtilizationCalibration"
)

// Digital synapse weight range.
const (
	MinDigitalWeight = 0
	MaxDigitalWeight = 15
)

// GmaxConfig selects the maximum conductance of a synapse row: one of four
// shared V_gmax references and a divisor.
type GmaxConfig struct {
	SelVgmax int
	GmaxDiv  int
}

// NewGmaxConfig validates sel in [0, 3] and div in [1, 15].
func NewGmaxConfig(sel, div int) (GmaxConfig, error) {
	if sel < 0 || sel > 3 {
		return GmaxConfig{}, calerr.InvalidArgument("sel_Vgmax %d outside of [0, 3]", sel)
	}
	if div < 1 || div > 15 {
		return GmaxConfig{}, calerr.InvalidArgument("gmax_div %d outside of [1, 15]", div)
	}
	return GmaxConfig{SelVgmax: sel, GmaxDiv: div}, nil
}

// MustGmaxConfig is like NewGmaxConfig but panics on error.
func MustGmaxConfig(sel, div int) GmaxConfig {
	g, err := NewGmaxConfig(sel, div)
	if err != nil {
		panic(err)
	}
	return g
}

// DefaultGmaxConfig is the configuration the default synapse calibration
// was measured with.
func DefaultGmaxConfig() GmaxConfig {
	return GmaxConfig{SelVgmax: 0, GmaxDiv: 11}
}

// Compare orders by SelVgmax, then GmaxDiv.
func (g GmaxConfig) Compare(o GmaxConfig) int {
	return cmp.Or(cmp.Compare(g.SelVgmax, o.SelVgmax), cmp.Compare(g.GmaxDiv, o.GmaxDiv))
}

func (g GmaxConfig) String() string {
	return fmt.Sprintf("GmaxConfig(sel_Vgmax=%d, gmax_div=%d)", g.SelVgmax, g.GmaxDiv)
}

// SynapseCalibration maps a digital weight to an analog weight in nS with a
// single transformation.
type SynapseCalibration struct {
	cal *calib.Calibration
	rng *rand.Rand
}

// NewSynapseCalibration creates an empty calibration that rounds with the
// global random source.
func NewSynapseCalibration() *SynapseCalibration {
	return &SynapseCalibration{cal: calib.NewCalibration(1)}
}

// NewSynapseCalibrationFrom wraps t.
func NewSynapseCalibrationFrom(t trafo.Transformation) *SynapseCalibration {
	sc := NewSynapseCalibration()
	if err := sc.cal.Reset(0, t); err != nil {
		panic(err)
	}
	return sc
}

// WithSource makes stochastic rounding draw from src.
func (sc *SynapseCalibration) WithSource(src rand.Source) *SynapseCalibration {
	sc.rng = rand.New(src)
	return sc
}

// Clone copies the transformation. The random source is shared.
func (sc *SynapseCalibration) Clone() *SynapseCalibration {
	return &SynapseCalibration{cal: sc.cal.Clone(), rng: sc.rng}
}

// Reset replaces the transformation.
func (sc *SynapseCalibration) Reset(t trafo.Transformation) {
	if err := sc.cal.Reset(0, t); err != nil {
		panic(err)
	}
}

// Trafo returns the transformation.
func (sc *SynapseCalibration) Trafo() (trafo.Transformation, error) {
	return sc.cal.At(0)
}

// SetDefaults sets the quadratic fit measured with DefaultGmaxConfig.
func (sc *SynapseCalibration) SetDefaults() {
	sc.Reset(trafo.MustPolynomial([]float64{93.9406513768, 81.3443474483, -1.59734048208},
		MinDigitalWeight, MaxDigitalWeight))
}

// GetAnalogWeight returns the analog weight of dw in nS.
func (sc *SynapseCalibration) GetAnalogWeight(dw int) (float64, error) {
	return sc.cal.Apply(0, float64(dw), trafo.Clip)
}

// GetDigitalWeight returns the digital weight that implements aw best. The
// result is clipped to the weight range. Between two neighbouring weights
// it rounds up with probability proportional to the remainder so that
// rounding does not bias the mean weight.
func (sc *SynapseCalibration) GetDigitalWeight(aw float64) (int, error) {
	lower := -1
	for dw := MinDigitalWeight; dw <= MaxDigitalWeight; dw++ {
		w, err := sc.GetAnalogWeight(dw)
		if err != nil {
			return 0, err
		}
		if w >= aw {
			break
		}
		lower = dw
	}
	switch lower {
	case -1:
		return MinDigitalWeight, nil
	case MaxDigitalWeight:
		return MaxDigitalWeight, nil
	}
	wl, err := sc.GetAnalogWeight(lower)
	if err != nil {
		return 0, err
	}
	wh, err := sc.GetAnalogWeight(lower + 1)
	if err != nil {
		return 0, err
	}
	remainder := (aw - wl) / (wh - wl)
	if sc.draw() < remainder {
		return lower + 1, nil
	}
	return lower, nil
}

func (sc *SynapseCalibration) draw() float64 {
	if sc.rng != nil {
		return sc.rng.Float64()
	}
	return rand.Float64()
}

// GetMinAnalogWeight is the analog weight of digital weight 0.
func (sc *SynapseCalibration) GetMinAnalogWeight() (float64, error) {
	return sc.GetAnalogWeight(MinDigitalWeight)
}

// GetMaxAnalogWeight is the analog weight of digital weight 15.
func (sc *SynapseCalibration) GetMaxAnalogWeight() (float64, error) {
	return sc.GetAnalogWeight(MaxDigitalWeight)
}

// CheckMonotonicIncreasing reports whether the analog weight strictly
// grows with the digital weight.
func (sc *SynapseCalibration) CheckMonotonicIncreasing() bool {
	return checkMonotonic(sc.GetAnalogWeight, MinDigitalWeight, MaxDigitalWeight)
}

func checkMonotonic(f func(int) (float64, error), lo, hi int) bool {
	prev := math.Inf(-1)
	for i := lo; i <= hi; i++ {
		v, err := f(i)
		if err != nil || v <= prev {
			return false
		}
		prev = v
	}
	return true
}

// scaled returns a copy with every polynomial coefficient multiplied by f.
func (sc *SynapseCalibration) scaled(f float64) (*SynapseCalibration, error) {
	t, err := sc.Trafo()
	if err != nil {
		return nil, err
	}
	poly, ok := t.(*trafo.Polynomial)
	if !ok {
		return nil, calerr.InvalidArgument("cannot scale %s synapse calibration", t.Kind())
	}
	coeffs := poly.Coefficients()
	for i := range coeffs {
		coeffs[i] *= f
	}
	p, err := trafo.NewPolynomial(coeffs, MinDigitalWeight, MaxDigitalWeight)
	if err != nil {
		return nil, err
	}
	return NewSynapseCalibrationFrom(p), nil
}

func (sc *SynapseCalibration) Equal(o *SynapseCalibration) bool {
	return o != nil && sc.cal.Equal(o.cal)
}

func (sc *SynapseCalibration) String() string {
	t, err := sc.Trafo()
	if err != nil {
		return "SynapseCalibration: empty"
	}
	return "SynapseCalibration: " + t.String()
}

func (sc *SynapseCalibration) Kind() string       { return KindSynapseCalibration }
func (sc *SynapseCalibration) SchemaVersion() int { return schema.VersionSynapseCalibration }

func (sc *SynapseCalibration) EncodeValue() (schema.Object, error) {
	return sc.cal.EncodeValue()
}

func (sc *SynapseCalibration) DecodeValue(version int, body schema.Object) error {
	return sc.cal.DecodeValue(version, body)
}

// STP utilization capacitor range.
const (
	MinSTPCap = 0
	MaxSTPCap = 7
)

// STPUtilizationCalibration maps the short-term plasticity capacitor
// setting to the utilization U.
type STPUtilizationCalibration struct {
	cal *calib.Calibration
}

// NewSTPUtilizationCalibration creates an empty calibration.
func NewSTPUtilizationCalibration() *STPUtilizationCalibration {
	return &STPUtilizationCalibration{cal: calib.NewCalibration(1)}
}

// SetDefaults assumes U grows linearly from 0.25 to 0.4 over the
// capacitor range.
func (s *STPUtilizationCalibration) SetDefaults() {
	t := trafo.MustPolynomial([]float64{0.25, (0.4 - 0.25) / MaxSTPCap}, MinSTPCap, MaxSTPCap)
	if err := s.cal.Reset(0, t); err != nil {
		panic(err)
	}
}

// GetUtilization returns U for cap.
func (s *STPUtilizationCalibration) GetUtilization(cap int) (float64, error) {
	return s.cal.Apply(0, float64(cap), trafo.Clip)
}

// GetMinUtilization is U at the smallest capacitor.
func (s *STPUtilizationCalibration) GetMinUtilization() (float64, error) {
	return s.GetUtilization(MinSTPCap)
}

// GetMaxUtilization is U at the largest capacitor.
func (s *STPUtilizationCalibration) GetMaxUtilization() (float64, error) {
	return s.GetUtilization(MaxSTPCap)
}

// GetCap returns the capacitor setting nearest to u.
func (s *STPUtilizationCalibration) GetCap(u float64) (int, error) {
	lower := -1
	for c := MinSTPCap; c <= MaxSTPCap; c++ {
		v, err := s.GetUtilization(c)
		if err != nil {
			return 0, err
		}
		if v >= u {
			break
		}
		lower = c
	}
	switch lower {
	case -1:
		return MinSTPCap, nil
	case MaxSTPCap:
		return MaxSTPCap, nil
	}
	ul, err := s.GetUtilization(lower)
	if err != nil {
		return 0, err
	}
	uh, err := s.GetUtilization(lower + 1)
	if err != nil {
		return 0, err
	}
	return lower + int(math.Round((u-ul)/(uh-ul))), nil
}

// CheckMonotonicIncreasing reports whether U strictly grows with cap.
func (s *STPUtilizationCalibration) CheckMonotonicIncreasing() bool {
	return checkMonotonic(s.GetUtilization, MinSTPCap, MaxSTPCap)
}

func (s *STPUtilizationCalibration) Equal(o *STPUtilizationCalibration) bool {
	return o != nil && s.cal.Equal(o.cal)
}

func (s *STPUtilizationCalibration) Kind() string       { return KindSTPUtilizationCalibration }
func (s *STPUtilizationCalibration) SchemaVersion() int { return schema.VersionSynapseCalibration }

func (s *STPUtilizationCalibration) EncodeValue() (schema.Object, error) {
	return s.cal.EncodeValue()
}

func (s *STPUtilizationCalibration) DecodeValue(version int, body schema.Object) error {
	return s.cal.DecodeValue(version, body)
}
