package hmf

import (
	"fmt"
	"math"
	"strings"

	"github.com/roach88/calibtic/internal/calib"
	"github.com/roach88/calibtic/internal/schema"
	"github.com/roach88/calibtic/internal/trafo"
)

// KindSharedCalibration tags a stored SharedCalibration.
const KindSharedCalibration = "SharedCalibration"

// HWSharedParameter holds one DAC code per shared parameter.
type HWSharedParameter [SharedParameterCount]int

// Get returns the code of p.
func (h *HWSharedParameter) Get(p SharedParameter) int { return h[p] }

// Set stores the code of p.
func (h *HWSharedParameter) Set(p SharedParameter, v int) { h[p] = v }

func (h HWSharedParameter) String() string {
	var b strings.Builder
	for i, v := range h {
		fmt.Fprintf(&b, "%s\t%d\n", SharedParameter(i), v)
	}
	return b.String()
}

// stdpParameters are zeroed by the forward calibration.
var stdpParameters = []SharedParameter{
	V_br, V_bstdf, V_clrc, V_clra, V_dep, V_dtc, V_fac, V_m, V_stdf, V_thigh, V_tlow,
}

// SharedCalibration calibrates the parameters shared by a floating-gate
// block. Slot ids are SharedParameter values.
type SharedCalibration struct {
	cal *calib.Calibration
	env calib.Env
}

// NewSharedCalibration creates an empty shared calibration.
func NewSharedCalibration(env calib.Env) *SharedCalibration {
	return &SharedCalibration{cal: calib.NewCalibration(SharedParameterCount), env: env}
}

// Calibration exposes the underlying slot table.
func (sc *SharedCalibration) Calibration() *calib.Calibration { return sc.cal }

// Reset replaces the transformation of p.
func (sc *SharedCalibration) Reset(p SharedParameter, t trafo.Transformation) error {
	return sc.cal.Reset(int(p), t)
}

// SetDefaults populates every slot.
func (sc *SharedCalibration) SetDefaults() {
	sc.cal.Resize(SharedParameterCount)
	reset := func(p SharedParameter, t trafo.Transformation) {
		if err := sc.cal.Reset(int(p), t); err != nil {
			panic(err)
		}
	}
	for p := range SharedParameterCount {
		reset(SharedParameter(p), trafo.NewConstant(0))
	}
	reset(V_reset, trafo.MustPolynomial([]float64{0, MaxFGValue / MaxTechnVoltage}, 0, MaxTechnVoltage))
	reset(V_dtc, trafo.MustPolynomial([]float64{-1.07638889, 6.31944444e-4}, 0, trafo.DomainMax))
	for p, v := range map[SharedParameter]float64{
		Int_op_bias: MaxFGValue,
		V_dllres:    400,
		V_bout:      MaxFGValue,
		V_bexp:      MaxFGValue,
		I_breset:    MaxFGValue,
		I_bstim:     MaxFGValue,
		V_ccas:      800,
		V_gmax0:     500,
		V_gmax1:     500,
		V_gmax2:     500,
		V_gmax3:     500,
	} {
		reset(p, trafo.NewConstant(v))
	}
}

// ToDAC evaluates p at v with clipping and converts the result to a
// floating-gate code.
func (sc *SharedCalibration) ToDAC(v float64, p SharedParameter) (int, error) {
	val, err := sc.cal.Apply(int(p), v, trafo.Clip)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", p, err)
	}
	dac := int(math.Round(val))
	clipped := ClipFGValue(dac)
	if clipped != dac {
		sc.env.Log().Warn("digital FG value clipped", "param", p.String(), "value", dac, "clipped", clipped)
	}
	return clipped, nil
}

// VoltToDAC maps a voltage in V linearly onto the floating-gate range
// without clipping.
func VoltToDAC(v float64) int {
	return int(math.Round(v * MaxFGValue / MaxTechnVoltage))
}

// DACToVolt is the inverse of VoltToDAC.
func DACToVolt(dac int) float64 {
	return float64(dac) * MaxTechnVoltage / MaxFGValue
}

// ApplySharedCalibration computes the block parameters for a reset
// potential vReset in V. Biases that cannot be calibrated fall back to
// fixed codes.
func (sc *SharedCalibration) ApplySharedCalibration(vReset float64) (HWSharedParameter, error) {
	var h HWSharedParameter
	log := sc.env.Log()

	val, err := sc.cal.Apply(int(V_reset), vReset, trafo.Clip)
	if err != nil {
		return h, fmt.Errorf("V_reset: %w", err)
	}
	h[V_reset] = int(val)

	biases := []struct {
		p        SharedParameter
		fallback int
	}{
		{I_breset, MaxFGValue},
		{I_bstim, MaxFGValue},
		{Int_op_bias, MaxFGValue},
		{V_bout, 306},
		{V_bexp, MaxFGValue},
		{V_dllres, MaxFGValue},
		{V_ccas, 600},
	}
	for _, b := range biases {
		v, err := sc.cal.Apply(int(b.p), -1, trafo.Clip)
		if err != nil {
			log.Warn("cannot calibrate shared parameter", "param", b.p.String(), "error", err)
			h[b.p] = b.fallback
			continue
		}
		h[b.p] = int(v)
	}

	for _, p := range []SharedParameter{V_gmax0, V_gmax1, V_gmax2, V_gmax3} {
		h[p] = 50
	}
	for _, p := range stdpParameters {
		h[p] = 0
	}
	log.Debug("applied shared calibration", "v_reset", vReset, "V_reset", h[V_reset])
	return h, nil
}

// ApplyModelSharedParameter additionally maps the short-term plasticity
// settings of m.
func (sc *SharedCalibration) ApplyModelSharedParameter(m ModelSharedParameter) (HWSharedParameter, error) {
	h, err := sc.ApplySharedCalibration(m.VReset)
	if err != nil {
		return h, err
	}
	if m.TauRec <= 0 {
		return h, fmt.Errorf("tau_rec must be positive, got %v", m.TauRec)
	}
	if h[V_dtc], err = sc.ToDAC(1/(m.TauRec*1e-6), V_dtc); err != nil {
		return h, err
	}
	h[V_stdf] = ClipFGValue(VoltToDAC(m.Lambda))
	h[V_dep] = ClipFGValue(VoltToDAC(m.NDep * m.Lambda))
	h[V_fac] = ClipFGValue(VoltToDAC(m.NFac * m.Lambda))
	return h, nil
}

// ApplySharedReverse recovers the model parameters from block codes.
func (sc *SharedCalibration) ApplySharedReverse(h HWSharedParameter) (ModelSharedParameter, error) {
	var m ModelSharedParameter
	var err error
	if m.VReset, err = sc.cal.ReverseApply(int(V_reset), float64(h[V_reset]), trafo.Clip); err != nil {
		return m, fmt.Errorf("V_reset: %w", err)
	}
	rate, err := sc.cal.ReverseApply(int(V_dtc), float64(h[V_dtc]), trafo.Clip)
	if err != nil {
		return m, fmt.Errorf("V_dtc: %w", err)
	}
	if rate > 0 {
		m.TauRec = 1e6 / rate
	}
	m.Lambda = DACToVolt(h[V_stdf])
	if m.Lambda != 0 {
		m.NDep = DACToVolt(h[V_dep]) / m.Lambda
		m.NFac = DACToVolt(h[V_fac]) / m.Lambda
	}
	return m, nil
}

func (sc *SharedCalibration) Equal(o *SharedCalibration) bool {
	return o != nil && sc.cal.Equal(o.cal)
}

func (sc *SharedCalibration) Kind() string       { return KindSharedCalibration }
func (sc *SharedCalibration) SchemaVersion() int { return schema.VersionSharedCalibration }

func (sc *SharedCalibration) EncodeValue() (schema.Object, error) {
	return sc.cal.EncodeValue()
}

func (sc *SharedCalibration) DecodeValue(version int, body schema.Object) error {
	return sc.cal.DecodeValue(version, body)
}
