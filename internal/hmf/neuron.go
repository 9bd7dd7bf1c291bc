package hmf

import (
	"fmt"
	"math"
	"strings"

	"github.com/roach88/calibtic/internal/calerr"
	"github.com/roach88/calibtic/internal/calib"
	"github.com/roach88/calibtic/internal/schema"
	"github.com/roach88/calibtic/internal/trafo"
)

// KindNeuronCalibration tags a stored NeuronCalibration.
const KindNeuronCalibration = "NeuronCalibration"

// Floating-gate limits.
const (
	MaxFGValue      = 1023
	MinFGValue      = 0
	MaxTechnVoltage = 1.8 // V
)

// Hardware membrane capacitances in nF.
const (
	BigCap   = 2.16456e-3
	SmallCap = 164.2e-6
)

// Unit conversions from the biological to the technical domain.
const (
	mVToV = 1e-3
	msToS = 1e-3
	nAToA = 1e-9
	nSToS = 1e-9
)

// NeuronCalibrationParameters selects the hardware operating mode the
// neuron calibration is evaluated for.
type NeuronCalibrationParameters struct {
	HWNeuronSize int
	Bigcap       bool
	IGlSlow      bool
	IGlFast      bool
	IGladaptSlow bool
	IGladaptFast bool
	IRadaptSlow  bool
	IRadaptFast  bool
	AlphaV       float64 // unitless voltage scaling
	ShiftV       float64 // V
}

// DefaultNeuronCalibrationParameters returns the standard operating mode:
// single-denmem neurons on the big capacitor, all mirrors at normal speed.
func DefaultNeuronCalibrationParameters() NeuronCalibrationParameters {
	return NeuronCalibrationParameters{
		HWNeuronSize: 1,
		Bigcap:       true,
		AlphaV:       10,
		ShiftV:       1.2,
	}
}

// Modified reports whether p differs from the defaults.
func (p NeuronCalibrationParameters) Modified() bool {
	return p != DefaultNeuronCalibrationParameters()
}

// Cap returns the selected membrane capacitance in nF.
func (p NeuronCalibrationParameters) Cap() float64 {
	if p.Bigcap {
		return BigCap
	}
	return SmallCap
}

func (p NeuronCalibrationParameters) variant(slow, fast bool) CalibrationParameter {
	return CalibrationParameter(b2i(p.Bigcap)*4 + b2i(slow)*2 + b2i(fast))
}

// IGl returns the I_gl slot for the current switch combination.
func (p NeuronCalibrationParameters) IGl() CalibrationParameter {
	return CalI_gl_slow0_fast0_bigcap0 + p.variant(p.IGlSlow, p.IGlFast)
}

// IGladapt returns the I_gladapt slot for the current switch combination.
func (p NeuronCalibrationParameters) IGladapt() CalibrationParameter {
	return CalI_gladapt_slow0_fast0_bigcap0 + p.variant(p.IGladaptSlow, p.IGladaptFast)
}

// IRadapt returns the I_radapt slot for the current switch combination.
func (p NeuronCalibrationParameters) IRadapt() CalibrationParameter {
	return CalI_radapt_slow0_fast0_bigcap0 + p.variant(p.IRadaptSlow, p.IRadaptFast)
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Scaling between biological units (mV, ms, nA, nS, nF) and the technical
// domain (V, s, A, S).

func ScaleVoltage(v, shiftV, alphaV float64) float64 { return v*mVToV*alphaV + shiftV }
func ScaleCurrent(v, speedup, cm, alphaV, cap float64) float64 {
	return v * nAToA * alphaV * speedup * cap / cm
}
func ScaleVoltageDeltaT(v, alphaV float64) float64 { return v * alphaV * mVToV }
func ScaleConductance(v, speedup, cm, cap float64) float64 {
	return v * nSToS * speedup * cap / cm
}
func ScaleTau(v, speedup float64) float64 { return v * msToS / speedup }

func ReverseScaleVoltage(v, shiftV, alphaV float64) float64 { return (v - shiftV) / (mVToV * alphaV) }
func ReverseScaleCurrent(v, speedup, cm, alphaV, cap float64) float64 {
	return cm * v / (nAToA * alphaV * speedup * cap)
}
func ReverseScaleVoltageDeltaT(v, alphaV float64) float64 { return v / alphaV / mVToV }
func ReverseScaleConductance(v, speedup, cm, cap float64) float64 {
	return v * cm / (speedup * nSToS * cap)
}
func ReverseScaleTau(v, speedup float64) float64 { return v / msToS * speedup }

// HWNeuronParameter holds one DAC code per neuron parameter.
type HWNeuronParameter [NeuronParameterCount]int

// Get returns the code of p.
func (h *HWNeuronParameter) Get(p NeuronParameter) int { return h[p] }

// Set stores the code of p.
func (h *HWNeuronParameter) Set(p NeuronParameter, v int) { h[p] = v }

func (h HWNeuronParameter) String() string {
	var b strings.Builder
	for i, v := range h {
		fmt.Fprintf(&b, "%s\t%d\n", NeuronParameter(i), v)
	}
	return b.String()
}

// NeuronCalibration holds one transformation per CalibrationParameter and
// converts cell parameters to floating-gate codes and back.
//
// Slots that are missing or fail are served by the built-in defaults; the
// fallback is logged at info level.
type NeuronCalibration struct {
	cal      *calib.Calibration
	env      calib.Env
	fallback *NeuronCalibration
}

// NewNeuronCalibration creates an empty calibration with the built-in
// defaults as fallback.
func NewNeuronCalibration(env calib.Env) *NeuronCalibration {
	return &NeuronCalibration{
		cal:      calib.NewCalibration(CalibrationParameterCount),
		env:      env,
		fallback: builtinNeuronDefaults(),
	}
}

// DefaultNeuronCalibration creates a calibration populated with the
// defaults.
func DefaultNeuronCalibration(env calib.Env) *NeuronCalibration {
	nc := NewNeuronCalibration(env)
	populateNeuronDefaults(nc.cal)
	return nc
}

// Calibration exposes the underlying slot table.
func (nc *NeuronCalibration) Calibration() *calib.Calibration { return nc.cal }

// Reset replaces the transformation in slot c.
func (nc *NeuronCalibration) Reset(c CalibrationParameter, t trafo.Transformation) error {
	return nc.cal.Reset(int(c), t)
}

// At returns the transformation in slot c.
func (nc *NeuronCalibration) At(c CalibrationParameter) (trafo.Transformation, error) {
	return nc.cal.At(int(c))
}

// SetDefaults overwrites every slot with the built-in defaults.
func (nc *NeuronCalibration) SetDefaults() error {
	if err := nc.Check(); err != nil {
		return err
	}
	populateNeuronDefaults(nc.cal)
	return nil
}

// SetHICANNv4Defaults sets the slots introduced with the fourth chip
// revision.
func (nc *NeuronCalibration) SetHICANNv4Defaults() error {
	if err := nc.Reset(CalV_convoffi, trafo.NewConstant(MaxFGValue)); err != nil {
		return err
	}
	return nc.Reset(CalV_convoffx, trafo.NewConstant(MaxFGValue))
}

// Check validates the slot count.
func (nc *NeuronCalibration) Check() error {
	if nc.cal.Capacity() != CalibrationParameterCount {
		return calerr.InvalidArgument("wrong data set size in NeuronCalibration: %d slots, want %d",
			nc.cal.Capacity(), CalibrationParameterCount)
	}
	return nil
}

// ToDAC evaluates slot c at v with clipping and converts the result to a
// floating-gate code.
func (nc *NeuronCalibration) ToDAC(v float64, c CalibrationParameter) (int, error) {
	val, err := nc.cal.Apply(int(c), v, trafo.Clip)
	if err != nil {
		if nc.fallback == nil {
			return 0, fmt.Errorf("%s: no default calibration available: %w", c, err)
		}
		nc.env.Log().Info("parameter will be calibrated with a default transformation",
			"param", c.String(), "error", err)
		if val, err = nc.fallback.cal.Apply(int(c), v, trafo.Clip); err != nil {
			return 0, fmt.Errorf("%s: %w", c, err)
		}
	}
	dac := int(math.Round(val))
	clipped := ClipFGValue(dac)
	if clipped != dac {
		nc.env.Log().Warn("digital FG value clipped",
			"param", c.String(), "value", dac, "clipped", clipped)
	}
	return clipped, nil
}

// FromDAC clips dac to the floating-gate range and evaluates the inverse of
// slot c.
func (nc *NeuronCalibration) FromDAC(dac int, c CalibrationParameter) (float64, error) {
	clipped := ClipFGValue(dac)
	val, err := nc.cal.ReverseApply(int(c), float64(clipped), trafo.Clip)
	if err == nil {
		return val, nil
	}
	if nc.fallback == nil {
		return 0, fmt.Errorf("%s: no default calibration available: %w", c, err)
	}
	nc.env.Log().Info("parameter will be reversed with a default transformation",
		"param", c.String(), "error", err)
	if val, err = nc.fallback.cal.ReverseApply(int(c), float64(clipped), trafo.Clip); err != nil {
		return 0, fmt.Errorf("%s: %w", c, err)
	}
	return val, nil
}

// raw evaluates slot c without rounding or clipping the result.
func (nc *NeuronCalibration) raw(c CalibrationParameter, v float64) (int, error) {
	val, err := nc.cal.Apply(int(c), v, trafo.Clip)
	if err != nil && nc.fallback != nil {
		val, err = nc.fallback.cal.Apply(int(c), v, trafo.Clip)
	}
	if err != nil {
		return 0, fmt.Errorf("%s: %w", c, err)
	}
	return int(val), nil
}

// ClipFGValue limits v to [MinFGValue, MaxFGValue].
func ClipFGValue(v int) int {
	return max(MinFGValue, min(v, MaxFGValue))
}

// IdealVoltToDAC maps a voltage linearly onto the floating-gate range.
func IdealVoltToDAC(v float64) int {
	return ClipFGValue(int(math.Round(v / MaxTechnVoltage * MaxFGValue)))
}

// IdealDACToVolt is the inverse of IdealVoltToDAC.
func IdealDACToVolt(dac int) float64 {
	return float64(dac) / MaxFGValue * MaxTechnVoltage
}

// ApplyNeuronCalibration converts a cell parameter set to floating-gate
// codes. Parameters that cannot be calibrated are logged and left at a
// fallback code; only an inconsistent calibration fails.
func (nc *NeuronCalibration) ApplyNeuronCalibration(cell Cell, speedup float64, params NeuronCalibrationParameters) (HWNeuronParameter, error) {
	var h HWNeuronParameter
	if err := nc.Check(); err != nil {
		return h, err
	}
	log := nc.env.Log()
	log.Debug("applying neuron calibration", "model", cell.Model(), "speedup", speedup)

	switch c := cell.(type) {
	case EIFCondExpIsfaIsta:
		nc.setLIF(&h, c.TauM, c.VRest, c.ERevE, c.ERevI, c.TauRefrac, speedup, params)
		nc.set(&h, V_t, "v_spike", ScaleVoltage(c.effectiveThreshold(), params.ShiftV, params.AlphaV), CalV_t, -1)
		nc.setAdaptation(&h, c, speedup, params)
		nc.setExponentialTerm(&h, c, params)
		nc.setSynapses(&h, c.TauSynE, c.TauSynI, speedup)
	case IFCondExp:
		nc.setLIF(&h, c.TauM, c.VRest, c.ERevE, c.ERevI, c.TauRefrac, speedup, params)
		nc.set(&h, V_t, "v_thresh", ScaleVoltage(c.VThresh, params.ShiftV, params.AlphaV), CalV_t, -1)
		h[I_fire] = 0
		h[I_gladapt] = 0
		h[I_radapt] = MaxFGValue
		disableExponentialTerm(&h)
		nc.setSynapses(&h, c.TauSynE, c.TauSynI, speedup)
	default:
		return h, calerr.InvalidArgument("unsupported cell model %q", cell.Model())
	}
	nc.setBiases(&h)
	return h, nil
}

// set converts v through slot c into h[p]. On failure the code is logged
// and set to fallback, or left untouched for a negative fallback.
func (nc *NeuronCalibration) set(h *HWNeuronParameter, p NeuronParameter, name string, v float64, c CalibrationParameter, fallback int) {
	dac, err := nc.ToDAC(v, c)
	if err != nil {
		nc.env.Log().Warn("cannot calibrate parameter", "param", name, "error", err)
		if fallback >= 0 {
			h[p] = fallback
		}
		return
	}
	h[p] = dac
	nc.env.Log().Debug("parameter transformed", "param", name, "value", v, "hw", p.String(), "dac", dac)
}

func (nc *NeuronCalibration) setLIF(h *HWNeuronParameter, tauM, vRest, eRevE, eRevI, tauRefrac, speedup float64, params NeuronCalibrationParameters) {
	nc.set(h, I_gl, "tau_m", ScaleTau(tauM, speedup), params.IGl(), 409)
	nc.set(h, E_l, "v_rest", ScaleVoltage(vRest, params.ShiftV, params.AlphaV), CalE_l, -1)
	nc.set(h, E_synx, "e_rev_E", ScaleVoltage(eRevE, params.ShiftV, params.AlphaV), CalE_synx, -1)
	nc.set(h, E_syni, "e_rev_I", ScaleVoltage(eRevI, params.ShiftV, params.AlphaV), CalE_syni, -1)
	nc.set(h, I_pl, "tau_refrac", ScaleTau(tauRefrac, speedup), CalI_pl, -1)
}

func (nc *NeuronCalibration) setAdaptation(h *HWNeuronParameter, c EIFCondExpIsfaIsta, speedup float64, params NeuronCalibrationParameters) {
	if c.A != 0 {
		nc.set(h, I_gladapt, "a", ScaleConductance(c.A, speedup, c.Cm, params.Cap()), params.IGladapt(), -1)
	} else {
		h[I_gladapt] = 0
	}
	if c.B != 0 {
		nc.set(h, I_fire, "b", ScaleCurrent(c.B, speedup, c.Cm, params.AlphaV, params.Cap()), CalI_fire, -1)
	} else {
		h[I_fire] = 0
	}
	nc.set(h, I_radapt, "tau_w", ScaleTau(c.TauW, speedup), params.IRadapt(), -1)
}

func (nc *NeuronCalibration) setExponentialTerm(h *HWNeuronParameter, c EIFCondExpIsfaIsta, params NeuronCalibrationParameters) {
	if c.DeltaT == 0 {
		disableExponentialTerm(h)
		return
	}
	nc.set(h, V_exp, "v_thresh", ScaleVoltage(c.VThresh, params.ShiftV, params.AlphaV), CalV_exp, MaxFGValue)
	nc.set(h, I_rexp, "delta_T", ScaleVoltageDeltaT(c.DeltaT, params.AlphaV), CalI_rexp, MaxFGValue)
	bexp, err := nc.raw(CalI_bexp, -1)
	if err != nil {
		nc.env.Log().Warn("cannot calibrate parameter", "param", "I_bexp", "error", err)
		return
	}
	h[I_bexp] = bexp
}

// disableExponentialTerm switches the exponential upswing off.
func disableExponentialTerm(h *HWNeuronParameter) {
	h[V_exp] = MaxFGValue
	h[I_rexp] = MaxFGValue
	h[I_bexp] = MaxFGValue
}

func (nc *NeuronCalibration) setSynapses(h *HWNeuronParameter, tauSynE, tauSynI, speedup float64) {
	nc.set(h, V_syntcx, "tau_syn_E", ScaleTau(tauSynE, speedup), CalV_syntcx, 820)
	nc.set(h, V_syntci, "tau_syn_I", ScaleTau(tauSynI, speedup), CalV_syntci, 820)
}

// setBiases sets the technical parameters whose transformation is a
// constant.
func (nc *NeuronCalibration) setBiases(h *HWNeuronParameter) {
	biases := []struct {
		p NeuronParameter
		c CalibrationParameter
	}{
		{V_convoffi, CalV_convoffi},
		{V_convoffx, CalV_convoffx},
		{I_convi, CalI_convi},
		{I_convx, CalI_convx},
		{I_intbbi, CalI_intbbi},
		{I_intbbx, CalI_intbbx},
		{V_syni, CalV_syni},
		{V_synx, CalV_synx},
		{I_spikeamp, CalI_spikeamp},
	}
	for _, b := range biases {
		nc.set(h, b.p, b.p.String(), -1, b.c, -1)
	}
}

// ApplyNeuronReverse converts floating-gate codes back to an AdEx
// parameter set. cmBio is the biological membrane capacitance in nF.
// Disabled blocks reverse to zero: a for I_gladapt 0, b for I_fire 0,
// tau_w for I_radapt 1023 and delta_T for I_rexp 1023.
func (nc *NeuronCalibration) ApplyNeuronReverse(h HWNeuronParameter, speedup, cmBio float64, params NeuronCalibrationParameters) (EIFCondExpIsfaIsta, error) {
	bio := EIFCondExpIsfaIsta{Cm: cmBio}
	var firstErr error
	rev := func(p NeuronParameter, c CalibrationParameter) float64 {
		v, err := nc.FromDAC(h[p], c)
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("reverse %s: %w", p, err)
		}
		return v
	}
	voltage := func(p NeuronParameter, c CalibrationParameter) float64 {
		return ReverseScaleVoltage(rev(p, c), params.ShiftV, params.AlphaV)
	}

	bio.TauM = ReverseScaleTau(rev(I_gl, params.IGl()), speedup)
	bio.VRest = voltage(E_l, CalE_l)
	bio.VSpike = voltage(V_t, CalV_t)
	bio.ERevE = voltage(E_synx, CalE_synx)
	bio.ERevI = voltage(E_syni, CalE_syni)

	if h[I_gladapt] > 0 {
		bio.A = ReverseScaleConductance(rev(I_gladapt, params.IGladapt()), speedup, bio.Cm, params.Cap())
	}
	if h[I_fire] > 0 {
		bio.B = ReverseScaleCurrent(rev(I_fire, CalI_fire), speedup, bio.Cm, params.AlphaV, params.Cap())
	}
	if h[I_radapt] != MaxFGValue {
		bio.TauW = ReverseScaleTau(rev(I_radapt, params.IRadapt()), speedup)
	}

	bio.VThresh = voltage(V_exp, CalV_exp)
	if h[I_rexp] != MaxFGValue {
		bio.DeltaT = ReverseScaleVoltageDeltaT(rev(I_rexp, CalI_rexp), params.AlphaV)
	}

	bio.TauRefrac = ReverseScaleTau(rev(I_pl, CalI_pl), speedup)
	bio.TauSynE = ReverseScaleTau(rev(V_syntcx, CalV_syntcx), speedup)
	bio.TauSynI = ReverseScaleTau(rev(V_syntci, CalV_syntci), speedup)

	if firstErr != nil {
		return EIFCondExpIsfaIsta{}, firstErr
	}
	return bio, nil
}

// ScaleParameters maps an AdEx parameter set to technical units without
// calibrating it. The returned Cm is the hardware capacitance.
func ScaleParameters(c EIFCondExpIsfaIsta, shiftV, alphaV, speedup, cap float64) EIFCondExpIsfaIsta {
	return EIFCondExpIsfaIsta{
		Cm:        cap,
		VRest:     ScaleVoltage(c.VRest, shiftV, alphaV),
		TauM:      ScaleTau(c.TauM, speedup),
		ERevE:     ScaleVoltage(c.ERevE, shiftV, alphaV),
		ERevI:     ScaleVoltage(c.ERevI, shiftV, alphaV),
		TauRefrac: ScaleTau(c.TauRefrac, speedup),
		VSpike:    ScaleVoltage(c.VSpike, shiftV, alphaV),
		VThresh:   ScaleVoltage(c.VThresh, shiftV, alphaV),
		DeltaT:    ScaleVoltageDeltaT(c.DeltaT, alphaV),
		A:         ScaleConductance(c.A, speedup, c.Cm, cap),
		TauW:      ScaleTau(c.TauW, speedup),
		B:         ScaleCurrent(c.B, speedup, c.Cm, alphaV, cap),
		TauSynE:   ScaleTau(c.TauSynE, speedup),
		TauSynI:   ScaleTau(c.TauSynI, speedup),
	}
}

// Equal compares the slot tables.
func (nc *NeuronCalibration) Equal(o *NeuronCalibration) bool {
	return o != nil && nc.cal.Equal(o.cal)
}

func (nc *NeuronCalibration) String() string {
	return fmt.Sprintf("NeuronCalibration: %d of %d slots", nc.cal.Size(), nc.cal.Capacity())
}

func (nc *NeuronCalibration) Kind() string       { return KindNeuronCalibration }
func (nc *NeuronCalibration) SchemaVersion() int { return schema.VersionNeuronCalibration }

func (nc *NeuronCalibration) EncodeValue() (schema.Object, error) {
	return nc.cal.EncodeValue()
}

func (nc *NeuronCalibration) DecodeValue(version int, body schema.Object) error {
	cal := calib.NewCalibration(0)
	if err := cal.DecodeValue(version, body); err != nil {
		return err
	}
	if cal.Capacity() != CalibrationParameterCount {
		return calerr.Incompatible(KindNeuronCalibration, "stored %d slots, want %d",
			cal.Capacity(), CalibrationParameterCount)
	}
	nc.cal = cal
	if nc.fallback == nil {
		nc.fallback = builtinNeuronDefaults()
	}
	return nil
}
