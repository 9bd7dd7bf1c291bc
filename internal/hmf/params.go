// Package hmf holds the hardware model of the HICANN chip: the parameter
// enumerations, the neuron, shared and synapse calibrations and the
// collections that aggregate them per chip.
//
// Parameter identifiers keep the hardware register names (E_l, I_gl, ...)
// so they read the same as the chip documentation.
package hmf

import (
	"fmt"

	"github.com/roach88/calibtic/internal/calerr"
)

// NeuronParameter identifies one of the floating-gate cells of a neuron.
type NeuronParameter int

const (
	E_l NeuronParameter = iota
	E_syni
	E_synx
	I_bexp
	I_convi
	I_convx
	I_fire
	I_gl
	I_gladapt
	I_intbbi
	I_intbbx
	I_pl
	I_radapt
	I_rexp
	I_spikeamp
	V_exp
	V_syni
	V_syntci
	V_syntcx
	V_synx
	V_t
	V_convoffi
	V_convoffx

	// NeuronParameterCount is the number of neuron parameters.
	NeuronParameterCount int = iota
)

var neuronParameterNames = [NeuronParameterCount]string{
	"E_l", "E_syni", "E_synx", "I_bexp", "I_convi", "I_convx", "I_fire",
	"I_gl", "I_gladapt", "I_intbbi", "I_intbbx", "I_pl", "I_radapt",
	"I_rexp", "I_spikeamp", "V_exp", "V_syni", "V_syntci", "V_syntcx",
	"V_synx", "V_t", "V_convoffi", "V_convoffx",
}

var neuronParameterIDs = indexNames(neuronParameterNames[:])

func (p NeuronParameter) String() string {
	if p < 0 || int(p) >= NeuronParameterCount {
		return fmt.Sprintf("NeuronParameter(%d)", int(p))
	}
	return neuronParameterNames[p]
}

// ParseNeuronParameter looks a neuron parameter up by name.
func ParseNeuronParameter(name string) (NeuronParameter, error) {
	id, ok := neuronParameterIDs[name]
	if !ok {
		return 0, calerr.NotFound(name, "unknown neuron parameter %q", name)
	}
	return NeuronParameter(id), nil
}

// SharedParameter identifies a floating-gate cell shared by a block of
// neurons.
type SharedParameter int

const (
	V_reset SharedParameter = iota
	Int_op_bias
	V_dllres
	V_bout
	V_dtc
	V_thigh
	V_br
	V_m
	V_dep
	I_breset
	V_bstdf
	V_stdf
	V_fac
	I_bstim
	V_bexp
	V_tlow
	V_gmax0
	V_gmax1
	V_gmax2
	V_gmax3
	V_clrc
	V_clra
	V_ccas

	// SharedParameterCount is the number of shared parameters.
	SharedParameterCount int = iota
)

var sharedParameterNames = [SharedParameterCount]string{
	"V_reset", "int_op_bias", "V_dllres", "V_bout", "V_dtc", "V_thigh",
	"V_br", "V_m", "V_dep", "I_breset", "V_bstdf", "V_stdf", "V_fac",
	"I_bstim", "V_bexp", "V_tlow", "V_gmax0", "V_gmax1", "V_gmax2",
	"V_gmax3", "V_clrc", "V_clra", "V_ccas",
}

var sharedParameterIDs = indexNames(sharedParameterNames[:])

func (p SharedParameter) String() string {
	if p < 0 || int(p) >= SharedParameterCount {
		return fmt.Sprintf("SharedParameter(%d)", int(p))
	}
	return sharedParameterNames[p]
}

// ParseSharedParameter looks a shared parameter up by name.
func ParseSharedParameter(name string) (SharedParameter, error) {
	id, ok := sharedParameterIDs[name]
	if !ok {
		return 0, calerr.NotFound(name, "unknown shared parameter %q", name)
	}
	return SharedParameter(id), nil
}

// CalibrationParameter is a slot of a NeuronCalibration. Current
// parameters whose behaviour depends on the capacitor and speedup switches
// have eight variants, ordered slow·2 + fast within each capacitor.
type CalibrationParameter int

const (
	CalE_l CalibrationParameter = iota
	CalE_syni
	CalE_synx
	CalI_bexp
	CalI_convi
	CalI_convx
	CalI_fire
	CalI_gl_slow0_fast0_bigcap0
	CalI_gl_slow0_fast1_bigcap0
	CalI_gl_slow1_fast0_bigcap0
	CalI_gl_slow1_fast1_bigcap0
	CalI_gl_slow0_fast0_bigcap1
	CalI_gl_slow0_fast1_bigcap1
	CalI_gl_slow1_fast0_bigcap1
	CalI_gl_slow1_fast1_bigcap1
	CalI_gladapt_slow0_fast0_bigcap0
	CalI_gladapt_slow0_fast1_bigcap0
	CalI_gladapt_slow1_fast0_bigcap0
	CalI_gladapt_slow1_fast1_bigcap0
	CalI_gladapt_slow0_fast0_bigcap1
	CalI_gladapt_slow0_fast1_bigcap1
	CalI_gladapt_slow1_fast0_bigcap1
	CalI_gladapt_slow1_fast1_bigcap1
	CalI_intbbi
	CalI_intbbx
	CalI_pl
	CalI_radapt_slow0_fast0_bigcap0
	CalI_radapt_slow0_fast1_bigcap0
	CalI_radapt_slow1_fast0_bigcap0
	CalI_radapt_slow1_fast1_bigcap0
	CalI_radapt_slow0_fast0_bigcap1
	CalI_radapt_slow0_fast1_bigcap1
	CalI_radapt_slow1_fast0_bigcap1
	CalI_radapt_slow1_fast1_bigcap1
	CalI_rexp
	CalI_spikeamp
	CalV_exp
	CalV_syni
	CalV_syntci
	CalV_syntcx
	CalV_synx
	CalV_t
	CalV_convoffi
	CalV_convoffx
	CalReadoutShift
	CalBigcapToSmallcap

	// CalibrationParameterCount is the slot count of a NeuronCalibration.
	CalibrationParameterCount int = iota
)

var calibrationParameterNames = func() [CalibrationParameterCount]string {
	var names [CalibrationParameterCount]string
	set := func(c CalibrationParameter, name string) { names[c] = name }
	set(CalE_l, "E_l")
	set(CalE_syni, "E_syni")
	set(CalE_synx, "E_synx")
	set(CalI_bexp, "I_bexp")
	set(CalI_convi, "I_convi")
	set(CalI_convx, "I_convx")
	set(CalI_fire, "I_fire")
	for variant := range 8 {
		suffix := variantSuffix(variant)
		set(CalI_gl_slow0_fast0_bigcap0+CalibrationParameter(variant), "I_gl"+suffix)
		set(CalI_gladapt_slow0_fast0_bigcap0+CalibrationParameter(variant), "I_gladapt"+suffix)
		set(CalI_radapt_slow0_fast0_bigcap0+CalibrationParameter(variant), "I_radapt"+suffix)
	}
	set(CalI_intbbi, "I_intbbi")
	set(CalI_intbbx, "I_intbbx")
	set(CalI_pl, "I_pl")
	set(CalI_rexp, "I_rexp")
	set(CalI_spikeamp, "I_spikeamp")
	set(CalV_exp, "V_exp")
	set(CalV_syni, "V_syni")
	set(CalV_syntci, "V_syntci")
	set(CalV_syntcx, "V_syntcx")
	set(CalV_synx, "V_synx")
	set(CalV_t, "V_t")
	set(CalV_convoffi, "V_convoffi")
	set(CalV_convoffx, "V_convoffx")
	set(CalReadoutShift, "ReadoutShift")
	set(CalBigcapToSmallcap, "BigcapToSmallcap")
	return names
}()

var calibrationParameterIDs = indexNames(calibrationParameterNames[:])

// variantSuffix names variant bigcap·4 + slow·2 + fast.
func variantSuffix(variant int) string {
	return fmt.Sprintf("_slow%d_fast%d_bigcap%d", variant>>1&1, variant&1, variant>>2&1)
}

func (c CalibrationParameter) String() string {
	if c < 0 || int(c) >= CalibrationParameterCount {
		return fmt.Sprintf("CalibrationParameter(%d)", int(c))
	}
	return calibrationParameterNames[c]
}

// ParseCalibrationParameter looks a calibration slot up by name.
func ParseCalibrationParameter(name string) (CalibrationParameter, error) {
	id, ok := calibrationParameterIDs[name]
	if !ok {
		return 0, calerr.NotFound(name, "unknown calibration parameter %q", name)
	}
	return CalibrationParameter(id), nil
}

// HardwareParameter returns the neuron parameter a calibration slot
// drives. The second result is false for slots without one.
func (c CalibrationParameter) HardwareParameter() (NeuronParameter, bool) {
	switch {
	case c >= CalI_gl_slow0_fast0_bigcap0 && c <= CalI_gl_slow1_fast1_bigcap1:
		return I_gl, true
	case c >= CalI_gladapt_slow0_fast0_bigcap0 && c <= CalI_gladapt_slow1_fast1_bigcap1:
		return I_gladapt, true
	case c >= CalI_radapt_slow0_fast0_bigcap0 && c <= CalI_radapt_slow1_fast1_bigcap1:
		return I_radapt, true
	case c == CalReadoutShift || c == CalBigcapToSmallcap:
		return 0, false
	}
	p, err := ParseNeuronParameter(c.String())
	return p, err == nil
}

func indexNames(names []string) map[string]int {
	ids := make(map[string]int, len(names))
	for i, n := range names {
		ids[n] = i
	}
	return ids
}
