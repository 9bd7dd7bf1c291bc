package hmf

// Model names of the supported cell types.
const (
	ModelEIFCondExpIsfaIsta = "EIF_cond_exp_isfa_ista"
	ModelIFCondExp          = "IF_cond_exp"
)

// Cell is a biological neuron parameter set the forward calibration
// accepts. The set is closed.
type Cell interface {
	Model() string
	cell()
}

// EIFCondExpIsfaIsta is the adaptive exponential integrate-and-fire model.
// Units: nF, ms, mV, nA, uS.
type EIFCondExpIsfaIsta struct {
	Cm        float64
	TauRefrac float64
	VSpike    float64
	VReset    float64
	VRest     float64
	TauM      float64
	IOffset   float64
	A         float64
	B         float64
	DeltaT    float64
	TauW      float64
	VThresh   float64
	ERevE     float64
	TauSynE   float64
	ERevI     float64
	TauSynI   float64
}

// DefaultEIFCondExpIsfaIsta returns the model's reference defaults.
func DefaultEIFCondExpIsfaIsta() EIFCondExpIsfaIsta {
	return EIFCondExpIsfaIsta{
		Cm:        0.281,
		TauRefrac: 0.1,
		VSpike:    -40.0,
		VReset:    -70.6,
		VRest:     -70.6,
		TauM:      9.3667,
		IOffset:   0.0,
		A:         4.0,
		B:         0.0805,
		DeltaT:    2.0,
		TauW:      144.0,
		VThresh:   -50.4,
		ERevE:     0.0,
		TauSynE:   5.0,
		ERevI:     -80.0,
		TauSynI:   5.0,
	}
}

func (EIFCondExpIsfaIsta) Model() string { return ModelEIFCondExpIsfaIsta }
func (EIFCondExpIsfaIsta) cell()         {}

// effectiveThreshold is the voltage the spike detector is set to. Without
// an exponential term the neuron fires at VThresh, otherwise the upswing
// runs to VSpike.
func (c EIFCondExpIsfaIsta) effectiveThreshold() float64 {
	if c.DeltaT == 0 && c.VThresh < c.VSpike {
		return c.VThresh
	}
	return c.VSpike
}

// IFCondExp is the leaky integrate-and-fire model with conductance based
// exponential synapses.
type IFCondExp struct {
	Cm        float64
	TauM      float64
	VRest     float64
	VThresh   float64
	TauRefrac float64
	VReset    float64
	TauSynE   float64
	TauSynI   float64
	ERevE     float64
	ERevI     float64
	IOffset   float64
}

// DefaultIFCondExp returns the model's reference defaults.
func DefaultIFCondExp() IFCondExp {
	return IFCondExp{
		Cm:        1.0,
		TauM:      20.0,
		VRest:     -65.0,
		VThresh:   -50.0,
		TauRefrac: 0.1,
		VReset:    -65.0,
		TauSynE:   5.0,
		TauSynI:   5.0,
		ERevE:     0.0,
		ERevI:     -70.0,
	}
}

func (IFCondExp) Model() string { return ModelIFCondExp }
func (IFCondExp) cell()         {}

// ModelSharedParameter holds the block-wide model parameters: the reset
// potential and the short-term plasticity settings.
type ModelSharedParameter struct {
	VReset float64 // V
	TauRec float64 // us
	Lambda float64 // V
	NDep   float64
	NFac   float64
}

// DefaultModelSharedParameter returns the defaults used by the hardware
// mapping.
func DefaultModelSharedParameter() ModelSharedParameter {
	return ModelSharedParameter{VReset: 0.5, TauRec: 10, Lambda: 1, NDep: 0, NFac: 1}
}
