package hmf

import (
	"math"
	"sync"

	"github.com/roach88/calibtic/internal/calib"
	"github.com/roach88/calibtic/internal/trafo"
)

// I_gl fit for the big capacitor at normal speed, as negative powers of
// tau_m in seconds.
var iGlFit = []float64{1.5, 6.0e-6, 1.2726035e-10, 5.383965e-17, 4.0e-25}

// Current mirror divisors of the I_gl speedup switches.
const (
	iGlDivisorSlow = 27
	iGlDivisorNorm = 3
	iGlDivisorFast = 1

	// bigToSmallcapTauM is the measured tau_m ratio between the capacitors.
	bigToSmallcapTauM = 1 / 5.
)

// Synaptic time constant table: tau(dac) = tauSynRef·exp(-k·(dac - dacSynRef)).
const (
	lookupSynOffset = 226
	tauSynRef       = 2e-7
	dacSynRef       = 481.5
	tauSynAt487     = 1.96297e-7
)

// Refractory period table, log-linear through measured knots.
const lookupPlOffset = 10

var plKnots = [][2]float64{{16.5, 1e-6}, {102.5, 1e-7}, {511, 2.824e-8}}

var builtinNeuronDefaults = sync.OnceValue(func() *NeuronCalibration {
	nc := &NeuronCalibration{cal: calib.NewCalibration(CalibrationParameterCount)}
	populateNeuronDefaults(nc.cal)
	return nc
})

// populateNeuronDefaults fills cal with transformations derived from
// transistor-level simulations and bring-up measurements.
func populateNeuronDefaults(cal *calib.Calibration) {
	reset := func(c CalibrationParameter, t trafo.Transformation) {
		if err := cal.Reset(int(c), t); err != nil {
			panic(err)
		}
	}

	// I_gl: coefficient i scales with the capacitor ratio to the i-th power
	// and with the mirror divisor.
	slowToNorm := float64(iGlDivisorSlow) / iGlDivisorNorm
	fastToNorm := float64(iGlDivisorFast) / iGlDivisorNorm
	npp := func(smallcap bool, factor, lo, hi float64) trafo.Transformation {
		coeffs := make([]float64, len(iGlFit))
		for i, c := range iGlFit {
			coeffs[i] = c * factor
			if smallcap {
				coeffs[i] *= math.Pow(bigToSmallcapTauM, float64(i))
			}
		}
		return trafo.MustNegativePowersPolynomial(coeffs, lo, hi)
	}
	reset(CalI_gl_slow1_fast0_bigcap0, npp(true, slowToNorm, 3.00e-7, 7.22e-5))
	reset(CalI_gl_slow0_fast0_bigcap0, npp(true, 1, 1.083e-7, 9.63e-6))
	reset(CalI_gl_slow0_fast1_bigcap0, npp(true, fastToNorm, 1.00e-7, 4.02e-6))
	reset(CalI_gl_slow1_fast0_bigcap1, npp(false, slowToNorm, 1.50e-6, 2.00e-4))
	reset(CalI_gl_slow0_fast0_bigcap1, npp(false, 1, 5.41e-7, 4.82e-5))
	reset(CalI_gl_slow0_fast1_bigcap1, npp(false, fastToNorm, 4.23e-7, 2.01e-5))

	ideal := func() trafo.Transformation {
		return trafo.MustPolynomial([]float64{0, MaxFGValue / MaxTechnVoltage}, 0, MaxTechnVoltage)
	}
	reset(CalE_l, ideal())
	reset(CalE_synx, trafo.MustPolynomial([]float64{-16, 614}, 0, MaxTechnVoltage))
	reset(CalE_syni, ideal())

	// Adaptation shares one fit across capacitor and speed settings.
	for _, v := range []int{0, 1, 2, 4, 5, 6} {
		reset(CalI_gladapt_slow0_fast0_bigcap0+CalibrationParameter(v),
			trafo.MustPolynomial([]float64{-0.2701, 0.106392e9, 2.01736e13}, 2.537e-9, 4958e-9))
	}
	for v := range 8 {
		reset(CalI_radapt_slow0_fast0_bigcap0+CalibrationParameter(v),
			trafo.MustOneOverPolynomial([]float64{-1.222e-3, 7.82014e2, 1.07527e7}, 2.93e-6, 35.4e-6))
	}

	reset(CalV_exp, ideal())
	reset(CalI_rexp, trafo.MustPolynomial([]float64{-38.5688, 27.1646e3, 3.7804e6}, 1.21e-3, 13.5e-3))
	reset(CalV_t, ideal())
	reset(CalI_fire, trafo.MustPolynomial([]float64{22.4037, 18.414e9, -0.057288e18}, 0.0324e-9, 69.26e-9))

	reset(CalI_pl, trafo.MustLookup(refractoryTable(), lookupPlOffset))
	reset(CalV_syntcx, trafo.MustLookup(synapticTauTable(), lookupSynOffset))
	reset(CalV_syntci, trafo.MustLookup(synapticTauTable(), lookupSynOffset))

	for c, v := range map[CalibrationParameter]float64{
		CalI_convi:    MaxFGValue,
		CalI_convx:    MaxFGValue,
		CalI_intbbi:   511,
		CalI_intbbx:   511,
		CalV_syni:     511,
		CalV_synx:     511,
		CalI_spikeamp: MaxFGValue,
		CalI_bexp:     MaxFGValue,
		CalV_convoffi: MaxFGValue,
		CalV_convoffx: MaxFGValue,
	} {
		reset(c, trafo.NewConstant(v))
	}
	reset(CalBigcapToSmallcap, trafo.NewConstant(1/bigToSmallcapTauM))
}

// refractoryTable returns tau_refrac in seconds for DAC codes
// lookupPlOffset..MaxFGValue, strictly falling.
func refractoryTable() []float64 {
	out := make([]float64, 0, MaxFGValue-lookupPlOffset+1)
	for dac := lookupPlOffset; dac <= MaxFGValue; dac++ {
		out = append(out, logLinear(plKnots, float64(dac)))
	}
	return out
}

// logLinear interpolates log(y) linearly between knots and extrapolates
// with the outer segments.
func logLinear(knots [][2]float64, x float64) float64 {
	i := 0
	for i < len(knots)-2 && x > knots[i+1][0] {
		i++
	}
	x0, y0 := knots[i][0], math.Log(knots[i][1])
	x1, y1 := knots[i+1][0], math.Log(knots[i+1][1])
	return math.Exp(y0 + (x-x0)*(y1-y0)/(x1-x0))
}

// synapticTauTable returns tau_syn in seconds for DAC codes
// lookupSynOffset..MaxFGValue, strictly falling.
func synapticTauTable() []float64 {
	k := math.Log(tauSynRef/tauSynAt487) / (487 - dacSynRef)
	out := make([]float64, 0, MaxFGValue-lookupSynOffset+1)
	for dac := lookupSynOffset; dac <= MaxFGValue; dac++ {
		out = append(out, tauSynRef*math.Exp(-k*(float64(dac)-dacSynRef)))
	}
	return out
}
