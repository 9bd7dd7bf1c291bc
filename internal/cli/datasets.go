package cli

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/calibtic/internal/adc"
	"github.com/roach88/calibtic/internal/calib"
	"github.com/roach88/calibtic/internal/hmf"
	"github.com/roach88/calibtic/internal/schema"
)

// datasetKinds are the entities the commands can load by kind.
var datasetKinds = map[string]func(env calib.Env) schema.Entity{
	hmf.KindHICANNCollection: func(env calib.Env) schema.Entity {
		return hmf.NewHICANNCollection(env)
	},
	adc.KindADCCalibration: func(calib.Env) schema.Entity {
		return adc.NewADCCalibration()
	},
	adc.KindQuadraticADCCalibration: func(calib.Env) schema.Entity {
		return &adc.QuadraticADCCalibration{}
	},
}

func kindNames() []string {
	names := make([]string, 0, len(datasetKinds))
	for k := range datasetKinds {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}

func newEntity(kind string, env calib.Env) (schema.Entity, error) {
	newFn, ok := datasetKinds[kind]
	if !ok {
		return nil, NewExitError(ExitCommandError,
			fmt.Sprintf("unknown kind %q: must be one of %s", kind, strings.Join(kindNames(), ", ")))
	}
	return newFn(env), nil
}

// neuronSource selects the calibration used for neuron conversions: the
// built-in defaults, or one neuron of a stored HICANNCollection.
type neuronSource struct {
	Dataset string
	Neuron  int
	Speedup float64
}

// resolve returns the neuron calibration and the speedup to apply it with.
func (s neuronSource) resolve(ctx context.Context, opts *RootOptions) (*hmf.NeuronCalibration, float64, error) {
	env := opts.Env()
	if s.Dataset == "" {
		return hmf.DefaultNeuronCalibration(env), s.Speedup, nil
	}
	if s.Neuron < 0 || s.Neuron >= hmf.NeuronCount {
		return nil, 0, NewExitError(ExitCommandError,
			fmt.Sprintf("invalid neuron %d: must be in 0..%d", s.Neuron, hmf.NeuronCount-1))
	}

	b, err := opts.OpenBackend(ctx)
	if err != nil {
		return nil, 0, err
	}
	defer b.Close()

	h := hmf.NewHICANNCollection(env)
	if err := b.Load(ctx, s.Dataset, nil, h); err != nil {
		return nil, 0, classify("load dataset", err)
	}
	neurons, err := h.Neurons()
	if err != nil {
		return nil, 0, classify("load dataset", err)
	}
	nc, err := neurons.At(s.Neuron)
	if err != nil {
		return nil, 0, classify(fmt.Sprintf("neuron %d", s.Neuron), err)
	}
	env.Log().Debug("using stored neuron calibration",
		"dataset", s.Dataset, "neuron", s.Neuron, "speedup", h.Speedup)
	return nc, h.Speedup, nil
}
