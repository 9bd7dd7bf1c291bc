package hmf

import (
	"fmt"

	"github.com/roach88/calibtic/internal/calerr"
	"github.com/roach88/calibtic/internal/calib"
	"github.com/roach88/calibtic/internal/schema"
)

// KindHICANNCollection tags a stored HICANNCollection.
const KindHICANNCollection = "HICANNCollection"

// Fixed sub-collection ids of a HICANNCollection.
const (
	NeuronCollectionID = iota
	BlockCollectionID
	SynapseRowCollectionID
	L1CrossbarCollectionID
	SynapseChainLengthCollectionID
	SynapseSwitchCollectionID
)

// HICANNCollection bundles all calibration data of one chip.
type HICANNCollection struct {
	Timing

	env                calib.Env
	neurons            *NeuronCollection
	blocks             *BlockCollection
	synapseRows        *SynapseRowCollection
	l1Crossbar         *L1CrossbarCollection
	synapseChainLength *SynapseChainLengthCollection
	synapseSwitches    *SynapseSwitchCollection
}

// NewHICANNCollection creates a collection with empty sub-collections, 10^4
// speedup and a 125 MHz PLL.
func NewHICANNCollection(env calib.Env) *HICANNCollection {
	return &HICANNCollection{
		Timing:             Timing{Speedup: 1e4, PLLFrequency: 125e6},
		env:                env,
		neurons:            NewNeuronCollection(env),
		blocks:             NewBlockCollection(env),
		synapseRows:        NewSynapseRowCollection(env),
		l1Crossbar:         NewL1CrossbarCollection(),
		synapseChainLength: NewSynapseChainLengthCollection(),
		synapseSwitches:    NewSynapseSwitchCollection(),
	}
}

// SetDefaults fills every sub-collection with its defaults.
func (h *HICANNCollection) SetDefaults() {
	h.neurons = NewNeuronCollection(h.env)
	h.neurons.SetDefaults()
	h.blocks = NewBlockCollection(h.env)
	h.blocks.SetDefaults()
	h.synapseRows = NewSynapseRowCollection(h.env)
	h.synapseRows.SetDefaults()
	h.l1Crossbar = NewL1CrossbarCollection()
	h.l1Crossbar.SetDefaults()
	h.synapseChainLength = NewSynapseChainLengthCollection()
	h.synapseChainLength.SetDefaults()
	h.synapseSwitches = NewSynapseSwitchCollection()
	h.synapseSwitches.SetDefaults()
}

func missingCollection(id int, name string) error {
	return calerr.NotFound(fmt.Sprint(id), "HICANNCollection: missing %s collection", name)
}

func (h *HICANNCollection) Neurons() (*NeuronCollection, error) {
	if h.neurons == nil {
		return nil, missingCollection(NeuronCollectionID, "neuron")
	}
	return h.neurons, nil
}

func (h *HICANNCollection) Blocks() (*BlockCollection, error) {
	if h.blocks == nil {
		return nil, missingCollection(BlockCollectionID, "block")
	}
	return h.blocks, nil
}

func (h *HICANNCollection) SynapseRows() (*SynapseRowCollection, error) {
	if h.synapseRows == nil {
		return nil, missingCollection(SynapseRowCollectionID, "synapse row")
	}
	return h.synapseRows, nil
}

func (h *HICANNCollection) L1Crossbar() (*L1CrossbarCollection, error) {
	if h.l1Crossbar == nil {
		return nil, missingCollection(L1CrossbarCollectionID, "L1crossbar")
	}
	return h.l1Crossbar, nil
}

func (h *HICANNCollection) SynapseChainLength() (*SynapseChainLengthCollection, error) {
	if h.synapseChainLength == nil {
		return nil, missingCollection(SynapseChainLengthCollectionID, "SynapseChainLength")
	}
	return h.synapseChainLength, nil
}

func (h *HICANNCollection) SynapseSwitches() (*SynapseSwitchCollection, error) {
	if h.synapseSwitches == nil {
		return nil, missingCollection(SynapseSwitchCollectionID, "SynapseSwitch")
	}
	return h.synapseSwitches, nil
}

// SetNeurons replaces the neuron sub-collection. A nil collection removes it.
func (h *HICANNCollection) SetNeurons(c *NeuronCollection) { h.neurons = c }

// SetBlocks replaces the block sub-collection.
func (h *HICANNCollection) SetBlocks(c *BlockCollection) { h.blocks = c }

// SetSynapseRows replaces the synapse row sub-collection.
func (h *HICANNCollection) SetSynapseRows(c *SynapseRowCollection) { h.synapseRows = c }

// ApplyNeuronCalibration calibrates cell for neuron id at the chip speedup.
func (h *HICANNCollection) ApplyNeuronCalibration(cell Cell, id int, params NeuronCalibrationParameters) (HWNeuronParameter, error) {
	nc, err := h.Neurons()
	if err != nil {
		return HWNeuronParameter{}, err
	}
	cal, err := nc.At(id)
	if err != nil {
		return HWNeuronParameter{}, fmt.Errorf("no calibration data for this neuron: %w", err)
	}
	return cal.ApplyNeuronCalibration(cell, h.Speedup, params)
}

func (h *HICANNCollection) Equal(o *HICANNCollection) bool {
	return o != nil &&
		h.Timing == o.Timing &&
		equalOrBothNil(h.neurons, o.neurons, (*NeuronCollection).Equal) &&
		equalOrBothNil(h.blocks, o.blocks, (*BlockCollection).Equal) &&
		equalOrBothNil(h.synapseRows, o.synapseRows, (*SynapseRowCollection).Equal) &&
		equalOrBothNil(h.l1Crossbar, o.l1Crossbar, (*L1CrossbarCollection).Equal) &&
		equalOrBothNil(h.synapseChainLength, o.synapseChainLength, (*SynapseChainLengthCollection).Equal) &&
		equalOrBothNil(h.synapseSwitches, o.synapseSwitches, (*SynapseSwitchCollection).Equal)
}

func equalOrBothNil[T any](a, b *T, eq func(*T, *T) bool) bool {
	if a == nil || b == nil {
		return a == b
	}
	return eq(a, b)
}

func (h *HICANNCollection) String() string {
	return fmt.Sprintf("HICANNCollection(speedup=%g, pll=%g, start=%d)", h.Speedup, h.PLLFrequency, h.StartingCycle)
}

func (h *HICANNCollection) Kind() string       { return KindHICANNCollection }
func (h *HICANNCollection) SchemaVersion() int { return schema.VersionHICANNCollection }

// subCollections lists the stored sub-collections in id order.
func (h *HICANNCollection) subCollections() []struct {
	key    string
	entity schema.Entity
	ok     bool
} {
	return []struct {
		key    string
		entity schema.Entity
		ok     bool
	}{
		{"neurons", h.neurons, h.neurons != nil},
		{"blocks", h.blocks, h.blocks != nil},
		{"synapse_rows", h.synapseRows, h.synapseRows != nil},
		{"l1_crossbar", h.l1Crossbar, h.l1Crossbar != nil},
		{"synapse_chain_length", h.synapseChainLength, h.synapseChainLength != nil},
		{"synapse_switches", h.synapseSwitches, h.synapseSwitches != nil},
	}
}

func (h *HICANNCollection) EncodeValue() (schema.Object, error) {
	obj := schema.Object{}
	h.Timing.encode(obj)
	for _, sub := range h.subCollections() {
		if !sub.ok {
			continue
		}
		enc, err := schema.EncodeNested(sub.entity)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", sub.key, err)
		}
		obj[sub.key] = enc
	}
	return obj, nil
}

// DecodeValue reads every schema version. Sub-collections that version
// did not store yet are filled with defaults.
func (h *HICANNCollection) DecodeValue(version int, body schema.Object) error {
	out := &HICANNCollection{env: h.env}
	if err := out.Timing.decode(body); err != nil {
		return err
	}
	var (
		neurons            = NewNeuronCollection(h.env)
		blocks             = NewBlockCollection(h.env)
		synapseRows        = NewSynapseRowCollection(h.env)
		l1Crossbar         = NewL1CrossbarCollection()
		synapseChainLength = NewSynapseChainLengthCollection()
		synapseSwitches    = NewSynapseSwitchCollection()
	)
	decode := func(key string, e schema.Entity) (bool, error) {
		if !body.Has(key) {
			return false, nil
		}
		enc, err := body.Object(key)
		if err != nil {
			return false, err
		}
		if err := schema.DecodeNested(enc, e); err != nil {
			return false, fmt.Errorf("%s: %w", key, err)
		}
		return true, nil
	}

	for _, sub := range []struct {
		key string
		e   schema.Entity
		set func()
	}{
		{"neurons", neurons, func() { out.neurons = neurons }},
		{"blocks", blocks, func() { out.blocks = blocks }},
		{"synapse_rows", synapseRows, func() { out.synapseRows = synapseRows }},
	} {
		ok, err := decode(sub.key, sub.e)
		if err != nil {
			return err
		}
		if ok {
			sub.set()
		}
	}

	if version >= 1 {
		ok, err := decode("l1_crossbar", l1Crossbar)
		if err != nil {
			return err
		}
		if ok {
			out.l1Crossbar = l1Crossbar
		}
	} else {
		l1Crossbar.SetDefaults()
		out.l1Crossbar = l1Crossbar
	}

	if version >= 2 {
		ok, err := decode("synapse_chain_length", synapseChainLength)
		if err != nil {
			return err
		}
		if ok {
			out.synapseChainLength = synapseChainLength
		}
		if ok, err = decode("synapse_switches", synapseSwitches); err != nil {
			return err
		}
		if ok {
			out.synapseSwitches = synapseSwitches
		}
	} else {
		synapseChainLength.SetDefaults()
		synapseSwitches.SetDefaults()
		out.synapseChainLength = synapseChainLength
		out.synapseSwitches = synapseSwitches
	}

	if version < schema.VersionHICANNCollection {
		h.env.Log().Info("upgraded HICANNCollection", "from_version", version, "to_version", schema.VersionHICANNCollection)
	}
	*h = *out
	return nil
}
