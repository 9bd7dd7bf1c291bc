package hmf

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/calibtic/internal/calerr"
	"github.com/roach88/calibtic/internal/calib"
	"github.com/roach88/calibtic/internal/schema"
)

// smallHICANN returns a defaulted collection with only two neurons so that
// encoding stays cheap.
func smallHICANN(t *testing.T) *HICANNCollection {
	t.Helper()
	h := NewHICANNCollection(calib.Env{})
	h.SetDefaults()
	neurons := NewNeuronCollection(calib.Env{})
	nc := DefaultNeuronCalibration(calib.Env{})
	neurons.Put(0, nc)
	neurons.Put(1, nc)
	h.SetNeurons(neurons)
	return h
}

func TestHICANNCollection_Defaults(t *testing.T) {
	h := NewHICANNCollection(calib.Env{})
	assert.Equal(t, 1e4, h.Speedup)
	assert.Equal(t, 125e6, h.PLLFrequency)
	assert.Equal(t, 31.25e6, h.Clock())

	h.SetDefaults()
	neurons, err := h.Neurons()
	require.NoError(t, err)
	assert.Equal(t, NeuronCount, neurons.Size())
	blocks, err := h.Blocks()
	require.NoError(t, err)
	assert.Equal(t, FGBlockCount, blocks.Size())
	rows, err := h.SynapseRows()
	require.NoError(t, err)
	assert.Equal(t, SynapseRowCount, rows.Size())
	l1, err := h.L1Crossbar()
	require.NoError(t, err)
	assert.Equal(t, VLineCount+HLineCount, l1.Size())
	chain, err := h.SynapseChainLength()
	require.NoError(t, err)
	assert.Equal(t, VLineCount, chain.Size())
	switches, err := h.SynapseSwitches()
	require.NoError(t, err)
	assert.Equal(t, VLineCount, switches.Size())

	hw, err := h.ApplyNeuronCalibration(referenceCell(), 17, DefaultNeuronCalibrationParameters())
	require.NoError(t, err)
	assert.Equal(t, 102, hw[I_pl])
}

func TestHICANNCollection_MissingSubCollection(t *testing.T) {
	h := NewHICANNCollection(calib.Env{})
	h.SetNeurons(nil)
	h.SetBlocks(nil)
	h.SetSynapseRows(nil)

	_, err := h.Neurons()
	require.Error(t, err)
	assert.True(t, calerr.IsNotFound(err))
	assert.Contains(t, err.Error(), "HICANNCollection: missing neuron collection")

	_, err = h.Blocks()
	assert.Contains(t, err.Error(), "HICANNCollection: missing block collection")
	_, err = h.SynapseRows()
	assert.Contains(t, err.Error(), "HICANNCollection: missing synapse row collection")

	_, err = h.ApplyNeuronCalibration(referenceCell(), 0, DefaultNeuronCalibrationParameters())
	assert.Error(t, err)
}

func TestHICANNCollection_EncodeDecode(t *testing.T) {
	h := smallHICANN(t)
	h.StartingCycle = 42
	l1, err := h.L1Crossbar()
	require.NoError(t, err)
	require.NoError(t, l1.SetMaxSwitchesPerRow(VLine(1), 3))

	doc, err := schema.NewDocument(h, schema.Object{})
	require.NoError(t, err)
	assert.Equal(t, schema.VersionHICANNCollection, doc.Version)

	got := NewHICANNCollection(calib.Env{})
	require.NoError(t, doc.DecodeInto(got))
	assert.True(t, h.Equal(got))
	assert.Equal(t, 42, got.StartingCycle)
}

func TestHICANNCollection_DecodeOlderVersions(t *testing.T) {
	h := smallHICANN(t)
	l1, err := h.L1Crossbar()
	require.NoError(t, err)
	require.NoError(t, l1.SetMaxSwitchesPerRow(VLine(1), 3))
	chain, err := h.SynapseChainLength()
	require.NoError(t, err)
	require.NoError(t, chain.SetMaxChainLength(1, 9))

	body, err := h.EncodeValue()
	require.NoError(t, err)

	t.Run("version 0", func(t *testing.T) {
		old := schema.Object{}
		for _, k := range []string{"speedup", "pll", "start", "neurons", "blocks", "synapse_rows"} {
			old[k] = body[k]
		}
		got := NewHICANNCollection(calib.Env{})
		require.NoError(t, schema.Document{Kind: KindHICANNCollection, Version: 0, Body: old}.DecodeInto(got))

		l1, err := got.L1Crossbar()
		require.NoError(t, err)
		n, err := l1.MaxSwitchesPerRow(VLine(1))
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		chain, err := got.SynapseChainLength()
		require.NoError(t, err)
		n, err = chain.MaxChainLength(1)
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		neurons, err := got.Neurons()
		require.NoError(t, err)
		assert.Equal(t, 2, neurons.Size())
	})

	t.Run("version 1", func(t *testing.T) {
		old := schema.Object{}
		for _, k := range []string{"speedup", "pll", "start", "neurons", "blocks", "synapse_rows", "l1_crossbar"} {
			old[k] = body[k]
		}
		got := NewHICANNCollection(calib.Env{})
		require.NoError(t, schema.Document{Kind: KindHICANNCollection, Version: 1, Body: old}.DecodeInto(got))

		l1, err := got.L1Crossbar()
		require.NoError(t, err)
		n, err := l1.MaxSwitchesPerRow(VLine(1))
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		chain, err := got.SynapseChainLength()
		require.NoError(t, err)
		n, err = chain.MaxChainLength(1)
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		switches, err := got.SynapseSwitches()
		require.NoError(t, err)
		assert.Equal(t, VLineCount, switches.Size())
	})

	t.Run("newer version", func(t *testing.T) {
		got := NewHICANNCollection(calib.Env{})
		err := schema.Document{Kind: KindHICANNCollection, Version: schema.VersionHICANNCollection + 1, Body: body}.DecodeInto(got)
		require.Error(t, err)
		assert.True(t, errors.Is(err, schema.ErrVersionMismatch))
		assert.True(t, calerr.IsIncompatible(err))
	})
}

func TestHICANNCollection_DecodeWrongKind(t *testing.T) {
	doc, err := schema.NewDocument(NewL1CrossbarCalibration(), schema.Object{})
	require.NoError(t, err)

	err = doc.DecodeInto(NewHICANNCollection(calib.Env{}))
	require.Error(t, err)
	assert.True(t, calerr.IsIncompatible(err))
}
