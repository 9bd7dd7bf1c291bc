package hmf

import (
	"fmt"

	"github.com/roach88/calibtic/internal/calerr"
	"github.com/roach88/calibtic/internal/calib"
	"github.com/roach88/calibtic/internal/schema"
)

// Kinds of the stored per-chip collections and their entries.
const (
	KindNeuronCollection              = "NeuronCollection"
	KindBlockCollection               = "BlockCollection"
	KindL1CrossbarCalibration         = "L1CrossbarCalibration"
	KindL1CrossbarCollection          = "L1CrossbarCollection"
	KindSynapseChainLengthCalibration = "SynapseChainLengthCalibration"
	KindSynapseChainLengthCollection  = "SynapseChainLengthCollection"
	KindSynapseSwitchCalibration      = "SynapseSwitchCalibration"
	KindSynapseSwitchCollection       = "SynapseSwitchCollection"
)

// Chip geometry.
const (
	NeuronCount  = 512
	FGBlockCount = 4
	VLineCount   = 256
	HLineCount   = 64

	// hLineOffset is the key offset of horizontal lines in the L1 crossbar
	// collection.
	hLineOffset = VLineCount
)

// Timing holds the experiment timing of a chip.
type Timing struct {
	Speedup       float64
	PLLFrequency  float64 // Hz
	StartingCycle int
}

// Clock is the digital clock, a quarter of the PLL frequency.
func (t Timing) Clock() float64 { return t.PLLFrequency / 4 }

func (t Timing) encode(obj schema.Object) {
	obj["speedup"] = schema.Float(t.Speedup)
	obj["pll"] = schema.Float(t.PLLFrequency)
	obj["start"] = schema.Int(t.StartingCycle)
}

func (t *Timing) decode(obj schema.Object) error {
	var err error
	if t.Speedup, err = obj.Float("speedup"); err != nil {
		return err
	}
	if t.PLLFrequency, err = obj.Float("pll"); err != nil {
		return err
	}
	start, err := obj.Int("start")
	if err != nil {
		return err
	}
	t.StartingCycle = int(start)
	return nil
}

// NeuronCollection holds the neuron calibrations of a chip keyed by
// neuron 0..NeuronCount-1.
type NeuronCollection struct {
	*calib.Collection[*NeuronCalibration]
	Timing
	env calib.Env
}

// NewNeuronCollection creates an empty collection with 10^4 speedup and a
// 100 MHz PLL.
func NewNeuronCollection(env calib.Env) *NeuronCollection {
	return &NeuronCollection{
		Collection: calib.NewCollection(KindNeuronCollection, func() *NeuronCalibration {
			return NewNeuronCalibration(env)
		}),
		Timing: Timing{Speedup: 1e4, PLLFrequency: 100e6},
		env:    env,
	}
}

// SetDefaults resets the timing and assigns one default calibration to
// every neuron.
func (c *NeuronCollection) SetDefaults() {
	c.Timing = Timing{Speedup: 1e4, PLLFrequency: 100e6, StartingCycle: 1000}
	nc := DefaultNeuronCalibration(c.env)
	for n := range NeuronCount {
		c.Put(n, nc)
	}
}

// ApplyNeuronCalibration calibrates cell for neuron id at the collection's
// speedup.
func (c *NeuronCollection) ApplyNeuronCalibration(cell Cell, id int, params NeuronCalibrationParameters) (HWNeuronParameter, error) {
	nc, err := c.At(id)
	if err != nil {
		return HWNeuronParameter{}, fmt.Errorf("no calibration data for this neuron: %w", err)
	}
	return nc.ApplyNeuronCalibration(cell, c.Speedup, params)
}

func (c *NeuronCollection) Equal(o *NeuronCollection) bool {
	return o != nil && c.Timing == o.Timing && c.Collection.Equal(o.Collection)
}

func (c *NeuronCollection) EncodeValue() (schema.Object, error) {
	entries, err := c.EncodeEntries()
	if err != nil {
		return nil, err
	}
	obj := schema.Object{"entries": entries}
	c.Timing.encode(obj)
	return obj, nil
}

func (c *NeuronCollection) DecodeValue(_ int, body schema.Object) error {
	var t Timing
	if err := t.decode(body); err != nil {
		return err
	}
	entries, err := body.List("entries")
	if err != nil {
		return err
	}
	if err := c.DecodeEntries(entries); err != nil {
		return err
	}
	c.Timing = t
	return nil
}

// BlockCollection holds the shared calibrations of the floating-gate
// blocks.
type BlockCollection struct {
	*calib.Collection[*SharedCalibration]
	env calib.Env
}

// NewBlockCollection creates an empty collection.
func NewBlockCollection(env calib.Env) *BlockCollection {
	return &BlockCollection{
		Collection: calib.NewCollection(KindBlockCollection, func() *SharedCalibration {
			return NewSharedCalibration(env)
		}),
		env: env,
	}
}

// SetDefaults assigns one default shared calibration to every block.
func (c *BlockCollection) SetDefaults() {
	sc := NewSharedCalibration(c.env)
	sc.SetDefaults()
	for b := range FGBlockCount {
		c.Put(b, sc)
	}
}

// ApplySharedCalibration calibrates block id for vReset in V.
func (c *BlockCollection) ApplySharedCalibration(vReset float64, id int) (HWSharedParameter, error) {
	sc, err := c.At(id)
	if err != nil {
		return HWSharedParameter{}, fmt.Errorf("no calibration data for this fg block: %w", err)
	}
	return sc.ApplySharedCalibration(vReset)
}

func (c *BlockCollection) Equal(o *BlockCollection) bool {
	return o != nil && c.Collection.Equal(o.Collection)
}

// L1Line addresses a vertical or horizontal layer-1 bus.
type L1Line struct {
	Horizontal bool
	Index      int
}

// VLine addresses vertical line i.
func VLine(i int) L1Line { return L1Line{Index: i} }

// HLine addresses horizontal line i.
func HLine(i int) L1Line { return L1Line{Horizontal: true, Index: i} }

func (l L1Line) String() string {
	if l.Horizontal {
		return fmt.Sprintf("HLine(%d)", l.Index)
	}
	return fmt.Sprintf("VLine(%d)", l.Index)
}

func (l L1Line) address() (int, error) {
	if l.Horizontal {
		if l.Index < 0 || l.Index >= HLineCount {
			return 0, calerr.InvalidArgument("%s out of range [0, %d)", l, HLineCount)
		}
		return l.Index + hLineOffset, nil
	}
	if l.Index < 0 || l.Index >= VLineCount {
		return 0, calerr.InvalidArgument("%s out of range [0, %d)", l, VLineCount)
	}
	return l.Index, nil
}

// L1CrossbarCalibration limits the number of crossbar switches per row and
// column that a layer-1 line may use.
type L1CrossbarCalibration struct {
	MaxSwitchesPerRow    int
	MaxSwitchesPerColumn int
}

// NewL1CrossbarCalibration returns the default of one switch each.
func NewL1CrossbarCalibration() *L1CrossbarCalibration {
	return &L1CrossbarCalibration{MaxSwitchesPerRow: 1, MaxSwitchesPerColumn: 1}
}

func (l *L1CrossbarCalibration) Equal(o *L1CrossbarCalibration) bool { return o != nil && *l == *o }
func (l *L1CrossbarCalibration) Kind() string                         { return KindL1CrossbarCalibration }
func (l *L1CrossbarCalibration) SchemaVersion() int                   { return schema.VersionLineCalibration }

func (l *L1CrossbarCalibration) EncodeValue() (schema.Object, error) {
	return schema.Object{
		"max_switches_per_row":    schema.Int(l.MaxSwitchesPerRow),
		"max_switches_per_column": schema.Int(l.MaxSwitchesPerColumn),
	}, nil
}

func (l *L1CrossbarCalibration) DecodeValue(_ int, body schema.Object) error {
	row, err := body.Int("max_switches_per_row")
	if err != nil {
		return err
	}
	col, err := body.Int("max_switches_per_column")
	if err != nil {
		return err
	}
	*l = L1CrossbarCalibration{MaxSwitchesPerRow: int(row), MaxSwitchesPerColumn: int(col)}
	return nil
}

// L1CrossbarCollection holds the crossbar limits of all layer-1 lines.
type L1CrossbarCollection struct {
	*calib.Collection[*L1CrossbarCalibration]
}

// NewL1CrossbarCollection creates an empty collection.
func NewL1CrossbarCollection() *L1CrossbarCollection {
	return &L1CrossbarCollection{calib.NewCollection(KindL1CrossbarCollection, NewL1CrossbarCalibration)}
}

// SetDefaults assigns the default to every vertical and horizontal line.
func (c *L1CrossbarCollection) SetDefaults() {
	for v := range VLineCount {
		c.Put(v, NewL1CrossbarCalibration())
	}
	for h := range HLineCount {
		c.Put(h+hLineOffset, NewL1CrossbarCalibration())
	}
}

func (c *L1CrossbarCollection) line(l L1Line) (*L1CrossbarCalibration, error) {
	addr, err := l.address()
	if err != nil {
		return nil, err
	}
	cb, err := c.At(addr)
	if err != nil {
		return nil, calerr.NotFound(l.String(), "No Calibration data for [H/V]Line %s", l)
	}
	return cb, nil
}

// upsert returns the entry of l, inserting a default one when missing.
func (c *L1CrossbarCollection) upsert(l L1Line) (*L1CrossbarCalibration, error) {
	addr, err := l.address()
	if err != nil {
		return nil, err
	}
	if cb, err := c.At(addr); err == nil {
		return cb, nil
	}
	cb := NewL1CrossbarCalibration()
	c.Put(addr, cb)
	return cb, nil
}

func (c *L1CrossbarCollection) MaxSwitchesPerRow(l L1Line) (int, error) {
	cb, err := c.line(l)
	if err != nil {
		return 0, err
	}
	return cb.MaxSwitchesPerRow, nil
}

func (c *L1CrossbarCollection) MaxSwitchesPerColumn(l L1Line) (int, error) {
	cb, err := c.line(l)
	if err != nil {
		return 0, err
	}
	return cb.MaxSwitchesPerColumn, nil
}

func (c *L1CrossbarCollection) SetMaxSwitchesPerRow(l L1Line, n int) error {
	cb, err := c.upsert(l)
	if err != nil {
		return err
	}
	cb.MaxSwitchesPerRow = n
	return nil
}

func (c *L1CrossbarCollection) SetMaxSwitchesPerColumn(l L1Line, n int) error {
	cb, err := c.upsert(l)
	if err != nil {
		return err
	}
	cb.MaxSwitchesPerColumn = n
	return nil
}

func (c *L1CrossbarCollection) Equal(o *L1CrossbarCollection) bool {
	return o != nil && c.Collection.Equal(o.Collection)
}

// SynapseChainLengthCalibration limits how many synapse drivers may be
// chained on a vertical line.
type SynapseChainLengthCalibration struct {
	MaxChainLength int
}

// NewSynapseChainLengthCalibration returns the default chain length of 3.
func NewSynapseChainLengthCalibration() *SynapseChainLengthCalibration {
	return &SynapseChainLengthCalibration{MaxChainLength: 3}
}

func (s *SynapseChainLengthCalibration) Equal(o *SynapseChainLengthCalibration) bool {
	return o != nil && *s == *o
}
func (s *SynapseChainLengthCalibration) Kind() string       { return KindSynapseChainLengthCalibration }
func (s *SynapseChainLengthCalibration) SchemaVersion() int { return schema.VersionLineCalibration }

func (s *SynapseChainLengthCalibration) EncodeValue() (schema.Object, error) {
	return schema.Object{"max_chain_length": schema.Int(s.MaxChainLength)}, nil
}

func (s *SynapseChainLengthCalibration) DecodeValue(_ int, body schema.Object) error {
	n, err := body.Int("max_chain_length")
	if err != nil {
		return err
	}
	s.MaxChainLength = int(n)
	return nil
}

// SynapseChainLengthCollection holds the chain limits per vertical line.
type SynapseChainLengthCollection struct {
	*calib.Collection[*SynapseChainLengthCalibration]
}

// NewSynapseChainLengthCollection creates an empty collection.
func NewSynapseChainLengthCollection() *SynapseChainLengthCollection {
	return &SynapseChainLengthCollection{
		calib.NewCollection(KindSynapseChainLengthCollection, NewSynapseChainLengthCalibration),
	}
}

// SetDefaults assigns the default to every vertical line.
func (c *SynapseChainLengthCollection) SetDefaults() {
	for v := range VLineCount {
		c.Put(v, NewSynapseChainLengthCalibration())
	}
}

func (c *SynapseChainLengthCollection) MaxChainLength(vline int) (int, error) {
	s, err := c.At(vline)
	if err != nil {
		return 0, calerr.NotFound(fmt.Sprint(vline), "No Calibration data for SynapseChainLengthCollection: VLine(%d)", vline)
	}
	return s.MaxChainLength, nil
}

// SetMaxChainLength updates vline, inserting a default entry when missing.
func (c *SynapseChainLengthCollection) SetMaxChainLength(vline, n int) error {
	if vline < 0 || vline >= VLineCount {
		return calerr.InvalidArgument("VLine(%d) out of range [0, %d)", vline, VLineCount)
	}
	s, err := c.At(vline)
	if err != nil {
		s = NewSynapseChainLengthCalibration()
		c.Put(vline, s)
	}
	s.MaxChainLength = n
	return nil
}

func (c *SynapseChainLengthCollection) Equal(o *SynapseChainLengthCollection) bool {
	return o != nil && c.Collection.Equal(o.Collection)
}

// SynapseSwitchCalibration limits the synapse switches per vertical line.
type SynapseSwitchCalibration struct {
	MaxSwitches int
}

// NewSynapseSwitchCalibration returns the default of one switch.
func NewSynapseSwitchCalibration() *SynapseSwitchCalibration {
	return &SynapseSwitchCalibration{MaxSwitches: 1}
}

func (s *SynapseSwitchCalibration) Equal(o *SynapseSwitchCalibration) bool {
	return o != nil && *s == *o
}
func (s *SynapseSwitchCalibration) Kind() string       { return KindSynapseSwitchCalibration }
func (s *SynapseSwitchCalibration) SchemaVersion() int { return schema.VersionLineCalibration }

func (s *SynapseSwitchCalibration) EncodeValue() (schema.Object, error) {
	return schema.Object{"max_switches": schema.Int(s.MaxSwitches)}, nil
}

func (s *SynapseSwitchCalibration) DecodeValue(_ int, body schema.Object) error {
	n, err := body.Int("max_switches")
	if err != nil {
		return err
	}
	s.MaxSwitches = int(n)
	return nil
}

// SynapseSwitchCollection holds the switch limits per vertical line.
type SynapseSwitchCollection struct {
	*calib.Collection[*SynapseSwitchCalibration]
}

// NewSynapseSwitchCollection creates an empty collection.
func NewSynapseSwitchCollection() *SynapseSwitchCollection {
	return &SynapseSwitchCollection{
		calib.NewCollection(KindSynapseSwitchCollection, NewSynapseSwitchCalibration),
	}
}

// SetDefaults assigns the default to every vertical line.
func (c *SynapseSwitchCollection) SetDefaults() {
	for v := range VLineCount {
		c.Put(v, NewSynapseSwitchCalibration())
	}
}

func (c *SynapseSwitchCollection) MaxSwitches(vline int) (int, error) {
	s, err := c.At(vline)
	if err != nil {
		return 0, calerr.NotFound(fmt.Sprint(vline), "No Calibration data for SynapseSwitchCollection: VLine(%d)", vline)
	}
	return s.MaxSwitches, nil
}

// SetMaxSwitches updates vline, inserting a default entry when missing.
func (c *SynapseSwitchCollection) SetMaxSwitches(vline, n int) error {
	if vline < 0 || vline >= VLineCount {
		return calerr.InvalidArgument("VLine(%d) out of range [0, %d)", vline, VLineCount)
	}
	s, err := c.At(vline)
	if err != nil {
		s = NewSynapseSwitchCalibration()
		c.Put(vline, s)
	}
	s.MaxSwitches = n
	return nil
}

func (c *SynapseSwitchCollection) Equal(o *SynapseSwitchCollection) bool {
	return o != nil && c.Collection.Equal(o.Collection)
}
