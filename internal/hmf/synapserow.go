package hmf

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"

	"github.com/roach88/calibtic/internal/calerr"
	"github.com/roach88/calibtic/internal/calib"
	"github.com/roach88/calibtic/internal/schema"
)

// Kinds of the stored synapse row types.
const (
	KindSynapseRowCalibration = "SynapseRowCalibration"
	KindSynapseRowCollection  = "SynapseRowCollection"
)

// Synapse rows per chip and per quadrant.
const (
	SynapseRowCount       = 448
	SynapseRowsInQuadrant = SynapseRowCount / 4
)

// SynapseRowCalibration holds one SynapseCalibration per GmaxConfig.
type SynapseRowCalibration struct {
	env    calib.Env
	trafos map[GmaxConfig]*SynapseCalibration
}

// NewSynapseRowCalibration creates an empty row calibration.
func NewSynapseRowCalibration(env calib.Env) *SynapseRowCalibration {
	return &SynapseRowCalibration{env: env, trafos: map[GmaxConfig]*SynapseCalibration{}}
}

// Keys returns the configurations in ascending order.
func (r *SynapseRowCalibration) Keys() []GmaxConfig {
	return slices.SortedFunc(maps.Keys(r.trafos), GmaxConfig.Compare)
}

// At returns the calibration of key.
func (r *SynapseRowCalibration) At(key GmaxConfig) (*SynapseCalibration, error) {
	sc, ok := r.trafos[key]
	if !ok {
		return nil, calerr.NotFound(key.String(),
			"SynapseRowCalibration: no SynapseCalibration available for key = %s", key)
	}
	return sc, nil
}

// Clone returns a deep copy.
func (r *SynapseRowCalibration) Clone() *SynapseRowCalibration {
	out := NewSynapseRowCalibration(r.env)
	for k, sc := range r.trafos {
		out.trafos[k] = sc.Clone()
	}
	return out
}

// Insert adds sc under key. Existing keys are not overwritten.
func (r *SynapseRowCalibration) Insert(key GmaxConfig, sc *SynapseCalibration) error {
	if _, ok := r.trafos[key]; ok {
		return calerr.InvalidArgument("SynapseRowCalibration: key already exists: %s", key)
	}
	r.trafos[key] = sc
	return nil
}

// Erase removes key and returns the number of removed entries.
func (r *SynapseRowCalibration) Erase(key GmaxConfig) int {
	if _, ok := r.trafos[key]; !ok {
		return 0
	}
	delete(r.trafos, key)
	return 1
}

func (r *SynapseRowCalibration) Clear() { clear(r.trafos) }

func (r *SynapseRowCalibration) Exists(key GmaxConfig) bool {
	_, ok := r.trafos[key]
	return ok
}

func (r *SynapseRowCalibration) Size() int { return len(r.trafos) }

// SetDefaults sets the default calibration for DefaultGmaxConfig.
func (r *SynapseRowCalibration) SetDefaults() {
	sc := NewSynapseCalibration()
	sc.SetDefaults()
	r.trafos[DefaultGmaxConfig()] = sc
}

// essGmaxSettings are the V_gmax (nA) and divisor pairs for sel 1, 2, 3.
var essGmaxSettings = []struct {
	vgmax float64
	div   int
}{{550, 1}, {650, 4}, {200, 15}}

// SetEssDefaults replaces the content with the default calibration plus
// three configurations covering larger weights. The analog weight is
// assumed proportional to V_gmax and to 1/gmax_div, relative to the
// default measured at V_gmax 500 nA and divisor 11.
func (r *SynapseRowCalibration) SetEssDefaults() error {
	r.Clear()
	r.SetDefaults()
	def := r.trafos[DefaultGmaxConfig()]
	const vgmaxDefault, divDefault = 500., 11.
	for i, s := range essGmaxSettings {
		sc, err := def.scaled((s.vgmax / vgmaxDefault) * (divDefault / float64(s.div)))
		if err != nil {
			return err
		}
		r.trafos[MustGmaxConfig(i+1, s.div)] = sc
	}
	return nil
}

// FindBestGmaxConfig picks the configuration whose maximum analog weight
// is closest to target, preferring configurations that can reach target.
// An empty calibration is restored to the defaults first.
func (r *SynapseRowCalibration) FindBestGmaxConfig(target float64) (GmaxConfig, error) {
	if len(r.trafos) == 0 {
		r.env.Log().Warn("no synapse calibration available, restoring default calibration")
		r.SetDefaults()
	}
	keys := r.Keys()
	if len(keys) == 1 {
		return keys[0], nil
	}

	maxWeight := make(map[GmaxConfig]float64, len(keys))
	var reaching []GmaxConfig
	for _, k := range keys {
		w, err := r.trafos[k].GetMaxAnalogWeight()
		if err != nil {
			return GmaxConfig{}, fmt.Errorf("%s: %w", k, err)
		}
		maxWeight[k] = w
		if target <= w {
			reaching = append(reaching, k)
		}
	}
	candidates := keys
	if len(reaching) > 0 {
		candidates = reaching
	}

	var best GmaxConfig
	lowest := math.Inf(1)
	for _, k := range candidates {
		if d := math.Abs(target - maxWeight[k]); d < lowest {
			lowest = d
			best = k
		}
	}
	r.env.Log().Debug("found gmax config", "target", target, "config", best.String(), "max_weight", maxWeight[best])
	return best, nil
}

func (r *SynapseRowCalibration) Equal(o *SynapseRowCalibration) bool {
	if o == nil || len(r.trafos) != len(o.trafos) {
		return false
	}
	for k, v := range r.trafos {
		w, ok := o.trafos[k]
		if !ok || !v.Equal(w) {
			return false
		}
	}
	return true
}

func (r *SynapseRowCalibration) String() string {
	var b strings.Builder
	b.WriteString("SynapseRowCalibration:\n")
	for _, k := range r.Keys() {
		fmt.Fprintf(&b, "%s\t%s\n", k, r.trafos[k])
	}
	return b.String()
}

func (r *SynapseRowCalibration) Kind() string       { return KindSynapseRowCalibration }
func (r *SynapseRowCalibration) SchemaVersion() int { return schema.VersionSynapseRow }

func (r *SynapseRowCalibration) EncodeValue() (schema.Object, error) {
	entries := schema.List{}
	for _, k := range r.Keys() {
		enc, err := schema.EncodeNested(r.trafos[k])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		entries = append(entries, schema.Object{
			"sel_vgmax": schema.Int(k.SelVgmax),
			"gmax_div":  schema.Int(k.GmaxDiv),
			"value":     enc,
		})
	}
	return schema.Object{"entries": entries}, nil
}

func (r *SynapseRowCalibration) DecodeValue(_ int, body schema.Object) error {
	entries, err := body.List("entries")
	if err != nil {
		return err
	}
	trafos := make(map[GmaxConfig]*SynapseCalibration, len(entries))
	for i, e := range entries {
		entry, ok := e.(schema.Object)
		if !ok {
			return calerr.Incompatible("entries", "entry %d: expected object, got %T", i, e)
		}
		sel, err := entry.Int("sel_vgmax")
		if err != nil {
			return err
		}
		div, err := entry.Int("gmax_div")
		if err != nil {
			return err
		}
		key, err := NewGmaxConfig(int(sel), int(div))
		if err != nil {
			return calerr.Incompatible("entries", "entry %d: %v", i, err)
		}
		enc, err := entry.Object("value")
		if err != nil {
			return err
		}
		sc := NewSynapseCalibration()
		if err := schema.DecodeNested(enc, sc); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if _, dup := trafos[key]; dup {
			return calerr.Incompatible("entries", "duplicate key %s", key)
		}
		trafos[key] = sc
	}
	r.trafos = trafos
	return nil
}

// SynapseRowCollection holds the row calibrations of a chip keyed by
// synapse row 0..SynapseRowCount-1.
type SynapseRowCollection struct {
	*calib.Collection[*SynapseRowCalibration]
	env calib.Env
}

// NewSynapseRowCollection creates an empty collection.
func NewSynapseRowCollection(env calib.Env) *SynapseRowCollection {
	return &SynapseRowCollection{
		Collection: calib.NewCollection(KindSynapseRowCollection, func() *SynapseRowCalibration {
			return NewSynapseRowCalibration(env)
		}),
		env: env,
	}
}

// SetDefaults assigns a copy of the default row calibration to every row.
func (c *SynapseRowCollection) SetDefaults() {
	row := NewSynapseRowCalibration(c.env)
	row.SetDefaults()
	c.fill(row)
}

// SetEssDefaults assigns the ESS row calibration to every row.
func (c *SynapseRowCollection) SetEssDefaults() error {
	row := NewSynapseRowCalibration(c.env)
	if err := row.SetEssDefaults(); err != nil {
		return err
	}
	c.fill(row)
	return nil
}

func (c *SynapseRowCollection) fill(row *SynapseRowCalibration) {
	for r := range SynapseRowCount {
		c.Put(r, row.Clone())
	}
}

// Equal compares rows.
func (c *SynapseRowCollection) Equal(o *SynapseRowCollection) bool {
	return o != nil && c.Collection.Equal(o.Collection)
}
