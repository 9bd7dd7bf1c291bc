// Package calib provides the generic containers calibration data is stored
// in: Calibration (parameter id to transformation), Collection (integer key
// to calibration object) and the MetaData attached to stored datasets.
package calib

import (
	"fmt"

	"github.com/roach88/calibtic/internal/calerr"
	"github.com/roach88/calibtic/internal/schema"
	"github.com/roach88/calibtic/internal/trafo"
)

// KindCalibration tags a plain Calibration.
const KindCalibration = "Calibration"

// Calibration maps parameter ids 0..Capacity()-1 to optional
// transformations.
type Calibration struct {
	trafos []trafo.Transformation
}

// MaxSlots bounds the capacity accepted from stored data.
const MaxSlots = 1 << 16

// NewCalibration creates a calibration with size empty slots.
func NewCalibration(size int) *Calibration {
	return &Calibration{trafos: make([]trafo.Transformation, size)}
}

// Capacity is the number of slots.
func (c *Calibration) Capacity() int { return len(c.trafos) }

// Size counts the populated slots.
func (c *Calibration) Size() int {
	n := 0
	for _, t := range c.trafos {
		if t != nil {
			n++
		}
	}
	return n
}

// Exists reports whether slot id holds a transformation.
func (c *Calibration) Exists(id int) bool {
	return id >= 0 && id < len(c.trafos) && c.trafos[id] != nil
}

// At returns the transformation in slot id.
func (c *Calibration) At(id int) (trafo.Transformation, error) {
	if !c.Exists(id) {
		return nil, calerr.NotFound(fmt.Sprint(id), "No transformation available at %d", id)
	}
	return c.trafos[id], nil
}

// Reset replaces slot id. A nil transformation empties the slot.
func (c *Calibration) Reset(id int, t trafo.Transformation) error {
	if id < 0 || id >= len(c.trafos) {
		return calerr.InvalidArgument("slot %d out of range [0, %d)", id, len(c.trafos))
	}
	c.trafos[id] = t
	return nil
}

// Resize changes the number of slots, keeping existing entries that fit.
func (c *Calibration) Resize(size int) {
	next := make([]trafo.Transformation, size)
	copy(next, c.trafos)
	c.trafos = next
}

// Clear empties every slot.
func (c *Calibration) Clear() {
	clear(c.trafos)
}

// Apply evaluates slot id at x.
func (c *Calibration) Apply(id int, x float64, p trafo.Policy) (float64, error) {
	t, err := c.At(id)
	if err != nil {
		return 0, fmt.Errorf("uninitialized data: %w", err)
	}
	return t.Apply(x, p)
}

// ReverseApply evaluates the inverse of slot id at y.
func (c *Calibration) ReverseApply(id int, y float64, p trafo.Policy) (float64, error) {
	t, err := c.At(id)
	if err != nil {
		return 0, fmt.Errorf("uninitialized data: %w", err)
	}
	return t.ReverseApply(y, p)
}

// Equal compares capacity and every slot.
func (c *Calibration) Equal(o *Calibration) bool {
	if o == nil || len(c.trafos) != len(o.trafos) {
		return false
	}
	for i := range c.trafos {
		if !trafo.Equal(c.trafos[i], o.trafos[i]) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy.
func (c *Calibration) Clone() *Calibration {
	out := NewCalibration(len(c.trafos))
	for i, t := range c.trafos {
		if t != nil {
			out.trafos[i] = t.Clone()
		}
	}
	return out
}

func (c *Calibration) Kind() string       { return KindCalibration }
func (c *Calibration) SchemaVersion() int { return schema.VersionCalibration }

// EncodeValue stores the capacity and the populated slots.
func (c *Calibration) EncodeValue() (schema.Object, error) {
	slots := schema.List{}
	for i, t := range c.trafos {
		if t == nil {
			continue
		}
		enc, err := trafo.Encode(t)
		if err != nil {
			return nil, fmt.Errorf("slot %d: %w", i, err)
		}
		slots = append(slots, schema.Object{"id": schema.Int(i), "trafo": enc})
	}
	return schema.Object{
		"size":  schema.Int(len(c.trafos)),
		"slots": slots,
	}, nil
}

// DecodeValue replaces the content with body.
func (c *Calibration) DecodeValue(_ int, body schema.Object) error {
	size, err := body.Int("size")
	if err != nil {
		return err
	}
	slots, err := body.List("slots")
	if err != nil {
		return err
	}
	if size < 0 || size > MaxSlots {
		return calerr.Incompatible("size", "slot count %d out of range [0, %d]", size, MaxSlots)
	}
	next := make([]trafo.Transformation, size)
	for i, item := range slots {
		slot, ok := item.(schema.Object)
		if !ok {
			return calerr.Incompatible("slots", "slot entry %d: expected object, got %T", i, item)
		}
		id, err := slot.Int("id")
		if err != nil {
			return err
		}
		if id < 0 || id >= size {
			return calerr.Incompatible("slots", "slot id %d out of range [0, %d)", id, size)
		}
		enc, err := slot.Object("trafo")
		if err != nil {
			return err
		}
		if next[id], err = trafo.Decode(enc); err != nil {
			return fmt.Errorf("slot %d: %w", id, err)
		}
	}
	c.trafos = next
	return nil
}
