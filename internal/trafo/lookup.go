package trafo

import (
	"fmt"
	"slices"
	"sort"

	"github.com/roach88/calibtic/internal/calerr"
)

// Lookup maps a value to the index of its position in a sorted table,
// shifted by offset. The reverse direction indexes the table.
//
// Ascending tables are searched for the first entry >= x, descending
// tables for the first entry < x.
type Lookup struct {
	bounds
	data    []float64
	offset  int
	falling bool
}

// NewLookup creates a lookup over data, which must be sorted ascending or
// descending.
func NewLookup(data []float64, offset int) (*Lookup, error) {
	l := &Lookup{bounds: fullBounds(), data: slices.Clone(data), offset: offset}
	switch {
	case slices.IsSorted(l.data):
	case isSortedDescending(l.data):
		l.falling = true
	default:
		return nil, calerr.InvalidArgument("Lookup: Provided data is not sorted!")
	}
	if len(l.data) == 0 {
		return l, nil
	}
	lo, hi := l.data[0], l.data[len(l.data)-1]
	if l.falling {
		lo, hi = hi, lo
	}
	if err := l.SetDomain(lo, hi); err != nil {
		return nil, err
	}
	return l, nil
}

// MustLookup is like NewLookup but panics on error.
func MustLookup(data []float64, offset int) *Lookup {
	l, err := NewLookup(data, offset)
	if err != nil {
		panic(err)
	}
	return l
}

func isSortedDescending(data []float64) bool {
	for i := 1; i < len(data); i++ {
		if data[i] >= data[i-1] {
			return false
		}
	}
	return true
}

func (l *Lookup) Kind() Kind { return KindLookup }

// Data returns a copy of the table.
func (l *Lookup) Data() []float64 { return slices.Clone(l.data) }

// Offset is the index shift between table position and result.
func (l *Lookup) Offset() int { return l.offset }

// Falling reports whether the table is descending.
func (l *Lookup) Falling() bool { return l.falling }

func (l *Lookup) SetDomain(lo, hi float64) error { return setDomain(l, &l.bounds, lo, hi) }

func (l *Lookup) position(val float64) int {
	if l.falling {
		return sort.Search(len(l.data), func(i int) bool { return l.data[i] < val })
	}
	return sort.SearchFloat64s(l.data, val)
}

func (l *Lookup) evaluate(x float64) float64 {
	return float64(l.position(x) + l.offset - 1)
}

func (l *Lookup) Apply(x float64, policy Policy) (float64, error) {
	val, err := respect(x, policy, l.domain)
	if err != nil {
		return 0, err
	}
	return l.evaluate(val), nil
}

func (l *Lookup) ReverseApply(y float64, policy Policy) (float64, error) {
	val, err := respect(y, policy, l.reverse)
	if err != nil {
		return 0, err
	}
	idx := int(val) - l.offset
	if idx < 0 || idx >= len(l.data) {
		return 0, calerr.Domain("Lookup index %d outside of domain [0, %d)", idx, len(l.data))
	}
	return l.data[idx], nil
}

func (l *Lookup) Equal(other Transformation) bool {
	o, ok := other.(*Lookup)
	return ok && slices.Equal(l.data, o.data) && l.offset == o.offset && l.domain == o.domain
}

func (l *Lookup) Clone() Transformation {
	c := *l
	c.data = slices.Clone(l.data)
	return &c
}

func (l *Lookup) String() string {
	mode := "raising"
	if l.falling {
		mode = "falling"
	}
	return fmt.Sprintf("Lookup (offset: %d, search mode: %s, entries: %d), domain: %v", l.offset, mode, len(l.data), l.domain)
}
