package trafo

import (
	"fmt"
	"math"
	"strings"
)

// SumOfTrafos adds the results of its children, each applied with Clip.
type SumOfTrafos struct {
	bounds
	children []Transformation
}

// NewSumOfTrafos creates a sum over the full domain. The children are
// cloned.
func NewSumOfTrafos(children ...Transformation) *SumOfTrafos {
	return &SumOfTrafos{bounds: fullBounds(), children: cloneAll(children)}
}

func (s *SumOfTrafos) Kind() Kind { return KindSumOfTrafos }

// Children returns copies of the summands.
func (s *SumOfTrafos) Children() []Transformation { return cloneAll(s.children) }

func (s *SumOfTrafos) SetDomain(lo, hi float64) error { return setDomain(s, &s.bounds, lo, hi) }

func (s *SumOfTrafos) evaluate(x float64) float64 {
	r := 0.0
	for _, c := range s.children {
		r += c.evaluate(c.Domain().Clamp(x))
	}
	return r
}

func (s *SumOfTrafos) Apply(x float64, policy Policy) (float64, error) {
	val, err := respect(x, policy, s.domain)
	if err != nil {
		return 0, err
	}
	r := 0.0
	for i, c := range s.children {
		v, err := c.Apply(val, Clip)
		if err != nil {
			return 0, fmt.Errorf("summand %d: %w", i, err)
		}
		r += v
	}
	return r, nil
}

func (s *SumOfTrafos) ReverseApply(float64, Policy) (float64, error) {
	return 0, notReversible(s.Kind())
}

func (s *SumOfTrafos) Equal(other Transformation) bool {
	o, ok := other.(*SumOfTrafos)
	if !ok || s.domain != o.domain || len(s.children) != len(o.children) {
		return false
	}
	for i := range s.children {
		if !s.children[i].Equal(o.children[i]) {
			return false
		}
	}
	return true
}

func (s *SumOfTrafos) Clone() Transformation {
	c := *s
	c.children = cloneAll(s.children)
	return &c
}

func (s *SumOfTrafos) String() string {
	parts := make([]string, len(s.children))
	for i, c := range s.children {
		parts[i] = c.String()
	}
	return "SumOfTrafos: (" + strings.Join(parts, ") + (") + ")"
}

// PowerOfTrafo raises the result of its child to a fixed power. Without a
// child the input itself is raised.
type PowerOfTrafo struct {
	bounds
	power float64
	child Transformation
}

// NewPowerOfTrafo creates child(x)^power over the full domain. child may
// be nil.
func NewPowerOfTrafo(power float64, child Transformation) *PowerOfTrafo {
	p := &PowerOfTrafo{bounds: fullBounds(), power: power}
	if child != nil {
		p.child = child.Clone()
	}
	return p
}

func (p *PowerOfTrafo) Kind() Kind { return KindPowerOfTrafo }

// Power returns the exponent.
func (p *PowerOfTrafo) Power() float64 { return p.power }

// Child returns a copy of the base transformation, or nil.
func (p *PowerOfTrafo) Child() Transformation {
	if p.child == nil {
		return nil
	}
	return p.child.Clone()
}

func (p *PowerOfTrafo) SetDomain(lo, hi float64) error { return setDomain(p, &p.bounds, lo, hi) }

func (p *PowerOfTrafo) evaluate(x float64) float64 {
	if p.child == nil {
		return math.Pow(x, p.power)
	}
	return math.Pow(p.child.evaluate(p.child.Domain().Clamp(x)), p.power)
}

func (p *PowerOfTrafo) Apply(x float64, policy Policy) (float64, error) {
	val, err := respect(x, policy, p.domain)
	if err != nil {
		return 0, err
	}
	if p.child == nil {
		return math.Pow(val, p.power), nil
	}
	base, err := p.child.Apply(val, Clip)
	if err != nil {
		return 0, err
	}
	return math.Pow(base, p.power), nil
}

func (p *PowerOfTrafo) ReverseApply(float64, Policy) (float64, error) {
	return 0, notReversible(p.Kind())
}

func (p *PowerOfTrafo) Equal(other Transformation) bool {
	o, ok := other.(*PowerOfTrafo)
	return ok && p.power == o.power && p.domain == o.domain && Equal(p.child, o.child)
}

func (p *PowerOfTrafo) Clone() Transformation {
	c := *p
	if p.child != nil {
		c.child = p.child.Clone()
	}
	return &c
}

func (p *PowerOfTrafo) String() string {
	if p.child == nil {
		return fmt.Sprintf("PowerOfTrafo: x^%v", p.power)
	}
	return fmt.Sprintf("PowerOfTrafo: (%s)^%v", p.child, p.power)
}

func cloneAll(ts []Transformation) []Transformation {
	out := make([]Transformation, len(ts))
	for i, t := range ts {
		out[i] = t.Clone()
	}
	return out
}
