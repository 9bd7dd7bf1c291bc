package trafo

import (
	"fmt"
	"math"
	"slices"

	"github.com/roach88/calibtic/internal/calerr"
)

// Constant ignores its input.
type Constant struct {
	bounds
	value float64
}

// NewConstant creates a constant transformation over the full domain.
func NewConstant(value float64) *Constant {
	return &Constant{bounds: fullBounds(), value: value}
}

func (c *Constant) Kind() Kind { return KindConstant }

// Value returns the constant.
func (c *Constant) Value() float64 { return c.value }

func (c *Constant) SetDomain(lo, hi float64) error { return setDomain(c, &c.bounds, lo, hi) }

func (c *Constant) evaluate(float64) float64 { return c.value }

func (c *Constant) Apply(x float64, policy Policy) (float64, error) {
	if _, err := respect(x, policy, c.domain); err != nil {
		return 0, err
	}
	return c.value, nil
}

func (c *Constant) ReverseApply(float64, Policy) (float64, error) {
	return 0, calerr.InvalidArgument("Reverse transformation of constant not possible")
}

func (c *Constant) Equal(other Transformation) bool {
	o, ok := other.(*Constant)
	return ok && c.value == o.value && c.domain == o.domain
}

func (c *Constant) Clone() Transformation {
	cc := *c
	return &cc
}

func (c *Constant) String() string {
	return fmt.Sprintf("Constant: %v", c.value)
}

// InvQuadraticPol evaluates (d0 ± sqrt(d0² + d1·(d2 + x))) / d3, the
// inverse of a quadratic. negative selects the minus branch.
type InvQuadraticPol struct {
	bounds
	data     [4]float64
	negative bool
}

// NewInvQuadraticPol creates the inverse-quadratic transformation.
func NewInvQuadraticPol(data []float64, negative bool, lo, hi float64) (*InvQuadraticPol, error) {
	if len(data) != 4 {
		return nil, calerr.InvalidArgument("invalid data set: need 4 coefficients, got %d", len(data))
	}
	p := &InvQuadraticPol{bounds: fullBounds(), negative: negative}
	copy(p.data[:], data)
	if err := p.SetDomain(lo, hi); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *InvQuadraticPol) Kind() Kind { return KindInvQuadraticPol }

// Coefficients returns the four coefficients.
func (p *InvQuadraticPol) Coefficients() []float64 { return slices.Clone(p.data[:]) }

// Negative reports whether the minus branch is used.
func (p *InvQuadraticPol) Negative() bool { return p.negative }

func (p *InvQuadraticPol) SetDomain(lo, hi float64) error { return setDomain(p, &p.bounds, lo, hi) }

func (p *InvQuadraticPol) radicand(x float64) float64 {
	return p.data[0]*p.data[0] + p.data[1]*(p.data[2]+x)
}

func (p *InvQuadraticPol) sign() float64 {
	if p.negative {
		return -1
	}
	return 1
}

func (p *InvQuadraticPol) evaluate(x float64) float64 {
	return (p.data[0] + p.sign()*math.Sqrt(p.radicand(x))) / p.data[3]
}

func (p *InvQuadraticPol) Apply(x float64, policy Policy) (float64, error) {
	val, err := respect(x, policy, p.domain)
	if err != nil {
		return 0, err
	}
	if p.radicand(val) < 0 {
		return 0, calerr.Domain("imaginary result at %v", val)
	}
	return p.evaluate(val), nil
}

func (p *InvQuadraticPol) ReverseApply(float64, Policy) (float64, error) {
	return 0, notReversible(p.Kind())
}

func (p *InvQuadraticPol) Equal(other Transformation) bool {
	o, ok := other.(*InvQuadraticPol)
	return ok && p.data == o.data && p.negative == o.negative && p.domain == o.domain
}

func (p *InvQuadraticPol) Clone() Transformation {
	c := *p
	return &c
}

func (p *InvQuadraticPol) String() string {
	return fmt.Sprintf("InvQuadraticPol: %v (negative: %t), domain: %v", p.data, p.negative, p.domain)
}
