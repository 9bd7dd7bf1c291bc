package trafo

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/calibtic/internal/calerr"
)

// Polynomial evaluates Σ cᵢ·xⁱ. Default domain is [0, DomainMax].
type Polynomial struct {
	bounds
	coeffs []float64
}

// NewPolynomial creates a polynomial with coefficients in ascending order.
func NewPolynomial(coeffs []float64, lo, hi float64) (*Polynomial, error) {
	p := &Polynomial{bounds: fullBounds(), coeffs: slices.Clone(coeffs)}
	if err := p.SetDomain(lo, hi); err != nil {
		return nil, err
	}
	return p, nil
}

// MustPolynomial is like NewPolynomial but panics on error.
// Use only for built-in defaults and tests.
func MustPolynomial(coeffs []float64, lo, hi float64) *Polynomial {
	p, err := NewPolynomial(coeffs, lo, hi)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Polynomial) Kind() Kind { return KindPolynomial }

// Coefficients returns a copy of the coefficients.
func (p *Polynomial) Coefficients() []float64 { return slices.Clone(p.coeffs) }

// Degree is the number of coefficients minus one.
func (p *Polynomial) Degree() int { return len(p.coeffs) - 1 }

func (p *Polynomial) SetDomain(lo, hi float64) error { return setDomain(p, &p.bounds, lo, hi) }

func (p *Polynomial) evaluate(x float64) float64 { return horner(p.coeffs, x) }

func (p *Polynomial) Apply(x float64, policy Policy) (float64, error) {
	val, err := respect(x, policy, p.domain)
	if err != nil {
		return 0, err
	}
	return horner(p.coeffs, val), nil
}

func (p *Polynomial) ReverseApply(y float64, policy Policy) (float64, error) {
	if len(p.coeffs) < 2 {
		return 0, calerr.InvalidArgument("Reverse transformation of constant not possible")
	}
	val, err := respect(y, policy, p.reverse)
	if err != nil {
		return 0, err
	}
	return singleRoot(p.FindRealRoots(val, false))
}

// FindRealRoots returns the real x with p(x) = value in ascending order.
// Unless extrapolate is set, roots outside the domain are dropped.
func (p *Polynomial) FindRealRoots(value float64, extrapolate bool) ([]float64, error) {
	roots, err := realRoots(shifted(p.coeffs, value))
	if err != nil {
		return nil, err
	}
	if extrapolate {
		return roots, nil
	}
	return slices.DeleteFunc(roots, func(r float64) bool { return !p.domain.Contains(r) }), nil
}

func (p *Polynomial) Equal(other Transformation) bool {
	o, ok := other.(*Polynomial)
	return ok && slices.Equal(p.coeffs, o.coeffs) && p.domain == o.domain
}

func (p *Polynomial) Clone() Transformation {
	c := *p
	c.coeffs = slices.Clone(p.coeffs)
	return &c
}

func (p *Polynomial) String() string {
	return fmt.Sprintf("Polynomial: %s, domain: %v", formatTerms(p.coeffs, "x^%d"), p.domain)
}

// NegativePowersPolynomial evaluates Σ cᵢ·x⁻ⁱ.
type NegativePowersPolynomial struct {
	bounds
	coeffs []float64
}

// NewNegativePowersPolynomial creates a polynomial in 1/x.
func NewNegativePowersPolynomial(coeffs []float64, lo, hi float64) (*NegativePowersPolynomial, error) {
	p := &NegativePowersPolynomial{bounds: fullBounds(), coeffs: slices.Clone(coeffs)}
	if err := p.SetDomain(lo, hi); err != nil {
		return nil, err
	}
	return p, nil
}

// MustNegativePowersPolynomial is like NewNegativePowersPolynomial but
// panics on error.
func MustNegativePowersPolynomial(coeffs []float64, lo, hi float64) *NegativePowersPolynomial {
	p, err := NewNegativePowersPolynomial(coeffs, lo, hi)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *NegativePowersPolynomial) Kind() Kind { return KindNegativePowersPolynomial }

// Coefficients returns a copy of the coefficients.
func (p *NegativePowersPolynomial) Coefficients() []float64 { return slices.Clone(p.coeffs) }

func (p *NegativePowersPolynomial) SetDomain(lo, hi float64) error {
	return setDomain(p, &p.bounds, lo, hi)
}

func (p *NegativePowersPolynomial) evaluate(x float64) float64 { return horner(p.coeffs, 1/x) }

func (p *NegativePowersPolynomial) Apply(x float64, policy Policy) (float64, error) {
	if x == 0 && len(p.coeffs) > 1 {
		return 0, calerr.InvalidArgument("Division by zero")
	}
	val, err := respect(x, policy, p.domain)
	if err != nil {
		return 0, err
	}
	return p.evaluate(val), nil
}

func (p *NegativePowersPolynomial) ReverseApply(y float64, policy Policy) (float64, error) {
	if len(p.coeffs) < 2 {
		return 0, calerr.InvalidArgument("Reverse transformation of constant not possible")
	}
	val, err := respect(y, policy, p.reverse)
	if err != nil {
		return 0, err
	}
	return singleRoot(p.FindRealRoots(val, false))
}

// FindRealRoots solves in u = 1/x and returns the reciprocals.
func (p *NegativePowersPolynomial) FindRealRoots(value float64, extrapolate bool) ([]float64, error) {
	us, err := realRoots(shifted(p.coeffs, value))
	if err != nil {
		return nil, err
	}
	roots := make([]float64, 0, len(us))
	for _, u := range us {
		x := 1 / u
		if extrapolate || p.domain.Contains(x) {
			roots = append(roots, x)
		}
	}
	slices.Sort(roots)
	return roots, nil
}

func (p *NegativePowersPolynomial) Equal(other Transformation) bool {
	o, ok := other.(*NegativePowersPolynomial)
	return ok && slices.Equal(p.coeffs, o.coeffs) && p.domain == o.domain
}

func (p *NegativePowersPolynomial) Clone() Transformation {
	c := *p
	c.coeffs = slices.Clone(p.coeffs)
	return &c
}

func (p *NegativePowersPolynomial) String() string {
	return fmt.Sprintf("NegativePowersPolynomial: %s, domain: %v", formatTerms(p.coeffs, "x^-%d"), p.domain)
}

// OneOverPolynomial evaluates 1/p(x).
type OneOverPolynomial struct {
	bounds
	poly *Polynomial
}

// NewOneOverPolynomial creates the reciprocal of a polynomial. The inner
// polynomial shares the domain.
func NewOneOverPolynomial(coeffs []float64, lo, hi float64) (*OneOverPolynomial, error) {
	inner, err := NewPolynomial(coeffs, lo, hi)
	if err != nil {
		return nil, err
	}
	p := &OneOverPolynomial{bounds: fullBounds(), poly: inner}
	if err := setDomain(p, &p.bounds, lo, hi); err != nil {
		return nil, err
	}
	return p, nil
}

// MustOneOverPolynomial is like NewOneOverPolynomial but panics on error.
func MustOneOverPolynomial(coeffs []float64, lo, hi float64) *OneOverPolynomial {
	p, err := NewOneOverPolynomial(coeffs, lo, hi)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *OneOverPolynomial) Kind() Kind { return KindOneOverPolynomial }

// Coefficients returns a copy of the inner polynomial's coefficients.
func (p *OneOverPolynomial) Coefficients() []float64 { return p.poly.Coefficients() }

func (p *OneOverPolynomial) SetDomain(lo, hi float64) error {
	if err := p.poly.SetDomain(lo, hi); err != nil {
		return err
	}
	return setDomain(p, &p.bounds, lo, hi)
}

func (p *OneOverPolynomial) evaluate(x float64) float64 { return 1 / p.poly.evaluate(x) }

func (p *OneOverPolynomial) Apply(x float64, policy Policy) (float64, error) {
	val, err := respect(x, policy, p.domain)
	if err != nil {
		return 0, err
	}
	r, err := p.poly.Apply(val, policy)
	if err != nil {
		return 0, err
	}
	return 1 / r, nil
}

func (p *OneOverPolynomial) ReverseApply(y float64, policy Policy) (float64, error) {
	if y == 0 {
		return 0, calerr.InvalidArgument("reverseApply(0) not possible")
	}
	val, err := respect(y, policy, p.reverse)
	if err != nil {
		return 0, err
	}
	return p.poly.ReverseApply(1/val, policy)
}

// FindRealRoots returns the real x with 1/p(x) = value.
func (p *OneOverPolynomial) FindRealRoots(value float64, extrapolate bool) ([]float64, error) {
	if value == 0 {
		return nil, nil
	}
	return p.poly.FindRealRoots(1/value, extrapolate)
}

func (p *OneOverPolynomial) Equal(other Transformation) bool {
	o, ok := other.(*OneOverPolynomial)
	return ok && p.domain == o.domain && p.poly.Equal(o.poly)
}

func (p *OneOverPolynomial) Clone() Transformation {
	c := *p
	c.poly = p.poly.Clone().(*Polynomial)
	return &c
}

func (p *OneOverPolynomial) String() string {
	return fmt.Sprintf("OneOverPolynomial: 1 / (%s), domain: %v", formatTerms(p.poly.coeffs, "x^%d"), p.domain)
}

// horner evaluates Σ cᵢ·xⁱ.
func horner(coeffs []float64, x float64) float64 {
	if len(coeffs) == 0 {
		return 0
	}
	r := coeffs[len(coeffs)-1]
	for i := len(coeffs) - 2; i >= 0; i-- {
		r = r*x + coeffs[i]
	}
	return r
}

// shifted returns the coefficients of p(x) - value.
func shifted(coeffs []float64, value float64) []float64 {
	c := slices.Clone(coeffs)
	if len(c) > 0 {
		c[0] -= value
	}
	return c
}

func singleRoot(roots []float64, err error) (float64, error) {
	if err != nil {
		return 0, err
	}
	if len(roots) != 1 {
		return 0, calerr.Domain("No solutions or more than one solution in domain found.")
	}
	return roots[0], nil
}

func formatTerms(coeffs []float64, power string) string {
	var b strings.Builder
	for i, c := range coeffs {
		if i == 0 {
			fmt.Fprintf(&b, "%v", c)
			continue
		}
		fmt.Fprintf(&b, " + %v*"+power, c, i)
	}
	return b.String()
}
