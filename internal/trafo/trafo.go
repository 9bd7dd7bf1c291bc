// Package trafo implements the scalar transformations calibration data is
// made of.
//
// The set of variants is closed: Constant, Polynomial, OneOverPolynomial,
// NegativePowersPolynomial, InvQuadraticPol, Lookup, SumOfTrafos and
// PowerOfTrafo. Each holds a domain and a reverse domain derived from it.
// Composite variants own their children; the structure is a tree.
package trafo

import (
	"fmt"
	"math"

	"github.com/roach88/calibtic/internal/calerr"
)

// DomainMin and DomainMax bound unbounded domains.
const (
	DomainMin = -math.MaxFloat64
	DomainMax = math.MaxFloat64
)

// Policy selects the behavior for values outside a domain.
type Policy int

const (
	// Clip clamps the value to the nearer domain bound. This is the default.
	Clip Policy = iota

	// Throw fails with a domain error.
	Throw

	// Ignore evaluates the value unclamped.
	Ignore
)

// String returns the policy name.
func (p Policy) String() string {
	switch p {
	case Clip:
		return "CLIP"
	case Throw:
		return "THROW"
	case Ignore:
		return "IGNORE"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// Kind tags a transformation variant. The values are persisted.
type Kind string

const (
	KindConstant                 Kind = "Constant"
	KindPolynomial               Kind = "Polynomial"
	KindOneOverPolynomial        Kind = "OneOverPolynomial"
	KindNegativePowersPolynomial Kind = "NegativePowersPolynomial"
	KindInvQuadraticPol          Kind = "InvQuadraticPol"
	KindLookup                   Kind = "Lookup"
	KindSumOfTrafos              Kind = "SumOfTrafos"
	KindPowerOfTrafo             Kind = "PowerOfTrafo"
)

// Transformation is a scalar mapping with domain semantics.
type Transformation interface {
	// Kind returns the variant tag.
	Kind() Kind

	// Apply evaluates the forward direction.
	Apply(x float64, p Policy) (float64, error)

	// ReverseApply evaluates the inverse direction where it is defined.
	ReverseApply(y float64, p Policy) (float64, error)

	// Domain is the closed input interval of Apply.
	Domain() Domain

	// ReverseDomain is the closed input interval of ReverseApply.
	ReverseDomain() Domain

	// SetDomain replaces the domain and recomputes the reverse domain.
	SetDomain(lo, hi float64) error

	// Equal reports structural equality.
	Equal(other Transformation) bool

	// Clone returns a deep copy.
	Clone() Transformation

	String() string

	// evaluate is the unguarded math used to derive reverse domains.
	// It may return infinities.
	evaluate(x float64) float64
}

// Domain is a closed interval.
type Domain struct {
	Lower float64
	Upper float64
}

// Contains reports whether x lies in [Lower, Upper].
func (d Domain) Contains(x float64) bool {
	return x >= d.Lower && x <= d.Upper
}

// Clamp returns x limited to the interval.
func (d Domain) Clamp(x float64) float64 {
	if x <= d.Lower {
		return d.Lower
	}
	if x >= d.Upper {
		return d.Upper
	}
	return x
}

func (d Domain) String() string {
	return fmt.Sprintf("[%v, %v]", d.Lower, d.Upper)
}

// bounds holds the forward and reverse domain of a transformation.
type bounds struct {
	domain  Domain
	reverse Domain
}

func fullBounds() bounds {
	full := Domain{DomainMin, DomainMax}
	return bounds{domain: full, reverse: full}
}

func (b *bounds) Domain() Domain        { return b.domain }
func (b *bounds) ReverseDomain() Domain { return b.reverse }

// respect applies the policy to a value checked against d.
func respect(x float64, p Policy, d Domain) (float64, error) {
	if d.Contains(x) {
		return x, nil
	}
	switch p {
	case Throw:
		return 0, calerr.Domain("Value %v outside of domain %v", x, d)
	case Ignore:
		return x, nil
	default:
		if x <= d.Lower {
			return d.Lower, nil
		}
		return d.Upper, nil
	}
}

// setDomain installs [lo, hi] on b and derives the reverse domain from
// the images of the bounds under t. Variants without an inverse keep an
// unbounded reverse domain.
func setDomain(t Transformation, b *bounds, lo, hi float64) error {
	if math.IsNaN(lo) || math.IsNaN(hi) || lo > hi {
		return calerr.InvalidArgument("invalid domain [%v, %v]", lo, hi)
	}
	b.domain = Domain{lo, hi}
	if !IsReversible(t) {
		b.reverse = Domain{DomainMin, DomainMax}
		return nil
	}

	aMin := t.evaluate(lo)
	aMax := t.evaluate(hi)
	if math.IsNaN(aMin) || math.IsNaN(aMax) {
		return calerr.InvalidArgument("%s: reverse domain of %v is NaN", t.Kind(), b.domain)
	}
	rMin, rMax := math.Min(aMin, aMax), math.Max(aMin, aMax)
	if math.IsInf(rMin, 0) {
		rMin = DomainMin
	}
	if math.IsInf(rMax, 0) {
		rMax = DomainMax
	}
	b.reverse = Domain{rMin, rMax}
	return nil
}

func notReversible(k Kind) error {
	return calerr.InvalidArgument("%s cannot be reversed", k)
}

// Equal reports whether two possibly nil transformations are equal.
func Equal(a, b Transformation) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(b)
}

// IsReversible reports whether t supports ReverseApply.
func IsReversible(t Transformation) bool {
	switch t.(type) {
	case *Polynomial, *NegativePowersPolynomial, *OneOverPolynomial, *Lookup:
		return true
	}
	return false
}
