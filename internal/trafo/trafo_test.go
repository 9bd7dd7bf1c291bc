package trafo

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/calibtic/internal/calerr"
)

func apply(t *testing.T, tr Transformation, x float64) float64 {
	t.Helper()
	y, err := tr.Apply(x, Clip)
	require.NoError(t, err)
	return y
}

func TestPolynomialApply(t *testing.T) {
	assert.Equal(t, 3.5, apply(t, MustPolynomial([]float64{1, 0.5}, 0, DomainMax), 5))
	assert.Equal(t, 17.0, apply(t, MustPolynomial([]float64{1, 2, 3}, 0, DomainMax), 2))
	assert.Equal(t, 4.0, apply(t, MustPolynomial([]float64{4}, 0, DomainMax), 100))
}

func TestPolynomialDomainPolicies(t *testing.T) {
	p := MustPolynomial([]float64{0, 0, 1}, 0, 3)

	// Clip is the default policy.
	assert.Equal(t, 9.0, apply(t, p, 4))
	assert.Equal(t, apply(t, p, 3), apply(t, p, 4))
	assert.Equal(t, 0.0, apply(t, p, -4))
	assert.Equal(t, apply(t, p, 0), apply(t, p, -4))

	_, err := p.Apply(4, Throw)
	require.Error(t, err)
	assert.True(t, calerr.IsDomain(err))
	assert.Contains(t, err.Error(), "outside of domain")

	y, err := p.Apply(4, Ignore)
	require.NoError(t, err)
	assert.Equal(t, 16.0, y)

	unbounded := MustPolynomial([]float64{0, 0, 1}, DomainMin, DomainMax)
	for _, x := range []float64{-7.5, -1, 0, 2, 3.5, 100} {
		got, err := p.Apply(x, Ignore)
		require.NoError(t, err)
		assert.Equal(t, apply(t, unbounded, x), got)
	}
}

func TestPolynomialClipBeyondDomainIsConstant(t *testing.T) {
	p := MustPolynomial([]float64{1, -2, 0.5}, -1, 2)
	hi, lo := apply(t, p, 2), apply(t, p, -1)
	for _, x := range []float64{2.0001, 3, 1e9} {
		assert.Equal(t, hi, apply(t, p, x))
	}
	for _, x := range []float64{-1.0001, -3, -1e9} {
		assert.Equal(t, lo, apply(t, p, x))
	}
}

func TestPolynomialReverseDomainClipIsIdempotent(t *testing.T) {
	p := MustPolynomial([]float64{0, 2}, 0, 3)
	rd := p.ReverseDomain()
	assert.Equal(t, Domain{0, 6}, rd)

	atBound, err := p.ReverseApply(rd.Upper, Clip)
	require.NoError(t, err)
	beyond, err := p.ReverseApply(rd.Upper+10, Clip)
	require.NoError(t, err)
	assert.Equal(t, atBound, beyond)
	assert.InDelta(t, 3.0, beyond, 1e-12)

	_, err = p.ReverseApply(rd.Upper+10, Throw)
	assert.True(t, calerr.IsDomain(err))
}

func TestPolynomialReverseRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	p := MustPolynomial([]float64{1, 0.5}, 0, DomainMax)
	p2 := MustPolynomial([]float64{1, 2, 3}, 0, 50)

	for i := 0; i < 20; i++ {
		val := float64(rng.Intn(500)) * 0.1
		back, err := p.ReverseApply(apply(t, p, val), Clip)
		require.NoError(t, err)
		assert.InDelta(t, val, back, 1e-3)

		back, err = p2.ReverseApply(apply(t, p2, val), Clip)
		require.NoError(t, err)
		assert.InDelta(t, val, back, 1e-3)
	}
}

func TestPolynomialReverseErrors(t *testing.T) {
	_, err := MustPolynomial([]float64{3}, 0, 1).ReverseApply(3, Clip)
	assert.Error(t, err)

	// x² = y has two roots inside [-2, 2]
	p := MustPolynomial([]float64{0, 0, 1}, -2, 2)
	_, err = p.ReverseApply(1, Clip)
	require.Error(t, err)
	assert.True(t, calerr.IsDomain(err))
}

func TestFindRealRoots(t *testing.T) {
	// (x-1)(x-2)(x+3) = x³ - 7x + 6
	p := MustPolynomial([]float64{6, -7, 0, 1}, 0, 10)

	all, err := p.FindRealRoots(0, true)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.InDelta(t, -3, all[0], 1e-9)
	assert.InDelta(t, 1, all[1], 1e-9)
	assert.InDelta(t, 2, all[2], 1e-9)

	inDomain, err := p.FindRealRoots(0, false)
	require.NoError(t, err)
	assert.Len(t, inDomain, 2)

	// x² + 1 has no real roots
	none, err := MustPolynomial([]float64{1, 0, 1}, DomainMin, DomainMax).FindRealRoots(0, true)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestConstant(t *testing.T) {
	assert.Equal(t, 2.5, apply(t, NewConstant(2.5), 5))
	assert.Equal(t, 0.0, apply(t, NewConstant(0), 5))
	_, err := NewConstant(1).ReverseApply(1, Clip)
	assert.Error(t, err)
}

func TestInvQuadraticPol(t *testing.T) {
	s, err := NewInvQuadraticPol([]float64{-2, 4, 1, 2}, false, 0, DomainMax)
	require.NoError(t, err)
	assert.InDelta(t, 1.6458, apply(t, s, 5), 0.01)
	assert.InDelta(t, 1.0, apply(t, s, 2), 0.01)

	neg, err := NewInvQuadraticPol([]float64{0, -1, 0, 1}, false, DomainMin, DomainMax)
	require.NoError(t, err)
	_, err = neg.Apply(1, Clip)
	assert.Error(t, err)

	_, err = NewInvQuadraticPol([]float64{1, 2}, false, 0, 1)
	assert.Error(t, err)
}

func TestOneOverPolynomial(t *testing.T) {
	assert.Equal(t, 0.2, apply(t, MustOneOverPolynomial([]float64{5}, 0, DomainMax), 0))
	assert.Equal(t, 0.2, apply(t, MustOneOverPolynomial([]float64{5, 0}, 0, DomainMax), 1))
	o3 := MustOneOverPolynomial([]float64{5, 1}, 0, DomainMax)
	assert.InDelta(t, 0.166, apply(t, o3, 1), 0.01)
	assert.InDelta(t, 0.1428, apply(t, o3, 2), 0.01)
}

func TestOneOverPolynomialReverse(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	p := MustOneOverPolynomial([]float64{1, 0.5}, 0, DomainMax)
	p2 := MustOneOverPolynomial([]float64{1, 2, 3}, 0, 50)

	for i := 0; i < 20; i++ {
		val := float64(rng.Intn(500)) * 0.1
		y := float64(rng.Intn(9))*0.1 + 0.1

		back, err := p.ReverseApply(apply(t, p, val), Clip)
		require.NoError(t, err)
		assert.InDelta(t, val, back, 1e-3)

		x, err := p.ReverseApply(y, Clip)
		require.NoError(t, err)
		assert.InDelta(t, y, apply(t, p, x), 1e-3)

		back, err = p2.ReverseApply(apply(t, p2, val), Clip)
		require.NoError(t, err)
		assert.InDelta(t, val, back, 1e-3)
	}

	_, err := p.ReverseApply(0, Clip)
	assert.Error(t, err)
}

func TestNegativePowersPolynomial(t *testing.T) {
	o1 := MustNegativePowersPolynomial([]float64{5}, 0, DomainMax)
	assert.Equal(t, 5.0, apply(t, o1, 0))
	assert.Equal(t, 5.0, apply(t, o1, 1))

	o2 := MustNegativePowersPolynomial([]float64{1, 5}, 0, DomainMax)
	assert.InDelta(t, 6, apply(t, o2, 1), 0.01)
	assert.InDelta(t, 3.5, apply(t, o2, 2), 0.01)

	_, err := o2.Apply(0, Clip)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Division by zero")
}

func TestNegativePowersPolynomialReverse(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	p := MustNegativePowersPolynomial([]float64{1, 0.5}, 0, DomainMax)
	p2 := MustNegativePowersPolynomial([]float64{1, 2, 3}, 0.1, 50)

	for i := 0; i < 20; i++ {
		val := float64(rng.Intn(499))*0.1 + 0.1
		back, err := p.ReverseApply(apply(t, p, val), Clip)
		require.NoError(t, err)
		assert.InDelta(t, val, back, 1e-3)

		back, err = p2.ReverseApply(apply(t, p2, val), Clip)
		require.NoError(t, err)
		assert.InDelta(t, val, back, 1e-3)
	}
}

func TestNegativePowersPolynomialReverseIllConditioned(t *testing.T) {
	// Coefficients spanning 25 orders of magnitude, as in conductance
	// calibrations.
	p := MustNegativePowersPolynomial([]float64{1.5, 6.0e-6, 1.2726035e-10, 5.383965e-17, 4.0e-25}, 5.41e-7, 4.82e-5)
	for _, x := range []float64{6.49585e-7, 1e-6, 5e-6, 4e-5} {
		back, err := p.ReverseApply(apply(t, p, x), Throw)
		require.NoError(t, err)
		assert.InEpsilon(t, x, back, 1e-6)
	}
}

func TestSumOfTrafos(t *testing.T) {
	assert.Equal(t, 7.0, apply(t, NewSumOfTrafos(NewConstant(3), NewConstant(4)), 123))
	assert.Equal(t, 12.0, apply(t, NewSumOfTrafos(NewConstant(5), NewConstant(7)), 0))

	mixed := NewSumOfTrafos(MustNegativePowersPolynomial([]float64{1, 5}, 0, DomainMax), NewConstant(7))
	assert.InDelta(t, 10.5, apply(t, mixed, 2), 0.01)

	iq, err := NewInvQuadraticPol([]float64{-2, 4, 1, 2}, false, 0, DomainMax)
	require.NoError(t, err)
	mixed2 := NewSumOfTrafos(MustNegativePowersPolynomial([]float64{1, 5}, 0, DomainMax), iq)
	assert.InDelta(t, 4.5, apply(t, mixed2, 2), 0.01)

	_, err = mixed.ReverseApply(1, Clip)
	assert.Error(t, err)
}

func TestPowerOfTrafo(t *testing.T) {
	assert.InDelta(t, 2.2360679, apply(t, NewPowerOfTrafo(0.5, NewConstant(5)), 1), 1e-3)
	assert.InDelta(t, 1.4142135, apply(t, NewPowerOfTrafo(0.5, NewConstant(2)), 42), 1e-6)
	assert.InDelta(t, 0.002911954752,
		apply(t, NewPowerOfTrafo(3, MustOneOverPolynomial([]float64{5, 1}, 0, DomainMax)), 2), 1e-3)
	assert.Equal(t, 8.0, apply(t, NewPowerOfTrafo(3, nil), 2))
}

func TestLookupRaising(t *testing.T) {
	l := MustLookup([]float64{1, 2, 4, 8}, 10)
	assert.False(t, l.Falling())
	assert.Equal(t, Domain{1, 8}, l.Domain())

	assert.Equal(t, 9.0, apply(t, l, 1))
	assert.Equal(t, 11.0, apply(t, l, 3))
	assert.Equal(t, 12.0, apply(t, l, 8))

	y, err := l.ReverseApply(11, Clip)
	require.NoError(t, err)
	assert.Equal(t, 2.0, y)
}

func TestLookupFalling(t *testing.T) {
	l := MustLookup([]float64{8, 4, 2, 1}, 5)
	assert.True(t, l.Falling())
	assert.Equal(t, Domain{1, 8}, l.Domain())
	assert.Equal(t, Domain{5, 8}, l.ReverseDomain())

	// first entry below 3 is index 2
	assert.Equal(t, 6.0, apply(t, l, 3))
	assert.Equal(t, 5.0, apply(t, l, 8))

	y, err := l.ReverseApply(7, Clip)
	require.NoError(t, err)
	assert.Equal(t, 2.0, y)

	clipped, err := l.ReverseApply(100, Clip)
	require.NoError(t, err)
	assert.Equal(t, 1.0, clipped)
}

func TestLookupUnsorted(t *testing.T) {
	_, err := NewLookup([]float64{1, 3, 2}, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not sorted")
}

func TestEquality(t *testing.T) {
	a := MustPolynomial([]float64{1, 2}, 0, 5)
	assert.True(t, a.Equal(MustPolynomial([]float64{1, 2}, 0, 5)))
	assert.False(t, a.Equal(MustPolynomial([]float64{1, 2}, 0, 6)))
	assert.False(t, a.Equal(MustNegativePowersPolynomial([]float64{1, 2}, 0, 5)))
	assert.False(t, a.Equal(NewConstant(1)))

	assert.True(t, NewPowerOfTrafo(2, nil).Equal(NewPowerOfTrafo(2, nil)))
	assert.False(t, NewPowerOfTrafo(2, nil).Equal(NewPowerOfTrafo(2, NewConstant(1))))
	assert.True(t, Equal(nil, nil))
	assert.False(t, Equal(a, nil))
}

func TestEqualityComparesDomain(t *testing.T) {
	for name, mk := range map[string]func() Transformation{
		"constant": func() Transformation { return NewConstant(1) },
		"sum":      func() Transformation { return NewSumOfTrafos(NewConstant(1), NewConstant(2)) },
		"power":    func() Transformation { return NewPowerOfTrafo(2, NewConstant(3)) },
	} {
		t.Run(name, func(t *testing.T) {
			a, b := mk(), mk()
			require.True(t, a.Equal(b))
			require.NoError(t, b.SetDomain(0, 10))
			assert.False(t, a.Equal(b))
			assert.False(t, b.Equal(a))
		})
	}
}

func TestCloneIsDeep(t *testing.T) {
	a := MustPolynomial([]float64{1, 2}, 0, 5)
	b := a.Clone()
	require.NoError(t, b.SetDomain(0, 1))
	assert.Equal(t, Domain{0, 5}, a.Domain())
	assert.False(t, a.Equal(b))
}

func TestSetDomainValidation(t *testing.T) {
	p := MustPolynomial([]float64{1, 1}, 0, 1)
	assert.Error(t, p.SetDomain(2, 1))
	assert.Error(t, p.SetDomain(math.NaN(), 1))

	// infinite images are stripped to the representable range
	require.NoError(t, p.SetDomain(0, DomainMax))
	assert.Equal(t, DomainMax, p.ReverseDomain().Upper)
}
