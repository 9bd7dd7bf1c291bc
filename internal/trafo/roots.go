package trafo

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/mat"

	"github.com/roach88/calibtic/internal/calerr"
)

// newtonSteps bounds the refinement of eigenvalue roots.
const newtonSteps = 3

// realRoots returns the real roots of Σ cᵢ·xⁱ in ascending order.
//
// Roots are the eigenvalues of the companion matrix. Complex eigenvalues
// are discarded; real ones are polished with a few Newton steps on the
// original coefficients. A constant polynomial has no roots.
func realRoots(coeffs []float64) ([]float64, error) {
	// Drop vanishing leading coefficients.
	n := len(coeffs)
	for n > 0 && coeffs[n-1] == 0 {
		n--
	}
	c := coeffs[:n]
	degree := n - 1
	if degree < 1 {
		return nil, nil
	}
	if degree == 1 {
		return []float64{-c[0] / c[1]}, nil
	}

	lead := c[degree]
	companion := mat.NewDense(degree, degree, nil)
	for j := 0; j < degree; j++ {
		companion.Set(0, j, -c[degree-1-j]/lead)
	}
	for i := 1; i < degree; i++ {
		companion.Set(i, i-1, 1)
	}

	var eig mat.Eigen
	if ok := eig.Factorize(companion, mat.EigenNone); !ok {
		return nil, calerr.InvalidArgument("Search for roots didn't converge")
	}

	var roots []float64
	for _, v := range eig.Values(nil) {
		if imag(v) != 0 {
			continue
		}
		roots = append(roots, polish(c, real(v)))
	}
	slices.Sort(roots)
	return roots, nil
}

// polish refines root r of c with Newton's method, keeping a step only if
// it reduces the residual.
func polish(c []float64, r float64) float64 {
	res := math.Abs(horner(c, r))
	for i := 0; i < newtonSteps && res > 0; i++ {
		p, dp := hornerWithDerivative(c, r)
		if dp == 0 {
			break
		}
		next := r - p/dp
		nextRes := math.Abs(horner(c, next))
		if !(nextRes < res) {
			break
		}
		r, res = next, nextRes
	}
	return r
}

func hornerWithDerivative(c []float64, x float64) (p, dp float64) {
	for i := len(c) - 1; i >= 0; i-- {
		dp = dp*x + p
		p = p*x + c[i]
	}
	return p, dp
}
