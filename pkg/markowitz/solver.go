// Package markowitz computes closed-form minimum-variance portfolios and
// sweeps them across target returns to trace the efficient frontier.
//
// For a target return mu, expected returns r and covariance C the solver
// minimises w'Cw subject to w'r = mu and w'1 = 1. The stationary point of
// the Lagrangian is
//
//	x1 = r'C⁻¹1, x2 = r'C⁻¹r, x3 = 1'C⁻¹1, D = x2*x3 - x1²
//	λ1 = (x3*mu - x1) / D
//	λ2 = (x2 - x1*mu) / D
//	w  = C⁻¹(λ1*r + λ2*1)
//
// Weights are unconstrained in sign; short positions are valid output.
package markowitz

import (
	"encoding/json"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	// symmetryTolerance is relative to the largest absolute covariance entry.
	symmetryTolerance = 1e-9

	// degenerateTolerance is relative to x2*x3, the scale of D.
	degenerateTolerance = 1e-12
)

// Point is one minimum-variance portfolio on the frontier. Variance and
// standard deviation are derived from the weights and cannot be set apart
// from them.
type Point struct {
	mu       float64
	weights  []float64
	variance float64
	stdDev   float64
}

// Mu returns the target return the point was solved for.
func (p Point) Mu() float64 { return p.mu }

// Variance returns w'Cw.
func (p Point) Variance() float64 { return p.variance }

// StdDev returns the square root of the variance.
func (p Point) StdDev() float64 { return p.stdDev }

// Len returns the number of assets in the allocation.
func (p Point) Len() int { return len(p.weights) }

// Weight returns the allocation of asset i.
func (p Point) Weight(i int) float64 { return p.weights[i] }

// Weights returns a copy of the allocation.
func (p Point) Weights() []float64 {
	out := make([]float64, len(p.weights))
	copy(out, p.weights)
	return out
}

type pointJSON struct {
	Mu       float64   `json:"mu"`
	Weights  []float64 `json:"weights"`
	Variance float64   `json:"variance"`
	StdDev   float64   `json:"stdDev"`
}

// MarshalJSON encodes the point with its derived fields.
func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal(pointJSON{
		Mu:       p.mu,
		Weights:  p.weights,
		Variance: p.variance,
		StdDev:   p.stdDev,
	})
}

// Basis holds everything about a market that does not depend on the target
// return: the inverted covariance matrix and the scalars x1, x2, x3 and D.
// A Basis is immutable once built and safe for concurrent use.
type Basis struct {
	n          int
	cov        *mat.SymDense
	invReturns *mat.VecDense // C⁻¹r
	invOnes    *mat.VecDense // C⁻¹1
	x1, x2, x3 float64
	d          float64
}

// NewBasis validates the market inputs, inverts the covariance matrix once
// and precomputes the scalars used by every Point call.
func NewBasis(expectedReturn []float64, covariance mat.Matrix) (*Basis, error) {
	cov, err := symmetricCopy(expectedReturn, covariance)
	if err != nil {
		return nil, err
	}
	n := len(expectedReturn)

	var inv mat.Dense
	if err := inv.Inverse(cov); err != nil {
		// gonum reports both exact singularity and a condition number past
		// its tolerance through this error.
		return nil, fmt.Errorf("%w: %v", ErrSingularMatrix, err)
	}

	r := mat.NewVecDense(n, append([]float64(nil), expectedReturn...))
	ones := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		ones.SetVec(i, 1)
	}

	invReturns := mat.NewVecDense(n, nil)
	invReturns.MulVec(&inv, r)
	invOnes := mat.NewVecDense(n, nil)
	invOnes.MulVec(&inv, ones)

	b := &Basis{
		n:          n,
		cov:        cov,
		invReturns: invReturns,
		invOnes:    invOnes,
		x1:         mat.Dot(r, invOnes),
		x2:         mat.Dot(r, invReturns),
		x3:         mat.Dot(ones, invOnes),
	}
	b.d = b.x2*b.x3 - b.x1*b.x1

	for _, v := range []float64{b.x1, b.x2, b.x3, b.d} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: inverse produced non-finite values", ErrSingularMatrix)
		}
	}

	scale := math.Max(math.Abs(b.x2*b.x3), b.x1*b.x1)
	if scale == 0 || math.Abs(b.d) <= degenerateTolerance*scale {
		return nil, fmt.Errorf("%w: D=%g", ErrDegenerateInput, b.d)
	}

	return b, nil
}

// Len returns the number of assets the basis was built for.
func (b *Basis) Len() int { return b.n }

// Scalars returns x1, x2, x3 and D.
func (b *Basis) Scalars() (x1, x2, x3, d float64) {
	return b.x1, b.x2, b.x3, b.d
}

// Point solves the minimum-variance allocation for a single target return.
func (b *Basis) Point(mu float64) (Point, error) {
	if math.IsNaN(mu) || math.IsInf(mu, 0) {
		return Point{}, fmt.Errorf("%w: %v", ErrInvalidTarget, mu)
	}

	lambda1 := (b.x3*mu - b.x1) / b.d
	lambda2 := (b.x2 - b.x1*mu) / b.d

	// C⁻¹(λ1*r + λ2*1) expanded over the cached products.
	w := mat.NewVecDense(b.n, nil)
	w.ScaleVec(lambda1, b.invReturns)
	w.AddScaledVec(w, lambda2, b.invOnes)

	variance := mat.Inner(w, b.cov, w)
	if math.IsNaN(variance) || math.IsInf(variance, 0) {
		return Point{}, fmt.Errorf("%w: non-finite variance for target %g", ErrSingularMatrix, mu)
	}
	// Rounding can push a zero-risk quadratic form just below zero.
	if variance < 0 {
		variance = 0
	}

	weights := make([]float64, b.n)
	for i := range weights {
		weights[i] = w.AtVec(i)
	}

	return Point{
		mu:       mu,
		weights:  weights,
		variance: variance,
		stdDev:   math.Sqrt(variance),
	}, nil
}

// GlobalMinimum returns the apex of the frontier: the fully invested
// portfolio with the lowest attainable variance, at mu = x1/x3.
func (b *Basis) GlobalMinimum() (Point, error) {
	return b.Point(b.x1 / b.x3)
}

// Solve returns the minimum-variance portfolio for target return mu.
func Solve(mu float64, expectedReturn []float64, covariance mat.Matrix) (Point, error) {
	if math.IsNaN(mu) || math.IsInf(mu, 0) {
		return Point{}, fmt.Errorf("%w: %v", ErrInvalidTarget, mu)
	}
	b, err := NewBasis(expectedReturn, covariance)
	if err != nil {
		return Point{}, err
	}
	return b.Point(mu)
}

func symmetricCopy(expectedReturn []float64, covariance mat.Matrix) (*mat.SymDense, error) {
	if covariance == nil {
		return nil, fmt.Errorf("%w: covariance matrix is nil", ErrDimensionMismatch)
	}
	rows, cols := covariance.Dims()
	if rows != cols {
		return nil, fmt.Errorf("%w: covariance matrix is %dx%d, expected square", ErrDimensionMismatch, rows, cols)
	}
	if len(expectedReturn) != rows {
		return nil, fmt.Errorf("%w: %d expected returns for a %dx%d covariance matrix",
			ErrDimensionMismatch, len(expectedReturn), rows, cols)
	}
	if rows < 2 {
		return nil, fmt.Errorf("%w: at least 2 assets are required, got %d", ErrDimensionMismatch, rows)
	}

	maxAbs := 0.0
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			maxAbs = math.Max(maxAbs, math.Abs(covariance.At(i, j)))
		}
	}
	tol := symmetryTolerance * maxAbs

	cov := mat.NewSymDense(rows, nil)
	for i := 0; i < rows; i++ {
		for j := i; j < cols; j++ {
			upper, lower := covariance.At(i, j), covariance.At(j, i)
			if math.Abs(upper-lower) > tol {
				return nil, fmt.Errorf("%w: C[%d][%d]=%g, C[%d][%d]=%g", ErrAsymmetricMatrix, i, j, upper, j, i, lower)
			}
			cov.SetSym(i, j, upper)
		}
	}
	return cov, nil
}
