package markowitz

import (
	"errors"
	"math"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/iwvelando/efficient-frontier/pkg/mathutil"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Three-asset example from Zivot, "Portfolio Theory with Matrix Algebra".
var (
	exampleReturns = []float64{0.0427, 0.0015, 0.0285}
	exampleCov     = mat.NewDense(3, 3, []float64{
		0.0100, 0.0018, 0.0011,
		0.0018, 0.0109, 0.0026,
		0.0011, 0.0026, 0.0199,
	})
)

func TestSolveThreeAssets(t *testing.T) {
	mu := 0.02489
	p, err := Solve(mu, exampleReturns, exampleCov)
	if err != nil {
		t.Fatalf("Solve() error = %v", err)
	}

	if p.Mu() != mu {
		t.Errorf("Mu() = %v, expected %v", p.Mu(), mu)
	}
	if p.Len() != 3 {
		t.Fatalf("Len() = %d, expected 3", p.Len())
	}

	expectedWeights := []float64{0.4411, 0.3657, 0.1933}
	for i, expected := range expectedWeights {
		if !mathutil.WithinTolerance(p.Weight(i), expected, 1e-4) {
			t.Errorf("w%d = %.6f, expected %.4f", i, p.Weight(i), expected)
		}
	}
	if !mathutil.WithinTolerance(p.StdDev(), 0.07268, 1e-5) {
		t.Errorf("StdDev() = %.7f, expected 0.07268", p.StdDev())
	}
	if !mathutil.WithinTolerance(p.Variance(), 0.005282, 1e-6) {
		t.Errorf("Variance() = %.8f, expected 0.005282", p.Variance())
	}
}

func TestSolveConstraints(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))

	for trial := 0; trial < 50; trial++ {
		n := 2 + rng.IntN(8)
		returns, cov := randomMarket(rng, n)
		mu := rng.Float64()*0.4 - 0.1

		p, err := Solve(mu, returns, cov)
		if err != nil {
			t.Fatalf("trial %d: Solve() error = %v", trial, err)
		}

		weights := p.Weights()
		if sum := floats.Sum(weights); !mathutil.WithinTolerance(sum, 1, 1e-9) {
			t.Errorf("trial %d: weights sum to %.12f, expected 1", trial, sum)
		}
		if got := floats.Dot(weights, returns); !mathutil.WithinTolerance(got, mu, 1e-6) {
			t.Errorf("trial %d: portfolio return %.9f, expected %.9f", trial, got, mu)
		}
		if p.Variance() < 0 {
			t.Errorf("trial %d: negative variance %v", trial, p.Variance())
		}

		w := mat.NewVecDense(n, weights)
		if direct := mat.Inner(w, cov, w); !mathutil.WithinTolerance(direct, p.Variance(), 1e-12) {
			t.Errorf("trial %d: variance %.15f does not match w'Cw %.15f", trial, p.Variance(), direct)
		}
		if !mathutil.WithinTolerance(p.StdDev()*p.StdDev(), p.Variance(), 1e-12) {
			t.Errorf("trial %d: std dev %v inconsistent with variance %v", trial, p.StdDev(), p.Variance())
		}
	}
}

func TestSolveIdempotent(t *testing.T) {
	first, err := Solve(0.03, exampleReturns, exampleCov)
	if err != nil {
		t.Fatalf("Solve() error = %v", err)
	}
	second, err := Solve(0.03, exampleReturns, exampleCov)
	if err != nil {
		t.Fatalf("Solve() error = %v", err)
	}

	if first.Variance() != second.Variance() || first.StdDev() != second.StdDev() {
		t.Errorf("repeated Solve() differs: %v vs %v", first.Variance(), second.Variance())
	}
	for i := 0; i < first.Len(); i++ {
		if first.Weight(i) != second.Weight(i) {
			t.Errorf("w%d differs between calls: %v vs %v", i, first.Weight(i), second.Weight(i))
		}
	}
}

func TestSolveDoesNotMutateInputs(t *testing.T) {
	returns := append([]float64(nil), exampleReturns...)
	cov := mat.DenseCopyOf(exampleCov)

	if _, err := Solve(0.02, returns, cov); err != nil {
		t.Fatalf("Solve() error = %v", err)
	}
	if !floats.Equal(returns, exampleReturns) {
		t.Errorf("expected returns mutated: %v", returns)
	}
	if !mat.Equal(cov, exampleCov) {
		t.Errorf("covariance mutated")
	}
}

func TestSolveAllowsShortPositions(t *testing.T) {
	// A target well above every asset return forces leverage.
	p, err := Solve(0.10, exampleReturns, exampleCov)
	if err != nil {
		t.Fatalf("Solve() error = %v", err)
	}

	hasShort := false
	for _, w := range p.Weights() {
		if w < 0 {
			hasShort = true
		}
	}
	if !hasShort {
		t.Errorf("expected at least one negative weight, got %v", p.Weights())
	}
	if sum := floats.Sum(p.Weights()); !mathutil.WithinTolerance(sum, 1, 1e-9) {
		t.Errorf("weights sum to %v, expected 1", sum)
	}
}

func TestSolveErrors(t *testing.T) {
	tests := []struct {
		name    string
		mu      float64
		returns []float64
		cov     mat.Matrix
		wantErr error
	}{
		{
			name:    "Vector shorter than matrix",
			mu:      0.02,
			returns: []float64{0.01, 0.02},
			cov:     exampleCov,
			wantErr: ErrDimensionMismatch,
		},
		{
			name:    "Non-square matrix",
			mu:      0.02,
			returns: []float64{0.01, 0.02},
			cov:     mat.NewDense(2, 3, []float64{1, 0, 0, 0, 1, 0}),
			wantErr: ErrDimensionMismatch,
		},
		{
			name:    "Single asset",
			mu:      0.02,
			returns: []float64{0.02},
			cov:     mat.NewDense(1, 1, []float64{0.01}),
			wantErr: ErrDimensionMismatch,
		},
		{
			name:    "Nil matrix",
			mu:      0.02,
			returns: []float64{0.01, 0.02},
			cov:     nil,
			wantErr: ErrDimensionMismatch,
		},
		{
			name:    "Asymmetric matrix",
			mu:      0.02,
			returns: []float64{0.01, 0.02},
			cov:     mat.NewDense(2, 2, []float64{0.01, 0.002, 0.003, 0.02}),
			wantErr: ErrAsymmetricMatrix,
		},
		{
			name:    "Duplicated asset",
			mu:      0.02,
			returns: []float64{0.0427, 0.0427, 0.0285},
			cov: mat.NewDense(3, 3, []float64{
				0.0100, 0.0100, 0.0011,
				0.0100, 0.0100, 0.0011,
				0.0011, 0.0011, 0.0199,
			}),
			wantErr: ErrSingularMatrix,
		},
		{
			name:    "Zero matrix",
			mu:      0.02,
			returns: []float64{0.01, 0.02},
			cov:     mat.NewDense(2, 2, nil),
			wantErr: ErrSingularMatrix,
		},
		{
			name:    "Identical expected returns",
			mu:      0.02,
			returns: []float64{0.05, 0.05, 0.05},
			cov:     exampleCov,
			wantErr: ErrDegenerateInput,
		},
		{
			name:    "Identical expected returns two assets",
			mu:      0.02,
			returns: []float64{0.031, 0.031},
			cov:     mat.NewDense(2, 2, []float64{0.01, 0.002, 0.002, 0.02}),
			wantErr: ErrDegenerateInput,
		},
		{
			name:    "Zero expected returns",
			mu:      0.0,
			returns: []float64{0, 0, 0},
			cov:     exampleCov,
			wantErr: ErrDegenerateInput,
		},
		{
			name:    "NaN target",
			mu:      math.NaN(),
			returns: exampleReturns,
			cov:     exampleCov,
			wantErr: ErrInvalidTarget,
		},
		{
			name:    "Infinite target",
			mu:      math.Inf(1),
			returns: exampleReturns,
			cov:     exampleCov,
			wantErr: ErrInvalidTarget,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Solve(tt.mu, tt.returns, tt.cov)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Solve() error = %v, expected %v", err, tt.wantErr)
			}
			if p.Len() != 0 {
				t.Errorf("expected empty point on error, got %d weights", p.Len())
			}
		})
	}
}

func TestSingularAndDegenerateAreDistinct(t *testing.T) {
	_, err := Solve(0.02, []float64{0.05, 0.05, 0.05}, exampleCov)
	if errors.Is(err, ErrSingularMatrix) {
		t.Errorf("degenerate input reported as singular: %v", err)
	}

	singular := mat.NewDense(2, 2, []float64{0.01, 0.01, 0.01, 0.01})
	_, err = Solve(0.02, []float64{0.01, 0.03}, singular)
	if errors.Is(err, ErrDegenerateInput) {
		t.Errorf("singular matrix reported as degenerate: %v", err)
	}
	if !errors.Is(err, ErrSingularMatrix) {
		t.Errorf("expected ErrSingularMatrix, got %v", err)
	}
}

func TestBasisGlobalMinimum(t *testing.T) {
	b, err := NewBasis(exampleReturns, exampleCov)
	if err != nil {
		t.Fatalf("NewBasis() error = %v", err)
	}
	if b.Len() != 3 {
		t.Errorf("Len() = %d, expected 3", b.Len())
	}

	gmv, err := b.GlobalMinimum()
	if err != nil {
		t.Fatalf("GlobalMinimum() error = %v", err)
	}

	_, _, x3, _ := b.Scalars()
	if !mathutil.WithinTolerance(gmv.Variance(), 1/x3, 1e-12) {
		t.Errorf("global minimum variance %v, expected 1/x3 = %v", gmv.Variance(), 1/x3)
	}

	for _, offset := range []float64{-0.02, -0.001, 0.001, 0.02} {
		p, err := b.Point(gmv.Mu() + offset)
		if err != nil {
			t.Fatalf("Point() error = %v", err)
		}
		if p.Variance() < gmv.Variance() {
			t.Errorf("variance at mu %v (%v) below global minimum %v", p.Mu(), p.Variance(), gmv.Variance())
		}
	}
}

func TestPointWeightsCopy(t *testing.T) {
	p, err := Solve(0.02, exampleReturns, exampleCov)
	if err != nil {
		t.Fatalf("Solve() error = %v", err)
	}
	w := p.Weights()
	w[0] = 42
	if p.Weight(0) == 42 {
		t.Error("mutating Weights() result changed the point")
	}
}

func TestPointMarshalJSON(t *testing.T) {
	p, err := Solve(0.02489, exampleReturns, exampleCov)
	if err != nil {
		t.Fatalf("Solve() error = %v", err)
	}
	data, err := p.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON() error = %v", err)
	}
	for _, key := range []string{`"mu":`, `"weights":[`, `"variance":`, `"stdDev":`} {
		if !strings.Contains(string(data), key) {
			t.Errorf("MarshalJSON() = %s, missing %s", data, key)
		}
	}
}

// randomMarket builds a well-conditioned covariance matrix A*A' + n*0.01*I
// and expected returns at least 0.01 apart.
func randomMarket(rng *rand.Rand, n int) ([]float64, *mat.SymDense) {
	a := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			a.Set(i, j, rng.NormFloat64()*0.1)
		}
	}
	cov := mat.NewSymDense(n, nil)
	cov.SymOuterK(1, a)
	for i := 0; i < n; i++ {
		cov.SetSym(i, i, cov.At(i, i)+float64(n)*0.01)
	}

	returns := make([]float64, n)
	for i := range returns {
		returns[i] = 0.02*float64(i) + rng.Float64()*0.01
	}
	return returns, cov
}
