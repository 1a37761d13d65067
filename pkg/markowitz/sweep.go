package markowitz

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// Sweep solves the minimum-variance portfolio for every target return, in
// order. The covariance matrix is inverted once for the whole sweep. The
// first failure aborts the sweep and is returned as a *PointError; no
// partial frontier is returned.
func Sweep(returns []float64, expectedReturn []float64, covariance mat.Matrix) ([]Point, error) {
	b, err := NewSweepBasis(returns, expectedReturn, covariance)
	if err != nil {
		return nil, err
	}
	return b.Sweep(returns)
}

// SweepParallel is Sweep with the per-target evaluations spread over up to
// workers goroutines (GOMAXPROCS when workers <= 0). Results keep the order
// of returns. On failure the remaining work is cancelled and the failure
// with the lowest index among those evaluated is returned.
func SweepParallel(ctx context.Context, returns []float64, expectedReturn []float64, covariance mat.Matrix, workers int) ([]Point, error) {
	b, err := NewSweepBasis(returns, expectedReturn, covariance)
	if err != nil {
		return nil, err
	}
	return b.SweepParallel(ctx, returns, workers)
}

// Sweep evaluates the basis at every target return, in order.
func (b *Basis) Sweep(returns []float64) ([]Point, error) {
	if len(returns) == 0 {
		return nil, ErrEmptyReturns
	}

	points := make([]Point, len(returns))
	for i, mu := range returns {
		p, err := b.Point(mu)
		if err != nil {
			return nil, &PointError{Index: i, Mu: mu, Err: err}
		}
		points[i] = p
	}
	return points, nil
}

// SweepParallel evaluates the basis at every target return using up to
// workers goroutines.
func (b *Basis) SweepParallel(ctx context.Context, returns []float64, workers int) ([]Point, error) {
	if len(returns) == 0 {
		return nil, ErrEmptyReturns
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	points := make([]Point, len(returns))
	failures := make([]error, len(returns))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, mu := range returns {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p, err := b.Point(mu)
			if err != nil {
				failures[i] = &PointError{Index: i, Mu: mu, Err: err}
				return failures[i]
			}
			points[i] = p
			return nil
		})
	}
	waitErr := g.Wait()

	for _, f := range failures {
		if f != nil {
			return nil, f
		}
	}
	if waitErr != nil {
		return nil, waitErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return points, nil
}

// NewSweepBasis prepares the basis for a sweep over returns. Failures are
// reported against the first target return, as Sweep reports them.
func NewSweepBasis(returns []float64, expectedReturn []float64, covariance mat.Matrix) (*Basis, error) {
	if len(returns) == 0 {
		return nil, ErrEmptyReturns
	}
	b, err := NewBasis(expectedReturn, covariance)
	if err != nil {
		return nil, &PointError{Index: 0, Mu: returns[0], Err: err}
	}
	return b, nil
}
