package markowitz

import (
	"errors"
	"fmt"
)

var (
	// ErrDimensionMismatch indicates the expected-return vector and covariance
	// matrix do not describe the same number of assets, or too few assets.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrAsymmetricMatrix indicates the covariance matrix is not symmetric.
	ErrAsymmetricMatrix = errors.New("covariance matrix is not symmetric")

	// ErrSingularMatrix indicates the covariance matrix cannot be inverted.
	ErrSingularMatrix = errors.New("covariance matrix is singular")

	// ErrDegenerateInput indicates the Lagrangian denominator is zero, which
	// happens when every asset carries the same expected return.
	ErrDegenerateInput = errors.New("degenerate input: expected returns are not distinguishable")

	// ErrInvalidTarget indicates a target return that is NaN or infinite.
	ErrInvalidTarget = errors.New("invalid target return")

	// ErrEmptyReturns indicates a sweep was requested with no target returns.
	ErrEmptyReturns = errors.New("returns vector is empty")
)

// PointError reports the target return a sweep failed on.
type PointError struct {
	Index int
	Mu    float64
	Err   error
}

func (e *PointError) Error() string {
	return fmt.Sprintf("target return %g (index %d): %v", e.Mu, e.Index, e.Err)
}

func (e *PointError) Unwrap() error {
	return e.Err
}
