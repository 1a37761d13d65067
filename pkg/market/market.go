// Package market holds the asset universe, expected returns and covariance
// matrix the frontier is computed from, and loads them from disk.
package market

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/iwvelando/efficient-frontier/pkg/markowitz"
	"github.com/iwvelando/efficient-frontier/pkg/mathutil"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrInvalidAsset indicates a requested asset is not part of the universe.
	ErrInvalidAsset = errors.New("invalid asset")

	// ErrMalformedTable indicates a market table or price file that cannot be
	// interpreted.
	ErrMalformedTable = errors.New("malformed market data")
)

// Market is an immutable snapshot of an asset universe: identifiers in index
// order, one expected return per asset and the symmetric covariance matrix.
type Market struct {
	assets  []string
	index   map[string]int
	returns []float64
	cov     *mat.SymDense
}

// New validates and copies the inputs into a Market.
func New(assets []string, expectedReturn []float64, covariance mat.Matrix) (*Market, error) {
	n := len(assets)
	if n == 0 {
		return nil, fmt.Errorf("%w: no assets", ErrMalformedTable)
	}
	if len(expectedReturn) != n {
		return nil, fmt.Errorf("%w: %d assets but %d expected returns", markowitz.ErrDimensionMismatch, n, len(expectedReturn))
	}
	if covariance == nil {
		return nil, fmt.Errorf("%w: covariance matrix is nil", markowitz.ErrDimensionMismatch)
	}
	if r, c := covariance.Dims(); r != n || c != n {
		return nil, fmt.Errorf("%w: %d assets but a %dx%d covariance matrix", markowitz.ErrDimensionMismatch, n, r, c)
	}

	index := make(map[string]int, n)
	for i, asset := range assets {
		if strings.TrimSpace(asset) == "" {
			return nil, fmt.Errorf("%w: asset %d has an empty identifier", ErrMalformedTable, i)
		}
		if _, dup := index[asset]; dup {
			return nil, fmt.Errorf("%w: asset %s listed twice", ErrMalformedTable, asset)
		}
		index[asset] = i
	}

	returns := make([]float64, n)
	for i, v := range expectedReturn {
		if !mathutil.IsFinite(v) {
			return nil, fmt.Errorf("%w: expected return for %s is %v", ErrMalformedTable, assets[i], v)
		}
		returns[i] = v
	}

	cov := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			upper, lower := covariance.At(i, j), covariance.At(j, i)
			if !mathutil.IsFinite(upper) || !mathutil.IsFinite(lower) {
				return nil, fmt.Errorf("%w: covariance of %s and %s is not finite", ErrMalformedTable, assets[i], assets[j])
			}
			if !mathutil.WithinTolerance(upper, lower, 1e-12) {
				return nil, fmt.Errorf("%w: covariance of %s and %s differs (%g vs %g)",
					markowitz.ErrAsymmetricMatrix, assets[i], assets[j], upper, lower)
			}
			cov.SetSym(i, j, upper)
		}
	}

	return &Market{
		assets:  append([]string(nil), assets...),
		index:   index,
		returns: returns,
		cov:     cov,
	}, nil
}

// Len returns the number of assets.
func (m *Market) Len() int { return len(m.assets) }

// Assets returns the asset identifiers in index order.
func (m *Market) Assets() []string {
	return append([]string(nil), m.assets...)
}

// SortedAssets returns the asset identifiers in lexical order.
func (m *Market) SortedAssets() []string {
	out := m.Assets()
	sort.Strings(out)
	return out
}

// Has reports whether asset belongs to the universe.
func (m *Market) Has(asset string) bool {
	_, ok := m.index[asset]
	return ok
}

// ExpectedReturns returns a copy of the expected-return vector.
func (m *Market) ExpectedReturns() []float64 {
	return append([]float64(nil), m.returns...)
}

// ExpectedReturn returns the expected return of a single asset.
func (m *Market) ExpectedReturn(asset string) (float64, error) {
	i, ok := m.index[asset]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrInvalidAsset, asset)
	}
	return m.returns[i], nil
}

// Covariance returns a copy of the covariance matrix.
func (m *Market) Covariance() *mat.SymDense {
	out := mat.NewSymDense(m.Len(), nil)
	out.CopySym(m.cov)
	return out
}

// Subset restricts the market to the given assets, reindexed in the order
// they are listed.
func (m *Market) Subset(assets []string) (*Market, error) {
	if len(assets) == 0 {
		return nil, fmt.Errorf("%w: no assets selected", ErrInvalidAsset)
	}

	positions := make([]int, len(assets))
	seen := make(map[string]struct{}, len(assets))
	for k, asset := range assets {
		i, ok := m.index[asset]
		if !ok {
			return nil, fmt.Errorf("%w: %s is not in the asset universe", ErrInvalidAsset, asset)
		}
		if _, dup := seen[asset]; dup {
			return nil, fmt.Errorf("%w: %s selected twice", ErrInvalidAsset, asset)
		}
		seen[asset] = struct{}{}
		positions[k] = i
	}

	n := len(assets)
	returns := make([]float64, n)
	cov := mat.NewSymDense(n, nil)
	for a, i := range positions {
		returns[a] = m.returns[i]
		for b := a; b < n; b++ {
			cov.SetSym(a, b, m.cov.At(i, positions[b]))
		}
	}

	return New(assets, returns, cov)
}
