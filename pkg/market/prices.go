package market

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/iwvelando/efficient-frontier/pkg/constants"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// adjustedClose marks the price columns of a raw quote export, e.g.
// "Adj Close AAPL".
const adjustedClose = "Adj Close"

// PriceSeries is a table of periodic prices, one row per observation and
// one column per asset.
type PriceSeries struct {
	Assets []string
	Dates  []string
	Prices [][]float64
}

// LoadPricesFile reads a price CSV from disk. See LoadPrices for the format.
func LoadPricesFile(path string) (*PriceSeries, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open price file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	ps, err := LoadPrices(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ps, nil
}

// LoadPrices parses a date-indexed price CSV. The first column holds the
// observation date. When any header contains "Adj Close" only those columns
// are read and each is named by its last word ("Adj Close AAPL" becomes
// AAPL); otherwise every remaining column is an asset.
func LoadPrices(r io.Reader) (*PriceSeries, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTable, err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("%w: expected a header and at least one observation", ErrMalformedTable)
	}

	header := records[0]
	adjusted := false
	for _, name := range header[1:] {
		if strings.Contains(name, adjustedClose) {
			adjusted = true
			break
		}
	}

	var cols []int
	ps := &PriceSeries{}
	for c := 1; c < len(header); c++ {
		name := strings.TrimSpace(header[c])
		if adjusted {
			if !strings.Contains(name, adjustedClose) {
				continue
			}
			fields := strings.Fields(name)
			name = fields[len(fields)-1]
		}
		cols = append(cols, c)
		ps.Assets = append(ps.Assets, name)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: no price columns", ErrMalformedTable)
	}

	for lineNo, record := range records[1:] {
		row := make([]float64, len(cols))
		for k, c := range cols {
			v, err := strconv.ParseFloat(strings.TrimSpace(record[c]), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d column %s: %v", ErrMalformedTable, lineNo+2, ps.Assets[k], err)
			}
			row[k] = v
		}
		ps.Dates = append(ps.Dates, strings.TrimSpace(record[0]))
		ps.Prices = append(ps.Prices, row)
	}

	return ps, nil
}

// Returns computes simple period returns (p[t+1]-p[t])/p[t] as a
// (observations-1) x assets matrix.
func (ps *PriceSeries) Returns() (*mat.Dense, error) {
	n := len(ps.Assets)
	t := len(ps.Prices)
	if t < 2 {
		return nil, fmt.Errorf("%w: at least 2 observations are required, got %d", ErrMalformedTable, t)
	}

	out := mat.NewDense(t-1, n, nil)
	for i := 0; i < t-1; i++ {
		if len(ps.Prices[i]) != n || len(ps.Prices[i+1]) != n {
			return nil, fmt.Errorf("%w: observation %d does not have %d prices", ErrMalformedTable, i, n)
		}
		for j := 0; j < n; j++ {
			prev, next := ps.Prices[i][j], ps.Prices[i+1][j]
			if prev <= 0 || math.IsNaN(prev) || math.IsInf(prev, 0) {
				return nil, fmt.Errorf("%w: %s price %v on observation %d is not positive", ErrMalformedTable, ps.Assets[j], prev, i)
			}
			out.Set(i, j, (next-prev)/prev)
		}
	}
	return out, nil
}

// FromPrices derives a Market from periodic prices: the sample covariance of
// period returns, and expected returns annualized as (1+mean)^periods - 1.
// The covariance is left per-period. periodsPerYear <= 0 selects
// constants.DefaultPeriodsPerYear.
func FromPrices(ps *PriceSeries, periodsPerYear int) (*Market, error) {
	if ps == nil {
		return nil, fmt.Errorf("%w: no price series", ErrMalformedTable)
	}
	if periodsPerYear <= 0 {
		periodsPerYear = constants.DefaultPeriodsPerYear
	}

	returns, err := ps.Returns()
	if err != nil {
		return nil, err
	}
	rows, n := returns.Dims()
	if rows < 2 {
		return nil, fmt.Errorf("%w: at least 3 observations are required for a sample covariance", ErrMalformedTable)
	}

	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, returns, nil)

	expected := make([]float64, n)
	col := make([]float64, rows)
	for j := 0; j < n; j++ {
		mat.Col(col, j, returns)
		expected[j] = math.Pow(1+stat.Mean(col, nil), float64(periodsPerYear)) - 1
	}

	return New(ps.Assets, expected, &cov)
}
