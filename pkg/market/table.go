package market

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/iwvelando/efficient-frontier/pkg/constants"
	"gonum.org/v1/gonum/mat"
)

// LoadTableFile reads a market table from disk. See LoadTable for the format.
func LoadTableFile(path string) (*Market, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open market table: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	m, err := LoadTable(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// LoadTable parses the persisted covariance/returns table. The header row
// names every asset plus one "mu" column; each following row starts with an
// asset identifier and holds that asset's covariance row and expected
// return:
//
//	,AAPL,F,mu
//	AAPL,0.0012,0.0004,0.21
//	F,0.0004,0.0019,0.05
//
// Rows may appear in any order; the column order defines the asset order.
func LoadTable(r io.Reader) (*Market, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTable, err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("%w: expected a header and at least one asset row", ErrMalformedTable)
	}

	header := records[0]
	returnCol := -1
	var assets []string
	columns := make(map[string]int)
	for c := 1; c < len(header); c++ {
		name := strings.TrimSpace(header[c])
		if name == constants.ReturnColumn {
			if returnCol >= 0 {
				return nil, fmt.Errorf("%w: duplicate %q column", ErrMalformedTable, constants.ReturnColumn)
			}
			returnCol = c
			continue
		}
		if _, dup := columns[name]; dup {
			return nil, fmt.Errorf("%w: duplicate column %s", ErrMalformedTable, name)
		}
		columns[name] = len(assets)
		assets = append(assets, name)
	}
	if returnCol < 0 {
		return nil, fmt.Errorf("%w: missing %q column", ErrMalformedTable, constants.ReturnColumn)
	}

	n := len(assets)
	if len(records)-1 != n {
		return nil, fmt.Errorf("%w: %d asset columns but %d rows", ErrMalformedTable, n, len(records)-1)
	}

	returns := make([]float64, n)
	cov := mat.NewDense(n, n, nil)
	filled := make([]bool, n)
	for lineNo, record := range records[1:] {
		id := strings.TrimSpace(record[0])
		i, ok := columns[id]
		if !ok {
			return nil, fmt.Errorf("%w: row %d names unknown asset %q", ErrMalformedTable, lineNo+2, id)
		}
		if filled[i] {
			return nil, fmt.Errorf("%w: asset %s has more than one row", ErrMalformedTable, id)
		}
		filled[i] = true

		for c := 1; c < len(record); c++ {
			v, err := strconv.ParseFloat(strings.TrimSpace(record[c]), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: row %s column %s: %v", ErrMalformedTable, id, header[c], err)
			}
			if c == returnCol {
				returns[i] = v
				continue
			}
			cov.Set(i, columns[strings.TrimSpace(header[c])], v)
		}
	}

	return New(assets, returns, cov)
}

// WriteTable persists the market in the format LoadTable reads.
func (m *Market) WriteTable(w io.Writer) error {
	writer := csv.NewWriter(w)

	header := make([]string, 0, m.Len()+2)
	header = append(header, "")
	header = append(header, m.assets...)
	header = append(header, constants.ReturnColumn)
	if err := writer.Write(header); err != nil {
		return err
	}

	for i, asset := range m.assets {
		row := make([]string, 0, m.Len()+2)
		row = append(row, asset)
		for j := range m.assets {
			row = append(row, strconv.FormatFloat(m.cov.At(i, j), 'g', -1, 64))
		}
		row = append(row, strconv.FormatFloat(m.returns[i], 'g', -1, 64))
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}
