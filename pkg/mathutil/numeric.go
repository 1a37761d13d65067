// Package mathutil provides common numeric utility functions.
package mathutil

import (
	"math"

	"github.com/iwvelando/efficient-frontier/pkg/constants"
)

// WithinTolerance checks if two values are within a specified tolerance
func WithinTolerance(val1, val2, tolerance float64) bool {
	return math.Abs(val1-val2) <= tolerance
}

// IsFinite reports whether val is neither NaN nor infinite.
func IsFinite(val float64) bool {
	return !math.IsNaN(val) && !math.IsInf(val, 0)
}

// RoundTo rounds val to the given number of decimal places.
func RoundTo(val float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(val*scale) / scale
}

// Percent converts a fraction to a percentage
func Percent(fraction float64) float64 {
	return fraction * constants.PercentageMultiplier
}

// Arange returns start, start+step, ... up to but excluding stop. Values are
// computed from the index rather than by accumulation so the grid does not
// drift. A non-positive step or an empty interval yields nil.
func Arange(start, stop, step float64) []float64 {
	if step <= 0 || !IsFinite(start) || !IsFinite(stop) || !IsFinite(step) || stop <= start {
		return nil
	}
	n := int(math.Ceil((stop - start) / step))
	out := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		v := start + float64(i)*step
		if v >= stop {
			break
		}
		out = append(out, v)
	}
	return out
}
