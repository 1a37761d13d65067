// Package testutil provides common utility functions for testing.
package testutil

import (
	"math"

	"github.com/iwvelando/efficient-frontier/pkg/constants"
	"github.com/iwvelando/efficient-frontier/pkg/markowitz"
)

// FindPoint finds the first point whose target return is within
// constants.WeightTolerance of mu. Returns nil when no point matches.
func FindPoint(points []markowitz.Point, mu float64) *markowitz.Point {
	for i := range points {
		if math.Abs(points[i].Mu()-mu) <= constants.WeightTolerance {
			return &points[i]
		}
	}
	return nil
}

// WeightSum returns the sum of a point's weights.
func WeightSum(p markowitz.Point) float64 {
	var sum float64
	for _, w := range p.Weights() {
		sum += w
	}
	return sum
}

// AchievedReturn returns the expected return w·r of a point's weights.
func AchievedReturn(p markowitz.Point, expectedReturn []float64) float64 {
	var sum float64
	for i, w := range p.Weights() {
		sum += w * expectedReturn[i]
	}
	return sum
}
