// Package frontier defines the data structures related to a computed
// efficient frontier and includes functions for computing it from a market.
package frontier

import (
	"context"
	"fmt"
	"time"

	"github.com/iwvelando/efficient-frontier/pkg/market"
	"github.com/iwvelando/efficient-frontier/pkg/markowitz"
	"github.com/iwvelando/efficient-frontier/pkg/validation"
	"go.uber.org/zap"
)

// Request selects the assets and target returns of one frontier.
type Request struct {
	Assets  []string
	Returns []float64
	Workers int // > 1 spreads the sweep over goroutines
}

// Result holds all information related to a specific frontier.
type Result struct {
	Assets        []string          `json:"assets"`
	Points        []markowitz.Point `json:"points"`
	LowestRisk    int               `json:"lowestRisk"`
	GlobalMinimum markowitz.Point   `json:"globalMinimum"`
	Warnings      []string          `json:"warnings,omitempty"`
}

// Lowest returns the swept point with the smallest standard deviation.
func (r *Result) Lowest() markowitz.Point {
	return r.Points[r.LowestRisk]
}

// Dominated reports whether point i lies on the inefficient lower half of
// the frontier, below the global minimum-variance return.
func (r *Result) Dominated(i int) bool {
	return r.Points[i].Mu() < r.GlobalMinimum.Mu()
}

// Compute restricts m to the requested assets and sweeps the target returns.
func Compute(ctx context.Context, logger *zap.Logger, m *market.Market, req Request) (*Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		return nil, fmt.Errorf("no market loaded")
	}

	assets := req.Assets
	if len(assets) == 0 {
		assets = m.Assets()
	}
	sub, err := m.Subset(assets)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	basis, err := markowitz.NewSweepBasis(req.Returns, sub.ExpectedReturns(), sub.Covariance())
	if err != nil {
		return nil, err
	}

	var points []markowitz.Point
	if req.Workers > 1 {
		points, err = basis.SweepParallel(ctx, req.Returns, req.Workers)
	} else {
		points, err = basis.Sweep(req.Returns)
	}
	if err != nil {
		return nil, err
	}

	gmv, err := basis.GlobalMinimum()
	if err != nil {
		return nil, err
	}

	result := &Result{
		Assets:        sub.Assets(),
		Points:        points,
		GlobalMinimum: gmv,
		Warnings:      validation.ValidateAssetSelection(assets),
	}

	dominated := 0
	for i, p := range points {
		if p.StdDev() < points[result.LowestRisk].StdDev() {
			result.LowestRisk = i
		}
		if result.Dominated(i) {
			dominated++
		}
		if ce := logger.Check(zap.DebugLevel, "frontier point"); ce != nil {
			ce.Write(
				zap.String("op", "frontier.Compute"),
				zap.Int("index", i),
				zap.Float64("mu", p.Mu()),
				zap.Float64s("weights", p.Weights()),
				zap.Float64("stdDev", p.StdDev()),
			)
		}
	}
	if dominated > 0 {
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"%d of %d target returns lie below the minimum-variance return %.4f and are dominated",
			dominated, len(points), gmv.Mu()))
	}

	logger.Info("frontier computed",
		zap.String("op", "frontier.Compute"),
		zap.Strings("assets", result.Assets),
		zap.Int("points", len(points)),
		zap.Int("workers", req.Workers),
		zap.Float64("minStdDev", result.Lowest().StdDev()),
		zap.Float64("minStdDevMu", result.Lowest().Mu()),
		zap.Duration("elapsed", time.Since(start)),
	)

	return result, nil
}
