package validation

import (
	"fmt"
	"math"

	"github.com/iwvelando/efficient-frontier/pkg/constants"
)

// ValidateAssetSelection returns warnings for an asset selection the solver
// accepts but a user should reconsider.
func ValidateAssetSelection(assets []string) []string {
	var warnings []string

	if len(assets) < constants.MinRecommendedAssets {
		warnings = append(warnings, fmt.Sprintf("Please select at least %d assets. You currently have %d selected.",
			constants.MinRecommendedAssets, len(assets)))
	}

	seen := make(map[string]struct{}, len(assets))
	for _, asset := range assets {
		if _, dup := seen[asset]; dup {
			warnings = append(warnings, fmt.Sprintf("Asset '%s' is selected more than once", asset))
			continue
		}
		seen[asset] = struct{}{}
	}

	return warnings
}

// ValidateSweepRange checks that a start/stop/step triple describes at least
// one and at most constants.MaxSweepPoints target returns.
func ValidateSweepRange(start, stop, step float64) error {
	for name, v := range map[string]float64{"start": start, "stop": stop, "step": step} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("sweep %s must be a finite number, got %v", name, v)
		}
	}
	if step <= 0 {
		return fmt.Errorf("sweep step must be positive, got %g", step)
	}
	if stop <= start {
		return fmt.Errorf("sweep stop %g must be greater than start %g", stop, start)
	}
	if points := (stop - start) / step; points > constants.MaxSweepPoints {
		return fmt.Errorf("sweep of %.0f points exceeds the limit of %d", math.Ceil(points), constants.MaxSweepPoints)
	}
	return nil
}

// ValidateReturns checks an explicit list of target returns.
func ValidateReturns(returns []float64) error {
	if len(returns) == 0 {
		return fmt.Errorf("at least one target return is required")
	}
	if len(returns) > constants.MaxSweepPoints {
		return fmt.Errorf("%d target returns exceed the limit of %d", len(returns), constants.MaxSweepPoints)
	}
	for i, v := range returns {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("target return %d must be a finite number, got %v", i, v)
		}
	}
	return nil
}
