package frontier

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/iwvelando/efficient-frontier/pkg/market"
	"github.com/iwvelando/efficient-frontier/pkg/markowitz"
	"github.com/iwvelando/efficient-frontier/pkg/mathutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gonum.org/v1/gonum/mat"
)

func exampleMarket(t *testing.T) *market.Market {
	t.Helper()
	m, err := market.New(
		[]string{"AAPL", "F", "BAC", "XOM"},
		[]float64{0.0427, 0.0015, 0.0285, 0.0285},
		mat.NewSymDense(4, []float64{
			0.0100, 0.0018, 0.0011, 0.0011,
			0.0018, 0.0109, 0.0026, 0.0026,
			0.0011, 0.0026, 0.0199, 0.0199,
			0.0011, 0.0026, 0.0199, 0.0199,
		}),
	)
	if err != nil {
		t.Fatalf("market.New() error = %v", err)
	}
	return m
}

func sweepReturns() []float64 {
	return mathutil.Arange(0.0, 0.05, 0.005)
}

func TestCompute(t *testing.T) {
	m := exampleMarket(t)

	result, err := Compute(context.Background(), zap.NewNop(), m, Request{
		Assets:  []string{"AAPL", "F", "BAC"},
		Returns: sweepReturns(),
	})
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}

	if got := strings.Join(result.Assets, ","); got != "AAPL,F,BAC" {
		t.Errorf("Assets = %s, expected AAPL,F,BAC", got)
	}
	if len(result.Points) != 10 {
		t.Fatalf("expected 10 points, got %d", len(result.Points))
	}
	for i, p := range result.Points {
		if p.Len() != 3 {
			t.Errorf("point %d has %d weights, expected 3", i, p.Len())
		}
	}

	if result.LowestRisk != 5 {
		t.Errorf("LowestRisk = %d, expected 5", result.LowestRisk)
	}
	if !mathutil.WithinTolerance(result.GlobalMinimum.Mu(), 0.0248918, 1e-6) {
		t.Errorf("GlobalMinimum.Mu() = %v, expected 0.0248918", result.GlobalMinimum.Mu())
	}
	if !mathutil.WithinTolerance(result.GlobalMinimum.StdDev(), 0.0726761, 1e-6) {
		t.Errorf("GlobalMinimum.StdDev() = %v, expected 0.0726761", result.GlobalMinimum.StdDev())
	}
	if result.Lowest().StdDev() < result.GlobalMinimum.StdDev() {
		t.Errorf("swept point below the global minimum: %v < %v", result.Lowest().StdDev(), result.GlobalMinimum.StdDev())
	}

	for i := range result.Points {
		if expected := i < 5; result.Dominated(i) != expected {
			t.Errorf("Dominated(%d) = %v, expected %v", i, result.Dominated(i), expected)
		}
	}
	if len(result.Warnings) != 1 || !strings.Contains(result.Warnings[0], "5 of 10") {
		t.Errorf("expected one dominated-points warning, got %v", result.Warnings)
	}
}

func TestComputeAllAssetsByDefault(t *testing.T) {
	m := exampleMarket(t)

	// BAC and XOM are identical, so the full universe has a singular covariance.
	_, err := Compute(context.Background(), nil, m, Request{Returns: sweepReturns()})
	if !errors.Is(err, markowitz.ErrSingularMatrix) {
		t.Fatalf("Compute() error = %v, expected %v", err, markowitz.ErrSingularMatrix)
	}
	var pointErr *markowitz.PointError
	if !errors.As(err, &pointErr) || pointErr.Index != 0 {
		t.Errorf("expected failure reported at index 0, got %v", err)
	}
}

func TestComputeParallelMatchesSequential(t *testing.T) {
	m := exampleMarket(t)
	req := Request{Assets: []string{"AAPL", "F", "BAC"}, Returns: mathutil.Arange(-0.05, 0.15, 0.001)}

	sequential, err := Compute(context.Background(), nil, m, req)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	req.Workers = 4
	parallel, err := Compute(context.Background(), nil, m, req)
	if err != nil {
		t.Fatalf("Compute(parallel) error = %v", err)
	}

	if parallel.LowestRisk != sequential.LowestRisk {
		t.Errorf("LowestRisk differs: %d vs %d", parallel.LowestRisk, sequential.LowestRisk)
	}
	for i := range sequential.Points {
		if parallel.Points[i].Variance() != sequential.Points[i].Variance() {
			t.Errorf("point %d differs: %v vs %v", i, parallel.Points[i].Variance(), sequential.Points[i].Variance())
		}
	}
}

func TestComputeErrors(t *testing.T) {
	m := exampleMarket(t)

	tests := []struct {
		name    string
		market  *market.Market
		req     Request
		wantErr error
	}{
		{
			name:    "Unknown asset",
			market:  m,
			req:     Request{Assets: []string{"AAPL", "TSLA"}, Returns: sweepReturns()},
			wantErr: market.ErrInvalidAsset,
		},
		{
			name:    "No target returns",
			market:  m,
			req:     Request{Assets: []string{"AAPL", "F"}},
			wantErr: markowitz.ErrEmptyReturns,
		},
		{
			name:    "Identical assets",
			market:  m,
			req:     Request{Assets: []string{"BAC", "XOM"}, Returns: sweepReturns()},
			wantErr: markowitz.ErrSingularMatrix,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Compute(context.Background(), nil, tt.market, tt.req); !errors.Is(err, tt.wantErr) {
				t.Errorf("Compute() error = %v, expected %v", err, tt.wantErr)
			}
		})
	}

	if _, err := Compute(context.Background(), nil, nil, Request{Returns: sweepReturns()}); err == nil {
		t.Error("expected error for nil market")
	}
}

func TestComputeWarnsOnSmallSelection(t *testing.T) {
	m := exampleMarket(t)

	result, err := Compute(context.Background(), nil, m, Request{
		Assets:  []string{"AAPL", "F"},
		Returns: []float64{0.03, 0.04},
	})
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	if len(result.Warnings) != 1 || !strings.Contains(result.Warnings[0], "Please select at least 3 assets") {
		t.Errorf("expected selection warning, got %v", result.Warnings)
	}
}

func TestComputeLogging(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)

	_, err := Compute(context.Background(), logger, exampleMarket(t), Request{
		Assets:  []string{"AAPL", "F", "BAC"},
		Returns: []float64{0.02, 0.03, 0.04},
	})
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}

	if n := logs.FilterMessage("frontier point").Len(); n != 3 {
		t.Errorf("expected 3 debug point entries, got %d", n)
	}
	summary := logs.FilterMessage("frontier computed").All()
	if len(summary) != 1 {
		t.Fatalf("expected 1 summary entry, got %d", len(summary))
	}
	if op := summary[0].ContextMap()["op"]; op != "frontier.Compute" {
		t.Errorf("op = %v, expected frontier.Compute", op)
	}
}
