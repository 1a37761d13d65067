package frontier

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/iwvelando/efficient-frontier/internal/config"
	"github.com/iwvelando/efficient-frontier/pkg/market"
	"github.com/iwvelando/efficient-frontier/pkg/mathutil"
	"github.com/iwvelando/efficient-frontier/pkg/testutil"
	"go.uber.org/zap"
)

// loadExampleConfiguration loads the shipped example configuration and points
// its market at the test table.
func loadExampleConfiguration(t testing.TB) (*config.Configuration, *market.Market) {
	t.Helper()
	conf, err := config.LoadConfiguration(filepath.Join("..", "..", "config.yaml.example"))
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}
	conf.Market.TableFile = filepath.Join("..", "..", "test", "data", "cov-matrix-and-returns.csv")
	conf.Market.PricesFile = ""

	m, err := conf.LoadMarket(zap.NewNop())
	if err != nil {
		t.Fatalf("LoadMarket() error = %v", err)
	}
	return conf, m
}

func computeExample(t testing.TB, workers int) (*Result, *market.Market) {
	t.Helper()
	conf, m := loadExampleConfiguration(t)
	returns, err := conf.Sweep.ReturnsVector()
	if err != nil {
		t.Fatalf("ReturnsVector() error = %v", err)
	}
	result, err := Compute(context.Background(), zap.NewNop(), m, Request{
		Assets:  conf.SelectedAssets(m),
		Returns: returns,
		Workers: workers,
	})
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	return result, m
}

func TestExampleConfigurationEndToEnd(t *testing.T) {
	result, m := computeExample(t, 0)

	if len(result.Points) != 30 {
		t.Fatalf("expected 30 points, got %d", len(result.Points))
	}
	sub, err := m.Subset(result.Assets)
	if err != nil {
		t.Fatalf("Subset() error = %v", err)
	}
	er := sub.ExpectedReturns()

	first := testutil.FindPoint(result.Points, 0.05)
	if first == nil || first != &result.Points[0] {
		t.Fatalf("expected the sweep to start at 0.05")
	}

	gmv := result.GlobalMinimum
	for i, p := range result.Points {
		if sum := testutil.WeightSum(p); math.Abs(sum-1) > 1e-9 {
			t.Errorf("point %d: weights sum to %v", i, sum)
		}
		if got := testutil.AchievedReturn(p, er); math.Abs(got-p.Mu()) > 1e-9 {
			t.Errorf("point %d: achieved return %v, expected %v", i, got, p.Mu())
		}
		if p.Variance() < gmv.Variance()-1e-12 {
			t.Errorf("point %d: variance %v below the global minimum %v", i, p.Variance(), gmv.Variance())
		}
		if i == 0 {
			continue
		}
		prev := result.Points[i-1]
		switch {
		case prev.Mu() >= gmv.Mu() && p.StdDev() <= prev.StdDev():
			t.Errorf("point %d: std dev %v should rise above %v on the efficient side", i, p.StdDev(), prev.StdDev())
		case p.Mu() <= gmv.Mu() && p.StdDev() >= prev.StdDev():
			t.Errorf("point %d: std dev %v should fall below %v on the dominated side", i, p.StdDev(), prev.StdDev())
		}
	}

	lowest := result.Lowest()
	for i, p := range result.Points {
		if p.StdDev() < lowest.StdDev() {
			t.Errorf("point %d has std dev %v below the reported lowest %v", i, p.StdDev(), lowest.StdDev())
		}
	}
}

func TestDataConsistency(t *testing.T) {
	first, _ := computeExample(t, 0)

	for run := 1; run < 3; run++ {
		workers := 0
		if run == 2 {
			workers = 4
		}
		results, _ := computeExample(t, workers)
		if len(results.Points) != len(first.Points) {
			t.Fatalf("run %d: expected %d points, got %d", run, len(first.Points), len(results.Points))
		}
		for i := range first.Points {
			a, b := first.Points[i], results.Points[i]
			if a.Mu() != b.Mu() || !mathutil.WithinTolerance(a.Variance(), b.Variance(), 1e-15) {
				t.Errorf("run %d point %d differs: %v vs %v", run, i, a, b)
			}
		}
		if results.LowestRisk != first.LowestRisk {
			t.Errorf("run %d: lowest risk %d, expected %d", run, results.LowestRisk, first.LowestRisk)
		}
	}
}

func TestPerformance(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping performance test in short mode.")
	}

	_, m := loadExampleConfiguration(t)
	returns := mathutil.Arange(-0.5, 0.5, 0.0001)

	start := time.Now()
	result, err := Compute(context.Background(), zap.NewNop(), m, Request{
		Assets:  []string{"AAPL", "F", "BAC", "XOM", "MSFT", "JPM"},
		Returns: returns,
		Workers: 4,
	})
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	elapsed := time.Since(start)

	t.Logf("Swept %d target returns over %d assets in %v", len(result.Points), len(result.Assets), elapsed)
	if elapsed > 10*time.Second {
		t.Errorf("sweep took %v, exceeds 10 second threshold", elapsed)
	}
	if len(result.Points) != len(returns) {
		t.Errorf("expected %d points, got %d", len(returns), len(result.Points))
	}
}

func BenchmarkCompute(b *testing.B) {
	_, m := loadExampleConfiguration(b)
	returns := mathutil.Arange(0.05, 0.2, 0.005)
	req := Request{Assets: []string{"AAPL", "F", "BAC", "XOM"}, Returns: returns}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Compute(context.Background(), zap.NewNop(), m, req); err != nil {
			b.Fatal(err)
		}
	}
}
