package analytics

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/arg-foo/zaza-sub000/internal/domain/models"
	"github.com/arg-foo/zaza-sub000/internal/testutil"
)

func TestMonteCarloDeterministic(t *testing.T) {
	series := testutil.Series("GBM", testutil.GBM(21, 300, 100, 0.0003, 0.015))
	seed := uint64(42)
	params := models.SimulationParams{HorizonDays: 20, Simulations: 2000, Seed: &seed}
	sim := NewMonteCarloSimulator()
	a, err := sim.Simulate(context.Background(), series, params)
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	b, err := sim.Simulate(context.Background(), series, params)
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	if !reflect.DeepEqual(a.Paths, b.Paths) || a.MeanTerminal != b.MeanTerminal {
		t.Fatalf("same seed produced different output")
	}
	if a.Seed != 42 {
		t.Errorf("seed not reported: %d", a.Seed)
	}
	params.Seed = nil
	c, _ := sim.Simulate(context.Background(), series, params)
	d, _ := sim.Simulate(context.Background(), series, params)
	if c.Seed != d.Seed || !reflect.DeepEqual(c.Paths, d.Paths) {
		t.Fatalf("derived seed must be stable for the same series")
	}
}

func TestMonteCarloPaths(t *testing.T) {
	series := testutil.Series("GBM", testutil.GBM(22, 100, 80, 0, 0.02))
	res, err := NewMonteCarloSimulator().Simulate(context.Background(), series, models.SimulationParams{HorizonDays: 10, Simulations: 1000})
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	if len(res.Paths) != len(SimulationPercentiles) {
		t.Fatalf("expected %d percentile paths", len(SimulationPercentiles))
	}
	for _, p := range res.Paths {
		if len(p.Prices) != 11 || p.Prices[0] != res.CurrentPrice {
			t.Fatalf("percentile %v path must start at the current price and span the horizon", p.Percentile)
		}
	}
	for day := 0; day <= 10; day++ {
		for k := 1; k < len(res.Paths); k++ {
			if res.Paths[k].Prices[day] < res.Paths[k-1].Prices[day] {
				t.Fatalf("day %d: percentiles not ordered", day)
			}
		}
	}
	for _, p := range res.Probabilities {
		if p.ProbAbove < 0 || p.ProbBelow < 0 || p.ProbAbove+p.ProbBelow > 1 {
			t.Errorf("invalid probabilities %+v", p)
		}
	}
	if res.DriftSource != models.SourceHistorical || res.VolSource != models.SourceHistorical {
		t.Errorf("expected historical sources, got %s/%s", res.DriftSource, res.VolSource)
	}
}

func TestMonteCarloZeroVolatilityOverride(t *testing.T) {
	series := testutil.Series("GBM", testutil.GBM(23, 100, 100, 0, 0.02))
	drift, vol := 0.0, 0.0
	res, err := NewMonteCarloSimulator().Simulate(context.Background(), series, models.SimulationParams{
		HorizonDays: 5,
		Simulations: 100,
		Drift:       &drift,
		Volatility:  &vol,
	})
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	for _, p := range res.Paths {
		if p.Prices[5] != res.CurrentPrice {
			t.Fatalf("zero drift and volatility must keep the price flat, got %v", p.Prices[5])
		}
	}
	if res.DriftSource != models.SourceOverride || res.VolSource != models.SourceOverride {
		t.Errorf("expected override sources, got %s/%s", res.DriftSource, res.VolSource)
	}
}

// Forward-simulates from many windows of synthetic GBM history and checks how often
// the realized price lands inside the 5th to 95th percentile band.
func TestMonteCarloCalibration(t *testing.T) {
	if testing.Short() {
		t.Skip("statistical test")
	}
	const windows, horizon = 200, 30
	sim := NewMonteCarloSimulator()
	inside := 0
	for w := 0; w < windows; w++ {
		closes := testutil.GBM(uint64(1000+w), 252+horizon, 100, 0.0002, 0.012)
		history := testutil.Series("CAL", closes[:252])
		seed := uint64(w)
		res, err := sim.Simulate(context.Background(), history, models.SimulationParams{HorizonDays: horizon, Simulations: 1000, Seed: &seed})
		if err != nil {
			t.Fatalf("Simulate: %v", err)
		}
		realized := closes[len(closes)-1]
		if realized >= res.Path(5)[horizon] && realized <= res.Path(95)[horizon] {
			inside++
		}
	}
	coverage := float64(inside) / windows
	if coverage < 0.78 || coverage > 0.97 {
		t.Fatalf("5-95 band coverage %.3f, want about 0.90", coverage)
	}
}

func TestMonteCarloInsufficientData(t *testing.T) {
	_, err := NewMonteCarloSimulator().Simulate(context.Background(), testutil.Series("X", testutil.Linear(30, 100, 1)), models.SimulationParams{})
	if !models.IsInsufficientData(err) {
		t.Fatalf("expected insufficient data, got %v", err)
	}
}

func TestMonteCarloRejectsOversizedRun(t *testing.T) {
	series := testutil.Series("GBM", testutil.GBM(23, 100, 80, 0, 0.02))
	params := models.SimulationParams{HorizonDays: MaxSimulationHorizon, Simulations: MaxSimulations}
	_, err := NewMonteCarloSimulator().Simulate(context.Background(), series, params)
	if !errors.Is(err, models.ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter for %d x %d, got %v", params.Simulations, params.HorizonDays, err)
	}
	params.Simulations = models.MaxSimulationSteps / MaxSimulationHorizon
	if err := params.CheckSteps(); err != nil {
		t.Fatalf("run at the step limit rejected: %v", err)
	}
}
