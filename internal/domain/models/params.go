package models

import "fmt"

// Drift and volatility sources of a simulation.
const (
	SourceHistorical = "historical"
	SourceForecast   = "forecast"
	SourceGARCH      = "garch"
	SourceOverride   = "override"
)

// SimulationParams configures one Monte Carlo run. Drift and Volatility are annualized;
// nil pointers select historical estimates and a time-derived seed.
type SimulationParams struct {
	HorizonDays int
	Simulations int
	Seed        *uint64
	Drift       *float64
	Volatility  *float64
	DriftSource string
	VolSource   string
	Thresholds  []float64
}

// MaxSimulationSteps bounds Simulations x HorizonDays, the number of prices held per run.
const MaxSimulationSteps = 10_000_000

// CheckSteps reports an ErrInvalidParameter when the run would exceed MaxSimulationSteps.
func (p SimulationParams) CheckSteps() error {
	if steps := int64(p.Simulations) * int64(p.HorizonDays); steps > MaxSimulationSteps {
		return fmt.Errorf("%d simulations over %d days exceed %d steps: %w",
			p.Simulations, p.HorizonDays, MaxSimulationSteps, ErrInvalidParameter)
	}
	return nil
}

// StrategyParams configures one round-trip simulation.
type StrategyParams struct {
	EntrySignal   string
	ExitSignal    string
	StopLossPct   float64
	TakeProfitPct *float64
}

// Forecast model selection.
const (
	ForecastAuto          = "auto"
	ForecastARIMA         = "arima"
	ForecastDecomposition = "decomposition"
)
