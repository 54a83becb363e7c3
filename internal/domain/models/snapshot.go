package models

import "time"

// QuantSnapshot is a consolidated view of the independent components for one ticker.
type QuantSnapshot struct {
	Ticker        string               `json:"ticker"`
	Timestamp     time.Time            `json:"timestamp"`
	Observations  int                  `json:"observations"`
	Distribution  *DistributionResult  `json:"distribution,omitempty"`
	MeanReversion *MeanReversionResult `json:"mean_reversion,omitempty"`
	Regime        *RegimeResult        `json:"regime,omitempty"`
	Forecast      *ForecastResult      `json:"forecast,omitempty"`
	Volatility    *VolatilityResult    `json:"volatility,omitempty"`
	Simulation    *SimulationResult    `json:"simulation,omitempty"`
	Errors        map[string]string    `json:"errors,omitempty"`
}
