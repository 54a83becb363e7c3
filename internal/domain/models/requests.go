package models

// HTTP and CLI request parameters. Defaults are applied with creasty/defaults before validation.
// Optional pointer parameters carry no query tag; the HTTP handler reads them itself.

type DistributionRequest struct {
	Ticker     string  `query:"ticker" json:"ticker" validate:"required,ticker"`
	Period     string  `query:"period" json:"period" default:"1y" validate:"oneof=3mo 6mo 1y 2y 3y 5y 10y"`
	Confidence float64 `query:"confidence" json:"confidence" default:"0.95" validate:"gt=0.5,lt=1"`
}

type MeanReversionRequest struct {
	Ticker string `query:"ticker" json:"ticker" validate:"required,ticker"`
	Period string `query:"period" json:"period" default:"1y" validate:"oneof=3mo 6mo 1y 2y 3y 5y 10y"`
}

type RegimeRequest struct {
	Ticker string `query:"ticker" json:"ticker" validate:"required,ticker"`
	Period string `query:"period" json:"period" default:"1y" validate:"oneof=3mo 6mo 1y 2y 3y 5y 10y"`
}

type ForecastRequest struct {
	Ticker  string `query:"ticker" json:"ticker" validate:"required,ticker"`
	Horizon int    `query:"horizon_days" json:"horizon_days" default:"30" validate:"gte=1,lte=365"`
	Method  string `query:"method" json:"method" default:"auto" validate:"oneof=auto arima decomposition"`
	Period  string `query:"period" json:"period" default:"2y" validate:"oneof=6mo 1y 2y 3y 5y 10y"`
}

type VolatilityRequest struct {
	Ticker  string `query:"ticker" json:"ticker" validate:"required,ticker"`
	Horizon int    `query:"horizon_days" json:"horizon_days" default:"30" validate:"gte=1,lte=252"`
	Period  string `query:"period" json:"period" default:"2y" validate:"oneof=2y 3y 5y 10y"`
}

type MonteCarloRequest struct {
	Ticker      string   `query:"ticker" json:"ticker" validate:"required,ticker"`
	Horizon     int      `query:"horizon_days" json:"horizon_days" default:"30" validate:"gte=1,lte=756"`
	Simulations int      `query:"simulations" json:"simulations" default:"10000" validate:"gte=1,lte=200000"`
	Seed        *uint64  `json:"seed"`
	Drift       *float64 `json:"drift"`
	Volatility  *float64 `json:"volatility" validate:"omitempty,gte=0"`
	Source      string   `query:"source" json:"source" default:"historical" validate:"oneof=historical forecast garch"`
	Thresholds  string   `query:"thresholds" json:"thresholds"`
	Period      string   `query:"period" json:"period" default:"1y" validate:"oneof=6mo 1y 2y 3y 5y 10y"`
}

type BacktestRequest struct {
	Ticker         string `query:"ticker" json:"ticker" validate:"required,ticker"`
	Signal         string `query:"signal" json:"signal" validate:"required,max=64"`
	HoldingPeriods string `query:"holding_periods" json:"holding_periods"`
	LookbackYears  int    `query:"lookback_years" json:"lookback_years" default:"5" validate:"gte=1,lte=10"`
}

type StrategyRequest struct {
	Ticker        string   `query:"ticker" json:"ticker" validate:"required,ticker"`
	EntrySignal   string   `query:"entry_signal" json:"entry_signal" validate:"required,max=64"`
	ExitSignal    string   `query:"exit_signal" json:"exit_signal" validate:"omitempty,max=64"`
	StopLossPct   float64  `query:"stop_loss_pct" json:"stop_loss_pct" default:"5" validate:"gt=0,lt=100"`
	TakeProfitPct *float64 `json:"take_profit_pct" validate:"omitempty,gt=0"`
	LookbackYears int      `query:"lookback_years" json:"lookback_years" default:"5" validate:"gte=1,lte=10"`
}

type RiskRequest struct {
	Ticker    string `query:"ticker" json:"ticker" validate:"required,ticker"`
	Benchmark string `query:"benchmark" json:"benchmark" default:"SPY" validate:"required,ticker"`
	Period    string `query:"period" json:"period" default:"1y" validate:"oneof=3mo 6mo 1y 2y 3y 5y 10y"`
}

type SnapshotRequest struct {
	Ticker string `query:"ticker" json:"ticker" validate:"required,ticker"`
	Period string `query:"period" json:"period" default:"2y" validate:"oneof=1y 2y 3y 5y 10y"`
}

// LogPredictionRequest is the body of POST /predictions and of the submitted-predictions topic.
type LogPredictionRequest struct {
	Ticker             string             `json:"ticker" validate:"required,ticker"`
	HorizonDays        int                `json:"horizon_days" validate:"gte=1,lte=3650"`
	PredictionDate     string             `json:"prediction_date" validate:"omitempty,datetime=2006-01-02"`
	CurrentPrice       float64            `json:"current_price" validate:"gte=0"`
	PredictedRange     PriceRange         `json:"predicted_range"`
	ConfidenceInterval ConfidenceInterval `json:"confidence_interval"`
	ModelWeights       map[string]float64 `json:"model_weights"`
	KeyFactors         []string           `json:"key_factors" validate:"omitempty,dive,max=256"`
}

// Record converts the request into a ledger record.
func (r LogPredictionRequest) Record() PredictionRecord {
	return PredictionRecord{
		Ticker:             r.Ticker,
		HorizonDays:        r.HorizonDays,
		PredictionDate:     r.PredictionDate,
		CurrentPrice:       r.CurrentPrice,
		PredictedRange:     r.PredictedRange,
		ConfidenceInterval: r.ConfidenceInterval,
		ModelWeights:       r.ModelWeights,
		KeyFactors:         r.KeyFactors,
	}
}

type ScoreRequest struct {
	Ticker string `query:"ticker" json:"ticker" validate:"omitempty,ticker"`
}
