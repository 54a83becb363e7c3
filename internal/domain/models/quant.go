package models

import "time"

// Drawdown describes the deepest peak-to-trough decline of an equity curve.
type Drawdown struct {
	Depth        float64    `json:"depth"`
	PeakDate     time.Time  `json:"peak_date"`
	TroughDate   time.Time  `json:"trough_date"`
	RecoveryDate *time.Time `json:"recovery_date"`
	DurationDays int        `json:"duration_days"`
}

// TailRisk is VaR/CVaR at one confidence level, expressed as returns (negative is a loss).
type TailRisk struct {
	Confidence    float64 `json:"confidence"`
	HistoricalVaR float64 `json:"historical_var"`
	ParametricVaR float64 `json:"parametric_var"`
	CVaR          float64 `json:"cvar"`
}

type DistributionResult struct {
	Ticker               string   `json:"ticker"`
	Period               string   `json:"period"`
	Observations         int      `json:"observations"`
	Mean                 float64  `json:"mean"`
	StdDev               float64  `json:"std_dev"`
	Skewness             *float64 `json:"skewness"`
	ExcessKurtosis       *float64 `json:"excess_kurtosis"`
	JarqueBera           *float64 `json:"jarque_bera"`
	JarqueBeraPValue     *float64 `json:"jarque_bera_p_value"`
	IsNormal             *bool    `json:"is_normal"`
	AnnualizedReturn     float64  `json:"annualized_return"`
	AnnualizedVolatility float64  `json:"annualized_volatility"`
	Tail                 TailRisk `json:"tail"`
	Tail95               TailRisk `json:"tail_95"`
	Tail99               TailRisk `json:"tail_99"`
	MaxDrawdown          Drawdown `json:"max_drawdown"`
}

// Tendency labels for the Hurst exponent.
const (
	TendencyMeanReverting = "mean_reverting"
	TendencyRandomWalk    = "random_walk"
	TendencyTrending      = "trending"
)

type ZScore struct {
	Window int      `json:"window"`
	Mean   float64  `json:"mean"`
	Value  *float64 `json:"value"`
}

type MeanReversionResult struct {
	Ticker       string   `json:"ticker"`
	Observations int      `json:"observations"`
	CurrentPrice float64  `json:"current_price"`
	Hurst        float64  `json:"hurst"`
	Tendency     string   `json:"tendency"`
	ARSlope      float64  `json:"ar_slope"`
	HalfLife     *float64 `json:"half_life"`
	MeanLevel    *float64 `json:"mean_level"`
	ZScores      []ZScore `json:"z_scores"`
}

// Regime labels.
const (
	RegimeTrendingUp     = "trending-up"
	RegimeTrendingDown   = "trending-down"
	RegimeRangeBound     = "range-bound"
	RegimeHighVolatility = "high-volatility"
)

// Volatility buckets shared by the regime classifier and the volatility engine.
const (
	VolBucketLow     = "low"
	VolBucketNormal  = "normal"
	VolBucketHigh    = "high"
	VolBucketExtreme = "extreme"
)

type RegimeResult struct {
	Ticker               string    `json:"ticker"`
	AsOf                 time.Time `json:"as_of"`
	Regime               string    `json:"regime"`
	Confidence           float64   `json:"confidence"`
	DaysInRegime         int       `json:"days_in_regime"`
	VolatilityBucket     string    `json:"volatility_bucket"`
	VolatilityPercentile float64   `json:"volatility_percentile"`
	RealizedVolatility   float64   `json:"realized_volatility"`
	TrendSlope           float64   `json:"trend_slope"`
	TrendStrength        float64   `json:"trend_strength"`
	SMA50                float64   `json:"sma_50"`
}

// ModelFit is the request-scoped result of fitting one model.
type ModelFit struct {
	Model        string             `json:"model"`
	Order        []int              `json:"order,omitempty"`
	Params       map[string]float64 `json:"params"`
	AIC          float64            `json:"aic"`
	ResidualStd  float64            `json:"residual_std"`
	UsedFallback bool               `json:"used_fallback"`
	FallbackNote string             `json:"fallback_note,omitempty"`
	Candidates   []CandidateFit     `json:"candidates,omitempty"`
}

// CandidateFit is one successful grid candidate of an order search.
type CandidateFit struct {
	Order []int   `json:"order"`
	AIC   float64 `json:"aic"`
}

type ForecastPoint struct {
	Day     int       `json:"day"`
	Date    time.Time `json:"date"`
	Point   float64   `json:"point"`
	Lower80 float64   `json:"lower_80"`
	Upper80 float64   `json:"upper_80"`
	Lower95 float64   `json:"lower_95"`
	Upper95 float64   `json:"upper_95"`
}

type ForecastResult struct {
	Ticker       string          `json:"ticker"`
	HorizonDays  int             `json:"horizon_days"`
	CurrentPrice float64         `json:"current_price"`
	Points       []ForecastPoint `json:"points"`
	Fit          ModelFit        `json:"fit"`
}

// Final returns the last point of the forecast.
func (f ForecastResult) Final() ForecastPoint { return f.Points[len(f.Points)-1] }

type VaREstimate struct {
	Confidence float64 `json:"confidence"`
	OneDay     float64 `json:"one_day"`
	FiveDay    float64 `json:"five_day"`
}

type VolatilityResult struct {
	Ticker                string        `json:"ticker"`
	HorizonDays           int           `json:"horizon_days"`
	DailyVolPath          []float64     `json:"daily_vol_path"`
	AnnualizedVolatility  float64       `json:"annualized_volatility"`
	CurrentConditionalVol float64       `json:"current_conditional_vol"`
	Regime                string        `json:"regime"`
	RegimePercentile      float64       `json:"regime_percentile"`
	RealizedVol30         *float64      `json:"realized_vol_30d"`
	RealizedVol60         *float64      `json:"realized_vol_60d"`
	VaR                   []VaREstimate `json:"var"`
	Fit                   ModelFit      `json:"fit"`
}

type PercentilePath struct {
	Percentile float64   `json:"percentile"`
	Prices     []float64 `json:"prices"`
}

type ThresholdProbability struct {
	Threshold float64 `json:"threshold"`
	ProbAbove float64 `json:"prob_above"`
	ProbBelow float64 `json:"prob_below"`
}

type SimulationResult struct {
	Ticker         string                 `json:"ticker"`
	CurrentPrice   float64                `json:"current_price"`
	HorizonDays    int                    `json:"horizon_days"`
	Simulations    int                    `json:"simulations"`
	Seed           uint64                 `json:"seed"`
	Drift          float64                `json:"drift"`
	Volatility     float64                `json:"volatility"`
	DriftSource    string                 `json:"drift_source"`
	VolSource      string                 `json:"vol_source"`
	Paths          []PercentilePath       `json:"paths"`
	Probabilities  []ThresholdProbability `json:"probabilities"`
	MeanTerminal   float64                `json:"mean_terminal"`
	MedianTerminal float64                `json:"median_terminal"`
	ExpectedReturn float64                `json:"expected_return"`
}

// Path returns the percentile path for p, or nil.
func (s SimulationResult) Path(p float64) []float64 {
	for _, pp := range s.Paths {
		if pp.Percentile == p {
			return pp.Prices
		}
	}
	return nil
}
