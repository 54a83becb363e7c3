package models

import "time"

// MinSignificantSignals is the signal count below which backtest statistics are flagged as low sample.
const MinSignificantSignals = 20

// BacktestTrade is one signal occurrence held for a fixed number of bars.
type BacktestTrade struct {
	EntryDate     time.Time `json:"entry_date"`
	EntryPrice    float64   `json:"entry_price"`
	HoldingPeriod int       `json:"holding_period"`
	ExitDate      time.Time `json:"exit_date"`
	ExitPrice     float64   `json:"exit_price"`
	Return        float64   `json:"return"`
}

// HoldingPeriodStats aggregates the trades of one holding period.
// Fields are nil when no trade completed inside the sample.
type HoldingPeriodStats struct {
	HoldingPeriod int             `json:"holding_period"`
	Trades        int             `json:"trades"`
	WinRate       *float64        `json:"win_rate"`
	AvgReturn     *float64        `json:"avg_return"`
	BestReturn    *float64        `json:"best_return"`
	WorstReturn   *float64        `json:"worst_return"`
	ProfitFactor  *float64        `json:"profit_factor"`
	TradeList     []BacktestTrade `json:"trade_list,omitempty"`
}

type BacktestResult struct {
	Ticker         string               `json:"ticker"`
	Signal         string               `json:"signal"`
	DataPoints     int                  `json:"data_points"`
	TotalSignals   int                  `json:"total_signals"`
	SignalDates    []time.Time          `json:"signal_dates"`
	LowSampleSize  bool                 `json:"low_sample_size"`
	HoldingPeriods []HoldingPeriodStats `json:"holding_periods"`
	BestTrade      *float64             `json:"best_trade"`
	WorstTrade     *float64             `json:"worst_trade"`
	ProfitFactor   *float64             `json:"profit_factor"`
}

// Period returns the stats for holding period h, or nil.
func (r BacktestResult) Period(h int) *HoldingPeriodStats {
	for i := range r.HoldingPeriods {
		if r.HoldingPeriods[i].HoldingPeriod == h {
			return &r.HoldingPeriods[i]
		}
	}
	return nil
}

// Exit reasons of a simulated round trip.
const (
	ExitSignal     = "signal"
	ExitStopLoss   = "stop_loss"
	ExitTakeProfit = "take_profit"
	ExitEndOfData  = "end_of_data"
)

// StrategyTrade extends BacktestTrade with the position-management outcome.
type StrategyTrade struct {
	BacktestTrade
	ExitReason    string  `json:"exit_reason"`
	StopLossHit   bool    `json:"stop_loss_hit"`
	TakeProfitHit bool    `json:"take_profit_hit"`
	PnLPct        float64 `json:"pnl_pct"`
}

type StrategyResult struct {
	Ticker        string          `json:"ticker"`
	EntrySignal   string          `json:"entry_signal"`
	ExitSignal    string          `json:"exit_signal"`
	StopLossPct   float64         `json:"stop_loss_pct"`
	TakeProfitPct *float64        `json:"take_profit_pct"`
	StartDate     time.Time       `json:"start_date"`
	EndDate       time.Time       `json:"end_date"`
	Trades        []StrategyTrade `json:"trades"`
	TotalTrades   int             `json:"total_trades"`
	WinRate       *float64        `json:"win_rate"`
	AvgPnLPct     *float64        `json:"avg_pnl_pct"`
	TotalReturn   float64         `json:"total_return"`
	CAGR          *float64        `json:"cagr"`
	MaxDrawdown   Drawdown        `json:"max_drawdown"`
	Sharpe        *float64        `json:"sharpe_ratio"`
	Sortino       *float64        `json:"sortino_ratio"`
	BuyHoldReturn float64         `json:"buy_hold_return"`
	ExcessReturn  float64         `json:"excess_return"`
	CostsModeled  bool            `json:"costs_modeled"`
	Assumptions   []string        `json:"assumptions"`
}

type RiskResult struct {
	Ticker               string   `json:"ticker"`
	Benchmark            string   `json:"benchmark"`
	Period               string   `json:"period"`
	Observations         int      `json:"observations"`
	RiskFreeRate         float64  `json:"risk_free_rate"`
	AnnualizedReturn     float64  `json:"annualized_return"`
	AnnualizedVolatility float64  `json:"annualized_volatility"`
	Sharpe               *float64 `json:"sharpe_ratio"`
	Sortino              *float64 `json:"sortino_ratio"`
	MaxDrawdown          Drawdown `json:"max_drawdown"`
	Beta                 *float64 `json:"beta"`
	Alpha                *float64 `json:"alpha"`
	Treynor              *float64 `json:"treynor_ratio"`
	InformationRatio     *float64 `json:"information_ratio"`
	Calmar               *float64 `json:"calmar_ratio"`
	CAGR                 float64  `json:"cagr"`
	Tail95               TailRisk `json:"tail_95"`
	Tail99               TailRisk `json:"tail_99"`
	UpCapture            *float64 `json:"up_capture"`
	DownCapture          *float64 `json:"down_capture"`
	Skewness             *float64 `json:"skewness"`
	ExcessKurtosis       *float64 `json:"excess_kurtosis"`
}
