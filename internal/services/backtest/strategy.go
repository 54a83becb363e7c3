package backtest

import (
	"context"
	"math"
	"time"

	"github.com/arg-foo/zaza-sub000/internal/domain/models"
	domsvc "github.com/arg-foo/zaza-sub000/internal/domain/service"
	"github.com/arg-foo/zaza-sub000/internal/services/features"
	"github.com/arg-foo/zaza-sub000/internal/services/indicators"
	"github.com/arg-foo/zaza-sub000/pkg/logger"
)

// DefaultStopLossPct is the stop distance used when none is given.
const DefaultStopLossPct = 5.0

const minStrategyBars = 2

// Assumptions returned with every strategy simulation.
var Assumptions = []string{
	"no transaction costs or slippage modeled",
	"entries and signal exits fill at the bar close",
	"stop-loss and take-profit fill at their level, or at the open when the bar gaps through it",
	"stop-loss wins when both levels are touched on the same bar",
	"one position at a time, fully invested",
}

// StrategySimulator runs single-position round trips driven by entry/exit signals.
type StrategySimulator struct{ settings }

func NewStrategySimulator(opts ...Option) *StrategySimulator {
	return &StrategySimulator{settings: newSettings(opts)}
}

// Simulate enters at the close of an entry-signal bar and exits on the first later bar
// that breaches the stop, reaches the target or fires the exit signal.
func (s *StrategySimulator) Simulate(ctx context.Context, series models.PriceSeries, params models.StrategyParams) (res models.StrategyResult, err error) {
	start := time.Now()
	defer func() { s.observe("strategy", start, err) }()

	n := series.Len()
	if n < minStrategyBars {
		return res, &models.InsufficientDataError{Ticker: series.Ticker, Operation: "strategy simulation", Required: minStrategyBars, Got: n}
	}
	entrySig, err := ParseSignal(params.EntrySignal)
	if err != nil {
		return res, err
	}
	var exitSig Signal
	if params.ExitSignal != "" {
		if exitSig, err = ParseSignal(params.ExitSignal); err != nil {
			return res, err
		}
	}
	stopPct := params.StopLossPct
	if stopPct <= 0 {
		stopPct = DefaultStopLossPct
	}

	set := indicators.Compute(series)
	entries, err := fireIndices(ctx, entrySig, set)
	if err != nil {
		return res, err
	}
	entryAt := make(map[int]bool, len(entries))
	for _, i := range entries {
		entryAt[i] = true
	}

	equity := make([]float64, n)
	cash := 1.0
	inPos := false
	entryIdx := 0
	entryPrice := 0.0
	var trades []models.StrategyTrade

	closeOut := func(i int, price float64, reason string) {
		tr := models.StrategyTrade{
			BacktestTrade: models.BacktestTrade{
				EntryDate:     series.Bars[entryIdx].Date,
				EntryPrice:    entryPrice,
				HoldingPeriod: i - entryIdx,
				ExitDate:      series.Bars[i].Date,
				ExitPrice:     price,
				Return:        price/entryPrice - 1,
			},
			ExitReason:    reason,
			StopLossHit:   reason == models.ExitStopLoss,
			TakeProfitHit: reason == models.ExitTakeProfit,
		}
		tr.PnLPct = tr.Return * 100
		trades = append(trades, tr)
		cash *= price / entryPrice
		inPos = false
	}

	for i := 0; i < n; i++ {
		bar := series.Bars[i]
		if !inPos {
			equity[i] = cash
			if entryAt[i] && i < n-1 && bar.Close > 0 {
				inPos, entryIdx, entryPrice = true, i, bar.Close
			}
			continue
		}

		stop := entryPrice * (1 - stopPct/100)
		target := math.Inf(1)
		if params.TakeProfitPct != nil {
			target = entryPrice * (1 + *params.TakeProfitPct/100)
		}
		switch {
		case bar.Open <= stop:
			closeOut(i, bar.Open, models.ExitStopLoss)
		case bar.Open >= target:
			closeOut(i, bar.Open, models.ExitTakeProfit)
		case bar.Low <= stop:
			closeOut(i, stop, models.ExitStopLoss)
		case bar.High >= target:
			closeOut(i, target, models.ExitTakeProfit)
		default:
			if exitSig != nil {
				fired, err := Evaluate(exitSig, set, i)
				if err != nil {
					return res, err
				}
				if fired {
					closeOut(i, bar.Close, models.ExitSignal)
				}
			}
		}
		if inPos {
			equity[i] = cash * bar.Close / entryPrice
		} else {
			equity[i] = cash
		}
	}
	if inPos {
		closeOut(n-1, series.Bars[n-1].Close, models.ExitEndOfData)
		equity[n-1] = cash
	}

	res = models.StrategyResult{
		Ticker:        series.Ticker,
		EntrySignal:   entrySig.Name(),
		StopLossPct:   stopPct,
		TakeProfitPct: params.TakeProfitPct,
		StartDate:     series.Bars[0].Date,
		EndDate:       series.Bars[n-1].Date,
		Trades:        trades,
		TotalTrades:   len(trades),
		TotalReturn:   equity[n-1] - 1,
		MaxDrawdown:   features.MaxDrawdown(equity, series.Dates()),
		CostsModeled:  false,
		Assumptions:   Assumptions,
	}
	if exitSig != nil {
		res.ExitSignal = exitSig.Name()
	}
	if first := series.Bars[0].Close; first > 0 {
		res.BuyHoldReturn = series.Bars[n-1].Close/first - 1
	}
	res.ExcessReturn = res.TotalReturn - res.BuyHoldReturn

	if len(trades) > 0 {
		pnls := make([]float64, len(trades))
		for i, t := range trades {
			pnls[i] = t.PnLPct
		}
		res.WinRate, res.AvgPnLPct, _, _, _ = summarize(pnls)
	}
	res.CAGR = cagr(equity[n-1], res.StartDate, res.EndDate)
	daily := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		daily = append(daily, equity[i]/equity[i-1]-1)
	}
	res.Sharpe, res.Sortino = sharpeSortino(daily)

	s.log.Debug("strategy simulation complete",
		logger.String("ticker", series.Ticker),
		logger.String("entry", res.EntrySignal),
		logger.Int("trades", res.TotalTrades),
		logger.Float("total_return", res.TotalReturn),
	)
	return res, nil
}

// cagr annualizes growth over the calendar span; nil for spans under a day or a wiped-out curve.
func cagr(final float64, from, to time.Time) *float64 {
	years := to.Sub(from).Hours() / 24 / 365.25
	if years <= 0 || final <= 0 {
		return nil
	}
	v := math.Pow(final, 1/years) - 1
	return &v
}

// sharpeSortino annualizes daily returns with a zero risk-free rate.
func sharpeSortino(daily []float64) (*float64, *float64) {
	if len(daily) < 2 {
		return nil, nil
	}
	mean, sd := 0.0, 0.0
	for _, r := range daily {
		mean += r
	}
	mean /= float64(len(daily))
	down := 0.0
	for _, r := range daily {
		sd += (r - mean) * (r - mean)
		if r < 0 {
			down += r * r
		}
	}
	sd = math.Sqrt(sd / float64(len(daily)-1))
	down = math.Sqrt(down / float64(len(daily)))
	var sharpe, sortino *float64
	ann := math.Sqrt(features.TradingDaysPerYear)
	if sd > 0 {
		v := mean / sd * ann
		sharpe = &v
	}
	if down > 0 {
		v := mean / down * ann
		sortino = &v
	}
	return sharpe, sortino
}

var _ domsvc.StrategySimulator = (*StrategySimulator)(nil)
