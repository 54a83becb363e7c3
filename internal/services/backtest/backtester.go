// Package backtest evaluates signals over history without look-ahead and
// simulates round-trip strategies built from them.
package backtest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/arg-foo/zaza-sub000/internal/domain/models"
	"github.com/arg-foo/zaza-sub000/internal/domain/repository"
	domsvc "github.com/arg-foo/zaza-sub000/internal/domain/service"
	"github.com/arg-foo/zaza-sub000/internal/services/indicators"
	"github.com/arg-foo/zaza-sub000/pkg/logger"
)

// DefaultHoldingPeriods are the forward horizons measured after every signal.
var DefaultHoldingPeriods = []int{5, 20, 60}

const minBacktestBars = 2

// Option configures a Backtester or a StrategySimulator.
type Option func(*settings)

func WithLogger(l *logger.Logger) Option {
	return func(s *settings) { s.log = l }
}

func WithMetrics(m repository.Metrics) Option {
	return func(s *settings) { s.metrics = m }
}

type settings struct {
	log     *logger.Logger
	metrics repository.Metrics
}

func newSettings(opts []Option) settings {
	var s settings
	for _, o := range opts {
		o(&s)
	}
	return s
}

func (s settings) observe(op string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordLatency(op, time.Since(start).Seconds())
	if err != nil {
		s.metrics.RecordError(op)
	}
}

// Backtester measures fixed-horizon forward returns after each signal occurrence.
type Backtester struct{ settings }

func NewBacktester(opts ...Option) *Backtester {
	return &Backtester{settings: newSettings(opts)}
}

// Backtest resolves signal by name and runs it over series.
func (b *Backtester) Backtest(ctx context.Context, series models.PriceSeries, signal string, holdingPeriods []int) (models.BacktestResult, error) {
	sig, err := ParseSignal(signal)
	if err != nil {
		return models.BacktestResult{}, err
	}
	return b.Run(ctx, series, sig, holdingPeriods)
}

// Run evaluates sig on every bar and aggregates forward returns per holding period.
func (b *Backtester) Run(ctx context.Context, series models.PriceSeries, sig Signal, holdingPeriods []int) (res models.BacktestResult, err error) {
	start := time.Now()
	defer func() { b.observe("backtest", start, err) }()

	n := series.Len()
	if n < minBacktestBars {
		return res, &models.InsufficientDataError{Ticker: series.Ticker, Operation: "signal backtest", Required: minBacktestBars, Got: n}
	}
	periods := normalizePeriods(holdingPeriods)
	set := indicators.Compute(series)
	fired, err := fireIndices(ctx, sig, set)
	if err != nil {
		return res, err
	}

	res = models.BacktestResult{
		Ticker:        series.Ticker,
		Signal:        sig.Name(),
		DataPoints:    n,
		TotalSignals:  len(fired),
		SignalDates:   make([]time.Time, 0, len(fired)),
		LowSampleSize: len(fired) < models.MinSignificantSignals,
	}
	for _, i := range fired {
		res.SignalDates = append(res.SignalDates, series.Bars[i].Date)
	}

	for _, h := range periods {
		stats := models.HoldingPeriodStats{HoldingPeriod: h}
		rets := make([]float64, 0, len(fired))
		for _, i := range fired {
			exit := i + h
			if exit >= n {
				continue
			}
			tr := trade(series, i, exit)
			stats.TradeList = append(stats.TradeList, tr)
			rets = append(rets, tr.Return)
		}
		stats.Trades = len(rets)
		stats.WinRate, stats.AvgReturn, stats.BestReturn, stats.WorstReturn, stats.ProfitFactor = summarize(rets)
		res.HoldingPeriods = append(res.HoldingPeriods, stats)
	}

	// Best/worst and the overall profit factor use the longest horizon, truncated at the last bar.
	longest := periods[len(periods)-1]
	overall := make([]float64, 0, len(fired))
	for _, i := range fired {
		exit := min(i+longest, n-1)
		if exit > i {
			overall = append(overall, trade(series, i, exit).Return)
		}
	}
	_, _, res.BestTrade, res.WorstTrade, res.ProfitFactor = summarize(overall)

	b.log.Debug("signal backtest complete",
		logger.String("ticker", series.Ticker),
		logger.String("signal", res.Signal),
		logger.Int("signals", res.TotalSignals),
		logger.Bool("low_sample", res.LowSampleSize),
	)
	return res, nil
}

// fireIndices returns the bars on which sig fires, in order.
func fireIndices(ctx context.Context, sig Signal, set *indicators.Set) ([]int, error) {
	var out []int
	for i := 0; i < set.Len(); i++ {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		ok, err := Evaluate(sig, set, i)
		if err != nil {
			return nil, fmt.Errorf("evaluate %s at bar %d: %w", sig.Name(), i, err)
		}
		if ok {
			out = append(out, i)
		}
	}
	return out, nil
}

func trade(series models.PriceSeries, entry, exit int) models.BacktestTrade {
	in := series.Bars[entry]
	out := series.Bars[exit]
	r := 0.0
	if in.Close > 0 {
		r = out.Close/in.Close - 1
	}
	return models.BacktestTrade{
		EntryDate:     in.Date,
		EntryPrice:    in.Close,
		HoldingPeriod: exit - entry,
		ExitDate:      out.Date,
		ExitPrice:     out.Close,
		Return:        r,
	}
}

// summarize returns win rate, mean, best, worst and profit factor; all nil for no returns.
// The profit factor is nil when there is no losing trade.
func summarize(rets []float64) (winRate, avg, best, worst, pf *float64) {
	if len(rets) == 0 {
		return nil, nil, nil, nil, nil
	}
	wins, gain, loss, sum := 0, 0.0, 0.0, 0.0
	hi, lo := rets[0], rets[0]
	for _, r := range rets {
		sum += r
		if r > 0 {
			wins++
			gain += r
		} else if r < 0 {
			loss -= r
		}
		hi = max(hi, r)
		lo = min(lo, r)
	}
	wr := float64(wins) / float64(len(rets))
	mean := sum / float64(len(rets))
	winRate, avg, best, worst = &wr, &mean, &hi, &lo
	if loss > 0 {
		f := gain / loss
		pf = &f
	}
	return winRate, avg, best, worst, pf
}

func normalizePeriods(in []int) []int {
	if len(in) == 0 {
		in = DefaultHoldingPeriods
	}
	seen := make(map[int]bool, len(in))
	out := make([]int, 0, len(in))
	for _, h := range in {
		if h > 0 && !seen[h] {
			seen[h] = true
			out = append(out, h)
		}
	}
	if len(out) == 0 {
		out = append(out, DefaultHoldingPeriods...)
	}
	sort.Ints(out)
	return out
}

var _ domsvc.SignalBacktester = (*Backtester)(nil)
