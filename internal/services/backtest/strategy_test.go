package backtest

import (
	"context"
	"math"
	"testing"

	"github.com/arg-foo/zaza-sub000/internal/domain/models"
	"github.com/arg-foo/zaza-sub000/internal/testutil"
)

// ohlc builds a series from {open, high, low, close} rows.
func ohlc(rows [][4]float64) models.PriceSeries {
	dates := testutil.BusinessDays(testutil.Start, len(rows))
	bars := make([]models.Bar, len(rows))
	for i, r := range rows {
		bars[i] = models.Bar{Date: dates[i], Open: r[0], High: r[1], Low: r[2], Close: r[3], Volume: 1000}
	}
	return models.PriceSeries{Ticker: "X", Bars: bars}
}

func flat(p float64) [4]float64 { return [4]float64{p, p, p, p} }

func pct(v float64) *float64 { return &v }

func TestStrategyExits(t *testing.T) {
	cases := []struct {
		name       string
		rows       [][4]float64
		params     models.StrategyParams
		wantReason string
		wantExit   float64
	}{
		{
			name:       "intraday stop",
			rows:       [][4]float64{flat(100), {99, 101, 94, 98}, flat(120), flat(120)},
			params:     models.StrategyParams{EntrySignal: "close<=100"},
			wantReason: models.ExitStopLoss,
			wantExit:   95,
		},
		{
			name:       "stop wins over target on the same bar",
			rows:       [][4]float64{flat(100), {100, 106, 94, 100}, flat(120)},
			params:     models.StrategyParams{EntrySignal: "close<=100", TakeProfitPct: pct(5)},
			wantReason: models.ExitStopLoss,
			wantExit:   95,
		},
		{
			name:       "gap through stop fills at open",
			rows:       [][4]float64{flat(100), {90, 92, 88, 91}, flat(120)},
			params:     models.StrategyParams{EntrySignal: "close<=100"},
			wantReason: models.ExitStopLoss,
			wantExit:   90,
		},
		{
			name:       "take profit",
			rows:       [][4]float64{flat(100), {101, 111, 100, 108}, flat(120)},
			params:     models.StrategyParams{EntrySignal: "close<=100", TakeProfitPct: pct(10)},
			wantReason: models.ExitTakeProfit,
			wantExit:   110,
		},
		{
			name:       "exit signal at close",
			rows:       [][4]float64{flat(100), flat(103), flat(106), flat(104)},
			params:     models.StrategyParams{EntrySignal: "close<=100", ExitSignal: "close>=105"},
			wantReason: models.ExitSignal,
			wantExit:   106,
		},
		{
			name:       "end of data",
			rows:       [][4]float64{flat(100), flat(101), flat(102)},
			params:     models.StrategyParams{EntrySignal: "close<=100"},
			wantReason: models.ExitEndOfData,
			wantExit:   102,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			res, err := NewStrategySimulator().Simulate(context.Background(), ohlc(c.rows), c.params)
			if err != nil {
				t.Fatalf("Simulate: %v", err)
			}
			if res.TotalTrades != 1 {
				t.Fatalf("trades = %d, want 1", res.TotalTrades)
			}
			tr := res.Trades[0]
			if tr.ExitReason != c.wantReason {
				t.Fatalf("exit reason = %s, want %s", tr.ExitReason, c.wantReason)
			}
			if math.Abs(tr.ExitPrice-c.wantExit) > 1e-9 {
				t.Fatalf("exit price = %v, want %v", tr.ExitPrice, c.wantExit)
			}
			if tr.HoldingPeriod < 1 {
				t.Fatalf("exit must come after the entry bar")
			}
			if math.Abs(res.TotalReturn-(c.wantExit/100-1)) > 1e-9 {
				t.Fatalf("total return = %v, want %v", res.TotalReturn, c.wantExit/100-1)
			}
		})
	}
}

func TestStrategySurfacesAssumptions(t *testing.T) {
	series := testutil.Series("X", testutil.GBM(3, 300, 100, 0.0003, 0.015))
	res, err := NewStrategySimulator().Simulate(context.Background(), series, models.StrategyParams{
		EntrySignal: "rsi<40",
		ExitSignal:  "rsi>60",
	})
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	if res.CostsModeled || len(res.Assumptions) == 0 || res.Assumptions[0] != "no transaction costs or slippage modeled" {
		t.Fatalf("cost assumption not surfaced: %+v", res.Assumptions)
	}
	if res.StopLossPct != DefaultStopLossPct {
		t.Fatalf("stop loss default = %v", res.StopLossPct)
	}
	want := series.Bars[series.Len()-1].Close/series.Bars[0].Close - 1
	if math.Abs(res.BuyHoldReturn-want) > 1e-12 {
		t.Fatalf("buy and hold = %v, want %v", res.BuyHoldReturn, want)
	}
	if res.MaxDrawdown.Depth > 0 {
		t.Fatalf("drawdown depth must be <= 0, got %v", res.MaxDrawdown.Depth)
	}
	for _, tr := range res.Trades {
		if !tr.ExitDate.After(tr.EntryDate) {
			t.Fatalf("trade exits on or before entry: %+v", tr)
		}
	}
}

func TestStrategyUnknownEntry(t *testing.T) {
	series := testutil.Series("X", testutil.Linear(10, 100, 1))
	if _, err := NewStrategySimulator().Simulate(context.Background(), series, models.StrategyParams{EntrySignal: "nope"}); err == nil {
		t.Fatalf("expected error for unknown entry signal")
	}
}

type opMetrics struct {
	latency map[string]int
	errors  map[string]int
}

func newOpMetrics() *opMetrics {
	return &opMetrics{latency: map[string]int{}, errors: map[string]int{}}
}

func (m *opMetrics) RecordError(kind string)            { m.errors[kind]++ }
func (m *opMetrics) RecordLatency(op string, _ float64) { m.latency[op]++ }
func (m *opMetrics) RecordFallback(string)              {}
func (m *opMetrics) RecordPredictions(string, int)      {}

func TestEnginesShareOptions(t *testing.T) {
	m := newOpMetrics()
	series := testutil.Series("X", testutil.Linear(300, 100, 1))
	bt := NewBacktester(WithMetrics(m))
	sim := NewStrategySimulator(WithMetrics(m))
	if _, err := bt.Backtest(context.Background(), series, NameGoldenCross, nil); err != nil {
		t.Fatalf("Backtest: %v", err)
	}
	if _, err := sim.Simulate(context.Background(), series, models.StrategyParams{EntrySignal: "nope"}); err == nil {
		t.Fatalf("expected error for unknown entry signal")
	}
	if m.latency["backtest"] != 1 || m.latency["strategy"] != 1 {
		t.Fatalf("latency not recorded per engine: %v", m.latency)
	}
	if m.errors["strategy"] != 1 || m.errors["backtest"] != 0 {
		t.Fatalf("errors not recorded per engine: %v", m.errors)
	}
}
