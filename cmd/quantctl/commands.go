package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/arg-foo/zaza-sub000/internal/di"
	"github.com/arg-foo/zaza-sub000/internal/domain/models"
	domrepo "github.com/arg-foo/zaza-sub000/internal/domain/repository"
	"github.com/arg-foo/zaza-sub000/internal/repository"
	"github.com/arg-foo/zaza-sub000/internal/usecase"
	"github.com/arg-foo/zaza-sub000/pkg/util"
)

func newDistributionCmd(c *cli) *cobra.Command {
	var req models.DistributionRequest
	cmd := &cobra.Command{
		Use:   "distribution TICKER",
		Short: "Return distribution, tail risk and VaR/CVaR",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Ticker = args[0]
			return c.execute(cmd, &req, func(ctx context.Context, s *usecase.QuantService) (any, error) {
				return s.Distribution(ctx, req)
			})
		},
	}
	cmd.Flags().StringVar(&req.Period, "period", "1y", "history window")
	cmd.Flags().Float64Var(&req.Confidence, "confidence", 0.95, "VaR confidence level")
	return cmd
}

func newMeanReversionCmd(c *cli) *cobra.Command {
	var req models.MeanReversionRequest
	cmd := &cobra.Command{
		Use:   "mean-reversion TICKER",
		Short: "Hurst exponent, OU half-life and z-score",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Ticker = args[0]
			return c.execute(cmd, &req, func(ctx context.Context, s *usecase.QuantService) (any, error) {
				return s.MeanReversion(ctx, req)
			})
		},
	}
	cmd.Flags().StringVar(&req.Period, "period", "1y", "history window")
	return cmd
}

func newRegimeCmd(c *cli) *cobra.Command {
	var req models.RegimeRequest
	cmd := &cobra.Command{
		Use:   "regime TICKER",
		Short: "Classify the current market regime",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Ticker = args[0]
			return c.execute(cmd, &req, func(ctx context.Context, s *usecase.QuantService) (any, error) {
				return s.Regime(ctx, req)
			})
		},
	}
	cmd.Flags().StringVar(&req.Period, "period", "1y", "history window")
	return cmd
}

func newForecastCmd(c *cli) *cobra.Command {
	var req models.ForecastRequest
	cmd := &cobra.Command{
		Use:   "forecast TICKER",
		Short: "Price forecast with confidence bands",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Ticker = args[0]
			return c.execute(cmd, &req, func(ctx context.Context, s *usecase.QuantService) (any, error) {
				return s.Forecast(ctx, req)
			})
		},
	}
	cmd.Flags().IntVar(&req.Horizon, "horizon", 30, "trading days ahead")
	cmd.Flags().StringVar(&req.Method, "method", "auto", "auto, arima or decomposition")
	cmd.Flags().StringVar(&req.Period, "period", "2y", "history window")
	return cmd
}

func newVolatilityCmd(c *cli) *cobra.Command {
	var req models.VolatilityRequest
	cmd := &cobra.Command{
		Use:   "volatility TICKER",
		Short: "GARCH(1,1) volatility forecast",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Ticker = args[0]
			return c.execute(cmd, &req, func(ctx context.Context, s *usecase.QuantService) (any, error) {
				return s.Volatility(ctx, req)
			})
		},
	}
	cmd.Flags().IntVar(&req.Horizon, "horizon", 30, "trading days ahead")
	cmd.Flags().StringVar(&req.Period, "period", "2y", "history window")
	return cmd
}

func newMonteCarloCmd(c *cli) *cobra.Command {
	var (
		req        models.MonteCarloRequest
		seed       uint64
		drift, vol float64
	)
	cmd := &cobra.Command{
		Use:   "monte-carlo TICKER",
		Short: "Simulate GBM price paths",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Ticker = args[0]
			if cmd.Flags().Changed("seed") {
				req.Seed = &seed
			}
			if cmd.Flags().Changed("drift") {
				req.Drift = &drift
			}
			if cmd.Flags().Changed("volatility") {
				req.Volatility = &vol
			}
			return c.execute(cmd, &req, func(ctx context.Context, s *usecase.QuantService) (any, error) {
				return s.MonteCarlo(ctx, req)
			})
		},
	}
	f := cmd.Flags()
	f.IntVar(&req.Horizon, "horizon", 30, "trading days ahead")
	f.IntVar(&req.Simulations, "simulations", 10000, "number of paths")
	f.Uint64Var(&seed, "seed", 0, "random seed (derived from ticker and last date when unset)")
	f.Float64Var(&drift, "drift", 0, "annualised drift override")
	f.Float64Var(&vol, "volatility", 0, "annualised volatility override")
	f.StringVar(&req.Source, "source", "historical", "historical, forecast or garch")
	f.StringVar(&req.Thresholds, "thresholds", "", "comma separated move thresholds, e.g. 5,10")
	f.StringVar(&req.Period, "period", "1y", "history window")
	return cmd
}

func newBacktestCmd(c *cli) *cobra.Command {
	var req models.BacktestRequest
	cmd := &cobra.Command{
		Use:   "backtest TICKER",
		Short: "Forward returns after each signal occurrence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Ticker = args[0]
			return c.execute(cmd, &req, func(ctx context.Context, s *usecase.QuantService) (any, error) {
				return s.Backtest(ctx, req)
			})
		},
	}
	cmd.Flags().StringVar(&req.Signal, "signal", "", "signal name or expression such as rsi<30")
	cmd.Flags().StringVar(&req.HoldingPeriods, "holding-periods", "", "comma separated holding periods in days")
	cmd.Flags().IntVar(&req.LookbackYears, "lookback-years", 5, "years of history")
	_ = cmd.MarkFlagRequired("signal")
	return cmd
}

func newStrategyCmd(c *cli) *cobra.Command {
	var (
		req models.StrategyRequest
		tp  float64
	)
	cmd := &cobra.Command{
		Use:   "strategy TICKER",
		Short: "Simulate an entry/exit strategy with stop loss",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Ticker = args[0]
			if cmd.Flags().Changed("take-profit") {
				req.TakeProfitPct = &tp
			}
			return c.execute(cmd, &req, func(ctx context.Context, s *usecase.QuantService) (any, error) {
				return s.Strategy(ctx, req)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.EntrySignal, "entry", "", "entry signal")
	f.StringVar(&req.ExitSignal, "exit", "", "exit signal")
	f.Float64Var(&req.StopLossPct, "stop-loss", 5, "stop loss in percent")
	f.Float64Var(&tp, "take-profit", 0, "take profit in percent")
	f.IntVar(&req.LookbackYears, "lookback-years", 5, "years of history")
	_ = cmd.MarkFlagRequired("entry")
	return cmd
}

func newRiskCmd(c *cli) *cobra.Command {
	var req models.RiskRequest
	cmd := &cobra.Command{
		Use:   "risk TICKER",
		Short: "Risk-adjusted performance against a benchmark",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Ticker = args[0]
			return c.execute(cmd, &req, func(ctx context.Context, s *usecase.QuantService) (any, error) {
				return s.Risk(ctx, req)
			})
		},
	}
	cmd.Flags().StringVar(&req.Benchmark, "benchmark", "SPY", "benchmark ticker")
	cmd.Flags().StringVar(&req.Period, "period", "1y", "history window")
	return cmd
}

func newSnapshotCmd(c *cli) *cobra.Command {
	var req models.SnapshotRequest
	cmd := &cobra.Command{
		Use:   "snapshot TICKER",
		Short: "Run every engine concurrently",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Ticker = args[0]
			return c.execute(cmd, &req, func(ctx context.Context, s *usecase.QuantService) (any, error) {
				return s.Snapshot(ctx, req)
			})
		},
	}
	cmd.Flags().StringVar(&req.Period, "period", "2y", "history window")
	return cmd
}

func newLedgerCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Log, score and archive predictions",
	}
	cmd.AddCommand(newLedgerLogCmd(c), newLedgerScoreCmd(c), &cobra.Command{
		Use:   "archive",
		Short: "Move old predictions to the archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.execute(cmd, nil, func(ctx context.Context, s *usecase.QuantService) (any, error) {
				return s.ArchivePredictions(ctx)
			})
		},
	})
	return cmd
}

func newLedgerLogCmd(c *cli) *cobra.Command {
	var req models.LogPredictionRequest
	cmd := &cobra.Command{
		Use:   "log TICKER",
		Short: "Record a prediction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Ticker = args[0]
			return c.execute(cmd, &req, func(ctx context.Context, s *usecase.QuantService) (any, error) {
				return s.LogPrediction(ctx, req)
			})
		},
	}
	f := cmd.Flags()
	f.IntVar(&req.HorizonDays, "horizon", 30, "calendar days until the target date")
	f.StringVar(&req.PredictionDate, "date", "", "prediction date YYYY-MM-DD, today when empty")
	f.Float64Var(&req.CurrentPrice, "price", 0, "price at prediction time, last close when zero")
	f.Float64Var(&req.PredictedRange.Low, "low", 0, "predicted low")
	f.Float64Var(&req.PredictedRange.Mid, "mid", 0, "predicted mid")
	f.Float64Var(&req.PredictedRange.High, "high", 0, "predicted high")
	f.Float64Var(&req.ConfidenceInterval.CI5, "ci5", 0, "5th percentile")
	f.Float64Var(&req.ConfidenceInterval.CI25, "ci25", 0, "25th percentile")
	f.Float64Var(&req.ConfidenceInterval.CI75, "ci75", 0, "75th percentile")
	f.Float64Var(&req.ConfidenceInterval.CI95, "ci95", 0, "95th percentile")
	f.StringSliceVar(&req.KeyFactors, "factor", nil, "key factor, repeatable")
	return cmd
}

func newLedgerScoreCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "score [TICKER]",
		Short: "Score predictions whose target date has passed",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var req models.ScoreRequest
			if len(args) == 1 {
				req.Ticker = args[0]
			}
			return c.execute(cmd, &req, func(ctx context.Context, s *usecase.QuantService) (any, error) {
				return s.ScorePredictions(ctx, req)
			})
		},
	}
}

type ingestResult struct {
	Ticker string `json:"ticker"`
	Rows   int    `json:"rows"`
}

// newIngestCmd copies daily bars from Yahoo Finance into ClickHouse so the
// clickhouse provider can serve them.
func newIngestCmd(c *cli) *cobra.Command {
	var (
		period      string
		concurrency int
	)
	cmd := &cobra.Command{
		Use:   "ingest TICKER...",
		Short: "Load daily bars from Yahoo Finance into ClickHouse",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.deadline(cmd)
			defer cancel()

			l, err := di.ProvideLogger(c.cfg)
			if err != nil {
				return err
			}
			ch, err := di.ProvideClickHouseClient(c.cfg, l)
			if err != nil {
				return err
			}
			if ch == nil {
				return fmt.Errorf("clickhouse.addrs is required for ingest")
			}
			defer ch.Close()
			if err := ch.InitSchema(ctx, repository.DailyBarsSchema); err != nil {
				return fmt.Errorf("clickhouse schema: %w", err)
			}

			yahoo := repository.NewYahooProvider(util.DefaultRetryConfig())
			yahoo.SetLogger(l)
			store := repository.NewCHPriceStore(ch)
			store.SetLogger(l)

			start, end := domrepo.NormalizePeriod(period, domrepo.P5Y).Range(util.StartOfDay(time.Now()))
			results := make([]ingestResult, len(args))
			g, gctx := errgroup.WithContext(ctx)
			g.SetLimit(max(concurrency, 1))
			for i, raw := range args {
				g.Go(func() error {
					ticker := util.NormalizeTicker(raw)
					series, err := yahoo.Fetch(gctx, ticker, start, end)
					if err != nil {
						return fmt.Errorf("%s: %w", ticker, err)
					}
					n, err := store.SaveBars(gctx, series)
					if err != nil {
						return fmt.Errorf("%s: %w", ticker, err)
					}
					results[i] = ingestResult{Ticker: ticker, Rows: n}
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), results)
		},
	}
	cmd.Flags().StringVar(&period, "period", "5y", "history window")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "tickers fetched in parallel")
	return cmd
}
