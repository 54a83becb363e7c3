package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/arg-foo/zaza-sub000/internal/domain/models"
	domrepo "github.com/arg-foo/zaza-sub000/internal/domain/repository"
	pkgch "github.com/arg-foo/zaza-sub000/pkg/clickhouse"
	applogger "github.com/arg-foo/zaza-sub000/pkg/logger"
	"github.com/arg-foo/zaza-sub000/pkg/util"
)

// DailyBarsSchema creates the daily bar table. ReplacingMergeTree keeps the latest
// ingested version of a (ticker, day) row.
var DailyBarsSchema = []string{
	`CREATE DATABASE IF NOT EXISTS quant`,
	`CREATE TABLE IF NOT EXISTS quant.daily_bars (
		ticker LowCardinality(String),
		day Date,
		open Float64,
		high Float64,
		low Float64,
		close Float64,
		volume Float64,
		ingested_at DateTime DEFAULT now()
	) ENGINE = ReplacingMergeTree(ingested_at)
	ORDER BY (ticker, day)`,
}

// CHPriceStore serves daily bars from ClickHouse.
type CHPriceStore struct {
	db *sql.DB
	l  *applogger.Logger
}

func NewCHPriceStore(ch *pkgch.Client) *CHPriceStore {
	return &CHPriceStore{db: ch.DB()}
}

// SetLogger injects a structured logger.
func (s *CHPriceStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHPriceStore) Fetch(ctx context.Context, ticker string, start, end time.Time) (models.PriceSeries, error) {
	begin := time.Now()
	ticker = util.NormalizeTicker(ticker)
	from, to := util.AlignDays(start, end)
	const q = `
		SELECT day, open, high, low, close, volume
		FROM quant.daily_bars FINAL
		WHERE ticker = ? AND day >= ? AND day <= ?
		ORDER BY day ASC
	`
	rows, err := s.db.QueryContext(ctx, q, ticker, from, to)
	if err != nil {
		s.l.Error("clickhouse daily_bars query error",
			applogger.String("ticker", ticker),
			applogger.Error(err),
		)
		return models.PriceSeries{}, fmt.Errorf("get daily bars: %w", err)
	}
	defer rows.Close()

	out := make([]models.Bar, 0, 512)
	for rows.Next() {
		var b models.Bar
		if err := rows.Scan(&b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			s.l.Error("clickhouse daily_bars scan error",
				applogger.String("ticker", ticker),
				applogger.Error(err),
			)
			return models.PriceSeries{}, fmt.Errorf("scan bar: %w", err)
		}
		b.Date = util.StartOfDay(b.Date)
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return models.PriceSeries{}, fmt.Errorf("rows: %w", err)
	}
	s.l.Debug("clickhouse daily_bars ok",
		applogger.String("ticker", ticker),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(begin)),
	)
	return models.PriceSeries{Ticker: ticker, Bars: out}, nil
}

// LastPrice returns the most recent stored close.
func (s *CHPriceStore) LastPrice(ctx context.Context, ticker string) (float64, error) {
	const q = `SELECT argMax(close, day) FROM quant.daily_bars FINAL WHERE ticker = ?`
	var price float64
	if err := s.db.QueryRowContext(ctx, q, util.NormalizeTicker(ticker)).Scan(&price); err != nil {
		return 0, fmt.Errorf("last price: %w", err)
	}
	if price <= 0 {
		return 0, fmt.Errorf("last price %s: no data", ticker)
	}
	return price, nil
}

// SaveBars inserts a series in one batch.
func (s *CHPriceStore) SaveBars(ctx context.Context, series models.PriceSeries) (int, error) {
	if len(series.Bars) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin batch: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO quant.daily_bars (ticker, day, open, high, low, close, volume)`)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("prepare batch: %w", err)
	}
	defer stmt.Close()
	ticker := util.NormalizeTicker(series.Ticker)
	for _, b := range series.Bars {
		if _, err := stmt.ExecContext(ctx, ticker, util.StartOfDay(b.Date), b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("append bar: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("send batch: %w", err)
	}
	s.l.Info("clickhouse daily_bars stored",
		applogger.String("ticker", ticker),
		applogger.Int("rows", len(series.Bars)),
	)
	return len(series.Bars), nil
}

var (
	_ domrepo.PriceProvider = (*CHPriceStore)(nil)
	_ domrepo.QuoteProvider = (*CHPriceStore)(nil)
)
