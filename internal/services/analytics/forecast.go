package analytics

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/arg-foo/zaza-sub000/internal/domain/models"
	domsvc "github.com/arg-foo/zaza-sub000/internal/domain/service"
	"github.com/arg-foo/zaza-sub000/internal/services/features"
	"github.com/arg-foo/zaza-sub000/pkg/logger"
)

const (
	MinForecastObservations = 60
	DefaultForecastHorizon  = 30
	MaxForecastHorizon      = 365

	z80 = 1.2815515655446004
	z95 = 1.959963984540054
)

type Forecaster struct{ engineBase }

func NewForecaster(opts ...Option) *Forecaster {
	return &Forecaster{engineBase: newBase(opts)}
}

// Forecast fits the selected model to log returns and projects daily prices with 80% and
// 95% intervals. In auto/arima mode the order minimizing AIC over p<=2, d<=1, q<=2 is
// chosen; if nothing converges, ARIMA(1,1,1) and then the decomposition model are used,
// and the fit is flagged. A cancelled context also takes the decomposition path.
func (f *Forecaster) Forecast(ctx context.Context, series models.PriceSeries, horizon int, method string) (res models.ForecastResult, err error) {
	start := time.Now()
	defer func() { f.observe("forecast", start, err) }()

	n := series.Len()
	if n < MinForecastObservations {
		return res, insufficient(series.Ticker, "price forecast", MinForecastObservations, n)
	}
	if horizon <= 0 {
		horizon = DefaultForecastHorizon
	}
	horizon = min(horizon, MaxForecastHorizon)
	closes := series.Closes()
	for _, c := range closes {
		if c <= 0 {
			return res, fmt.Errorf("price forecast %s: non-positive price", series.Ticker)
		}
	}
	last := closes[n-1]
	logLast := math.Log(last)

	var (
		logPath  []float64
		variance []float64
		fit      models.ModelFit
	)
	useDecomposition := strings.EqualFold(method, models.ForecastDecomposition)
	if !useDecomposition {
		m, cands, note, ferr := f.searchARIMA(ctx, features.LogReturns(closes))
		if ferr == nil {
			rets := m.forecastReturns(horizon)
			logPath = make([]float64, horizon)
			acc := logLast
			for i, r := range rets {
				acc += r
				logPath[i] = acc
			}
			variance = m.logPriceVariance(horizon)
			fit = models.ModelFit{
				Model:        "arima",
				Order:        []int{m.order.p, m.order.d, m.order.q},
				Params:       m.params(),
				AIC:          m.aic,
				ResidualStd:  math.Sqrt(m.sigma2),
				UsedFallback: note != "",
				FallbackNote: note,
				Candidates:   cands,
			}
		} else {
			f.fellBack("arima", series.Ticker, ferr)
			useDecomposition = true
			fit = models.ModelFit{UsedFallback: true, FallbackNote: "arima unavailable, used trend+seasonal decomposition: " + ferr.Error(), Candidates: cands}
		}
	}
	if useDecomposition {
		logs := make([]float64, n)
		for i, c := range closes {
			logs[i] = math.Log(c)
		}
		d := fitDecomposition(logs)
		logPath = d.logPath(logLast, horizon)
		variance = d.variance(horizon)
		fit.Model = models.ForecastDecomposition
		fit.Params = d.params()
		fit.AIC = d.aic
		fit.ResidualStd = d.sigma
	}

	res = models.ForecastResult{
		Ticker:       series.Ticker,
		HorizonDays:  horizon,
		CurrentPrice: last,
		Points:       buildPoints(series.Last().Date, logPath, variance),
		Fit:          fit,
	}
	f.log.Debug("forecast complete",
		logger.String("ticker", series.Ticker),
		logger.String("model", fit.Model),
		logger.Bool("fallback", fit.UsedFallback),
		logger.Float("final", res.Final().Point),
	)
	return res, nil
}

// searchARIMA runs the order grid. The note is non-empty when the fixed fallback order was used.
func (f *Forecaster) searchARIMA(ctx context.Context, y []float64) (*arimaModel, []models.CandidateFit, string, error) {
	var (
		best  *arimaModel
		cands []models.CandidateFit
		errs  []error
	)
	for p := 0; p <= arimaMaxOrderP; p++ {
		for d := 0; d <= arimaMaxOrderD; d++ {
			for q := 0; q <= arimaMaxOrderQ; q++ {
				if ctx.Err() != nil {
					return nil, cands, "", fmt.Errorf("order search interrupted: %w", ctx.Err())
				}
				m, err := fitARIMA(ctx, y, arimaOrder{p, d, q})
				if err != nil {
					errs = append(errs, err)
					continue
				}
				cands = append(cands, models.CandidateFit{Order: []int{p, d, q}, AIC: m.aic})
				if best == nil || m.aic < best.aic {
					best = m
				}
			}
		}
	}
	if best != nil {
		return best, cands, "", nil
	}
	m, err := fitARIMA(ctx, y, fallbackOrder)
	if err != nil {
		return nil, cands, "", fmt.Errorf("no order converged: %w", errors.Join(append(errs, err)...))
	}
	return m, cands, "no grid order converged, used fixed order " + fallbackOrder.String(), nil
}

// buildPoints converts log-price means and variances into lognormal price bounds.
// Bounds never narrow as the horizon grows.
func buildPoints(from time.Time, logPath, variance []float64) []models.ForecastPoint {
	dates := businessDaysAfter(from, len(logPath))
	out := make([]models.ForecastPoint, len(logPath))
	prevSD := 0.0
	for i, mu := range logPath {
		sd := math.Sqrt(math.Max(variance[i], 0))
		sd = math.Max(sd, prevSD)
		prevSD = sd
		out[i] = models.ForecastPoint{
			Day:     i + 1,
			Date:    dates[i],
			Point:   math.Exp(mu),
			Lower80: math.Exp(mu - z80*sd),
			Upper80: math.Exp(mu + z80*sd),
			Lower95: math.Exp(mu - z95*sd),
			Upper95: math.Exp(mu + z95*sd),
		}
		if i > 0 {
			widen(&out[i], out[i-1])
		}
	}
	return out
}

// widen rescales p's bands around its point so neither band is narrower than in prev.
func widen(p *models.ForecastPoint, prev models.ForecastPoint) {
	if w, pw := p.Upper80-p.Lower80, prev.Upper80-prev.Lower80; w < pw && w > 0 {
		k := pw / w
		p.Lower80 = p.Point - (p.Point-p.Lower80)*k
		p.Upper80 = p.Point + (p.Upper80-p.Point)*k
	}
	if w, pw := p.Upper95-p.Lower95, prev.Upper95-prev.Lower95; w < pw && w > 0 {
		k := pw / w
		p.Lower95 = p.Point - (p.Point-p.Lower95)*k
		p.Upper95 = p.Point + (p.Upper95-p.Point)*k
	}
}

func businessDaysAfter(from time.Time, n int) []time.Time {
	out := make([]time.Time, 0, n)
	d := from
	for len(out) < n {
		d = d.AddDate(0, 0, 1)
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		out = append(out, d)
	}
	return out
}

var _ domsvc.Forecaster = (*Forecaster)(nil)
