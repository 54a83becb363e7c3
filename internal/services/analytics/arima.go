package analytics

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"

	"github.com/arg-foo/zaza-sub000/internal/domain/models"
)

const (
	infeasible     = 1e10
	minSigma2      = 1e-12
	arimaMaxEvals  = 4000
	arimaMaxIters  = 2000
	arimaMaxOrderP = 2
	arimaMaxOrderD = 1
	arimaMaxOrderQ = 2
)

// arimaOrder is (p, d, q). A constant is fitted only for undifferenced data.
type arimaOrder struct{ p, d, q int }

func (o arimaOrder) String() string { return fmt.Sprintf("(%d,%d,%d)", o.p, o.d, o.q) }

func (o arimaOrder) constant() bool { return o.d == 0 }

// fallbackOrder is used when no grid candidate converges.
var fallbackOrder = arimaOrder{1, 1, 1}

// arimaModel is a fitted ARIMA(p,d,q) on log returns, estimated by conditional sum of squares.
type arimaModel struct {
	order  arimaOrder
	c      float64
	phi    []float64
	theta  []float64
	sigma2 float64
	aic    float64
	// state needed to forecast
	w     []float64
	resid []float64
	y     []float64
}

func difference(y []float64, d int) []float64 {
	w := y
	for i := 0; i < d; i++ {
		next := make([]float64, len(w)-1)
		for j := 1; j < len(w); j++ {
			next[j-1] = w[j] - w[j-1]
		}
		w = next
	}
	return w
}

// cssResiduals returns the one-step residuals e[t] for t >= p; earlier residuals are zero.
func cssResiduals(w []float64, c float64, phi, theta []float64) []float64 {
	p := len(phi)
	e := make([]float64, len(w))
	for t := p; t < len(w); t++ {
		pred := c
		for i := 1; i <= p; i++ {
			pred += phi[i-1] * w[t-i]
		}
		for j := 1; j <= len(theta); j++ {
			if t-j >= 0 {
				pred += theta[j-1] * e[t-j]
			}
		}
		e[t] = w[t] - pred
	}
	return e
}

// stationary reports whether 1 - a1 B - a2 B² has all roots outside the unit circle.
func stationary(a []float64) bool {
	switch len(a) {
	case 0:
		return true
	case 1:
		return math.Abs(a[0]) < 1
	default:
		return a[0]+a[1] < 1 && a[1]-a[0] < 1 && math.Abs(a[1]) < 1
	}
}

func invertible(theta []float64) bool {
	neg := make([]float64, len(theta))
	for i, t := range theta {
		neg[i] = -t
	}
	return stationary(neg)
}

func (o arimaOrder) unpack(x []float64) (c float64, phi, theta []float64) {
	k := 0
	if o.constant() {
		c = x[0]
		k = 1
	}
	phi = x[k : k+o.p]
	theta = x[k+o.p : k+o.p+o.q]
	return c, phi, theta
}

// fitARIMA estimates the order on log returns y.
func fitARIMA(ctx context.Context, y []float64, o arimaOrder) (*arimaModel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w := difference(y, o.d)
	nEff := len(w) - o.p
	if nEff < 10 {
		return nil, &models.ConvergenceFailure{Model: "arima", Order: o.String(), Cause: errors.New("too few observations after differencing")}
	}
	css := func(x []float64) float64 {
		c, phi, theta := o.unpack(x)
		if !stationary(phi) || !invertible(theta) {
			return infeasible
		}
		e := cssResiduals(w, c, phi, theta)
		ss := 0.0
		for _, v := range e[o.p:] {
			ss += v * v
		}
		if !finite(ss) {
			return infeasible
		}
		return ss / float64(nEff)
	}

	dim := o.p + o.q
	if o.constant() {
		dim++
	}
	x := make([]float64, dim)
	if o.constant() {
		x[0] = stat.Mean(w, nil)
	}
	if dim > 0 && o.p+o.q > 0 {
		res, err := optimize.Minimize(optimize.Problem{Func: css, Status: stopOnDone(ctx)}, x, &optimize.Settings{
			MajorIterations: arimaMaxIters,
			FuncEvaluations: arimaMaxEvals,
		}, &optimize.NelderMead{})
		if err != nil {
			return nil, &models.ConvergenceFailure{Model: "arima", Order: o.String(), Cause: err}
		}
		if !finite(res.F) || res.F >= infeasible {
			return nil, &models.ConvergenceFailure{Model: "arima", Order: o.String(), Cause: fmt.Errorf("status %v", res.Status)}
		}
		x = res.X
	}

	c, phi, theta := o.unpack(x)
	e := cssResiduals(w, c, phi, theta)
	sigma2 := math.Max(css(x), minSigma2)
	if sigma2 >= infeasible {
		return nil, &models.ConvergenceFailure{Model: "arima", Order: o.String(), Cause: errors.New("infeasible parameters")}
	}
	ll := -float64(nEff) / 2 * (math.Log(2*math.Pi*sigma2) + 1)
	k := float64(dim + 1)
	return &arimaModel{
		order:  o,
		c:      c,
		phi:    append([]float64(nil), phi...),
		theta:  append([]float64(nil), theta...),
		sigma2: sigma2,
		aic:    2*k - 2*ll,
		w:      w,
		resid:  e,
		y:      y,
	}, nil
}

// forecastReturns extends the log-return series h steps ahead.
func (m *arimaModel) forecastReturns(h int) []float64 {
	w := append([]float64(nil), m.w...)
	e := append([]float64(nil), m.resid...)
	for s := 0; s < h; s++ {
		t := len(w)
		pred := m.c
		for i := 1; i <= len(m.phi); i++ {
			pred += m.phi[i-1] * w[t-i]
		}
		for j := 1; j <= len(m.theta); j++ {
			pred += m.theta[j-1] * e[t-j]
		}
		w = append(w, pred)
		e = append(e, 0)
	}
	fw := w[len(m.w):]
	if m.order.d == 0 {
		return fw
	}
	out := make([]float64, h)
	last := m.y[len(m.y)-1]
	for i, v := range fw {
		last += v
		out[i] = last
	}
	return out
}

// logPriceVariance returns the cumulative forecast-error variance of log price
// for horizons 1..h, from the psi weights of phi(B)(1-B)^(d+1).
func (m *arimaModel) logPriceVariance(h int) []float64 {
	ar := append([]float64(nil), m.phi...)
	for i := 0; i < m.order.d+1; i++ {
		ar = integrate(ar)
	}
	psi := make([]float64, h)
	psi[0] = 1
	for j := 1; j < h; j++ {
		v := 0.0
		if j <= len(m.theta) {
			v = m.theta[j-1]
		}
		for i := 1; i <= len(ar) && i <= j; i++ {
			v += ar[i-1] * psi[j-i]
		}
		psi[j] = v
	}
	out := make([]float64, h)
	acc := 0.0
	for j := 0; j < h; j++ {
		acc += psi[j] * psi[j]
		out[j] = m.sigma2 * acc
	}
	return out
}

// integrate multiplies 1 - sum a_i B^i by (1 - B) and returns the new a coefficients.
func integrate(a []float64) []float64 {
	out := make([]float64, len(a)+1)
	out[0] = 1
	for i := range a {
		out[i] += a[i]
		out[i+1] -= a[i]
	}
	return out
}

func (m *arimaModel) params() map[string]float64 {
	p := map[string]float64{"sigma2": m.sigma2}
	if m.order.constant() {
		p["const"] = m.c
	}
	for i, v := range m.phi {
		p[fmt.Sprintf("ar%d", i+1)] = v
	}
	for i, v := range m.theta {
		p[fmt.Sprintf("ma%d", i+1)] = v
	}
	return p
}
