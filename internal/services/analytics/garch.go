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
	returnScale = 100
	ewmaLambda  = 0.94
)

// varianceModel is a fitted conditional variance model on percent returns.
type varianceModel struct {
	name   string
	mu     float64
	omega  float64
	alpha  float64
	beta   float64
	sigma2 []float64 // in-sample conditional variances
	next   float64   // one-step-ahead variance
	aic    float64
	params map[string]float64
}

// path returns forecast variances for horizons 1..h.
func (m varianceModel) path(h int) []float64 {
	out := make([]float64, h)
	v := m.next
	for i := range out {
		if i > 0 {
			v = m.omega + (m.alpha+m.beta)*v
		}
		out[i] = v
	}
	return out
}

func garchFilter(r []float64, mu, omega, alpha, beta, init float64) (sigma2 []float64, next, nll float64) {
	sigma2 = make([]float64, len(r))
	s := init
	for t, x := range r {
		sigma2[t] = s
		e := x - mu
		nll += 0.5 * (math.Log(2*math.Pi) + math.Log(s) + e*e/s)
		s = omega + alpha*e*e + beta*s
	}
	return sigma2, s, nll
}

// fitGARCH estimates GARCH(1,1) with a constant mean by maximum likelihood.
// The search stops with a ConvergenceFailure once ctx is done.
func fitGARCH(ctx context.Context, r []float64) (varianceModel, error) {
	if err := ctx.Err(); err != nil {
		return varianceModel{}, &models.ConvergenceFailure{Model: "garch", Order: "(1,1)", Cause: err}
	}
	mean, variance := stat.MeanVariance(r, nil)
	if variance <= 0 || !finite(variance) {
		return varianceModel{}, &models.ConvergenceFailure{Model: "garch", Order: "(1,1)", Cause: errors.New("zero variance")}
	}
	obj := func(x []float64) float64 {
		mu, omega, alpha, beta := x[0], x[1], x[2], x[3]
		if omega <= 0 || alpha < 0 || beta < 0 || alpha+beta >= 1 {
			return infeasible
		}
		_, _, nll := garchFilter(r, mu, omega, alpha, beta, variance)
		if !finite(nll) {
			return infeasible
		}
		return nll
	}
	x0 := []float64{mean, 0.05 * variance, 0.05, 0.9}
	res, err := optimize.Minimize(optimize.Problem{Func: obj, Status: stopOnDone(ctx)}, x0, &optimize.Settings{
		MajorIterations: 4000,
		FuncEvaluations: 8000,
	}, &optimize.NelderMead{})
	if err != nil {
		return varianceModel{}, &models.ConvergenceFailure{Model: "garch", Order: "(1,1)", Cause: err}
	}
	if !finite(res.F) || res.F >= infeasible {
		return varianceModel{}, &models.ConvergenceFailure{Model: "garch", Order: "(1,1)", Cause: fmt.Errorf("status %v", res.Status)}
	}
	mu, omega, alpha, beta := res.X[0], res.X[1], res.X[2], res.X[3]
	sigma2, next, nll := garchFilter(r, mu, omega, alpha, beta, variance)
	return varianceModel{
		name:   "garch",
		mu:     mu,
		omega:  omega,
		alpha:  alpha,
		beta:   beta,
		sigma2: sigma2,
		next:   next,
		aic:    2*4 + 2*nll,
		params: map[string]float64{
			"mu":          mu,
			"omega":       omega,
			"alpha":       alpha,
			"beta":        beta,
			"persistence": alpha + beta,
		},
	}, nil
}

// fitEWMA is the RiskMetrics exponentially weighted variance used when GARCH fails.
// Its forecast is flat.
func fitEWMA(r []float64) varianceModel {
	mean, variance := stat.MeanVariance(r, nil)
	variance = math.Max(variance, minSigma2)
	sigma2 := make([]float64, len(r))
	s := variance
	nll := 0.0
	for t, x := range r {
		sigma2[t] = s
		e := x - mean
		nll += 0.5 * (math.Log(2*math.Pi) + math.Log(s) + e*e/s)
		s = math.Max(ewmaLambda*s+(1-ewmaLambda)*e*e, minSigma2)
	}
	return varianceModel{
		name:   "ewma",
		mu:     mean,
		alpha:  1 - ewmaLambda,
		beta:   ewmaLambda,
		sigma2: sigma2,
		next:   s,
		aic:    2*2 + 2*nll,
		params: map[string]float64{"mu": mean, "lambda": ewmaLambda},
	}
}
