package forecast

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/Veraticus/spence/internal/model"
)

const minSigma2 = 1e-8

var (
	errSeriesTooShort = errors.New("series too short for model order")
	errNonFinite      = errors.New("series contains non-finite values")
	errNotConverged   = errors.New("optimizer did not converge")
)

// ARIMA is an ARIMA(p, d, q) model fitted by conditional sum of squares.
type ARIMA struct {
	levels        []float64
	residuals     []float64
	AR            []float64
	MA            []float64
	Order         model.ModelOrder
	Sigma2        float64
	LogLikelihood float64
	AIC           float64
}

// FitARIMA fits an ARMA(p, q) model without constant to the d-th differences
// of y. Coefficients are searched in a reparameterised space that keeps the
// AR part stationary and the MA part invertible.
func FitARIMA(y []float64, order model.ModelOrder) (*ARIMA, error) {
	if order.P < 0 || order.D < 0 || order.Q < 0 {
		return nil, fmt.Errorf("invalid order %v", order)
	}
	for _, v := range y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errNonFinite
		}
	}

	w := difference(y, order.D)
	p, q := order.P, order.Q
	if len(w) < p+q+3 {
		return nil, fmt.Errorf("%w: %d differenced points for order %v", errSeriesTooShort, len(w), order)
	}

	objective := func(x []float64) float64 {
		ar, ma := unpackCoefficients(x, p, q)
		ssr, _ := conditionalResiduals(w, ar, ma)
		if math.IsNaN(ssr) || math.IsInf(ssr, 0) {
			return math.MaxFloat64
		}
		return ssr
	}

	x := make([]float64, p+q)
	if len(x) > 0 {
		for i := range x {
			x[i] = 0.1
		}
		result, err := optimize.Minimize(optimize.Problem{Func: objective}, x, &optimize.Settings{
			MajorIterations: 2000,
			Converger: &optimize.FunctionConverge{
				Absolute:   1e-9,
				Relative:   1e-9,
				Iterations: 50,
			},
		}, &optimize.NelderMead{})
		if result == nil {
			return nil, fmt.Errorf("%w: %v", errNotConverged, err)
		}
		if err != nil && !isIterationLimit(result.Status) {
			return nil, fmt.Errorf("%w: %v", errNotConverged, err)
		}
		if result.F == math.MaxFloat64 || math.IsNaN(result.F) {
			return nil, errNotConverged
		}
		x = result.X
	}

	ar, ma := unpackCoefficients(x, p, q)
	ssr, residuals := conditionalResiduals(w, ar, ma)
	n := float64(len(w) - p)
	sigma2 := math.Max(ssr/n, minSigma2)
	logL := -n / 2 * (math.Log(2*math.Pi*sigma2) + 1)
	if math.IsNaN(logL) || math.IsInf(logL, 0) {
		return nil, errNotConverged
	}

	return &ARIMA{
		Order:         order,
		AR:            ar,
		MA:            ma,
		Sigma2:        sigma2,
		LogLikelihood: logL,
		AIC:           2*float64(p+q+1) - 2*logL,
		levels:        append([]float64(nil), y...),
		residuals:     residuals,
	}, nil
}

func isIterationLimit(s optimize.Status) bool {
	return s == optimize.IterationLimit || s == optimize.FunctionEvaluationLimit
}

// Forecast returns point forecasts and symmetric intervals at the given
// confidence level for the next steps days.
func (m *ARIMA) Forecast(steps int, level float64) ([]float64, []model.Interval) {
	phi := integratedAR(m.AR, m.Order.D)

	history := append([]float64(nil), m.levels...)
	errs := append([]float64(nil), m.residuals...)
	// Innovations on the differenced scale line up with the tail of the levels.
	offset := len(history) - len(errs)

	points := make([]float64, steps)
	for h := range steps {
		t := len(history)
		v := 0.0
		for i, c := range phi {
			if idx := t - 1 - i; idx >= 0 {
				v += c * history[idx]
			}
		}
		for j, c := range m.MA {
			if idx := t - 1 - j - offset; idx >= 0 && idx < len(errs) {
				v += c * errs[idx]
			}
		}
		points[h] = v
		history = append(history, v)
	}

	z := distuv.UnitNormal.Quantile(0.5 + level/2)
	psi := psiWeights(phi, m.MA, steps)
	intervals := make([]model.Interval, steps)
	variance := 0.0
	for h := range steps {
		variance += psi[h] * psi[h] * m.Sigma2
		half := z * math.Sqrt(variance)
		intervals[h] = model.Interval{Lower: points[h] - half, Upper: points[h] + half}
	}
	return points, intervals
}

// conditionalResiduals runs the ARMA recursion with pre-sample innovations set
// to zero and returns the sum of squared residuals from index p onward.
func conditionalResiduals(w, ar, ma []float64) (float64, []float64) {
	p := len(ar)
	e := make([]float64, len(w))
	ssr := 0.0
	for t := p; t < len(w); t++ {
		v := w[t]
		for i, c := range ar {
			v -= c * w[t-1-i]
		}
		for j, c := range ma {
			if t-1-j >= 0 {
				v -= c * e[t-1-j]
			}
		}
		e[t] = v
		ssr += v * v
	}
	return ssr, e
}

// unpackCoefficients maps unconstrained parameters to stationary AR and
// invertible MA coefficients through partial autocorrelations.
func unpackCoefficients(x []float64, p, q int) (ar, ma []float64) {
	ar = stepUp(tanhAll(x[:p]))
	ma = stepUp(tanhAll(x[p : p+q]))
	for i := range ma {
		ma[i] = -ma[i]
	}
	return ar, ma
}

func tanhAll(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = math.Tanh(v)
	}
	return out
}

// stepUp converts reflection coefficients into polynomial coefficients.
func stepUp(r []float64) []float64 {
	phi := make([]float64, 0, len(r))
	for k, kappa := range r {
		next := make([]float64, k+1)
		for j := range k {
			next[j] = phi[j] - kappa*phi[k-1-j]
		}
		next[k] = kappa
		phi = next
	}
	return phi
}

// integratedAR multiplies the AR polynomial by (1-B)^d so the model can be
// iterated directly on levels.
func integratedAR(ar []float64, d int) []float64 {
	// poly holds 1 - sum(ar_i B^i) as coefficients of B^0..B^p.
	poly := make([]float64, len(ar)+1)
	poly[0] = 1
	for i, c := range ar {
		poly[i+1] = -c
	}
	for range d {
		next := make([]float64, len(poly)+1)
		for i, c := range poly {
			next[i] += c
			next[i+1] -= c
		}
		poly = next
	}
	phi := make([]float64, len(poly)-1)
	for i := range phi {
		phi[i] = -poly[i+1]
	}
	return phi
}

// psiWeights returns the MA(infinity) weights psi_0..psi_{n-1}.
func psiWeights(phi, theta []float64, n int) []float64 {
	psi := make([]float64, n)
	if n == 0 {
		return psi
	}
	psi[0] = 1
	for j := 1; j < n; j++ {
		v := 0.0
		if j <= len(theta) {
			v = theta[j-1]
		}
		for i := 1; i <= min(j, len(phi)); i++ {
			v += phi[i-1] * psi[j-i]
		}
		psi[j] = v
	}
	return psi
}
