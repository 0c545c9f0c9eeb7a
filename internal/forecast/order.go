package forecast

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/Veraticus/spence/internal/model"
)

var (
	errTooFewLags    = errors.New("series too short for requested lags")
	errZeroVariance  = errors.New("differenced series has zero variance")
	errNonFiniteCoef = errors.New("non-finite autocorrelation")
)

// SelectOrder proposes an ARIMA order from the autocorrelation structure of
// the once-differenced series. Any numerical problem yields the safe order
// (1, 1, 1) together with the reason, which callers treat as advisory.
func SelectOrder(totals []float64, cfg Config) (model.ModelOrder, error) {
	safe := model.ModelOrder{P: 1, D: 1, Q: 1}

	adjusted := make([]float64, len(totals))
	for i, v := range totals {
		if v == 0 {
			v = cfg.ZeroEpsilon
		}
		adjusted[i] = v
	}
	diffed := difference(adjusted, 1)
	n := len(diffed)

	maxLags := min(int(cfg.LagFraction*float64(n)), cfg.MaxLags)
	if maxLags < 1 || float64(maxLags) >= float64(n)/2 {
		return safe, fmt.Errorf("%w: %d lags for %d points", errTooFewLags, maxLags, n)
	}

	acf, err := autocorrelation(diffed, maxLags)
	if err != nil {
		return safe, err
	}
	pacf, err := partialAutocorrelation(acf)
	if err != nil {
		return safe, err
	}

	p := significantLags(pacf[1:], cfg.CoefficientThreshold)
	q := significantLags(acf[1:], cfg.CoefficientThreshold)

	return model.ModelOrder{
		P: min(clampInt(p, 1, 2), maxLags),
		D: 1,
		Q: min(clampInt(q, 1, 2), maxLags),
	}, nil
}

// autocorrelation returns the sample ACF for lags 0..maxLags.
func autocorrelation(x []float64, maxLags int) ([]float64, error) {
	mean := stat.Mean(x, nil)
	centered := make([]float64, len(x))
	copy(centered, x)
	floats.AddConst(-mean, centered)

	denom := floats.Dot(centered, centered)
	if denom == 0 {
		return nil, errZeroVariance
	}

	acf := make([]float64, maxLags+1)
	for k := 0; k <= maxLags; k++ {
		acf[k] = floats.Dot(centered[:len(centered)-k], centered[k:]) / denom
		if math.IsNaN(acf[k]) || math.IsInf(acf[k], 0) {
			return nil, errNonFiniteCoef
		}
	}
	return acf, nil
}

// partialAutocorrelation derives the PACF from an ACF by Durbin-Levinson recursion.
func partialAutocorrelation(acf []float64) ([]float64, error) {
	maxLags := len(acf) - 1
	pacf := make([]float64, maxLags+1)
	pacf[0] = 1
	if maxLags == 0 {
		return pacf, nil
	}

	phi := []float64{acf[1]}
	pacf[1] = acf[1]
	v := 1 - acf[1]*acf[1]

	for k := 2; k <= maxLags; k++ {
		if v <= 0 {
			return nil, errNonFiniteCoef
		}
		num := acf[k]
		for j := 1; j < k; j++ {
			num -= phi[j-1] * acf[k-j]
		}
		kappa := num / v
		next := make([]float64, k)
		for j := 1; j < k; j++ {
			next[j-1] = phi[j-1] - kappa*phi[k-j-1]
		}
		next[k-1] = kappa
		phi = next
		pacf[k] = kappa
		v *= 1 - kappa*kappa
		if math.IsNaN(kappa) || math.IsInf(kappa, 0) {
			return nil, errNonFiniteCoef
		}
	}
	return pacf, nil
}

func significantLags(coefs []float64, threshold float64) int {
	n := 0
	for _, c := range coefs {
		if math.Abs(c) > threshold {
			n++
		}
	}
	return n
}

func difference(x []float64, d int) []float64 {
	out := append([]float64(nil), x...)
	for range d {
		if len(out) < 2 {
			return []float64{}
		}
		next := make([]float64, len(out)-1)
		for i := 1; i < len(out); i++ {
			next[i-1] = out[i] - out[i-1]
		}
		out = next
	}
	return out
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(hi, v))
}
