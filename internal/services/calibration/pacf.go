package calibration

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// PACF returns the partial autocorrelations of x for lags 0..lags via the Yule-Walker equations
// on the adjusted (n-k denominator) autocovariance. Lag 0 is always 1.
func PACF(x []float64, lags int) ([]float64, error) {
	if lags < 0 {
		return nil, fmt.Errorf("calibration: negative lag count %d", lags)
	}
	if len(x) <= lags+1 {
		return nil, fmt.Errorf("%w: %d observations for %d lags", ErrInsufficientData, len(x), lags)
	}
	acf := autocorrelation(x, lags)
	if acf == nil {
		return nil, fmt.Errorf("%w: constant series", ErrInsufficientData)
	}

	out := make([]float64, lags+1)
	out[0] = 1
	for k := 1; k <= lags; k++ {
		r := mat.NewSymDense(k, nil)
		for i := 0; i < k; i++ {
			for j := i; j < k; j++ {
				r.SetSym(i, j, acf[j-i])
			}
		}
		rhs := mat.NewVecDense(k, append([]float64(nil), acf[1:k+1]...))
		var phi mat.VecDense
		if err := phi.SolveVec(r, rhs); err != nil {
			return nil, fmt.Errorf("calibration: yule-walker lag %d: %w", k, err)
		}
		out[k] = phi.AtVec(k - 1)
	}
	return out, nil
}

// autocorrelation returns r(0..lags) from the adjusted autocovariance, or nil for a constant
// series.
func autocorrelation(x []float64, lags int) []float64 {
	n := len(x)
	mean := stat.Mean(x, nil)

	acov := make([]float64, lags+1)
	for k := 0; k <= lags; k++ {
		var s float64
		for t := 0; t+k < n; t++ {
			s += (x[t] - mean) * (x[t+k] - mean)
		}
		acov[k] = s / float64(n-k)
	}
	if acov[0] == 0 {
		return nil
	}
	out := make([]float64, lags+1)
	for k := range acov {
		out[k] = acov[k] / acov[0]
	}
	return out
}
