package calibration

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"NoisyMarket/internal/services/markov"
)

// MinLevyObservations is the smallest sample LevyStable will fit.
const MinLevyObservations = 20

// LevyStable estimates S(alpha, beta, gamma, delta; 0) with a characteristic-function
// regression. The sample is standardised by its median and semi-interquartile range, then
//
//	log(-log|phi(t)|^2) = log(2 gamma^alpha) + alpha log t
//	arg phi(t)          = delta1 t + beta gamma^alpha tan(pi alpha/2) t^alpha
//
// are fitted over t = 0.1, 0.2, ..., 1.0.
func LevyStable(x []float64) (markov.LevyParams, error) {
	if len(x) < MinLevyObservations {
		return markov.LevyParams{}, fmt.Errorf("%w: %d observations for a stable fit", ErrInsufficientData, len(x))
	}
	q, err := stats.Quartile(x)
	if err != nil {
		return markov.LevyParams{}, fmt.Errorf("%w: %v", ErrInsufficientData, err)
	}
	center, _ := stats.Median(x)
	scale := (q.Q3 - q.Q1) / 2
	if !(scale > 0) {
		return markov.LevyParams{}, fmt.Errorf("%w: zero interquartile range", ErrInsufficientData)
	}

	const points = 10
	logT := make([]float64, 0, points)
	logMod := make([]float64, 0, points)
	ts := make([]float64, 0, points)
	args := make([]float64, 0, points)
	for k := 1; k <= points; k++ {
		t := 0.1 * float64(k)
		re, im := empiricalCF(x, center, scale, t)
		mod2 := re*re + im*im
		if !(mod2 > 0 && mod2 < 1) {
			continue
		}
		logT = append(logT, math.Log(t))
		logMod = append(logMod, math.Log(-math.Log(mod2)))
		ts = append(ts, t)
		args = append(args, math.Atan2(im, re))
	}
	if len(ts) < 3 {
		return markov.LevyParams{}, fmt.Errorf("%w: degenerate characteristic function", ErrInsufficientData)
	}

	icpt, alpha := stat.LinearRegression(logT, logMod, nil, false)
	alpha = clamp(alpha, 0.1, 2)
	gammaStd := math.Pow(math.Exp(icpt)/2, 1/alpha)

	a := mat.NewDense(len(ts), 2, nil)
	for i, t := range ts {
		a.Set(i, 0, t)
		a.Set(i, 1, math.Pow(t, alpha))
	}
	var coef mat.VecDense
	if err := coef.SolveVec(a, mat.NewVecDense(len(args), args)); err != nil {
		return markov.LevyParams{}, fmt.Errorf("%w: %v", ErrInsufficientData, err)
	}
	delta1Std, b := coef.AtVec(0), coef.AtVec(1)

	tn := math.Tan(math.Pi * alpha / 2)
	beta := 0.0
	if math.Abs(tn) > 1e-9 {
		beta = clamp(b/(math.Pow(gammaStd, alpha)*tn), -1, 1)
	}

	gamma := gammaStd * scale
	delta1 := delta1Std*scale + center
	p := markov.LevyParams{
		Alpha: alpha,
		Beta:  beta,
		Gamma: gamma,
		Delta: delta1 + beta*gamma*tn,
	}
	if alpha == 2 {
		p.Beta = 0
		p.Delta = delta1
	}
	return p, nil
}

// empiricalCF evaluates the sample characteristic function of (x-center)/scale at t.
func empiricalCF(x []float64, center, scale, t float64) (re, im float64) {
	for _, v := range x {
		s, c := math.Sincos(t * (v - center) / scale)
		re += c
		im += s
	}
	n := float64(len(x))
	return re / n, im / n
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
