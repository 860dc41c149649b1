package history

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"NoisyMarket/internal/services/markov"
)

// TradingDaysPerYear annualises daily statistics.
const TradingDaysPerYear = 252

// Closes extracts the Close column.
func Closes(rows []Row) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = r.Close
	}
	return out
}

// PathPrices returns the initial price followed by the price after every step.
func PathPrices(initial float64, path []markov.Step) []float64 {
	out := make([]float64, 0, len(path)+1)
	out = append(out, initial)
	for _, st := range path {
		out = append(out, st.Price)
	}
	return out
}

// LogReturns computes r_t = ln(p_t / p_{t-1}). Pairs with a non-positive price give 0, so an
// absorbed path contributes flat returns after the absorbing step.
func LogReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	out := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		prev, cur := prices[i-1], prices[i]
		if prev <= 0 || cur <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, math.Log(cur/prev))
	}
	return out
}

// RealizedVolatility is the annualised sample standard deviation of the last window returns.
// A window <= 0 uses every return. Fewer than two returns give 0.
func RealizedVolatility(returns []float64, window int, periodsPerYear float64) float64 {
	if window <= 0 || window > len(returns) {
		window = len(returns)
	}
	if window < 2 {
		return 0
	}
	sd := stat.StdDev(returns[len(returns)-window:], nil)
	return sd * math.Sqrt(periodsPerYear)
}
