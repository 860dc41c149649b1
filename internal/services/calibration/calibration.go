// Package calibration fits the simulator's parameters to an observed return series.
package calibration

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/montanaflynn/stats"

	"NoisyMarket/internal/domain/models"
	"NoisyMarket/internal/services/history"
	"NoisyMarket/internal/services/markov"
)

// DefaultLags matches the seven trading days used for the partial autocorrelation table.
const DefaultLags = 7

var ErrInsufficientData = errors.New("calibration: insufficient data")

// TransitionMatrix counts transitions between consecutive non-zero return signs. Zero returns
// neither start nor end a transition.
func TransitionMatrix(pct []float64) (markov.TransitionMatrix, error) {
	var counts [2][2]float64
	var starts [2]float64
	for i := 0; i+1 < len(pct); i++ {
		cur, ok := signDirection(pct[i])
		if !ok {
			continue
		}
		next, ok := signDirection(pct[i+1])
		if !ok {
			continue
		}
		counts[next][cur]++
		starts[cur]++
	}
	if starts[markov.Up] == 0 || starts[markov.Down] == 0 {
		return markov.TransitionMatrix{}, fmt.Errorf("%w: need transitions out of both directions", ErrInsufficientData)
	}
	for cur := markov.Up; cur <= markov.Down; cur++ {
		for next := markov.Up; next <= markov.Down; next++ {
			counts[next][cur] /= starts[cur]
		}
	}
	return markov.NewTransitionMatrix(counts)
}

func signDirection(x float64) (markov.Direction, bool) {
	switch {
	case x > 0:
		return markov.Up, true
	case x < 0:
		return markov.Down, true
	default:
		return markov.Up, false
	}
}

func split(pct []float64) (up, down []float64) {
	for _, x := range pct {
		switch {
		case x > 0:
			up = append(up, x)
		case x < 0:
			down = append(down, x)
		}
	}
	return up, down
}

// Gaussian fits one Normal law to the positive returns and one to the negative returns.
func Gaussian(pct []float64) (markov.GaussianParams, error) {
	up, down := split(pct)
	if len(up) < 2 || len(down) < 2 {
		return markov.GaussianParams{}, fmt.Errorf("%w: gaussian fit needs two returns of each sign", ErrInsufficientData)
	}
	muUp, _ := stats.Mean(up)
	sdUp, _ := stats.StandardDeviationSample(up)
	muDown, _ := stats.Mean(down)
	sdDown, _ := stats.StandardDeviationSample(down)
	p := markov.GaussianParams{MuUp: muUp, SigmaUp: sdUp, MuDown: muDown, SigmaDown: sdDown}
	if _, err := markov.NewGaussian(p); err != nil {
		return markov.GaussianParams{}, fmt.Errorf("%w: %v", ErrInsufficientData, err)
	}
	return p, nil
}

// Uniform takes the observed range of each sign.
func Uniform(pct []float64) (markov.UniformParams, error) {
	up, down := split(pct)
	if len(up) == 0 || len(down) == 0 {
		return markov.UniformParams{}, fmt.Errorf("%w: uniform fit needs returns of each sign", ErrInsufficientData)
	}
	aUp, _ := stats.Min(up)
	bUp, _ := stats.Max(up)
	aDown, _ := stats.Min(down)
	bDown, _ := stats.Max(down)
	p := markov.UniformParams{AUp: aUp, BUp: bUp, ADown: aDown, BDown: bDown}
	if _, err := markov.NewUniform(p); err != nil {
		return markov.UniformParams{}, fmt.Errorf("%w: %v", ErrInsufficientData, err)
	}
	return p, nil
}

// Calibrate fits every model to one symbol's derived rows. The Gaussian and Uniform fits are
// optional; the transition matrix and the stable fit are not.
func Calibrate(symbol string, rows []history.Row, lags int) (*models.Calibration, error) {
	if len(rows) < 2 {
		return nil, fmt.Errorf("%s: %w", symbol, ErrInsufficientData)
	}
	pct := history.PctChanges(rows)
	for i, x := range pct {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, fmt.Errorf("%s: bad %%Change on row %d", symbol, i)
		}
	}

	q, err := TransitionMatrix(pct)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", symbol, err)
	}
	levy, err := LevyStable(pct)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", symbol, err)
	}
	pacf, err := PACF(history.StateSums(rows), lags)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", symbol, err)
	}

	c := &models.Calibration{
		Symbol:       symbol,
		Start:        rows[0].Date.Time,
		End:          rows[len(rows)-1].Date.Time,
		Observations: len(rows),
		Q:            q.Array(),
		Levy:         levy,
		PACF:         pacf,
		UpdatedAt:    time.Now().UTC(),
	}
	if g, err := Gaussian(pct); err == nil {
		c.Gaussian = &g
	}
	if u, err := Uniform(pct); err == nil {
		c.Uniform = &u
	}
	return c, nil
}
