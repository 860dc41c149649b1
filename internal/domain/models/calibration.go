package models

import (
	"fmt"
	"time"

	"NoisyMarket/internal/services/markov"
)

// Calibration holds every parameter fitted from one symbol's history.
type Calibration struct {
	Symbol       string                 `json:"symbol"`
	Start        time.Time              `json:"start"`
	End          time.Time              `json:"end"`
	Observations int                    `json:"observations"`
	Q            [2][2]float64          `json:"q"`
	Levy         markov.LevyParams      `json:"levy_stable"`
	Gaussian     *markov.GaussianParams `json:"gaussian,omitempty"`
	Uniform      *markov.UniformParams  `json:"uniform,omitempty"`
	PACF         []float64              `json:"pacf,omitempty"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// Matrix validates and returns the fitted transition matrix.
func (c *Calibration) Matrix() (markov.TransitionMatrix, error) {
	return markov.NewTransitionMatrix(c.Q)
}

// Movement builds the magnitude distribution of the requested kind from the fitted payloads.
func (c *Calibration) Movement(kind markov.Kind) (markov.Movement, error) {
	switch kind {
	case markov.KindLevyStable, "":
		return markov.NewLevyStable(c.Levy)
	case markov.KindGaussian:
		if c.Gaussian == nil {
			return markov.Movement{}, fmt.Errorf("calibration %s has no gaussian fit", c.Symbol)
		}
		return markov.NewGaussian(*c.Gaussian)
	case markov.KindUniform:
		if c.Uniform == nil {
			return markov.Movement{}, fmt.Errorf("calibration %s has no uniform fit", c.Symbol)
		}
		return markov.NewUniform(*c.Uniform)
	default:
		return markov.Movement{}, fmt.Errorf("unknown movement kind %q", kind)
	}
}

// LevyRow is one line of the Levy-Stable summary CSV.
type LevyRow struct {
	Symbol string  `csv:"Symbol"`
	Alpha  float64 `csv:"Alpha"`
	Beta   float64 `csv:"Beta"`
	Mu     float64 `csv:"Mu"`
	Sigma  float64 `csv:"Sigma"`
}

// QRow is one line of the Q-Matrix summary CSV, entries labelled [next,current].
type QRow struct {
	Symbol   string  `csv:"Symbol"`
	UpUp     float64 `csv:"Q[0,0]"`
	DownUp   float64 `csv:"Q[1,0]"`
	UpDown   float64 `csv:"Q[0,1]"`
	DownDown float64 `csv:"Q[1,1]"`
}

func (c *Calibration) LevyRow() LevyRow {
	return LevyRow{Symbol: c.Symbol, Alpha: c.Levy.Alpha, Beta: c.Levy.Beta, Mu: c.Levy.Delta, Sigma: c.Levy.Gamma}
}

func (c *Calibration) QRow() QRow {
	return QRow{
		Symbol:   c.Symbol,
		UpUp:     c.Q[markov.Up][markov.Up],
		DownUp:   c.Q[markov.Down][markov.Up],
		UpDown:   c.Q[markov.Up][markov.Down],
		DownDown: c.Q[markov.Down][markov.Down],
	}
}
