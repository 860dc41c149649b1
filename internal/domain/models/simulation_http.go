package models

import (
	"NoisyMarket/internal/services/markov"
)

// Requests for the simulation HTTP endpoints.

// MovementRequest selects a distribution either explicitly or from a stored calibration.
type MovementRequest struct {
	Kind       string                 `json:"kind" default:"levy_stable" validate:"oneof=gaussian uniform levy_stable levy stable"`
	Gaussian   *markov.GaussianParams `json:"gaussian,omitempty"`
	Uniform    *markov.UniformParams  `json:"uniform,omitempty"`
	LevyStable *markov.LevyParams     `json:"levy_stable,omitempty"`
}

type SimulationRequest struct {
	Symbol    string           `json:"symbol" validate:"required"`
	Price     float64          `json:"price" validate:"gt=0"`
	Steps     int              `json:"steps" default:"2500" validate:"gte=0,lte=1000000"`
	Seed      uint64           `json:"seed"`
	Direction string           `json:"direction" default:"up" validate:"oneof=up down"`
	Q         *[2][2]float64   `json:"q,omitempty"`
	Movement  *MovementRequest `json:"movement,omitempty"`
	MaxDraws  int              `json:"max_draws" validate:"gte=0"`
	KeepPath  bool             `json:"keep_path"`
	Persist   bool             `json:"persist"`
}

type BatchRequest struct {
	SimulationRequest
	Trials int `json:"trials" default:"100" validate:"gte=1,lte=100000"`
}

type FixedPointRequest struct {
	UpUp     float64 `query:"up_up" validate:"gte=0,lte=1"`
	UpDown   float64 `query:"up_down" validate:"gte=0,lte=1"`
	DownUp   float64 `query:"down_up" validate:"gte=0,lte=1"`
	DownDown float64 `query:"down_down" validate:"gte=0,lte=1"`
}

type FixedPointResponse struct {
	Up   float64 `json:"up"`
	Down float64 `json:"down"`
}

// HasParams reports whether the request carries an explicit payload for kind.
func (m *MovementRequest) HasParams(kind markov.Kind) bool {
	if m == nil {
		return false
	}
	switch kind {
	case markov.KindGaussian:
		return m.Gaussian != nil
	case markov.KindUniform:
		return m.Uniform != nil
	case markov.KindLevyStable:
		return m.LevyStable != nil
	}
	return false
}
