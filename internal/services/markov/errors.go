package markov

import (
	"errors"
	"fmt"
)

// ErrDegenerateChain is returned when a chain never switches direction and so has no unique
// stationary distribution.
var ErrDegenerateChain = errors.New("markov: degenerate chain")

// ConfigurationError reports an invalid matrix, distribution parameter or simulator input.
// It is only ever returned at construction time.
type ConfigurationError struct {
	Field  string
	Value  float64
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("markov: invalid %s (%g): %s", e.Field, e.Value, e.Reason)
}

func configErr(field string, value float64, reason string) error {
	return &ConfigurationError{Field: field, Value: value, Reason: reason}
}

// DegenerateChainError carries the off-diagonal entries that made the fixed point undefined.
type DegenerateChainError struct {
	UpGivenDown float64
	DownGivenUp float64
}

func (e *DegenerateChainError) Error() string {
	return fmt.Sprintf("%v: Q[up][down]=%g, Q[down][up]=%g", ErrDegenerateChain, e.UpGivenDown, e.DownGivenUp)
}

func (e *DegenerateChainError) Unwrap() error { return ErrDegenerateChain }

// SamplingError is returned when rejection sampling exhausts its draw budget.
type SamplingError struct {
	Kind      Kind
	Direction Direction
	Draws     int
}

func (e *SamplingError) Error() string {
	return fmt.Sprintf("markov: %s sampler found no acceptable %s magnitude in %d draws", e.Kind, e.Direction, e.Draws)
}

// IsConfigurationError reports whether err (or anything it wraps) is a *ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// IsSamplingError reports whether err (or anything it wraps) is a *SamplingError.
func IsSamplingError(err error) bool {
	var se *SamplingError
	return errors.As(err, &se)
}
