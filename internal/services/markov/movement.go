package markov

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// DefaultMaxDraws bounds the Levy-stable rejection loop per step.
const DefaultMaxDraws = 10000

// Kind tags the magnitude distribution of a Movement.
type Kind string

const (
	KindGaussian   Kind = "gaussian"
	KindUniform    Kind = "uniform"
	KindLevyStable Kind = "levy_stable"
)

// ParseKind validates a distribution name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindGaussian, KindUniform, KindLevyStable:
		return k, nil
	case "levy", "stable":
		return KindLevyStable, nil
	default:
		return "", fmt.Errorf("unknown movement kind %q", s)
	}
}

// GaussianParams holds one Normal law per direction.
type GaussianParams struct {
	MuUp      float64 `json:"mu_up" yaml:"mu_up"`
	SigmaUp   float64 `json:"sigma_up" yaml:"sigma_up"`
	MuDown    float64 `json:"mu_down" yaml:"mu_down"`
	SigmaDown float64 `json:"sigma_down" yaml:"sigma_down"`
}

func (p GaussianParams) validate() error {
	if !(p.SigmaUp > 0) {
		return configErr("sigma_up", p.SigmaUp, "must be > 0")
	}
	if !(p.SigmaDown > 0) {
		return configErr("sigma_down", p.SigmaDown, "must be > 0")
	}
	if math.IsNaN(p.MuUp) || math.IsNaN(p.MuDown) {
		return configErr("mu", math.NaN(), "must be a number")
	}
	return nil
}

// UniformParams holds one [a, b) interval per direction.
type UniformParams struct {
	AUp   float64 `json:"a_up" yaml:"a_up"`
	BUp   float64 `json:"b_up" yaml:"b_up"`
	ADown float64 `json:"a_down" yaml:"a_down"`
	BDown float64 `json:"b_down" yaml:"b_down"`
}

func (p UniformParams) validate() error {
	if !(p.AUp < p.BUp) {
		return configErr("a_up", p.AUp, fmt.Sprintf("must be < b_up (%g)", p.BUp))
	}
	if !(p.ADown < p.BDown) {
		return configErr("a_down", p.ADown, fmt.Sprintf("must be < b_down (%g)", p.BDown))
	}
	return nil
}

// LevyParams is a single stable law shared by both directions; the sign is enforced by
// rejection.
type LevyParams struct {
	Alpha float64 `json:"alpha" yaml:"alpha"`
	Beta  float64 `json:"beta" yaml:"beta"`
	Delta float64 `json:"delta" yaml:"delta"`
	Gamma float64 `json:"gamma" yaml:"gamma"`
}

func (p LevyParams) validate() error {
	if !(p.Alpha > 0 && p.Alpha <= 2) {
		return configErr("alpha", p.Alpha, "must be within (0,2]")
	}
	if !(p.Beta >= -1 && p.Beta <= 1) {
		return configErr("beta", p.Beta, "must be within [-1,1]")
	}
	if !(p.Gamma > 0) {
		return configErr("gamma", p.Gamma, "must be > 0")
	}
	if math.IsNaN(p.Delta) || math.IsInf(p.Delta, 0) {
		return configErr("delta", p.Delta, "must be finite")
	}
	return nil
}

// Movement is the magnitude distribution of a simulator: a tagged variant over Kind with one
// parameter payload per variant.
type Movement struct {
	kind     Kind
	gaussian GaussianParams
	uniform  UniformParams
	levy     LevyParams
	maxDraws int
}

func NewGaussian(p GaussianParams) (Movement, error) {
	if err := p.validate(); err != nil {
		return Movement{}, err
	}
	return Movement{kind: KindGaussian, gaussian: p}, nil
}

func NewUniform(p UniformParams) (Movement, error) {
	if err := p.validate(); err != nil {
		return Movement{}, err
	}
	return Movement{kind: KindUniform, uniform: p}, nil
}

func NewLevyStable(p LevyParams) (Movement, error) {
	if err := p.validate(); err != nil {
		return Movement{}, err
	}
	return Movement{kind: KindLevyStable, levy: p}, nil
}

// WithMaxDraws returns a copy of m whose rejection loop stops after n draws.
// Non-positive n restores DefaultMaxDraws.
func (m Movement) WithMaxDraws(n int) Movement {
	m.maxDraws = n
	return m
}

func (m Movement) Kind() Kind { return m.kind }

func (m Movement) Gaussian() (GaussianParams, bool) { return m.gaussian, m.kind == KindGaussian }

func (m Movement) Uniform() (UniformParams, bool) { return m.uniform, m.kind == KindUniform }

func (m Movement) LevyStable() (LevyParams, bool) { return m.levy, m.kind == KindLevyStable }

// IsZero reports whether m was never constructed.
func (m Movement) IsZero() bool { return m.kind == "" }

// Sample draws a signed fractional return for dir. The reported direction differs from dir only
// for the Gaussian variant, when an Up step draws a negative return.
func (m Movement) Sample(dir Direction, rng *rand.Rand) (float64, Direction, error) {
	switch m.kind {
	case KindGaussian:
		x := m.sampleGaussian(dir, rng)
		if dir == Up && x < 0 {
			return x, Down, nil
		}
		return x, dir, nil
	case KindUniform:
		return m.sampleUniform(dir, rng), dir, nil
	case KindLevyStable:
		x, err := m.sampleLevy(dir, rng)
		return x, dir, err
	default:
		return 0, dir, configErr("movement kind", math.NaN(), fmt.Sprintf("unsupported %q", m.kind))
	}
}

func (m Movement) sampleGaussian(dir Direction, rng *rand.Rand) float64 {
	n := distuv.Normal{Mu: m.gaussian.MuDown, Sigma: m.gaussian.SigmaDown, Src: rng}
	if dir == Up {
		n = distuv.Normal{Mu: m.gaussian.MuUp, Sigma: m.gaussian.SigmaUp, Src: rng}
	}
	return n.Rand()
}

func (m Movement) sampleUniform(dir Direction, rng *rand.Rand) float64 {
	u := distuv.Uniform{Min: m.uniform.ADown, Max: m.uniform.BDown, Src: rng}
	if dir == Up {
		u = distuv.Uniform{Min: m.uniform.AUp, Max: m.uniform.BUp, Src: rng}
	}
	return u.Rand()
}

func (m Movement) sampleLevy(dir Direction, rng *rand.Rand) (float64, error) {
	limit := m.maxDraws
	if limit <= 0 {
		limit = DefaultMaxDraws
	}
	for draw := 0; draw < limit; draw++ {
		x := StableVariate(m.levy, rng)
		if acceptLevy(dir, x) {
			return x, nil
		}
	}
	return 0, &SamplingError{Kind: KindLevyStable, Direction: dir, Draws: limit}
}

// acceptLevy is false for NaN, so a NaN draw is always redrawn.
func acceptLevy(dir Direction, x float64) bool {
	if dir == Up {
		return x >= 0
	}
	return x < 0 && x >= -1
}

type movementJSON struct {
	Kind       Kind            `json:"kind"`
	Gaussian   *GaussianParams `json:"gaussian,omitempty"`
	Uniform    *UniformParams  `json:"uniform,omitempty"`
	LevyStable *LevyParams     `json:"levy_stable,omitempty"`
}

func (m Movement) MarshalJSON() ([]byte, error) {
	out := movementJSON{Kind: m.kind}
	switch m.kind {
	case KindGaussian:
		out.Gaussian = &m.gaussian
	case KindUniform:
		out.Uniform = &m.uniform
	case KindLevyStable:
		out.LevyStable = &m.levy
	}
	return json.Marshal(out)
}

func (m *Movement) UnmarshalJSON(b []byte) error {
	var in movementJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	v, err := NewMovement(in.Kind, in.Gaussian, in.Uniform, in.LevyStable)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// NewMovement builds the variant named by kind from whichever payload matches it.
func NewMovement(kind Kind, g *GaussianParams, u *UniformParams, l *LevyParams) (Movement, error) {
	switch kind {
	case KindGaussian:
		if g == nil {
			return Movement{}, configErr("gaussian", math.NaN(), "parameters missing")
		}
		return NewGaussian(*g)
	case KindUniform:
		if u == nil {
			return Movement{}, configErr("uniform", math.NaN(), "parameters missing")
		}
		return NewUniform(*u)
	case KindLevyStable:
		if l == nil {
			return Movement{}, configErr("levy_stable", math.NaN(), "parameters missing")
		}
		return NewLevyStable(*l)
	default:
		return Movement{}, configErr("movement kind", math.NaN(), fmt.Sprintf("unsupported %q", kind))
	}
}
