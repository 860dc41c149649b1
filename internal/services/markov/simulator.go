package markov

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// Step is one recorded transition of a simulator.
type Step struct {
	N         int       `json:"n"`
	Direction Direction `json:"direction"`
	Magnitude float64   `json:"magnitude"`
	Price     float64   `json:"price"`
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithSeed seeds the simulator's own PCG source.
func WithSeed(seed uint64) Option {
	return func(s *Simulator) {
		s.rng = NewRand(seed)
	}
}

// WithSource injects a caller-owned source. The simulator takes ownership of it.
func WithSource(src rand.Source) Option {
	return func(s *Simulator) {
		if src != nil {
			s.rng = rand.New(src)
		}
	}
}

// WithMaxDraws overrides the Levy-stable rejection budget.
func WithMaxDraws(n int) Option {
	return func(s *Simulator) {
		s.movement = s.movement.WithMaxDraws(n)
	}
}

// WithPathRecording keeps every step so Path can return it.
func WithPathRecording() Option {
	return func(s *Simulator) {
		s.record = true
	}
}

// WithDirection sets the starting direction (Up by default).
func WithDirection(d Direction) Option {
	return func(s *Simulator) {
		s.direction = d
	}
}

// NewRand returns the generator used for a given seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}

// Simulator is a single price path driven by a two-state Markov chain. It is not safe for
// concurrent use; run one simulator per goroutine.
type Simulator struct {
	name      string
	price     float64
	direction Direction
	n         int
	q         TransitionMatrix
	movement  Movement
	rng       *rand.Rand
	record    bool
	path      []Step
}

// NewSimulator validates its inputs and returns a simulator positioned at step 0.
func NewSimulator(name string, price float64, q TransitionMatrix, m Movement, opts ...Option) (*Simulator, error) {
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return nil, configErr("price", price, "must be > 0")
	}
	if q.IsZero() {
		return nil, configErr("transition matrix", math.NaN(), "not initialised")
	}
	if m.IsZero() {
		return nil, configErr("movement", math.NaN(), "not initialised")
	}

	s := &Simulator{
		name:      name,
		price:     price,
		direction: Up,
		q:         q,
		movement:  m,
	}
	for _, opt := range opts {
		opt(s)
	}
	if !s.direction.Valid() {
		return nil, configErr("direction", float64(s.direction), "must be up or down")
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return s, nil
}

func (s *Simulator) Name() string             { return s.name }
func (s *Simulator) Price() float64           { return s.price }
func (s *Simulator) Direction() Direction     { return s.direction }
func (s *Simulator) N() int                   { return s.n }
func (s *Simulator) Matrix() TransitionMatrix { return s.q }
func (s *Simulator) Movement() Movement       { return s.movement }

// Frozen reports whether the price has reached the absorbing region.
func (s *Simulator) Frozen() bool { return s.price <= 0 }

// Path returns a copy of the recorded steps, or nil when recording is off.
func (s *Simulator) Path() []Step {
	if !s.record {
		return nil
	}
	out := make([]Step, len(s.path))
	copy(out, s.path)
	return out
}

func (s *Simulator) update() {
	s.direction = Next(s.direction, s.q, s.rng)
	s.n++
}

// Step advances one step. It returns false without touching any state when the price is frozen.
// On a sampling error the direction and counter have already moved but the price has not.
func (s *Simulator) Step() (bool, error) {
	if s.Frozen() {
		return false, nil
	}
	s.update()

	mag, dir, err := s.movement.Sample(s.direction, s.rng)
	if err != nil {
		return false, fmt.Errorf("%s step %d: %w", s.name, s.n, err)
	}
	s.direction = dir
	s.price *= 1 + mag

	if s.record {
		s.path = append(s.path, Step{N: s.n, Direction: s.direction, Magnitude: mag, Price: s.price})
	}
	return true, nil
}

// Move runs n steps and returns the resulting price. Frozen steps are no-ops.
func (s *Simulator) Move(n int) (float64, error) {
	if n < 0 {
		return s.price, configErr("steps", float64(n), "must be >= 0")
	}
	if s.record && cap(s.path)-len(s.path) < n {
		grown := make([]Step, len(s.path), len(s.path)+n)
		copy(grown, s.path)
		s.path = grown
	}
	for i := 0; i < n; i++ {
		if _, err := s.Step(); err != nil {
			return s.price, err
		}
	}
	return s.price, nil
}
