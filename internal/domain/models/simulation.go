package models

import (
	"time"

	"NoisyMarket/internal/services/markov"
)

// SimulationSpec fully determines one simulated path.
type SimulationSpec struct {
	Symbol    string
	Price     float64
	Steps     int
	Seed      uint64
	Direction markov.Direction
	Q         markov.TransitionMatrix
	Movement  markov.Movement
	MaxDraws  int
	KeepPath  bool
	Persist   bool
}

// SimulationResult is the outcome of one path.
type SimulationResult struct {
	RunID      string        `json:"run_id"`
	Symbol     string        `json:"symbol"`
	Seed       uint64        `json:"seed"`
	Kind       markov.Kind   `json:"kind"`
	Initial    float64       `json:"initial_price"`
	Final      float64       `json:"final_price"`
	Steps      int           `json:"steps"`
	Absorbed   bool          `json:"absorbed"`
	Volatility float64       `json:"realized_volatility,omitempty"`
	Path       []markov.Step `json:"path,omitempty"`
	Elapsed    time.Duration `json:"elapsed_ns"`
	FinishedAt time.Time     `json:"finished_at"`
}

// BatchSummary aggregates the final prices of a Monte Carlo batch.
type BatchSummary struct {
	Symbol   string      `json:"symbol"`
	Kind     markov.Kind `json:"kind"`
	Trials   int         `json:"trials"`
	Steps    int         `json:"steps"`
	Seed     uint64      `json:"seed"`
	Mean     float64     `json:"mean"`
	Median   float64     `json:"median"`
	StdDev   float64     `json:"std_dev"`
	P5       float64     `json:"p5"`
	P95      float64     `json:"p95"`
	Min      float64     `json:"min"`
	Max      float64     `json:"max"`
	Absorbed int         `json:"absorbed"`
	Finals   []float64   `json:"finals,omitempty"`
}

// PathRecord is one persisted step of a simulated path.
type PathRecord struct {
	RunID     string    `json:"run_id" csv:"run_id"`
	Symbol    string    `json:"symbol" csv:"symbol"`
	Kind      string    `json:"kind" csv:"kind"`
	Seed      uint64    `json:"seed" csv:"seed"`
	Step      int       `json:"step" csv:"step"`
	Direction string    `json:"direction" csv:"direction"`
	Magnitude float64   `json:"magnitude" csv:"magnitude"`
	Price     float64   `json:"price" csv:"price"`
	CreatedAt time.Time `json:"created_at" csv:"created_at"`
}

// Records flattens a result into per-step records. Results without a path give one record
// carrying the final price.
func (r *SimulationResult) Records() []PathRecord {
	base := PathRecord{RunID: r.RunID, Symbol: r.Symbol, Kind: string(r.Kind), Seed: r.Seed, CreatedAt: r.FinishedAt}
	if len(r.Path) == 0 {
		rec := base
		rec.Step = r.Steps
		rec.Price = r.Final
		return []PathRecord{rec}
	}
	out := make([]PathRecord, len(r.Path))
	for i, st := range r.Path {
		rec := base
		rec.Step = st.N
		rec.Direction = st.Direction.String()
		rec.Magnitude = st.Magnitude
		rec.Price = st.Price
		out[i] = rec
	}
	return out
}

// JobStatus is the state of a queued Monte Carlo job.
type JobStatus struct {
	ID        string        `json:"id"`
	State     string        `json:"state"`
	Error     string        `json:"error,omitempty"`
	Summary   *BatchSummary `json:"summary,omitempty"`
	UpdatedAt time.Time     `json:"updated_at"`
}

const (
	JobQueued  = "queued"
	JobRunning = "running"
	JobDone    = "done"
	JobFailed  = "failed"
)
