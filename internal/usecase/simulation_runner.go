package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/montanaflynn/stats"
	"golang.org/x/sync/errgroup"

	"NoisyMarket/internal/domain/models"
	domrepo "NoisyMarket/internal/domain/repository"
	"NoisyMarket/internal/services/history"
	"NoisyMarket/internal/services/markov"
	applogger "NoisyMarket/pkg/logger"
)

// moveChunk is how many steps run between cancellation checks.
const moveChunk = 1024

// PathSink receives finished paths that asked to be persisted.
type PathSink interface {
	Process(ctx context.Context, r *models.SimulationResult) error
}

// RunnerConfig holds the defaults applied to requests that leave a field empty.
type RunnerConfig struct {
	Steps     int
	Workers   int
	MaxDraws  int
	Seed      uint64
	Direction markov.Direction
	Kind      markov.Kind
}

// SimulationRunner builds simulators from requests and drives them.
type SimulationRunner struct {
	cfg     RunnerConfig
	cals    domrepo.CalibrationStore
	sink    PathSink
	metrics domrepo.Metrics
	log     *applogger.Logger
	newID   func() string
}

// NewSimulationRunner wires a runner. cals and sink may be nil.
func NewSimulationRunner(cfg RunnerConfig, cals domrepo.CalibrationStore, sink PathSink, metrics domrepo.Metrics, log *applogger.Logger) *SimulationRunner {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Kind == "" {
		cfg.Kind = markov.KindLevyStable
	}
	if log == nil {
		log = applogger.Nop()
	}
	return &SimulationRunner{cfg: cfg, cals: cals, sink: sink, metrics: metrics, log: log, newID: uuid.NewString}
}

// BuildSpec resolves a request into a spec. The matrix and distribution come from the request
// when given, otherwise from the stored calibration of the symbol.
func (r *SimulationRunner) BuildSpec(ctx context.Context, req models.SimulationRequest) (models.SimulationSpec, error) {
	spec := models.SimulationSpec{
		Symbol:    req.Symbol,
		Price:     req.Price,
		Steps:     req.Steps,
		Seed:      req.Seed,
		Direction: r.cfg.Direction,
		MaxDraws:  req.MaxDraws,
		KeepPath:  req.KeepPath,
		Persist:   req.Persist,
	}
	if spec.Seed == 0 {
		spec.Seed = r.cfg.Seed
	}
	if spec.MaxDraws == 0 {
		spec.MaxDraws = r.cfg.MaxDraws
	}
	if req.Direction != "" {
		d, err := markov.ParseDirection(req.Direction)
		if err != nil {
			return spec, &markov.ConfigurationError{Field: "direction", Reason: err.Error()}
		}
		spec.Direction = d
	}

	kind := r.cfg.Kind
	if req.Movement != nil && req.Movement.Kind != "" {
		k, err := markov.ParseKind(req.Movement.Kind)
		if err != nil {
			return spec, &markov.ConfigurationError{Field: "movement kind", Reason: err.Error()}
		}
		kind = k
	}

	var cal *models.Calibration
	if req.Q == nil || !req.Movement.HasParams(kind) {
		if r.cals == nil {
			return spec, fmt.Errorf("calibration %s: %w", req.Symbol, domrepo.ErrNotFound)
		}
		c, err := r.cals.Get(ctx, req.Symbol)
		if err != nil {
			return spec, err
		}
		cal = c
	}

	var err error
	if req.Q != nil {
		spec.Q, err = markov.NewTransitionMatrix(*req.Q)
	} else {
		spec.Q, err = cal.Matrix()
	}
	if err != nil {
		return spec, err
	}

	if req.Movement.HasParams(kind) {
		spec.Movement, err = markov.NewMovement(kind, req.Movement.Gaussian, req.Movement.Uniform, req.Movement.LevyStable)
	} else {
		spec.Movement, err = cal.Movement(kind)
	}
	return spec, err
}

// Run simulates one path. A sampling error aborts the run and is returned as is.
func (r *SimulationRunner) Run(ctx context.Context, spec models.SimulationSpec) (*models.SimulationResult, error) {
	start := time.Now()
	opts := []markov.Option{markov.WithSeed(spec.Seed), markov.WithDirection(spec.Direction)}
	if spec.MaxDraws > 0 {
		opts = append(opts, markov.WithMaxDraws(spec.MaxDraws))
	}
	if spec.KeepPath || spec.Persist {
		opts = append(opts, markov.WithPathRecording())
	}
	sim, err := markov.NewSimulator(spec.Symbol, spec.Price, spec.Q, spec.Movement, opts...)
	if err != nil {
		return nil, err
	}

	kind := spec.Movement.Kind()
	for left := spec.Steps; left > 0; left -= moveChunk {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, err := sim.Move(min(left, moveChunk)); err != nil {
			if markov.IsSamplingError(err) {
				r.metrics.RecordSamplingError(string(kind))
			}
			return nil, err
		}
	}

	res := &models.SimulationResult{
		RunID:      r.newID(),
		Symbol:     spec.Symbol,
		Seed:       spec.Seed,
		Kind:       kind,
		Initial:    spec.Price,
		Final:      sim.Price(),
		Steps:      sim.N(),
		Absorbed:   sim.Frozen(),
		Path:       sim.Path(),
		Elapsed:    time.Since(start),
		FinishedAt: time.Now().UTC(),
	}
	if len(res.Path) > 1 {
		rets := history.LogReturns(history.PathPrices(spec.Price, res.Path))
		res.Volatility = history.RealizedVolatility(rets, 0, history.TradingDaysPerYear)
	}
	r.metrics.RecordPath(string(kind), spec.Symbol, res.Steps, res.Absorbed)
	r.metrics.RecordFinalPrice(spec.Symbol, res.Final)
	r.metrics.RecordLatency("simulate", res.Elapsed.Seconds())

	if spec.Persist && r.sink != nil {
		if err := r.sink.Process(ctx, res); err != nil {
			return nil, fmt.Errorf("persist run %s: %w", res.RunID, err)
		}
	}
	if !spec.KeepPath {
		res.Path = nil
	}
	return res, nil
}

// RunBatch runs trials independent paths, trial i seeded with spec.Seed+i, and summarises the
// final prices. Paths are neither kept nor persisted.
func (r *SimulationRunner) RunBatch(ctx context.Context, spec models.SimulationSpec, trials int) (*models.BatchSummary, error) {
	if trials < 1 {
		return nil, &markov.ConfigurationError{Field: "trials", Value: float64(trials), Reason: "must be at least 1"}
	}
	start := time.Now()
	finals := make([]float64, trials)
	absorbed := make([]bool, trials)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for i := 0; i < trials; i++ {
		trial := spec
		trial.Seed = spec.Seed + uint64(i)
		trial.KeepPath = false
		trial.Persist = false
		g.Go(func() error {
			res, err := r.Run(gctx, trial)
			if err != nil {
				return fmt.Errorf("trial %d: %w", i, err)
			}
			finals[i] = res.Final
			absorbed[i] = res.Absorbed
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sum, err := Summarize(finals, absorbed)
	if err != nil {
		return nil, err
	}
	sum.Symbol = spec.Symbol
	sum.Kind = spec.Movement.Kind()
	sum.Steps = spec.Steps
	sum.Seed = spec.Seed
	r.metrics.RecordLatency("montecarlo", time.Since(start).Seconds())
	r.log.Info("monte carlo batch done",
		applogger.String("symbol", spec.Symbol),
		applogger.Int("trials", trials),
		applogger.Float64("mean", sum.Mean),
		applogger.Int("absorbed", sum.Absorbed),
		applogger.Duration("elapsed_ms", time.Since(start)))
	return sum, nil
}

// RunUniverse runs one path per spec in parallel. Results keep the order of specs.
func (r *SimulationRunner) RunUniverse(ctx context.Context, specs []models.SimulationSpec) ([]*models.SimulationResult, error) {
	out := make([]*models.SimulationResult, len(specs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for i, spec := range specs {
		g.Go(func() error {
			res, err := r.Run(gctx, spec)
			if err != nil {
				return fmt.Errorf("%s: %w", spec.Symbol, err)
			}
			out[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Summarize computes the distribution of batch final prices. Percentiles use the nearest-rank
// definition so small batches still get one.
func Summarize(finals []float64, absorbed []bool) (*models.BatchSummary, error) {
	sum := &models.BatchSummary{Trials: len(finals), Finals: finals}
	var err error
	if sum.Mean, err = stats.Mean(finals); err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	sum.Median, _ = stats.Median(finals)
	if len(finals) > 1 {
		sum.StdDev, _ = stats.StandardDeviationSample(finals)
	}
	sum.P5, _ = stats.PercentileNearestRank(finals, 5)
	sum.P95, _ = stats.PercentileNearestRank(finals, 95)
	sum.Min, _ = stats.Min(finals)
	sum.Max, _ = stats.Max(finals)
	for _, a := range absorbed {
		if a {
			sum.Absorbed++
		}
	}
	return sum, nil
}
