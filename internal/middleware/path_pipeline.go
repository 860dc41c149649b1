package middleware

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"NoisyMarket/internal/domain/models"
	domrepo "NoisyMarket/internal/domain/repository"
	applogger "NoisyMarket/pkg/logger"
)

// ErrBufferFull is returned when a result could not be delivered and the retry buffer is full.
var ErrBufferFull = errors.New("path pipeline buffer full")

// Proc is the downstream the pipeline feeds. A *repository.PartialDeliveryError from
// ProcessBatch marks the records already delivered; only the rest are retried.
type Proc interface {
	ProcessBatch(ctx context.Context, records []models.PathRecord) error
}

// pending is what is left to deliver of one run.
type pending struct {
	runID   string
	records []models.PathRecord
}

// PathPipeline sits between the simulation runner and the path backend. It validates
// results, forwards their records, and holds the undelivered records of a failed run in a
// bounded buffer that a background loop retries with exponential backoff.
type PathPipeline struct {
	proc     Proc
	metrics  domrepo.Metrics
	log      *applogger.Logger
	bufSize  int
	retryMin time.Duration
	retryMax time.Duration
	bufCh    chan *pending

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

type PipelineOption func(*PathPipeline)

// WithBufferSize sets how many failed results are held for retry.
func WithBufferSize(n int) PipelineOption {
	return func(p *PathPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithRetryBackoff bounds the delay between retries of a failing backend.
func WithRetryBackoff(lo, hi time.Duration) PipelineOption {
	return func(p *PathPipeline) {
		if lo > 0 {
			p.retryMin = lo
		}
		if hi >= p.retryMin {
			p.retryMax = hi
		}
	}
}

// WithLogger sets the pipeline logger.
func WithLogger(l *applogger.Logger) PipelineOption {
	return func(p *PathPipeline) {
		if l != nil {
			p.log = l
		}
	}
}

// NewPathPipeline creates a pipeline in front of proc.
func NewPathPipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *PathPipeline {
	p := &PathPipeline{
		proc:     proc,
		metrics:  metrics,
		log:      applogger.Nop(),
		bufSize:  1000,
		retryMin: 50 * time.Millisecond,
		retryMax: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan *pending, p.bufSize)
	return p
}

// Buffered reports how many results wait for retry.
func (p *PathPipeline) Buffered() int { return len(p.bufCh) }

// Start launches the retry loop. Calling it again is a no-op.
func (p *PathPipeline) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.started = true
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.loop(ctx, p.done)
}

func (p *PathPipeline) newBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.retryMin
	bo.MaxInterval = p.retryMax
	bo.MaxElapsedTime = 0
	bo.Reset()
	return bo
}

func (p *PathPipeline) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	bo := p.newBackOff()
	for {
		select {
		case <-ctx.Done():
			return
		case pd := <-p.bufCh:
			if err := p.deliver(ctx, pd); err != nil {
				p.requeue(pd)
				if ctx.Err() != nil {
					return
				}
				p.metrics.RecordError("pipeline_flush")
				wait := bo.NextBackOff()
				p.log.Debug("path retry failed",
					applogger.String("run_id", pd.runID),
					applogger.Int("remaining", len(pd.records)),
					applogger.Duration("backoff", wait),
					applogger.Error(err))
				select {
				case <-ctx.Done():
					return
				case <-time.After(wait):
				}
				continue
			}
			bo.Reset()
			p.metrics.RecordQueueDepth("path_pipeline", len(p.bufCh))
		}
	}
}

// deliver sends what is left of pd. Records the backend accepted before failing are cut off
// so a retry never sends them twice.
func (p *PathPipeline) deliver(ctx context.Context, pd *pending) error {
	err := p.proc.ProcessBatch(ctx, pd.records)
	var partial *domrepo.PartialDeliveryError
	if errors.As(err, &partial) {
		pd.records = pd.records[min(partial.Sent, len(pd.records)):]
	}
	return err
}

func (p *PathPipeline) requeue(pd *pending) {
	select {
	case p.bufCh <- pd:
	default:
		p.metrics.RecordError("pipeline_buffer_drop")
		p.log.Warn("path dropped", applogger.String("run_id", pd.runID))
	}
}

// Stop ends the retry loop and makes one last delivery attempt for everything still
// buffered. Results that fail again are dropped and counted in the returned error.
func (p *PathPipeline) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.started {
		p.started = false
		p.cancel()
		done := p.done
		p.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	} else {
		p.mu.Unlock()
	}

	dropped := 0
	for {
		select {
		case pd := <-p.bufCh:
			if err := p.deliver(ctx, pd); err != nil {
				dropped++
				p.metrics.RecordError("pipeline_buffer_drop")
			}
		default:
			if dropped > 0 {
				return fmt.Errorf("pipeline stop: %d results undelivered", dropped)
			}
			return nil
		}
	}
}

// Process validates r and forwards its records. The undelivered part of a failed delivery
// is buffered for retry and reported as success; only a full buffer surfaces the
// downstream error.
func (p *PathPipeline) Process(ctx context.Context, r *models.SimulationResult) error {
	start := time.Now()
	if err := validateResult(r); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	pd := &pending{runID: r.RunID, records: r.Records()}
	if err := p.deliver(ctx, pd); err != nil {
		p.metrics.RecordError("pipeline_process")
		select {
		case p.bufCh <- pd:
			p.metrics.RecordQueueDepth("path_pipeline", len(p.bufCh))
			p.log.Warn("path buffered",
				applogger.String("run_id", r.RunID),
				applogger.Int("remaining", len(pd.records)),
				applogger.Int("buffered", len(p.bufCh)),
				applogger.Error(err))
			return nil
		default:
			p.metrics.RecordError("pipeline_buffer_full")
			return fmt.Errorf("%w: %w", ErrBufferFull, err)
		}
	}
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return nil
}

func validateResult(r *models.SimulationResult) error {
	if r == nil {
		return fmt.Errorf("result nil")
	}
	if r.RunID == "" {
		return fmt.Errorf("run id empty")
	}
	if r.Symbol == "" {
		return fmt.Errorf("symbol empty")
	}
	if r.Initial <= 0 {
		return fmt.Errorf("initial price must be positive")
	}
	if math.IsNaN(r.Final) || math.IsInf(r.Final, 0) {
		return fmt.Errorf("final price not finite")
	}
	return nil
}
