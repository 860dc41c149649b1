package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"NoisyMarket/internal/domain/models"
	drepo "NoisyMarket/internal/domain/repository"
	applogger "NoisyMarket/pkg/logger"
)

// Path backends.
const (
	BackendKafka      = "kafka"
	BackendClickHouse = "clickhouse"
	BackendNone       = "none"
)

// ErrBackendUnavailable is returned while the circuit to the backend is open.
var ErrBackendUnavailable = errors.New("path backend unavailable")

// PathProcessor routes finished paths to the configured backend in batches. Consecutive
// backend failures open a circuit so callers fail fast until the backend recovers.
type PathProcessor struct {
	pub     drepo.PathPublisher
	store   drepo.PathStorage
	metrics drepo.Metrics
	backend string
	batchSz int
	cb      *gobreaker.CircuitBreaker
	log     *applogger.Logger
}

// NewPathProcessor creates a processor. pub and store may be nil when their backend is not
// selected.
func NewPathProcessor(
	pub drepo.PathPublisher,
	store drepo.PathStorage,
	metrics drepo.Metrics,
	backend string,
	batchSz int,
	openFor time.Duration,
	log *applogger.Logger,
) *PathProcessor {
	if batchSz <= 0 {
		batchSz = 500
	}
	if log == nil {
		log = applogger.Nop()
	}
	st := gobreaker.Settings{Name: "paths-" + backend, Timeout: openFor}
	st.ReadyToTrip = func(counts gobreaker.Counts) bool { return counts.ConsecutiveFailures >= 5 }
	st.OnStateChange = func(name string, from, to gobreaker.State) {
		log.Warn("path backend circuit",
			applogger.String("breaker", name),
			applogger.String("from", from.String()),
			applogger.String("to", to.String()))
	}
	return &PathProcessor{
		pub:     pub,
		store:   store,
		metrics: metrics,
		backend: backend,
		batchSz: batchSz,
		cb:      gobreaker.NewCircuitBreaker(st),
		log:     log,
	}
}

// Backend names the selected backend.
func (p *PathProcessor) Backend() string { return p.backend }

// Process sends every record of r.
func (p *PathProcessor) Process(ctx context.Context, r *models.SimulationResult) error {
	if r == nil {
		return fmt.Errorf("result is nil")
	}
	return p.ProcessBatch(ctx, r.Records())
}

// ProcessBatch sends records in chunks of the batch size. A failure after the first chunk
// is a *repository.PartialDeliveryError carrying how many records went out.
func (p *PathProcessor) ProcessBatch(ctx context.Context, records []models.PathRecord) error {
	if len(records) == 0 || p.backend == BackendNone {
		return nil
	}
	start := time.Now()
	for lo := 0; lo < len(records); lo += p.batchSz {
		hi := min(lo+p.batchSz, len(records))
		chunk := records[lo:hi]
		_, err := p.cb.Execute(func() (interface{}, error) {
			return nil, p.send(ctx, chunk)
		})
		if err != nil {
			p.metrics.RecordError("process_batch")
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				err = fmt.Errorf("%s: %w", p.backend, ErrBackendUnavailable)
			} else {
				err = fmt.Errorf("process batch: %w", err)
			}
			sent := lo
			var inner *drepo.PartialDeliveryError
			if errors.As(err, &inner) {
				sent += inner.Sent
			}
			if sent > 0 {
				return &drepo.PartialDeliveryError{Sent: sent, Err: err}
			}
			return err
		}
	}

	for _, r := range records {
		p.metrics.RecordMessageSent(p.backend, r.Symbol)
	}
	p.metrics.RecordLatency("process_batch", time.Since(start).Seconds())
	return nil
}

func (p *PathProcessor) send(ctx context.Context, records []models.PathRecord) error {
	switch p.backend {
	case BackendKafka:
		if p.pub == nil {
			return fmt.Errorf("kafka publisher not configured")
		}
		return p.pub.PublishBatch(ctx, records)
	case BackendClickHouse:
		if p.store == nil {
			return fmt.Errorf("clickhouse storage not configured")
		}
		return p.store.StoreBatch(ctx, records)
	default:
		return fmt.Errorf("unknown backend: %s", p.backend)
	}
}

// QueryRun reads a stored run back. Only the ClickHouse backend can answer.
func (p *PathProcessor) QueryRun(ctx context.Context, runID string, limit int) ([]models.PathRecord, error) {
	if p.store == nil {
		return nil, fmt.Errorf("run %s: %w", runID, drepo.ErrNotFound)
	}
	return p.store.QueryRun(ctx, runID, limit)
}

// Close closes underlying resources if available.
func (p *PathProcessor) Close() {
	if p.pub != nil {
		if err := p.pub.Close(); err != nil {
			p.log.Warn("close path publisher", applogger.Error(err))
		}
	}
	if p.store != nil {
		if err := p.store.Close(); err != nil {
			p.log.Warn("close path storage", applogger.Error(err))
		}
	}
}
