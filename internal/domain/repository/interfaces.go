package repository

import (
	"context"
	"errors"
	"fmt"

	"NoisyMarket/internal/domain/models"
)

// ErrNotFound is returned by stores for unknown keys.
var ErrNotFound = errors.New("not found")

// PartialDeliveryError is a batch send that failed after its first Sent records were
// accepted by the backend. Retries resume at Sent.
type PartialDeliveryError struct {
	Sent int
	Err  error
}

func (e *PartialDeliveryError) Error() string {
	return fmt.Sprintf("delivered %d records: %v", e.Sent, e.Err)
}

func (e *PartialDeliveryError) Unwrap() error { return e.Err }

type PathPublisher interface {
	Publish(ctx context.Context, r *models.SimulationResult) error
	PublishBatch(ctx context.Context, records []models.PathRecord) error
	Close() error
}

type PathStorage interface {
	Init(ctx context.Context) error // ensure tables, health checks
	StoreBatch(ctx context.Context, records []models.PathRecord) error
	QueryRun(ctx context.Context, runID string, limit int) ([]models.PathRecord, error)
	Health(ctx context.Context) error
	Close() error
}

type CalibrationStore interface {
	Get(ctx context.Context, symbol string) (*models.Calibration, error)
	Save(ctx context.Context, c *models.Calibration) error
	Delete(ctx context.Context, symbol string) error
}

// CalibrationPublisher broadcasts fitted calibrations to other instances.
type CalibrationPublisher interface {
	PublishCalibrations(ctx context.Context, cals []*models.Calibration) error
}

type JobStore interface {
	GetJob(ctx context.Context, id string) (*models.JobStatus, error)
	SaveJob(ctx context.Context, s *models.JobStatus) error
}

type Metrics interface {
	RecordPath(kind, symbol string, steps int, absorbed bool)
	RecordFinalPrice(symbol string, price float64)
	RecordSamplingError(kind string)
	RecordMessageSent(backend, symbol string)
	RecordCalibration(symbol string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
	RecordQueueDepth(queue string, depth int)
}
