package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"NoisyMarket/internal/domain/models"
	domrepo "NoisyMarket/internal/domain/repository"
	"NoisyMarket/internal/services/markov"
	applogger "NoisyMarket/pkg/logger"
	"NoisyMarket/pkg/queue"
)

// MonteCarloJobType is the queue message type of batch jobs.
const MonteCarloJobType = "montecarlo"

// MonteCarloPayload is the queued form of a batch request.
type MonteCarloPayload struct {
	ID      string              `json:"id"`
	Request models.BatchRequest `json:"request"`
}

// MonteCarloJob runs queued batch requests and records their state in a JobStore.
type MonteCarloJob struct {
	runner *SimulationRunner
	jobs   domrepo.JobStore
	log    *applogger.Logger
}

func NewMonteCarloJob(runner *SimulationRunner, jobs domrepo.JobStore, log *applogger.Logger) *MonteCarloJob {
	if log == nil {
		log = applogger.Nop()
	}
	return &MonteCarloJob{runner: runner, jobs: jobs, log: log}
}

var _ queue.Job = (*MonteCarloJob)(nil)

func (j *MonteCarloJob) Name() string { return "montecarlo-batch" }

func (j *MonteCarloJob) Type() string { return MonteCarloJobType }

// Handle runs one batch. Requests that can never succeed are marked failed and acknowledged;
// other errors are returned so the queue retries them.
func (j *MonteCarloJob) Handle(ctx context.Context, msg queue.Message) error {
	p, err := queue.Decode[MonteCarloPayload](msg)
	if err != nil {
		j.log.Error("drop undecodable job", applogger.String("id", msg.ID), applogger.Error(err))
		return nil
	}
	if p.ID == "" {
		p.ID = msg.ID
	}
	if err := j.save(ctx, &models.JobStatus{ID: p.ID, State: models.JobRunning}); err != nil {
		return err
	}

	sum, err := j.run(ctx, p.Request)
	if err != nil {
		st := &models.JobStatus{ID: p.ID, State: models.JobFailed, Error: err.Error()}
		if serr := j.save(ctx, st); serr != nil {
			return serr
		}
		if retryable(err) {
			return err
		}
		j.log.Warn("montecarlo job failed", applogger.String("id", p.ID), applogger.Error(err))
		return nil
	}
	return j.save(ctx, &models.JobStatus{ID: p.ID, State: models.JobDone, Summary: sum})
}

func (j *MonteCarloJob) run(ctx context.Context, req models.BatchRequest) (*models.BatchSummary, error) {
	spec, err := j.runner.BuildSpec(ctx, req.SimulationRequest)
	if err != nil {
		return nil, err
	}
	return j.runner.RunBatch(ctx, spec, req.Trials)
}

func (j *MonteCarloJob) save(ctx context.Context, st *models.JobStatus) error {
	if err := j.jobs.SaveJob(ctx, st); err != nil {
		return fmt.Errorf("job %s: %w", st.ID, err)
	}
	return nil
}

// retryable reports whether err may go away on a later attempt.
func retryable(err error) bool {
	var ce *markov.ConfigurationError
	switch {
	case errors.As(err, &ce),
		errors.Is(err, markov.ErrDegenerateChain),
		errors.Is(err, domrepo.ErrNotFound),
		markov.IsSamplingError(err):
		return false
	}
	return true
}

// JobSubmitter enqueues batch requests and reads back their state.
type JobSubmitter struct {
	pub   queue.Publisher
	jobs  domrepo.JobStore
	newID func() string
}

func NewJobSubmitter(pub queue.Publisher, jobs domrepo.JobStore) *JobSubmitter {
	return &JobSubmitter{pub: pub, jobs: jobs, newID: uuid.NewString}
}

// Submit stores a queued state and enqueues req. The returned status carries the job id.
func (s *JobSubmitter) Submit(ctx context.Context, req models.BatchRequest) (*models.JobStatus, error) {
	id := s.newID()
	st := &models.JobStatus{ID: id, State: models.JobQueued}
	if err := s.jobs.SaveJob(ctx, st); err != nil {
		return nil, fmt.Errorf("job %s: %w", id, err)
	}
	if _, err := s.pub.Enqueue(ctx, MonteCarloJobType, id, MonteCarloPayload{ID: id, Request: req}); err != nil {
		st.State = models.JobFailed
		st.Error = err.Error()
		st.UpdatedAt = time.Now().UTC()
		_ = s.jobs.SaveJob(ctx, st)
		return nil, err
	}
	return st, nil
}

func (s *JobSubmitter) Status(ctx context.Context, id string) (*models.JobStatus, error) {
	return s.jobs.GetJob(ctx, id)
}
