package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"NoisyMarket/internal/domain/models"
	"NoisyMarket/internal/domain/repository"
	"NoisyMarket/pkg/cache"
)

const (
	calibrationNS = "calibration"
	jobNS         = "job"
)

// CacheCalibrationStore keeps calibrations in a cache.Service keyed by upper-cased symbol.
type CacheCalibrationStore struct {
	c   cache.Service
	ttl time.Duration
}

func NewCacheCalibrationStore(c cache.Service, ttl time.Duration) *CacheCalibrationStore {
	return &CacheCalibrationStore{c: c, ttl: ttl}
}

var _ repository.CalibrationStore = (*CacheCalibrationStore)(nil)

func (s *CacheCalibrationStore) Get(ctx context.Context, symbol string) (*models.Calibration, error) {
	cal, err := cache.GetTyped[models.Calibration](ctx, s.c, calibrationKey(symbol))
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, fmt.Errorf("calibration %s: %w", symbol, repository.ErrNotFound)
	}
	return cal, err
}

func (s *CacheCalibrationStore) Save(ctx context.Context, c *models.Calibration) error {
	if c == nil || c.Symbol == "" {
		return errors.New("calibration without symbol")
	}
	return s.c.Set(ctx, calibrationKey(c.Symbol), c, s.ttl)
}

func (s *CacheCalibrationStore) Delete(ctx context.Context, symbol string) error {
	return s.c.Delete(ctx, calibrationKey(symbol))
}

func calibrationKey(symbol string) string {
	return cache.Key(calibrationNS, strings.ToUpper(symbol))
}

// CacheJobStore keeps Monte Carlo job states.
type CacheJobStore struct {
	c   cache.Service
	ttl time.Duration
}

func NewCacheJobStore(c cache.Service, ttl time.Duration) *CacheJobStore {
	return &CacheJobStore{c: c, ttl: ttl}
}

var _ repository.JobStore = (*CacheJobStore)(nil)

func (s *CacheJobStore) GetJob(ctx context.Context, id string) (*models.JobStatus, error) {
	st, err := cache.GetTyped[models.JobStatus](ctx, s.c, cache.Key(jobNS, id))
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, fmt.Errorf("job %s: %w", id, repository.ErrNotFound)
	}
	return st, err
}

func (s *CacheJobStore) SaveJob(ctx context.Context, st *models.JobStatus) error {
	if st.UpdatedAt.IsZero() {
		st.UpdatedAt = time.Now().UTC()
	}
	return s.c.Set(ctx, cache.Key(jobNS, st.ID), st, s.ttl)
}
