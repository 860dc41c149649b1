package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"NoisyMarket/internal/domain/models"
	"NoisyMarket/internal/domain/repository"
	pkgch "NoisyMarket/pkg/clickhouse"
	applogger "NoisyMarket/pkg/logger"
)

const pathColumns = "run_id, symbol, kind, seed, step, direction, magnitude, price, created_at"

// ClickHouseStorage implements PathStorage for ClickHouse.
type ClickHouseStorage struct {
	client    *pkgch.Client
	db        *sql.DB
	table     string
	chunkSize int
	l         *applogger.Logger
}

// NewClickHouseStorage stores paths in <database>.simulated_paths.
func NewClickHouseStorage(client *pkgch.Client, l *applogger.Logger) *ClickHouseStorage {
	if l == nil {
		l = applogger.Nop()
	}
	return &ClickHouseStorage{
		client:    client,
		db:        client.DB(),
		table:     client.Database() + "." + pkgch.PathsTable,
		chunkSize: 2000,
		l:         l,
	}
}

var _ repository.PathStorage = (*ClickHouseStorage)(nil)

func (s *ClickHouseStorage) Init(ctx context.Context) error {
	return s.client.InitSchema(ctx)
}

// StoreBatch inserts records in multi-row VALUES chunks. Chunks are separate inserts, so a
// failure past the first is a *repository.PartialDeliveryError.
func (s *ClickHouseStorage) StoreBatch(ctx context.Context, records []models.PathRecord) error {
	if len(records) == 0 {
		return nil
	}
	start := time.Now()
	for lo := 0; lo < len(records); lo += s.chunkSize {
		hi := lo + s.chunkSize
		if hi > len(records) {
			hi = len(records)
		}

		values := make([]string, 0, hi-lo)
		args := make([]interface{}, 0, (hi-lo)*9)
		for _, r := range records[lo:hi] {
			if r.RunID == "" {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args, r.RunID, r.Symbol, r.Kind, r.Seed, uint32(r.Step), r.Direction, r.Magnitude, r.Price, r.CreatedAt)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", s.table, pathColumns, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			s.l.Error("clickhouse store_batch error",
				applogger.String("table", s.table),
				applogger.Int("rows", len(values)),
				applogger.Error(err))
			err = fmt.Errorf("insert paths: %w", err)
			if lo > 0 {
				return &repository.PartialDeliveryError{Sent: lo, Err: err}
			}
			return err
		}
	}
	s.l.Debug("clickhouse store_batch ok",
		applogger.Int("rows", len(records)),
		applogger.Duration("duration_ms", time.Since(start)))
	return nil
}

// QueryRun returns the steps of one run in order.
func (s *ClickHouseStorage) QueryRun(ctx context.Context, runID string, limit int) ([]models.PathRecord, error) {
	if limit <= 0 {
		limit = 10000
	}
	q := fmt.Sprintf("SELECT %s FROM %s WHERE run_id = ? ORDER BY step ASC LIMIT ?", pathColumns, s.table)
	rows, err := s.db.QueryContext(ctx, q, runID, limit)
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}
	defer rows.Close()

	var out []models.PathRecord
	for rows.Next() {
		var r models.PathRecord
		var step uint32
		if err := rows.Scan(&r.RunID, &r.Symbol, &r.Kind, &r.Seed, &step, &r.Direction, &r.Magnitude, &r.Price, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan path: %w", err)
		}
		r.Step = int(step)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if len(out) == 0 {
		return nil, repository.ErrNotFound
	}
	return out, nil
}

func (s *ClickHouseStorage) Health(ctx context.Context) error {
	return s.client.Health(ctx)
}

// Close is a no-op; the client owns the pool.
func (s *ClickHouseStorage) Close() error {
	return nil
}
