package usecase

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"golang.org/x/sync/errgroup"

	"NoisyMarket/internal/domain/models"
	drepo "NoisyMarket/internal/domain/repository"
	"NoisyMarket/internal/services/calibration"
	"NoisyMarket/internal/services/history"
	applogger "NoisyMarket/pkg/logger"
)

// startSlack is how far after the window start a series may begin and still count as covering
// the window. Derived rows lose the first bar and the window may open on a holiday.
const startSlack = 7 * 24 * time.Hour

// CalibrationReport is the outcome of calibrating one directory.
type CalibrationReport struct {
	Start        time.Time
	End          time.Time
	Lags         int
	Calibrations []*models.Calibration
	// Skipped maps file name to the reason it was left out.
	Skipped map[string]string
}

// CalibrationUseCase fits every history file of a directory and stores the results.
type CalibrationUseCase struct {
	store   drepo.CalibrationStore
	pub     drepo.CalibrationPublisher
	metrics drepo.Metrics
	log     *applogger.Logger
	lags    int
	workers int
}

// NewCalibrationUseCase wires the use case. store and pub may be nil.
func NewCalibrationUseCase(store drepo.CalibrationStore, pub drepo.CalibrationPublisher, metrics drepo.Metrics, log *applogger.Logger, lags, workers int) *CalibrationUseCase {
	if lags < 0 {
		lags = calibration.DefaultLags
	}
	if workers <= 0 {
		workers = 1
	}
	if log == nil {
		log = applogger.Nop()
	}
	return &CalibrationUseCase{store: store, pub: pub, metrics: metrics, log: log, lags: lags, workers: workers}
}

// CalibrateFile fits one history file.
func (uc *CalibrationUseCase) CalibrateFile(path string) (*models.Calibration, error) {
	rows, err := history.ReadRowsFile(path)
	if err != nil {
		return nil, err
	}
	return calibration.Calibrate(history.TickerFromFilename(path), rows, uc.lags)
}

// CalibrateDir fits every history file in dir. Files that fail to parse or fit, or that start
// after the window start (when start is set), are skipped and reported. Fitted calibrations are
// saved to the store and published.
func (uc *CalibrationUseCase) CalibrateDir(ctx context.Context, dir string, start, end time.Time) (*CalibrationReport, error) {
	files, err := history.Files(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	fitted := make([]*models.Calibration, len(files))
	reasons := make([]string, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uc.workers)
	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			c, err := uc.CalibrateFile(path)
			switch {
			case err != nil:
				reasons[i] = err.Error()
			case !start.IsZero() && c.Start.Sub(start) > startSlack:
				reasons[i] = fmt.Sprintf("series starts %s, after window start", c.Start.Format(history.DateLayout))
			default:
				fitted[i] = c
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rep := &CalibrationReport{Start: start, End: end, Lags: uc.lags, Skipped: map[string]string{}}
	for i, c := range fitted {
		if c == nil {
			name := filepath.Base(files[i])
			rep.Skipped[name] = reasons[i]
			uc.log.Warn("calibration skipped", applogger.String("file", name), applogger.String("reason", reasons[i]))
			continue
		}
		rep.Calibrations = append(rep.Calibrations, c)
	}
	sort.Slice(rep.Calibrations, func(a, b int) bool { return rep.Calibrations[a].Symbol < rep.Calibrations[b].Symbol })

	if err := uc.Save(ctx, rep.Calibrations...); err != nil {
		return rep, err
	}
	uc.log.Info("calibration done",
		applogger.String("dir", dir),
		applogger.Int("fitted", len(rep.Calibrations)),
		applogger.Int("skipped", len(rep.Skipped)))
	return rep, nil
}

// Save stores and publishes calibrations.
func (uc *CalibrationUseCase) Save(ctx context.Context, cals ...*models.Calibration) error {
	if len(cals) == 0 {
		return nil
	}
	if uc.store != nil {
		for _, c := range cals {
			if err := uc.store.Save(ctx, c); err != nil {
				uc.metrics.RecordError("calibration_store")
				return fmt.Errorf("save %s: %w", c.Symbol, err)
			}
			uc.metrics.RecordCalibration(c.Symbol)
		}
	}
	if uc.pub != nil {
		if err := uc.pub.PublishCalibrations(ctx, cals); err != nil {
			uc.metrics.RecordError("calibration_publish")
			return fmt.Errorf("publish calibrations: %w", err)
		}
	}
	return nil
}

// Get returns the stored calibration of symbol.
func (uc *CalibrationUseCase) Get(ctx context.Context, symbol string) (*models.Calibration, error) {
	if uc.store == nil {
		return nil, fmt.Errorf("calibration %s: %w", symbol, drepo.ErrNotFound)
	}
	return uc.store.Get(ctx, symbol)
}

// Resolve returns the stored calibration of symbol, fitting and storing it from the symbol's
// history file in dir on a miss.
func (uc *CalibrationUseCase) Resolve(ctx context.Context, dir, symbol string, start, end time.Time) (*models.Calibration, error) {
	c, err := uc.Get(ctx, symbol)
	if err == nil || !errors.Is(err, drepo.ErrNotFound) {
		return c, err
	}
	c, err = uc.CalibrateFile(filepath.Join(dir, history.Filename(strings.ToUpper(symbol), start, end)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("calibration %s: %w", symbol, drepo.ErrNotFound)
		}
		return nil, err
	}
	if err := uc.Save(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// SummaryFiles names the three summary CSVs of a window.
func SummaryFiles(dir string, start, end time.Time) (levy, pacf, q string) {
	return filepath.Join(dir, history.Filename("Levy-Stable", start, end)),
		filepath.Join(dir, history.Filename("pacf", start, end)),
		filepath.Join(dir, history.Filename("Q-Matrix", start, end))
}

// WriteSummaries writes the Levy-Stable, pacf and Q-Matrix CSVs of the report into dir and
// returns their paths.
func WriteSummaries(dir string, rep *CalibrationReport) ([]string, error) {
	levyPath, pacfPath, qPath := SummaryFiles(dir, rep.Start, rep.End)

	levy := make([]models.LevyRow, len(rep.Calibrations))
	qs := make([]models.QRow, len(rep.Calibrations))
	for i, c := range rep.Calibrations {
		levy[i] = c.LevyRow()
		qs[i] = c.QRow()
	}
	if err := marshalFile(levyPath, &levy); err != nil {
		return nil, err
	}
	if err := marshalFile(qPath, &qs); err != nil {
		return nil, err
	}
	if err := writePACF(pacfPath, rep); err != nil {
		return nil, err
	}
	return []string{levyPath, pacfPath, qPath}, nil
}

func marshalFile(path string, rows interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := gocsv.MarshalFile(rows, f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// writePACF writes one column per lag, so the header depends on the lag count.
func writePACF(path string, rep *CalibrationReport) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)

	header := []string{"Symbol"}
	for k := 0; k <= rep.Lags; k++ {
		header = append(header, fmt.Sprintf("lag=%d", k))
	}
	_ = w.Write(header)
	for _, c := range rep.Calibrations {
		rec := make([]string, len(header))
		rec[0] = c.Symbol
		for k, v := range c.PACF {
			if k+1 < len(rec) {
				rec[k+1] = strconv.FormatFloat(v, 'g', -1, 64)
			}
		}
		_ = w.Write(rec)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
