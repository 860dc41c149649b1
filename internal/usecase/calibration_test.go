package usecase

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NoisyMarket/internal/domain/models"
	domrepo "NoisyMarket/internal/domain/repository"
	"NoisyMarket/internal/services/calibration"
	"NoisyMarket/internal/services/history"
	pkgkafka "NoisyMarket/pkg/kafka"
)

type recordingCalPublisher struct {
	got []*models.Calibration
}

func (r *recordingCalPublisher) PublishCalibrations(_ context.Context, cals []*models.Calibration) error {
	r.got = append(r.got, cals...)
	return nil
}

func calibrationDir(t *testing.T) (string, time.Time) {
	t.Helper()
	dir := t.TempDir()
	start := time.Date(2010, 6, 8, 0, 0, 0, 0, time.UTC)
	writeHistory(t, dir, "MSFT", start, 600, 1)
	writeHistory(t, dir, "AAPL", start, 600, 2)
	writeHistory(t, dir, "LATE", start.AddDate(2, 0, 0), 600, 3)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "BROKEN___2010-06-08___2020-06-08.csv"), []byte("nonsense\n1\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Levy-Stable___2010-06-08___2020-06-08.csv"), []byte("Symbol\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	return dir, start
}

func TestCalibrateDir(t *testing.T) {
	dir, start := calibrationDir(t)
	store := calibrationStore(t)
	pub := &recordingCalPublisher{}
	uc := NewCalibrationUseCase(store, pub, testMetrics(), nil, calibration.DefaultLags, 2)

	rep, err := uc.CalibrateDir(bg, dir, start, start.AddDate(10, 0, 0))
	require.NoError(t, err)

	require.Len(t, rep.Calibrations, 2)
	assert.Equal(t, "AAPL", rep.Calibrations[0].Symbol)
	assert.Equal(t, "MSFT", rep.Calibrations[1].Symbol)
	assert.Contains(t, rep.Skipped, history.Filename("LATE", start.AddDate(2, 0, 0), start.AddDate(2, 0, 600)))
	assert.Contains(t, rep.Skipped, "BROKEN___2010-06-08___2020-06-08.csv")
	assert.Len(t, rep.Skipped, 2)
	assert.Len(t, pub.got, 2)

	got, err := uc.Get(bg, "msft")
	require.NoError(t, err)
	assert.Equal(t, rep.Calibrations[1].Q, got.Q)
}

func TestCalibrateDirWithoutStartKeepsEverything(t *testing.T) {
	dir, _ := calibrationDir(t)
	uc := NewCalibrationUseCase(nil, nil, testMetrics(), nil, 3, 1)
	rep, err := uc.CalibrateDir(bg, dir, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, rep.Calibrations, 3)

	_, err = uc.Get(bg, "AAPL")
	assert.ErrorIs(t, err, domrepo.ErrNotFound)
}

func TestResolveFitsOnMiss(t *testing.T) {
	dir, start := calibrationDir(t)
	store := calibrationStore(t)
	uc := NewCalibrationUseCase(store, nil, testMetrics(), nil, 3, 1)
	end := start.AddDate(0, 0, 600)

	c, err := uc.Resolve(bg, dir, "aapl", start, end)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", c.Symbol)

	stored, err := store.Get(bg, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, c.Levy, stored.Levy)

	_, err = uc.Resolve(bg, dir, "ZZZ", start, end)
	assert.ErrorIs(t, err, domrepo.ErrNotFound)
}

func TestCalibrateDirMissing(t *testing.T) {
	uc := NewCalibrationUseCase(nil, nil, testMetrics(), nil, 3, 1)
	_, err := uc.CalibrateDir(bg, filepath.Join(t.TempDir(), "nope"), time.Time{}, time.Time{})
	assert.Error(t, err)
}

func TestWriteSummaries(t *testing.T) {
	dir, start := calibrationDir(t)
	end := start.AddDate(10, 0, 0)
	uc := NewCalibrationUseCase(nil, nil, testMetrics(), nil, 2, 2)
	rep, err := uc.CalibrateDir(bg, dir, start, end)
	require.NoError(t, err)

	out := t.TempDir()
	paths, err := WriteSummaries(out, rep)
	require.NoError(t, err)
	require.Len(t, paths, 3)
	assert.Equal(t, filepath.Join(out, "Levy-Stable___2010-06-08___2020-06-08.csv"), paths[0])

	var levy []models.LevyRow
	f, err := os.Open(paths[0])
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, gocsv.UnmarshalFile(f, &levy))
	require.Len(t, levy, 2)
	assert.Equal(t, "AAPL", levy[0].Symbol)
	assert.Equal(t, rep.Calibrations[0].Levy.Alpha, levy[0].Alpha)

	pacf, err := os.ReadFile(paths[1])
	require.NoError(t, err)
	assert.Contains(t, string(pacf), "Symbol,lag=0,lag=1,lag=2\nAAPL,1,")

	q, err := os.ReadFile(paths[2])
	require.NoError(t, err)
	assert.Contains(t, string(q), `Symbol,"Q[0,0]","Q[1,0]","Q[0,1]","Q[1,1]"`)
}

func TestKafkaCalibrationHandler(t *testing.T) {
	store := calibrationStore(t)
	h := NewKafkaCalibrationHandler("calibrations", store, testMetrics(), nil)
	assert.Equal(t, "calibrations", h.Topic())

	cal := storedCalibration()
	cal.Symbol = " tsla "
	raw, err := json.Marshal(cal)
	require.NoError(t, err)
	require.NoError(t, h.Handle(bg, raw))

	got, err := store.Get(bg, "TSLA")
	require.NoError(t, err)
	assert.Equal(t, "TSLA", got.Symbol)
	assert.Equal(t, calibratedLevy, got.Levy)
}

func TestKafkaCalibrationHandlerRejectsBadPayloads(t *testing.T) {
	h := NewKafkaCalibrationHandler("calibrations", calibrationStore(t), testMetrics(), nil)

	var perm *pkgkafka.PermanentError
	assert.ErrorAs(t, h.Handle(bg, []byte("{")), &perm)

	cal := storedCalibration()
	cal.Q = [2][2]float64{{1, 1}, {1, 1}}
	raw, _ := json.Marshal(cal)
	assert.ErrorAs(t, h.Handle(bg, raw), &perm)

	cal = storedCalibration()
	cal.Levy.Gamma = 0
	raw, _ = json.Marshal(cal)
	assert.ErrorAs(t, h.Handle(bg, raw), &perm)

	cal = storedCalibration()
	cal.Symbol = ""
	raw, _ = json.Marshal(cal)
	assert.ErrorAs(t, h.Handle(bg, raw), &perm)
}
