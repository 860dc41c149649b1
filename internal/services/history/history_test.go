package history

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NoisyMarket/internal/services/markov"
)

func bars(closes ...float64) []Bar {
	out := make([]Bar, len(closes))
	d := time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		out[i] = Bar{Date: Date{d.AddDate(0, 0, i)}, Open: c, High: c, Low: c, Close: c, Volume: 100}
	}
	return out
}

func TestDerive(t *testing.T) {
	rows, err := Derive(bars(100, 110, 99, 99, 108.9))
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.InDelta(t, 10, rows[0].Change, 1e-12)
	assert.InDelta(t, 0.1, rows[0].PctChange, 1e-12)
	assert.InDelta(t, -0.1, rows[1].PctChange, 1e-12)
	assert.Zero(t, rows[2].PctChange)
	assert.InDelta(t, 0.1, rows[3].PctChange, 1e-12)

	assert.Equal(t, []float64{1, 0, 0, 1}, StateSums(rows))
	assert.Equal(t, "2020-06-02", rows[0].Date.String())
}

func TestDeriveErrors(t *testing.T) {
	_, err := Derive(bars(100))
	assert.ErrorIs(t, err, ErrTooShort)

	_, err = Derive(bars(0, 1))
	assert.Error(t, err)
}

func TestRowsCSVHeader(t *testing.T) {
	rows, err := Derive(bars(100, 101))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteRows(&buf, rows))
	header := strings.SplitN(buf.String(), "\n", 2)[0]
	assert.Equal(t, "Date,Open,High,Low,Close,Volume,Change,%Change,State Sum", header)

	back, err := ReadRows(&buf)
	require.NoError(t, err)
	require.Len(t, back, 1)
	assert.Equal(t, rows[0].Date.String(), back[0].Date.String())
	assert.InDelta(t, 0.01, back[0].PctChange, 1e-12)
}

func TestReadBarsAcceptsTimestamps(t *testing.T) {
	in := "Date,Open,High,Low,Close,Volume\n2010-06-08 00:00:00,1,2,0.5,1.5,10\n2010-06-09,1.5,2,1,1.8,11\n"
	got, err := ReadBars(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2010-06-08", got[0].Date.String())
	assert.Equal(t, 1.8, got[1].Close)
}

func TestRowsFileRoundTrip(t *testing.T) {
	rows, err := Derive(bars(10, 11, 12))
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "AAPL___2020-06-01___2020-06-03.csv")
	require.NoError(t, WriteRowsFile(path, rows))

	back, err := ReadRowsFile(path)
	require.NoError(t, err)
	assert.Len(t, back, 2)

	files, err := Files(filepath.Dir(path))
	require.NoError(t, err)
	assert.Equal(t, []string{path}, files)
}

func TestTickerFromFilename(t *testing.T) {
	assert.Equal(t, "AAPL", TickerFromFilename("/data/AAPL___2010-06-08___2020-06-08.csv"))
	assert.Equal(t, "BRK.B", TickerFromFilename("BRK.B___2010-06-08___2020-06-08.csv"))
	assert.Equal(t, "MSFT", TickerFromFilename("MSFT.csv"))

	start := time.Date(2010, 6, 8, 0, 0, 0, 0, time.UTC)
	end := time.Date(2020, 6, 8, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "AAPL___2010-06-08___2020-06-08.csv", Filename("AAPL", start, end))
	assert.True(t, IsSummaryFile(Filename("Q-Matrix", start, end)))
}

func TestReadUniverse(t *testing.T) {
	got, err := ReadUniverse(strings.NewReader("Symbol\nAAPL\n\nMSFT\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, got)
}

func TestPathRows(t *testing.T) {
	friday := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	path := []markov.Step{
		{N: 1, Direction: markov.Up, Magnitude: 0.1, Price: 110},
		{N: 2, Direction: markov.Down, Magnitude: -0.5, Price: 55},
	}
	rows := PathRows(friday, path, 100)
	require.Len(t, rows, 2)

	assert.Equal(t, time.Monday, rows[0].Date.Weekday())
	assert.Equal(t, 100.0, rows[0].Open)
	assert.Equal(t, 110.0, rows[0].High)
	assert.Equal(t, 100.0, rows[0].Low)
	assert.InDelta(t, 0.1, rows[0].PctChange, 1e-12)
	assert.Equal(t, 110.0, rows[1].Open)
	assert.Equal(t, 55.0, rows[1].Low)
	assert.Equal(t, []float64{1, 0}, StateSums(rows))
}
