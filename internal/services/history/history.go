// Package history reads, derives and writes the daily price series used to calibrate and
// compare simulations.
package history

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"NoisyMarket/internal/services/markov"
)

var ErrTooShort = errors.New("history: need at least two bars")

// Bar is one raw OHLCV observation.
type Bar struct {
	Date   Date    `csv:"Date"`
	Open   float64 `csv:"Open"`
	High   float64 `csv:"High"`
	Low    float64 `csv:"Low"`
	Close  float64 `csv:"Close"`
	Volume float64 `csv:"Volume"`
}

// Row is a bar with its day-over-day change columns.
type Row struct {
	Date      Date    `csv:"Date"`
	Open      float64 `csv:"Open"`
	High      float64 `csv:"High"`
	Low       float64 `csv:"Low"`
	Close     float64 `csv:"Close"`
	Volume    float64 `csv:"Volume"`
	Change    float64 `csv:"Change"`
	PctChange float64 `csv:"%Change"`
	StateSum  float64 `csv:"State Sum"`
}

// Derive computes Change, %Change and the running sign sum. The first bar only seeds the
// previous close and is dropped.
func Derive(bars []Bar) ([]Row, error) {
	if len(bars) < 2 {
		return nil, ErrTooShort
	}
	rows := make([]Row, 0, len(bars)-1)
	var state float64
	for i := 1; i < len(bars); i++ {
		prev := bars[i-1].Close
		if !(prev > 0) {
			return nil, fmt.Errorf("history: non-positive close %g on %s", prev, bars[i-1].Date)
		}
		b := bars[i]
		change := b.Close - prev
		pct := change / prev
		state += sign(pct)
		rows = append(rows, Row{
			Date:      b.Date,
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
			Change:    change,
			PctChange: pct,
			StateSum:  state,
		})
	}
	return rows, nil
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}

func ReadBars(r io.Reader) ([]Bar, error) {
	var bars []Bar
	if err := gocsv.Unmarshal(r, &bars); err != nil {
		return nil, fmt.Errorf("history: read bars: %w", err)
	}
	return bars, nil
}

func ReadRows(r io.Reader) ([]Row, error) {
	var rows []Row
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("history: read rows: %w", err)
	}
	return rows, nil
}

func WriteRows(w io.Writer, rows []Row) error {
	return gocsv.Marshal(&rows, w)
}

func ReadRowsFile(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadRows(f)
}

func WriteRowsFile(path string, rows []Row) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteRows(f, rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// PctChanges extracts the %Change column.
func PctChanges(rows []Row) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = r.PctChange
	}
	return out
}

// StateSums extracts the State Sum column.
func StateSums(rows []Row) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = r.StateSum
	}
	return out
}

// TickerFromFilename returns the symbol of a SYMBOL___start___end.csv file.
func TickerFromFilename(name string) string {
	base := filepath.Base(name)
	if i := strings.IndexByte(base, '_'); i >= 0 {
		return base[:i]
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Filename is the inverse of TickerFromFilename.
func Filename(symbol string, start, end time.Time) string {
	return fmt.Sprintf("%s___%s___%s.csv", symbol, start.Format(DateLayout), end.Format(DateLayout))
}

type constituent struct {
	Symbol string `csv:"Symbol"`
}

// ReadUniverse returns the symbols listed in a CSV with a Symbol column, skipping blanks.
func ReadUniverse(r io.Reader) ([]string, error) {
	var list []constituent
	if err := gocsv.Unmarshal(r, &list); err != nil {
		return nil, fmt.Errorf("history: read universe: %w", err)
	}
	out := make([]string, 0, len(list))
	for _, c := range list {
		if s := strings.TrimSpace(c.Symbol); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

// PathRows lays a simulated path out as daily rows starting on the first business day after
// start, so simulated and observed series share one format.
func PathRows(start time.Time, path []markov.Step, initialPrice float64) []Row {
	rows := make([]Row, 0, len(path))
	day := start
	prev := initialPrice
	var state float64
	for _, st := range path {
		day = nextBusinessDay(day)
		change := st.Price - prev
		pct := 0.0
		if prev > 0 {
			pct = change / prev
		}
		state += sign(pct)
		rows = append(rows, Row{
			Date:      Date{day},
			Open:      prev,
			High:      math.Max(prev, st.Price),
			Low:       math.Min(prev, st.Price),
			Close:     st.Price,
			Change:    change,
			PctChange: pct,
			StateSum:  state,
		})
		prev = st.Price
	}
	return rows
}

// Files lists the history CSVs in dir, ignoring the summary files written next to them.
func Files(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || filepath.Ext(name) != ".csv" || IsSummaryFile(name) {
			continue
		}
		out = append(out, filepath.Join(dir, name))
	}
	return out, nil
}

// IsSummaryFile reports whether name is one of the calibration outputs.
func IsSummaryFile(name string) bool {
	switch TickerFromFilename(name) {
	case "Levy-Stable", "pacf", "Q-Matrix":
		return true
	}
	return false
}
