package history

import (
	"strings"
	"time"
)

// DateLayout is the calendar date format used by every CSV in the data directory.
const DateLayout = "2006-01-02"

// Date is a trading day that round-trips through CSV as YYYY-MM-DD. Timestamps with a time part
// are accepted on read.
type Date struct {
	time.Time
}

func NewDate(y int, m time.Month, d int) Date {
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func (d Date) MarshalCSV() (string, error) {
	if d.IsZero() {
		return "", nil
	}
	return d.Format(DateLayout), nil
}

func (d *Date) UnmarshalCSV(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		d.Time = time.Time{}
		return nil
	}
	for _, layout := range []string{DateLayout, "2006-01-02 15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time = t.UTC()
			return nil
		}
	}
	_, err := time.Parse(DateLayout, s)
	return err
}

func (d Date) String() string { return d.Format(DateLayout) }

// nextBusinessDay skips Saturdays and Sundays.
func nextBusinessDay(t time.Time) time.Time {
	t = t.AddDate(0, 0, 1)
	for t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		t = t.AddDate(0, 0, 1)
	}
	return t
}
