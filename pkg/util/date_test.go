package util

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTime(t *testing.T) {
	got, ok := ParseTime("2024-10-10T10:10:10Z")
	require.True(t, ok)
	assert.Equal(t, "2024-10-10T10:10:10Z", got.UTC().Format(time.RFC3339))

	got, ok = ParseTime("2020-06-08")
	require.True(t, ok)
	assert.Equal(t, time.Date(2020, 6, 8, 0, 0, 0, 0, time.UTC), got)

	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok = ParseTime(strconv.FormatInt(ts, 10))
	require.True(t, ok)
	assert.Equal(t, ts, got.Unix())

	_, ok = ParseTime("yesterday")
	assert.False(t, ok)
}

func TestDefaults(t *testing.T) {
	def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	assert.True(t, ParseTimeDefault("", def).Equal(def))
	assert.Equal(t, 7, ParseIntDefault("x", 7))
	assert.Equal(t, 12, ParseIntDefault("12", 7))
	assert.Equal(t, 10, ClampInt(50, 1, 10))
	assert.Equal(t, 1, ClampInt(-5, 1, 10))
}
