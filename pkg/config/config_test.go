package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.Equal(t, 2500, c.Simulation.Steps)
	assert.Equal(t, uint64(42), c.Simulation.Seed)
	assert.Equal(t, 10000, c.Simulation.MaxDraws)
	assert.Equal(t, "none", c.Backend.Type)
	assert.Equal(t, 7, c.Data.Lags)
	assert.Equal(t, 10*time.Second, c.Server.ShutdownTimeout)
}

func TestParseOverridesDefaults(t *testing.T) {
	c, err := Parse([]byte("simulation:\n  steps: 10\nbackend:\n  type: clickhouse\n"))
	require.NoError(t, err)
	assert.Equal(t, 10, c.Simulation.Steps)
	assert.Equal(t, "clickhouse", c.Backend.Type)
	assert.Equal(t, 1000, c.Simulation.Trials)
}

func TestParseAcceptsKindAliases(t *testing.T) {
	c, err := Parse([]byte("simulation:\n  kind: levy\n"))
	require.NoError(t, err)
	assert.Equal(t, "levy", c.Simulation.Kind)

	_, err = Parse([]byte("simulation:\n  kind: cauchy\n"))
	assert.Error(t, err)
}

func TestParseRejectsInvalid(t *testing.T) {
	_, err := Parse([]byte("backend:\n  type: postgres\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("backend:\n  type: kafka\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("data:\n  start: \"2020-01-01\"\n  end: \"2019-01-01\"\n"))
	assert.Error(t, err)
}

func TestLoadWithEnv(t *testing.T) {
	t.Setenv("SIM_SEED", "7")
	t.Setenv("KAFKA_BROKERS", "a:9092,b:9092")
	t.Setenv("BACKEND", "kafka")

	c, err := LoadWithEnv(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, uint64(7), c.Simulation.Seed)
	assert.Equal(t, []string{"a:9092", "b:9092"}, c.Kafka.Brokers)
	assert.Equal(t, "kafka", c.Backend.Type)
}

func TestLoadRepositoryConfig(t *testing.T) {
	path := filepath.Join("..", "..", "config", "config.yaml")
	if _, err := os.Stat(path); err != nil {
		t.Skip("config/config.yaml not present")
	}
	c, err := Load(path)
	require.NoError(t, err)
	start, end := c.Period()
	assert.True(t, end.After(start))
}
