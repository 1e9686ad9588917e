package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/pigeon/internal/optimization/pio"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, 30*time.Second, cfg.HTTP.ShutdownTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 64, cfg.Optimization.MaxRuns)
	assert.Equal(t, int64(0), cfg.Optimization.Seed)

	assert.Equal(t, pio.DefaultConfig(), cfg.RunDefaults())
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"HTTP_PORT":           "9090",
		"LOG_FORMAT":          "text",
		"PIO_POPULATION_SIZE": "50",
		"PIO_MAX_ITERATIONS":  "120",
		"PIO_DIMENSIONS":      "5",
		"PIO_OBJECTIVE":       "ackley",
		"PIO_STRATEGY":        "elite-centroid",
		"PIO_BOUNDARY":        "absorb",
		"PIO_SEED":            "42",
	})
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, int64(42), cfg.Optimization.Seed)

	run := cfg.RunDefaults()
	assert.Equal(t, 50, run.PopulationSize)
	assert.Equal(t, 120, run.MaxIterations)
	assert.Equal(t, 5, run.Dimensions)
	assert.Equal(t, "ackley", run.Objective)
	assert.Equal(t, pio.TowardEliteCentroid, run.Strategy)
	assert.Equal(t, pio.Absorb, run.Boundary)
	assert.Nil(t, run.Bounds)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := map[string]map[string]string{
		"not a number":      {"PIO_POPULATION_SIZE": "many"},
		"population":        {"PIO_POPULATION_SIZE": "5"},
		"unknown objective": {"PIO_OBJECTIVE": "eggholder"},
		"strategy":          {"PIO_STRATEGY": "random"},
		"max runs":          {"PIO_MAX_RUNS": "0"},
		"duration":          {"HTTP_READ_TIMEOUT": "soon"},
	}
	for name, environ := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadFrom(environ)
			assert.Error(t, err)
		})
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("PIGEON_TEST_VALUE", "17")
	assert.Equal(t, "17", GetEnv("PIGEON_TEST_VALUE", "x"))
	assert.Equal(t, 17, GetEnvAsInt("PIGEON_TEST_VALUE", 3))
	assert.Equal(t, "x", GetEnv("PIGEON_TEST_MISSING", "x"))
	assert.Equal(t, 3, GetEnvAsInt("PIGEON_TEST_MISSING", 3))
}
