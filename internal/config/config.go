package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/copyleftdev/pigeon/internal/optimization/pio"
)

type Config struct {
	Environment string `env:"ENV" envDefault:"development"`
	HTTP        struct {
		Port            int           `env:"HTTP_PORT" envDefault:"8080"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
		IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	}
	Logging struct {
		Level  string `env:"LOG_LEVEL" envDefault:"info"`
		Format string `env:"LOG_FORMAT" envDefault:"json"`
		Output string `env:"LOG_OUTPUT" envDefault:"stderr"`
	}
	Optimization struct {
		PopulationSize int     `env:"PIO_POPULATION_SIZE" envDefault:"30"`
		MaxIterations  int     `env:"PIO_MAX_ITERATIONS" envDefault:"200"`
		Dimensions     int     `env:"PIO_DIMENSIONS" envDefault:"2"`
		Objective      string  `env:"PIO_OBJECTIVE" envDefault:"sphere"`
		InertiaStart   float64 `env:"PIO_INERTIA_START" envDefault:"0.9"`
		InertiaEnd     float64 `env:"PIO_INERTIA_END" envDefault:"0.1"`
		LandmarkFactor float64 `env:"PIO_LANDMARK_FACTOR" envDefault:"0.2"`
		Strategy       string  `env:"PIO_STRATEGY" envDefault:"global-best"`
		Boundary       string  `env:"PIO_BOUNDARY" envDefault:"reflect"`
		// Seed 0 seeds each run from the clock.
		Seed int64 `env:"PIO_SEED" envDefault:"0"`
		// MaxRuns caps the runs the HTTP driver keeps in memory.
		MaxRuns int `env:"PIO_MAX_RUNS" envDefault:"64"`
	}
}

// Load reads the configuration from the process environment.
func Load() (*Config, error) {
	return load(env.Options{})
}

// LoadFrom reads the configuration from the given variables instead of the
// process environment.
func LoadFrom(environ map[string]string) (*Config, error) {
	return load(env.Options{Environment: environ})
}

func load(opts env.Options) (*Config, error) {
	cfg := &Config{}

	// Parse environment variables
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, err
	}

	if cfg.Optimization.MaxRuns < 1 {
		return nil, fmt.Errorf("PIO_MAX_RUNS must be positive, got %d", cfg.Optimization.MaxRuns)
	}
	if _, _, err := cfg.RunDefaults().Validate(); err != nil {
		return nil, errors.Join(errors.New("invalid PIO_* defaults"), err)
	}

	return cfg, nil
}

// RunDefaults converts the PIO_* settings into an engine configuration.
// Bounds are left empty so the objective's domain applies.
func (c *Config) RunDefaults() pio.Config {
	o := c.Optimization
	cfg := pio.DefaultConfig()
	cfg.PopulationSize = o.PopulationSize
	cfg.MaxIterations = o.MaxIterations
	cfg.Dimensions = o.Dimensions
	cfg.Objective = o.Objective
	cfg.InertiaStart = o.InertiaStart
	cfg.InertiaEnd = o.InertiaEnd
	cfg.LandmarkFactor = o.LandmarkFactor
	cfg.Strategy = pio.LandmarkStrategy(o.Strategy)
	cfg.Boundary = pio.BoundaryPolicy(o.Boundary)
	return cfg
}

// GetEnv returns the value of the environment variable or the default value
func GetEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// GetEnvAsInt returns the value of the environment variable as int or the default value
func GetEnvAsInt(key string, defaultValue int) int {
	valueStr := GetEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}
