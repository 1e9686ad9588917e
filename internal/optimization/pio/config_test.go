package pio

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/pigeon/internal/optimization"
)

func TestDefaultConfigIsValid(t *testing.T) {
	c, fn, err := DefaultConfig().Validate()
	require.NoError(t, err)
	require.NotNil(t, fn)
	assert.Equal(t, "sphere", fn.Name)
	assert.Equal(t, optimization.Uniform(2, -100, 100), c.Bounds)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		params []string
	}{
		{"population too small", func(c *Config) { c.PopulationSize = 9 }, []string{"populationSize"}},
		{"population too large", func(c *Config) { c.PopulationSize = 201 }, []string{"populationSize"}},
		{"iterations too few", func(c *Config) { c.MaxIterations = 49 }, []string{"maxIterations"}},
		{"iterations too many", func(c *Config) { c.MaxIterations = 1001 }, []string{"maxIterations"}},
		{"inertia start above one", func(c *Config) { c.InertiaStart = 1.1 }, []string{"inertiaStart"}},
		{"inertia end negative", func(c *Config) { c.InertiaEnd = -0.1 }, []string{"inertiaEnd"}},
		{"inertia end above start", func(c *Config) { c.InertiaStart, c.InertiaEnd = 0.3, 0.5 }, []string{"inertiaEnd"}},
		{"inertia end equal to start", func(c *Config) { c.InertiaStart, c.InertiaEnd = 0.5, 0.5 }, []string{"inertiaEnd"}},
		{"inertia NaN", func(c *Config) { c.InertiaStart = math.NaN() }, []string{"inertiaStart"}},
		{"landmark factor too small", func(c *Config) { c.LandmarkFactor = 0.04 }, []string{"landmarkFactor"}},
		{"landmark factor too large", func(c *Config) { c.LandmarkFactor = 1.01 }, []string{"landmarkFactor"}},
		{"negative dimensions", func(c *Config) { c.Dimensions = -1; c.Bounds = nil }, []string{"dimensions"}},
		{"bounds length", func(c *Config) { c.Dimensions = 3; c.Bounds = optimization.Uniform(2, -1, 1) }, []string{"bounds"}},
		{"empty interval", func(c *Config) { c.Bounds = optimization.Bounds{{0, 1}, {2, 2}} }, []string{"bounds"}},
		{"infinite interval", func(c *Config) { c.Bounds = optimization.Bounds{{0, 1}, {0, math.Inf(1)}} }, []string{"bounds"}},
		{"strategy", func(c *Config) { c.Strategy = "nearest" }, []string{"strategy"}},
		{"boundary", func(c *Config) { c.Boundary = "wrap" }, []string{"boundary"}},
		{"cognitive weight", func(c *Config) { c.CognitiveWeight = Float(-1) }, []string{"cognitiveWeight"}},
		{"landmark inertia", func(c *Config) { c.LandmarkInertia = Float(-0.5) }, []string{"landmarkInertia"}},
		{"max velocity", func(c *Config) { c.MaxVelocity = -2 }, []string{"maxVelocity"}},
		{"velocity range", func(c *Config) { c.VelocityRange = math.Inf(1) }, []string{"velocityRange"}},
		{"restitution", func(c *Config) { c.Restitution = Float(1.5) }, []string{"restitution"}},
		{
			name: "several at once",
			mutate: func(c *Config) {
				c.PopulationSize = 0
				c.MaxIterations = 0
				c.LandmarkFactor = 0
			},
			params: []string{"populationSize", "maxIterations", "landmarkFactor"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.mutate(&c)
			_, fn, err := c.Validate()
			require.Error(t, err)
			assert.Nil(t, fn)
			assert.True(t, errors.Is(err, optimization.ErrInvalidConfiguration))
			assert.Equal(t, tt.params, optimization.Params(err))
			for _, p := range tt.params {
				assert.Contains(t, err.Error(), p)
			}
		})
	}
}

func TestValidateUnknownObjective(t *testing.T) {
	c := DefaultConfig()
	c.Objective = "eggholder"
	c.Bounds = nil
	_, _, err := c.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, optimization.ErrUnknownObjective))
	assert.False(t, errors.Is(err, optimization.ErrInvalidConfiguration))
	assert.Equal(t, []string{"objective"}, optimization.Params(err))
}

func TestValidateObjectiveDimensions(t *testing.T) {
	c := DefaultConfig()
	c.Objective = "rosenbrock"
	c.Dimensions = 1
	_, _, err := c.Validate()
	require.Error(t, err)
	assert.Equal(t, []string{"dimensions"}, optimization.Params(err))
}

func TestValidateAppliesDefaults(t *testing.T) {
	c := Config{
		PopulationSize: 20,
		MaxIterations:  100,
		InertiaStart:   0.8,
		InertiaEnd:     0.2,
		LandmarkFactor: 0.3,
		Objective:      "rastrigin",
	}
	got, _, err := c.Validate()
	require.NoError(t, err)
	assert.Equal(t, DefaultDimensions, got.Dimensions)
	assert.Equal(t, optimization.Uniform(2, -5.12, 5.12), got.Bounds)
	assert.Equal(t, TowardGlobalBest, got.Strategy)
	assert.Equal(t, Reflect, got.Boundary)
	assert.Equal(t, Float(DefaultCognitiveWeight), got.CognitiveWeight)
	assert.Equal(t, Float(DefaultLandmarkInertia), got.LandmarkInertia)
	assert.Equal(t, DefaultMaxVelocity, got.MaxVelocity)
	assert.Equal(t, DefaultVelocityRange, got.VelocityRange)
	assert.Equal(t, Float(DefaultRestitution), got.Restitution)
}

func TestValidateDimensionsFromBounds(t *testing.T) {
	c := DefaultConfig()
	c.Dimensions = 0
	c.Bounds = optimization.Uniform(4, -1, 1)
	got, _, err := c.Validate()
	require.NoError(t, err)
	assert.Equal(t, 4, got.Dimensions)

	// The validated configuration owns its bounds.
	c.Bounds[0][0] = -50
	assert.Equal(t, -1.0, got.Bounds[0][0])
}

func TestValidateKeepsExplicitZero(t *testing.T) {
	c := DefaultConfig()
	c.CognitiveWeight = Float(0)
	c.LandmarkInertia = Float(0)
	c.Restitution = Float(0)

	got, _, err := c.Validate()
	require.NoError(t, err)
	assert.Equal(t, 0.0, *got.CognitiveWeight)
	assert.Equal(t, 0.0, *got.LandmarkInertia)
	assert.Equal(t, 0.0, *got.Restitution)

	// The validated configuration does not share the caller's pointers.
	*c.Restitution = 0.5
	assert.Equal(t, 0.0, *got.Restitution)

	e := NewEngine(NewSource(1))
	require.NoError(t, e.Configure(got))
	out := e.Config()
	*out.Restitution = 0.9
	assert.Equal(t, 0.0, *e.Config().Restitution)
}

func TestValidateNilOptionalsGetDefaults(t *testing.T) {
	c := DefaultConfig()
	c.CognitiveWeight, c.LandmarkInertia, c.Restitution = nil, nil, nil

	got, _, err := c.Validate()
	require.NoError(t, err)
	assert.Equal(t, DefaultCognitiveWeight, *got.CognitiveWeight)
	assert.Equal(t, DefaultLandmarkInertia, *got.LandmarkInertia)
	assert.Equal(t, DefaultRestitution, *got.Restitution)
}
