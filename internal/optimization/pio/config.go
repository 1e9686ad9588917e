package pio

import (
	"errors"
	"fmt"
	"math"

	"github.com/copyleftdev/pigeon/internal/optimization"
	"github.com/copyleftdev/pigeon/internal/optimization/objectives"
)

// Accepted parameter ranges.
const (
	MinPopulationSize = 10
	MaxPopulationSize = 200
	MinIterationLimit = 50
	MaxIterationLimit = 1000
	MinLandmarkFactor = 0.05
	MaxLandmarkFactor = 1.0
)

// Defaults applied to optional fields left at their zero value, or nil for
// the pointer fields of Config.
const (
	DefaultDimensions      = 2
	DefaultCognitiveWeight = 0.1
	DefaultLandmarkInertia = 0.7
	DefaultMaxVelocity     = 10.0
	DefaultVelocityRange   = 3.0
	DefaultRestitution     = 0.8
)

// LandmarkStrategy selects the point elites converge on in the Landmark phase.
type LandmarkStrategy string

const (
	// TowardGlobalBest pulls elites toward the best position seen in the run.
	TowardGlobalBest LandmarkStrategy = "global-best"
	// TowardEliteCentroid pulls elites toward the mean position of the elites.
	TowardEliteCentroid LandmarkStrategy = "elite-centroid"
)

// BoundaryPolicy decides what happens to the velocity of a coordinate that
// was clamped back onto its boundary.
type BoundaryPolicy string

const (
	// Reflect inverts the velocity component and damps it by the restitution.
	Reflect BoundaryPolicy = "reflect"
	// Absorb zeroes the velocity component.
	Absorb BoundaryPolicy = "absorb"
)

// Config holds the parameters of one run. The first block is required; the
// second falls back to the package defaults when left at zero.
type Config struct {
	PopulationSize int     `json:"population_size" yaml:"population_size"`
	MaxIterations  int     `json:"max_iterations" yaml:"max_iterations"`
	InertiaStart   float64 `json:"inertia_start" yaml:"inertia_start"`
	InertiaEnd     float64 `json:"inertia_end" yaml:"inertia_end"`
	LandmarkFactor float64 `json:"landmark_factor" yaml:"landmark_factor"`
	Objective      string  `json:"objective" yaml:"objective"`

	// Dimensions defaults to len(Bounds), or 2 without bounds.
	Dimensions int `json:"dimensions,omitempty" yaml:"dimensions,omitempty"`
	// Bounds defaults to the objective's domain in every dimension.
	Bounds          optimization.Bounds `json:"bounds,omitempty" yaml:"bounds,omitempty"`
	Strategy        LandmarkStrategy    `json:"strategy,omitempty" yaml:"strategy,omitempty"`
	Boundary        BoundaryPolicy      `json:"boundary,omitempty" yaml:"boundary,omitempty"`
	// CognitiveWeight, LandmarkInertia and Restitution accept an explicit 0;
	// only nil selects the default.
	CognitiveWeight *float64 `json:"cognitive_weight,omitempty" yaml:"cognitive_weight,omitempty"`
	LandmarkInertia *float64 `json:"landmark_inertia,omitempty" yaml:"landmark_inertia,omitempty"`
	MaxVelocity     float64  `json:"max_velocity,omitempty" yaml:"max_velocity,omitempty"`
	// VelocityRange bounds the initial velocity to [-VelocityRange, VelocityRange].
	VelocityRange float64 `json:"velocity_range,omitempty" yaml:"velocity_range,omitempty"`
	// Restitution is the damping factor of the Reflect policy. Reflect with
	// a restitution of 0 stops the coordinate on the boundary.
	Restitution *float64 `json:"restitution,omitempty" yaml:"restitution,omitempty"`
}

// Float returns a pointer to v, for the optional fields of Config.
func Float(v float64) *float64 {
	return &v
}

// floatOr returns a fresh pointer holding *p, or def when p is nil.
func floatOr(p *float64, def float64) *float64 {
	if p == nil {
		return Float(def)
	}
	return Float(*p)
}

// DefaultConfig returns a complete, valid configuration minimizing sphere.
func DefaultConfig() Config {
	return Config{
		PopulationSize:  30,
		MaxIterations:   200,
		InertiaStart:    0.9,
		InertiaEnd:      0.1,
		LandmarkFactor:  0.2,
		Objective:       "sphere",
		Dimensions:      DefaultDimensions,
		Strategy:        TowardGlobalBest,
		Boundary:        Reflect,
		CognitiveWeight: Float(DefaultCognitiveWeight),
		LandmarkInertia: Float(DefaultLandmarkInertia),
		MaxVelocity:     DefaultMaxVelocity,
		VelocityRange:   DefaultVelocityRange,
		Restitution:     Float(DefaultRestitution),
	}
}

// withDefaults fills the optional fields. Bounds and the pointer fields are
// copied so later edits by the caller cannot reach a running engine.
func (c Config) withDefaults(fn *objectives.Function) Config {
	if c.Dimensions == 0 {
		c.Dimensions = DefaultDimensions
		if len(c.Bounds) > 0 {
			c.Dimensions = len(c.Bounds)
		}
	}
	if c.Bounds == nil && fn != nil && c.Dimensions > 0 {
		c.Bounds = fn.Bounds(c.Dimensions)
	} else if c.Bounds != nil {
		c.Bounds = append(optimization.Bounds(nil), c.Bounds...)
	}
	if c.Strategy == "" {
		c.Strategy = TowardGlobalBest
	}
	if c.Boundary == "" {
		c.Boundary = Reflect
	}
	c.CognitiveWeight = floatOr(c.CognitiveWeight, DefaultCognitiveWeight)
	c.LandmarkInertia = floatOr(c.LandmarkInertia, DefaultLandmarkInertia)
	c.Restitution = floatOr(c.Restitution, DefaultRestitution)
	if c.MaxVelocity == 0 {
		c.MaxVelocity = DefaultMaxVelocity
	}
	if c.VelocityRange == 0 {
		c.VelocityRange = DefaultVelocityRange
	}
	return c
}

// clone returns a copy sharing no memory with c.
func (c Config) clone() Config {
	if c.Bounds != nil {
		c.Bounds = append(optimization.Bounds(nil), c.Bounds...)
	}
	if c.CognitiveWeight != nil {
		c.CognitiveWeight = Float(*c.CognitiveWeight)
	}
	if c.LandmarkInertia != nil {
		c.LandmarkInertia = Float(*c.LandmarkInertia)
	}
	if c.Restitution != nil {
		c.Restitution = Float(*c.Restitution)
	}
	return c
}

func inRange(v, lo, hi float64) bool {
	return v >= lo && v <= hi
}

// Validate checks every parameter and returns the completed configuration
// together with its objective. All violations are reported at once, joined;
// each wraps ErrInvalidConfiguration (or ErrUnknownObjective) and names its
// parameter.
func (c Config) Validate() (Config, *objectives.Function, error) {
	var errs []error
	invalid := func(param, format string, args ...interface{}) {
		errs = append(errs, optimization.InvalidParam(param, format, args...).
			WithComponent("pio").
			WithOperation("configure"))
	}

	fn, err := objectives.Get(c.Objective)
	if err != nil {
		e := optimization.WrapErrorf(optimization.ErrUnknownObjective, "%q is not registered", c.Objective).
			WithComponent("pio").
			WithOperation("configure")
		e.Param = "objective"
		errs = append(errs, e)
	}
	c = c.withDefaults(fn)

	if c.PopulationSize < MinPopulationSize || c.PopulationSize > MaxPopulationSize {
		invalid("populationSize", "%d outside [%d, %d]", c.PopulationSize, MinPopulationSize, MaxPopulationSize)
	}
	if c.MaxIterations < MinIterationLimit || c.MaxIterations > MaxIterationLimit {
		invalid("maxIterations", "%d outside [%d, %d]", c.MaxIterations, MinIterationLimit, MaxIterationLimit)
	}
	if !inRange(c.InertiaStart, 0, 1) {
		invalid("inertiaStart", "%v outside [0, 1]", c.InertiaStart)
	}
	if !inRange(c.InertiaEnd, 0, 1) {
		invalid("inertiaEnd", "%v outside [0, 1]", c.InertiaEnd)
	} else if c.InertiaEnd >= c.InertiaStart {
		invalid("inertiaEnd", "%v must be less than inertiaStart %v", c.InertiaEnd, c.InertiaStart)
	}
	if !inRange(c.LandmarkFactor, MinLandmarkFactor, MaxLandmarkFactor) {
		invalid("landmarkFactor", "%v outside [%v, %v]", c.LandmarkFactor, MinLandmarkFactor, MaxLandmarkFactor)
	}

	if c.Dimensions < 1 {
		invalid("dimensions", "%d must be at least 1", c.Dimensions)
	} else if fn != nil && c.Dimensions < fn.MinDimensions {
		invalid("dimensions", "%s needs at least %d dimensions, got %d", fn.Name, fn.MinDimensions, c.Dimensions)
	}
	if c.Bounds != nil {
		if len(c.Bounds) != c.Dimensions {
			invalid("bounds", "%d intervals for %d dimensions", len(c.Bounds), c.Dimensions)
		}
		for i, b := range c.Bounds {
			if math.IsNaN(b[0]) || math.IsInf(b[0], 0) || math.IsNaN(b[1]) || math.IsInf(b[1], 0) {
				invalid("bounds", "interval %d %v is not finite", i, b)
			} else if b[0] >= b[1] {
				invalid("bounds", "interval %d has min %v >= max %v", i, b[0], b[1])
			}
		}
	}

	switch c.Strategy {
	case TowardGlobalBest, TowardEliteCentroid:
	default:
		invalid("strategy", "unknown landmark strategy %q", c.Strategy)
	}
	switch c.Boundary {
	case Reflect, Absorb:
	default:
		invalid("boundary", "unknown boundary policy %q", c.Boundary)
	}

	if w := *c.CognitiveWeight; !(w >= 0) || math.IsInf(w, 0) {
		invalid("cognitiveWeight", "%v must be non-negative and finite", w)
	}
	if w := *c.LandmarkInertia; !(w >= 0) || math.IsInf(w, 0) {
		invalid("landmarkInertia", "%v must be non-negative and finite", w)
	}
	if !(c.MaxVelocity > 0) || math.IsInf(c.MaxVelocity, 0) {
		invalid("maxVelocity", "%v must be positive and finite", c.MaxVelocity)
	}
	if !(c.VelocityRange > 0) || math.IsInf(c.VelocityRange, 0) {
		invalid("velocityRange", "%v must be positive and finite", c.VelocityRange)
	}
	if !inRange(*c.Restitution, 0, 1) {
		invalid("restitution", "%v outside [0, 1]", *c.Restitution)
	}

	if len(errs) > 0 {
		return Config{}, nil, errors.Join(errs...)
	}
	return c, fn, nil
}

// String summarizes the configuration for logs.
func (c Config) String() string {
	return fmt.Sprintf("%s D=%d pop=%d iters=%d inertia=%v..%v landmark=%v strategy=%s",
		c.Objective, c.Dimensions, c.PopulationSize, c.MaxIterations,
		c.InertiaStart, c.InertiaEnd, c.LandmarkFactor, c.Strategy)
}
