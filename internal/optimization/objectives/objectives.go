// Package objectives is the read-only registry of benchmark functions the
// engine can minimize. See
// https://en.wikipedia.org/wiki/Test_functions_for_optimization.
package objectives

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/copyleftdev/pigeon/internal/optimization"
)

// Function is a registered benchmark objective. Get hands out copies, so
// changing a returned Function never reaches the registry or other engines.
type Function struct {
	// Name is the registry key.
	Name string
	// Eval computes the cost of a position. It is pure and does not allocate.
	Eval optimization.ObjectiveFunction
	// Domain is the default [min, max] interval applied to every dimension.
	Domain [2]float64
	// MinimumAt is the coordinate repeated in every dimension of the known
	// global minimum.
	MinimumAt float64
	// MinimumCost is the cost at the known global minimum.
	MinimumCost float64
	// MinDimensions is the smallest meaningful dimensionality.
	MinDimensions int
}

// Evaluate computes the cost of position.
func (f *Function) Evaluate(position []float64) float64 {
	return f.Eval(position)
}

// Bounds returns the default search bounds for dim dimensions.
func (f *Function) Bounds(dim int) optimization.Bounds {
	return optimization.Uniform(dim, f.Domain[0], f.Domain[1])
}

// Minimum returns the known global minimum in dim dimensions. It is used for
// display and tests only; the engine never reads it.
func (f *Function) Minimum(dim int) optimization.Solution {
	pos := make([]float64, dim)
	for i := range pos {
		pos[i] = f.MinimumAt
	}
	return optimization.Solution{Parameters: pos, Value: f.MinimumCost}
}

// Sphere computes Σ x_i².
func Sphere(x []float64) float64 {
	return floats.Dot(x, x)
}

// Rastrigin computes 10·D + Σ (x_i² − 10·cos(2π·x_i)).
func Rastrigin(x []float64) float64 {
	const a = 10.0
	sum := a * float64(len(x))
	for _, v := range x {
		sum += v*v - a*math.Cos(2*math.Pi*v)
	}
	return sum
}

// Rosenbrock computes Σ [100·(x_{i+1} − x_i²)² + (1 − x_i)²] over consecutive pairs.
func Rosenbrock(x []float64) float64 {
	sum := 0.0
	for i := 0; i+1 < len(x); i++ {
		a := x[i+1] - x[i]*x[i]
		b := 1 - x[i]
		sum += 100*a*a + b*b
	}
	return sum
}

// Ackley computes −20·exp(−0.2·√(Σx_i²/D)) − exp(Σcos(2π·x_i)/D) + 20 + e.
func Ackley(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	n := float64(len(x))
	var sq, cs float64
	for _, v := range x {
		sq += v * v
		cs += math.Cos(2 * math.Pi * v)
	}
	return -20*math.Exp(-0.2*math.Sqrt(sq/n)) - math.Exp(cs/n) + 20 + math.E
}

var registry = map[string]Function{
	"sphere": {
		Name:          "sphere",
		Eval:          Sphere,
		Domain:        [2]float64{-100, 100},
		MinDimensions: 1,
	},
	"rastrigin": {
		Name:          "rastrigin",
		Eval:          Rastrigin,
		Domain:        [2]float64{-5.12, 5.12},
		MinDimensions: 1,
	},
	"rosenbrock": {
		Name:          "rosenbrock",
		Eval:          Rosenbrock,
		Domain:        [2]float64{-5, 10},
		MinimumAt:     1,
		MinDimensions: 2,
	},
	"ackley": {
		Name:          "ackley",
		Eval:          Ackley,
		Domain:        [2]float64{-32.768, 32.768},
		MinDimensions: 1,
	},
}

// Get returns a copy of the function registered under name.
func Get(name string) (*Function, error) {
	f, ok := registry[name]
	if !ok {
		return nil, optimization.WrapErrorf(optimization.ErrUnknownObjective, "%q", name).
			WithComponent("objectives").
			WithOperation("get")
	}
	c := f
	return &c, nil
}

// MustGet is like Get but panics on an unknown name.
func MustGet(name string) *Function {
	f, err := Get(name)
	if err != nil {
		panic(err)
	}
	return f
}

// Names returns every registered name in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
