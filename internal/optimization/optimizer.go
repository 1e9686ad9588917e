package optimization

import (
	"context"
)

// Optimizer defines the interface for optimization algorithms
type Optimizer interface {
	// Optimize runs a fresh optimization to completion or until ctx is done
	Optimize(ctx context.Context) (*OptimizationResult, error)

	// GetBestSolution returns the best solution found so far
	GetBestSolution() *Solution

	// GetHistory returns the best cost recorded at each iteration
	GetHistory() []float64
}

// ObjectiveFunction defines the function to be minimized
type ObjectiveFunction func([]float64) float64

// Bounds holds the [min, max] search interval of each dimension
type Bounds [][2]float64

// Uniform returns dim copies of the interval [min, max].
func Uniform(dim int, min, max float64) Bounds {
	b := make(Bounds, dim)
	for i := range b {
		b[i] = [2]float64{min, max}
	}
	return b
}

// Contains reports whether every coordinate of x lies within its interval.
// A length mismatch is never contained.
func (b Bounds) Contains(x []float64) bool {
	if len(x) != len(b) {
		return false
	}
	for i, v := range x {
		if v < b[i][0] || v > b[i][1] {
			return false
		}
	}
	return true
}

// Clamp moves every coordinate of x into its interval in place.
func (b Bounds) Clamp(x []float64) {
	for i := range x {
		if x[i] < b[i][0] {
			x[i] = b[i][0]
		} else if x[i] > b[i][1] {
			x[i] = b[i][1]
		}
	}
}

// Solution represents a solution in the optimization space
type Solution struct {
	Parameters []float64 `json:"parameters"`
	Value      float64   `json:"value"`
}

// OptimizationResult contains the result of an optimization run
type OptimizationResult struct {
	BestSolution *Solution
	History      []float64
	Iterations   int
	Finished     bool
}
