// Package refine polishes a PIO result with a bounded Nelder-Mead search.
package refine

import (
	"math"

	"gonum.org/v1/gonum/optimize"

	"github.com/copyleftdev/pigeon/internal/optimization"
)

const (
	DefaultMaxEvaluations = 2000
	DefaultTolerance      = 1e-10
	// DefaultSimplexScale sizes the initial simplex as a fraction of the
	// mean bound width.
	DefaultSimplexScale = 0.05
)

// Options tunes the local search. Zero values select the defaults.
type Options struct {
	MaxEvaluations int
	Tolerance      float64
	SimplexScale   float64
}

func (o Options) withDefaults() Options {
	if o.MaxEvaluations <= 0 {
		o.MaxEvaluations = DefaultMaxEvaluations
	}
	if o.Tolerance <= 0 {
		o.Tolerance = DefaultTolerance
	}
	if o.SimplexScale <= 0 {
		o.SimplexScale = DefaultSimplexScale
	}
	return o
}

// Result reports the starting point, the point returned and whether the
// search found something strictly better.
type Result struct {
	Start       optimization.Solution `json:"start"`
	Refined     optimization.Solution `json:"refined"`
	Improved    bool                  `json:"improved"`
	Evaluations int                   `json:"evaluations"`
}

// Refine minimizes fn from start without leaving bounds. Candidates are
// clamped into bounds before evaluation and non-finite costs count as +Inf.
// Refined equals Start unless a strictly lower cost was found.
func Refine(fn optimization.ObjectiveFunction, bounds optimization.Bounds, start optimization.Solution, opts Options) (Result, error) {
	if fn == nil {
		return Result{}, optimization.NewError("objective function is nil").
			WithComponent("refine").WithOperation("refine")
	}
	if len(start.Parameters) == 0 || len(start.Parameters) != len(bounds) {
		return Result{}, optimization.InvalidParam("bounds", "start has %d coordinates, bounds have %d",
			len(start.Parameters), len(bounds)).WithComponent("refine").WithOperation("refine")
	}
	opts = opts.withDefaults()

	res := Result{
		Start:   cloneSolution(start),
		Refined: cloneSolution(start),
	}

	scratch := make([]float64, len(bounds))
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			copy(scratch, x)
			bounds.Clamp(scratch)
			res.Evaluations++
			v := fn(scratch)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return math.Inf(1)
			}
			return v
		},
	}

	settings := &optimize.Settings{
		FuncEvaluations: opts.MaxEvaluations,
		Converger: &optimize.FunctionConverge{
			Absolute:   opts.Tolerance,
			Relative:   opts.Tolerance,
			Iterations: 100,
		},
	}

	method := &optimize.NelderMead{
		Reflection:  1.0,
		Expansion:   2.0,
		Contraction: 0.5,
		Shrink:      0.5,
		SimplexSize: opts.SimplexScale * meanWidth(bounds),
	}

	result, err := optimize.Minimize(problem, res.Start.Parameters, settings, method)
	if result == nil {
		if err == nil {
			return res, nil
		}
		return res, optimization.WrapError(err, "local search failed").
			WithComponent("refine").WithOperation("refine")
	}

	x := append([]float64(nil), result.X...)
	bounds.Clamp(x)
	v := fn(x)
	if v < start.Value {
		res.Refined = optimization.Solution{Parameters: x, Value: v}
		res.Improved = true
	}
	return res, nil
}

func meanWidth(bounds optimization.Bounds) float64 {
	var sum float64
	for _, b := range bounds {
		sum += b[1] - b[0]
	}
	return sum / float64(len(bounds))
}

func cloneSolution(s optimization.Solution) optimization.Solution {
	return optimization.Solution{
		Parameters: append([]float64(nil), s.Parameters...),
		Value:      s.Value,
	}
}
