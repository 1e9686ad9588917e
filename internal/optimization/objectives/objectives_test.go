package objectives

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/pigeon/internal/optimization"
)

func TestKnownValues(t *testing.T) {
	tests := []struct {
		name     string
		fn       string
		x        []float64
		expected float64
	}{
		{name: "sphere origin", fn: "sphere", x: []float64{0, 0}, expected: 0},
		{name: "sphere 3-4", fn: "sphere", x: []float64{3, 4}, expected: 25},
		{name: "rastrigin origin", fn: "rastrigin", x: []float64{0, 0}, expected: 0},
		{name: "rastrigin integer lattice", fn: "rastrigin", x: []float64{1, 2}, expected: 5},
		{name: "rosenbrock ones", fn: "rosenbrock", x: []float64{1, 1, 1}, expected: 0},
		{name: "rosenbrock origin", fn: "rosenbrock", x: []float64{0, 0}, expected: 1},
		{name: "ackley origin", fn: "ackley", x: []float64{0, 0}, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Get(tt.fn)
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, f.Evaluate(tt.x), 1e-12)
		})
	}
}

func TestSphereExact(t *testing.T) {
	assert.Equal(t, 0.0, Sphere([]float64{0, 0}))
	assert.Equal(t, 25.0, Sphere([]float64{3, 4}))
	assert.Equal(t, 0.0, Rastrigin([]float64{0, 0}))
}

func TestMinimumMatchesEvaluate(t *testing.T) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			f := MustGet(name)
			for dim := f.MinDimensions; dim <= 5; dim++ {
				m := f.Minimum(dim)
				require.Len(t, m.Parameters, dim)
				assert.InDelta(t, m.Value, f.Evaluate(m.Parameters), 1e-12)
				assert.True(t, f.Bounds(dim).Contains(m.Parameters))
			}
		})
	}
}

func TestMinimumIsLowerThanNeighbours(t *testing.T) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			f := MustGet(name)
			min := f.Minimum(2)
			for _, d := range []float64{-0.3, -0.01, 0.01, 0.3} {
				x := []float64{min.Parameters[0] + d, min.Parameters[1]}
				assert.Greater(t, f.Evaluate(x), min.Value)
			}
		})
	}
}

func TestBounds(t *testing.T) {
	b := MustGet("sphere").Bounds(3)
	require.Len(t, b, 3)
	for _, iv := range b {
		assert.Equal(t, [2]float64{-100, 100}, iv)
	}
}

func TestGetUnknown(t *testing.T) {
	f, err := Get("himmelblau")
	assert.Nil(t, f)
	require.Error(t, err)
	assert.True(t, errors.Is(err, optimization.ErrUnknownObjective))
	assert.Contains(t, err.Error(), "himmelblau")

	assert.Panics(t, func() { MustGet("himmelblau") })
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"ackley", "rastrigin", "rosenbrock", "sphere"}, Names())
}

func TestEvaluateFinite(t *testing.T) {
	for _, name := range Names() {
		f := MustGet(name)
		lo, hi := f.Domain[0], f.Domain[1]
		for _, x := range [][]float64{{lo, lo}, {hi, hi}, {lo, hi}} {
			v := f.Evaluate(x)
			assert.False(t, math.IsNaN(v) || math.IsInf(v, 0), "%s at %v", name, x)
		}
	}
}

func BenchmarkRastrigin(b *testing.B) {
	x := []float64{0.5, -1.25, 3.0, 2.2}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = Rastrigin(x)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	f := MustGet("sphere")
	f.Domain = [2]float64{0, 1}
	f.MinimumCost = 7
	f.Eval = func([]float64) float64 { return -1 }

	again := MustGet("sphere")
	assert.NotSame(t, f, again)
	assert.Equal(t, [2]float64{-100, 100}, again.Domain)
	assert.Equal(t, 0.0, again.MinimumCost)
	assert.Equal(t, 25.0, again.Evaluate([]float64{3, 4}))
	assert.Equal(t, optimization.Uniform(2, -100, 100), again.Bounds(2))
}
