package pio

import (
	"math"
	"math/rand"

	"github.com/copyleftdev/pigeon/internal/optimization"
)

// RandSource supplies uniform draws in [0, 1). *rand.Rand satisfies it.
type RandSource interface {
	Float64() float64
}

// NewSource returns a deterministic source for seed.
func NewSource(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// space is the per-run context every agent operation needs: where agents may
// go, how they are scored and where randomness comes from.
type space struct {
	bounds        optimization.Bounds
	eval          optimization.ObjectiveFunction
	rng           RandSource
	boundary      BoundaryPolicy
	restitution   float64
	maxVelocity   float64
	velocityRange float64
}

func newSpace(c Config, eval optimization.ObjectiveFunction, rng RandSource) *space {
	return &space{
		bounds:        c.Bounds,
		eval:          eval,
		rng:           rng,
		boundary:      c.Boundary,
		restitution:   *c.Restitution,
		maxVelocity:   c.MaxVelocity,
		velocityRange: c.VelocityRange,
	}
}

// evaluate scores x, failing on a non-finite cost.
func (s *space) evaluate(op string, x []float64) (float64, error) {
	cost := s.eval(x)
	if math.IsNaN(cost) || math.IsInf(cost, 0) {
		return cost, optimization.WrapErrorf(optimization.ErrNumericInstability, "cost %v at %v", cost, x).
			WithComponent("pio").
			WithOperation(op)
	}
	return cost, nil
}

// Agent is one candidate solution. Cost always reflects Position.
type Agent struct {
	Position     []float64
	Velocity     []float64
	Cost         float64
	BestPosition []float64
	BestCost     float64
}

// newAgent samples a position uniformly within the bounds and a velocity
// uniformly within [-velocityRange, velocityRange].
func newAgent(s *space) (*Agent, error) {
	d := len(s.bounds)
	a := &Agent{
		Position: make([]float64, d),
		Velocity: make([]float64, d),
	}
	for i, b := range s.bounds {
		a.Position[i] = b[0] + s.rng.Float64()*(b[1]-b[0])
		a.Velocity[i] = (2*s.rng.Float64() - 1) * s.velocityRange
	}

	cost, err := s.evaluate("initialize", a.Position)
	a.Cost = cost
	a.BestPosition = append([]float64(nil), a.Position...)
	a.BestCost = cost
	return a, err
}

// UpdatePersonalBest records the current position when it beats the
// personal best. Calling it twice in a row is a no-op.
func (a *Agent) UpdatePersonalBest() {
	if a.Cost < a.BestCost {
		copy(a.BestPosition, a.Position)
		a.BestCost = a.Cost
	}
}

// updateVelocity applies the operator of phase, pulling toward target. A
// fresh random weight is drawn for every dimension.
func (a *Agent) updateVelocity(phase State, target []float64, p Params, s *space) {
	inertia, pull := p.InertiaWeight, p.CognitiveWeight
	if phase == Landmark {
		inertia, pull = p.LandmarkInertia, p.LandmarkFactor
	}
	for i := range a.Velocity {
		v := inertia*a.Velocity[i] + pull*s.rng.Float64()*(target[i]-a.Position[i])
		a.Velocity[i] = math.Max(-s.maxVelocity, math.Min(s.maxVelocity, v))
	}
}

// move advances the agent by its velocity. Coordinates that leave their
// interval are clamped onto the boundary and their velocity bounces or is
// absorbed according to the boundary policy. Cost is recomputed last.
func (a *Agent) move(s *space) error {
	for i := range a.Position {
		x := a.Position[i] + a.Velocity[i]
		lo, hi := s.bounds[i][0], s.bounds[i][1]
		if x < lo || x > hi {
			x = math.Max(lo, math.Min(hi, x))
			if s.boundary == Absorb {
				a.Velocity[i] = 0
			} else {
				a.Velocity[i] *= -s.restitution
			}
		}
		a.Position[i] = x
	}

	cost, err := s.evaluate("move", a.Position)
	a.Cost = cost
	return err
}

// Clone returns a deep copy of the agent.
func (a *Agent) Clone() *Agent {
	return &Agent{
		Position:     append([]float64(nil), a.Position...),
		Velocity:     append([]float64(nil), a.Velocity...),
		Cost:         a.Cost,
		BestPosition: append([]float64(nil), a.BestPosition...),
		BestCost:     a.BestCost,
	}
}
