// Package pio implements Pigeon-Inspired Optimization: a population of
// agents first follows the global best under an annealed inertia
// (Map-and-Compass), then keeps only its better half, converges it on a
// landmark and refills the rest at random (Landmark).
//
// An Engine is driven one Step at a time by its caller and holds no
// goroutines or other resources between steps. It is not safe for
// concurrent use.
package pio

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/copyleftdev/pigeon/internal/optimization"
	"github.com/copyleftdev/pigeon/internal/optimization/objectives"
)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// Engine owns every piece of mutable state of a run.
type Engine struct {
	rng    RandSource
	logger *zap.Logger

	cfg        Config
	objective  *objectives.Function
	configured bool

	// Run state, rebuilt by Start and cleared by Reset.
	started   bool
	space     *space
	pop       *Population
	history   *History
	iteration int
	params    Params
	fault     error
}

var _ optimization.Optimizer = (*Engine)(nil)

// NewEngine creates an unconfigured engine drawing from rng. A nil rng is
// replaced by a source seeded from the clock.
func NewEngine(rng RandSource, opts ...Option) *Engine {
	if rng == nil {
		rng = NewSource(time.Now().UnixNano())
	}
	e := &Engine{
		rng:     rng,
		logger:  zap.NewNop(),
		history: NewHistory(0),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func lifecycleError(op string, sentinel error, msg string) error {
	return optimization.WrapError(sentinel, msg).WithComponent("pio").WithOperation(op)
}

// Configure validates cfg and, if it is valid, discards any previous run and
// adopts it. An invalid cfg leaves the engine exactly as it was.
func (e *Engine) Configure(cfg Config) error {
	c, fn, err := cfg.Validate()
	if err != nil {
		e.logger.Warn("rejected configuration", zap.Error(err))
		return err
	}

	e.cfg = c
	e.objective = fn
	e.configured = true
	e.clearRun()

	e.logger.Debug("configured", zap.Stringer("config", c))
	return nil
}

// Config returns the active configuration with defaults applied.
func (e *Engine) Config() Config {
	return e.cfg.clone()
}

// Objective returns the configured objective, or nil.
func (e *Engine) Objective() *objectives.Function {
	return e.objective
}

// Start begins a fresh run: new agents, iteration 0 and a history holding
// the initial best cost.
func (e *Engine) Start() error {
	if !e.configured {
		return lifecycleError("start", optimization.ErrNotConfigured, "call Configure first")
	}
	e.clearRun()

	e.space = newSpace(e.cfg, e.objective.Eval, e.rng)
	e.params = Params{
		InertiaWeight:   e.cfg.InertiaStart,
		CognitiveWeight: *e.cfg.CognitiveWeight,
		LandmarkInertia: *e.cfg.LandmarkInertia,
		LandmarkFactor:  e.cfg.LandmarkFactor,
	}
	e.started = true

	pop, err := newPopulation(e.cfg.PopulationSize, e.space)
	e.pop = pop
	if err != nil {
		e.abort(err)
		return err
	}
	e.history.Append(e.pop.BestCost)

	e.logger.Info("run started",
		zap.String("objective", e.cfg.Objective),
		zap.Int("population", e.pop.Len()),
		zap.Int("max_iterations", e.cfg.MaxIterations),
		zap.Float64("initial_best", e.pop.BestCost))
	return nil
}

// State reports where the engine is in its lifecycle.
func (e *Engine) State() State {
	switch {
	case !e.configured:
		return Unconfigured
	case e.fault != nil:
		return Aborted
	case !e.started:
		return Configured
	default:
		return PhaseAt(e.iteration, e.cfg.MaxIterations)
	}
}

// Iteration returns the number of completed steps.
func (e *Engine) Iteration() int {
	return e.iteration
}

// Step executes one iteration and returns the resulting snapshot.
//
// Calling Step before Start returns ErrNotStarted, after the last iteration
// ErrRunFinished, and after a numeric fault that same fault again.
func (e *Engine) Step() (Snapshot, error) {
	phase := e.State()
	switch phase {
	case Unconfigured, Configured:
		return e.snapshot(), lifecycleError("step", optimization.ErrNotStarted, "call Start first")
	case Aborted:
		return e.snapshot(), e.fault
	case Finished:
		return e.snapshot(), lifecycleError("step", optimization.ErrRunFinished, "no iterations left")
	}

	e.pop.Ratchet()

	var err error
	if phase == MapAndCompass {
		err = e.mapAndCompass()
	} else {
		err = e.landmark()
	}
	if err != nil {
		e.abort(err)
		return e.snapshot(), err
	}

	e.pop.Ratchet()
	e.history.Append(e.pop.BestCost)
	e.iteration++

	next := e.State()
	if e.logger.Core().Enabled(zap.DebugLevel) {
		e.logger.Debug("step",
			zap.Int("iteration", e.iteration),
			zap.Stringer("phase", phase),
			zap.Float64("best_cost", e.pop.BestCost),
			zap.Float64("inertia", e.params.InertiaWeight))
	}
	if next != phase {
		e.logger.Info("phase changed",
			zap.Stringer("from", phase),
			zap.Stringer("to", next),
			zap.Int("iteration", e.iteration),
			zap.Float64("best_cost", e.pop.BestCost))
	}
	return e.snapshot(), nil
}

// mapAndCompass anneals the inertia linearly from InertiaStart toward
// InertiaEnd over the first half of the run and moves every agent toward
// the global best.
func (e *Engine) mapAndCompass() error {
	half := float64(e.cfg.MaxIterations) / 2
	start, end := e.cfg.InertiaStart, e.cfg.InertiaEnd
	e.params.InertiaWeight = start - (start-end)*(float64(e.iteration)/half)

	target := e.pop.BestPosition
	for _, a := range e.pop.Agents {
		a.updateVelocity(MapAndCompass, target, e.params, e.space)
		if err := a.move(e.space); err != nil {
			return err
		}
		a.UpdatePersonalBest()
	}
	return nil
}

// landmark keeps the better half of the population, moves it toward the
// landmark and refills the population with fresh agents.
func (e *Engine) landmark() error {
	e.pop.SortByCostAscending()
	elites := e.pop.SelectElites(e.cfg.PopulationSize / 2)

	target := e.pop.BestPosition
	if e.cfg.Strategy == TowardEliteCentroid && len(elites) > 0 {
		target = centroid(elites)
	}

	for _, a := range elites {
		a.updateVelocity(Landmark, target, e.params, e.space)
		if err := a.move(e.space); err != nil {
			return err
		}
		a.UpdatePersonalBest()
	}

	e.pop.Agents = elites
	fresh, err := e.pop.Replenish(e.cfg.PopulationSize, e.space)
	e.pop.Agents = append(e.pop.Agents, fresh...)
	return err
}

// RunToCompletion steps until the run is finished and returns the final
// snapshot. It behaves exactly like calling Step repeatedly.
func (e *Engine) RunToCompletion() (Snapshot, error) {
	if !e.State().Running() && e.State() != Finished {
		return e.Step()
	}
	snap := e.snapshot()
	for e.State().Running() {
		var err error
		snap, err = e.Step()
		if err != nil {
			return snap, err
		}
	}
	e.logFinished()
	return snap, nil
}

func (e *Engine) logFinished() {
	e.logger.Info("run finished",
		zap.Int("iterations", e.iteration),
		zap.Float64("best_cost", e.pop.BestCost),
		zap.Float64s("best_position", e.pop.BestPosition))
}

// Snapshot returns the current snapshot without stepping.
func (e *Engine) Snapshot() Snapshot {
	return e.snapshot()
}

// ConvergenceHistory returns a copy of the history of the current run.
func (e *Engine) ConvergenceHistory() []float64 {
	return e.history.Snapshot()
}

// History returns the convergence recorder of the current run. Callers must
// not append to it.
func (e *Engine) History() *History {
	return e.history
}

// Reset discards the current run. The configuration is kept.
func (e *Engine) Reset() {
	e.clearRun()
	e.logger.Debug("reset")
}

func (e *Engine) clearRun() {
	e.started = false
	e.space = nil
	e.pop = nil
	e.history = NewHistory(e.cfg.MaxIterations + 1)
	e.iteration = 0
	e.params = Params{}
	e.fault = nil
}

func (e *Engine) abort(err error) {
	e.fault = err
	e.logger.Error("run aborted", zap.Int("iteration", e.iteration), zap.Error(err))
}

// Optimize starts a fresh run and steps it to completion, checking ctx
// between steps. On cancellation it returns ctx.Err(); the partial run stays
// inspectable through Snapshot.
func (e *Engine) Optimize(ctx context.Context) (*optimization.OptimizationResult, error) {
	if err := e.Start(); err != nil {
		return nil, err
	}
	for e.State().Running() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if _, err := e.Step(); err != nil {
			return nil, err
		}
	}
	e.logFinished()

	return &optimization.OptimizationResult{
		BestSolution: e.GetBestSolution(),
		History:      e.ConvergenceHistory(),
		Iterations:   e.iteration,
		Finished:     e.State() == Finished,
	}, nil
}

// GetBestSolution returns the global best of the current run, or nil before
// Start.
func (e *Engine) GetBestSolution() *optimization.Solution {
	if e.pop == nil || e.pop.BestPosition == nil {
		return nil
	}
	return &optimization.Solution{
		Parameters: append([]float64(nil), e.pop.BestPosition...),
		Value:      e.pop.BestCost,
	}
}

// GetHistory is ConvergenceHistory under the Optimizer interface.
func (e *Engine) GetHistory() []float64 {
	return e.ConvergenceHistory()
}
