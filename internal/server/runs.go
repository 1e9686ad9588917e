package server

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apierrors "github.com/copyleftdev/pigeon/internal/errors"
	"github.com/copyleftdev/pigeon/internal/optimization/pio"
	"github.com/copyleftdev/pigeon/internal/optimization/refine"
)

// Run is one engine held by the server. Every access to the engine goes
// through the run's mutex.
type Run struct {
	ID      string
	Seed    int64
	Created time.Time

	mu      sync.Mutex
	engine  *pio.Engine
	updated time.Time
	metrics *Metrics
}

// RunView is the JSON representation of a run.
type RunView struct {
	ID         string              `json:"id"`
	State      pio.State           `json:"state"`
	Seed       int64               `json:"seed"`
	Config     pio.Config          `json:"config"`
	Snapshot   pio.Snapshot        `json:"snapshot"`
	Created    time.Time           `json:"created"`
	Updated    time.Time           `json:"updated"`
	Error      *apierrors.Response `json:"error,omitempty"`
	Refinement *refine.Result      `json:"refinement,omitempty"`
}

// Step advances the run by up to count iterations and stops at the first
// error.
func (r *Run) Step(count int) (RunView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var err error
	for i := 0; i < count; i++ {
		phase := r.engine.State()
		start := time.Now()
		if _, err = r.engine.Step(); err != nil {
			break
		}
		r.metrics.StepDuration.Observe(time.Since(start).Seconds())
		r.metrics.Steps.WithLabelValues(phase.String()).Inc()
	}
	r.updated = time.Now()
	return r.view(err), err
}

// Complete runs the engine to completion and optionally polishes the final
// global best with a bounded local search. The engine is not changed by
// the polish.
func (r *Run) Complete(polish bool) (RunView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	before := r.engine.Iteration()
	start := time.Now()
	snap, err := r.engine.RunToCompletion()
	if steps := r.engine.Iteration() - before; steps > 0 {
		r.metrics.StepDuration.Observe(time.Since(start).Seconds() / float64(steps))
	}
	r.countPhases(before, r.engine.Iteration())
	r.updated = time.Now()

	view := r.view(err)
	if err != nil || !polish {
		return view, err
	}

	cfg := r.engine.Config()
	res, err := refine.Refine(r.engine.Objective().Eval, cfg.Bounds, snap.Best(), refine.Options{})
	if err != nil {
		return view, err
	}
	view.Refinement = &res
	return view, nil
}

func (r *Run) countPhases(from, to int) {
	limit := r.engine.Config().MaxIterations
	for i := from; i < to; i++ {
		r.metrics.Steps.WithLabelValues(pio.PhaseAt(i, limit).String()).Inc()
	}
}

// Reset discards the current run and starts a fresh one with the same
// configuration.
func (r *Run) Reset() (RunView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.engine.Reset()
	err := r.engine.Start()
	r.updated = time.Now()
	return r.view(err), err
}

// View returns the current state of the run.
func (r *Run) View() RunView {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.view(nil)
}

// History returns a copy of the convergence history.
func (r *Run) History() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.engine.ConvergenceHistory()
}

func (r *Run) view(err error) RunView {
	v := RunView{
		ID:       r.ID,
		State:    r.engine.State(),
		Seed:     r.Seed,
		Config:   r.engine.Config(),
		Snapshot: finiteSnapshot(r.engine.Snapshot()),
		Created:  r.Created,
		Updated:  r.updated,
	}
	if err != nil {
		resp := apierrors.NewResponse(err)
		v.Error = &resp
	}
	return v
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// finiteSnapshot drops the values JSON cannot carry. Only an aborted run
// can hold them: its agent list is omitted and the statistics are zeroed.
func finiteSnapshot(s pio.Snapshot) pio.Snapshot {
	ok := finite(s.MeanCost) && finite(s.CostStdDev)
	for _, a := range s.Agents {
		ok = ok && finite(a.Cost)
	}
	if ok {
		return s
	}
	s.Agents = nil
	s.BestIndex, s.BestAgentIndex = -1, -1
	s.MeanCost, s.CostStdDev = 0, 0
	return s
}

// RunManager holds the runs of the server up to a fixed limit.
type RunManager struct {
	mu      sync.RWMutex
	runs    map[string]*Run
	limit   int
	metrics *Metrics
}

// NewRunManager creates a manager holding at most limit runs.
func NewRunManager(limit int, metrics *Metrics) *RunManager {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &RunManager{
		runs:    make(map[string]*Run),
		limit:   limit,
		metrics: metrics,
	}
}

// Create configures and starts a new engine. Nothing is stored when either
// step fails.
func (m *RunManager) Create(cfg pio.Config, seed int64, logger *zap.Logger) (*Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.runs) >= m.limit {
		return nil, apierrors.ErrTooManyRuns
	}

	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	id := uuid.New().String()
	engine := pio.NewEngine(pio.NewSource(seed), pio.WithLogger(logger.With(zap.String("run_id", id))))
	if err := engine.Configure(cfg); err != nil {
		return nil, err
	}
	if err := engine.Start(); err != nil {
		return nil, err
	}

	now := time.Now()
	run := &Run{
		ID:      id,
		Seed:    seed,
		Created: now,
		engine:  engine,
		updated: now,
		metrics: m.metrics,
	}
	m.runs[id] = run
	m.metrics.RunsCreated.Inc()
	m.metrics.RunsActive.Set(float64(len(m.runs)))
	return run, nil
}

// Get returns the run with the given id.
func (m *RunManager) Get(id string) (*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	run, ok := m.runs[id]
	if !ok {
		return nil, apierrors.ErrRunNotFound
	}
	return run, nil
}

// Delete discards the run with the given id.
func (m *RunManager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.runs[id]; !ok {
		return apierrors.ErrRunNotFound
	}
	delete(m.runs, id)
	m.metrics.RunsActive.Set(float64(len(m.runs)))
	return nil
}

// Len returns the number of runs held.
func (m *RunManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.runs)
}

// Clear discards every run.
func (m *RunManager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = make(map[string]*Run)
	m.metrics.RunsActive.Set(0)
}
