package pio

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/copyleftdev/pigeon/internal/optimization"
)

// Params is the parameter set applied by the most recent step.
type Params struct {
	// InertiaWeight is the annealed Map-and-Compass inertia.
	InertiaWeight   float64 `json:"inertia_weight"`
	CognitiveWeight float64 `json:"cognitive_weight"`
	LandmarkInertia float64 `json:"landmark_inertia"`
	LandmarkFactor  float64 `json:"landmark_factor"`
}

// AgentView is a read-only copy of one agent.
type AgentView struct {
	Position     []float64 `json:"position"`
	Cost         float64   `json:"cost"`
	IsGlobalBest bool      `json:"is_global_best"`
}

// Snapshot is an immutable picture of the engine after a step. It shares no
// memory with the engine.
type Snapshot struct {
	// Iteration counts completed steps.
	Iteration          int       `json:"iteration"`
	MaxIterations      int       `json:"max_iterations"`
	Phase              State     `json:"phase"`
	GlobalBestCost     float64   `json:"global_best_cost"`
	GlobalBestPosition []float64 `json:"global_best_position"`
	// BestIndex is the index in Agents of the first agent sitting exactly on
	// the global best, or -1. Once the agents move past the best they have
	// found it usually stays -1, since the global best is a past position.
	BestIndex int `json:"best_index"`
	// BestAgentIndex is the index of the agent with the lowest current cost,
	// leftmost on ties, or -1 without agents.
	BestAgentIndex int         `json:"best_agent_index"`
	Agents         []AgentView `json:"agents"`
	Params         Params      `json:"params"`
	MeanCost       float64     `json:"mean_cost"`
	CostStdDev     float64     `json:"cost_std_dev"`
}

// Best returns the global best as a Solution.
func (s Snapshot) Best() optimization.Solution {
	return optimization.Solution{Parameters: s.GlobalBestPosition, Value: s.GlobalBestCost}
}

func (e *Engine) snapshot() Snapshot {
	s := Snapshot{
		Iteration:      e.iteration,
		MaxIterations:  e.cfg.MaxIterations,
		Phase:          e.State(),
		BestIndex:      -1,
		BestAgentIndex: -1,
		Params:         e.params,
	}
	if e.pop == nil {
		return s
	}

	s.BestAgentIndex, _ = e.pop.BestAgent()
	s.GlobalBestCost = e.pop.BestCost
	s.GlobalBestPosition = append([]float64(nil), e.pop.BestPosition...)
	s.Agents = make([]AgentView, len(e.pop.Agents))
	costs := make([]float64, len(e.pop.Agents))
	for i, a := range e.pop.Agents {
		onBest := a.Cost == e.pop.BestCost && floats.Equal(a.Position, e.pop.BestPosition)
		s.Agents[i] = AgentView{
			Position:     append([]float64(nil), a.Position...),
			Cost:         a.Cost,
			IsGlobalBest: onBest,
		}
		if onBest && s.BestIndex < 0 {
			s.BestIndex = i
		}
		costs[i] = a.Cost
	}
	if len(costs) > 1 {
		s.MeanCost, s.CostStdDev = stat.MeanStdDev(costs, nil)
	}
	return s
}
