package pio

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Population is the ordered set of agents of a run together with the
// global best bookkeeping.
type Population struct {
	Agents []*Agent

	// BestPosition and BestCost hold the lowest cost ever observed in the
	// run. BestCost never increases.
	BestPosition []float64
	BestCost     float64
}

// newPopulation creates size fresh agents. The global best starts at the
// best of them.
func newPopulation(size int, s *space) (*Population, error) {
	p := &Population{
		Agents:   make([]*Agent, 0, size),
		BestCost: math.Inf(1),
	}
	fresh, err := p.Replenish(size, s)
	p.Agents = append(p.Agents, fresh...)
	if err != nil {
		return p, err
	}

	if _, best := p.BestAgent(); best != nil {
		p.BestPosition = append([]float64(nil), best.Position...)
		p.BestCost = best.Cost
	}
	return p, nil
}

// Len returns the number of agents.
func (p *Population) Len() int {
	return len(p.Agents)
}

// BestAgent returns the agent with the lowest current cost and its index.
// Ties go to the leftmost agent. It returns -1, nil when empty.
func (p *Population) BestAgent() (int, *Agent) {
	idx := -1
	for i, a := range p.Agents {
		if idx < 0 || a.Cost < p.Agents[idx].Cost {
			idx = i
		}
	}
	if idx < 0 {
		return -1, nil
	}
	return idx, p.Agents[idx]
}

// bestPersonal returns the agent with the lowest personal best, leftmost on ties.
func (p *Population) bestPersonal() *Agent {
	var best *Agent
	for _, a := range p.Agents {
		if best == nil || a.BestCost < best.BestCost {
			best = a
		}
	}
	return best
}

// Ratchet lowers the global best to the best personal best in the
// population, if that is strictly lower. It reports whether it moved.
func (p *Population) Ratchet() bool {
	best := p.bestPersonal()
	if best == nil || !(best.BestCost < p.BestCost) {
		return false
	}
	p.BestPosition = append([]float64(nil), best.BestPosition...)
	p.BestCost = best.BestCost
	return true
}

// SortByCostAscending orders agents by current cost. Equal costs keep their
// relative order.
func (p *Population) SortByCostAscending() {
	sort.SliceStable(p.Agents, func(i, j int) bool {
		return p.Agents[i].Cost < p.Agents[j].Cost
	})
}

// SelectElites returns the first k agents in the current ordering, so it is
// meant to follow SortByCostAscending. The returned slice is a new slice.
func (p *Population) SelectElites(k int) []*Agent {
	if k < 0 {
		k = 0
	}
	if k > len(p.Agents) {
		k = len(p.Agents)
	}
	return append([]*Agent(nil), p.Agents[:k]...)
}

// Replenish creates targetSize - Len() fresh agents and returns them without
// adding them. Nothing is created when the population is already full.
func (p *Population) Replenish(targetSize int, s *space) ([]*Agent, error) {
	n := targetSize - len(p.Agents)
	if n <= 0 {
		return nil, nil
	}
	fresh := make([]*Agent, 0, n)
	for i := 0; i < n; i++ {
		a, err := newAgent(s)
		fresh = append(fresh, a)
		if err != nil {
			return fresh, err
		}
	}
	return fresh, nil
}

// centroid returns the mean position of agents, which must not be empty.
func centroid(agents []*Agent) []float64 {
	d := len(agents[0].Position)
	sum := mat.NewVecDense(d, nil)
	for _, a := range agents {
		sum.AddVec(sum, mat.NewVecDense(d, a.Position))
	}
	sum.ScaleVec(1/float64(len(agents)), sum)
	return sum.RawVector().Data
}
