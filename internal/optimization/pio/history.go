package pio

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

// History is the append-only convergence log: the global best cost after
// every completed iteration, preceded by the initial sample.
type History struct {
	costs []float64
}

// NewHistory returns an empty history sized for capacity entries.
func NewHistory(capacity int) *History {
	if capacity < 0 {
		capacity = 0
	}
	return &History{costs: make([]float64, 0, capacity)}
}

// Append records the next entry.
func (h *History) Append(cost float64) {
	h.costs = append(h.costs, cost)
}

// Len returns the number of entries.
func (h *History) Len() int {
	return len(h.costs)
}

// Last returns the most recent entry.
func (h *History) Last() (float64, bool) {
	if len(h.costs) == 0 {
		return 0, false
	}
	return h.costs[len(h.costs)-1], true
}

// Snapshot returns a copy safe to hand to other goroutines.
func (h *History) Snapshot() []float64 {
	return append(make([]float64, 0, len(h.costs)), h.costs...)
}

// TraceEntry is one line of a JSONL trace.
type TraceEntry struct {
	Iteration int     `json:"iteration"`
	Cost      float64 `json:"cost"`
}

// WriteJSONL writes one TraceEntry per line.
func (h *History) WriteJSONL(w io.Writer) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	for i, c := range h.costs {
		if err := enc.Encode(TraceEntry{Iteration: i, Cost: c}); err != nil {
			return fmt.Errorf("failed to encode trace entry %d: %w", i, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to flush trace: %w", err)
	}
	return nil
}
