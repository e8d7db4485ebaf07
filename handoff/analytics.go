package handoff

import (
	"sync"

	"github.com/hupe1980/planmesh/core"
)

// Route identifies a source/target handler pair.
type Route struct {
	Source string
	Target string
}

// History accumulates decisions for a conversation and answers aggregate
// questions about routing behavior. Safe for concurrent use.
type History struct {
	mu        sync.RWMutex
	decisions []core.HandoffDecision
}

// NewHistory constructs an empty decision history.
func NewHistory() *History {
	return &History{}
}

// Record appends a decision, stay decisions included.
func (h *History) Record(d core.HandoffDecision) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.decisions = append(h.decisions, d)
}

// Len returns the number of recorded decisions.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.decisions)
}

// Transfers returns only the decisions that changed handlers, in order.
func (h *History) Transfers() []core.HandoffDecision {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []core.HandoffDecision
	for _, d := range h.decisions {
		if d.Transferred() {
			out = append(out, d)
		}
	}
	return out
}

// TransferRate returns the fraction of decisions that resulted in a
// transfer, or 0 when no decisions were recorded.
func (h *History) TransferRate() float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.decisions) == 0 {
		return 0
	}
	transfers := 0
	for _, d := range h.decisions {
		if d.Transferred() {
			transfers++
		}
	}
	return float64(transfers) / float64(len(h.decisions))
}

// RouteCounts returns transfer counts per source/target pair.
func (h *History) RouteCounts() map[Route]int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	counts := make(map[Route]int)
	for _, d := range h.decisions {
		if d.Transferred() {
			counts[Route{Source: d.Source, Target: d.Target}]++
		}
	}
	return counts
}

// UrgentTransfers returns the number of transfers justified by urgency.
func (h *History) UrgentTransfers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, d := range h.decisions {
		if d.Transferred() && d.Justification.Urgent {
			n++
		}
	}
	return n
}
