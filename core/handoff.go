package core

import "time"

// Justification captures the inputs that produced a handoff decision so
// analytics can reconstruct why control moved (or stayed).
type Justification struct {
	Complexity   float64    `json:"complexity"`
	Urgent       bool       `json:"urgent"`
	DominantType EntityType `json:"dominant_type,omitempty"`
	Intent       string     `json:"intent,omitempty"`
	Reason       string     `json:"reason"`
}

// ContextSnapshot is the subset of entities handed to a target handler on
// transfer: the entities touched in the triggering turn plus their one-hop
// neighbors, copied so the handler cannot mutate tracker state.
type ContextSnapshot struct {
	TurnIndex int                `json:"turn_index"`
	Entities  []ContextualEntity `json:"entities"`
}

// EntityIDs returns the ids contained in the snapshot.
func (s ContextSnapshot) EntityIDs() []string {
	ids := make([]string, 0, len(s.Entities))
	for _, e := range s.Entities {
		ids = append(ids, e.ID)
	}
	return ids
}

// HandoffDecision records one per-turn routing decision. Target may equal
// Source (a stay decision); those are logged too, for analytics.
type HandoffDecision struct {
	ID            string          `json:"id"`
	Source        string          `json:"source"`
	Target        string          `json:"target"`
	TurnIndex     int             `json:"turn_index"`
	Justification Justification   `json:"justification"`
	Snapshot      ContextSnapshot `json:"snapshot"`
	Timestamp     time.Time       `json:"timestamp"`
}

// Transferred reports whether the decision moves control to a new handler.
func (d HandoffDecision) Transferred() bool { return d.Source != d.Target }
