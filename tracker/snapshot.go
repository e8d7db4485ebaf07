package tracker

import (
	"encoding/json"
	"fmt"

	"github.com/hupe1980/planmesh/core"
)

// snapshotState is the wire form of a Tracker for snapshot/restore. JSON is
// the encoding of record; round-tripping must reproduce a behaviorally
// identical registry.
type snapshotState struct {
	Entities  []*core.ContextualEntity   `json:"entities"`
	Order     []string                   `json:"order"`
	Pending   []core.ReferenceResolution `json:"pending,omitempty"`
	Bindings  map[int]map[string]string  `json:"bindings,omitempty"`
	LastFocus string                     `json:"last_focus,omitempty"`
}

// Snapshot serializes the whole registry state for persistence handoff to an
// external store.
func (t *Tracker) Snapshot() ([]byte, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	state := snapshotState{
		Entities:  make([]*core.ContextualEntity, 0, len(t.order)),
		Order:     append([]string(nil), t.order...),
		Pending:   append([]core.ReferenceResolution(nil), t.pending...),
		Bindings:  t.bindings,
		LastFocus: t.lastFocus,
	}
	for _, id := range t.order {
		state.Entities = append(state.Entities, t.entities[id])
	}

	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot tracker: %w", err)
	}
	return data, nil
}

// Restore replaces the registry with previously snapshotted state. Options
// (thresholds, decay) are construction-time configuration and are not part
// of the snapshot.
func (t *Tracker) Restore(data []byte) error {
	var state snapshotState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("failed to restore tracker: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.entities = make(map[string]*core.ContextualEntity, len(state.Entities))
	for _, e := range state.Entities {
		if e.Attributes == nil {
			e.Attributes = map[string]any{}
		}
		t.entities[e.ID] = e
	}
	t.order = state.Order
	if t.order == nil {
		t.order = []string{}
	}
	t.pending = state.Pending
	t.bindings = state.Bindings
	if t.bindings == nil {
		t.bindings = map[int]map[string]string{}
	}
	t.lastFocus = state.LastFocus
	return nil
}
