// Package handler manages the set of downstream operation handlers and the
// dispatch path to them: registry, capability descriptors, per-call
// deadlines, retries, rate limiting and circuit breaking.
package handler

import (
	"fmt"
	"sort"
	"sync"

	"github.com/hupe1980/planmesh/core"
)

// Capabilities describes what a handler can do. The handoff affinity table
// is typically derived from these descriptors at configuration time.
type Capabilities struct {
	EntityTypes []core.EntityType
	Intents     []string
	Description string
}

// Registry holds registered handlers by id. Safe for concurrent use;
// registration normally happens once at startup.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]core.Handler
	caps     map[string]Capabilities
}

// NewRegistry constructs an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]core.Handler),
		caps:     make(map[string]Capabilities),
	}
}

// Register adds a handler with its capabilities. Duplicate ids are rejected.
func (r *Registry) Register(h core.Handler, caps Capabilities) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := h.ID()
	if _, exists := r.handlers[id]; exists {
		return fmt.Errorf("handler %q already registered", id)
	}
	r.handlers[id] = h
	r.caps[id] = caps
	return nil
}

// Get returns the handler with the given id.
func (r *Registry) Get(id string) (core.Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownHandler, id)
	}
	return h, nil
}

// Capabilities returns the capability descriptor for a handler id.
func (r *Registry) Capabilities(id string) (Capabilities, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.caps[id]
	return c, ok
}

// IDs returns all registered handler ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.handlers))
	for id := range r.handlers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of registered handlers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}
