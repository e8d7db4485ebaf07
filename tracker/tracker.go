// Package tracker maintains the cross-turn entity registry for one
// conversation: alias sets, relationship edges, reference resolution and
// whole-state snapshot/restore. A Tracker is owned by exactly one
// conversation; different conversations get independent Tracker instances.
package tracker

import (
	"sort"
	"strings"
	"sync"

	"github.com/hupe1980/planmesh/core"
	"github.com/hupe1980/planmesh/logging"
)

// Options tunes merge and resolution behavior.
type Options struct {
	// SimilarityThreshold is the word-set similarity above which two
	// candidates of the same type merge into one entity.
	SimilarityThreshold float64

	// ConfidenceFloor is the minimum resolution score; candidates scoring
	// below it leave the reference unresolved.
	ConfidenceFloor float64

	// RecencyDecay controls how fast candidate scores fall off per turn
	// since last reference (larger = faster).
	RecencyDecay float64

	// ProximityBonus is added when a candidate is linked (one hop) to the
	// most recently discussed entity.
	ProximityBonus float64

	// Logger receives resolution and merge diagnostics. Defaults to NoOp.
	Logger logging.Logger
}

// Tracker is the entity registry for a single conversation. It is safe for
// concurrent reads; mutations (Register, Link, Restore) must be serialized
// with each other by the caller, which the engine's per-conversation locking
// guarantees.
type Tracker struct {
	mu       sync.RWMutex
	entities map[string]*core.ContextualEntity
	order    []string // insertion order, for deterministic iteration
	pending  []core.ReferenceResolution
	// bindings maps turn index -> lowercased span -> entity id, recording
	// explicit alias links produced by reference resolutions of that turn.
	bindings  map[int]map[string]string
	lastFocus string // id of the most recently discussed entity

	opts Options
}

// New constructs an empty Tracker with optional overrides.
func New(optFns ...func(o *Options)) *Tracker {
	opts := Options{
		SimilarityThreshold: 0.8,
		ConfidenceFloor:     0.35,
		RecencyDecay:        0.5,
		ProximityBonus:      0.15,
		Logger:              logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Tracker{
		entities: map[string]*core.ContextualEntity{},
		bindings: map[int]map[string]string{},
		opts:     opts,
	}
}

// Register merges each candidate into an existing entity or creates a new
// one, and returns the ids touched this turn. Two candidates of the same type
// merge when surface similarity exceeds the configured threshold or when a
// reference resolution of the same turn already bound the candidate's span.
func (t *Tracker) Register(candidates []core.Candidate, turn int) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	touched := make([]string, 0, len(candidates))
	seen := map[string]bool{}

	for _, cand := range candidates {
		id := t.mergeTargetLocked(cand, turn)
		if id == "" {
			e := core.NewContextualEntity(cand.Type, cand.Span, turn)
			e.SetAttribute("extraction_confidence", cand.Confidence)
			t.entities[e.ID] = e
			t.order = append(t.order, e.ID)
			id = e.ID
			t.opts.Logger.Debug("entity registered", "entity_id", id, "type", string(cand.Type), "surface", cand.Span)
		} else {
			e := t.entities[id]
			e.AddAlias(cand.Span)
			e.Touch(turn)
			t.opts.Logger.Debug("entity merged", "entity_id", id, "surface", cand.Span)
		}
		t.lastFocus = id
		if !seen[id] {
			seen[id] = true
			touched = append(touched, id)
		}
	}
	return touched
}

// mergeTargetLocked finds the existing entity a candidate should merge into,
// or "" when it is new. Caller holds the write lock.
func (t *Tracker) mergeTargetLocked(cand core.Candidate, turn int) string {
	// Explicit alias link from a resolution in the same turn wins.
	if bound, ok := t.bindings[turn][strings.ToLower(cand.Span)]; ok {
		if _, exists := t.entities[bound]; exists {
			return bound
		}
	}

	lower := strings.ToLower(cand.Span)
	for _, id := range t.order {
		e := t.entities[id]
		if e.Type != cand.Type {
			continue
		}
		for _, alias := range e.Aliases {
			if strings.ToLower(alias) == lower {
				return id
			}
		}
		if wordSimilarity(cand.Span, e.Canonical) >= t.opts.SimilarityThreshold {
			return id
		}
	}
	return ""
}

// Link adds a typed edge between two entities. Idempotent: adding an existing
// edge is a no-op. Referencing an unknown id is a caller contract violation.
func (t *Tracker) Link(entityA, entityB string, kind core.RelationKind) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	a, ok := t.entities[entityA]
	if !ok {
		return core.UnknownEntityIDError(entityA)
	}
	b, ok := t.entities[entityB]
	if !ok {
		return core.UnknownEntityIDError(entityB)
	}
	a.AddRelation(b.ID, kind)
	return nil
}

// Get returns a copy of the entity with the given id.
func (t *Tracker) Get(id string) (*core.ContextualEntity, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entities[id]
	if !ok {
		return nil, core.UnknownEntityIDError(id)
	}
	return e.Clone(), nil
}

// SetAttribute stores an attribute on an entity, e.g. a resolved deadline
// from the temporal resolver.
func (t *Tracker) SetAttribute(id, key string, value any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entities[id]
	if !ok {
		return core.UnknownEntityIDError(id)
	}
	e.SetAttribute(key, value)
	return nil
}

// Entities returns copies of all registered entities in insertion order.
func (t *Tracker) Entities() []*core.ContextualEntity {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*core.ContextualEntity, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.entities[id].Clone())
	}
	return out
}

// Len returns the number of registered entities.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entities)
}

// Unresolved returns the retained unresolved references, oldest first.
func (t *Tracker) Unresolved() []core.ReferenceResolution {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]core.ReferenceResolution, len(t.pending))
	copy(out, t.pending)
	return out
}

// Neighborhood returns copies of the entities with the given ids plus all
// directly linked entities (one hop). Unknown ids are skipped: the snapshot
// is best-effort context, not a contract surface.
func (t *Tracker) Neighborhood(ids []string) []core.ContextualEntity {
	t.mu.RLock()
	defer t.mu.RUnlock()

	include := map[string]bool{}
	for _, id := range ids {
		e, ok := t.entities[id]
		if !ok {
			continue
		}
		include[id] = true
		for _, rel := range e.Relations {
			include[rel.Target] = true
		}
	}

	keys := make([]string, 0, len(include))
	for id := range include {
		keys = append(keys, id)
	}
	sort.Strings(keys)

	out := make([]core.ContextualEntity, 0, len(keys))
	for _, id := range keys {
		if e, ok := t.entities[id]; ok {
			out = append(out, *e.Clone())
		}
	}
	return out
}

// wordSimilarity is word-set Jaccard similarity on lowercased tokens.
func wordSimilarity(a, b string) float64 {
	wa := wordSet(a)
	wb := wordSet(b)
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}
	inter := 0
	for w := range wa {
		if wb[w] {
			inter++
		}
	}
	union := len(wa) + len(wb) - inter
	return float64(inter) / float64(union)
}

func wordSet(s string) map[string]bool {
	set := map[string]bool{}
	for _, w := range strings.Fields(strings.ToLower(s)) {
		set[w] = true
	}
	return set
}
