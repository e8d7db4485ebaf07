package core

import (
	"fmt"

	"github.com/google/uuid"
)

// EntityType classifies a tracked entity. The set is deliberately bounded to
// the planning domain; reference resolution infers type compatibility from it.
type EntityType string

const (
	// EntityTypeEvent is a calendar event or meeting.
	EntityTypeEvent EntityType = "event"
	// EntityTypeTask is a task or todo item.
	EntityTypeTask EntityType = "task"
	// EntityTypeEmail is an email message.
	EntityTypeEmail EntityType = "email"
	// EntityTypePerson is a person mentioned in conversation.
	EntityTypePerson EntityType = "person"
	// EntityTypeTimeExpression is a natural-language time expression.
	EntityTypeTimeExpression EntityType = "time_expression"
	// EntityTypeLocation is a place.
	EntityTypeLocation EntityType = "location"
)

// Valid reports whether t is one of the known entity types.
func (t EntityType) Valid() bool {
	switch t {
	case EntityTypeEvent, EntityTypeTask, EntityTypeEmail, EntityTypePerson, EntityTypeTimeExpression, EntityTypeLocation:
		return true
	}
	return false
}

// RelationKind types an edge between two entities.
type RelationKind string

const (
	// RelationAttendeeOf links a person to the event they attend.
	RelationAttendeeOf RelationKind = "attendee-of"
	// RelationDueFor links a time expression to the task it deadlines.
	RelationDueFor RelationKind = "due-for"
	// RelationDerivedFrom links an entity to the entity it was created from
	// (e.g. a task extracted from an email).
	RelationDerivedFrom RelationKind = "derived-from"
)

// Relation is a typed directed edge to another entity in the same conversation.
type Relation struct {
	Target string       `json:"target"`
	Kind   RelationKind `json:"kind"`
}

// ContextualEntity is a cross-turn entity tracked within one conversation.
//
// Invariants maintained by the tracker:
//   - ID is unique within the conversation
//   - Aliases always contains at least the canonical surface form
//   - LastReferenced is monotonically non-decreasing
type ContextualEntity struct {
	ID             string         `json:"id"`
	Type           EntityType     `json:"type"`
	Canonical      string         `json:"canonical"`
	Aliases        []string       `json:"aliases"`
	FirstSeen      int            `json:"first_seen"`
	LastReferenced int            `json:"last_referenced"`
	Attributes     map[string]any `json:"attributes,omitempty"`
	Relations      []Relation     `json:"relations,omitempty"`
}

// NewContextualEntity creates an entity first seen at the given turn. The
// canonical surface form seeds the alias set.
func NewContextualEntity(typ EntityType, canonical string, turn int) *ContextualEntity {
	return &ContextualEntity{
		ID:             NewID(),
		Type:           typ,
		Canonical:      canonical,
		Aliases:        []string{canonical},
		FirstSeen:      turn,
		LastReferenced: turn,
		Attributes:     map[string]any{},
	}
}

// Touch updates LastReferenced, ignoring turns older than the current value
// so the index never decreases.
func (e *ContextualEntity) Touch(turn int) {
	if turn > e.LastReferenced {
		e.LastReferenced = turn
	}
}

// HasAlias reports whether the surface form is already a known alias.
func (e *ContextualEntity) HasAlias(surface string) bool {
	for _, a := range e.Aliases {
		if a == surface {
			return true
		}
	}
	return false
}

// AddAlias records an additional surface form; duplicates are ignored.
func (e *ContextualEntity) AddAlias(surface string) {
	if surface == "" || e.HasAlias(surface) {
		return
	}
	e.Aliases = append(e.Aliases, surface)
}

// SetAttribute stores an open key/value attribute on the entity.
func (e *ContextualEntity) SetAttribute(key string, value any) {
	if e.Attributes == nil {
		e.Attributes = map[string]any{}
	}
	e.Attributes[key] = value
}

// HasRelation reports whether the exact edge already exists.
func (e *ContextualEntity) HasRelation(target string, kind RelationKind) bool {
	for _, r := range e.Relations {
		if r.Target == target && r.Kind == kind {
			return true
		}
	}
	return false
}

// AddRelation appends a typed edge; adding an existing edge is a no-op.
func (e *ContextualEntity) AddRelation(target string, kind RelationKind) {
	if e.HasRelation(target, kind) {
		return
	}
	e.Relations = append(e.Relations, Relation{Target: target, Kind: kind})
}

// RelatedIDs returns the ids of all directly linked entities.
func (e *ContextualEntity) RelatedIDs() []string {
	ids := make([]string, 0, len(e.Relations))
	for _, r := range e.Relations {
		ids = append(ids, r.Target)
	}
	return ids
}

// Clone returns a deep copy safe for independent mutation.
func (e *ContextualEntity) Clone() *ContextualEntity {
	clone := *e
	clone.Aliases = append([]string(nil), e.Aliases...)
	clone.Relations = append([]Relation(nil), e.Relations...)
	clone.Attributes = make(map[string]any, len(e.Attributes))
	for k, v := range e.Attributes {
		clone.Attributes[k] = v
	}
	return &clone
}

// String implements fmt.Stringer for log readability.
func (e *ContextualEntity) String() string {
	return fmt.Sprintf("%s(%s %q)", e.ID[:8], e.Type, e.Canonical)
}

// NewID generates a new unique identifier for entities, decisions and trace
// events. Returns a string representation of a new UUID.
func NewID() string { return uuid.NewString() }
