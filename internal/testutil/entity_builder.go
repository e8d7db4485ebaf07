package testutil

import (
	"github.com/hupe1980/planmesh/core"
)

// EntityBuilder provides a fluent helper for constructing contextual
// entities in tests.
//
//	ent := NewEntityBuilder("budget review").Type(core.EntityTypeEvent).Seen(2).Build()
//
// Chain only the parts you need; sensible defaults are applied.
type EntityBuilder struct {
	entity *core.ContextualEntity
}

// NewEntityBuilder creates a builder for an event entity with the given
// canonical name, first seen at turn 0.
func NewEntityBuilder(canonical string) *EntityBuilder {
	return &EntityBuilder{entity: core.NewContextualEntity(core.EntityTypeEvent, canonical, 0)}
}

// ID overrides the auto-generated entity id (chainable).
func (b *EntityBuilder) ID(id string) *EntityBuilder {
	b.entity.ID = id
	return b
}

// Type sets the entity type (chainable).
func (b *EntityBuilder) Type(t core.EntityType) *EntityBuilder {
	b.entity.Type = t
	return b
}

// Seen sets both FirstSeen and LastReferenced (chainable).
func (b *EntityBuilder) Seen(turn int) *EntityBuilder {
	b.entity.FirstSeen = turn
	b.entity.LastReferenced = turn
	return b
}

// Alias adds an alias (chainable).
func (b *EntityBuilder) Alias(alias string) *EntityBuilder {
	b.entity.AddAlias(alias)
	return b
}

// Attribute sets an attribute (chainable).
func (b *EntityBuilder) Attribute(key string, value any) *EntityBuilder {
	b.entity.SetAttribute(key, value)
	return b
}

// Related links the entity to a target id (chainable).
func (b *EntityBuilder) Related(target string, kind core.RelationKind) *EntityBuilder {
	b.entity.AddRelation(target, kind)
	return b
}

// Build returns the constructed entity.
func (b *EntityBuilder) Build() *core.ContextualEntity {
	return b.entity
}
