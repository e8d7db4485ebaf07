package testutil

import (
	"github.com/hupe1980/planmesh/core"
)

// ConversationBuilder provides a fluent helper for constructing
// conversations with pre-populated turns in tests.
//
//	conv := NewConversationBuilder("c1").
//		UserTurn("schedule a meeting").
//		UrgentTurn("move it ASAP").
//		Handler("calendar-agent").
//		Build()
type ConversationBuilder struct {
	conv *core.Conversation
}

// NewConversationBuilder creates a builder for the given conversation id.
func NewConversationBuilder(id string) *ConversationBuilder {
	return &ConversationBuilder{conv: core.NewConversation(id)}
}

// UserTurn appends a plain user turn (chainable).
func (b *ConversationBuilder) UserTurn(text string) *ConversationBuilder {
	b.conv.AddTurn(core.NewConversationTurn(b.conv.NextTurnIndex(), text))
	return b
}

// IntentTurn appends a turn with a classified intent (chainable).
func (b *ConversationBuilder) IntentTurn(text, intentLabel string) *ConversationBuilder {
	turn := core.NewConversationTurn(b.conv.NextTurnIndex(), text)
	turn.Intent = intentLabel
	b.conv.AddTurn(turn)
	return b
}

// UrgentTurn appends a turn flagged urgent (chainable).
func (b *ConversationBuilder) UrgentTurn(text string) *ConversationBuilder {
	turn := core.NewConversationTurn(b.conv.NextTurnIndex(), text)
	turn.Urgent = true
	b.conv.AddTurn(turn)
	return b
}

// Handler sets the active handler (chainable).
func (b *ConversationBuilder) Handler(id string) *ConversationBuilder {
	b.conv.SetHandler(id)
	return b
}

// Build returns the constructed conversation.
func (b *ConversationBuilder) Build() *core.Conversation {
	return b.conv
}
