package core

import "time"

// ReferenceResolution binds an anaphoric or definite surface span to a prior
// entity. An unresolved resolution is a first-class value, not an error:
// later turns may retroactively resolve it once ambiguity is cleared.
type ReferenceResolution struct {
	Span       string  `json:"span"`
	TurnIndex  int     `json:"turn_index"`
	EntityID   string  `json:"entity_id,omitempty"`
	Confidence float64 `json:"confidence"`
	Resolved   bool    `json:"resolved"`
}

// ConversationTurn is one user utterance plus its derived annotations.
// Treat it as immutable once created; the engine annotates a turn exactly
// once while processing it, before it is appended to the conversation.
type ConversationTurn struct {
	Index      int                   `json:"index"`
	Text       string                `json:"text"`
	Intent     string                `json:"intent,omitempty"` // empty until classified
	Urgent     bool                  `json:"urgent,omitempty"`
	References []ReferenceResolution `json:"references,omitempty"`
	Timestamp  time.Time             `json:"timestamp"`
}

// NewConversationTurn creates a turn stamped with the current UTC time.
func NewConversationTurn(index int, text string) ConversationTurn {
	return ConversationTurn{Index: index, Text: text, Timestamp: time.Now().UTC()}
}

// IntentRecord is one entry in a conversation's intent history.
type IntentRecord struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	TurnIndex  int     `json:"turn_index"`
	Urgent     bool    `json:"urgent"`
}
