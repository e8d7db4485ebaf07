package core

import (
	"sync"
	"time"
)

// Conversation is the per-conversation aggregate tracking the ordered turn
// history and the currently active handler. It is safe for concurrent access.
//
// Contract:
//   - Turn indices form one conversation-wide monotonic sequence
//   - Mutations update the Updated timestamp
//   - Turns returns a defensive copy to avoid external mutation
//   - Clone performs deep copies of slices/maps for safe divergence.
//
// Entity registry, intent history and trace log for the conversation live in
// their own packages; the engine composes them per conversation id.
type Conversation struct {
	ID            string             `json:"id"`
	TurnHistory   []ConversationTurn `json:"turns"`
	ActiveHandler string             `json:"active_handler,omitempty"` // empty before first routing
	Created       time.Time          `json:"created"`
	Updated       time.Time          `json:"updated"`
	Metadata      map[string]string  `json:"metadata"`
	mu            sync.RWMutex
}

// NewConversation creates an empty conversation with the given id.
func NewConversation(id string) *Conversation {
	now := time.Now()
	return &Conversation{ID: id, TurnHistory: []ConversationTurn{}, Created: now, Updated: now, Metadata: map[string]string{}}
}

// NextTurnIndex returns the index the next appended turn must carry.
func (c *Conversation) NextTurnIndex() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.TurnHistory)
}

// AddTurn appends an annotated turn to the history updating Updated timestamp.
func (c *Conversation) AddTurn(turn ConversationTurn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.TurnHistory = append(c.TurnHistory, turn)
	c.Updated = time.Now()
}

// Turns returns a defensive copy of the full turn slice.
func (c *Conversation) Turns() []ConversationTurn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	turns := make([]ConversationTurn, len(c.TurnHistory))
	copy(turns, c.TurnHistory)
	return turns
}

// LastTurn returns the most recent turn and true, or a zero turn and false
// for an empty conversation.
func (c *Conversation) LastTurn() (ConversationTurn, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.TurnHistory) == 0 {
		return ConversationTurn{}, false
	}
	return c.TurnHistory[len(c.TurnHistory)-1], true
}

// RecentTurns returns up to n most recent turns (all turns when n <= 0).
func (c *Conversation) RecentTurns(n int) []ConversationTurn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	start := 0
	if n > 0 && len(c.TurnHistory) > n {
		start = len(c.TurnHistory) - n
	}
	turns := make([]ConversationTurn, len(c.TurnHistory)-start)
	copy(turns, c.TurnHistory[start:])
	return turns
}

// Handler returns the currently active handler id (empty before first routing).
func (c *Conversation) Handler() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ActiveHandler
}

// SetHandler records a handler transition updating the Updated timestamp.
func (c *Conversation) SetHandler(handlerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ActiveHandler = handlerID
	c.Updated = time.Now()
}

// Clone returns a deep copy of the conversation safe for independent mutation.
func (c *Conversation) Clone() *Conversation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	clone := &Conversation{
		ID:            c.ID,
		TurnHistory:   make([]ConversationTurn, len(c.TurnHistory)),
		ActiveHandler: c.ActiveHandler,
		Created:       c.Created,
		Updated:       c.Updated,
		Metadata:      make(map[string]string, len(c.Metadata)),
	}
	copy(clone.TurnHistory, c.TurnHistory)
	for k, v := range c.Metadata {
		clone.Metadata[k] = v
	}
	return clone
}
