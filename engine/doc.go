// Package engine wires the context components into a per-turn pipeline.
//
// For every user turn the engine extracts entity candidates, resolves
// temporal expressions, updates the entity tracker and intent trend, decides
// whether the active handler keeps control, dispatches the turn to the
// resulting handler and appends trace events along the way.
//
// Concurrency model: turns within one conversation are processed strictly
// sequentially behind a per-conversation lock; different conversations
// proceed independently. No lock is held across handler dispatch, so a slow
// handler can never stall another conversation.
package engine
