// Package core contains the shared data model of PlanMesh: contextual
// entities, conversation turns, reference resolutions, intent records,
// handoff decisions and trace events, together with the collaborator
// contracts (Extractor, Handler, ContextStore) the engine is wired against.
//
// Everything in this package is scoped to a single conversation. A
// Conversation is the owned per-conversation aggregate; cross-conversation
// coordination lives in the engine package.
package core
