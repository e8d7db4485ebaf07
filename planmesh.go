// Package planmesh provides a high-level façade over the conversation
// context engine: entity tracking, temporal resolution, intent trends,
// handoff decisions and handler dispatch. Most applications interact with
// this package by:
//  1. Creating a PlanMesh via New() (optionally overriding the config,
//     extractor and snapshot store)
//  2. Registering one or more operation handlers with their capabilities
//  3. Feeding user turns through ProcessTurn and inspecting the results
//
// The façade delegates the per-turn pipeline to engine.Engine while keeping
// setup and usage ergonomics concise. All defaults are safe for local
// development and testing; production deployments typically supply a durable
// snapshot store, an LLM-backed extractor and a structured logger.
package planmesh

import (
	"context"

	"github.com/hupe1980/planmesh/config"
	"github.com/hupe1980/planmesh/core"
	"github.com/hupe1980/planmesh/engine"
	"github.com/hupe1980/planmesh/handler"
	"github.com/hupe1980/planmesh/handoff"
	"github.com/hupe1980/planmesh/logging"
	"github.com/hupe1980/planmesh/trace"
)

// Options configures the PlanMesh instance.
type Options struct {
	// Config carries the tunables for every pipeline component.
	// Defaults to config.Default().
	Config config.Config

	// Extractor produces entity candidates from turn text.
	// Defaults to the rule-based extractor.
	Extractor core.Extractor

	// Store persists conversation snapshots (defaults to in-memory).
	Store core.ContextStore

	// Logger (defaults to NoOp logger if nil).
	Logger logging.Logger
}

// PlanMesh is the high-level façade aggregating the engine and the handler
// registry.
type PlanMesh struct {
	opts     Options
	registry *handler.Registry
	engine   *engine.Engine
}

// New creates a new PlanMesh instance with optional overrides. Any unset
// dependency is initialized with an in-process implementation.
func New(optFns ...func(o *Options)) *PlanMesh {
	opts := Options{
		Config: config.Default(),
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	registry := handler.NewRegistry()

	engineOpts := []func(o *engine.Options){
		engine.WithConfig(opts.Config),
		engine.WithRegistry(registry),
		engine.WithLogger(opts.Logger),
	}
	if opts.Extractor != nil {
		engineOpts = append(engineOpts, engine.WithExtractor(opts.Extractor))
	}
	if opts.Store != nil {
		engineOpts = append(engineOpts, engine.WithStore(opts.Store))
	}

	return &PlanMesh{
		opts:     opts,
		registry: registry,
		engine:   engine.New(engineOpts...),
	}
}

// RegisterHandler adds an operation handler with its capabilities.
func (m *PlanMesh) RegisterHandler(h core.Handler, caps handler.Capabilities) error {
	return m.registry.Register(h, caps)
}

// ProcessTurn runs the full pipeline for one user turn.
func (m *PlanMesh) ProcessTurn(ctx context.Context, conversationID, text string) (*engine.TurnResult, error) {
	return m.engine.ProcessTurn(ctx, conversationID, text)
}

// Conversation returns a clone of the conversation aggregate.
func (m *PlanMesh) Conversation(conversationID string) *core.Conversation {
	return m.engine.Conversation(conversationID)
}

// Entities returns the tracked entities of a conversation.
func (m *PlanMesh) Entities(conversationID string) []*core.ContextualEntity {
	return m.engine.Entities(conversationID)
}

// Unresolved returns the references still pending resolution.
func (m *PlanMesh) Unresolved(conversationID string) []core.ReferenceResolution {
	return m.engine.Unresolved(conversationID)
}

// IntentTrend returns the dominant recent intent, if any.
func (m *PlanMesh) IntentTrend(conversationID string) (string, bool) {
	return m.engine.IntentTrend(conversationID)
}

// Trace returns the conversation's interaction trace log.
func (m *PlanMesh) Trace(conversationID string) *trace.Log {
	return m.engine.Trace(conversationID)
}

// Handoffs returns the conversation's handoff decision history.
func (m *PlanMesh) Handoffs(conversationID string) *handoff.History {
	return m.engine.Handoffs(conversationID)
}

// Save persists a conversation's state to the configured store.
func (m *PlanMesh) Save(ctx context.Context, conversationID string) error {
	return m.engine.Save(ctx, conversationID)
}

// Load restores a conversation's state from the configured store.
func (m *PlanMesh) Load(ctx context.Context, conversationID string) error {
	return m.engine.Load(ctx, conversationID)
}
