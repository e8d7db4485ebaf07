package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/planmesh/config"
	"github.com/hupe1980/planmesh/core"
	"github.com/hupe1980/planmesh/extractor"
	"github.com/hupe1980/planmesh/handler"
	"github.com/hupe1980/planmesh/handoff"
	"github.com/hupe1980/planmesh/intent"
	"github.com/hupe1980/planmesh/logging"
	"github.com/hupe1980/planmesh/store/inmemory"
	"github.com/hupe1980/planmesh/temporal"
	"github.com/hupe1980/planmesh/trace"
	"github.com/hupe1980/planmesh/tracker"
)

// Options configures an Engine instance using the functional options
// pattern. All dependencies have in-process defaults suitable for tests and
// demos; production setups typically provide a registry with real handlers
// and a durable store.
type Options struct {
	// Config carries the tunables for every pipeline component.
	// Defaults to config.Default().
	Config config.Config

	// Extractor produces entity candidates from turn text.
	// Defaults to the rule-based extractor.
	Extractor core.Extractor

	// Registry holds the operation handlers available for dispatch.
	// Defaults to an empty registry: turns are processed and routed, but
	// nothing is dispatched.
	Registry *handler.Registry

	// Store persists conversation snapshots for Save/Load.
	// Defaults to the in-memory store.
	Store core.ContextStore

	// Clock supplies the temporal reference point for each turn.
	// Defaults to time.Now. Tests pin it for deterministic resolution.
	Clock func() time.Time

	// Logger provides structured logging. Defaults to NoOp.
	Logger logging.Logger
}

// WithConfig overrides the component tunables.
func WithConfig(cfg config.Config) func(o *Options) {
	return func(o *Options) { o.Config = cfg }
}

// WithExtractor overrides the entity candidate extractor.
func WithExtractor(ex core.Extractor) func(o *Options) {
	return func(o *Options) { o.Extractor = ex }
}

// WithRegistry provides the handler registry used for dispatch.
func WithRegistry(r *handler.Registry) func(o *Options) {
	return func(o *Options) { o.Registry = r }
}

// WithStore overrides the snapshot store.
func WithStore(s core.ContextStore) func(o *Options) {
	return func(o *Options) { o.Store = s }
}

// WithClock pins the temporal reference clock.
func WithClock(clock func() time.Time) func(o *Options) {
	return func(o *Options) { o.Clock = clock }
}

// WithLogger overrides the logger.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// conversationState bundles everything the engine keeps per conversation.
// Its mutex serializes turn processing for that conversation only.
type conversationState struct {
	mu         sync.Mutex
	conv       *core.Conversation
	tracker    *tracker.Tracker
	intents    *intent.Tracker
	trace      *trace.Log
	handoffs   *handoff.History
	dispatcher *handler.Dispatcher
}

// Engine orchestrates the per-turn pipeline over all live conversations.
type Engine struct {
	opts       Options
	resolver   *temporal.Resolver
	classifier *intent.Classifier
	decider    *handoff.Engine

	mu    sync.Mutex
	convs map[string]*conversationState
}

// New constructs an Engine. The zero-argument form is fully functional with
// in-memory defaults.
func New(optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config:    config.Default(),
		Extractor: extractor.New(),
		Registry:  handler.NewRegistry(),
		Store:     inmemory.New(),
		Clock:     time.Now,
		Logger:    logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	cfg := opts.Config

	e := &Engine{
		opts:       opts,
		resolver:   temporal.NewResolver(),
		classifier: intent.NewClassifier(),
		convs:      make(map[string]*conversationState),
	}

	e.decider = handoff.New(func(o *handoff.Options) {
		o.Affinity = cfg.Handoff.AffinityTable()
		o.ComplexityCeiling = cfg.Handoff.ComplexityCeiling
		o.EntityTypeWeight = cfg.Handoff.EntityTypeWeight
		o.UnresolvedWeight = cfg.Handoff.UnresolvedWeight
		o.MultiOpWeight = cfg.Handoff.MultiOpWeight
		o.Logger = opts.Logger
	})

	return e
}

func (e *Engine) stateFor(conversationID string) *conversationState {
	e.mu.Lock()
	defer e.mu.Unlock()

	if st, ok := e.convs[conversationID]; ok {
		return st
	}

	cfg := e.opts.Config
	st := &conversationState{
		conv: core.NewConversation(conversationID),
		tracker: tracker.New(func(o *tracker.Options) {
			o.SimilarityThreshold = cfg.Tracker.SimilarityThreshold
			o.ConfidenceFloor = cfg.Tracker.ConfidenceFloor
			o.RecencyDecay = cfg.Tracker.RecencyDecay
			o.ProximityBonus = cfg.Tracker.ProximityBonus
			o.Logger = e.opts.Logger
		}),
		intents: intent.NewTracker(func(o *intent.Options) {
			o.WindowSize = cfg.Intent.WindowSize
			o.MinConfidence = cfg.Intent.MinConfidence
			if len(cfg.Intent.UrgencyMarkers) > 0 {
				o.UrgencyMarkers = cfg.Intent.UrgencyMarkers
			}
			o.NearTermThreshold = cfg.Intent.NearTermThreshold.Std()
		}),
		trace:    trace.NewLog(),
		handoffs: handoff.NewHistory(),
	}
	st.dispatcher = handler.NewDispatcher(e.opts.Registry, func(o *handler.Options) {
		o.Timeout = cfg.Dispatcher.Timeout.Std()
		o.MaxRetries = cfg.Dispatcher.MaxRetries
		o.RetryBackoff = cfg.Dispatcher.RetryBackoff.Std()
		o.RatePerSecond = cfg.Dispatcher.RatePerSecond
		o.Burst = cfg.Dispatcher.Burst
		o.BreakerMaxFailures = cfg.Dispatcher.BreakerMaxFailures
		o.BreakerCooldown = cfg.Dispatcher.BreakerCooldown.Std()
		o.Trace = st.trace
		o.Logger = e.opts.Logger
	})
	e.convs[conversationID] = st
	return st
}

// TurnResult reports everything the pipeline derived from one turn.
type TurnResult struct {
	Turn        core.ConversationTurn
	EntityIDs   []string
	Resolutions []core.ReferenceResolution
	Temporal    []temporal.Resolution
	Decision    core.HandoffDecision
	Dispatched  bool
	Result      core.Result
	DispatchErr error
}

// ProcessTurn runs the full pipeline for one user turn. Turns of the same
// conversation are processed strictly in order; the per-conversation lock is
// released before the handler dispatch so other conversations and readers
// are never blocked by a slow handler.
func (e *Engine) ProcessTurn(ctx context.Context, conversationID, text string) (*TurnResult, error) {
	st := e.stateFor(conversationID)

	st.mu.Lock()
	turnIndex := st.conv.NextTurnIndex()
	now := e.opts.Clock()

	candidates, err := e.opts.Extractor.Extract(ctx, text)
	if err != nil {
		st.mu.Unlock()
		return nil, fmt.Errorf("extract entities: %w", err)
	}

	// Resolve temporal expressions before registration so deadlines can
	// feed urgency detection.
	var (
		temporals []temporal.Resolution
		deadlines []time.Time
	)
	for _, c := range candidates {
		if c.Type != core.EntityTypeTimeExpression {
			continue
		}
		res, err := e.resolver.Resolve(c.Span, now)
		if err != nil {
			e.opts.Logger.Debug("temporal expression unresolved", "span", c.Span, "turn", turnIndex)
			continue
		}
		temporals = append(temporals, res)
		if deadline, ok := res.Deadline(); ok {
			deadlines = append(deadlines, deadline)
		}
	}

	// Bare anaphoric nouns ("the meeting") are references to known
	// entities, not new ones. Indefinite mentions ("a meeting") still
	// introduce entities.
	registrable := candidates[:0:0]
	for _, c := range candidates {
		if isAnaphoricNoun(text, c) {
			continue
		}
		registrable = append(registrable, c)
	}

	entityIDs := st.tracker.Register(registrable, turnIndex)
	anchorTemporals(st.tracker, entityIDs, temporals)

	var resolutions []core.ReferenceResolution
	for _, span := range referenceSpans(text) {
		res := st.tracker.ResolveReference(span, turnIndex)
		resolutions = append(resolutions, res)
		if res.Resolved {
			entityIDs = appendUnique(entityIDs, res.EntityID)
		} else {
			st.trace.Append(core.NewResolutionFailedEvent(turnIndex, span, res.Confidence))
		}
	}
	// Entities introduced this turn may retroactively resolve references
	// from earlier turns.
	resolutions = append(resolutions, st.tracker.ResolvePending(turnIndex)...)

	label, confidence := e.classifier.Classify(text)
	urgent := st.intents.Urgent(text, deadlines, now)
	st.intents.Update(turnIndex, label, confidence, urgent)

	turn := core.NewConversationTurn(turnIndex, text)
	turn.Intent = label
	turn.Urgent = urgent
	turn.References = resolutions
	st.conv.AddTurn(turn)

	snapshot := core.ContextSnapshot{
		TurnIndex: turnIndex,
		Entities:  st.tracker.Neighborhood(entityIDs),
	}
	decision := e.decider.Decide(handoff.Input{
		TurnIndex:          turnIndex,
		ActiveHandler:      st.conv.Handler(),
		Intent:             label,
		Urgent:             urgent,
		EntityTypes:        distinctTypes(st.tracker, entityIDs),
		DominantType:       dominantType(registrable),
		UnresolvedCount:    len(st.tracker.Unresolved()),
		MultipleOperations: handoff.DetectMultipleOperations(text),
		Snapshot:           snapshot,
	})
	st.handoffs.Record(decision)
	st.trace.Append(core.NewHandoffExecutedEvent(decision))
	if decision.Transferred() {
		st.conv.SetHandler(decision.Target)
		e.opts.Logger.Info("handler transfer",
			"conversation", conversationID,
			"turn", turnIndex,
			"source", decision.Source,
			"target", decision.Target,
			"reason", decision.Justification.Reason,
		)
	}

	handlerID := st.conv.Handler()
	st.mu.Unlock()

	result := &TurnResult{
		Turn:        turn,
		EntityIDs:   entityIDs,
		Resolutions: resolutions,
		Temporal:    temporals,
		Decision:    decision,
	}

	if handlerID == "" || e.opts.Registry.Len() == 0 {
		return result, nil
	}

	// Dispatch outside the conversation lock.
	res, dispatchErr := st.dispatcher.Dispatch(ctx, turnIndex, handlerID, core.Invocation{
		Operation:  label,
		Parameters: map[string]any{"text": text},
		Snapshot:   snapshot,
	})
	result.Dispatched = true
	result.Result = res
	result.DispatchErr = dispatchErr
	return result, nil
}

// Conversation returns a clone of the conversation aggregate.
func (e *Engine) Conversation(conversationID string) *core.Conversation {
	st := e.stateFor(conversationID)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.conv.Clone()
}

// Entities returns the tracked entities of a conversation.
func (e *Engine) Entities(conversationID string) []*core.ContextualEntity {
	st := e.stateFor(conversationID)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.tracker.Entities()
}

// Unresolved returns the references still pending resolution.
func (e *Engine) Unresolved(conversationID string) []core.ReferenceResolution {
	st := e.stateFor(conversationID)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.tracker.Unresolved()
}

// IntentTrend returns the dominant recent intent, if any.
func (e *Engine) IntentTrend(conversationID string) (string, bool) {
	st := e.stateFor(conversationID)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.intents.CurrentTrend()
}

// Trace returns the conversation's trace log. The log is safe for
// concurrent reads while turns are processed.
func (e *Engine) Trace(conversationID string) *trace.Log {
	st := e.stateFor(conversationID)
	return st.trace
}

// Handoffs returns the conversation's handoff decision history.
func (e *Engine) Handoffs(conversationID string) *handoff.History {
	st := e.stateFor(conversationID)
	return st.handoffs
}

// engineSnapshot is the persisted form of a conversation's state.
type engineSnapshot struct {
	ID            string                  `json:"id"`
	ActiveHandler string                  `json:"active_handler,omitempty"`
	Turns         []core.ConversationTurn `json:"turns"`
	Tracker       json.RawMessage         `json:"tracker"`
}

// Save persists the conversation's full state to the configured store.
func (e *Engine) Save(ctx context.Context, conversationID string) error {
	st := e.stateFor(conversationID)

	st.mu.Lock()
	trackerState, err := st.tracker.Snapshot()
	if err != nil {
		st.mu.Unlock()
		return fmt.Errorf("snapshot tracker: %w", err)
	}
	snap := engineSnapshot{
		ID:            conversationID,
		ActiveHandler: st.conv.Handler(),
		Turns:         st.conv.Turns(),
		Tracker:       trackerState,
	}
	st.mu.Unlock()

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return e.opts.Store.Save(ctx, conversationID, data)
}

// Load restores a conversation's state from the configured store, replacing
// any in-memory state for that conversation id.
func (e *Engine) Load(ctx context.Context, conversationID string) error {
	data, err := e.opts.Store.Load(ctx, conversationID)
	if err != nil {
		return err
	}

	var snap engineSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("unmarshal snapshot: %w", err)
	}

	st := e.stateFor(conversationID)
	st.mu.Lock()
	defer st.mu.Unlock()

	conv := core.NewConversation(conversationID)
	for _, turn := range snap.Turns {
		conv.AddTurn(turn)
	}
	if snap.ActiveHandler != "" {
		conv.SetHandler(snap.ActiveHandler)
	}
	st.conv = conv

	if err := st.tracker.Restore(snap.Tracker); err != nil {
		return fmt.Errorf("restore tracker: %w", err)
	}
	return nil
}

// bareReferenceNouns are noun heads that, behind an anaphoric determiner,
// refer back to a tracked entity instead of introducing a new one.
var bareReferenceNouns = map[string]bool{
	"meeting": true, "event": true, "appointment": true, "call": true,
	"standup": true, "sync": true, "task": true, "todo": true,
	"reminder": true, "deadline": true, "email": true, "mail": true,
	"message": true, "place": true, "office": true,
}

// isAnaphoricNoun reports whether the candidate is a bare reference noun
// preceded by "the", "that" or "this". "a meeting" introduces an entity;
// "the meeting" refers to one.
func isAnaphoricNoun(text string, c core.Candidate) bool {
	if !bareReferenceNouns[strings.ToLower(strings.TrimSpace(c.Span))] {
		return false
	}
	words := strings.Fields(strings.ToLower(text[:c.Start]))
	if len(words) == 0 {
		return false
	}
	switch words[len(words)-1] {
	case "the", "that", "this":
		return true
	}
	return false
}

var (
	pronounRe       = regexp.MustCompile(`(?i)\b(it|he|him|his|she|her|they|them)\b`)
	demonstrativeRe = regexp.MustCompile(`(?i)\b(this|that)\b(\s+\w+)?`)
	anaphoricNounRe = regexp.MustCompile(`(?i)\b((?:that|this|the)\s+(?:meeting|event|appointment|call|standup|sync|task|todo|reminder|deadline|email|mail|message|place|office))\b`)
)

// referenceSpans finds the anaphoric spans of a turn: determiner-plus-noun
// phrases, plain pronouns, and standalone demonstratives. "this" or "that"
// followed by a word is a determiner and is left to the noun-phrase rule.
func referenceSpans(text string) []string {
	var spans []string

	for _, m := range anaphoricNounRe.FindAllStringSubmatchIndex(text, -1) {
		spans = append(spans, text[m[2]:m[3]])
	}
	for _, m := range pronounRe.FindAllStringIndex(text, -1) {
		spans = append(spans, text[m[0]:m[1]])
	}
	for _, m := range demonstrativeRe.FindAllStringSubmatchIndex(text, -1) {
		if m[4] >= 0 {
			continue
		}
		spans = append(spans, text[m[2]:m[3]])
	}
	return spans
}

func distinctTypes(t *tracker.Tracker, ids []string) []core.EntityType {
	seen := make(map[core.EntityType]bool)
	var out []core.EntityType
	for _, id := range ids {
		e, err := t.Get(id)
		if err != nil {
			continue
		}
		if !seen[e.Type] {
			seen[e.Type] = true
			out = append(out, e.Type)
		}
	}
	return out
}

// typePriority breaks frequency ties when picking the dominant type of a
// turn. Operation-bearing types outrank participants and places.
var typePriority = []core.EntityType{
	core.EntityTypeEvent,
	core.EntityTypeTask,
	core.EntityTypeEmail,
	core.EntityTypePerson,
	core.EntityTypeLocation,
}

// dominantType is the most frequent non-temporal candidate type of the
// turn.
func dominantType(candidates []core.Candidate) core.EntityType {
	counts := make(map[core.EntityType]int)
	for _, c := range candidates {
		if c.Type == core.EntityTypeTimeExpression {
			continue
		}
		counts[c.Type]++
	}

	var (
		best    core.EntityType
		bestCnt int
	)
	for _, typ := range typePriority {
		if counts[typ] > bestCnt {
			best = typ
			bestCnt = counts[typ]
		}
	}
	if best == "" && len(candidates) > 0 {
		best = candidates[0].Type
	}
	return best
}

// anchorTemporals records the resolved instant on each time-expression
// entity, so later turns reuse the anchor instead of re-resolving against a
// drifted clock.
func anchorTemporals(t *tracker.Tracker, ids []string, temporals []temporal.Resolution) {
	for _, id := range ids {
		e, err := t.Get(id)
		if err != nil || e.Type != core.EntityTypeTimeExpression {
			continue
		}
		for _, res := range temporals {
			if !strings.EqualFold(res.Text, e.Canonical) && !e.HasAlias(res.Text) {
				continue
			}
			if deadline, ok := res.Deadline(); ok {
				_ = t.SetAttribute(id, "resolved_time", deadline.Format(time.RFC3339))
			}
			break
		}
	}
}

func appendUnique(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}
