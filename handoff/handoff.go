// Package handoff decides, once per turn and before dispatch, whether the
// active handler keeps control or hands off to a specialist. The decision is
// an explicit state machine over handler identities driven by a configured
// affinity table, an urgency flag and a complexity score; it is never
// retracted after dispatch begins.
package handoff

import (
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/planmesh/core"
	"github.com/hupe1980/planmesh/logging"
)

// AffinityKey pairs an entity type with an intent label for exact lookups.
type AffinityKey struct {
	Type   core.EntityType
	Intent string
}

// AffinityTable maps entity-type/intent combinations to preferred handler
// ids. Lookup precedence: exact (type, intent) pair, then entity type, then
// intent, then Default.
type AffinityTable struct {
	Pairs       map[AffinityKey]string
	EntityTypes map[core.EntityType]string
	Intents     map[string]string
	Default     string
}

// Target returns the preferred handler for the given dominant entity type
// and intent, or "" when the table has no opinion.
func (a AffinityTable) Target(typ core.EntityType, intentLabel string) string {
	if h, ok := a.Pairs[AffinityKey{Type: typ, Intent: intentLabel}]; ok {
		return h
	}
	if h, ok := a.EntityTypes[typ]; ok {
		return h
	}
	if h, ok := a.Intents[intentLabel]; ok {
		return h
	}
	return a.Default
}

// Options tunes the decision policy. The urgency/complexity interplay is
// deliberately configuration, not hard-coded branches.
type Options struct {
	// Affinity routes (entity type, intent) combinations to handlers.
	Affinity AffinityTable

	// ComplexityCeiling is the score above which a differing affinity
	// target triggers a transfer.
	ComplexityCeiling float64

	// EntityTypeWeight scores each distinct entity type touched this turn.
	EntityTypeWeight float64

	// UnresolvedWeight scores each reference left unresolved this turn.
	UnresolvedWeight float64

	// MultiOpWeight scores a turn requesting multiple operations.
	MultiOpWeight float64

	// Logger receives decision diagnostics. Defaults to NoOp.
	Logger logging.Logger
}

// Engine computes per-turn handoff decisions. It is stateless between calls:
// the active handler is carried by the conversation aggregate and passed in.
type Engine struct {
	opts Options
}

// New constructs a handoff Engine with optional overrides.
func New(optFns ...func(o *Options)) *Engine {
	opts := Options{
		ComplexityCeiling: 2.5,
		EntityTypeWeight:  1.0,
		UnresolvedWeight:  0.5,
		MultiOpWeight:     1.0,
		Logger:            logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Engine{opts: opts}
}

// Input bundles the per-turn signals the decision depends on.
type Input struct {
	TurnIndex          int
	ActiveHandler      string // "" before the first routing
	Intent             string
	Urgent             bool
	EntityTypes        []core.EntityType // distinct types touched this turn
	DominantType       core.EntityType
	UnresolvedCount    int
	MultipleOperations bool
	Snapshot           core.ContextSnapshot // entities touched this turn + one hop
}

// Complexity computes the weighted per-turn complexity score.
func (e *Engine) Complexity(in Input) float64 {
	score := e.opts.EntityTypeWeight * float64(len(in.EntityTypes))
	score += e.opts.UnresolvedWeight * float64(in.UnresolvedCount)
	if in.MultipleOperations {
		score += e.opts.MultiOpWeight
	}
	return score
}

// Decide computes the routing decision for one turn. Every call yields a
// HandoffDecision, including no-op stay decisions, so analytics see the full
// decision stream. Policy:
//
//  1. Urgency preemption: when the turn is urgent and the affinity table
//     names a different handler for the dominant entity type, transfer
//     immediately regardless of complexity.
//  2. Complexity: when the score exceeds the ceiling and the affinity target
//     differs from the active handler, transfer.
//  3. Otherwise stay.
//
// Before the first routing (no active handler) the affinity target is
// assigned directly.
func (e *Engine) Decide(in Input) core.HandoffDecision {
	complexity := e.Complexity(in)
	target := e.opts.Affinity.Target(in.DominantType, in.Intent)

	decision := core.HandoffDecision{
		ID:        core.NewID(),
		Source:    in.ActiveHandler,
		Target:    in.ActiveHandler,
		TurnIndex: in.TurnIndex,
		Justification: core.Justification{
			Complexity:   complexity,
			Urgent:       in.Urgent,
			DominantType: in.DominantType,
			Intent:       in.Intent,
		},
		Timestamp: time.Now().UTC(),
	}

	switch {
	case in.ActiveHandler == "" && target != "":
		decision.Target = target
		decision.Justification.Reason = "initial assignment"
	case in.Urgent && target != "" && target != in.ActiveHandler:
		decision.Target = target
		decision.Justification.Reason = "urgency preemption"
	case complexity > e.opts.ComplexityCeiling && target != "" && target != in.ActiveHandler:
		decision.Target = target
		decision.Justification.Reason = fmt.Sprintf("complexity %.2f exceeds ceiling %.2f", complexity, e.opts.ComplexityCeiling)
	default:
		decision.Justification.Reason = "stay"
	}

	if decision.Transferred() || in.ActiveHandler == "" {
		decision.Snapshot = in.Snapshot
	}

	e.opts.Logger.Debug("handoff decision",
		"turn", in.TurnIndex,
		"source", decision.Source,
		"target", decision.Target,
		"urgent", in.Urgent,
		"complexity", complexity,
		"reason", decision.Justification.Reason,
	)
	return decision
}

// operation verbs used to detect multi-operation turns.
var operationVerbs = []string{
	"schedule", "book", "create", "add", "move", "reschedule", "cancel",
	"send", "reply", "check", "delete", "complete", "remind",
}

// DetectMultipleOperations reports whether a turn's text requests more than
// one operation, e.g. "cancel the standup and email the team".
func DetectMultipleOperations(text string) bool {
	lower := strings.ToLower(text)
	count := 0
	for _, w := range strings.FieldsFunc(lower, func(r rune) bool {
		return r == ' ' || r == ',' || r == '.' || r == ';'
	}) {
		for _, verb := range operationVerbs {
			if w == verb {
				count++
				break
			}
		}
	}
	return count > 1
}
