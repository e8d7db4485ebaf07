package tracker

import (
	"math"
	"strings"

	"github.com/hupe1980/planmesh/core"
)

// pronoun and definite-description type compatibility. A span maps to the
// entity types it can plausibly refer to; an empty result means the span is
// not a recognizable reference form.
var pronounTypes = map[string][]core.EntityType{
	"he":   {core.EntityTypePerson},
	"him":  {core.EntityTypePerson},
	"his":  {core.EntityTypePerson},
	"she":  {core.EntityTypePerson},
	"her":  {core.EntityTypePerson},
	"they": {core.EntityTypePerson},
	"them": {core.EntityTypePerson},
	"it":   {core.EntityTypeEvent, core.EntityTypeTask, core.EntityTypeEmail},
	"that": {core.EntityTypeEvent, core.EntityTypeTask, core.EntityTypeEmail},
	"this": {core.EntityTypeEvent, core.EntityTypeTask, core.EntityTypeEmail},
}

var nounTypes = map[string]core.EntityType{
	"meeting":     core.EntityTypeEvent,
	"event":       core.EntityTypeEvent,
	"appointment": core.EntityTypeEvent,
	"call":        core.EntityTypeEvent,
	"standup":     core.EntityTypeEvent,
	"task":        core.EntityTypeTask,
	"todo":        core.EntityTypeTask,
	"reminder":    core.EntityTypeTask,
	"deadline":    core.EntityTypeTask,
	"email":       core.EntityTypeEmail,
	"mail":        core.EntityTypeEmail,
	"message":     core.EntityTypeEmail,
	"place":       core.EntityTypeLocation,
	"office":      core.EntityTypeLocation,
}

// compatibleTypes infers which entity types a reference span may bind to.
func compatibleTypes(span string) []core.EntityType {
	words := strings.Fields(strings.ToLower(span))
	if len(words) == 0 {
		return nil
	}
	if len(words) == 1 {
		if types, ok := pronounTypes[words[0]]; ok {
			return types
		}
	}
	// Definite noun phrase: the head noun decides ("that meeting", "the task").
	for i := len(words) - 1; i >= 0; i-- {
		if typ, ok := nounTypes[words[i]]; ok {
			return []core.EntityType{typ}
		}
	}
	if types, ok := pronounTypes[words[0]]; ok {
		return types
	}
	return nil
}

// ResolveReference attempts to bind an anaphoric or definite reference to a
// prior entity. Candidates are filtered by type compatibility inferred from
// the span, then scored by recency decay, lexical overlap with known aliases
// and relationship proximity to the most recently discussed entity. The
// highest score above the configured floor wins; below the floor the
// reference is returned unresolved and retained for retroactive resolution.
//
// Ambiguity is a first-class, retryable result, never an error.
func (t *Tracker) ResolveReference(span string, turn int) core.ReferenceResolution {
	t.mu.Lock()
	defer t.mu.Unlock()

	res := t.resolveLocked(span, turn)
	if res.Resolved {
		t.bindLocked(turn, span, res.EntityID)
		t.entities[res.EntityID].Touch(turn)
		t.lastFocus = res.EntityID
		t.opts.Logger.Debug("reference resolved", "span", span, "entity_id", res.EntityID, "confidence", res.Confidence)
	} else {
		t.pending = append(t.pending, res)
		t.opts.Logger.Info("reference unresolved", "span", span, "confidence", res.Confidence)
	}
	return res
}

// ResolvePending retries every retained unresolved reference against the
// current registry and returns the ones that now resolve. Called after new
// turns add entities or clarify ambiguity.
func (t *Tracker) ResolvePending(turn int) []core.ReferenceResolution {
	t.mu.Lock()
	defer t.mu.Unlock()

	var resolved []core.ReferenceResolution
	remaining := t.pending[:0]
	for _, ref := range t.pending {
		res := t.resolveLocked(ref.Span, turn)
		if res.Resolved {
			res.TurnIndex = ref.TurnIndex // keep the originating turn
			t.bindLocked(turn, ref.Span, res.EntityID)
			t.entities[res.EntityID].Touch(turn)
			resolved = append(resolved, res)
			continue
		}
		remaining = append(remaining, ref)
	}
	t.pending = remaining
	return resolved
}

func (t *Tracker) resolveLocked(span string, turn int) core.ReferenceResolution {
	ref := core.ReferenceResolution{Span: span, TurnIndex: turn}

	types := compatibleTypes(span)
	if len(types) == 0 {
		return ref
	}
	typeOK := map[core.EntityType]bool{}
	for _, typ := range types {
		typeOK[typ] = true
	}

	var bestID string
	var bestScore float64
	for _, id := range t.order {
		e := t.entities[id]
		if !typeOK[e.Type] {
			continue
		}
		score := t.scoreLocked(span, e, turn)
		if score > bestScore {
			bestScore = score
			bestID = id
		}
	}

	ref.Confidence = bestScore
	if bestID != "" && bestScore >= t.opts.ConfidenceFloor {
		ref.EntityID = bestID
		ref.Resolved = true
	}
	return ref
}

// scoreLocked combines type match, recency decay, alias word overlap and
// proximity to the discussion focus into a [0,1] confidence.
func (t *Tracker) scoreLocked(span string, e *core.ContextualEntity, turn int) float64 {
	turnsSince := turn - e.LastReferenced
	if turnsSince < 0 {
		turnsSince = 0
	}
	score := 0.35                                              // type-compatible base
	score += 0.4 * math.Exp(-t.opts.RecencyDecay*float64(turnsSince)) // recency

	// Lexical overlap between the span's content words and any alias.
	overlap := 0.0
	for _, alias := range e.Aliases {
		if s := wordSimilarity(span, alias); s > overlap {
			overlap = s
		}
		if strings.Contains(strings.ToLower(alias), headNoun(span)) && headNoun(span) != "" {
			if 0.5 > overlap {
				overlap = 0.5
			}
		}
	}
	score += 0.25 * overlap

	// Entities linked to the current focus score higher.
	if t.lastFocus != "" && t.lastFocus != e.ID {
		if focus, ok := t.entities[t.lastFocus]; ok {
			if anyRelation(focus, e.ID) || anyRelation(e, focus.ID) {
				score += t.opts.ProximityBonus
			}
		}
	}

	if score > 1 {
		score = 1
	}
	return score
}

func anyRelation(e *core.ContextualEntity, target string) bool {
	for _, r := range e.Relations {
		if r.Target == target {
			return true
		}
	}
	return false
}

// headNoun returns the last word of the span that is a known domain noun.
func headNoun(span string) string {
	words := strings.Fields(strings.ToLower(span))
	for i := len(words) - 1; i >= 0; i-- {
		if _, ok := nounTypes[words[i]]; ok {
			return words[i]
		}
	}
	return ""
}

func (t *Tracker) bindLocked(turn int, span, entityID string) {
	if t.bindings[turn] == nil {
		t.bindings[turn] = map[string]string{}
	}
	t.bindings[turn][strings.ToLower(span)] = entityID
}
