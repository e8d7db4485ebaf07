// Package extractor turns raw utterance text into typed entity candidates.
// The default implementation is rule based and dependency free; the
// anthropic and openai subpackages provide LLM-backed implementations of the
// same interface for richer extraction.
package extractor

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/hupe1980/planmesh/core"
)

// rule pairs a compiled pattern with the entity type and confidence it
// yields. When group is > 0 that capture group is the candidate span,
// otherwise the whole match is.
type rule struct {
	re         *regexp.Regexp
	typ        core.EntityType
	confidence float64
	group      int
}

var defaultRules = []rule{
	// Task descriptions introduced by an action verb or an obligation.
	{re: regexp.MustCompile(`(?i)(?:create|add|make)\s+(?:a\s+)?(?:task|todo|reminder)(?:\s+to)?\s+(.+?)(?:\.|$|\s+with|\s+by)`), typ: core.EntityTypeTask, confidence: 0.8, group: 1},
	{re: regexp.MustCompile(`(?i)(?:need to|have to|must|remind me to)\s+(.+?)(?:\.|$|\s+by|\s+before)`), typ: core.EntityTypeTask, confidence: 0.8, group: 1},

	// Event noun phrases behind a determiner, e.g. "a budget review meeting".
	{re: regexp.MustCompile(`(?i)\b(?:the|my|our|a|an|this|that)\s+((?:[a-z0-9]+\s+){0,2}(?:meeting|appointment|call|standup|sync|interview))\b`), typ: core.EntityTypeEvent, confidence: 0.7, group: 1},

	// People mentioned as participants.
	{re: regexp.MustCompile(`\b(?:with|and|to|from)\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)?)\b`), typ: core.EntityTypePerson, confidence: 0.75, group: 1},

	// Email artifacts.
	{re: regexp.MustCompile(`(?i)\b((?:email|mail|message|inbox)s?(?:\s+from\s+\w+)?)\b`), typ: core.EntityTypeEmail, confidence: 0.7, group: 1},

	// Temporal expressions handed to the temporal resolver downstream.
	{re: regexp.MustCompile(`(?i)\b(today|tomorrow|yesterday|tonight|next week|last week|this (?:morning|afternoon|evening|week))\b`), typ: core.EntityTypeTimeExpression, confidence: 0.85},
	{re: regexp.MustCompile(`(?i)\b((?:this\s+|next\s+)?(?:monday|tuesday|wednesday|thursday|friday|saturday|sunday))\b`), typ: core.EntityTypeTimeExpression, confidence: 0.85, group: 1},
	{re: regexp.MustCompile(`(?i)\b((?:at\s+)?\d{1,2}(?::\d{2})?\s*(?:am|pm))\b`), typ: core.EntityTypeTimeExpression, confidence: 0.85, group: 1},
	{re: regexp.MustCompile(`(?i)\b(in\s+(?:a|an|\d+|two|three|four|five|ten)\s+(?:minutes?|hours?|days?|weeks?))\b`), typ: core.EntityTypeTimeExpression, confidence: 0.85, group: 1},

	// Locations.
	{re: regexp.MustCompile(`(?i)\b(?:at|in)\s+the\s+(office|conference room(?:\s+\w+)?|cafeteria|lobby)\b`), typ: core.EntityTypeLocation, confidence: 0.6, group: 1},
}

// personStopwords are capitalized words the person rule must not mistake for
// names, mostly weekday and month names at sentence positions where a name
// could appear.
var personStopwords = map[string]bool{
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true,
	"friday": true, "saturday": true, "sunday": true,
	"january": true, "february": true, "march": true, "april": true,
	"may": true, "june": true, "july": true, "august": true,
	"september": true, "october": true, "november": true, "december": true,
}

// Rules is the default rule-based Extractor. The zero value is not usable;
// construct with New.
type Rules struct {
	rules     []rule
	minLength int
}

var _ core.Extractor = (*Rules)(nil)

// Options configures the rule-based extractor.
type Options struct {
	// MinSpanLength drops candidates shorter than this many characters.
	MinSpanLength int
}

// New constructs the rule-based extractor.
func New(optFns ...func(o *Options)) *Rules {
	opts := Options{MinSpanLength: 3}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Rules{rules: defaultRules, minLength: opts.MinSpanLength}
}

// Extract scans text with every rule and returns typed candidates ordered by
// start offset. Identical (span, type) pairs are reported once with the
// highest confidence seen. The error value is always nil; it exists to
// satisfy the Extractor contract shared with LLM-backed implementations.
func (r *Rules) Extract(ctx context.Context, text string) ([]core.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type key struct {
		span string
		typ  core.EntityType
	}
	seen := make(map[key]int) // index into out

	var out []core.Candidate
	for _, rl := range r.rules {
		for _, m := range rl.re.FindAllStringSubmatchIndex(text, -1) {
			start, end := m[0], m[1]
			if rl.group > 0 && m[2*rl.group] >= 0 {
				start, end = m[2*rl.group], m[2*rl.group+1]
			}
			span := strings.TrimSpace(text[start:end])
			if len(span) < r.minLength {
				continue
			}
			if rl.typ == core.EntityTypePerson && personStopwords[strings.ToLower(span)] {
				continue
			}

			k := key{span: strings.ToLower(span), typ: rl.typ}
			if i, ok := seen[k]; ok {
				if rl.confidence > out[i].Confidence {
					out[i].Confidence = rl.confidence
				}
				continue
			}
			seen[k] = len(out)
			out = append(out, core.Candidate{
				Span:       span,
				Type:       rl.typ,
				Confidence: rl.confidence,
				Start:      start,
				End:        end,
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out, nil
}
