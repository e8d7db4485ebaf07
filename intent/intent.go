// Package intent maintains a confidence-scored rolling history of detected
// intents per conversation and derives the urgency signal feeding handoff
// decisions. The Classifier provides a deterministic rule-based intent
// labeling so routing behavior stays reproducible without a live language
// model in tests.
package intent

import (
	"sync"
	"time"

	"github.com/hupe1980/planmesh/core"
)

// Options tunes trend and urgency derivation.
type Options struct {
	// WindowSize is the number of recent records considered by CurrentTrend.
	WindowSize int

	// MinConfidence excludes low-confidence records from trend voting.
	MinConfidence float64

	// UrgencyMarkers are lexical signals that flag a turn urgent on sight.
	UrgencyMarkers []string

	// NearTermThreshold flags a turn urgent when a resolved deadline falls
	// within this horizon.
	NearTermThreshold time.Duration
}

// Tracker records the ordered intent history of one conversation. Safe for
// concurrent reads; Update calls are serialized by the engine's
// per-conversation locking.
type Tracker struct {
	mu      sync.RWMutex
	records []core.IntentRecord
	opts    Options
}

// NewTracker constructs a Tracker with optional overrides.
func NewTracker(optFns ...func(o *Options)) *Tracker {
	opts := Options{
		WindowSize:    5,
		MinConfidence: 0.3,
		UrgencyMarkers: []string{
			"urgent", "asap", "immediately", "right away", "emergency", "critical",
		},
		NearTermThreshold: 2 * time.Hour,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Tracker{opts: opts}
}

// Update appends an intent record for the turn.
func (t *Tracker) Update(turn int, label string, confidence float64, urgent bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records = append(t.records, core.IntentRecord{
		Label:      label,
		Confidence: confidence,
		TurnIndex:  turn,
		Urgent:     urgent,
	})
}

// CurrentTrend returns the dominant intent over the configured recent window
// using confidence-weighted majority, ties broken by recency (most recent
// wins). ok is false when no confident intent exists in the window.
func (t *Tracker) CurrentTrend() (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	start := 0
	if t.opts.WindowSize > 0 && len(t.records) > t.opts.WindowSize {
		start = len(t.records) - t.opts.WindowSize
	}
	window := t.records[start:]

	weights := map[string]float64{}
	lastSeen := map[string]int{}
	for i, r := range window {
		if r.Label == "" || r.Confidence < t.opts.MinConfidence {
			continue
		}
		weights[r.Label] += r.Confidence
		lastSeen[r.Label] = i
	}
	if len(weights) == 0 {
		return "", false
	}

	var best string
	var bestWeight float64
	for label, w := range weights {
		switch {
		case w > bestWeight:
			best, bestWeight = label, w
		case w == bestWeight && lastSeen[label] > lastSeen[best]:
			best = label
		}
	}
	return best, true
}

// History returns a copy of the full intent record sequence.
func (t *Tracker) History() []core.IntentRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]core.IntentRecord, len(t.records))
	copy(out, t.records)
	return out
}

// Len returns the number of recorded intents.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.records)
}
