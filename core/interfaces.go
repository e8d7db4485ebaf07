package core

import "context"

// Candidate is a raw entity candidate supplied by an Extractor for one turn:
// surface span, inferred type and extraction confidence. Start/End are rune
// offsets into the turn text.
type Candidate struct {
	Span       string     `json:"span"`
	Type       EntityType `json:"type"`
	Confidence float64    `json:"confidence"`
	Start      int        `json:"start"`
	End        int        `json:"end"`
}

// Extractor supplies ordered candidate entities for a turn's text. The core
// does not implement extraction itself; the extractor package provides a
// rule-based default and LLM-backed adapters.
//
// Extract is finite and non-restartable per call: one call, one ordered slice.
type Extractor interface {
	Extract(ctx context.Context, text string) ([]Candidate, error)
}

// ResultKind discriminates handler invocation outcomes.
type ResultKind string

const (
	// ResultSuccess marks a completed operation.
	ResultSuccess ResultKind = "success"
	// ResultFailure marks a structured failure surfaced to the caller.
	ResultFailure ResultKind = "failure"
)

// Invocation is one operation request issued to a handler, together with the
// context snapshot so the handler does not need to re-resolve references.
type Invocation struct {
	Operation  string          `json:"operation"`
	Parameters map[string]any  `json:"parameters,omitempty"`
	Snapshot   ContextSnapshot `json:"snapshot"`
}

// Result is the structured outcome of a handler invocation.
type Result struct {
	Kind   ResultKind     `json:"kind"`
	Data   map[string]any `json:"data,omitempty"`
	Reason string         `json:"reason,omitempty"`
}

// Failed reports whether the result is a structured failure.
func (r Result) Failed() bool { return r.Kind == ResultFailure }

// Handler is the single contract every specialized service handler satisfies,
// regardless of backing service. Invoke is a potentially slow or failing
// I/O call; implementations must honor ctx cancellation.
type Handler interface {
	// ID returns the stable handler identifier used by the affinity table.
	ID() string

	// Invoke executes one operation and returns a structured result. An
	// error return covers transport-level failure; a Result with
	// ResultFailure covers structured domain failure.
	Invoke(ctx context.Context, inv Invocation) (Result, error)
}

// ContextStore persists conversation snapshots across process restarts.
// The core only interacts with it via whole-snapshot save/load calls;
// encoding is owned by the tracker's snapshot/restore.
type ContextStore interface {
	// Save persists the snapshot bytes for a conversation, overwriting any
	// previous snapshot.
	Save(ctx context.Context, conversationID string, snapshot []byte) error

	// Load returns the latest snapshot bytes, or ErrNotFound when the
	// conversation has never been saved.
	Load(ctx context.Context, conversationID string) ([]byte, error)
}
