package core

import "time"

// TraceEventKind discriminates trace event payloads.
type TraceEventKind string

const (
	// TraceHandlerInvoked records a handler dispatch.
	TraceHandlerInvoked TraceEventKind = "handler-invoked"
	// TraceHandoffExecuted records a handoff decision (transfer or stay).
	TraceHandoffExecuted TraceEventKind = "handoff-executed"
	// TraceResolutionFailed records a reference that stayed unresolved.
	TraceResolutionFailed TraceEventKind = "resolution-failed"
	// TraceOperationCompleted records a successful handler operation.
	TraceOperationCompleted TraceEventKind = "operation-completed"
	// TraceOperationFailed records a failed handler operation.
	TraceOperationFailed TraceEventKind = "operation-failed"
	// TraceHandlerTimeout records a handler call exceeding its deadline.
	TraceHandlerTimeout TraceEventKind = "handler-timeout"
)

// TraceEvent is one entry in a conversation's append-only interaction log.
// After emission it should be treated as immutable.
type TraceEvent struct {
	ID        string         `json:"id"`
	Kind      TraceEventKind `json:"kind"`
	Timestamp time.Time      `json:"timestamp"`
	TurnIndex int            `json:"turn_index"`
	HandlerID string         `json:"handler_id,omitempty"`
	Duration  time.Duration  `json:"duration,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// NewTraceEvent creates a bare trace event of the given kind stamped with the
// current UTC time. Prefer the kind-specific constructors below.
func NewTraceEvent(kind TraceEventKind, turn int) TraceEvent {
	return TraceEvent{ID: NewID(), Kind: kind, TurnIndex: turn, Timestamp: time.Now().UTC()}
}

// NewHandlerInvokedEvent records a dispatch of operation to handler.
func NewHandlerInvokedEvent(turn int, handlerID, operation string) TraceEvent {
	e := NewTraceEvent(TraceHandlerInvoked, turn)
	e.HandlerID = handlerID
	e.Payload = map[string]any{"operation": operation}
	return e
}

// NewHandoffExecutedEvent records a handoff decision outcome.
func NewHandoffExecutedEvent(d HandoffDecision) TraceEvent {
	e := NewTraceEvent(TraceHandoffExecuted, d.TurnIndex)
	e.HandlerID = d.Target
	e.Payload = map[string]any{
		"decision_id": d.ID,
		"source":      d.Source,
		"target":      d.Target,
		"transferred": d.Transferred(),
		"urgent":      d.Justification.Urgent,
		"complexity":  d.Justification.Complexity,
	}
	return e
}

// NewResolutionFailedEvent records an unresolved reference span.
func NewResolutionFailedEvent(turn int, span string, confidence float64) TraceEvent {
	e := NewTraceEvent(TraceResolutionFailed, turn)
	e.Payload = map[string]any{"span": span, "confidence": confidence}
	return e
}

// NewOperationCompletedEvent records a successful handler operation with its latency.
func NewOperationCompletedEvent(turn int, handlerID, operation string, dur time.Duration) TraceEvent {
	e := NewTraceEvent(TraceOperationCompleted, turn)
	e.HandlerID = handlerID
	e.Duration = dur
	e.Payload = map[string]any{"operation": operation}
	return e
}

// NewOperationFailedEvent records a failed handler operation with the failure reason.
func NewOperationFailedEvent(turn int, handlerID, operation, reason string, dur time.Duration) TraceEvent {
	e := NewTraceEvent(TraceOperationFailed, turn)
	e.HandlerID = handlerID
	e.Duration = dur
	e.Payload = map[string]any{"operation": operation, "reason": reason}
	return e
}

// NewHandlerTimeoutEvent records a handler call that exceeded its deadline.
func NewHandlerTimeoutEvent(turn int, handlerID, operation string, deadline time.Duration) TraceEvent {
	e := NewTraceEvent(TraceHandlerTimeout, turn)
	e.HandlerID = handlerID
	e.Duration = deadline
	e.Payload = map[string]any{"operation": operation, "deadline": deadline.String()}
	return e
}

// UnixSeconds returns the timestamp as fractional seconds since Unix epoch.
// Useful for metrics & numeric serialization paths.
func (e TraceEvent) UnixSeconds() float64 { return float64(e.Timestamp.UnixNano()) / 1e9 }
