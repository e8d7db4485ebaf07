// Package trace provides an append-only log of the observable actions taken
// while processing a conversation: handler invocations, handoffs, resolution
// failures and operation outcomes. The log supports aggregate queries for
// debugging and offline analysis.
package trace

import (
	"sync"
	"time"

	"github.com/hupe1980/planmesh/core"
)

// Log is an append-only trace for one conversation. Appends come from the
// single goroutine processing that conversation's turns; reads may come from
// any goroutine and observe a stable prefix of the event stream.
type Log struct {
	mu     sync.RWMutex
	events []core.TraceEvent
}

// NewLog constructs an empty trace log.
func NewLog() *Log {
	return &Log{}
}

// Append records an event. Events are never mutated or removed afterwards.
func (l *Log) Append(ev core.TraceEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

// Len returns the number of recorded events.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

// Events returns a copy of the full event stream in append order.
func (l *Log) Events() []core.TraceEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]core.TraceEvent, len(l.events))
	copy(out, l.events)
	return out
}

// ByKind returns all events of the given kind in append order.
func (l *Log) ByKind(kind core.TraceEventKind) []core.TraceEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []core.TraceEvent
	for _, ev := range l.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

// ByTurn returns all events recorded for the given turn index.
func (l *Log) ByTurn(turnIndex int) []core.TraceEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []core.TraceEvent
	for _, ev := range l.events {
		if ev.TurnIndex == turnIndex {
			out = append(out, ev)
		}
	}
	return out
}

// HandlerUsage returns invocation counts per handler id.
func (l *Log) HandlerUsage() map[string]int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	counts := make(map[string]int)
	for _, ev := range l.events {
		if ev.Kind == core.TraceHandlerInvoked {
			counts[ev.HandlerID]++
		}
	}
	return counts
}

// FailureRate returns, per handler, the fraction of completed operations
// that failed. Timeouts count as failures.
func (l *Log) FailureRate() map[string]float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	total := make(map[string]int)
	failed := make(map[string]int)
	for _, ev := range l.events {
		switch ev.Kind {
		case core.TraceOperationCompleted:
			total[ev.HandlerID]++
		case core.TraceOperationFailed, core.TraceHandlerTimeout:
			total[ev.HandlerID]++
			failed[ev.HandlerID]++
		}
	}

	rates := make(map[string]float64, len(total))
	for id, n := range total {
		rates[id] = float64(failed[id]) / float64(n)
	}
	return rates
}

// HandoffCount returns the number of executed handoffs.
func (l *Log) HandoffCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	n := 0
	for _, ev := range l.events {
		if ev.Kind == core.TraceHandoffExecuted {
			n++
		}
	}
	return n
}

// DurationStats summarizes a series of durations.
type DurationStats struct {
	Count int
	Total time.Duration
	Min   time.Duration
	Max   time.Duration
}

// Avg returns the mean duration, or 0 for an empty series.
func (s DurationStats) Avg() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Count)
}

func (s *DurationStats) observe(d time.Duration) {
	if s.Count == 0 || d < s.Min {
		s.Min = d
	}
	if d > s.Max {
		s.Max = d
	}
	s.Count++
	s.Total += d
}

// DurationStatsFor returns the duration statistics for a single handler.
func (l *Log) DurationStatsFor(handlerID string) DurationStats {
	return l.Latency()[handlerID]
}

// Latency returns per-handler duration statistics over completed and failed
// operations that carried a duration.
func (l *Log) Latency() map[string]DurationStats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	stats := make(map[string]DurationStats)
	for _, ev := range l.events {
		switch ev.Kind {
		case core.TraceOperationCompleted, core.TraceOperationFailed, core.TraceHandlerTimeout:
			s := stats[ev.HandlerID]
			s.observe(ev.Duration)
			stats[ev.HandlerID] = s
		}
	}
	return stats
}
