package trace

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/planmesh/core"
)

func TestAppendPreservesOrder(t *testing.T) {
	log := NewLog()

	log.Append(core.NewHandlerInvokedEvent(0, "calendar-agent", "schedule a meeting"))
	log.Append(core.NewOperationCompletedEvent(0, "calendar-agent", "schedule", 12*time.Millisecond))
	log.Append(core.NewHandlerInvokedEvent(1, "calendar-agent", "move it to friday"))

	events := log.Events()
	require.Len(t, events, 3)
	assert.Equal(t, core.TraceHandlerInvoked, events[0].Kind)
	assert.Equal(t, core.TraceOperationCompleted, events[1].Kind)
	assert.Equal(t, 1, events[2].TurnIndex)
}

func TestEventsReturnsCopy(t *testing.T) {
	log := NewLog()
	log.Append(core.NewHandlerInvokedEvent(0, "a", "x"))

	events := log.Events()
	events[0].HandlerID = "mutated"

	assert.Equal(t, "a", log.Events()[0].HandlerID)
}

func TestByKindAndByTurn(t *testing.T) {
	log := NewLog()
	log.Append(core.NewHandlerInvokedEvent(0, "a", "x"))
	log.Append(core.NewResolutionFailedEvent(0, "it", 0.2))
	log.Append(core.NewHandlerInvokedEvent(1, "a", "y"))

	assert.Len(t, log.ByKind(core.TraceHandlerInvoked), 2)
	assert.Len(t, log.ByKind(core.TraceResolutionFailed), 1)
	assert.Len(t, log.ByTurn(0), 2)
	assert.Len(t, log.ByTurn(1), 1)
	assert.Empty(t, log.ByTurn(7))
}

func TestHandlerUsage(t *testing.T) {
	log := NewLog()
	log.Append(core.NewHandlerInvokedEvent(0, "calendar-agent", "x"))
	log.Append(core.NewHandlerInvokedEvent(1, "calendar-agent", "y"))
	log.Append(core.NewHandlerInvokedEvent(2, "email-agent", "z"))

	usage := log.HandlerUsage()
	assert.Equal(t, 2, usage["calendar-agent"])
	assert.Equal(t, 1, usage["email-agent"])
}

func TestFailureRate(t *testing.T) {
	log := NewLog()
	log.Append(core.NewOperationCompletedEvent(0, "a", "op", time.Millisecond))
	log.Append(core.NewOperationFailedEvent(1, "a", "op", "backend unavailable", time.Millisecond))
	log.Append(core.NewHandlerTimeoutEvent(2, "a", "op", 50*time.Millisecond))
	log.Append(core.NewOperationCompletedEvent(3, "b", "op", time.Millisecond))

	rates := log.FailureRate()
	assert.InDelta(t, 2.0/3.0, rates["a"], 1e-9)
	assert.Zero(t, rates["b"])
}

func TestLatencyStats(t *testing.T) {
	log := NewLog()
	log.Append(core.NewOperationCompletedEvent(0, "a", "op", 10*time.Millisecond))
	log.Append(core.NewOperationCompletedEvent(1, "a", "op", 30*time.Millisecond))
	log.Append(core.NewOperationFailedEvent(2, "a", "op", "backend unavailable", 20*time.Millisecond))

	stats := log.Latency()["a"]
	assert.Equal(t, 3, stats.Count)
	assert.Equal(t, 10*time.Millisecond, stats.Min)
	assert.Equal(t, 30*time.Millisecond, stats.Max)
	assert.Equal(t, 20*time.Millisecond, stats.Avg())
}

func TestHandoffCount(t *testing.T) {
	log := NewLog()
	log.Append(core.NewHandoffExecutedEvent(core.HandoffDecision{
		Source: "a", Target: "b", TurnIndex: 1,
	}))
	log.Append(core.NewHandlerInvokedEvent(1, "b", "x"))

	assert.Equal(t, 1, log.HandoffCount())
}

func TestConcurrentReadsSeeStablePrefix(t *testing.T) {
	log := NewLog()

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			log.Append(core.NewHandlerInvokedEvent(i, "a", "x"))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			events := log.Events()
			for j, ev := range events {
				// Append order is the read order: the prefix never reorders.
				assert.Equal(t, j, ev.TurnIndex)
			}
		}
	}()

	wg.Wait()
	assert.Equal(t, 200, log.Len())
}

func TestEmptyLogAggregates(t *testing.T) {
	log := NewLog()
	assert.Empty(t, log.HandlerUsage())
	assert.Empty(t, log.FailureRate())
	assert.Empty(t, log.Latency())
	assert.Zero(t, log.HandoffCount())
	assert.Zero(t, log.DurationStatsFor("a").Count)
}
