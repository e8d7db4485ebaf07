package handoff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/planmesh/core"
	"github.com/hupe1980/planmesh/internal/testutil"
)

func testAffinity() AffinityTable {
	return AffinityTable{
		EntityTypes: map[core.EntityType]string{
			core.EntityTypeEvent: "calendar-agent",
			core.EntityTypeTask:  "task-agent",
			core.EntityTypeEmail: "email-agent",
		},
		Intents: map[string]string{
			"planning": "planner-agent",
		},
		Default: "general-agent",
	}
}

func TestDecideUrgencyPreemption(t *testing.T) {
	engine := New(func(o *Options) {
		o.Affinity = testAffinity()
	})

	// "Move my meeting ASAP" while the task agent is active: the affinity
	// table names a different handler for events, so the urgent turn must
	// transfer immediately even though complexity is trivial.
	d := engine.Decide(Input{
		TurnIndex:     3,
		ActiveHandler: "task-agent",
		Intent:        "schedule",
		Urgent:        true,
		EntityTypes:   []core.EntityType{core.EntityTypeEvent},
		DominantType:  core.EntityTypeEvent,
	})

	require.True(t, d.Transferred())
	assert.Equal(t, "task-agent", d.Source)
	assert.Equal(t, "calendar-agent", d.Target)
	assert.Equal(t, "urgency preemption", d.Justification.Reason)
	assert.True(t, d.Justification.Urgent)
}

func TestDecideUrgentButAlignedStays(t *testing.T) {
	engine := New(func(o *Options) {
		o.Affinity = testAffinity()
	})

	// Urgent, but the affinity target is already active: no transfer.
	d := engine.Decide(Input{
		TurnIndex:     4,
		ActiveHandler: "calendar-agent",
		Intent:        "schedule",
		Urgent:        true,
		EntityTypes:   []core.EntityType{core.EntityTypeEvent},
		DominantType:  core.EntityTypeEvent,
	})

	assert.False(t, d.Transferred())
	assert.Equal(t, "calendar-agent", d.Target)
	assert.Equal(t, "stay", d.Justification.Reason)
}

func TestDecideComplexityTransfer(t *testing.T) {
	engine := New(func(o *Options) {
		o.Affinity = testAffinity()
		o.ComplexityCeiling = 2.5
	})

	// Three entity types plus two unresolved references plus a multi-op
	// request scores 1*3 + 0.5*2 + 1 = 5.0, well above the ceiling.
	d := engine.Decide(Input{
		TurnIndex:     5,
		ActiveHandler: "calendar-agent",
		Intent:        "task_create",
		EntityTypes: []core.EntityType{
			core.EntityTypeTask, core.EntityTypeEvent, core.EntityTypePerson,
		},
		DominantType:       core.EntityTypeTask,
		UnresolvedCount:    2,
		MultipleOperations: true,
	})

	require.True(t, d.Transferred())
	assert.Equal(t, "task-agent", d.Target)
	assert.InDelta(t, 5.0, d.Justification.Complexity, 1e-9)
	assert.Contains(t, d.Justification.Reason, "complexity")
}

func TestDecideComplexBelowCeilingStays(t *testing.T) {
	engine := New(func(o *Options) {
		o.Affinity = testAffinity()
	})

	d := engine.Decide(Input{
		TurnIndex:     6,
		ActiveHandler: "calendar-agent",
		Intent:        "task_create",
		EntityTypes:   []core.EntityType{core.EntityTypeTask},
		DominantType:  core.EntityTypeTask,
	})

	assert.False(t, d.Transferred())
	assert.Equal(t, "calendar-agent", d.Target)
}

func TestDecideInitialAssignment(t *testing.T) {
	engine := New(func(o *Options) {
		o.Affinity = testAffinity()
	})

	d := engine.Decide(Input{
		TurnIndex:    0,
		Intent:       "email_process",
		EntityTypes:  []core.EntityType{core.EntityTypeEmail},
		DominantType: core.EntityTypeEmail,
	})

	require.True(t, d.Transferred())
	assert.Empty(t, d.Source)
	assert.Equal(t, "email-agent", d.Target)
	assert.Equal(t, "initial assignment", d.Justification.Reason)
}

func TestDecideSnapshotOnTransferOnly(t *testing.T) {
	engine := New(func(o *Options) {
		o.Affinity = testAffinity()
	})

	snap := core.ContextSnapshot{
		TurnIndex: 2,
		Entities: []core.ContextualEntity{
			*testutil.NewEntityBuilder("budget review").ID("e1").Seen(2).Build(),
		},
	}

	stay := engine.Decide(Input{
		TurnIndex:     2,
		ActiveHandler: "calendar-agent",
		Intent:        "schedule",
		EntityTypes:   []core.EntityType{core.EntityTypeEvent},
		DominantType:  core.EntityTypeEvent,
		Snapshot:      snap,
	})
	assert.Empty(t, stay.Snapshot.Entities)

	transfer := engine.Decide(Input{
		TurnIndex:     2,
		ActiveHandler: "email-agent",
		Intent:        "schedule",
		Urgent:        true,
		EntityTypes:   []core.EntityType{core.EntityTypeEvent},
		DominantType:  core.EntityTypeEvent,
		Snapshot:      snap,
	})
	require.True(t, transfer.Transferred())
	assert.Equal(t, []string{"e1"}, transfer.Snapshot.EntityIDs())
}

func TestAffinityTablePrecedence(t *testing.T) {
	table := AffinityTable{
		Pairs: map[AffinityKey]string{
			{Type: core.EntityTypeEvent, Intent: "planning"}: "planner-agent",
		},
		EntityTypes: map[core.EntityType]string{
			core.EntityTypeEvent: "calendar-agent",
		},
		Intents: map[string]string{
			"email_process": "email-agent",
		},
		Default: "general-agent",
	}

	assert.Equal(t, "planner-agent", table.Target(core.EntityTypeEvent, "planning"))
	assert.Equal(t, "calendar-agent", table.Target(core.EntityTypeEvent, "schedule"))
	assert.Equal(t, "email-agent", table.Target(core.EntityTypePerson, "email_process"))
	assert.Equal(t, "general-agent", table.Target(core.EntityTypePerson, "schedule"))
}

func TestDetectMultipleOperations(t *testing.T) {
	assert.True(t, DetectMultipleOperations("Cancel the standup and send an email to the team"))
	assert.True(t, DetectMultipleOperations("schedule a review, then remind me about the slides"))
	assert.False(t, DetectMultipleOperations("schedule a review for Tuesday"))
	assert.False(t, DetectMultipleOperations("what's on my calendar"))
}

func TestHistoryAnalytics(t *testing.T) {
	h := NewHistory()

	h.Record(core.HandoffDecision{Source: "a", Target: "a"})
	h.Record(core.HandoffDecision{Source: "a", Target: "b", Justification: core.Justification{Urgent: true}})
	h.Record(core.HandoffDecision{Source: "b", Target: "a"})
	h.Record(core.HandoffDecision{Source: "a", Target: "b"})

	assert.Equal(t, 4, h.Len())
	assert.Len(t, h.Transfers(), 3)
	assert.InDelta(t, 0.75, h.TransferRate(), 1e-9)
	assert.Equal(t, 1, h.UrgentTransfers())

	counts := h.RouteCounts()
	assert.Equal(t, 2, counts[Route{Source: "a", Target: "b"}])
	assert.Equal(t, 1, counts[Route{Source: "b", Target: "a"}])
}

func TestHistoryEmpty(t *testing.T) {
	h := NewHistory()
	assert.Zero(t, h.TransferRate())
	assert.Empty(t, h.Transfers())
}
