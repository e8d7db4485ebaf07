package tracker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/planmesh/core"
)

func TestResolveReference_DefiniteNounPhrase(t *testing.T) {
	tr := New()

	ids := tr.Register([]core.Candidate{candidate(core.EntityTypeEvent, "meeting with John")}, 1)
	require.Len(t, ids, 1)

	ref := tr.ResolveReference("that meeting", 2)

	require.True(t, ref.Resolved)
	assert.Equal(t, ids[0], ref.EntityID)
	assert.Greater(t, ref.Confidence, 0.35, "confidence must clear the floor")
	assert.Equal(t, 2, ref.TurnIndex)

	// Resolution counts as a reference.
	e, err := tr.Get(ids[0])
	require.NoError(t, err)
	assert.Equal(t, 2, e.LastReferenced)
}

func TestResolveReference_PronounTypeFilter(t *testing.T) {
	tr := New()

	tr.Register([]core.Candidate{
		candidate(core.EntityTypeEvent, "planning session"),
		candidate(core.EntityTypePerson, "Sarah"),
	}, 0)

	him := tr.ResolveReference("her", 1)
	require.True(t, him.Resolved)

	e, err := tr.Get(him.EntityID)
	require.NoError(t, err)
	assert.Equal(t, core.EntityTypePerson, e.Type, "person pronouns never bind to events")
}

func TestResolveReference_RecencyPrefersLatest(t *testing.T) {
	tr := New()

	old := tr.Register([]core.Candidate{candidate(core.EntityTypeEvent, "kickoff meeting")}, 0)
	recent := tr.Register([]core.Candidate{candidate(core.EntityTypeEvent, "retro meeting")}, 4)

	ref := tr.ResolveReference("that meeting", 5)
	require.True(t, ref.Resolved)
	assert.Equal(t, recent[0], ref.EntityID)
	assert.NotEqual(t, old[0], ref.EntityID)
}

func TestResolveReference_ProximityBreaksRecencyTie(t *testing.T) {
	tr := New(func(o *Options) { o.ProximityBonus = 0.2 })

	ids := tr.Register([]core.Candidate{
		candidate(core.EntityTypeEvent, "design review"),
		candidate(core.EntityTypeEvent, "budget sync"),
		candidate(core.EntityTypePerson, "Ana"),
	}, 0)
	require.NoError(t, tr.Link(ids[2], ids[1], core.RelationAttendeeOf))

	// Ana is the focus after this registration; "budget sync" is linked to
	// her while "design review" is not.
	tr.Register([]core.Candidate{candidate(core.EntityTypePerson, "Ana")}, 1)

	ref := tr.ResolveReference("that meeting", 2)
	require.True(t, ref.Resolved)
	assert.Equal(t, ids[1], ref.EntityID)
}

func TestResolveReference_UnresolvedIsNotAnError(t *testing.T) {
	tr := New()

	ref := tr.ResolveReference("him", 0)

	assert.False(t, ref.Resolved)
	assert.Empty(t, ref.EntityID)
	require.Len(t, tr.Unresolved(), 1, "unresolved references are retained")
}

func TestResolveReference_UnrecognizableSpan(t *testing.T) {
	tr := New()
	tr.Register([]core.Candidate{candidate(core.EntityTypeEvent, "standup")}, 0)

	ref := tr.ResolveReference("xyzzy", 1)
	assert.False(t, ref.Resolved)
	assert.Zero(t, ref.Confidence)
}

func TestResolvePending_RetroactiveResolution(t *testing.T) {
	tr := New()

	// Turn 0: "him" has no person to bind to.
	ref := tr.ResolveReference("him", 0)
	require.False(t, ref.Resolved)

	// Turn 1 clarifies by introducing the person.
	ids := tr.Register([]core.Candidate{candidate(core.EntityTypePerson, "Marcus")}, 1)

	resolved := tr.ResolvePending(1)
	require.Len(t, resolved, 1)
	assert.True(t, resolved[0].Resolved)
	assert.Equal(t, ids[0], resolved[0].EntityID)
	assert.Equal(t, 0, resolved[0].TurnIndex, "originating turn is preserved")
	assert.Empty(t, tr.Unresolved())
}

func TestResolvePending_KeepsStillAmbiguous(t *testing.T) {
	tr := New()

	tr.ResolveReference("him", 0)
	tr.ResolveReference("that email", 0)

	tr.Register([]core.Candidate{candidate(core.EntityTypePerson, "Marcus")}, 1)

	resolved := tr.ResolvePending(1)
	require.Len(t, resolved, 1)
	require.Len(t, tr.Unresolved(), 1)
	assert.Equal(t, "that email", tr.Unresolved()[0].Span)
}

func TestCompatibleTypes(t *testing.T) {
	tests := []struct {
		span string
		want []core.EntityType
	}{
		{"him", []core.EntityType{core.EntityTypePerson}},
		{"it", []core.EntityType{core.EntityTypeEvent, core.EntityTypeTask, core.EntityTypeEmail}},
		{"that meeting", []core.EntityType{core.EntityTypeEvent}},
		{"the task", []core.EntityType{core.EntityTypeTask}},
		{"that email", []core.EntityType{core.EntityTypeEmail}},
		{"xyzzy", nil},
		{"", nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, compatibleTypes(tt.span), "span %q", tt.span)
	}
}
