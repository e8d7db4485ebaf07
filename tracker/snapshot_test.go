package tracker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/planmesh/core"
)

func TestSnapshotRestore_RoundTrip(t *testing.T) {
	tr := New()

	ids := tr.Register([]core.Candidate{
		candidate(core.EntityTypeEvent, "meeting with John"),
		candidate(core.EntityTypePerson, "John"),
	}, 0)
	require.NoError(t, tr.Link(ids[1], ids[0], core.RelationAttendeeOf))
	require.NoError(t, tr.SetAttribute(ids[0], "location", "room 4"))
	tr.ResolveReference("that email", 1) // stays pending

	data, err := tr.Snapshot()
	require.NoError(t, err)

	restored := New()
	require.NoError(t, restored.Restore(data))

	// Structural identity.
	assert.Equal(t, tr.Len(), restored.Len())
	orig, err := tr.Get(ids[0])
	require.NoError(t, err)
	back, err := restored.Get(ids[0])
	require.NoError(t, err)
	assert.Equal(t, orig, back)
	assert.Equal(t, tr.Unresolved(), restored.Unresolved())

	// Behavioral identity: the same subsequent input resolves identically.
	refA := tr.ResolveReference("that meeting", 2)
	refB := restored.ResolveReference("that meeting", 2)
	assert.Equal(t, refA, refB)

	mergedA := tr.Register([]core.Candidate{candidate(core.EntityTypePerson, "john")}, 3)
	mergedB := restored.Register([]core.Candidate{candidate(core.EntityTypePerson, "john")}, 3)
	assert.Equal(t, mergedA, mergedB)
}

func TestSnapshot_EmptyTracker(t *testing.T) {
	tr := New()

	data, err := tr.Snapshot()
	require.NoError(t, err)

	restored := New()
	require.NoError(t, restored.Restore(data))
	assert.Zero(t, restored.Len())
	assert.Empty(t, restored.Unresolved())
}

func TestRestore_RejectsGarbage(t *testing.T) {
	tr := New()
	assert.Error(t, tr.Restore([]byte("{not json")))
}

func TestRestore_ReplacesExistingState(t *testing.T) {
	empty := New()
	data, err := empty.Snapshot()
	require.NoError(t, err)

	tr := New()
	tr.Register([]core.Candidate{candidate(core.EntityTypeTask, "old state")}, 0)
	require.NoError(t, tr.Restore(data))

	assert.Zero(t, tr.Len(), "restore replaces, never merges")
}
