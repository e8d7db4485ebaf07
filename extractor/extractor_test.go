package extractor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/planmesh/core"
)

func spans(cs []core.Candidate, typ core.EntityType) []string {
	var out []string
	for _, c := range cs {
		if c.Type == typ {
			out = append(out, c.Span)
		}
	}
	return out
}

func TestExtractSchedulingUtterance(t *testing.T) {
	ext := New()

	cs, err := ext.Extract(context.Background(), "Schedule a budget review meeting with Ana tomorrow at 3pm")
	require.NoError(t, err)

	assert.Contains(t, spans(cs, core.EntityTypeEvent), "budget review meeting")
	assert.Contains(t, spans(cs, core.EntityTypePerson), "Ana")
	timeSpans := spans(cs, core.EntityTypeTimeExpression)
	assert.Contains(t, timeSpans, "tomorrow")
	assert.Contains(t, timeSpans, "at 3pm")
}

func TestExtractTaskUtterance(t *testing.T) {
	ext := New()

	cs, err := ext.Extract(context.Background(), "Remind me to send the slides by Friday")
	require.NoError(t, err)

	assert.Contains(t, spans(cs, core.EntityTypeTask), "send the slides")
	assert.Contains(t, spans(cs, core.EntityTypeTimeExpression), "Friday")
	assert.Empty(t, spans(cs, core.EntityTypePerson), "weekday must not read as a name")
}

func TestExtractExplicitTaskCreation(t *testing.T) {
	ext := New()

	cs, err := ext.Extract(context.Background(), "Create a task to prepare the quarterly numbers.")
	require.NoError(t, err)

	assert.Contains(t, spans(cs, core.EntityTypeTask), "prepare the quarterly numbers")
}

func TestExtractEmailAndLocation(t *testing.T) {
	ext := New()

	cs, err := ext.Extract(context.Background(), "Check the email from Dan and meet me in the office")
	require.NoError(t, err)

	assert.Contains(t, spans(cs, core.EntityTypeEmail), "email from Dan")
	assert.Contains(t, spans(cs, core.EntityTypePerson), "Dan")
	assert.Contains(t, spans(cs, core.EntityTypeLocation), "office")
}

func TestExtractOrderedByOffset(t *testing.T) {
	ext := New()

	cs, err := ext.Extract(context.Background(), "Move the team sync to Monday morning")
	require.NoError(t, err)
	require.NotEmpty(t, cs)

	for i := 1; i < len(cs); i++ {
		assert.GreaterOrEqual(t, cs[i].Start, cs[i-1].Start)
	}
}

func TestExtractNothing(t *testing.T) {
	ext := New()

	cs, err := ext.Extract(context.Background(), "thanks, that is all")
	require.NoError(t, err)
	assert.Empty(t, cs)
}

func TestExtractCancelledContext(t *testing.T) {
	ext := New()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ext.Extract(ctx, "schedule a meeting")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMinSpanLength(t *testing.T) {
	ext := New(func(o *Options) { o.MinSpanLength = 20 })

	cs, err := ext.Extract(context.Background(), "Move the team sync to Tuesday")
	require.NoError(t, err)
	assert.Empty(t, cs)
}
