package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/planmesh/config"
	"github.com/hupe1980/planmesh/core"
	"github.com/hupe1980/planmesh/handler"
	"github.com/hupe1980/planmesh/store/inmemory"
)

type okHandler struct{ id string }

func (h okHandler) ID() string { return h.id }

func (h okHandler) Invoke(ctx context.Context, inv core.Invocation) (core.Result, error) {
	return core.Result{Kind: core.ResultSuccess, Data: map[string]any{"operation": inv.Operation}}, nil
}

type failingExtractor struct{}

func (failingExtractor) Extract(ctx context.Context, text string) ([]core.Candidate, error) {
	return nil, errors.New("extractor offline")
}

// refClock pins the temporal reference to a Friday morning.
func refClock() time.Time {
	return time.Date(2025, time.June, 6, 10, 0, 0, 0, time.UTC)
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Handoff.EntityAffinity = map[string]string{
		"event": "calendar-agent",
		"email": "email-agent",
		"task":  "task-agent",
	}
	cfg.Handoff.IntentAffinity = map[string]string{
		"planning": "planner-agent",
	}
	return cfg
}

func testRegistry(t *testing.T) *handler.Registry {
	t.Helper()

	reg := handler.NewRegistry()
	for _, id := range []string{"calendar-agent", "email-agent", "task-agent", "planner-agent"} {
		require.NoError(t, reg.Register(okHandler{id: id}, handler.Capabilities{}))
	}
	return reg
}

func newTestEngine(t *testing.T, optFns ...func(o *Options)) *Engine {
	t.Helper()

	base := []func(o *Options){
		WithConfig(testConfig()),
		WithRegistry(testRegistry(t)),
		WithClock(refClock),
	}
	return New(append(base, optFns...)...)
}

func TestProcessTurnAssignsAndDispatches(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	res, err := e.ProcessTurn(ctx, "c1", "Schedule a meeting with Ana tomorrow at 3pm")
	require.NoError(t, err)

	assert.Equal(t, "calendar-agent", res.Decision.Target)
	assert.Equal(t, "initial assignment", res.Decision.Justification.Reason)
	assert.True(t, res.Dispatched)
	require.NoError(t, res.DispatchErr)
	assert.Equal(t, core.ResultSuccess, res.Result.Kind)

	assert.NotEmpty(t, res.EntityIDs)
	assert.NotEmpty(t, res.Temporal)
	assert.Equal(t, "schedule", res.Turn.Intent)
	assert.False(t, res.Turn.Urgent)

	assert.Equal(t, "calendar-agent", e.Conversation("c1").Handler())
}

func TestProcessTurnResolvesReferenceAcrossTurns(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	first, err := e.ProcessTurn(ctx, "c1", "Schedule a budget review meeting with Ana tomorrow")
	require.NoError(t, err)

	second, err := e.ProcessTurn(ctx, "c1", "Move the meeting to Friday")
	require.NoError(t, err)

	require.NotEmpty(t, second.Resolutions)
	var resolved *core.ReferenceResolution
	for i := range second.Resolutions {
		if second.Resolutions[i].Span == "the meeting" {
			resolved = &second.Resolutions[i]
		}
	}
	require.NotNil(t, resolved)
	assert.True(t, resolved.Resolved)
	assert.Contains(t, first.EntityIDs, resolved.EntityID)

	// No new entity was created for "the meeting".
	names := make([]string, 0)
	for _, ent := range e.Entities("c1") {
		names = append(names, ent.Canonical)
	}
	assert.NotContains(t, names, "meeting")

	assert.Len(t, e.Conversation("c1").Turns(), 2)
}

func TestProcessTurnAnchorsTemporalEntities(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.ProcessTurn(ctx, "c1", "Schedule a meeting with Ana tomorrow")
	require.NoError(t, err)

	var anchor *core.ContextualEntity
	for _, ent := range e.Entities("c1") {
		if ent.Type == core.EntityTypeTimeExpression && ent.Canonical == "tomorrow" {
			anchor = ent
		}
	}
	require.NotNil(t, anchor)

	raw, ok := anchor.Attributes["resolved_time"].(string)
	require.True(t, ok)
	resolved, err := time.Parse(time.RFC3339, raw)
	require.NoError(t, err)
	assert.Equal(t, refClock().AddDate(0, 0, 1).Day(), resolved.Day())
}

func TestProcessTurnUrgencyPreemption(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.ProcessTurn(ctx, "c1", "Schedule a budget review meeting tomorrow")
	require.NoError(t, err)
	require.Equal(t, "calendar-agent", e.Conversation("c1").Handler())

	res, err := e.ProcessTurn(ctx, "c1", "Check my inbox ASAP")
	require.NoError(t, err)

	assert.True(t, res.Turn.Urgent)
	require.True(t, res.Decision.Transferred())
	assert.Equal(t, "calendar-agent", res.Decision.Source)
	assert.Equal(t, "email-agent", res.Decision.Target)
	assert.Equal(t, "urgency preemption", res.Decision.Justification.Reason)
	assert.Equal(t, "email-agent", e.Conversation("c1").Handler())
}

func TestProcessTurnTraceEvents(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.ProcessTurn(ctx, "c1", "Schedule a budget review meeting tomorrow")
	require.NoError(t, err)

	log := e.Trace("c1")
	assert.Len(t, log.ByKind(core.TraceHandoffExecuted), 1)
	assert.Len(t, log.ByKind(core.TraceHandlerInvoked), 1)
	assert.Len(t, log.ByKind(core.TraceOperationCompleted), 1)
}

func TestProcessTurnWithoutHandlers(t *testing.T) {
	e := New(WithClock(refClock))

	res, err := e.ProcessTurn(context.Background(), "c1", "Schedule a budget review meeting tomorrow")
	require.NoError(t, err)

	assert.False(t, res.Dispatched)
	assert.False(t, res.Decision.Transferred())
	assert.Empty(t, e.Conversation("c1").Handler())
}

func TestProcessTurnExtractorError(t *testing.T) {
	e := newTestEngine(t, WithExtractor(failingExtractor{}))

	_, err := e.ProcessTurn(context.Background(), "c1", "anything")
	require.Error(t, err)
	assert.Empty(t, e.Conversation("c1").Turns())
}

func TestConversationsAreIsolated(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.ProcessTurn(ctx, "c1", "Schedule a budget review meeting tomorrow")
	require.NoError(t, err)
	_, err = e.ProcessTurn(ctx, "c2", "Check my inbox")
	require.NoError(t, err)

	assert.Equal(t, "calendar-agent", e.Conversation("c1").Handler())
	assert.Equal(t, "email-agent", e.Conversation("c2").Handler())
	assert.Len(t, e.Conversation("c1").Turns(), 1)
	assert.Len(t, e.Conversation("c2").Turns(), 1)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	store := inmemory.New()
	ctx := context.Background()

	e1 := newTestEngine(t, WithStore(store))
	_, err := e1.ProcessTurn(ctx, "c1", "Schedule a budget review meeting with Ana tomorrow")
	require.NoError(t, err)
	_, err = e1.ProcessTurn(ctx, "c1", "Check my inbox ASAP")
	require.NoError(t, err)
	require.NoError(t, e1.Save(ctx, "c1"))

	e2 := newTestEngine(t, WithStore(store))
	require.NoError(t, e2.Load(ctx, "c1"))

	conv := e2.Conversation("c1")
	assert.Equal(t, "email-agent", conv.Handler())
	assert.Len(t, conv.Turns(), 2)

	names := make([]string, 0)
	for _, ent := range e2.Entities("c1") {
		names = append(names, ent.Canonical)
	}
	assert.Contains(t, names, "budget review meeting")

	// References keep resolving against the restored context.
	res, err := e2.ProcessTurn(ctx, "c1", "Move the meeting to Friday")
	require.NoError(t, err)
	var found bool
	for _, r := range res.Resolutions {
		if r.Span == "the meeting" && r.Resolved {
			found = true
		}
	}
	assert.True(t, found)
}

func TestLoadMissingConversation(t *testing.T) {
	e := newTestEngine(t)

	err := e.Load(context.Background(), "ghost")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestIntentTrend(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.ProcessTurn(ctx, "c1", "Schedule a meeting with Ana")
	require.NoError(t, err)
	_, err = e.ProcessTurn(ctx, "c1", "Book a call with the design team")
	require.NoError(t, err)

	trend, ok := e.IntentTrend("c1")
	require.True(t, ok)
	assert.Equal(t, "schedule", trend)
}
