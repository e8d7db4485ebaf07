package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/planmesh/core"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "planmesh.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "conv-1", []byte(`{"entities":[]}`)))

	got, err := s.Load(ctx, "conv-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"entities":[]}`, string(got))
}

func TestLoadMissing(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Load(context.Background(), "nope")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestSaveUpserts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "conv-1", []byte(`{"turn":1}`)))
	require.NoError(t, s.Save(ctx, "conv-1", []byte(`{"turn":2}`)))

	got, err := s.Load(ctx, "conv-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"turn":2}`, string(got))
}

func TestConversationsAreIsolated(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "conv-1", []byte(`{"turn":1}`)))
	require.NoError(t, s.Save(ctx, "conv-2", []byte(`{"turn":9}`)))

	got, err := s.Load(ctx, "conv-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"turn":1}`, string(got))
}

func TestDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "conv-1", []byte(`{}`)))
	require.NoError(t, s.Delete(ctx, "conv-1"))
	require.NoError(t, s.Delete(ctx, "conv-1"))

	_, err := s.Load(ctx, "conv-1")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestReopenPersists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "planmesh.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, "conv-1", []byte(`{"turn":3}`)))
	require.NoError(t, s.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.Load(ctx, "conv-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"turn":3}`, string(got))
}
