// Package inmemory provides a volatile ContextStore implementation storing
// snapshots in a process local map. It is safe for concurrent access and
// best suited for tests or ephemeral demo setups.
package inmemory

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/planmesh/core"
)

// Store keeps serialized conversation snapshots keyed by conversation id.
type Store struct {
	mu        sync.RWMutex
	snapshots map[string][]byte
}

var _ core.ContextStore = (*Store)(nil)

// New constructs an empty in-memory context store.
func New() *Store {
	return &Store{snapshots: make(map[string][]byte)}
}

// Save stores a copy of the snapshot, replacing any previous one.
func (s *Store) Save(ctx context.Context, conversationID string, snapshot []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := make([]byte, len(snapshot))
	copy(cp, snapshot)
	s.snapshots[conversationID] = cp
	return nil
}

// Load returns a copy of the stored snapshot, or core.ErrNotFound.
func (s *Store) Load(ctx context.Context, conversationID string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot, ok := s.snapshots[conversationID]
	if !ok {
		return nil, fmt.Errorf("%w: conversation %s", core.ErrNotFound, conversationID)
	}
	cp := make([]byte, len(snapshot))
	copy(cp, snapshot)
	return cp, nil
}

// Delete removes a stored snapshot. Deleting an absent id is a no-op.
func (s *Store) Delete(ctx context.Context, conversationID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snapshots, conversationID)
	return nil
}

// Len returns the number of stored snapshots.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snapshots)
}
