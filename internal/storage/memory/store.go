// Package memory provides an in-memory InteractionStore, used when no
// database is configured and in tests.
package memory

import (
	"context"
	"sync"

	"github.com/relaygate/relaygate/internal/storage"
)

// Store keeps interactions in memory.
type Store struct {
	mu           sync.Mutex
	interactions []*storage.Interaction
}

var _ storage.InteractionStore = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{}
}

func (s *Store) SaveInteraction(ctx context.Context, it *storage.Interaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interactions = append(s.interactions, it)
	return nil
}

// Interactions returns a snapshot of everything saved so far.
func (s *Store) Interactions() []*storage.Interaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*storage.Interaction, len(s.interactions))
	copy(out, s.interactions)
	return out
}

func (s *Store) Close() error { return nil }
