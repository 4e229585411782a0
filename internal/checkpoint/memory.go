// Package checkpoint persists per-session conversation state between turns.
// Three backends share one contract: in-process for tests and dev, Redis for
// shared ephemeral state, Postgres for durable state.
package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ent0n29/ava/internal/graph"
)

// MemoryStore keeps checkpoints in process memory. State is stored
// serialized, so Load always hands back an independent copy.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (s *MemoryStore) Load(_ context.Context, sessionID string) (graph.State, bool, error) {
	s.mu.RLock()
	raw, ok := s.data[sessionID]
	s.mu.RUnlock()
	if !ok {
		return graph.State{}, false, nil
	}
	var st graph.State
	if err := json.Unmarshal(raw, &st); err != nil {
		return graph.State{}, false, fmt.Errorf("decode checkpoint %s: %w", sessionID, err)
	}
	return st, true, nil
}

func (s *MemoryStore) Save(_ context.Context, sessionID string, st graph.State) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode checkpoint %s: %w", sessionID, err)
	}
	s.mu.Lock()
	s.data[sessionID] = raw
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.data, sessionID)
	s.mu.Unlock()
	return nil
}

// Close is a no-op; the in-process store holds no external resources.
func (s *MemoryStore) Close() error { return nil }
