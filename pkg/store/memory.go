package store

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// MemoryStore is an in-memory implementation of GameStore. It is the
// default when no Redis address is configured and the store used in tests.
type MemoryStore struct {
	games  map[string]GameRecord
	mu     sync.RWMutex
	logger *zap.Logger
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	return &MemoryStore{
		games:  make(map[string]GameRecord),
		logger: logger,
	}
}

// SaveGame saves a game record
func (s *MemoryStore) SaveGame(_ context.Context, gameID string, rec GameRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.games[gameID] = rec
	return nil
}

// DeleteGame removes a game record
func (s *MemoryStore) DeleteGame(_ context.Context, gameID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.games, gameID)
	return nil
}

// LoadGames returns a copy of all stored game records
func (s *MemoryStore) LoadGames(_ context.Context) (map[string]GameRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	games := make(map[string]GameRecord, len(s.games))
	for id, rec := range s.games {
		games[id] = rec
	}

	return games, nil
}
