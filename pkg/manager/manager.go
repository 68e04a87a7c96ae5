// Package manager owns the live boards of every active game and keeps the
// persistence store in sync with them.
package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tecu23/arena-server/internal/color"
	"github.com/tecu23/arena-server/pkg/board"
	"github.com/tecu23/arena-server/pkg/store"
)

// ErrGameExists is returned when creating a game under an id already in use.
var ErrGameExists = errors.New("game already exists")

// storeTimeout bounds each persistence call so a slow store cannot stall
// gameplay.
const storeTimeout = 5 * time.Second

// Manager maps game ids to live boards. Store errors are logged and never
// surfaced to players.
type Manager struct {
	games  map[string]*board.Board
	mu     sync.RWMutex
	store  store.GameStore
	logger *zap.Logger
}

// NewManager creates a manager on top of the given store
func NewManager(st store.GameStore, logger *zap.Logger) *Manager {
	return &Manager{
		games:  make(map[string]*board.Board),
		store:  st,
		logger: logger,
	}
}

// CreateGame creates a board at the starting position, registers it and
// persists the initial record.
func (m *Manager) CreateGame(gameID string, players map[string]color.Color) (*board.Board, error) {
	m.mu.Lock()
	if _, ok := m.games[gameID]; ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrGameExists, gameID)
	}

	b := board.New(players)
	m.games[gameID] = b
	m.mu.Unlock()

	m.logger.Info("created game", zap.String("game_id", gameID))

	m.persist(gameID, b)
	return b, nil
}

// Get returns a live board by game id
func (m *Manager) Get(gameID string) (*board.Board, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.games[gameID]
	return b, ok
}

// Remove drops a finished game and deletes its persisted record.
func (m *Manager) Remove(gameID string) {
	m.mu.Lock()
	_, ok := m.games[gameID]
	delete(m.games, gameID)
	m.mu.Unlock()

	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	if err := m.store.DeleteGame(ctx, gameID); err != nil {
		m.logger.Error("failed to delete persisted game",
			zap.String("game_id", gameID),
			zap.Error(err))
	}

	m.logger.Info("removed game", zap.String("game_id", gameID))
}

// Persist writes the game's current state to the store. Called after every
// applied move.
func (m *Manager) Persist(gameID string) {
	m.mu.RLock()
	b, ok := m.games[gameID]
	m.mu.RUnlock()

	if !ok {
		return
	}

	m.persist(gameID, b)
}

// Restore loads persisted games into memory, typically at startup.
// Unrestorable records are skipped with a warning.
func (m *Manager) Restore() (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	records, err := m.store.LoadGames(ctx)
	if err != nil {
		return 0, fmt.Errorf("load games: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	restored := 0
	for gameID, rec := range records {
		players := make(map[string]color.Color, len(rec.Players))
		for id, c := range rec.Players {
			players[id] = color.Color(c)
		}

		b, err := board.FromFEN(rec.FEN, players)
		if err != nil {
			m.logger.Warn("skipping unrestorable game",
				zap.String("game_id", gameID),
				zap.Error(err))
			continue
		}

		m.games[gameID] = b
		restored++
	}

	return restored, nil
}

// Count returns the number of live games.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.games)
}

func (m *Manager) persist(gameID string, b *board.Board) {
	players := make(map[string]string)
	for id, c := range b.Players() {
		players[id] = string(c)
	}

	rec := store.GameRecord{
		FEN:       b.FEN(),
		Players:   players,
		UpdatedAt: time.Now().UTC(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	if err := m.store.SaveGame(ctx, gameID, rec); err != nil {
		m.logger.Error("failed to persist game",
			zap.String("game_id", gameID),
			zap.Error(err))
	}
}
