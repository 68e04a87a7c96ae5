package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultForfeitGrace is how long a player may stay disconnected before
// the game is forfeited to the opponent.
const DefaultForfeitGrace = 60 * time.Second

// Manager owns every active game session plus the reverse index from
// connection id to game id.
type Manager struct {
	mu         sync.Mutex
	sessions   map[string]*GameSession
	connToGame map[uuid.UUID]string
	grace      time.Duration
	logger     *zap.Logger
}

// NewManager creates a session manager with the given grace period;
// non-positive falls back to DefaultForfeitGrace.
func NewManager(grace time.Duration, logger *zap.Logger) *Manager {
	if grace <= 0 {
		grace = DefaultForfeitGrace
	}

	return &Manager{
		sessions:   make(map[string]*GameSession),
		connToGame: make(map[uuid.UUID]string),
		grace:      grace,
		logger:     logger,
	}
}

// CreateSession registers a session and its reverse index entries.
func (m *Manager) CreateSession(gameID string, playerConns map[string]uuid.UUID) *GameSession {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := NewGameSession(gameID, playerConns, m.grace)
	m.sessions[gameID] = s
	for _, connID := range playerConns {
		m.connToGame[connID] = gameID
	}

	m.logger.Info("created game session",
		zap.String("game_id", gameID),
		zap.Int("players", len(playerConns)))

	return s
}

// HandleDisconnect marks the player behind the connection as disconnected
// and immediately re-checks the session. Unknown connections and repeat
// disconnects yield nil; otherwise the outcome is disconnected (grace
// period running), forfeit or cancelled.
func (m *Manager) HandleDisconnect(connID uuid.UUID) *Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()

	gameID, ok := m.connToGame[connID]
	if !ok {
		return nil
	}

	s, ok := m.sessions[gameID]
	if !ok {
		return nil
	}

	playerID, ok := s.PlayerByConn(connID)
	if !ok {
		return nil
	}

	now := time.Now()
	if !s.MarkDisconnected(playerID, now) {
		return nil
	}

	m.logger.Info("player disconnected",
		zap.String("game_id", gameID),
		zap.String("player_id", playerID))

	if out := s.CheckForfeit(now); out != nil {
		return out
	}

	return &Outcome{GameID: gameID, Status: StatusDisconnected, PlayerID: playerID}
}

// HandleReconnect rebinds the player to a new connection and clears their
// disconnect marker. Returns whether the session accepted the rebind and
// whether the player had been marked disconnected. Idempotent for the same
// new connection.
func (m *Manager) HandleReconnect(connID uuid.UUID, gameID, playerID string) (bool, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[gameID]
	if !ok {
		return false, false
	}

	old, ok := s.ConnOf(playerID)
	if !ok {
		return false, false
	}

	delete(m.connToGame, old)
	s.Rebind(playerID, connID)
	m.connToGame[connID] = gameID

	wasDisconnected := s.MarkReconnected(playerID)
	if wasDisconnected {
		m.logger.Info("player reconnected",
			zap.String("game_id", gameID),
			zap.String("player_id", playerID))
	}

	return true, wasDisconnected
}

// CheckForfeits evaluates every tracked session, returning the terminal
// outcomes reached since the last check. Called from the periodic sweep.
func (m *Manager) CheckForfeits() []Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()

	var outcomes []Outcome
	for _, s := range m.sessions {
		if out := s.CheckForfeit(now); out != nil {
			outcomes = append(outcomes, *out)
		}
	}

	return outcomes
}

// RemoveSession drops a session and all of its reverse index entries.
func (m *Manager) RemoveSession(gameID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[gameID]
	if !ok {
		return
	}

	for _, connID := range s.playerConns {
		if m.connToGame[connID] == gameID {
			delete(m.connToGame, connID)
		}
	}
	delete(m.sessions, gameID)

	m.logger.Info("removed game session", zap.String("game_id", gameID))
}

// Session retrieves a session by game id
func (m *Manager) Session(gameID string) (*GameSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[gameID]
	return s, ok
}

// PlayerConn returns the connection currently bound to a player in a game.
func (m *Manager) PlayerConn(gameID, playerID string) (uuid.UUID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[gameID]
	if !ok {
		return uuid.Nil, false
	}

	return s.ConnOf(playerID)
}

// Count returns the number of active sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.sessions)
}
