// Package session tracks which player is reachable over which connection,
// applies the disconnect grace period, and decides forfeits, cancellations
// and reconnections.
package session

import (
	"time"

	"github.com/google/uuid"
)

// Status classifies the result of a liveness check.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusForfeit      Status = "forfeit"
	StatusCancelled    Status = "cancelled"
)

// Outcome describes what a disconnect or forfeit check concluded.
type Outcome struct {
	GameID   string
	Status   Status
	PlayerID string // the player whose disconnect produced this outcome
	Winner   string // set for forfeits
}

// GameSession tracks connection liveness for one game's players. It holds
// no lock of its own; the Manager's mutex guards all access.
type GameSession struct {
	gameID         string
	playerConns    map[string]uuid.UUID
	disconnectedAt map[string]time.Time
	grace          time.Duration
	cancelled      bool
	winner         string
}

// NewGameSession creates a session for the given player-to-connection
// assignments.
func NewGameSession(gameID string, playerConns map[string]uuid.UUID, grace time.Duration) *GameSession {
	conns := make(map[string]uuid.UUID, len(playerConns))
	for playerID, connID := range playerConns {
		conns[playerID] = connID
	}

	return &GameSession{
		gameID:         gameID,
		playerConns:    conns,
		disconnectedAt: make(map[string]time.Time),
		grace:          grace,
	}
}

// MarkDisconnected records when the player dropped and reports whether
// this was a new marker. Re-disconnecting never resets the original
// timestamp.
func (s *GameSession) MarkDisconnected(playerID string, now time.Time) bool {
	if _, ok := s.playerConns[playerID]; !ok {
		return false
	}

	if _, ok := s.disconnectedAt[playerID]; ok {
		return false
	}

	s.disconnectedAt[playerID] = now
	return true
}

// MarkReconnected clears the player's disconnect marker and reports
// whether one existed.
func (s *GameSession) MarkReconnected(playerID string) bool {
	_, was := s.disconnectedAt[playerID]
	delete(s.disconnectedAt, playerID)
	return was
}

// Rebind points an existing player at a new connection.
func (s *GameSession) Rebind(playerID string, connID uuid.UUID) {
	if _, ok := s.playerConns[playerID]; !ok {
		return
	}

	s.playerConns[playerID] = connID
}

// CheckForfeit evaluates the session against the grace period. A decided
// session yields nil forever, so each terminal outcome is observed exactly
// once. Cancellation takes priority over forfeiture: when every player is
// disconnected the game is cancelled regardless of elapsed time.
func (s *GameSession) CheckForfeit(now time.Time) *Outcome {
	if s.Decided() {
		return nil
	}

	if len(s.playerConns) > 0 && len(s.disconnectedAt) == len(s.playerConns) {
		s.cancelled = true
		return &Outcome{GameID: s.gameID, Status: StatusCancelled}
	}

	for playerID, since := range s.disconnectedAt {
		if now.Sub(since) >= s.grace {
			s.winner = s.otherPlayer(playerID)
			return &Outcome{
				GameID:   s.gameID,
				Status:   StatusForfeit,
				PlayerID: playerID,
				Winner:   s.winner,
			}
		}
	}

	return nil
}

// ConnOf returns the connection currently bound to the player.
func (s *GameSession) ConnOf(playerID string) (uuid.UUID, bool) {
	connID, ok := s.playerConns[playerID]
	return connID, ok
}

// PlayerByConn returns the player bound to the given connection.
func (s *GameSession) PlayerByConn(connID uuid.UUID) (string, bool) {
	for playerID, id := range s.playerConns {
		if id == connID {
			return playerID, true
		}
	}

	return "", false
}

// IsConnected reports whether the player is known and not marked
// disconnected.
func (s *GameSession) IsConnected(playerID string) bool {
	if _, ok := s.playerConns[playerID]; !ok {
		return false
	}

	_, down := s.disconnectedAt[playerID]
	return !down
}

// ConnectedPlayers lists the players without a disconnect marker.
func (s *GameSession) ConnectedPlayers() []string {
	players := make([]string, 0, len(s.playerConns))
	for playerID := range s.playerConns {
		if _, down := s.disconnectedAt[playerID]; !down {
			players = append(players, playerID)
		}
	}

	return players
}

// Players lists every player in the session.
func (s *GameSession) Players() []string {
	players := make([]string, 0, len(s.playerConns))
	for playerID := range s.playerConns {
		players = append(players, playerID)
	}

	return players
}

// Decided reports whether the session already produced a terminal outcome.
func (s *GameSession) Decided() bool {
	return s.cancelled || s.winner != ""
}

// Winner returns the forfeit winner, empty while undecided.
func (s *GameSession) Winner() string {
	return s.winner
}

// Cancelled reports whether the session ended in cancellation.
func (s *GameSession) Cancelled() bool {
	return s.cancelled
}

func (s *GameSession) otherPlayer(playerID string) string {
	for id := range s.playerConns {
		if id != playerID {
			return id
		}
	}

	return ""
}
