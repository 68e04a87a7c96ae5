// Package registry tracks live websocket connections, their game/player
// bindings and the capability tokens that authenticate game actions.
package registry

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tecu23/arena-server/internal/auth"
)

// Sender is the write side of a connection as the registry sees it.
// Implemented by server.Connection.
type Sender interface {
	Send(v any) error
	Close() error
}

type binding struct {
	gameID      string
	playerID    string
	connectedAt time.Time
}

type tokenKey struct {
	gameID   string
	playerID string
}

// Registry owns every live connection. All maps are guarded by one mutex;
// the lock is never held across a network send.
type Registry struct {
	mu     sync.Mutex
	conns  map[uuid.UUID]Sender
	meta   map[uuid.UUID]binding
	tokens map[tokenKey]string
	logger *zap.Logger
}

// New creates an empty registry
func New(logger *zap.Logger) *Registry {
	return &Registry{
		conns:  make(map[uuid.UUID]Sender),
		meta:   make(map[uuid.UUID]binding),
		tokens: make(map[tokenKey]string),
		logger: logger,
	}
}

// Register adds a connection under its id, with empty game metadata.
func (r *Registry) Register(id uuid.UUID, s Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.conns[id] = s
	r.meta[id] = binding{connectedAt: time.Now()}

	r.logger.Info("connection registered", zap.String("connection_id", id.String()))
}

// Unregister removes a connection and its metadata. Tokens survive so the
// player can authenticate a reconnection. No-op for unknown ids.
func (r *Registry) Unregister(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[id]; !ok {
		return
	}

	delete(r.conns, id)
	delete(r.meta, id)

	r.logger.Info("connection unregistered", zap.String("connection_id", id.String()))
}

// IsLive reports whether the connection is currently registered.
func (r *Registry) IsLive(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.conns[id]
	return ok
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.conns)
}

// Bind associates a connection with a game and player, overwriting any
// stale association. No-op if the connection already went away.
func (r *Registry) Bind(id uuid.UUID, gameID, playerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.meta[id]
	if !ok {
		return
	}

	b.gameID = gameID
	b.playerID = playerID
	r.meta[id] = b
}

// Send delivers one message to one connection. A failed delivery is an
// implicit disconnect: the connection is unregistered and closed, and the
// caller gets false.
func (r *Registry) Send(id uuid.UUID, msg any) bool {
	r.mu.Lock()
	s, ok := r.conns[id]
	r.mu.Unlock()

	if !ok {
		return false
	}

	if err := s.Send(msg); err != nil {
		r.logger.Warn("send failed, dropping connection",
			zap.String("connection_id", id.String()),
			zap.Error(err))

		r.Unregister(id)
		s.Close()
		return false
	}

	return true
}

// BroadcastToGame sends msg to every connection bound to the game except
// exclude (uuid.Nil excludes nobody). The recipient set is snapshotted
// under the lock so all recipients observe the same causal point; the
// sends happen outside it. Returns the ids whose delivery failed, each
// already unregistered.
func (r *Registry) BroadcastToGame(gameID string, msg any, exclude uuid.UUID) []uuid.UUID {
	r.mu.Lock()
	targets := make([]uuid.UUID, 0, 2)
	for id, b := range r.meta {
		if b.gameID != gameID || id == exclude {
			continue
		}
		targets = append(targets, id)
	}
	r.mu.Unlock()

	var failed []uuid.UUID
	for _, id := range targets {
		if !r.Send(id, msg) {
			failed = append(failed, id)
		}
	}

	return failed
}

// ConnectionsForGame returns a snapshot of connection id to player id for
// every connection bound to the game.
func (r *Registry) ConnectionsForGame(gameID string) map[uuid.UUID]string {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns := make(map[uuid.UUID]string)
	for id, b := range r.meta {
		if b.gameID == gameID {
			conns[id] = b.playerID
		}
	}

	return conns
}

// IssueToken mints a fresh capability token for (game, player), replacing
// any previous one. The old token stops validating immediately.
func (r *Registry) IssueToken(gameID, playerID string) string {
	token := auth.NewToken()

	r.mu.Lock()
	r.tokens[tokenKey{gameID, playerID}] = token
	r.mu.Unlock()

	return token
}

// CheckToken validates a presented token against the stored one for
// (game, player). Tokens are never valid across games or players.
func (r *Registry) CheckToken(gameID, playerID, token string) bool {
	if token == "" {
		return false
	}

	r.mu.Lock()
	stored, ok := r.tokens[tokenKey{gameID, playerID}]
	r.mu.Unlock()

	return ok && auth.Equal(stored, token)
}

// DropGame forgets the tokens and bindings of a finished game.
func (r *Registry) DropGame(gameID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key := range r.tokens {
		if key.gameID == gameID {
			delete(r.tokens, key)
		}
	}

	for id, b := range r.meta {
		if b.gameID == gameID {
			b.gameID = ""
			b.playerID = ""
			r.meta[id] = b
		}
	}
}
