package server

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tecu23/arena-server/internal/color"
	"github.com/tecu23/arena-server/pkg/clock"
	"github.com/tecu23/arena-server/pkg/events"
	"github.com/tecu23/arena-server/pkg/manager"
	"github.com/tecu23/arena-server/pkg/matchmaking"
	"github.com/tecu23/arena-server/pkg/messages"
	"github.com/tecu23/arena-server/pkg/registry"
	"github.com/tecu23/arena-server/pkg/session"
)

// Conn is the slice of Connection the hub's handlers need. Tests drive the
// hub with stub implementations.
type Conn interface {
	ID() uuid.UUID
	Context() context.Context
}

// Config collects the hub's collaborators.
type Config struct {
	Registry     *registry.Registry
	Sessions     *session.Manager
	Games        *manager.Manager
	Clock        *clock.TurnClock
	Publisher    *events.Publisher
	Logger       *zap.Logger
	QueueTimeout time.Duration
}

// Hub wires matchmaking, games, sessions and the connection registry
// together. All replies and broadcasts go through the registry so a dead
// connection is discovered at the first failed send.
type Hub struct {
	registry *registry.Registry
	queue    *matchmaking.Queue
	sessions *session.Manager
	games    *manager.Manager
	clock    *clock.TurnClock

	unregister chan *Connection
	done       chan struct{}

	queueTimeout time.Duration

	publisher *events.Publisher
	logger    *zap.Logger
}

// NewHub creates the hub and its matchmaking queue. The queue calls back
// into the hub when two players meet, so the game, session, bindings and
// tokens all exist before either player hears about the match.
func NewHub(cfg Config) *Hub {
	h := &Hub{
		registry:     cfg.Registry,
		sessions:     cfg.Sessions,
		games:        cfg.Games,
		clock:        cfg.Clock,
		unregister:   make(chan *Connection),
		done:         make(chan struct{}),
		queueTimeout: cfg.QueueTimeout,
		publisher:    cfg.Publisher,
		logger:       cfg.Logger,
	}

	h.queue = matchmaking.New(h.registerMatch, cfg.Logger)

	return h
}

// Run serializes connection teardown. It exits when Shutdown is called.
func (h *Hub) Run() {
	for {
		select {
		case conn := <-h.unregister:
			h.connectionLost(conn.ID())
			conn.Close()
		case <-h.done:
			return
		}
	}
}

// Register adds the connection to the registry. Called before the pumps
// start so no message can arrive ahead of registration.
func (h *Hub) Register(conn *Connection) {
	h.registry.Register(conn.ID(), conn)
}

// Unregister hands the dead connection to the run loop.
func (h *Hub) Unregister(conn *Connection) {
	select {
	case h.unregister <- conn:
	case <-h.done:
		conn.Close()
	}
}

// Shutdown stops the run loop.
func (h *Hub) Shutdown() {
	close(h.done)
}

// route dispatches one inbound message. It runs on the connection's
// process pump, so a single client's messages are handled in order.
func (h *Hub) route(c Conn, msg messages.InboundMessage) {
	switch msg.Type {
	case messages.TypeJoinQueue:
		h.handleJoinQueue(c)

	case messages.TypeMakeMove:
		var payload messages.MakeMovePayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			h.sendError(c.ID(), "Invalid make_move payload")
			return
		}
		h.handleMakeMove(c, payload)

	case messages.TypeGetBoard:
		var payload messages.GetBoardPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			h.sendError(c.ID(), "Invalid get_board payload")
			return
		}
		h.handleGetBoard(c, payload)

	case messages.TypePing:
		h.registry.Send(c.ID(), messages.Pong{Type: messages.TypePong})

	default:
		h.sendError(c.ID(), fmt.Sprintf("Unknown message type %q", msg.Type))
	}
}

// handleJoinQueue blocks in the matchmaking queue until a match, a
// timeout or connection teardown. Only the process pump blocks here; the
// read and write pumps keep draining the socket.
func (h *Hub) handleJoinQueue(c Conn) {
	match := h.queue.Join(c.Context(), c.ID(), h.queueTimeout)
	if match == nil {
		h.registry.Send(c.ID(), messages.QueueTimeout{Type: messages.TypeQueueTimeout})
		return
	}

	h.registry.Send(c.ID(), messages.MatchFound{
		Type:          messages.TypeMatchFound,
		GameID:        match.GameID,
		PlayerID:      match.PlayerID,
		AuthToken:     match.AuthToken,
		AssignedColor: match.Color,
		FirstMove:     match.FirstMove,
	})
}

// registerMatch is the queue's match callback. It runs while the queue
// slot is still held, so both players' state is fully materialized before
// either match_found is sent.
func (h *Hub) registerMatch(pair *matchmaking.Pair) error {
	players := map[string]color.Color{
		pair.Waiter.PlayerID: pair.Waiter.Color,
		pair.Joiner.PlayerID: pair.Joiner.Color,
	}

	if _, err := h.games.CreateGame(pair.GameID, players); err != nil {
		return err
	}

	h.sessions.CreateSession(pair.GameID, map[string]uuid.UUID{
		pair.Waiter.PlayerID: pair.Waiter.ConnID,
		pair.Joiner.PlayerID: pair.Joiner.ConnID,
	})

	h.registry.Bind(pair.Waiter.ConnID, pair.GameID, pair.Waiter.PlayerID)
	h.registry.Bind(pair.Joiner.ConnID, pair.GameID, pair.Joiner.PlayerID)

	pair.Waiter.AuthToken = h.registry.IssueToken(pair.GameID, pair.Waiter.PlayerID)
	pair.Joiner.AuthToken = h.registry.IssueToken(pair.GameID, pair.Joiner.PlayerID)

	h.clock.StartTurn(pair.GameID, pair.FirstMove, time.Now())

	h.logger.Info("match created",
		zap.String("game_id", pair.GameID),
		zap.String("white_player", pair.FirstMove))

	h.publisher.Publish(events.Event{
		Type:   events.EventMatchCreated,
		GameID: pair.GameID,
		Payload: map[string]string{
			"white_player": pair.FirstMove,
		},
	})

	return nil
}

// handleMakeMove validates and applies one move, then broadcasts the new
// position to both players.
func (h *Hub) handleMakeMove(c Conn, p messages.MakeMovePayload) {
	if p.GameID == "" || p.PlayerID == "" || p.AuthToken == "" || p.Move == "" {
		h.sendError(c.ID(), "Missing required fields")
		return
	}

	if !h.registry.CheckToken(p.GameID, p.PlayerID, p.AuthToken) {
		h.sendError(c.ID(), "Invalid authentication token")
		return
	}

	g, ok := h.games.Get(p.GameID)
	if !ok {
		h.sendError(c.ID(), fmt.Sprintf("Game %s not found", p.GameID))
		return
	}

	h.rebindIfReconnected(c, p.GameID, p.PlayerID)

	if g.GameOver() {
		h.sendError(c.ID(), "Game is already over")
		return
	}

	if !g.IsPlayersTurn(p.PlayerID) {
		h.sendError(c.ID(), fmt.Sprintf("It is %s's turn", g.Turn()))
		return
	}

	if elapsed, over := h.clock.Exceeded(p.GameID, p.PlayerID, time.Now()); over {
		h.disqualify(p.GameID, p.PlayerID, elapsed)
		return
	}

	if err := g.MakeMove(p.Move); err != nil {
		h.registry.Send(c.ID(), messages.ErrorMessage{
			Type:       messages.TypeError,
			Message:    fmt.Sprintf("Illegal move: %s", p.Move),
			LegalMoves: g.LegalMoves(),
		})
		return
	}

	h.games.Persist(p.GameID)

	gameOver := g.GameOver()
	reason := ""
	if gameOver {
		reason = g.GameOverReason()
	}

	h.broadcast(p.GameID, messages.MoveMade{
		Type:           messages.TypeMoveMade,
		GameID:         p.GameID,
		Move:           p.Move,
		FEN:            g.FEN(),
		CurrentTurn:    g.Turn(),
		GameOver:       gameOver,
		GameOverReason: reason,
	}, uuid.Nil)

	h.publisher.Publish(events.Event{
		Type:   events.EventMoveProcessed,
		GameID: p.GameID,
		Payload: map[string]string{
			"player_id": p.PlayerID,
			"move":      p.Move,
		},
	})

	if gameOver {
		h.logger.Info("game completed",
			zap.String("game_id", p.GameID),
			zap.String("reason", reason))

		h.publisher.Publish(events.Event{
			Type:    events.EventGameCompleted,
			GameID:  p.GameID,
			Payload: map[string]string{"reason": reason},
		})

		h.teardown(p.GameID)
		return
	}

	h.clock.StartTurn(p.GameID, g.PlayerToMove(), time.Now())
}

// handleGetBoard replies with the current position.
func (h *Hub) handleGetBoard(c Conn, p messages.GetBoardPayload) {
	if p.GameID == "" || p.PlayerID == "" || p.AuthToken == "" {
		h.sendError(c.ID(), "Missing required fields")
		return
	}

	if !h.registry.CheckToken(p.GameID, p.PlayerID, p.AuthToken) {
		h.sendError(c.ID(), "Invalid authentication token")
		return
	}

	g, ok := h.games.Get(p.GameID)
	if !ok {
		h.sendError(c.ID(), fmt.Sprintf("Game %s not found", p.GameID))
		return
	}

	h.rebindIfReconnected(c, p.GameID, p.PlayerID)

	gameOver := g.GameOver()
	reason := ""
	if gameOver {
		reason = g.GameOverReason()
	}

	h.registry.Send(c.ID(), messages.BoardState{
		Type:           messages.TypeBoardState,
		GameID:         p.GameID,
		FEN:            g.FEN(),
		CurrentTurn:    g.Turn(),
		GameOver:       gameOver,
		GameOverReason: reason,
	})
}

// rebindIfReconnected moves the player's session binding to the current
// connection when an authenticated request arrives from a connection other
// than the one on record. The opponent is notified only if the player had
// actually been marked disconnected.
func (h *Hub) rebindIfReconnected(c Conn, gameID, playerID string) {
	if current, ok := h.sessions.PlayerConn(gameID, playerID); ok && current == c.ID() {
		return
	}

	ok, wasDisconnected := h.sessions.HandleReconnect(c.ID(), gameID, playerID)
	if !ok {
		return
	}

	h.registry.Bind(c.ID(), gameID, playerID)

	if wasDisconnected {
		h.broadcast(gameID, messages.OpponentReconnected{
			Type:     messages.TypeOpponentReconnected,
			PlayerID: playerID,
		}, c.ID())

		h.publisher.Publish(events.Event{
			Type:    events.EventPlayerReconnected,
			GameID:  gameID,
			Payload: map[string]string{"player_id": playerID},
		})
	}
}

// connectionLost runs the disconnect flow for a connection that is gone:
// drop it from the registry, cancel any matchmaking wait and apply the
// session outcome. Safe to call more than once for the same connection.
func (h *Hub) connectionLost(id uuid.UUID) {
	h.registry.Unregister(id)
	h.queue.Leave(id)

	if out := h.sessions.HandleDisconnect(id); out != nil {
		h.applyOutcome(out)
	}
}

// SweepForfeits applies any forfeit or cancellation the grace period has
// produced. Scheduled periodically from the entrypoint.
func (h *Hub) SweepForfeits() {
	for _, out := range h.sessions.CheckForfeits() {
		o := out
		h.applyOutcome(&o)
	}
}

// applyOutcome turns a session outcome into notifications and, for
// terminal outcomes, tears the game down.
func (h *Hub) applyOutcome(out *session.Outcome) {
	switch out.Status {
	case session.StatusDisconnected:
		h.broadcast(out.GameID, messages.OpponentDisconnected{
			Type:     messages.TypeOpponentDisconnected,
			PlayerID: out.PlayerID,
		}, uuid.Nil)

		h.publisher.Publish(events.Event{
			Type:    events.EventPlayerDisconnected,
			GameID:  out.GameID,
			Payload: map[string]string{"player_id": out.PlayerID},
		})

	case session.StatusForfeit:
		h.logger.Info("game forfeited",
			zap.String("game_id", out.GameID),
			zap.String("winner", out.Winner))

		h.broadcast(out.GameID, messages.GameOver{
			Type:    messages.TypeGameOver,
			Status:  messages.StatusForfeit,
			Winner:  out.Winner,
			Message: fmt.Sprintf("Player %s wins by forfeit", out.Winner),
		}, uuid.Nil)

		h.publisher.Publish(events.Event{
			Type:    events.EventGameForfeited,
			GameID:  out.GameID,
			Payload: map[string]string{"winner": out.Winner},
		})

		h.teardown(out.GameID)

	case session.StatusCancelled:
		h.logger.Info("game cancelled", zap.String("game_id", out.GameID))

		h.broadcast(out.GameID, messages.GameOver{
			Type:    messages.TypeGameOver,
			Status:  messages.StatusCancelled,
			Message: "Game cancelled, all players disconnected",
		}, uuid.Nil)

		h.publisher.Publish(events.Event{
			Type:   events.EventGameCancelled,
			GameID: out.GameID,
		})

		h.teardown(out.GameID)
	}
}

// disqualify ends the game against a player whose move arrived after the
// per-turn time limit. The late move is never applied.
func (h *Hub) disqualify(gameID, playerID string, elapsed time.Duration) {
	winner := ""
	if g, ok := h.games.Get(gameID); ok {
		if c, ok := g.PlayerColor(playerID); ok {
			winner = g.PlayerByColor(c.Opp())
		}
	}

	h.logger.Info("player disqualified",
		zap.String("game_id", gameID),
		zap.String("player_id", playerID),
		zap.Duration("elapsed", elapsed))

	h.broadcast(gameID, messages.GameOver{
		Type:               messages.TypeGameOver,
		Status:             messages.StatusDisqualified,
		Winner:             winner,
		DisqualifiedPlayer: playerID,
		Message:            fmt.Sprintf("Player %s disqualified for exceeding the move time limit", playerID),
	}, uuid.Nil)

	h.publisher.Publish(events.Event{
		Type:   events.EventPlayerDisqualified,
		GameID: gameID,
		Payload: map[string]string{
			"player_id": playerID,
			"winner":    winner,
		},
	})

	h.teardown(gameID)
}

// teardown releases everything a finished game holds.
func (h *Hub) teardown(gameID string) {
	h.sessions.RemoveSession(gameID)
	h.clock.ClearGame(gameID)
	h.games.Remove(gameID)
	h.registry.DropGame(gameID)
}

// broadcast fans a message out to a game's connections and runs the
// disconnect flow for every connection the send failed on.
func (h *Hub) broadcast(gameID string, msg any, exclude uuid.UUID) {
	for _, id := range h.registry.BroadcastToGame(gameID, msg, exclude) {
		h.connectionLost(id)
	}
}

func (h *Hub) sendError(id uuid.UUID, text string) {
	h.registry.Send(id, messages.ErrorMessage{Type: messages.TypeError, Message: text})
}
