// Package matchmaking pairs connections into games through a single-slot
// rendezvous queue: the first joiner waits, the second completes the match.
package matchmaking

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/tecu23/arena-server/internal/color"
)

// PlayerSlot is one side of a freshly created match.
type PlayerSlot struct {
	ConnID    uuid.UUID
	PlayerID  string
	Color     color.Color
	AuthToken string
}

// Pair is the full match handed to the registration hook: both sides'
// identities, including their connection ids, so nothing downstream ever
// needs to look back into the queue.
type Pair struct {
	GameID    string
	FirstMove string // player id of the white side
	Waiter    PlayerSlot
	Joiner    PlayerSlot
}

// Match is one player's perspective of a completed match.
type Match struct {
	GameID     string
	PlayerID   string
	Color      color.Color
	FirstMove  string
	AuthToken  string
	OpponentID string
}

// MatchHandler runs when a match is formed, before either joiner learns of
// it. It sets up whatever the match needs (board, session, tokens) and may
// fill the AuthToken fields of the pair. An error aborts the match.
type MatchHandler func(pair *Pair) error

type entry struct {
	connID uuid.UUID
	result chan *Match
}

// Queue is the single-slot matchmaking queue. The mutex guards the slot;
// every slot transition, including match setup, happens under it.
type Queue struct {
	mu      sync.Mutex
	waiting *entry
	onMatch MatchHandler
	logger  *zap.Logger
}

// New creates an empty queue
func New(onMatch MatchHandler, logger *zap.Logger) *Queue {
	return &Queue{
		onMatch: onMatch,
		logger:  logger,
	}
}

// Join blocks until this connection is paired with another one, then
// returns this caller's perspective of the match. It returns nil when no
// match happened: nobody arrived within timeout (non-positive means wait
// forever), ctx was cancelled, the same connection is already waiting, or
// match setup failed.
func (q *Queue) Join(ctx context.Context, connID uuid.UUID, timeout time.Duration) *Match {
	q.mu.Lock()

	if q.waiting != nil && q.waiting.connID == connID {
		q.mu.Unlock()
		return nil
	}

	if q.waiting == nil {
		e := &entry{connID: connID, result: make(chan *Match, 1)}
		q.waiting = e
		q.mu.Unlock()

		q.logger.Debug("waiting for opponent", zap.String("connection_id", connID.String()))
		return q.wait(ctx, e, timeout)
	}

	// Second joiner: claim the waiting entry and build the match while
	// still holding the lock, so neither side can observe a half-built
	// game and no third connection can interleave.
	e := q.waiting
	pair := newPair(e.connID, connID)

	if q.onMatch != nil {
		if err := q.onMatch(pair); err != nil {
			q.waiting = nil
			close(e.result)
			q.mu.Unlock()

			q.logger.Error("match setup failed",
				zap.String("game_id", pair.GameID),
				zap.Error(err))
			return nil
		}
	}

	e.result <- pair.matchFor(&pair.Waiter, &pair.Joiner)
	q.waiting = nil
	q.mu.Unlock()

	q.logger.Info("match created",
		zap.String("game_id", pair.GameID),
		zap.String("white_player", pair.FirstMove))

	return pair.matchFor(&pair.Joiner, &pair.Waiter)
}

// Leave cancels this connection's pending wait, if it has one. Returns
// whether an entry was cancelled.
func (q *Queue) Leave(connID uuid.UUID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.waiting == nil || q.waiting.connID != connID {
		return false
	}

	close(q.waiting.result)
	q.waiting = nil
	return true
}

func (q *Queue) wait(ctx context.Context, e *entry, timeout time.Duration) *Match {
	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case m := <-e.result:
		// nil when the entry was cancelled via Leave
		return m
	case <-timeoutCh:
	case <-ctx.Done():
	}

	q.mu.Lock()
	if q.waiting == e {
		q.waiting = nil
		q.mu.Unlock()
		return nil
	}
	q.mu.Unlock()

	// The slot no longer holds this entry, so it was claimed or cancelled
	// under the lock before we could clear it; the outcome is already in
	// the channel.
	return <-e.result
}

func newPair(waiterConn, joinerConn uuid.UUID) *Pair {
	colors := [2]color.Color{color.White, color.Black}
	if rand.IntN(2) == 1 {
		colors[0], colors[1] = colors[1], colors[0]
	}

	pair := &Pair{
		GameID: ulid.Make().String(),
		Waiter: PlayerSlot{ConnID: waiterConn, PlayerID: uuid.NewString(), Color: colors[0]},
		Joiner: PlayerSlot{ConnID: joinerConn, PlayerID: uuid.NewString(), Color: colors[1]},
	}

	if pair.Waiter.Color == color.White {
		pair.FirstMove = pair.Waiter.PlayerID
	} else {
		pair.FirstMove = pair.Joiner.PlayerID
	}

	return pair
}

func (p *Pair) matchFor(self, opponent *PlayerSlot) *Match {
	return &Match{
		GameID:     p.GameID,
		PlayerID:   self.PlayerID,
		Color:      self.Color,
		FirstMove:  p.FirstMove,
		AuthToken:  self.AuthToken,
		OpponentID: opponent.PlayerID,
	}
}
