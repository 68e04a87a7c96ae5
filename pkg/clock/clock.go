// Package clock enforces the optional per-turn think-time limit. One
// TurnClock serves the whole process; state is kept per game and player.
package clock

import (
	"sync"
	"time"
)

// TurnClock records when each player's turn started and answers whether a
// turn has run past the configured limit. A zero limit disables the clock
// entirely.
type TurnClock struct {
	mu     sync.Mutex
	limit  time.Duration
	starts map[string]map[string]time.Time
}

// NewTurnClock creates a turn clock with the given limit; non-positive
// disables it.
func NewTurnClock(limit time.Duration) *TurnClock {
	return &TurnClock{
		limit:  limit,
		starts: make(map[string]map[string]time.Time),
	}
}

// Enabled reports whether a limit is configured.
func (c *TurnClock) Enabled() bool {
	return c.limit > 0
}

// Limit returns the configured per-turn limit.
func (c *TurnClock) Limit() time.Duration {
	return c.limit
}

// StartTurn records that the player's turn began at now. No-op when the
// clock is disabled.
func (c *TurnClock) StartTurn(gameID, playerID string, now time.Time) {
	if !c.Enabled() {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	game, ok := c.starts[gameID]
	if !ok {
		game = make(map[string]time.Time)
		c.starts[gameID] = game
	}
	game[playerID] = now
}

// Elapsed returns how long the player's current turn has been running.
// ok is false when no turn is tracked for the player.
func (c *TurnClock) Elapsed(gameID, playerID string, now time.Time) (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	start, ok := c.starts[gameID][playerID]
	if !ok {
		return 0, false
	}

	return now.Sub(start), true
}

// Exceeded reports whether the player's tracked turn has strictly
// exceeded the limit, along with the elapsed time. Always false when the
// clock is disabled or no turn is tracked.
func (c *TurnClock) Exceeded(gameID, playerID string, now time.Time) (time.Duration, bool) {
	if !c.Enabled() {
		return 0, false
	}

	elapsed, ok := c.Elapsed(gameID, playerID, now)
	if !ok {
		return 0, false
	}

	return elapsed, elapsed > c.limit
}

// ClearGame drops all turn state for a game.
func (c *TurnClock) ClearGame(gameID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.starts, gameID)
}
