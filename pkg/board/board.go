// Package board wraps the chess rules library behind the small surface the
// rest of the server needs: apply a move, list legal moves, inspect the
// position, detect terminal states. No rules logic lives here.
package board

import (
	"errors"
	"fmt"
	"sync"

	"github.com/corentings/chess/v2"

	"github.com/tecu23/arena-server/internal/color"
)

// ErrIllegalMove is returned when a move cannot be applied to the current
// position, including unparseable input.
var ErrIllegalMove = errors.New("illegal move")

// Board is the live state of one game plus which player owns which color.
// All methods are safe for concurrent use; the mutex also guarantees at
// most one in-flight mutation per game.
type Board struct {
	mu      sync.Mutex
	game    *chess.Game
	players map[string]color.Color
}

// New creates a board at the starting position.
func New(players map[string]color.Color) *Board {
	return &Board{
		game:    chess.NewGame(),
		players: clonePlayers(players),
	}
}

// FromFEN restores a board from a FEN string, used when reloading
// persisted games at startup.
func FromFEN(fen string, players map[string]color.Color) (*Board, error) {
	opt, err := chess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("parse fen: %w", err)
	}

	return &Board{
		game:    chess.NewGame(opt),
		players: clonePlayers(players),
	}, nil
}

// MakeMove applies a move in standard algebraic notation. Illegal or
// unparseable input returns ErrIllegalMove and leaves the position
// untouched.
func (b *Board) MakeMove(move string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.game.PushMove(move, nil); err != nil {
		return fmt.Errorf("%w: %q", ErrIllegalMove, move)
	}

	return nil
}

// LegalMoves returns the legal moves for the side to move, in standard
// algebraic notation.
func (b *Board) LegalMoves() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	pos := b.game.Position()
	valid := b.game.ValidMoves()

	moves := make([]string, 0, len(valid))
	for i := range valid {
		moves = append(moves, chess.AlgebraicNotation{}.Encode(pos, &valid[i]))
	}

	return moves
}

// FEN returns the current position.
func (b *Board) FEN() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.game.FEN()
}

// Turn returns the color of the side to move.
func (b *Board) Turn() color.Color {
	b.mu.Lock()
	defer b.mu.Unlock()

	return fromChess(b.game.Position().Turn())
}

// GameOver reports whether the game has reached a terminal position.
func (b *Board) GameOver() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.game.Outcome() != chess.NoOutcome
}

// GameOverReason describes how the game ended, empty while it is still
// running.
func (b *Board) GameOverReason() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	outcome := b.game.Outcome()
	if outcome == chess.NoOutcome {
		return ""
	}

	switch b.game.Method() {
	case chess.Checkmate:
		winner := "White"
		if outcome == chess.BlackWon {
			winner = "Black"
		}
		return fmt.Sprintf("Checkmate - %s wins", winner)
	case chess.Stalemate:
		return "Stalemate - Draw"
	case chess.InsufficientMaterial:
		return "Insufficient material - Draw"
	case chess.SeventyFiveMoveRule:
		return "Seventy-five move rule - Draw"
	case chess.FivefoldRepetition:
		return "Fivefold repetition - Draw"
	default:
		return fmt.Sprintf("Game over - %s", outcome)
	}
}

// PlayerColor returns the color assigned to the given player.
func (b *Board) PlayerColor(playerID string) (color.Color, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.players[playerID]
	return c, ok
}

// IsPlayersTurn reports whether it is the given player's turn to move.
// Unknown players never have the turn.
func (b *Board) IsPlayersTurn(playerID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.players[playerID]
	if !ok {
		return false
	}

	return c == fromChess(b.game.Position().Turn())
}

// PlayerToMove returns the id of the player whose turn it is.
func (b *Board) PlayerToMove() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.playerByColor(fromChess(b.game.Position().Turn()))
}

// PlayerByColor returns the id of the player holding the given color.
func (b *Board) PlayerByColor(c color.Color) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.playerByColor(c)
}

// Players returns a copy of the player-to-color assignments.
func (b *Board) Players() map[string]color.Color {
	b.mu.Lock()
	defer b.mu.Unlock()

	return clonePlayers(b.players)
}

func (b *Board) playerByColor(c color.Color) string {
	for id, pc := range b.players {
		if pc == c {
			return id
		}
	}

	return ""
}

func fromChess(c chess.Color) color.Color {
	if c == chess.White {
		return color.White
	}

	return color.Black
}

func clonePlayers(players map[string]color.Color) map[string]color.Color {
	cloned := make(map[string]color.Color, len(players))
	for id, c := range players {
		cloned[id] = c
	}

	return cloned
}
