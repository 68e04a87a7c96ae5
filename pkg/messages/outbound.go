package messages

import "github.com/tecu23/arena-server/internal/color"

// Outbound message types. Every server-to-client message carries one of
// these in its "type" field.
const (
	TypeQueueTimeout         = "queue_timeout"
	TypeMatchFound           = "match_found"
	TypeMoveMade             = "move_made"
	TypeBoardState           = "board_state"
	TypeError                = "error"
	TypeOpponentDisconnected = "opponent_disconnected"
	TypeOpponentReconnected  = "opponent_reconnected"
	TypeGameOver             = "game_over"
	TypePong                 = "pong"
)

// Terminal statuses carried by GameOver.
const (
	StatusForfeit      = "forfeit"
	StatusCancelled    = "cancelled"
	StatusDisqualified = "disqualified"
)

// QueueTimeout tells a waiting client that no opponent arrived in time.
type QueueTimeout struct {
	Type string `json:"type"`
}

// MatchFound carries everything a client needs to play: its identity for
// this game, the token that authenticates its actions, its color and who
// moves first.
type MatchFound struct {
	Type          string      `json:"type"`
	GameID        string      `json:"game_id"`
	PlayerID      string      `json:"player_id"`
	AuthToken     string      `json:"auth_token"`
	AssignedColor color.Color `json:"assigned_color"`
	FirstMove     string      `json:"first_move"`
}

// MoveMade is broadcast to both players after a move is applied.
type MoveMade struct {
	Type           string      `json:"type"`
	GameID         string      `json:"game_id"`
	Move           string      `json:"move"`
	FEN            string      `json:"fen"`
	CurrentTurn    color.Color `json:"current_turn"`
	GameOver       bool        `json:"game_over"`
	GameOverReason string      `json:"game_over_reason,omitempty"`
}

// BoardState is the reply to a get_board request.
type BoardState struct {
	Type           string      `json:"type"`
	GameID         string      `json:"game_id"`
	FEN            string      `json:"fen"`
	CurrentTurn    color.Color `json:"current_turn"`
	GameOver       bool        `json:"game_over"`
	GameOverReason string      `json:"game_over_reason,omitempty"`
}

// ErrorMessage reports a rejected request to the connection that sent it.
// LegalMoves is populated when an illegal move was attempted.
type ErrorMessage struct {
	Type       string   `json:"type"`
	Message    string   `json:"message"`
	LegalMoves []string `json:"legal_moves,omitempty"`
}

// OpponentDisconnected notifies remaining players that a player dropped.
type OpponentDisconnected struct {
	Type     string `json:"type"`
	PlayerID string `json:"player_id"`
}

// OpponentReconnected notifies remaining players that a player came back.
type OpponentReconnected struct {
	Type     string `json:"type"`
	PlayerID string `json:"player_id"`
}

// GameOver announces a terminal state reached outside normal play:
// forfeit, cancellation or disqualification.
type GameOver struct {
	Type               string `json:"type"`
	Status             string `json:"status"`
	Winner             string `json:"winner,omitempty"`
	DisqualifiedPlayer string `json:"disqualified_player_id,omitempty"`
	Message            string `json:"message,omitempty"`
}

// Pong answers a ping.
type Pong struct {
	Type string `json:"type"`
}
