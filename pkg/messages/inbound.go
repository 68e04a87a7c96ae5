package messages

import "encoding/json"

// Inbound message types. The router matches over this closed set and
// rejects anything else.
const (
	TypeJoinQueue = "join_queue"
	TypeMakeMove  = "make_move"
	TypeGetBoard  = "get_board"
	TypePing      = "ping"
)

// InboundMessage is the generic wrapper for messages coming from the client.
// The "type" field tells us the action; "payload" is the data we parse further.
type InboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// MakeMovePayload represents the payload for making a move during a game
type MakeMovePayload struct {
	GameID    string `json:"game_id"`
	PlayerID  string `json:"player_id"`
	AuthToken string `json:"auth_token"`
	Move      string `json:"move"`
}

// GetBoardPayload represents the payload for requesting the current state
// of a game
type GetBoardPayload struct {
	GameID    string `json:"game_id"`
	PlayerID  string `json:"player_id"`
	AuthToken string `json:"auth_token"`
}
