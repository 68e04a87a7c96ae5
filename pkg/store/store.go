// Package store persists game state so boards survive a server restart.
package store

import (
	"context"
	"time"
)

// GameRecord is the persisted form of one game: the position plus which
// player holds which color.
type GameRecord struct {
	FEN       string            `json:"fen"`
	Players   map[string]string `json:"player_mappings"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// GameStore is implemented by the in-memory default and the Redis-backed
// store.
type GameStore interface {
	SaveGame(ctx context.Context, gameID string, rec GameRecord) error
	DeleteGame(ctx context.Context, gameID string) error
	LoadGames(ctx context.Context) (map[string]GameRecord, error)
}
