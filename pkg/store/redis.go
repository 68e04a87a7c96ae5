package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	gameKeyPrefix = "game:"
	gamesSetKey   = "games"

	// Records outlive any realistic reconnection window but do not pile
	// up forever.
	gameTTL = 24 * time.Hour
)

type redisClient interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	SAdd(ctx context.Context, key string, members ...any) *redis.IntCmd
	SRem(ctx context.Context, key string, members ...any) *redis.IntCmd
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisStore keeps game records in Redis: one JSON value per game plus a
// set indexing the live game keys.
type RedisStore struct {
	client redisClient
	logger *zap.Logger
}

// NewRedisStore creates a store on top of an existing client connection.
func NewRedisStore(client redisClient, logger *zap.Logger) *RedisStore {
	return &RedisStore{client: client, logger: logger}
}

// NewRedisClient connects to Redis, accepting either a redis:// URL or a
// host:port address, and verifies the connection with a short ping.
func NewRedisClient(addr string) (*redis.Client, error) {
	var options *redis.Options

	if strings.HasPrefix(addr, "redis://") {
		opt, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("could not parse Redis URL: %w", err)
		}
		options = opt
	} else {
		options = &redis.Options{
			Addr: addr,
		}
	}

	client := redis.NewClient(options)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*3)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("could not connect to Redis: %w", err)
	}

	return client, nil
}

// SaveGame writes the record and indexes its key
func (s *RedisStore) SaveGame(ctx context.Context, gameID string, rec GameRecord) error {
	key := gameKeyPrefix + gameID

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("could not marshal game record: %w", err)
	}

	if err := s.client.Set(ctx, key, data, gameTTL).Err(); err != nil {
		return fmt.Errorf("could not store game in Redis: %w", err)
	}

	if err := s.client.SAdd(ctx, gamesSetKey, key).Err(); err != nil {
		return fmt.Errorf("could not add game to set: %w", err)
	}

	return nil
}

// DeleteGame removes the record and its index entry
func (s *RedisStore) DeleteGame(ctx context.Context, gameID string) error {
	key := gameKeyPrefix + gameID

	if err := s.client.SRem(ctx, gamesSetKey, key).Err(); err != nil {
		return fmt.Errorf("could not remove game from set: %w", err)
	}

	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("could not delete game data: %w", err)
	}

	return nil
}

// LoadGames fetches every indexed record. Expired keys are dropped from
// the index, corrupt values are skipped with a warning.
func (s *RedisStore) LoadGames(ctx context.Context) (map[string]GameRecord, error) {
	keys, err := s.client.SMembers(ctx, gamesSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("could not list game keys: %w", err)
	}

	games := make(map[string]GameRecord, len(keys))
	for _, key := range keys {
		data, err := s.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			s.client.SRem(ctx, gamesSetKey, key)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("could not get game data: %w", err)
		}

		var rec GameRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			s.logger.Warn("skipping corrupt game record", zap.String("key", key), zap.Error(err))
			continue
		}

		games[strings.TrimPrefix(key, gameKeyPrefix)] = rec
	}

	return games, nil
}
