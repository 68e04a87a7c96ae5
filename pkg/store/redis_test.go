package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

func testRecord() GameRecord {
	return GameRecord{
		FEN: startFEN,
		Players: map[string]string{
			"player-1": "white",
			"player-2": "black",
		},
		UpdatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func TestRedisStore_SaveGame(t *testing.T) {
	t.Parallel()

	givenRecord := testRecord()

	testCases := []struct {
		name           string
		setFunc        func(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
		sAddFunc       func(ctx context.Context, key string, members ...any) *redis.IntCmd
		expectErr      bool
		expectSetCall  bool
		expectSAddCall bool
	}{
		{
			name: "successful save",
			setFunc: func(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
				assert.Equal(t, gameKeyPrefix+"game-1", key)
				assert.Equal(t, gameTTL, expiration)

				valueBytes, ok := value.([]byte)
				assert.True(t, ok)

				var rec GameRecord
				err := json.Unmarshal(valueBytes, &rec)
				assert.NoError(t, err)
				assert.Equal(t, givenRecord.FEN, rec.FEN)
				assert.Equal(t, givenRecord.Players, rec.Players)

				cmd := redis.NewStatusCmd(ctx)
				cmd.SetVal("OK")
				return cmd
			},
			sAddFunc: func(ctx context.Context, key string, members ...any) *redis.IntCmd {
				assert.Equal(t, gamesSetKey, key)
				assert.Equal(t, 1, len(members))
				assert.Equal(t, gameKeyPrefix+"game-1", members[0])

				cmd := redis.NewIntCmd(ctx)
				cmd.SetVal(1)
				return cmd
			},
			expectErr:      false,
			expectSetCall:  true,
			expectSAddCall: true,
		},
		{
			name: "set fails",
			setFunc: func(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
				cmd := redis.NewStatusCmd(ctx)
				cmd.SetErr(assert.AnError)
				return cmd
			},
			sAddFunc: func(ctx context.Context, key string, members ...any) *redis.IntCmd {
				cmd := redis.NewIntCmd(ctx)
				cmd.SetVal(1)
				return cmd
			},
			expectErr:      true,
			expectSetCall:  true,
			expectSAddCall: false,
		},
		{
			name: "sadd fails",
			setFunc: func(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
				cmd := redis.NewStatusCmd(ctx)
				cmd.SetVal("OK")
				return cmd
			},
			sAddFunc: func(ctx context.Context, key string, members ...any) *redis.IntCmd {
				cmd := redis.NewIntCmd(ctx)
				cmd.SetErr(assert.AnError)
				return cmd
			},
			expectErr:      true,
			expectSetCall:  true,
			expectSAddCall: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			redisMock := newRedisMock()
			redisMock.setFunc = tc.setFunc
			redisMock.sAddFunc = tc.sAddFunc

			s := NewRedisStore(redisMock, zap.NewNop())

			err := s.SaveGame(context.Background(), "game-1", givenRecord)
			if tc.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}

			assert.Equal(t, tc.expectSetCall, redisMock.wasSetCalled())
			assert.Equal(t, tc.expectSAddCall, redisMock.wasSAddCalled())
		})
	}
}

func TestRedisStore_DeleteGame(t *testing.T) {
	t.Parallel()

	gameKey := gameKeyPrefix + "game-1"

	testCases := []struct {
		name           string
		sRemFunc       func(ctx context.Context, key string, members ...any) *redis.IntCmd
		delFunc        func(ctx context.Context, keys ...string) *redis.IntCmd
		expectErr      bool
		expectSRemCall bool
		expectDelCall  bool
	}{
		{
			name: "successful delete",
			sRemFunc: func(ctx context.Context, key string, members ...any) *redis.IntCmd {
				assert.Equal(t, gamesSetKey, key)
				assert.Equal(t, 1, len(members))
				assert.Equal(t, gameKey, members[0])

				cmd := redis.NewIntCmd(ctx)
				cmd.SetVal(1)
				return cmd
			},
			delFunc: func(ctx context.Context, keys ...string) *redis.IntCmd {
				assert.Equal(t, 1, len(keys))
				assert.Equal(t, gameKey, keys[0])

				cmd := redis.NewIntCmd(ctx)
				cmd.SetVal(1)
				return cmd
			},
			expectErr:      false,
			expectSRemCall: true,
			expectDelCall:  true,
		},
		{
			name: "srem fails",
			sRemFunc: func(ctx context.Context, key string, members ...any) *redis.IntCmd {
				cmd := redis.NewIntCmd(ctx)
				cmd.SetErr(assert.AnError)
				return cmd
			},
			delFunc: func(ctx context.Context, keys ...string) *redis.IntCmd {
				cmd := redis.NewIntCmd(ctx)
				cmd.SetVal(1)
				return cmd
			},
			expectErr:      true,
			expectSRemCall: true,
			expectDelCall:  false,
		},
		{
			name: "del fails",
			sRemFunc: func(ctx context.Context, key string, members ...any) *redis.IntCmd {
				cmd := redis.NewIntCmd(ctx)
				cmd.SetVal(1)
				return cmd
			},
			delFunc: func(ctx context.Context, keys ...string) *redis.IntCmd {
				cmd := redis.NewIntCmd(ctx)
				cmd.SetErr(assert.AnError)
				return cmd
			},
			expectErr:      true,
			expectSRemCall: true,
			expectDelCall:  true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			redisMock := newRedisMock()
			redisMock.sRemFunc = tc.sRemFunc
			redisMock.delFunc = tc.delFunc

			s := NewRedisStore(redisMock, zap.NewNop())

			err := s.DeleteGame(context.Background(), "game-1")
			if tc.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}

			assert.Equal(t, tc.expectSRemCall, redisMock.wasSRemCalled())
			assert.Equal(t, tc.expectDelCall, redisMock.wasDelCalled())
		})
	}
}

func TestRedisStore_LoadGames(t *testing.T) {
	t.Parallel()

	t.Run("round trips saved games", func(t *testing.T) {
		t.Parallel()

		redisMock := newRedisMock()
		s := NewRedisStore(redisMock, zap.NewNop())

		rec := testRecord()
		require.NoError(t, s.SaveGame(context.Background(), "game-1", rec))
		require.NoError(t, s.SaveGame(context.Background(), "game-2", rec))

		games, err := s.LoadGames(context.Background())
		require.NoError(t, err)
		require.Len(t, games, 2)
		assert.Equal(t, rec.FEN, games["game-1"].FEN)
		assert.Equal(t, rec.Players, games["game-2"].Players)
	})

	t.Run("smembers fails", func(t *testing.T) {
		t.Parallel()

		redisMock := newRedisMock()
		redisMock.sMembersFunc = func(ctx context.Context, key string) *redis.StringSliceCmd {
			cmd := redis.NewStringSliceCmd(ctx)
			cmd.SetErr(assert.AnError)
			return cmd
		}

		s := NewRedisStore(redisMock, zap.NewNop())

		games, err := s.LoadGames(context.Background())
		assert.Error(t, err)
		assert.Nil(t, games)
	})

	t.Run("expired key is dropped from the index", func(t *testing.T) {
		t.Parallel()

		redisMock := newRedisMock()
		redisMock.sMembersFunc = func(ctx context.Context, key string) *redis.StringSliceCmd {
			cmd := redis.NewStringSliceCmd(ctx)
			cmd.SetVal([]string{gameKeyPrefix + "game-1"})
			return cmd
		}
		redisMock.getFunc = func(ctx context.Context, key string) *redis.StringCmd {
			cmd := redis.NewStringCmd(ctx)
			cmd.SetErr(redis.Nil)
			return cmd
		}

		s := NewRedisStore(redisMock, zap.NewNop())

		games, err := s.LoadGames(context.Background())
		require.NoError(t, err)
		assert.Empty(t, games)
		assert.True(t, redisMock.wasSRemCalled())
	})

	t.Run("corrupt record is skipped", func(t *testing.T) {
		t.Parallel()

		redisMock := newRedisMock()
		redisMock.sMembersFunc = func(ctx context.Context, key string) *redis.StringSliceCmd {
			cmd := redis.NewStringSliceCmd(ctx)
			cmd.SetVal([]string{gameKeyPrefix + "game-1", gameKeyPrefix + "game-2"})
			return cmd
		}

		goodJSON, err := json.Marshal(testRecord())
		require.NoError(t, err)

		redisMock.getFunc = func(ctx context.Context, key string) *redis.StringCmd {
			cmd := redis.NewStringCmd(ctx)
			if key == gameKeyPrefix+"game-1" {
				cmd.SetVal("{not json")
			} else {
				cmd.SetVal(string(goodJSON))
			}
			return cmd
		}

		s := NewRedisStore(redisMock, zap.NewNop())

		games, err := s.LoadGames(context.Background())
		require.NoError(t, err)
		require.Len(t, games, 1)
		assert.Contains(t, games, "game-2")
	})
}
