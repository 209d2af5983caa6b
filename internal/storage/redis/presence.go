package redis

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sketchduel/backend/internal/config"
	"github.com/sketchduel/backend/internal/models"
)

// PresenceStore implements storage.PresenceStore on Redis.
//
// Layout:
//   - presence:{session}          set of player ids with a record
//   - presence:{session}:{player} hash {online, lastSeen, playerName, joinedAt}
//
// lastSeen and joinedAt are Unix milliseconds taken from the Redis server clock.
// Records expire after ttl without a write so abandoned sessions drain on their own.
type PresenceStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPresenceStore connects to Redis and verifies the connection
func NewPresenceStore(cfg config.RedisConfig, ttl time.Duration) (*PresenceStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewPresenceStoreWithClient(client, ttl), nil
}

// NewPresenceStoreWithClient uses an existing client
func NewPresenceStoreWithClient(client *redis.Client, ttl time.Duration) *PresenceStore {
	return &PresenceStore{client: client, ttl: ttl}
}

// Close closes the Redis client
func (s *PresenceStore) Close() error {
	return s.client.Close()
}

// SetOnline replaces the player's record
func (s *PresenceStore) SetOnline(ctx context.Context, sessionID, playerID, playerName string) error {
	now, err := s.serverTime(ctx)
	if err != nil {
		return err
	}

	key := recordKey(sessionID, playerID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			"online", "1",
			"lastSeen", now,
			"playerName", playerName,
			"joinedAt", now,
		)
		pipe.SAdd(ctx, indexKey(sessionID), playerID)
		s.expire(ctx, pipe, sessionID, key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to set presence: %w", err)
	}
	return nil
}

// Touch updates online and lastSeen
func (s *PresenceStore) Touch(ctx context.Context, sessionID, playerID string, online bool) error {
	now, err := s.serverTime(ctx)
	if err != nil {
		return err
	}

	flag := "0"
	if online {
		flag = "1"
	}

	key := recordKey(sessionID, playerID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, "online", flag, "lastSeen", now)
		pipe.SAdd(ctx, indexKey(sessionID), playerID)
		s.expire(ctx, pipe, sessionID, key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to update presence: %w", err)
	}
	return nil
}

// Remove deletes one record
func (s *PresenceStore) Remove(ctx context.Context, sessionID, playerID string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, recordKey(sessionID, playerID))
		pipe.SRem(ctx, indexKey(sessionID), playerID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to remove presence: %w", err)
	}
	return nil
}

// RemoveSession deletes every record of a session
func (s *PresenceStore) RemoveSession(ctx context.Context, sessionID string) error {
	players, err := s.client.SMembers(ctx, indexKey(sessionID)).Result()
	if err != nil {
		return fmt.Errorf("failed to list presence: %w", err)
	}

	keys := make([]string, 0, len(players)+1)
	for _, playerID := range players {
		keys = append(keys, recordKey(sessionID, playerID))
	}
	keys = append(keys, indexKey(sessionID))

	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to remove session presence: %w", err)
	}
	return nil
}

// List returns every record of the session ordered by player id
func (s *PresenceStore) List(ctx context.Context, sessionID string) ([]models.PresenceRecord, error) {
	players, err := s.client.SMembers(ctx, indexKey(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list presence: %w", err)
	}
	sort.Strings(players)

	cmds := make([]*redis.MapStringStringCmd, len(players))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, playerID := range players {
			cmds[i] = pipe.HGetAll(ctx, recordKey(sessionID, playerID))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read presence: %w", err)
	}

	records := make([]models.PresenceRecord, 0, len(players))
	for i, playerID := range players {
		fields := cmds[i].Val()
		if len(fields) == 0 {
			// expired record still listed in the index
			continue
		}
		records = append(records, models.PresenceRecord{
			PlayerID:   playerID,
			PlayerName: fields["playerName"],
			Online:     fields["online"] == "1",
			LastSeen:   parseMillis(fields["lastSeen"]),
			JoinedAt:   parseMillis(fields["joinedAt"]),
		})
	}
	return records, nil
}

// serverTime returns the Redis server clock in Unix milliseconds
func (s *PresenceStore) serverTime(ctx context.Context) (int64, error) {
	now, err := s.client.Time(ctx).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read server time: %w", err)
	}
	return now.UnixMilli(), nil
}

func (s *PresenceStore) expire(ctx context.Context, pipe redis.Pipeliner, sessionID, key string) {
	if s.ttl <= 0 {
		return
	}
	pipe.Expire(ctx, key, s.ttl)
	pipe.Expire(ctx, indexKey(sessionID), s.ttl)
}

func indexKey(sessionID string) string {
	return fmt.Sprintf("presence:%s", sessionID)
}

func recordKey(sessionID, playerID string) string {
	return fmt.Sprintf("presence:%s:%s", sessionID, playerID)
}

func parseMillis(v string) time.Time {
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
