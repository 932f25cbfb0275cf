package flash

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "flash:"

// RedisStore keeps flash messages in Redis so any server instance can serve
// the page after the redirect.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

// OpenRedis connects to addr and checks the connection.
func OpenRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	logg.Info("flash", "Connected to Redis (address anonymized)")
	return rdb, nil
}

func (s *RedisStore) Put(ctx context.Context, key string, msg Message) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode flash: %w", err)
	}
	if err := s.rdb.Set(ctx, keyPrefix+key, b, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store flash: %w", err)
	}
	return nil
}

func (s *RedisStore) Take(ctx context.Context, key string) (Message, error) {
	b, err := s.rdb.GetDel(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Message{}, ErrEmpty
		}
		return Message{}, fmt.Errorf("failed to take flash: %w", err)
	}

	var msg Message
	if err := json.Unmarshal(b, &msg); err != nil {
		return Message{}, fmt.Errorf("failed to decode flash: %w", err)
	}
	return msg, nil
}
