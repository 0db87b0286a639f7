package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// markTTL keeps a day's keys long enough to cover time zone skew between
// processes.
const markTTL = 48 * time.Hour

// RedisStore implements Store with one SETNX key per day and identity.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	return &RedisStore{client: client, prefix: "attendance"}, nil
}

func (s *RedisStore) key(dayKey, identity string) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, dayKey, identity)
}

// MarkIfAbsent reports true if this call created the mark.
func (s *RedisStore) MarkIfAbsent(ctx context.Context, dayKey, identity string) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.key(dayKey, identity), time.Now().Unix(), markTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark %s for %s: %w", identity, dayKey, err)
	}
	return ok, nil
}

// Seed marks identities without overwriting existing keys.
func (s *RedisStore) Seed(ctx context.Context, dayKey string, identities []string) error {
	pipe := s.client.Pipeline()
	for _, identity := range identities {
		pipe.SetNX(ctx, s.key(dayKey, identity), time.Now().Unix(), markTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to seed %d marks for %s: %w", len(identities), dayKey, err)
	}
	return nil
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
