package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Store keeps per-session key/value pairs in Redis hashes. Every write refreshes the
// session expiry.
type Store struct {
	R      redis.Cmdable
	Prefix string
	TTL    time.Duration
}

func (s Store) key(id string) string {
	prefix := s.Prefix
	if prefix == "" {
		prefix = "sess"
	}
	return prefix + ":" + id
}

func (s Store) ttl() time.Duration {
	if s.TTL <= 0 {
		return 48 * time.Hour
	}
	return s.TTL
}

// Get returns the value stored under key for the session.
func (s Store) Get(ctx context.Context, id, key string) (string, bool, error) {
	if s.R == nil {
		return "", false, errors.New("session: redis client not configured")
	}
	val, err := s.R.HGet(ctx, s.key(id), key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("session get %s: %w", key, err)
	}
	return val, true, nil
}

// Set stores value under key for the session.
func (s Store) Set(ctx context.Context, id, key, value string) error {
	if s.R == nil {
		return errors.New("session: redis client not configured")
	}
	k := s.key(id)
	_, err := s.R.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, k, key, value)
		p.Expire(ctx, k, s.ttl())
		return nil
	})
	if err != nil {
		return fmt.Errorf("session set %s: %w", key, err)
	}
	return nil
}

// Pop returns the value stored under key and removes it in the same transaction.
func (s Store) Pop(ctx context.Context, id, key string) (string, bool, error) {
	if s.R == nil {
		return "", false, errors.New("session: redis client not configured")
	}
	k := s.key(id)
	var get *redis.StringCmd
	_, err := s.R.TxPipelined(ctx, func(p redis.Pipeliner) error {
		get = p.HGet(ctx, k, key)
		p.HDel(ctx, k, key)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", false, fmt.Errorf("session pop %s: %w", key, err)
	}
	val, err := get.Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("session pop %s: %w", key, err)
	}
	return val, true, nil
}
