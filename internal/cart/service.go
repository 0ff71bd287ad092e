package cart

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// ErrInvalidItem is returned for empty product ids or non-positive quantities.
var ErrInvalidItem = errors.New("cart: invalid item")

// Item is a cart line.
type Item struct {
	ProductID string `json:"productId"`
	Qty       int64  `json:"qty"`
}

// Service stores shopper carts in Redis, one hash per session.
type Service struct {
	R      redis.Cmdable
	Prefix string
	TTL    time.Duration
}

func (s *Service) key(sessionID string) string {
	prefix := s.Prefix
	if prefix == "" {
		prefix = "cart"
	}
	return prefix + ":" + sessionID
}

func (s *Service) ttl() time.Duration {
	if s.TTL <= 0 {
		return 48 * time.Hour
	}
	return s.TTL
}

func (s *Service) client() (redis.Cmdable, error) {
	if s == nil || s.R == nil {
		return nil, errors.New("cart: redis client not configured")
	}
	return s.R, nil
}

// Add increases the quantity of productID in the session cart.
func (s *Service) Add(ctx context.Context, sessionID, productID string, qty int64) error {
	r, err := s.client()
	if err != nil {
		return err
	}
	productID = strings.TrimSpace(productID)
	if productID == "" || qty <= 0 {
		return ErrInvalidItem
	}
	k := s.key(sessionID)
	_, err = r.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HIncrBy(ctx, k, productID, qty)
		p.Expire(ctx, k, s.ttl())
		return nil
	})
	if err != nil {
		return fmt.Errorf("cart add: %w", err)
	}
	return nil
}

// Items returns the cart lines sorted by product id.
func (s *Service) Items(ctx context.Context, sessionID string) ([]Item, error) {
	r, err := s.client()
	if err != nil {
		return nil, err
	}
	raw, err := r.HGetAll(ctx, s.key(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("cart items: %w", err)
	}
	items := make([]Item, 0, len(raw))
	for productID, v := range raw {
		qty, err := strconv.ParseInt(v, 10, 64)
		if err != nil || qty <= 0 {
			continue
		}
		items = append(items, Item{ProductID: productID, Qty: qty})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })
	return items, nil
}

// Exists reports whether the session has a non-empty cart.
func (s *Service) Exists(ctx context.Context, sessionID string) (bool, error) {
	r, err := s.client()
	if err != nil {
		return false, err
	}
	n, err := r.HLen(ctx, s.key(sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("cart exists: %w", err)
	}
	return n > 0, nil
}

// Empty removes every line from the session cart.
func (s *Service) Empty(ctx context.Context, sessionID string) error {
	r, err := s.client()
	if err != nil {
		return err
	}
	if err := r.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("cart empty: %w", err)
	}
	return nil
}
