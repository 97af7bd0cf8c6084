package signal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Slot is the shared-storage fallback for the wallet success payload. The
// provider return page writes it here so a poll can recover the result if
// the relayed message was missed. One well-known key per order id,
// cleared once consumed.
type Slot interface {
	Put(ctx context.Context, orderID string, p Payload) error
	Get(ctx context.Context, orderID string) (Payload, bool, error)
	Clear(ctx context.Context, orderID string) error
}

type redisSlot struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisSlot(rdb *redis.Client, ttl time.Duration) Slot {
	return &redisSlot{rdb: rdb, ttl: ttl}
}

func slotKey(orderID string) string {
	return fmt.Sprintf("checkout:wallet:%s", orderID)
}

func (s *redisSlot) Put(ctx context.Context, orderID string, p Payload) error {
	b, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal slot payload: %w", err)
	}
	return s.rdb.Set(ctx, slotKey(orderID), b, s.ttl).Err()
}

func (s *redisSlot) Get(ctx context.Context, orderID string) (Payload, bool, error) {
	val, err := s.rdb.Get(ctx, slotKey(orderID)).Result()
	if errors.Is(err, redis.Nil) {
		return Payload{}, false, nil
	}
	if err != nil {
		return Payload{}, false, err
	}

	var p Payload
	if err := json.Unmarshal([]byte(val), &p); err != nil {
		return Payload{}, false, fmt.Errorf("unmarshal slot payload: %w", err)
	}
	return p, true, nil
}

func (s *redisSlot) Clear(ctx context.Context, orderID string) error {
	return s.rdb.Del(ctx, slotKey(orderID)).Err()
}
