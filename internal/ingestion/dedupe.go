package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	dedupeKeyPrefix = "whatsapp:msg:"
	dedupeTTL       = 24 * time.Hour
)

// RedisDeduper remembers provider message ids so that webhook retries from
// the provider are not stored twice.
type RedisDeduper struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisDeduper(client redis.Cmdable) *RedisDeduper {
	return &RedisDeduper{client: client, ttl: dedupeTTL}
}

// Claim marks id as seen. It returns false when id was already claimed
// within the TTL.
func (d *RedisDeduper) Claim(ctx context.Context, id string) (bool, error) {
	ok, err := d.client.SetNX(ctx, dedupeKeyPrefix+id, time.Now().Unix(), d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim message id: %w", err)
	}
	return ok, nil
}

// Release forgets id so a later delivery of the same message is processed.
func (d *RedisDeduper) Release(ctx context.Context, id string) error {
	if err := d.client.Del(ctx, dedupeKeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("release message id: %w", err)
	}
	return nil
}
