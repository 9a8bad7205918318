package writeback

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisDedupe records written cache keys with SETNX so concurrent recomputes
// of one uncached key produce a single write instead of several identical
// ones. Any redis failure degrades to writing anyway.
type RedisDedupe struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
}

func NewRedisDedupe(client redis.UniversalClient, keyPrefix string, ttl time.Duration) (*RedisDedupe, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if keyPrefix == "" {
		keyPrefix = "imgedge:written"
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisDedupe{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
	}, nil
}

func (d *RedisDedupe) MarkWritten(ctx context.Context, key string) (bool, error) {
	first, err := d.client.SetNX(ctx, d.keyPrefix+":"+key, 1, d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("mark written %s: %w", key, err)
	}
	return first, nil
}
