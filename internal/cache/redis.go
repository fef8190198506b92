package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hyperengineering/digitaltwin/internal/types"
)

var _ Cache = (*Redis)(nil)

// redisClient is the subset of *redis.Client used by Redis.
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Close() error
}

// Redis caches reports in Redis with a fixed TTL.
type Redis struct {
	client redisClient
	ttl    time.Duration
}

// NewRedis connects to addr and verifies the connection.
func NewRedis(ctx context.Context, addr, password string, db int, ttl time.Duration) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	slog.Info("redis cache connected", "component", "cache", "addr", addr, "ttl", ttl.String())
	return &Redis{client: client, ttl: ttl}, nil
}

// Get returns the cached report for the snapshot.
func (r *Redis) Get(ctx context.Context, userID, snapshotHash string) (*types.DigitalTwinCurveOutput, bool, error) {
	data, err := r.client.Get(ctx, Key(userID, snapshotHash)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get cached curve: %w", err)
	}

	var out types.DigitalTwinCurveOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, false, fmt.Errorf("decode cached curve: %w", err)
	}
	return &out, true, nil
}

// Set stores the report for the snapshot.
func (r *Redis) Set(ctx context.Context, userID, snapshotHash string, out *types.DigitalTwinCurveOutput) error {
	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("encode curve: %w", err)
	}
	if err := r.client.Set(ctx, Key(userID, snapshotHash), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("set cached curve: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}
