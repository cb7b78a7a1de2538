package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds Redis connection configuration
type Config struct {
	Addr     string
	Password string
	DB       int
}

// NewClient connects to Redis with a fail-fast ping check.
func NewClient(config *Config, logger *slog.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis connection established",
		slog.String("addr", config.Addr),
		slog.Int("db", config.DB),
	)

	return rdb, nil
}

// WatermarkStore persists the change detector's last successful scan time
// under a key shared by every instance, so the detection window survives
// restarts and does not drift per instance.
type WatermarkStore struct {
	rdb *redis.Client
	key string
}

// NewWatermarkStore returns a store bound to the given key.
func NewWatermarkStore(rdb *redis.Client, key string) *WatermarkStore {
	return &WatermarkStore{rdb: rdb, key: key}
}

// Last returns the stored watermark. The second return is false when no
// watermark has been written yet.
func (s *WatermarkStore) Last(ctx context.Context) (time.Time, bool, error) {
	val, err := s.rdb.Get(ctx, s.key).Result()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read watermark: %w", err)
	}

	t, err := time.Parse(time.RFC3339Nano, val)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("invalid watermark value %q: %w", val, err)
	}

	return t, true, nil
}

// Advance stores a new watermark.
func (s *WatermarkStore) Advance(ctx context.Context, t time.Time) error {
	if err := s.rdb.Set(ctx, s.key, t.UTC().Format(time.RFC3339Nano), 0).Err(); err != nil {
		return fmt.Errorf("failed to advance watermark: %w", err)
	}
	return nil
}
