package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hephaex/Barami/pkg/config"

	"github.com/redis/go-redis/v9"
)

// RedisClient is the snapshot store connection shared by a dashboard's
// query cache and its health check.
type RedisClient struct {
	*redis.Client
}

// redisOptions applies the dashboard's pool settings on top of REDIS_URL and
// names the connection after the binary.
func redisOptions(cfg *config.Config) (*redis.Options, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	opt.ClientName = fmt.Sprintf("barami-%s", cfg.App)
	if cfg.RedisPoolSize > 0 {
		opt.PoolSize = cfg.RedisPoolSize
	}
	if cfg.RedisDialTimeout > 0 {
		opt.DialTimeout = cfg.RedisDialTimeout
	}
	return opt, nil
}

func NewRedisConnection(cfg *config.Config) (*RedisClient, error) {
	opt, err := redisOptions(cfg)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping Redis at %s: %w", opt.Addr, err)
	}
	return &RedisClient{client}, nil
}

func (r *RedisClient) HealthCheck(ctx context.Context) error {
	return r.Ping(ctx).Err()
}

// SnapshotStore keeps the last good query results in Redis so that every
// dashboard replica, and a freshly started one, can serve them while the
// backend is unreachable.
type SnapshotStore struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

func NewSnapshotStore(client redis.Cmdable, app config.App, ttl time.Duration) *SnapshotStore {
	return &SnapshotStore{
		client: client,
		prefix: fmt.Sprintf("barami:%s:query:", app),
		ttl:    ttl,
	}
}

func (s *SnapshotStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return val, true, nil
}

func (s *SnapshotStore) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, s.prefix+key, value, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}
