package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/coachpo/krakenws/internal/config"
)

var _ Publisher = (*RedisPublisher)(nil)

// redisClient is the subset of *redis.Client the publisher needs.
type redisClient interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Pipeline() redis.Pipeliner
	Close() error
}

// RedisPublisher stores the latest record under <prefix>latest:<key> and
// publishes every record on <prefix>feed:<key>.
type RedisPublisher struct {
	client redisClient
	prefix string
	ttl    time.Duration
}

// NewRedisPublisher connects to Redis and verifies the connection.
func NewRedisPublisher(ctx context.Context, cfg config.RedisSinkConfig) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password(),
		DB:       cfg.DB,
	})
	p := newRedisPublisher(client, cfg)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	return p, nil
}

func newRedisPublisher(client redisClient, cfg config.RedisSinkConfig) *RedisPublisher {
	return &RedisPublisher{client: client, prefix: cfg.KeyPrefix, ttl: cfg.TTL}
}

// LatestKey is the key holding the most recent record for rec.Key().
func (p *RedisPublisher) LatestKey(rec Record) string { return p.prefix + "latest:" + rec.Key() }

// FeedChannel is the pub/sub channel records for rec.Key() are published on.
func (p *RedisPublisher) FeedChannel(rec Record) string { return p.prefix + "feed:" + rec.Key() }

// Publish writes and publishes rec in one pipeline.
func (p *RedisPublisher) Publish(ctx context.Context, rec Record) error {
	pipe := p.client.Pipeline()
	pipe.Set(ctx, p.LatestKey(rec), rec.Payload, p.ttl)
	pipe.Publish(ctx, p.FeedChannel(rec), rec.Payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline %s: %w", rec.Key(), err)
	}
	return nil
}

// Close releases the client.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
