// Package stream publishes provider chunks to subscribers over Redis
// pub/sub. Each session has one channel, stream:{session_id}; payloads are
// JSON-encoded provider chunks and are opaque to this package.
package stream

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisURL is the local development pub/sub endpoint used when
// REDIS_URL is not set.
const DefaultRedisURL = "redis://localhost:6379/0"

type (
	// Publisher delivers opaque payloads to a named channel in order.
	// Implementations are used per-activity-invocation and must be closed
	// on every exit path.
	Publisher interface {
		Publish(ctx context.Context, channel string, payload []byte) error
		Close() error
	}

	// PublisherFactory opens a fresh publisher for one activity
	// invocation.
	PublisherFactory func(ctx context.Context) (Publisher, error)

	// RedisPublisher implements Publisher on a dedicated Redis client.
	RedisPublisher struct {
		rdb *redis.Client
	}
)

// Channel returns the pub/sub channel name for a session.
func Channel(sessionID string) string {
	return "stream:" + sessionID
}

// NewRedisPublisher connects a dedicated Redis client for one publisher. TLS
// and database selection derive from the URL.
func NewRedisPublisher(redisURL string) (*RedisPublisher, error) {
	if redisURL == "" {
		redisURL = DefaultRedisURL
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &RedisPublisher{rdb: redis.NewClient(opts)}, nil
}

// RedisFactory returns a PublisherFactory that opens one RedisPublisher per
// invocation, keeping connections unshared across concurrent activities.
func RedisFactory(redisURL string) PublisherFactory {
	return func(ctx context.Context) (Publisher, error) {
		return NewRedisPublisher(redisURL)
	}
}

// Publish delivers one payload. Ordering per channel follows call order on a
// single publisher.
func (p *RedisPublisher) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := p.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", channel, err)
	}
	return nil
}

// Close releases the Redis connection.
func (p *RedisPublisher) Close() error {
	return p.rdb.Close()
}
