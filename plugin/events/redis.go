package events

import (
	"context"
	"encoding/json"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// redisPubSub is the part of *redis.Client the publisher uses.
type redisPubSub interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
	Close() error
}

// RedisPublisher publishes JSON-encoded CloudEvents on a Redis pub/sub channel.
type RedisPublisher struct {
	client  redisPubSub
	channel string
}

// RedisConfig configures the Redis connection.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// NewRedisPublisher connects to Redis lazily; the first publish opens the connection.
func NewRedisPublisher(cfg RedisConfig) (*RedisPublisher, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}
	if cfg.Channel == "" {
		return nil, errors.New("redis channel is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisPublisher{client: client, channel: cfg.Channel}, nil
}

func (p *RedisPublisher) Send(ctx context.Context, event cloudevents.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrapf(err, "failed to encode %s", event.Type())
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return errors.Wrapf(err, "failed to publish %s to %s", event.Type(), p.channel)
	}
	return nil
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
