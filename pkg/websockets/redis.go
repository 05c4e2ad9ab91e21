package websockets

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisClient is the part of the go-redis client used for publishing.
type RedisClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisPublisher publishes messages on a Redis pub/sub channel for other
// services and websocket nodes.
type RedisPublisher struct {
	client  RedisClient
	channel string
}

// NewRedisPublisher creates a new RedisPublisher.
func NewRedisPublisher(client RedisClient, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

// Publish sends the message to the channel.
func (p *RedisPublisher) Publish(ctx context.Context, message Message) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to redis channel %s: %w", p.channel, err)
	}
	return nil
}
