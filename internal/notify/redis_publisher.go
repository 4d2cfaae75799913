package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisPublisher pushes notifications onto per-recipient Redis pub/sub
// channels. The WebSocket gateway subscribes on the other side.
type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, recipientID uuid.UUID, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	if err := p.client.Publish(ctx, ChannelFor(recipientID), payload).Err(); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}

	return nil
}
