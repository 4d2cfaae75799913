package ws

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Bridge subscribes to the per-recipient Redis channels notifications:*
// and replays every message into the hub. It runs until ctx is done, so
// a notification published on any scheduler instance reaches the
// browsers connected to this one.
type Bridge struct {
	client *redis.Client
	hub    *Hub
	log    zerolog.Logger
}

func NewBridge(client *redis.Client, hub *Hub, log zerolog.Logger) *Bridge {
	return &Bridge{client: client, hub: hub, log: log}
}

func (b *Bridge) Run(ctx context.Context) error {
	sub := b.client.PSubscribe(ctx, "notifications:*")
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.hub.Broadcast(msg.Channel, []byte(msg.Payload))
		}
	}
}
