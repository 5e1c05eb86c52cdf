package realtime

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Relay bridges the redis pub/sub channels the chat pipeline publishes
// on into the local hub. Every API instance runs one relay, so events
// reach websocket clients no matter which instance handled the HTTP
// request that produced them.
type Relay struct {
	client *redis.Client
	hub    *Hub
	logger *slog.Logger
}

func NewRelay(client *redis.Client, hub *Hub, logger *slog.Logger) *Relay {
	return &Relay{client: client, hub: hub, logger: logger}
}

// Run subscribes to the chat channel patterns and pumps frames into the
// hub until the context is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	pubsub := r.client.PSubscribe(ctx, "chat.room.*", "user.*.notifications")
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	r.logger.Info("realtime relay subscribed", "patterns", []string{"chat.room.*", "user.*.notifications"})

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.hub.Broadcast(msg.Channel, []byte(msg.Payload))
		}
	}
}
