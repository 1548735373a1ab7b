package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisRelay publishes events to the local hub and to every other instance through redis pub/sub.
type RedisRelay struct {
	logger     *slog.Logger
	client     *redis.Client
	hub        *Hub
	instanceID string
}

func NewRedisRelay(logger *slog.Logger, client *redis.Client, hub *Hub) *RedisRelay {
	return &RedisRelay{
		logger:     logger.With("component", "redis_relay"),
		client:     client,
		hub:        hub,
		instanceID: uuid.NewString(),
	}
}

func (that *RedisRelay) Publish(ctx context.Context, room string, event Event) error {
	if err := that.hub.Publish(ctx, room, event); err != nil {
		return err
	}

	data, err := json.Marshal(envelope{Origin: that.instanceID, Room: room, Event: event})
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	if err = that.client.Publish(ctx, relayChannel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// Run forwards events from other instances to the local hub until ctx is done.
func (that *RedisRelay) Run(ctx context.Context) error {
	pubsub := that.client.Subscribe(ctx, relayChannel)
	defer pubsub.Close()

	// wait for the subscription to be confirmed
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", relayChannel, err)
	}

	that.logger.Info("relay subscribed", "channel", relayChannel, "instance", that.instanceID)

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case message, ok := <-messages:
			if !ok {
				return nil
			}

			forward(that.logger, that.hub, that.instanceID, []byte(message.Payload))
		}
	}
}

// forward hands an event from another instance to the local hub.
func forward(logger *slog.Logger, hub *Hub, instanceID string, data []byte) {
	var incoming envelope
	if err := json.Unmarshal(data, &incoming); err != nil {
		logger.Error("invalid relay payload", "error", err)
		return
	}

	if incoming.Origin == instanceID {
		return
	}

	if err := hub.Publish(context.Background(), incoming.Room, incoming.Event); err != nil {
		logger.Error("failed to deliver relayed event", "error", err)
	}
}
