package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// ConnectNATS opens a broker connection with the reconnect policy used by the relay.
func ConnectNATS(url string) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name("dotsandboxes-backend"),
		nats.Timeout(10 * time.Second),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(5),
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return conn, nil
}

// NATSRelay publishes events to the local hub and to every other instance through a NATS subject.
type NATSRelay struct {
	logger     *slog.Logger
	conn       *nats.Conn
	hub        *Hub
	instanceID string
}

func NewNATSRelay(logger *slog.Logger, conn *nats.Conn, hub *Hub) *NATSRelay {
	return &NATSRelay{
		logger:     logger.With("component", "nats_relay"),
		conn:       conn,
		hub:        hub,
		instanceID: uuid.NewString(),
	}
}

func (that *NATSRelay) Publish(ctx context.Context, room string, event Event) error {
	if err := that.hub.Publish(ctx, room, event); err != nil {
		return err
	}

	data, err := json.Marshal(envelope{Origin: that.instanceID, Room: room, Event: event})
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	if err = that.conn.Publish(relayChannel, data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// Run forwards events from other instances to the local hub until ctx is done.
func (that *NATSRelay) Run(ctx context.Context) error {
	subscription, err := that.conn.Subscribe(relayChannel, func(message *nats.Msg) {
		forward(that.logger, that.hub, that.instanceID, message.Data)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", relayChannel, err)
	}

	// make sure the subscription reached the server before reporting ready
	if err = that.conn.Flush(); err != nil {
		return fmt.Errorf("failed to flush subscription: %w", err)
	}

	that.logger.Info("relay subscribed", "subject", relayChannel, "instance", that.instanceID)

	<-ctx.Done()

	if err = subscription.Unsubscribe(); err != nil {
		return fmt.Errorf("failed to unsubscribe: %w", err)
	}

	return nil
}
