package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// Subscriber is a connection that can receive events. Send must not block.
type Subscriber interface {
	ID() string
	Send(data []byte) bool
}

// Hub delivers events to the subscribers of a room in this process.
type Hub struct {
	logger *slog.Logger

	mu    sync.RWMutex
	rooms map[string]map[string]Subscriber
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger: logger.With("component", "hub"),
		rooms:  make(map[string]map[string]Subscriber),
	}
}

func (that *Hub) Join(room string, subscriber Subscriber) {
	that.mu.Lock()
	defer that.mu.Unlock()

	members, ok := that.rooms[room]
	if !ok {
		members = make(map[string]Subscriber)
		that.rooms[room] = members
	}

	members[subscriber.ID()] = subscriber
}

func (that *Hub) Leave(room, subscriberID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.leave(room, subscriberID)
}

// LeaveAll removes the subscriber from every room it joined.
func (that *Hub) LeaveAll(subscriberID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	for room := range that.rooms {
		that.leave(room, subscriberID)
	}
}

func (that *Hub) RoomSize(room string) int {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return len(that.rooms[room])
}

// Publish delivers the event to the local room.
func (that *Hub) Publish(_ context.Context, room string, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	that.deliver(room, event.Action, data)

	return nil
}

func (that *Hub) deliver(room, action string, data []byte) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	for _, subscriber := range that.rooms[room] {
		if !subscriber.Send(data) {
			that.logger.Warn("subscriber buffer is full, dropping event", "room", room, "subscriber", subscriber.ID(), "action", action)
		}
	}
}

func (that *Hub) leave(room, subscriberID string) {
	members, ok := that.rooms[room]
	if !ok {
		return
	}

	delete(members, subscriberID)
	if len(members) == 0 {
		delete(that.rooms, room)
	}
}
