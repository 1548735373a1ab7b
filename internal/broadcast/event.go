package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
)

const (
	EventState           = "game:state"
	EventMoveRejected    = "game:moveRejected"
	EventEnded           = "game:ended"
	EventRematchProposed = "game:rematchProposed"
	EventRematchAccepted = "game:rematchAccepted"
	EventRematchRejected = "game:rematchRejected"
)

const (
	roomPrefix   = "match:"
	relayChannel = "dotsandboxes.events"
)

// Event is the message clients receive. It shares its shape with client requests.
type Event struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload"`
}

func NewEvent(action string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("failed to marshal %s payload: %w", action, err)
	}

	return Event{Action: action, Payload: data}, nil
}

type Publisher interface {
	Publish(ctx context.Context, room string, event Event) error
}

// Room returns the room every watcher of the match joins.
func Room(publicMatchID string) string {
	return roomPrefix + publicMatchID
}

// envelope carries an event between instances through a broker.
type envelope struct {
	Origin string `json:"origin"`
	Room   string `json:"room"`
	Event  Event  `json:"event"`
}
