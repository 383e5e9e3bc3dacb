// Package pubsub publishes job events to the subscribers of a room.
//
// Delivery is at most once and fire and forget: a subscriber that is not listening, or
// that can't keep up, misses events.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
)

// Message is an event received by a room subscriber.
type Message struct {
	Room    string          `json:"room"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// Publisher publishes events to a room.
type Publisher interface {
	// Publish sends the JSON encoded payload to the room subscribers.
	Publish(ctx context.Context, room, event string, payload any) error
}

// Subscriber subscribes to a room.
type Subscriber interface {
	// Subscribe returns the messages of a room until ctx is done, then the channel is closed.
	Subscribe(ctx context.Context, room string) (<-chan Message, error)
}

// NewMessage encodes a payload into a message.
func NewMessage(room, event string, payload any) (Message, error) {
	if payload == nil {
		payload = struct{}{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("could not marshal %s payload: %w", event, err)
	}

	return Message{Room: room, Event: event, Payload: data}, nil
}
