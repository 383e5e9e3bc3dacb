package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/grakai/pitchside/internal/log"
	"github.com/grakai/pitchside/internal/pubsub"
)

// HubConfig is the configuration of the in-process hub.
type HubConfig struct {
	// BufferSize is the number of messages a subscriber can have pending. Delivery is
	// at-most-once: when a subscriber buffer is full the message is dropped for that
	// subscriber, so a slow reader can miss single system_message tokens and see a
	// garbled answer. Size it above the longest expected answer in tokens.
	BufferSize int
	Logger     log.Logger
}

func (c *HubConfig) defaults() error {
	if c.BufferSize < 0 {
		return fmt.Errorf("buffer size can't be negative")
	}
	if c.BufferSize == 0 {
		c.BufferSize = 256
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "pubsub.Memory"})
	return nil
}

type subscription struct {
	ch chan pubsub.Message
}

// Hub is an in-process room broadcaster, safe for concurrent use.
type Hub struct {
	bufferSize int
	logger     log.Logger

	mu    sync.RWMutex
	rooms map[string]map[*subscription]struct{}
}

// NewHub returns a new hub.
func NewHub(cfg HubConfig) (*Hub, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Hub{
		bufferSize: cfg.BufferSize,
		logger:     cfg.Logger,
		rooms:      make(map[string]map[*subscription]struct{}),
	}, nil
}

// Publish sends an event to the current subscribers of the room without blocking.
func (h *Hub) Publish(ctx context.Context, room, event string, payload any) error {
	msg, err := pubsub.NewMessage(room, event, payload)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.rooms[room] {
		select {
		case sub.ch <- msg:
		default:
			h.logger.Warningf("Subscriber of room %s is full, %s event dropped", room, event)
		}
	}

	return nil
}

// Subscribe subscribes to a room until ctx is done.
func (h *Hub) Subscribe(ctx context.Context, room string) (<-chan pubsub.Message, error) {
	sub := &subscription{ch: make(chan pubsub.Message, h.bufferSize)}

	h.mu.Lock()
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*subscription]struct{})
	}
	h.rooms[room][sub] = struct{}{}
	joined := len(h.rooms[room])
	h.mu.Unlock()
	h.logger.Debugf("Room %s joined, %d subscribers", room, joined)

	go func() {
		<-ctx.Done()

		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.rooms[room], sub)
		left := len(h.rooms[room])
		if left == 0 {
			delete(h.rooms, room)
		}
		close(sub.ch)
		h.logger.Debugf("Room %s left, %d subscribers", room, left)
	}()

	return sub.ch, nil
}
