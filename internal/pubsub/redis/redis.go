package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/grakai/pitchside/internal/log"
	"github.com/grakai/pitchside/internal/pubsub"
)

// DefaultPrefix is the prefix of the room channels.
const DefaultPrefix = "pitchside:room:"

// PubSubConfig is the configuration of the Redis pub/sub.
type PubSubConfig struct {
	Client redis.UniversalClient
	Prefix string
	Logger log.Logger
}

func (c *PubSubConfig) defaults() error {
	if c.Client == nil {
		return fmt.Errorf("redis client is required")
	}
	if c.Prefix == "" {
		c.Prefix = DefaultPrefix
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "pubsub.Redis"})
	return nil
}

// PubSub publishes and subscribes room events over Redis pub/sub so events published by
// workers reach subscribers connected to any server.
type PubSub struct {
	client redis.UniversalClient
	prefix string
	logger log.Logger
}

// NewPubSub returns a new Redis pub/sub.
func NewPubSub(cfg PubSubConfig) (*PubSub, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &PubSub{
		client: cfg.Client,
		prefix: cfg.Prefix,
		logger: cfg.Logger,
	}, nil
}

func (p *PubSub) channel(room string) string { return p.prefix + room }

// Publish publishes an event on the room channel.
func (p *PubSub) Publish(ctx context.Context, room, event string, payload any) error {
	msg, err := pubsub.NewMessage(room, event, payload)
	if err != nil {
		return err
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("could not marshal message: %w", err)
	}

	if err := p.client.Publish(ctx, p.channel(room), data).Err(); err != nil {
		return fmt.Errorf("could not publish %s event on room %s: %w", event, room, err)
	}

	return nil
}

// Subscribe subscribes to the room channel until ctx is done.
func (p *PubSub) Subscribe(ctx context.Context, room string) (<-chan pubsub.Message, error) {
	ps := p.client.Subscribe(ctx, p.channel(room))

	// Wait for the subscription confirmation so no event published after returning is missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("could not subscribe to room %s: %w", room, err)
	}

	out := make(chan pubsub.Message)
	go func() {
		defer close(out)
		defer func() {
			if err := ps.Close(); err != nil {
				p.logger.Warningf("Could not close room %s subscription: %s", room, err)
			}
		}()

		in := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-in:
				if !ok {
					return
				}

				var msg pubsub.Message
				if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
					p.logger.Warningf("Ignoring invalid message on room %s: %s", room, err)
					continue
				}

				select {
				case <-ctx.Done():
					return
				case out <- msg:
				}
			}
		}
	}()

	return out, nil
}
