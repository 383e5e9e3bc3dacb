package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/grakai/pitchside/internal/log"
	"github.com/grakai/pitchside/internal/model"
)

// DefaultPrefix is the prefix of the session status keys.
const DefaultPrefix = "pitchside:status:"

// StatusRepositoryConfig is the configuration for the Redis status repository.
type StatusRepositoryConfig struct {
	Client redis.UniversalClient
	Prefix string
	// ProcessingTTL expires a processing status so a crashed worker doesn't block a
	// session forever. Zero disables it.
	ProcessingTTL time.Duration
	Logger        log.Logger
}

func (c *StatusRepositoryConfig) defaults() error {
	if c.Client == nil {
		return fmt.Errorf("redis client is required")
	}
	if c.Prefix == "" {
		c.Prefix = DefaultPrefix
	}
	if c.ProcessingTTL < 0 {
		return fmt.Errorf("processing ttl can't be negative")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.RedisStatus"})
	return nil
}

// StatusRepository is a Redis implementation of storage.StatusRepository and
// storage.StatusSwapper.
type StatusRepository struct {
	client        redis.UniversalClient
	prefix        string
	processingTTL time.Duration
	logger        log.Logger
}

// NewStatusRepository returns a new Redis status repository.
func NewStatusRepository(cfg StatusRepositoryConfig) (*StatusRepository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &StatusRepository{
		client:        cfg.Client,
		prefix:        cfg.Prefix,
		processingTTL: cfg.ProcessingTTL,
		logger:        cfg.Logger,
	}, nil
}

func (r *StatusRepository) key(sessionID string) string { return r.prefix + sessionID }

func (r *StatusRepository) ttl(status model.SessionStatus) time.Duration {
	if status == model.SessionStatusProcessing {
		return r.processingTTL
	}
	return 0
}

// GetStatus returns the status of a session, idle if it has none.
func (r *StatusRepository) GetStatus(ctx context.Context, sessionID string) (model.SessionStatus, error) {
	status, err := r.client.Get(ctx, r.key(sessionID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.SessionStatusIdle, nil
		}
		return "", fmt.Errorf("could not get session status: %w", err)
	}

	return model.SessionStatus(status), nil
}

// SetStatus sets the status of a session.
func (r *StatusRepository) SetStatus(ctx context.Context, sessionID string, status model.SessionStatus) error {
	if err := r.client.Set(ctx, r.key(sessionID), string(status), r.ttl(status)).Err(); err != nil {
		return fmt.Errorf("could not set session status: %w", err)
	}

	r.logger.Debugf("Session %s status set to %s", sessionID, status)
	return nil
}

// SwapStatus sets the status of a session only if the current one is from, using an
// optimistic WATCH/MULTI transaction.
func (r *StatusRepository) SwapStatus(ctx context.Context, sessionID string, from, to model.SessionStatus) (bool, error) {
	key := r.key(sessionID)
	swapped := false

	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Result()
		switch {
		case errors.Is(err, redis.Nil):
			current = string(model.SessionStatusIdle)
		case err != nil:
			return err
		}
		if model.SessionStatus(current) != from {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, string(to), r.ttl(to))
			return nil
		})
		if err != nil {
			return err
		}

		swapped = true
		return nil
	}, key)
	if err != nil {
		// Another client changed the key between WATCH and EXEC.
		if errors.Is(err, redis.TxFailedErr) {
			return false, nil
		}
		return false, fmt.Errorf("could not swap session status: %w", err)
	}

	if swapped {
		r.logger.Debugf("Session %s status swapped from %s to %s", sessionID, from, to)
	}
	return swapped, nil
}
