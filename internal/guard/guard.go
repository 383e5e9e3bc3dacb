// Package guard keeps at most one processing job per session.
package guard

import (
	"context"
	"errors"
	"fmt"

	"github.com/grakai/pitchside/internal/log"
	"github.com/grakai/pitchside/internal/model"
	"github.com/grakai/pitchside/internal/storage"
)

// GuardConfig is the configuration of the guard.
type GuardConfig struct {
	Repository storage.StatusRepository
	Logger     log.Logger
}

func (c *GuardConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "guard.Guard"})
	return nil
}

// Guard marks sessions as processing while a job runs.
//
// If the repository implements storage.StatusSwapper the status is acquired with a
// compare-and-swap. Otherwise it's a check followed by a set, and two Begin calls racing
// on the same idle session can both succeed.
type Guard struct {
	repo    storage.StatusRepository
	swapper storage.StatusSwapper
	logger  log.Logger
}

// NewGuard returns a new guard.
func NewGuard(cfg GuardConfig) (*Guard, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	g := &Guard{
		repo:   cfg.Repository,
		logger: cfg.Logger,
	}
	if s, ok := cfg.Repository.(storage.StatusSwapper); ok {
		g.swapper = s
	} else {
		g.logger.Warningf("Status repository has no compare-and-swap, concurrent jobs on the same session can race")
	}

	return g, nil
}

// Begin marks the session as processing. Returns model.ErrAlreadyProcessing if it
// already is.
func (g *Guard) Begin(ctx context.Context, sessionID string) error {
	if g.swapper != nil {
		ok, err := g.swapper.SwapStatus(ctx, sessionID, model.SessionStatusIdle, model.SessionStatusProcessing)
		if err != nil {
			return fmt.Errorf("could not swap session status: %w: %w", model.ErrUpstreamUnavailable, err)
		}
		if !ok {
			return fmt.Errorf("session %s: %w", sessionID, model.ErrAlreadyProcessing)
		}
		g.logger.WithCtxValues(ctx).Debugf("Session %s acquired", sessionID)
		return nil
	}

	status, err := g.repo.GetStatus(ctx, sessionID)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return fmt.Errorf("could not get session status: %w: %w", model.ErrUpstreamUnavailable, err)
	}
	if status == model.SessionStatusProcessing {
		return fmt.Errorf("session %s: %w", sessionID, model.ErrAlreadyProcessing)
	}

	if err := g.repo.SetStatus(ctx, sessionID, model.SessionStatusProcessing); err != nil {
		return fmt.Errorf("could not set session status: %w: %w", model.ErrUpstreamUnavailable, err)
	}

	g.logger.WithCtxValues(ctx).Debugf("Session %s acquired", sessionID)
	return nil
}

// End marks the session as idle.
func (g *Guard) End(ctx context.Context, sessionID string) error {
	if err := g.repo.SetStatus(ctx, sessionID, model.SessionStatusIdle); err != nil {
		return fmt.Errorf("could not release session status: %w: %w", model.ErrUpstreamUnavailable, err)
	}

	g.logger.WithCtxValues(ctx).Debugf("Session %s released", sessionID)
	return nil
}

// Do runs fn with the session acquired. End runs exactly once when fn returns, fails,
// panics or ctx is cancelled, with a context that is not cancelled. If Begin fails fn is
// not called and End is not run.
func (g *Guard) Do(ctx context.Context, sessionID string, fn func(ctx context.Context) error) (err error) {
	if err := g.Begin(ctx, sessionID); err != nil {
		return err
	}

	defer func() {
		endErr := g.End(context.WithoutCancel(ctx), sessionID)
		if endErr == nil {
			return
		}
		g.logger.WithCtxValues(ctx).Errorf("Could not release session %s: %s", sessionID, endErr)
		if err == nil {
			err = endErr
		}
	}()

	return fn(ctx)
}
