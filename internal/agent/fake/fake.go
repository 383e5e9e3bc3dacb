package fake

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/grakai/pitchside/internal/agent"
	"github.com/grakai/pitchside/internal/log"
	"github.com/grakai/pitchside/internal/model"
	"github.com/grakai/pitchside/internal/storage"
)

// AgentConfig is the configuration of the fake agent.
type AgentConfig struct {
	// Tokens is the scripted response. By default a reasoning trace and an answer that
	// echoes the question.
	Tokens []string
	// TokenDelay is the time between tokens.
	TokenDelay time.Duration
	// Err is returned after streaming the tokens.
	Err     error
	History storage.HistoryRepository
	Logger  log.Logger
}

func (c *AgentConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "agent.Fake"})
	return nil
}

// Agent is a scripted agent.
type Agent struct {
	cfg    AgentConfig
	logger log.Logger
}

// NewAgent returns a new fake agent.
func NewAgent(cfg AgentConfig) (*Agent, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Agent{cfg: cfg, logger: cfg.Logger}, nil
}

func (a *Agent) tokens(q agent.Question) []string {
	if len(a.cfg.Tokens) > 0 {
		return a.cfg.Tokens
	}
	return []string{
		"Thought:", " I", " should", " check", " the", " clip", " stats", ".\n",
		"Final", " Answer", ":", " You", " asked", ` "` + q.Text + `"`, ".",
	}
}

// Stream streams the scripted tokens.
func (a *Agent) Stream(ctx context.Context, q agent.Question, onToken func(token string)) error {
	var raw strings.Builder
	for _, tk := range a.tokens(q) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if a.cfg.TokenDelay > 0 {
			time.Sleep(a.cfg.TokenDelay)
		}
		raw.WriteString(tk)
		onToken(tk)
	}

	if a.cfg.Err != nil {
		return a.cfg.Err
	}

	if a.cfg.History != nil {
		now := time.Now().UTC()
		for _, m := range []model.Message{
			{ID: ulid.Make().String(), SessionID: q.SessionID, VideoID: q.VideoID, Sender: q.Sender, Role: model.MessageRoleUser, Content: q.Text, CreatedAt: now},
			{ID: ulid.Make().String(), SessionID: q.SessionID, VideoID: q.VideoID, Role: model.MessageRoleAssistant, Content: raw.String(), CreatedAt: now},
		} {
			if err := a.cfg.History.AddMessage(context.WithoutCancel(ctx), m); err != nil {
				return fmt.Errorf("could not store %s message: %w", m.Role, err)
			}
		}
	}

	a.logger.Debugf("Fake agent answered session %s", q.SessionID)
	return nil
}
