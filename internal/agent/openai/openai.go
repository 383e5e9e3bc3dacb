package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/grakai/pitchside/internal/agent"
	"github.com/grakai/pitchside/internal/answer"
	"github.com/grakai/pitchside/internal/log"
	"github.com/grakai/pitchside/internal/model"
	"github.com/grakai/pitchside/internal/storage"
)

// AgentConfig is the configuration of the OpenAI compatible agent.
type AgentConfig struct {
	// BaseURL is the API base, e.g. https://api.openai.com/v1.
	BaseURL      string
	APIKey       string
	Model        string
	SystemPrompt string
	Temperature  float64
	// History persists the conversation, optional.
	History storage.HistoryRepository
	// MaxHistory is the number of past messages sent with a question.
	MaxHistory int
	HTTPClient *http.Client
	Logger     log.Logger
}

func (c *AgentConfig) defaults() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base url is required")
	}
	c.BaseURL = strings.TrimSuffix(c.BaseURL, "/")
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.SystemPrompt == "" {
		c.SystemPrompt = agent.DefaultSystemPrompt
	}
	if c.MaxHistory < 0 {
		return fmt.Errorf("max history can't be negative")
	}
	if c.MaxHistory == 0 {
		c.MaxHistory = 20
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{}
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "agent.OpenAI"})
	return nil
}

// Agent streams chat completions from an OpenAI compatible API.
type Agent struct {
	cfg    AgentConfig
	logger log.Logger
}

// NewAgent returns a new OpenAI compatible agent.
func NewAgent(cfg AgentConfig) (*Agent, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Agent{cfg: cfg, logger: cfg.Logger}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream"`
}

type chatChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Stream sends the question with the session history and streams the response tokens.
// The question and the raw answer are stored on the history once the stream ends.
func (a *Agent) Stream(ctx context.Context, q agent.Question, onToken func(token string)) error {
	logger := a.logger.WithCtxValues(ctx)

	msgs, err := a.messages(ctx, q)
	if err != nil {
		return err
	}

	body, err := json.Marshal(chatRequest{
		Model:       a.cfg.Model,
		Messages:    msgs,
		Temperature: a.cfg.Temperature,
		Stream:      true,
	})
	if err != nil {
		return fmt.Errorf("could not marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if a.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)
	}

	resp, err := a.cfg.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("chat completion request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("chat completion returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var raw strings.Builder
	err = readStream(resp.Body, func(token string) {
		raw.WriteString(token)
		onToken(token)
	})
	if err != nil {
		return fmt.Errorf("could not read chat completion stream: %w", err)
	}

	logger.Debugf("Agent answered %d bytes for session %s", raw.Len(), q.SessionID)

	return a.persist(context.WithoutCancel(ctx), q, raw.String())
}

func (a *Agent) messages(ctx context.Context, q agent.Question) ([]chatMessage, error) {
	system := a.cfg.SystemPrompt
	if q.VideoID != "" {
		system += "\nThe questions are about the clip " + q.VideoID + "."
	}
	msgs := []chatMessage{{Role: "system", Content: system}}

	if a.cfg.History != nil {
		history, err := a.cfg.History.ListMessages(ctx, q.SessionID)
		if err != nil {
			return nil, fmt.Errorf("could not load history: %w", err)
		}
		if len(history) > a.cfg.MaxHistory {
			history = history[len(history)-a.cfg.MaxHistory:]
		}
		for _, m := range history {
			content := m.Content
			// Only the final answers are kept as context, not the reasoning.
			if m.Role == model.MessageRoleAssistant {
				content = answer.Extract(content)
			}
			msgs = append(msgs, chatMessage{Role: string(m.Role), Content: content})
		}
	}

	return append(msgs, chatMessage{Role: "user", Content: q.Text}), nil
}

func (a *Agent) persist(ctx context.Context, q agent.Question, raw string) error {
	if a.cfg.History == nil {
		return nil
	}

	now := time.Now().UTC()
	msgs := []model.Message{
		{ID: ulid.Make().String(), SessionID: q.SessionID, VideoID: q.VideoID, Sender: q.Sender, Role: model.MessageRoleUser, Content: q.Text, CreatedAt: now},
		{ID: ulid.Make().String(), SessionID: q.SessionID, VideoID: q.VideoID, Role: model.MessageRoleAssistant, Content: raw, CreatedAt: now},
	}
	for _, m := range msgs {
		if err := a.cfg.History.AddMessage(ctx, m); err != nil {
			return fmt.Errorf("could not store %s message: %w", m.Role, err)
		}
	}

	return nil
}

// readStream parses an OpenAI server-sent events stream calling onToken for every
// content delta until the [DONE] event.
func readStream(r io.Reader, onToken func(token string)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}

		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			return nil
		}

		var chunk chatChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue // Skip malformed chunks
		}
		if chunk.Error != nil {
			return fmt.Errorf("stream error: %s", chunk.Error.Message)
		}

		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			onToken(chunk.Choices[0].Delta.Content)
		}
	}

	return scanner.Err()
}
