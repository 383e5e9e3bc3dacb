package history

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/grakai/pitchside/internal/answer"
	"github.com/grakai/pitchside/internal/log"
	"github.com/grakai/pitchside/internal/model"
	"github.com/grakai/pitchside/internal/storage"
)

// SystemSender is the sender shown for agent answers.
const SystemSender = "system"

// ServiceConfig is the configuration for the history service.
type ServiceConfig struct {
	Repository storage.HistoryRepository
	// Marker and Separator of the final answer, defaults used when empty.
	Marker    string
	Separator string
	Logger    log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}
	if c.Marker == "" {
		c.Marker = answer.DefaultMarker
	}
	if c.Separator == "" {
		c.Separator = answer.DefaultSeparator
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.History"})
	return nil
}

// Service reads the chat history of a session.
type Service struct {
	repo      storage.HistoryRepository
	marker    string
	separator string
	logger    log.Logger
}

// NewService creates a new history service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:      cfg.Repository,
		marker:    cfg.Marker,
		separator: cfg.Separator,
		logger:    cfg.Logger,
	}, nil
}

// Entry is a rendered history message.
type Entry struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Message   string    `json:"message"`
	VideoID   string    `json:"video_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// List returns the history of a session newest first. Agent answers only keep the final
// answer, the ones without text are skipped.
func (s *Service) List(ctx context.Context, sessionID string) ([]Entry, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session id is required: %w", model.ErrNotValid)
	}

	msgs, err := s.repo.ListMessages(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("could not list messages: %w", err)
	}

	entries := make([]Entry, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		e := Entry{
			ID:        m.ID,
			Sender:    m.Sender,
			Message:   m.Content,
			VideoID:   m.VideoID,
			CreatedAt: m.CreatedAt,
		}
		if m.Role == model.MessageRoleAssistant {
			e.Sender = SystemSender
			e.Message = answer.ExtractWith(m.Content, s.marker, s.separator)
			if strings.TrimSpace(e.Message) == "" {
				continue
			}
		}
		entries = append(entries, e)
	}

	return entries, nil
}
