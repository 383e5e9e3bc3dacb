package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/grakai/pitchside/internal/log"
	"github.com/grakai/pitchside/internal/model"
)

// HistoryRepositoryConfig is the configuration for the SQLite chat history repository.
type HistoryRepositoryConfig struct {
	DB     *sql.DB
	Logger log.Logger
}

func (c *HistoryRepositoryConfig) defaults() error {
	if c.DB == nil {
		return fmt.Errorf("db is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.HistoryRepository"})
	return nil
}

// HistoryRepository is a SQLite implementation of storage.HistoryRepository.
type HistoryRepository struct {
	db     *sql.DB
	logger log.Logger
}

// NewHistoryRepository creates a new SQLite chat history repository.
func NewHistoryRepository(cfg HistoryRepositoryConfig) (*HistoryRepository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &HistoryRepository{
		db:     cfg.DB,
		logger: cfg.Logger,
	}, nil
}

// AddMessage stores a message. Missing ID and creation time are set.
func (r *HistoryRepository) AddMessage(ctx context.Context, m model.Message) error {
	if m.SessionID == "" {
		return fmt.Errorf("session id is required: %w", model.ErrNotValid)
	}
	if m.ID == "" {
		m.ID = ulid.Make().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO messages (id, session_id, video_id, sender, role, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query, m.ID, m.SessionID, m.VideoID, m.Sender, m.Role, m.Content, m.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("could not insert message: %w", err)
	}

	r.logger.Debugf("Added %s message %s for session %s", m.Role, m.ID, m.SessionID)
	return nil
}

// ListMessages returns the messages of a session, oldest first.
func (r *HistoryRepository) ListMessages(ctx context.Context, sessionID string) ([]model.Message, error) {
	query := `
		SELECT id, session_id, video_id, sender, role, content, created_at
		FROM messages
		WHERE session_id = ?
		ORDER BY created_at ASC, rowid ASC
	`

	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("could not query messages: %w", err)
	}
	defer rows.Close()

	msgs := []model.Message{}
	for rows.Next() {
		var m model.Message
		var createdAt int64
		if err := rows.Scan(&m.ID, &m.SessionID, &m.VideoID, &m.Sender, &m.Role, &m.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("could not scan row: %w", err)
		}
		m.CreatedAt = timeFromUnix(createdAt)
		msgs = append(msgs, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return msgs, nil
}
