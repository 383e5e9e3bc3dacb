package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/grakai/pitchside/internal/log"
	"github.com/grakai/pitchside/internal/model"
	"github.com/grakai/pitchside/internal/storage/sqlite/migrations"
)

// RepositoryConfig is the configuration for the SQLite repository.
type RepositoryConfig struct {
	DBPath string
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.DBPath == "" {
		return fmt.Errorf("db path is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.SQLite"})
	return nil
}

// Repository is a SQLite implementation of the status, job and clip repositories.
type Repository struct {
	db     *sql.DB
	logger log.Logger
}

// NewRepository creates a new SQLite repository.
func NewRepository(ctx context.Context, cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	dir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("could not create db directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", cfg.DBPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	version, err := migrations.Apply(ctx, db, cfg.Logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not run migrations: %w", err)
	}

	cfg.Logger.Debugf("SQLite repository initialized at %s (schema version %d)", cfg.DBPath, version)

	return &Repository{db: db, logger: cfg.Logger}, nil
}

// DB returns the database connection to share it with other repositories.
func (r *Repository) DB() *sql.DB { return r.db }

// Close closes the database connection.
func (r *Repository) Close() error { return r.db.Close() }

// GetStatus returns the status of a session, idle if it has none.
func (r *Repository) GetStatus(ctx context.Context, sessionID string) (model.SessionStatus, error) {
	var status model.SessionStatus
	err := r.db.QueryRowContext(ctx, `SELECT status FROM session_status WHERE session_id = ?`, sessionID).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.SessionStatusIdle, nil
		}
		return "", fmt.Errorf("could not query session status: %w", err)
	}

	return status, nil
}

// SetStatus sets the status of a session.
func (r *Repository) SetStatus(ctx context.Context, sessionID string, status model.SessionStatus) error {
	query := `
		INSERT INTO session_status (session_id, status, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			status = excluded.status,
			updated_at = excluded.updated_at
	`

	if _, err := r.db.ExecContext(ctx, query, sessionID, status, time.Now().Unix()); err != nil {
		return fmt.Errorf("could not set session status: %w", err)
	}

	r.logger.Debugf("Session %s status set to %s", sessionID, status)
	return nil
}

// SwapStatus sets the status of a session only if the current one is from.
func (r *Repository) SwapStatus(ctx context.Context, sessionID string, from, to model.SessionStatus) (bool, error) {
	now := time.Now().Unix()

	var (
		result sql.Result
		err    error
	)
	// A session without row is idle.
	if from == model.SessionStatusIdle {
		query := `
			INSERT INTO session_status (session_id, status, updated_at)
			VALUES (?, ?, ?)
			ON CONFLICT(session_id) DO UPDATE SET
				status = excluded.status,
				updated_at = excluded.updated_at
			WHERE session_status.status = ?
		`
		result, err = r.db.ExecContext(ctx, query, sessionID, to, now, from)
	} else {
		query := `UPDATE session_status SET status = ?, updated_at = ? WHERE session_id = ? AND status = ?`
		result, err = r.db.ExecContext(ctx, query, to, now, sessionID, from)
	}
	if err != nil {
		return false, fmt.Errorf("could not swap session status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("could not get rows affected: %w", err)
	}
	if rows == 0 {
		return false, nil
	}

	r.logger.Debugf("Session %s status swapped from %s to %s", sessionID, from, to)
	return true, nil
}

// CreateJob creates a new job.
func (r *Repository) CreateJob(ctx context.Context, j model.Job) error {
	query := `
		INSERT INTO jobs (id, session_id, status, stage, error, clip_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		j.ID,
		j.SessionID,
		j.Status,
		j.Stage,
		j.Error,
		j.ClipURL,
		j.CreatedAt.Unix(),
		j.UpdatedAt.Unix(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: jobs.") {
			return fmt.Errorf("job %s: %w", j.ID, model.ErrAlreadyExists)
		}
		return fmt.Errorf("could not insert job: %w", err)
	}

	r.logger.Debugf("Created job in repository: %s", j.ID)
	return nil
}

// UpdateJob updates an existing job.
func (r *Repository) UpdateJob(ctx context.Context, j model.Job) error {
	query := `
		UPDATE jobs
		SET
			status = ?,
			stage = ?,
			error = ?,
			clip_url = ?,
			updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query, j.Status, j.Stage, j.Error, j.ClipURL, j.UpdatedAt.Unix(), j.ID)
	if err != nil {
		return fmt.Errorf("could not update job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("job %s: %w", j.ID, model.ErrNotFound)
	}

	return nil
}

// GetJob retrieves a job by ID.
func (r *Repository) GetJob(ctx context.Context, id string) (*model.Job, error) {
	query := `
		SELECT id, session_id, status, stage, error, clip_url, created_at, updated_at
		FROM jobs
		WHERE id = ?
	`

	j, err := scanJob(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("job %s: %w", id, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not query job: %w", err)
	}

	return &j, nil
}

// ListJobs returns the jobs of a session (all if empty), newest first.
func (r *Repository) ListJobs(ctx context.Context, sessionID string) ([]model.Job, error) {
	query := `
		SELECT id, session_id, status, stage, error, clip_url, created_at, updated_at
		FROM jobs
		WHERE (? = '' OR session_id = ?)
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.db.QueryContext(ctx, query, sessionID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("could not query jobs: %w", err)
	}
	defer rows.Close()

	jobs := []model.Job{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("could not scan row: %w", err)
		}
		jobs = append(jobs, j)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return jobs, nil
}

// SaveClip registers a processed clip.
func (r *Repository) SaveClip(ctx context.Context, c model.Clip) error {
	query := `
		INSERT INTO clips (video_id, session_id, url, content_type, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query, c.VideoID, c.SessionID, c.URL, c.ContentType, c.CreatedAt.Unix())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: clips.") {
			return fmt.Errorf("clip %s: %w", c.VideoID, model.ErrAlreadyExists)
		}
		return fmt.Errorf("could not insert clip: %w", err)
	}

	r.logger.Debugf("Saved clip in repository: %s", c.VideoID)
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(s scanner) (model.Job, error) {
	var j model.Job
	var createdAt, updatedAt int64

	err := s.Scan(
		&j.ID,
		&j.SessionID,
		&j.Status,
		&j.Stage,
		&j.Error,
		&j.ClipURL,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return model.Job{}, err
	}

	j.CreatedAt = timeFromUnix(createdAt)
	j.UpdatedAt = timeFromUnix(updatedAt)
	return j, nil
}

func timeFromUnix(unix int64) time.Time { return time.Unix(unix, 0).UTC() }
