package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/grakai/pitchside/internal/log"
	"github.com/grakai/pitchside/internal/model"
)

// RepositoryConfig is the configuration for the memory repository.
type RepositoryConfig struct {
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.Memory"})
	return nil
}

// Repository is an in-memory implementation of the storage repositories.
type Repository struct {
	statuses map[string]model.SessionStatus
	jobs     map[string]model.Job
	clips    map[string]model.Clip
	messages map[string][]model.Message
	mu       sync.RWMutex
	logger   log.Logger
}

// NewRepository creates a new memory repository.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Repository{
		statuses: make(map[string]model.SessionStatus),
		jobs:     make(map[string]model.Job),
		clips:    make(map[string]model.Clip),
		messages: make(map[string][]model.Message),
		logger:   cfg.Logger,
	}, nil
}

// GetStatus returns the status of a session.
func (r *Repository) GetStatus(ctx context.Context, sessionID string) (model.SessionStatus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	status, ok := r.statuses[sessionID]
	if !ok {
		return model.SessionStatusIdle, nil
	}
	return status, nil
}

// SetStatus sets the status of a session.
func (r *Repository) SetStatus(ctx context.Context, sessionID string, status model.SessionStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.statuses[sessionID] = status
	r.logger.Debugf("Session %s status set to %s", sessionID, status)
	return nil
}

// SwapStatus sets the status of a session only if the current one is from.
func (r *Repository) SwapStatus(ctx context.Context, sessionID string, from, to model.SessionStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.statuses[sessionID]
	if !ok {
		current = model.SessionStatusIdle
	}
	if current != from {
		return false, nil
	}

	r.statuses[sessionID] = to
	r.logger.Debugf("Session %s status swapped from %s to %s", sessionID, from, to)
	return true, nil
}

// CreateJob creates a new job.
func (r *Repository) CreateJob(ctx context.Context, j model.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[j.ID]; ok {
		return fmt.Errorf("job %s: %w", j.ID, model.ErrAlreadyExists)
	}

	r.jobs[j.ID] = j
	r.logger.Debugf("Created job in repository: %s", j.ID)
	return nil
}

// UpdateJob updates an existing job.
func (r *Repository) UpdateJob(ctx context.Context, j model.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[j.ID]; !ok {
		return fmt.Errorf("job %s: %w", j.ID, model.ErrNotFound)
	}

	r.jobs[j.ID] = j
	return nil
}

// GetJob retrieves a job by ID.
func (r *Repository) GetJob(ctx context.Context, id string) (*model.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	j, ok := r.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", id, model.ErrNotFound)
	}

	// Return a copy
	jobCopy := j
	return &jobCopy, nil
}

// ListJobs returns the jobs of a session, newest first.
func (r *Repository) ListJobs(ctx context.Context, sessionID string) ([]model.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	jobs := make([]model.Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		if sessionID != "" && j.SessionID != sessionID {
			continue
		}
		jobs = append(jobs, j)
	}

	sort.Slice(jobs, func(i, k int) bool {
		if jobs[i].CreatedAt.Equal(jobs[k].CreatedAt) {
			return jobs[i].ID > jobs[k].ID
		}
		return jobs[i].CreatedAt.After(jobs[k].CreatedAt)
	})

	return jobs, nil
}

// SaveClip registers a processed clip.
func (r *Repository) SaveClip(ctx context.Context, c model.Clip) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.clips[c.VideoID]; ok {
		return fmt.Errorf("clip %s: %w", c.VideoID, model.ErrAlreadyExists)
	}

	r.clips[c.VideoID] = c
	r.logger.Debugf("Saved clip in repository: %s", c.VideoID)
	return nil
}

// AddMessage appends a message to the history of its session.
func (r *Repository) AddMessage(ctx context.Context, m model.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.messages[m.SessionID] = append(r.messages[m.SessionID], m)
	return nil
}

// ListMessages returns the history of a session, oldest first.
func (r *Repository) ListMessages(ctx context.Context, sessionID string) ([]model.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	msgs := make([]model.Message, len(r.messages[sessionID]))
	copy(msgs, r.messages[sessionID])
	return msgs, nil
}
