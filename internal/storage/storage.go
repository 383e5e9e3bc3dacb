package storage

import (
	"context"

	"github.com/grakai/pitchside/internal/model"
)

// StatusRepository is the interface for the session processing status.
// A session without status is idle.
type StatusRepository interface {
	GetStatus(ctx context.Context, sessionID string) (model.SessionStatus, error)
	SetStatus(ctx context.Context, sessionID string, status model.SessionStatus) error
}

// StatusSwapper is implemented by status stores that can compare-and-swap the status
// atomically.
type StatusSwapper interface {
	// SwapStatus sets the status to "to" only if the current one is "from". It returns false
	// when the current status is not "from".
	SwapStatus(ctx context.Context, sessionID string, from, to model.SessionStatus) (bool, error)
}

// JobRepository is the interface for job persistence.
type JobRepository interface {
	CreateJob(ctx context.Context, j model.Job) error
	UpdateJob(ctx context.Context, j model.Job) error
	GetJob(ctx context.Context, id string) (*model.Job, error)
	// ListJobs returns the jobs of a session, all of them if the session is empty,
	// newest first.
	ListJobs(ctx context.Context, sessionID string) ([]model.Job, error)
}

// ClipRepository is the interface for the processed clip registry.
type ClipRepository interface {
	SaveClip(ctx context.Context, c model.Clip) error
}

// HistoryRepository is the interface for the chat history of a session.
type HistoryRepository interface {
	AddMessage(ctx context.Context, m model.Message) error
	// ListMessages returns the messages of a session oldest first.
	ListMessages(ctx context.Context, sessionID string) ([]model.Message, error)
}
