package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/grakai/pitchside/internal/app/runjob"
	"github.com/grakai/pitchside/internal/log"
	"github.com/grakai/pitchside/internal/storage/mainapi"
)

// EnqueuerConfig is the configuration of the Enqueuer.
type EnqueuerConfig struct {
	Client *asynq.Client
	Queue  string
	// MaxRetry is the number of retries of failed jobs.
	MaxRetry int
	// Timeout is the maximum time a job can run.
	Timeout time.Duration
	Logger  log.Logger
}

func (c *EnqueuerConfig) defaults() error {
	if c.Client == nil {
		return fmt.Errorf("client is required")
	}
	if c.Queue == "" {
		c.Queue = DefaultQueue
	}
	if c.MaxRetry < 0 {
		return fmt.Errorf("max retry can't be negative")
	}
	if c.Timeout <= 0 {
		c.Timeout = time.Hour
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "queue.Enqueuer"})
	return nil
}

// Enqueuer enqueues jobs for the workers.
type Enqueuer struct {
	client   *asynq.Client
	queue    string
	maxRetry int
	timeout  time.Duration
	logger   log.Logger
}

// NewEnqueuer returns a new job enqueuer.
func NewEnqueuer(cfg EnqueuerConfig) (*Enqueuer, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Enqueuer{
		client:   cfg.Client,
		queue:    cfg.Queue,
		maxRetry: cfg.MaxRetry,
		timeout:  cfg.Timeout,
		logger:   cfg.Logger,
	}, nil
}

// Enqueue enqueues a job run. The job id is used as task id so a job can't be enqueued twice.
func (e *Enqueuer) Enqueue(ctx context.Context, req runjob.Request, creds mainapi.Credentials) (string, error) {
	if req.JobID == "" {
		return "", fmt.Errorf("job id is required")
	}

	task, err := newRunJobTask(req, creds,
		asynq.Queue(e.queue),
		asynq.TaskID(req.JobID),
		asynq.MaxRetry(e.maxRetry),
		asynq.Timeout(e.timeout),
	)
	if err != nil {
		return "", err
	}

	info, err := e.client.EnqueueContext(ctx, task)
	if err != nil {
		return "", fmt.Errorf("could not enqueue task: %w", err)
	}

	e.logger.WithCtxValues(ctx).Debugf("Enqueued task %s on %s", info.ID, info.Queue)
	return info.ID, nil
}
