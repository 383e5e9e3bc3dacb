package queue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/hibiken/asynq"

	"github.com/grakai/pitchside/internal/app/runjob"
	"github.com/grakai/pitchside/internal/log"
	"github.com/grakai/pitchside/internal/model"
	"github.com/grakai/pitchside/internal/storage/mainapi"
)

// JobRunner runs jobs.
type JobRunner interface {
	RunJob(ctx context.Context, req runjob.Request) (*model.JobOutcome, error)
}

// ConsumerConfig is the configuration of the Consumer.
type ConsumerConfig struct {
	RedisOpt    asynq.RedisConnOpt
	Runner      JobRunner
	Concurrency int
	Queue       string
	Logger      log.Logger
}

func (c *ConsumerConfig) defaults() error {
	if c.RedisOpt == nil {
		return fmt.Errorf("redis options are required")
	}
	if c.Runner == nil {
		return fmt.Errorf("runner is required")
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 3
	}
	if c.Queue == "" {
		c.Queue = DefaultQueue
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "queue.Consumer"})
	return nil
}

// Consumer runs the enqueued jobs.
type Consumer struct {
	server *asynq.Server
	runner JobRunner
	logger log.Logger
}

// NewConsumer returns a new job consumer.
func NewConsumer(cfg ConsumerConfig) (*Consumer, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	c := &Consumer{
		runner: cfg.Runner,
		logger: cfg.Logger,
	}
	c.server = asynq.NewServer(cfg.RedisOpt, asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues:      map[string]int{cfg.Queue: 1},
		Logger:      asynqLogger{logger: cfg.Logger},
		RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
			return time.Duration(1<<uint(n)) * 10 * time.Second
		},
		IsFailure: func(err error) bool {
			return !errors.Is(err, model.ErrAlreadyProcessing)
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			cfg.Logger.Errorf("Task %s failed: %s", task.Type(), err)
		}),
	})

	return c, nil
}

// Run starts consuming jobs and blocks until ctx is cancelled, then waits for the
// running jobs to end.
func (c *Consumer) Run(ctx context.Context) error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTypeRunJob, c.ProcessTask)

	c.logger.Infof("Starting job worker")
	if err := c.server.Start(mux); err != nil {
		return fmt.Errorf("could not start worker: %w", err)
	}

	<-ctx.Done()
	c.logger.Infof("Shutting down job worker")
	c.server.Shutdown()
	return nil
}

// ProcessTask runs the job of a task. Jobs that can't succeed on retry skip the retries.
func (c *Consumer) ProcessTask(ctx context.Context, task *asynq.Task) error {
	req, creds, err := parseRunJobTask(task)
	if err != nil {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}

	ctx = c.logger.SetValuesOnCtx(ctx, log.Kv{"job": req.JobID})
	logger := c.logger.WithCtxValues(ctx)

	_, err = c.runner.RunJob(mainapi.WithCredentials(ctx, creds), req)
	final := err == nil || isPermanent(err) || lastAttempt(ctx)
	if final && req.Input.Media != nil {
		if rmErr := os.Remove(req.Input.Media.SourcePath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			logger.Warningf("Could not remove upload %s: %s", req.Input.Media.SourcePath, rmErr)
		}
	}

	switch {
	case err == nil:
		logger.Infof("Job completed")
		return nil
	case isPermanent(err):
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	default:
		return err
	}
}

func isPermanent(err error) bool {
	return errors.Is(err, model.ErrAlreadyProcessing) || errors.Is(err, model.ErrNotValid)
}

func lastAttempt(ctx context.Context) bool {
	retried, ok1 := asynq.GetRetryCount(ctx)
	maxRetry, ok2 := asynq.GetMaxRetry(ctx)
	if !ok1 || !ok2 {
		return true
	}
	return retried >= maxRetry
}

// asynqLogger adapts the logger to the task queue.
type asynqLogger struct {
	logger log.Logger
}

func (l asynqLogger) Debug(args ...any) { l.logger.Debugf("%s", fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...any)  { l.logger.Infof("%s", fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...any)  { l.logger.Warningf("%s", fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...any) { l.logger.Errorf("%s", fmt.Sprint(args...)) }
func (l asynqLogger) Fatal(args ...any) {
	l.logger.Errorf("%s", fmt.Sprint(args...))
	os.Exit(1)
}
