// Package relay runs blocking progress producers on a bounded pool of worker
// goroutines and hands their progress to a consumer in order.
package relay

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/semaphore"

	"github.com/grakai/pitchside/internal/log"
	"github.com/grakai/pitchside/internal/model"
)

// Producer is a blocking computation that reports percentages while it works.
type Producer func(ctx context.Context, report func(percentage int)) error

// ProgressFunc consumes a progress value.
type ProgressFunc func(ctx context.Context, percentage int)

const (
	DefaultWorkers   = 3
	DefaultQueueSize = 64
)

// RelayConfig is the configuration of the relay.
type RelayConfig struct {
	// Workers is the number of producers that can run at the same time.
	Workers int
	// QueueSize is the buffer between a producer and its consumer.
	QueueSize int
	Logger    log.Logger
}

func (c *RelayConfig) defaults() error {
	if c.Workers < 0 {
		return fmt.Errorf("workers can't be negative")
	}
	if c.Workers == 0 {
		c.Workers = DefaultWorkers
	}
	if c.QueueSize < 0 {
		return fmt.Errorf("queue size can't be negative")
	}
	if c.QueueSize == 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "relay.Relay"})
	return nil
}

// Relay is a worker pool shared by all the jobs of the process.
type Relay struct {
	sem       *semaphore.Weighted
	queueSize int
	logger    log.Logger
}

// NewRelay returns a new relay.
func NewRelay(cfg RelayConfig) (*Relay, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Relay{
		sem:       semaphore.NewWeighted(int64(cfg.Workers)),
		queueSize: cfg.QueueSize,
		logger:    cfg.Logger,
	}, nil
}

// Run runs the producer on a worker goroutine and calls onProgress for every reported
// value, in order, on a drain goroutine. It returns once the drain goroutine has seen
// the end marker.
//
// If the producer fails the drain is cancelled and awaited, and the error is returned
// wrapped with model.ErrPipelineFailure. If ctx is cancelled Run returns once the drain
// has exited without waiting for the producer, later reports are dropped.
func (r *Relay) Run(ctx context.Context, produce Producer, onProgress ProgressFunc) error {
	logger := r.logger.WithCtxValues(ctx)

	workCtx, cancelWork := context.WithCancel(ctx)
	defer cancelWork()

	q := newQueue(r.queueSize, func(err error) {
		logger.Errorf("Progress relay protocol error: %s", err)
		cancelWork()
	})

	drainCtx, cancelDrain := context.WithCancel(ctx)
	defer cancelDrain()

	drainErr := make(chan error, 1)
	go func() {
		defer q.close()
		drainErr <- drain(drainCtx, q, onProgress)
	}()

	workerErr := make(chan error, 1)
	go func() {
		workerErr <- r.work(workCtx, q, produce)
	}()

	select {
	case err := <-workerErr:
		if err != nil {
			cancelDrain()
			<-drainErr
			return r.workerError(ctx, q, err)
		}

		if err := <-drainErr; err != nil {
			return fmt.Errorf("progress drain interrupted: %w", err)
		}

	case err := <-drainErr:
		if err != nil {
			return fmt.Errorf("progress drain interrupted: %w", err)
		}

		// End marker already consumed, the worker is returning.
		if err := <-workerErr; err != nil {
			return r.workerError(ctx, q, err)
		}
	}

	if err := q.err(); err != nil {
		return err
	}

	logger.Debugf("Progress relay completed")
	return nil
}

func (r *Relay) work(ctx context.Context, q *queue, produce Producer) (err error) {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("could not acquire worker: %w", err)
	}
	defer r.sem.Release(1)

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("producer panicked: %v", rec)
		}
	}()

	if err := produce(ctx, q.push); err != nil {
		return err
	}

	return q.end()
}

func (r *Relay) workerError(ctx context.Context, q *queue, err error) error {
	if perr := q.err(); perr != nil {
		return fmt.Errorf("%w: %w", model.ErrPipelineFailure, perr)
	}
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return fmt.Errorf("progress relay interrupted: %w", err)
	}
	return fmt.Errorf("%w: %w", model.ErrPipelineFailure, err)
}

func drain(ctx context.Context, q *queue, onProgress ProgressFunc) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case it := <-q.ch:
			if it.end {
				return nil
			}
			onProgress(ctx, it.percentage)
		}
	}
}
