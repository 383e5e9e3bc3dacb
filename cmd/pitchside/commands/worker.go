package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"
	"github.com/hibiken/asynq"

	"github.com/grakai/pitchside/internal/queue"
)

type WorkerCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand
	backend *backendFlags

	concurrency int
	queue       string
}

// NewWorkerCommand returns the worker command.
func NewWorkerCommand(rootCmd *RootCommand, app *kingpin.Application) *WorkerCommand {
	c := &WorkerCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("worker", "Run the enqueued jobs.")
	c.backend = registerBackendFlags(c.Cmd)
	c.Cmd.Flag("concurrency", "Jobs run at the same time.").Default("3").IntVar(&c.concurrency)
	c.Cmd.Flag("queue", "Queue name.").Default(queue.DefaultQueue).StringVar(&c.queue)

	return c
}

func (c WorkerCommand) Name() string { return c.Cmd.FullCommand() }

func (c WorkerCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	if c.backend.pubsub != pubsubRedis {
		logger.Warningf("Worker is using the in-process pubsub, room events won't reach the API clients")
	}

	redisOpt, err := asynq.ParseRedisURI(c.backend.redisURL)
	if err != nil {
		return fmt.Errorf("invalid redis url: %w", err)
	}

	b, err := newBackend(ctx, c.rootCmd, c.backend)
	if err != nil {
		return err
	}
	defer b.Close()

	consumer, err := queue.NewConsumer(queue.ConsumerConfig{
		RedisOpt:    redisOpt,
		Runner:      b.RunJob,
		Concurrency: c.concurrency,
		Queue:       c.queue,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("could not create worker: %w", err)
	}

	return consumer.Run(ctx)
}
