package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"
	"github.com/hibiken/asynq"
	"github.com/oklog/run"

	"github.com/grakai/pitchside/internal/auth"
	"github.com/grakai/pitchside/internal/conventions"
	"github.com/grakai/pitchside/internal/httpapi"
	"github.com/grakai/pitchside/internal/queue"
)

type ServeCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand
	backend *backendFlags

	listenAddr        string
	jwtSecret         string
	device            string
	maxUploadSize     int64
	queued            bool
	worker            bool
	workerConcurrency int
	taskMaxRetry      int
}

// NewServeCommand returns the serve command.
func NewServeCommand(rootCmd *RootCommand, app *kingpin.Application) *ServeCommand {
	c := &ServeCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("serve", "Run the HTTP API.")
	c.backend = registerBackendFlags(c.Cmd)
	c.Cmd.Flag("listen", "HTTP listen address.").Default(":8080").StringVar(&c.listenAddr)
	c.Cmd.Flag("jwt-secret", "HMAC secret of the session and XSRF tokens.").Envar("PITCHSIDE_JWT_SECRET").Required().StringVar(&c.jwtSecret)
	c.Cmd.Flag("device", "Pipeline device for uploaded videos, defaults to the runtime config one.").StringVar(&c.device)
	c.Cmd.Flag("max-upload-size", "Max accepted request body size in bytes.").Default("1073741824").Int64Var(&c.maxUploadSize)
	c.Cmd.Flag("queued", "Enqueue jobs on the redis queue instead of running them on the request.").BoolVar(&c.queued)
	c.Cmd.Flag("worker", "Run the queue worker in the same process (requires --queued).").BoolVar(&c.worker)
	c.Cmd.Flag("worker-concurrency", "Jobs the in-process worker runs at the same time.").Default("3").IntVar(&c.workerConcurrency)
	c.Cmd.Flag("task-max-retry", "Retries of a failed enqueued job.").Default("3").IntVar(&c.taskMaxRetry)

	return c
}

func (c ServeCommand) Name() string { return c.Cmd.FullCommand() }

func (c ServeCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	if c.worker && !c.queued {
		return fmt.Errorf("--worker requires --queued")
	}
	if c.queued && !c.worker && c.backend.pubsub != pubsubRedis {
		return fmt.Errorf("queued mode with an external worker requires the redis pubsub")
	}

	b, err := newBackend(ctx, c.rootCmd, c.backend)
	if err != nil {
		return err
	}
	defer b.Close()

	verifier, err := auth.NewVerifier(auth.VerifierConfig{
		Secret: []byte(c.jwtSecret),
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("could not create token verifier: %w", err)
	}

	device := c.device
	if device == "" {
		device = b.Config.Device
	}

	cfg := httpapi.ServerConfig{
		ListenAddr:    c.listenAddr,
		Runner:        b.RunJob,
		History:       b.History,
		Verifier:      verifier,
		Subscriber:    b.Subscriber,
		Status:        b.Status,
		Clips:         b.ClipStore.Handler(),
		UploadDir:     conventions.UploadsPath(c.rootCmd.DataDir),
		MaxUploadSize: c.maxUploadSize,
		Device:        device,
		Logger:        logger,
	}

	var g run.Group

	if c.queued {
		redisOpt, err := asynq.ParseRedisURI(c.backend.redisURL)
		if err != nil {
			return fmt.Errorf("invalid redis url: %w", err)
		}

		client := asynq.NewClient(redisOpt)
		defer client.Close()

		enqueuer, err := queue.NewEnqueuer(queue.EnqueuerConfig{
			Client:   client,
			MaxRetry: c.taskMaxRetry,
			Logger:   logger,
		})
		if err != nil {
			return fmt.Errorf("could not create enqueuer: %w", err)
		}
		cfg.Enqueuer = enqueuer

		if c.worker {
			consumer, err := queue.NewConsumer(queue.ConsumerConfig{
				RedisOpt:    redisOpt,
				Runner:      b.RunJob,
				Concurrency: c.workerConcurrency,
				Logger:      logger,
			})
			if err != nil {
				return fmt.Errorf("could not create worker: %w", err)
			}
			addContextActor(ctx, &g, consumer.Run)
		}
	}

	server, err := httpapi.NewServer(cfg)
	if err != nil {
		return fmt.Errorf("could not create server: %w", err)
	}
	addContextActor(ctx, &g, server.Run)

	return g.Run()
}

// addContextActor adds an actor that runs until its context is cancelled.
func addContextActor(ctx context.Context, g *run.Group, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithCancel(ctx)
	g.Add(
		func() error {
			return fn(ctx)
		},
		func(_ error) {
			cancel()
		},
	)
}
