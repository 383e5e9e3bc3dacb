package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/alecthomas/kingpin/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/grakai/pitchside/internal/agent"
	fakeagent "github.com/grakai/pitchside/internal/agent/fake"
	"github.com/grakai/pitchside/internal/agent/openai"
	"github.com/grakai/pitchside/internal/answer"
	"github.com/grakai/pitchside/internal/app/history"
	"github.com/grakai/pitchside/internal/app/runjob"
	"github.com/grakai/pitchside/internal/conventions"
	"github.com/grakai/pitchside/internal/guard"
	"github.com/grakai/pitchside/internal/log"
	"github.com/grakai/pitchside/internal/model"
	"github.com/grakai/pitchside/internal/objectstore/localfs"
	"github.com/grakai/pitchside/internal/pipeline"
	fakepipeline "github.com/grakai/pitchside/internal/pipeline/fake"
	"github.com/grakai/pitchside/internal/pipeline/ffmpeg"
	"github.com/grakai/pitchside/internal/pubsub"
	memorypubsub "github.com/grakai/pitchside/internal/pubsub/memory"
	redispubsub "github.com/grakai/pitchside/internal/pubsub/redis"
	"github.com/grakai/pitchside/internal/relay"
	"github.com/grakai/pitchside/internal/storage"
	"github.com/grakai/pitchside/internal/storage/io"
	"github.com/grakai/pitchside/internal/storage/mainapi"
	memorystorage "github.com/grakai/pitchside/internal/storage/memory"
	redisstorage "github.com/grakai/pitchside/internal/storage/redis"
	"github.com/grakai/pitchside/internal/storage/sqlite"
)

const (
	statusStoreSQLite  = "sqlite"
	statusStoreRedis   = "redis"
	statusStoreMainAPI = "mainapi"
	statusStoreMemory  = "memory"

	pubsubMemory = "memory"
	pubsubRedis  = "redis"
)

// backendFlags are the flags of the commands that run jobs.
type backendFlags struct {
	statusStore       string
	pubsub            string
	redisURL          string
	processingTTL     time.Duration
	mainAPIURL        string
	mainAPIServiceKey string
	openAIAPIKey      string
	publicURL         string
}

func registerBackendFlags(cmd *kingpin.CmdClause) *backendFlags {
	f := &backendFlags{}

	cmd.Flag("status-store", "Where the session processing status is kept.").Default(statusStoreSQLite).EnumVar(&f.statusStore, statusStoreSQLite, statusStoreRedis, statusStoreMainAPI, statusStoreMemory)
	cmd.Flag("pubsub", "Room event broadcaster.").Default(pubsubMemory).EnumVar(&f.pubsub, pubsubMemory, pubsubRedis)
	cmd.Flag("redis-url", "Redis URL used by the redis status store, the redis pubsub and the job queue.").Envar("PITCHSIDE_REDIS_URL").StringVar(&f.redisURL)
	cmd.Flag("processing-ttl", "Expiration of the processing status on redis, 0 never expires.").Default("2h").DurationVar(&f.processingTTL)
	cmd.Flag("main-api-url", "Main API base URL used by the mainapi status store.").Envar("PITCHSIDE_MAIN_API_URL").StringVar(&f.mainAPIURL)
	cmd.Flag("main-api-service-key", "Service key sent to the main API.").Envar("PITCHSIDE_MAIN_API_SERVICE_KEY").StringVar(&f.mainAPIServiceKey)
	cmd.Flag("openai-api-key", "API key of the OpenAI compatible agent.").Envar("PITCHSIDE_OPENAI_API_KEY").StringVar(&f.openAIAPIKey)
	cmd.Flag("public-url", "Public base URL of the server, clip URLs are built from it.").Default("http://localhost:8080").StringVar(&f.publicURL)

	return f
}

// backend holds the collaborators used to run jobs.
type backend struct {
	Config     model.RuntimeConfig
	DB         *sqlite.Repository
	Redis      *goredis.Client
	Status     storage.StatusRepository
	Publisher  pubsub.Publisher
	Subscriber pubsub.Subscriber
	ClipStore  *localfs.Store
	RunJob     *runjob.Service
	History    *history.Service

	closers []func() error
}

// Close releases the backend connections.
func (b *backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i]())
	}
	return errors.Join(errs...)
}

// newBackend wires the job collaborators selected by the flags and the runtime config.
func newBackend(ctx context.Context, root *RootCommand, flags *backendFlags) (_ *backend, err error) {
	logger := root.Logger
	b := &backend{}
	defer func() {
		if err != nil {
			_ = b.Close()
		}
	}()

	b.Config, err = loadRuntimeConfig(ctx, *root)
	if err != nil {
		return nil, err
	}

	b.DB, err = sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
		DBPath: conventions.DBPath(root.DataDir),
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create repository: %w", err)
	}
	b.closers = append(b.closers, b.DB.Close)

	if flags.statusStore == statusStoreRedis || flags.pubsub == pubsubRedis {
		b.Redis, err = newRedisClient(ctx, flags.redisURL)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, b.Redis.Close)
	}

	var clips storage.ClipRepository = b.DB
	switch flags.statusStore {
	case statusStoreRedis:
		b.Status, err = redisstorage.NewStatusRepository(redisstorage.StatusRepositoryConfig{
			Client:        b.Redis,
			ProcessingTTL: flags.processingTTL,
			Logger:        logger,
		})
	case statusStoreMainAPI:
		var repo *mainapi.Repository
		repo, err = mainapi.NewRepository(mainapi.RepositoryConfig{
			BaseURL:    flags.mainAPIURL,
			ServiceKey: flags.mainAPIServiceKey,
			Logger:     logger,
		})
		b.Status, clips = repo, repo
	case statusStoreMemory:
		b.Status, err = memorystorage.NewRepository(memorystorage.RepositoryConfig{Logger: logger})
	default:
		b.Status = b.DB
	}
	if err != nil {
		return nil, fmt.Errorf("could not create status store: %w", err)
	}

	switch flags.pubsub {
	case pubsubRedis:
		var ps *redispubsub.PubSub
		ps, err = redispubsub.NewPubSub(redispubsub.PubSubConfig{Client: b.Redis, Logger: logger})
		b.Publisher, b.Subscriber = ps, ps
	default:
		var hub *memorypubsub.Hub
		hub, err = memorypubsub.NewHub(memorypubsub.HubConfig{Logger: logger})
		b.Publisher, b.Subscriber = hub, hub
	}
	if err != nil {
		return nil, fmt.Errorf("could not create pubsub: %w", err)
	}

	b.ClipStore, err = localfs.NewStore(localfs.StoreConfig{
		Root:      conventions.ClipsPath(root.DataDir),
		PublicURL: flags.publicURL + conventions.ClipsURLPath,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create clip store: %w", err)
	}

	historyRepo, err := sqlite.NewHistoryRepository(sqlite.HistoryRepositoryConfig{DB: b.DB.DB(), Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("could not create history repository: %w", err)
	}

	ag, err := newAgent(b.Config, historyRepo, flags.openAIAPIKey, logger)
	if err != nil {
		return nil, fmt.Errorf("could not create agent: %w", err)
	}

	pl, err := newPipeline(b.Config, logger)
	if err != nil {
		return nil, fmt.Errorf("could not create pipeline: %w", err)
	}

	rl, err := relay.NewRelay(relay.RelayConfig{Workers: b.Config.Workers, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("could not create relay: %w", err)
	}

	gd, err := guard.NewGuard(guard.GuardConfig{Repository: b.Status, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("could not create guard: %w", err)
	}

	filter, err := filterConfig(b.Config.Filter)
	if err != nil {
		return nil, err
	}

	b.RunJob, err = runjob.NewService(runjob.ServiceConfig{
		Guard:       gd,
		Relay:       rl,
		Pipeline:    pl,
		Agent:       ag,
		Publisher:   b.Publisher,
		ObjectStore: b.ClipStore,
		Clips:       clips,
		Jobs:        b.DB,
		WorkDir:     conventions.WorkPath(root.DataDir),
		Filter:      filter,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create job service: %w", err)
	}

	b.History, err = history.NewService(history.ServiceConfig{
		Repository: historyRepo,
		Marker:     filter.Marker,
		Separator:  filter.Separator,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create history service: %w", err)
	}

	return b, nil
}

// loadRuntimeConfig loads the runtime YAML config. A missing default config falls back to
// the fake agent and pipeline.
func loadRuntimeConfig(ctx context.Context, root RootCommand) (model.RuntimeConfig, error) {
	configPath, err := filepath.Abs(root.RuntimeConfigPath())
	if err != nil {
		return model.RuntimeConfig{}, fmt.Errorf("could not resolve config path: %w", err)
	}

	if root.ConfigPath == "" {
		if _, err := os.Stat(configPath); errors.Is(err, fs.ErrNotExist) {
			root.Logger.Warningf("Runtime config %q missing, using fake agent and pipeline", configPath)
			return model.RuntimeConfig{FakePipeline: &model.FakePipelineConfig{}}, nil
		}
	}

	cfg, err := io.NewConfigYAMLRepository(os.DirFS("/")).GetConfig(ctx, configPath[1:])
	if err != nil {
		return model.RuntimeConfig{}, fmt.Errorf("could not load runtime config: %w", err)
	}

	return cfg, nil
}

func newRedisClient(ctx context.Context, url string) (*goredis.Client, error) {
	if url == "" {
		return nil, fmt.Errorf("redis url is required")
	}

	opt, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := goredis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("could not connect to redis: %w", err)
	}

	return client, nil
}

func newAgent(cfg model.RuntimeConfig, repo storage.HistoryRepository, apiKey string, logger log.Logger) (agent.Agent, error) {
	if c := cfg.OpenAIAgent; c != nil {
		return openai.NewAgent(openai.AgentConfig{
			BaseURL:      c.BaseURL,
			APIKey:       apiKey,
			Model:        c.Model,
			SystemPrompt: c.SystemPrompt,
			Temperature:  c.Temperature,
			History:      repo,
			MaxHistory:   c.MaxHistory,
			HTTPClient:   &http.Client{Timeout: c.Timeout},
			Logger:       logger,
		})
	}

	return fakeagent.NewAgent(fakeagent.AgentConfig{
		History: repo,
		Logger:  logger,
	})
}

func newPipeline(cfg model.RuntimeConfig, logger log.Logger) (pipeline.Pipeline, error) {
	if c := cfg.FFmpegPipeline; c != nil {
		return ffmpeg.NewPipeline(ffmpeg.PipelineConfig{
			FFmpegPath:  c.FFmpegPath,
			FFprobePath: c.FFprobePath,
			Preset:      c.Preset,
			Logger:      logger,
		})
	}

	fc := model.FakePipelineConfig{}
	if cfg.FakePipeline != nil {
		fc = *cfg.FakePipeline
	}
	return fakepipeline.NewPipeline(fakepipeline.PipelineConfig{
		Steps:     fc.Steps,
		StepDelay: fc.StepDelay,
		Logger:    logger,
	})
}

func filterConfig(cfg model.FilterConfig) (answer.FilterConfig, error) {
	mode, err := answer.ParseStripMode(cfg.StripMode)
	if err != nil {
		return answer.FilterConfig{}, fmt.Errorf("invalid filter config: %w", err)
	}

	fc := answer.FilterConfig{
		Marker:    cfg.Marker,
		Separator: cfg.Separator,
		Mode:      mode,
	}
	if fc.Marker == "" {
		fc.Marker = answer.DefaultMarker
	}
	if fc.Separator == "" {
		fc.Separator = answer.DefaultSeparator
	}

	return fc, nil
}
