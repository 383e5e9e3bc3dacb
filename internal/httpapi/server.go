package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/grakai/pitchside/internal/app/history"
	"github.com/grakai/pitchside/internal/app/runjob"
	"github.com/grakai/pitchside/internal/log"
	"github.com/grakai/pitchside/internal/model"
	"github.com/grakai/pitchside/internal/pubsub"
	"github.com/grakai/pitchside/internal/storage"
	"github.com/grakai/pitchside/internal/storage/mainapi"
)

// JobRunner runs jobs inline.
type JobRunner interface {
	RunJob(ctx context.Context, req runjob.Request) (*model.JobOutcome, error)
}

// JobEnqueuer submits jobs to be run by a worker.
type JobEnqueuer interface {
	Enqueue(ctx context.Context, req runjob.Request, creds mainapi.Credentials) (taskID string, err error)
}

// HistoryLister lists the chat history of a session.
type HistoryLister interface {
	List(ctx context.Context, sessionID string) ([]history.Entry, error)
}

// TokenVerifier verifies the request tokens.
type TokenVerifier interface {
	Verify(token, xsrf string) (*model.Identity, error)
}

// ServerConfig is the configuration of the HTTP API server.
type ServerConfig struct {
	ListenAddr string
	Runner     JobRunner
	// Enqueuer makes predictions asynchronous when set.
	Enqueuer   JobEnqueuer
	History    HistoryLister
	Verifier   TokenVerifier
	Subscriber pubsub.Subscriber
	// Status is used to reject queued jobs of processing sessions early, optional.
	Status storage.StatusRepository
	// Clips serves the public clips under /clips, optional.
	Clips http.Handler
	// UploadDir is where uploaded videos are stored until processed.
	UploadDir     string
	MaxUploadSize int64
	// Device is the pipeline device hint for the jobs.
	Device string
	// KeepAlive is the interval of the event stream keep alive comments.
	KeepAlive time.Duration
	Logger    log.Logger
}

func (c *ServerConfig) defaults() error {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
	if c.Runner == nil && c.Enqueuer == nil {
		return fmt.Errorf("job runner or enqueuer is required")
	}
	if c.History == nil {
		return fmt.Errorf("history is required")
	}
	if c.Verifier == nil {
		return fmt.Errorf("verifier is required")
	}
	if c.Subscriber == nil {
		return fmt.Errorf("subscriber is required")
	}
	if c.UploadDir == "" {
		c.UploadDir = filepath.Join(os.TempDir(), "pitchside", "uploads")
	}
	if c.MaxUploadSize <= 0 {
		c.MaxUploadSize = 1 << 30
	}
	if c.Device == "" {
		c.Device = "cpu"
	}
	if c.KeepAlive <= 0 {
		c.KeepAlive = 15 * time.Second
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "httpapi.Server"})
	return nil
}

// Server is the HTTP API.
type Server struct {
	server     *http.Server
	runner     JobRunner
	enqueuer   JobEnqueuer
	history    HistoryLister
	verifier   TokenVerifier
	subscriber pubsub.Subscriber
	status     storage.StatusRepository
	clips      http.Handler
	uploadDir  string
	maxUpload  int64
	device     string
	keepAlive  time.Duration
	logger     log.Logger
}

// NewServer returns a new HTTP API server.
func NewServer(cfg ServerConfig) (*Server, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	s := &Server{
		runner:     cfg.Runner,
		enqueuer:   cfg.Enqueuer,
		history:    cfg.History,
		verifier:   cfg.Verifier,
		subscriber: cfg.Subscriber,
		status:     cfg.Status,
		clips:      cfg.Clips,
		uploadDir:  cfg.UploadDir,
		maxUpload:  cfg.MaxUploadSize,
		device:     cfg.Device,
		keepAlive:  cfg.KeepAlive,
		logger:     cfg.Logger,
	}
	s.server = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, nil
}

// Router returns the HTTP handler of the API.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.accessLog)
	r.Use(cors)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})
	if s.clips != nil {
		r.Handle("/clips/*", http.StripPrefix("/clips", s.clips))
	}

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)
		r.Post("/ai/predict/{project_id}", s.handlePredict)
		r.Get("/ai/{project_id}/messages", s.handleMessages)
		r.Get("/rooms/{room}/events", s.handleRoomEvents)
	})

	return r
}

// Run starts the server and blocks until ctx is cancelled, then it shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("HTTP API listening on %s", s.server.Addr)
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		s.logger.Infof("Shutting down HTTP API")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown error: %w", err)
		}
		return nil
	}
}
