package runjob

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/grakai/pitchside/internal/agent"
	"github.com/grakai/pitchside/internal/answer"
	"github.com/grakai/pitchside/internal/guard"
	"github.com/grakai/pitchside/internal/log"
	"github.com/grakai/pitchside/internal/model"
	"github.com/grakai/pitchside/internal/objectstore"
	"github.com/grakai/pitchside/internal/pipeline"
	"github.com/grakai/pitchside/internal/pubsub"
	"github.com/grakai/pitchside/internal/relay"
	"github.com/grakai/pitchside/internal/storage"
)

const clipExtension = "mp4"

// ServiceConfig is the configuration for the run job service.
type ServiceConfig struct {
	Guard       *guard.Guard
	Relay       *relay.Relay
	Pipeline    pipeline.Pipeline
	Agent       agent.Agent
	Publisher   pubsub.Publisher
	ObjectStore objectstore.Store
	Clips       storage.ClipRepository
	// Jobs records the jobs, optional.
	Jobs storage.JobRepository
	// WorkDir is where processed videos are written before the upload.
	WorkDir string
	// Filter configures the final answer filter, OnStart is ignored.
	Filter answer.FilterConfig
	// IDGen generates the job id suffix.
	IDGen  func() string
	Logger log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Guard == nil {
		return fmt.Errorf("guard is required")
	}
	if c.Relay == nil {
		return fmt.Errorf("relay is required")
	}
	if c.Pipeline == nil {
		return fmt.Errorf("pipeline is required")
	}
	if c.Agent == nil {
		return fmt.Errorf("agent is required")
	}
	if c.Publisher == nil {
		return fmt.Errorf("publisher is required")
	}
	if c.ObjectStore == nil {
		return fmt.Errorf("object store is required")
	}
	if c.Clips == nil {
		return fmt.Errorf("clip repository is required")
	}
	if c.WorkDir == "" {
		c.WorkDir = filepath.Join(os.TempDir(), "pitchside")
	}
	if c.IDGen == nil {
		c.IDGen = uuid.NewString
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.RunJob"})
	return nil
}

// Service runs jobs of a session: processes media, queries the agent and streams
// everything to the session room.
type Service struct {
	guard     *guard.Guard
	relay     *relay.Relay
	pipeline  pipeline.Pipeline
	agent     agent.Agent
	publisher pubsub.Publisher
	store     objectstore.Store
	clips     storage.ClipRepository
	jobs      storage.JobRepository
	workDir   string
	filterCfg answer.FilterConfig
	idGen     func() string
	logger    log.Logger
}

// NewService creates a new run job service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		guard:     cfg.Guard,
		relay:     cfg.Relay,
		pipeline:  cfg.Pipeline,
		agent:     cfg.Agent,
		publisher: cfg.Publisher,
		store:     cfg.ObjectStore,
		clips:     cfg.Clips,
		jobs:      cfg.Jobs,
		workDir:   cfg.WorkDir,
		filterCfg: cfg.Filter,
		idGen:     cfg.IDGen,
		logger:    cfg.Logger,
	}, nil
}

// Request is a job request for a session.
type Request struct {
	SessionID string
	Input     model.JobInput
	// JobID reuses an already assigned job id (e.g. queued jobs), generated when empty.
	JobID string
}

// RunJob runs a job while holding the session. Failures are published to the room
// before being returned, the session is released on every path it was acquired. If
// the session is already processing ErrAlreadyProcessing is returned and nothing is
// published.
func (s *Service) RunJob(ctx context.Context, req Request) (*model.JobOutcome, error) {
	if req.SessionID == "" {
		return nil, fmt.Errorf("session id is required: %w", model.ErrNotValid)
	}
	if err := req.Input.Validate(); err != nil {
		return nil, fmt.Errorf("invalid job input: %w", err)
	}

	jobID := req.JobID
	if jobID == "" {
		jobID = req.SessionID + "-" + s.idGen()
	}
	ctx = s.logger.SetValuesOnCtx(ctx, log.Kv{"session": req.SessionID, "job": jobID})
	logger := s.logger.WithCtxValues(ctx)

	r := &run{
		svc:     s,
		room:    req.SessionID,
		outcome: &model.JobOutcome{JobID: jobID, SessionID: req.SessionID},
		job: model.Job{
			ID:        jobID,
			SessionID: req.SessionID,
			Status:    model.JobStatusRunning,
			Stage:     model.JobStageGuarding,
		},
		logger: logger,
	}

	acquired := false
	err := s.guard.Do(ctx, req.SessionID, func(ctx context.Context) error {
		acquired = true
		r.publish(ctx, model.EventStatus, model.StatusPayload{Status: model.SessionStatusProcessing})
		r.createJob(ctx)
		return r.execute(ctx, req.Input)
	})
	if !acquired {
		err = fmt.Errorf("could not acquire session: %w", err)
		if errors.Is(err, model.ErrAlreadyProcessing) {
			logger.Warningf("Job not started: %s", err)
			return nil, err
		}
		// The status was never set, so there is no idle status to publish.
		logger.Errorf("Job not started (%s): %s", model.ErrorKind(err), err)
		r.publishError(ctx, err)
		return nil, err
	}

	if err != nil {
		logger.Errorf("Job failed (%s): %s", model.ErrorKind(err), err)
		r.publishError(ctx, err)
		r.job.Status = model.JobStatusFailed
		r.job.Error = err.Error()
	} else {
		r.job.Status = model.JobStatusCompleted
		logger.Infof("Job completed")
	}
	r.job.Stage = model.JobStageDone
	r.updateJob(ctx)
	r.publish(ctx, model.EventStatus, model.StatusPayload{Status: model.SessionStatusIdle})

	if err != nil {
		return nil, err
	}
	return r.outcome, nil
}

// run is the state of one job execution.
type run struct {
	svc     *Service
	room    string
	job     model.Job
	outcome *model.JobOutcome
	logger  log.Logger
}

func (r *run) execute(ctx context.Context, in model.JobInput) error {
	if in.Media != nil {
		r.stage(ctx, model.JobStageProcessingMedia)
		if err := r.processMedia(ctx, *in.Media); err != nil {
			return err
		}
	}

	if in.Prompt != nil {
		r.stage(ctx, model.JobStageQueryingAgent)
		if err := r.queryAgent(ctx, *in.Prompt); err != nil {
			return err
		}
	}

	r.stage(ctx, model.JobStageReleasing)
	return nil
}

func (r *run) processMedia(ctx context.Context, in model.MediaInput) error {
	jobID := r.outcome.JobID
	r.publish(ctx, model.EventProgress, model.ProgressPayload{Type: model.ProgressTypeProgress, JobID: jobID, Percentage: 0})

	if err := os.MkdirAll(r.svc.workDir, 0755); err != nil {
		return fmt.Errorf("could not create work directory: %w", err)
	}
	dst := filepath.Join(r.svc.workDir, jobID+"."+clipExtension)
	defer func() {
		if err := os.Remove(dst); err != nil && !errors.Is(err, os.ErrNotExist) {
			r.logger.Warningf("Could not remove processed video %s: %s", dst, err)
		}
	}()

	err := r.svc.relay.Run(ctx,
		func(ctx context.Context, report func(int)) error {
			return r.svc.pipeline.Process(ctx, pipeline.Request{
				Source:      in.SourcePath,
				Destination: dst,
				Device:      in.Device,
				Model:       in.Model,
			}, report)
		},
		func(ctx context.Context, percentage int) {
			r.publish(ctx, model.EventProgress, model.ProgressPayload{Type: model.ProgressTypeProgress, JobID: jobID, Percentage: percentage})
		},
	)
	if err != nil {
		return fmt.Errorf("could not process video: %w", err)
	}

	f, err := os.Open(dst)
	if err != nil {
		return fmt.Errorf("processed video missing: %w: %w", model.ErrPipelineFailure, err)
	}
	defer f.Close()

	contentType := model.VideoContentType(clipExtension)
	key := path.Join("projects", r.room, "clips", jobID+"."+clipExtension)
	url, err := r.svc.store.Upload(ctx, key, contentType, f)
	if err != nil {
		return fmt.Errorf("could not upload clip: %w: %w", model.ErrUpstreamUnavailable, err)
	}

	clip := model.Clip{
		VideoID:     jobID,
		SessionID:   r.room,
		URL:         url,
		ContentType: contentType,
		CreatedAt:   time.Now().UTC(),
	}
	if err := r.svc.clips.SaveClip(ctx, clip); err != nil {
		return fmt.Errorf("could not register clip: %w: %w", model.ErrUpstreamUnavailable, err)
	}
	r.outcome.Clip = &clip
	r.job.ClipURL = url
	r.updateJob(ctx)

	r.publish(ctx, model.EventNewClip, model.NewClipPayload{VideoID: clip.VideoID, URL: clip.URL, ContentType: clip.ContentType})
	r.logger.Infof("Clip %s ready at %s", clip.VideoID, clip.URL)
	return nil
}

func (r *run) queryAgent(ctx context.Context, in model.PromptInput) error {
	videoID := in.VideoID
	if videoID == "" && r.outcome.Clip != nil {
		videoID = r.outcome.Clip.VideoID
	}

	cfg := r.svc.filterCfg
	cfg.OnStart = func() {
		r.publish(ctx, model.EventSystemMessageStart, nil)
	}
	filter := answer.NewFilter(cfg)

	tokens := make(chan string)
	streamErr := make(chan error, 1)
	go func() {
		defer close(tokens)
		streamErr <- r.svc.agent.Stream(ctx, agent.Question{
			SessionID: r.room,
			VideoID:   videoID,
			Sender:    in.Sender,
			Text:      in.Text,
		}, func(token string) {
			select {
			case tokens <- token:
			case <-ctx.Done():
			}
		})
	}()

	for chunk := range answer.Pipe(ctx, filter, tokens) {
		r.publish(ctx, model.EventSystemMessage, model.SystemMessagePayload{Token: chunk})
	}
	err := <-streamErr

	summary := filter.Close()
	r.publish(ctx, model.EventSystemMessageEnd, model.SystemMessageEndPayload{Answered: summary.Answered})
	r.outcome.Answer = summary.Text
	r.outcome.Answered = summary.Answered

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("agent query cancelled: %w", ctxErr)
		}
		if errors.Is(err, model.ErrAgentFailure) {
			return err
		}
		return fmt.Errorf("%w: %w", model.ErrAgentFailure, err)
	}
	if !summary.Answered {
		r.logger.Warningf("Agent finished without a final answer")
	}

	return nil
}

// publishError sends the structured error events of a failed job.
func (r *run) publishError(ctx context.Context, err error) {
	kind := model.ErrorKind(err)
	r.publish(ctx, model.EventProgress, model.ProgressPayload{
		Type:    model.ProgressTypeError,
		JobID:   r.outcome.JobID,
		Message: err.Error(),
		Kind:    kind,
	})
	r.publish(ctx, model.EventSystemMessageError, model.SystemMessageErrorPayload{Kind: kind, Message: err.Error()})
}

// publish sends an event to the room, failures are logged and never fail the job.
func (r *run) publish(ctx context.Context, event string, payload any) {
	if err := r.svc.publisher.Publish(context.WithoutCancel(ctx), r.room, event, payload); err != nil {
		r.logger.Warningf("Could not publish %s event: %s", event, err)
	}
}

func (r *run) stage(ctx context.Context, stage model.JobStage) {
	r.job.Stage = stage
	r.updateJob(ctx)
}

func (r *run) createJob(ctx context.Context) {
	if r.svc.jobs == nil {
		return
	}
	now := time.Now().UTC()
	r.job.CreatedAt = now
	r.job.UpdatedAt = now
	if err := r.svc.jobs.CreateJob(context.WithoutCancel(ctx), r.job); err != nil {
		r.logger.Warningf("Could not record job: %s", err)
	}
}

func (r *run) updateJob(ctx context.Context) {
	if r.svc.jobs == nil {
		return
	}
	r.job.UpdatedAt = time.Now().UTC()
	if err := r.svc.jobs.UpdateJob(context.WithoutCancel(ctx), r.job); err != nil {
		r.logger.Warningf("Could not update job record: %s", err)
	}
}
