package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/grakai/pitchside/internal/app/runjob"
	"github.com/grakai/pitchside/internal/model"
	"github.com/grakai/pitchside/internal/storage/mainapi"
)

const maxPromptLength = 1000

type predictResponse struct {
	JobID    string `json:"job_id"`
	TaskID   string `json:"task_id,omitempty"`
	VideoID  string `json:"video_id,omitempty"`
	URL      string `json:"url,omitempty"`
	Answer   string `json:"answer,omitempty"`
	Answered bool   `json:"answered"`
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := s.logger.WithCtxValues(ctx)
	sessionID := chi.URLParam(r, "project_id")

	id, ok := IdentityFromContext(ctx)
	if !ok || id.Email == "" {
		writeErr(w, http.StatusBadRequest, errors.New("could not determine sender"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeErrFor(w, fmt.Errorf("parse multipart: %w: %w", model.ErrNotValid, err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	jobID := sessionID + "-" + uuid.NewString()
	input, err := s.predictInput(r, jobID, id.Email)
	if err != nil {
		writeErrFor(w, err)
		return
	}
	// Uploads belong to the job from here, inline jobs are done with them when they return.
	uploaded := input.Media != nil
	cleanup := func() {
		if uploaded {
			if err := os.Remove(input.Media.SourcePath); err != nil && !errors.Is(err, os.ErrNotExist) {
				logger.Warningf("Could not remove upload %s: %s", input.Media.SourcePath, err)
			}
		}
	}

	creds := mainapi.CredentialsFromRequest(r)
	req := runjob.Request{SessionID: sessionID, JobID: jobID, Input: input}

	if s.enqueuer != nil {
		if err := s.checkIdle(mainapi.WithCredentials(ctx, creds), sessionID); err != nil {
			cleanup()
			writeErrFor(w, err)
			return
		}
		taskID, err := s.enqueuer.Enqueue(ctx, req, creds)
		if err != nil {
			cleanup()
			writeErrFor(w, fmt.Errorf("could not enqueue job: %w", err))
			return
		}
		logger.Infof("Job %s enqueued as task %s", jobID, taskID)
		writeJSON(w, http.StatusAccepted, predictResponse{JobID: jobID, TaskID: taskID})
		return
	}

	defer cleanup()
	outcome, err := s.runner.RunJob(mainapi.WithCredentials(ctx, creds), req)
	if err != nil {
		writeErrFor(w, err)
		return
	}

	resp := predictResponse{JobID: outcome.JobID, Answer: outcome.Answer, Answered: outcome.Answered}
	if outcome.Clip != nil {
		resp.VideoID = outcome.Clip.VideoID
		resp.URL = outcome.Clip.URL
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) predictInput(r *http.Request, jobID, sender string) (model.JobInput, error) {
	var input model.JobInput

	modelName := strings.ToLower(strings.TrimSpace(r.FormValue("model")))
	prompt := strings.TrimSpace(r.FormValue("prompt"))
	videoID := r.FormValue("video_id")

	if len(prompt) > maxPromptLength {
		return input, fmt.Errorf("prompt is longer than %d characters: %w", maxPromptLength, model.ErrNotValid)
	}

	file, header, err := r.FormFile("file")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		if prompt == "" || videoID == "" {
			return input, fmt.Errorf("either file or (prompt and video_id) must be provided: %w", model.ErrNotValid)
		}
	case err != nil:
		return input, fmt.Errorf("could not read file: %w: %w", model.ErrNotValid, err)
	default:
		defer file.Close()
		if modelName == "" {
			return input, fmt.Errorf("model is required: %w", model.ErrNotValid)
		}
		media, err := s.saveUpload(file, header, jobID)
		if err != nil {
			return input, err
		}
		media.Model = modelName
		media.Device = s.device
		input.Media = media
	}

	if prompt != "" {
		input.Prompt = &model.PromptInput{Text: prompt, VideoID: videoID, Sender: sender}
	}

	if err := input.Validate(); err != nil {
		if input.Media != nil {
			_ = os.Remove(input.Media.SourcePath)
		}
		return model.JobInput{}, err
	}

	return input, nil
}

// errUnsupportedMedia is returned for uploads that are not an accepted video.
var errUnsupportedMedia = errors.New("unsupported file type")

func (s *Server) saveUpload(file multipart.File, header *multipart.FileHeader, jobID string) (*model.MediaInput, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(header.Filename)), ".")
	mediaType := header.Header.Get("Content-Type")
	if !model.IsVideoExtension(ext) || (mediaType != "" && !strings.HasPrefix(mediaType, "video/")) {
		return nil, fmt.Errorf("%w: %q (%s)", errUnsupportedMedia, header.Filename, mediaType)
	}

	if err := os.MkdirAll(s.uploadDir, 0755); err != nil {
		return nil, fmt.Errorf("could not create upload directory: %w", err)
	}
	path := filepath.Join(s.uploadDir, jobID+"."+ext)
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("could not store upload: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, file); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("could not store upload: %w", err)
	}

	return &model.MediaInput{SourcePath: path, Extension: ext}, nil
}

func (s *Server) checkIdle(ctx context.Context, sessionID string) error {
	if s.status == nil {
		return nil
	}
	st, err := s.status.GetStatus(ctx, sessionID)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return fmt.Errorf("could not get session status: %w: %w", model.ErrUpstreamUnavailable, err)
	}
	if st == model.SessionStatusProcessing {
		return fmt.Errorf("session %s: %w", sessionID, model.ErrAlreadyProcessing)
	}
	return nil
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	entries, err := s.history.List(r.Context(), chi.URLParam(r, "project_id"))
	if err != nil {
		writeErrFor(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": entries})
}

func (s *Server) handleRoomEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	room := chi.URLParam(r, "room")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeErr(w, http.StatusInternalServerError, errors.New("streaming unsupported"))
		return
	}

	msgs, err := s.subscriber.Subscribe(ctx, room)
	if err != nil {
		writeErrFor(w, fmt.Errorf("could not subscribe: %w: %w", model.ErrUpstreamUnavailable, err))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, ": joined %s\n\n", room)
	flusher.Flush()

	keepAlive := time.NewTicker(s.keepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-keepAlive.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			payload := msg.Payload
			if len(payload) == 0 {
				payload = json.RawMessage("{}")
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Event, payload)
			flusher.Flush()
		}
	}
}
