package model

import (
	"fmt"
	"time"
)

// SessionStatus is the processing state of a session (project).
type SessionStatus string

const (
	SessionStatusIdle       SessionStatus = "idle"
	SessionStatusProcessing SessionStatus = "processing"
)

// JobStatus represents the state of a job.
type JobStatus string

const (
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// JobStage is the step of a job that is currently executing.
type JobStage string

const (
	JobStageGuarding        JobStage = "guarding"
	JobStageProcessingMedia JobStage = "processing_media"
	JobStageQueryingAgent   JobStage = "querying_agent"
	JobStageReleasing       JobStage = "releasing"
	JobStageDone            JobStage = "done"
)

// Job is one run of the media and/or agent pipeline for a session.
type Job struct {
	ID        string
	SessionID string
	Status    JobStatus
	Stage     JobStage
	Error     string
	ClipURL   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MediaInput is a video that needs to be processed.
type MediaInput struct {
	// SourcePath is the local path of the uploaded video.
	SourcePath string
	// Extension without dot (e.g. mp4).
	Extension string
	// Model is the analysis model name the pipeline should use.
	Model string
	// Device is the pipeline device hint (e.g. cpu, cuda).
	Device string
}

// PromptInput is a question for the agent.
type PromptInput struct {
	Text string
	// VideoID is the clip the question is about.
	VideoID string
	// Sender is the user that asked the question.
	Sender string
}

// JobInput is the input of a job, media, prompt or both.
type JobInput struct {
	Media  *MediaInput
	Prompt *PromptInput
}

// Validate validates the job input.
func (j JobInput) Validate() error {
	if j.Media == nil && j.Prompt == nil {
		return fmt.Errorf("media or prompt is required: %w", ErrNotValid)
	}

	if j.Media != nil {
		if j.Media.SourcePath == "" {
			return fmt.Errorf("media source path is required: %w", ErrNotValid)
		}
		if j.Media.Model == "" {
			return fmt.Errorf("media model is required: %w", ErrNotValid)
		}
		if !IsVideoExtension(j.Media.Extension) {
			return fmt.Errorf("extension %q is not a supported video format: %w", j.Media.Extension, ErrNotValid)
		}
	}

	if j.Prompt != nil {
		if j.Prompt.Text == "" {
			return fmt.Errorf("prompt text is required: %w", ErrNotValid)
		}
		// Without media on the same job the prompt must point to an existing clip.
		if j.Media == nil && j.Prompt.VideoID == "" {
			return fmt.Errorf("video id is required for prompt only jobs: %w", ErrNotValid)
		}
	}

	return nil
}

// JobOutcome carries the artifacts produced by a job.
type JobOutcome struct {
	JobID     string
	SessionID string
	// Clip is set when media was processed.
	Clip *Clip
	// Answer is the filtered final answer, empty when the agent never answered.
	Answer   string
	Answered bool
}

// Clip is a processed video registered for a session.
type Clip struct {
	VideoID     string
	SessionID   string
	URL         string
	ContentType string
	CreatedAt   time.Time
}

var videoExtensions = map[string]struct{}{
	"mp4": {}, "mov": {}, "avi": {}, "mkv": {}, "webm": {}, "flv": {},
	"wmv": {}, "mpeg": {}, "mpg": {}, "m4v": {}, "3gp": {}, "3g2": {},
}

// IsVideoExtension returns true if the extension (without dot) is an accepted video format.
func IsVideoExtension(ext string) bool {
	_, ok := videoExtensions[ext]
	return ok
}

// VideoContentType returns the content type for a video extension.
func VideoContentType(ext string) string {
	switch ext {
	case "mp4", "m4v":
		return "video/mp4"
	case "mov":
		return "video/quicktime"
	case "avi":
		return "video/x-msvideo"
	case "mkv":
		return "video/x-matroska"
	case "webm":
		return "video/webm"
	case "flv":
		return "video/x-flv"
	case "wmv":
		return "video/x-ms-wmv"
	case "mpeg", "mpg":
		return "video/mpeg"
	case "3gp":
		return "video/3gpp"
	case "3g2":
		return "video/3gpp2"
	}
	return "application/octet-stream"
}
