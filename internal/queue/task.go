// Package queue runs jobs asynchronously on workers using a Redis backed task queue.
package queue

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/grakai/pitchside/internal/app/runjob"
	"github.com/grakai/pitchside/internal/model"
	"github.com/grakai/pitchside/internal/storage/mainapi"
)

// TaskTypeRunJob is the task type of the job runs.
const TaskTypeRunJob = "pitchside:run_job"

// DefaultQueue is the queue jobs are enqueued on by default.
const DefaultQueue = "pitchside:default"

type mediaPayload struct {
	SourcePath string `json:"source_path"`
	Extension  string `json:"extension"`
	Model      string `json:"model"`
	Device     string `json:"device,omitempty"`
}

type promptPayload struct {
	Text    string `json:"text"`
	VideoID string `json:"video_id,omitempty"`
	Sender  string `json:"sender,omitempty"`
}

type runJobPayload struct {
	JobID       string              `json:"job_id"`
	SessionID   string              `json:"session_id"`
	Media       *mediaPayload       `json:"media,omitempty"`
	Prompt      *promptPayload      `json:"prompt,omitempty"`
	Credentials mainapi.Credentials `json:"credentials"`
}

func newRunJobTask(req runjob.Request, creds mainapi.Credentials, opts ...asynq.Option) (*asynq.Task, error) {
	p := runJobPayload{
		JobID:       req.JobID,
		SessionID:   req.SessionID,
		Credentials: creds,
	}
	if m := req.Input.Media; m != nil {
		p.Media = &mediaPayload{SourcePath: m.SourcePath, Extension: m.Extension, Model: m.Model, Device: m.Device}
	}
	if pr := req.Input.Prompt; pr != nil {
		p.Prompt = &promptPayload{Text: pr.Text, VideoID: pr.VideoID, Sender: pr.Sender}
	}

	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("could not marshal task payload: %w", err)
	}

	return asynq.NewTask(TaskTypeRunJob, data, opts...), nil
}

func parseRunJobTask(t *asynq.Task) (runjob.Request, mainapi.Credentials, error) {
	var p runJobPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return runjob.Request{}, mainapi.Credentials{}, fmt.Errorf("could not unmarshal task payload: %w: %w", model.ErrNotValid, err)
	}

	req := runjob.Request{JobID: p.JobID, SessionID: p.SessionID}
	if m := p.Media; m != nil {
		req.Input.Media = &model.MediaInput{SourcePath: m.SourcePath, Extension: m.Extension, Model: m.Model, Device: m.Device}
	}
	if pr := p.Prompt; pr != nil {
		req.Input.Prompt = &model.PromptInput{Text: pr.Text, VideoID: pr.VideoID, Sender: pr.Sender}
	}

	return req, p.Credentials, nil
}
