package printer

import (
	"encoding/json"
	"io"
	"time"

	"github.com/grakai/pitchside/internal/app/history"
	"github.com/grakai/pitchside/internal/model"
)

// JSONPrinter prints job information in JSON format.
type JSONPrinter struct {
	writer io.Writer
}

// NewJSONPrinter creates a new JSON printer.
func NewJSONPrinter(w io.Writer) *JSONPrinter {
	return &JSONPrinter{writer: w}
}

// jobOutput represents a job.
type jobOutput struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Status    string    `json:"status"`
	Stage     string    `json:"stage"`
	Error     string    `json:"error,omitempty"`
	ClipURL   string    `json:"clip_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// outcomeOutput represents a job run result.
type outcomeOutput struct {
	JobID    string `json:"job_id"`
	VideoID  string `json:"video_id,omitempty"`
	ClipURL  string `json:"clip_url,omitempty"`
	Answer   string `json:"answer,omitempty"`
	Answered bool   `json:"answered"`
}

// messageOutput represents a simple message output.
type messageOutput struct {
	Message string `json:"message"`
}

func toJobOutput(j model.Job) jobOutput {
	return jobOutput{
		ID:        j.ID,
		SessionID: j.SessionID,
		Status:    string(j.Status),
		Stage:     string(j.Stage),
		Error:     j.Error,
		ClipURL:   j.ClipURL,
		CreatedAt: j.CreatedAt.UTC(),
		UpdatedAt: j.UpdatedAt.UTC(),
	}
}

// PrintJobs prints jobs in JSON format.
func (j *JSONPrinter) PrintJobs(jobs []model.Job) error {
	items := make([]jobOutput, len(jobs))
	for i, job := range jobs {
		items[i] = toJobOutput(job)
	}
	return j.encode(items)
}

// PrintJob prints a job in JSON format.
func (j *JSONPrinter) PrintJob(job model.Job) error {
	return j.encode(toJobOutput(job))
}

// PrintOutcome prints a job run result in JSON format.
func (j *JSONPrinter) PrintOutcome(o model.JobOutcome) error {
	output := outcomeOutput{JobID: o.JobID, Answer: o.Answer, Answered: o.Answered}
	if o.Clip != nil {
		output.VideoID = o.Clip.VideoID
		output.ClipURL = o.Clip.URL
	}
	return j.encode(output)
}

// PrintHistory prints the chat history in JSON format.
func (j *JSONPrinter) PrintHistory(entries []history.Entry) error {
	if entries == nil {
		entries = []history.Entry{}
	}
	return j.encode(entries)
}

// PrintMessage prints a simple message in JSON format.
func (j *JSONPrinter) PrintMessage(msg string) error {
	return j.encode(messageOutput{Message: msg})
}

func (j *JSONPrinter) encode(v any) error {
	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
