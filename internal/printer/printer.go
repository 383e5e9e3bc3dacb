package printer

import (
	"github.com/grakai/pitchside/internal/app/history"
	"github.com/grakai/pitchside/internal/model"
)

// Printer knows how to print job information in different formats.
type Printer interface {
	PrintJobs(jobs []model.Job) error
	PrintJob(job model.Job) error
	PrintOutcome(outcome model.JobOutcome) error
	PrintHistory(entries []history.Entry) error
	PrintMessage(msg string) error
}
