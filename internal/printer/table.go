package printer

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/grakai/pitchside/internal/app/history"
	"github.com/grakai/pitchside/internal/model"
)

// TablePrinter prints job information in a table format.
type TablePrinter struct {
	writer io.Writer
}

// NewTablePrinter creates a new table printer.
func NewTablePrinter(w io.Writer) *TablePrinter {
	return &TablePrinter{writer: w}
}

// PrintJobs prints jobs in a table format.
func (t *TablePrinter) PrintJobs(jobs []model.Job) error {
	if len(jobs) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "ID\tSESSION\tSTATUS\tSTAGE\tCREATED")
	for _, j := range jobs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", j.ID, j.SessionID, j.Status, j.Stage, TimeAgo(j.CreatedAt))
	}

	return nil
}

// PrintJob prints detailed job information.
func (t *TablePrinter) PrintJob(job model.Job) error {
	fmt.Fprintf(t.writer, "ID:       %s\n", job.ID)
	fmt.Fprintf(t.writer, "Session:  %s\n", job.SessionID)
	fmt.Fprintf(t.writer, "Status:   %s\n", job.Status)
	fmt.Fprintf(t.writer, "Stage:    %s\n", job.Stage)
	if job.ClipURL != "" {
		fmt.Fprintf(t.writer, "Clip:     %s\n", job.ClipURL)
	}
	if job.Error != "" {
		fmt.Fprintf(t.writer, "Error:    %s\n", job.Error)
	}
	fmt.Fprintf(t.writer, "Created:  %s\n", FormatTimestamp(job.CreatedAt))
	fmt.Fprintf(t.writer, "Updated:  %s\n", FormatTimestamp(job.UpdatedAt))

	return nil
}

// PrintOutcome prints the result of a job run.
func (t *TablePrinter) PrintOutcome(o model.JobOutcome) error {
	fmt.Fprintf(t.writer, "Job:      %s\n", o.JobID)
	if o.Clip != nil {
		fmt.Fprintf(t.writer, "Video:    %s\n", o.Clip.VideoID)
		fmt.Fprintf(t.writer, "Clip:     %s\n", o.Clip.URL)
	}
	if o.Answered {
		fmt.Fprintf(t.writer, "Answer:   %s\n", o.Answer)
	}

	return nil
}

// PrintHistory prints the chat history in a table format.
func (t *TablePrinter) PrintHistory(entries []history.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "SENDER\tVIDEO\tWHEN\tMESSAGE")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Sender, e.VideoID, TimeAgo(e.CreatedAt), e.Message)
	}

	return nil
}

// PrintMessage prints a simple text message.
func (t *TablePrinter) PrintMessage(msg string) error {
	fmt.Fprintln(t.writer, msg)
	return nil
}
