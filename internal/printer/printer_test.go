package printer_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grakai/pitchside/internal/app/history"
	"github.com/grakai/pitchside/internal/model"
	"github.com/grakai/pitchside/internal/printer"
)

var _ printer.Printer = &printer.TablePrinter{}
var _ printer.Printer = &printer.JSONPrinter{}

func jobFixture() model.Job {
	createdAt := time.Date(2026, 1, 30, 10, 0, 0, 0, time.UTC)
	return model.Job{
		ID:        "proj-1-8f0c",
		SessionID: "proj-1",
		Status:    model.JobStatusFailed,
		Stage:     model.JobStageDone,
		Error:     "pipeline failure: boom",
		ClipURL:   "http://localhost:8080/clips/projects/proj-1/clips/proj-1-8f0c.mp4",
		CreatedAt: createdAt,
		UpdatedAt: createdAt.Add(time.Minute),
	}
}

func TestTablePrinterPrintJob(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	err := p.PrintJob(jobFixture())
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Status:   failed")
	assert.Contains(t, out, "Error:    pipeline failure: boom")
	assert.Contains(t, out, "Created:  2026-01-30 10:00:00 UTC")
}

func TestTablePrinterPrintJobs(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	require.NoError(t, p.PrintJobs(nil))
	assert.Empty(t, buf.String())

	require.NoError(t, p.PrintJobs([]model.Job{jobFixture()}))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.Contains(t, lines[1], "proj-1-8f0c")
}

func TestJSONPrinterPrintJob(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewJSONPrinter(&buf)

	err := p.PrintJob(jobFixture())
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"status": "failed"`)
	assert.Contains(t, out, `"stage": "done"`)
	assert.Contains(t, out, `"session_id": "proj-1"`)
}

func TestPrintersPrintOutcome(t *testing.T) {
	outcome := model.JobOutcome{
		JobID:    "proj-1-8f0c",
		Clip:     &model.Clip{VideoID: "proj-1-8f0c", URL: "http://x/clip.mp4"},
		Answer:   "Team A",
		Answered: true,
	}

	var tbuf bytes.Buffer
	require.NoError(t, printer.NewTablePrinter(&tbuf).PrintOutcome(outcome))
	assert.Contains(t, tbuf.String(), "Clip:     http://x/clip.mp4")
	assert.Contains(t, tbuf.String(), "Answer:   Team A")

	var jbuf bytes.Buffer
	require.NoError(t, printer.NewJSONPrinter(&jbuf).PrintOutcome(outcome))
	assert.Contains(t, jbuf.String(), `"clip_url": "http://x/clip.mp4"`)
	assert.Contains(t, jbuf.String(), `"answered": true`)
}

func TestPrintersPrintHistory(t *testing.T) {
	entries := []history.Entry{{ID: "2", Sender: "system", Message: "Team A", VideoID: "v1"}}

	var tbuf bytes.Buffer
	require.NoError(t, printer.NewTablePrinter(&tbuf).PrintHistory(entries))
	assert.Contains(t, tbuf.String(), "Team A")

	var jbuf bytes.Buffer
	require.NoError(t, printer.NewJSONPrinter(&jbuf).PrintHistory(nil))
	assert.Equal(t, "[]", strings.TrimSpace(jbuf.String()))
}

func TestTablePrinterPrintMessage(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	err := p.PrintMessage("ok")
	require.NoError(t, err)
	assert.Equal(t, "ok", strings.TrimSpace(buf.String()))
}
