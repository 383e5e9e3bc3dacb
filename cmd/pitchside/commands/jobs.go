package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/alecthomas/kingpin/v2"

	"github.com/grakai/pitchside/internal/conventions"
	"github.com/grakai/pitchside/internal/printer"
	"github.com/grakai/pitchside/internal/storage/sqlite"
)

// NewJobsCommand returns the jobs parent command.
func NewJobsCommand(app *kingpin.Application) *kingpin.CmdClause {
	return app.Command("jobs", "Inspect the jobs.")
}

type JobsListCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	sessionID string
	format    string
}

// NewJobsListCommand returns the jobs list command.
func NewJobsListCommand(rootCmd *RootCommand, jobsCmd *kingpin.CmdClause) *JobsListCommand {
	c := &JobsListCommand{rootCmd: rootCmd}

	c.Cmd = jobsCmd.Command("list", "List the jobs, newest first.")
	c.Cmd.Flag("session", "Only the jobs of this session.").Short('s').StringVar(&c.sessionID)
	c.Cmd.Flag("format", "Output format (table, json).").Default("table").EnumVar(&c.format, "table", "json")

	return c
}

func (c JobsListCommand) Name() string { return c.Cmd.FullCommand() }

func (c JobsListCommand) Run(ctx context.Context) error {
	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
		DBPath: conventions.DBPath(c.rootCmd.DataDir),
		Logger: c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create repository: %w", err)
	}
	defer repo.Close()

	jobs, err := repo.ListJobs(ctx, c.sessionID)
	if err != nil {
		return fmt.Errorf("could not list jobs: %w", err)
	}

	if err := newPrinter(c.format, c.rootCmd.Stdout).PrintJobs(jobs); err != nil {
		return fmt.Errorf("could not print jobs: %w", err)
	}

	return nil
}

type JobsGetCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	jobID  string
	format string
}

// NewJobsGetCommand returns the jobs get command.
func NewJobsGetCommand(rootCmd *RootCommand, jobsCmd *kingpin.CmdClause) *JobsGetCommand {
	c := &JobsGetCommand{rootCmd: rootCmd}

	c.Cmd = jobsCmd.Command("get", "Show a job.")
	c.Cmd.Arg("id", "Job ID.").Required().StringVar(&c.jobID)
	c.Cmd.Flag("format", "Output format (table, json).").Default("table").EnumVar(&c.format, "table", "json")

	return c
}

func (c JobsGetCommand) Name() string { return c.Cmd.FullCommand() }

func (c JobsGetCommand) Run(ctx context.Context) error {
	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
		DBPath: conventions.DBPath(c.rootCmd.DataDir),
		Logger: c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create repository: %w", err)
	}
	defer repo.Close()

	job, err := repo.GetJob(ctx, c.jobID)
	if err != nil {
		return fmt.Errorf("could not get job: %w", err)
	}

	if err := newPrinter(c.format, c.rootCmd.Stdout).PrintJob(*job); err != nil {
		return fmt.Errorf("could not print job: %w", err)
	}

	return nil
}

func newPrinter(format string, w io.Writer) printer.Printer {
	if format == "json" {
		return printer.NewJSONPrinter(w)
	}
	return printer.NewTablePrinter(w)
}
