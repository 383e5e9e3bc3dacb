package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/grakai/pitchside/internal/app/history"
	"github.com/grakai/pitchside/internal/conventions"
	"github.com/grakai/pitchside/internal/storage/sqlite"
)

type HistoryCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	sessionID string
	format    string
}

// NewHistoryCommand returns the history command.
func NewHistoryCommand(rootCmd *RootCommand, app *kingpin.Application) *HistoryCommand {
	c := &HistoryCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("history", "Show the chat history of a session.")
	c.Cmd.Arg("session", "Session (project) ID.").Required().StringVar(&c.sessionID)
	c.Cmd.Flag("format", "Output format (table, json).").Default("table").EnumVar(&c.format, "table", "json")

	return c
}

func (c HistoryCommand) Name() string { return c.Cmd.FullCommand() }

func (c HistoryCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	cfg, err := loadRuntimeConfig(ctx, *c.rootCmd)
	if err != nil {
		return err
	}
	filter, err := filterConfig(cfg.Filter)
	if err != nil {
		return err
	}

	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
		DBPath: conventions.DBPath(c.rootCmd.DataDir),
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("could not create repository: %w", err)
	}
	defer repo.Close()

	historyRepo, err := sqlite.NewHistoryRepository(sqlite.HistoryRepositoryConfig{DB: repo.DB(), Logger: logger})
	if err != nil {
		return fmt.Errorf("could not create history repository: %w", err)
	}

	svc, err := history.NewService(history.ServiceConfig{
		Repository: historyRepo,
		Marker:     filter.Marker,
		Separator:  filter.Separator,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	entries, err := svc.List(ctx, c.sessionID)
	if err != nil {
		return fmt.Errorf("could not list history: %w", err)
	}

	if err := newPrinter(c.format, c.rootCmd.Stdout).PrintHistory(entries); err != nil {
		return fmt.Errorf("could not print history: %w", err)
	}

	return nil
}
