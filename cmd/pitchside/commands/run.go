package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kingpin/v2"

	"github.com/grakai/pitchside/internal/app/runjob"
	"github.com/grakai/pitchside/internal/model"
)

type RunCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand
	backend *backendFlags

	sessionID string
	videoPath string
	model     string
	device    string
	prompt    string
	videoID   string
	sender    string
	follow    bool
	format    string
}

// NewRunCommand returns the run command.
func NewRunCommand(rootCmd *RootCommand, app *kingpin.Application) *RunCommand {
	c := &RunCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("run", "Run a job locally.")
	c.backend = registerBackendFlags(c.Cmd)
	c.Cmd.Flag("session", "Session (project) ID the job belongs to.").Short('s').Required().StringVar(&c.sessionID)
	c.Cmd.Flag("video", "Video file to process.").StringVar(&c.videoPath)
	c.Cmd.Flag("model", "Model used to process the video.").Default("default").StringVar(&c.model)
	c.Cmd.Flag("device", "Pipeline device, defaults to the runtime config one.").StringVar(&c.device)
	c.Cmd.Flag("prompt", "Question for the agent.").Short('p').StringVar(&c.prompt)
	c.Cmd.Flag("video-id", "Clip the question is about, defaults to the processed video.").StringVar(&c.videoID)
	c.Cmd.Flag("sender", "Sender of the question.").Default("cli").StringVar(&c.sender)
	c.Cmd.Flag("follow", "Print the room events while the job runs.").BoolVar(&c.follow)
	c.Cmd.Flag("format", "Output format (table, json).").Default("table").EnumVar(&c.format, "table", "json")

	return c
}

func (c RunCommand) Name() string { return c.Cmd.FullCommand() }

func (c RunCommand) Run(ctx context.Context) error {
	in, err := c.input()
	if err != nil {
		return err
	}

	b, err := newBackend(ctx, c.rootCmd, c.backend)
	if err != nil {
		return err
	}
	defer b.Close()

	if in.Media != nil && in.Media.Device == "" {
		in.Media.Device = b.Config.Device
	}

	stop, err := c.followEvents(ctx, b)
	if err != nil {
		return err
	}

	outcome, err := b.RunJob.RunJob(ctx, runjob.Request{
		SessionID: c.sessionID,
		Input:     in,
	})
	stop()
	if err != nil {
		return fmt.Errorf("job failed: %w", err)
	}

	if err := newPrinter(c.format, c.rootCmd.Stdout).PrintOutcome(*outcome); err != nil {
		return fmt.Errorf("could not print outcome: %w", err)
	}

	return nil
}

// followEvents prints the room events on stderr until the returned func is called.
func (c RunCommand) followEvents(ctx context.Context, b *backend) (stop func(), err error) {
	if !c.follow {
		return func() {}, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	events, err := b.Subscriber.Subscribe(ctx, c.sessionID)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("could not subscribe to room: %w", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range events {
			fmt.Fprintf(c.rootCmd.Stderr, "%s %s\n", msg.Event, msg.Payload)
		}
	}()

	return func() {
		cancel()
		<-done
	}, nil
}

func (c RunCommand) input() (model.JobInput, error) {
	var in model.JobInput

	if c.videoPath != "" {
		path, err := filepath.Abs(c.videoPath)
		if err != nil {
			return in, fmt.Errorf("could not resolve video path: %w", err)
		}
		in.Media = &model.MediaInput{
			SourcePath: path,
			Extension:  strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."),
			Model:      c.model,
			Device:     c.device,
		}
	}

	if c.prompt != "" {
		in.Prompt = &model.PromptInput{
			Text:    c.prompt,
			VideoID: c.videoID,
			Sender:  c.sender,
		}
	}

	if err := in.Validate(); err != nil {
		return in, fmt.Errorf("invalid job: %w", err)
	}

	return in, nil
}
