package fake

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/grakai/pitchside/internal/log"
	"github.com/grakai/pitchside/internal/pipeline"
)

// PipelineConfig is the configuration of the fake pipeline.
type PipelineConfig struct {
	// Steps is the number of progress reports.
	Steps int
	// StepDelay is the time each step takes.
	StepDelay time.Duration
	Logger    log.Logger
}

func (c *PipelineConfig) defaults() error {
	if c.Steps < 0 {
		return fmt.Errorf("steps can't be negative")
	}
	if c.Steps == 0 {
		c.Steps = 4
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "pipeline.Fake"})
	return nil
}

// Pipeline copies the source video into the destination in chunks, one per step.
type Pipeline struct {
	steps     int
	stepDelay time.Duration
	logger    log.Logger
}

// NewPipeline returns a new fake pipeline.
func NewPipeline(cfg PipelineConfig) (*Pipeline, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Pipeline{
		steps:     cfg.Steps,
		stepDelay: cfg.StepDelay,
		logger:    cfg.Logger,
	}, nil
}

// Process copies the source into the destination reporting progress after each chunk.
func (p *Pipeline) Process(ctx context.Context, req pipeline.Request, report func(percentage int)) error {
	src, err := os.Open(req.Source)
	if err != nil {
		return fmt.Errorf("could not open source: %w", err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return fmt.Errorf("could not stat source: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(req.Destination), 0755); err != nil {
		return fmt.Errorf("could not create destination directory: %w", err)
	}
	dst, err := os.Create(req.Destination)
	if err != nil {
		return fmt.Errorf("could not create destination: %w", err)
	}
	defer dst.Close()

	chunk := info.Size() / int64(p.steps)
	for i := 1; i <= p.steps; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		n := chunk
		if i == p.steps {
			n = info.Size() - chunk*int64(p.steps-1)
		}
		if _, err := io.CopyN(dst, src, n); err != nil {
			return fmt.Errorf("could not copy video: %w", err)
		}

		if p.stepDelay > 0 {
			time.Sleep(p.stepDelay)
		}
		report(i * 100 / p.steps)
	}

	p.logger.Debugf("Fake processed %s into %s", req.Source, req.Destination)
	return dst.Close()
}
