package io

import (
	"context"
	"fmt"
	"io/fs"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/grakai/pitchside/internal/answer"
	"github.com/grakai/pitchside/internal/model"
)

// ConfigYAMLRepository loads the runtime configuration from YAML files.
type ConfigYAMLRepository struct {
	fs fs.FS
}

// NewConfigYAMLRepository creates a new YAML config repository.
func NewConfigYAMLRepository(filesystem fs.FS) *ConfigYAMLRepository {
	return &ConfigYAMLRepository{fs: filesystem}
}

// GetConfig loads a runtime configuration from a YAML file and returns a validated domain model.
func (r *ConfigYAMLRepository) GetConfig(ctx context.Context, path string) (model.RuntimeConfig, error) {
	data, err := fs.ReadFile(r.fs, path)
	if err != nil {
		return model.RuntimeConfig{}, fmt.Errorf("reading config file: %w", err)
	}

	if ctx.Err() != nil {
		return model.RuntimeConfig{}, ctx.Err()
	}

	var cfg RuntimeConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return model.RuntimeConfig{}, fmt.Errorf("parsing YAML: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return model.RuntimeConfig{}, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg.toModel(), nil
}

// RuntimeConfig represents the YAML structure for the runtime configuration.
type RuntimeConfig struct {
	Agent    AgentConfig    `yaml:"agent"`
	Filter   FilterConfig   `yaml:"filter"`
	Pipeline PipelineConfig `yaml:"pipeline"`
}

// AgentConfig represents the YAML structure for agent configuration.
type AgentConfig struct {
	OpenAI *OpenAIAgentConfig `yaml:"openai,omitempty"`
	Fake   *struct{}          `yaml:"fake,omitempty"`
}

// OpenAIAgentConfig represents the YAML structure for an OpenAI compatible agent.
type OpenAIAgentConfig struct {
	BaseURL      string        `yaml:"base_url"`
	Model        string        `yaml:"model"`
	SystemPrompt string        `yaml:"system_prompt"`
	Temperature  float64       `yaml:"temperature"`
	MaxHistory   int           `yaml:"max_history"`
	Timeout      time.Duration `yaml:"timeout"`
}

// FilterConfig represents the YAML structure for the final answer filter.
type FilterConfig struct {
	Marker    string `yaml:"marker"`
	Separator string `yaml:"separator"`
	StripMode string `yaml:"strip_mode"`
}

// PipelineConfig represents the YAML structure for pipeline configuration.
type PipelineConfig struct {
	FFmpeg  *FFmpegPipelineConfig `yaml:"ffmpeg,omitempty"`
	Fake    *FakePipelineConfig   `yaml:"fake,omitempty"`
	Device  string                `yaml:"device"`
	Workers int                   `yaml:"workers"`
}

// FFmpegPipelineConfig represents the YAML structure for the ffmpeg pipeline.
type FFmpegPipelineConfig struct {
	FFmpegPath  string `yaml:"ffmpeg_path"`
	FFprobePath string `yaml:"ffprobe_path"`
	Preset      string `yaml:"preset"`
}

// FakePipelineConfig represents the YAML structure for the fake pipeline.
type FakePipelineConfig struct {
	Steps     int           `yaml:"steps"`
	StepDelay time.Duration `yaml:"step_delay"`
}

func (c RuntimeConfig) validate() error {
	if c.Agent.OpenAI != nil && c.Agent.Fake != nil {
		return fmt.Errorf("only one agent can be specified at a time")
	}
	if c.Agent.OpenAI != nil && c.Agent.OpenAI.Model == "" {
		return fmt.Errorf("openai agent model is required")
	}
	if c.Agent.OpenAI != nil && c.Agent.OpenAI.MaxHistory < 0 {
		return fmt.Errorf("openai agent max_history can't be negative, got: %d", c.Agent.OpenAI.MaxHistory)
	}

	if _, err := answer.ParseStripMode(c.Filter.StripMode); err != nil {
		return fmt.Errorf("filter: %w", err)
	}

	// Ensure at most one pipeline is specified
	if c.Pipeline.FFmpeg != nil && c.Pipeline.Fake != nil {
		return fmt.Errorf("only one pipeline can be specified at a time")
	}
	if c.Pipeline.Workers < 0 {
		return fmt.Errorf("pipeline workers can't be negative, got: %d", c.Pipeline.Workers)
	}
	if c.Pipeline.Fake != nil && c.Pipeline.Fake.Steps < 0 {
		return fmt.Errorf("fake pipeline steps can't be negative, got: %d", c.Pipeline.Fake.Steps)
	}
	return nil
}

func (c RuntimeConfig) toModel() model.RuntimeConfig {
	cfg := model.RuntimeConfig{
		Filter: model.FilterConfig{
			Marker:    c.Filter.Marker,
			Separator: c.Filter.Separator,
			StripMode: c.Filter.StripMode,
		},
		Device:  c.Pipeline.Device,
		Workers: c.Pipeline.Workers,
	}

	if a := c.Agent.OpenAI; a != nil {
		cfg.OpenAIAgent = &model.OpenAIAgentConfig{
			BaseURL:      a.BaseURL,
			Model:        a.Model,
			SystemPrompt: a.SystemPrompt,
			Temperature:  a.Temperature,
			MaxHistory:   a.MaxHistory,
			Timeout:      a.Timeout,
		}
	}

	if p := c.Pipeline.FFmpeg; p != nil {
		cfg.FFmpegPipeline = &model.FFmpegPipelineConfig{
			FFmpegPath:  p.FFmpegPath,
			FFprobePath: p.FFprobePath,
			Preset:      p.Preset,
		}
	}
	if p := c.Pipeline.Fake; p != nil {
		cfg.FakePipeline = &model.FakePipelineConfig{
			Steps:     p.Steps,
			StepDelay: p.StepDelay,
		}
	}

	return cfg
}
