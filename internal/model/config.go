package model

import "time"

// RuntimeConfig is the configuration of the job collaborators.
type RuntimeConfig struct {
	// OpenAIAgent is set when the agent is an OpenAI compatible API, nil uses the fake agent.
	OpenAIAgent *OpenAIAgentConfig
	Filter      FilterConfig
	// FFmpegPipeline is set when videos are processed with ffmpeg, nil uses the fake pipeline.
	FFmpegPipeline *FFmpegPipelineConfig
	FakePipeline   *FakePipelineConfig
	// Device is the pipeline device hint (cpu, cuda...).
	Device string
	// Workers is the size of the pipeline worker pool.
	Workers int
}

// OpenAIAgentConfig is the configuration of an OpenAI compatible agent.
type OpenAIAgentConfig struct {
	BaseURL      string
	Model        string
	SystemPrompt string
	Temperature  float64
	MaxHistory   int
	Timeout      time.Duration
}

// FilterConfig is the configuration of the final answer filter.
type FilterConfig struct {
	Marker    string
	Separator string
	// StripMode is literal or charset.
	StripMode string
}

// FFmpegPipelineConfig is the configuration of the ffmpeg pipeline.
type FFmpegPipelineConfig struct {
	FFmpegPath  string
	FFprobePath string
	Preset      string
}

// FakePipelineConfig is the configuration of the fake pipeline.
type FakePipelineConfig struct {
	Steps     int
	StepDelay time.Duration
}
