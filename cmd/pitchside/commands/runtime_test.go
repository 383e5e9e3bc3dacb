package commands

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grakai/pitchside/internal/answer"
	"github.com/grakai/pitchside/internal/app/runjob"
	"github.com/grakai/pitchside/internal/log"
	"github.com/grakai/pitchside/internal/model"
)

func TestLoadRuntimeConfig(t *testing.T) {
	tests := map[string]struct {
		config   string
		explicit bool
		expCfg   model.RuntimeConfig
		expErr   bool
	}{
		"A missing default config should fall back to the fake collaborators": {
			expCfg: model.RuntimeConfig{FakePipeline: &model.FakePipelineConfig{}},
		},
		"A missing explicit config should fail": {
			explicit: true,
			expErr:   true,
		},
		"An existing config should be loaded": {
			config: "agent:\n  fake: {}\npipeline:\n  fake:\n    steps: 2\n  workers: 5\n",
			expCfg: model.RuntimeConfig{
				FakePipeline: &model.FakePipelineConfig{Steps: 2},
				Workers:      5,
			},
		},
		"An invalid config should fail": {
			config: "agent:\n  openai: {}\n",
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			dir := t.TempDir()
			root := RootCommand{DataDir: dir, Logger: log.Noop}
			if test.explicit {
				root.ConfigPath = filepath.Join(dir, "missing.yaml")
			}
			if test.config != "" {
				require.NoError(os.WriteFile(root.RuntimeConfigPath(), []byte(test.config), 0644))
			}

			cfg, err := loadRuntimeConfig(context.Background(), root)
			if test.expErr {
				assert.Error(err)
				return
			}
			require.NoError(err)
			assert.Equal(test.expCfg, cfg)
		})
	}
}

func TestFilterConfig(t *testing.T) {
	tests := map[string]struct {
		cfg    model.FilterConfig
		expCfg answer.FilterConfig
		expErr bool
	}{
		"Empty config should use the default marker and separator": {
			expCfg: answer.FilterConfig{Marker: answer.DefaultMarker, Separator: answer.DefaultSeparator, Mode: answer.StripLiteral},
		},
		"Custom values should be kept": {
			cfg:    model.FilterConfig{Marker: "ANSWER", Separator: "-", StripMode: "charset"},
			expCfg: answer.FilterConfig{Marker: "ANSWER", Separator: "-", Mode: answer.StripCharset},
		},
		"Unknown strip mode should fail": {
			cfg:    model.FilterConfig{StripMode: "regex"},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			cfg, err := filterConfig(test.cfg)
			if test.expErr {
				assert.Error(err)
				return
			}
			assert.NoError(err)
			assert.Equal(test.expCfg, cfg)
		})
	}
}

func TestRunCommandInput(t *testing.T) {
	tests := map[string]struct {
		cmd      RunCommand
		expInput func(dir string) model.JobInput
		expErr   bool
	}{
		"A video should build a media input with the lowercased extension": {
			cmd: RunCommand{videoPath: "match.MP4", model: "yolo", device: "cpu"},
			expInput: func(dir string) model.JobInput {
				return model.JobInput{Media: &model.MediaInput{
					SourcePath: filepath.Join(dir, "match.MP4"),
					Extension:  "mp4",
					Model:      "yolo",
					Device:     "cpu",
				}}
			},
		},
		"A prompt with a video id should build a prompt input": {
			cmd: RunCommand{prompt: "who won?", videoID: "p1-abc", sender: "cli"},
			expInput: func(string) model.JobInput {
				return model.JobInput{Prompt: &model.PromptInput{Text: "who won?", VideoID: "p1-abc", Sender: "cli"}}
			},
		},
		"A prompt without video id or video should fail": {
			cmd:    RunCommand{prompt: "who won?"},
			expErr: true,
		},
		"No video or prompt should fail": {
			cmd:    RunCommand{},
			expErr: true,
		},
		"An unsupported video extension should fail": {
			cmd:    RunCommand{videoPath: "notes.txt", model: "yolo"},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			dir, err := os.Getwd()
			require.NoError(err)

			in, err := test.cmd.input()
			if test.expErr {
				assert.Error(err)
				return
			}
			require.NoError(err)
			assert.Equal(test.expInput(dir), in)
		})
	}
}

func TestNewBackendRunsJobs(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	dir := t.TempDir()
	src := filepath.Join(dir, "match.mp4")
	require.NoError(os.WriteFile(src, []byte("not really a video"), 0644))

	root := &RootCommand{DataDir: dir, Logger: log.Noop}
	b, err := newBackend(context.Background(), root, &backendFlags{
		statusStore: statusStoreMemory,
		pubsub:      pubsubMemory,
		publicURL:   "http://pitchside.test",
	})
	require.NoError(err)
	defer b.Close()

	out, err := b.RunJob.RunJob(context.Background(), runjob.Request{
		SessionID: "p1",
		Input: model.JobInput{
			Media:  &model.MediaInput{SourcePath: src, Extension: "mp4", Model: "yolo"},
			Prompt: &model.PromptInput{Text: "who won?", Sender: "cli"},
		},
	})
	require.NoError(err)
	require.NotNil(out.Clip)
	assert.True(strings.HasPrefix(out.Clip.URL, "http://pitchside.test/clips/projects/p1/clips/p1-"))
	assert.True(strings.HasPrefix(out.JobID, "p1-"))

	status, err := b.Status.GetStatus(context.Background(), "p1")
	require.NoError(err)
	assert.Equal(model.SessionStatusIdle, status)

	entries, err := b.History.List(context.Background(), "p1")
	require.NoError(err)
	assert.NotEmpty(entries)
}
