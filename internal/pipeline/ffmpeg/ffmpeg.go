package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/grakai/pitchside/internal/log"
	"github.com/grakai/pitchside/internal/pipeline"
)

// PipelineConfig is the configuration of the ffmpeg pipeline.
type PipelineConfig struct {
	// FFmpegPath and FFprobePath default to the binaries found in PATH.
	FFmpegPath  string
	FFprobePath string
	// Preset is the x264 preset.
	Preset string
	Logger log.Logger
}

func (c *PipelineConfig) defaults() error {
	var err error
	if c.FFmpegPath == "" {
		c.FFmpegPath, err = exec.LookPath("ffmpeg")
		if err != nil {
			return fmt.Errorf("ffmpeg not found in PATH: %w", err)
		}
	}
	if c.FFprobePath == "" {
		c.FFprobePath, err = exec.LookPath("ffprobe")
		if err != nil {
			return fmt.Errorf("ffprobe not found in PATH: %w", err)
		}
	}
	if c.Preset == "" {
		c.Preset = "veryfast"
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "pipeline.FFmpeg"})
	return nil
}

// Pipeline transcodes videos with ffmpeg into H.264 MP4 clips, reporting progress from
// the ffmpeg progress output.
type Pipeline struct {
	ffmpegPath  string
	ffprobePath string
	preset      string
	logger      log.Logger
}

// NewPipeline returns a new ffmpeg pipeline.
func NewPipeline(cfg PipelineConfig) (*Pipeline, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Pipeline{
		ffmpegPath:  cfg.FFmpegPath,
		ffprobePath: cfg.FFprobePath,
		preset:      cfg.Preset,
		logger:      cfg.Logger,
	}, nil
}

// Process transcodes the source into the destination.
func (p *Pipeline) Process(ctx context.Context, req pipeline.Request, report func(percentage int)) error {
	logger := p.logger.WithCtxValues(ctx)

	durationUs, err := p.probeDuration(ctx, req.Source)
	if err != nil {
		return fmt.Errorf("could not probe video: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(req.Destination), 0755); err != nil {
		return fmt.Errorf("could not create destination directory: %w", err)
	}

	cmd := exec.CommandContext(ctx, p.ffmpegPath, p.args(req)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("could not get ffmpeg stdout: %w", err)
	}

	logger.Debugf("Running ffmpeg on %s (model: %s, device: %s)", req.Source, req.Model, req.Device)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("could not start ffmpeg: %w", err)
	}

	parseErr := parseProgress(stdout, durationUs, report)
	// Drain anything left so ffmpeg never blocks on a full pipe.
	_, _ = io.Copy(io.Discard, stdout)

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	if parseErr != nil {
		return fmt.Errorf("could not read ffmpeg progress: %w", parseErr)
	}

	logger.Debugf("Video processed into %s", req.Destination)
	return nil
}

func (p *Pipeline) args(req pipeline.Request) []string {
	args := []string{"-y", "-hide_banner", "-nostats", "-loglevel", "error"}
	if req.Device == "cuda" {
		args = append(args, "-hwaccel", "cuda")
	}
	args = append(args,
		"-i", req.Source,
		"-c:v", "libx264",
		"-preset", p.preset,
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-movflags", "+faststart",
	)
	if req.Model != "" {
		args = append(args, "-metadata", "comment=model="+req.Model)
	}
	args = append(args, "-progress", "pipe:1", "-f", "mp4", req.Destination)
	return args
}

func (p *Pipeline) probeDuration(ctx context.Context, src string) (int64, error) {
	cmd := exec.CommandContext(ctx, p.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		src,
	)

	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}

	return parseDuration(string(out))
}

// parseDuration parses a ffprobe duration in seconds into microseconds.
func parseDuration(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "N/A" {
		return 0, nil
	}

	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return int64(secs * 1_000_000), nil
}

// parseProgress reads ffmpeg "-progress" key=value blocks and reports increasing
// percentages. 100 is only reported on progress=end. Without duration only the end
// is reported.
func parseProgress(r io.Reader, durationUs int64, report func(percentage int)) error {
	last := 0
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok {
			continue
		}

		switch key {
		// out_time_ms is in microseconds too.
		case "out_time_us", "out_time_ms":
			if durationUs <= 0 {
				continue
			}
			us, err := strconv.ParseInt(value, 10, 64)
			if err != nil || us < 0 {
				continue
			}
			pct := int(us * 100 / durationUs)
			if pct > 99 {
				pct = 99
			}
			if pct > last {
				last = pct
				report(pct)
			}
		case "progress":
			if value == "end" && last < 100 {
				last = 100
				report(100)
			}
		}
	}

	return scanner.Err()
}
