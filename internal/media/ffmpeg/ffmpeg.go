// Package ffmpeg runs the ffmpeg binary for stream muxing and audio
// transcode, with line-oriented progress reporting.
package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"ytcourier/internal/logging"
	"ytcourier/internal/services"
)

// Runner invokes ffmpeg.
type Runner struct {
	binary string
	logger *slog.Logger
}

// NewRunner constructs a Runner for the given ffmpeg binary.
func NewRunner(binary string, logger *slog.Logger) *Runner {
	if binary == "" {
		binary = "ffmpeg"
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{binary: binary, logger: logger}
}

// Mux combines a video-only stream and an audio stream into a single MP4
// container without re-encoding.
func (r *Runner) Mux(ctx context.Context, videoPath, audioPath, outPath string) error {
	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", videoPath,
		"-i", audioPath,
		"-c", "copy",
		"-movflags", "+faststart",
		outPath,
	}
	return r.run(ctx, "mux", args, 0, nil)
}

// TranscodeMP3 re-encodes the audio of in to a 192 kbps MP3. When duration
// is known, onPercent receives transcode progress in [0, 100].
func (r *Runner) TranscodeMP3(ctx context.Context, inPath, outPath string, duration time.Duration, onPercent func(float64)) error {
	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", inPath,
		"-vn",
		"-codec:a", "libmp3lame",
		"-b:a", "192k",
		"-progress", "pipe:1", "-nostats",
		outPath,
	}
	return r.run(ctx, "transcode", args, duration, onPercent)
}

func (r *Runner) run(ctx context.Context, operation string, args []string, duration time.Duration, onPercent func(float64)) error {
	cmd := exec.CommandContext(ctx, r.binary, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return services.Wrap(services.ErrConversionFailed, "ffmpeg", operation, "stdout pipe", err)
	}

	r.logger.Debug("starting ffmpeg",
		logging.String("operation", operation),
		logging.String("args", strings.Join(args, " ")))

	if err := cmd.Start(); err != nil {
		return services.Wrap(services.ErrConversionFailed, "ffmpeg", operation, "start ffmpeg", err)
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		if onPercent == nil || duration <= 0 {
			continue
		}
		if percent, ok := parseProgressLine(scanner.Text(), duration); ok {
			onPercent(percent)
		}
	}

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return services.Wrap(services.ErrCancelled, "ffmpeg", operation, "context cancelled", ctx.Err())
		}
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		if strings.Contains(detail, "No space left") {
			return services.Wrap(services.ErrDiskFull, "ffmpeg", operation, detail, err)
		}
		return services.Wrap(services.ErrConversionFailed, "ffmpeg", operation, detail, err)
	}
	return nil
}

// parseProgressLine extracts a percent value from one line of ffmpeg
// -progress output ("out_time_us=<microseconds>" or "progress=end").
func parseProgressLine(line string, duration time.Duration) (float64, bool) {
	line = strings.TrimSpace(line)
	if line == "progress=end" {
		return 100, true
	}
	value, ok := strings.CutPrefix(line, "out_time_us=")
	if !ok {
		return 0, false
	}
	micros, err := strconv.ParseInt(value, 10, 64)
	if err != nil || micros < 0 {
		return 0, false
	}
	percent := float64(micros) / float64(duration.Microseconds()) * 100
	if percent > 100 {
		percent = 100
	}
	return percent, true
}

// Version reports the installed ffmpeg version string.
func (r *Runner) Version(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, r.binary, "-version").Output()
	if err != nil {
		return "", fmt.Errorf("run %s -version: %w", r.binary, err)
	}
	line, _, _ := strings.Cut(string(out), "\n")
	return strings.TrimSpace(line), nil
}
