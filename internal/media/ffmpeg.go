package media

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
)

// Prober measures media length
type Prober interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// FFmpeg wraps FFmpeg operations
type FFmpeg struct {
	ffmpegPath  string
	ffprobePath string
	runner      Runner
}

// NewFFmpeg creates a new FFmpeg instance backed by os/exec
func NewFFmpeg(ffmpegPath, ffprobePath string) *FFmpeg {
	return NewFFmpegWithRunner(ffmpegPath, ffprobePath, ExecRunner{})
}

// NewFFmpegWithRunner creates an FFmpeg instance using the given runner
func NewFFmpegWithRunner(ffmpegPath, ffprobePath string, runner Runner) *FFmpeg {
	return &FFmpeg{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		runner:      runner,
	}
}

// Duration returns the playable length of a media file in seconds.
// It only reads the file and can be called any number of times.
func (f *FFmpeg) Duration(ctx context.Context, path string) (float64, error) {
	if _, err := os.Stat(path); err != nil {
		return 0, &ProbeError{Path: path, Err: missing(path)}
	}

	out, err := f.runner.Run(ctx, f.ffprobePath,
		"-v", "quiet",
		"-i", path,
		"-show_entries", "format=duration",
		"-of", "csv=p=0",
	)
	if err != nil {
		return 0, &ProbeError{Path: path, Err: err}
	}

	raw := strings.TrimSpace(string(out))
	duration, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &ProbeError{Path: path, Err: fmt.Errorf("non-numeric duration %q", raw)}
	}
	if math.IsNaN(duration) || math.IsInf(duration, 0) || duration < 0 {
		return 0, &ProbeError{Path: path, Err: fmt.Errorf("invalid duration %q", raw)}
	}

	return duration, nil
}

// CutAudioFrom writes the part of in that starts fromMs milliseconds in
func (f *FFmpeg) CutAudioFrom(ctx context.Context, in, out Asset, fromMs int64) error {
	if fromMs < 0 {
		return fmt.Errorf("cut offset must not be negative, got %d", fromMs)
	}
	if !in.Exists() {
		return missing(in.Path)
	}

	return f.run(ctx, "cut_audio", out,
		"-y",
		"-i", in.Path,
		"-ss", formatMillis(fromMs),
		"-c:a", "libmp3lame",
		"-b:a", "128k",
		out.Path,
	)
}

// run executes ffmpeg for a stage writing out. A failed invocation never
// leaves a partial file behind.
func (f *FFmpeg) run(ctx context.Context, op string, out Asset, args ...string) error {
	if _, err := f.runner.Run(ctx, f.ffmpegPath, args...); err != nil {
		removeFile(out.Path)
		return &ExternalServiceError{Op: op, Target: out.String(), Err: err}
	}

	if !out.Exists() {
		return &ExternalServiceError{Op: op, Target: out.String(), Err: errors.New("ffmpeg produced no output")}
	}

	return nil
}

// removeFile removes a file, ignoring errors
func removeFile(path string) {
	if path != "" {
		os.Remove(path)
	}
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}

func formatMillis(ms int64) string {
	return fmt.Sprintf("%d.%03d", ms/1000, ms%1000)
}
