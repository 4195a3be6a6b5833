package recorder

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// Transcoder assembles an ordered list of cached segment files into one
// playable output file.
type Transcoder interface {
	// Concat concatenates inputs (absolute paths, in order) into output.
	Concat(ctx context.Context, inputs []string, output string) error
}

// FFmpegTranscoder shells out to ffmpeg with a concat directive.
// Re-encoding (libx264/aac) rather than stream copy guarantees a seekable,
// broadly compatible output container. Progress and log lines from ffmpeg
// are only logged, never blocked on.
type FFmpegTranscoder struct {
	Path string
	Log  *slog.Logger
}

// NewFFmpegTranscoder returns a transcoder running the ffmpeg binary at
// path ("ffmpeg" from PATH when empty).
func NewFFmpegTranscoder(path string, log *slog.Logger) *FFmpegTranscoder {
	if path == "" {
		path = "ffmpeg"
	}
	if log == nil {
		log = slog.Default()
	}
	return &FFmpegTranscoder{Path: path, Log: log}
}

// Available reports whether the ffmpeg binary can be executed.
func (t *FFmpegTranscoder) Available() error {
	out, err := exec.Command(t.Path, "-version").Output()
	if err != nil {
		return fmt.Errorf("ffmpeg not found: %w", err)
	}
	if !strings.Contains(string(out), "ffmpeg version") {
		return fmt.Errorf("unexpected ffmpeg -version output")
	}
	return nil
}

// Concat implements Transcoder.Concat.
func (t *FFmpegTranscoder) Concat(ctx context.Context, inputs []string, output string) error {
	if len(inputs) == 0 {
		return ErrEmptyCache
	}

	args := []string{
		"-hide_banner",
		"-i", "concat:" + strings.Join(inputs, "|"),
		"-c:v", "libx264",
		"-c:a", "aac",
		"-y", output,
	}
	cmd := exec.CommandContext(ctx, t.Path, args...)

	// ffmpeg writes progress and diagnostics to stderr.
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 64*1024), 64*1024)
	for scanner.Scan() {
		t.Log.Debug("ffmpeg", slog.String("line", scanner.Text()))
	}

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg failed: %w", err)
	}
	return nil
}

var _ Transcoder = (*FFmpegTranscoder)(nil)
