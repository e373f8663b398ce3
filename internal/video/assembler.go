package video

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// maxOutputTail bounds how much ffmpeg output is kept on failure.
const maxOutputTail = 2048

// ExitError reports an ffmpeg run that did not exit cleanly.
type ExitError struct {
	// Code is the exit status, or -1 when the process was killed by a signal.
	Code int
	// Signal is the terminating signal, if any.
	Signal string
	// Output is the tail of the combined stdout and stderr.
	Output string
}

func (e *ExitError) Error() string {
	var msg string
	if e.Signal != "" {
		msg = "ffmpeg killed by signal " + e.Signal
	} else {
		msg = "ffmpeg exited with code " + strconv.Itoa(e.Code)
	}
	if e.Output != "" {
		msg += ": " + lastLine(e.Output)
	}
	return msg
}

// AssemblerConfig configures the ffmpeg invocation.
type AssemblerConfig struct {
	FFmpegPath string
	FrameRate  int
	Codec      string
}

// Assembler turns a numbered image sequence into an MP4 with one ffmpeg run.
type Assembler struct {
	cfg    AssemblerConfig
	logger *slog.Logger

	// command builds the process; tests replace it with a helper process.
	command func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// NewAssembler creates an assembler. Zero config values fall back to
// ffmpeg on PATH, 10 frames per second and libx264.
func NewAssembler(cfg AssemblerConfig, logger *slog.Logger) *Assembler {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.FrameRate <= 0 {
		cfg.FrameRate = 10
	}
	if cfg.Codec == "" {
		cfg.Codec = "libx264"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{cfg: cfg, logger: logger, command: exec.CommandContext}
}

// Args returns the ffmpeg arguments reading pattern and writing output.
func (a *Assembler) Args(pattern, output string) []string {
	return []string{
		"-y",
		"-loglevel", "error",
		"-framerate", strconv.Itoa(a.cfg.FrameRate),
		"-i", pattern,
		"-c:v", a.cfg.Codec,
		"-pix_fmt", "yuv420p",
		output,
	}
}

// Assemble runs ffmpeg once. A non-zero exit yields an *ExitError.
func (a *Assembler) Assemble(ctx context.Context, pattern, output string) error {
	start := time.Now()
	cmd := a.command(ctx, a.cfg.FFmpegPath, a.Args(pattern, output)...)
	out, err := cmd.CombinedOutput()

	a.logger.DebugContext(ctx, "ffmpeg finished",
		slog.String("pattern", pattern),
		slog.Duration("duration", time.Since(start)),
		slog.Bool("ok", err == nil),
	)

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return newExitError(exitErr, out)
		}
		return fmt.Errorf("run ffmpeg: %w", err)
	}

	info, err := os.Stat(output)
	if err != nil {
		return fmt.Errorf("ffmpeg produced no output: %w", err)
	}
	if info.Size() == 0 {
		return errors.New("ffmpeg produced an empty file")
	}
	return nil
}

func newExitError(exitErr *exec.ExitError, out []byte) *ExitError {
	e := &ExitError{Code: exitErr.ExitCode(), Output: tail(out, maxOutputTail)}
	if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		e.Signal = ws.Signal().String()
	}
	return e
}

func tail(b []byte, n int) string {
	if len(b) > n {
		b = b[len(b)-n:]
	}
	return strings.TrimSpace(string(b))
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
