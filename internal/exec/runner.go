package exec

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"
)

// Result holds command execution output
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Runner executes external tools (yt-dlp, ffmpeg, ffprobe, whisper) with
// context support.
type Runner struct{}

// NewRunner creates a new command runner
func NewRunner() *Runner {
	return &Runner{}
}

// Run executes a tool and captures output
func (r *Runner) Run(ctx context.Context, name string, args ...string) (*Result, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	result := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if exitErr, ok := err.(*exec.ExitError); ok {
		result.ExitCode = exitErr.ExitCode()
	}

	if err != nil {
		return result, fmt.Errorf("%s failed: %w", name, err)
	}

	return result, nil
}

// CheckTool verifies an external tool is installed and runnable.
func (r *Runner) CheckTool(ctx context.Context, name string) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, "--version")
	return cmd.Run() == nil
}
