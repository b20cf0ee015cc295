package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for expected failure modes
var (
	ErrFileNotFound      = errors.New("file not found")
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrCorruptedFile     = errors.New("file corrupted or unreadable")
	ErrFileTooLarge      = errors.New("file exceeds size limit")
	ErrTimeout           = errors.New("operation timed out")
	ErrToolNotInstalled  = errors.New("required tool not installed")
	ErrJobNotFound       = errors.New("job not found")
)

// StageError represents a failure in an external process driving one
// pipeline stage.
type StageError struct {
	Tool     string // "yt-dlp", "ffmpeg", "whisper"
	Stage    string // "acquisition", "conversion", "analysis"
	ExitCode int
	Stderr   string
	Cause    error
}

func (e *StageError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s failed at %s (exit %d): %s", e.Tool, e.Stage, e.ExitCode, e.Stderr)
	}
	return fmt.Sprintf("%s failed at %s (exit %d)", e.Tool, e.Stage, e.ExitCode)
}

func (e *StageError) Unwrap() error {
	return e.Cause
}

// NewStageError creates a StageError
func NewStageError(tool, stage string, exitCode int, stderr string, cause error) *StageError {
	return &StageError{
		Tool:     tool,
		Stage:    stage,
		ExitCode: exitCode,
		Stderr:   stderr,
		Cause:    cause,
	}
}

// Truncate shortens an error message before it is stored on a job record.
func Truncate(msg string, max int) string {
	if len(msg) <= max {
		return msg
	}
	return msg[:max]
}
