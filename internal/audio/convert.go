package audio

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	apperrors "github.com/panosadamop/maqam-tab/internal/errors"
	"github.com/panosadamop/maqam-tab/internal/exec"
)

// Canonical PCM parameters every analysis pass expects: mono, 16 kHz,
// 16-bit signed little-endian.
const (
	CanonicalRate     = 16000
	CanonicalChannels = 1
	CanonicalBitDepth = 16
)

// Converter normalizes arbitrary audio containers to canonical PCM via
// ffmpeg. It is the conversion collaborator of the pipeline.
type Converter struct {
	runner *exec.Runner
}

// NewConverter creates a new converter
func NewConverter(runner *exec.Runner) *Converter {
	return &Converter{runner: runner}
}

// Convert transcodes inputPath into a canonical 16 kHz mono s16le WAV at
// outputPath.
func (c *Converter) Convert(ctx context.Context, inputPath, outputPath string) error {
	if !c.runner.CheckTool(ctx, "ffmpeg") {
		return fmt.Errorf("%w: ffmpeg", apperrors.ErrToolNotInstalled)
	}

	result, err := c.runner.Run(ctx, "ffmpeg", "-y",
		"-i", inputPath,
		"-ac", strconv.Itoa(CanonicalChannels),
		"-ar", strconv.Itoa(CanonicalRate),
		"-acodec", "pcm_s16le",
		outputPath,
	)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("%w: conversion exceeded time limit", apperrors.ErrTimeout)
		}
		stderr := ""
		exitCode := 0
		if result != nil {
			stderr = apperrors.Truncate(result.Stderr, 300)
			exitCode = result.ExitCode
		}
		return apperrors.NewStageError("ffmpeg", "conversion", exitCode, stderr, err)
	}

	return nil
}

// Duration probes inputPath for its duration in seconds via ffprobe.
// Probe failures are reported as errors but callers treat them as
// non-fatal metadata loss.
func (c *Converter) Duration(ctx context.Context, inputPath string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	result, err := c.runner.Run(ctx, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		inputPath,
	)
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}

	var probe struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal([]byte(result.Stdout), &probe); err != nil {
		return 0, fmt.Errorf("parse ffprobe output: %w", err)
	}

	seconds, err := strconv.ParseFloat(probe.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", probe.Format.Duration, err)
	}

	return seconds, nil
}
