package speech

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/panosadamop/maqam-tab/internal/errors"
	"github.com/panosadamop/maqam-tab/internal/exec"
)

// Metadata is what the speech pass contributes to a job: language and a
// text fragment for display. Whisper is never consulted for pitch.
type Metadata struct {
	Language string `json:"language"`
	Text     string `json:"text"`
}

// Transcriber wraps the whisper CLI as an optional external collaborator.
type Transcriber struct {
	runner *exec.Runner
	model  string
}

// NewTranscriber creates a whisper transcriber. The model defaults to
// "base"; set WHISPER_MODEL for larger ones.
func NewTranscriber(runner *exec.Runner) *Transcriber {
	model := os.Getenv("WHISPER_MODEL")
	if model == "" {
		model = "base"
	}
	return &Transcriber{runner: runner, model: model}
}

// Available reports whether the whisper binary is installed.
func (t *Transcriber) Available(ctx context.Context) bool {
	return t.runner.CheckTool(ctx, "whisper")
}

// Transcribe runs whisper on a canonical WAV and reads back its JSON
// output from outDir.
func (t *Transcriber) Transcribe(ctx context.Context, wavPath, outDir string) (*Metadata, error) {
	result, err := t.runner.Run(ctx, "whisper",
		wavPath,
		"--model", t.model,
		"--output_format", "json",
		"--output_dir", outDir,
	)
	if err != nil {
		stderr := ""
		exitCode := 0
		if result != nil {
			stderr = apperrors.Truncate(result.Stderr, 300)
			exitCode = result.ExitCode
		}
		return nil, apperrors.NewStageError("whisper", "analysis", exitCode, stderr, err)
	}

	base := strings.TrimSuffix(filepath.Base(wavPath), filepath.Ext(wavPath))
	data, err := os.ReadFile(filepath.Join(outDir, base+".json"))
	if err != nil {
		return nil, fmt.Errorf("read whisper output: %w", err)
	}

	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parse whisper output: %w", err)
	}
	if len(meta.Text) > 500 {
		meta.Text = meta.Text[:500]
	}

	return &meta, nil
}
