package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/panosadamop/maqam-tab/internal/audio"
	"github.com/panosadamop/maqam-tab/internal/dsp"
	apperrors "github.com/panosadamop/maqam-tab/internal/errors"
	"github.com/panosadamop/maqam-tab/internal/exec"
	"github.com/panosadamop/maqam-tab/internal/maqam"
	"github.com/panosadamop/maqam-tab/internal/music"
	"github.com/panosadamop/maqam-tab/internal/progress"
	"github.com/panosadamop/maqam-tab/internal/speech"
	"github.com/panosadamop/maqam-tab/internal/store"
	"github.com/panosadamop/maqam-tab/internal/workspace"
)

// SourceType says where a job's audio comes from.
type SourceType string

const (
	SourceYouTube SourceType = "youtube"
	SourceFile    SourceType = "file"
)

// Request identifies one job to run.
type Request struct {
	ID         string
	SourceType SourceType
	Source     string // URL or local file path
	Title      string // display title for file sources
	// CleanupSource removes the source file on exit (uploads saved to
	// a temp path become worker-owned once submitted).
	CleanupSource bool
}

// Config holds pipeline configuration
type Config struct {
	TuningID         string
	Quantization     music.Quantization
	ProvisionalTempo int
	UseSpeech        bool
	AcquireTimeout   time.Duration
	ConvertTimeout   time.Duration
	SpeechTimeout    time.Duration
}

// DefaultConfig returns default pipeline configuration
func DefaultConfig() Config {
	return Config{
		TuningID:         "arabic_standard",
		Quantization:     music.QuantEighth,
		ProvisionalTempo: music.DefaultTempo,
		UseSpeech:        true,
		AcquireTimeout:   5 * time.Minute,
		ConvertTimeout:   2 * time.Minute,
		SpeechTimeout:    3 * time.Minute,
	}
}

// Acquirer fetches remote audio into a directory. Implemented by the
// yt-dlp collaborator; tests substitute fakes.
type Acquirer interface {
	Download(ctx context.Context, url, outputDir string) (path, title string, err error)
}

// Converter normalizes audio to canonical PCM.
type Converter interface {
	Convert(ctx context.Context, inputPath, outputPath string) error
	Duration(ctx context.Context, inputPath string) (float64, error)
}

// SpeechAnalyzer is the optional metadata pass.
type SpeechAnalyzer interface {
	Available(ctx context.Context) bool
	Transcribe(ctx context.Context, wavPath, outDir string) (*speech.Metadata, error)
}

// Orchestrator sequences the analysis stages against one job, updating
// status and progress through the store. One worker per job; workers
// never share anything but the store.
type Orchestrator struct {
	store     *store.Store
	acquirer  Acquirer
	converter Converter
	speech    SpeechAnalyzer
	reporter  *progress.Reporter
	logger    *slog.Logger
}

// New creates an orchestrator wired to the real external collaborators.
// reporter may be nil (the server runs without CLI output).
func New(st *store.Store, reporter *progress.Reporter, logger *slog.Logger) *Orchestrator {
	runner := exec.NewRunner()
	return &Orchestrator{
		store:     st,
		acquirer:  audio.NewYouTubeDownloader(runner),
		converter: audio.NewConverter(runner),
		speech:    speech.NewTranscriber(runner),
		reporter:  reporter,
		logger:    logger,
	}
}

// Run executes the full pipeline for one job. It is the job's single
// writer; every exit path cleans up the workspace and, for uploads, the
// source file.
func (o *Orchestrator) Run(ctx context.Context, req Request, cfg Config) {
	o.store.Sweep()

	if req.CleanupSource {
		defer os.Remove(req.Source)
	}

	ws, err := workspace.Create()
	if err != nil {
		o.fail(req.ID, fmt.Errorf("create workspace: %w", err))
		return
	}
	defer ws.Cleanup()

	// Stage 1: acquisition
	wavPath, err := o.acquire(ctx, req, ws, cfg)
	if err != nil {
		o.fail(req.ID, err)
		return
	}
	if o.cancelled(ctx, req.ID) {
		return
	}

	// Stage 2: conversion to canonical PCM
	o.startStage(progress.StageConvert)
	o.store.SetStage(req.ID, store.StatusConverting, 15, "Converting audio...")

	convertCtx, convertCancel := context.WithTimeout(ctx, cfg.ConvertTimeout)
	defer convertCancel()
	if err := o.converter.Convert(convertCtx, wavPath, ws.CanonicalWAV()); err != nil {
		o.fail(req.ID, err)
		return
	}
	if seconds, err := o.converter.Duration(ctx, wavPath); err == nil {
		o.store.Update(req.ID, func(j *store.Job) { j.Duration = round1(seconds) })
	}
	o.store.SetProgress(req.ID, 25, "Conversion complete")
	o.stageComplete("Canonical PCM ready")
	if o.cancelled(ctx, req.ID) {
		return
	}

	// Stage 3: analysis (all CPU-bound, no suspension points)
	o.startStage(progress.StageAnalyze)
	o.store.SetStage(req.ID, store.StatusAnalyzing, 40, "Loading samples...")

	samples, sampleRate, err := audio.LoadSamples(ws.CanonicalWAV())
	if err != nil {
		o.fail(req.ID, err)
		return
	}
	o.update("%d samples at %d Hz", len(samples), sampleRate)

	o.store.SetProgress(req.ID, 60, "Detecting onsets...")
	onsets := dsp.DetectOnsets(samples, sampleRate, dsp.DefaultOnsetConfig())
	o.update("%d onsets", len(onsets))

	o.store.SetProgress(req.ID, 75, "Detecting pitches...")
	builder := music.NewBuilder(music.BuilderConfig{
		Tuning:       music.TuningByID(cfg.TuningID),
		Quantization: cfg.Quantization,
		Pitch:        dsp.DefaultPitchConfig(),
	})
	notes := builder.Build(samples, sampleRate, onsets, cfg.ProvisionalTempo)
	o.store.SetProgress(req.ID, 85, fmt.Sprintf("Detected %d notes", len(notes)))
	o.stageComplete("%d onsets, %d notes", len(onsets), len(notes))
	if o.cancelled(ctx, req.ID) {
		return
	}

	// Stage 4: tempo refinement + re-quantization against the new grid
	o.startStage(progress.StageTempo)
	tempo := music.EstimateTempo(notes)
	builder.Requantize(notes, tempo)
	o.store.SetProgress(req.ID, 88, fmt.Sprintf("Estimated tempo: %d BPM", tempo))
	o.stageComplete("Tempo: %d BPM", tempo)
	if o.cancelled(ctx, req.ID) {
		return
	}

	// Stage 5: maqam classification
	o.startStage(progress.StageClassify)
	result := maqam.Classify(notes)
	o.store.SetProgress(req.ID, 93, "Maqam analysis complete")
	if result.IsUndetermined() {
		o.stageComplete("Maqam undetermined (%d usable notes)", len(notes))
	} else {
		o.stageComplete("Maqam: %s (root %d, confidence %.2f)", result.Name, result.Root, result.Confidence)
	}

	// Optional speech pass: metadata only, never fatal
	if cfg.UseSpeech && o.speech.Available(ctx) && !o.cancelled(ctx, req.ID) {
		o.store.SetProgress(req.ID, 95, "Analyzing metadata...")
		speechCtx, speechCancel := context.WithTimeout(ctx, cfg.SpeechTimeout)
		meta, err := o.speech.Transcribe(speechCtx, ws.CanonicalWAV(), ws.Dir)
		speechCancel()
		if err != nil {
			o.logger.Warn("speech pass failed", slog.String("job", req.ID), slog.Any("error", err))
			o.warn("metadata pass failed: %v", err)
		} else {
			o.store.Update(req.ID, func(j *store.Job) { j.Language = meta.Language })
		}
	}
	if o.cancelled(ctx, req.ID) {
		return
	}

	// Finalize
	o.store.Update(req.ID, func(j *store.Job) {
		if j.Status == store.StatusCancelled {
			return
		}
		j.Status = store.StatusDone
		j.Progress = 100
		j.Stage = "Complete"
		j.Notes = notes
		j.Maqam = result
		j.Tempo = tempo
	})
	o.logger.Info("job complete",
		slog.String("job", req.ID),
		slog.Int("notes", len(notes)),
		slog.Int("tempo", tempo),
		slog.String("maqam", result.Name),
	)
}

// acquire resolves the job source to a local WAV path.
func (o *Orchestrator) acquire(ctx context.Context, req Request, ws *workspace.Workspace, cfg Config) (string, error) {
	o.startStage(progress.StageAcquire)

	switch req.SourceType {
	case SourceYouTube:
		o.store.SetStage(req.ID, store.StatusDownloading, 5, "Downloading from YouTube...")

		dlCtx, cancel := context.WithTimeout(ctx, cfg.AcquireTimeout)
		defer cancel()
		path, title, err := o.acquirer.Download(dlCtx, req.Source, ws.Dir)
		if err != nil {
			return "", err
		}
		o.store.Update(req.ID, func(j *store.Job) {
			if j.Status == store.StatusCancelled {
				return
			}
			j.Progress = 30
			j.Stage = "Download complete"
			j.Title = title
		})
		o.stageComplete("Downloaded: %s", title)
		return path, nil

	case SourceFile:
		o.store.SetStage(req.ID, store.StatusDownloading, 20, "Loading file...")
		if _, err := audio.ValidateInput(req.Source); err != nil {
			return "", err
		}
		// Stage a worker-owned copy so later stages never touch the
		// caller's file.
		local, err := ws.CopyFile(req.Source, "input"+strings.ToLower(filepath.Ext(req.Source)))
		if err != nil {
			return "", fmt.Errorf("stage input: %w", err)
		}
		title := req.Title
		if title == "" {
			title = audio.TrackTitle(req.Source, "")
		}
		o.store.Update(req.ID, func(j *store.Job) { j.Title = title })
		o.stageComplete("Loaded: %s", title)
		return local, nil
	}

	return "", fmt.Errorf("%w: unknown source type %q", apperrors.ErrUnsupportedFormat, req.SourceType)
}

// cancelled checks the cooperative cancellation points between stages.
func (o *Orchestrator) cancelled(ctx context.Context, id string) bool {
	if ctx.Err() != nil {
		o.logger.Info("job cancelled", slog.String("job", id))
		return true
	}
	if job, ok := o.store.Get(id); ok && job.Status == store.StatusCancelled {
		o.logger.Info("job cancelled", slog.String("job", id))
		return true
	}
	return false
}

func (o *Orchestrator) fail(id string, err error) {
	o.store.Fail(id, apperrors.Truncate(err.Error(), 200))
	o.logger.Error("job failed", slog.String("job", id), slog.Any("error", err))
	if o.reporter != nil {
		o.reporter.Error(err)
	}
}

func (o *Orchestrator) startStage(stage progress.Stage) {
	if o.reporter != nil {
		o.reporter.StartStage(stage)
	}
}

func (o *Orchestrator) stageComplete(format string, args ...any) {
	if o.reporter != nil {
		o.reporter.StageComplete(format, args...)
	}
}

func (o *Orchestrator) update(format string, args ...any) {
	if o.reporter != nil {
		o.reporter.Update(format, args...)
	}
}

func (o *Orchestrator) warn(format string, args ...any) {
	if o.reporter != nil {
		o.reporter.Warning(format, args...)
	}
}

func round1(x float64) float64 {
	return float64(int(x*10+0.5)) / 10
}
