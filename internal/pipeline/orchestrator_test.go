package pipeline

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/panosadamop/maqam-tab/internal/music"
	"github.com/panosadamop/maqam-tab/internal/progress"
	"github.com/panosadamop/maqam-tab/internal/speech"
	"github.com/panosadamop/maqam-tab/internal/store"
)

const testSampleRate = 16000

// writeTestWAV renders the given sample buffer as a 16-bit mono WAV.
func writeTestWAV(t *testing.T, path string, samples []float64) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create wav: %v", err)
	}
	defer f.Close()

	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s * 32000)
	}
	enc := wav.NewEncoder(f, testSampleRate, 16, 1, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: testSampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode wav: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close wav: %v", err)
	}
}

// pluckedSamples renders two decaying plucks at 0.5s and 1.2s.
func pluckedSamples() []float64 {
	samples := make([]float64, 2*testSampleRate)
	pluck := func(startSec, freq float64) {
		start := int(startSec * testSampleRate)
		length := testSampleRate / 4
		for i := 0; i < length && start+i < len(samples); i++ {
			env := math.Exp(-4 * float64(i) / float64(length))
			samples[start+i] = 0.6 * env * math.Sin(2*math.Pi*freq*float64(i)/testSampleRate)
		}
	}
	pluck(0.5, 440)
	pluck(1.2, 330)
	return samples
}

type fakeAcquirer struct {
	err  error
	hook func()
}

func (f *fakeAcquirer) Download(ctx context.Context, url, outputDir string) (string, string, error) {
	if f.hook != nil {
		f.hook()
	}
	if f.err != nil {
		return "", "", f.err
	}
	return filepath.Join(outputDir, "input.wav"), "Fake Title", nil
}

// copyConverter stands in for ffmpeg by copying the source file verbatim.
type copyConverter struct {
	seconds float64
	err     error
}

func (c *copyConverter) Convert(ctx context.Context, inputPath, outputPath string) error {
	if c.err != nil {
		return c.err
	}
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return err
	}
	return os.WriteFile(outputPath, data, 0644)
}

func (c *copyConverter) Duration(ctx context.Context, inputPath string) (float64, error) {
	return c.seconds, nil
}

type fakeSpeech struct {
	available bool
	meta      *speech.Metadata
	err       error
}

func (f *fakeSpeech) Available(ctx context.Context) bool { return f.available }

func (f *fakeSpeech) Transcribe(ctx context.Context, wavPath, outDir string) (*speech.Metadata, error) {
	return f.meta, f.err
}

func testOrchestrator(st *store.Store, acq Acquirer, conv Converter, sp SpeechAnalyzer) *Orchestrator {
	return &Orchestrator{
		store:     st,
		acquirer:  acq,
		converter: conv,
		speech:    sp,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func fileRequest(t *testing.T, samples []float64) Request {
	t.Helper()
	src := filepath.Join(t.TempDir(), "source.wav")
	writeTestWAV(t, src, samples)
	return Request{ID: "job-1", SourceType: SourceFile, Source: src, Title: "Test Track"}
}

func TestRunFileSuccess(t *testing.T) {
	st := store.New()
	req := fileRequest(t, pluckedSamples())
	st.Create(req.ID, req.Source, nil)

	o := testOrchestrator(st, nil, &copyConverter{seconds: 2.0}, &fakeSpeech{})
	o.Run(context.Background(), req, DefaultConfig())

	job, ok := st.Get(req.ID)
	if !ok {
		t.Fatal("job vanished")
	}
	if job.Status != store.StatusDone {
		t.Fatalf("status = %q (stage %q, error %q)", job.Status, job.Stage, job.Error)
	}
	if job.Progress != 100 {
		t.Errorf("progress = %d, want 100", job.Progress)
	}
	if len(job.Notes) < 2 {
		t.Errorf("got %d notes, want at least 2", len(job.Notes))
	}
	if job.Maqam == nil {
		t.Error("maqam result missing")
	}
	if job.Tempo < music.MinTempo || job.Tempo > music.MaxTempo {
		t.Errorf("tempo = %d outside valid range", job.Tempo)
	}
	if job.Title != "Test Track" {
		t.Errorf("title = %q", job.Title)
	}
	if job.Duration != 2.0 {
		t.Errorf("duration = %v, want 2.0", job.Duration)
	}

	for _, n := range job.Notes {
		if n.PitchRounded < music.MinPitch || n.PitchRounded > music.MaxPitch {
			t.Errorf("note pitch %d outside instrument range", n.PitchRounded)
		}
	}

	// The worker analyzes a staged copy; the caller's file stays put.
	if _, err := os.Stat(req.Source); err != nil {
		t.Errorf("source file gone after run: %v", err)
	}
}

func TestRunReportsProgress(t *testing.T) {
	st := store.New()
	req := fileRequest(t, pluckedSamples())
	st.Create(req.ID, req.Source, nil)

	var buf bytes.Buffer
	o := testOrchestrator(st, nil, &copyConverter{seconds: 2.0}, &fakeSpeech{available: true, err: os.ErrDeadlineExceeded})
	o.reporter = progress.NewReporter(&buf, true)
	o.Run(context.Background(), req, DefaultConfig())

	out := buf.String()
	for _, want := range []string{"[1/5]", "[3/5]", "[5/5]", "onsets", "Warning:"} {
		if !strings.Contains(out, want) {
			t.Errorf("reporter output missing %q:\n%s", want, out)
		}
	}
}

func TestRunSilentAudio(t *testing.T) {
	st := store.New()
	req := fileRequest(t, make([]float64, testSampleRate))
	st.Create(req.ID, req.Source, nil)

	o := testOrchestrator(st, nil, &copyConverter{seconds: 1.0}, &fakeSpeech{})
	o.Run(context.Background(), req, DefaultConfig())

	job, _ := st.Get(req.ID)
	if job.Status != store.StatusDone {
		t.Fatalf("status = %q, want done", job.Status)
	}
	if len(job.Notes) != 0 {
		t.Errorf("silence produced %d notes", len(job.Notes))
	}
	if job.Maqam == nil || !job.Maqam.IsUndetermined() {
		t.Errorf("maqam = %+v, want undetermined", job.Maqam)
	}
	if job.Tempo != music.DefaultTempo {
		t.Errorf("tempo = %d, want default %d", job.Tempo, music.DefaultTempo)
	}
}

func TestRunSpeechPassSetsLanguage(t *testing.T) {
	st := store.New()
	req := fileRequest(t, pluckedSamples())
	st.Create(req.ID, req.Source, nil)

	sp := &fakeSpeech{available: true, meta: &speech.Metadata{Language: "ar", Text: "taqsim"}}
	o := testOrchestrator(st, nil, &copyConverter{seconds: 2.0}, sp)
	o.Run(context.Background(), req, DefaultConfig())

	job, _ := st.Get(req.ID)
	if job.Status != store.StatusDone {
		t.Fatalf("status = %q, want done", job.Status)
	}
	if job.Language != "ar" {
		t.Errorf("language = %q, want ar", job.Language)
	}
}

func TestRunSpeechFailureIsNotFatal(t *testing.T) {
	st := store.New()
	req := fileRequest(t, pluckedSamples())
	st.Create(req.ID, req.Source, nil)

	sp := &fakeSpeech{available: true, err: os.ErrDeadlineExceeded}
	o := testOrchestrator(st, nil, &copyConverter{seconds: 2.0}, sp)
	o.Run(context.Background(), req, DefaultConfig())

	job, _ := st.Get(req.ID)
	if job.Status != store.StatusDone {
		t.Errorf("status = %q, want done despite speech failure", job.Status)
	}
}

func TestRunAcquireFailure(t *testing.T) {
	st := store.New()
	req := Request{ID: "job-1", SourceType: SourceYouTube, Source: "https://youtu.be/abc123"}
	st.Create(req.ID, req.Source, nil)

	acq := &fakeAcquirer{err: os.ErrNotExist}
	o := testOrchestrator(st, acq, &copyConverter{}, &fakeSpeech{})
	o.Run(context.Background(), req, DefaultConfig())

	job, _ := st.Get(req.ID)
	if job.Status != store.StatusError {
		t.Fatalf("status = %q, want error", job.Status)
	}
	if job.Error == "" {
		t.Error("error message empty")
	}
	if len(job.Error) > 200 {
		t.Errorf("error message %d chars, want at most 200", len(job.Error))
	}
}

func TestRunConvertFailure(t *testing.T) {
	st := store.New()
	req := fileRequest(t, pluckedSamples())
	st.Create(req.ID, req.Source, nil)

	o := testOrchestrator(st, nil, &copyConverter{err: os.ErrPermission}, &fakeSpeech{})
	o.Run(context.Background(), req, DefaultConfig())

	job, _ := st.Get(req.ID)
	if job.Status != store.StatusError {
		t.Errorf("status = %q, want error", job.Status)
	}
}

func TestRunCancelledDuringAcquire(t *testing.T) {
	st := store.New()
	req := Request{ID: "job-1", SourceType: SourceYouTube, Source: "https://youtu.be/abc123"}
	st.Create(req.ID, req.Source, nil)

	acq := &fakeAcquirer{hook: func() { st.Cancel(req.ID) }}
	o := testOrchestrator(st, acq, &copyConverter{}, &fakeSpeech{})
	o.Run(context.Background(), req, DefaultConfig())

	job, _ := st.Get(req.ID)
	if job.Status != store.StatusCancelled {
		t.Fatalf("status = %q, want cancelled", job.Status)
	}
	if job.Progress == 100 {
		t.Error("cancelled job reached full progress")
	}
	if len(job.Notes) != 0 {
		t.Errorf("cancelled job carries %d notes", len(job.Notes))
	}
}

func TestRunContextCancelled(t *testing.T) {
	st := store.New()
	req := fileRequest(t, pluckedSamples())
	ctx, cancel := context.WithCancel(context.Background())
	st.Create(req.ID, req.Source, cancel)

	// Cancel the worker context from the converter, as a running job
	// would see when DELETE arrives mid-stage.
	conv := &cancellingConverter{inner: &copyConverter{seconds: 2.0}, cancel: func() { st.Cancel(req.ID) }}
	o := testOrchestrator(st, nil, conv, &fakeSpeech{})
	o.Run(ctx, req, DefaultConfig())

	job, _ := st.Get(req.ID)
	if job.Status != store.StatusCancelled {
		t.Fatalf("status = %q, want cancelled", job.Status)
	}
}

type cancellingConverter struct {
	inner  *copyConverter
	cancel func()
}

func (c *cancellingConverter) Convert(ctx context.Context, inputPath, outputPath string) error {
	c.cancel()
	return c.inner.Convert(ctx, inputPath, outputPath)
}

func (c *cancellingConverter) Duration(ctx context.Context, inputPath string) (float64, error) {
	return c.inner.Duration(ctx, inputPath)
}

func TestRunCleansUpUploadedSource(t *testing.T) {
	st := store.New()
	req := fileRequest(t, pluckedSamples())
	req.CleanupSource = true
	st.Create(req.ID, req.Source, nil)

	o := testOrchestrator(st, nil, &copyConverter{seconds: 2.0}, &fakeSpeech{})
	o.Run(context.Background(), req, DefaultConfig())

	if _, err := os.Stat(req.Source); !os.IsNotExist(err) {
		t.Errorf("uploaded source still present after run: %v", err)
	}
}

func TestRunUnknownSourceType(t *testing.T) {
	st := store.New()
	req := Request{ID: "job-1", SourceType: "carrier-pigeon", Source: "x"}
	st.Create(req.ID, req.Source, nil)

	o := testOrchestrator(st, nil, &copyConverter{}, &fakeSpeech{})
	o.Run(context.Background(), req, DefaultConfig())

	job, _ := st.Get(req.ID)
	if job.Status != store.StatusError {
		t.Errorf("status = %q, want error", job.Status)
	}
}
