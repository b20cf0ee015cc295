package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/panosadamop/maqam-tab/internal/audio"
	"github.com/panosadamop/maqam-tab/internal/music"
	"github.com/panosadamop/maqam-tab/internal/pipeline"
	"github.com/panosadamop/maqam-tab/internal/progress"
	"github.com/panosadamop/maqam-tab/internal/server"
	"github.com/panosadamop/maqam-tab/internal/store"
)

var (
	version = "2.0.0"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "maqamtab",
	Short: "Microtonal tablature transcription for oud and saz",
	Long: `MaqamTAB analyzes recordings of Arabic and Turkish music and
produces a quantized, pitch-corrected, maqam-classified note sequence
ready for fretted-instrument tablature.

Pipeline: audio -> canonical PCM -> onsets -> pitch -> notes -> tempo -> maqam`,
	Version: version,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Transcribe an audio file or YouTube URL",
	Long: `Run the full transcription pipeline on a local audio file or a
YouTube URL and print the resulting notes, tempo and maqam as JSON.

Examples:
  maqamtab analyze --input taqsim.wav
  maqamtab analyze -i track.mp3 -o notes.json --quantize 1/16
  maqamtab analyze --url "https://youtube.com/watch?v=..." --tuning turkish_standard`,
	RunE: runAnalyze,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the JSON API for submitting transcription jobs and polling
their progress.

Example:
  maqamtab serve --port 8000`,
	RunE: runServe,
}

var (
	// analyze flags
	inputPath  string
	inputURL   string
	outputPath string
	quantize   string
	tuningID   string
	useWhisper bool
	verbose    bool

	// serve flags
	port int
)

func init() {
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(serveCmd)

	analyzeCmd.Flags().StringVarP(&inputPath, "input", "i", "", "Input audio file (WAV, MP3, OGG, FLAC, M4A)")
	analyzeCmd.Flags().StringVarP(&inputURL, "url", "u", "", "YouTube URL to transcribe")
	analyzeCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file for JSON result (default: stdout)")
	analyzeCmd.Flags().StringVarP(&quantize, "quantize", "q", "1/8", "Quantization grid (1/4, 1/8, 1/16, 1/32)")
	analyzeCmd.Flags().StringVarP(&tuningID, "tuning", "t", "arabic_standard", "Tuning id (arabic_standard, turkish_standard, saz_baglama)")
	analyzeCmd.Flags().BoolVar(&useWhisper, "whisper", true, "Run the optional Whisper metadata pass")
	analyzeCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	serveCmd.Flags().IntVarP(&port, "port", "p", 8000, "Port to listen on")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	if inputPath == "" && inputURL == "" {
		return fmt.Errorf("provide --input or --url")
	}
	if inputPath != "" && inputURL != "" {
		return fmt.Errorf("provide only one of --input and --url")
	}

	cfg := pipeline.DefaultConfig()
	cfg.Quantization = music.ParseQuantization(quantize)
	cfg.TuningID = music.TuningByID(tuningID).ID
	cfg.UseSpeech = useWhisper

	req := pipeline.Request{ID: "cli"}
	if inputURL != "" {
		if !audio.IsYouTubeURL(inputURL) {
			return fmt.Errorf("not a YouTube URL: %s", inputURL)
		}
		req.SourceType = pipeline.SourceYouTube
		req.Source = inputURL
	} else {
		req.SourceType = pipeline.SourceFile
		req.Source = inputPath
	}

	logLevel := slog.LevelWarn
	if verbose {
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	reporter := progress.NewReporter(os.Stderr, verbose)

	st := store.New()
	st.Create(req.ID, req.Source, nil)

	orch := pipeline.New(st, reporter, logger)
	orch.Run(context.Background(), req, cfg)

	job, _ := st.Get(req.ID)
	if job.Status == store.StatusError {
		return fmt.Errorf("analysis failed: %s", job.Error)
	}

	result := map[string]any{
		"title":    job.Title,
		"duration": job.Duration,
		"tempo":    job.Tempo,
		"notes":    job.Notes,
		"maqam":    job.Maqam,
	}
	payload, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	if outputPath != "" {
		if err := os.WriteFile(outputPath, payload, 0644); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		reporter.Done(outputPath)
		return nil
	}

	fmt.Println(string(payload))
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	srv := server.New(server.Config{
		Port:     port,
		Pipeline: pipeline.DefaultConfig(),
	})
	return srv.Run()
}
