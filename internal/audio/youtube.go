package audio

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	apperrors "github.com/panosadamop/maqam-tab/internal/errors"
	"github.com/panosadamop/maqam-tab/internal/exec"
)

// YouTubeDownloader acquires audio from YouTube using yt-dlp. It is the
// acquisition collaborator of the pipeline; all it hands back is a path to
// a WAV file plus the track title.
type YouTubeDownloader struct {
	runner *exec.Runner
}

// NewYouTubeDownloader creates a new YouTube downloader
func NewYouTubeDownloader(runner *exec.Runner) *YouTubeDownloader {
	return &YouTubeDownloader{runner: runner}
}

// IsYouTubeURL checks if the given string is a YouTube URL
func IsYouTubeURL(url string) bool {
	patterns := []string{
		`^https?://(www\.)?youtube\.com/watch\?v=[\w-]+`,
		`^https?://(www\.)?youtube\.com/shorts/[\w-]+`,
		`^https?://youtu\.be/[\w-]+`,
		`^https?://music\.youtube\.com/watch\?v=[\w-]+`,
		`^https?://(www\.)?youtube-nocookie\.com/watch\?v=[\w-]+`,
	}

	for _, pattern := range patterns {
		if matched, _ := regexp.MatchString(pattern, url); matched {
			return true
		}
	}
	return false
}

// Download fetches a single video's audio as WAV into outputDir and returns
// (wavPath, title).
func (d *YouTubeDownloader) Download(ctx context.Context, url, outputDir string) (string, string, error) {
	if !d.runner.CheckTool(ctx, "yt-dlp") {
		return "", "", fmt.Errorf("%w: yt-dlp (pip install yt-dlp)", apperrors.ErrToolNotInstalled)
	}

	outputPath := filepath.Join(outputDir, "input.%(ext)s")

	result, err := d.runner.Run(ctx, "yt-dlp",
		"--no-playlist",
		"--extract-audio",
		"--audio-format", "wav",
		"--audio-quality", "0",
		"--max-filesize", "100m",
		"--output", outputPath,
		"--print", "after_move:title",
		"--no-warnings",
		"--no-progress",
		url,
	)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", "", fmt.Errorf("%w: download exceeded time limit", apperrors.ErrTimeout)
		}
		stderr := ""
		exitCode := 0
		if result != nil {
			stderr = apperrors.Truncate(result.Stderr, 500)
			exitCode = result.ExitCode
		}
		return "", "", apperrors.NewStageError("yt-dlp", "acquisition", exitCode, stderr, err)
	}

	wavPath := filepath.Join(outputDir, "input.wav")
	if _, err := ValidateInput(wavPath); err != nil {
		return "", "", apperrors.NewStageError("yt-dlp", "acquisition", 0, "no WAV output produced", err)
	}

	title := "YouTube Audio"
	if result.Stdout != "" {
		title = strings.SplitN(strings.TrimSpace(result.Stdout), "\n", 2)[0]
	}
	if len(title) > 120 {
		title = title[:117] + "..."
	}

	return wavPath, title, nil
}
