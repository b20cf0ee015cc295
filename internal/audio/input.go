package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/panosadamop/maqam-tab/internal/errors"
)

const (
	MaxFileSize = 100 * 1024 * 1024 // 100MB
)

// Format represents an audio file format
type Format string

const (
	FormatWAV     Format = "wav"
	FormatMP3     Format = "mp3"
	FormatOGG     Format = "ogg"
	FormatFLAC    Format = "flac"
	FormatM4A     Format = "m4a"
	FormatUnknown Format = "unknown"
)

// Extensions accepted for upload; everything is normalized to canonical PCM
// by the conversion collaborator before analysis.
var acceptedExts = map[string]Format{
	".wav":  FormatWAV,
	".mp3":  FormatMP3,
	".ogg":  FormatOGG,
	".oga":  FormatOGG,
	".opus": FormatOGG,
	".flac": FormatFLAC,
	".m4a":  FormatM4A,
	".aac":  FormatM4A,
	".webm": FormatOGG,
}

// ValidateInput checks if the input file is valid for processing
func ValidateInput(path string) (Format, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return FormatUnknown, fmt.Errorf("%w: %s", apperrors.ErrFileNotFound, path)
	}
	if err != nil {
		return FormatUnknown, fmt.Errorf("stat file: %w", err)
	}

	if info.Size() > MaxFileSize {
		return FormatUnknown, fmt.Errorf("%w: maximum size is 100MB", apperrors.ErrFileTooLarge)
	}

	format, err := detectFormat(path)
	if err != nil {
		return FormatUnknown, err
	}

	if format == FormatUnknown {
		return FormatUnknown, fmt.Errorf("%w: please provide a WAV, MP3, OGG, FLAC or M4A file", apperrors.ErrUnsupportedFormat)
	}

	return format, nil
}

// detectFormat checks file magic bytes to determine audio format
func detectFormat(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return FormatUnknown, fmt.Errorf("%w: %v", apperrors.ErrCorruptedFile, err)
	}
	defer f.Close()

	header := make([]byte, 12)
	n, err := f.Read(header)
	if err != nil || n < 4 {
		return FormatUnknown, fmt.Errorf("%w: could not read file header", apperrors.ErrCorruptedFile)
	}

	// WAV (RIFF....WAVE)
	if string(header[:4]) == "RIFF" && n >= 12 && string(header[8:12]) == "WAVE" {
		return FormatWAV, nil
	}

	// MP3 with ID3 tag
	if string(header[:3]) == "ID3" {
		return FormatMP3, nil
	}

	// MP3 frame sync
	if header[0] == 0xFF && (header[1]&0xE0) == 0xE0 {
		return FormatMP3, nil
	}

	// OGG container
	if string(header[:4]) == "OggS" {
		return FormatOGG, nil
	}

	// FLAC
	if string(header[:4]) == "fLaC" {
		return FormatFLAC, nil
	}

	// MP4/M4A (ftyp box)
	if n >= 8 && string(header[4:8]) == "ftyp" {
		return FormatM4A, nil
	}

	// Fallback: check extension
	ext := strings.ToLower(filepath.Ext(path))
	if format, ok := acceptedExts[ext]; ok {
		return format, nil
	}

	return FormatUnknown, nil
}

// AcceptedUpload reports whether a filename carries an extension the upload
// endpoint accepts.
func AcceptedUpload(filename string) bool {
	_, ok := acceptedExts[strings.ToLower(filepath.Ext(filename))]
	return ok
}
