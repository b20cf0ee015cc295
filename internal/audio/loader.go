package audio

import (
	"fmt"
	"os"

	"github.com/go-audio/wav"

	apperrors "github.com/panosadamop/maqam-tab/internal/errors"
)

// LoadSamples decodes a canonical PCM WAV file into a flat mono float
// buffer in [-1,1] plus its sample rate.
//
// The conversion collaborator always hands us mono 16 kHz s16le, but the
// loader tolerates what it can: stereo is downmixed by averaging, 8-bit
// is rescaled, and any other sample width is zero-filled so the onset
// grid stays aligned with the source timeline.
func LoadSamples(path string) ([]float64, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", apperrors.ErrFileNotFound, err)
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", apperrors.ErrCorruptedFile, err)
	}
	if buf == nil || buf.Format == nil || len(buf.Data) == 0 {
		return nil, 0, fmt.Errorf("%w: empty PCM payload", apperrors.ErrCorruptedFile)
	}

	bitDepth := buf.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = int(d.BitDepth)
	}

	samples := make([]float64, len(buf.Data))
	switch bitDepth {
	case 16:
		for i, s := range buf.Data {
			samples[i] = float64(s) / 32768.0
		}
	case 8:
		// 8-bit WAV is unsigned
		for i, s := range buf.Data {
			samples[i] = (float64(s) - 128.0) / 128.0
		}
	default:
		// Unsupported width: keep the zero fill, length preserved
	}

	channels := buf.Format.NumChannels
	if channels == 2 {
		mono := make([]float64, 0, len(samples)/2)
		for i := 0; i+1 < len(samples); i += 2 {
			mono = append(mono, (samples[i]+samples[i+1])/2)
		}
		samples = mono
	} else if channels > 2 {
		return nil, 0, fmt.Errorf("%w: %d channels", apperrors.ErrUnsupportedFormat, channels)
	}

	return samples, buf.Format.SampleRate, nil
}
