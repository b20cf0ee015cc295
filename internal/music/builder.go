package music

import (
	"fmt"
	"math"
	"sort"

	"github.com/panosadamop/maqam-tab/internal/dsp"
)

// Instrument range and note-window constants carried over from the
// original transcription tuning.
const (
	MinPitch        = 36   // lowest usable semitone
	MaxPitch        = 96   // highest usable semitone
	MinDuration     = 0.05 // seconds, before quantization
	PitchWindowSize = 2048 // samples fed to the pitch estimator
	MinWindowSize   = 512  // shorter windows are skipped
	TailWindows     = 3    // final-note window bound, in PitchWindowSize units
	MinVelocity     = 30
	MaxVelocity     = 127
	velocityScale   = 3000 // linear RMS-to-velocity gain
)

// BuilderConfig carries the Note Builder inputs that stay fixed across
// one job.
type BuilderConfig struct {
	Tuning       Tuning
	Quantization Quantization
	Pitch        dsp.PitchConfig
}

// Builder turns onsets plus pitch estimates into quantized, fret-mapped
// notes.
type Builder struct {
	cfg BuilderConfig

	// string indices ordered by descending open pitch for fret search
	searchOrder []int
}

// NewBuilder creates a note builder for one tuning and grid.
func NewBuilder(cfg BuilderConfig) *Builder {
	order := make([]int, len(cfg.Tuning.Strings))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return cfg.Tuning.Strings[order[a]].OpenPitch > cfg.Tuning.Strings[order[b]].OpenPitch
	})

	return &Builder{cfg: cfg, searchOrder: order}
}

// Build runs the per-onset pitch pass and assembles the note sequence,
// quantized against the given (possibly provisional) tempo. Onsets whose
// window is too short, yields no pitch estimate, or falls outside the
// instrument range are dropped; that is never an error.
func (b *Builder) Build(samples []float64, sampleRate int, onsets []float64, tempo int) []Note {
	grid := b.cfg.Quantization.GridSeconds(tempo)
	notes := make([]Note, 0, len(onsets))

	for idx, onset := range onsets {
		start := int(onset * float64(sampleRate))
		end := len(samples)
		if idx+1 < len(onsets) {
			end = int(onsets[idx+1] * float64(sampleRate))
		} else if tail := start + PitchWindowSize*TailWindows; tail < end {
			end = tail
		}
		if start >= len(samples) {
			continue
		}

		windowEnd := start + PitchWindowSize
		if windowEnd > len(samples) {
			windowEnd = len(samples)
		}
		window := samples[start:windowEnd]
		if len(window) < MinWindowSize {
			continue
		}

		freq, ok := dsp.EstimatePitch(window, sampleRate, b.cfg.Pitch)
		if !ok {
			continue
		}

		pitch := FreqToPitch(freq)
		if pitch < MinPitch || pitch > MaxPitch {
			continue
		}

		duration := float64(end-start) / float64(sampleRate)
		if duration < MinDuration {
			duration = MinDuration
		}

		rounded := int(math.Round(pitch))
		stringIdx, fret := b.assignFret(rounded)

		velocity := int(dsp.RMS(window) * velocityScale)
		if velocity < MinVelocity {
			velocity = MinVelocity
		}
		if velocity > MaxVelocity {
			velocity = MaxVelocity
		}

		notes = append(notes, Note{
			ID:               fmt.Sprintf("note_%d", idx),
			Time:             round4(quantize(onset, grid)),
			Duration:         round4(quantizeDuration(duration, grid)),
			Frequency:        math.Round(freq*100) / 100,
			Pitch:            math.Round(pitch*1000) / 1000,
			PitchRounded:     rounded,
			MicrotonalOffset: math.Round((pitch-float64(rounded))*100*10) / 10,
			String:           stringIdx,
			Fret:             fret,
			Velocity:         velocity,
		})
	}

	return notes
}

// Requantize snaps every note's time and duration to the grid of a newly
// refined tempo. Only time and duration are touched.
func (b *Builder) Requantize(notes []Note, tempo int) {
	grid := b.cfg.Quantization.GridSeconds(tempo)
	for i := range notes {
		notes[i].Time = round4(quantize(notes[i].Time, grid))
		notes[i].Duration = round4(quantizeDuration(notes[i].Duration, grid))
	}
}

// assignFret searches strings from highest open pitch to lowest and picks
// the first whose fret for the rounded pitch lands in [0,24]. Pitches no
// string can reach report the documented (string 0, fret 0) placeholder.
func (b *Builder) assignFret(rounded int) (int, int) {
	for _, si := range b.searchOrder {
		s := b.cfg.Tuning.Strings[si]
		fret := rounded - s.OpenPitch
		if fret >= 0 && fret <= 24 {
			return s.Index, fret
		}
	}
	return 0, 0
}

func quantize(v, grid float64) float64 {
	return math.Round(v/grid) * grid
}

func quantizeDuration(v, grid float64) float64 {
	q := math.Round(v/grid) * grid
	if min := grid * 0.5; q < min {
		return min
	}
	return q
}
