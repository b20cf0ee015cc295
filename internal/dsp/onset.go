package dsp

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// OnsetConfig controls the RMS onset detector.
type OnsetConfig struct {
	FrameSize     int     // samples per analysis frame
	HopSize       int     // samples between consecutive frames
	Lookback      float64 // adaptive-threshold window, seconds
	ThresholdGain float64 // multiplier on the local mean energy
	ThresholdBias float64 // absolute floor added to the threshold
	MinGap        float64 // refractory period between onsets, seconds
}

// DefaultOnsetConfig returns the detector settings tuned for plucked
// string instruments at 16 kHz.
func DefaultOnsetConfig() OnsetConfig {
	return OnsetConfig{
		FrameSize:     1024,
		HopSize:       256,
		Lookback:      0.3,
		ThresholdGain: 1.6,
		ThresholdBias: 0.002,
		MinGap:        0.04,
	}
}

// RMS computes the root-mean-square energy of a sample window.
func RMS(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return math.Sqrt(floats.Dot(x, x) / float64(len(x)))
}

// DetectOnsets finds note-start timestamps in a mono sample buffer.
//
// A frame is accepted as an onset when its RMS energy rises above an
// adaptive threshold (local mean over the lookback window, scaled and
// biased), exceeds the previous frame (rising edge), and the refractory
// gap since the last onset has elapsed. Because a frame's energy window
// looks a full frame ahead of its start, a triggering frame can begin in
// the silence before the attack; the reported timestamp is therefore
// anchored at the first threshold-crossing sample inside the frame, so a
// pitch window opened at the onset starts in signal. Buffers shorter
// than one frame produce an empty list, never an error.
func DetectOnsets(samples []float64, sampleRate int, cfg OnsetConfig) []float64 {
	if len(samples) < cfg.FrameSize || sampleRate <= 0 {
		return nil
	}

	var energies []float64
	for i := 0; i < len(samples)-cfg.FrameSize; i += cfg.HopSize {
		energies = append(energies, RMS(samples[i:i+cfg.FrameSize]))
	}
	if len(energies) == 0 {
		return nil
	}

	window := int(cfg.Lookback * float64(sampleRate) / float64(cfg.HopSize))
	if window < 1 {
		window = 1
	}
	// Round up so the refractory period is never shorter than MinGap.
	minGapFrames := int(math.Ceil(cfg.MinGap * float64(sampleRate) / float64(cfg.HopSize)))
	if minGapFrames < 1 {
		minGapFrames = 1
	}

	var onsets []float64
	lastOnsetFrame := -2 * minGapFrames
	var runningSum float64
	for i := 0; i < window && i < len(energies); i++ {
		runningSum += energies[i]
	}

	for i := window; i < len(energies); i++ {
		localMean := runningSum / float64(window)
		threshold := localMean*cfg.ThresholdGain + cfg.ThresholdBias

		if energies[i] > threshold &&
			energies[i] > energies[i-1] &&
			i-lastOnsetFrame >= minGapFrames {
			start := i * cfg.HopSize
			at := float64(start+attackOffset(samples[start:start+cfg.FrameSize], threshold)) / float64(sampleRate)
			// Consecutive frames over one attack refine to the same
			// sample; keep the timeline strictly ascending.
			if len(onsets) == 0 || at > onsets[len(onsets)-1] {
				onsets = append(onsets, at)
			}
			lastOnsetFrame = i
		}

		runningSum += energies[i] - energies[i-window]
	}

	return onsets
}

// attackOffset locates the first sample in a triggering frame whose
// amplitude crosses the energy threshold. A frame that is loud from its
// first sample anchors at the frame start.
func attackOffset(frame []float64, threshold float64) int {
	for i, s := range frame {
		if math.Abs(s) > threshold {
			return i
		}
	}
	return 0
}
