package dsp

import (
	"math"
	"testing"
)

const testSampleRate = 16000

// burst writes a decaying sine pluck into buf starting at the given time.
func burst(buf []float64, startSec, freq, amp float64) {
	start := int(startSec * testSampleRate)
	length := testSampleRate / 4
	for i := 0; i < length && start+i < len(buf); i++ {
		env := math.Exp(-4 * float64(i) / float64(length))
		buf[start+i] = amp * env * math.Sin(2*math.Pi*freq*float64(i)/testSampleRate)
	}
}

func TestDetectOnsetsFindsBursts(t *testing.T) {
	samples := make([]float64, 2*testSampleRate)
	burst(samples, 0.5, 220, 0.5)
	burst(samples, 1.2, 330, 0.5)

	onsets := DetectOnsets(samples, testSampleRate, DefaultOnsetConfig())
	if len(onsets) == 0 {
		t.Fatal("no onsets detected")
	}

	for i := 1; i < len(onsets); i++ {
		if onsets[i] <= onsets[i-1] {
			t.Fatalf("onsets not strictly ascending: %v", onsets)
		}
	}

	nearBurst := func(sec float64) bool {
		for _, o := range onsets {
			if o >= sec && o <= sec+0.05 {
				return true
			}
		}
		return false
	}
	if !nearBurst(0.5) {
		t.Errorf("no onset near 0.5s: %v", onsets)
	}
	if !nearBurst(1.2) {
		t.Errorf("no onset near 1.2s: %v", onsets)
	}
	for _, o := range onsets {
		if o < 0.499 {
			t.Errorf("spurious onset at %.3fs during leading silence", o)
		}
	}
}

func TestDetectOnsetsAnchorsAtAttack(t *testing.T) {
	samples := make([]float64, testSampleRate)
	burst(samples, 0.5, 220, 0.5)

	cfg := DefaultOnsetConfig()
	onsets := DetectOnsets(samples, testSampleRate, cfg)
	if len(onsets) == 0 {
		t.Fatal("no onsets detected")
	}

	// The timestamp must land at the attack, not at the start of the
	// frame whose lookahead first saw it.
	if onsets[0] < 0.5 || onsets[0] > 0.52 {
		t.Errorf("onset at %.4fs, want within [0.5, 0.52]", onsets[0])
	}
	for i := 1; i < len(onsets); i++ {
		if gap := onsets[i] - onsets[i-1]; gap < cfg.MinGap {
			t.Errorf("onsets %.4fs apart, refractory is %.0fms", gap, cfg.MinGap*1000)
		}
	}
}

func TestDetectOnsetsSilence(t *testing.T) {
	samples := make([]float64, testSampleRate)
	if onsets := DetectOnsets(samples, testSampleRate, DefaultOnsetConfig()); len(onsets) != 0 {
		t.Errorf("silence produced onsets: %v", onsets)
	}
}

func TestDetectOnsetsShortBuffer(t *testing.T) {
	samples := make([]float64, 500)
	if onsets := DetectOnsets(samples, testSampleRate, DefaultOnsetConfig()); onsets != nil {
		t.Errorf("sub-frame buffer produced onsets: %v", onsets)
	}
}

func TestRMS(t *testing.T) {
	if got := RMS(nil); got != 0 {
		t.Errorf("RMS(nil) = %v, want 0", got)
	}
	if got := RMS([]float64{3, -3, 3, -3}); math.Abs(got-3) > 1e-12 {
		t.Errorf("RMS = %v, want 3", got)
	}
}
