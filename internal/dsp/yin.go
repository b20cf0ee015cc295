package dsp

import (
	"gonum.org/v1/gonum/floats"
)

// PitchConfig bounds the YIN fundamental-frequency search.
type PitchConfig struct {
	MinHz     float64
	MaxHz     float64
	Threshold float64 // CMND acceptance threshold
}

// DefaultPitchConfig covers the oud/saz register with a little headroom.
func DefaultPitchConfig() PitchConfig {
	return PitchConfig{
		MinHz:     60,
		MaxHz:     1800,
		Threshold: 0.12,
	}
}

// EstimatePitch runs time-domain YIN over one onset-bounded window and
// returns the fundamental frequency in Hz. ok is false when no lag
// qualifies; the caller drops that note rather than failing the job.
func EstimatePitch(window []float64, sampleRate int, cfg PitchConfig) (freq float64, ok bool) {
	n := len(window)

	minPeriod := int(float64(sampleRate) / cfg.MaxHz)
	if minPeriod < 1 {
		minPeriod = 1
	}
	maxPeriod := n / 2
	if p := int(float64(sampleRate) / cfg.MinHz); p < maxPeriod {
		maxPeriod = p
	}
	if maxPeriod <= minPeriod || n < maxPeriod*2 {
		return 0, false
	}

	// Difference function d[tau] = sum_j (x[j]-x[j+tau])^2
	d := make([]float64, maxPeriod)
	scratch := make([]float64, maxPeriod)
	for tau := 1; tau < maxPeriod; tau++ {
		m := maxPeriod
		if n-tau < m {
			m = n - tau
		}
		diff := scratch[:m]
		floats.SubTo(diff, window[:m], window[tau:tau+m])
		d[tau] = floats.Dot(diff, diff)
	}

	// Cumulative-mean-normalized difference
	cmnd := make([]float64, maxPeriod)
	cmnd[0] = 1
	var running float64
	for tau := 1; tau < maxPeriod; tau++ {
		running += d[tau]
		if running > 0 {
			cmnd[tau] = float64(tau) * d[tau] / running
		} else {
			cmnd[tau] = 1
		}
	}

	// First local minimum under the threshold, refined by parabolic
	// interpolation across its neighbors.
	for tau := minPeriod; tau < maxPeriod-1; tau++ {
		if cmnd[tau] < cfg.Threshold &&
			cmnd[tau] < cmnd[tau-1] &&
			cmnd[tau] <= cmnd[tau+1] {
			denom := 2*cmnd[tau] - cmnd[tau-1] - cmnd[tau+1]
			adj := 0.5 * (cmnd[tau+1] - cmnd[tau-1]) / (denom + 1e-10)
			return float64(sampleRate) / (float64(tau) + adj), true
		}
	}

	return 0, false
}
