package music

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"
)

// Tempo estimation bounds.
const (
	DefaultTempo = 80
	MinTempo     = 40
	MaxTempo     = 240

	minGap = 0.05 // seconds; shorter inter-onset gaps are outliers
	maxGap = 2.0  // seconds; longer gaps are rests, not beats
)

// EstimateTempo refines the working tempo from note onset spacing. It
// takes the median surviving inter-onset gap as the beat candidate and
// folds it by {0.5, 1, 2} into the playable BPM range, rounded to a
// multiple of 4. Fewer than 4 notes, or no surviving gap, keeps the
// default of 80 BPM.
func EstimateTempo(notes []Note) int {
	if len(notes) < 4 {
		return DefaultTempo
	}

	onsets := make([]float64, len(notes))
	for i, n := range notes {
		onsets[i] = n.Time
	}
	sort.Float64s(onsets)

	var gaps []float64
	for i := 1; i < len(onsets); i++ {
		if gap := onsets[i] - onsets[i-1]; gap > minGap && gap < maxGap {
			gaps = append(gaps, gap)
		}
	}
	if len(gaps) == 0 {
		return DefaultTempo
	}

	median, err := stats.Median(gaps)
	if err != nil || median <= 0 {
		return DefaultTempo
	}

	bpm := 60.0 / median
	for _, factor := range []float64{0.5, 1.0, 2.0} {
		candidate := bpm * factor
		if candidate >= MinTempo && candidate <= MaxTempo {
			snapped := int(math.Round(candidate/4)) * 4
			if snapped < MinTempo {
				snapped = MinTempo
			}
			if snapped > MaxTempo {
				snapped = MaxTempo
			}
			return snapped
		}
	}

	return DefaultTempo
}
