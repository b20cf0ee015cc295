package maqam

import (
	"math"

	"github.com/panosadamop/maqam-tab/internal/music"
)

// Undetermined is the terminal result name when too few notes exist to
// classify. It is a valid outcome, not an error.
const Undetermined = "undetermined"

// Classification bounds.
const (
	minNotes      = 3
	confidenceCap = 0.95
)

// Result is the classifier verdict for one note collection.
type Result struct {
	Name       string    `json:"name"`
	Arabic     string    `json:"arabic,omitempty"`
	Root       int       `json:"root"` // pitch class 0-11
	Confidence float64   `json:"confidence"`
	Intervals  []float64 `json:"intervals,omitempty"`
	Direction  string    `json:"seyirDirection,omitempty"`
}

// IsUndetermined reports whether no profile was matched.
func (r *Result) IsUndetermined() bool {
	return r.Name == Undetermined
}

// Classify scores the note collection against every (root, profile)
// pair and picks the best. The pitch-class histogram is weighted by each
// note's share of total duration, so uniformly stretching all durations
// leaves the verdict unchanged. Fewer than three notes yields the
// undetermined result.
func Classify(notes []music.Note) *Result {
	if len(notes) < minNotes {
		return &Result{Name: Undetermined}
	}

	var totalDur float64
	for _, n := range notes {
		totalDur += n.Duration
	}
	if totalDur <= 0 {
		return &Result{Name: Undetermined}
	}

	var hist [12]float64
	for _, n := range notes {
		pc := ((n.PitchRounded % 12) + 12) % 12
		hist[pc] += n.Duration / totalDur
	}

	var best *Profile
	bestScore := -1.0
	bestRoot := 0

	for root := 0; root < 12; root++ {
		for i := range catalog {
			p := &catalog[i]
			var score float64
			for _, interval := range p.Intervals {
				pc := (root + int(math.Round(interval/100))) % 12
				score += hist[pc]
			}
			// Strict comparison keeps the earliest catalog entry on ties.
			if score > bestScore {
				bestScore = score
				best = p
				bestRoot = root
			}
		}
	}

	return &Result{
		Name:       best.Name,
		Arabic:     best.Arabic,
		Root:       bestRoot,
		Confidence: math.Min(confidenceCap, bestScore),
		Intervals:  best.Intervals,
		Direction:  best.Direction,
	}
}
