package music

import "math"

// Note is one transcribed note, quantized to the working grid and mapped
// onto the instrument fretboard. JSON field names match what the MaqamTAB
// frontend consumes.
type Note struct {
	ID               string  `json:"id"`
	Time             float64 `json:"time"`     // onset, seconds
	Duration         float64 `json:"duration"` // seconds
	Frequency        float64 `json:"frequency"`
	Pitch            float64 `json:"midi"`             // fractional semitones, piano-key units
	PitchRounded     int     `json:"midiRounded"`      // nearest integer semitone
	MicrotonalOffset float64 `json:"microtonalOffset"` // cents from the rounded pitch
	String           int     `json:"string"`
	Fret             int     `json:"fret"`
	Velocity         int     `json:"velocity"`
	Ornament         string  `json:"ornament,omitempty"`
}

// FreqToPitch converts a frequency in Hz to fractional piano-key
// semitones (A4 = 440 Hz = 69).
func FreqToPitch(freq float64) float64 {
	if freq <= 0 {
		return 0
	}
	return 69 + 12*math.Log2(freq/440.0)
}

// round4 trims float noise before values land in JSON payloads.
func round4(x float64) float64 {
	return math.Round(x*10000) / 10000
}
