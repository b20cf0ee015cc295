package music

// TuningString is one course of the instrument: its position and the open
// pitch in integer semitones.
type TuningString struct {
	Index     int `json:"index"`
	OpenPitch int `json:"midi"`
}

// Tuning is an ordered set of strings, low course first.
type Tuning struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	Strings []TuningString `json:"strings"`
}

// Fixed tuning catalog, loaded once at startup. Index 0 is the lowest
// course.
var tunings = []Tuning{
	{
		ID:   "arabic_standard",
		Name: "Arabic Standard (Oud)",
		Strings: []TuningString{
			{0, 36}, {1, 41}, {2, 45}, {3, 50}, {4, 55}, {5, 60}, // C F A d g c
		},
	},
	{
		ID:   "turkish_standard",
		Name: "Turkish Standard (Oud)",
		Strings: []TuningString{
			{0, 37}, {1, 42}, {2, 47}, {3, 52}, {4, 57}, {5, 62},
		},
	},
	{
		ID:   "saz_baglama",
		Name: "Bağlama (Saz)",
		Strings: []TuningString{
			{0, 45}, {1, 50}, {2, 55},
		},
	},
}

// Tunings returns the full catalog.
func Tunings() []Tuning {
	return tunings
}

// TuningByID looks up a tuning; unknown ids fall back to Arabic standard.
func TuningByID(id string) Tuning {
	for _, t := range tunings {
		if t.ID == id {
			return t
		}
	}
	return tunings[0]
}

// Quantization names a note-value grid.
type Quantization string

const (
	QuantQuarter      Quantization = "1/4"
	QuantEighth       Quantization = "1/8"
	QuantSixteenth    Quantization = "1/16"
	QuantThirtySecond Quantization = "1/32"
)

// ParseQuantization maps a config string onto the grid; unrecognized
// values default to eighth notes.
func ParseQuantization(s string) Quantization {
	switch Quantization(s) {
	case QuantQuarter, QuantEighth, QuantSixteenth, QuantThirtySecond:
		return Quantization(s)
	}
	return QuantEighth
}

// Divisions returns how many grid units fit in one beat.
func (q Quantization) Divisions() int {
	switch q {
	case QuantQuarter:
		return 1
	case QuantEighth:
		return 2
	case QuantSixteenth:
		return 4
	case QuantThirtySecond:
		return 8
	}
	return 2
}

// GridSeconds returns the quantization grid unit for a tempo in BPM.
func (q Quantization) GridSeconds(tempo int) float64 {
	return 60.0 / float64(tempo) / float64(q.Divisions())
}
