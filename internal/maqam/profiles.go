package maqam

// Profile is one melodic-mode template: an ordered 8-degree interval
// ladder in cents from an implicit root. Values off the 100-cent grid
// express neutral (quarter-tone) steps.
type Profile struct {
	Name      string    `json:"name"`
	Arabic    string    `json:"arabic"`
	Intervals []float64 `json:"intervals"`
	Direction string    `json:"seyirDirection"`
}

// catalog is the fixed read-only profile set. Order matters: equal
// classification scores resolve to the earliest entry.
var catalog = []Profile{
	{"Rast", "راست", []float64{0, 200, 350, 500, 700, 900, 1050, 1200}, "ascending"},
	{"Bayati", "بياتي", []float64{0, 150, 300, 500, 700, 800, 1000, 1200}, "ascending"},
	{"Hijaz", "حجاز", []float64{0, 100, 400, 500, 700, 800, 1100, 1200}, "ascending"},
	{"Nahawand", "نهاوند", []float64{0, 200, 300, 500, 700, 800, 1100, 1200}, "ascending"},
	{"Saba", "صبا", []float64{0, 150, 300, 450, 700, 800, 1000, 1200}, "ascending"},
	{"Kurd", "كرد", []float64{0, 100, 300, 500, 700, 800, 1000, 1200}, "ascending"},
	{"Sikah", "سيكاه", []float64{0, 150, 350, 500, 700, 850, 1050, 1200}, "ascending"},
	{"Ajam", "عجم", []float64{0, 200, 400, 500, 700, 900, 1100, 1200}, "ascending"},
	{"Hicazkar", "حجازكار", []float64{0, 100, 400, 500, 700, 800, 1100, 1200}, "ascending"},
	{"Husseini", "حسيني", []float64{0, 150, 350, 500, 700, 850, 1000, 1200}, "ascending"},
}

// Catalog returns the full profile set in tie-break order.
func Catalog() []Profile {
	return catalog
}
