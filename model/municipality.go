package model

// Municipality is a named settlement with population, region and
// coordinates. Values are immutable once loaded into the store.
type Municipality struct {
	Name       string  `json:"name"`
	Population int     `json:"population"`
	Region     Region  `json:"region"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`

	// Order is the zero-based position in the source dataset. Ranking uses
	// it to break population ties.
	Order int `json:"order"`
}

// PopulationCategory returns the descriptive size class shown in the info
// panel.
func PopulationCategory(population int) string {
	switch {
	case population > 500000:
		return "Major City (500,000+)"
	case population > 200000:
		return "Large City (200,000+)"
	case population > 100000:
		return "Medium City (100,000+)"
	case population > 50000:
		return "Small City (50,000+)"
	default:
		return "Town (<50,000)"
	}
}
