package model

import "strings"

// Region identifies one of the administrative groupings a municipality
// belongs to.
type Region int

const (
	RegionUnknown Region = iota
	RegionWestern
	RegionEastern
	RegionSouthern
)

// Regions lists the named regions in display order. RegionUnknown is
// deliberately absent; it only collects records with unrecognised labels.
var Regions = []Region{RegionWestern, RegionEastern, RegionSouthern}

// Arabic labels as they appear in the municipality dataset.
const (
	ArabicWestern  = "المنطقة الغربية"
	ArabicEastern  = "المنطقة الشرقية"
	ArabicSouthern = "المنطقة الجنوبية"
)

// OfficialNationalPopulation is the published census total for Libya. The
// municipality rows do not sum to it.
const OfficialNationalPopulation = 8443553

// String returns the English region name.
func (r Region) String() string {
	switch r {
	case RegionWestern:
		return "Western Region"
	case RegionEastern:
		return "Eastern Region"
	case RegionSouthern:
		return "Southern Region"
	default:
		return "Unknown Region"
	}
}

// DisplayName returns the Arabic label used by the map UI. Unknown keeps its
// English name, matching what the dataset would show.
func (r Region) DisplayName() string {
	switch r {
	case RegionWestern:
		return ArabicWestern
	case RegionEastern:
		return ArabicEastern
	case RegionSouthern:
		return ArabicSouthern
	default:
		return r.String()
	}
}

// OfficialPopulation returns the published census population of the region,
// or 0 for RegionUnknown.
func (r Region) OfficialPopulation() int {
	switch r {
	case RegionWestern:
		return 4668121
	case RegionEastern:
		return 2934561
	case RegionSouthern:
		return 840871
	default:
		return 0
	}
}

// Slug is a stable ASCII key for transports and CSS classes.
func (r Region) Slug() string {
	switch r {
	case RegionWestern:
		return "western"
	case RegionEastern:
		return "eastern"
	case RegionSouthern:
		return "southern"
	default:
		return "unknown"
	}
}

// ParseRegion maps a dataset or API label onto a Region. Arabic labels,
// English names and slugs are accepted; anything else is RegionUnknown.
func ParseRegion(label string) Region {
	v := strings.TrimSpace(label)
	switch v {
	case ArabicWestern:
		return RegionWestern
	case ArabicEastern:
		return RegionEastern
	case ArabicSouthern:
		return RegionSouthern
	}
	switch strings.ToLower(v) {
	case "western region", "western", "west":
		return RegionWestern
	case "eastern region", "eastern", "east":
		return RegionEastern
	case "southern region", "southern", "south":
		return RegionSouthern
	default:
		return RegionUnknown
	}
}

// InferRegion guesses a region from coordinates: west of 18°E is Western,
// east of it and north of 25°N is Eastern, the rest is Southern. Loaders
// fall back to it only when asked to and the region label is unrecognised.
func InferRegion(lat, lon float64) Region {
	if lon < 18 {
		return RegionWestern
	}
	if lat > 25 {
		return RegionEastern
	}
	return RegionSouthern
}

// MarshalText encodes the region as its slug.
func (r Region) MarshalText() ([]byte, error) {
	return []byte(r.Slug()), nil
}

// UnmarshalText accepts any label ParseRegion understands.
func (r *Region) UnmarshalText(text []byte) error {
	*r = ParseRegion(string(text))
	return nil
}
