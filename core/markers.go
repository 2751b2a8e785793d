package core

import "math"

// Marker palette shared by every municipality.
const (
	MarkerFill        = "#3F3223"
	MarkerStroke      = "#685D4E"
	MarkerStrokeFocus = "#000000"
	MarkerOpacity     = 0.85

	ShadowBase     = "drop-shadow(0px 2px 4px rgba(0,0,0,0.2))"
	ShadowHover    = "drop-shadow(0px 3px 8px rgba(0,0,0,0.3))"
	ShadowSelected = "drop-shadow(0px 3px 8px rgba(220,38,38,0.4))"
)

// Radius bonuses applied on top of the population radius.
const (
	SelectedRadiusBonus = 4
	HoverRadiusBonus    = 2
)

// Bounds of the zoom compensation factor.
const (
	MinScaleFactor = 0.3
	MaxScaleFactor = 2.0
)

// populationTiers pairs inclusive lower bounds with radii, largest first.
var populationTiers = []struct {
	atLeast int
	radius  float64
}{
	{500000, 12},
	{300000, 10},
	{200000, 8},
	{100000, 6},
	{50000, 5},
	{20000, 4},
	{10000, 3},
}

// BaseRadius returns the unzoomed marker radius for a population. It is a
// non-decreasing step function from 2 to 12.
func BaseRadius(population int) float64 {
	for _, tier := range populationTiers {
		if population >= tier.atLeast {
			return tier.radius
		}
	}
	return 2
}

// ScaleFactor compensates marker size for the map's own magnification:
// markers shrink as the user zooms in, bounded to [0.3, 2.0].
func ScaleFactor(zoom float64) float64 {
	if zoom <= 0 {
		return MaxScaleFactor
	}
	return math.Max(MinScaleFactor, math.Min(MaxScaleFactor, 1/zoom))
}

// EffectiveRadius is BaseRadius scaled for the zoom level.
func EffectiveRadius(population int, zoom float64) float64 {
	return BaseRadius(population) * ScaleFactor(zoom)
}

// MarkerState is the per-marker view state that drives styling.
type MarkerState int

const (
	MarkerNormal MarkerState = iota
	MarkerHighlighted
	MarkerHovered
	MarkerSelected
)

// String returns the state name used as a CSS class.
func (s MarkerState) String() string {
	switch s {
	case MarkerHighlighted:
		return "highlighted"
	case MarkerHovered:
		return "hovered"
	case MarkerSelected:
		return "selected"
	default:
		return "normal"
	}
}

// MarshalText encodes the state by name.
func (s MarkerState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name; unknown names are normal.
func (s *MarkerState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "highlighted":
		*s = MarkerHighlighted
	case "hovered":
		*s = MarkerHovered
	case "selected":
		*s = MarkerSelected
	default:
		*s = MarkerNormal
	}
	return nil
}

// MarkerStyle is the fully resolved drawing style of one marker.
type MarkerStyle struct {
	Radius      float64     `json:"r"`
	Fill        string      `json:"fill"`
	Stroke      string      `json:"stroke"`
	StrokeWidth float64     `json:"stroke_width"`
	Opacity     float64     `json:"opacity"`
	Shadow      string      `json:"shadow"`
	State       MarkerState `json:"state"`
}

// StyleMarker derives the style of a marker from its population, the zoom
// level and its state. Styles are always derived, never patched, so leaving
// the hovered state restores the base style exactly.
func StyleMarker(population int, zoom float64, state MarkerState) MarkerStyle {
	s := ScaleFactor(zoom)
	base := BaseRadius(population)
	style := MarkerStyle{
		Radius:      base * s,
		Fill:        MarkerFill,
		Stroke:      MarkerStroke,
		StrokeWidth: math.Max(1, 1.5*s),
		Opacity:     MarkerOpacity,
		Shadow:      ShadowBase,
		State:       state,
	}

	switch state {
	case MarkerSelected:
		style.Radius = (base + SelectedRadiusBonus) * s
		style.Stroke = MarkerStrokeFocus
		style.StrokeWidth = math.Max(2, 4*s)
		style.Shadow = ShadowSelected
	case MarkerHovered:
		style.Radius = (base + HoverRadiusBonus) * s
		style.StrokeWidth = math.Max(2, 3*s)
		style.Shadow = ShadowHover
	case MarkerHighlighted:
		style.Stroke = MarkerStrokeFocus
		style.StrokeWidth = math.Max(1, 3*s)
	}
	return style
}
