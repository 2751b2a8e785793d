package core

import (
	"math"

	"github.com/signalsfoundry/libya-atlas/model"
)

// Offsets of the leader line end and the label baseline above the marker
// edge, in map units.
const (
	LeaderOffset = 15.0
	LabelOffset  = 20.0

	LabelFontSize    = 16.0
	MinLabelFontSize = 12.0
)

// LeaderLine connects a marker centre to its label.
type LeaderLine struct {
	X1          float64 `json:"x1"`
	Y1          float64 `json:"y1"`
	X2          float64 `json:"x2"`
	Y2          float64 `json:"y2"`
	StrokeWidth float64 `json:"stroke_width"`
}

// Label is a text label centred horizontally over its marker.
type Label struct {
	Text     string  `json:"text"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	FontSize float64 `json:"font_size"`
}

// LabelGeometry is the leader line and label for one municipality.
type LabelGeometry struct {
	Owner  string     `json:"owner"`
	Leader LeaderLine `json:"leader"`
	Label  Label      `json:"label"`
}

// LabelGeometryFor derives label geometry from the current projection and
// zoom. Callers recompute it whenever either changes instead of caching it.
func LabelGeometryFor(p Projection, m model.Municipality, zoom float64) LabelGeometry {
	x, y := p.Project(m.Lon, m.Lat)
	s := ScaleFactor(zoom)
	r := EffectiveRadius(m.Population, zoom)

	return LabelGeometry{
		Owner: m.Name,
		Leader: LeaderLine{
			X1:          x,
			Y1:          y,
			X2:          x,
			Y2:          y - (LeaderOffset + r),
			StrokeWidth: math.Max(1.5, 2.5*s),
		},
		Label: Label{
			Text:     m.Name,
			X:        x,
			Y:        y - (LabelOffset + r),
			FontSize: math.Max(MinLabelFontSize, LabelFontSize*s),
		},
	}
}
