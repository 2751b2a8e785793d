package core

import "math"

// Reference point for the map of Libya, in degrees.
const (
	CenterLon = 17.0
	CenterLat = 27.0
)

// Base projection scales for the two layout breakpoints.
const (
	MobileBreakpoint = 768
	MobileScale      = 1200.0
	DesktopScale     = 2000.0
)

// BaseScale returns the projection scale for a viewport of the given width.
// Widths at or below the mobile breakpoint get the smaller scale.
func BaseScale(width float64) float64 {
	if width <= MobileBreakpoint {
		return MobileScale
	}
	return DesktopScale
}

// Projection is a spherical Mercator projection centred on a reference
// point. Scale is in pixels per radian; the centre projects to Translate.
//
// Projection is a value type so view states can copy it freely.
type Projection struct {
	CenterLon  float64
	CenterLat  float64
	Scale      float64
	TranslateX float64
	TranslateY float64
}

// NewProjection returns the map projection for a width x height viewport.
func NewProjection(width, height float64) Projection {
	return Projection{
		CenterLon:  CenterLon,
		CenterLat:  CenterLat,
		Scale:      BaseScale(width),
		TranslateX: width / 2,
		TranslateY: height / 2,
	}
}

// Project maps geographic degrees to untransformed map coordinates.
func (p Projection) Project(lon, lat float64) (x, y float64) {
	x = p.TranslateX + p.Scale*(radians(lon)-radians(p.CenterLon))
	y = p.TranslateY - p.Scale*(mercatorY(lat)-mercatorY(p.CenterLat))
	return x, y
}

// Invert maps untransformed map coordinates back to degrees.
func (p Projection) Invert(x, y float64) (lon, lat float64) {
	lambda := (x-p.TranslateX)/p.Scale + radians(p.CenterLon)
	my := (p.TranslateY-y)/p.Scale + mercatorY(p.CenterLat)
	phi := 2*math.Atan(math.Exp(my)) - math.Pi/2
	return degrees(lambda), degrees(phi)
}

func mercatorY(latDeg float64) float64 {
	return math.Log(math.Tan(math.Pi/4 + radians(latDeg)/2))
}

func radians(deg float64) float64 { return deg * math.Pi / 180.0 }

func degrees(rad float64) float64 { return rad * 180.0 / math.Pi }
