package core

import "math"

// Scale extent of the zoom behaviour.
const (
	MinZoom = 0.5
	MaxZoom = 8.0
)

// Transform is the pan/zoom state applied to the whole map group: a map
// point (x, y) is drawn at (x*K + X, y*K + Y).
type Transform struct {
	K float64 `json:"k"`
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Identity is the untransformed view.
var Identity = Transform{K: 1}

// Apply maps a map point to screen coordinates.
func (t Transform) Apply(x, y float64) (float64, float64) {
	return x*t.K + t.X, y*t.K + t.Y
}

// Invert maps a screen point back to map coordinates.
func (t Transform) Invert(sx, sy float64) (float64, float64) {
	return (sx - t.X) / t.K, (sy - t.Y) / t.K
}

// Translate shifts the transform by (dx, dy) in map units.
func (t Transform) Translate(dx, dy float64) Transform {
	return Transform{K: t.K, X: t.X + t.K*dx, Y: t.Y + t.K*dy}
}

// ClampZoom bounds k to [MinZoom, MaxZoom].
func ClampZoom(k float64) float64 {
	if k < MinZoom {
		return MinZoom
	}
	if k > MaxZoom {
		return MaxZoom
	}
	return k
}

// Lerp interpolates between a and b at t in [0, 1]. Translation is linear;
// scale is interpolated geometrically so each step zooms by the same ratio.
func Lerp(a, b Transform, t float64) Transform {
	if t <= 0 {
		return a
	}
	if t >= 1 {
		return b
	}
	return Transform{
		K: a.K * math.Pow(b.K/a.K, t),
		X: a.X + (b.X-a.X)*t,
		Y: a.Y + (b.Y-a.Y)*t,
	}
}
